package committees

// QuorumThreshold returns the number of distinct votes needed to build a QC
// in a committee of the given size: the smallest t with 2*size/3 < t. For
// 3f+1 members this is 2f+1.
func QuorumThreshold(size uint64) uint64 {
	// 2 * Floor(size/3) + max(1, size mod 3)
	res := 2 * (size / 3)
	if rem := size % 3; rem <= 1 {
		res++
	} else {
		res += rem
	}
	return res
}

// FaultTolerance returns f, the number of byzantine members a committee of
// the given size tolerates.
func FaultTolerance(size uint64) uint64 {
	if size == 0 {
		return 0
	}
	return (size - 1) / 3
}
