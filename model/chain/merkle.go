package chain

const (
	merkleLeafDomain = "tari.merkle.leaf"
	merkleNodeDomain = "tari.merkle.node"
)

// MerkleRoot computes the root of a binary Merkle tree over the given leaf
// hashes. An odd node at the end of a level is promoted unchanged. The root of
// an empty list is the zero hash.
func MerkleRoot(leaves []Hash) Hash {
	if len(leaves) == 0 {
		return ZeroHash
	}
	level := make([]Hash, len(leaves))
	for i, leaf := range leaves {
		level[i] = NewDomainHasher(merkleLeafDomain).WriteFixed(leaf[:]).Finalize()
	}
	for len(level) > 1 {
		next := make([]Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, level[i])
				continue
			}
			next = append(next, NewDomainHasher(merkleNodeDomain).
				WriteFixed(level[i][:]).
				WriteFixed(level[i+1][:]).
				Finalize())
		}
		level = next
	}
	return level[0]
}
