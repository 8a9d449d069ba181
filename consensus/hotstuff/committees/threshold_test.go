package committees

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestQuorumThreshold checks that the threshold is the smallest integer
// strictly above two thirds of the committee.
func TestQuorumThreshold(t *testing.T) {
	for size := uint64(1); size <= 302; size++ {
		threshold := QuorumThreshold(size)

		boundaryValue := float64(size) * 2.0 / 3.0
		assert.True(t, boundaryValue < float64(threshold))
		assert.False(t, boundaryValue < float64(threshold-1))
	}
}

func TestQuorumThreshold_ByzantineCommittees(t *testing.T) {
	for f := uint64(0); f <= 50; f++ {
		size := 3*f + 1
		assert.Equal(t, f, FaultTolerance(size))
		assert.Equal(t, 2*f+1, QuorumThreshold(size))
	}
}
