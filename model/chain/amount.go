package chain

import (
	"fmt"
	"math/bits"
)

// MicroTari is the smallest unit of account.
type MicroTari uint64

// CheckedAdd adds two amounts and reports an overflow.
func (m MicroTari) CheckedAdd(other MicroTari) (MicroTari, bool) {
	sum, carry := bits.Add64(uint64(m), uint64(other), 0)
	return MicroTari(sum), carry == 0
}

func (m MicroTari) String() string {
	return fmt.Sprintf("%d µT", uint64(m))
}
