package game

import (
	"time"

	"dicevault/internal/ledger"
)

// Entropy derives dice from the settlement clock and the bettor's address.
//
// The inputs are public and the clock is coarse, so anyone can predict a
// roll before submitting it. The formula is kept bit-for-bit for
// compatibility with existing clients; do not use it where fairness
// matters.
type Entropy struct {
	TimeSeed uint64
	ID       ledger.Address
}

// NewEntropy reads the time seed from now at one second resolution.
func NewEntropy(now time.Time, id ledger.Address) Entropy {
	return Entropy{
		TimeSeed: uint64(now.Unix()),
		ID:       id,
	}
}

// Die returns ((time_seed XOR id[i]) mod 6) + 1.
func (e Entropy) Die(i int) uint8 {
	return uint8((e.TimeSeed^uint64(e.ID[i]))%6) + 1
}

// Roll draws one die for SingleDie and two for TwoDice, the n-th die using
// the n-th byte of the bettor's address.
func (e Entropy) Roll(variant Variant) []uint8 {
	if variant == SingleDie {
		return []uint8{e.Die(0)}
	}
	return []uint8{e.Die(0), e.Die(1)}
}
