package game

import (
	"fmt"
	"math/big"
	"strconv"
)

// Multiplier is a payout ratio kept as a fraction so payouts stay in
// integer arithmetic.
type Multiplier struct {
	Num uint64
	Den uint64
}

var (
	SingleNumberMultiplier = Multiplier{Num: 10, Den: 1}
	EvenOddMultiplier      = Multiplier{Num: 2, Den: 1}
	LowHighMultiplier      = Multiplier{Num: 3, Den: 2}
	ClassicMultiplier      = Multiplier{Num: 2, Den: 1}
)

func (m Multiplier) String() string {
	if m.Den == 0 {
		return "NaN"
	}
	return strconv.FormatFloat(float64(m.Num)/float64(m.Den), 'f', -1, 64)
}

func (m Multiplier) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText reads a decimal ratio such as "1.5" back into a fraction.
func (m *Multiplier) UnmarshalText(text []byte) error {
	r, ok := new(big.Rat).SetString(string(text))
	if !ok || r.Sign() < 0 || !r.Num().IsUint64() || !r.Denom().IsUint64() {
		return fmt.Errorf("invalid multiplier %q", text)
	}
	m.Num = r.Num().Uint64()
	m.Den = r.Denom().Uint64()
	return nil
}

// MultiplierFor returns the payout ratio of a bet type under variant.
func MultiplierFor(variant Variant, betType BetType) Multiplier {
	if variant == SingleDie {
		return ClassicMultiplier
	}
	switch betType {
	case EvenOdd:
		return EvenOddMultiplier
	case LowHigh:
		return LowHighMultiplier
	default:
		return SingleNumberMultiplier
	}
}

// Decide settles a validated bet against rolled dice. It is a pure
// function of its inputs.
func Decide(variant Variant, bet Bet, dice []uint8) Outcome {
	var total uint8
	for _, d := range dice {
		total += d
	}

	var win bool
	switch bet.Type {
	case SingleNumber:
		win = total == bet.Value
	case EvenOdd:
		// Clients label 0 "odd" and 1 "even", yet 0 has always been
		// paid on an even total. Settled history depends on it.
		win = (total%2 == 0 && bet.Value == 0) || (total%2 == 1 && bet.Value == 1)
	case LowHigh:
		win = (total >= 7 && bet.Value == BetHigh) || (total < 7 && bet.Value == BetLow)
	}

	return Outcome{
		Dice:       dice,
		Total:      total,
		Win:        win,
		Multiplier: MultiplierFor(variant, bet.Type),
	}
}
