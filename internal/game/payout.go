package game

import (
	"math/bits"
)

// Payout breaks down what a winning bet receives. All fields are zero on a
// loss.
type Payout struct {
	Gross     uint64 `json:"gross"`
	HouseEdge uint64 `json:"house_edge"`
	Net       uint64 `json:"net"`
}

// CalculatePayout computes the payout of a winning bet.
//
// The order of operations is fixed: gross is amount*num/den, the house
// takes gross*edge/100 truncated toward zero, the player gets the rest.
// The house edge product is formed in 128 bits before it is divided back
// into 64. Any overflow fails the call.
func CalculatePayout(amount uint64, m Multiplier, houseEdge uint8) (Payout, error) {
	if houseEdge > 100 {
		return Payout{}, ErrInvalidHouseEdge
	}
	if m.Den == 0 {
		return Payout{}, ErrArithmeticOverflow
	}

	hi, lo := bits.Mul64(amount, m.Num)
	if hi != 0 {
		return Payout{}, ErrArithmeticOverflow
	}
	gross := lo / m.Den

	// hi < 100 holds because houseEdge <= 100, so Div64 cannot panic.
	hi, lo = bits.Mul64(gross, uint64(houseEdge))
	edge, _ := bits.Div64(hi, lo, 100)

	net, borrow := bits.Sub64(gross, edge, 0)
	if borrow != 0 {
		return Payout{}, ErrArithmeticOverflow
	}

	return Payout{
		Gross:     gross,
		HouseEdge: edge,
		Net:       net,
	}, nil
}
