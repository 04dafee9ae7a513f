package game

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// A roll depends only on the settlement time and the player address, both
// of which are public. Anyone holding a Settlement can recompute it.

// VerifySettlement recomputes the dice, outcome and payout of s and reports
// the first field that does not match.
func VerifySettlement(s *Settlement, houseEdge uint8) error {
	variant, err := s.Game.Variant()
	if err != nil {
		return err
	}
	if err := ValidateBet(variant, s.Bet); err != nil {
		return err
	}

	dice := NewEntropy(s.SettledAt, s.Player).Roll(variant)
	if len(dice) != len(s.Outcome.Dice) {
		return fmt.Errorf("%w: rolled %d dice, settlement has %d", ErrSettlementMismatch, len(dice), len(s.Outcome.Dice))
	}
	for i := range dice {
		if dice[i] != s.Outcome.Dice[i] {
			return fmt.Errorf("%w: die %d is %d, settlement has %d", ErrSettlementMismatch, i+1, dice[i], s.Outcome.Dice[i])
		}
	}

	outcome := Decide(variant, s.Bet, dice)
	if outcome.Total != s.Outcome.Total {
		return fmt.Errorf("%w: total is %d, settlement has %d", ErrSettlementMismatch, outcome.Total, s.Outcome.Total)
	}
	if outcome.Win != s.Outcome.Win {
		return fmt.Errorf("%w: win is %v, settlement has %v", ErrSettlementMismatch, outcome.Win, s.Outcome.Win)
	}
	if outcome.Multiplier != s.Outcome.Multiplier {
		return fmt.Errorf("%w: multiplier is %s, settlement has %s", ErrSettlementMismatch, outcome.Multiplier, s.Outcome.Multiplier)
	}

	var payout Payout
	if outcome.Win {
		payout, err = CalculatePayout(s.Bet.Amount, outcome.Multiplier, houseEdge)
		if err != nil {
			return err
		}
	}
	if payout != s.Payout {
		return fmt.Errorf("%w: payout is %d, settlement has %d", ErrSettlementMismatch, payout.Net, s.Payout.Net)
	}
	return nil
}

// SettlementHash commits to the inputs and result of a settlement so a
// receipt can be checked without trusting the rest of the record.
func SettlementHash(s *Settlement) string {
	h := sha256.New()
	h.Write([]byte(s.Game))
	h.Write(s.Player[:])

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(s.SettledAt.Unix()))
	h.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], s.Bet.Amount)
	h.Write(buf[:])
	h.Write([]byte{byte(s.Bet.Type), s.Bet.Value})
	h.Write(s.Outcome.Dice)
	h.Write([]byte{s.Outcome.Total})
	if s.Outcome.Win {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}
	for _, v := range []uint64{s.Outcome.Multiplier.Num, s.Outcome.Multiplier.Den, s.Payout.Net} {
		binary.LittleEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}
