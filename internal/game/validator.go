package game

const (
	LamportsPerSOL = 1_000_000_000
	// MinBetAmount is one tenth of the base currency unit.
	MinBetAmount = LamportsPerSOL / 10

	MinSingleNumber = 2
	MaxSingleNumber = 12
	MinDieFace      = 1
	MaxDieFace      = 6
)

// ValidateBet checks a bet against the rules of variant. It has no side
// effects and runs before any funds move.
func ValidateBet(variant Variant, bet Bet) error {
	if bet.Amount < MinBetAmount {
		return ErrBetTooSmall
	}

	if variant == SingleDie {
		if bet.Type != SingleNumber {
			return ErrUnsupportedBetType
		}
		if bet.Value < MinDieFace || bet.Value > MaxDieFace {
			return ErrInvalidNumber
		}
		return nil
	}

	switch bet.Type {
	case SingleNumber:
		if bet.Value < MinSingleNumber || bet.Value > MaxSingleNumber {
			return ErrInvalidBetValue
		}
	case EvenOdd, LowHigh:
		if bet.Value > 1 {
			return ErrInvalidBetValue
		}
	default:
		return ErrUnsupportedBetType
	}
	return nil
}
