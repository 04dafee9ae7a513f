package game

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"dicevault/internal/ledger"
)

func TestBetType_Text(t *testing.T) {
	tests := []struct {
		betType BetType
		name    string
	}{
		{SingleNumber, "single_number"},
		{EvenOdd, "even_odd"},
		{LowHigh, "low_high"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, err := tt.betType.MarshalText()
			if err != nil {
				t.Fatalf("MarshalText() error = %v", err)
			}
			if string(text) != tt.name {
				t.Errorf("MarshalText() = %q, want %q", text, tt.name)
			}

			var decoded BetType
			if err := decoded.UnmarshalText([]byte(tt.name)); err != nil {
				t.Fatalf("UnmarshalText() error = %v", err)
			}
			if decoded != tt.betType {
				t.Errorf("UnmarshalText() = %v, want %v", decoded, tt.betType)
			}
		})
	}

	t.Run("unknown name", func(t *testing.T) {
		var decoded BetType
		if err := decoded.UnmarshalText([]byte("red_black")); !errors.Is(err, ErrUnsupportedBetType) {
			t.Errorf("UnmarshalText() error = %v, want ErrUnsupportedBetType", err)
		}
	})

	t.Run("unknown value", func(t *testing.T) {
		if _, err := BetType(9).MarshalText(); !errors.Is(err, ErrUnsupportedBetType) {
			t.Errorf("MarshalText() error = %v, want ErrUnsupportedBetType", err)
		}
		if got := BetType(9).String(); got != "bet_type(9)" {
			t.Errorf("String() = %q", got)
		}
	})
}

func TestBet_JSON(t *testing.T) {
	var bet Bet
	if err := json.Unmarshal([]byte(`{"amount":100000000,"bet_type":"low_high","bet_value":1}`), &bet); err != nil {
		t.Fatalf("Failed to unmarshal Bet: %v", err)
	}
	want := Bet{Amount: MinBetAmount, Type: LowHigh, Value: BetHigh}
	if bet != want {
		t.Errorf("Bet = %+v, want %+v", bet, want)
	}
}

func TestSettlement_JSON(t *testing.T) {
	s := Settlement{
		ID:      "settlement_1",
		Game:    GameTypeDice,
		Player:  ledger.DeriveAddress("test", "player"),
		Bet:     Bet{Amount: MinBetAmount, Type: SingleNumber, Value: 7},
		Outcome: Outcome{Dice: []uint8{3, 4}, Total: 7, Win: true, Multiplier: SingleNumberMultiplier},
	}

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Failed to marshal Settlement: %v", err)
	}

	for _, fragment := range []string{
		`"game":"dice"`,
		`"bet_type":"single_number"`,
		`"player":"` + s.Player.String() + `"`,
		`"multiplier":"10"`,
		`"dice":[3,4]`,
	} {
		if !strings.Contains(string(data), fragment) {
			t.Errorf("JSON %s does not contain %s", data, fragment)
		}
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrBetTooSmall, CodeBetTooSmall},
		{ErrInvalidNumber, CodeInvalidNumber},
		{ErrNotInitialized, CodeNotInitialized},
		{ledger.ErrInsufficientFunds, CodeInsufficientFunds},
		{ledger.ErrBalanceOverflow, CodeArithmeticOverflow},
		{ledger.ErrUnauthorizedTransfer, CodeTransferRejected},
		{ledger.ErrConflict, CodeConflict},
		{errors.New("boom"), CodeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			wrapped := errors.Join(errors.New("context"), tt.err)
			if got := ErrorCode(wrapped); got != tt.want {
				t.Errorf("ErrorCode(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestSettlement_JSONVerifies(t *testing.T) {
	s := settleForVerify(t, GameTypeDice, Bet{Amount: MinBetAmount, Type: LowHigh, Value: BetHigh})

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Failed to marshal Settlement: %v", err)
	}
	var decoded Settlement
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal Settlement: %v", err)
	}

	if decoded.Outcome.Multiplier != LowHighMultiplier {
		t.Errorf("Multiplier = %+v, want %+v", decoded.Outcome.Multiplier, LowHighMultiplier)
	}
	if err := VerifySettlement(&decoded, testHouseEdge); err != nil {
		t.Errorf("VerifySettlement() after JSON error = %v", err)
	}
	if SettlementHash(&decoded) != s.Hash {
		t.Error("hash changed across JSON")
	}
}
