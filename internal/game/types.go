package game

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"dicevault/internal/ledger"
)

// BetType selects which rule a bet is settled under.
type BetType uint8

const (
	SingleNumber BetType = iota
	EvenOdd
	LowHigh
)

var betTypeNames = map[BetType]string{
	SingleNumber: "single_number",
	EvenOdd:      "even_odd",
	LowHigh:      "low_high",
}

func (b BetType) String() string {
	if name, ok := betTypeNames[b]; ok {
		return name
	}
	return fmt.Sprintf("bet_type(%d)", uint8(b))
}

func (b BetType) MarshalText() ([]byte, error) {
	name, ok := betTypeNames[b]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedBetType, uint8(b))
	}
	return []byte(name), nil
}

func (b *BetType) UnmarshalText(text []byte) error {
	for bt, name := range betTypeNames {
		if name == string(text) {
			*b = bt
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedBetType, text)
}

// LowHigh bet values. EvenOdd takes 0 or 1 as well, see Decide.
const (
	BetLow  uint8 = 0
	BetHigh uint8 = 1
)

// Bet exists only for the duration of one settlement.
type Bet struct {
	Amount uint64  `json:"amount"`
	Type   BetType `json:"bet_type"`
	Value  uint8   `json:"bet_value"`
}

// Dice encodes as a JSON array of numbers rather than base64.
type Dice []uint8

func (d Dice) MarshalJSON() ([]byte, error) {
	values := make([]int, len(d))
	for i, v := range d {
		values[i] = int(v)
	}
	return json.Marshal(values)
}

func (d *Dice) UnmarshalJSON(data []byte) error {
	var values []int
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	dice := make(Dice, len(values))
	for i, v := range values {
		if v < 0 || v > 255 {
			return fmt.Errorf("die value %d out of range", v)
		}
		dice[i] = uint8(v)
	}
	*d = dice
	return nil
}

// Outcome is the result of one roll. Dice holds one value for the classic
// variant and two for the dice variant.
type Outcome struct {
	Dice       Dice       `json:"dice"`
	Total      uint8      `json:"total"`
	Win        bool       `json:"win"`
	Multiplier Multiplier `json:"multiplier"`
}

// Settlement is everything one successful roll_dice call did.
type Settlement struct {
	ID        string         `json:"settlement_id"`
	Game      GameType       `json:"game"`
	Player    ledger.Address `json:"player"`
	Bet       Bet            `json:"bet"`
	Outcome   Outcome        `json:"outcome"`
	Payout    Payout         `json:"payout"`
	TotalBets uint64         `json:"total_bets"`
	TotalWins uint64         `json:"total_wins"`
	SettledAt time.Time      `json:"settled_at"`
	Hash      string         `json:"hash"`
}

// RollRequest is a queued roll_dice call.
type RollRequest struct {
	Game         GameType          `json:"game"`
	Player       ledger.Address    `json:"player"`
	Amount       uint64            `json:"amount"`
	BetType      BetType           `json:"bet_type"`
	BetValue     uint8             `json:"bet_value"`
	ResponseChan chan RollResponse `json:"-"`

	ctx   context.Context
	state *atomic.Int32
}

type RollResponse struct {
	Success    bool        `json:"success"`
	Message    string      `json:"message"`
	Code       string      `json:"code,omitempty"`
	Settlement *Settlement `json:"settlement,omitempty"`
	err        error
}

// Err returns the settlement error behind an unsuccessful response.
func (r RollResponse) Err() error {
	return r.err
}

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}
