package database

import (
	"context"
	"testing"
	"time"

	"dicevault/internal/game"
	"dicevault/internal/ledger"
	"dicevault/internal/ledger/ledgertest"
)

func TestStore(t *testing.T) {
	for _, dialect := range []Dialect{DialectSQLite, DialectPostgres} {
		t.Run(string(dialect), func(t *testing.T) {
			ledgertest.Run(t, NewStore(openTestDB(t, dialect)))
		})
	}
}

func TestStore_Rebind(t *testing.T) {
	tests := []struct {
		dialect Dialect
		query   string
		want    string
	}{
		{DialectPostgres, "SELECT data FROM records WHERE address = ?", "SELECT data FROM records WHERE address = $1"},
		{DialectPostgres, "INSERT INTO balances (address, lamports) VALUES (?, ?)", "INSERT INTO balances (address, lamports) VALUES ($1, $2)"},
		{DialectSQLite, "VALUES (?, ?)", "VALUES (?, ?)"},
	}

	for _, tt := range tests {
		t.Run(string(tt.dialect), func(t *testing.T) {
			s := &Store{dialect: tt.dialect}
			if got := s.rebind(tt.query); got != tt.want {
				t.Errorf("rebind() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStore_Settlement(t *testing.T) {
	ctx := context.Background()
	store := NewStore(openTestDB(t, DialectSQLite))

	engine, err := game.NewEngine(game.GameTypeDice, store, game.WithClock(func() time.Time { return time.Unix(0, 0) }))
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	if _, err := engine.Initialize(ctx, ledger.DeriveAddress("test", "authority"), 5); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	house := ledger.DeriveAddress("test", "house")
	ledger.Airdrop(ctx, store, house, 100*game.LamportsPerSOL)
	if _, err := engine.FundVault(ctx, house, 100*game.LamportsPerSOL); err != nil {
		t.Fatalf("FundVault() error = %v", err)
	}

	// Dice come out 3 and 4 at the epoch.
	player := ledger.DeriveAddress("test", "player")
	player[0], player[1] = 2, 3
	ledger.Airdrop(ctx, store, player, 10*game.LamportsPerSOL)

	s, err := engine.RollDice(ctx, player, game.Bet{Amount: game.MinBetAmount, Type: game.SingleNumber, Value: 7})
	if err != nil {
		t.Fatalf("RollDice() error = %v", err)
	}
	if !s.Outcome.Win || s.Payout.Net != 950_000_000 {
		t.Fatalf("settlement = %+v, want a 950000000 win", s)
	}

	if balance, _ := ledger.BalanceOf(ctx, store, player); balance != 10_850_000_000 {
		t.Errorf("player balance = %d, want 10850000000", balance)
	}
	if balance, _ := engine.VaultBalance(ctx); balance != 99_150_000_000 {
		t.Errorf("vault balance = %d, want 99150000000", balance)
	}
	if state, _ := engine.State(ctx); state.TotalBets != 1 || state.TotalWins != 1 {
		t.Errorf("counters = %d/%d, want 1/1", state.TotalBets, state.TotalWins)
	}
}
