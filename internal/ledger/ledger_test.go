package ledger

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestDeriveAddress(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		if DeriveAddress("dice", "game_vault") != DeriveAddress("dice", "game_vault") {
			t.Error("same program and label should derive the same address")
		}
	})

	t.Run("label and program both matter", func(t *testing.T) {
		vault := DeriveAddress("dice", "game_vault")
		if vault == DeriveAddress("dice", "game_state") {
			t.Error("different labels derived the same address")
		}
		if vault == DeriveAddress("classic", "game_vault") {
			t.Error("different programs derived the same address")
		}
	})
}

func TestParseAddress(t *testing.T) {
	addr := DeriveAddress("dice", "player")

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "round trip", input: addr.String()},
		{name: "not hex", input: "zz", wantErr: true},
		{name: "too short", input: "abcd", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAddress(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidAddress) {
					t.Fatalf("ParseAddress() error = %v, want ErrInvalidAddress", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAddress() error = %v", err)
			}
			if got != addr {
				t.Errorf("ParseAddress() = %s, want %s", got, addr)
			}
		})
	}
}

func TestTransfer(t *testing.T) {
	ctx := context.Background()
	from := DeriveAddress("test", "from")
	to := DeriveAddress("test", "to")

	t.Run("same account is rejected", func(t *testing.T) {
		store := NewMemoryStore()
		err := store.Update(ctx, func(tx Tx) error {
			return Transfer(ctx, tx, from, from, 1)
		})
		if !errors.Is(err, ErrTransferRejected) {
			t.Errorf("Transfer() error = %v, want ErrTransferRejected", err)
		}
	})

	t.Run("destination overflow is rejected", func(t *testing.T) {
		store := NewMemoryStore()
		if _, err := Airdrop(ctx, store, from, 10); err != nil {
			t.Fatal(err)
		}
		if _, err := Airdrop(ctx, store, to, math.MaxUint64); err != nil {
			t.Fatal(err)
		}
		err := store.Update(ctx, func(tx Tx) error {
			return Transfer(ctx, tx, from, to, 10)
		})
		if !errors.Is(err, ErrBalanceOverflow) {
			t.Errorf("Transfer() error = %v, want ErrBalanceOverflow", err)
		}
		if balance, _ := BalanceOf(ctx, store, from); balance != 10 {
			t.Errorf("from balance = %d, want 10", balance)
		}
	})

	t.Run("airdrop overflow is rejected", func(t *testing.T) {
		store := NewMemoryStore()
		if _, err := Airdrop(ctx, store, to, math.MaxUint64); err != nil {
			t.Fatal(err)
		}
		if _, err := Airdrop(ctx, store, to, 1); !errors.Is(err, ErrBalanceOverflow) {
			t.Errorf("Airdrop() error = %v, want ErrBalanceOverflow", err)
		}
	})
}

func TestMemoryStore_ViewIsReadOnly(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	err := store.View(ctx, func(tx Tx) error {
		return tx.SetBalance(ctx, DeriveAddress("test", "x"), 1)
	})
	if !errors.Is(err, ErrReadOnly) {
		t.Errorf("SetBalance() inside View error = %v, want ErrReadOnly", err)
	}
}
