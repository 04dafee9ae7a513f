// Package ledgertest holds the behavioural checks every ledger.Store
// backend must pass.
package ledgertest

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"dicevault/internal/ledger"
)

var errAbort = errors.New("abort")

// Run exercises store. The store must start empty.
func Run(t *testing.T, store ledger.Store) {
	t.Helper()
	ctx := context.Background()

	alice := ledger.DeriveAddress("ledgertest", "alice")
	bob := ledger.DeriveAddress("ledgertest", "bob")
	record := ledger.DeriveAddress("ledgertest", "record")

	t.Run("view rejects writes", func(t *testing.T) {
		err := store.View(ctx, func(tx ledger.Tx) error {
			return tx.SetBalance(ctx, alice, 1)
		})
		if !errors.Is(err, ledger.ErrReadOnly) {
			t.Fatalf("SetBalance() in View error = %v, want ErrReadOnly", err)
		}
	})

	t.Run("missing record", func(t *testing.T) {
		err := store.View(ctx, func(tx ledger.Tx) error {
			_, err := tx.Get(ctx, record)
			return err
		})
		if !errors.Is(err, ledger.ErrRecordNotFound) {
			t.Fatalf("Get() error = %v, want ErrRecordNotFound", err)
		}
	})

	t.Run("unfunded balance is zero", func(t *testing.T) {
		balance, err := ledger.BalanceOf(ctx, store, alice)
		if err != nil {
			t.Fatalf("BalanceOf() error = %v", err)
		}
		if balance != 0 {
			t.Errorf("BalanceOf() = %d, want 0", balance)
		}
	})

	t.Run("committed writes are visible", func(t *testing.T) {
		err := store.Update(ctx, func(tx ledger.Tx) error {
			if err := tx.Put(ctx, record, []byte{1, 2, 3}); err != nil {
				return err
			}
			return tx.SetBalance(ctx, alice, 500)
		})
		if err != nil {
			t.Fatalf("Update() error = %v", err)
		}

		var got []byte
		err = store.View(ctx, func(tx ledger.Tx) error {
			var err error
			got, err = tx.Get(ctx, record)
			return err
		})
		if err != nil {
			t.Fatalf("View() error = %v", err)
		}
		if !bytes.Equal(got, []byte{1, 2, 3}) {
			t.Errorf("Get() = %v, want [1 2 3]", got)
		}
		if balance, _ := ledger.BalanceOf(ctx, store, alice); balance != 500 {
			t.Errorf("balance = %d, want 500", balance)
		}
	})

	t.Run("reads observe own writes", func(t *testing.T) {
		err := store.Update(ctx, func(tx ledger.Tx) error {
			if err := tx.SetBalance(ctx, bob, 7); err != nil {
				return err
			}
			balance, err := tx.Balance(ctx, bob)
			if err != nil {
				return err
			}
			if balance != 7 {
				t.Errorf("Balance() inside tx = %d, want 7", balance)
			}
			return errAbort
		})
		if !errors.Is(err, errAbort) {
			t.Fatalf("Update() error = %v, want errAbort", err)
		}
	})

	t.Run("failed update discards every write", func(t *testing.T) {
		err := store.Update(ctx, func(tx ledger.Tx) error {
			if err := ledger.Transfer(ctx, tx, alice, bob, 200); err != nil {
				return err
			}
			if err := tx.Put(ctx, record, []byte{9}); err != nil {
				return err
			}
			return errAbort
		})
		if !errors.Is(err, errAbort) {
			t.Fatalf("Update() error = %v, want errAbort", err)
		}

		if balance, _ := ledger.BalanceOf(ctx, store, alice); balance != 500 {
			t.Errorf("alice balance = %d, want 500", balance)
		}
		if balance, _ := ledger.BalanceOf(ctx, store, bob); balance != 0 {
			t.Errorf("bob balance = %d, want 0", balance)
		}
		var got []byte
		_ = store.View(ctx, func(tx ledger.Tx) error {
			got, _ = tx.Get(ctx, record)
			return nil
		})
		if !bytes.Equal(got, []byte{1, 2, 3}) {
			t.Errorf("record = %v, want [1 2 3]", got)
		}
	})

	t.Run("transfer", func(t *testing.T) {
		err := store.Update(ctx, func(tx ledger.Tx) error {
			return ledger.Transfer(ctx, tx, alice, bob, 200)
		})
		if err != nil {
			t.Fatalf("Transfer() error = %v", err)
		}
		if balance, _ := ledger.BalanceOf(ctx, store, alice); balance != 300 {
			t.Errorf("alice balance = %d, want 300", balance)
		}
		if balance, _ := ledger.BalanceOf(ctx, store, bob); balance != 200 {
			t.Errorf("bob balance = %d, want 200", balance)
		}
	})

	t.Run("overdraft is rejected", func(t *testing.T) {
		err := store.Update(ctx, func(tx ledger.Tx) error {
			return ledger.Transfer(ctx, tx, bob, alice, 201)
		})
		if !errors.Is(err, ledger.ErrInsufficientFunds) {
			t.Fatalf("Transfer() error = %v, want ErrInsufficientFunds", err)
		}
		if balance, _ := ledger.BalanceOf(ctx, store, bob); balance != 200 {
			t.Errorf("bob balance = %d, want 200", balance)
		}
	})

	t.Run("delete", func(t *testing.T) {
		err := store.Update(ctx, func(tx ledger.Tx) error {
			return tx.Delete(ctx, record)
		})
		if err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		err = store.View(ctx, func(tx ledger.Tx) error {
			_, err := tx.Get(ctx, record)
			return err
		})
		if !errors.Is(err, ledger.ErrRecordNotFound) {
			t.Errorf("Get() after delete error = %v, want ErrRecordNotFound", err)
		}
	})

	t.Run("large balances round trip", func(t *testing.T) {
		const big = uint64(1) << 62
		if _, err := ledger.Airdrop(ctx, store, bob, big); err != nil {
			t.Fatalf("Airdrop() error = %v", err)
		}
		if balance, _ := ledger.BalanceOf(ctx, store, bob); balance != big+200 {
			t.Errorf("bob balance = %d, want %d", balance, big+200)
		}
	})
}
