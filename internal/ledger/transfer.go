package ledger

import (
	"context"
	"fmt"
	"math/bits"
)

// Transfer moves amount lamports from one account to another. Both sides
// are checked: the source may not go negative and the destination may not
// wrap. Callers must hold the authority for from; program owned addresses
// are debited through their owning package, never through here.
func Transfer(ctx context.Context, tx Tx, from, to Address, amount uint64) error {
	if from == to {
		return fmt.Errorf("%w: source and destination are the same account", ErrTransferRejected)
	}

	fromBalance, err := tx.Balance(ctx, from)
	if err != nil {
		return fmt.Errorf("read balance %s: %w", from, err)
	}
	toBalance, err := tx.Balance(ctx, to)
	if err != nil {
		return fmt.Errorf("read balance %s: %w", to, err)
	}

	debited, borrow := bits.Sub64(fromBalance, amount, 0)
	if borrow != 0 {
		return fmt.Errorf("%w: account %s holds %d, needs %d", ErrInsufficientFunds, from, fromBalance, amount)
	}
	credited, carry := bits.Add64(toBalance, amount, 0)
	if carry != 0 {
		return fmt.Errorf("%w: account %s", ErrBalanceOverflow, to)
	}

	if err := tx.SetBalance(ctx, from, debited); err != nil {
		return fmt.Errorf("debit %s: %w", from, err)
	}
	if err := tx.SetBalance(ctx, to, credited); err != nil {
		return fmt.Errorf("credit %s: %w", to, err)
	}
	return nil
}

// Airdrop credits amount lamports to an account out of thin air. It backs
// the admin funding endpoint and test fixtures.
func Airdrop(ctx context.Context, store Store, to Address, amount uint64) (uint64, error) {
	var balance uint64
	err := store.Update(ctx, func(tx Tx) error {
		current, err := tx.Balance(ctx, to)
		if err != nil {
			return err
		}
		next, carry := bits.Add64(current, amount, 0)
		if carry != 0 {
			return fmt.Errorf("%w: account %s", ErrBalanceOverflow, to)
		}
		balance = next
		return tx.SetBalance(ctx, to, next)
	})
	return balance, err
}

// BalanceOf reads a single balance outside any settlement.
func BalanceOf(ctx context.Context, store Store, addr Address) (uint64, error) {
	var balance uint64
	err := store.View(ctx, func(tx Tx) error {
		var err error
		balance, err = tx.Balance(ctx, addr)
		return err
	})
	return balance, err
}
