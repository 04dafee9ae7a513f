package game

import (
	"context"
	"errors"
	"fmt"

	"dicevault/internal/ledger"
)

const (
	GameStateLabel = "game_state"
	VaultLabel     = "game_vault"
)

// vaultAuthority is the derived signing capability for one vault. It can
// only release vault funds to a destination and is never handed out of
// this package.
type vaultAuthority struct {
	vault ledger.Address
}

func (a vaultAuthority) release(ctx context.Context, tx ledger.Tx, to ledger.Address, amount uint64) error {
	if to == a.vault {
		return fmt.Errorf("%w: vault cannot pay itself", ledger.ErrTransferRejected)
	}
	return ledger.Transfer(ctx, tx, a.vault, to, amount)
}

// ledgerUpdater applies the bookkeeping of one settlement inside a store
// transaction.
type ledgerUpdater struct {
	state     ledger.Address
	vault     ledger.Address
	authority vaultAuthority
}

func newLedgerUpdater(program string) ledgerUpdater {
	vault := ledger.DeriveAddress(program, VaultLabel)
	return ledgerUpdater{
		state:     ledger.DeriveAddress(program, GameStateLabel),
		vault:     vault,
		authority: vaultAuthority{vault: vault},
	}
}

// owns reports whether addr is one of the program's derived addresses.
func (u ledgerUpdater) owns(addr ledger.Address) bool {
	return addr == u.state || addr == u.vault
}

// IsProgramAddress reports whether addr is the state or vault address of
// any game type. Only the settlement engine may move funds out of these.
func IsProgramAddress(addr ledger.Address) bool {
	for _, gameType := range GameTypes() {
		if newLedgerUpdater(string(gameType)).owns(addr) {
			return true
		}
	}
	return false
}

func (u ledgerUpdater) loadState(ctx context.Context, tx ledger.Tx) (*GameState, error) {
	data, err := tx.Get(ctx, u.state)
	if errors.Is(err, ledger.ErrRecordNotFound) {
		return nil, ErrNotInitialized
	}
	if err != nil {
		return nil, fmt.Errorf("load game state: %w", err)
	}

	var state GameState
	if err := state.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return &state, nil
}

func (u ledgerUpdater) storeState(ctx context.Context, tx ledger.Tx, state *GameState) error {
	data, err := state.MarshalBinary()
	if err != nil {
		return err
	}
	if err := tx.Put(ctx, u.state, data); err != nil {
		return fmt.Errorf("store game state: %w", err)
	}
	return nil
}

// collect moves the wager from the player into the vault.
func (u ledgerUpdater) collect(ctx context.Context, tx ledger.Tx, player ledger.Address, amount uint64) error {
	if u.owns(player) {
		return fmt.Errorf("%w: program account cannot place bets", ledger.ErrUnauthorizedTransfer)
	}
	if err := ledger.Transfer(ctx, tx, player, u.vault, amount); err != nil {
		return fmt.Errorf("collect wager: %w", err)
	}
	return nil
}

// commit counts the bet and, on a win, pays the player out of the vault.
// Counters are re-read here rather than carried over from before the
// wager was collected.
func (u ledgerUpdater) commit(ctx context.Context, tx ledger.Tx, player ledger.Address, win bool, payout uint64) (*GameState, error) {
	state, err := u.loadState(ctx, tx)
	if err != nil {
		return nil, err
	}
	if err := state.recordBet(win); err != nil {
		return nil, err
	}
	if win {
		if err := u.authority.release(ctx, tx, player, payout); err != nil {
			return nil, fmt.Errorf("pay out: %w", err)
		}
	}
	if err := u.storeState(ctx, tx, state); err != nil {
		return nil, err
	}
	return state, nil
}
