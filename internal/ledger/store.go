// Package ledger is the transactional account store the settlement engine
// runs against: binary records and lamport balances keyed by fixed addresses.
package ledger

import (
	"context"
	"errors"
)

var (
	ErrRecordNotFound       = errors.New("record not found")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrBalanceOverflow      = errors.New("balance overflow")
	ErrTransferRejected     = errors.New("transfer rejected")
	ErrUnauthorizedTransfer = errors.New("unauthorized transfer")
	ErrConflict             = errors.New("concurrent update conflict")
	ErrReadOnly             = errors.New("write in read-only transaction")
)

// Tx is a view of the store inside one transaction. Writes become visible
// to other transactions only after the enclosing Update returns nil.
type Tx interface {
	Get(ctx context.Context, addr Address) ([]byte, error)
	Put(ctx context.Context, addr Address, data []byte) error
	Delete(ctx context.Context, addr Address) error

	// Balance returns zero for accounts that were never funded.
	Balance(ctx context.Context, addr Address) (uint64, error)
	SetBalance(ctx context.Context, addr Address, amount uint64) error
}

// Store runs functions atomically against the ledger.
type Store interface {
	// Update commits every write made by fn when it returns nil and
	// discards all of them otherwise.
	Update(ctx context.Context, fn func(tx Tx) error) error
	View(ctx context.Context, fn func(tx Tx) error) error
}
