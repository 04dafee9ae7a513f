// Package counter is the single-byte counter program the dice games grew
// out of. Each counter is a record at a caller-chosen address, backed by a
// rent deposit the payer gets back on close.
package counter

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"dicevault/internal/game"
	"dicevault/internal/ledger"
)

const (
	// RecordSize is discriminator plus one count byte.
	RecordSize = game.DiscriminatorSize + 1

	lamportsPerByteYear = 3480
	exemptionYears      = 2
	accountOverhead     = 128
)

// RentDeposit is what a payer locks up to keep one counter alive.
const RentDeposit = (accountOverhead + RecordSize) * lamportsPerByteYear * exemptionYears

var (
	ErrCounterExists   = errors.New("counter already exists")
	ErrCounterNotFound = errors.New("counter not found")
	ErrInvalidCounter  = errors.New("invalid counter record")
	ErrAccountInUse    = errors.New("account already holds funds")
)

var discriminator = game.Discriminator("Counter")

type Counter struct {
	Address ledger.Address `json:"address"`
	Count   uint8          `json:"count"`
}

func (c *Counter) MarshalBinary() ([]byte, error) {
	data := make([]byte, RecordSize)
	copy(data, discriminator[:])
	data[game.DiscriminatorSize] = c.Count
	return data, nil
}

func (c *Counter) UnmarshalBinary(data []byte) error {
	if len(data) != RecordSize {
		return fmt.Errorf("%w: %d bytes", ErrInvalidCounter, len(data))
	}
	if !bytes.Equal(data[:game.DiscriminatorSize], discriminator[:]) {
		return fmt.Errorf("%w: discriminator mismatch", ErrInvalidCounter)
	}
	c.Count = data[game.DiscriminatorSize]
	return nil
}

type Service struct {
	store ledger.Store
}

func NewService(store ledger.Store) *Service {
	return &Service{store: store}
}

// Initialize creates a zeroed counter at addr and moves the rent deposit
// from payer into it.
func (s *Service) Initialize(ctx context.Context, payer, addr ledger.Address) (*Counter, error) {
	if addr.IsZero() || payer.IsZero() {
		return nil, fmt.Errorf("%w: empty payer or counter", ledger.ErrInvalidAddress)
	}
	if payer == addr {
		return nil, fmt.Errorf("%w: payer cannot be the counter", ledger.ErrTransferRejected)
	}
	if game.IsProgramAddress(addr) || game.IsProgramAddress(payer) {
		return nil, fmt.Errorf("%w: game accounts cannot hold or fund counters", ledger.ErrUnauthorizedTransfer)
	}

	counter := &Counter{Address: addr}
	err := s.store.Update(ctx, func(tx ledger.Tx) error {
		if _, err := tx.Get(ctx, addr); err == nil {
			return ErrCounterExists
		} else if !errors.Is(err, ledger.ErrRecordNotFound) {
			return err
		}

		// Close refunds the whole balance, so the counter must start with
		// nothing but its deposit.
		balance, err := tx.Balance(ctx, addr)
		if err != nil {
			return err
		}
		if balance != 0 {
			return fmt.Errorf("%w: %s holds %d lamports", ErrAccountInUse, addr, balance)
		}

		if err := ledger.Transfer(ctx, tx, payer, addr, RentDeposit); err != nil {
			return fmt.Errorf("rent deposit: %w", err)
		}
		return put(ctx, tx, counter)
	})
	if err != nil {
		return nil, err
	}

	log.Infof("[COUNTER] Initialized %s, deposit %d from %s", addr, RentDeposit, payer)
	return counter, nil
}

func (s *Service) Get(ctx context.Context, addr ledger.Address) (*Counter, error) {
	var counter *Counter
	err := s.store.View(ctx, func(tx ledger.Tx) error {
		var err error
		counter, err = get(ctx, tx, addr)
		return err
	})
	return counter, err
}

func (s *Service) Increment(ctx context.Context, addr ledger.Address) (*Counter, error) {
	return s.modify(ctx, addr, func(c *Counter) error {
		if c.Count == 255 {
			return fmt.Errorf("%w: count at 255", game.ErrArithmeticOverflow)
		}
		c.Count++
		return nil
	})
}

func (s *Service) Decrement(ctx context.Context, addr ledger.Address) (*Counter, error) {
	return s.modify(ctx, addr, func(c *Counter) error {
		if c.Count == 0 {
			return fmt.Errorf("%w: count at 0", game.ErrArithmeticOverflow)
		}
		c.Count--
		return nil
	})
}

func (s *Service) Set(ctx context.Context, addr ledger.Address, value uint8) (*Counter, error) {
	return s.modify(ctx, addr, func(c *Counter) error {
		c.Count = value
		return nil
	})
}

// Close deletes the counter and sends every lamport it holds to payer.
func (s *Service) Close(ctx context.Context, payer, addr ledger.Address) (uint64, error) {
	if payer == addr {
		return 0, fmt.Errorf("%w: payer cannot be the counter", ledger.ErrTransferRejected)
	}
	if game.IsProgramAddress(addr) {
		return 0, fmt.Errorf("%w: game accounts are not counters", ledger.ErrUnauthorizedTransfer)
	}

	var refund uint64
	err := s.store.Update(ctx, func(tx ledger.Tx) error {
		if _, err := get(ctx, tx, addr); err != nil {
			return err
		}

		var err error
		refund, err = tx.Balance(ctx, addr)
		if err != nil {
			return err
		}
		if err := ledger.Transfer(ctx, tx, addr, payer, refund); err != nil {
			return fmt.Errorf("refund deposit: %w", err)
		}
		return tx.Delete(ctx, addr)
	})
	if err != nil {
		return 0, err
	}

	log.Infof("[COUNTER] Closed %s, refunded %d to %s", addr, refund, payer)
	return refund, nil
}

func (s *Service) modify(ctx context.Context, addr ledger.Address, fn func(c *Counter) error) (*Counter, error) {
	var counter *Counter
	err := s.store.Update(ctx, func(tx ledger.Tx) error {
		var err error
		counter, err = get(ctx, tx, addr)
		if err != nil {
			return err
		}
		if err := fn(counter); err != nil {
			return err
		}
		return put(ctx, tx, counter)
	})
	if err != nil {
		return nil, err
	}
	log.Debugf("[COUNTER] %s = %d", addr, counter.Count)
	return counter, nil
}

func get(ctx context.Context, tx ledger.Tx, addr ledger.Address) (*Counter, error) {
	data, err := tx.Get(ctx, addr)
	if errors.Is(err, ledger.ErrRecordNotFound) {
		return nil, ErrCounterNotFound
	}
	if err != nil {
		return nil, err
	}

	counter := &Counter{Address: addr}
	if err := counter.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return counter, nil
}

func put(ctx context.Context, tx ledger.Tx, c *Counter) error {
	data, err := c.MarshalBinary()
	if err != nil {
		return err
	}
	return tx.Put(ctx, c.Address, data)
}
