package ledger

import (
	"context"
	"sync"
)

// MemoryStore keeps the ledger in process memory. Update holds an exclusive
// lock for the duration of fn and applies the buffered writes only when fn
// succeeds.
type MemoryStore struct {
	mu       sync.RWMutex
	records  map[Address][]byte
	balances map[Address]uint64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:  make(map[Address][]byte),
		balances: make(map[Address]uint64),
	}
}

func (s *MemoryStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := newMemoryTx(s, false)
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for addr, data := range tx.records {
		if data == nil {
			delete(s.records, addr)
			continue
		}
		s.records[addr] = data
	}
	for addr, amount := range tx.balances {
		s.balances[addr] = amount
	}
	return nil
}

func (s *MemoryStore) View(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(newMemoryTx(s, true))
}

type memoryTx struct {
	store    *MemoryStore
	readOnly bool
	// nil data marks a pending delete
	records  map[Address][]byte
	balances map[Address]uint64
}

func newMemoryTx(store *MemoryStore, readOnly bool) *memoryTx {
	return &memoryTx{
		store:    store,
		readOnly: readOnly,
		records:  make(map[Address][]byte),
		balances: make(map[Address]uint64),
	}
}

func (t *memoryTx) Get(_ context.Context, addr Address) ([]byte, error) {
	data, ok := t.records[addr]
	if !ok {
		data, ok = t.store.records[addr]
	}
	if !ok || data == nil {
		return nil, ErrRecordNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (t *memoryTx) Put(_ context.Context, addr Address, data []byte) error {
	if t.readOnly {
		return ErrReadOnly
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	t.records[addr] = stored
	return nil
}

func (t *memoryTx) Delete(_ context.Context, addr Address) error {
	if t.readOnly {
		return ErrReadOnly
	}
	t.records[addr] = nil
	return nil
}

func (t *memoryTx) Balance(_ context.Context, addr Address) (uint64, error) {
	if amount, ok := t.balances[addr]; ok {
		return amount, nil
	}
	return t.store.balances[addr], nil
}

func (t *memoryTx) SetBalance(_ context.Context, addr Address, amount uint64) error {
	if t.readOnly {
		return ErrReadOnly
	}
	t.balances[addr] = amount
	return nil
}
