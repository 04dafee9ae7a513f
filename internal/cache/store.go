package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"dicevault/internal/ledger"
)

const DEFAULT_KEY_PREFIX = "dicevault"

// Store keeps the ledger in Redis. Update WATCHes every key before it is
// first read, buffers writes and applies them in one MULTI/EXEC. A watched
// key changed by someone else fails the update with ledger.ErrConflict.
type Store struct {
	client *redis.Client
	prefix string
}

func NewStore(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = DEFAULT_KEY_PREFIX
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) recordKey(addr ledger.Address) string {
	return s.prefix + ":record:" + addr.String()
}

func (s *Store) balanceKey(addr ledger.Address) string {
	return s.prefix + ":balance:" + addr.String()
}

func (s *Store) Update(ctx context.Context, fn func(tx ledger.Tx) error) error {
	err := s.client.Watch(ctx, func(rtx *redis.Tx) error {
		tx := newRedisTx(s, rtx, false)
		if err := fn(tx); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(tx.writes) == 0 {
			return nil
		}

		_, err := rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for key, w := range tx.writes {
				if w.delete {
					pipe.Del(ctx, key)
					continue
				}
				pipe.Set(ctx, key, w.value, 0)
			}
			return nil
		})
		return err
	})
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("%w: watched key changed", ledger.ErrConflict)
	}
	return err
}

// View reads straight from the client. Reads of different keys are not
// taken from a single snapshot.
func (s *Store) View(ctx context.Context, fn func(tx ledger.Tx) error) error {
	return fn(newRedisTx(s, s.client, true))
}

type pendingWrite struct {
	value  []byte
	delete bool
}

// reader is the part of *redis.Client and *redis.Tx a transaction reads
// through.
type reader interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

type redisTx struct {
	store    *Store
	cmd      reader
	watcher  *redis.Tx
	readOnly bool
	watched  map[string]bool
	writes   map[string]pendingWrite
}

func newRedisTx(store *Store, cmd reader, readOnly bool) *redisTx {
	tx := &redisTx{
		store:    store,
		cmd:      cmd,
		readOnly: readOnly,
		watched:  make(map[string]bool),
		writes:   make(map[string]pendingWrite),
	}
	if rtx, ok := cmd.(*redis.Tx); ok {
		tx.watcher = rtx
	}
	return tx
}

func (t *redisTx) watch(ctx context.Context, key string) error {
	if t.watcher == nil || t.watched[key] {
		return nil
	}
	if err := t.watcher.Watch(ctx, key).Err(); err != nil {
		return fmt.Errorf("watch %s: %w", key, err)
	}
	t.watched[key] = true
	return nil
}

func (t *redisTx) read(ctx context.Context, key string) ([]byte, bool, error) {
	if w, ok := t.writes[key]; ok {
		return w.value, !w.delete, nil
	}
	if err := t.watch(ctx, key); err != nil {
		return nil, false, err
	}
	data, err := t.cmd.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (t *redisTx) write(ctx context.Context, key string, w pendingWrite) error {
	if t.readOnly {
		return ledger.ErrReadOnly
	}
	if err := t.watch(ctx, key); err != nil {
		return err
	}
	t.writes[key] = w
	return nil
}

func (t *redisTx) Get(ctx context.Context, addr ledger.Address) ([]byte, error) {
	data, ok, err := t.read(ctx, t.store.recordKey(addr))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ledger.ErrRecordNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (t *redisTx) Put(ctx context.Context, addr ledger.Address, data []byte) error {
	stored := make([]byte, len(data))
	copy(stored, data)
	return t.write(ctx, t.store.recordKey(addr), pendingWrite{value: stored})
}

func (t *redisTx) Delete(ctx context.Context, addr ledger.Address) error {
	return t.write(ctx, t.store.recordKey(addr), pendingWrite{delete: true})
}

func (t *redisTx) Balance(ctx context.Context, addr ledger.Address) (uint64, error) {
	data, ok, err := t.read(ctx, t.store.balanceKey(addr))
	if err != nil || !ok {
		return 0, err
	}
	return parseBalance(data)
}

func (t *redisTx) SetBalance(ctx context.Context, addr ledger.Address, amount uint64) error {
	return t.write(ctx, t.store.balanceKey(addr), pendingWrite{value: formatBalance(amount)})
}
