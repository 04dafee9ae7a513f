package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"dicevault/internal/ledger"
)

// Store keeps the ledger in SQL tables. Postgres transactions run
// serializable and lock the rows they read; serialization failures surface
// as ledger.ErrConflict. SQLite relies on its single connection.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

func NewStore(svc Service) *Store {
	return &Store{db: svc.DB(), dialect: svc.Dialect()}
}

func (s *Store) Update(ctx context.Context, fn func(tx ledger.Tx) error) error {
	return s.run(ctx, false, fn)
}

func (s *Store) View(ctx context.Context, fn func(tx ledger.Tx) error) error {
	return s.run(ctx, true, fn)
}

func (s *Store) run(ctx context.Context, readOnly bool, fn func(tx ledger.Tx) error) error {
	var opts *sql.TxOptions
	if s.dialect == DialectPostgres {
		opts = &sql.TxOptions{Isolation: sql.LevelSerializable, ReadOnly: readOnly}
	}

	sqlTx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return s.mapError(fmt.Errorf("begin: %w", err))
	}
	defer sqlTx.Rollback()

	tx := &ledgerTx{store: s, tx: sqlTx, readOnly: readOnly}
	if err := fn(tx); err != nil {
		return s.mapError(err)
	}
	if readOnly {
		return nil
	}
	if err := sqlTx.Commit(); err != nil {
		return s.mapError(fmt.Errorf("commit: %w", err))
	}
	return nil
}

func (s *Store) mapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return fmt.Errorf("%w: %v", ledger.ErrConflict, err)
		}
	}
	return err
}

// rebind rewrites ? placeholders to $1, $2, ... for Postgres.
func (s *Store) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) forUpdate(readOnly bool) string {
	if s.dialect == DialectPostgres && !readOnly {
		return " FOR UPDATE"
	}
	return ""
}

type ledgerTx struct {
	store    *Store
	tx       *sql.Tx
	readOnly bool
}

func (t *ledgerTx) exec(ctx context.Context, query string, args ...any) error {
	if t.readOnly {
		return ledger.ErrReadOnly
	}
	_, err := t.tx.ExecContext(ctx, t.store.rebind(query), args...)
	return err
}

func (t *ledgerTx) Get(ctx context.Context, addr ledger.Address) ([]byte, error) {
	query := "SELECT data FROM records WHERE address = ?" + t.store.forUpdate(t.readOnly)

	var data []byte
	err := t.tx.QueryRowContext(ctx, t.store.rebind(query), addr.String()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get record %s: %w", addr, err)
	}
	return data, nil
}

func (t *ledgerTx) Put(ctx context.Context, addr ledger.Address, data []byte) error {
	err := t.exec(ctx, `INSERT INTO records (address, data) VALUES (?, ?)
		ON CONFLICT (address) DO UPDATE SET data = excluded.data, updated_at = CURRENT_TIMESTAMP`,
		addr.String(), data)
	if err != nil {
		return fmt.Errorf("put record %s: %w", addr, err)
	}
	return nil
}

func (t *ledgerTx) Delete(ctx context.Context, addr ledger.Address) error {
	if err := t.exec(ctx, "DELETE FROM records WHERE address = ?", addr.String()); err != nil {
		return fmt.Errorf("delete record %s: %w", addr, err)
	}
	return nil
}

func (t *ledgerTx) Balance(ctx context.Context, addr ledger.Address) (uint64, error) {
	query := "SELECT lamports FROM balances WHERE address = ?" + t.store.forUpdate(t.readOnly)

	var lamports decimal.Decimal
	err := t.tx.QueryRowContext(ctx, t.store.rebind(query), addr.String()).Scan(&lamports)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get balance %s: %w", addr, err)
	}

	amount := lamports.BigInt()
	if lamports.IsNegative() || !lamports.Equal(decimal.NewFromBigInt(amount, 0)) || !amount.IsUint64() {
		return 0, fmt.Errorf("corrupt balance %s for %s", lamports, addr)
	}
	return amount.Uint64(), nil
}

func (t *ledgerTx) SetBalance(ctx context.Context, addr ledger.Address, amount uint64) error {
	lamports := decimal.NewFromBigInt(new(big.Int).SetUint64(amount), 0)
	err := t.exec(ctx, `INSERT INTO balances (address, lamports) VALUES (?, ?)
		ON CONFLICT (address) DO UPDATE SET lamports = excluded.lamports, updated_at = CURRENT_TIMESTAMP`,
		addr.String(), lamports)
	if err != nil {
		return fmt.Errorf("set balance %s: %w", addr, err)
	}
	return nil
}
