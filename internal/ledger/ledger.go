// Package ledger is the host account store: a SQLite table of addressed
// byte buffers, each owned by a program. The engine never touches it; the
// gate loads accounts before a decision and writes the single mutation
// back in the same transaction.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/ppiankov/oraclegate/internal/ledger/migrations"
	"github.com/ppiankov/oraclegate/internal/model"
)

var (
	// ErrNotFound is returned when no account exists at an address.
	ErrNotFound = errors.New("account not found")
	// ErrAlreadyExists is returned when creating an account at an occupied
	// address. Account slots are create-once.
	ErrAlreadyExists = errors.New("account already exists")
)

// Entry is a stored account with its bookkeeping columns.
type Entry struct {
	Address   model.Address `json:"address"`
	Owner     model.Address `json:"owner"`
	Label     string        `json:"label,omitempty"`
	Data      []byte        `json:"data"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Account returns the entry as an invocation handle with no signer or
// writable flags set.
func (e Entry) Account() model.Account {
	return model.Account{Address: e.Address, Owner: e.Owner, Data: e.Data}
}

// Store persists accounts in SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a SQLite ledger at path and applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("ledger path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer; invocations touching the same record are serialized here.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Tx is a ledger transaction. Every change made through it commits or
// rolls back together.
type Tx struct {
	q querier
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// View runs fn against the store without a write transaction.
func (s *Store) View(ctx context.Context, fn func(*Tx) error) error {
	return fn(&Tx{q: s.sqlDB})
}

// Update runs fn inside a transaction, committing when fn returns nil.
func (s *Store) Update(ctx context.Context, fn func(*Tx) error) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger transaction: %w", err)
	}
	if err := fn(&Tx{q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger transaction: %w", err)
	}
	return nil
}

// Get loads the account at addr.
func (t *Tx) Get(ctx context.Context, addr model.Address) (Entry, error) {
	row := t.q.QueryRowContext(ctx,
		`SELECT address, owner, label, data, created_at, updated_at FROM accounts WHERE address = ?`,
		addr.String())
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%s: %w", addr.Short(), ErrNotFound)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("get account %s: %w", addr.Short(), err)
	}
	return e, nil
}

// Create stores a new account. It fails with ErrAlreadyExists when the
// address is taken.
func (t *Tx) Create(ctx context.Context, e Entry) error {
	now := time.Now().UTC().UnixMilli()
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO accounts (address, owner, label, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		e.Address.String(), e.Owner.String(), e.Label, nonNil(e.Data), now, now)
	if isUniqueViolation(err) {
		return fmt.Errorf("%s: %w", e.Address.Short(), ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("create account %s: %w", e.Address.Short(), err)
	}
	return nil
}

// Put replaces the data of an existing account. Owner and label are
// immutable after creation.
func (t *Tx) Put(ctx context.Context, addr model.Address, data []byte) error {
	res, err := t.q.ExecContext(ctx,
		`UPDATE accounts SET data = ?, updated_at = ? WHERE address = ?`,
		nonNil(data), time.Now().UTC().UnixMilli(), addr.String())
	if err != nil {
		return fmt.Errorf("put account %s: %w", addr.Short(), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("put account %s: %w", addr.Short(), err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", addr.Short(), ErrNotFound)
	}
	return nil
}

// Upsert creates the account or overwrites its data and owner.
func (t *Tx) Upsert(ctx context.Context, e Entry) error {
	now := time.Now().UTC().UnixMilli()
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO accounts (address, owner, label, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(address) DO UPDATE SET owner = excluded.owner, data = excluded.data, updated_at = excluded.updated_at`,
		e.Address.String(), e.Owner.String(), e.Label, nonNil(e.Data), now, now)
	if err != nil {
		return fmt.Errorf("upsert account %s: %w", e.Address.Short(), err)
	}
	return nil
}

// List returns every account owned by owner, ordered by label then address.
func (t *Tx) List(ctx context.Context, owner model.Address) ([]Entry, error) {
	rows, err := t.q.QueryContext(ctx,
		`SELECT address, owner, label, data, created_at, updated_at FROM accounts WHERE owner = ? ORDER BY label, address`,
		owner.String())
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		e                Entry
		address, owner   string
		created, updated int64
	)
	if err := row.Scan(&address, &owner, &e.Label, &e.Data, &created, &updated); err != nil {
		return Entry{}, err
	}
	var err error
	if e.Address, err = model.ParseAddress(address); err != nil {
		return Entry{}, fmt.Errorf("stored address: %w", err)
	}
	if e.Owner, err = model.ParseAddress(owner); err != nil {
		return Entry{}, fmt.Errorf("stored owner: %w", err)
	}
	e.CreatedAt = time.UnixMilli(created).UTC()
	e.UpdatedAt = time.UnixMilli(updated).UTC()
	return e, nil
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
