/*
Package sqlstore provides the SQL implementation of ledger.TxStore and
trade.Store, for SQLite and PostgreSQL.

PURPOSE:
  One set of queries serves both databases. Queries are written with "?"
  placeholders and rebound to "$n" for PostgreSQL; inserts use
  LastInsertId on SQLite and RETURNING id on PostgreSQL.

INTERFACES IMPLEMENTED:
  ledger.Store / ledger.TxStore: accounts, ledger entries, journals
  trade.Store:                   sales and purchases

KEY TABLES:
  accounts:       Account records with the cached balance
  ledger_entries: Chained entries with opening/closing snapshots
  journals:       Paired transfers
  sales:          Sales to customers
  purchases:      Purchases from suppliers

INDEXES:
  - idx_entries_account_id:  chain walk (account_id, id)
  - idx_entries_reference:   reversal lookup (reference_type, reference_id)
  - idx_entries_created:     display order (created_at, id)

CONCURRENCY:
  WithTx holds a process mutex for the whole transaction, so writers are
  serialized even on SQLite. On PostgreSQL LockAccounts additionally takes
  row locks with SELECT ... FOR UPDATE, always in ascending id order.

STORAGE FORMATS:
  Money is stored as exact decimal text (SQLite) or NUMERIC (PostgreSQL)
  and scanned straight into decimal.Decimal. Times are UTC text in a
  fixed-width layout, so string order is time order on both databases.

WAL MODE:
  SQLite is opened with WAL and foreign keys on, and with a single pooled
  connection so ":memory:" databases survive across calls.

USAGE:
  store, err := sqlstore.NewSQLite("./books.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := ledger.NewEngine(store)

SEE ALSO:
  - ledger/store.go: Interface definitions
  - trade/store.go:  Sale and purchase extension
*/
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/warp/books/ledger"
	"github.com/warp/books/trade"
)

// Dialect names a supported database. The values double as
// database/sql driver names.
type Dialect string

const (
	SQLite   Dialect = "sqlite3"
	Postgres Dialect = "postgres"
)

func (d Dialect) Valid() bool {
	return d == SQLite || d == Postgres
}

// Store implements ledger.TxStore and trade.Store.
type Store struct {
	conn
	db *sql.DB
	mu sync.Mutex
}

// NewSQLite opens (and migrates) a SQLite database at path.
// Use ":memory:" for an in-memory database.
func NewSQLite(path string) (*Store, error) {
	return Open(SQLite, path)
}

// Open connects to the database and migrates the schema. For SQLite dsn
// is a file path; for PostgreSQL a lib/pq connection string.
func Open(dialect Dialect, dsn string) (*Store, error) {
	if !dialect.Valid() {
		return nil, fmt.Errorf("unsupported database driver %q", dialect)
	}
	if dialect == SQLite && !strings.Contains(dsn, "?") {
		dsn += "?_foreign_keys=on&_journal_mode=WAL"
	}
	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dialect == SQLite {
		db.SetMaxOpenConns(1)
	}

	s := NewFromDB(db, dialect)
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// NewFromDB wraps an existing handle without migrating it.
func NewFromDB(db *sql.DB, dialect Dialect) *Store {
	return &Store{conn: conn{q: db, dialect: dialect}, db: db}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the handle for pool tuning and health checks.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Dialect() Dialect { return s.dialect }

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	schema := sqliteSchema
	if s.dialect == Postgres {
		schema = postgresSchema
	}
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// =============================================================================
// TRANSACTIONAL STORE (ledger.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction. The store
// passed to fn also implements trade.Store.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(conn{q: sqlTx, dialect: s.dialect}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// =============================================================================
// CONNECTION - shared by the pool and open transactions
// =============================================================================

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type conn struct {
	q       querier
	dialect Dialect
}

type scanner interface {
	Scan(dest ...any) error
}

// rebind rewrites "?" placeholders to "$1", "$2", ... for PostgreSQL.
func (c conn) rebind(query string) string {
	if c.dialect != Postgres {
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

func (c conn) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.q.ExecContext(ctx, c.rebind(query), args...)
}

func (c conn) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.q.QueryContext(ctx, c.rebind(query), args...)
}

func (c conn) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return c.q.QueryRowContext(ctx, c.rebind(query), args...)
}

// insert runs an INSERT and returns the new row id.
func (c conn) insert(ctx context.Context, query string, args ...any) (int64, error) {
	if c.dialect == Postgres {
		var id int64
		err := c.queryRow(ctx, query+" RETURNING id", args...).Scan(&id)
		return id, err
	}
	res, err := c.exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// execOne runs an UPDATE or DELETE that must touch exactly one row.
func (c conn) execOne(ctx context.Context, notFound error, query string, args ...any) error {
	res, err := c.exec(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func (c conn) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	err := c.queryRow(ctx, query, args...).Scan(&n)
	return n, err
}

// =============================================================================
// HELPERS
// =============================================================================

// timeLayout is fixed-width so lexical order equals time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad timestamp %q: %w", s, err)
	}
	return t, nil
}

func now() string {
	return formatTime(time.Now())
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// placeholders returns "?, ?, ?" for n values.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func isUniqueConstraintError(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	var pe *pq.Error
	if errors.As(err, &pe) {
		return pe.Code == "23505"
	}
	return false
}

var (
	_ ledger.TxStore = (*Store)(nil)
	_ trade.Store    = (*Store)(nil)
	_ trade.Store    = conn{}
)
