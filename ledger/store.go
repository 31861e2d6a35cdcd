/*
store.go - Persistence interface for accounts, entries, and journals

PURPOSE:
  Defines the boundary between the posting rules and the database. The
  engine never writes a balance outside a Store transaction; every
  mutating operation runs inside TxStore.WithTx.

KEY INTERFACES:
  Store:   Account, entry, and journal persistence inside one transaction
  TxStore: Store plus WithTx for atomic multi-row writes

LOCKING:
  LockAccounts must acquire locks in ascending id order regardless of the
  order the ids are passed in. Two postings touching the same pair of
  accounts then cannot deadlock.

ENTRY ORDER:
  Entry ids are assigned by the store and are strictly increasing. The
  chain math orders by id; the display order (createdAt desc, id desc) is
  separate and lives in sign.go.

EXTENSION:
  Packages that persist their own records in the same transaction (trade)
  define a wider interface embedding Store and type-assert the Store they
  receive from WithTx. A store that does not implement it yields
  ErrStoreRequired.

IMPLEMENTATIONS:
  - store/sqlstore: SQLite and PostgreSQL
  - ledger/store:   In-memory for tests

SEE ALSO:
  - engine.go: Engine.inTx wraps WithTx with the operation timeout
*/
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STORE - Transaction-scoped persistence
// =============================================================================

type Store interface {
	// Accounts

	// CreateAccount assigns ID, CreatedAt and UpdatedAt.
	CreateAccount(ctx context.Context, a Account) (Account, error)
	// GetAccount returns a *NotFoundError if the account does not exist.
	GetAccount(ctx context.Context, id AccountID) (Account, error)
	// LockAccounts locks the accounts in ascending id order and returns
	// them in that order.
	LockAccounts(ctx context.Context, ids ...AccountID) ([]Account, error)
	// UpdateAccount writes name, type, phone, and address. Never balance.
	UpdateAccount(ctx context.Context, a Account) error
	SetBalance(ctx context.Context, id AccountID, balance decimal.Decimal) error
	DeleteAccount(ctx context.Context, id AccountID) error
	CountDependents(ctx context.Context, id AccountID) (Dependents, error)
	// ListAccounts returns newest first.
	ListAccounts(ctx context.Context, filter AccountFilter) ([]Account, error)

	// Entries

	// AppendEntry assigns the entry ID. A repeated non-empty idempotency
	// key fails with ErrDuplicateIdempotencyKey.
	AppendEntry(ctx context.Context, e Entry) (Entry, error)
	// UpdateEntry rewrites amounts, details, snapshots, and date by ID.
	UpdateEntry(ctx context.Context, e Entry) error
	DeleteEntries(ctx context.Context, ids ...EntryID) error
	// LatestEntry returns the highest-id entry of the account.
	LatestEntry(ctx context.Context, accountID AccountID) (Entry, bool, error)
	// LatestEntryBefore returns the last entry (createdAt desc, id desc)
	// dated strictly before at.
	LatestEntryBefore(ctx context.Context, accountID AccountID, at time.Time) (Entry, bool, error)
	// FindEntryByType returns the lowest-id entry of the given type.
	FindEntryByType(ctx context.Context, accountID AccountID, t EntryType) (Entry, bool, error)
	// EntriesByRef returns every entry tagged ref, id ascending.
	EntriesByRef(ctx context.Context, ref Ref) ([]Entry, error)
	// Entries returns the whole chain of an account, id ascending.
	Entries(ctx context.Context, accountID AccountID) ([]Entry, error)
	// QueryEntries returns one page in display order plus the total count.
	QueryEntries(ctx context.Context, filter EntryFilter) ([]Entry, int, error)

	// Journals

	CreateJournal(ctx context.Context, j Journal) (Journal, error)
	GetJournal(ctx context.Context, id JournalID) (Journal, error)
	DeleteJournal(ctx context.Context, id JournalID) error
	// ListJournals returns one page newest first plus the total count.
	ListJournals(ctx context.Context, filter JournalFilter) ([]Journal, int, error)
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, or ctx is done before commit, the transaction
	// is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}
