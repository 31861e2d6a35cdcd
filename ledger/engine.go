/*
engine.go - The bookkeeping engine

PURPOSE:
  Engine owns the store and runs every mutation as one bounded store
  transaction. The operations are split by concern:

    accounts.go  - account CRUD and the initial-balance posting
    posting.go   - chained posting of new entries
    opening.go   - opening-balance upsert
    reversal.go  - delete / recompute of posted transactions
    journal.go   - paired transfers between two accounts
    payment.go   - ad-hoc supplier payments and customer receivings
    query.go     - paginated, labeled listings
    reconcile.go - chain replay and repair

TIMEOUT:
  Multi-step operations run under context.WithTimeout(ctx, timeout). The
  store binds the deadline to its transaction, so an expired deadline
  rolls everything back and the caller sees ErrTimeout.

USAGE:
  engine := ledger.NewEngine(store,
      ledger.WithTimeout(10*time.Second),
      ledger.WithLogger(logger),
  )
*/
package ledger

import (
	"context"
	"log/slog"
	"time"
)

// DefaultTxTimeout bounds one multi-step ledger transaction.
const DefaultTxTimeout = 10 * time.Second

type Engine struct {
	store   TxStore
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

type Option func(*Engine)

// WithTimeout sets the per-operation transaction timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(store TxStore, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		timeout: DefaultTxTimeout,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Store() TxStore         { return e.store }
func (e *Engine) Logger() *slog.Logger   { return e.logger }
func (e *Engine) Now() time.Time         { return e.now().UTC() }
func (e *Engine) Timeout() time.Duration { return e.timeout }

// InTx runs fn in one store transaction bounded by the engine timeout.
// Packages that post on behalf of their own records (trade) use it so that
// the record and its entries commit together.
func (e *Engine) InTx(ctx context.Context, fn func(Store) error) error {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	return timeoutError(e.store.WithTx(ctx, fn))
}

// effectiveDate defaults a zero business date to now.
func (e *Engine) effectiveDate(t time.Time) time.Time {
	if t.IsZero() {
		return e.Now()
	}
	return t.UTC()
}
