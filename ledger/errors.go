/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error kinds in one place. Callers branch on them with errors.Is and
  errors.As; the HTTP layer maps them to status codes.

ERROR CATEGORIES:
  1. Client errors  - NotFound, Validation, DuplicateOpeningBalance,
                      HasDependents, DuplicateIdempotencyKey
  2. Operational    - Timeout (transaction rolled back)
  3. Internal       - InvariantViolation, StoreRequired

PROPAGATION:
  Any error inside a posting or reversal aborts the whole store
  transaction. Nothing is retried here: retrying a ledger mutation without
  an idempotency key could double-post.

SEE ALSO:
  - api/handlers.go: statusFor() maps kinds to HTTP status
*/
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when an account, entry, journal, or source
	// transaction does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation is returned for missing or invalid input, including a
	// transaction kind posted against the wrong account type.
	ErrValidation = errors.New("validation failed")

	// ErrDuplicateOpeningBalance is returned when an account already has an
	// OPENING_BALANCE entry.
	ErrDuplicateOpeningBalance = errors.New("opening balance already exists for this account")

	// ErrHasDependents is returned when deleting an account that still owns
	// entries, sales, purchases, or journals.
	ErrHasDependents = errors.New("account has dependent records")

	// ErrInvariantViolation is returned when a cached balance or an entry
	// snapshot does not reconcile with the ledger chain.
	ErrInvariantViolation = errors.New("ledger invariant violated")

	// ErrDuplicateIdempotencyKey is returned when an entry with the same
	// idempotency key already exists.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrTimeout is returned when a multi-step operation exceeded its
	// deadline. The transaction has been rolled back.
	ErrTimeout = errors.New("operation timed out and was rolled back")

	// ErrStoreRequired is returned when an operation requires a store
	// capability the configured store does not provide.
	ErrStoreRequired = errors.New("operation requires extended store interface")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError names the missing record.
type NotFoundError struct {
	Kind string // "account", "sale", "journal", ...
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NotFound builds a NotFoundError.
func NotFound(kind string, id fmt.Stringer) error {
	return &NotFoundError{Kind: kind, ID: id.String()}
}

// ValidationError describes one rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid builds a ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// HasDependentsError reports what blocks an account delete.
type HasDependentsError struct {
	AccountID  AccountID
	Dependents Dependents
}

func (e *HasDependentsError) Error() string {
	return fmt.Sprintf("cannot delete account %d with existing transactions (entries: %d, sales: %d, purchases: %d, journals: %d)",
		e.AccountID, e.Dependents.Entries, e.Dependents.Sales, e.Dependents.Purchases, e.Dependents.Journals)
}

func (e *HasDependentsError) Unwrap() error { return ErrHasDependents }

// InvariantViolationError describes a balance that does not reconcile.
// EntryID is zero when the cached account balance is the offender.
type InvariantViolationError struct {
	AccountID AccountID
	EntryID   EntryID
	Field     string
	Expected  decimal.Decimal
	Actual    decimal.Decimal
}

func (e *InvariantViolationError) Error() string {
	if e.EntryID == 0 {
		return fmt.Sprintf("account %d: %s is %s, ledger says %s",
			e.AccountID, e.Field, e.Actual.StringFixed(MoneyPlaces), e.Expected.StringFixed(MoneyPlaces))
	}
	return fmt.Sprintf("account %d entry %d: %s is %s, expected %s",
		e.AccountID, e.EntryID, e.Field, e.Actual.StringFixed(MoneyPlaces), e.Expected.StringFixed(MoneyPlaces))
}

func (e *InvariantViolationError) Unwrap() error { return ErrInvariantViolation }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrDuplicateOpeningBalance) ||
		errors.Is(err, ErrHasDependents) ||
		errors.Is(err, ErrDuplicateIdempotencyKey)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Kind returns a stable machine-readable name for the error kind.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrValidation):
		return "ValidationError"
	case errors.Is(err, ErrDuplicateOpeningBalance):
		return "DuplicateOpeningBalance"
	case errors.Is(err, ErrHasDependents):
		return "HasDependents"
	case errors.Is(err, ErrDuplicateIdempotencyKey):
		return "DuplicateIdempotencyKey"
	case errors.Is(err, ErrInvariantViolation):
		return "InvariantViolation"
	case errors.Is(err, ErrTimeout):
		return "Timeout"
	default:
		return "Internal"
	}
}

// timeoutError converts an expired deadline into ErrTimeout while keeping
// the original cause in the chain.
func timeoutError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrTimeout) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}
