/*
Package ledger provides the bookkeeping engine: accounts, ledger entries,
and the posting, reversal, and reconciliation rules that keep them
consistent.

PURPOSE:
  Every economic event (sale, purchase, payment, journal transfer, opening
  balance) is recorded as one or more ledger entries. Each entry carries the
  account balance immediately before and after it. The account's Balance
  field is a cached copy of the closing balance of its latest entry.

KEY CONCEPTS IN THIS FILE (types.go):
  - AccountType: CASH, PARTY_ACCOUNT (supplier), CUSTOMER_ACCOUNT
  - Entry:       One debit/credit row with opening/closing snapshots
  - Ref:         Typed (referenceType, referenceId) tag linking entries
                 back to the record that produced them
  - Journal:     Paired transfer between two accounts

INVARIANTS:
  1. account.Balance == closing balance of its highest-id entry (0 if none)
  2. entry.Closing == entry.Opening + SignedDelta(entry)
  3. Ordered by id, entry[i].Opening == entry[i-1].Closing (0 for i=0)

USAGE:
  engine := ledger.NewEngine(store)
  acct, _ := engine.CreateAccount(ctx, ledger.NewAccount{
      Name: "Ali",
      Type: ledger.CustomerAccount,
  })

SEE ALSO:
  - sign.go:     Type-aware sign convention and balance labels
  - engine.go:   Posting engine
  - reversal.go: Delete / recompute of posted transactions
*/
package ledger

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY
// =============================================================================

// MoneyPlaces is the number of decimal places balances are stored with.
const MoneyPlaces = 2

// Round rounds a money value to MoneyPlaces, half away from zero.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type AccountID int64
type EntryID int64
type JournalID int64

func (id AccountID) String() string { return strconv.FormatInt(int64(id), 10) }
func (id EntryID) String() string   { return strconv.FormatInt(int64(id), 10) }
func (id JournalID) String() string { return strconv.FormatInt(int64(id), 10) }

// =============================================================================
// ACCOUNTS
// =============================================================================

type AccountType string

const (
	Cash            AccountType = "CASH"
	PartyAccount    AccountType = "PARTY_ACCOUNT"    // supplier, balance = what we owe them
	CustomerAccount AccountType = "CUSTOMER_ACCOUNT" // customer, balance = what they owe us
)

// AccountTypes lists every valid account type.
var AccountTypes = []AccountType{Cash, PartyAccount, CustomerAccount}

func (t AccountType) Valid() bool {
	switch t {
	case Cash, PartyAccount, CustomerAccount:
		return true
	}
	return false
}

type Account struct {
	ID      AccountID
	Name    string
	Type    AccountType
	Phone   string
	Address string

	// Balance is derived state. Only the posting and reversal code
	// writes it.
	Balance decimal.Decimal

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewAccount is the input for CreateAccount.
type NewAccount struct {
	Name           string
	Type           AccountType
	Phone          string
	Address        string
	InitialBalance decimal.Decimal
}

// AccountUpdate carries the user-editable account fields. It has no
// balance.
type AccountUpdate struct {
	Name    string
	Type    AccountType
	Phone   string
	Address string
}

type AccountFilter struct {
	Type   AccountType // empty = all
	Search string      // substring of name, phone, or address
}

// Dependents counts the records that block deleting an account.
type Dependents struct {
	Entries   int
	Sales     int
	Purchases int
	Journals  int
}

func (d Dependents) Any() bool {
	return d.Entries > 0 || d.Sales > 0 || d.Purchases > 0 || d.Journals > 0
}

// =============================================================================
// REFERENCES - which source record produced an entry
// =============================================================================

type RefType string

const (
	RefSale                RefType = "SALE"
	RefPurchase            RefType = "PURCHASE"
	RefAccountCreation     RefType = "ACCOUNT_CREATION"
	RefPaymentToParty      RefType = "PAYMENT_TO_PARTY"
	RefPaymentFromCustomer RefType = "PAYMENT_FROM_CUSTOMER"
	RefJournal             RefType = "JOURNAL"
	RefManual              RefType = "MANUAL"
)

func (t RefType) Valid() bool {
	switch t {
	case RefSale, RefPurchase, RefAccountCreation, RefPaymentToParty,
		RefPaymentFromCustomer, RefJournal, RefManual:
		return true
	}
	return false
}

// Ref is the (referenceType, referenceId) tag stored on every entry.
// Reversal finds the entries of a transaction by this pair alone, so the
// encoding must stay stable.
type Ref struct {
	Type RefType
	ID   string
}

func SaleRef(id int64) Ref     { return Ref{Type: RefSale, ID: strconv.FormatInt(id, 10)} }
func PurchaseRef(id int64) Ref { return Ref{Type: RefPurchase, ID: strconv.FormatInt(id, 10)} }

func AccountCreationRef(id AccountID) Ref { return Ref{Type: RefAccountCreation, ID: id.String()} }
func JournalRef(id JournalID) Ref         { return Ref{Type: RefJournal, ID: id.String()} }

func PaymentToPartyRef(key string) Ref      { return Ref{Type: RefPaymentToParty, ID: key} }
func PaymentFromCustomerRef(key string) Ref { return Ref{Type: RefPaymentFromCustomer, ID: key} }
func ManualRef(key string) Ref              { return Ref{Type: RefManual, ID: key} }

func (r Ref) IsZero() bool   { return r.Type == "" && r.ID == "" }
func (r Ref) String() string { return string(r.Type) + ":" + r.ID }

// =============================================================================
// ENTRIES
// =============================================================================

type EntryType string

const (
	EntryOpeningBalance      EntryType = "OPENING_BALANCE"
	EntryInitialBalance      EntryType = "INITIAL_BALANCE"
	EntrySale                EntryType = "SALE"
	EntryPurchase            EntryType = "PURCHASE"
	EntryPayment             EntryType = "PAYMENT"
	EntryPaymentToParty      EntryType = "PAYMENT_TO_PARTY"
	EntryPaymentFromCustomer EntryType = "PAYMENT_FROM_CUSTOMER"
	EntryManual              EntryType = "MANUAL"
	EntryJournal             EntryType = "JOURNAL"
)

func (t EntryType) Valid() bool {
	switch t {
	case EntryOpeningBalance, EntryInitialBalance, EntrySale, EntryPurchase,
		EntryPayment, EntryPaymentToParty, EntryPaymentFromCustomer,
		EntryManual, EntryJournal:
		return true
	}
	return false
}

// Entry is one ledger row.
type Entry struct {
	ID        EntryID
	AccountID AccountID
	DrAmount  decimal.Decimal
	CrAmount  decimal.Decimal
	Details   string
	Type      EntryType
	Ref       Ref

	OpeningBalance decimal.Decimal // balance immediately before
	ClosingBalance decimal.Decimal // balance immediately after

	// CreatedAt is the business date of the underlying transaction, not
	// the insert time.
	CreatedAt time.Time

	IdempotencyKey string
}

// EntryFilter selects entries for display. Zero values mean "no filter".
type EntryFilter struct {
	AccountID AccountID
	Type      EntryType
	From      *time.Time
	To        *time.Time
	Page      int
	Limit     int
}

// =============================================================================
// JOURNALS
// =============================================================================

type Journal struct {
	ID              JournalID
	DebitAccountID  AccountID
	CreditAccountID AccountID
	Amount          decimal.Decimal
	Description     string
	CreatedAt       time.Time
}

type JournalFilter struct {
	AccountID AccountID // matches either side
	From      *time.Time
	To        *time.Time
	Page      int
	Limit     int
}

// =============================================================================
// PAGINATION
// =============================================================================

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 500
)

type Pagination struct {
	CurrentPage int
	TotalPages  int
	TotalCount  int
	HasNextPage bool
	HasPrevPage bool
}

// NormalizePage clamps page and limit to usable values.
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit
}

// NewPagination builds the page metadata for a result of total rows.
func NewPagination(page, limit, total int) Pagination {
	page, limit = NormalizePage(page, limit)
	pages := (total + limit - 1) / limit
	return Pagination{
		CurrentPage: page,
		TotalPages:  pages,
		TotalCount:  total,
		HasNextPage: page < pages,
		HasPrevPage: page > 1,
	}
}
