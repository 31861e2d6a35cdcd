/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication and the conversions
  between them and the ledger and trade types.

NAMING CONVENTION:
  - *DTO:      Response types returned to clients
  - *Request:  Request body types from clients
  - *Response: List and result wrappers

WIRE FORMATS:
  - Amounts in requests are JSON numbers or strings ("12.50"), decoded
    straight into decimal.Decimal. Amounts in responses are strings with
    two decimal places.
  - Dates in requests are YYYY-MM-DD or RFC3339. Responses use RFC3339.

VALIDATION:
  Request types carry go-playground/validator tags for presence and
  shape. Business rules (amount > 0, account type, chain position) stay in
  the ledger and trade packages.

SEE ALSO:
  - handlers.go: decode, validate, and error mapping
*/
package api

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/books/ledger"
	"github.com/warp/books/trade"
)

// =============================================================================
// ACCOUNTS
// =============================================================================

type AccountDTO struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	Phone        string `json:"phone"`
	Address      string `json:"address"`
	Balance      string `json:"balance"`
	BalanceLabel string `json:"balanceLabel"`
	CreatedAt    string `json:"createdAt"`
	UpdatedAt    string `json:"updatedAt"`
}

type CreateAccountRequest struct {
	Name           string           `json:"name" validate:"required,max=200"`
	Type           string           `json:"type" validate:"required,oneof=CASH PARTY_ACCOUNT CUSTOMER_ACCOUNT"`
	Phone          string           `json:"phone" validate:"max=50"`
	Address        string           `json:"address" validate:"max=500"`
	InitialBalance *decimal.Decimal `json:"initialBalance"`
}

type UpdateAccountRequest struct {
	Name    string `json:"name" validate:"required,max=200"`
	Type    string `json:"type" validate:"required,oneof=CASH PARTY_ACCOUNT CUSTOMER_ACCOUNT"`
	Phone   string `json:"phone" validate:"max=50"`
	Address string `json:"address" validate:"max=500"`
}

type ReconcileDTO struct {
	AccountID  int64          `json:"accountId"`
	Consistent bool           `json:"consistent"`
	Cached     string         `json:"cachedBalance"`
	LedgerTail string         `json:"ledgerBalance"`
	Replayed   string         `json:"replayedBalance"`
	Entries    int            `json:"entries"`
	Breaks     []ViolationDTO `json:"breaks"`
}

type ViolationDTO struct {
	EntryID  int64  `json:"entryId,omitempty"`
	Field    string `json:"field"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

type ConsistencyResponse struct {
	CheckedAt    string         `json:"checkedAt"`
	Consistent   bool           `json:"consistent"`
	Inconsistent []ReconcileDTO `json:"inconsistent"`
	LastRun      *RunDTO        `json:"lastScheduledRun,omitempty"`
}

type RunDTO struct {
	StartedAt    string `json:"startedAt"`
	DurationMS   int64  `json:"durationMs"`
	Inconsistent int    `json:"inconsistent"`
	Error        string `json:"error,omitempty"`
}

// =============================================================================
// LEDGER
// =============================================================================

type EntryDTO struct {
	ID             int64  `json:"id"`
	AccountID      int64  `json:"accountId"`
	AccountType    string `json:"accountType,omitempty"`
	DrAmount       string `json:"drAmount"`
	CrAmount       string `json:"crAmount"`
	Details        string `json:"details"`
	Type           string `json:"type"`
	ReferenceType  string `json:"referenceType"`
	ReferenceID    string `json:"referenceId"`
	OpeningBalance string `json:"openingBalance"`
	ClosingBalance string `json:"closingBalance"`
	PreBalance     string `json:"preBalance,omitempty"`
	PreLabel       string `json:"preBalanceLabel,omitempty"`
	PostBalance    string `json:"postBalance,omitempty"`
	PostLabel      string `json:"postBalanceLabel,omitempty"`
	CreatedAt      string `json:"createdAt"`
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

type PaginationDTO struct {
	CurrentPage int  `json:"currentPage"`
	TotalPages  int  `json:"totalPages"`
	TotalCount  int  `json:"totalCount"`
	HasNextPage bool `json:"hasNextPage"`
	HasPrevPage bool `json:"hasPrevPage"`
}

type EntryListResponse struct {
	Entries    []EntryDTO    `json:"entries"`
	Pagination PaginationDTO `json:"pagination"`
}

// PostEntryRequest posts one manual ledger row.
type PostEntryRequest struct {
	AccountID      int64            `json:"accountId" validate:"required,gt=0"`
	Type           string           `json:"type" validate:"required"`
	ReferenceType  string           `json:"referenceType"`
	ReferenceID    string           `json:"referenceId"`
	DrAmount       *decimal.Decimal `json:"drAmount"`
	CrAmount       *decimal.Decimal `json:"crAmount"`
	Details        string           `json:"details" validate:"max=500"`
	Date           string           `json:"date"`
	IdempotencyKey string           `json:"idempotencyKey" validate:"max=200"`
}

type OpeningBalanceRequest struct {
	AccountID   int64            `json:"accountId" validate:"required,gt=0"`
	Amount      *decimal.Decimal `json:"amount" validate:"required"`
	AccountType string           `json:"accountType" validate:"required,oneof=CASH PARTY_ACCOUNT CUSTOMER_ACCOUNT"`
}

type OpeningBalanceResponse struct {
	Entry     EntryDTO `json:"entry"`
	Created   bool     `json:"created"`
	Balance   string   `json:"balance"`
	Rechained int      `json:"rechained"`
}

type ReversalDTO struct {
	AccountID     int64  `json:"accountId"`
	Removed       int    `json:"removed"`
	BalanceBefore string `json:"balanceBefore"`
	Balance       string `json:"balance"`
	Rechained     int    `json:"rechained"`
}

// =============================================================================
// PAYMENTS AND JOURNALS
// =============================================================================

type PaymentRequest struct {
	AccountID   int64            `json:"accountId" validate:"required,gt=0"`
	Amount      *decimal.Decimal `json:"amount" validate:"required"`
	Description string           `json:"description" validate:"required,max=500"`
	Date        string           `json:"date" validate:"required"`
}

type JournalDTO struct {
	ID              int64  `json:"id"`
	DebitAccountID  int64  `json:"debitAccountId"`
	CreditAccountID int64  `json:"creditAccountId"`
	Amount          string `json:"amount"`
	Description     string `json:"description"`
	CreatedAt       string `json:"createdAt"`
}

type JournalRequest struct {
	DebitAccountID  int64            `json:"debitAccountId" validate:"required,gt=0"`
	CreditAccountID int64            `json:"creditAccountId" validate:"required,gt=0,nefield=DebitAccountID"`
	Amount          *decimal.Decimal `json:"amount" validate:"required"`
	Description     string           `json:"description" validate:"required,max=500"`
	Date            string           `json:"date"`
}

type JournalResponse struct {
	Journal     JournalDTO `json:"journal"`
	PreBalances struct {
		Debit  string `json:"debit"`
		Credit string `json:"credit"`
	} `json:"preBalances"`
	DebitEntry  EntryDTO `json:"debitEntry"`
	CreditEntry EntryDTO `json:"creditEntry"`
}

type JournalListResponse struct {
	Journals   []JournalDTO  `json:"journals"`
	Pagination PaginationDTO `json:"pagination"`
}

// =============================================================================
// SALES AND PURCHASES
// =============================================================================

type TradeDTO struct {
	ID            int64  `json:"id"`
	AccountID     int64  `json:"accountId"`
	Date          string `json:"date"`
	Weight        string `json:"weight"`
	Rate          string `json:"rate"`
	TotalAmount   string `json:"totalAmount"`
	PreBalance    string `json:"preBalance"`
	Payment       string `json:"payment"`
	Balance       string `json:"balance"`
	VehicleNumber string `json:"vehicleNumber,omitempty"`
	CreatedAt     string `json:"createdAt"`
	UpdatedAt     string `json:"updatedAt"`
}

type TradeRequest struct {
	AccountID     int64            `json:"accountId" validate:"required,gt=0"`
	Date          string           `json:"date" validate:"required"`
	Weight        *decimal.Decimal `json:"weight" validate:"required"`
	Rate          *decimal.Decimal `json:"rate" validate:"required"`
	TotalAmount   *decimal.Decimal `json:"totalAmount"`
	Payment       *decimal.Decimal `json:"payment"`
	VehicleNumber string           `json:"vehicleNumber" validate:"max=50"`
}

// TradePatchRequest edits a sale or purchase. Absent fields are unchanged.
type TradePatchRequest struct {
	AccountID     *int64           `json:"accountId" validate:"omitempty,gt=0"`
	Date          *string          `json:"date"`
	Weight        *decimal.Decimal `json:"weight"`
	Rate          *decimal.Decimal `json:"rate"`
	TotalAmount   *decimal.Decimal `json:"totalAmount"`
	Payment       *decimal.Decimal `json:"payment"`
	VehicleNumber *string          `json:"vehicleNumber" validate:"omitempty,max=50"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Kind    string            `json:"kind"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func money(d decimal.Decimal) string {
	return d.StringFixed(ledger.MoneyPlaces)
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// parseDate accepts YYYY-MM-DD or RFC3339.
func parseDate(field, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, ledger.Invalid(field, "expected YYYY-MM-DD or RFC3339, got %q", s)
	}
	return t.UTC(), nil
}

// parseOptionalDate returns the zero time for an empty string.
func parseOptionalDate(field, s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, nil
	}
	return parseDate(field, s)
}

func decimalOrZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

func toAccountDTO(a ledger.Account) AccountDTO {
	return AccountDTO{
		ID:           int64(a.ID),
		Name:         a.Name,
		Type:         string(a.Type),
		Phone:        a.Phone,
		Address:      a.Address,
		Balance:      money(a.Balance),
		BalanceLabel: ledger.BalanceLabel(a.Type, a.Balance),
		CreatedAt:    timestamp(a.CreatedAt),
		UpdatedAt:    timestamp(a.UpdatedAt),
	}
}

func toEntryDTO(e ledger.Entry) EntryDTO {
	return EntryDTO{
		ID:             int64(e.ID),
		AccountID:      int64(e.AccountID),
		DrAmount:       money(e.DrAmount),
		CrAmount:       money(e.CrAmount),
		Details:        e.Details,
		Type:           string(e.Type),
		ReferenceType:  string(e.Ref.Type),
		ReferenceID:    e.Ref.ID,
		OpeningBalance: money(e.OpeningBalance),
		ClosingBalance: money(e.ClosingBalance),
		CreatedAt:      timestamp(e.CreatedAt),
		IdempotencyKey: e.IdempotencyKey,
	}
}

func toLabeledEntryDTO(le ledger.LabeledEntry) EntryDTO {
	dto := toEntryDTO(le.Entry)
	dto.AccountType = string(le.AccountType)
	dto.PreBalance = money(le.PreBalance)
	dto.PreLabel = le.PreLabel
	dto.PostBalance = money(le.PostBalance)
	dto.PostLabel = le.PostLabel
	return dto
}

func toEntryList(page ledger.EntryPage) EntryListResponse {
	out := EntryListResponse{
		Entries:    make([]EntryDTO, len(page.Entries)),
		Pagination: toPaginationDTO(page.Pagination),
	}
	for i, le := range page.Entries {
		out.Entries[i] = toLabeledEntryDTO(le)
	}
	return out
}

func toPaginationDTO(p ledger.Pagination) PaginationDTO {
	return PaginationDTO{
		CurrentPage: p.CurrentPage,
		TotalPages:  p.TotalPages,
		TotalCount:  p.TotalCount,
		HasNextPage: p.HasNextPage,
		HasPrevPage: p.HasPrevPage,
	}
}

func toReversalDTO(r ledger.Reversal) ReversalDTO {
	return ReversalDTO{
		AccountID:     int64(r.AccountID),
		Removed:       len(r.Removed),
		BalanceBefore: money(r.BalanceBefore),
		Balance:       money(r.Balance),
		Rechained:     r.Rechained,
	}
}

func toReconcileDTO(r ledger.ReconcileReport) ReconcileDTO {
	dto := ReconcileDTO{
		AccountID:  int64(r.AccountID),
		Consistent: r.Consistent(),
		Cached:     money(r.Cached),
		LedgerTail: money(r.LedgerTail),
		Replayed:   money(r.Replayed),
		Entries:    r.Entries,
		Breaks:     make([]ViolationDTO, len(r.Breaks)),
	}
	for i, b := range r.Breaks {
		dto.Breaks[i] = ViolationDTO{
			EntryID:  int64(b.EntryID),
			Field:    b.Field,
			Expected: money(b.Expected),
			Actual:   money(b.Actual),
		}
	}
	return dto
}

func toJournalDTO(j ledger.Journal) JournalDTO {
	return JournalDTO{
		ID:              int64(j.ID),
		DebitAccountID:  int64(j.DebitAccountID),
		CreditAccountID: int64(j.CreditAccountID),
		Amount:          money(j.Amount),
		Description:     j.Description,
		CreatedAt:       timestamp(j.CreatedAt),
	}
}

func toTradeDTO(t trade.Trade) TradeDTO {
	return TradeDTO{
		ID:          t.ID,
		AccountID:   int64(t.AccountID),
		Date:        timestamp(t.Date),
		Weight:      t.Weight.String(),
		Rate:        t.Rate.String(),
		TotalAmount: money(t.TotalAmount),
		PreBalance:  money(t.PreBalance),
		Payment:     money(t.Payment),
		Balance:     money(t.Balance),
		CreatedAt:   timestamp(t.CreatedAt),
		UpdatedAt:   timestamp(t.UpdatedAt),
	}
}

func toSaleDTO(s trade.Sale) TradeDTO {
	return toTradeDTO(s.Trade)
}

func toPurchaseDTO(p trade.Purchase) TradeDTO {
	dto := toTradeDTO(p.Trade)
	dto.VehicleNumber = p.VehicleNumber
	return dto
}

// input converts a create request.
func (r TradeRequest) input() (trade.Input, error) {
	date, err := parseDate("date", r.Date)
	if err != nil {
		return trade.Input{}, err
	}
	return trade.Input{
		AccountID:     ledger.AccountID(r.AccountID),
		Date:          date,
		Weight:        decimalOrZero(r.Weight),
		Rate:          decimalOrZero(r.Rate),
		TotalAmount:   r.TotalAmount,
		Payment:       decimalOrZero(r.Payment),
		VehicleNumber: r.VehicleNumber,
	}, nil
}

// patch converts an edit request.
func (r TradePatchRequest) patch() (trade.Patch, error) {
	p := trade.Patch{
		Weight:        r.Weight,
		Rate:          r.Rate,
		TotalAmount:   r.TotalAmount,
		Payment:       r.Payment,
		VehicleNumber: r.VehicleNumber,
	}
	if r.AccountID != nil {
		id := ledger.AccountID(*r.AccountID)
		p.AccountID = &id
	}
	if r.Date != nil {
		d, err := parseDate("date", *r.Date)
		if err != nil {
			return trade.Patch{}, err
		}
		p.Date = &d
	}
	return p, nil
}

// posting converts a manual ledger request.
func (r PostEntryRequest) posting() (ledger.Posting, error) {
	date, err := parseOptionalDate("date", r.Date)
	if err != nil {
		return ledger.Posting{}, err
	}
	p := ledger.Posting{
		AccountID:      ledger.AccountID(r.AccountID),
		Type:           ledger.EntryType(strings.ToUpper(strings.TrimSpace(r.Type))),
		DrAmount:       decimalOrZero(r.DrAmount),
		CrAmount:       decimalOrZero(r.CrAmount),
		Details:        r.Details,
		EffectiveDate:  date,
		IdempotencyKey: strings.TrimSpace(r.IdempotencyKey),
	}
	if r.ReferenceType != "" || r.ReferenceID != "" {
		rt := ledger.RefType(strings.ToUpper(r.ReferenceType))
		if !rt.Valid() {
			return ledger.Posting{}, ledger.Invalid("referenceType", "unknown reference type %q", r.ReferenceType)
		}
		if r.ReferenceID == "" {
			return ledger.Posting{}, ledger.Invalid("referenceId", "reference id is required with a reference type")
		}
		p.Ref = ledger.Ref{Type: rt, ID: r.ReferenceID}
	}
	return p, nil
}

func (r PaymentRequest) request() (ledger.PaymentRequest, error) {
	date, err := parseDate("date", r.Date)
	if err != nil {
		return ledger.PaymentRequest{}, err
	}
	return ledger.PaymentRequest{
		AccountID:   ledger.AccountID(r.AccountID),
		Amount:      decimalOrZero(r.Amount),
		Description: r.Description,
		Date:        date,
	}, nil
}

func (r JournalRequest) request() (ledger.JournalRequest, error) {
	date, err := parseOptionalDate("date", r.Date)
	if err != nil {
		return ledger.JournalRequest{}, err
	}
	return ledger.JournalRequest{
		DebitAccountID:  ledger.AccountID(r.DebitAccountID),
		CreditAccountID: ledger.AccountID(r.CreditAccountID),
		Amount:          decimalOrZero(r.Amount),
		Description:     r.Description,
		Date:            date,
	}, nil
}
