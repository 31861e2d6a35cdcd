package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentRequest is an ad-hoc payment to a supplier or receipt from a
// customer, outside any sale or purchase.
type PaymentRequest struct {
	AccountID   AccountID
	Amount      decimal.Decimal
	Description string
	Date        time.Time
}

func (r PaymentRequest) validate() error {
	if r.AccountID == 0 {
		return Invalid("accountId", "account is required")
	}
	if !r.Amount.IsPositive() {
		return Invalid("amount", "amount must be greater than zero")
	}
	if strings.TrimSpace(r.Description) == "" {
		return Invalid("description", "description is required")
	}
	if r.Date.IsZero() {
		return Invalid("date", "date is required")
	}
	return nil
}

// PayParty records money paid to a supplier: one PAYMENT_TO_PARTY entry
// with drAmount = amount, which lowers what we owe them.
func (e *Engine) PayParty(ctx context.Context, req PaymentRequest) (Entry, error) {
	if err := req.validate(); err != nil {
		return Entry{}, err
	}
	return e.Post(ctx, Posting{
		AccountID:     req.AccountID,
		Type:          EntryPaymentToParty,
		Ref:           PaymentToPartyRef(uuid.NewString()),
		DrAmount:      req.Amount,
		Details:       strings.TrimSpace(req.Description),
		EffectiveDate: req.Date,
	})
}

// ReceiveFromCustomer records money received from a customer: one
// PAYMENT_FROM_CUSTOMER entry with crAmount = amount.
func (e *Engine) ReceiveFromCustomer(ctx context.Context, req PaymentRequest) (Entry, error) {
	if err := req.validate(); err != nil {
		return Entry{}, err
	}
	return e.Post(ctx, Posting{
		AccountID:     req.AccountID,
		Type:          EntryPaymentFromCustomer,
		Ref:           PaymentFromCustomerRef(uuid.NewString()),
		CrAmount:      req.Amount,
		Details:       strings.TrimSpace(req.Description),
		EffectiveDate: req.Date,
	})
}

// DeletePayment reverses an ad-hoc payment or receiving by its ref.
func (e *Engine) DeletePayment(ctx context.Context, ref Ref) (Reversal, error) {
	if ref.Type != RefPaymentToParty && ref.Type != RefPaymentFromCustomer {
		return Reversal{}, Invalid("referenceType", "%s is not a payment reference", ref.Type)
	}
	rows, err := e.store.EntriesByRef(ctx, ref)
	if err != nil {
		return Reversal{}, err
	}
	if len(rows) == 0 {
		return Reversal{}, &NotFoundError{Kind: "payment", ID: ref.ID}
	}
	return e.DeleteTransaction(ctx, ref, rows[0].AccountID)
}
