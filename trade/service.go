package trade

import (
	"context"
	"fmt"

	"github.com/warp/books/ledger"
)

// =============================================================================
// SERVICE
// =============================================================================

// Service posts sales and purchases through the ledger engine. Its store
// must implement Store; otherwise every call fails with
// ledger.ErrStoreRequired.
type Service struct {
	engine *ledger.Engine
}

func NewService(engine *ledger.Engine) *Service {
	return &Service{engine: engine}
}

func (s *Service) reader() (Store, error) {
	return asStore(s.engine.Store())
}

// inTx runs fn in one bounded engine transaction with the wide store.
func (s *Service) inTx(ctx context.Context, fn func(ledger.Store, Store) error) error {
	return s.engine.InTx(ctx, func(tx ledger.Store) error {
		ts, err := asStore(tx)
		if err != nil {
			return err
		}
		return fn(tx, ts)
	})
}

// =============================================================================
// SIDES - what differs between a sale and a purchase
// =============================================================================

type side struct {
	kind      string
	label     string
	account   ledger.AccountType
	principal ledger.EntryType
	ref       func(int64) ledger.Ref
	paidLabel string
}

var (
	saleSide = side{
		kind:      "sale",
		label:     "Sale",
		account:   ledger.CustomerAccount,
		principal: ledger.EntrySale,
		ref:       ledger.SaleRef,
		paidLabel: "Payment received",
	}
	purchaseSide = side{
		kind:      "purchase",
		label:     "Purchase",
		account:   ledger.PartyAccount,
		principal: ledger.EntryPurchase,
		ref:       ledger.PurchaseRef,
		paidLabel: "Payment to supplier",
	}
)

func (sd side) build(in Input) (Trade, error) {
	t := Trade{
		AccountID: in.AccountID,
		Date:      in.Date.UTC(),
		Weight:    in.Weight,
		Rate:      in.Rate,
		Payment:   ledger.Round(in.Payment),
	}
	if in.TotalAmount != nil {
		t.TotalAmount = ledger.Round(*in.TotalAmount)
	} else {
		t.TotalAmount = Total(in.Weight, in.Rate)
	}
	return t, validate(t)
}

func (sd side) apply(t Trade, p Patch) (Trade, error) {
	if p.AccountID != nil {
		t.AccountID = *p.AccountID
	}
	if p.Date != nil {
		t.Date = p.Date.UTC()
	}
	recompute := false
	if p.Weight != nil {
		t.Weight, recompute = *p.Weight, true
	}
	if p.Rate != nil {
		t.Rate, recompute = *p.Rate, true
	}
	switch {
	case p.TotalAmount != nil:
		t.TotalAmount = ledger.Round(*p.TotalAmount)
	case recompute:
		t.TotalAmount = Total(t.Weight, t.Rate)
	}
	if p.Payment != nil {
		t.Payment = ledger.Round(*p.Payment)
	}
	return t, validate(t)
}

func validate(t Trade) error {
	switch {
	case t.AccountID == 0:
		return ledger.Invalid("accountId", "account is required")
	case t.Date.IsZero():
		return ledger.Invalid("date", "date is required")
	case !t.Weight.IsPositive():
		return ledger.Invalid("weight", "weight must be greater than zero")
	case !t.Rate.IsPositive():
		return ledger.Invalid("rate", "rate must be greater than zero")
	case !t.TotalAmount.IsPositive():
		return ledger.Invalid("totalAmount", "total amount must be greater than zero")
	case t.Payment.IsNegative():
		return ledger.Invalid("payment", "payment must not be negative")
	}
	return nil
}

func (sd side) checkAccount(acct ledger.Account) error {
	if acct.Type != sd.account {
		return ledger.Invalid("accountId", "only %s accounts can be used for a %s, account %d is %s",
			sd.account, sd.kind, acct.ID, acct.Type)
	}
	return nil
}

// postings returns the principal entry and, with a payment, the payment
// entry that follows it.
func (sd side) postings(t Trade) []ledger.Posting {
	ref := sd.ref(t.ID)
	dr, cr := ledger.SplitSigned(sd.account, t.TotalAmount)
	out := []ledger.Posting{{
		AccountID:     t.AccountID,
		Type:          sd.principal,
		Ref:           ref,
		DrAmount:      dr,
		CrAmount:      cr,
		Details:       fmt.Sprintf("%s: %skg @ %s = %s", sd.label, t.Weight, t.Rate.StringFixed(ledger.MoneyPlaces), t.TotalAmount.StringFixed(ledger.MoneyPlaces)),
		EffectiveDate: t.Date,
	}}
	if t.Payment.IsPositive() {
		dr, cr := ledger.SplitSigned(sd.account, t.Payment.Neg())
		out = append(out, ledger.Posting{
			AccountID:     t.AccountID,
			Type:          ledger.EntryPayment,
			Ref:           ref,
			DrAmount:      dr,
			CrAmount:      cr,
			Details:       fmt.Sprintf("%s: %s", sd.paidLabel, t.Payment.StringFixed(ledger.MoneyPlaces)),
			EffectiveDate: t.Date,
		})
	}
	return out
}

// post writes the entries for t on acct and records the balances it saw.
func (sd side) post(ctx context.Context, s ledger.Store, acct ledger.Account, t *Trade) error {
	entries, err := ledger.AppendChain(ctx, s, acct, sd.postings(*t)...)
	if err != nil {
		return err
	}
	t.PreBalance = entries[0].OpeningBalance
	t.Balance = entries[len(entries)-1].ClosingBalance
	return nil
}

// repost reverses old and posts next under the same ref. The old and new
// accounts are locked together, in id order.
func (sd side) repost(ctx context.Context, s ledger.Store, old Trade, next *Trade) (ledger.Reversal, error) {
	locked, err := s.LockAccounts(ctx, old.AccountID, next.AccountID)
	if err != nil {
		return ledger.Reversal{}, err
	}
	oldAcct, newAcct := find(locked, old.AccountID), find(locked, next.AccountID)
	if err := sd.checkAccount(newAcct); err != nil {
		return ledger.Reversal{}, err
	}
	rev, err := ledger.Reverse(ctx, s, oldAcct, sd.ref(old.ID), old.CreatedAt)
	if err != nil {
		return ledger.Reversal{}, err
	}
	if err := sd.post(ctx, s, newAcct, next); err != nil {
		return ledger.Reversal{}, err
	}
	return rev, nil
}

func (sd side) remove(ctx context.Context, s ledger.Store, t Trade) (ledger.Reversal, error) {
	locked, err := s.LockAccounts(ctx, t.AccountID)
	if err != nil {
		return ledger.Reversal{}, err
	}
	return ledger.Reverse(ctx, s, locked[0], sd.ref(t.ID), t.CreatedAt)
}

func (s *Service) logChange(ctx context.Context, sd side, action string, t Trade) {
	s.engine.Logger().InfoContext(ctx, sd.kind+" "+action,
		"id", t.ID, "account_id", t.AccountID,
		"total", t.TotalAmount.StringFixed(ledger.MoneyPlaces),
		"payment", t.Payment.StringFixed(ledger.MoneyPlaces),
		"balance", t.Balance.StringFixed(ledger.MoneyPlaces))
}

func find(accts []ledger.Account, id ledger.AccountID) ledger.Account {
	for _, a := range accts {
		if a.ID == id {
			return a
		}
	}
	return ledger.Account{ID: id}
}

// dateRange rejects an inverted filter.
func dateRange(f Filter) error {
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return ledger.Invalid("endDate", "end date is before start date")
	}
	return nil
}
