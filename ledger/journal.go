/*
journal.go - Paired transfers between two accounts

PURPOSE:
  A journal moves an amount from one account to another. It is written as
  two JOURNAL entries tagged with the same JournalRef:

    debit account:  dr = amount
    credit account: cr = amount

  Each leg goes through SignedDelta with its own account's type, so a
  journal that debits a customer raises what they owe us, and one that
  credits a supplier raises what we owe them.

LOCKING:
  Both accounts are locked through LockAccounts, which orders by id. Two
  journals between the same pair in opposite directions therefore lock in
  the same order.

SEE ALSO:
  - reversal.go: DeleteJournal reverses both legs
*/
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type JournalRequest struct {
	DebitAccountID  AccountID
	CreditAccountID AccountID
	Amount          decimal.Decimal
	Description     string
	Date            time.Time
}

// PreBalances are the cached balances captured before the journal posted.
type PreBalances struct {
	Debit  decimal.Decimal
	Credit decimal.Decimal
}

type JournalResult struct {
	Journal     Journal
	PreBalances PreBalances
	DebitEntry  Entry
	CreditEntry Entry
}

func (r JournalRequest) validate() error {
	if r.DebitAccountID == 0 {
		return Invalid("debitAccountId", "debit account is required")
	}
	if r.CreditAccountID == 0 {
		return Invalid("creditAccountId", "credit account is required")
	}
	if r.DebitAccountID == r.CreditAccountID {
		return Invalid("creditAccountId", "debit and credit accounts must differ")
	}
	if !r.Amount.IsPositive() {
		return Invalid("amount", "amount must be greater than zero")
	}
	if strings.TrimSpace(r.Description) == "" {
		return Invalid("description", "description is required")
	}
	return nil
}

// PostJournal records the journal and its two legs in one transaction.
func (e *Engine) PostJournal(ctx context.Context, req JournalRequest) (JournalResult, error) {
	if err := req.validate(); err != nil {
		return JournalResult{}, err
	}
	amount := Round(req.Amount)
	date := e.effectiveDate(req.Date)

	var res JournalResult
	err := e.InTx(ctx, func(s Store) error {
		locked, err := s.LockAccounts(ctx, req.DebitAccountID, req.CreditAccountID)
		if err != nil {
			return err
		}
		debit, credit := pick(locked, req.DebitAccountID), pick(locked, req.CreditAccountID)
		res.PreBalances = PreBalances{Debit: debit.Balance, Credit: credit.Balance}

		j, err := s.CreateJournal(ctx, Journal{
			DebitAccountID:  debit.ID,
			CreditAccountID: credit.ID,
			Amount:          amount,
			Description:     strings.TrimSpace(req.Description),
			CreatedAt:       date,
		})
		if err != nil {
			return fmt.Errorf("create journal: %w", err)
		}
		res.Journal = j

		ref := JournalRef(j.ID)
		dr, err := AppendChain(ctx, s, debit, Posting{
			AccountID: debit.ID, Type: EntryJournal, Ref: ref,
			DrAmount: amount, Details: j.Description, EffectiveDate: date,
		})
		if err != nil {
			return err
		}
		cr, err := AppendChain(ctx, s, credit, Posting{
			AccountID: credit.ID, Type: EntryJournal, Ref: ref,
			CrAmount: amount, Details: j.Description, EffectiveDate: date,
		})
		if err != nil {
			return err
		}
		res.DebitEntry, res.CreditEntry = dr[0], cr[0]
		return nil
	})
	if err != nil {
		return JournalResult{}, err
	}
	e.logger.InfoContext(ctx, "journal posted", "journal_id", res.Journal.ID,
		"debit_account_id", req.DebitAccountID, "credit_account_id", req.CreditAccountID,
		"amount", amount.StringFixed(MoneyPlaces))
	return res, nil
}

func (e *Engine) GetJournal(ctx context.Context, id JournalID) (Journal, error) {
	return e.store.GetJournal(ctx, id)
}

// JournalPage is one page of journals, newest first.
type JournalPage struct {
	Journals   []Journal
	Pagination Pagination
}

func (e *Engine) ListJournals(ctx context.Context, filter JournalFilter) (JournalPage, error) {
	filter.Page, filter.Limit = NormalizePage(filter.Page, filter.Limit)
	js, total, err := e.store.ListJournals(ctx, filter)
	if err != nil {
		return JournalPage{}, err
	}
	return JournalPage{Journals: js, Pagination: NewPagination(filter.Page, filter.Limit, total)}, nil
}

// DeleteJournal reverses both legs and removes the journal.
func (e *Engine) DeleteJournal(ctx context.Context, id JournalID) ([]Reversal, error) {
	var revs []Reversal
	ref := JournalRef(id)
	err := e.InTx(ctx, func(s Store) error {
		j, err := s.GetJournal(ctx, id)
		if err != nil {
			return err
		}
		locked, err := s.LockAccounts(ctx, j.DebitAccountID, j.CreditAccountID)
		if err != nil {
			return err
		}
		for _, acct := range locked {
			rev, err := Reverse(ctx, s, acct, ref, j.CreatedAt)
			if err != nil {
				return err
			}
			revs = append(revs, rev)
		}
		return s.DeleteJournal(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	for _, rev := range revs {
		e.LogReversal(ctx, ref, rev)
	}
	return revs, nil
}

func pick(accts []Account, id AccountID) Account {
	for _, a := range accts {
		if a.ID == id {
			return a
		}
	}
	return Account{}
}
