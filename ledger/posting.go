/*
posting.go - Chained posting of new entries

PURPOSE:
  Appends entries to the tail of an account's chain:

    opening = closing balance of the highest-id entry (0 if none)
    closing = opening + SignedDelta(account type, dr, cr)
    account.balance = closing of the last entry written

  OPENING_BALANCE is the one exception to "opening = tail": it opens at 0
  and is only accepted as the first entry of the account, so the chain
  still starts at 0.

COMPOSITE POSTINGS:
  A sale with a partial payment is two entries (SALE then PAYMENT) sharing
  one Ref. AppendChain writes them back to back in the caller's
  transaction; the second opens at the first's closing.

SEE ALSO:
  - sign.go:     SignedDelta
  - reversal.go: the inverse operation
*/
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Posting is one entry to be written.
type Posting struct {
	AccountID      AccountID
	Type           EntryType
	Ref            Ref
	DrAmount       decimal.Decimal
	CrAmount       decimal.Decimal
	Details        string
	EffectiveDate  time.Time
	IdempotencyKey string
}

// Post writes a single entry in its own transaction. A zero Ref becomes a
// fresh MANUAL reference. The caller owns the reference; user input goes
// through PostManual.
func (e *Engine) Post(ctx context.Context, p Posting) (Entry, error) {
	if p.Ref.IsZero() {
		p.Ref = ManualRef(uuid.NewString())
	}
	p.EffectiveDate = e.effectiveDate(p.EffectiveDate)

	var posted Entry
	err := e.InTx(ctx, func(s Store) error {
		accts, err := s.LockAccounts(ctx, p.AccountID)
		if err != nil {
			return err
		}
		entries, err := AppendChain(ctx, s, accts[0], p)
		if err != nil {
			return err
		}
		posted = entries[0]
		return nil
	})
	if err != nil {
		return Entry{}, err
	}
	e.logger.DebugContext(ctx, "entry posted",
		"account_id", posted.AccountID, "entry_id", posted.ID, "type", posted.Type,
		"ref", posted.Ref.String(), "closing", posted.ClosingBalance.StringFixed(MoneyPlaces))
	return posted, nil
}

// PostManual is Post for user-entered rows. Only MANUAL references are
// accepted, and a zero Ref gets a fresh one. Every other reference type
// belongs to the record that produced it and is reversed with that record.
func (e *Engine) PostManual(ctx context.Context, p Posting) (Entry, error) {
	if !p.Ref.IsZero() && p.Ref.Type != RefManual {
		return Entry{}, Invalid("referenceType", "manual entries may only carry a %s reference, got %s", RefManual, p.Ref.Type)
	}
	return e.Post(ctx, p)
}

// PostChain writes postings for one account as a chain in one transaction.
func (e *Engine) PostChain(ctx context.Context, accountID AccountID, postings []Posting) ([]Entry, error) {
	if len(postings) == 0 {
		return nil, Invalid("postings", "at least one posting is required")
	}
	for i := range postings {
		postings[i].AccountID = accountID
		postings[i].EffectiveDate = e.effectiveDate(postings[i].EffectiveDate)
	}

	var posted []Entry
	err := e.InTx(ctx, func(s Store) error {
		accts, err := s.LockAccounts(ctx, accountID)
		if err != nil {
			return err
		}
		posted, err = AppendChain(ctx, s, accts[0], postings...)
		return err
	})
	if err != nil {
		return nil, err
	}
	e.logger.DebugContext(ctx, "chain posted", "account_id", accountID, "entries", len(posted))
	return posted, nil
}

// AppendChain writes postings to the tail of acct inside the caller's
// transaction and sets the cached balance to the final closing balance.
// The caller must hold the account lock.
func AppendChain(ctx context.Context, s Store, acct Account, postings ...Posting) ([]Entry, error) {
	tail, hasTail, err := s.LatestEntry(ctx, acct.ID)
	if err != nil {
		return nil, fmt.Errorf("load tail of account %d: %w", acct.ID, err)
	}
	running := decimal.Zero
	if hasTail {
		running = tail.ClosingBalance
	}

	out := make([]Entry, 0, len(postings))
	for _, p := range postings {
		if err := validatePosting(acct, p); err != nil {
			return nil, err
		}
		if p.Type == EntryOpeningBalance {
			if err := checkOpeningSlot(ctx, s, acct.ID, hasTail || len(out) > 0); err != nil {
				return nil, err
			}
			running = decimal.Zero
		}

		dr, cr := Round(p.DrAmount), Round(p.CrAmount)
		closing := Round(running.Add(SignedDelta(acct.Type, dr, cr)))
		entry, err := s.AppendEntry(ctx, Entry{
			AccountID:      acct.ID,
			DrAmount:       dr,
			CrAmount:       cr,
			Details:        p.Details,
			Type:           p.Type,
			Ref:            p.Ref,
			OpeningBalance: running,
			ClosingBalance: closing,
			CreatedAt:      p.EffectiveDate,
			IdempotencyKey: p.IdempotencyKey,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
		running = closing
	}

	if err := s.SetBalance(ctx, acct.ID, running); err != nil {
		return nil, fmt.Errorf("set balance of account %d: %w", acct.ID, err)
	}
	return out, nil
}

func validatePosting(acct Account, p Posting) error {
	if p.AccountID != acct.ID {
		return Invalid("accountId", "posting for account %d applied to account %d", p.AccountID, acct.ID)
	}
	if !p.Type.Valid() {
		return Invalid("type", "unknown entry type %q", p.Type)
	}
	if p.Ref.IsZero() || !p.Ref.Type.Valid() {
		return Invalid("reference", "a typed reference is required")
	}
	if p.DrAmount.IsNegative() || p.CrAmount.IsNegative() {
		return Invalid("amount", "drAmount and crAmount must not be negative")
	}
	if p.DrAmount.IsZero() && p.CrAmount.IsZero() &&
		p.Type != EntryManual && p.Type != EntryOpeningBalance {
		return Invalid("amount", "drAmount or crAmount is required")
	}
	if p.EffectiveDate.IsZero() {
		return Invalid("date", "effective date is required")
	}
	return CheckAccountType(p.Type, acct)
}

// checkOpeningSlot enforces that OPENING_BALANCE heads the chain.
func checkOpeningSlot(ctx context.Context, s Store, id AccountID, hasEntries bool) error {
	_, exists, err := s.FindEntryByType(ctx, id, EntryOpeningBalance)
	if err != nil {
		return err
	}
	if exists {
		return ErrDuplicateOpeningBalance
	}
	if hasEntries {
		return Invalid("type", "account %d already has entries; an opening balance must be its first entry", id)
	}
	return nil
}
