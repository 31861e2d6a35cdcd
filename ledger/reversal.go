/*
reversal.go - Delete and recompute of posted transactions

PURPOSE:
  Editing or deleting a sale, purchase, payment, or journal removes the
  entries its Ref tagged and restores the chain:

    1. Find the account's entries with the Ref, id ascending
    2. balanceBefore = opening balance of the first one
       (no entries: closing of the last entry dated before fallbackAt, or 0)
    3. Delete them
    4. Re-chain every later entry of the account from balanceBefore
    5. account.balance = closing of the new tail (0 with no entries)

  When the reversed transaction was the tail, step 4 is a no-op and the
  new balance is balanceBefore.

RE-CHAIN:
  Re-chaining rewrites only the opening/closing snapshots of the later
  entries; their amounts, dates, and refs are untouched. An entry whose
  snapshots already match is not written.

SEE ALSO:
  - posting.go:   the forward operation
  - trade/:       UpdateSale / UpdatePurchase = Reverse + AppendChain
*/
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Reversal describes what Reverse removed and where it left the account.
type Reversal struct {
	AccountID     AccountID
	Removed       []Entry
	BalanceBefore decimal.Decimal
	Balance       decimal.Decimal
	Rechained     int
}

// Reverse removes the entries tagged ref on acct inside the caller's
// transaction. The caller must hold the account lock.
func Reverse(ctx context.Context, s Store, acct Account, ref Ref, fallbackAt time.Time) (Reversal, error) {
	all, err := s.EntriesByRef(ctx, ref)
	if err != nil {
		return Reversal{}, fmt.Errorf("load entries for %s: %w", ref, err)
	}
	var rows []Entry
	for _, e := range all {
		if e.AccountID == acct.ID {
			rows = append(rows, e)
		}
	}

	rev := Reversal{AccountID: acct.ID, Removed: rows}
	if len(rows) > 0 {
		rev.BalanceBefore = rows[0].OpeningBalance
	} else if !fallbackAt.IsZero() {
		prev, ok, err := s.LatestEntryBefore(ctx, acct.ID, fallbackAt)
		if err != nil {
			return Reversal{}, err
		}
		if ok {
			rev.BalanceBefore = prev.ClosingBalance
		}
	}

	ids := make([]EntryID, len(rows))
	for i, e := range rows {
		ids[i] = e.ID
	}
	if len(ids) > 0 {
		if err := s.DeleteEntries(ctx, ids...); err != nil {
			return Reversal{}, fmt.Errorf("delete entries for %s: %w", ref, err)
		}
	}

	var after EntryID
	if len(rows) > 0 {
		after = rows[0].ID
	}
	balance, n, err := rechain(ctx, s, acct, after, rev.BalanceBefore, len(rows) > 0)
	if err != nil {
		return Reversal{}, err
	}
	rev.Balance, rev.Rechained = balance, n
	return rev, nil
}

// rechain recomputes the snapshots of every entry with id > after,
// starting from start, then writes the cached balance. With rewrite false
// nothing after the tail changed and only the balance is refreshed.
func rechain(ctx context.Context, s Store, acct Account, after EntryID, start decimal.Decimal, rewrite bool) (decimal.Decimal, int, error) {
	entries, err := s.Entries(ctx, acct.ID)
	if err != nil {
		return decimal.Zero, 0, fmt.Errorf("load chain of account %d: %w", acct.ID, err)
	}

	balance := decimal.Zero
	running := start
	written := 0
	for _, e := range entries {
		if !rewrite || e.ID <= after {
			balance = e.ClosingBalance
			continue
		}
		opening := running
		if e.Type == EntryOpeningBalance {
			opening = decimal.Zero
		}
		closing := Round(opening.Add(SignedDelta(acct.Type, e.DrAmount, e.CrAmount)))
		if !e.OpeningBalance.Equal(opening) || !e.ClosingBalance.Equal(closing) {
			e.OpeningBalance, e.ClosingBalance = opening, closing
			if err := s.UpdateEntry(ctx, e); err != nil {
				return decimal.Zero, 0, fmt.Errorf("rechain entry %d: %w", e.ID, err)
			}
			written++
		}
		running = closing
		balance = closing
	}

	if err := s.SetBalance(ctx, acct.ID, balance); err != nil {
		return decimal.Zero, 0, fmt.Errorf("set balance of account %d: %w", acct.ID, err)
	}
	return balance, written, nil
}

// DeleteTransaction removes every entry tagged ref on the account in one
// transaction and recomputes the account.
func (e *Engine) DeleteTransaction(ctx context.Context, ref Ref, accountID AccountID) (Reversal, error) {
	var rev Reversal
	err := e.InTx(ctx, func(s Store) error {
		accts, err := s.LockAccounts(ctx, accountID)
		if err != nil {
			return err
		}
		rev, err = Reverse(ctx, s, accts[0], ref, time.Time{})
		if err != nil {
			return err
		}
		if len(rev.Removed) == 0 {
			return &NotFoundError{Kind: "transaction", ID: ref.String()}
		}
		return nil
	})
	if err != nil {
		return Reversal{}, err
	}
	e.LogReversal(ctx, ref, rev)
	return rev, nil
}

// LogReversal logs a completed reversal. Packages that call Reverse inside
// their own transaction use it after commit.
func (e *Engine) LogReversal(ctx context.Context, ref Ref, rev Reversal) {
	e.logger.InfoContext(ctx, "transaction reversed",
		"ref", ref.String(), "account_id", rev.AccountID, "removed", len(rev.Removed),
		"rechained", rev.Rechained, "balance", rev.Balance.StringFixed(MoneyPlaces))
}
