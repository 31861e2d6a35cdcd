/*
reconcile.go - Chain replay, consistency checks, and repair

PURPOSE:
  The cached balance and the entry snapshots are derived state. Reconcile
  replays an account's chain from 0 and reports every place where the
  stored numbers disagree with the replay:

    - entry.opening != previous entry's closing (0 for the first)
    - entry.closing != entry.opening + SignedDelta
    - account.balance != closing of the tail

  Reconcile only reads. RepairAccount is the explicit operator action
  that rewrites the snapshots and the cached balance from the replay.

SEE ALSO:
  - api/scheduler.go: periodic CheckConsistency
*/
package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// ReconcileReport is the outcome of replaying one account.
type ReconcileReport struct {
	AccountID  AccountID
	Cached     decimal.Decimal // account.balance
	LedgerTail decimal.Decimal // closing of the highest-id entry
	Replayed   decimal.Decimal // closing recomputed from 0
	Entries    int
	Breaks     []InvariantViolationError
}

func (r ReconcileReport) Consistent() bool { return len(r.Breaks) == 0 }

// Err returns the first break as an error, or nil.
func (r ReconcileReport) Err() error {
	if r.Consistent() {
		return nil
	}
	b := r.Breaks[0]
	return &b
}

// Reconcile replays the chain of one account.
func (e *Engine) Reconcile(ctx context.Context, accountID AccountID) (ReconcileReport, error) {
	acct, err := e.store.GetAccount(ctx, accountID)
	if err != nil {
		return ReconcileReport{}, err
	}
	entries, err := e.store.Entries(ctx, accountID)
	if err != nil {
		return ReconcileReport{}, fmt.Errorf("load chain of account %d: %w", accountID, err)
	}
	return replay(acct, entries), nil
}

func replay(acct Account, entries []Entry) ReconcileReport {
	rep := ReconcileReport{AccountID: acct.ID, Cached: acct.Balance, Entries: len(entries)}
	running := decimal.Zero
	for _, en := range entries {
		if en.Type == EntryOpeningBalance {
			running = decimal.Zero
		}
		if !en.OpeningBalance.Equal(running) {
			rep.Breaks = append(rep.Breaks, InvariantViolationError{
				AccountID: acct.ID, EntryID: en.ID, Field: "opening_balance",
				Expected: running, Actual: en.OpeningBalance,
			})
		}
		want := Round(en.OpeningBalance.Add(SignedDelta(acct.Type, en.DrAmount, en.CrAmount)))
		if !en.ClosingBalance.Equal(want) {
			rep.Breaks = append(rep.Breaks, InvariantViolationError{
				AccountID: acct.ID, EntryID: en.ID, Field: "closing_balance",
				Expected: want, Actual: en.ClosingBalance,
			})
		}
		running = Round(running.Add(SignedDelta(acct.Type, en.DrAmount, en.CrAmount)))
		rep.LedgerTail = en.ClosingBalance
	}
	rep.Replayed = running
	if !acct.Balance.Equal(rep.LedgerTail) {
		rep.Breaks = append(rep.Breaks, InvariantViolationError{
			AccountID: acct.ID, Field: "balance",
			Expected: rep.LedgerTail, Actual: acct.Balance,
		})
	}
	return rep
}

// CheckConsistency reconciles every account and returns the reports that
// found breaks. Each break is logged at error level.
func (e *Engine) CheckConsistency(ctx context.Context) ([]ReconcileReport, error) {
	accts, err := e.store.ListAccounts(ctx, AccountFilter{})
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	var bad []ReconcileReport
	for _, acct := range accts {
		if err := ctx.Err(); err != nil {
			return bad, err
		}
		entries, err := e.store.Entries(ctx, acct.ID)
		if err != nil {
			return bad, fmt.Errorf("load chain of account %d: %w", acct.ID, err)
		}
		rep := replay(acct, entries)
		if rep.Consistent() {
			continue
		}
		for _, b := range rep.Breaks {
			e.logger.ErrorContext(ctx, "ledger invariant violated",
				"account_id", b.AccountID, "entry_id", b.EntryID, "field", b.Field,
				"expected", b.Expected.StringFixed(MoneyPlaces), "actual", b.Actual.StringFixed(MoneyPlaces))
		}
		bad = append(bad, rep)
	}
	return bad, nil
}

// RepairAccount re-chains the whole account from 0 and rewrites the cached
// balance. Amounts are never changed.
func (e *Engine) RepairAccount(ctx context.Context, accountID AccountID) (ReconcileReport, error) {
	var rep ReconcileReport
	err := e.InTx(ctx, func(s Store) error {
		accts, err := s.LockAccounts(ctx, accountID)
		if err != nil {
			return err
		}
		balance, n, err := rechain(ctx, s, accts[0], 0, decimal.Zero, true)
		if err != nil {
			return err
		}
		e.logger.WarnContext(ctx, "account repaired", "account_id", accountID,
			"rewritten", n, "balance", balance.StringFixed(MoneyPlaces))

		acct, err := s.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		entries, err := s.Entries(ctx, accountID)
		if err != nil {
			return err
		}
		rep = replay(acct, entries)
		return nil
	})
	if err != nil {
		return ReconcileReport{}, err
	}
	return rep, nil
}
