package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// OpeningBalanceResult is the outcome of SetOpeningBalance.
type OpeningBalanceResult struct {
	Entry     Entry
	Created   bool // false when an existing row was rewritten
	Balance   decimal.Decimal
	Rechained int
}

// SetOpeningBalance creates or rewrites the OPENING_BALANCE entry of an
// account. accountType must match the stored type. A rewrite re-chains
// every later entry so the cached balance stays equal to the tail.
func (e *Engine) SetOpeningBalance(ctx context.Context, accountID AccountID, amount decimal.Decimal, accountType AccountType) (OpeningBalanceResult, error) {
	if !accountType.Valid() {
		return OpeningBalanceResult{}, Invalid("accountType", "unknown account type %q", accountType)
	}
	amount = Round(amount)

	var res OpeningBalanceResult
	err := e.InTx(ctx, func(s Store) error {
		accts, err := s.LockAccounts(ctx, accountID)
		if err != nil {
			return err
		}
		acct := accts[0]
		if acct.Type != accountType {
			return Invalid("accountType", "account %d is %s, not %s", acct.ID, acct.Type, accountType)
		}

		dr, cr := SplitSigned(acct.Type, amount)
		details := openingDetails(acct.Type, amount)

		existing, ok, err := s.FindEntryByType(ctx, acct.ID, EntryOpeningBalance)
		if err != nil {
			return err
		}
		if !ok {
			entries, err := AppendChain(ctx, s, acct, Posting{
				AccountID:     acct.ID,
				Type:          EntryOpeningBalance,
				Ref:           AccountCreationRef(acct.ID),
				DrAmount:      dr,
				CrAmount:      cr,
				Details:       details,
				EffectiveDate: e.Now(),
			})
			if err != nil {
				return err
			}
			res = OpeningBalanceResult{Entry: entries[0], Created: true, Balance: entries[0].ClosingBalance}
			return nil
		}

		existing.DrAmount, existing.CrAmount, existing.Details = dr, cr, details
		existing.OpeningBalance = decimal.Zero
		existing.ClosingBalance = amount
		if err := s.UpdateEntry(ctx, existing); err != nil {
			return fmt.Errorf("rewrite opening balance %d: %w", existing.ID, err)
		}
		balance, n, err := rechain(ctx, s, acct, 0, decimal.Zero, true)
		if err != nil {
			return err
		}
		res = OpeningBalanceResult{Entry: existing, Balance: balance, Rechained: n}
		return nil
	})
	if err != nil {
		return OpeningBalanceResult{}, err
	}
	e.logger.InfoContext(ctx, "opening balance set", "account_id", accountID,
		"amount", amount.StringFixed(MoneyPlaces), "created", res.Created, "balance", res.Balance.StringFixed(MoneyPlaces))
	return res, nil
}

func openingDetails(t AccountType, amount decimal.Decimal) string {
	who := "Customer owes us"
	switch t {
	case PartyAccount:
		who = "We owe supplier"
	case Cash:
		who = "Cash on hand"
	}
	return fmt.Sprintf("Opening Balance: %s (%s)", amount.StringFixed(MoneyPlaces), who)
}
