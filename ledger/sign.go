/*
sign.go - Type-aware sign convention, balance labels, display order

PURPOSE:
  A balance is always stored as a signed number in the account's natural
  direction. What "positive" means depends on the account type:

    PARTY_ACCOUNT     balance = what we owe the supplier   delta = cr - dr
    CUSTOMER_ACCOUNT  balance = what the customer owes us  delta = dr - cr
    CASH              balance = cash on hand               delta = dr - cr

  Every piece of code that turns dr/cr into a balance movement goes
  through SignedDelta. Nothing else in the module knows the convention.

LABELS:
  Labels are derived from the stored opening/closing snapshots, so a page
  of entries is labeled in O(1) per row without replaying the chain.
*/
package ledger

import (
	"cmp"

	"github.com/shopspring/decimal"
)

// SignedDelta returns the balance movement of one dr/cr pair.
func SignedDelta(t AccountType, dr, cr decimal.Decimal) decimal.Decimal {
	if t == PartyAccount {
		return cr.Sub(dr)
	}
	return dr.Sub(cr)
}

// SplitSigned returns the (dr, cr) pair whose SignedDelta is amount.
// A negative amount lands on the opposite side.
func SplitSigned(t AccountType, amount decimal.Decimal) (dr, cr decimal.Decimal) {
	positive, negative := amount, decimal.Zero
	if amount.IsNegative() {
		positive, negative = decimal.Zero, amount.Neg()
	}
	if t == PartyAccount {
		return negative, positive
	}
	return positive, negative
}

// allowedAccounts restricts entry types that only make sense on one side.
// Types not listed post to any account.
var allowedAccounts = map[EntryType]AccountType{
	EntrySale:                CustomerAccount,
	EntryPurchase:            PartyAccount,
	EntryPaymentToParty:      PartyAccount,
	EntryPaymentFromCustomer: CustomerAccount,
}

// CheckAccountType rejects an entry type posted against the wrong kind of
// account, e.g. a SALE against a supplier.
func CheckAccountType(t EntryType, acct Account) error {
	want, ok := allowedAccounts[t]
	if !ok || acct.Type == want {
		return nil
	}
	return Invalid("accountId", "%s entries require a %s account, account %d is %s", t, want, acct.ID, acct.Type)
}

// =============================================================================
// LABELS
// =============================================================================

const settledLabel = "0 (settled)"

// BalanceLabel renders a signed balance for display, e.g.
// "500.00 Cr (we owe them)".
func BalanceLabel(t AccountType, balance decimal.Decimal) string {
	b := Round(balance)
	if b.IsZero() {
		return settledLabel
	}
	abs := b.Abs().StringFixed(MoneyPlaces)
	switch {
	case t == PartyAccount && b.IsPositive():
		return abs + " Cr (we owe them)"
	case t == PartyAccount:
		return abs + " Dr (advance)"
	case b.IsPositive():
		return abs + " Dr (they owe us)"
	default:
		return abs + " Cr (we owe them)"
	}
}

// LabeledEntry is an entry with display balances.
type LabeledEntry struct {
	Entry
	AccountType AccountType
	PreBalance  decimal.Decimal // absolute value
	PreLabel    string
	PostBalance decimal.Decimal // absolute value
	PostLabel   string
}

// LabelEntries attaches labels to entries. accountTypes maps each entry's
// account to its type; a missing account falls back to the customer
// convention.
func LabelEntries(entries []Entry, accountTypes map[AccountID]AccountType) []LabeledEntry {
	out := make([]LabeledEntry, len(entries))
	for i, e := range entries {
		t, ok := accountTypes[e.AccountID]
		if !ok {
			t = CustomerAccount
		}
		out[i] = LabeledEntry{
			Entry:       e,
			AccountType: t,
			PreBalance:  Round(e.OpeningBalance).Abs(),
			PreLabel:    BalanceLabel(t, e.OpeningBalance),
			PostBalance: Round(e.ClosingBalance).Abs(),
			PostLabel:   BalanceLabel(t, e.ClosingBalance),
		}
	}
	return out
}

// =============================================================================
// DISPLAY ORDER
// =============================================================================

// DisplayOrder compares two entries for listing: createdAt descending,
// then id descending. Use with slices.SortFunc.
func DisplayOrder(a, b Entry) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(b.ID, a.ID)
}
