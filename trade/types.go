/*
Package trade records sales to customers and purchases from suppliers and
posts them to the ledger.

PURPOSE:
  A Sale or Purchase is the business record; its ledger entries are
  derived from it and tagged SaleRef(id) / PurchaseRef(id). The record and
  its entries always commit in the same store transaction.

POSTINGS:
  Sale on a CUSTOMER_ACCOUNT:
    [SALE     dr = total]      what the customer owes goes up
    [PAYMENT  cr = payment]    only when payment > 0

  Purchase on a PARTY_ACCOUNT:
    [PURCHASE cr = total]      what we owe the supplier goes up
    [PAYMENT  dr = payment]    only when payment > 0

  Both sides are derived from ledger.SplitSigned, so this package never
  hard-codes which column an amount lands in.

EDIT AND DELETE:
  Update = ledger.Reverse on the old account + ledger.AppendChain on the
  (possibly new) account, same Ref, new date. Delete = ledger.Reverse and
  drop the record.

SEE ALSO:
  - ledger/reversal.go: Reverse and re-chain
  - store/sqlstore:     the Store implementation
*/
package trade

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/books/ledger"
)

// Trade holds the fields sales and purchases share.
type Trade struct {
	ID          int64
	AccountID   ledger.AccountID
	Date        time.Time
	Weight      decimal.Decimal
	Rate        decimal.Decimal
	TotalAmount decimal.Decimal

	// PreBalance and Balance are the account balance captured right before
	// and after this record's entries were posted.
	PreBalance decimal.Decimal
	Payment    decimal.Decimal
	Balance    decimal.Decimal

	CreatedAt time.Time
	UpdatedAt time.Time
}

type Sale struct {
	Trade
}

type Purchase struct {
	Trade
	VehicleNumber string
}

// Input is the payload for creating a sale or purchase. A nil
// TotalAmount means weight x rate.
type Input struct {
	AccountID     ledger.AccountID
	Date          time.Time
	Weight        decimal.Decimal
	Rate          decimal.Decimal
	TotalAmount   *decimal.Decimal
	Payment       decimal.Decimal
	VehicleNumber string // purchases only
}

// Patch edits a sale or purchase. Nil fields are left unchanged. Changing
// weight or rate without a total recomputes the total.
type Patch struct {
	AccountID     *ledger.AccountID
	Date          *time.Time
	Weight        *decimal.Decimal
	Rate          *decimal.Decimal
	TotalAmount   *decimal.Decimal
	Payment       *decimal.Decimal
	VehicleNumber *string
}

// Filter selects records for listing. Zero values mean "no filter".
type Filter struct {
	AccountID ledger.AccountID
	From      *time.Time
	To        *time.Time
}

// Total returns weight x rate rounded to money places.
func Total(weight, rate decimal.Decimal) decimal.Decimal {
	return ledger.Round(weight.Mul(rate))
}
