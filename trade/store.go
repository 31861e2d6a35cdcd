package trade

import (
	"context"

	"github.com/warp/books/ledger"
)

// Store extends ledger.Store with sale and purchase records. The Service
// type-asserts the transaction-scoped ledger.Store to this interface.
type Store interface {
	ledger.Store

	CreateSale(ctx context.Context, s Sale) (Sale, error)
	// GetSale returns a *ledger.NotFoundError if the sale does not exist.
	GetSale(ctx context.Context, id int64) (Sale, error)
	UpdateSale(ctx context.Context, s Sale) error
	DeleteSale(ctx context.Context, id int64) error
	// ListSales returns date desc, then id desc.
	ListSales(ctx context.Context, f Filter) ([]Sale, error)

	CreatePurchase(ctx context.Context, p Purchase) (Purchase, error)
	GetPurchase(ctx context.Context, id int64) (Purchase, error)
	UpdatePurchase(ctx context.Context, p Purchase) error
	DeletePurchase(ctx context.Context, id int64) error
	ListPurchases(ctx context.Context, f Filter) ([]Purchase, error)
}

// asStore narrows a transaction-scoped store.
func asStore(s ledger.Store) (Store, error) {
	ts, ok := s.(Store)
	if !ok {
		return nil, ledger.ErrStoreRequired
	}
	return ts, nil
}
