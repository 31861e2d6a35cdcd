package trade

import (
	"context"
	"fmt"

	"github.com/warp/books/ledger"
)

// CreateSale records a sale to a customer and posts its entries.
func (s *Service) CreateSale(ctx context.Context, in Input) (Sale, error) {
	t, err := saleSide.build(in)
	if err != nil {
		return Sale{}, err
	}

	var sale Sale
	err = s.inTx(ctx, func(tx ledger.Store, ts Store) error {
		locked, err := tx.LockAccounts(ctx, t.AccountID)
		if err != nil {
			return err
		}
		if err := saleSide.checkAccount(locked[0]); err != nil {
			return err
		}
		sale, err = ts.CreateSale(ctx, Sale{Trade: t})
		if err != nil {
			return fmt.Errorf("create sale: %w", err)
		}
		if err := saleSide.post(ctx, tx, locked[0], &sale.Trade); err != nil {
			return err
		}
		return ts.UpdateSale(ctx, sale)
	})
	if err != nil {
		return Sale{}, err
	}
	s.logChange(ctx, saleSide, "created", sale.Trade)
	return sale, nil
}

func (s *Service) GetSale(ctx context.Context, id int64) (Sale, error) {
	r, err := s.reader()
	if err != nil {
		return Sale{}, err
	}
	return r.GetSale(ctx, id)
}

func (s *Service) ListSales(ctx context.Context, f Filter) ([]Sale, error) {
	if err := dateRange(f); err != nil {
		return nil, err
	}
	r, err := s.reader()
	if err != nil {
		return nil, err
	}
	return r.ListSales(ctx, f)
}

// UpdateSale applies patch, reverses the old entries, and reposts the sale
// under the same ref. The account may change to another customer.
func (s *Service) UpdateSale(ctx context.Context, id int64, patch Patch) (Sale, error) {
	var sale Sale
	var rev ledger.Reversal
	err := s.inTx(ctx, func(tx ledger.Store, ts Store) error {
		old, err := ts.GetSale(ctx, id)
		if err != nil {
			return err
		}
		next, err := saleSide.apply(old.Trade, patch)
		if err != nil {
			return err
		}
		rev, err = saleSide.repost(ctx, tx, old.Trade, &next)
		if err != nil {
			return err
		}
		sale = Sale{Trade: next}
		return ts.UpdateSale(ctx, sale)
	})
	if err != nil {
		return Sale{}, err
	}
	s.engine.LogReversal(ctx, ledger.SaleRef(id), rev)
	s.logChange(ctx, saleSide, "updated", sale.Trade)
	return s.GetSale(ctx, id)
}

// DeleteSale reverses the entries of the sale and removes it.
func (s *Service) DeleteSale(ctx context.Context, id int64) (ledger.Reversal, error) {
	var rev ledger.Reversal
	err := s.inTx(ctx, func(tx ledger.Store, ts Store) error {
		sale, err := ts.GetSale(ctx, id)
		if err != nil {
			return err
		}
		rev, err = saleSide.remove(ctx, tx, sale.Trade)
		if err != nil {
			return err
		}
		return ts.DeleteSale(ctx, id)
	})
	if err != nil {
		return ledger.Reversal{}, err
	}
	s.engine.LogReversal(ctx, ledger.SaleRef(id), rev)
	return rev, nil
}
