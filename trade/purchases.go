package trade

import (
	"context"
	"fmt"
	"strings"

	"github.com/warp/books/ledger"
)

func vehicle(v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", ledger.Invalid("vehicleNumber", "vehicle number is required")
	}
	return v, nil
}

// CreatePurchase records a purchase from a supplier and posts its entries.
func (s *Service) CreatePurchase(ctx context.Context, in Input) (Purchase, error) {
	t, err := purchaseSide.build(in)
	if err != nil {
		return Purchase{}, err
	}
	v, err := vehicle(in.VehicleNumber)
	if err != nil {
		return Purchase{}, err
	}

	var p Purchase
	err = s.inTx(ctx, func(tx ledger.Store, ts Store) error {
		locked, err := tx.LockAccounts(ctx, t.AccountID)
		if err != nil {
			return err
		}
		if err := purchaseSide.checkAccount(locked[0]); err != nil {
			return err
		}
		p, err = ts.CreatePurchase(ctx, Purchase{Trade: t, VehicleNumber: v})
		if err != nil {
			return fmt.Errorf("create purchase: %w", err)
		}
		if err := purchaseSide.post(ctx, tx, locked[0], &p.Trade); err != nil {
			return err
		}
		return ts.UpdatePurchase(ctx, p)
	})
	if err != nil {
		return Purchase{}, err
	}
	s.logChange(ctx, purchaseSide, "created", p.Trade)
	return p, nil
}

func (s *Service) GetPurchase(ctx context.Context, id int64) (Purchase, error) {
	r, err := s.reader()
	if err != nil {
		return Purchase{}, err
	}
	return r.GetPurchase(ctx, id)
}

func (s *Service) ListPurchases(ctx context.Context, f Filter) ([]Purchase, error) {
	if err := dateRange(f); err != nil {
		return nil, err
	}
	r, err := s.reader()
	if err != nil {
		return nil, err
	}
	return r.ListPurchases(ctx, f)
}

// UpdatePurchase applies patch, reverses the old entries, and reposts the
// purchase under the same ref.
func (s *Service) UpdatePurchase(ctx context.Context, id int64, patch Patch) (Purchase, error) {
	var p Purchase
	var rev ledger.Reversal
	err := s.inTx(ctx, func(tx ledger.Store, ts Store) error {
		old, err := ts.GetPurchase(ctx, id)
		if err != nil {
			return err
		}
		next, err := purchaseSide.apply(old.Trade, patch)
		if err != nil {
			return err
		}
		v := old.VehicleNumber
		if patch.VehicleNumber != nil {
			if v, err = vehicle(*patch.VehicleNumber); err != nil {
				return err
			}
		}
		rev, err = purchaseSide.repost(ctx, tx, old.Trade, &next)
		if err != nil {
			return err
		}
		p = Purchase{Trade: next, VehicleNumber: v}
		return ts.UpdatePurchase(ctx, p)
	})
	if err != nil {
		return Purchase{}, err
	}
	s.engine.LogReversal(ctx, ledger.PurchaseRef(id), rev)
	s.logChange(ctx, purchaseSide, "updated", p.Trade)
	return s.GetPurchase(ctx, id)
}

// DeletePurchase reverses the entries of the purchase and removes it.
func (s *Service) DeletePurchase(ctx context.Context, id int64) (ledger.Reversal, error) {
	var rev ledger.Reversal
	err := s.inTx(ctx, func(tx ledger.Store, ts Store) error {
		p, err := ts.GetPurchase(ctx, id)
		if err != nil {
			return err
		}
		rev, err = purchaseSide.remove(ctx, tx, p.Trade)
		if err != nil {
			return err
		}
		return ts.DeletePurchase(ctx, id)
	})
	if err != nil {
		return ledger.Reversal{}, err
	}
	s.engine.LogReversal(ctx, ledger.PurchaseRef(id), rev)
	return rev, nil
}
