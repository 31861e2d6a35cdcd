package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/warp/books/ledger"
	"github.com/warp/books/trade"
)

// =============================================================================
// SALES AND PURCHASES (trade.Store interface)
// =============================================================================

// tradeTable names the table a trade kind lives in. Sales and purchases
// share every column except vehicle_number.
type tradeTable struct {
	name    string
	kind    string
	vehicle bool
}

var (
	salesTable     = tradeTable{name: "sales", kind: "sale"}
	purchasesTable = tradeTable{name: "purchases", kind: "purchase", vehicle: true}
)

// rowID formats a trade id for ledger.NotFound.
type rowID int64

func (id rowID) String() string { return strconv.FormatInt(int64(id), 10) }

func (t tradeTable) columns() string {
	cols := `id, account_id, date, weight, rate, total_amount, pre_balance, payment, balance, created_at, updated_at`
	if t.vehicle {
		cols += `, vehicle_number`
	}
	return cols
}

func scanTrade(row scanner, vehicle *string) (trade.Trade, error) {
	var t trade.Trade
	var date, created, updated string
	dest := []any{&t.ID, &t.AccountID, &date, &t.Weight, &t.Rate, &t.TotalAmount,
		&t.PreBalance, &t.Payment, &t.Balance, &created, &updated}
	if vehicle != nil {
		dest = append(dest, vehicle)
	}
	if err := row.Scan(dest...); err != nil {
		return trade.Trade{}, err
	}
	var err error
	if t.Date, err = parseTime(date); err != nil {
		return trade.Trade{}, err
	}
	if t.CreatedAt, err = parseTime(created); err != nil {
		return trade.Trade{}, err
	}
	if t.UpdatedAt, err = parseTime(updated); err != nil {
		return trade.Trade{}, err
	}
	return t, nil
}

func (c conn) createTrade(ctx context.Context, tbl tradeTable, t trade.Trade, vehicle string) (int64, error) {
	ts := now()
	cols := `account_id, date, weight, rate, total_amount, pre_balance, payment, balance, created_at, updated_at`
	args := []any{t.AccountID, formatTime(t.Date), t.Weight, t.Rate, t.TotalAmount,
		t.PreBalance, t.Payment, t.Balance, ts, ts}
	if tbl.vehicle {
		cols += `, vehicle_number`
		args = append(args, vehicle)
	}
	id, err := c.insert(ctx, `INSERT INTO `+tbl.name+` (`+cols+`) VALUES (`+placeholders(len(args))+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("insert %s: %w", tbl.kind, err)
	}
	return id, nil
}

func (c conn) getTrade(ctx context.Context, tbl tradeTable, id int64, vehicle *string) (trade.Trade, error) {
	t, err := scanTrade(c.queryRow(ctx,
		`SELECT `+tbl.columns()+` FROM `+tbl.name+` WHERE id = ?`, id), vehicle)
	if errors.Is(err, sql.ErrNoRows) {
		return trade.Trade{}, ledger.NotFound(tbl.kind, rowID(id))
	}
	if err != nil {
		return trade.Trade{}, fmt.Errorf("get %s %d: %w", tbl.kind, id, err)
	}
	return t, nil
}

func (c conn) updateTrade(ctx context.Context, tbl tradeTable, t trade.Trade, vehicle string) error {
	set := `account_id = ?, date = ?, weight = ?, rate = ?, total_amount = ?,
		pre_balance = ?, payment = ?, balance = ?, updated_at = ?`
	args := []any{t.AccountID, formatTime(t.Date), t.Weight, t.Rate, t.TotalAmount,
		t.PreBalance, t.Payment, t.Balance, now()}
	if tbl.vehicle {
		set += `, vehicle_number = ?`
		args = append(args, vehicle)
	}
	args = append(args, t.ID)
	return c.execOne(ctx, ledger.NotFound(tbl.kind, rowID(t.ID)),
		`UPDATE `+tbl.name+` SET `+set+` WHERE id = ?`, args...)
}

func (c conn) deleteTrade(ctx context.Context, tbl tradeTable, id int64) error {
	return c.execOne(ctx, ledger.NotFound(tbl.kind, rowID(id)),
		`DELETE FROM `+tbl.name+` WHERE id = ?`, id)
}

// listTrades calls fn for each matching row, date desc then id desc.
func (c conn) listTrades(ctx context.Context, tbl tradeTable, f trade.Filter, fn func(scanner) error) error {
	query := `SELECT ` + tbl.columns() + ` FROM ` + tbl.name + ` WHERE 1 = 1`
	var args []any
	if f.AccountID != 0 {
		query += ` AND account_id = ?`
		args = append(args, f.AccountID)
	}
	if f.From != nil {
		query += ` AND date >= ?`
		args = append(args, formatTime(*f.From))
	}
	if f.To != nil {
		query += ` AND date <= ?`
		args = append(args, formatTime(*f.To))
	}
	query += ` ORDER BY date DESC, id DESC`

	rows, err := c.query(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("list %s: %w", tbl.name, err)
	}
	defer rows.Close()
	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// -----------------------------------------------------------------------------
// Sales
// -----------------------------------------------------------------------------

func (c conn) CreateSale(ctx context.Context, s trade.Sale) (trade.Sale, error) {
	id, err := c.createTrade(ctx, salesTable, s.Trade, "")
	if err != nil {
		return trade.Sale{}, err
	}
	return c.GetSale(ctx, id)
}

func (c conn) GetSale(ctx context.Context, id int64) (trade.Sale, error) {
	t, err := c.getTrade(ctx, salesTable, id, nil)
	if err != nil {
		return trade.Sale{}, err
	}
	return trade.Sale{Trade: t}, nil
}

func (c conn) UpdateSale(ctx context.Context, s trade.Sale) error {
	return c.updateTrade(ctx, salesTable, s.Trade, "")
}

func (c conn) DeleteSale(ctx context.Context, id int64) error {
	return c.deleteTrade(ctx, salesTable, id)
}

func (c conn) ListSales(ctx context.Context, f trade.Filter) ([]trade.Sale, error) {
	var out []trade.Sale
	err := c.listTrades(ctx, salesTable, f, func(row scanner) error {
		t, err := scanTrade(row, nil)
		if err != nil {
			return err
		}
		out = append(out, trade.Sale{Trade: t})
		return nil
	})
	return out, err
}

// -----------------------------------------------------------------------------
// Purchases
// -----------------------------------------------------------------------------

func (c conn) CreatePurchase(ctx context.Context, p trade.Purchase) (trade.Purchase, error) {
	id, err := c.createTrade(ctx, purchasesTable, p.Trade, p.VehicleNumber)
	if err != nil {
		return trade.Purchase{}, err
	}
	return c.GetPurchase(ctx, id)
}

func (c conn) GetPurchase(ctx context.Context, id int64) (trade.Purchase, error) {
	var p trade.Purchase
	t, err := c.getTrade(ctx, purchasesTable, id, &p.VehicleNumber)
	if err != nil {
		return trade.Purchase{}, err
	}
	p.Trade = t
	return p, nil
}

func (c conn) UpdatePurchase(ctx context.Context, p trade.Purchase) error {
	return c.updateTrade(ctx, purchasesTable, p.Trade, p.VehicleNumber)
}

func (c conn) DeletePurchase(ctx context.Context, id int64) error {
	return c.deleteTrade(ctx, purchasesTable, id)
}

func (c conn) ListPurchases(ctx context.Context, f trade.Filter) ([]trade.Purchase, error) {
	var out []trade.Purchase
	err := c.listTrades(ctx, purchasesTable, f, func(row scanner) error {
		var p trade.Purchase
		t, err := scanTrade(row, &p.VehicleNumber)
		if err != nil {
			return err
		}
		p.Trade = t
		out = append(out, p)
		return nil
	})
	return out, err
}
