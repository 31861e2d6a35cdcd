package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/books/ledger"
)

// =============================================================================
// ACCOUNTS (ledger.Store interface)
// =============================================================================

const accountColumns = `id, name, type, phone, address, balance, created_at, updated_at`

func scanAccount(row scanner) (ledger.Account, error) {
	var a ledger.Account
	var created, updated string
	if err := row.Scan(&a.ID, &a.Name, &a.Type, &a.Phone, &a.Address, &a.Balance, &created, &updated); err != nil {
		return ledger.Account{}, err
	}
	var err error
	if a.CreatedAt, err = parseTime(created); err != nil {
		return ledger.Account{}, err
	}
	if a.UpdatedAt, err = parseTime(updated); err != nil {
		return ledger.Account{}, err
	}
	return a, nil
}

func (c conn) CreateAccount(ctx context.Context, a ledger.Account) (ledger.Account, error) {
	ts := now()
	id, err := c.insert(ctx, `
		INSERT INTO accounts (name, type, phone, address, balance, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.Name, a.Type, a.Phone, a.Address, decimal.Zero, ts, ts)
	if err != nil {
		return ledger.Account{}, fmt.Errorf("insert account: %w", err)
	}
	return c.GetAccount(ctx, ledger.AccountID(id))
}

func (c conn) GetAccount(ctx context.Context, id ledger.AccountID) (ledger.Account, error) {
	a, err := scanAccount(c.queryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Account{}, ledger.NotFound("account", id)
	}
	if err != nil {
		return ledger.Account{}, fmt.Errorf("get account %d: %w", id, err)
	}
	return a, nil
}

// LockAccounts reads the accounts in ascending id order. On PostgreSQL each
// row is also locked with FOR UPDATE; SQLite relies on the store mutex.
func (c conn) LockAccounts(ctx context.Context, ids ...ledger.AccountID) ([]ledger.Account, error) {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = ?`
	if c.dialect == Postgres {
		query += ` FOR UPDATE`
	}
	out := make([]ledger.Account, 0, len(sorted))
	for _, id := range sorted {
		a, err := scanAccount(c.queryRow(ctx, query, id))
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ledger.NotFound("account", id)
		}
		if err != nil {
			return nil, fmt.Errorf("lock account %d: %w", id, err)
		}
		out = append(out, a)
	}
	return out, nil
}

func (c conn) UpdateAccount(ctx context.Context, a ledger.Account) error {
	return c.execOne(ctx, ledger.NotFound("account", a.ID), `
		UPDATE accounts SET name = ?, type = ?, phone = ?, address = ?, updated_at = ?
		WHERE id = ?`,
		a.Name, a.Type, a.Phone, a.Address, now(), a.ID)
}

func (c conn) SetBalance(ctx context.Context, id ledger.AccountID, balance decimal.Decimal) error {
	return c.execOne(ctx, ledger.NotFound("account", id),
		`UPDATE accounts SET balance = ?, updated_at = ? WHERE id = ?`,
		ledger.Round(balance), now(), id)
}

func (c conn) DeleteAccount(ctx context.Context, id ledger.AccountID) error {
	return c.execOne(ctx, ledger.NotFound("account", id),
		`DELETE FROM accounts WHERE id = ?`, id)
}

func (c conn) CountDependents(ctx context.Context, id ledger.AccountID) (ledger.Dependents, error) {
	var d ledger.Dependents
	var err error
	if d.Entries, err = c.count(ctx, `SELECT COUNT(*) FROM ledger_entries WHERE account_id = ?`, id); err != nil {
		return d, fmt.Errorf("count entries: %w", err)
	}
	if d.Sales, err = c.count(ctx, `SELECT COUNT(*) FROM sales WHERE account_id = ?`, id); err != nil {
		return d, fmt.Errorf("count sales: %w", err)
	}
	if d.Purchases, err = c.count(ctx, `SELECT COUNT(*) FROM purchases WHERE account_id = ?`, id); err != nil {
		return d, fmt.Errorf("count purchases: %w", err)
	}
	if d.Journals, err = c.count(ctx,
		`SELECT COUNT(*) FROM journals WHERE debit_account_id = ? OR credit_account_id = ?`, id, id); err != nil {
		return d, fmt.Errorf("count journals: %w", err)
	}
	return d, nil
}

func (c conn) ListAccounts(ctx context.Context, f ledger.AccountFilter) ([]ledger.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE 1 = 1`
	var args []any
	if f.Type != "" {
		query += ` AND type = ?`
		args = append(args, f.Type)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		query += ` AND (LOWER(name) LIKE ? OR LOWER(phone) LIKE ? OR LOWER(address) LIKE ?)`
		args = append(args, like, like, like)
	}
	query += ` ORDER BY id DESC`

	rows, err := c.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []ledger.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
