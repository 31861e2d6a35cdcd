package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/warp/books/ledger"
)

// =============================================================================
// LEDGER ENTRIES (ledger.Store interface)
// =============================================================================

const entryColumns = `id, account_id, dr_amount, cr_amount, details, type,
	reference_type, reference_id, opening_balance, closing_balance,
	created_at, idempotency_key`

func scanEntry(row scanner) (ledger.Entry, error) {
	var e ledger.Entry
	var created string
	var key sql.NullString
	err := row.Scan(&e.ID, &e.AccountID, &e.DrAmount, &e.CrAmount, &e.Details, &e.Type,
		&e.Ref.Type, &e.Ref.ID, &e.OpeningBalance, &e.ClosingBalance, &created, &key)
	if err != nil {
		return ledger.Entry{}, err
	}
	if e.CreatedAt, err = parseTime(created); err != nil {
		return ledger.Entry{}, err
	}
	e.IdempotencyKey = key.String
	return e, nil
}

func (c conn) scanEntries(ctx context.Context, query string, args ...any) ([]ledger.Entry, error) {
	rows, err := c.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// oneEntry runs a query expected to yield at most one entry.
func (c conn) oneEntry(ctx context.Context, query string, args ...any) (ledger.Entry, bool, error) {
	e, err := scanEntry(c.queryRow(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Entry{}, false, nil
	}
	if err != nil {
		return ledger.Entry{}, false, err
	}
	return e, true, nil
}

func (c conn) AppendEntry(ctx context.Context, e ledger.Entry) (ledger.Entry, error) {
	id, err := c.insert(ctx, `
		INSERT INTO ledger_entries (account_id, dr_amount, cr_amount, details, type,
			reference_type, reference_id, opening_balance, closing_balance,
			created_at, idempotency_key)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.AccountID, e.DrAmount, e.CrAmount, e.Details, e.Type,
		e.Ref.Type, e.Ref.ID, e.OpeningBalance, e.ClosingBalance,
		formatTime(e.CreatedAt), nullString(e.IdempotencyKey))
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.Entry{}, ledger.ErrDuplicateIdempotencyKey
		}
		return ledger.Entry{}, fmt.Errorf("insert entry: %w", err)
	}
	e.ID = ledger.EntryID(id)
	e.CreatedAt = e.CreatedAt.UTC()
	return e, nil
}

func (c conn) UpdateEntry(ctx context.Context, e ledger.Entry) error {
	return c.execOne(ctx, ledger.NotFound("entry", e.ID), `
		UPDATE ledger_entries
		SET dr_amount = ?, cr_amount = ?, details = ?,
			opening_balance = ?, closing_balance = ?, created_at = ?
		WHERE id = ?`,
		e.DrAmount, e.CrAmount, e.Details,
		e.OpeningBalance, e.ClosingBalance, formatTime(e.CreatedAt), e.ID)
}

func (c conn) DeleteEntries(ctx context.Context, ids ...ledger.EntryID) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := c.exec(ctx, `DELETE FROM ledger_entries WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return fmt.Errorf("delete entries: %w", err)
	}
	return nil
}

func (c conn) LatestEntry(ctx context.Context, accountID ledger.AccountID) (ledger.Entry, bool, error) {
	return c.oneEntry(ctx, `SELECT `+entryColumns+` FROM ledger_entries
		WHERE account_id = ? ORDER BY id DESC LIMIT 1`, accountID)
}

func (c conn) LatestEntryBefore(ctx context.Context, accountID ledger.AccountID, at time.Time) (ledger.Entry, bool, error) {
	return c.oneEntry(ctx, `SELECT `+entryColumns+` FROM ledger_entries
		WHERE account_id = ? AND created_at < ?
		ORDER BY created_at DESC, id DESC LIMIT 1`, accountID, formatTime(at))
}

func (c conn) FindEntryByType(ctx context.Context, accountID ledger.AccountID, t ledger.EntryType) (ledger.Entry, bool, error) {
	return c.oneEntry(ctx, `SELECT `+entryColumns+` FROM ledger_entries
		WHERE account_id = ? AND type = ? ORDER BY id ASC LIMIT 1`, accountID, t)
}

func (c conn) EntriesByRef(ctx context.Context, ref ledger.Ref) ([]ledger.Entry, error) {
	out, err := c.scanEntries(ctx, `SELECT `+entryColumns+` FROM ledger_entries
		WHERE reference_type = ? AND reference_id = ? ORDER BY id ASC`, ref.Type, ref.ID)
	if err != nil {
		return nil, fmt.Errorf("entries by ref %s: %w", ref, err)
	}
	return out, nil
}

func (c conn) Entries(ctx context.Context, accountID ledger.AccountID) ([]ledger.Entry, error) {
	out, err := c.scanEntries(ctx, `SELECT `+entryColumns+` FROM ledger_entries
		WHERE account_id = ? ORDER BY id ASC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("entries of account %d: %w", accountID, err)
	}
	return out, nil
}

func (c conn) QueryEntries(ctx context.Context, f ledger.EntryFilter) ([]ledger.Entry, int, error) {
	where := ` WHERE 1 = 1`
	var args []any
	if f.AccountID != 0 {
		where += ` AND account_id = ?`
		args = append(args, f.AccountID)
	}
	if f.Type != "" {
		where += ` AND type = ?`
		args = append(args, f.Type)
	}
	if f.From != nil {
		where += ` AND created_at >= ?`
		args = append(args, formatTime(*f.From))
	}
	if f.To != nil {
		where += ` AND created_at <= ?`
		args = append(args, formatTime(*f.To))
	}

	total, err := c.count(ctx, `SELECT COUNT(*) FROM ledger_entries`+where, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("count entries: %w", err)
	}

	page, limit := ledger.NormalizePage(f.Page, f.Limit)
	out, err := c.scanEntries(ctx, `SELECT `+entryColumns+` FROM ledger_entries`+where+
		` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		append(args, limit, (page-1)*limit)...)
	if err != nil {
		return nil, 0, fmt.Errorf("query entries: %w", err)
	}
	return out, total, nil
}
