package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/warp/books/ledger"
)

// =============================================================================
// JOURNALS (ledger.Store interface)
// =============================================================================

const journalColumns = `id, debit_account_id, credit_account_id, amount, description, created_at`

func scanJournal(row scanner) (ledger.Journal, error) {
	var j ledger.Journal
	var created string
	if err := row.Scan(&j.ID, &j.DebitAccountID, &j.CreditAccountID, &j.Amount, &j.Description, &created); err != nil {
		return ledger.Journal{}, err
	}
	var err error
	if j.CreatedAt, err = parseTime(created); err != nil {
		return ledger.Journal{}, err
	}
	return j, nil
}

func (c conn) CreateJournal(ctx context.Context, j ledger.Journal) (ledger.Journal, error) {
	created := now()
	if !j.CreatedAt.IsZero() {
		created = formatTime(j.CreatedAt)
	}
	id, err := c.insert(ctx, `
		INSERT INTO journals (debit_account_id, credit_account_id, amount, description, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		j.DebitAccountID, j.CreditAccountID, j.Amount, j.Description, created)
	if err != nil {
		return ledger.Journal{}, fmt.Errorf("insert journal: %w", err)
	}
	return c.GetJournal(ctx, ledger.JournalID(id))
}

func (c conn) GetJournal(ctx context.Context, id ledger.JournalID) (ledger.Journal, error) {
	j, err := scanJournal(c.queryRow(ctx,
		`SELECT `+journalColumns+` FROM journals WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Journal{}, ledger.NotFound("journal", id)
	}
	if err != nil {
		return ledger.Journal{}, fmt.Errorf("get journal %d: %w", id, err)
	}
	return j, nil
}

func (c conn) DeleteJournal(ctx context.Context, id ledger.JournalID) error {
	return c.execOne(ctx, ledger.NotFound("journal", id),
		`DELETE FROM journals WHERE id = ?`, id)
}

func (c conn) ListJournals(ctx context.Context, f ledger.JournalFilter) ([]ledger.Journal, int, error) {
	where := ` WHERE 1 = 1`
	var args []any
	if f.AccountID != 0 {
		where += ` AND (debit_account_id = ? OR credit_account_id = ?)`
		args = append(args, f.AccountID, f.AccountID)
	}
	if f.From != nil {
		where += ` AND created_at >= ?`
		args = append(args, formatTime(*f.From))
	}
	if f.To != nil {
		where += ` AND created_at <= ?`
		args = append(args, formatTime(*f.To))
	}

	total, err := c.count(ctx, `SELECT COUNT(*) FROM journals`+where, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("count journals: %w", err)
	}

	page, limit := ledger.NormalizePage(f.Page, f.Limit)
	rows, err := c.query(ctx, `SELECT `+journalColumns+` FROM journals`+where+
		` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		append(args, limit, (page-1)*limit)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list journals: %w", err)
	}
	defer rows.Close()

	var out []ledger.Journal
	for rows.Next() {
		j, err := scanJournal(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, j)
	}
	return out, total, rows.Err()
}
