package ledger

import (
	"context"
	"fmt"
)

// EntryPage is one page of labeled entries in display order.
type EntryPage struct {
	Entries    []LabeledEntry
	Pagination Pagination
}

// QueryEntries lists entries newest first (createdAt desc, id desc) with
// display labels. Labels come from the stored snapshots, not a replay.
func (e *Engine) QueryEntries(ctx context.Context, filter EntryFilter) (EntryPage, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return EntryPage{}, Invalid("type", "unknown entry type %q", filter.Type)
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return EntryPage{}, Invalid("endDate", "end date is before start date")
	}
	filter.Page, filter.Limit = NormalizePage(filter.Page, filter.Limit)

	entries, total, err := e.store.QueryEntries(ctx, filter)
	if err != nil {
		return EntryPage{}, fmt.Errorf("query entries: %w", err)
	}

	types, err := e.accountTypes(ctx, entries)
	if err != nil {
		return EntryPage{}, err
	}
	return EntryPage{
		Entries:    LabelEntries(entries, types),
		Pagination: NewPagination(filter.Page, filter.Limit, total),
	}, nil
}

// Entries returns the full chain of one account, id ascending.
func (e *Engine) Entries(ctx context.Context, accountID AccountID) ([]Entry, error) {
	if _, err := e.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return e.store.Entries(ctx, accountID)
}

func (e *Engine) accountTypes(ctx context.Context, entries []Entry) (map[AccountID]AccountType, error) {
	types := make(map[AccountID]AccountType)
	for _, en := range entries {
		if _, ok := types[en.AccountID]; ok {
			continue
		}
		acct, err := e.store.GetAccount(ctx, en.AccountID)
		if err != nil {
			return nil, err
		}
		types[en.AccountID] = acct.Type
	}
	return types, nil
}
