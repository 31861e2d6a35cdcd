// Package store provides an in-memory ledger.TxStore.
package store

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/books/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu sync.RWMutex
	st *state
}

type state struct {
	accounts    map[ledger.AccountID]ledger.Account
	entries     map[ledger.EntryID]ledger.Entry
	journals    map[ledger.JournalID]ledger.Journal
	idempotency map[string]ledger.EntryID

	nextAccount ledger.AccountID
	nextEntry   ledger.EntryID
	nextJournal ledger.JournalID

	now func() time.Time
}

func NewMemory() *Memory {
	return &Memory{st: newState()}
}

// Tamper is a test fixture hook. It overwrites stored entries and the
// cached balance of an account without any chain math, planting the
// inconsistencies Reconcile and RepairAccount must find. Never call it
// from production code.
func (m *Memory) Tamper(id ledger.AccountID, balance decimal.Decimal, entries ...ledger.Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.st.accounts[id]; ok {
		a.Balance = balance
		m.st.accounts[id] = a
	}
	for _, e := range entries {
		m.st.entries[e.ID] = e
	}
}

func newState() *state {
	return &state{
		accounts:    make(map[ledger.AccountID]ledger.Account),
		entries:     make(map[ledger.EntryID]ledger.Entry),
		journals:    make(map[ledger.JournalID]ledger.Journal),
		idempotency: make(map[string]ledger.EntryID),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *state) clone() *state {
	return &state{
		accounts:    maps.Clone(s.accounts),
		entries:     maps.Clone(s.entries),
		journals:    maps.Clone(s.journals),
		idempotency: maps.Clone(s.idempotency),
		nextAccount: s.nextAccount,
		nextEntry:   s.nextEntry,
		nextJournal: s.nextJournal,
		now:         s.now,
	}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
// Writers are serialized for the whole transaction.
func (m *Memory) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	snapshot := m.st.clone()
	if err := fn(&view{st: m.st}); err != nil {
		m.st = snapshot
		return err
	}
	if err := ctx.Err(); err != nil {
		m.st = snapshot
		return err
	}
	return nil
}

// view is the Store handed to WithTx callbacks. The parent lock is held.
type view struct {
	st *state
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func (s *state) createAccount(a ledger.Account) ledger.Account {
	s.nextAccount++
	now := s.now()
	a.ID = s.nextAccount
	a.Balance = decimal.Zero
	a.CreatedAt, a.UpdatedAt = now, now
	s.accounts[a.ID] = a
	return a
}

func (s *state) getAccount(id ledger.AccountID) (ledger.Account, error) {
	a, ok := s.accounts[id]
	if !ok {
		return ledger.Account{}, ledger.NotFound("account", id)
	}
	return a, nil
}

func (s *state) lockAccounts(ids []ledger.AccountID) ([]ledger.Account, error) {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	out := make([]ledger.Account, 0, len(sorted))
	for _, id := range sorted {
		a, err := s.getAccount(id)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *state) updateAccount(a ledger.Account) error {
	cur, err := s.getAccount(a.ID)
	if err != nil {
		return err
	}
	cur.Name, cur.Type, cur.Phone, cur.Address = a.Name, a.Type, a.Phone, a.Address
	cur.UpdatedAt = s.now()
	s.accounts[a.ID] = cur
	return nil
}

func (s *state) setBalance(id ledger.AccountID, balance decimal.Decimal) error {
	cur, err := s.getAccount(id)
	if err != nil {
		return err
	}
	cur.Balance = ledger.Round(balance)
	cur.UpdatedAt = s.now()
	s.accounts[id] = cur
	return nil
}

func (s *state) deleteAccount(id ledger.AccountID) error {
	if _, err := s.getAccount(id); err != nil {
		return err
	}
	delete(s.accounts, id)
	return nil
}

func (s *state) countDependents(id ledger.AccountID) ledger.Dependents {
	var d ledger.Dependents
	for _, e := range s.entries {
		if e.AccountID == id {
			d.Entries++
		}
	}
	for _, j := range s.journals {
		if j.DebitAccountID == id || j.CreditAccountID == id {
			d.Journals++
		}
	}
	return d
}

func (s *state) listAccounts(f ledger.AccountFilter) []ledger.Account {
	search := strings.ToLower(f.Search)
	var out []ledger.Account
	for _, a := range s.accounts {
		if f.Type != "" && a.Type != f.Type {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(a.Name), search) &&
			!strings.Contains(strings.ToLower(a.Phone), search) &&
			!strings.Contains(strings.ToLower(a.Address), search) {
			continue
		}
		out = append(out, a)
	}
	slices.SortFunc(out, func(a, b ledger.Account) int { return cmp.Compare(b.ID, a.ID) })
	return out
}

// =============================================================================
// ENTRIES
// =============================================================================

func (s *state) appendEntry(e ledger.Entry) (ledger.Entry, error) {
	if e.IdempotencyKey != "" {
		if _, dup := s.idempotency[e.IdempotencyKey]; dup {
			return ledger.Entry{}, ledger.ErrDuplicateIdempotencyKey
		}
	}
	if _, err := s.getAccount(e.AccountID); err != nil {
		return ledger.Entry{}, err
	}
	s.nextEntry++
	e.ID = s.nextEntry
	s.entries[e.ID] = e
	if e.IdempotencyKey != "" {
		s.idempotency[e.IdempotencyKey] = e.ID
	}
	return e, nil
}

func (s *state) updateEntry(e ledger.Entry) error {
	cur, ok := s.entries[e.ID]
	if !ok {
		return ledger.NotFound("entry", e.ID)
	}
	cur.DrAmount, cur.CrAmount, cur.Details = e.DrAmount, e.CrAmount, e.Details
	cur.OpeningBalance, cur.ClosingBalance = e.OpeningBalance, e.ClosingBalance
	cur.CreatedAt = e.CreatedAt
	s.entries[e.ID] = cur
	return nil
}

func (s *state) deleteEntries(ids []ledger.EntryID) {
	for _, id := range ids {
		if e, ok := s.entries[id]; ok && e.IdempotencyKey != "" {
			delete(s.idempotency, e.IdempotencyKey)
		}
		delete(s.entries, id)
	}
}

// chain returns the account's entries, id ascending.
func (s *state) chain(id ledger.AccountID) []ledger.Entry {
	var out []ledger.Entry
	for _, e := range s.entries {
		if e.AccountID == id {
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b ledger.Entry) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func (s *state) latestEntry(id ledger.AccountID) (ledger.Entry, bool) {
	c := s.chain(id)
	if len(c) == 0 {
		return ledger.Entry{}, false
	}
	return c[len(c)-1], true
}

func (s *state) latestEntryBefore(id ledger.AccountID, at time.Time) (ledger.Entry, bool) {
	var best ledger.Entry
	found := false
	for _, e := range s.chain(id) {
		if !e.CreatedAt.Before(at) {
			continue
		}
		if !found || ledger.DisplayOrder(e, best) < 0 {
			best, found = e, true
		}
	}
	return best, found
}

func (s *state) findEntryByType(id ledger.AccountID, t ledger.EntryType) (ledger.Entry, bool) {
	for _, e := range s.chain(id) {
		if e.Type == t {
			return e, true
		}
	}
	return ledger.Entry{}, false
}

func (s *state) entriesByRef(ref ledger.Ref) []ledger.Entry {
	var out []ledger.Entry
	for _, e := range s.entries {
		if e.Ref == ref {
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b ledger.Entry) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func (s *state) queryEntries(f ledger.EntryFilter) ([]ledger.Entry, int) {
	var out []ledger.Entry
	for _, e := range s.entries {
		if f.AccountID != 0 && e.AccountID != f.AccountID {
			continue
		}
		if f.Type != "" && e.Type != f.Type {
			continue
		}
		if f.From != nil && e.CreatedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && e.CreatedAt.After(*f.To) {
			continue
		}
		out = append(out, e)
	}
	slices.SortFunc(out, ledger.DisplayOrder)
	return paginate(out, f.Page, f.Limit), len(out)
}

// =============================================================================
// JOURNALS
// =============================================================================

func (s *state) createJournal(j ledger.Journal) ledger.Journal {
	s.nextJournal++
	j.ID = s.nextJournal
	if j.CreatedAt.IsZero() {
		j.CreatedAt = s.now()
	}
	s.journals[j.ID] = j
	return j
}

func (s *state) getJournal(id ledger.JournalID) (ledger.Journal, error) {
	j, ok := s.journals[id]
	if !ok {
		return ledger.Journal{}, ledger.NotFound("journal", id)
	}
	return j, nil
}

func (s *state) listJournals(f ledger.JournalFilter) ([]ledger.Journal, int) {
	var out []ledger.Journal
	for _, j := range s.journals {
		if f.AccountID != 0 && j.DebitAccountID != f.AccountID && j.CreditAccountID != f.AccountID {
			continue
		}
		if f.From != nil && j.CreatedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && j.CreatedAt.After(*f.To) {
			continue
		}
		out = append(out, j)
	}
	slices.SortFunc(out, func(a, b ledger.Journal) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return paginate(out, f.Page, f.Limit), len(out)
}

func paginate[T any](rows []T, page, limit int) []T {
	page, limit = ledger.NormalizePage(page, limit)
	start := (page - 1) * limit
	if start >= len(rows) {
		return nil
	}
	return rows[start:min(start+limit, len(rows))]
}

// =============================================================================
// ledger.Store ON THE TRANSACTION VIEW
// =============================================================================

func (v *view) CreateAccount(_ context.Context, a ledger.Account) (ledger.Account, error) {
	return v.st.createAccount(a), nil
}

func (v *view) GetAccount(_ context.Context, id ledger.AccountID) (ledger.Account, error) {
	return v.st.getAccount(id)
}

func (v *view) LockAccounts(_ context.Context, ids ...ledger.AccountID) ([]ledger.Account, error) {
	return v.st.lockAccounts(ids)
}

func (v *view) UpdateAccount(_ context.Context, a ledger.Account) error {
	return v.st.updateAccount(a)
}

func (v *view) SetBalance(_ context.Context, id ledger.AccountID, balance decimal.Decimal) error {
	return v.st.setBalance(id, balance)
}

func (v *view) DeleteAccount(_ context.Context, id ledger.AccountID) error {
	return v.st.deleteAccount(id)
}

func (v *view) CountDependents(_ context.Context, id ledger.AccountID) (ledger.Dependents, error) {
	return v.st.countDependents(id), nil
}

func (v *view) ListAccounts(_ context.Context, f ledger.AccountFilter) ([]ledger.Account, error) {
	return v.st.listAccounts(f), nil
}

func (v *view) AppendEntry(_ context.Context, e ledger.Entry) (ledger.Entry, error) {
	return v.st.appendEntry(e)
}

func (v *view) UpdateEntry(_ context.Context, e ledger.Entry) error {
	return v.st.updateEntry(e)
}

func (v *view) DeleteEntries(_ context.Context, ids ...ledger.EntryID) error {
	v.st.deleteEntries(ids)
	return nil
}

func (v *view) LatestEntry(_ context.Context, id ledger.AccountID) (ledger.Entry, bool, error) {
	e, ok := v.st.latestEntry(id)
	return e, ok, nil
}

func (v *view) LatestEntryBefore(_ context.Context, id ledger.AccountID, at time.Time) (ledger.Entry, bool, error) {
	e, ok := v.st.latestEntryBefore(id, at)
	return e, ok, nil
}

func (v *view) FindEntryByType(_ context.Context, id ledger.AccountID, t ledger.EntryType) (ledger.Entry, bool, error) {
	e, ok := v.st.findEntryByType(id, t)
	return e, ok, nil
}

func (v *view) EntriesByRef(_ context.Context, ref ledger.Ref) ([]ledger.Entry, error) {
	return v.st.entriesByRef(ref), nil
}

func (v *view) Entries(_ context.Context, id ledger.AccountID) ([]ledger.Entry, error) {
	return v.st.chain(id), nil
}

func (v *view) QueryEntries(_ context.Context, f ledger.EntryFilter) ([]ledger.Entry, int, error) {
	rows, total := v.st.queryEntries(f)
	return rows, total, nil
}

func (v *view) CreateJournal(_ context.Context, j ledger.Journal) (ledger.Journal, error) {
	return v.st.createJournal(j), nil
}

func (v *view) GetJournal(_ context.Context, id ledger.JournalID) (ledger.Journal, error) {
	return v.st.getJournal(id)
}

func (v *view) DeleteJournal(_ context.Context, id ledger.JournalID) error {
	if _, err := v.st.getJournal(id); err != nil {
		return err
	}
	delete(v.st.journals, id)
	return nil
}

func (v *view) ListJournals(_ context.Context, f ledger.JournalFilter) ([]ledger.Journal, int, error) {
	rows, total := v.st.listJournals(f)
	return rows, total, nil
}

// =============================================================================
// ledger.Store OUTSIDE A TRANSACTION - each call is its own transaction
// =============================================================================

func (m *Memory) read(fn func(*view)) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fn(&view{st: m.st})
}

func (m *Memory) write(ctx context.Context, fn func(ledger.Store) error) error {
	return m.WithTx(ctx, fn)
}

func (m *Memory) CreateAccount(ctx context.Context, a ledger.Account) (out ledger.Account, err error) {
	err = m.write(ctx, func(s ledger.Store) error {
		out, err = s.CreateAccount(ctx, a)
		return err
	})
	return out, err
}

func (m *Memory) GetAccount(ctx context.Context, id ledger.AccountID) (out ledger.Account, err error) {
	m.read(func(v *view) { out, err = v.GetAccount(ctx, id) })
	return out, err
}

func (m *Memory) LockAccounts(ctx context.Context, ids ...ledger.AccountID) (out []ledger.Account, err error) {
	m.read(func(v *view) { out, err = v.LockAccounts(ctx, ids...) })
	return out, err
}

func (m *Memory) UpdateAccount(ctx context.Context, a ledger.Account) error {
	return m.write(ctx, func(s ledger.Store) error { return s.UpdateAccount(ctx, a) })
}

func (m *Memory) SetBalance(ctx context.Context, id ledger.AccountID, balance decimal.Decimal) error {
	return m.write(ctx, func(s ledger.Store) error { return s.SetBalance(ctx, id, balance) })
}

func (m *Memory) DeleteAccount(ctx context.Context, id ledger.AccountID) error {
	return m.write(ctx, func(s ledger.Store) error { return s.DeleteAccount(ctx, id) })
}

func (m *Memory) CountDependents(ctx context.Context, id ledger.AccountID) (out ledger.Dependents, err error) {
	m.read(func(v *view) { out, err = v.CountDependents(ctx, id) })
	return out, err
}

func (m *Memory) ListAccounts(ctx context.Context, f ledger.AccountFilter) (out []ledger.Account, err error) {
	m.read(func(v *view) { out, err = v.ListAccounts(ctx, f) })
	return out, err
}

func (m *Memory) AppendEntry(ctx context.Context, e ledger.Entry) (out ledger.Entry, err error) {
	err = m.write(ctx, func(s ledger.Store) error {
		out, err = s.AppendEntry(ctx, e)
		return err
	})
	return out, err
}

func (m *Memory) UpdateEntry(ctx context.Context, e ledger.Entry) error {
	return m.write(ctx, func(s ledger.Store) error { return s.UpdateEntry(ctx, e) })
}

func (m *Memory) DeleteEntries(ctx context.Context, ids ...ledger.EntryID) error {
	return m.write(ctx, func(s ledger.Store) error { return s.DeleteEntries(ctx, ids...) })
}

func (m *Memory) LatestEntry(ctx context.Context, id ledger.AccountID) (out ledger.Entry, ok bool, err error) {
	m.read(func(v *view) { out, ok, err = v.LatestEntry(ctx, id) })
	return out, ok, err
}

func (m *Memory) LatestEntryBefore(ctx context.Context, id ledger.AccountID, at time.Time) (out ledger.Entry, ok bool, err error) {
	m.read(func(v *view) { out, ok, err = v.LatestEntryBefore(ctx, id, at) })
	return out, ok, err
}

func (m *Memory) FindEntryByType(ctx context.Context, id ledger.AccountID, t ledger.EntryType) (out ledger.Entry, ok bool, err error) {
	m.read(func(v *view) { out, ok, err = v.FindEntryByType(ctx, id, t) })
	return out, ok, err
}

func (m *Memory) EntriesByRef(ctx context.Context, ref ledger.Ref) (out []ledger.Entry, err error) {
	m.read(func(v *view) { out, err = v.EntriesByRef(ctx, ref) })
	return out, err
}

func (m *Memory) Entries(ctx context.Context, id ledger.AccountID) (out []ledger.Entry, err error) {
	m.read(func(v *view) { out, err = v.Entries(ctx, id) })
	return out, err
}

func (m *Memory) QueryEntries(ctx context.Context, f ledger.EntryFilter) (out []ledger.Entry, total int, err error) {
	m.read(func(v *view) { out, total, err = v.QueryEntries(ctx, f) })
	return out, total, err
}

func (m *Memory) CreateJournal(ctx context.Context, j ledger.Journal) (out ledger.Journal, err error) {
	err = m.write(ctx, func(s ledger.Store) error {
		out, err = s.CreateJournal(ctx, j)
		return err
	})
	return out, err
}

func (m *Memory) GetJournal(ctx context.Context, id ledger.JournalID) (out ledger.Journal, err error) {
	m.read(func(v *view) { out, err = v.GetJournal(ctx, id) })
	return out, err
}

func (m *Memory) DeleteJournal(ctx context.Context, id ledger.JournalID) error {
	return m.write(ctx, func(s ledger.Store) error { return s.DeleteJournal(ctx, id) })
}

func (m *Memory) ListJournals(ctx context.Context, f ledger.JournalFilter) (out []ledger.Journal, total int, err error) {
	m.read(func(v *view) { out, total, err = v.ListJournals(ctx, f) })
	return out, total, err
}

var _ ledger.TxStore = (*Memory)(nil)
