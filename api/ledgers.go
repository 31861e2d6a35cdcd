package api

import (
	"net/http"
	"strings"

	"github.com/warp/books/ledger"
)

// =============================================================================
// LEDGER HANDLERS
// =============================================================================

// ListEntries returns labeled entries, newest business date first.
// GET /api/ledgers?accountId=&type=&startDate=&endDate=&page=&limit=
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	filter, err := entryFilter(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if t := r.URL.Query().Get("type"); t != "" {
		filter.Type = ledger.EntryType(strings.ToUpper(t))
		if !filter.Type.Valid() {
			h.fail(w, r, ledger.Invalid("type", "unknown entry type %q", t))
			return
		}
	}
	h.listEntries(w, r, filter)
}

// PostEntry writes one manual entry and returns it.
// POST /api/ledgers
func (h *Handler) PostEntry(w http.ResponseWriter, r *http.Request) {
	var req PostEntryRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := req.posting()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	entry, err := h.engine.PostManual(r.Context(), p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryDTO(entry))
}

// SetOpeningBalance creates the OPENING_BALANCE entry (201) or rewrites it
// and re-chains the account (200).
// PUT /api/ledgers/opening-balance
func (h *Handler) SetOpeningBalance(w http.ResponseWriter, r *http.Request) {
	var req OpeningBalanceRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.engine.SetOpeningBalance(r.Context(), ledger.AccountID(req.AccountID),
		*req.Amount, ledger.AccountType(req.AccountType))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, OpeningBalanceResponse{
		Entry:     toEntryDTO(res.Entry),
		Created:   res.Created,
		Balance:   money(res.Balance),
		Rechained: res.Rechained,
	})
}

// =============================================================================
// SHARED
// =============================================================================

// entryFilter reads accountId, the date range and paging.
func entryFilter(r *http.Request) (ledger.EntryFilter, error) {
	id, err := queryAccountID(r)
	if err != nil {
		return ledger.EntryFilter{}, err
	}
	from, to, err := queryRange(r)
	if err != nil {
		return ledger.EntryFilter{}, err
	}
	page, limit, err := queryPage(r)
	if err != nil {
		return ledger.EntryFilter{}, err
	}
	return ledger.EntryFilter{AccountID: id, From: from, To: to, Page: page, Limit: limit}, nil
}

func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request, filter ledger.EntryFilter) {
	page, err := h.engine.QueryEntries(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryList(page))
}
