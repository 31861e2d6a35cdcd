package api

import (
	"net/http"

	"github.com/warp/books/ledger"
)

// =============================================================================
// JOURNAL HANDLERS
// =============================================================================

// ListJournals returns journals touching accountId on either side.
// GET /api/journals?accountId=&startDate=&endDate=&page=&limit=
func (h *Handler) ListJournals(w http.ResponseWriter, r *http.Request) {
	id, err := queryAccountID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	from, to, err := queryRange(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	page, limit, err := queryPage(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.engine.ListJournals(r.Context(), ledger.JournalFilter{
		AccountID: id, From: from, To: to, Page: page, Limit: limit,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := JournalListResponse{
		Journals:   make([]JournalDTO, len(res.Journals)),
		Pagination: toPaginationDTO(res.Pagination),
	}
	for i, j := range res.Journals {
		out.Journals[i] = toJournalDTO(j)
	}
	writeJSON(w, http.StatusOK, out)
}

// PostJournal moves an amount from the credit account to the debit account.
// POST /api/journals
func (h *Handler) PostJournal(w http.ResponseWriter, r *http.Request) {
	var req JournalRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	in, err := req.request()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.engine.PostJournal(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := JournalResponse{
		Journal:     toJournalDTO(res.Journal),
		DebitEntry:  toEntryDTO(res.DebitEntry),
		CreditEntry: toEntryDTO(res.CreditEntry),
	}
	out.PreBalances.Debit = money(res.PreBalances.Debit)
	out.PreBalances.Credit = money(res.PreBalances.Credit)
	writeJSON(w, http.StatusCreated, out)
}

// GET /api/journals/{id}
func (h *Handler) GetJournal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	j, err := h.engine.GetJournal(r.Context(), ledger.JournalID(id))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toJournalDTO(j))
}

// DeleteJournal reverses both legs and removes the journal.
// DELETE /api/journals/{id}
func (h *Handler) DeleteJournal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	revs, err := h.engine.DeleteJournal(r.Context(), ledger.JournalID(id))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]ReversalDTO, len(revs))
	for i, rev := range revs {
		out[i] = toReversalDTO(rev)
	}
	writeJSON(w, http.StatusOK, out)
}
