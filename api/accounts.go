package api

import (
	"net/http"
	"strings"

	"github.com/warp/books/ledger"
)

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// ListAccounts returns accounts, newest first.
// GET /api/accounts?type=&search= (type=ALL means no filter)
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ledger.AccountFilter{
		Type:   ledger.AccountType(strings.ToUpper(q.Get("type"))),
		Search: strings.TrimSpace(q.Get("search")),
	}
	if filter.Type == "ALL" {
		filter.Type = ""
	}
	if filter.Type != "" && !filter.Type.Valid() {
		h.fail(w, r, ledger.Invalid("type", "unknown account type %q", q.Get("type")))
		return
	}

	accts, err := h.engine.ListAccounts(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]AccountDTO, len(accts))
	for i, a := range accts {
		out[i] = toAccountDTO(a)
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateAccount creates an account, posting an INITIAL_BALANCE entry when
// initialBalance is non-zero.
// POST /api/accounts
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	acct, err := h.engine.CreateAccount(r.Context(), ledger.NewAccount{
		Name:           req.Name,
		Type:           ledger.AccountType(req.Type),
		Phone:          req.Phone,
		Address:        req.Address,
		InitialBalance: decimalOrZero(req.InitialBalance),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountDTO(acct))
}

// GetAccount returns one account.
// GET /api/accounts/{id}
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	acct, err := h.engine.GetAccount(r.Context(), ledger.AccountID(id))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(acct))
}

// UpdateAccount edits name, type, phone and address. The balance is never
// taken from the request.
// PUT /api/accounts/{id}
func (h *Handler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req UpdateAccountRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	acct, err := h.engine.UpdateAccount(r.Context(), ledger.AccountID(id), ledger.AccountUpdate{
		Name:    req.Name,
		Type:    ledger.AccountType(req.Type),
		Phone:   req.Phone,
		Address: req.Address,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(acct))
}

// DeleteAccount removes an account with no entries, trades or journals.
// DELETE /api/accounts/{id}
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.engine.DeleteAccount(r.Context(), ledger.AccountID(id)); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reconcile replays an account's chain and reports every break.
// GET /api/accounts/{id}/reconcile
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rep, err := h.engine.Reconcile(r.Context(), ledger.AccountID(id))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toReconcileDTO(rep))
}

// Repair rewrites the chain from the stored amounts and resets the cached
// balance. The response is the report taken after the repair.
// POST /api/accounts/{id}/repair
func (h *Handler) Repair(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rep, err := h.engine.RepairAccount(r.Context(), ledger.AccountID(id))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toReconcileDTO(rep))
}
