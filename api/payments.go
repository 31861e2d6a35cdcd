package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/warp/books/ledger"
)

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

// Payments to suppliers and receivings from customers are single ledger
// entries tagged with a generated reference. Both directions share the
// handlers below, parameterized by paymentKind.

type paymentKind struct {
	entryType ledger.EntryType
	ref       func(string) ledger.Ref
	post      func(*ledger.Engine, context.Context, ledger.PaymentRequest) (ledger.Entry, error)
}

var (
	toParty = paymentKind{
		entryType: ledger.EntryPaymentToParty,
		ref:       ledger.PaymentToPartyRef,
		post:      (*ledger.Engine).PayParty,
	}
	fromCustomer = paymentKind{
		entryType: ledger.EntryPaymentFromCustomer,
		ref:       ledger.PaymentFromCustomerRef,
		post:      (*ledger.Engine).ReceiveFromCustomer,
	}
)

// GET /api/payments
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	h.listPayments(w, r, toParty)
}

// POST /api/payments
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	h.createPayment(w, r, toParty)
}

// DELETE /api/payments/{ref}
func (h *Handler) DeletePayment(w http.ResponseWriter, r *http.Request) {
	h.deletePayment(w, r, toParty)
}

// GET /api/receivings
func (h *Handler) ListReceivings(w http.ResponseWriter, r *http.Request) {
	h.listPayments(w, r, fromCustomer)
}

// POST /api/receivings
func (h *Handler) CreateReceiving(w http.ResponseWriter, r *http.Request) {
	h.createPayment(w, r, fromCustomer)
}

// DELETE /api/receivings/{ref}
func (h *Handler) DeleteReceiving(w http.ResponseWriter, r *http.Request) {
	h.deletePayment(w, r, fromCustomer)
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request, kind paymentKind) {
	filter, err := entryFilter(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	filter.Type = kind.entryType
	h.listEntries(w, r, filter)
}

func (h *Handler) createPayment(w http.ResponseWriter, r *http.Request, kind paymentKind) {
	var req PaymentRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	in, err := req.request()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	entry, err := kind.post(h.engine, r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryDTO(entry))
}

func (h *Handler) deletePayment(w http.ResponseWriter, r *http.Request, kind paymentKind) {
	ref := chi.URLParam(r, "ref")
	if ref == "" {
		h.fail(w, r, ledger.Invalid("ref", "payment reference is required"))
		return
	}
	rev, err := h.engine.DeletePayment(r.Context(), kind.ref(ref))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toReversalDTO(rev))
}
