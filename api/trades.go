package api

import (
	"net/http"

	"github.com/warp/books/trade"
)

// =============================================================================
// SALES
// =============================================================================

// GET /api/sales?accountId=&startDate=&endDate=
func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	f, err := tradeFilter(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sales, err := h.trades.ListSales(r.Context(), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]TradeDTO, len(sales))
	for i, s := range sales {
		out[i] = toSaleDTO(s)
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateSale records a sale and posts its SALE (and PAYMENT) entries.
// POST /api/sales
func (h *Handler) CreateSale(w http.ResponseWriter, r *http.Request) {
	var req TradeRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	in, err := req.input()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sale, err := h.trades.CreateSale(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSaleDTO(sale))
}

// GET /api/sales/{id}
func (h *Handler) GetSale(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sale, err := h.trades.GetSale(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSaleDTO(sale))
}

// UpdateSale reverses the sale's entries and reposts them from the edited
// values.
// PUT /api/sales/{id}
func (h *Handler) UpdateSale(w http.ResponseWriter, r *http.Request) {
	id, p, ok := h.tradePatch(w, r)
	if !ok {
		return
	}
	sale, err := h.trades.UpdateSale(r.Context(), id, p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSaleDTO(sale))
}

// DeleteSale reverses the sale's entries and removes it.
// DELETE /api/sales/{id}
func (h *Handler) DeleteSale(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rev, err := h.trades.DeleteSale(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toReversalDTO(rev))
}

// =============================================================================
// PURCHASES
// =============================================================================

// GET /api/purchases?accountId=&startDate=&endDate=
func (h *Handler) ListPurchases(w http.ResponseWriter, r *http.Request) {
	f, err := tradeFilter(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	purchases, err := h.trades.ListPurchases(r.Context(), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]TradeDTO, len(purchases))
	for i, p := range purchases {
		out[i] = toPurchaseDTO(p)
	}
	writeJSON(w, http.StatusOK, out)
}

// CreatePurchase records a purchase from a supplier.
// POST /api/purchases
func (h *Handler) CreatePurchase(w http.ResponseWriter, r *http.Request) {
	var req TradeRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	in, err := req.input()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.trades.CreatePurchase(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPurchaseDTO(p))
}

// GET /api/purchases/{id}
func (h *Handler) GetPurchase(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.trades.GetPurchase(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPurchaseDTO(p))
}

// PUT /api/purchases/{id}
func (h *Handler) UpdatePurchase(w http.ResponseWriter, r *http.Request) {
	id, patch, ok := h.tradePatch(w, r)
	if !ok {
		return
	}
	p, err := h.trades.UpdatePurchase(r.Context(), id, patch)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPurchaseDTO(p))
}

// DELETE /api/purchases/{id}
func (h *Handler) DeletePurchase(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rev, err := h.trades.DeletePurchase(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toReversalDTO(rev))
}

// =============================================================================
// SHARED
// =============================================================================

func tradeFilter(r *http.Request) (trade.Filter, error) {
	id, err := queryAccountID(r)
	if err != nil {
		return trade.Filter{}, err
	}
	from, to, err := queryRange(r)
	if err != nil {
		return trade.Filter{}, err
	}
	return trade.Filter{AccountID: id, From: from, To: to}, nil
}

// tradePatch reads the path id and the edit body. On failure it has
// already written the error response.
func (h *Handler) tradePatch(w http.ResponseWriter, r *http.Request) (int64, trade.Patch, bool) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return 0, trade.Patch{}, false
	}
	var req TradePatchRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return 0, trade.Patch{}, false
	}
	p, err := req.patch()
	if err != nil {
		h.fail(w, r, err)
		return 0, trade.Patch{}, false
	}
	return id, p, true
}
