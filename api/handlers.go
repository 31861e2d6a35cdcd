/*
handlers.go - HTTP API handlers for the bookkeeping service

PURPOSE:
  Exposes the ledger engine and the trade service via a JSON REST API.
  Handles HTTP request/response, JSON decoding, request validation, and
  delegates to the domain packages.

ENDPOINTS:
  Accounts (accounts.go):
    GET    /api/accounts                   List (?type=, ?search=)
    POST   /api/accounts                   Create, optional initialBalance
    GET    /api/accounts/{id}              Get
    PUT    /api/accounts/{id}              Update name/type/phone/address
    DELETE /api/accounts/{id}              Delete (409 with dependents)
    GET    /api/accounts/{id}/reconcile    Replay and compare the chain
    POST   /api/accounts/{id}/repair       Re-chain from the amounts

  Ledger (ledgers.go):
    GET    /api/ledgers                    Labeled entries, paged
    POST   /api/ledgers                    Post one manual entry
    PUT    /api/ledgers/opening-balance    Create or rewrite opening balance

  Sales / Purchases (trades.go):
    GET|POST /api/sales, GET|PUT|DELETE /api/sales/{id}
    GET|POST /api/purchases, GET|PUT|DELETE /api/purchases/{id}

  Payments (payments.go):
    GET|POST /api/payments,   DELETE /api/payments/{ref}
    GET|POST /api/receivings, DELETE /api/receivings/{ref}

  Journals (journals.go):
    GET|POST /api/journals, GET|DELETE /api/journals/{id}

  Operations:
    GET    /api/consistency                Check every account now
    GET    /health                         Liveness and database ping

REQUEST FLOW:
  1. Decode JSON (unknown fields rejected)
  2. Validate tags (go-playground/validator)
  3. Call the engine or trade service
  4. Serialize response

ERROR HANDLING:
  Every error is mapped from its ledger kind:
  - 400: ValidationError, malformed JSON
  - 404: NotFound
  - 409: DuplicateOpeningBalance, DuplicateIdempotencyKey, HasDependents
  - 503: Timeout
  - 500: InvariantViolation and everything else
  Body: {"error", "kind", "details", "fields"}

SEE ALSO:
  - dto.go:    Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/warp/books/ledger"
	"github.com/warp/books/trade"
)

// maxBodyBytes bounds every request body.
const maxBodyBytes = 1 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	engine    *ledger.Engine
	trades    *trade.Service
	validate  *validator.Validate
	db        Pinger
	scheduler *ConsistencyScheduler
}

// HandlerOption configures optional Handler dependencies.
type HandlerOption func(*Handler)

// WithPinger makes /health ping the database.
func WithPinger(p Pinger) HandlerOption {
	return func(h *Handler) { h.db = p }
}

// WithScheduler exposes the last scheduled consistency run on
// /api/consistency.
func WithScheduler(s *ConsistencyScheduler) HandlerOption {
	return func(h *Handler) { h.scheduler = s }
}

// NewHandler creates a handler over the engine and trade service.
func NewHandler(engine *ledger.Engine, trades *trade.Service, opts ...HandlerOption) *Handler {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	h := &Handler{engine: engine, trades: trades, validate: v}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// =============================================================================
// OPERATIONS
// =============================================================================

// Health reports liveness and, with a Pinger, database reachability.
// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CheckConsistency reconciles every account on demand.
// GET /api/consistency
func (h *Handler) CheckConsistency(w http.ResponseWriter, r *http.Request) {
	bad, err := h.engine.CheckConsistency(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	resp := ConsistencyResponse{
		CheckedAt:    timestamp(time.Now()),
		Consistent:   len(bad) == 0,
		Inconsistent: make([]ReconcileDTO, len(bad)),
	}
	for i, rep := range bad {
		resp.Inconsistent[i] = toReconcileDTO(rep)
	}
	if h.scheduler != nil {
		if run, ok := h.scheduler.LastRun(); ok {
			resp.LastRun = toRunDTO(run)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// REQUEST HELPERS
// =============================================================================

// decode reads a JSON body into dst and validates its tags.
func (h *Handler) decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &requestError{msg: "invalid request body", err: err}
	}
	if err := h.validate.Struct(dst); err != nil {
		return err
	}
	return nil
}

// requestError is a malformed request that never reached the domain.
type requestError struct {
	msg string
	err error
}

func (e *requestError) Error() string { return e.msg + ": " + e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, ledger.Invalid(name, "invalid id %q", raw)
	}
	return id, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, ledger.Invalid(name, "expected an integer, got %q", raw)
	}
	return n, nil
}

func queryAccountID(r *http.Request) (ledger.AccountID, error) {
	raw := r.URL.Query().Get("accountId")
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, ledger.Invalid("accountId", "invalid account id %q", raw)
	}
	return ledger.AccountID(id), nil
}

// queryRange reads startDate and endDate. A date-only endDate covers the
// whole day.
func queryRange(r *http.Request) (from, to *time.Time, err error) {
	q := r.URL.Query()
	if s := q.Get("startDate"); s != "" {
		t, err := parseDate("startDate", s)
		if err != nil {
			return nil, nil, err
		}
		from = &t
	}
	if s := q.Get("endDate"); s != "" {
		t, err := parseDate("endDate", s)
		if err != nil {
			return nil, nil, err
		}
		if _, dateOnly := time.Parse(time.DateOnly, s); dateOnly == nil {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		to = &t
	}
	return from, to, nil
}

func queryPage(r *http.Request) (page, limit int, err error) {
	if page, err = queryInt(r, "page"); err != nil {
		return 0, 0, err
	}
	if limit, err = queryInt(r, "limit"); err != nil {
		return 0, 0, err
	}
	return page, limit, nil
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	var re *requestError
	var ve validator.ValidationErrors
	if errors.As(err, &re) || errors.As(err, &ve) {
		return http.StatusBadRequest
	}
	switch ledger.Kind(err) {
	case "ValidationError":
		return http.StatusBadRequest
	case "NotFound":
		return http.StatusNotFound
	case "DuplicateOpeningBalance", "DuplicateIdempotencyKey", "HasDependents":
		return http.StatusConflict
	case "Timeout":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// fail logs server-side failures and writes the error response.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if statusFor(err) >= http.StatusInternalServerError {
		h.engine.Logger().ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()), "error", err)
	}
	writeError(w, err)
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	resp := ErrorResponse{Error: http.StatusText(status), Kind: ledger.Kind(err), Details: err.Error()}

	var ve validator.ValidationErrors
	var lve *ledger.ValidationError
	var re *requestError
	switch {
	case errors.As(err, &ve):
		resp.Kind = "ValidationError"
		resp.Fields = make(map[string]string, len(ve))
		for _, fe := range ve {
			resp.Fields[fe.Field()] = fmt.Sprintf("failed on the '%s' rule", fe.Tag())
		}
	case errors.As(err, &lve):
		resp.Fields = map[string]string{lve.Field: lve.Message}
	case errors.As(err, &re):
		resp.Kind = "ValidationError"
	}
	if status == http.StatusInternalServerError {
		resp.Details = "internal error"
	}
	writeJSON(w, status, resp)
}
