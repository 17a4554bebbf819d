// Package http is the HTTP ingress adapter: it normalizes wire bodies
// into domain.TransferRequest, calls the processor identically to the
// bus adapter, and maps domain errors onto the status codes named for
// the transfer endpoint's contract.
package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ledgerops/txnengine/internal/domain"
	"github.com/ledgerops/txnengine/internal/logging"
	"github.com/ledgerops/txnengine/internal/metrics"
	"github.com/ledgerops/txnengine/internal/processor"
	"github.com/ledgerops/txnengine/internal/store"
)

// Handler wires the processor and store into net/http handlers.
type Handler struct {
	proc *processor.Processor
	db   *store.Store
}

// NewHandler returns a Handler over proc and db.
func NewHandler(proc *processor.Processor, db *store.Store) *Handler {
	return &Handler{proc: proc, db: db}
}

// NewRouter builds the gorilla/mux router for the transaction and
// account endpoints this engine's contract defines.
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/v1/transactions/health", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/transactions", h.CreateTransaction).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/transactions/{id}", h.GetTransaction).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/accounts", h.CreateAccount).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/accounts/{id}", h.GetAccount).Methods(http.MethodGet)
	return r
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CreateTransaction implements POST /api/v1/transactions: 200 on success
// or cached duplicate replay, 400 on malformed input, 409 on
// idempotency-key reuse with a different body or transactionId, 422 on a
// committed FAILED transaction.
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(metrics.HTTPRequestDuration.WithLabelValues(r.Method, "/api/v1/transactions"))
	defer timer.ObserveDuration()

	var req domain.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondStatus(w, r, http.StatusBadRequest)
		respondError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}
	if req.EventID == "" {
		req.EventID = uuid.NewString()
	}
	if req.Timestamp.IsZero() {
		req.Timestamp = time.Now()
	}

	if err := req.ValidateShape(); err != nil {
		h.respondStatus(w, r, http.StatusBadRequest)
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	log := logging.FromContext(r.Context())
	resp, err := h.proc.Process(r.Context(), req)
	if err != nil {
		status := h.statusForError(err)
		log.ErrorContext(r.Context(), "create transaction failed", "transaction_id", req.TransactionID, "error", err)
		h.respondStatus(w, r, status)
		respondError(w, status, err.Error())
		return
	}

	status := http.StatusOK
	if resp.Status == domain.TransactionStatusFailed {
		status = http.StatusUnprocessableEntity
	}
	h.respondStatus(w, r, status)
	respondJSON(w, status, resp)
}

func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	txn, err := h.db.GetTransaction(r.Context(), id)
	if err != nil {
		h.respondStatus(w, r, http.StatusNotFound)
		respondError(w, http.StatusNotFound, "transaction not found")
		return
	}
	h.respondStatus(w, r, http.StatusOK)
	respondJSON(w, http.StatusOK, txn.ToResponse())
}

// CreateAccount and GetAccount exist for fixture provisioning; account
// lifecycle management beyond that is out of scope.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var a domain.Account
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		h.respondStatus(w, r, http.StatusBadRequest)
		respondError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now()
	a.CreatedAt, a.UpdatedAt = now, now
	if a.Status == "" {
		a.Status = domain.AccountStatusActive
	}

	if err := h.db.CreateAccount(r.Context(), &a); err != nil {
		h.respondStatus(w, r, http.StatusInternalServerError)
		respondError(w, http.StatusInternalServerError, "failed to create account")
		return
	}
	h.respondStatus(w, r, http.StatusCreated)
	respondJSON(w, http.StatusCreated, a)
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	a, err := h.db.GetAccount(r.Context(), id)
	if err != nil {
		h.respondStatus(w, r, http.StatusNotFound)
		respondError(w, http.StatusNotFound, "account not found")
		return
	}
	h.respondStatus(w, r, http.StatusOK)
	respondJSON(w, http.StatusOK, a)
}

func (h *Handler) respondStatus(w http.ResponseWriter, r *http.Request, status int) {
	metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, http.StatusText(status)).Inc()
}

// statusForError maps the processor's terminal errors onto the contract's
// status codes. A retryable error reaching here means the processor's
// own retry loop already exhausted its attempts, which this layer
// surfaces as 409 rather than retrying again.
func (h *Handler) statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidTransferRequest), errors.Is(err, domain.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrTransactionIDConflict), errors.Is(err, domain.ErrIdempotencyKeyMismatch), errors.Is(err, domain.ErrIdempotencyReservation):
		return http.StatusConflict
	case domain.IsRetryable(err):
		return http.StatusConflict
	case errors.Is(err, domain.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrSelfTransfer), errors.Is(err, domain.ErrCurrencyMismatch),
		errors.Is(err, domain.ErrAccountNotActive), errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload) //nolint:errcheck
	}
}
