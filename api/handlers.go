/*
handlers.go - HTTP API handlers for the bookkeeping engine

PURPOSE:
  Exposes accounting.Engine via REST. Handlers parse the request, take the
  user id from the context, call exactly one engine operation and serialize
  the result. No accounting rule lives here.

ENDPOINTS:
  Invoices:
    GET    /api/invoices                 List invoices, newest first
    POST   /api/invoices                 Create (id allocated by the server)
    GET    /api/invoices/{id}            Get one invoice
    PUT    /api/invoices/{id}            Replace an invoice
    DELETE /api/invoices/{id}            Delete with its ledger entry
    POST   /api/invoices/{id}/paid       Mark paid

  Customers:
    GET    /api/customers?year=YYYY-YY   Customers with financial-year balances
    POST   /api/customers                Create explicitly
    PUT    /api/customers/{id}           Update name and contact fields
    DELETE /api/customers/{id}           Delete (409 while invoices reference it)

  Ledger:
    GET    /api/ledger/{customer}?year=  Financial-year ledger view
    POST   /api/ledger/{customer}        Add payment or general entry
    PUT    /api/ledger/entries/{id}      Update a manual entry
    DELETE /api/ledger/entries/{id}      Delete a manual entry

  Items:
    GET    /api/items/suggestions        Distinct item names for autocomplete

  Invoice ids contain slashes ("DS/2024-25/0001"); clients must escape them
  ("DS%2F2024-25%2F0001"). The router matches on the raw path.

ERROR HANDLING:
  Engine errors map to status codes by sentinel:
  - 400: ErrValidation, malformed JSON or query
  - 404: ErrNotFound (also for records owned by another user)
  - 409: ErrConflict
  - 500: ErrConsistency, ErrDatabase and anything unexpected. The body only
         says "Internal error"; the cause is logged with the request id.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - accounting/engine.go: The operations called here
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/designersquare/bookkeeping/accounting"
	"github.com/designersquare/bookkeeping/logger"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine *accounting.Engine

	// MaxBodySize caps JSON request bodies.
	MaxBodySize int64
}

// NewHandler creates a handler over engine.
func NewHandler(engine *accounting.Engine) *Handler {
	return &Handler{Engine: engine, MaxBodySize: 1 << 20}
}

// =============================================================================
// INVOICE ENDPOINTS
// =============================================================================

// ListInvoices handles GET /api/invoices.
func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.Engine.ListInvoices(r.Context(), UserFrom(r.Context()))
	if err != nil {
		writeEngineError(w, r, err)
		return
	}

	dtos := make([]InvoiceDTO, len(invoices))
	for i := range invoices {
		dtos[i] = toInvoiceDTO(&invoices[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetInvoice handles GET /api/invoices/{id}.
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := invoiceIDParam(w, r)
	if !ok {
		return
	}

	inv, err := h.Engine.GetInvoice(r.Context(), UserFrom(r.Context()), id)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceDTO(inv))
}

// CreateInvoice handles POST /api/invoices.
func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req accounting.InvoiceInput
	if !h.decode(w, r, &req) {
		return
	}

	inv, err := h.Engine.CreateInvoice(r.Context(), UserFrom(r.Context()), req)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toInvoiceDTO(inv))
}

// UpdateInvoice handles PUT /api/invoices/{id}.
func (h *Handler) UpdateInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := invoiceIDParam(w, r)
	if !ok {
		return
	}
	var req accounting.InvoiceInput
	if !h.decode(w, r, &req) {
		return
	}

	userID := UserFrom(r.Context())
	if err := h.Engine.UpdateInvoice(r.Context(), userID, id, req); err != nil {
		writeEngineError(w, r, err)
		return
	}

	inv, err := h.Engine.GetInvoice(r.Context(), userID, id)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceDTO(inv))
}

// DeleteInvoice handles DELETE /api/invoices/{id}.
func (h *Handler) DeleteInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := invoiceIDParam(w, r)
	if !ok {
		return
	}
	if err := h.Engine.DeleteInvoice(r.Context(), UserFrom(r.Context()), id); err != nil {
		writeEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MarkPaid handles POST /api/invoices/{id}/paid.
func (h *Handler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	id, ok := invoiceIDParam(w, r)
	if !ok {
		return
	}
	if err := h.Engine.MarkPaid(r.Context(), UserFrom(r.Context()), id); err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": string(accounting.StatusPaid)})
}

// ItemSuggestions handles GET /api/items/suggestions.
func (h *Handler) ItemSuggestions(w http.ResponseWriter, r *http.Request) {
	names, err := h.Engine.ItemSuggestions(r.Context(), UserFrom(r.Context()))
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, names)
}

// =============================================================================
// CUSTOMER ENDPOINTS
// =============================================================================

// ListCustomers handles GET /api/customers?year=YYYY-YY. Without a year the
// current financial year is used.
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	fy := h.yearParam(r)

	balances, err := h.Engine.ListCustomersWithBalances(r.Context(), UserFrom(r.Context()), fy)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}

	dtos := make([]CustomerDTO, len(balances))
	for i, b := range balances {
		dtos[i] = toCustomerDTO(b.Customer)
		dtos[i].Balance = money(b.Balance)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateCustomer handles POST /api/customers.
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req accounting.CustomerInput
	if !h.decode(w, r, &req) {
		return
	}

	c, err := h.Engine.AddCustomer(r.Context(), UserFrom(r.Context()), req)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCustomerDTO(*c))
}

// UpdateCustomer handles PUT /api/customers/{id}.
func (h *Handler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	var req accounting.CustomerInput
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.Engine.UpdateCustomer(r.Context(), UserFrom(r.Context()), id, req); err != nil {
		writeEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteCustomer handles DELETE /api/customers/{id}.
func (h *Handler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	if err := h.Engine.DeleteCustomer(r.Context(), UserFrom(r.Context()), id); err != nil {
		writeEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// LEDGER ENDPOINTS
// =============================================================================

// GetLedger handles GET /api/ledger/{customer}?year=YYYY-YY.
func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	customer, ok := pathParam(w, r, "customer")
	if !ok {
		return
	}

	rows, err := h.Engine.GetLedger(r.Context(), UserFrom(r.Context()), customer, h.yearParam(r))
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLedgerRowDTOs(rows))
}

// AddLedgerEntry handles POST /api/ledger/{customer}.
func (h *Handler) AddLedgerEntry(w http.ResponseWriter, r *http.Request) {
	customer, ok := pathParam(w, r, "customer")
	if !ok {
		return
	}
	entry, ok := h.decodeEntry(w, r)
	if !ok {
		return
	}

	created, err := h.Engine.AddManualLedgerEntry(r.Context(), UserFrom(r.Context()), customer, entry)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreatedDTO{ID: strconv.FormatInt(created.ID, 10)})
}

// UpdateLedgerEntry handles PUT /api/ledger/entries/{id}.
func (h *Handler) UpdateLedgerEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	entry, ok := h.decodeEntry(w, r)
	if !ok {
		return
	}

	if err := h.Engine.UpdateManualLedgerEntry(r.Context(), UserFrom(r.Context()), id, entry); err != nil {
		writeEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteLedgerEntry handles DELETE /api/ledger/entries/{id}.
func (h *Handler) DeleteLedgerEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	if err := h.Engine.DeleteManualLedgerEntry(r.Context(), UserFrom(r.Context()), id); err != nil {
		writeEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if h.MaxBodySize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxBodySize)
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

func (h *Handler) decodeEntry(w http.ResponseWriter, r *http.Request) (accounting.ManualEntry, bool) {
	var req LedgerEntryRequest
	if !h.decode(w, r, &req) {
		return nil, false
	}
	entry, err := req.ManualEntry()
	if err != nil {
		writeEngineError(w, r, err)
		return nil, false
	}
	return entry, true
}

// yearParam returns ?year=, or the current financial year when absent.
// A malformed label is passed through for the engine to reject.
func (h *Handler) yearParam(r *http.Request) accounting.FinancialYear {
	if year := r.URL.Query().Get("year"); year != "" {
		return accounting.FinancialYear(year)
	}
	return h.Engine.CurrentFinancialYear()
}

// pathParam returns the unescaped URL parameter.
func pathParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	value, err := url.PathUnescape(chi.URLParam(r, name))
	if err != nil || value == "" {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s", name), err)
		return "", false
	}
	return value, true
}

func invoiceIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	return pathParam(w, r, "id")
}

func int64Param(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s", name), err)
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeEngineError maps an engine error to its status code. Server-side
// failures are logged and answered without details.
func writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *accounting.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: ve.Message, Code: "validation", Details: map[string]string{"field": ve.Field}})
	case errors.Is(err, accounting.ErrValidation):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "validation"})
	case errors.Is(err, accounting.ErrNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "not_found"})
	case errors.Is(err, accounting.ErrConflict):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "conflict"})
	default:
		logger.FromContext(r.Context()).Error("request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Internal error", Code: "internal"})
	}
}
