/*
balance_test.go - HTTP tests for ledger views and customer balances

Walks the first-invoice / second-invoice / delete / mirrored-row sequence
through the API and checks opening balances across a year boundary.
*/
package api_test

import (
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/designersquare/bookkeeping/api"
)

func invoiceTotal(client, date, total string) map[string]any {
	return map[string]any{
		"clientName":  client,
		"invoiceDate": date,
		"gstMode":     "NONE",
		"gstPercent":  0,
		"items":       []map[string]any{{"name": "Retainer", "quantity": 1, "rate": jsonNumber(total)}},
		"billFrom":    map[string]any{"name": "Designer Square", "streetAddress": "12 MG Road"},
		"billTo":      map[string]any{"name": client, "streetAddress": "4 Park St"},
	}
}

func jsonNumber(s string) any {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func customerBalance(t *testing.T, srv *testServer, userID, name, year string) string {
	t.Helper()
	rec := srv.do(http.MethodGet, "/api/customers?year="+year, userID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	for _, c := range decodeBody[[]api.CustomerDTO](t, rec) {
		if c.Name == name {
			return c.Balance
		}
	}
	t.Fatalf("customer %q not listed", name)
	return ""
}

func ledger(t *testing.T, srv *testServer, userID, name, year string) []api.LedgerRowDTO {
	t.Helper()
	rec := srv.do(http.MethodGet, "/api/ledger/"+name+"?year="+year, userID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decodeBody[[]api.LedgerRowDTO](t, rec)
}

// =============================================================================
// INVOICE LIFECYCLE
// =============================================================================

func TestLedger_InvoiceLifecycle(t *testing.T) {
	srv := newTestServer(t)

	// GIVEN: a user with no entries creates an invoice of 1180.00
	rec := srv.do(http.MethodPost, "/api/invoices", "u", invoiceTotal("Acme", "2024-05-01", "1180"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := decodeBody[api.InvoiceDTO](t, rec)
	assert.Equal(t, "DS/2024-25/0001", first.ID)

	// THEN: the ledger has an empty opening row and the mirrored entry
	rows := ledger(t, srv, "u", "Acme", "2024-25")
	require.Len(t, rows, 2)
	assert.Equal(t, "Opening Balance", rows[0].Particulars)
	assert.Equal(t, "0.00", rows[0].Dr)
	assert.Equal(t, "0.00", rows[0].Cr)
	assert.Equal(t, "1180.00", rows[1].Dr)
	require.NotNil(t, rows[1].InvoiceID)
	assert.Equal(t, first.ID, *rows[1].InvoiceID)

	// WHEN: a second invoice of 500 follows
	rec = srv.do(http.MethodPost, "/api/invoices", "u", invoiceTotal("Acme", "2024-06-01", "500"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	second := decodeBody[api.InvoiceDTO](t, rec)
	assert.Equal(t, "DS/2024-25/0002", second.ID)
	assert.Equal(t, "1680.00", customerBalance(t, srv, "u", "Acme", "2024-25"))

	// WHEN: the first invoice is deleted
	rec = srv.do(http.MethodDelete, "/api/invoices/"+escapeID(first.ID), "u", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// THEN: only the second entry remains
	rows = ledger(t, srv, "u", "Acme", "2024-25")
	require.Len(t, rows, 2)
	assert.Equal(t, "500.00", rows[1].Dr)
	assert.Equal(t, "500.00", rows[1].Balance)
	assert.Equal(t, "500.00", customerBalance(t, srv, "u", "Acme", "2024-25"))

	// AND: the mirrored row cannot be edited or deleted as a manual entry
	mirrored := strconv.FormatInt(rows[1].ID, 10)
	rec = srv.do(http.MethodPut, "/api/ledger/entries/"+mirrored, "u", map[string]any{
		"type": "payment", "date": "2024-06-02", "amount": 10,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = srv.do(http.MethodDelete, "/api/ledger/entries/"+mirrored, "u", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// MANUAL ENTRIES
// =============================================================================

func TestLedger_PaymentsAndGeneralEntries(t *testing.T) {
	srv := newTestServer(t)
	require.Equal(t, http.StatusCreated, srv.do(http.MethodPost, "/api/invoices", "u", invoiceTotal("Acme", "2024-05-01", "1000")).Code)

	// GIVEN: a UPI payment and a discount
	rec := srv.do(http.MethodPost, "/api/ledger/Acme", "u", map[string]any{
		"type": "payment", "date": "2024-05-10", "amount": 400, "method": "UPI",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	payment := decodeBody[api.CreatedDTO](t, rec)
	assert.NotEmpty(t, payment.ID)

	rec = srv.do(http.MethodPost, "/api/ledger/Acme", "u", map[string]any{
		"type": "entry", "date": "2024-05-20", "particulars": "Discount", "cr": 100,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// THEN: the running balance reflects both credits
	rows := ledger(t, srv, "u", "Acme", "2024-25")
	require.Len(t, rows, 4)
	assert.Equal(t, "400.00", rows[2].Cr)
	assert.Equal(t, "600.00", rows[2].Balance)
	assert.Equal(t, "Discount", rows[3].Particulars)
	assert.Equal(t, "500.00", rows[3].Balance)

	// WHEN: the payment is corrected
	rec = srv.do(http.MethodPut, "/api/ledger/entries/"+payment.ID, "u", map[string]any{
		"type": "payment", "date": "2024-05-10", "amount": 450, "method": "CHEQUE",
	})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	assert.Equal(t, "450.00", customerBalance(t, srv, "u", "Acme", "2024-25"))

	// WHEN: it is deleted
	rec = srv.do(http.MethodDelete, "/api/ledger/entries/"+payment.ID, "u", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "900.00", customerBalance(t, srv, "u", "Acme", "2024-25"))
}

func TestLedger_ManualEntryValidation(t *testing.T) {
	srv := newTestServer(t)
	require.Equal(t, http.StatusCreated, srv.do(http.MethodPost, "/api/invoices", "u", invoiceTotal("Acme", "2024-05-01", "1000")).Code)

	tests := []struct {
		name  string
		body  map[string]any
		field string
	}{
		{"missing type", map[string]any{"date": "2024-05-10", "amount": 10}, "type"},
		{"unknown type", map[string]any{"type": "refund", "date": "2024-05-10", "amount": 10}, "type"},
		{"zero payment", map[string]any{"type": "payment", "date": "2024-05-10", "amount": 0}, "amount"},
		{"both sides", map[string]any{"type": "entry", "date": "2024-05-10", "particulars": "x", "dr": 1, "cr": 1}, "amount"},
		{"no particulars", map[string]any{"type": "entry", "date": "2024-05-10", "dr": 1}, "particulars"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := srv.do(http.MethodPost, "/api/ledger/Acme", "u", tt.body)

			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			resp := decodeBody[struct {
				Code    string            `json:"code"`
				Details map[string]string `json:"details"`
			}](t, rec)
			assert.Equal(t, "validation", resp.Code)
			assert.Equal(t, tt.field, resp.Details["field"])
		})
	}

	// nothing was booked
	assert.Len(t, ledger(t, srv, "u", "Acme", "2024-25"), 2)
}

func TestLedger_UnknownCustomer(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(http.MethodGet, "/api/ledger/Nobody?year=2024-25", "u", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = srv.do(http.MethodPost, "/api/ledger/Nobody", "u", map[string]any{
		"type": "payment", "date": "2024-05-10", "amount": 10,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// FINANCIAL YEAR BOUNDARIES
// =============================================================================

func TestLedger_OpeningBalanceCarriesAcrossYears(t *testing.T) {
	srv := newTestServer(t)

	// GIVEN: activity in FY 2023-24, recorded in the current year's sequence
	require.Equal(t, http.StatusCreated, srv.do(http.MethodPost, "/api/invoices", "u", invoiceTotal("Acme", "2024-03-10", "1000")).Code)
	rec := srv.do(http.MethodPost, "/api/ledger/Acme", "u", map[string]any{
		"type": "payment", "date": "2024-03-20", "amount": 400,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, http.StatusCreated, srv.do(http.MethodPost, "/api/invoices", "u", invoiceTotal("Acme", "2024-04-01", "50")).Code)

	// THEN: 2023-24 closes at 600
	assert.Equal(t, "600.00", customerBalance(t, srv, "u", "Acme", "2023-24"))

	// AND: 2024-25 opens with it as a debit
	rows := ledger(t, srv, "u", "Acme", "2024-25")
	require.Len(t, rows, 2)
	assert.Equal(t, "2024-04-01", rows[0].BillDate)
	assert.Equal(t, "600.00", rows[0].Dr)
	assert.Equal(t, "650.00", rows[1].Balance)
	assert.Equal(t, "650.00", customerBalance(t, srv, "u", "Acme", "2024-25"))
}

func TestLedger_CreditOpeningBalance(t *testing.T) {
	srv := newTestServer(t)
	require.Equal(t, http.StatusCreated, srv.do(http.MethodPost, "/api/customers", "u", map[string]any{"name": "Acme"}).Code)

	// GIVEN: an advance received in the previous year
	rec := srv.do(http.MethodPost, "/api/ledger/Acme", "u", map[string]any{
		"type": "payment", "date": "2024-02-01", "amount": 250,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rows := ledger(t, srv, "u", "Acme", "2024-25")
	require.Len(t, rows, 1)
	assert.Equal(t, "0.00", rows[0].Dr)
	assert.Equal(t, "250.00", rows[0].Cr)
	assert.Equal(t, "-250.00", rows[0].Balance)
}

func TestLedger_RejectsMismatchedYearSuffix(t *testing.T) {
	srv := newTestServer(t)
	require.Equal(t, http.StatusCreated, srv.do(http.MethodPost, "/api/customers", "u", map[string]any{"name": "Acme"}).Code)

	rec := srv.do(http.MethodGet, "/api/ledger/Acme?year=2024-26", "u", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
