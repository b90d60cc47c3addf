package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_EngineEvents(t *testing.T) {
	r := New()

	r.TransactionFinished("create_invoice", true)
	r.TransactionFinished("create_invoice", true)
	r.TransactionFinished("create_invoice", false)
	r.InvoiceNumberAllocated("2024-25")
	r.CustomerCreated(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.transactions.WithLabelValues("create_invoice", "committed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.transactions.WithLabelValues("create_invoice", "rolled_back")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.invoiceNumbers.WithLabelValues("2024-25")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.customersCreated.WithLabelValues("true")))
}

func TestRecorder_IntegrityChecked(t *testing.T) {
	r := New()

	r.IntegrityChecked(3, nil)
	assert.Equal(t, 3.0, testutil.ToFloat64(r.mirrorAnomalies))

	// a failed check keeps the last known gauge value
	r.IntegrityChecked(0, errors.New("database is locked"))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.mirrorAnomalies))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.integrityChecks.WithLabelValues("error")))
}

func TestRecorder_Handler(t *testing.T) {
	r := New()
	r.ObserveRequest("/api/invoices", http.MethodPost, http.StatusCreated, 20*time.Millisecond)
	r.RateLimited()

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `bookkeeping_http_request_duration_seconds_count{method="POST",route="/api/invoices",status="201"} 1`)
	assert.Contains(t, string(body), "bookkeeping_http_rate_limited_total 1")
	assert.Contains(t, string(body), "go_goroutines")
}
