// Package metrics exposes bookkeeping and HTTP metrics to Prometheus.
//
// Recorder implements accounting.Metrics, so the engine reports through it
// without importing Prometheus. All collectors live in a private registry
// served by Handler.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/designersquare/bookkeeping/accounting"
)

const namespace = "bookkeeping"

// Recorder holds every collector of the service.
//
// Thread Safety: Safe for concurrent use.
type Recorder struct {
	registry *prometheus.Registry

	transactions      *prometheus.CounterVec
	invoiceNumbers    *prometheus.CounterVec
	customersCreated  *prometheus.CounterVec
	mirrorAnomalies   prometheus.Gauge
	integrityChecks   *prometheus.CounterVec
	requestDurations  *prometheus.HistogramVec
	rateLimitRejected prometheus.Counter
}

var _ accounting.Metrics = (*Recorder)(nil)

// New creates a Recorder with its own registry, including Go runtime and
// process collectors.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),

		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_total",
			Help:      "Accounting units of work by operation and outcome.",
		}, []string{"op", "outcome"}),

		invoiceNumbers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invoice_numbers_allocated_total",
			Help:      "Invoice numbers committed, by financial year.",
		}, []string{"financial_year"}),

		customersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "customers_created_total",
			Help:      "Customers created, split by implicit (from an invoice) or explicit.",
		}, []string{"implicit"}),

		mirrorAnomalies: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mirror_anomalies",
			Help:      "Invoices without exactly one mirrored ledger entry at the last integrity check.",
		}),

		integrityChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "integrity_checks_total",
			Help:      "Background mirror integrity checks by outcome.",
		}, []string{"outcome"}),

		requestDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route pattern, method and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),

		rateLimitRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Write requests rejected by the per-user rate limiter.",
		}),
	}

	r.registry.MustRegister(
		r.transactions,
		r.invoiceNumbers,
		r.customersCreated,
		r.mirrorAnomalies,
		r.integrityChecks,
		r.requestDurations,
		r.rateLimitRejected,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Registry exposes the registry for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// =============================================================================
// accounting.Metrics
// =============================================================================

func (r *Recorder) TransactionFinished(op string, committed bool) {
	outcome := "rolled_back"
	if committed {
		outcome = "committed"
	}
	r.transactions.WithLabelValues(op, outcome).Inc()
}

func (r *Recorder) InvoiceNumberAllocated(fy accounting.FinancialYear) {
	r.invoiceNumbers.WithLabelValues(fy.String()).Inc()
}

func (r *Recorder) CustomerCreated(implicit bool) {
	r.customersCreated.WithLabelValues(strconv.FormatBool(implicit)).Inc()
}

// =============================================================================
// INTEGRITY / HTTP
// =============================================================================

// IntegrityChecked records the outcome of one background integrity check.
func (r *Recorder) IntegrityChecked(anomalies int, err error) {
	if err != nil {
		r.integrityChecks.WithLabelValues("error").Inc()
		return
	}
	r.integrityChecks.WithLabelValues("ok").Inc()
	r.mirrorAnomalies.Set(float64(anomalies))
}

// ObserveRequest records one HTTP request.
func (r *Recorder) ObserveRequest(route, method string, status int, elapsed time.Duration) {
	r.requestDurations.WithLabelValues(route, method, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// RateLimited counts one rejected write.
func (r *Recorder) RateLimited() {
	r.rateLimitRejected.Inc()
}
