/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:     Unique ID per request, echoed in logs and 500 bodies
  2. RealIP:        Client address behind the reverse proxy
  3. RequestLogger: zap request logging + latency histogram
  4. Recoverer:     Panic recovery (500 instead of crash)
  5. CORS:          Cross-origin requests for the frontend

  /api only:
  6. RequireUser:   Bearer token -> user id (401 otherwise)
  7. WriteLimiter:  Per-user token bucket on POST/PUT/DELETE (429)

ROUTE GROUPS:
  /api/invoices/*       Invoice CRUD and mark-paid
  /api/customers/*      Customers and their balances
  /api/ledger/*         Ledger views and manual entries
  /api/items/*          Item suggestions
  /api/scenarios/*      Demo data (EnableScenarios only)
  /healthz              Database ping, unauthenticated
  /metrics              Prometheus scrape endpoint, unauthenticated

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go, ratelimit.go, middleware.go: the middleware above
  - cmd/server/main.go: Server startup
*/
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// RouterConfig carries everything NewRouter wires besides the handler.
type RouterConfig struct {
	Auth        Authenticator
	Logger      *zap.Logger
	CORSOrigins []string

	// Limiter throttles writes per user; nil disables it.
	Limiter *WriteLimiter

	// Observer records request latencies; nil disables it.
	Observer RequestObserver

	// Metrics is mounted on /metrics when set.
	Metrics http.Handler

	// Health is called by /healthz, typically the store's Ping.
	Health func(ctx context.Context) error

	// EnableScenarios mounts the demo scenario routes.
	EnableScenarios bool
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(cfg.Logger, cfg.Observer))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", healthHandler(cfg.Health))
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(RequireUser(cfg.Auth))
		if cfg.Limiter != nil {
			r.Use(cfg.Limiter.Middleware)
		}

		r.Route("/invoices", func(r chi.Router) {
			r.Get("/", h.ListInvoices)
			r.Post("/", h.CreateInvoice)
			r.Get("/{id}", h.GetInvoice)
			r.Put("/{id}", h.UpdateInvoice)
			r.Delete("/{id}", h.DeleteInvoice)
			r.Post("/{id}/paid", h.MarkPaid)
		})

		r.Route("/customers", func(r chi.Router) {
			r.Get("/", h.ListCustomers)
			r.Post("/", h.CreateCustomer)
			r.Put("/{id}", h.UpdateCustomer)
			r.Delete("/{id}", h.DeleteCustomer)
		})

		r.Route("/ledger", func(r chi.Router) {
			r.Put("/entries/{id}", h.UpdateLedgerEntry)
			r.Delete("/entries/{id}", h.DeleteLedgerEntry)
			r.Get("/{customer}", h.GetLedger)
			r.Post("/{customer}", h.AddLedgerEntry)
		})

		r.Get("/items/suggestions", h.ItemSuggestions)

		if cfg.EnableScenarios {
			r.Get("/scenarios", h.ListScenarios)
			r.Post("/scenarios/load", h.LoadScenario)
		}
	})

	return r
}

func healthHandler(ping func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				writeError(w, http.StatusServiceUnavailable, "Database unavailable", nil)
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
