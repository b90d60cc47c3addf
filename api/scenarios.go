/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate one user's books with
	realistic data for demos and manual testing. Every scenario goes through
	the engine, so ids, mirrored entries and implicit customers are produced
	exactly as in normal use.

AVAILABLE SCENARIOS:

	first-invoice:   One customer, one GST invoice
	part-payments:   Invoice settled by two payments, balance outstanding
	year-rollover:   Previous-year activity carried in as an opening balance
	multi-customer:  Several customers, a discount entry and a paid invoice

HOW SCENARIOS WORK:
 1. Resolve the current financial year from the engine's clock
 2. Date everything relative to its first day
 3. Create customers, invoices and manual entries for the user

	Nothing is reset. Loading a scenario twice adds a second set of invoices
	under new ids; explicit customers that already exist are reused.

USAGE:

	GET  /api/scenarios
	POST /api/scenarios/load   {"scenarioId": "part-payments"}
	books seed --user alice --scenario part-payments

	The HTTP routes are only mounted outside production.

SEE ALSO:
  - server.go: RouterConfig.EnableScenarios
  - cmd/server/main.go: seed command
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/designersquare/bookkeeping/accounting"
)

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

// Scenarios lists every scenario LoadScenario accepts.
var Scenarios = []ScenarioDTO{
	{
		ID:          "first-invoice",
		Name:        "First Invoice",
		Description: "One customer with a single 18% IGST invoice",
	},
	{
		ID:          "part-payments",
		Name:        "Part Payments",
		Description: "Invoice paid in two instalments with an amount still due",
	},
	{
		ID:          "year-rollover",
		Name:        "Year Rollover",
		Description: "Previous-year invoice and payment carried in as an opening balance",
	},
	{
		ID:          "multi-customer",
		Name:        "Multiple Customers",
		Description: "Three customers, a discount entry and an invoice marked paid",
	},
}

// ErrUnknownScenario is returned by LoadScenario for an id not in Scenarios.
var ErrUnknownScenario = errors.New("unknown scenario")

// LoadScenario populates userID's books with the scenario's data.
func LoadScenario(ctx context.Context, engine *accounting.Engine, userID, scenarioID string) error {
	fy := engine.CurrentFinancialYear()
	period, err := engine.Calendar().Bounds(fy)
	if err != nil {
		return err
	}
	s := &seeder{engine: engine, userID: userID, start: period.Start}

	switch scenarioID {
	case "first-invoice":
		return s.firstInvoice(ctx)
	case "part-payments":
		return s.partPayments(ctx)
	case "year-rollover":
		return s.yearRollover(ctx)
	case "multi-customer":
		return s.multiCustomer(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownScenario, scenarioID)
	}
}

// =============================================================================
// HTTP
// =============================================================================

// ListScenarios handles GET /api/scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Scenarios)
}

// LoadScenario handles POST /api/scenarios/load for the calling user.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenarioId"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	err := LoadScenario(r.Context(), h.Engine, UserFrom(r.Context()), req.ScenarioID)
	if errors.Is(err, ErrUnknownScenario) {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

type seeder struct {
	engine *accounting.Engine
	userID string
	start  accounting.Date // first day of the current financial year
}

var studio = accounting.Address{
	Name:          "Designer Square",
	Email:         "accounts@designersquare.in",
	StreetAddress: "14 Residency Road",
	City:          "Bengaluru",
	PostCode:      "560025",
	Country:       "India",
	GSTIN:         "29ABCDE1234F1Z5",
}

func (s *seeder) day(offset int) accounting.Date {
	return s.start.AddDays(offset)
}

func (s *seeder) customer(ctx context.Context, in accounting.CustomerInput) error {
	_, err := s.engine.AddCustomer(ctx, s.userID, in)
	if errors.Is(err, accounting.ErrConflict) {
		return nil
	}
	return err
}

type line struct {
	name string
	qty  string
	rate string
}

func (s *seeder) invoice(ctx context.Context, client string, date accounting.Date, gst string, lines ...line) (*accounting.Invoice, error) {
	items := make([]accounting.ItemInput, len(lines))
	for i, l := range lines {
		items[i] = accounting.ItemInput{
			Name:     l.name,
			Quantity: accounting.NewMoney(l.qty),
			Rate:     accounting.NewMoney(l.rate),
			Unit:     "nos",
		}
	}
	return s.engine.CreateInvoice(ctx, s.userID, accounting.InvoiceInput{
		ClientName:   client,
		Items:        items,
		BillFrom:     studio,
		BillTo:       accounting.Address{Name: client, StreetAddress: "Client office", Country: "India"},
		InvoiceDate:  date,
		GSTMode:      "IGST",
		GSTPercent:   accounting.NewMoney(gst),
		PaymentTerms: "15 days",
	})
}

func (s *seeder) payment(ctx context.Context, client string, date accounting.Date, amount, method string) error {
	_, err := s.engine.AddManualLedgerEntry(ctx, s.userID, client, accounting.Payment{
		Date:   date,
		Amount: accounting.NewMoney(amount),
		Method: method,
	})
	return err
}

func (s *seeder) firstInvoice(ctx context.Context) error {
	err := s.customer(ctx, accounting.CustomerInput{
		Name:          "Lotus Interiors",
		Email:         "billing@lotus.example",
		StreetAddress: "22 Brigade Road",
		City:          "Bengaluru",
		Country:       "India",
	})
	if err != nil {
		return err
	}
	_, err = s.invoice(ctx, "Lotus Interiors", s.day(10), "18",
		line{"Brand identity", "1", "25000"},
		line{"Business cards", "500", "4"},
	)
	return err
}

func (s *seeder) partPayments(ctx context.Context) error {
	// 40000 + 18% = 47200; 30000 received
	if _, err := s.invoice(ctx, "Monsoon Cafe", s.day(5), "18", line{"Menu design", "4", "10000"}); err != nil {
		return err
	}
	if err := s.payment(ctx, "Monsoon Cafe", s.day(20), "20000", "UPI"); err != nil {
		return err
	}
	return s.payment(ctx, "Monsoon Cafe", s.day(45), "10000", "CHEQUE")
}

func (s *seeder) yearRollover(ctx context.Context) error {
	// previous year closes at 11800 - 8000 = 3800
	if _, err := s.invoice(ctx, "Harbor Logistics", s.day(-40), "18", line{"Website refresh", "1", "10000"}); err != nil {
		return err
	}
	if err := s.payment(ctx, "Harbor Logistics", s.day(-10), "8000", "NEFT"); err != nil {
		return err
	}
	_, err := s.invoice(ctx, "Harbor Logistics", s.day(30), "18", line{"Brochure", "2", "2500"})
	return err
}

func (s *seeder) multiCustomer(ctx context.Context) error {
	for _, name := range []string{"Kite Studios", "Saffron Foods"} {
		if err := s.customer(ctx, accounting.CustomerInput{Name: name, Country: "India"}); err != nil {
			return err
		}
	}

	kite, err := s.invoice(ctx, "Kite Studios", s.day(3), "18", line{"Poster series", "3", "6000"})
	if err != nil {
		return err
	}
	if err := s.payment(ctx, "Kite Studios", s.day(12), kite.Total.StringFixed(2), "UPI"); err != nil {
		return err
	}
	if err := s.engine.MarkPaid(ctx, s.userID, kite.ID); err != nil {
		return err
	}

	if _, err := s.invoice(ctx, "Saffron Foods", s.day(8), "12", line{"Packaging design", "1", "30000"}); err != nil {
		return err
	}
	_, err = s.engine.AddManualLedgerEntry(ctx, s.userID, "Saffron Foods", accounting.GeneralEntry{
		Date:        s.day(15),
		Particulars: "Early payment discount",
		Credit:      accounting.NewMoney("1000"),
	})
	if err != nil {
		return err
	}

	// implicit customer
	_, err = s.invoice(ctx, "Northwind Books", s.day(25), "0", line{"Cover illustration", "1", "12000"})
	return err
}
