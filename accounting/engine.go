/*
engine.go - The accounting engine: every write is one unit of work

PURPOSE:
  Engine is the programmatic surface the api (or any other caller) uses.
  Writes run through Engine.run, which opens exactly one store transaction,
  drives customer resolution, invoice numbering and ledger mirroring, then
  commits or rolls back as a whole. Reads go straight to the store.

UNIT OF WORK:
  Idle -> Open -> Committed | RolledBack

  - Input is validated BEFORE run, so doomed requests never take locks.
  - Inside run, any error rolls back everything written so far.
  - Store failures that are not already classified become *DatabaseError.
  - The transaction is released on every exit path (Store.WithTx).
  - Nothing is retried here. Retrying a non-idempotent accounting write is
    the caller's decision.

CREATE INVOICE:
  validate -> run{ allocate id -> resolve customer -> insert invoice -> mirror }

  The id is allocated first so the scope lock also serializes implicit
  customer creation between two invoices of the same user and year.

UPDATE INVOICE:
  validate -> run{ update invoice (0 rows = NotFound) -> resolve customer -> mirror update (!= 1 row = Consistency) }

DELETE INVOICE:
  run{ delete mirrored entries -> delete invoice (0 rows = NotFound) }

CONCURRENCY:
  The only serialization point is the invoice-number scope lock taken by
  NextInvoiceID. Balance reads take no locks and see committed data at the
  store's default isolation level (read committed / WAL snapshot).

SEE ALSO:
  - store.go: Store/Tx contract
  - sequence.go, mirror.go, customer.go, balance.go: the steps
*/
package accounting

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// =============================================================================
// METRICS HOOK
// =============================================================================

// Metrics receives engine events. The metrics package implements it with
// Prometheus; the zero Engine uses a no-op.
type Metrics interface {
	TransactionFinished(op string, committed bool)
	InvoiceNumberAllocated(fy FinancialYear)
	CustomerCreated(implicit bool)
}

type nopMetrics struct{}

func (nopMetrics) TransactionFinished(string, bool)     {}
func (nopMetrics) InvoiceNumberAllocated(FinancialYear) {}
func (nopMetrics) CustomerCreated(bool)                 {}

// =============================================================================
// ENGINE
// =============================================================================

// Engine coordinates invoice, customer and ledger operations for all users.
// It holds no per-user state and is safe for concurrent use.
type Engine struct {
	store    Store
	calendar Calendar
	clock    Clock
	validate *validator.Validate
	logger   *zap.Logger
	metrics  Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock sets the source of "today".
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithCalendar sets the financial-year calendar.
func WithCalendar(c Calendar) Option {
	return func(e *Engine) { e.calendar = c }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates an engine over store.
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		calendar: DefaultCalendar,
		clock:    SystemClock{},
		validate: newValidator(),
		logger:   zap.NewNop(),
		metrics:  nopMetrics{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CurrentFinancialYear is the financial year containing today.
func (e *Engine) CurrentFinancialYear() FinancialYear {
	return e.calendar.Current(e.clock)
}

// Calendar returns the engine's financial-year calendar.
func (e *Engine) Calendar() Calendar {
	return e.calendar
}

// run executes fn as one unit of work and records its outcome.
func (e *Engine) run(ctx context.Context, op, userID string, fn func(tx Tx) error) error {
	err := storeError(op, e.store.WithTx(ctx, fn))

	e.metrics.TransactionFinished(op, err == nil)
	if err != nil {
		level := zap.InfoLevel
		if !IsClientError(err) && !IsNotFound(err) {
			level = zap.ErrorLevel
		}
		e.logger.Check(level, "accounting transaction rolled back").Write(
			zap.String("op", op),
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return err
	}

	e.logger.Debug("accounting transaction committed",
		zap.String("op", op),
		zap.String("user_id", userID),
	)
	return nil
}

// resolveCustomer wraps ResolveCustomer with logging of implicit creation.
func (e *Engine) resolveCustomer(ctx context.Context, tx Tx, userID, name string) (int64, error) {
	id, created, err := ResolveCustomer(ctx, tx, userID, name)
	if err != nil {
		return 0, err
	}
	if created {
		e.metrics.CustomerCreated(true)
		e.logger.Info("customer created from invoice",
			zap.String("user_id", userID),
			zap.String("customer", name),
			zap.Int64("customer_id", id),
		)
	}
	return id, nil
}

// =============================================================================
// INVOICE WRITES
// =============================================================================

// CreateInvoice validates the input, allocates the next id of the current
// financial year and stores the invoice with its mirrored ledger entry.
// A customer with the invoice's client name is created if the user has none.
func (e *Engine) CreateInvoice(ctx context.Context, userID string, input InvoiceInput) (*Invoice, error) {
	input = input.normalize()
	if err := validationError(e.validate.Struct(input)); err != nil {
		return nil, err
	}

	inv := input.build(userID)
	if inv.Status == "" {
		inv.Status = StatusPending
	}
	fy := e.CurrentFinancialYear()

	err := e.run(ctx, "create_invoice", userID, func(tx Tx) error {
		var err error
		inv.ID, err = NextInvoiceID(ctx, tx, userID, fy)
		if err != nil {
			return err
		}

		customerID, err := e.resolveCustomer(ctx, tx, userID, inv.ClientName)
		if err != nil {
			return err
		}

		if err := tx.InsertInvoice(ctx, inv); err != nil {
			return err
		}
		return MirrorInvoiceCreated(ctx, tx, inv, customerID)
	})
	if err != nil {
		return nil, err
	}

	e.metrics.InvoiceNumberAllocated(fy)
	e.logger.Info("invoice created",
		zap.String("user_id", userID),
		zap.String("invoice_id", inv.ID),
		zap.String("total", inv.Total.StringFixed(2)),
	)
	return inv, nil
}

// UpdateInvoice replaces every field of the invoice, recomputes its totals
// and moves its mirrored entry to the new date, total and customer. An
// empty status keeps the stored one.
func (e *Engine) UpdateInvoice(ctx context.Context, userID, invoiceID string, input InvoiceInput) error {
	input = input.normalize()
	if err := validationError(e.validate.Struct(input)); err != nil {
		return err
	}

	inv := input.build(userID)
	inv.ID = invoiceID

	return e.run(ctx, "update_invoice", userID, func(tx Tx) error {
		n, err := tx.UpdateInvoice(ctx, inv)
		if err != nil {
			return err
		}
		if n == 0 {
			return &NotFoundError{Kind: "invoice", ID: invoiceID}
		}

		customerID, err := e.resolveCustomer(ctx, tx, userID, inv.ClientName)
		if err != nil {
			return err
		}
		return MirrorInvoiceUpdated(ctx, tx, inv, customerID)
	})
}

// DeleteInvoice removes the invoice and its mirrored entry.
func (e *Engine) DeleteInvoice(ctx context.Context, userID, invoiceID string) error {
	return e.run(ctx, "delete_invoice", userID, func(tx Tx) error {
		if err := MirrorInvoiceDeleted(ctx, tx, userID, invoiceID); err != nil {
			return err
		}
		n, err := tx.DeleteInvoice(ctx, userID, invoiceID)
		if err != nil {
			return err
		}
		if n == 0 {
			return &NotFoundError{Kind: "invoice", ID: invoiceID}
		}
		return nil
	})
}

// MarkPaid sets the invoice's status to paid. The ledger is untouched;
// money received is booked separately as a Payment.
func (e *Engine) MarkPaid(ctx context.Context, userID, invoiceID string) error {
	return e.run(ctx, "mark_paid", userID, func(tx Tx) error {
		n, err := tx.SetInvoiceStatus(ctx, userID, invoiceID, StatusPaid)
		if err != nil {
			return err
		}
		if n == 0 {
			return &NotFoundError{Kind: "invoice", ID: invoiceID}
		}
		return nil
	})
}

// =============================================================================
// INVOICE READS
// =============================================================================

// GetInvoice returns one of the user's invoices.
func (e *Engine) GetInvoice(ctx context.Context, userID, invoiceID string) (*Invoice, error) {
	inv, err := e.store.GetInvoice(ctx, userID, invoiceID)
	return inv, storeError("get_invoice", err)
}

// ListInvoices returns the user's invoices, newest id first.
func (e *Engine) ListInvoices(ctx context.Context, userID string) ([]Invoice, error) {
	invoices, err := e.store.ListInvoices(ctx, userID)
	return invoices, storeError("list_invoices", err)
}

// ItemSuggestions returns the distinct item names used on the user's
// invoices, sorted, for autocompletion.
func (e *Engine) ItemSuggestions(ctx context.Context, userID string) ([]string, error) {
	invoices, err := e.store.ListInvoices(ctx, userID)
	if err != nil {
		return nil, storeError("item_suggestions", err)
	}

	seen := make(map[string]bool)
	names := []string{}
	for _, inv := range invoices {
		for _, item := range inv.Items {
			name := strings.TrimSpace(item.Name)
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// =============================================================================
// BALANCES
// =============================================================================

// ListCustomersWithBalances returns every customer of the user with its
// closing position for the financial year.
func (e *Engine) ListCustomersWithBalances(ctx context.Context, userID string, fy FinancialYear) ([]CustomerBalance, error) {
	period, err := e.calendar.Bounds(fy)
	if err != nil {
		return nil, err
	}

	customers, err := e.store.ListCustomers(ctx, userID)
	if err != nil {
		return nil, storeError("list_customers", err)
	}
	entries, err := e.store.UserEntries(ctx, userID)
	if err != nil {
		return nil, storeError("list_customers", err)
	}

	byCustomer := groupByCustomer(entries)
	out := make([]CustomerBalance, len(customers))
	for i, c := range customers {
		out[i] = CustomerBalance{
			Customer: c,
			Balance:  Summarize(byCustomer[c.ID], period),
		}
	}
	return out, nil
}

// GetLedger returns the customer's financial-year ledger view, opening
// balance first.
func (e *Engine) GetLedger(ctx context.Context, userID, customerName string, fy FinancialYear) ([]LedgerRow, error) {
	period, err := e.calendar.Bounds(fy)
	if err != nil {
		return nil, err
	}

	customer, err := e.store.FindCustomerByName(ctx, userID, strings.TrimSpace(customerName))
	if err != nil {
		return nil, storeError("get_ledger", err)
	}

	entries, err := e.store.CustomerEntries(ctx, userID, customer.ID)
	if err != nil {
		return nil, storeError("get_ledger", err)
	}
	return BuildLedgerView(entries, period), nil
}

// =============================================================================
// MANUAL LEDGER WRITES
// =============================================================================

// AddManualLedgerEntry books a payment or general entry against an
// existing customer of the user.
func (e *Engine) AddManualLedgerEntry(ctx context.Context, userID, customerName string, entry ManualEntry) (*LedgerEntry, error) {
	if entry == nil {
		return nil, &ValidationError{Field: "type", Message: "entry type is required"}
	}
	if err := entry.Validate(); err != nil {
		return nil, err
	}
	customerName = strings.TrimSpace(customerName)

	var created LedgerEntry
	err := e.run(ctx, "add_ledger_entry", userID, func(tx Tx) error {
		customerID, found, err := tx.FindCustomerID(ctx, userID, customerName)
		if err != nil {
			return err
		}
		if !found {
			return &NotFoundError{Kind: "customer", ID: customerName}
		}
		created, err = AddManualEntry(ctx, tx, userID, customerID, entry)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateManualLedgerEntry rewrites a manual entry. Mirrored entries are
// reported as not found.
func (e *Engine) UpdateManualLedgerEntry(ctx context.Context, userID string, entryID int64, entry ManualEntry) error {
	if entry == nil {
		return &ValidationError{Field: "type", Message: "entry type is required"}
	}
	if err := entry.Validate(); err != nil {
		return err
	}
	return e.run(ctx, "update_ledger_entry", userID, func(tx Tx) error {
		return UpdateManualEntry(ctx, tx, userID, entryID, entry)
	})
}

// DeleteManualLedgerEntry removes a manual entry. Mirrored entries are
// reported as not found.
func (e *Engine) DeleteManualLedgerEntry(ctx context.Context, userID string, entryID int64) error {
	return e.run(ctx, "delete_ledger_entry", userID, func(tx Tx) error {
		return DeleteManualEntry(ctx, tx, userID, entryID)
	})
}

// =============================================================================
// CUSTOMER MANAGEMENT
// =============================================================================

// AddCustomer creates a customer explicitly.
func (e *Engine) AddCustomer(ctx context.Context, userID string, input CustomerInput) (*Customer, error) {
	c, err := e.customerFromInput(userID, input)
	if err != nil {
		return nil, err
	}

	err = e.run(ctx, "add_customer", userID, func(tx Tx) error {
		id, err := tx.InsertCustomer(ctx, c)
		c.ID = id
		return err
	})
	if err != nil {
		return nil, err
	}
	e.metrics.CustomerCreated(false)
	return &c, nil
}

// UpdateCustomer replaces a customer's name and contact fields. Invoices
// keep their client-name snapshot.
func (e *Engine) UpdateCustomer(ctx context.Context, userID string, customerID int64, input CustomerInput) error {
	c, err := e.customerFromInput(userID, input)
	if err != nil {
		return err
	}
	c.ID = customerID

	return e.run(ctx, "update_customer", userID, func(tx Tx) error {
		n, err := tx.UpdateCustomer(ctx, c)
		if err != nil {
			return err
		}
		if n == 0 {
			return customerNotFound(customerID)
		}
		return nil
	})
}

// DeleteCustomer removes a customer together with its manual ledger
// entries. A customer that invoices still mirror into cannot be deleted;
// delete those invoices first.
func (e *Engine) DeleteCustomer(ctx context.Context, userID string, customerID int64) error {
	return e.run(ctx, "delete_customer", userID, func(tx Tx) error {
		mirrored, err := tx.CountMirroredEntries(ctx, userID, customerID)
		if err != nil {
			return err
		}
		if mirrored > 0 {
			return &ConflictError{Message: "customer still has invoices; delete them first"}
		}

		if _, err := tx.DeleteManualEntriesOf(ctx, userID, customerID); err != nil {
			return err
		}
		n, err := tx.DeleteCustomer(ctx, userID, customerID)
		if err != nil {
			return err
		}
		if n == 0 {
			return customerNotFound(customerID)
		}
		return nil
	})
}

func (e *Engine) customerFromInput(userID string, input CustomerInput) (Customer, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.TrimSpace(input.Email)
	if err := validationError(e.validate.Struct(input)); err != nil {
		return Customer{}, err
	}
	return input.customer(userID), nil
}

func customerNotFound(customerID int64) error {
	return &NotFoundError{Kind: "customer", ID: strconv.FormatInt(customerID, 10)}
}

// =============================================================================
// INTEGRITY
// =============================================================================

// CheckMirrorIntegrity lists invoices whose mirrored-entry count is not
// exactly one. It only reports; repairs are a human decision.
func (e *Engine) CheckMirrorIntegrity(ctx context.Context) ([]MirrorAnomaly, error) {
	anomalies, err := e.store.MirrorAnomalies(ctx)
	return anomalies, storeError("check_mirror_integrity", err)
}
