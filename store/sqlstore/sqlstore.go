/*
Package sqlstore implements accounting.Store on database/sql.

PURPOSE:
  Holds every query of the bookkeeping schema once. The sqlite and postgres
  packages open the connection pool, create the schema and supply a Dialect;
  everything else lives here.

INTERFACES IMPLEMENTED:
  accounting.Store: reads on the pool, writes through WithTx
  accounting.Tx:    txStore, bound to one *sql.Tx

KEY TABLES:
  invoices:       (user_id, id) primary key, items/bill_from/bill_to as JSON
  customers:      UNIQUE(user_id, name)
  ledger_entries: invoice_id NULL for manual entries; a partial unique index
                  allows at most one mirrored entry per (user_id, invoice_id)

CONNECTION POOL:
  One *sql.DB is shared by all requests. Every unit of work borrows one
  connection through BeginTx and returns it on commit or rollback; the
  deferred Rollback in WithTx makes the release unconditional.

MONEY AND DATES:
  decimal.Decimal and accounting.Date implement Scanner/Valuer, so amounts
  travel as exact text and dates as "YYYY-MM-DD" on both databases.

SEE ALSO:
  - accounting/store.go: the contract
  - store/sqlite, store/postgres: dialects and schema
*/
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/designersquare/bookkeeping/accounting"
)

// Store implements accounting.Store over a database/sql pool.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

var _ accounting.Store = (*Store)(nil)

// New wraps an open pool. The schema must already exist.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// DB exposes the pool for migrations and health checks.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the store's dialect.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// =============================================================================
// TRANSACTIONAL STORE (accounting.Store interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx accounting.Tx) error) (err error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			sqlTx.Rollback()
		}
	}()

	if err = fn(&txStore{tx: sqlTx, s: s}); err != nil {
		return err
	}

	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// =============================================================================
// INVOICES (accounting.Reader)
// =============================================================================

const invoiceColumns = `id, user_id, client_name, amount, status, items, bill_from, bill_to,
	project_description, payment_terms, invoice_date, terms_of_payment, suppliers_ref, other_ref,
	subtotal, gst_amount, total, hsn, gst_mode, gst_percent`

// GetInvoice returns one invoice of the user.
func (s *Store) GetInvoice(ctx context.Context, userID, invoiceID string) (*accounting.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE user_id = ? AND id = ?`

	row := s.db.QueryRowContext(ctx, s.dialect.Rebind(query), userID, invoiceID)
	inv, err := scanInvoice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &accounting.NotFoundError{Kind: "invoice", ID: invoiceID}
	}
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// ListInvoices returns the user's invoices, newest id first.
func (s *Store) ListInvoices(ctx context.Context, userID string) ([]accounting.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE user_id = ?
		ORDER BY LENGTH(id) DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(query), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}
	defer rows.Close()

	invoices := []accounting.Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, *inv)
	}
	return invoices, rows.Err()
}

// =============================================================================
// CUSTOMERS (accounting.Reader)
// =============================================================================

const customerColumns = `id, user_id, name, client_email, street_address, city, post_code, country, gstin`

// GetCustomer returns one customer of the user.
func (s *Store) GetCustomer(ctx context.Context, userID string, customerID int64) (*accounting.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE user_id = ? AND id = ?`

	c, err := scanCustomer(s.db.QueryRowContext(ctx, s.dialect.Rebind(query), userID, customerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &accounting.NotFoundError{Kind: "customer", ID: fmt.Sprint(customerID)}
	}
	return c, err
}

// FindCustomerByName returns the user's customer with exactly this name.
func (s *Store) FindCustomerByName(ctx context.Context, userID, name string) (*accounting.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE user_id = ? AND name = ?`

	c, err := scanCustomer(s.db.QueryRowContext(ctx, s.dialect.Rebind(query), userID, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &accounting.NotFoundError{Kind: "customer", ID: name}
	}
	return c, err
}

// ListCustomers returns the user's customers ordered by name.
func (s *Store) ListCustomers(ctx context.Context, userID string) ([]accounting.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE user_id = ? ORDER BY name, id`

	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(query), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}
	defer rows.Close()

	customers := []accounting.Customer{}
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, *c)
	}
	return customers, rows.Err()
}

// =============================================================================
// LEDGER (accounting.Reader)
// =============================================================================

const entryColumns = `id, user_id, customer_id, entry_date, particulars, debit, credit, invoice_id`

// CustomerEntries returns all entries of one customer ordered by (date, id).
func (s *Store) CustomerEntries(ctx context.Context, userID string, customerID int64) ([]accounting.LedgerEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries
		WHERE user_id = ? AND customer_id = ?
		ORDER BY entry_date, id`

	return s.queryEntries(ctx, query, userID, customerID)
}

// UserEntries returns all entries of the user ordered by (date, id).
func (s *Store) UserEntries(ctx context.Context, userID string) ([]accounting.LedgerEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries
		WHERE user_id = ?
		ORDER BY entry_date, id`

	return s.queryEntries(ctx, query, userID)
}

func (s *Store) queryEntries(ctx context.Context, query string, args ...any) ([]accounting.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []accounting.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// MirrorAnomalies lists invoices without exactly one mirrored entry, and
// mirrored entries whose invoice is gone.
func (s *Store) MirrorAnomalies(ctx context.Context) ([]accounting.MirrorAnomaly, error) {
	query := `
		SELECT i.user_id, i.id, COUNT(l.id), 0
		FROM invoices i
		LEFT JOIN ledger_entries l ON l.user_id = i.user_id AND l.invoice_id = i.id
		GROUP BY i.user_id, i.id
		HAVING COUNT(l.id) <> 1
		UNION ALL
		SELECT l.user_id, l.invoice_id, COUNT(*), 1
		FROM ledger_entries l
		WHERE l.invoice_id IS NOT NULL
		  AND NOT EXISTS (SELECT 1 FROM invoices i WHERE i.user_id = l.user_id AND i.id = l.invoice_id)
		GROUP BY l.user_id, l.invoice_id
		ORDER BY 1, 2`

	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(query))
	if err != nil {
		return nil, fmt.Errorf("failed to query mirror anomalies: %w", err)
	}
	defer rows.Close()

	var anomalies []accounting.MirrorAnomaly
	for rows.Next() {
		var (
			a        accounting.MirrorAnomaly
			orphaned int
		)
		if err := rows.Scan(&a.UserID, &a.InvoiceID, &a.Entries, &orphaned); err != nil {
			return nil, fmt.Errorf("failed to scan mirror anomaly: %w", err)
		}
		a.Orphaned = orphaned == 1
		anomalies = append(anomalies, a)
	}
	return anomalies, rows.Err()
}
