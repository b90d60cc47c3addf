/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Opens a SQLite database, creates the bookkeeping schema and hands the pool
  to sqlstore with the SQLite dialect. Used for local runs and every unit
  test (":memory:").

INTERFACES IMPLEMENTED:
  accounting.Store (via the embedded *sqlstore.Store)

KEY TABLES:
  invoices:       One row per invoice, scoped by user
  customers:      UNIQUE(user_id, name)
  ledger_entries: Mirrored (invoice_id set) and manual (invoice_id NULL) rows

INDEXES:
  - idx_ledger_user_customer_date: ledger views and balances (hot path)
  - idx_ledger_one_mirror:         at most one mirrored entry per invoice
  - idx_invoices_user_id:          invoice-number scope lookups

CONCURRENCY:
  SQLite has a single writer. Transactions are opened with _txlock=immediate
  so BEGIN takes the write lock at once: two invoice creations for the same
  user serialize at BEGIN, which makes the invoice-number scope lock a no-op
  here. Writers wait up to the busy timeout before failing.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

IN-MEMORY:
  Every connection to ":memory:" is a separate database, so the pool is
  pinned to one connection. Nothing may query the pool while a transaction
  is open; the engine only uses the Tx inside WithTx.

USAGE:
  store, err := sqlite.New("./data/books.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := accounting.NewEngine(store)

MIGRATION:
  Schema is auto-migrated on New() with idempotent CREATE ... IF NOT EXISTS.
  The postgres store uses versioned goose migrations instead.

SEE ALSO:
  - store/sqlstore: the queries
  - store/postgres: production database
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/designersquare/bookkeeping/store/sqlstore"
)

// DefaultBusyTimeout is how long a writer waits for the write lock.
const DefaultBusyTimeout = 5 * time.Second

// Store implements all storage interfaces using SQLite.
type Store struct {
	*sqlstore.Store
}

// Options tune the connection pool.
type Options struct {
	BusyTimeout  time.Duration
	MaxOpenConns int
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	return Open(dbPath, Options{})
}

// Open is New with explicit pool options.
func Open(dbPath string, opts Options) (*Store, error) {
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = DefaultBusyTimeout
	}

	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_txlock=immediate&_busy_timeout=%d",
		dbPath, opts.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	switch {
	case dbPath == ":memory:":
		db.SetMaxOpenConns(1)
	case opts.MaxOpenConns > 0:
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}

	if err := migrate(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{Store: sqlstore.New(db, Dialect{})}, nil
}

// migrate creates the database schema.
func migrate(ctx context.Context, db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS customers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		client_email TEXT,
		street_address TEXT,
		city TEXT,
		post_code TEXT,
		country TEXT,
		gstin TEXT,
		created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(user_id, name)
	);

	-- Amounts are TEXT so decimals round-trip exactly
	CREATE TABLE IF NOT EXISTS invoices (
		id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		client_name TEXT NOT NULL,
		amount TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		items TEXT NOT NULL,
		bill_from TEXT NOT NULL,
		bill_to TEXT NOT NULL,
		project_description TEXT,
		payment_terms TEXT,
		invoice_date TEXT NOT NULL,
		terms_of_payment TEXT,
		suppliers_ref TEXT,
		other_ref TEXT,
		subtotal TEXT NOT NULL,
		gst_amount TEXT NOT NULL,
		total TEXT NOT NULL,
		hsn TEXT,
		gst_mode TEXT NOT NULL,
		gst_percent TEXT NOT NULL,
		created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (user_id, id)
	);

	CREATE TABLE IF NOT EXISTS ledger_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		customer_id INTEGER NOT NULL REFERENCES customers(id),
		invoice_id TEXT,
		entry_date TEXT NOT NULL,
		particulars TEXT NOT NULL,
		debit TEXT NOT NULL DEFAULT '0',
		credit TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_ledger_user_customer_date
		ON ledger_entries(user_id, customer_id, entry_date, id);

	-- One mirrored entry per invoice
	CREATE UNIQUE INDEX IF NOT EXISTS idx_ledger_one_mirror
		ON ledger_entries(user_id, invoice_id) WHERE invoice_id IS NOT NULL;

	CREATE INDEX IF NOT EXISTS idx_invoices_user_id
		ON invoices(user_id, id);
	`

	_, err := db.ExecContext(ctx, schema)
	return err
}

// =============================================================================
// DIALECT
// =============================================================================

// Dialect is the SQLite flavour of sqlstore.Dialect.
type Dialect struct{}

func (Dialect) Name() string { return "sqlite" }

func (Dialect) Rebind(query string) string { return query }

// LockInvoiceScope is a no-op: the IMMEDIATE transaction already holds the
// database write lock.
func (Dialect) LockInvoiceScope(context.Context, *sql.Tx, string, string) error { return nil }

func (Dialect) ForUpdate() string { return "" }

func (Dialect) IsUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
