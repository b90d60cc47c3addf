/*
store.go - Persistence interface for invoices, customers and the ledger

PURPOSE:
  Defines the interface between the accounting engine and the database.
  Reads go straight to the Store; every write happens inside WithTx, whose
  callback receives a Tx bound to one database transaction.

KEY INTERFACES:
  Reader: lock-free reads used by balance views, invoice lists and suggestions
  Tx:     the writes of one unit of work, plus the reads that must observe it
  Store:  Reader + WithTx

TRANSACTION CONTRACT:
  WithTx begins a transaction, calls fn, and commits only if fn returns nil.
  Any error (or panic) rolls back. The transaction is released on every exit
  path. Implementations must not let a Tx escape its callback.

ROWS-AFFECTED CONTRACT:
  Update/delete methods return the number of rows they touched and never
  interpret zero as an error. The engine decides what zero means (NotFound
  for user-facing ids, Consistency for the mirrored entry).

UNIQUENESS:
  Implementations enforce UNIQUE(user_id, name) on customers, the invoice
  primary key (user_id, id), and at most one mirrored entry per invoice.
  A violation must surface as *ConflictError.

IMPLEMENTATIONS:
  - store/sqlstore: shared database/sql implementation
  - store/sqlite:   sqlite dialect and schema
  - store/postgres: postgres dialect and goose migrations

SEE ALSO:
  - engine.go: the only caller of WithTx
  - sequence.go: LockInvoiceScope / LatestInvoiceID semantics
*/
package accounting

import "context"

// =============================================================================
// READER - No locks, default isolation
// =============================================================================

// Reader serves the read paths. Lookups by id or name return *NotFoundError
// when nothing matches for the user.
type Reader interface {
	GetInvoice(ctx context.Context, userID, invoiceID string) (*Invoice, error)
	ListInvoices(ctx context.Context, userID string) ([]Invoice, error)

	GetCustomer(ctx context.Context, userID string, customerID int64) (*Customer, error)
	FindCustomerByName(ctx context.Context, userID, name string) (*Customer, error)
	ListCustomers(ctx context.Context, userID string) ([]Customer, error)

	// CustomerEntries returns every entry of one customer ordered by (date, id).
	CustomerEntries(ctx context.Context, userID string, customerID int64) ([]LedgerEntry, error)

	// UserEntries returns every entry of the user ordered by (date, id).
	UserEntries(ctx context.Context, userID string) ([]LedgerEntry, error)

	// MirrorAnomalies lists invoices, across all users, whose mirrored-entry
	// count is not exactly one.
	MirrorAnomalies(ctx context.Context) ([]MirrorAnomaly, error)
}

// =============================================================================
// TX - One unit of work
// =============================================================================

// Tx is the write surface of a single database transaction.
type Tx interface {
	// Customers
	FindCustomerID(ctx context.Context, userID, name string) (id int64, found bool, err error)
	InsertCustomer(ctx context.Context, c Customer) (int64, error)
	UpdateCustomer(ctx context.Context, c Customer) (int64, error)
	DeleteCustomer(ctx context.Context, userID string, customerID int64) (int64, error)
	CountMirroredEntries(ctx context.Context, userID string, customerID int64) (int64, error)
	DeleteManualEntriesOf(ctx context.Context, userID string, customerID int64) (int64, error)

	// Invoice numbering. LockInvoiceScope serializes allocators of the same
	// (user, prefix) until the transaction ends; LatestInvoiceID returns the
	// greatest id under the prefix ordered by (length, id).
	LockInvoiceScope(ctx context.Context, userID, prefix string) error
	LatestInvoiceID(ctx context.Context, userID, prefix string) (id string, found bool, err error)

	// Invoices
	InsertInvoice(ctx context.Context, inv *Invoice) error
	UpdateInvoice(ctx context.Context, inv *Invoice) (int64, error)
	DeleteInvoice(ctx context.Context, userID, invoiceID string) (int64, error)
	SetInvoiceStatus(ctx context.Context, userID, invoiceID string, status InvoiceStatus) (int64, error)

	// Ledger
	InsertLedgerEntry(ctx context.Context, e LedgerEntry) (int64, error)
	UpdateMirroredEntry(ctx context.Context, userID, invoiceID string, customerID int64, date Date, debit Money) (int64, error)
	DeleteMirroredEntries(ctx context.Context, userID, invoiceID string) (int64, error)
	UpdateManualEntry(ctx context.Context, e LedgerEntry) (int64, error)
	DeleteManualEntry(ctx context.Context, userID string, entryID int64) (int64, error)
}

// =============================================================================
// STORE
// =============================================================================

// Store is the engine's only shared mutable resource.
type Store interface {
	Reader

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}
