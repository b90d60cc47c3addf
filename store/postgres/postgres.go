/*
Package postgres provides the PostgreSQL store used in production.

PURPOSE:
  Opens a pgx connection pool through database/sql, applies the embedded
  goose migrations and hands the pool to sqlstore with the postgres dialect.

INVOICE NUMBER LOCKING:
  SELECT ... FOR UPDATE on the latest invoice row only locks a row that
  exists. The first invoice of a year has no such row, so two allocators
  could both see "none" and both pick 0001. A transaction-scoped advisory
  lock keyed by hashtext(user_id || prefix) closes that gap:

    SELECT pg_advisory_xact_lock(hashtext($1))
    SELECT id FROM invoices WHERE user_id = $1 AND id LIKE $2
      ORDER BY LENGTH(id) DESC, id DESC LIMIT 1 FOR UPDATE

  The lock is released at COMMIT/ROLLBACK and only blocks allocators of the
  same user and year. A hash collision between two scopes only costs them
  some waiting.

POOL:
  MaxOpenConns / MaxIdleConns / ConnMaxLifetime come from config. Lock waits
  and deadlocks surface as database errors; nothing is retried.

SEE ALSO:
  - migrations/: schema
  - store/sqlstore: the queries
*/
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/designersquare/bookkeeping/store/sqlstore"
)

//go:embed migrations/*.sql
var migrations embed.FS

// uniqueViolation is the SQLSTATE of unique_violation.
const uniqueViolation = "23505"

// Store is the PostgreSQL-backed accounting store.
type Store struct {
	*sqlstore.Store
}

// PoolOptions bound the shared connection pool.
type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// New connects to dsn, runs pending migrations and returns the store.
func New(ctx context.Context, dsn string, pool PoolOptions) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return NewWithDB(db), nil
}

// NewWithDB wraps an already migrated pool.
func NewWithDB(db *sql.DB) *Store {
	return &Store{Store: sqlstore.New(db, Dialect{})}
}

// Migrate applies all pending migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// =============================================================================
// DIALECT
// =============================================================================

// Dialect is the PostgreSQL flavour of sqlstore.Dialect.
type Dialect struct{}

func (Dialect) Name() string { return "postgres" }

func (Dialect) Rebind(query string) string { return sqlstore.RebindDollar(query) }

func (Dialect) LockInvoiceScope(ctx context.Context, tx *sql.Tx, userID, prefix string) error {
	_, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, userID+"|"+prefix)
	return err
}

func (Dialect) ForUpdate() string { return " FOR UPDATE" }

func (Dialect) IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
