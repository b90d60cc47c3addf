package postgres_test

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/designersquare/bookkeeping/accounting"
	"github.com/designersquare/bookkeeping/store/postgres"
	"github.com/designersquare/bookkeeping/store/sqlstore"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newMockStore(t *testing.T) (*postgres.Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return postgres.NewWithDB(db), mock
}

// =============================================================================
// DIALECT
// =============================================================================

func TestRebindDollar(t *testing.T) {
	got := sqlstore.RebindDollar(`SELECT id FROM invoices WHERE user_id = ? AND id LIKE ? LIMIT 1`)
	assert.Equal(t, `SELECT id FROM invoices WHERE user_id = $1 AND id LIKE $2 LIMIT 1`, got)
	assert.Equal(t, "SELECT 1", sqlstore.RebindDollar("SELECT 1"))
}

func TestDialect_IsUniqueViolation(t *testing.T) {
	d := postgres.Dialect{}

	assert.True(t, d.IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.True(t, d.IsUniqueViolation(errors.Join(errors.New("insert"), &pgconn.PgError{Code: "23505"})))
	assert.False(t, d.IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, d.IsUniqueViolation(errors.New("boom")))
}

// =============================================================================
// INVOICE NUMBER ALLOCATION
// =============================================================================

func TestNextInvoiceID_TakesAdvisoryLockThenRowLock(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	// GIVEN: the latest invoice of the year is DS/2024-25/0041
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_xact_lock(hashtext($1))`)).
		WithArgs("user-1|DS/2024-25/").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT id FROM invoices WHERE user_id = \$1 AND id LIKE \$2\s+ORDER BY LENGTH\(id\) DESC, id DESC LIMIT 1 FOR UPDATE`).
		WithArgs("user-1", "DS/2024-25/%").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("DS/2024-25/0041"))
	mock.ExpectCommit()

	// WHEN: the next id is allocated
	var id string
	err := store.WithTx(ctx, func(tx accounting.Tx) error {
		var err error
		id, err = accounting.NextInvoiceID(ctx, tx, "user-1", "2024-25")
		return err
	})

	// THEN: both locks were taken in order and the sequence advanced
	require.NoError(t, err)
	assert.Equal(t, "DS/2024-25/0042", id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNextInvoiceID_BadSuffixRollsBack(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_xact_lock(hashtext($1))`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT id FROM invoices`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("DS/2024-25/00X1"))
	mock.ExpectRollback()

	err := store.WithTx(ctx, func(tx accounting.Tx) error {
		_, err := accounting.NextInvoiceID(ctx, tx, "user-1", "2024-25")
		return err
	})

	assert.ErrorIs(t, err, accounting.ErrConsistency)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// =============================================================================
// CONFLICTS
// =============================================================================

func TestInsertCustomer_UniqueViolationIsConflict(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO customers`).
		WithArgs("user-1", "Acme", nil, nil, nil, nil, nil, nil).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value"})
	mock.ExpectRollback()

	err := store.WithTx(ctx, func(tx accounting.Tx) error {
		_, err := tx.InsertCustomer(ctx, accounting.Customer{UserID: "user-1", Name: "Acme"})
		return err
	})

	var conflict *accounting.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Contains(t, conflict.Message, "Acme")
	assert.NoError(t, mock.ExpectationsWereMet())
}
