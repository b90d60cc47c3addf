package memory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/designersquare/bookkeeping/accounting"
	"github.com/designersquare/bookkeeping/store/memory"
)

var today = accounting.NewDate(2024, time.June, 15)

func newEngine(store *memory.Store) *accounting.Engine {
	return accounting.NewEngine(store, accounting.WithClock(accounting.FixedClock(today)))
}

func input(client, rate string) accounting.InvoiceInput {
	return accounting.InvoiceInput{
		ClientName:  client,
		Items:       []accounting.ItemInput{{Name: "Design", Quantity: accounting.NewMoney("1"), Rate: accounting.NewMoney(rate)}},
		BillTo:      accounting.Address{Name: client},
		InvoiceDate: accounting.NewDate(2024, time.May, 1),
		GSTMode:     "NONE",
		GSTPercent:  accounting.Zero,
	}
}

func TestStore_InvoiceLifecycleThroughEngine(t *testing.T) {
	ctx := context.Background()
	engine := newEngine(memory.New())

	// GIVEN: two invoices and a payment for Acme
	first, err := engine.CreateInvoice(ctx, "U", input("Acme", "1000"))
	require.NoError(t, err)
	second, err := engine.CreateInvoice(ctx, "U", input("Acme", "500"))
	require.NoError(t, err)
	_, err = engine.AddManualLedgerEntry(ctx, "U", "Acme", accounting.Payment{
		Date:   accounting.NewDate(2024, time.May, 20),
		Amount: accounting.NewMoney("600"),
	})
	require.NoError(t, err)

	// THEN: ids are sequential and the ledger carries both mirrors
	assert.Equal(t, "DS/2024-25/0001", first.ID)
	assert.Equal(t, "DS/2024-25/0002", second.ID)

	rows, err := engine.GetLedger(ctx, "U", "Acme", "2024-25")
	require.NoError(t, err)
	require.Len(t, rows, 4, "opening row plus three entries")
	assert.Equal(t, "900.00", rows[3].Balance.StringFixed(2))

	// WHEN: deleting the first invoice
	require.NoError(t, engine.DeleteInvoice(ctx, "U", first.ID))

	// THEN: its mirror goes with it
	rows, err = engine.GetLedger(ctx, "U", "Acme", "2024-25")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "-100.00", rows[2].Balance.StringFixed(2))

	anomalies, err := engine.CheckMirrorIntegrity(ctx)
	require.NoError(t, err)
	assert.Empty(t, anomalies)
}

func TestStore_ListInvoicesNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	for _, id := range []string{"DS/2024-25/9999", "DS/2024-25/10000", "DS/2024-25/0002"} {
		require.NoError(t, store.WithTx(ctx, func(tx accounting.Tx) error {
			return tx.InsertInvoice(ctx, &accounting.Invoice{ID: id, UserID: "U", ClientName: "Acme", Status: accounting.StatusPending})
		}))
	}

	list, err := store.ListInvoices(ctx, "U")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "DS/2024-25/10000", list[0].ID)
	assert.Equal(t, "DS/2024-25/9999", list[1].ID)
	assert.Equal(t, "DS/2024-25/0002", list[2].ID)

	require.NoError(t, store.WithTx(ctx, func(tx accounting.Tx) error {
		latest, found, err := tx.LatestInvoiceID(ctx, "U", "DS/2024-25/")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "DS/2024-25/10000", latest)
		return nil
	}))
}

func TestStore_RollbackRestoresSnapshot(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	// GIVEN: a committed customer
	require.NoError(t, store.WithTx(ctx, func(tx accounting.Tx) error {
		_, err := tx.InsertCustomer(ctx, accounting.Customer{UserID: "U", Name: "Acme"})
		return err
	}))

	// WHEN: a transaction writes and then fails
	err := store.WithTx(ctx, func(tx accounting.Tx) error {
		if _, err := tx.InsertCustomer(ctx, accounting.Customer{UserID: "U", Name: "Beta"}); err != nil {
			return err
		}
		if _, err := tx.DeleteCustomer(ctx, "U", 1); err != nil {
			return err
		}
		return &accounting.ValidationError{Field: "x", Message: "stop"}
	})
	assert.ErrorIs(t, err, accounting.ErrValidation)

	// THEN: none of its writes survive
	list, err := store.ListCustomers(ctx, "U")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Acme", list[0].Name)

	// and ids keep counting from the committed state
	require.NoError(t, store.WithTx(ctx, func(tx accounting.Tx) error {
		id, err := tx.InsertCustomer(ctx, accounting.Customer{UserID: "U", Name: "Gamma"})
		assert.Equal(t, int64(2), id)
		return err
	}))
}

func TestStore_PanicRestoresSnapshot(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	// WHEN: a transaction writes and then panics
	assert.PanicsWithValue(t, "boom", func() {
		_ = store.WithTx(ctx, func(tx accounting.Tx) error {
			if _, err := tx.InsertCustomer(ctx, accounting.Customer{UserID: "U", Name: "Acme"}); err != nil {
				return err
			}
			panic("boom")
		})
	})

	// THEN: the write is gone and the store is unlocked
	list, err := store.ListCustomers(ctx, "U")
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, store.WithTx(ctx, func(tx accounting.Tx) error {
		id, err := tx.InsertCustomer(ctx, accounting.Customer{UserID: "U", Name: "Acme"})
		assert.Equal(t, int64(1), id)
		return err
	}))
}

func TestStore_Conflicts(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	var acme int64
	require.NoError(t, store.WithTx(ctx, func(tx accounting.Tx) error {
		var err error
		acme, err = tx.InsertCustomer(ctx, accounting.Customer{UserID: "U", Name: "Acme"})
		if err != nil {
			return err
		}
		_, err = tx.InsertCustomer(ctx, accounting.Customer{UserID: "U", Name: "Beta"})
		return err
	}))

	tests := []struct {
		name string
		fn   func(tx accounting.Tx) error
	}{
		{"duplicate customer", func(tx accounting.Tx) error {
			_, err := tx.InsertCustomer(ctx, accounting.Customer{UserID: "U", Name: "Acme"})
			return err
		}},
		{"rename onto existing", func(tx accounting.Tx) error {
			_, err := tx.UpdateCustomer(ctx, accounting.Customer{ID: acme, UserID: "U", Name: "Beta"})
			return err
		}},
		{"duplicate invoice", func(tx accounting.Tx) error {
			inv := &accounting.Invoice{ID: "DS/2024-25/0001", UserID: "U"}
			if err := tx.InsertInvoice(ctx, inv); err != nil {
				return err
			}
			return tx.InsertInvoice(ctx, inv)
		}},
		{"second mirror", func(tx accounting.Tx) error {
			id := "DS/2024-25/0001"
			e := accounting.LedgerEntry{UserID: "U", CustomerID: acme, EntryDate: today, InvoiceID: &id, Debit: accounting.NewMoney("1"), Credit: accounting.Zero}
			if _, err := tx.InsertLedgerEntry(ctx, e); err != nil {
				return err
			}
			_, err := tx.InsertLedgerEntry(ctx, e)
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.WithTx(ctx, tt.fn)
			assert.ErrorIs(t, err, accounting.ErrConflict)
		})
	}

	// the same name under another user is fine
	assert.NoError(t, store.WithTx(ctx, func(tx accounting.Tx) error {
		_, err := tx.InsertCustomer(ctx, accounting.Customer{UserID: "V", Name: "Acme"})
		return err
	}))
}

func TestStore_ManualPathSkipsMirroredEntries(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	invoiceID := "DS/2024-25/0001"

	var mirrored, manual int64
	require.NoError(t, store.WithTx(ctx, func(tx accounting.Tx) error {
		customer, err := tx.InsertCustomer(ctx, accounting.Customer{UserID: "U", Name: "Acme"})
		require.NoError(t, err)
		mirrored, err = tx.InsertLedgerEntry(ctx, accounting.LedgerEntry{UserID: "U", CustomerID: customer, EntryDate: today, InvoiceID: &invoiceID, Debit: accounting.NewMoney("100"), Credit: accounting.Zero})
		require.NoError(t, err)
		manual, err = tx.InsertLedgerEntry(ctx, accounting.LedgerEntry{UserID: "U", CustomerID: customer, EntryDate: today, Particulars: "Cash", Debit: accounting.Zero, Credit: accounting.NewMoney("40")})
		return err
	}))

	require.NoError(t, store.WithTx(ctx, func(tx accounting.Tx) error {
		n, err := tx.DeleteManualEntry(ctx, "U", mirrored)
		require.NoError(t, err)
		assert.Zero(t, n, "mirrored entries are off limits")

		n, err = tx.UpdateManualEntry(ctx, accounting.LedgerEntry{ID: mirrored, UserID: "U", EntryDate: today, Debit: accounting.Zero, Credit: accounting.Zero})
		require.NoError(t, err)
		assert.Zero(t, n)

		n, err = tx.DeleteManualEntry(ctx, "V", manual)
		require.NoError(t, err)
		assert.Zero(t, n, "other users' entries are invisible")

		n, err = tx.DeleteManualEntry(ctx, "U", manual)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		return nil
	}))

	entries, err := store.UserEntries(ctx, "U")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].IsMirrored())
}

func TestStore_MirrorAnomalies(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	ghost := "DS/2024-25/0009"

	require.NoError(t, store.WithTx(ctx, func(tx accounting.Tx) error {
		customer, err := tx.InsertCustomer(ctx, accounting.Customer{UserID: "U", Name: "Acme"})
		require.NoError(t, err)
		require.NoError(t, tx.InsertInvoice(ctx, &accounting.Invoice{ID: "DS/2024-25/0001", UserID: "U"}))
		_, err = tx.InsertLedgerEntry(ctx, accounting.LedgerEntry{UserID: "U", CustomerID: customer, EntryDate: today, InvoiceID: &ghost, Debit: accounting.NewMoney("1"), Credit: accounting.Zero})
		return err
	}))

	anomalies, err := store.MirrorAnomalies(ctx)
	require.NoError(t, err)
	assert.Equal(t, []accounting.MirrorAnomaly{
		{UserID: "U", InvoiceID: "DS/2024-25/0001", Entries: 0},
		{UserID: "U", InvoiceID: ghost, Entries: 1, Orphaned: true},
	}, anomalies)
}

func TestStore_ConcurrentCreatesGetDistinctIDs(t *testing.T) {
	ctx := context.Background()
	engine := newEngine(memory.New())

	const writers = 16
	ids := make(chan string, writers)
	var wg sync.WaitGroup
	for n := 0; n < writers; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inv, err := engine.CreateInvoice(ctx, "U", input("Acme", "10"))
			if assert.NoError(t, err) {
				ids <- inv.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, writers)
	assert.Equal(t, "160.00", balance(t, engine, "Acme"))
}

func TestStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := memory.New().WithTx(ctx, func(accounting.Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func balance(t *testing.T, e *accounting.Engine, name string) string {
	t.Helper()
	list, err := e.ListCustomersWithBalances(context.Background(), "U", "2024-25")
	require.NoError(t, err)
	for _, b := range list {
		if b.Customer.Name == name {
			return b.Balance.StringFixed(2)
		}
	}
	t.Fatalf("customer %q not found", name)
	return ""
}
