package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/designersquare/bookkeeping/accounting"
)

// txView is the accounting.Tx handed to WithTx. It writes straight into the
// locked state; WithTx restores the snapshot on error.
type txView struct {
	s *state
}

var _ accounting.Tx = (*txView)(nil)

// =============================================================================
// CUSTOMERS
// =============================================================================

func (t *txView) FindCustomerID(_ context.Context, userID, name string) (int64, bool, error) {
	id, ok := t.s.findCustomer(userID, name)
	return id, ok, nil
}

func (t *txView) InsertCustomer(_ context.Context, c accounting.Customer) (int64, error) {
	if _, taken := t.s.findCustomer(c.UserID, c.Name); taken {
		return 0, &accounting.ConflictError{Message: fmt.Sprintf("customer %q already exists", c.Name)}
	}
	t.s.lastCustomerID++
	c.ID = t.s.lastCustomerID
	t.s.customers[c.ID] = c
	return c.ID, nil
}

func (t *txView) UpdateCustomer(_ context.Context, c accounting.Customer) (int64, error) {
	stored, ok := t.s.customers[c.ID]
	if !ok || stored.UserID != c.UserID {
		return 0, nil
	}
	if id, taken := t.s.findCustomer(c.UserID, c.Name); taken && id != c.ID {
		return 0, &accounting.ConflictError{Message: fmt.Sprintf("customer %q already exists", c.Name)}
	}
	t.s.customers[c.ID] = c
	return 1, nil
}

func (t *txView) DeleteCustomer(_ context.Context, userID string, customerID int64) (int64, error) {
	c, ok := t.s.customers[customerID]
	if !ok || c.UserID != userID {
		return 0, nil
	}
	for _, e := range t.s.entries {
		if e.CustomerID == customerID {
			return 0, fmt.Errorf("failed to delete customer: %d ledger entries still reference it", customerID)
		}
	}
	delete(t.s.customers, customerID)
	return 1, nil
}

func (t *txView) CountMirroredEntries(_ context.Context, userID string, customerID int64) (int64, error) {
	var n int64
	for _, e := range t.s.entries {
		if e.UserID == userID && e.CustomerID == customerID && e.IsMirrored() {
			n++
		}
	}
	return n, nil
}

func (t *txView) DeleteManualEntriesOf(_ context.Context, userID string, customerID int64) (int64, error) {
	return t.deleteEntries(func(e accounting.LedgerEntry) bool {
		return e.UserID == userID && e.CustomerID == customerID && !e.IsMirrored()
	}), nil
}

// =============================================================================
// INVOICE NUMBERING
// =============================================================================

// LockInvoiceScope is a no-op: WithTx already holds the store lock.
func (t *txView) LockInvoiceScope(context.Context, string, string) error { return nil }

func (t *txView) LatestInvoiceID(_ context.Context, userID, prefix string) (string, bool, error) {
	var latest string
	found := false
	for k := range t.s.invoices {
		if k.userID != userID || !strings.HasPrefix(k.id, prefix) {
			continue
		}
		if !found || compareIDs(k.id, latest) > 0 {
			latest, found = k.id, true
		}
	}
	return latest, found, nil
}

// =============================================================================
// INVOICES
// =============================================================================

func (t *txView) InsertInvoice(_ context.Context, inv *accounting.Invoice) error {
	k := invoiceKey{inv.UserID, inv.ID}
	if _, taken := t.s.invoices[k]; taken {
		return &accounting.ConflictError{Message: fmt.Sprintf("invoice %s already exists", inv.ID)}
	}
	t.s.invoices[k] = *copyInvoice(*inv)
	return nil
}

// UpdateInvoice replaces the invoice; an empty status keeps the stored one.
func (t *txView) UpdateInvoice(_ context.Context, inv *accounting.Invoice) (int64, error) {
	k := invoiceKey{inv.UserID, inv.ID}
	stored, ok := t.s.invoices[k]
	if !ok {
		return 0, nil
	}
	updated := *copyInvoice(*inv)
	if updated.Status == "" {
		updated.Status = stored.Status
	}
	t.s.invoices[k] = updated
	return 1, nil
}

func (t *txView) DeleteInvoice(_ context.Context, userID, invoiceID string) (int64, error) {
	k := invoiceKey{userID, invoiceID}
	if _, ok := t.s.invoices[k]; !ok {
		return 0, nil
	}
	delete(t.s.invoices, k)
	return 1, nil
}

func (t *txView) SetInvoiceStatus(_ context.Context, userID, invoiceID string, status accounting.InvoiceStatus) (int64, error) {
	k := invoiceKey{userID, invoiceID}
	inv, ok := t.s.invoices[k]
	if !ok {
		return 0, nil
	}
	inv.Status = status
	t.s.invoices[k] = inv
	return 1, nil
}

// =============================================================================
// LEDGER
// =============================================================================

func (t *txView) InsertLedgerEntry(_ context.Context, e accounting.LedgerEntry) (int64, error) {
	if _, ok := t.s.customers[e.CustomerID]; !ok {
		return 0, fmt.Errorf("failed to insert ledger entry: customer %d does not exist", e.CustomerID)
	}
	if e.InvoiceID != nil {
		for _, other := range t.s.entries {
			if other.UserID == e.UserID && other.InvoiceID != nil && *other.InvoiceID == *e.InvoiceID {
				return 0, &accounting.ConflictError{Message: "invoice already has a mirrored ledger entry"}
			}
		}
		id := *e.InvoiceID
		e.InvoiceID = &id
	}
	t.s.lastEntryID++
	e.ID = t.s.lastEntryID
	t.s.entries[e.ID] = e
	return e.ID, nil
}

func (t *txView) UpdateMirroredEntry(_ context.Context, userID, invoiceID string, customerID int64, date accounting.Date, debit accounting.Money) (int64, error) {
	var n int64
	for id, e := range t.s.entries {
		if e.UserID == userID && e.InvoiceID != nil && *e.InvoiceID == invoiceID {
			e.CustomerID, e.EntryDate, e.Debit = customerID, date, debit
			t.s.entries[id] = e
			n++
		}
	}
	return n, nil
}

func (t *txView) DeleteMirroredEntries(_ context.Context, userID, invoiceID string) (int64, error) {
	return t.deleteEntries(func(e accounting.LedgerEntry) bool {
		return e.UserID == userID && e.InvoiceID != nil && *e.InvoiceID == invoiceID
	}), nil
}

func (t *txView) UpdateManualEntry(_ context.Context, e accounting.LedgerEntry) (int64, error) {
	stored, ok := t.s.entries[e.ID]
	if !ok || stored.UserID != e.UserID || stored.IsMirrored() {
		return 0, nil
	}
	stored.EntryDate, stored.Particulars, stored.Debit, stored.Credit = e.EntryDate, e.Particulars, e.Debit, e.Credit
	t.s.entries[e.ID] = stored
	return 1, nil
}

func (t *txView) DeleteManualEntry(_ context.Context, userID string, entryID int64) (int64, error) {
	return t.deleteEntries(func(e accounting.LedgerEntry) bool {
		return e.ID == entryID && e.UserID == userID && !e.IsMirrored()
	}), nil
}

func (t *txView) deleteEntries(match func(accounting.LedgerEntry) bool) int64 {
	var n int64
	for id, e := range t.s.entries {
		if match(e) {
			delete(t.s.entries, id)
			n++
		}
	}
	return n
}
