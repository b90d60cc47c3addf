/*
mirror.go - Ledger entries that follow invoices, and the manual entry path

PURPOSE:
  Every invoice owns exactly one ledger entry carrying its monetary effect
  (debit = invoice total). The mirror functions keep that entry in step with
  the invoice inside the invoice's own transaction.

  Everything else in the ledger is a manual entry: a Payment or a
  GeneralEntry posted by the user. Manual writes are scoped with
  "invoice_id IS NULL", so an id that points at a mirrored row behaves
  exactly like an id that does not exist.

KEY CONCEPTS:
  Mirrored entry: invoice_id set, particulars "BY BILL <id>", credit 0
  ManualEntry:    sealed variant, Payment | GeneralEntry, decided by the caller

SEE ALSO:
  - engine.go: calls these inside Engine.run
  - balance.go: consumes both kinds of entry identically
*/
package accounting

import (
	"context"
	"fmt"
	"strings"
)

// =============================================================================
// MIRRORED ENTRY
// =============================================================================

// MirrorInvoiceCreated inserts the invoice's ledger entry.
func MirrorInvoiceCreated(ctx context.Context, tx Tx, inv *Invoice, customerID int64) error {
	invoiceID := inv.ID
	_, err := tx.InsertLedgerEntry(ctx, LedgerEntry{
		UserID:      inv.UserID,
		CustomerID:  customerID,
		EntryDate:   inv.InvoiceDate,
		Particulars: particularsForInvoice(inv.ID),
		Debit:       inv.Total,
		Credit:      Zero,
		InvoiceID:   &invoiceID,
	})
	return err
}

// MirrorInvoiceUpdated moves the invoice's entry to the new date, total and
// customer. Anything other than exactly one matching row is a
// *ConsistencyError; the caller's rollback undoes a multi-row update.
func MirrorInvoiceUpdated(ctx context.Context, tx Tx, inv *Invoice, customerID int64) error {
	n, err := tx.UpdateMirroredEntry(ctx, inv.UserID, inv.ID, customerID, inv.InvoiceDate, inv.Total)
	if err != nil {
		return err
	}
	if n != 1 {
		return &ConsistencyError{Message: fmt.Sprintf("invoice %s has %d mirrored ledger entries, expected 1", inv.ID, n)}
	}
	return nil
}

// MirrorInvoiceDeleted removes the invoice's entries. It runs before the
// invoice row is deleted.
func MirrorInvoiceDeleted(ctx context.Context, tx Tx, userID, invoiceID string) error {
	_, err := tx.DeleteMirroredEntries(ctx, userID, invoiceID)
	return err
}

// =============================================================================
// MANUAL ENTRIES
// =============================================================================

// ManualEntry is a user-posted ledger line. The concrete type decides how
// it is booked; implementations live in this package only.
type ManualEntry interface {
	// Validate checks the entry without touching the store.
	Validate() error

	booking() booking
}

// booking is the ledger line a ManualEntry resolves to.
type booking struct {
	date        Date
	particulars string
	debit       Money
	credit      Money
}

// Payment is money received from the customer. It is booked as a credit.
type Payment struct {
	Date   Date
	Amount Money
	Method string // CASH, UPI, CHEQUE...; empty means CASH
}

func (p Payment) Validate() error {
	if p.Date.IsZero() {
		return &ValidationError{Field: "date", Message: "payment date is required"}
	}
	if !p.Amount.IsPositive() {
		return &ValidationError{Field: "amount", Message: "payment amount must be positive"}
	}
	return validateAmount("amount", p.Amount)
}

func (p Payment) booking() booking {
	return booking{
		date:        p.Date,
		particulars: particularsForPayment(p.Method),
		debit:       Zero,
		credit:      p.Amount,
	}
}

// GeneralEntry is a free-form adjustment with exactly one non-zero side.
type GeneralEntry struct {
	Date        Date
	Particulars string
	Debit       Money
	Credit      Money
}

func (g GeneralEntry) Validate() error {
	if g.Date.IsZero() {
		return &ValidationError{Field: "date", Message: "entry date is required"}
	}
	if strings.TrimSpace(g.Particulars) == "" {
		return &ValidationError{Field: "particulars", Message: "particulars are required"}
	}
	for _, m := range []Money{g.Debit, g.Credit} {
		if err := validateAmount("amount", m); err != nil {
			return err
		}
	}
	if g.Debit.IsPositive() && g.Credit.IsPositive() {
		return &ValidationError{Field: "amount", Message: "entry cannot be both debit and credit"}
	}
	if g.Debit.IsZero() && g.Credit.IsZero() {
		return &ValidationError{Field: "amount", Message: "amount cannot be zero"}
	}
	return nil
}

func (g GeneralEntry) booking() booking {
	return booking{
		date:        g.Date,
		particulars: strings.TrimSpace(g.Particulars),
		debit:       g.Debit,
		credit:      g.Credit,
	}
}

// AddManualEntry books entry against the customer.
func AddManualEntry(ctx context.Context, tx Tx, userID string, customerID int64, entry ManualEntry) (LedgerEntry, error) {
	b := entry.booking()
	e := LedgerEntry{
		UserID:      userID,
		CustomerID:  customerID,
		EntryDate:   b.date,
		Particulars: b.particulars,
		Debit:       b.debit,
		Credit:      b.credit,
	}
	id, err := tx.InsertLedgerEntry(ctx, e)
	if err != nil {
		return LedgerEntry{}, err
	}
	e.ID = id
	return e, nil
}

// UpdateManualEntry rewrites a manual entry in place. Mirrored, missing and
// foreign entries all report *NotFoundError.
func UpdateManualEntry(ctx context.Context, tx Tx, userID string, entryID int64, entry ManualEntry) error {
	b := entry.booking()
	n, err := tx.UpdateManualEntry(ctx, LedgerEntry{
		ID:          entryID,
		UserID:      userID,
		EntryDate:   b.date,
		Particulars: b.particulars,
		Debit:       b.debit,
		Credit:      b.credit,
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return ledgerEntryNotFound(entryID)
	}
	return nil
}

// DeleteManualEntry removes a manual entry. Same scoping as UpdateManualEntry.
func DeleteManualEntry(ctx context.Context, tx Tx, userID string, entryID int64) error {
	n, err := tx.DeleteManualEntry(ctx, userID, entryID)
	if err != nil {
		return err
	}
	if n == 0 {
		return ledgerEntryNotFound(entryID)
	}
	return nil
}

func ledgerEntryNotFound(entryID int64) error {
	return &NotFoundError{Kind: "ledger entry", ID: fmt.Sprint(entryID)}
}
