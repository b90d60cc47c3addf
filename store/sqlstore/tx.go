package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/designersquare/bookkeeping/accounting"
)

// txStore implements accounting.Tx on one *sql.Tx.
type txStore struct {
	tx *sql.Tx
	s  *Store
}

var _ accounting.Tx = (*txStore)(nil)

func (t *txStore) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := t.tx.ExecContext(ctx, t.s.dialect.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// conflict classifies unique violations; other errors pass through wrapped.
func (t *txStore) conflict(err error, message, op string) error {
	if t.s.dialect.IsUniqueViolation(err) {
		return &accounting.ConflictError{Message: message, Err: err}
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

// =============================================================================
// CUSTOMERS
// =============================================================================

func (t *txStore) FindCustomerID(ctx context.Context, userID, name string) (int64, bool, error) {
	var id int64
	err := t.tx.QueryRowContext(ctx,
		t.s.dialect.Rebind(`SELECT id FROM customers WHERE user_id = ? AND name = ?`),
		userID, name,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to find customer: %w", err)
	}
	return id, true, nil
}

func (t *txStore) InsertCustomer(ctx context.Context, c accounting.Customer) (int64, error) {
	query := `
		INSERT INTO customers (user_id, name, client_email, street_address, city, post_code, country, gstin)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`

	var id int64
	err := t.tx.QueryRowContext(ctx, t.s.dialect.Rebind(query),
		c.UserID, c.Name,
		nullString(c.Email), nullString(c.StreetAddress), nullString(c.City),
		nullString(c.PostCode), nullString(c.Country), nullString(c.GSTIN),
	).Scan(&id)
	if err != nil {
		return 0, t.conflict(err, fmt.Sprintf("customer %q already exists", c.Name), "insert customer")
	}
	return id, nil
}

func (t *txStore) UpdateCustomer(ctx context.Context, c accounting.Customer) (int64, error) {
	query := `
		UPDATE customers
		SET name = ?, client_email = ?, street_address = ?, city = ?, post_code = ?, country = ?, gstin = ?
		WHERE id = ? AND user_id = ?`

	n, err := t.exec(ctx, query,
		c.Name,
		nullString(c.Email), nullString(c.StreetAddress), nullString(c.City),
		nullString(c.PostCode), nullString(c.Country), nullString(c.GSTIN),
		c.ID, c.UserID,
	)
	if err != nil {
		return 0, t.conflict(err, fmt.Sprintf("customer %q already exists", c.Name), "update customer")
	}
	return n, nil
}

func (t *txStore) DeleteCustomer(ctx context.Context, userID string, customerID int64) (int64, error) {
	n, err := t.exec(ctx, `DELETE FROM customers WHERE id = ? AND user_id = ?`, customerID, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete customer: %w", err)
	}
	return n, nil
}

func (t *txStore) CountMirroredEntries(ctx context.Context, userID string, customerID int64) (int64, error) {
	var n int64
	err := t.tx.QueryRowContext(ctx,
		t.s.dialect.Rebind(`SELECT COUNT(*) FROM ledger_entries WHERE user_id = ? AND customer_id = ? AND invoice_id IS NOT NULL`),
		userID, customerID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count mirrored entries: %w", err)
	}
	return n, nil
}

func (t *txStore) DeleteManualEntriesOf(ctx context.Context, userID string, customerID int64) (int64, error) {
	n, err := t.exec(ctx,
		`DELETE FROM ledger_entries WHERE user_id = ? AND customer_id = ? AND invoice_id IS NULL`,
		userID, customerID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete customer entries: %w", err)
	}
	return n, nil
}

// =============================================================================
// INVOICE NUMBERING
// =============================================================================

func (t *txStore) LockInvoiceScope(ctx context.Context, userID, prefix string) error {
	if err := t.s.dialect.LockInvoiceScope(ctx, t.tx, userID, prefix); err != nil {
		return fmt.Errorf("failed to lock invoice scope: %w", err)
	}
	return nil
}

func (t *txStore) LatestInvoiceID(ctx context.Context, userID, prefix string) (string, bool, error) {
	query := `SELECT id FROM invoices WHERE user_id = ? AND id LIKE ?
		ORDER BY LENGTH(id) DESC, id DESC LIMIT 1` + t.s.dialect.ForUpdate()

	var id string
	err := t.tx.QueryRowContext(ctx, t.s.dialect.Rebind(query), userID, prefix+"%").Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read latest invoice id: %w", err)
	}
	return id, true, nil
}

// =============================================================================
// INVOICES
// =============================================================================

type invoiceJSON struct {
	items, billFrom, billTo string
}

func encodeInvoice(inv *accounting.Invoice) (invoiceJSON, error) {
	var (
		out invoiceJSON
		err error
	)
	if out.items, err = marshalColumn("items", inv.Items); err != nil {
		return out, err
	}
	if out.billFrom, err = marshalColumn("bill_from", inv.BillFrom); err != nil {
		return out, err
	}
	if out.billTo, err = marshalColumn("bill_to", inv.BillTo); err != nil {
		return out, err
	}
	return out, nil
}

func (t *txStore) InsertInvoice(ctx context.Context, inv *accounting.Invoice) error {
	js, err := encodeInvoice(inv)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO invoices
		(id, user_id, client_name, amount, status, items, bill_from, bill_to,
		 project_description, payment_terms, invoice_date, terms_of_payment, suppliers_ref, other_ref,
		 subtotal, gst_amount, total, hsn, gst_mode, gst_percent)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = t.exec(ctx, query,
		inv.ID, inv.UserID, inv.ClientName, inv.Amount, string(inv.Status), js.items, js.billFrom, js.billTo,
		nullString(inv.ProjectDescription), nullString(inv.PaymentTerms), inv.InvoiceDate,
		nullString(inv.TermsOfPayment), nullString(inv.SuppliersRef), nullString(inv.OtherRef),
		inv.Subtotal, inv.GSTAmount, inv.Total, nullString(inv.HSN), inv.GSTMode, inv.GSTPercent,
	)
	if err != nil {
		return t.conflict(err, fmt.Sprintf("invoice %s already exists", inv.ID), "insert invoice")
	}
	return nil
}

// UpdateInvoice replaces every column; an empty status keeps the stored one.
func (t *txStore) UpdateInvoice(ctx context.Context, inv *accounting.Invoice) (int64, error) {
	js, err := encodeInvoice(inv)
	if err != nil {
		return 0, err
	}

	query := `
		UPDATE invoices SET
			client_name = ?, amount = ?, status = COALESCE(NULLIF(?, ''), status),
			items = ?, bill_from = ?, bill_to = ?,
			project_description = ?, payment_terms = ?, invoice_date = ?, terms_of_payment = ?,
			suppliers_ref = ?, other_ref = ?, subtotal = ?, gst_amount = ?, total = ?,
			hsn = ?, gst_mode = ?, gst_percent = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND user_id = ?`

	n, err := t.exec(ctx, query,
		inv.ClientName, inv.Amount, string(inv.Status),
		js.items, js.billFrom, js.billTo,
		nullString(inv.ProjectDescription), nullString(inv.PaymentTerms), inv.InvoiceDate, nullString(inv.TermsOfPayment),
		nullString(inv.SuppliersRef), nullString(inv.OtherRef), inv.Subtotal, inv.GSTAmount, inv.Total,
		nullString(inv.HSN), inv.GSTMode, inv.GSTPercent,
		inv.ID, inv.UserID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to update invoice: %w", err)
	}
	return n, nil
}

func (t *txStore) DeleteInvoice(ctx context.Context, userID, invoiceID string) (int64, error) {
	n, err := t.exec(ctx, `DELETE FROM invoices WHERE id = ? AND user_id = ?`, invoiceID, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete invoice: %w", err)
	}
	return n, nil
}

func (t *txStore) SetInvoiceStatus(ctx context.Context, userID, invoiceID string, status accounting.InvoiceStatus) (int64, error) {
	n, err := t.exec(ctx,
		`UPDATE invoices SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND user_id = ?`,
		string(status), invoiceID, userID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to set invoice status: %w", err)
	}
	return n, nil
}

// =============================================================================
// LEDGER
// =============================================================================

func (t *txStore) InsertLedgerEntry(ctx context.Context, e accounting.LedgerEntry) (int64, error) {
	query := `
		INSERT INTO ledger_entries (user_id, customer_id, invoice_id, entry_date, particulars, debit, credit)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`

	var id int64
	err := t.tx.QueryRowContext(ctx, t.s.dialect.Rebind(query),
		e.UserID, e.CustomerID, nullInvoiceID(e.InvoiceID), e.EntryDate, e.Particulars, e.Debit, e.Credit,
	).Scan(&id)
	if err != nil {
		return 0, t.conflict(err, "invoice already has a mirrored ledger entry", "insert ledger entry")
	}
	return id, nil
}

func (t *txStore) UpdateMirroredEntry(ctx context.Context, userID, invoiceID string, customerID int64, date accounting.Date, debit accounting.Money) (int64, error) {
	n, err := t.exec(ctx,
		`UPDATE ledger_entries SET customer_id = ?, entry_date = ?, debit = ? WHERE user_id = ? AND invoice_id = ?`,
		customerID, date, debit, userID, invoiceID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to update mirrored entry: %w", err)
	}
	return n, nil
}

func (t *txStore) DeleteMirroredEntries(ctx context.Context, userID, invoiceID string) (int64, error) {
	n, err := t.exec(ctx, `DELETE FROM ledger_entries WHERE user_id = ? AND invoice_id = ?`, userID, invoiceID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete mirrored entries: %w", err)
	}
	return n, nil
}

func (t *txStore) UpdateManualEntry(ctx context.Context, e accounting.LedgerEntry) (int64, error) {
	n, err := t.exec(ctx, `
		UPDATE ledger_entries SET entry_date = ?, particulars = ?, debit = ?, credit = ?
		WHERE id = ? AND user_id = ? AND invoice_id IS NULL`,
		e.EntryDate, e.Particulars, e.Debit, e.Credit, e.ID, e.UserID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to update ledger entry: %w", err)
	}
	return n, nil
}

func (t *txStore) DeleteManualEntry(ctx context.Context, userID string, entryID int64) (int64, error) {
	n, err := t.exec(ctx,
		`DELETE FROM ledger_entries WHERE id = ? AND user_id = ? AND invoice_id IS NULL`,
		entryID, userID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete ledger entry: %w", err)
	}
	return n, nil
}
