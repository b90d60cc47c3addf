package sqlstore

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/designersquare/bookkeeping/accounting"
)

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row scanner) (*accounting.Invoice, error) {
	var (
		inv                          accounting.Invoice
		status                       string
		items, billFrom, billTo      []byte
		projectDescription, payTerms sql.NullString
		termsOfPayment, suppliersRef sql.NullString
		otherRef, hsn, gstMode       sql.NullString
	)

	err := row.Scan(
		&inv.ID, &inv.UserID, &inv.ClientName, &inv.Amount, &status, &items, &billFrom, &billTo,
		&projectDescription, &payTerms, &inv.InvoiceDate, &termsOfPayment, &suppliersRef, &otherRef,
		&inv.Subtotal, &inv.GSTAmount, &inv.Total, &hsn, &gstMode, &inv.GSTPercent,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan invoice: %w", err)
	}

	inv.Status = accounting.InvoiceStatus(status)
	inv.ProjectDescription = projectDescription.String
	inv.PaymentTerms = payTerms.String
	inv.TermsOfPayment = termsOfPayment.String
	inv.SuppliersRef = suppliersRef.String
	inv.OtherRef = otherRef.String
	inv.HSN = hsn.String
	inv.GSTMode = gstMode.String

	if err := unmarshalColumn("items", items, &inv.Items); err != nil {
		return nil, err
	}
	if err := unmarshalColumn("bill_from", billFrom, &inv.BillFrom); err != nil {
		return nil, err
	}
	if err := unmarshalColumn("bill_to", billTo, &inv.BillTo); err != nil {
		return nil, err
	}
	return &inv, nil
}

func scanCustomer(row scanner) (*accounting.Customer, error) {
	var (
		c                                      accounting.Customer
		email, street, city, post, ctry, gstin sql.NullString
	)
	err := row.Scan(&c.ID, &c.UserID, &c.Name, &email, &street, &city, &post, &ctry, &gstin)
	if err != nil {
		return nil, fmt.Errorf("failed to scan customer: %w", err)
	}
	c.Email = email.String
	c.StreetAddress = street.String
	c.City = city.String
	c.PostCode = post.String
	c.Country = ctry.String
	c.GSTIN = gstin.String
	return &c, nil
}

func scanEntry(row scanner) (accounting.LedgerEntry, error) {
	var (
		e         accounting.LedgerEntry
		invoiceID sql.NullString
	)
	err := row.Scan(&e.ID, &e.UserID, &e.CustomerID, &e.EntryDate, &e.Particulars, &e.Debit, &e.Credit, &invoiceID)
	if err != nil {
		return e, fmt.Errorf("failed to scan ledger entry: %w", err)
	}
	if invoiceID.Valid {
		id := invoiceID.String
		e.InvoiceID = &id
	}
	return e, nil
}

func unmarshalColumn(column string, data []byte, dest any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to decode %s: %w", column, err)
	}
	return nil
}

func marshalColumn(column string, v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s: %w", column, err)
	}
	return string(data), nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInvoiceID(id *string) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *id, Valid: true}
}
