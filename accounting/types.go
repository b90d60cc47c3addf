package accounting

import (
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY
// =============================================================================

// Money is an exact decimal amount in the book's single currency.
// Never use float64 for money.
type Money = decimal.Decimal

// Zero is the zero amount.
var Zero = decimal.Zero

// NewMoney builds an amount from a string literal such as "1180.00"; it
// panics on malformed input and is meant for constants and tests.
func NewMoney(s string) Money {
	return decimal.RequireFromString(s)
}

// =============================================================================
// INVOICE
// =============================================================================

// InvoiceStatus tracks whether an invoice has been settled.
type InvoiceStatus string

const (
	StatusPending InvoiceStatus = "pending"
	StatusPaid    InvoiceStatus = "paid"
)

// Address is a billing block, serialized as JSON on the invoice row.
type Address struct {
	Name          string `json:"name,omitempty"`
	Email         string `json:"email,omitempty"`
	StreetAddress string `json:"streetAddress,omitempty"`
	City          string `json:"city,omitempty"`
	PostCode      string `json:"postCode,omitempty"`
	Country       string `json:"country,omitempty"`
	GSTIN         string `json:"gstin,omitempty"`
}

// Item is one invoice line. Total is always Quantity × Rate.
type Item struct {
	Name     string `json:"name"`
	Quantity Money  `json:"quantity"`
	Rate     Money  `json:"rate"`
	Unit     string `json:"unit,omitempty"`
	Total    Money  `json:"total"`
}

// Invoice is a stored invoice. ClientName is a snapshot of the customer
// name at write time; the customer link lives on the mirrored ledger entry.
type Invoice struct {
	ID          string
	UserID      string
	ClientName  string
	Items       []Item
	BillFrom    Address
	BillTo      Address
	Status      InvoiceStatus
	InvoiceDate Date

	Amount     Money // Σ quantity × rate
	Subtotal   Money
	GSTAmount  Money
	GSTMode    string
	GSTPercent Money
	Total      Money // Subtotal + GSTAmount

	ProjectDescription string
	PaymentTerms       string
	TermsOfPayment     string
	SuppliersRef       string
	OtherRef           string
	HSN                string
}

// =============================================================================
// CUSTOMER
// =============================================================================

// Customer is a counterparty of the user. Its balance is never stored.
type Customer struct {
	ID            int64
	UserID        string
	Name          string
	Email         string
	StreetAddress string
	City          string
	PostCode      string
	Country       string
	GSTIN         string
}

// CustomerBalance is a customer with its derived financial-year balance.
type CustomerBalance struct {
	Customer
	Balance Money
}

// =============================================================================
// LEDGER
// =============================================================================

// LedgerEntry is one stored ledger row. InvoiceID is set only on the entry
// mirroring an invoice; such rows are never touched by the manual path.
type LedgerEntry struct {
	ID          int64
	UserID      string
	CustomerID  int64
	EntryDate   Date
	Particulars string
	Debit       Money
	Credit      Money
	InvoiceID   *string
}

// IsMirrored reports whether the entry belongs to an invoice.
func (e LedgerEntry) IsMirrored() bool {
	return e.InvoiceID != nil
}

// Net is the entry's signed effect on the customer's position.
func (e LedgerEntry) Net() Money {
	return e.Debit.Sub(e.Credit)
}

// LedgerRow is one line of a financial-year ledger view. Row 1 is always the
// synthetic opening balance with EntryID 0.
type LedgerRow struct {
	SNo         int
	EntryID     int64
	Date        Date
	Particulars string
	Debit       Money
	Credit      Money
	Balance     Money
	InvoiceID   *string
}

// MirrorAnomaly is an invoice whose mirrored-entry count is not exactly
// one, or (Orphaned) mirrored entries whose invoice no longer exists.
type MirrorAnomaly struct {
	UserID    string
	InvoiceID string
	Entries   int
	Orphaned  bool
}

// particularsForInvoice is the description of an invoice's mirrored entry.
func particularsForInvoice(invoiceID string) string {
	return "BY BILL " + invoiceID
}

// particularsForPayment is the description of a payment entry.
func particularsForPayment(method string) string {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = "CASH"
	}
	return "PAYMENT RECEIVED " + method
}
