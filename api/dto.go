/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures the frontend exchanges with the server. The
  accounting types carry no JSON tags; these types own the wire names
  (camelCase, as the frontend expects) so the domain can change freely.

NAMING CONVENTION:
  - *DTO:     Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Invoices:   InvoiceDTO (requests decode straight into accounting.InvoiceInput)
  Customers:  CustomerDTO (requests decode into accounting.CustomerInput)
  Ledger:     LedgerRowDTO, LedgerEntryRequest

MONEY:
  Amounts are JSON numbers on the way in and strings with two decimals on
  the way out, so no float ever touches a stored amount.

SEE ALSO:
  - handlers.go: Uses these types
  - accounting/types.go: Domain types
*/
package api

import (
	"strings"

	"github.com/designersquare/bookkeeping/accounting"
)

// =============================================================================
// INVOICES
// =============================================================================

// ItemDTO is one invoice line in API responses.
type ItemDTO struct {
	Name     string `json:"name"`
	Quantity string `json:"quantity"`
	Rate     string `json:"rate"`
	Unit     string `json:"unit,omitempty"`
	Total    string `json:"total"`
}

// InvoiceDTO represents an invoice in API responses.
type InvoiceDTO struct {
	ID                 string             `json:"id"`
	ClientName         string             `json:"clientName"`
	Status             string             `json:"status"`
	InvoiceDate        string             `json:"invoiceDate"`
	Items              []ItemDTO          `json:"items"`
	BillFrom           accounting.Address `json:"billFrom"`
	BillTo             accounting.Address `json:"billTo"`
	Amount             string             `json:"amount"`
	Subtotal           string             `json:"subtotal"`
	GSTMode            string             `json:"gstMode"`
	GSTPercent         string             `json:"gstPercent"`
	GSTAmount          string             `json:"gstAmount"`
	Total              string             `json:"total"`
	ProjectDescription string             `json:"projectDescription,omitempty"`
	PaymentTerms       string             `json:"paymentTerms,omitempty"`
	TermsOfPayment     string             `json:"termsOfPayment,omitempty"`
	SuppliersRef       string             `json:"suppliersRef,omitempty"`
	OtherRef           string             `json:"otherRef,omitempty"`
	HSN                string             `json:"hsn,omitempty"`
}

func toInvoiceDTO(inv *accounting.Invoice) InvoiceDTO {
	items := make([]ItemDTO, len(inv.Items))
	for i, item := range inv.Items {
		items[i] = ItemDTO{
			Name:     item.Name,
			Quantity: item.Quantity.String(),
			Rate:     money(item.Rate),
			Unit:     item.Unit,
			Total:    money(item.Total),
		}
	}
	return InvoiceDTO{
		ID:                 inv.ID,
		ClientName:         inv.ClientName,
		Status:             string(inv.Status),
		InvoiceDate:        inv.InvoiceDate.String(),
		Items:              items,
		BillFrom:           inv.BillFrom,
		BillTo:             inv.BillTo,
		Amount:             money(inv.Amount),
		Subtotal:           money(inv.Subtotal),
		GSTMode:            inv.GSTMode,
		GSTPercent:         inv.GSTPercent.String(),
		GSTAmount:          money(inv.GSTAmount),
		Total:              money(inv.Total),
		ProjectDescription: inv.ProjectDescription,
		PaymentTerms:       inv.PaymentTerms,
		TermsOfPayment:     inv.TermsOfPayment,
		SuppliersRef:       inv.SuppliersRef,
		OtherRef:           inv.OtherRef,
		HSN:                inv.HSN,
	}
}

// =============================================================================
// CUSTOMERS
// =============================================================================

// CustomerDTO represents a customer, with its balance when listed for a year.
type CustomerDTO struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Balance       string `json:"balance,omitempty"`
	ClientEmail   string `json:"clientEmail,omitempty"`
	StreetAddress string `json:"streetAddress,omitempty"`
	City          string `json:"city,omitempty"`
	PostCode      string `json:"postCode,omitempty"`
	Country       string `json:"country,omitempty"`
	GSTIN         string `json:"gstin,omitempty"`
}

func toCustomerDTO(c accounting.Customer) CustomerDTO {
	return CustomerDTO{
		ID:            c.ID,
		Name:          c.Name,
		ClientEmail:   c.Email,
		StreetAddress: c.StreetAddress,
		City:          c.City,
		PostCode:      c.PostCode,
		Country:       c.Country,
		GSTIN:         c.GSTIN,
	}
}

// =============================================================================
// LEDGER
// =============================================================================

// LedgerRowDTO is one line of a ledger view.
type LedgerRowDTO struct {
	ID          int64   `json:"id"`
	SNo         int     `json:"sNo"`
	BillDate    string  `json:"billDate"`
	Particulars string  `json:"particulars"`
	Dr          string  `json:"dr"`
	Cr          string  `json:"cr"`
	Balance     string  `json:"balance"`
	InvoiceID   *string `json:"invoiceId,omitempty"`
}

func toLedgerRowDTOs(rows []accounting.LedgerRow) []LedgerRowDTO {
	dtos := make([]LedgerRowDTO, len(rows))
	for i, r := range rows {
		dtos[i] = LedgerRowDTO{
			ID:          r.EntryID,
			SNo:         r.SNo,
			BillDate:    r.Date.String(),
			Particulars: r.Particulars,
			Dr:          money(r.Debit),
			Cr:          money(r.Credit),
			Balance:     money(r.Balance),
			InvoiceID:   r.InvoiceID,
		}
	}
	return dtos
}

// Entry types accepted by LedgerEntryRequest.
const (
	entryTypePayment = "payment"
	entryTypeGeneral = "entry"
)

// LedgerEntryRequest is the body of a manual ledger write. Type selects the
// variant; the other fields are read according to it:
//
//	{"type":"payment","date":"2024-06-10","amount":500,"method":"UPI"}
//	{"type":"entry","date":"2024-06-10","particulars":"Discount","dr":0,"cr":50}
type LedgerEntryRequest struct {
	Type        string           `json:"type"`
	Date        accounting.Date  `json:"date"`
	Amount      accounting.Money `json:"amount"`
	Method      string           `json:"method,omitempty"`
	Particulars string           `json:"particulars,omitempty"`
	Dr          accounting.Money `json:"dr"`
	Cr          accounting.Money `json:"cr"`
}

// ManualEntry converts the request into the engine's tagged variant.
func (r LedgerEntryRequest) ManualEntry() (accounting.ManualEntry, error) {
	switch strings.ToLower(strings.TrimSpace(r.Type)) {
	case entryTypePayment:
		return accounting.Payment{Date: r.Date, Amount: r.Amount, Method: r.Method}, nil
	case entryTypeGeneral:
		return accounting.GeneralEntry{Date: r.Date, Particulars: r.Particulars, Debit: r.Dr, Credit: r.Cr}, nil
	case "":
		return nil, &accounting.ValidationError{Field: "type", Message: `entry type is required ("payment" or "entry")`}
	default:
		return nil, &accounting.ValidationError{Field: "type", Message: `entry type must be "payment" or "entry"`}
	}
}

// =============================================================================
// COMMON
// =============================================================================

// CreatedDTO acknowledges a write that produced an identifier.
type CreatedDTO struct {
	ID string `json:"id"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

func money(m accounting.Money) string {
	return m.StringFixed(2)
}
