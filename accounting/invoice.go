package accounting

import (
	"strings"
)

// ItemInput is one requested invoice line. Quantities may be fractional
// (0.5 days, 2.25 hours) up to quantityScale places.
type ItemInput struct {
	Name     string `json:"name" validate:"required"`
	Quantity Money  `json:"quantity" validate:"quantity"`
	Rate     Money  `json:"rate" validate:"money"`
	Unit     string `json:"unit,omitempty"`
}

// InvoiceInput is everything a caller supplies to create or replace an
// invoice. Totals are always computed here, never taken from the caller.
type InvoiceInput struct {
	ClientName  string        `json:"clientName" validate:"required"`
	Items       []ItemInput   `json:"items" validate:"required,min=1,dive"`
	BillFrom    Address       `json:"billFrom"`
	BillTo      Address       `json:"billTo"`
	InvoiceDate Date          `json:"invoiceDate" validate:"required"`
	Status      InvoiceStatus `json:"status,omitempty" validate:"omitempty,oneof=pending paid"`
	GSTMode     string        `json:"gstMode" validate:"required"`
	GSTPercent  Money         `json:"gstPercent" validate:"percent"`

	ProjectDescription string `json:"projectDescription,omitempty"`
	PaymentTerms       string `json:"paymentTerms,omitempty"`
	TermsOfPayment     string `json:"termsOfPayment,omitempty"`
	SuppliersRef       string `json:"suppliersRef,omitempty"`
	OtherRef           string `json:"otherRef,omitempty"`
	HSN                string `json:"hsn,omitempty"`
}

// normalize trims every free-text field the validator looks at.
func (in InvoiceInput) normalize() InvoiceInput {
	in.ClientName = strings.TrimSpace(in.ClientName)
	in.GSTMode = strings.TrimSpace(in.GSTMode)
	in.BillFrom.Name = strings.TrimSpace(in.BillFrom.Name)
	in.BillFrom.StreetAddress = strings.TrimSpace(in.BillFrom.StreetAddress)
	in.BillTo.StreetAddress = strings.TrimSpace(in.BillTo.StreetAddress)

	items := make([]ItemInput, len(in.Items))
	for i, item := range in.Items {
		item.Name = strings.TrimSpace(item.Name)
		items[i] = item
	}
	in.Items = items
	return in
}

// build computes line totals, amount, subtotal, GST and total.
//
//	line     = round(quantity × rate, 2)
//	amount   = Σ line
//	subtotal = amount
//	gst      = round(subtotal × gstPercent / 100, 2)
//	total    = subtotal + gst
//
// Every stored amount therefore has at most MoneyScale places and reads
// back identically from every store.
func (in InvoiceInput) build(userID string) *Invoice {
	inv := &Invoice{
		UserID:             userID,
		ClientName:         in.ClientName,
		BillFrom:           in.BillFrom,
		BillTo:             in.BillTo,
		Status:             in.Status,
		InvoiceDate:        in.InvoiceDate,
		GSTMode:            in.GSTMode,
		GSTPercent:         in.GSTPercent,
		ProjectDescription: in.ProjectDescription,
		PaymentTerms:       in.PaymentTerms,
		TermsOfPayment:     in.TermsOfPayment,
		SuppliersRef:       in.SuppliersRef,
		OtherRef:           in.OtherRef,
		HSN:                in.HSN,
	}

	amount := Zero
	inv.Items = make([]Item, len(in.Items))
	for i, item := range in.Items {
		line := item.Quantity.Mul(item.Rate).Round(MoneyScale)
		inv.Items[i] = Item{
			Name:     item.Name,
			Quantity: item.Quantity,
			Rate:     item.Rate,
			Unit:     item.Unit,
			Total:    line,
		}
		amount = amount.Add(line)
	}

	inv.Amount = amount
	inv.Subtotal = amount
	inv.GSTAmount = amount.Mul(in.GSTPercent).Div(NewMoney("100")).Round(MoneyScale)
	inv.Total = inv.Subtotal.Add(inv.GSTAmount)
	return inv
}
