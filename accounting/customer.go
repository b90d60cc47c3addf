package accounting

import (
	"context"
	"strings"
)

// ResolveCustomer finds the user's customer with exactly this name inside
// tx, inserting it when absent. created reports whether a row was inserted,
// so callers can surface implicit creation instead of hiding it.
//
// It must run in the same transaction as the invoice write that needs the
// id: two concurrent writers naming the same new customer then either see
// each other's row or one of them fails on UNIQUE(user_id, name) and rolls
// back with a *ConflictError.
func ResolveCustomer(ctx context.Context, tx Tx, userID, name string) (id int64, created bool, err error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, false, &ValidationError{Field: "clientName", Message: "customer name is required"}
	}

	id, found, err := tx.FindCustomerID(ctx, userID, name)
	if err != nil {
		return 0, false, err
	}
	if found {
		return id, false, nil
	}

	id, err = tx.InsertCustomer(ctx, Customer{UserID: userID, Name: name})
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// CustomerInput is the explicit customer-management payload.
type CustomerInput struct {
	Name          string `json:"name" validate:"required"`
	Email         string `json:"clientEmail,omitempty" validate:"omitempty,email"`
	StreetAddress string `json:"streetAddress,omitempty"`
	City          string `json:"city,omitempty"`
	PostCode      string `json:"postCode,omitempty"`
	Country       string `json:"country,omitempty"`
	GSTIN         string `json:"gstin,omitempty"`
}

func (in CustomerInput) customer(userID string) Customer {
	return Customer{
		UserID:        userID,
		Name:          strings.TrimSpace(in.Name),
		Email:         strings.TrimSpace(in.Email),
		StreetAddress: in.StreetAddress,
		City:          in.City,
		PostCode:      in.PostCode,
		Country:       in.Country,
		GSTIN:         strings.TrimSpace(in.GSTIN),
	}
}
