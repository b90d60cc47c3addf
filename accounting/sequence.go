package accounting

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// invoiceNumberWidth is the zero-padded width of the sequence suffix.
// Numbers past 9999 simply grow wider.
const invoiceNumberWidth = 4

// NextInvoiceID allocates the next identifier of the user's sequence for
// the financial year, e.g. "DS/2024-25/0007".
//
// The scope lock is held until tx ends, so a second allocator for the same
// (user, year) blocks until the first one's invoice row is committed or
// rolled back. Other users and other years never contend.
//
// A stored id whose suffix is not a positive integer stops the allocation
// with a *ConsistencyError. Restarting at 1 would hand out an id that
// already exists.
func NextInvoiceID(ctx context.Context, tx Tx, userID string, fy FinancialYear) (string, error) {
	prefix := fy.InvoicePrefix()

	if err := tx.LockInvoiceScope(ctx, userID, prefix); err != nil {
		return "", err
	}

	latest, found, err := tx.LatestInvoiceID(ctx, userID, prefix)
	if err != nil {
		return "", err
	}

	next := 1
	if found {
		n, err := parseSequence(latest, prefix)
		if err != nil {
			return "", err
		}
		next = n + 1
	}

	return formatInvoiceID(prefix, next), nil
}

func parseSequence(id, prefix string) (int, error) {
	suffix, ok := strings.CutPrefix(id, prefix)
	if !ok {
		return 0, &ConsistencyError{Message: fmt.Sprintf("invoice id %q is outside scope %q", id, prefix)}
	}
	n, err := strconv.Atoi(suffix)
	if err != nil || n < 1 {
		return 0, &ConsistencyError{Message: fmt.Sprintf("invoice id %q has no numeric sequence suffix", id)}
	}
	return n, nil
}

func formatInvoiceID(prefix string, n int) string {
	return fmt.Sprintf("%s%0*d", prefix, invoiceNumberWidth, n)
}
