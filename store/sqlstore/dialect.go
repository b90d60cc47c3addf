package sqlstore

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
)

// Dialect isolates what differs between the supported databases. Queries in
// this package are written with '?' placeholders and rebound per dialect.
type Dialect interface {
	// Name is the driver family, "sqlite" or "postgres".
	Name() string

	// Rebind rewrites '?' placeholders into the dialect's syntax.
	Rebind(query string) string

	// LockInvoiceScope blocks other transactions allocating in the same
	// (user, prefix) scope until tx ends.
	LockInvoiceScope(ctx context.Context, tx *sql.Tx, userID, prefix string) error

	// ForUpdate is appended to the latest-invoice query ("" when the
	// database has no row locks).
	ForUpdate() string

	// IsUniqueViolation reports whether err is a unique/primary key violation.
	IsUniqueViolation(err error) bool
}

// RebindDollar turns '?' placeholders into $1, $2, ... It does not look
// inside string literals; queries in this package never put '?' in one.
func RebindDollar(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
