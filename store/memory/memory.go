// Package memory provides an in-memory accounting.Store for tests and
// local development. Data is lost when the process exits.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/designersquare/bookkeeping/accounting"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

// Store keeps every table in maps guarded by one lock. Write transactions
// hold the lock exclusively, so they are fully serialized; reads share it.
type Store struct {
	mu sync.RWMutex
	state
}

var _ accounting.Store = (*Store)(nil)

type invoiceKey struct {
	userID string
	id     string
}

type state struct {
	invoices  map[invoiceKey]accounting.Invoice
	customers map[int64]accounting.Customer
	entries   map[int64]accounting.LedgerEntry

	lastCustomerID int64
	lastEntryID    int64
}

// New returns an empty store.
func New() *Store {
	return &Store{state: state{
		invoices:  make(map[invoiceKey]accounting.Invoice),
		customers: make(map[int64]accounting.Customer),
		entries:   make(map[int64]accounting.LedgerEntry),
	}}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() error { return nil }

// WithTx runs fn with the store locked. On error or panic every write fn
// made is undone by restoring a snapshot taken before fn ran; the panic is
// then re-raised.
func (s *Store) WithTx(ctx context.Context, fn func(tx accounting.Tx) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	snapshot := s.state.clone()
	defer func() {
		if p := recover(); p != nil {
			s.state = snapshot
			panic(p)
		}
	}()

	if err = fn(&txView{s: &s.state}); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

func (st *state) clone() state {
	return state{
		invoices:       maps.Clone(st.invoices),
		customers:      maps.Clone(st.customers),
		entries:        maps.Clone(st.entries),
		lastCustomerID: st.lastCustomerID,
		lastEntryID:    st.lastEntryID,
	}
}

// =============================================================================
// READER
// =============================================================================

func (s *Store) GetInvoice(_ context.Context, userID, invoiceID string) (*accounting.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.invoices[invoiceKey{userID, invoiceID}]
	if !ok {
		return nil, &accounting.NotFoundError{Kind: "invoice", ID: invoiceID}
	}
	return copyInvoice(inv), nil
}

// ListInvoices returns the user's invoices, newest id first.
func (s *Store) ListInvoices(_ context.Context, userID string) ([]accounting.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []accounting.Invoice{}
	for k, inv := range s.invoices {
		if k.userID == userID {
			out = append(out, *copyInvoice(inv))
		}
	}
	slices.SortFunc(out, func(a, b accounting.Invoice) int { return -compareIDs(a.ID, b.ID) })
	return out, nil
}

func (s *Store) GetCustomer(_ context.Context, userID string, customerID int64) (*accounting.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[customerID]
	if !ok || c.UserID != userID {
		return nil, &accounting.NotFoundError{Kind: "customer", ID: fmt.Sprint(customerID)}
	}
	return &c, nil
}

func (s *Store) FindCustomerByName(_ context.Context, userID, name string) (*accounting.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.findCustomer(userID, name)
	if !ok {
		return nil, &accounting.NotFoundError{Kind: "customer", ID: name}
	}
	c := s.customers[id]
	return &c, nil
}

// ListCustomers returns the user's customers ordered by name.
func (s *Store) ListCustomers(_ context.Context, userID string) ([]accounting.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []accounting.Customer{}
	for _, c := range s.customers {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b accounting.Customer) int {
		if n := strings.Compare(a.Name, b.Name); n != 0 {
			return n
		}
		return int(a.ID - b.ID)
	})
	return out, nil
}

func (s *Store) CustomerEntries(_ context.Context, userID string, customerID int64) ([]accounting.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectEntries(func(e accounting.LedgerEntry) bool {
		return e.UserID == userID && e.CustomerID == customerID
	}), nil
}

func (s *Store) UserEntries(_ context.Context, userID string) ([]accounting.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectEntries(func(e accounting.LedgerEntry) bool { return e.UserID == userID }), nil
}

// MirrorAnomalies lists invoices without exactly one mirrored entry, and
// mirrored entries whose invoice is gone.
func (s *Store) MirrorAnomalies(context.Context) ([]accounting.MirrorAnomaly, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[invoiceKey]int)
	for _, e := range s.entries {
		if e.InvoiceID != nil {
			counts[invoiceKey{e.UserID, *e.InvoiceID}]++
		}
	}

	var anomalies []accounting.MirrorAnomaly
	for k := range s.invoices {
		if n := counts[k]; n != 1 {
			anomalies = append(anomalies, accounting.MirrorAnomaly{UserID: k.userID, InvoiceID: k.id, Entries: n})
		}
	}
	for k, n := range counts {
		if _, ok := s.invoices[k]; !ok {
			anomalies = append(anomalies, accounting.MirrorAnomaly{UserID: k.userID, InvoiceID: k.id, Entries: n, Orphaned: true})
		}
	}
	slices.SortFunc(anomalies, func(a, b accounting.MirrorAnomaly) int {
		if n := strings.Compare(a.UserID, b.UserID); n != 0 {
			return n
		}
		return strings.Compare(a.InvoiceID, b.InvoiceID)
	})
	return anomalies, nil
}

// =============================================================================
// HELPERS (caller holds the lock)
// =============================================================================

func (st *state) findCustomer(userID, name string) (int64, bool) {
	for id, c := range st.customers {
		if c.UserID == userID && c.Name == name {
			return id, true
		}
	}
	return 0, false
}

// selectEntries returns matching entries ordered by (date, id).
func (st *state) selectEntries(match func(accounting.LedgerEntry) bool) []accounting.LedgerEntry {
	var out []accounting.LedgerEntry
	for _, e := range st.entries {
		if match(e) {
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b accounting.LedgerEntry) int {
		if n := a.EntryDate.Time.Compare(b.EntryDate.Time); n != 0 {
			return n
		}
		return int(a.ID - b.ID)
	})
	return out
}

// compareIDs orders invoice ids by (length, text), the same order the SQL
// stores use.
func compareIDs(a, b string) int {
	if len(a) != len(b) {
		return len(a) - len(b)
	}
	return strings.Compare(a, b)
}

func copyInvoice(inv accounting.Invoice) *accounting.Invoice {
	inv.Items = slices.Clone(inv.Items)
	return &inv
}
