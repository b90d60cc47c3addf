/*
balance.go - Financial-year ledger views and customer balances

PURPOSE:
  Computes a customer's position from ledger entries within a financial
  year. Nothing here touches the store: entries are loaded fresh by the
  caller on every request and folded in memory, so there is no balance
  anywhere that could go stale.

KEY INSIGHT:
  A balance is always for a PERIOD. Everything dated before the period is
  collapsed into one synthetic "Opening Balance" row; everything inside it
  is listed in (date, id) order with a running position.

OPENING ROW:
  opening = Σ(debit - credit) of entries dated before period.Start

  opening > 0:  Debit = opening, Credit = 0
  opening < 0:  Debit = 0,       Credit = -opening
  opening = 0:  both 0

EXAMPLE:
  FY 2024-25, entries: 2024-03-10 Dr 1000, 2024-03-20 Cr 400, 2024-05-01 Dr 1180

  SNo  Date        Particulars       Dr      Cr    Balance
  1    2024-04-01  Opening Balance   600     0     600
  2    2024-05-01  BY BILL ...       1180    0     1780

  Summarize(...) = 1780, the last row's Balance.

SEE ALSO:
  - period.go: Calendar.Bounds turns "2024-25" into the period
  - engine.go: GetLedger / ListCustomersWithBalances
*/
package accounting

import "sort"

// OpeningBalanceParticulars is the description of the synthetic first row.
const OpeningBalanceParticulars = "Opening Balance"

// OpeningBalance sums the net effect of every entry dated before the period.
func OpeningBalance(entries []LedgerEntry, period Period) Money {
	opening := Zero
	for _, e := range entries {
		if e.EntryDate.Before(period.Start) {
			opening = opening.Add(e.Net())
		}
	}
	return opening
}

// BuildLedgerView returns the opening row followed by the period's entries
// in (date, id) order. Entries after the period are ignored.
func BuildLedgerView(entries []LedgerEntry, period Period) []LedgerRow {
	opening := OpeningBalance(entries, period)

	rows := []LedgerRow{openingRow(opening, period.Start)}

	running := opening
	for _, e := range inPeriod(entries, period) {
		running = running.Add(e.Net())
		rows = append(rows, LedgerRow{
			SNo:         len(rows) + 1,
			EntryID:     e.ID,
			Date:        e.EntryDate,
			Particulars: e.Particulars,
			Debit:       e.Debit,
			Credit:      e.Credit,
			Balance:     running,
			InvoiceID:   e.InvoiceID,
		})
	}
	return rows
}

// Summarize is the closing position for the period: opening plus the
// period's debits minus its credits. It always equals the Balance of the
// last row of BuildLedgerView for the same entries.
func Summarize(entries []LedgerEntry, period Period) Money {
	balance := Zero
	for _, e := range entries {
		if e.EntryDate.BeforeOrEqual(period.End) {
			balance = balance.Add(e.Net())
		}
	}
	return balance
}

func openingRow(opening Money, start Date) LedgerRow {
	row := LedgerRow{
		SNo:         1,
		Date:        start,
		Particulars: OpeningBalanceParticulars,
		Debit:       Zero,
		Credit:      Zero,
		Balance:     opening,
	}
	switch {
	case opening.IsPositive():
		row.Debit = opening
	case opening.IsNegative():
		row.Credit = opening.Neg()
	}
	return row
}

func inPeriod(entries []LedgerEntry, period Period) []LedgerEntry {
	var out []LedgerEntry
	for _, e := range entries {
		if period.Contains(e.EntryDate) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].EntryDate.Equal(out[j].EntryDate) {
			return out[i].EntryDate.Before(out[j].EntryDate)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// groupByCustomer splits a user's entries by customer id.
func groupByCustomer(entries []LedgerEntry) map[int64][]LedgerEntry {
	grouped := make(map[int64][]LedgerEntry)
	for _, e := range entries {
		grouped[e.CustomerID] = append(grouped[e.CustomerID], e)
	}
	return grouped
}
