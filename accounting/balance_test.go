package accounting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(id int64, date Date, debit, credit string) LedgerEntry {
	return LedgerEntry{
		ID:          id,
		CustomerID:  1,
		EntryDate:   date,
		Particulars: "x",
		Debit:       NewMoney(debit),
		Credit:      NewMoney(credit),
	}
}

func fy2024(t *testing.T) Period {
	t.Helper()
	p, err := DefaultCalendar.Bounds("2024-25")
	require.NoError(t, err)
	return p
}

func TestBuildLedgerView_OpeningBalanceFromPriorEntries(t *testing.T) {
	// GIVEN: two entries before the year and one inside it
	entries := []LedgerEntry{
		entry(3, NewDate(2024, time.May, 1), "1180", "0"),
		entry(1, NewDate(2024, time.March, 10), "1000", "0"),
		entry(2, NewDate(2024, time.March, 20), "0", "400"),
	}

	// WHEN: building the FY 2024-25 view
	rows := BuildLedgerView(entries, fy2024(t))

	// THEN: the opening row collapses the prior activity
	require.Len(t, rows, 2)
	assert.Equal(t, OpeningBalanceParticulars, rows[0].Particulars)
	assert.Equal(t, "2024-04-01", rows[0].Date.String())
	assert.Equal(t, "600", rows[0].Debit.String())
	assert.True(t, rows[0].Credit.IsZero())
	assert.Equal(t, int64(0), rows[0].EntryID)

	assert.Equal(t, 2, rows[1].SNo)
	assert.Equal(t, int64(3), rows[1].EntryID)
	assert.Equal(t, "1780", rows[1].Balance.String())
	assert.True(t, Summarize(entries, fy2024(t)).Equal(rows[1].Balance))
}

func TestBuildLedgerView_CreditOpening(t *testing.T) {
	entries := []LedgerEntry{entry(1, NewDate(2024, time.January, 5), "0", "250")}

	rows := BuildLedgerView(entries, fy2024(t))

	require.Len(t, rows, 1)
	assert.True(t, rows[0].Debit.IsZero())
	assert.Equal(t, "250", rows[0].Credit.String())
	assert.Equal(t, "-250", rows[0].Balance.String())
}

func TestBuildLedgerView_OrdersByDateThenID(t *testing.T) {
	day := NewDate(2024, time.June, 1)
	entries := []LedgerEntry{
		entry(9, day, "10", "0"),
		entry(4, day.AddDays(1), "0", "5"),
		entry(2, day, "20", "0"),
	}

	rows := BuildLedgerView(entries, fy2024(t))

	require.Len(t, rows, 4)
	assert.Equal(t, []int64{0, 2, 9, 4}, []int64{rows[0].EntryID, rows[1].EntryID, rows[2].EntryID, rows[3].EntryID})
	assert.Equal(t, []int{1, 2, 3, 4}, []int{rows[0].SNo, rows[1].SNo, rows[2].SNo, rows[3].SNo})
	assert.Equal(t, "25", rows[3].Balance.String())
}

func TestBuildLedgerView_IgnoresLaterYears(t *testing.T) {
	entries := []LedgerEntry{
		entry(1, NewDate(2024, time.June, 1), "100", "0"),
		entry(2, NewDate(2025, time.April, 1), "999", "0"),
	}

	rows := BuildLedgerView(entries, fy2024(t))

	require.Len(t, rows, 2)
	assert.Equal(t, "100", Summarize(entries, fy2024(t)).String())
}

func TestBuildLedgerView_BoundaryDaysAreInside(t *testing.T) {
	entries := []LedgerEntry{
		entry(1, NewDate(2024, time.April, 1), "1", "0"),
		entry(2, NewDate(2025, time.March, 31), "2", "0"),
	}

	rows := BuildLedgerView(entries, fy2024(t))

	require.Len(t, rows, 3)
	assert.True(t, rows[0].Balance.IsZero())
}

func TestBuildLedgerView_Empty(t *testing.T) {
	rows := BuildLedgerView(nil, fy2024(t))

	require.Len(t, rows, 1)
	assert.True(t, rows[0].Balance.IsZero())
	assert.True(t, Summarize(nil, fy2024(t)).IsZero())
}

func TestSummarize_DecimalsAreExact(t *testing.T) {
	var entries []LedgerEntry
	for i := 0; i < 10; i++ {
		entries = append(entries, entry(int64(i+1), NewDate(2024, time.June, 1), "0.10", "0"))
	}
	entries = append(entries, entry(11, NewDate(2024, time.June, 2), "0", "0.30"))

	assert.Equal(t, "0.70", Summarize(entries, fy2024(t)).StringFixed(2))
}
