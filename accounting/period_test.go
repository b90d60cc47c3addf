package accounting

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalendar_YearOf(t *testing.T) {
	tests := []struct {
		day  Date
		want FinancialYear
	}{
		{NewDate(2024, time.April, 1), "2024-25"},
		{NewDate(2024, time.March, 31), "2023-24"},
		{NewDate(2025, time.January, 15), "2024-25"},
		{NewDate(2099, time.December, 31), "2099-00"},
	}
	for _, tt := range tests {
		t.Run(tt.day.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, DefaultCalendar.YearOf(tt.day))
		})
	}
}

func TestCalendar_Bounds(t *testing.T) {
	period, err := DefaultCalendar.Bounds("2024-25")
	require.NoError(t, err)

	assert.Equal(t, "2024-04-01", period.Start.String())
	assert.Equal(t, "2025-03-31", period.End.String())

	// inclusive at both ends
	assert.True(t, period.Contains(NewDate(2024, time.April, 1)))
	assert.True(t, period.Contains(NewDate(2025, time.March, 31)))
	assert.False(t, period.Contains(NewDate(2024, time.March, 31)))
	assert.False(t, period.Contains(NewDate(2025, time.April, 1)))
}

func TestCalendar_BoundsLeapYear(t *testing.T) {
	period, err := Calendar{StartMonth: time.March}.Bounds("2023-24")
	require.NoError(t, err)

	assert.Equal(t, "2024-02-29", period.End.String())
}

func TestCalendar_BoundsRejectsMalformed(t *testing.T) {
	for _, label := range []FinancialYear{"", "2024", "2024-2025", "24-25", "2024/25", "2024-26", "2024-24", "abcd-ef"} {
		t.Run(string(label), func(t *testing.T) {
			_, err := DefaultCalendar.Bounds(label)

			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, "year", ve.Field)
		})
	}
}

func TestCalendar_CenturyRollover(t *testing.T) {
	period, err := DefaultCalendar.Bounds("2099-00")
	require.NoError(t, err)
	assert.Equal(t, "2100-03-31", period.End.String())
}

func TestCalendar_CustomStartMonth(t *testing.T) {
	cal := Calendar{StartMonth: time.January}

	assert.Equal(t, FinancialYear("2024-25"), cal.YearOf(NewDate(2024, time.January, 1)))
	assert.Equal(t, FinancialYear("2024-25"), cal.YearOf(NewDate(2024, time.December, 31)))

	period, err := cal.Bounds("2024-25")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", period.Start.String())
	assert.Equal(t, "2024-12-31", period.End.String())
}

func TestCalendar_ZeroValueIsApril(t *testing.T) {
	assert.Equal(t, FinancialYear("2023-24"), Calendar{}.YearOf(NewDate(2024, time.March, 1)))
}

func TestCalendar_Current(t *testing.T) {
	clock := FixedClock(NewDate(2025, time.February, 10))
	assert.Equal(t, FinancialYear("2024-25"), DefaultCalendar.Current(clock))
}

func TestFinancialYear_InvoicePrefix(t *testing.T) {
	assert.Equal(t, "DS/2024-25/", FinancialYear("2024-25").InvoicePrefix())
}

func TestDate_JSON(t *testing.T) {
	var d Date
	require.NoError(t, d.UnmarshalJSON([]byte(`"2024-06-01"`)))
	assert.Equal(t, NewDate(2024, time.June, 1), d)

	out, err := d.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `"2024-06-01"`, string(out))

	err = d.UnmarshalJSON([]byte(`"01/06/2024"`))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestDate_Scan(t *testing.T) {
	var d Date
	require.NoError(t, d.Scan("2024-06-01"))
	assert.Equal(t, "2024-06-01", d.String())

	require.NoError(t, d.Scan([]byte("2024-06-02 00:00:00")))
	assert.Equal(t, "2024-06-02", d.String())

	require.NoError(t, d.Scan(time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-06-03", d.String())

	require.NoError(t, d.Scan(nil))
	assert.True(t, d.IsZero())

	assert.Error(t, d.Scan(42))
}
