package accounting

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// =============================================================================
// PERIOD - Inclusive day range
// =============================================================================

// Period is an inclusive range of days [Start, End].
type Period struct {
	Start Date
	End   Date
}

// Contains returns true if the day is within the period [Start, End]
func (p Period) Contains(d Date) bool {
	return d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// =============================================================================
// FINANCIAL YEAR
// =============================================================================

// FinancialYear is the "YYYY-YY" label of a twelve-month accounting year,
// e.g. "2025-26" for April 2025 through March 2026.
type FinancialYear string

var financialYearPattern = regexp.MustCompile(`^\d{4}-\d{2}$`)

// InvoicePrefix is the scope of the per-user invoice sequence.
func (fy FinancialYear) InvoicePrefix() string {
	return "DS/" + string(fy) + "/"
}

func (fy FinancialYear) String() string { return string(fy) }

// Calendar maps days to financial years. StartMonth is the first month of
// every financial year; the zero value means April.
type Calendar struct {
	StartMonth time.Month
}

// DefaultCalendar starts financial years on April 1.
var DefaultCalendar = Calendar{StartMonth: time.April}

func (c Calendar) startMonth() time.Month {
	if c.StartMonth < time.January || c.StartMonth > time.December {
		return time.April
	}
	return c.StartMonth
}

// YearOf returns the financial year containing the day. Days before the
// start month belong to the year that started the previous calendar year.
func (c Calendar) YearOf(d Date) FinancialYear {
	startYear := d.Year()
	if d.Month() < c.startMonth() {
		startYear--
	}
	return label(startYear)
}

// Current returns the financial year containing the clock's today.
func (c Calendar) Current(clock Clock) FinancialYear {
	return c.YearOf(clock.Today())
}

// Bounds parses a label and returns its inclusive day range. The two-digit
// suffix must be the year after the start year, so "2025-27" is rejected.
func (c Calendar) Bounds(fy FinancialYear) (Period, error) {
	s := string(fy)
	if !financialYearPattern.MatchString(s) {
		return Period{}, &ValidationError{Field: "year", Message: fmt.Sprintf("invalid financial year %q (expected YYYY-YY)", s)}
	}
	startYear, _ := strconv.Atoi(s[:4])
	if label(startYear) != fy {
		return Period{}, &ValidationError{Field: "year", Message: fmt.Sprintf("invalid financial year %q (expected %s)", s, label(startYear))}
	}

	start := NewDate(startYear, c.startMonth(), 1)
	return Period{Start: start, End: start.AddYears(1).AddDays(-1)}, nil
}

func label(startYear int) FinancialYear {
	return FinancialYear(fmt.Sprintf("%04d-%02d", startYear, (startYear+1)%100))
}
