package model

import (
	"fmt"
	"time"
)

// Month is an absolute calendar month, counted as year*12 + (month-1).
// It is the unit of scheduling: assignments, leave events and rule
// effectivity are all month-granular.
type Month int

// MonthOf returns the Month for the given calendar year and month.
func MonthOf(year int, m time.Month) Month {
	return Month(year*12 + int(m) - 1)
}

// MonthOfTime truncates t to its calendar month.
func MonthOfTime(t time.Time) Month {
	return MonthOf(t.Year(), t.Month())
}

// Year returns the calendar year of m.
func (m Month) Year() int { return int(m) / 12 }

// Calendar returns the calendar month (January..December) of m.
func (m Month) Calendar() time.Month { return time.Month(int(m)%12 + 1) }

// Add returns m shifted by n months.
func (m Month) Add(n int) Month { return m + Month(n) }

// Time returns the first day of the month in UTC.
func (m Month) Time() time.Time {
	return time.Date(m.Year(), m.Calendar(), 1, 0, 0, 0, 0, time.UTC)
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year(), int(m.Calendar()))
}

// ParseMonth parses a "YYYY-MM" string.
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return 0, fmt.Errorf("parse month %q: %w", s, err)
	}
	return MonthOfTime(t), nil
}
