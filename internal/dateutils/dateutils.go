// Package dateutils provides the date and month handling used throughout
// the ledger: multi-format parsing of bank export dates and calendar-month
// boundary arithmetic.
package dateutils

import (
	"fmt"
	"strings"
	"time"
)

// Layout constants for the formats bank exports actually use.
const (
	LayoutISO      = "2006-01-02"
	LayoutEuropean = "02.01.2006"
	LayoutUK       = "02/01/2006"
	LayoutFull     = "2006-01-02 15:04:05"
	LayoutMonth    = "2006-01" // budget months
)

// CommonFormats is the ordered list of layouts tried when parsing dates.
// Day-first layouts come before month-first ones; UK bank exports dominate.
var CommonFormats = []string{
	LayoutISO,
	time.RFC3339,
	LayoutFull,
	LayoutEuropean,
	LayoutUK,
	"02-01-2006",
	"2006/01/02",
	"2-Jan-2006",
	"Jan 2, 2006",
}

// ParseDate attempts to parse a date string using each common format in turn.
func ParseDate(s string) (time.Time, error) {
	s = strings.Join(strings.Fields(strings.TrimSpace(s)), " ")
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range CommonFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date: %s", s)
}

// Month is a calendar month in YYYY-MM form.
type Month string

// ParseMonth validates a YYYY-MM string.
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse(LayoutMonth, s)
	if err != nil {
		return "", fmt.Errorf("invalid month %q (want YYYY-MM): %w", s, err)
	}
	return Month(t.Format(LayoutMonth)), nil
}

// CurrentMonth returns the month containing now.
func CurrentMonth(now time.Time) Month {
	return Month(now.Format(LayoutMonth))
}

// Range returns the half-open date range [since, until) covering the month,
// both as ISO dates, along with a human-readable label.
func (m Month) Range() (since, until, label string) {
	t, _ := time.Parse(LayoutMonth, string(m))
	since = t.Format(LayoutISO)
	until = t.AddDate(0, 1, 0).Format(LayoutISO)
	label = t.Format("January 2006")
	return since, until, label
}

// Prev returns the preceding calendar month.
func (m Month) Prev() Month {
	t, _ := time.Parse(LayoutMonth, string(m))
	return Month(t.AddDate(0, -1, 0).Format(LayoutMonth))
}

func (m Month) String() string { return string(m) }

// Label returns the human-readable form, e.g. "November 2025".
func (m Month) Label() string {
	_, _, label := m.Range()
	return label
}
