package domain

import (
	"fmt"
	"strings"
	"time"
)

// Date is a calendar day with no time-of-day or timezone component,
// distinct from time.Time so stay boundaries (check-in/check-out nights)
// truncate deterministically regardless of the caller's location.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Year: year, Month: month, Day: day}
}

func DateFromTime(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// dateLayouts are the accepted ISO-8601 shapes, tried in order: bare
// date, full datetime with offset, and datetime without offset.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// ParseDate parses an ISO-8601 date or datetime string; datetimes are
// truncated to the calendar day, so ParseDate(d.String()) == d for any
// valid Date.
func ParseDate(s string) (Date, error) {
	trimmed := strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return DateFromTime(t), nil
		}
	}
	return Date{}, fmt.Errorf("date: cannot parse %q as ISO-8601 date or datetime", s)
}

func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

func (d Date) Before(o Date) bool { return d.Time().Before(o.Time()) }
func (d Date) After(o Date) bool  { return d.Time().After(o.Time()) }
func (d Date) Equal(o Date) bool  { return d == o }

// NightsUntil counts the number of stay-nights between d (inclusive) and
// checkout (exclusive). A same-day range yields 0.
func (d Date) NightsUntil(checkout Date) int {
	diff := checkout.Time().Sub(d.Time())
	return int(diff.Hours() / 24)
}

func (d Date) AddDays(n int) Date {
	return DateFromTime(d.Time().AddDate(0, 0, n))
}
