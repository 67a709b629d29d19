// Package datewindow provides the day and month windows used to compare
// date-only semantics against timestamped columns. The sync logic and the
// history views must derive their windows from the same functions so that
// "what can be removed" never drifts from "what is displayed".
package datewindow

import "time"

// Day returns the inclusive window spanning the calendar day containing t.
func Day(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	end := start.AddDate(0, 0, 1).Add(-time.Nanosecond)
	return start, end
}

// Month returns the inclusive window spanning the calendar month containing t.
func Month(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	end := start.AddDate(0, 1, 0).Add(-time.Nanosecond)
	return start, end
}

// ParseDate parses a YYYY-MM-DD date string in UTC.
func ParseDate(raw string) (time.Time, error) {
	return time.Parse("2006-01-02", raw)
}

// ParseMonth parses a YYYY-MM month string and returns its first instant.
func ParseMonth(raw string) (time.Time, error) {
	return time.Parse("2006-01", raw)
}

// DayKey formats t as the YYYY-MM-DD key used to index history matrices.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// MonthKey formats t as the YYYY-MM key used to scope tute materials.
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}
