package utils

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the canonical calendar-date rendering used in derived tables and exports.
const DateLayout = "2006-01-02"

// DefaultDateLayouts are tried in order when parsing textual approval dates.
var DefaultDateLayouts = []string{
	DateLayout,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"02.01.2006",
	"02.01.2006 15:04:05",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"01-02-06",
}

// DateOf drops the time of day, keeping the calendar date in UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a calendar date using the given layouts, then DefaultDateLayouts.
func ParseDate(value string, layouts ...string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty date value")
	}
	for _, group := range [][]string{layouts, DefaultDateLayouts} {
		for _, layout := range group {
			if t, err := time.Parse(layout, value); err == nil {
				return DateOf(t), nil
			}
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", value)
}

// FormatDate renders a date with DateLayout, or "" for the zero time.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

// DaysBetween counts whole calendar days from start to end; negative when end precedes start.
func DaysBetween(start, end time.Time) int {
	return int((DateOf(end).Unix() - DateOf(start).Unix()) / 86400)
}
