package models

import (
	"fmt"
	"time"
)

// DayFormat is the canonical layout for bucket dates.
const DayFormat = "2006-01-02"

// Day is a calendar date with day granularity, formatted "2006-01-02".
// The ISO layout sorts lexicographically, so Day values compare with < and >
// directly. Bucket dates are always interpreted in UTC.
type Day string

// DayOf truncates a timestamp to its UTC calendar day.
func DayOf(t time.Time) Day {
	return Day(t.UTC().Format(DayFormat))
}

// Today returns the current UTC calendar day.
func Today() Day {
	return DayOf(time.Now())
}

// ParseDay validates a "2006-01-02" string.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(DayFormat, s)
	if err != nil {
		return "", fmt.Errorf("invalid date %q, want %q: %w", s, DayFormat, err)
	}
	return DayOf(t), nil
}

// Time returns midnight UTC of the day. Zero time for an unset day.
func (d Day) Time() time.Time {
	if d == "" {
		return time.Time{}
	}
	t, err := time.Parse(DayFormat, string(d))
	if err != nil {
		return time.Time{}
	}
	return t
}

// IsZero reports whether the day is unset.
func (d Day) IsZero() bool { return d == "" }

// Add returns the day shifted by the given number of calendar days.
func (d Day) Add(days int) Day {
	return DayOf(d.Time().AddDate(0, 0, days))
}

// Before reports whether d falls before x.
func (d Day) Before(x Day) bool { return d < x }

// After reports whether d falls after x.
func (d Day) After(x Day) bool { return d > x }

// DaysBetween returns the number of calendar days from a to b (negative when
// b precedes a).
func DaysBetween(a, b Day) int {
	return int(b.Time().Sub(a.Time()).Hours() / 24)
}

// MinDay returns the earlier of two days; an unset day loses to a set one.
func MinDay(a, b Day) Day {
	if a.IsZero() {
		return b
	}
	if b.IsZero() {
		return a
	}
	if a.Before(b) {
		return a
	}
	return b
}

// MaxDay returns the later of two days.
func MaxDay(a, b Day) Day {
	if a.After(b) {
		return a
	}
	return b
}

func (d Day) String() string { return string(d) }
