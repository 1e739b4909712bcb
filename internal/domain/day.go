package domain

import (
	"fmt"
	"time"
)

// DayLayout is the persisted and wire format of a Day.
const DayLayout = "2006-01-02"

// Day is a calendar date with no time-of-day or zone. The zero value means
// "no day yet" and never equals a real date, so Days compare with ==.
type Day struct {
	Year  int
	Month time.Month
	Dom   int
}

// DayOf returns the calendar date of t in loc. A nil loc means time.Local.
func DayOf(t time.Time, loc *time.Location) Day {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := t.In(loc).Date()
	return Day{Year: y, Month: m, Dom: d}
}

// ParseDay parses a YYYY-MM-DD string. The empty string yields the zero Day.
func ParseDay(s string) (Day, error) {
	if s == "" {
		return Day{}, nil
	}
	t, err := time.Parse(DayLayout, s)
	if err != nil {
		return Day{}, fmt.Errorf("parse day %q: %w", s, err)
	}
	y, m, d := t.Date()
	return Day{Year: y, Month: m, Dom: d}, nil
}

// IsZero reports whether d is unset.
func (d Day) IsZero() bool {
	return d == Day{}
}

// String formats d as YYYY-MM-DD, or "" for the zero Day.
func (d Day) String() string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Dom)
}

// Start returns midnight of d in loc.
func (d Day) Start(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(d.Year, d.Month, d.Dom, 0, 0, 0, 0, loc)
}

// AddDays returns the day n days after d (n may be negative).
func (d Day) AddDays(n int) Day {
	t := time.Date(d.Year, d.Month, d.Dom+n, 0, 0, 0, 0, time.UTC)
	y, m, dd := t.Date()
	return Day{Year: y, Month: m, Dom: dd}
}

// Before reports whether d is strictly earlier than o.
func (d Day) Before(o Day) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Dom < o.Dom
}

// MarshalText implements encoding.TextMarshaler.
func (d Day) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Day) UnmarshalText(b []byte) error {
	parsed, err := ParseDay(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
