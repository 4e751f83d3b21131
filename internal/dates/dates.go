// Package dates handles calendar dates (no time of day) pinned to a reference timezone.
package dates

import (
	"fmt"
	"strings"
	"time"
)

const Layout = "2006-01-02"

// Parse reads a YYYY-MM-DD date as midnight in loc.
func Parse(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(Layout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

// Midnight drops the time of day, keeping the calendar date t has in its own zone.
func Midnight(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// Today is the current calendar date in loc.
func Today(now time.Time, loc *time.Location) time.Time {
	return Midnight(now.In(loc), loc)
}

func Format(t time.Time) string {
	return t.Format(Layout)
}

type Range struct {
	From time.Time
	To   time.Time
}

// ParseRange parses a check-in/check-out pair and requires From < To.
func ParseRange(checkIn, checkOut string, loc *time.Location) (Range, error) {
	from, err := Parse(checkIn, loc)
	if err != nil {
		return Range{}, fmt.Errorf("checkIn: %w", err)
	}
	to, err := Parse(checkOut, loc)
	if err != nil {
		return Range{}, fmt.Errorf("checkOut: %w", err)
	}
	if !from.Before(to) {
		return Range{}, fmt.Errorf("checkIn must be before checkOut")
	}
	return Range{From: from, To: to}, nil
}

// NewRange normalizes both ends to midnight in loc.
func NewRange(from, to time.Time, loc *time.Location) Range {
	return Range{From: Midnight(from, loc), To: Midnight(to, loc)}
}

// Overlaps treats both ends as occupied: a stay that checks in on another
// stay's check-out day collides with it.
func (r Range) Overlaps(o Range) bool {
	return !r.From.After(o.To) && !r.To.Before(o.From)
}

func (r Range) Nights() int {
	return int(r.To.Sub(r.From).Hours()/24 + 0.5)
}

// Days lists every calendar date in the range, both ends included.
func (r Range) Days() []time.Time {
	var out []time.Time
	for d := r.From; !d.After(r.To); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

func (r Range) String() string {
	return Format(r.From) + ".." + Format(r.To)
}
