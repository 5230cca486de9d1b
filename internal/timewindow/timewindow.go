// Package timewindow parses and compares the split date/time fields the
// reservation service uses for heating windows.
package timewindow

import (
	"fmt"
	"strings"
	"time"
)

// The reservation service sends dates and times as separate strings. Every
// parse and format in this module goes through these layouts.
const (
	DateLayout  = "02.01.2006"
	ClockLayout = "15:04"
	Layout      = DateLayout + " " + ClockLayout
)

// Parse joins a date and a clock field and parses them in loc.
func Parse(date, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	raw := strings.TrimSpace(date) + " " + strings.TrimSpace(clock)
	t, err := time.ParseInLocation(Layout, raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse %q: %w", raw, err)
	}
	return t, nil
}

// FormatDate renders the date half of t.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// FormatClock renders the clock half of t.
func FormatClock(t time.Time) string {
	return t.Format(ClockLayout)
}

// Format renders t as "DD.MM.YYYY HH:mm".
func Format(t time.Time) string {
	return t.Format(Layout)
}

// Span is a half-open interval [Start, End).
type Span struct {
	Start time.Time
	End   time.Time
}

// NewSpan parses both ends of a window. Both halves must parse.
func NewSpan(dateStart, timeStart, dateEnd, timeEnd string, loc *time.Location) (Span, error) {
	start, err := Parse(dateStart, timeStart, loc)
	if err != nil {
		return Span{}, fmt.Errorf("window start: %w", err)
	}
	end, err := Parse(dateEnd, timeEnd, loc)
	if err != nil {
		return Span{}, fmt.Errorf("window end: %w", err)
	}
	return Span{Start: start, End: end}, nil
}

// Valid reports whether the span does not end before it starts.
func (s Span) Valid() bool {
	return !s.End.Before(s.Start)
}

// Contains reports whether now lies in [Start, End). Inverted spans never
// contain anything.
func (s Span) Contains(now time.Time) bool {
	if !s.Valid() {
		return false
	}
	return !now.Before(s.Start) && now.Before(s.End)
}

// Overlaps reports whether two spans share at least one instant.
func (s Span) Overlaps(o Span) bool {
	if !s.Valid() || !o.Valid() {
		return false
	}
	return s.Start.Before(o.End) && o.Start.Before(s.End)
}

// Minutes returns the span length in whole minutes, 0 for inverted spans.
func (s Span) Minutes() int {
	if !s.Valid() {
		return 0
	}
	return WholeMinutes(s.End.Sub(s.Start))
}

// Elapsed returns whole minutes since Start, 0 if now is before Start.
func (s Span) Elapsed(now time.Time) int {
	if now.Before(s.Start) {
		return 0
	}
	return WholeMinutes(now.Sub(s.Start))
}

// Remaining returns whole minutes until End, 0 if now is at or past End.
func (s Span) Remaining(now time.Time) int {
	if !now.Before(s.End) {
		return 0
	}
	return WholeMinutes(s.End.Sub(now))
}

// WholeMinutes floors a non-negative duration to minutes.
func WholeMinutes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(d / time.Minute)
}
