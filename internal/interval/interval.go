// Package interval provides pure arithmetic on (date, start, end) time
// ranges.  A range covers a single calendar day and is expressed in
// minutes since midnight with half-open [start, end) semantics: two
// ranges on the same date overlap iff startA < endB && startB < endA,
// so ranges that merely touch at a boundary never overlap.  The package
// has no dependencies beyond the standard library and performs no I/O.
package interval

import (
    "errors"
    "fmt"
    "time"
)

// MinutesPerDay bounds EndMin; a range may end exactly at midnight (1440)
// but never extend past it.
const MinutesPerDay = 24 * 60

// ErrInverted is returned when a range has start >= end.  Zero-length
// ranges are rejected for the same reason: they can never hold a slot.
var ErrInverted = errors.New("interval: start must be before end")

// ErrOutOfDay is returned when a range's minutes fall outside a single day.
var ErrOutOfDay = errors.New("interval: minutes outside 00:00..24:00")

// ErrBadDate is returned when the date component is not a YYYY-MM-DD value.
var ErrBadDate = errors.New("interval: date must be YYYY-MM-DD")

// Range is a candidate slot on a specific date.  StartMin is inclusive,
// EndMin exclusive.  Comparisons across different dates never overlap.
type Range struct {
    Date     string // calendar date, YYYY-MM-DD
    StartMin int    // minutes since midnight, inclusive
    EndMin   int    // minutes since midnight, exclusive
}

// New builds a Range from a date string and two HH:MM clock values.  It
// validates all three components and returns the first error found.
func New(date, start, end string) (Range, error) {
    if _, err := time.Parse("2006-01-02", date); err != nil {
        return Range{}, ErrBadDate
    }
    s, err := ParseClock(start)
    if err != nil {
        return Range{}, err
    }
    e, err := ParseClock(end)
    if err != nil {
        return Range{}, err
    }
    r := Range{Date: date, StartMin: s, EndMin: e}
    if err := r.Validate(); err != nil {
        return Range{}, err
    }
    return r, nil
}

// Validate checks that the range is well formed: a parseable date, minutes
// within a single day and a strictly positive length.
func (r Range) Validate() error {
    if _, err := time.Parse("2006-01-02", r.Date); err != nil {
        return ErrBadDate
    }
    if r.StartMin < 0 || r.EndMin > MinutesPerDay {
        return ErrOutOfDay
    }
    if r.StartMin >= r.EndMin {
        return ErrInverted
    }
    return nil
}

// Overlaps reports whether r and other share at least one minute.  Ranges
// on different dates never overlap; on the same date the half-open test
// applies, so r.EndMin == other.StartMin is not an overlap.
func (r Range) Overlaps(other Range) bool {
    if r.Date != other.Date {
        return false
    }
    return r.StartMin < other.EndMin && other.StartMin < r.EndMin
}

// Contains reports whether other lies entirely within r on the same date.
func (r Range) Contains(other Range) bool {
    if r.Date != other.Date {
        return false
    }
    return r.StartMin <= other.StartMin && other.EndMin <= r.EndMin
}

// Duration returns the length of the range.
func (r Range) Duration() time.Duration {
    return time.Duration(r.EndMin-r.StartMin) * time.Minute
}

// String renders the range as "2024-06-01 14:00-18:00" for logs and
// notification payloads.
func (r Range) String() string {
    return fmt.Sprintf("%s %s-%s", r.Date, FormatClock(r.StartMin), FormatClock(r.EndMin))
}

// ParseClock converts an HH:MM string into minutes since midnight.  "24:00"
// is accepted so a range may end exactly at midnight.
func ParseClock(s string) (int, error) {
    var h, m int
    var trailing string
    // The extra %s catches input left over after HH:MM, so values like
    // "14:00sharp" are rejected instead of silently truncated.
    if n, _ := fmt.Sscanf(s, "%d:%d%s", &h, &m, &trailing); n != 2 {
        return 0, fmt.Errorf("interval: bad clock value %q", s)
    }
    if m < 0 || m > 59 || h < 0 || h > 24 || (h == 24 && m != 0) {
        return 0, fmt.Errorf("interval: bad clock value %q", s)
    }
    return h*60 + m, nil
}

// FormatClock is the inverse of ParseClock.
func FormatClock(min int) string {
    return fmt.Sprintf("%02d:%02d", min/60, min%60)
}
