package scheduling

import "time"

// Clock abstracts wall-clock reads so the sweep loop and deadline checks
// can be driven by a manual clock in tests.  All production timestamps are
// UTC.
type Clock interface {
    Now() time.Time
}

// UTCClock reads the system clock and normalizes to UTC.  It is the only
// Clock used outside tests.
type UTCClock struct{}

// Now returns the current UTC time.
func (UTCClock) Now() time.Time { return time.Now().UTC() }
