// Package scheduling implements the temporary reservation and priority
// waitlist core: conflict detection over slot intervals, the hold state
// machine, requester scoring and queue promotion, and the recurring
// expiration sweep.  Persistence is reached only through the narrow store
// contracts in store.go; the MySQL implementation lives in the repository
// package.
package scheduling

import (
    "errors"
    "fmt"

    "github.com/venuedesk/venue-slot-reservation/internal/model"
)

// ErrNotFound is returned when a reservation or waitlist entry id is
// unknown.  Handlers should translate this into an HTTP 404 response.
var ErrNotFound = errors.New("scheduling: not found")

// ErrStaleState is returned when a compare-and-swap state transition loses
// a race: the row's state no longer matches the expected from-state.  One
// retry after re-reading is safe; repeated retries may mask a real
// conflict.
var ErrStaleState = errors.New("scheduling: state changed concurrently")

// ErrDuplicateConflict is returned by ReservationStore.Insert when the
// storage-level overlap guard rejects a row.  It is the second line of
// defense behind the conflict detector and should be rare.
var ErrDuplicateConflict = errors.New("scheduling: overlapping active hold exists")

// ValidationError rejects malformed input before any state mutation: an
// inverted or zero-length interval, a bad date, a missing identifier.  It
// is never retried.
type ValidationError struct {
    Reason string
}

func (e *ValidationError) Error() string {
    return "scheduling: invalid request: " + e.Reason
}

// ConflictError is returned when a hold cannot be created because active
// reservations already cover the candidate slot.  Blocking lists the
// offending reservations so the caller can decide to join the waitlist
// instead.
type ConflictError struct {
    Blocking []model.Reservation
}

func (e *ConflictError) Error() string {
    return fmt.Sprintf("scheduling: slot blocked by %d active hold(s)", len(e.Blocking))
}

// InvalidStateError is returned when a transition is attempted from a
// state that does not permit it, such as converting an expired hold.  The
// caller must re-fetch current state; the operation is never retried.
type InvalidStateError struct {
    ID         uint64 // reservation or entry id
    State      string // state the record was actually in
    Transition string // transition that was attempted
}

func (e *InvalidStateError) Error() string {
    return fmt.Sprintf("scheduling: cannot %s record %d in state %s", e.Transition, e.ID, e.State)
}
