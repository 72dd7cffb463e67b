package scheduling

import (
    "context"
    "time"

    "github.com/venuedesk/venue-slot-reservation/internal/interval"
)

// Event types form a closed set.  The dispatcher decides routing from the
// type tag; delivery mechanics are entirely outside this core.
const (
    EventExpiringSoon = "reservation.expiring_soon"
    EventExpired      = "reservation.expired"
    EventConverted    = "reservation.converted"
    EventPromoted     = "waitlist.promoted"
)

// Event is the fixed payload shape handed to the notification boundary.
// Every event carries the requester, the (nullable) venue, the slot
// interval and a human-readable reason; ReservationID and EntryID are set
// when the event concerns a hold or a waitlist entry respectively.
type Event struct {
    Type          string         `json:"type"`
    RequesterID   uint64         `json:"requester_id"`
    VenueID       *uint64        `json:"venue_id,omitempty"`
    Slot          interval.Range `json:"slot"`
    Reason        string         `json:"reason"`
    ReservationID uint64         `json:"reservation_id,omitempty"`
    EntryID       uint64         `json:"entry_id,omitempty"`
    OccurredAt    time.Time      `json:"occurred_at"`
}

// Notifier is the boundary to the notification dispatcher.  The core only
// decides that a notification is due and what it says; failures are logged
// by callers and never abort the triggering transition.
type Notifier interface {
    Notify(ctx context.Context, ev Event) error
}

// NopNotifier discards events.  Used in tests and when no broker is
// configured.
type NopNotifier struct{}

// Notify implements Notifier.
func (NopNotifier) Notify(context.Context, Event) error { return nil }
