// Package queue defines message payloads exchanged over the message broker.
package queue

// NotificationQueueName is the durable queue carrying every scheduler
// notification: reservation.expiring_soon, reservation.expired,
// reservation.converted and waitlist.promoted.
const NotificationQueueName = "reservation.notifications"

// NotificationEvent is the wire shape for scheduler notifications.  It
// carries enough information for downstream consumers to notify the
// requester or trigger analytics without querying the primary database.
// VenueID is absent for venue-agnostic holds and wildcard waitlist
// entries; ReservationID and EntryID are set depending on the event type.
type NotificationEvent struct {
    Type          string  `json:"type"`
    RequesterID   uint64  `json:"requester_id"`
    VenueID       *uint64 `json:"venue_id,omitempty"`
    SlotDate      string  `json:"slot_date"`
    Start         string  `json:"start"`
    End           string  `json:"end"`
    Reason        string  `json:"reason,omitempty"`
    ReservationID uint64  `json:"reservation_id,omitempty"`
    EntryID       uint64  `json:"entry_id,omitempty"`
    OccurredAt    string  `json:"occurred_at"`
}
