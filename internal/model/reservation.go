package model

import (
    "time"

    "github.com/venuedesk/venue-slot-reservation/internal/interval"
)

// Reservation status values.  ACTIVE is the only non-terminal state; each
// terminal state records exactly one cause.  Rows are never deleted so the
// table doubles as hold history.
const (
    ReservationActive    = "ACTIVE"    // hold is live and blocks the slot
    ReservationConverted = "CONVERTED" // became a firm booking
    ReservationReleased  = "RELEASED"  // holder gave the slot up
    ReservationExpired   = "EXPIRED"   // deadline passed without action
)

// Reservation is a temporary, exclusive hold a salesperson places on a
// venue slot while preparing a proposal.  It expires automatically at its
// deadline unless extended, converted or released first.
//
// Fields:
//  ID                  – primary key identifier.
//  RequesterID         – salesperson who owns the hold.
//  VenueID             – venue being held; nil while the proposal is still
//                        venue-agnostic (such holds never conflict with
//                        anything and only compete at promotion time).
//  SlotDate            – candidate date, YYYY-MM-DD.
//  StartMin/EndMin     – half-open [start, end) slot in minutes since midnight.
//  Status              – one of the Reservation* constants above.
//  Deadline            – created_at + TTL; extended forward by whole TTL
//                        increments, never shortened.
//  Extensions          – number of TTL extensions applied so far.
//  ExpiryNotified      – set once the expiring-soon notice has been emitted,
//                        so repeated sweeps never duplicate it.
//  EstimatedValueCents – expected deal value, surfaced to downstream interest.
//  Notes               – free-text notes from the requester.
//  BookingRef          – reference of the firm booking after conversion.
//  ConvertedAt         – when the hold was converted (nullable).
//  CreatedAt/UpdatedAt – row timestamps, UTC.
type Reservation struct {
    ID                  uint64     // reservations.id
    RequesterID         uint64     // reservations.requester_id
    VenueID             *uint64    // reservations.venue_id (nullable)
    SlotDate            string     // reservations.slot_date
    StartMin            int        // reservations.start_min
    EndMin              int        // reservations.end_min
    Status              string     // reservations.status
    Deadline            time.Time  // reservations.deadline
    Extensions          uint8      // reservations.extensions
    ExpiryNotified      bool       // reservations.expiry_notified
    EstimatedValueCents uint32     // reservations.estimated_value_cents
    Notes               string     // reservations.notes
    BookingRef          *string    // reservations.booking_ref (nullable)
    ConvertedAt         *time.Time // reservations.converted_at (nullable)
    CreatedAt           time.Time  // reservations.created_at
    UpdatedAt           time.Time  // reservations.updated_at
}

// Interval returns the slot portion of the reservation as an interval.Range.
func (r *Reservation) Interval() interval.Range {
    return interval.Range{Date: r.SlotDate, StartMin: r.StartMin, EndMin: r.EndMin}
}

// Terminal reports whether the reservation has left the ACTIVE state.
func (r *Reservation) Terminal() bool {
    return r.Status != ReservationActive
}
