package model

import (
    "time"

    "github.com/venuedesk/venue-slot-reservation/internal/interval"
)

// Waitlist entry status values.  WAITING entries compete for the bucket;
// NOTIFIED entries have been offered the freed slot and must claim it
// within the grace window or revert to WAITING.
const (
    WaitlistWaiting   = "WAITING"   // queued, eligible for promotion
    WaitlistNotified  = "NOTIFIED"  // offered the slot, claim pending
    WaitlistPromoted  = "PROMOTED"  // requester claimed the slot with a new hold
    WaitlistWithdrawn = "WITHDRAWN" // explicitly removed by the requester
)

// WaitlistEntry is a queued request for a slot that was unavailable when
// the requester asked for it.  An entry with a nil VenueID is a wildcard:
// it matches the first venue that frees up for its date and interval.
//
// The ranking score is never stored on the entry.  It is recomputed from
// the requester's current history on every ranking pass so promotion always
// reflects up-to-date performance data.
//
// Fields:
//  ID              – primary key identifier.
//  RequesterID     – salesperson waiting for the slot.
//  VenueID         – venue the entry targets; nil means wildcard.
//  SlotDate        – candidate date, YYYY-MM-DD.
//  StartMin/EndMin – half-open [start, end) slot in minutes since midnight.
//  Status          – one of the Waitlist* constants above.
//  Reason          – free-text reason supplied on join.
//  Demotions       – times the entry was reverted from NOTIFIED after the
//                    claim grace window lapsed; ranks behind score and ahead
//                    of creation time.
//  NotifiedAt      – when the entry was last promoted to NOTIFIED (nullable).
//  CreatedAt/UpdatedAt – row timestamps, UTC.
type WaitlistEntry struct {
    ID          uint64     // waitlist_entries.id
    RequesterID uint64     // waitlist_entries.requester_id
    VenueID     *uint64    // waitlist_entries.venue_id (nullable)
    SlotDate    string     // waitlist_entries.slot_date
    StartMin    int        // waitlist_entries.start_min
    EndMin      int        // waitlist_entries.end_min
    Status      string     // waitlist_entries.status
    Reason      string     // waitlist_entries.reason
    Demotions   uint8      // waitlist_entries.demotions
    NotifiedAt  *time.Time // waitlist_entries.notified_at (nullable)
    CreatedAt   time.Time  // waitlist_entries.created_at
    UpdatedAt   time.Time  // waitlist_entries.updated_at
}

// Interval returns the slot portion of the entry as an interval.Range.
func (e *WaitlistEntry) Interval() interval.Range {
    return interval.Range{Date: e.SlotDate, StartMin: e.StartMin, EndMin: e.EndMin}
}

// Wildcard reports whether the entry matches any venue for its interval.
func (e *WaitlistEntry) Wildcard() bool { return e.VenueID == nil }
