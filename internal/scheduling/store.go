package scheduling

import (
    "context"
    "time"

    "github.com/venuedesk/venue-slot-reservation/internal/interval"
    "github.com/venuedesk/venue-slot-reservation/internal/model"
)

// Bucket is the (venue-or-wildcard, date, start, end) key that groups
// competing waitlist entries.  A nil VenueID addresses the wildcard bucket
// for the interval.
type Bucket struct {
    VenueID *uint64
    Slot    interval.Range
}

// ReservationUpdate carries the optional column changes applied together
// with a compare-and-swap state transition.  Nil fields are left
// untouched.
type ReservationUpdate struct {
    Deadline    *time.Time // new deadline (Extend)
    Extensions  *uint8     // new extension count (Extend)
    BookingRef  *string    // firm booking reference (Convert)
    ConvertedAt *time.Time // conversion timestamp (Convert)
}

// ReservationStore is the ownership boundary for reservation rows.  The
// core depends on nothing else about persistence.  Implementations must
// keep all timestamps in UTC.
type ReservationStore interface {
    // GetReservation loads a single reservation by id.  Returns
    // ErrNotFound when the id is unknown.
    GetReservation(ctx context.Context, id uint64) (*model.Reservation, error)

    // GetActiveByVenue returns every ACTIVE reservation for the venue on
    // the given date, ordered by start minute.
    GetActiveByVenue(ctx context.Context, venueID uint64, date string) ([]model.Reservation, error)

    // InsertReservation persists a new ACTIVE reservation and populates
    // its ID and row timestamps.  Implementations re-check the overlap
    // invariant inside their own transaction and return
    // ErrDuplicateConflict when another active hold covers the slot; this
    // backs up the conflict detector against races the keyed lock cannot
    // see (multiple processes).
    InsertReservation(ctx context.Context, r *model.Reservation) error

    // UpdateReservationState performs a compare-and-swap transition from
    // fromState to toState, applying upd in the same write.  Returns
    // ErrStaleState when the row is no longer in fromState and
    // ErrNotFound when the id is unknown.
    UpdateReservationState(ctx context.Context, id uint64, fromState, toState string, upd ReservationUpdate) (*model.Reservation, error)

    // ExpireOverdue transitions an ACTIVE reservation to EXPIRED only
    // while its deadline is still at or before now, in one guarded
    // write.  The deadline belongs to the predicate so an extension that
    // lands between listing a hold as due and expiring it wins the race.
    // Returns ErrStaleState when the row is no longer ACTIVE or its
    // deadline moved into the future, ErrNotFound for unknown ids.
    ExpireOverdue(ctx context.Context, id uint64, now time.Time) (*model.Reservation, error)

    // ListDueForExpiration returns every ACTIVE reservation whose
    // deadline is at or before now.
    ListDueForExpiration(ctx context.Context, now time.Time) ([]model.Reservation, error)

    // ListExpiringSoon returns every ACTIVE reservation whose deadline
    // falls within the horizon from now and whose expiry notice has not
    // been emitted yet.
    ListExpiringSoon(ctx context.Context, now time.Time, horizon time.Duration) ([]model.Reservation, error)

    // MarkExpiryNotified records that the expiring-soon notice for the
    // reservation went out, so later sweeps skip it.
    MarkExpiryNotified(ctx context.Context, id uint64) error
}

// WaitlistStore is the ownership boundary for waitlist entries.
type WaitlistStore interface {
    // GetWaitlistEntry loads a single entry by id.  Returns ErrNotFound
    // when the id is unknown.
    GetWaitlistEntry(ctx context.Context, id uint64) (*model.WaitlistEntry, error)

    // InsertWaitlistEntry persists a new WAITING entry and populates its
    // ID and row timestamps.  Duplicate joins for the same bucket are
    // allowed and stored as distinct entries.
    InsertWaitlistEntry(ctx context.Context, e *model.WaitlistEntry) error

    // ListWaitlist returns entries in the given status matching the
    // bucket.  With a concrete venue the result includes wildcard entries
    // for the same date and interval; with a nil venue only wildcard
    // entries are returned.  Order is unspecified; ranking happens in the
    // queue engine.
    ListWaitlist(ctx context.Context, bucket Bucket, status string) ([]model.WaitlistEntry, error)

    // UpdateWaitlistState performs a compare-and-swap transition from
    // fromState to toState.  Moving to NOTIFIED stamps notified_at with
    // notifiedAt; reverting to WAITING clears it and increments the
    // demotion counter.  Returns ErrStaleState on a lost race and
    // ErrNotFound for unknown ids.
    UpdateWaitlistState(ctx context.Context, id uint64, fromState, toState string, notifiedAt *time.Time) (*model.WaitlistEntry, error)

    // ListNotifiedBefore returns every NOTIFIED entry whose notified_at
    // is at or before the cutoff, used to revert unclaimed offers.
    ListNotifiedBefore(ctx context.Context, cutoff time.Time) ([]model.WaitlistEntry, error)
}

// HoldStats summarizes a requester's history for scoring.  CompletedHolds
// counts terminal reservations of any cause; ConvertedHolds counts the
// subset that became firm bookings.
type HoldStats struct {
    CompletedHolds int
    ConvertedHolds int
    MemberSince    time.Time
}

// RequesterStats resolves scoring inputs for a requester.  Implementations
// may cache, but a fresh read at the start of each ranking pass is
// authoritative.
type RequesterStats interface {
    StatsFor(ctx context.Context, requesterID uint64) (HoldStats, error)
}
