package scheduling

import (
    "context"

    "github.com/venuedesk/venue-slot-reservation/internal/interval"
    "github.com/venuedesk/venue-slot-reservation/internal/model"
)

// ConflictReport is the transient result of an overlap check.  It is
// produced on demand and never persisted.
type ConflictReport struct {
    VenueID     uint64
    Slot        interval.Range
    Overlapping []model.Reservation
}

// Blocked reports whether any overlapping reservation was found.
func (r *ConflictReport) Blocked() bool { return len(r.Overlapping) > 0 }

// ConflictDetector checks a candidate slot against the current set of
// active holds for a venue.  Detection is venue-scoped only: holds on
// different venues, and venue-less holds, never conflict here; those
// compete later through the queue engine.
type ConflictDetector struct {
    store ReservationStore
}

// NewConflictDetector binds a detector to a reservation store.
func NewConflictDetector(store ReservationStore) *ConflictDetector {
    return &ConflictDetector{store: store}
}

// FindOverlaps returns every ACTIVE reservation on the venue and date
// whose [start, end) interval intersects the candidate slot.  Intervals
// that merely touch at a boundary do not overlap.  excludeID skips one
// reservation, used when re-validating an existing hold.  A malformed
// slot is rejected with a ValidationError before any store access.
func (d *ConflictDetector) FindOverlaps(ctx context.Context, venueID uint64, slot interval.Range, excludeID uint64) ([]model.Reservation, error) {
    if venueID == 0 {
        return nil, &ValidationError{Reason: "venue id is required"}
    }
    if err := slot.Validate(); err != nil {
        return nil, &ValidationError{Reason: err.Error()}
    }
    active, err := d.store.GetActiveByVenue(ctx, venueID, slot.Date)
    if err != nil {
        return nil, err
    }
    var overlapping []model.Reservation
    for _, r := range active {
        if r.ID == excludeID {
            continue
        }
        if slot.Overlaps(r.Interval()) {
            overlapping = append(overlapping, r)
        }
    }
    return overlapping, nil
}

// Check wraps FindOverlaps into a ConflictReport for callers that want the
// full transient result rather than just the overlap list.
func (d *ConflictDetector) Check(ctx context.Context, venueID uint64, slot interval.Range) (*ConflictReport, error) {
    overlapping, err := d.FindOverlaps(ctx, venueID, slot, 0)
    if err != nil {
        return nil, err
    }
    return &ConflictReport{VenueID: venueID, Slot: slot, Overlapping: overlapping}, nil
}
