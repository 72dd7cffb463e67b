package scheduling

import (
    "context"
    "log"
    "time"

    "github.com/venuedesk/venue-slot-reservation/internal/interval"
    "github.com/venuedesk/venue-slot-reservation/internal/model"
)

// HoldPolicy configures the hold state machine.  TTL is the default
// lifetime of a new hold; each extension pushes the deadline forward by
// one TTL, up to MaxExtensions.
type HoldPolicy struct {
    TTL           time.Duration
    MaxExtensions uint8
}

// DefaultHoldPolicy matches the product default of a 48 hour hold with
// two possible extensions.
var DefaultHoldPolicy = HoldPolicy{TTL: 48 * time.Hour, MaxExtensions: 2}

// HoldRequest is the input to RequestHold.  VenueID nil creates a
// venue-agnostic hold that blocks nothing and competes only at promotion
// time.  TTL zero uses the policy default.
type HoldRequest struct {
    RequesterID         uint64
    VenueID             *uint64
    Slot                interval.Range
    TTL                 time.Duration
    EstimatedValueCents uint32
    Notes               string
}

// LifecycleManager owns the hold state machine.  All slot-freeing
// transitions promote the next waitlist entry for the bucket
// synchronously, so a freed slot is never invisible to waiting
// requesters, and every transition emits its notification event before
// returning.
type LifecycleManager struct {
    store    ReservationStore
    detector *ConflictDetector
    queue    *QueueEngine
    notifier Notifier
    clock    Clock
    policy   HoldPolicy
    locks    *bucketLocks
}

// NewLifecycleManager wires the manager.  A zero-valued policy falls back
// to DefaultHoldPolicy.
func NewLifecycleManager(store ReservationStore, detector *ConflictDetector, queue *QueueEngine, notifier Notifier, clock Clock, policy HoldPolicy) *LifecycleManager {
    if policy.TTL <= 0 {
        policy = DefaultHoldPolicy
    }
    return &LifecycleManager{
        store:    store,
        detector: detector,
        queue:    queue,
        notifier: notifier,
        clock:    clock,
        policy:   policy,
        locks:    newBucketLocks(),
    }
}

// RequestHold creates a new ACTIVE hold with deadline now+TTL.  For a
// concrete venue the check-overlap-then-insert sequence runs under the
// bucket lock so concurrent requests for overlapping slots cannot both
// succeed; the loser receives a ConflictError listing the blocking holds.
// When the requester had a NOTIFIED waitlist entry for this bucket, the
// successful hold claims it and the entry becomes PROMOTED.
func (m *LifecycleManager) RequestHold(ctx context.Context, req HoldRequest) (*model.Reservation, error) {
    if req.RequesterID == 0 {
        return nil, &ValidationError{Reason: "requester id is required"}
    }
    if err := req.Slot.Validate(); err != nil {
        return nil, &ValidationError{Reason: err.Error()}
    }
    ttl := m.policy.TTL
    if req.TTL > 0 {
        ttl = req.TTL
    }

    if req.VenueID != nil {
        release := m.locks.acquire(*req.VenueID, req.Slot.Date)
        defer release()

        overlapping, err := m.detector.FindOverlaps(ctx, *req.VenueID, req.Slot, 0)
        if err != nil {
            return nil, err
        }
        if len(overlapping) > 0 {
            return nil, &ConflictError{Blocking: overlapping}
        }
    }

    now := m.clock.Now()
    r := &model.Reservation{
        RequesterID:         req.RequesterID,
        VenueID:             req.VenueID,
        SlotDate:            req.Slot.Date,
        StartMin:            req.Slot.StartMin,
        EndMin:              req.Slot.EndMin,
        Status:              model.ReservationActive,
        Deadline:            now.Add(ttl),
        EstimatedValueCents: req.EstimatedValueCents,
        Notes:               req.Notes,
    }
    if err := m.store.InsertReservation(ctx, r); err != nil {
        if err == ErrDuplicateConflict && req.VenueID != nil {
            // The storage guard caught a race the lock could not see.
            // Re-run the detector so the caller still gets the blockers.
            overlapping, derr := m.detector.FindOverlaps(ctx, *req.VenueID, req.Slot, 0)
            if derr == nil && len(overlapping) > 0 {
                return nil, &ConflictError{Blocking: overlapping}
            }
        }
        return nil, err
    }

    m.claimNotifiedEntry(ctx, r)
    return r, nil
}

// Extend pushes an active hold's deadline forward by one TTL.  The
// deadline never moves backwards.  Extending a terminal hold, or one at
// the extension cap, fails with an InvalidStateError.
func (m *LifecycleManager) Extend(ctx context.Context, reservationID uint64) (*model.Reservation, error) {
    r, err := m.store.GetReservation(ctx, reservationID)
    if err != nil {
        return nil, err
    }
    if r.Status != model.ReservationActive {
        return nil, &InvalidStateError{ID: reservationID, State: r.Status, Transition: "extend"}
    }
    if r.Extensions >= m.policy.MaxExtensions {
        return nil, &InvalidStateError{ID: reservationID, State: r.Status, Transition: "extend beyond cap"}
    }
    deadline := r.Deadline.Add(m.policy.TTL)
    extensions := r.Extensions + 1
    updated, err := m.store.UpdateReservationState(ctx, reservationID,
        model.ReservationActive, model.ReservationActive,
        ReservationUpdate{Deadline: &deadline, Extensions: &extensions})
    if err != nil {
        return nil, err
    }
    return updated, nil
}

// Convert finalizes an active hold into a firm booking, recording the
// booking reference and conversion timestamp.  The slot stays taken so no
// promotion runs; the converted event still goes out.
func (m *LifecycleManager) Convert(ctx context.Context, reservationID uint64, bookingRef string) (*model.Reservation, error) {
    if bookingRef == "" {
        return nil, &ValidationError{Reason: "booking ref is required"}
    }
    r, err := m.store.GetReservation(ctx, reservationID)
    if err != nil {
        return nil, err
    }
    if r.Status != model.ReservationActive {
        return nil, &InvalidStateError{ID: reservationID, State: r.Status, Transition: "convert"}
    }
    now := m.clock.Now()
    updated, err := m.store.UpdateReservationState(ctx, reservationID,
        model.ReservationActive, model.ReservationConverted,
        ReservationUpdate{BookingRef: &bookingRef, ConvertedAt: &now})
    if err != nil {
        return nil, err
    }
    m.notify(ctx, Event{
        Type:          EventConverted,
        RequesterID:   updated.RequesterID,
        VenueID:       updated.VenueID,
        Slot:          updated.Interval(),
        Reason:        "hold converted to booking " + bookingRef,
        ReservationID: updated.ID,
        OccurredAt:    now,
    })
    return updated, nil
}

// Release gives an active hold up and frees its slot, promoting the next
// waitlist entry for the bucket before returning.  Releasing a terminal
// hold fails with an InvalidStateError.
func (m *LifecycleManager) Release(ctx context.Context, reservationID uint64) (*model.Reservation, error) {
    r, err := m.store.GetReservation(ctx, reservationID)
    if err != nil {
        return nil, err
    }
    if r.Status != model.ReservationActive {
        return nil, &InvalidStateError{ID: reservationID, State: r.Status, Transition: "release"}
    }
    updated, err := m.store.UpdateReservationState(ctx, reservationID,
        model.ReservationActive, model.ReservationReleased, ReservationUpdate{})
    if err != nil {
        return nil, err
    }
    m.promoteFreedSlot(ctx, updated, "slot freed by release")
    return updated, nil
}

// Expire marks an overdue hold EXPIRED, emits the expired event and
// promotes the next waitlist entry.  A hold that already left the ACTIVE
// state fails with an InvalidStateError, and one whose deadline moved
// into the future fails with ErrStaleState; the sweep treats both as
// benign no-ops so overlapping sweeps stay idempotent and a concurrent
// extension always keeps its hold alive.
func (m *LifecycleManager) Expire(ctx context.Context, reservationID uint64) (*model.Reservation, error) {
    r, err := m.store.GetReservation(ctx, reservationID)
    if err != nil {
        return nil, err
    }
    if r.Status != model.ReservationActive {
        return nil, &InvalidStateError{ID: reservationID, State: r.Status, Transition: "expire"}
    }
    now := m.clock.Now()
    if r.Deadline.After(now) {
        // An extension landed after the hold was listed as due.  The
        // extension wins.
        return nil, ErrStaleState
    }
    updated, err := m.store.ExpireOverdue(ctx, reservationID, now)
    if err != nil {
        return nil, err
    }
    m.notify(ctx, Event{
        Type:          EventExpired,
        RequesterID:   updated.RequesterID,
        VenueID:       updated.VenueID,
        Slot:          updated.Interval(),
        Reason:        "hold deadline passed without action",
        ReservationID: updated.ID,
        OccurredAt:    now,
    })
    m.promoteFreedSlot(ctx, updated, "slot freed by expiration")
    return updated, nil
}

// promoteFreedSlot runs the synchronous promotion that follows every
// slot-freeing transition and emits the promotion event for the selected
// entry.  Promotion problems are logged, not propagated: the freeing
// transition has already committed.
func (m *LifecycleManager) promoteFreedSlot(ctx context.Context, r *model.Reservation, reason string) {
    bucket := Bucket{VenueID: r.VenueID, Slot: r.Interval()}
    entry, err := m.queue.PromoteNext(ctx, bucket)
    if err != nil {
        log.Printf("lifecycle: promote after free of reservation %d failed: %v", r.ID, err)
        return
    }
    if entry == nil {
        return
    }
    venueID := r.VenueID // the freed venue, even for wildcard entries
    m.notify(ctx, Event{
        Type:        EventPromoted,
        RequesterID: entry.RequesterID,
        VenueID:     venueID,
        Slot:        entry.Interval(),
        Reason:      reason,
        EntryID:     entry.ID,
        OccurredAt:  m.clock.Now(),
    })
}

// claimNotifiedEntry marks the requester's NOTIFIED entry for the hold's
// bucket PROMOTED, completing the promotion handshake.  Nothing to claim
// is the common case and not an error.
func (m *LifecycleManager) claimNotifiedEntry(ctx context.Context, r *model.Reservation) {
    bucket := Bucket{VenueID: r.VenueID, Slot: r.Interval()}
    entries, err := m.queue.store.ListWaitlist(ctx, bucket, model.WaitlistNotified)
    if err != nil {
        log.Printf("lifecycle: notified lookup for reservation %d failed: %v", r.ID, err)
        return
    }
    for _, e := range entries {
        if e.RequesterID != r.RequesterID {
            continue
        }
        if _, err := m.queue.MarkPromoted(ctx, e.ID); err != nil {
            log.Printf("lifecycle: claim of waitlist entry %d failed: %v", e.ID, err)
        }
        return
    }
}

// notify hands an event to the dispatcher.  Delivery failures never abort
// the transition that produced the event; they are logged and the
// transition stands.
func (m *LifecycleManager) notify(ctx context.Context, ev Event) {
    if m.notifier == nil {
        return
    }
    if err := m.notifier.Notify(ctx, ev); err != nil {
        log.Printf("lifecycle: notify %s failed: %v", ev.Type, err)
    }
}
