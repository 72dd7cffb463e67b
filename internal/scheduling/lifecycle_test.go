package scheduling

import (
    "context"
    "errors"
    "sync"
    "testing"
    "time"

    "github.com/venuedesk/venue-slot-reservation/internal/model"
)

// testEnv bundles the wired core components over the in-memory fakes.
type testEnv struct {
    clock    *fakeClock
    store    *memStore
    stats    *memStats
    notifier *recordNotifier
    detector *ConflictDetector
    queue    *QueueEngine
    manager  *LifecycleManager
}

func newTestEnv(t *testing.T, policy HoldPolicy) *testEnv {
    t.Helper()
    clock := newFakeClock(time.Date(2024, 5, 30, 10, 0, 0, 0, time.UTC))
    store := newMemStore(clock)
    stats := newMemStats()
    notifier := newRecordNotifier()
    detector := NewConflictDetector(store)
    queue := NewQueueEngine(store, stats, clock, 0)
    manager := NewLifecycleManager(store, detector, queue, notifier, clock, policy)
    return &testEnv{
        clock:    clock,
        store:    store,
        stats:    stats,
        notifier: notifier,
        detector: detector,
        queue:    queue,
        manager:  manager,
    }
}

func TestRequestHoldHappyPathAndConflict(t *testing.T) {
    env := newTestEnv(t, HoldPolicy{TTL: 48 * time.Hour, MaxExtensions: 2})
    ctx := context.Background()

    r1, err := env.manager.RequestHold(ctx, HoldRequest{RequesterID: 1, VenueID: uint64ptr(7), Slot: testSlot})
    if err != nil {
        t.Fatalf("RequestHold: %v", err)
    }
    if r1.Status != model.ReservationActive {
        t.Fatalf("new hold status = %s", r1.Status)
    }
    if want := env.clock.Now().Add(48 * time.Hour); !r1.Deadline.Equal(want) {
        t.Fatalf("deadline = %v, want %v", r1.Deadline, want)
    }

    // A second requester racing for the same venue and slot is rejected
    // with the blocking hold listed.
    var cErr *ConflictError
    _, err = env.manager.RequestHold(ctx, HoldRequest{RequesterID: 2, VenueID: uint64ptr(7), Slot: testSlot})
    if !errors.As(err, &cErr) {
        t.Fatalf("second hold: got %v, want ConflictError", err)
    }
    if len(cErr.Blocking) != 1 || cErr.Blocking[0].ID != r1.ID {
        t.Fatalf("ConflictError.Blocking = %+v, want reservation %d", cErr.Blocking, r1.ID)
    }

    // Other venues and other slots are unaffected.
    if _, err := env.manager.RequestHold(ctx, HoldRequest{RequesterID: 2, VenueID: uint64ptr(8), Slot: testSlot}); err != nil {
        t.Fatalf("hold on other venue: %v", err)
    }
    later := testSlot
    later.StartMin, later.EndMin = 18*60, 20*60
    if _, err := env.manager.RequestHold(ctx, HoldRequest{RequesterID: 2, VenueID: uint64ptr(7), Slot: later}); err != nil {
        t.Fatalf("hold on adjacent slot: %v", err)
    }
}

func TestRequestHoldWildcard(t *testing.T) {
    env := newTestEnv(t, DefaultHoldPolicy)
    ctx := context.Background()

    // Venue-agnostic holds never conflict, even with identical slots.
    if _, err := env.manager.RequestHold(ctx, HoldRequest{RequesterID: 1, Slot: testSlot}); err != nil {
        t.Fatalf("wildcard hold: %v", err)
    }
    if _, err := env.manager.RequestHold(ctx, HoldRequest{RequesterID: 2, Slot: testSlot}); err != nil {
        t.Fatalf("second wildcard hold: %v", err)
    }
}

func TestRequestHoldValidation(t *testing.T) {
    env := newTestEnv(t, DefaultHoldPolicy)
    ctx := context.Background()

    var vErr *ValidationError
    bad := testSlot
    bad.StartMin, bad.EndMin = bad.EndMin, bad.StartMin
    if _, err := env.manager.RequestHold(ctx, HoldRequest{RequesterID: 1, VenueID: uint64ptr(7), Slot: bad}); !errors.As(err, &vErr) {
        t.Fatalf("inverted slot: got %v, want ValidationError", err)
    }
    if _, err := env.manager.RequestHold(ctx, HoldRequest{VenueID: uint64ptr(7), Slot: testSlot}); !errors.As(err, &vErr) {
        t.Fatalf("missing requester: got %v, want ValidationError", err)
    }
}

func TestConcurrentRequestHoldMutualExclusion(t *testing.T) {
    env := newTestEnv(t, DefaultHoldPolicy)
    ctx := context.Background()

    const racers = 16
    var wg sync.WaitGroup
    errs := make([]error, racers)
    for i := 0; i < racers; i++ {
        wg.Add(1)
        go func(i int) {
            defer wg.Done()
            _, errs[i] = env.manager.RequestHold(ctx, HoldRequest{
                RequesterID: uint64(i + 1),
                VenueID:     uint64ptr(7),
                Slot:        testSlot,
            })
        }(i)
    }
    wg.Wait()

    winners := 0
    for i, err := range errs {
        switch {
        case err == nil:
            winners++
        default:
            var cErr *ConflictError
            if !errors.As(err, &cErr) {
                t.Fatalf("racer %d: got %v, want ConflictError", i, err)
            }
        }
    }
    if winners != 1 {
        t.Fatalf("%d concurrent holds succeeded, want exactly 1", winners)
    }
}

func TestExtendDeadlineMonotonicWithCap(t *testing.T) {
    env := newTestEnv(t, HoldPolicy{TTL: 48 * time.Hour, MaxExtensions: 2})
    ctx := context.Background()

    r, err := env.manager.RequestHold(ctx, HoldRequest{RequesterID: 1, VenueID: uint64ptr(7), Slot: testSlot})
    if err != nil {
        t.Fatalf("RequestHold: %v", err)
    }

    deadline := r.Deadline
    for i := 0; i < 2; i++ {
        ext, err := env.manager.Extend(ctx, r.ID)
        if err != nil {
            t.Fatalf("Extend %d: %v", i+1, err)
        }
        if !ext.Deadline.After(deadline) {
            t.Fatalf("extension %d did not move the deadline forward", i+1)
        }
        if ext.Status != model.ReservationActive {
            t.Fatalf("extension %d left status %s", i+1, ext.Status)
        }
        deadline = ext.Deadline
    }
    if want := r.Deadline.Add(96 * time.Hour); !deadline.Equal(want) {
        t.Fatalf("deadline after two extensions = %v, want %v", deadline, want)
    }

    // One extension beyond the cap fails and changes nothing.
    var invErr *InvalidStateError
    if _, err := env.manager.Extend(ctx, r.ID); !errors.As(err, &invErr) {
        t.Fatalf("extend beyond cap: got %v, want InvalidStateError", err)
    }
    current, err := env.store.GetReservation(ctx, r.ID)
    if err != nil {
        t.Fatalf("reload: %v", err)
    }
    if !current.Deadline.Equal(deadline) || current.Status != model.ReservationActive {
        t.Fatalf("failed extension mutated the reservation: %+v", current)
    }
}

func TestExpireRefusesFreshlyExtendedHold(t *testing.T) {
    env := newTestEnv(t, HoldPolicy{TTL: 24 * time.Hour, MaxExtensions: 2})
    ctx := context.Background()

    r, err := env.manager.RequestHold(ctx, HoldRequest{RequesterID: 1, VenueID: uint64ptr(7), Slot: testSlot})
    if err != nil {
        t.Fatalf("RequestHold: %v", err)
    }
    env.clock.Advance(24*time.Hour + time.Minute)

    // The sweep lists the hold as due, then an extension lands before the
    // expire transition runs.
    due, err := env.store.ListDueForExpiration(ctx, env.clock.Now())
    if err != nil {
        t.Fatalf("ListDueForExpiration: %v", err)
    }
    if len(due) != 1 || due[0].ID != r.ID {
        t.Fatalf("due = %+v, want reservation %d", due, r.ID)
    }
    extended, err := env.manager.Extend(ctx, r.ID)
    if err != nil {
        t.Fatalf("Extend: %v", err)
    }

    if _, err := env.manager.Expire(ctx, due[0].ID); !errors.Is(err, ErrStaleState) {
        t.Fatalf("Expire after extend: got %v, want ErrStaleState", err)
    }
    got, err := env.store.GetReservation(ctx, r.ID)
    if err != nil {
        t.Fatalf("GetReservation: %v", err)
    }
    if got.Status != model.ReservationActive {
        t.Fatalf("status after refused expire = %s, want ACTIVE", got.Status)
    }
    if !got.Deadline.Equal(extended.Deadline) {
        t.Fatalf("deadline = %v, want %v", got.Deadline, extended.Deadline)
    }
    if events := env.notifier.byType(EventExpired); len(events) != 0 {
        t.Fatalf("expired events after refused expire = %d, want 0", len(events))
    }

    // The store-level guard holds on its own: a write-time extension is
    // caught even when the pre-check read stale state.
    if _, err := env.store.ExpireOverdue(ctx, r.ID, env.clock.Now()); !errors.Is(err, ErrStaleState) {
        t.Fatalf("ExpireOverdue against future deadline: got %v, want ErrStaleState", err)
    }
}

func TestStateMachineClosure(t *testing.T) {
    // From each terminal state, every transition attempt fails with an
    // InvalidStateError.
    terminalVia := []struct {
        name string
        move func(*testEnv, context.Context, uint64) error
    }{
        {"converted", func(env *testEnv, ctx context.Context, id uint64) error {
            _, err := env.manager.Convert(ctx, id, "BOOK-1")
            return err
        }},
        {"released", func(env *testEnv, ctx context.Context, id uint64) error {
            _, err := env.manager.Release(ctx, id)
            return err
        }},
        {"expired", func(env *testEnv, ctx context.Context, id uint64) error {
            _, err := env.manager.Expire(ctx, id)
            return err
        }},
    }
    for _, entry := range terminalVia {
        t.Run(entry.name, func(t *testing.T) {
            env := newTestEnv(t, DefaultHoldPolicy)
            ctx := context.Background()
            r, err := env.manager.RequestHold(ctx, HoldRequest{RequesterID: 1, VenueID: uint64ptr(7), Slot: testSlot})
            if err != nil {
                t.Fatalf("RequestHold: %v", err)
            }
            if err := entry.move(env, ctx, r.ID); err != nil {
                t.Fatalf("transition to %s: %v", entry.name, err)
            }

            var invErr *InvalidStateError
            if _, err := env.manager.Extend(ctx, r.ID); !errors.As(err, &invErr) {
                t.Fatalf("extend from %s: got %v, want InvalidStateError", entry.name, err)
            }
            if _, err := env.manager.Convert(ctx, r.ID, "BOOK-2"); !errors.As(err, &invErr) {
                t.Fatalf("convert from %s: got %v, want InvalidStateError", entry.name, err)
            }
            if _, err := env.manager.Release(ctx, r.ID); !errors.As(err, &invErr) {
                t.Fatalf("release from %s: got %v, want InvalidStateError", entry.name, err)
            }
            if _, err := env.manager.Expire(ctx, r.ID); !errors.As(err, &invErr) {
                t.Fatalf("expire from %s: got %v, want InvalidStateError", entry.name, err)
            }
        })
    }
}

func TestConvertRecordsBookingAndNotifies(t *testing.T) {
    env := newTestEnv(t, DefaultHoldPolicy)
    ctx := context.Background()

    r, err := env.manager.RequestHold(ctx, HoldRequest{RequesterID: 1, VenueID: uint64ptr(7), Slot: testSlot})
    if err != nil {
        t.Fatalf("RequestHold: %v", err)
    }
    conv, err := env.manager.Convert(ctx, r.ID, "BOOK-77")
    if err != nil {
        t.Fatalf("Convert: %v", err)
    }
    if conv.Status != model.ReservationConverted {
        t.Fatalf("status = %s", conv.Status)
    }
    if conv.BookingRef == nil || *conv.BookingRef != "BOOK-77" || conv.ConvertedAt == nil {
        t.Fatalf("conversion details missing: %+v", conv)
    }
    events := env.notifier.byType(EventConverted)
    if len(events) != 1 || events[0].ReservationID != r.ID {
        t.Fatalf("converted events = %+v", events)
    }
}

func TestReleasePromotesTopRankedEntry(t *testing.T) {
    env := newTestEnv(t, DefaultHoldPolicy)
    ctx := context.Background()

    r, err := env.manager.RequestHold(ctx, HoldRequest{RequesterID: 1, VenueID: uint64ptr(7), Slot: testSlot})
    if err != nil {
        t.Fatalf("RequestHold: %v", err)
    }

    env.stats.set(2, HoldStats{})
    env.stats.set(3, HoldStats{CompletedHolds: 4, ConvertedHolds: 4, MemberSince: env.clock.Now().AddDate(-2, 0, 0)})
    low, err := env.queue.Join(ctx, JoinRequest{RequesterID: 2, VenueID: uint64ptr(7), Slot: testSlot})
    if err != nil {
        t.Fatalf("Join: %v", err)
    }
    high, err := env.queue.Join(ctx, JoinRequest{RequesterID: 3, VenueID: uint64ptr(7), Slot: testSlot})
    if err != nil {
        t.Fatalf("Join: %v", err)
    }

    rel, err := env.manager.Release(ctx, r.ID)
    if err != nil {
        t.Fatalf("Release: %v", err)
    }
    if rel.Status != model.ReservationReleased {
        t.Fatalf("status = %s", rel.Status)
    }

    // Exactly one entry moved to NOTIFIED and it is the higher ranked one.
    notified, err := env.store.ListWaitlist(ctx, venueBucket(7), model.WaitlistNotified)
    if err != nil {
        t.Fatalf("ListWaitlist: %v", err)
    }
    if len(notified) != 1 || notified[0].ID != high.ID {
        t.Fatalf("notified = %+v, want entry %d", notified, high.ID)
    }
    if lowNow, _ := env.store.GetWaitlistEntry(ctx, low.ID); lowNow.Status != model.WaitlistWaiting {
        t.Fatalf("lower entry status = %s, want WAITING", lowNow.Status)
    }
    promoted := env.notifier.byType(EventPromoted)
    if len(promoted) != 1 || promoted[0].EntryID != high.ID {
        t.Fatalf("promoted events = %+v", promoted)
    }
}

func TestClaimAfterPromotionMarksEntryPromoted(t *testing.T) {
    env := newTestEnv(t, DefaultHoldPolicy)
    ctx := context.Background()

    r, err := env.manager.RequestHold(ctx, HoldRequest{RequesterID: 1, VenueID: uint64ptr(7), Slot: testSlot})
    if err != nil {
        t.Fatalf("RequestHold: %v", err)
    }
    entry, err := env.queue.Join(ctx, JoinRequest{RequesterID: 2, VenueID: uint64ptr(7), Slot: testSlot})
    if err != nil {
        t.Fatalf("Join: %v", err)
    }
    if _, err := env.manager.Release(ctx, r.ID); err != nil {
        t.Fatalf("Release: %v", err)
    }

    // Requester 2 claims the freed slot; the entry completes its
    // promotion handshake.
    if _, err := env.manager.RequestHold(ctx, HoldRequest{RequesterID: 2, VenueID: uint64ptr(7), Slot: testSlot}); err != nil {
        t.Fatalf("claim hold: %v", err)
    }
    claimed, err := env.store.GetWaitlistEntry(ctx, entry.ID)
    if err != nil {
        t.Fatalf("reload entry: %v", err)
    }
    if claimed.Status != model.WaitlistPromoted {
        t.Fatalf("entry status after claim = %s, want PROMOTED", claimed.Status)
    }
}

func TestHappyPathScenario(t *testing.T) {
    // The end-to-end walk from the product brief: R1 holds venue V, R2 is
    // rejected, R2 queues, R1 releases, R2 is notified.
    env := newTestEnv(t, HoldPolicy{TTL: 48 * time.Hour, MaxExtensions: 2})
    ctx := context.Background()

    hold, err := env.manager.RequestHold(ctx, HoldRequest{RequesterID: 1, VenueID: uint64ptr(7), Slot: testSlot})
    if err != nil {
        t.Fatalf("R1 hold: %v", err)
    }

    var cErr *ConflictError
    if _, err := env.manager.RequestHold(ctx, HoldRequest{RequesterID: 2, VenueID: uint64ptr(7), Slot: testSlot}); !errors.As(err, &cErr) {
        t.Fatalf("R2 hold: got %v, want ConflictError", err)
    }

    entry, err := env.queue.Join(ctx, JoinRequest{RequesterID: 2, VenueID: uint64ptr(7), Slot: testSlot, Reason: "backup option for the Smith proposal"})
    if err != nil {
        t.Fatalf("R2 join: %v", err)
    }
    if entry.Status != model.WaitlistWaiting {
        t.Fatalf("entry status = %s", entry.Status)
    }

    if _, err := env.manager.Release(ctx, hold.ID); err != nil {
        t.Fatalf("R1 release: %v", err)
    }
    after, err := env.store.GetWaitlistEntry(ctx, entry.ID)
    if err != nil {
        t.Fatalf("reload entry: %v", err)
    }
    if after.Status != model.WaitlistNotified {
        t.Fatalf("entry status after release = %s, want NOTIFIED", after.Status)
    }
}
