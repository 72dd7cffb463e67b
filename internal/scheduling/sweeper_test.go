package scheduling

import (
    "context"
    "errors"
    "testing"
    "time"

    "github.com/venuedesk/venue-slot-reservation/internal/model"
)

func newSweepEnv(t *testing.T, cfg SweeperConfig) (*testEnv, *Sweeper) {
    t.Helper()
    env := newTestEnv(t, HoldPolicy{TTL: 48 * time.Hour, MaxExtensions: 2})
    sw := NewSweeper(env.store, env.store, env.manager, env.queue, env.notifier, env.clock, cfg)
    return env, sw
}

func TestSweepExpiresDueHoldsAndPromotes(t *testing.T) {
    env, sw := newSweepEnv(t, SweeperConfig{})
    ctx := context.Background()

    hold, err := env.manager.RequestHold(ctx, HoldRequest{RequesterID: 1, VenueID: uint64ptr(7), Slot: testSlot})
    if err != nil {
        t.Fatalf("RequestHold: %v", err)
    }
    entry, err := env.queue.Join(ctx, JoinRequest{RequesterID: 2, VenueID: uint64ptr(7), Slot: testSlot})
    if err != nil {
        t.Fatalf("Join: %v", err)
    }

    // Nothing due yet.
    res := sw.Sweep(ctx)
    if res.Expired != 0 || len(res.Errors) != 0 {
        t.Fatalf("premature sweep result: %+v", res)
    }

    env.clock.Advance(48*time.Hour + time.Minute)
    res = sw.Sweep(ctx)
    if res.Expired != 1 {
        t.Fatalf("Expired = %d, want 1", res.Expired)
    }
    if len(res.Errors) != 0 {
        t.Fatalf("sweep errors: %v", res.Errors)
    }

    expired, err := env.store.GetReservation(ctx, hold.ID)
    if err != nil {
        t.Fatalf("reload hold: %v", err)
    }
    if expired.Status != model.ReservationExpired {
        t.Fatalf("hold status = %s, want EXPIRED", expired.Status)
    }
    // The waiting entry was promoted in the same operation.
    after, err := env.store.GetWaitlistEntry(ctx, entry.ID)
    if err != nil {
        t.Fatalf("reload entry: %v", err)
    }
    if after.Status != model.WaitlistNotified {
        t.Fatalf("entry status = %s, want NOTIFIED", after.Status)
    }
    if got := env.notifier.byType(EventExpired); len(got) != 1 {
        t.Fatalf("expired events = %+v", got)
    }
    if got := env.notifier.byType(EventPromoted); len(got) != 1 || got[0].EntryID != entry.ID {
        t.Fatalf("promoted events = %+v", got)
    }
}

func TestSweepIsIdempotent(t *testing.T) {
    env, sw := newSweepEnv(t, SweeperConfig{})
    ctx := context.Background()

    if _, err := env.manager.RequestHold(ctx, HoldRequest{RequesterID: 1, VenueID: uint64ptr(7), Slot: testSlot}); err != nil {
        t.Fatalf("RequestHold: %v", err)
    }
    env.clock.Advance(49 * time.Hour)

    first := sw.Sweep(ctx)
    if first.Expired != 1 || len(first.Errors) != 0 {
        t.Fatalf("first sweep: %+v", first)
    }
    second := sw.Sweep(ctx)
    if second.Expired != 0 || second.Noticed != 0 || second.Reverted != 0 || len(second.Errors) != 0 {
        t.Fatalf("second sweep should be a no-op, got %+v", second)
    }
}

func TestExpiryNoticeEmittedExactlyOnce(t *testing.T) {
    env, sw := newSweepEnv(t, SweeperConfig{NoticeHorizon: 6 * time.Hour})
    ctx := context.Background()

    hold, err := env.manager.RequestHold(ctx, HoldRequest{RequesterID: 1, VenueID: uint64ptr(7), Slot: testSlot})
    if err != nil {
        t.Fatalf("RequestHold: %v", err)
    }

    // Outside the horizon nothing is emitted.
    res := sw.Sweep(ctx)
    if res.Noticed != 0 {
        t.Fatalf("notice emitted outside horizon: %+v", res)
    }

    env.clock.Advance(43 * time.Hour) // 5h before the 48h deadline
    res = sw.Sweep(ctx)
    if res.Noticed != 1 {
        t.Fatalf("Noticed = %d, want 1", res.Noticed)
    }
    res = sw.Sweep(ctx)
    if res.Noticed != 0 {
        t.Fatalf("notice emitted twice")
    }
    if got := env.notifier.byType(EventExpiringSoon); len(got) != 1 || got[0].ReservationID != hold.ID {
        t.Fatalf("expiring-soon events = %+v", got)
    }
}

func TestExpiryNoticeRetriedAfterNotifyFailure(t *testing.T) {
    env, sw := newSweepEnv(t, SweeperConfig{NoticeHorizon: 6 * time.Hour})
    ctx := context.Background()

    if _, err := env.manager.RequestHold(ctx, HoldRequest{RequesterID: 1, VenueID: uint64ptr(7), Slot: testSlot}); err != nil {
        t.Fatalf("RequestHold: %v", err)
    }
    env.clock.Advance(43 * time.Hour)

    env.notifier.fail[EventExpiringSoon] = errors.New("broker down")
    res := sw.Sweep(ctx)
    if res.Noticed != 0 || len(res.Errors) != 1 {
        t.Fatalf("failed notify sweep: %+v", res)
    }

    // Once delivery recovers the notice goes out; the marker was not set
    // prematurely.
    delete(env.notifier.fail, EventExpiringSoon)
    res = sw.Sweep(ctx)
    if res.Noticed != 1 || len(res.Errors) != 0 {
        t.Fatalf("recovery sweep: %+v", res)
    }
}

func TestSweepErrorIsolation(t *testing.T) {
    env, sw := newSweepEnv(t, SweeperConfig{NoticeHorizon: 6 * time.Hour})
    ctx := context.Background()

    // Two holds entering the notice horizon; notification fails for both,
    // but each failure is collected independently and the sweep finishes.
    if _, err := env.manager.RequestHold(ctx, HoldRequest{RequesterID: 1, VenueID: uint64ptr(7), Slot: testSlot}); err != nil {
        t.Fatalf("RequestHold: %v", err)
    }
    other := testSlot
    other.StartMin, other.EndMin = 19*60, 21*60
    if _, err := env.manager.RequestHold(ctx, HoldRequest{RequesterID: 2, VenueID: uint64ptr(7), Slot: other}); err != nil {
        t.Fatalf("RequestHold: %v", err)
    }
    env.clock.Advance(43 * time.Hour)

    env.notifier.fail[EventExpiringSoon] = errors.New("broker down")
    res := sw.Sweep(ctx)
    if len(res.Errors) != 2 {
        t.Fatalf("errors = %v, want one per failing item", res.Errors)
    }
    if res.Noticed != 0 {
        t.Fatalf("Noticed = %d with failing notifier", res.Noticed)
    }
}

func TestUnclaimedOfferYieldsToNextRanked(t *testing.T) {
    env, sw := newSweepEnv(t, SweeperConfig{ClaimGrace: 24 * time.Hour})
    ctx := context.Background()

    hold, err := env.manager.RequestHold(ctx, HoldRequest{RequesterID: 1, VenueID: uint64ptr(7), Slot: testSlot})
    if err != nil {
        t.Fatalf("RequestHold: %v", err)
    }
    env.stats.set(2, HoldStats{CompletedHolds: 4, ConvertedHolds: 4, MemberSince: env.clock.Now().AddDate(-2, 0, 0)})
    env.stats.set(3, HoldStats{})
    first, err := env.queue.Join(ctx, JoinRequest{RequesterID: 2, VenueID: uint64ptr(7), Slot: testSlot})
    if err != nil {
        t.Fatalf("Join: %v", err)
    }
    second, err := env.queue.Join(ctx, JoinRequest{RequesterID: 3, VenueID: uint64ptr(7), Slot: testSlot})
    if err != nil {
        t.Fatalf("Join: %v", err)
    }

    if _, err := env.manager.Release(ctx, hold.ID); err != nil {
        t.Fatalf("Release: %v", err)
    }
    // The higher ranked entry got the offer but never claims it.
    env.clock.Advance(25 * time.Hour)
    res := sw.Sweep(ctx)
    if res.Reverted != 1 {
        t.Fatalf("Reverted = %d, want 1", res.Reverted)
    }

    firstNow, _ := env.store.GetWaitlistEntry(ctx, first.ID)
    secondNow, _ := env.store.GetWaitlistEntry(ctx, second.ID)
    if firstNow.Status != model.WaitlistWaiting || firstNow.Demotions != 1 {
        t.Fatalf("reverted entry = %+v, want WAITING with one demotion", firstNow)
    }
    if secondNow.Status != model.WaitlistNotified {
        t.Fatalf("successor entry = %+v, want NOTIFIED", secondNow)
    }
}

func TestUnclaimedOfferReofferedWhenAlone(t *testing.T) {
    env, sw := newSweepEnv(t, SweeperConfig{ClaimGrace: 24 * time.Hour})
    ctx := context.Background()

    hold, err := env.manager.RequestHold(ctx, HoldRequest{RequesterID: 1, VenueID: uint64ptr(7), Slot: testSlot})
    if err != nil {
        t.Fatalf("RequestHold: %v", err)
    }
    entry, err := env.queue.Join(ctx, JoinRequest{RequesterID: 2, VenueID: uint64ptr(7), Slot: testSlot})
    if err != nil {
        t.Fatalf("Join: %v", err)
    }
    if _, err := env.manager.Release(ctx, hold.ID); err != nil {
        t.Fatalf("Release: %v", err)
    }

    env.clock.Advance(25 * time.Hour)
    res := sw.Sweep(ctx)
    if res.Reverted != 1 {
        t.Fatalf("Reverted = %d, want 1", res.Reverted)
    }
    // Sole candidate: the entry is offered again rather than orphaning
    // the free slot.
    after, _ := env.store.GetWaitlistEntry(ctx, entry.ID)
    if after.Status != model.WaitlistNotified || after.Demotions != 1 {
        t.Fatalf("entry after re-offer = %+v", after)
    }
}

func TestRunStopsOnContextCancel(t *testing.T) {
    _, sw := newSweepEnv(t, SweeperConfig{Interval: 10 * time.Millisecond})
    ctx, cancel := context.WithCancel(context.Background())

    done := make(chan error, 1)
    go func() { done <- sw.Run(ctx) }()
    cancel()

    select {
    case err := <-done:
        if !errors.Is(err, context.Canceled) {
            t.Fatalf("Run returned %v, want context.Canceled", err)
        }
    case <-time.After(2 * time.Second):
        t.Fatalf("Run did not stop after cancellation")
    }
}
