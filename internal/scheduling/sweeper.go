package scheduling

import (
    "context"
    "errors"
    "fmt"
    "log"
    "time"

    "github.com/venuedesk/venue-slot-reservation/internal/model"
)

// SweeperConfig tunes the recurring sweep.  Interval is how often a sweep
// runs, NoticeHorizon how far ahead of a deadline the expiring-soon notice
// goes out, and ClaimGrace how long a NOTIFIED waitlist entry may sit
// unclaimed before it reverts to WAITING.
type SweeperConfig struct {
    Interval      time.Duration
    NoticeHorizon time.Duration
    ClaimGrace    time.Duration
}

// DefaultSweeperConfig sweeps every two minutes, warns six hours ahead and
// grants a day to claim a freed slot.
var DefaultSweeperConfig = SweeperConfig{
    Interval:      2 * time.Minute,
    NoticeHorizon: 6 * time.Hour,
    ClaimGrace:    24 * time.Hour,
}

// SweepResult summarizes one sweep pass.  Per-item failures are collected
// in Errors; they never abort the pass for the remaining items.
type SweepResult struct {
    Expired  int
    Noticed  int
    Reverted int
    Errors   []error
}

// Sweeper is the only core component with its own execution loop.  Each
// tick it expires overdue holds (which promotes their waitlists), emits
// pending expiring-soon notices and reverts unclaimed NOTIFIED entries.
// Overlapping sweeps are safe: every transition is a compare-and-swap and
// expiring an already-terminal hold is a no-op.
type Sweeper struct {
    store     ReservationStore
    waitlist  WaitlistStore
    lifecycle *LifecycleManager
    queue     *QueueEngine
    notifier  Notifier
    clock     Clock
    cfg       SweeperConfig
}

// NewSweeper wires the sweeper.  Zero config fields take their defaults.
func NewSweeper(store ReservationStore, waitlist WaitlistStore, lifecycle *LifecycleManager, queue *QueueEngine, notifier Notifier, clock Clock, cfg SweeperConfig) *Sweeper {
    if cfg.Interval <= 0 {
        cfg.Interval = DefaultSweeperConfig.Interval
    }
    if cfg.NoticeHorizon <= 0 {
        cfg.NoticeHorizon = DefaultSweeperConfig.NoticeHorizon
    }
    if cfg.ClaimGrace <= 0 {
        cfg.ClaimGrace = DefaultSweeperConfig.ClaimGrace
    }
    return &Sweeper{
        store:     store,
        waitlist:  waitlist,
        lifecycle: lifecycle,
        queue:     queue,
        notifier:  notifier,
        clock:     clock,
        cfg:       cfg,
    }
}

// Run executes sweeps until the context is cancelled.  The first sweep
// fires immediately rather than waiting out a full interval.  In-flight
// per-item work is not hard-cancelled; the loop simply stops scheduling
// new ticks.
func (s *Sweeper) Run(ctx context.Context) error {
    t := time.NewTicker(s.cfg.Interval)
    defer t.Stop()

    s.sweepAndLog(ctx)
    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case <-t.C:
            s.sweepAndLog(ctx)
        }
    }
}

func (s *Sweeper) sweepAndLog(ctx context.Context) {
    res := s.Sweep(ctx)
    for _, err := range res.Errors {
        log.Printf("sweeper: %v", err)
    }
    if res.Expired > 0 || res.Noticed > 0 || res.Reverted > 0 {
        log.Printf("sweeper: expired=%d noticed=%d reverted=%d errors=%d",
            res.Expired, res.Noticed, res.Reverted, len(res.Errors))
    }
}

// Sweep runs a single pass.  It is idempotent: a second pass over
// unchanged state expires nothing further, re-emits no notices and
// reverts no additional entries.
func (s *Sweeper) Sweep(ctx context.Context) SweepResult {
    var res SweepResult
    now := s.clock.Now()

    s.expireDue(ctx, now, &res)
    s.emitExpiryNotices(ctx, now, &res)
    s.revertUnclaimed(ctx, now, &res)
    return res
}

// expireDue transitions every overdue ACTIVE hold to EXPIRED via the
// lifecycle manager, which also drives promotion and notification.  Holds
// another sweep or caller already moved are skipped silently.
func (s *Sweeper) expireDue(ctx context.Context, now time.Time, res *SweepResult) {
    due, err := s.store.ListDueForExpiration(ctx, now)
    if err != nil {
        res.Errors = append(res.Errors, fmt.Errorf("list due reservations: %w", err))
        return
    }
    for _, r := range due {
        if _, err := s.lifecycle.Expire(ctx, r.ID); err != nil {
            if isBenignRace(err) {
                continue
            }
            res.Errors = append(res.Errors, fmt.Errorf("expire reservation %d: %w", r.ID, err))
            continue
        }
        res.Expired++
    }
}

// emitExpiryNotices sends the one-shot expiring-soon notice for active
// holds entering the horizon.  The notified marker is only set after a
// successful emit, so a failed delivery retries next tick instead of
// being lost.
func (s *Sweeper) emitExpiryNotices(ctx context.Context, now time.Time, res *SweepResult) {
    soon, err := s.store.ListExpiringSoon(ctx, now, s.cfg.NoticeHorizon)
    if err != nil {
        res.Errors = append(res.Errors, fmt.Errorf("list expiring reservations: %w", err))
        return
    }
    for _, r := range soon {
        ev := Event{
            Type:          EventExpiringSoon,
            RequesterID:   r.RequesterID,
            VenueID:       r.VenueID,
            Slot:          r.Interval(),
            Reason:        fmt.Sprintf("hold expires at %s", r.Deadline.UTC().Format(time.RFC3339)),
            ReservationID: r.ID,
            OccurredAt:    now,
        }
        if err := s.notifier.Notify(ctx, ev); err != nil {
            res.Errors = append(res.Errors, fmt.Errorf("notify expiring reservation %d: %w", r.ID, err))
            continue
        }
        if err := s.store.MarkExpiryNotified(ctx, r.ID); err != nil {
            res.Errors = append(res.Errors, fmt.Errorf("mark reservation %d notified: %w", r.ID, err))
            continue
        }
        res.Noticed++
    }
}

// revertUnclaimed demotes NOTIFIED entries whose claim grace lapsed back
// to WAITING and immediately promotes the bucket again so the slot passes
// to the next-ranked entry.
func (s *Sweeper) revertUnclaimed(ctx context.Context, now time.Time, res *SweepResult) {
    lapsed, err := s.waitlist.ListNotifiedBefore(ctx, now.Add(-s.cfg.ClaimGrace))
    if err != nil {
        res.Errors = append(res.Errors, fmt.Errorf("list unclaimed entries: %w", err))
        return
    }
    for _, e := range lapsed {
        if _, err := s.waitlist.UpdateWaitlistState(ctx, e.ID, model.WaitlistNotified, model.WaitlistWaiting, nil); err != nil {
            if isBenignRace(err) {
                continue
            }
            res.Errors = append(res.Errors, fmt.Errorf("revert waitlist entry %d: %w", e.ID, err))
            continue
        }
        res.Reverted++

        // The slot the entry was offered is still free, so promote the
        // bucket again.  The reverted entry yields: it is only re-offered
        // when no other candidate exists.
        bucket := Bucket{VenueID: e.VenueID, Slot: e.Interval()}
        ranked, err := s.queue.Rank(ctx, bucket)
        if err != nil {
            res.Errors = append(res.Errors, fmt.Errorf("re-rank bucket of entry %d: %w", e.ID, err))
            continue
        }
        next := pickSuccessor(ranked, e.ID)
        if next == nil {
            continue
        }
        promoted, err := s.waitlist.UpdateWaitlistState(ctx, next.ID, model.WaitlistWaiting, model.WaitlistNotified, &now)
        if err != nil {
            if !isBenignRace(err) {
                res.Errors = append(res.Errors, fmt.Errorf("promote waitlist entry %d: %w", next.ID, err))
            }
            continue
        }
        ev := Event{
            Type:        EventPromoted,
            RequesterID: promoted.RequesterID,
            VenueID:     promoted.VenueID,
            Slot:        promoted.Interval(),
            Reason:      "previous offer went unclaimed",
            EntryID:     promoted.ID,
            OccurredAt:  now,
        }
        if err := s.notifier.Notify(ctx, ev); err != nil {
            res.Errors = append(res.Errors, fmt.Errorf("notify promoted entry %d: %w", promoted.ID, err))
        }
    }
}

// pickSuccessor chooses the top-ranked entry other than the one just
// reverted, falling back to the reverted entry itself when it is the only
// candidate left so a free slot is never silently orphaned.
func pickSuccessor(ranked []RankedEntry, revertedID uint64) *RankedEntry {
    for i := range ranked {
        if ranked[i].ID != revertedID {
            return &ranked[i]
        }
    }
    if len(ranked) > 0 {
        return &ranked[0]
    }
    return nil
}

// isBenignRace identifies failures that mean another worker handled the
// item first.  They are expected under overlapping sweeps and do not
// count as errors.
func isBenignRace(err error) bool {
    var inv *InvalidStateError
    return errors.Is(err, ErrStaleState) || errors.As(err, &inv)
}
