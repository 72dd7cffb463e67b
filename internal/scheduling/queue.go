package scheduling

import (
    "context"
    "errors"
    "sort"

    "github.com/venuedesk/venue-slot-reservation/internal/interval"
    "github.com/venuedesk/venue-slot-reservation/internal/model"
)

// Score formula constants.  Every requester starts from BaseScore; the
// performance bonus scales linearly with the historical hold-to-conversion
// rate and the experience bonus scales linearly with tenure up to the
// saturation point, flat beyond it.
const (
    BaseScore           = 100.0
    MaxPerformanceBonus = 50.0
    MaxExperienceBonus  = 25.0

    // DefaultTenureSaturationMonths is the tenure at which the experience
    // bonus reaches its maximum.
    DefaultTenureSaturationMonths = 12

    // daysPerMonth converts tenure durations into fractional months.
    daysPerMonth = 30.4375
)

// RankedEntry pairs a waitlist entry with the score computed for the
// current ranking pass.  Scores are never cached between passes.
type RankedEntry struct {
    model.WaitlistEntry
    Score float64 `json:"score"`
}

// QueueEngine computes requester scores and ranks, promotes and manages
// waitlist entries for a bucket.  It holds no state between calls beyond
// its dependencies.
type QueueEngine struct {
    store            WaitlistStore
    stats            RequesterStats
    clock            Clock
    saturationMonths int
}

// NewQueueEngine constructs a queue engine.  saturationMonths <= 0 falls
// back to DefaultTenureSaturationMonths.
func NewQueueEngine(store WaitlistStore, stats RequesterStats, clock Clock, saturationMonths int) *QueueEngine {
    if saturationMonths <= 0 {
        saturationMonths = DefaultTenureSaturationMonths
    }
    return &QueueEngine{store: store, stats: stats, clock: clock, saturationMonths: saturationMonths}
}

// Score computes the requester's current priority score from live history.
// A requester with no completed holds earns no performance bonus, and the
// experience bonus caps once tenure reaches the saturation point.
func (q *QueueEngine) Score(ctx context.Context, requesterID uint64) (float64, error) {
    st, err := q.stats.StatsFor(ctx, requesterID)
    if err != nil {
        return 0, err
    }
    return q.scoreFrom(st), nil
}

func (q *QueueEngine) scoreFrom(st HoldStats) float64 {
    score := BaseScore
    if st.CompletedHolds > 0 {
        rate := float64(st.ConvertedHolds) / float64(st.CompletedHolds)
        if rate > 1 {
            rate = 1
        }
        score += MaxPerformanceBonus * rate
    }
    if !st.MemberSince.IsZero() {
        months := q.clock.Now().Sub(st.MemberSince).Hours() / 24 / daysPerMonth
        frac := months / float64(q.saturationMonths)
        if frac > 1 {
            frac = 1
        }
        if frac > 0 {
            score += MaxExperienceBonus * frac
        }
    }
    return score
}

// Rank returns all WAITING entries for the bucket ordered by score
// descending.  With a concrete venue the bucket includes wildcard entries
// for the same date and interval.  Ties rank by fewest demotions, then by
// earliest creation time, then by id, so the order is total and
// reproducible from the same input state.
func (q *QueueEngine) Rank(ctx context.Context, bucket Bucket) ([]RankedEntry, error) {
    if err := bucket.Slot.Validate(); err != nil {
        return nil, &ValidationError{Reason: err.Error()}
    }
    entries, err := q.store.ListWaitlist(ctx, bucket, model.WaitlistWaiting)
    if err != nil {
        return nil, err
    }
    ranked := make([]RankedEntry, 0, len(entries))
    for _, e := range entries {
        st, err := q.stats.StatsFor(ctx, e.RequesterID)
        if err != nil {
            return nil, err
        }
        ranked = append(ranked, RankedEntry{WaitlistEntry: e, Score: q.scoreFrom(st)})
    }
    sort.SliceStable(ranked, func(i, j int) bool {
        a, b := ranked[i], ranked[j]
        if a.Score != b.Score {
            return a.Score > b.Score
        }
        if a.Demotions != b.Demotions {
            return a.Demotions < b.Demotions
        }
        if !a.CreatedAt.Equal(b.CreatedAt) {
            return a.CreatedAt.Before(b.CreatedAt)
        }
        return a.ID < b.ID
    })
    return ranked, nil
}

// PromoteNext selects the top-ranked WAITING entry for the bucket and
// transitions it to NOTIFIED.  It returns nil with no error when the
// bucket's waitlist is empty.  Promotion only signals eligibility; the
// requester must still claim the slot with a new hold.  When the
// compare-and-swap on an entry loses a race (a concurrent promotion from
// another freed venue grabbed a wildcard entry first) the entry is
// skipped and the next candidate is tried.
func (q *QueueEngine) PromoteNext(ctx context.Context, bucket Bucket) (*RankedEntry, error) {
    ranked, err := q.Rank(ctx, bucket)
    if err != nil {
        return nil, err
    }
    now := q.clock.Now()
    for i := range ranked {
        updated, err := q.store.UpdateWaitlistState(ctx, ranked[i].ID, model.WaitlistWaiting, model.WaitlistNotified, &now)
        if errors.Is(err, ErrStaleState) {
            continue
        }
        if err != nil {
            return nil, err
        }
        ranked[i].WaitlistEntry = *updated
        return &ranked[i], nil
    }
    return nil, nil
}

// JoinRequest is the input to Join.  VenueID nil queues a wildcard entry
// matching the first venue freed for the interval.
type JoinRequest struct {
    RequesterID uint64
    VenueID     *uint64
    Slot        interval.Range
    Reason      string
}

// Join appends a new WAITING entry for the bucket.  Joins always succeed;
// duplicate joins by the same requester are kept as distinct entries.
func (q *QueueEngine) Join(ctx context.Context, req JoinRequest) (*model.WaitlistEntry, error) {
    if req.RequesterID == 0 {
        return nil, &ValidationError{Reason: "requester id is required"}
    }
    if err := req.Slot.Validate(); err != nil {
        return nil, &ValidationError{Reason: err.Error()}
    }
    e := &model.WaitlistEntry{
        RequesterID: req.RequesterID,
        VenueID:     req.VenueID,
        SlotDate:    req.Slot.Date,
        StartMin:    req.Slot.StartMin,
        EndMin:      req.Slot.EndMin,
        Status:      model.WaitlistWaiting,
        Reason:      req.Reason,
    }
    if err := q.store.InsertWaitlistEntry(ctx, e); err != nil {
        return nil, err
    }
    return e, nil
}

// Withdraw removes an entry from contention.  Only WAITING and NOTIFIED
// entries can be withdrawn; anything else fails with an
// InvalidStateError, and unknown ids fail with ErrNotFound.
func (q *QueueEngine) Withdraw(ctx context.Context, entryID uint64) (*model.WaitlistEntry, error) {
    e, err := q.store.GetWaitlistEntry(ctx, entryID)
    if err != nil {
        return nil, err
    }
    switch e.Status {
    case model.WaitlistWaiting, model.WaitlistNotified:
        updated, err := q.store.UpdateWaitlistState(ctx, entryID, e.Status, model.WaitlistWithdrawn, nil)
        if errors.Is(err, ErrStaleState) {
            return nil, &InvalidStateError{ID: entryID, State: e.Status, Transition: "withdraw"}
        }
        if err != nil {
            return nil, err
        }
        return updated, nil
    default:
        return nil, &InvalidStateError{ID: entryID, State: e.Status, Transition: "withdraw"}
    }
}

// MarkPromoted transitions a NOTIFIED entry to PROMOTED once its requester
// has claimed the freed slot with a new hold.  Lost races surface as
// ErrStaleState.
func (q *QueueEngine) MarkPromoted(ctx context.Context, entryID uint64) (*model.WaitlistEntry, error) {
    return q.store.UpdateWaitlistState(ctx, entryID, model.WaitlistNotified, model.WaitlistPromoted, nil)
}
