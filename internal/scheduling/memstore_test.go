package scheduling

// In-memory fakes backing the package tests.  memStore implements the
// ReservationStore and WaitlistStore contracts with the same
// compare-and-swap and overlap-guard semantics the MySQL repository
// provides, so the components under test see realistic store behavior
// without a database.

import (
    "context"
    "sync"
    "time"

    "github.com/venuedesk/venue-slot-reservation/internal/model"
)

type memStore struct {
    mu           sync.Mutex
    nextID       uint64
    reservations map[uint64]*model.Reservation
    entries      map[uint64]*model.WaitlistEntry
    now          func() time.Time
}

func newMemStore(clock Clock) *memStore {
    return &memStore{
        reservations: make(map[uint64]*model.Reservation),
        entries:      make(map[uint64]*model.WaitlistEntry),
        now:          clock.Now,
    }
}

func (s *memStore) id() uint64 {
    s.nextID++
    return s.nextID
}

func (s *memStore) GetReservation(_ context.Context, id uint64) (*model.Reservation, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    r, ok := s.reservations[id]
    if !ok {
        return nil, ErrNotFound
    }
    cp := *r
    return &cp, nil
}

func (s *memStore) GetActiveByVenue(_ context.Context, venueID uint64, date string) ([]model.Reservation, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    var out []model.Reservation
    for _, r := range s.reservations {
        if r.Status == model.ReservationActive && r.VenueID != nil && *r.VenueID == venueID && r.SlotDate == date {
            out = append(out, *r)
        }
    }
    return out, nil
}

func (s *memStore) InsertReservation(_ context.Context, r *model.Reservation) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    if r.VenueID != nil {
        for _, other := range s.reservations {
            if other.Status != model.ReservationActive || other.VenueID == nil {
                continue
            }
            if *other.VenueID == *r.VenueID && r.Interval().Overlaps(other.Interval()) {
                return ErrDuplicateConflict
            }
        }
    }
    r.ID = s.id()
    r.CreatedAt = s.now()
    r.UpdatedAt = r.CreatedAt
    cp := *r
    s.reservations[r.ID] = &cp
    return nil
}

func (s *memStore) UpdateReservationState(_ context.Context, id uint64, fromState, toState string, upd ReservationUpdate) (*model.Reservation, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    r, ok := s.reservations[id]
    if !ok {
        return nil, ErrNotFound
    }
    if r.Status != fromState {
        return nil, ErrStaleState
    }
    r.Status = toState
    if upd.Deadline != nil {
        r.Deadline = *upd.Deadline
    }
    if upd.Extensions != nil {
        r.Extensions = *upd.Extensions
    }
    if upd.BookingRef != nil {
        r.BookingRef = upd.BookingRef
    }
    if upd.ConvertedAt != nil {
        r.ConvertedAt = upd.ConvertedAt
    }
    r.UpdatedAt = s.now()
    cp := *r
    return &cp, nil
}

func (s *memStore) ExpireOverdue(_ context.Context, id uint64, now time.Time) (*model.Reservation, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    r, ok := s.reservations[id]
    if !ok {
        return nil, ErrNotFound
    }
    if r.Status != model.ReservationActive || r.Deadline.After(now) {
        return nil, ErrStaleState
    }
    r.Status = model.ReservationExpired
    r.UpdatedAt = s.now()
    cp := *r
    return &cp, nil
}

func (s *memStore) ListDueForExpiration(_ context.Context, now time.Time) ([]model.Reservation, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    var out []model.Reservation
    for _, r := range s.reservations {
        if r.Status == model.ReservationActive && !r.Deadline.After(now) {
            out = append(out, *r)
        }
    }
    return out, nil
}

func (s *memStore) ListExpiringSoon(_ context.Context, now time.Time, horizon time.Duration) ([]model.Reservation, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    var out []model.Reservation
    limit := now.Add(horizon)
    for _, r := range s.reservations {
        if r.Status == model.ReservationActive && !r.ExpiryNotified && r.Deadline.After(now) && !r.Deadline.After(limit) {
            out = append(out, *r)
        }
    }
    return out, nil
}

func (s *memStore) MarkExpiryNotified(_ context.Context, id uint64) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    r, ok := s.reservations[id]
    if !ok {
        return ErrNotFound
    }
    r.ExpiryNotified = true
    return nil
}

func (s *memStore) GetWaitlistEntry(_ context.Context, id uint64) (*model.WaitlistEntry, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    e, ok := s.entries[id]
    if !ok {
        return nil, ErrNotFound
    }
    cp := *e
    return &cp, nil
}

func (s *memStore) InsertWaitlistEntry(_ context.Context, e *model.WaitlistEntry) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    e.ID = s.id()
    e.CreatedAt = s.now()
    e.UpdatedAt = e.CreatedAt
    cp := *e
    s.entries[e.ID] = &cp
    return nil
}

func (s *memStore) ListWaitlist(_ context.Context, bucket Bucket, status string) ([]model.WaitlistEntry, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    var out []model.WaitlistEntry
    for _, e := range s.entries {
        if e.Status != status {
            continue
        }
        if e.SlotDate != bucket.Slot.Date || e.StartMin != bucket.Slot.StartMin || e.EndMin != bucket.Slot.EndMin {
            continue
        }
        switch {
        case e.VenueID == nil:
            out = append(out, *e) // wildcard matches every bucket for the interval
        case bucket.VenueID != nil && *e.VenueID == *bucket.VenueID:
            out = append(out, *e)
        }
    }
    return out, nil
}

func (s *memStore) UpdateWaitlistState(_ context.Context, id uint64, fromState, toState string, notifiedAt *time.Time) (*model.WaitlistEntry, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    e, ok := s.entries[id]
    if !ok {
        return nil, ErrNotFound
    }
    if e.Status != fromState {
        return nil, ErrStaleState
    }
    e.Status = toState
    if toState == model.WaitlistNotified {
        e.NotifiedAt = notifiedAt
    }
    if fromState == model.WaitlistNotified && toState == model.WaitlistWaiting {
        e.NotifiedAt = nil
        e.Demotions++
    }
    e.UpdatedAt = s.now()
    cp := *e
    return &cp, nil
}

func (s *memStore) ListNotifiedBefore(_ context.Context, cutoff time.Time) ([]model.WaitlistEntry, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    var out []model.WaitlistEntry
    for _, e := range s.entries {
        if e.Status == model.WaitlistNotified && e.NotifiedAt != nil && !e.NotifiedAt.After(cutoff) {
            out = append(out, *e)
        }
    }
    return out, nil
}

// memStats serves canned scoring inputs per requester.
type memStats struct {
    mu    sync.Mutex
    stats map[uint64]HoldStats
}

func newMemStats() *memStats {
    return &memStats{stats: make(map[uint64]HoldStats)}
}

func (s *memStats) set(requesterID uint64, st HoldStats) {
    s.mu.Lock()
    defer s.mu.Unlock()
    s.stats[requesterID] = st
}

func (s *memStats) StatsFor(_ context.Context, requesterID uint64) (HoldStats, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    return s.stats[requesterID], nil
}

// fakeClock is a manual clock for deterministic deadline tests.
type fakeClock struct {
    mu sync.Mutex
    t  time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

func (c *fakeClock) Now() time.Time {
    c.mu.Lock()
    defer c.mu.Unlock()
    return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
    c.mu.Lock()
    defer c.mu.Unlock()
    c.t = c.t.Add(d)
}

// recordNotifier captures events and can be told to fail specific types.
type recordNotifier struct {
    mu     sync.Mutex
    events []Event
    fail   map[string]error
}

func newRecordNotifier() *recordNotifier {
    return &recordNotifier{fail: make(map[string]error)}
}

func (n *recordNotifier) Notify(_ context.Context, ev Event) error {
    n.mu.Lock()
    defer n.mu.Unlock()
    if err, ok := n.fail[ev.Type]; ok {
        return err
    }
    n.events = append(n.events, ev)
    return nil
}

func (n *recordNotifier) byType(eventType string) []Event {
    n.mu.Lock()
    defer n.mu.Unlock()
    var out []Event
    for _, ev := range n.events {
        if ev.Type == eventType {
            out = append(out, ev)
        }
    }
    return out
}
