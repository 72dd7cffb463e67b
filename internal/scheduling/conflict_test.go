package scheduling

import (
    "context"
    "errors"
    "testing"
    "time"

    "github.com/venuedesk/venue-slot-reservation/internal/interval"
    "github.com/venuedesk/venue-slot-reservation/internal/model"
)

func seedActive(t *testing.T, store *memStore, requesterID, venueID uint64, date string, startMin, endMin int) *model.Reservation {
    t.Helper()
    vid := venueID
    r := &model.Reservation{
        RequesterID: requesterID,
        VenueID:     &vid,
        SlotDate:    date,
        StartMin:    startMin,
        EndMin:      endMin,
        Status:      model.ReservationActive,
        Deadline:    time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
    }
    if err := store.InsertReservation(context.Background(), r); err != nil {
        t.Fatalf("seed reservation: %v", err)
    }
    return r
}

func TestFindOverlaps(t *testing.T) {
    clock := newFakeClock(time.Date(2024, 5, 30, 10, 0, 0, 0, time.UTC))
    store := newMemStore(clock)
    det := NewConflictDetector(store)
    ctx := context.Background()

    held := seedActive(t, store, 1, 7, "2024-06-01", 14*60, 18*60)
    seedActive(t, store, 2, 7, "2024-06-02", 14*60, 18*60) // other date
    seedActive(t, store, 3, 8, "2024-06-01", 14*60, 18*60) // other venue

    cases := []struct {
        name  string
        slot  interval.Range
        want  int
    }{
        {"same slot", interval.Range{Date: "2024-06-01", StartMin: 14 * 60, EndMin: 18 * 60}, 1},
        {"partial overlap", interval.Range{Date: "2024-06-01", StartMin: 17 * 60, EndMin: 20 * 60}, 1},
        {"touching boundary", interval.Range{Date: "2024-06-01", StartMin: 18 * 60, EndMin: 20 * 60}, 0},
        {"before", interval.Range{Date: "2024-06-01", StartMin: 9 * 60, EndMin: 12 * 60}, 0},
        {"other date", interval.Range{Date: "2024-06-03", StartMin: 14 * 60, EndMin: 18 * 60}, 0},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            got, err := det.FindOverlaps(ctx, 7, tc.slot, 0)
            if err != nil {
                t.Fatalf("FindOverlaps: %v", err)
            }
            if len(got) != tc.want {
                t.Fatalf("FindOverlaps(%v) found %d overlaps, want %d", tc.slot, len(got), tc.want)
            }
        })
    }

    // The exclusion id skips the reservation under re-validation.
    got, err := det.FindOverlaps(ctx, 7, held.Interval(), held.ID)
    if err != nil {
        t.Fatalf("FindOverlaps with exclusion: %v", err)
    }
    if len(got) != 0 {
        t.Fatalf("expected the excluded reservation to be skipped, got %d overlaps", len(got))
    }
}

func TestFindOverlapsValidation(t *testing.T) {
    clock := newFakeClock(time.Date(2024, 5, 30, 10, 0, 0, 0, time.UTC))
    det := NewConflictDetector(newMemStore(clock))
    ctx := context.Background()

    var vErr *ValidationError
    if _, err := det.FindOverlaps(ctx, 7, interval.Range{Date: "2024-06-01", StartMin: 18 * 60, EndMin: 14 * 60}, 0); !errors.As(err, &vErr) {
        t.Fatalf("inverted interval: got %v, want ValidationError", err)
    }
    if _, err := det.FindOverlaps(ctx, 7, interval.Range{Date: "2024-06-01", StartMin: 14 * 60, EndMin: 14 * 60}, 0); !errors.As(err, &vErr) {
        t.Fatalf("zero-length interval: got %v, want ValidationError", err)
    }
    if _, err := det.FindOverlaps(ctx, 0, interval.Range{Date: "2024-06-01", StartMin: 14 * 60, EndMin: 18 * 60}, 0); !errors.As(err, &vErr) {
        t.Fatalf("missing venue: got %v, want ValidationError", err)
    }
}

func TestCheckReport(t *testing.T) {
    clock := newFakeClock(time.Date(2024, 5, 30, 10, 0, 0, 0, time.UTC))
    store := newMemStore(clock)
    det := NewConflictDetector(store)
    ctx := context.Background()

    slot := interval.Range{Date: "2024-06-01", StartMin: 14 * 60, EndMin: 18 * 60}
    rep, err := det.Check(ctx, 7, slot)
    if err != nil {
        t.Fatalf("Check: %v", err)
    }
    if rep.Blocked() {
        t.Fatalf("empty store should not block")
    }

    seedActive(t, store, 1, 7, "2024-06-01", 15*60, 16*60)
    rep, err = det.Check(ctx, 7, slot)
    if err != nil {
        t.Fatalf("Check: %v", err)
    }
    if !rep.Blocked() || len(rep.Overlapping) != 1 {
        t.Fatalf("expected one blocking hold, got %+v", rep)
    }
}
