package repository

import (
    "context"
    "database/sql"
    "errors"

    "github.com/venuedesk/venue-slot-reservation/internal/model"
    "github.com/venuedesk/venue-slot-reservation/internal/scheduling"
)

// StatsRepo derives the scoring inputs for a requester from the data that
// is already there: terminal reservations for the performance figures and
// the user row's creation time for tenure.  It implements the
// scheduling.RequesterStats contract.  Nothing is cached; ranking passes
// are infrequent enough that a fresh aggregate per requester is fine.
type StatsRepo struct {
    db *sql.DB
}

// NewStatsRepo returns a new StatsRepo bound to the given database.
func NewStatsRepo(db *sql.DB) *StatsRepo { return &StatsRepo{db: db} }

// StatsFor aggregates a requester's hold history.  CompletedHolds counts
// every terminal reservation regardless of outcome; ConvertedHolds counts
// the subset that became firm bookings.  An unknown requester yields
// scheduling.ErrNotFound.
func (r *StatsRepo) StatsFor(ctx context.Context, requesterID uint64) (scheduling.HoldStats, error) {
    var st scheduling.HoldStats

    const userQ = `SELECT created_at FROM users WHERE id = ?`
    if err := r.db.QueryRowContext(ctx, userQ, requesterID).Scan(&st.MemberSince); err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return scheduling.HoldStats{}, scheduling.ErrNotFound
        }
        return scheduling.HoldStats{}, err
    }
    st.MemberSince = st.MemberSince.UTC()

    const aggQ = `SELECT COUNT(*), COALESCE(SUM(status = ?), 0)
                  FROM reservations
                  WHERE requester_id = ? AND status <> ?`
    if err := r.db.QueryRowContext(ctx, aggQ,
        model.ReservationConverted, requesterID, model.ReservationActive,
    ).Scan(&st.CompletedHolds, &st.ConvertedHolds); err != nil {
        return scheduling.HoldStats{}, err
    }
    return st, nil
}
