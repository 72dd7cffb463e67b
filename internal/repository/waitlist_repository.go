package repository

import (
    "context"
    "database/sql"
    "errors"
    "time"

    "github.com/venuedesk/venue-slot-reservation/internal/model"
    "github.com/venuedesk/venue-slot-reservation/internal/scheduling"
)

// WaitlistRepo persists waitlist entries in MySQL and implements the
// scheduling.WaitlistStore contract.  Scores are never stored; the queue
// engine recomputes them from requester history on every ranking pass.
type WaitlistRepo struct {
    db *sql.DB
}

// NewWaitlistRepo returns a new WaitlistRepo bound to the given database.
func NewWaitlistRepo(db *sql.DB) *WaitlistRepo { return &WaitlistRepo{db: db} }

const waitlistColumns = `id, requester_id, venue_id, slot_date, start_min, end_min,
       status, reason, demotions, notified_at, created_at, updated_at`

func scanWaitlistEntry(row interface{ Scan(...any) error }) (*model.WaitlistEntry, error) {
    var (
        e          model.WaitlistEntry
        venueID    sql.NullInt64
        slotDate   time.Time
        notifiedAt sql.NullTime
    )
    err := row.Scan(
        &e.ID, &e.RequesterID, &venueID, &slotDate, &e.StartMin, &e.EndMin,
        &e.Status, &e.Reason, &e.Demotions, &notifiedAt, &e.CreatedAt, &e.UpdatedAt,
    )
    if err != nil {
        return nil, err
    }
    if venueID.Valid {
        v := uint64(venueID.Int64)
        e.VenueID = &v
    }
    e.SlotDate = slotDate.UTC().Format("2006-01-02")
    if notifiedAt.Valid {
        t := notifiedAt.Time.UTC()
        e.NotifiedAt = &t
    }
    return &e, nil
}

// GetWaitlistEntry loads an entry by ID.  Returns scheduling.ErrNotFound
// when no such row exists.
func (r *WaitlistRepo) GetWaitlistEntry(ctx context.Context, id uint64) (*model.WaitlistEntry, error) {
    const q = `SELECT ` + waitlistColumns + ` FROM waitlist_entries WHERE id = ?`
    e, err := scanWaitlistEntry(r.db.QueryRowContext(ctx, q, id))
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, scheduling.ErrNotFound
        }
        return nil, err
    }
    return e, nil
}

// InsertWaitlistEntry stores a new WAITING entry and populates its ID and
// timestamps.  Duplicate joins for the same bucket are allowed; each join
// is its own row and competes on its own creation time.
func (r *WaitlistRepo) InsertWaitlistEntry(ctx context.Context, e *model.WaitlistEntry) error {
    const ins = `INSERT INTO waitlist_entries
                 (requester_id, venue_id, slot_date, start_min, end_min, status, reason, demotions)
                 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
    result, err := r.db.ExecContext(ctx, ins,
        e.RequesterID, nullableID(e.VenueID), e.SlotDate, e.StartMin, e.EndMin,
        e.Status, e.Reason, e.Demotions,
    )
    if err != nil {
        return err
    }
    id, err := result.LastInsertId()
    if err != nil {
        return err
    }
    e.ID = uint64(id)

    const sel = `SELECT ` + waitlistColumns + ` FROM waitlist_entries WHERE id = ?`
    stored, err := scanWaitlistEntry(r.db.QueryRowContext(ctx, sel, e.ID))
    if err != nil {
        return err
    }
    *e = *stored
    return nil
}

// ListWaitlist returns entries in the given status for the bucket.  A
// concrete venue matches both its own entries and wildcard entries for the
// same date and slot; a nil venue matches wildcard entries only.
func (r *WaitlistRepo) ListWaitlist(ctx context.Context, bucket scheduling.Bucket, status string) ([]model.WaitlistEntry, error) {
    q := `SELECT ` + waitlistColumns + `
          FROM waitlist_entries
          WHERE status = ? AND slot_date = ? AND start_min = ? AND end_min = ?`
    args := []any{status, bucket.Slot.Date, bucket.Slot.StartMin, bucket.Slot.EndMin}
    if bucket.VenueID != nil {
        q += ` AND (venue_id = ? OR venue_id IS NULL)`
        args = append(args, *bucket.VenueID)
    } else {
        q += ` AND venue_id IS NULL`
    }
    q += ` ORDER BY created_at, id`

    rows, err := r.db.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.WaitlistEntry
    for rows.Next() {
        e, err := scanWaitlistEntry(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, *e)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}

// UpdateWaitlistState applies a compare-and-swap status transition.
// Promoting to NOTIFIED stamps notified_at; reverting NOTIFIED back to
// WAITING clears the stamp and counts a demotion.  Returns
// scheduling.ErrStaleState on a lost race and scheduling.ErrNotFound for
// unknown ids.
func (r *WaitlistRepo) UpdateWaitlistState(ctx context.Context, id uint64, fromState, toState string, notifiedAt *time.Time) (*model.WaitlistEntry, error) {
    q := `UPDATE waitlist_entries SET status = ?, updated_at = CURRENT_TIMESTAMP`
    args := []any{toState}
    switch {
    case toState == model.WaitlistNotified:
        q += `, notified_at = ?`
        var stamp any
        if notifiedAt != nil {
            stamp = notifiedAt.UTC()
        }
        args = append(args, stamp)
    case fromState == model.WaitlistNotified && toState == model.WaitlistWaiting:
        q += `, notified_at = NULL, demotions = demotions + 1`
    }
    q += ` WHERE id = ? AND status = ?`
    args = append(args, id, fromState)

    result, err := r.db.ExecContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    if n, _ := result.RowsAffected(); n == 0 {
        var exists uint64
        err := r.db.QueryRowContext(ctx, `SELECT id FROM waitlist_entries WHERE id = ?`, id).Scan(&exists)
        if errors.Is(err, sql.ErrNoRows) {
            return nil, scheduling.ErrNotFound
        }
        if err != nil {
            return nil, err
        }
        return nil, scheduling.ErrStaleState
    }
    return r.GetWaitlistEntry(ctx, id)
}

// ListNotifiedBefore returns every NOTIFIED entry whose offer went out at
// or before the cutoff.  The sweeper reverts these after the claim grace
// window lapses.
func (r *WaitlistRepo) ListNotifiedBefore(ctx context.Context, cutoff time.Time) ([]model.WaitlistEntry, error) {
    const q = `SELECT ` + waitlistColumns + `
               FROM waitlist_entries
               WHERE status = ? AND notified_at IS NOT NULL AND notified_at <= ?
               ORDER BY notified_at`
    rows, err := r.db.QueryContext(ctx, q, model.WaitlistNotified, cutoff.UTC())
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.WaitlistEntry
    for rows.Next() {
        e, err := scanWaitlistEntry(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, *e)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}

// ListByRequester returns all of a requester's entries, newest first.
func (r *WaitlistRepo) ListByRequester(ctx context.Context, requesterID uint64) ([]model.WaitlistEntry, error) {
    const q = `SELECT ` + waitlistColumns + `
               FROM waitlist_entries
               WHERE requester_id = ?
               ORDER BY created_at DESC, id DESC`
    rows, err := r.db.QueryContext(ctx, q, requesterID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.WaitlistEntry
    for rows.Next() {
        e, err := scanWaitlistEntry(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, *e)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}
