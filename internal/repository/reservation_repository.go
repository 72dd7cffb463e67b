package repository

import (
    "context"
    "database/sql"
    "errors"
    "strings"
    "time"

    "github.com/venuedesk/venue-slot-reservation/internal/model"
    "github.com/venuedesk/venue-slot-reservation/internal/scheduling"
)

// ReservationRepo persists reservation holds in MySQL and implements the
// scheduling.ReservationStore contract.  Rows are never deleted; terminal
// statuses keep the table usable as hold history and as the source for
// requester performance statistics.  All timestamp columns are stored in
// UTC (the DSN forces loc=UTC).
type ReservationRepo struct {
    db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = `id, requester_id, venue_id, slot_date, start_min, end_min,
       status, deadline, extensions, expiry_notified, estimated_value_cents,
       notes, booking_ref, converted_at, created_at, updated_at`

// scanReservation reads one row in reservationColumns order.  Nullable
// columns (venue_id, booking_ref, converted_at) map to pointer fields.
func scanReservation(row interface{ Scan(...any) error }) (*model.Reservation, error) {
    var (
        r           model.Reservation
        venueID     sql.NullInt64
        slotDate    time.Time
        bookingRef  sql.NullString
        convertedAt sql.NullTime
    )
    err := row.Scan(
        &r.ID, &r.RequesterID, &venueID, &slotDate, &r.StartMin, &r.EndMin,
        &r.Status, &r.Deadline, &r.Extensions, &r.ExpiryNotified, &r.EstimatedValueCents,
        &r.Notes, &bookingRef, &convertedAt, &r.CreatedAt, &r.UpdatedAt,
    )
    if err != nil {
        return nil, err
    }
    if venueID.Valid {
        v := uint64(venueID.Int64)
        r.VenueID = &v
    }
    r.SlotDate = slotDate.UTC().Format("2006-01-02")
    if bookingRef.Valid {
        ref := bookingRef.String
        r.BookingRef = &ref
    }
    if convertedAt.Valid {
        t := convertedAt.Time.UTC()
        r.ConvertedAt = &t
    }
    return &r, nil
}

// GetReservation loads a reservation by ID.  Returns scheduling.ErrNotFound
// when no such row exists.
func (r *ReservationRepo) GetReservation(ctx context.Context, id uint64) (*model.Reservation, error) {
    const q = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
    res, err := scanReservation(r.db.QueryRowContext(ctx, q, id))
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, scheduling.ErrNotFound
        }
        return nil, err
    }
    return res, nil
}

// GetActiveByVenue returns all ACTIVE holds for a venue on a given date,
// ordered by start minute.  The conflict detector filters these down to
// actual overlaps.
func (r *ReservationRepo) GetActiveByVenue(ctx context.Context, venueID uint64, date string) ([]model.Reservation, error) {
    const q = `SELECT ` + reservationColumns + `
               FROM reservations
               WHERE venue_id = ? AND slot_date = ? AND status = ?
               ORDER BY start_min`
    rows, err := r.db.QueryContext(ctx, q, venueID, date, model.ReservationActive)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.Reservation
    for rows.Next() {
        res, err := scanReservation(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, *res)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}

// InsertReservation stores a new ACTIVE hold.  The overlap invariant is
// re-checked inside the transaction with a locking read, so two processes
// racing past the in-process bucket lock still cannot both commit holds on
// intersecting slots.  A losing insert returns scheduling.ErrDuplicateConflict.
// Venue-agnostic holds (nil venue) block nothing and skip the check.
func (r *ReservationRepo) InsertReservation(ctx context.Context, res *model.Reservation) error {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    defer func() {
        if err != nil {
            _ = tx.Rollback()
        } else {
            err = tx.Commit()
        }
    }()

    if res.VenueID != nil {
        // Half-open overlap: existing.start < new.end AND new.start < existing.end.
        const guard = `SELECT id FROM reservations
                       WHERE venue_id = ? AND slot_date = ? AND status = ?
                         AND start_min < ? AND ? < end_min
                       LIMIT 1 FOR UPDATE`
        var blocking uint64
        err = tx.QueryRowContext(ctx, guard,
            *res.VenueID, res.SlotDate, model.ReservationActive,
            res.EndMin, res.StartMin,
        ).Scan(&blocking)
        switch {
        case err == nil:
            err = scheduling.ErrDuplicateConflict
            return err
        case errors.Is(err, sql.ErrNoRows):
            err = nil
        default:
            return err
        }
    }

    const ins = `INSERT INTO reservations
                 (requester_id, venue_id, slot_date, start_min, end_min, status,
                  deadline, extensions, expiry_notified, estimated_value_cents, notes)
                 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
    var result sql.Result
    result, err = tx.ExecContext(ctx, ins,
        res.RequesterID, nullableID(res.VenueID), res.SlotDate, res.StartMin, res.EndMin,
        res.Status, res.Deadline.UTC(), res.Extensions, res.ExpiryNotified,
        res.EstimatedValueCents, res.Notes,
    )
    if err != nil {
        return err
    }
    var id int64
    id, err = result.LastInsertId()
    if err != nil {
        return err
    }
    res.ID = uint64(id)

    // Query back the full row to populate timestamps and defaults.
    const sel = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
    var stored *model.Reservation
    stored, err = scanReservation(tx.QueryRowContext(ctx, sel, res.ID))
    if err != nil {
        return err
    }
    *res = *stored
    return nil
}

// UpdateReservationState applies a compare-and-swap status transition and,
// atomically with it, any column changes in upd.  It returns
// scheduling.ErrStaleState when the row has already left fromState and
// scheduling.ErrNotFound when the id is unknown.
func (r *ReservationRepo) UpdateReservationState(ctx context.Context, id uint64, fromState, toState string, upd scheduling.ReservationUpdate) (*model.Reservation, error) {
    sets := []string{"status = ?", "updated_at = CURRENT_TIMESTAMP"}
    args := []any{toState}
    if upd.Deadline != nil {
        sets = append(sets, "deadline = ?")
        args = append(args, upd.Deadline.UTC())
    }
    if upd.Extensions != nil {
        sets = append(sets, "extensions = ?")
        args = append(args, *upd.Extensions)
    }
    if upd.BookingRef != nil {
        sets = append(sets, "booking_ref = ?")
        args = append(args, *upd.BookingRef)
    }
    if upd.ConvertedAt != nil {
        sets = append(sets, "converted_at = ?")
        args = append(args, upd.ConvertedAt.UTC())
    }
    args = append(args, id, fromState)

    q := `UPDATE reservations SET ` + strings.Join(sets, ", ") + ` WHERE id = ? AND status = ?`
    result, err := r.db.ExecContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    if n, _ := result.RowsAffected(); n == 0 {
        // The updated_at touch guarantees a matched row reports as
        // affected, so zero means the guard failed.  Distinguish a lost
        // race from an unknown id.
        var exists uint64
        err := r.db.QueryRowContext(ctx, `SELECT id FROM reservations WHERE id = ?`, id).Scan(&exists)
        if errors.Is(err, sql.ErrNoRows) {
            return nil, scheduling.ErrNotFound
        }
        if err != nil {
            return nil, err
        }
        return nil, scheduling.ErrStaleState
    }
    return r.GetReservation(ctx, id)
}

// ExpireOverdue flips an ACTIVE hold to EXPIRED only while its deadline is
// still at or before now.  The deadline sits in the WHERE clause alongside
// the status guard, so an extension committed after the sweep listed the
// hold as due makes this update match nothing instead of expiring a live
// hold.
func (r *ReservationRepo) ExpireOverdue(ctx context.Context, id uint64, now time.Time) (*model.Reservation, error) {
    const q = `UPDATE reservations
               SET status = ?, updated_at = CURRENT_TIMESTAMP
               WHERE id = ? AND status = ? AND deadline <= ?`
    result, err := r.db.ExecContext(ctx, q,
        model.ReservationExpired, id, model.ReservationActive, now.UTC())
    if err != nil {
        return nil, err
    }
    if n, _ := result.RowsAffected(); n == 0 {
        var exists uint64
        err := r.db.QueryRowContext(ctx, `SELECT id FROM reservations WHERE id = ?`, id).Scan(&exists)
        if errors.Is(err, sql.ErrNoRows) {
            return nil, scheduling.ErrNotFound
        }
        if err != nil {
            return nil, err
        }
        return nil, scheduling.ErrStaleState
    }
    return r.GetReservation(ctx, id)
}

// ListDueForExpiration returns every ACTIVE hold whose deadline is at or
// before now, oldest deadline first.
func (r *ReservationRepo) ListDueForExpiration(ctx context.Context, now time.Time) ([]model.Reservation, error) {
    const q = `SELECT ` + reservationColumns + `
               FROM reservations
               WHERE status = ? AND deadline <= ?
               ORDER BY deadline`
    return r.list(ctx, q, model.ReservationActive, now.UTC())
}

// ListExpiringSoon returns every ACTIVE hold entering the notice horizon
// that has not had its expiring-soon notice emitted yet.
func (r *ReservationRepo) ListExpiringSoon(ctx context.Context, now time.Time, horizon time.Duration) ([]model.Reservation, error) {
    const q = `SELECT ` + reservationColumns + `
               FROM reservations
               WHERE status = ? AND expiry_notified = 0
                 AND deadline > ? AND deadline <= ?
               ORDER BY deadline`
    return r.list(ctx, q, model.ReservationActive, now.UTC(), now.Add(horizon).UTC())
}

// MarkExpiryNotified sets the one-shot notice marker.  Marking a row that
// has since left ACTIVE is a harmless no-op.
func (r *ReservationRepo) MarkExpiryNotified(ctx context.Context, id uint64) error {
    const q = `UPDATE reservations
               SET expiry_notified = 1, updated_at = CURRENT_TIMESTAMP
               WHERE id = ?`
    _, err := r.db.ExecContext(ctx, q, id)
    return err
}

// ListByRequester returns all holds for a requester, newest first.  Used by
// the my-holds endpoint; terminal rows are included so salespeople can see
// their hold history.
func (r *ReservationRepo) ListByRequester(ctx context.Context, requesterID uint64) ([]model.Reservation, error) {
    const q = `SELECT ` + reservationColumns + `
               FROM reservations
               WHERE requester_id = ?
               ORDER BY created_at DESC, id DESC`
    return r.list(ctx, q, requesterID)
}

func (r *ReservationRepo) list(ctx context.Context, q string, args ...any) ([]model.Reservation, error) {
    rows, err := r.db.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.Reservation
    for rows.Next() {
        res, err := scanReservation(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, *res)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}

// nullableID converts an optional id into a driver-friendly value.
func nullableID(id *uint64) any {
    if id == nil {
        return nil
    }
    return *id
}
