package repository

import (
    "context"
    "database/sql"
    "errors"

    "github.com/venuedesk/venue-slot-reservation/internal/model"
)

// ErrVenueNotFound is returned when a venue cannot be found in the DB.
var ErrVenueNotFound = errors.New("venue not found")

// VenueRepo encapsulates all database queries related to venues.  Venues
// are the bookable resources that holds and waitlist entries target.  It
// depends on a sql.DB connection which should be configured elsewhere.
type VenueRepo struct {
    db *sql.DB
}

// NewVenueRepo constructs a VenueRepo with the provided DB handle.  This
// function allows dependency injection of the database in tests and at
// startup.
func NewVenueRepo(db *sql.DB) *VenueRepo {
    return &VenueRepo{db: db}
}

// Create inserts a new venue.  On success the venue's ID field is
// populated with the auto-generated value, and a follow-up SELECT fills
// the timestamp fields so callers receive a fully populated record.
func (r *VenueRepo) Create(ctx context.Context, v *model.Venue) error {
    const qInsert = `INSERT INTO venues (owner_id, name, capacity, is_active) VALUES (?, ?, ?, ?)`
    res, err := r.db.ExecContext(ctx, qInsert, v.OwnerID, v.Name, v.Capacity, v.IsActive)
    if err != nil {
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    v.ID = uint64(id)

    const qSelect = `SELECT owner_id, name, capacity, is_active, created_at, updated_at
                     FROM venues WHERE id = ?`
    return r.db.QueryRowContext(ctx, qSelect, v.ID).
        Scan(&v.OwnerID, &v.Name, &v.Capacity, &v.IsActive, &v.CreatedAt, &v.UpdatedAt)
}

// GetByID fetches a venue by its ID regardless of owner.  It returns
// ErrVenueNotFound if no row is found.
func (r *VenueRepo) GetByID(ctx context.Context, id uint64) (*model.Venue, error) {
    const q = `SELECT id, owner_id, name, capacity, is_active, created_at, updated_at
               FROM venues WHERE id = ?`
    var v model.Venue
    if err := r.db.QueryRowContext(ctx, q, id).
        Scan(&v.ID, &v.OwnerID, &v.Name, &v.Capacity, &v.IsActive, &v.CreatedAt, &v.UpdatedAt); err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, ErrVenueNotFound
        }
        return nil, err
    }
    return &v, nil
}

// ListActive returns every venue currently open for holds, ordered by id.
// It backs the public browsing endpoint, so only display fields matter to
// callers.
func (r *VenueRepo) ListActive(ctx context.Context) ([]*model.Venue, error) {
    const q = `SELECT id, owner_id, name, capacity, is_active, created_at, updated_at
               FROM venues WHERE is_active = 1 ORDER BY id`
    return r.listQuery(ctx, q)
}

// ListByOwner returns all venues for a specific owner ordered by id,
// including deactivated ones.
func (r *VenueRepo) ListByOwner(ctx context.Context, ownerID uint64) ([]*model.Venue, error) {
    const q = `SELECT id, owner_id, name, capacity, is_active, created_at, updated_at
               FROM venues WHERE owner_id = ? ORDER BY id`
    return r.listQuery(ctx, q, ownerID)
}

func (r *VenueRepo) listQuery(ctx context.Context, q string, args ...any) ([]*model.Venue, error) {
    rows, err := r.db.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []*model.Venue
    for rows.Next() {
        v := new(model.Venue)
        if err := rows.Scan(&v.ID, &v.OwnerID, &v.Name, &v.Capacity, &v.IsActive, &v.CreatedAt, &v.UpdatedAt); err != nil {
            return nil, err
        }
        out = append(out, v)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}

// Update changes the mutable fields of a venue if it belongs to the
// provided owner.  It returns sql.ErrNoRows when no row is affected
// (not found / not owned).
func (r *VenueRepo) Update(ctx context.Context, id, ownerID uint64, name string, capacity uint32, isActive bool) error {
    const q = `UPDATE venues
               SET name = ?, capacity = ?, is_active = ?, updated_at = CURRENT_TIMESTAMP
               WHERE id = ? AND owner_id = ?`
    res, err := r.db.ExecContext(ctx, q, name, capacity, isActive, id, ownerID)
    if err != nil {
        return err
    }
    if n, _ := res.RowsAffected(); n == 0 {
        return sql.ErrNoRows
    }
    return nil
}

// DeleteByIDAndOwner removes a venue provided it belongs to the specified
// owner and carries no active holds.  If the venue does not exist,
// sql.ErrNoRows is returned; if it is owned by a different user,
// ErrForbidden; if active holds still block it, ErrConflict.  The check
// and delete run in one transaction.
func (r *VenueRepo) DeleteByIDAndOwner(ctx context.Context, id, ownerID uint64) error {
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

    var dbOwnerID uint64
    if err = tx.QueryRowContext(ctx, `SELECT owner_id FROM venues WHERE id = ?`, id).Scan(&dbOwnerID); err != nil {
        return err
    }
    if dbOwnerID != ownerID {
        err = ErrForbidden
        return err
    }
    var active int
    if err = tx.QueryRowContext(ctx,
        `SELECT COUNT(*) FROM reservations WHERE venue_id = ? AND status = 'ACTIVE'`, id,
    ).Scan(&active); err != nil {
        return err
    }
    if active > 0 {
        err = ErrConflict
        return err
    }
    // All remaining holds are terminal; detach them so the row can go
    // while the history stays queryable.  Waitlist rows still pointing at
    // the venue have nothing left to wait for.
    if _, err = tx.ExecContext(ctx, `UPDATE reservations SET venue_id = NULL WHERE venue_id = ?`, id); err != nil {
        return err
    }
    if _, err = tx.ExecContext(ctx, `DELETE FROM waitlist_entries WHERE venue_id = ?`, id); err != nil {
        return err
    }
    _, err = tx.ExecContext(ctx, `DELETE FROM venues WHERE id = ?`, id)
    return err
}
