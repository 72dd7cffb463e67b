package model

import "time"

// Venue is a bookable resource: a space that can be double-booked if holds
// are not coordinated.  Only the fields the scheduler needs are modelled;
// pricing and catalog details live elsewhere in the product.
//
// Fields:
//  ID        – primary key identifier.
//  OwnerID   – admin user responsible for the venue.
//  Name      – display name.
//  Capacity  – seated capacity, informational only.
//  IsActive  – inactive venues reject new holds but keep their history.
//  CreatedAt – timestamp of creation.
//  UpdatedAt – timestamp of last update.
type Venue struct {
    ID        uint64    // venues.id
    OwnerID   uint64    // venues.owner_id
    Name      string    // venues.name
    Capacity  uint32    // venues.capacity
    IsActive  bool      // venues.is_active
    CreatedAt time.Time // venues.created_at
    UpdatedAt time.Time // venues.updated_at
}
