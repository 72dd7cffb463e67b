package handler

import (
    "database/sql"
    "errors"
    "net/http"
    "strconv"

    "github.com/venuedesk/venue-slot-reservation/internal/model"
    "github.com/venuedesk/venue-slot-reservation/internal/repository"
    "github.com/labstack/echo/v4"
)

// VenueHandler serves the venue catalog.  Listing and lookup are public so
// salespeople can browse before authenticating; mutations require the
// ADMIN role (enforced in the router).
type VenueHandler struct {
    VenueRepo *repository.VenueRepo
}

// NewVenueHandler constructs a VenueHandler.
func NewVenueHandler(venueRepo *repository.VenueRepo) *VenueHandler {
    if venueRepo == nil {
        panic("nil repository passed to NewVenueHandler")
    }
    return &VenueHandler{VenueRepo: venueRepo}
}

// venueJSON is the sanitized response shape.  Owner and timestamps stay
// internal.
type venueJSON struct {
    ID       uint64 `json:"id"`
    Name     string `json:"name"`
    Capacity uint32 `json:"capacity"`
    IsActive bool   `json:"is_active"`
}

func toVenueJSON(v *model.Venue) venueJSON {
    return venueJSON{ID: v.ID, Name: v.Name, Capacity: v.Capacity, IsActive: v.IsActive}
}

// List handles GET /v1/venues.  Only venues open for holds are returned.
func (h *VenueHandler) List(c echo.Context) error {
    venues, err := h.VenueRepo.ListActive(c.Request().Context())
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load venues"})
    }
    items := make([]venueJSON, 0, len(venues))
    for _, v := range venues {
        items = append(items, toVenueJSON(v))
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Get handles GET /v1/venues/:id.
func (h *VenueHandler) Get(c echo.Context) error {
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || id == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid venue id"})
    }
    v, err := h.VenueRepo.GetByID(c.Request().Context(), id)
    if err != nil {
        if errors.Is(err, repository.ErrVenueNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "venue not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    return c.JSON(http.StatusOK, echo.Map{"venue": toVenueJSON(v)})
}

// ListMine handles GET /v1/my-venues (ADMIN).  Unlike the public listing
// it includes deactivated venues, since their owner still manages them.
func (h *VenueHandler) ListMine(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    venues, err := h.VenueRepo.ListByOwner(c.Request().Context(), userID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load venues"})
    }
    items := make([]venueJSON, 0, len(venues))
    for _, v := range venues {
        items = append(items, toVenueJSON(v))
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Create handles POST /v1/venues (ADMIN).  The creating admin becomes the
// venue's owner.
func (h *VenueHandler) Create(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var body struct {
        Name     string `json:"name"`
        Capacity uint32 `json:"capacity"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if body.Name == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
    }
    v := &model.Venue{OwnerID: userID, Name: body.Name, Capacity: body.Capacity, IsActive: true}
    if err := h.VenueRepo.Create(c.Request().Context(), v); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create venue"})
    }
    return c.JSON(http.StatusCreated, echo.Map{"venue": toVenueJSON(v)})
}

// Update handles PUT /v1/venues/:id (ADMIN).  Deactivating a venue stops
// new holds without touching existing ones.
func (h *VenueHandler) Update(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || id == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid venue id"})
    }
    var body struct {
        Name     string `json:"name"`
        Capacity uint32 `json:"capacity"`
        IsActive bool   `json:"is_active"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if body.Name == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
    }
    if err := h.VenueRepo.Update(c.Request().Context(), id, userID, body.Name, body.Capacity, body.IsActive); err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "venue not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update venue"})
    }
    v, err := h.VenueRepo.GetByID(c.Request().Context(), id)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    return c.JSON(http.StatusOK, echo.Map{"venue": toVenueJSON(v)})
}

// Delete handles DELETE /v1/venues/:id (ADMIN).  A venue with active
// holds cannot be removed; deactivate it instead.
func (h *VenueHandler) Delete(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || id == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid venue id"})
    }
    if err := h.VenueRepo.DeleteByIDAndOwner(c.Request().Context(), id, userID); err != nil {
        switch {
        case errors.Is(err, sql.ErrNoRows):
            return c.JSON(http.StatusNotFound, echo.Map{"error": "venue not found"})
        case errors.Is(err, repository.ErrForbidden):
            return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
        case errors.Is(err, repository.ErrConflict):
            return c.JSON(http.StatusConflict, echo.Map{"error": "venue still has active holds"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to delete venue"})
    }
    return c.NoContent(http.StatusNoContent)
}
