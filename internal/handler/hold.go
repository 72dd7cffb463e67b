package handler

import (
    "errors"
    "net/http"
    "strconv"
    "time"

    "github.com/venuedesk/venue-slot-reservation/internal/model"
    "github.com/venuedesk/venue-slot-reservation/internal/repository"
    "github.com/venuedesk/venue-slot-reservation/internal/scheduling"
    "github.com/labstack/echo/v4"
)

// HoldHandler exposes the hold lifecycle over HTTP.  All state transitions
// go through the lifecycle manager; the handler's own job is input
// decoding, ownership enforcement and error-to-status mapping.  Methods
// assume JWT authentication and role validation already ran in middleware.
type HoldHandler struct {
    Manager         *scheduling.LifecycleManager
    ReservationRepo *repository.ReservationRepo
    VenueRepo       *repository.VenueRepo
}

// NewHoldHandler constructs a HoldHandler.  All dependencies must be non-nil.
func NewHoldHandler(manager *scheduling.LifecycleManager, reservationRepo *repository.ReservationRepo, venueRepo *repository.VenueRepo) *HoldHandler {
    if manager == nil || reservationRepo == nil || venueRepo == nil {
        panic("nil dependency passed to NewHoldHandler")
    }
    return &HoldHandler{Manager: manager, ReservationRepo: reservationRepo, VenueRepo: venueRepo}
}

// Create handles POST /v1/holds.  The body carries the slot, an optional
// venue (omit it for a venue-agnostic hold), an optional TTL override in
// hours and proposal metadata.  On success it returns 201 with the new
// hold.  A blocked slot returns 409 together with the holds that block it.
func (h *HoldHandler) Create(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var body struct {
        slotBody
        TTLHours            uint32 `json:"ttl_hours"`
        EstimatedValueCents uint32 `json:"estimated_value_cents"`
        Notes               string `json:"notes"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    slot, err := parseSlot(body.slotBody)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }
    if body.VenueID != nil {
        venue, err := h.VenueRepo.GetByID(c.Request().Context(), *body.VenueID)
        if err != nil {
            if errors.Is(err, repository.ErrVenueNotFound) {
                return c.JSON(http.StatusNotFound, echo.Map{"error": "venue not found"})
            }
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
        }
        if !venue.IsActive {
            return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "venue is not open for holds"})
        }
    }
    hold, err := h.Manager.RequestHold(c.Request().Context(), scheduling.HoldRequest{
        RequesterID:         userID,
        VenueID:             body.VenueID,
        Slot:                slot,
        TTL:                 time.Duration(body.TTLHours) * time.Hour,
        EstimatedValueCents: body.EstimatedValueCents,
        Notes:               body.Notes,
    })
    if err != nil {
        return writeSchedulingError(c, err)
    }
    return c.JSON(http.StatusCreated, echo.Map{"hold": toHoldJSON(hold)})
}

// Extend handles POST /v1/holds/:id/extend.  Only the hold's requester
// (or an admin) may extend.  A hold at its extension cap or already
// terminal returns 409.
func (h *HoldHandler) Extend(c echo.Context) error {
    hold, errResp := h.authorize(c)
    if hold == nil {
        return errResp
    }
    updated, err := h.Manager.Extend(c.Request().Context(), hold.ID)
    if err != nil {
        return writeSchedulingError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"hold": toHoldJSON(updated)})
}

// Convert handles POST /v1/holds/:id/convert.  The body must carry the
// booking_ref of the firm booking the hold turned into.
func (h *HoldHandler) Convert(c echo.Context) error {
    hold, errResp := h.authorize(c)
    if hold == nil {
        return errResp
    }
    var body struct {
        BookingRef string `json:"booking_ref"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    updated, err := h.Manager.Convert(c.Request().Context(), hold.ID, body.BookingRef)
    if err != nil {
        return writeSchedulingError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"hold": toHoldJSON(updated)})
}

// Release handles DELETE /v1/holds/:id.  Releasing frees the slot and
// promotes the next waitlist entry before the response goes out.  Returns
// 200 with the released hold rather than 204 so callers see the final
// state.
func (h *HoldHandler) Release(c echo.Context) error {
    hold, errResp := h.authorize(c)
    if hold == nil {
        return errResp
    }
    updated, err := h.Manager.Release(c.Request().Context(), hold.ID)
    if err != nil {
        return writeSchedulingError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"hold": toHoldJSON(updated)})
}

// ListMine handles GET /v1/my-holds.  It returns the caller's holds,
// terminal ones included, newest first.
func (h *HoldHandler) ListMine(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    holds, err := h.ReservationRepo.ListByRequester(c.Request().Context(), userID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load holds"})
    }
    items := make([]holdJSON, 0, len(holds))
    for i := range holds {
        items = append(items, toHoldJSON(&holds[i]))
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Get handles GET /v1/holds/:id for the hold's requester or an admin.
func (h *HoldHandler) Get(c echo.Context) error {
    hold, errResp := h.authorize(c)
    if hold == nil {
        return errResp
    }
    return c.JSON(http.StatusOK, echo.Map{"hold": toHoldJSON(hold)})
}

// authorize loads the :id hold and checks that the caller owns it or is
// an admin.  On failure it returns a nil hold and the response already
// written for the caller to return.
func (h *HoldHandler) authorize(c echo.Context) (*model.Reservation, error) {
    userID, err := getUserID(c)
    if err != nil {
        return nil, c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || id == 0 {
        return nil, c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid hold id"})
    }
    r, err := h.ReservationRepo.GetReservation(c.Request().Context(), id)
    if err != nil {
        if errors.Is(err, scheduling.ErrNotFound) {
            return nil, c.JSON(http.StatusNotFound, echo.Map{"error": "hold not found"})
        }
        return nil, c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    if r.RequesterID != userID && !isAdmin(c) {
        return nil, c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
    }
    return r, nil
}
