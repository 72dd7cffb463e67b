package handler

import (
    "errors"
    "net/http"
    "strconv"

    "github.com/venuedesk/venue-slot-reservation/internal/repository"
    "github.com/venuedesk/venue-slot-reservation/internal/scheduling"
    "github.com/labstack/echo/v4"
)

// WaitlistHandler exposes waitlist joining, withdrawal and ranked queue
// inspection over HTTP.  Ranking is computed per request from current
// requester history; scores in responses are therefore snapshots, not
// stored state.
type WaitlistHandler struct {
    Queue        *scheduling.QueueEngine
    WaitlistRepo *repository.WaitlistRepo
}

// NewWaitlistHandler constructs a WaitlistHandler.  All dependencies must
// be non-nil.
func NewWaitlistHandler(queue *scheduling.QueueEngine, waitlistRepo *repository.WaitlistRepo) *WaitlistHandler {
    if queue == nil || waitlistRepo == nil {
        panic("nil dependency passed to NewWaitlistHandler")
    }
    return &WaitlistHandler{Queue: queue, WaitlistRepo: waitlistRepo}
}

// Join handles POST /v1/waitlist.  The body carries the slot, an optional
// venue (omit it for a wildcard entry that matches any venue freeing up
// for the slot) and a free-text reason.  Joining always succeeds for a
// valid slot; duplicates are allowed and compete independently.
func (h *WaitlistHandler) Join(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var body struct {
        slotBody
        Reason string `json:"reason"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    slot, err := parseSlot(body.slotBody)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }
    entry, err := h.Queue.Join(c.Request().Context(), scheduling.JoinRequest{
        RequesterID: userID,
        VenueID:     body.VenueID,
        Slot:        slot,
        Reason:      body.Reason,
    })
    if err != nil {
        return writeSchedulingError(c, err)
    }
    return c.JSON(http.StatusCreated, echo.Map{"entry": toEntryJSON(entry)})
}

// Withdraw handles DELETE /v1/waitlist/:id.  Only the entry's requester
// (or an admin) may withdraw.  Entries that already left the queue return
// 409.
func (h *WaitlistHandler) Withdraw(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || id == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid entry id"})
    }
    entry, err := h.WaitlistRepo.GetWaitlistEntry(c.Request().Context(), id)
    if err != nil {
        if errors.Is(err, scheduling.ErrNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "waitlist entry not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    if entry.RequesterID != userID && !isAdmin(c) {
        return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
    }
    updated, err := h.Queue.Withdraw(c.Request().Context(), id)
    if err != nil {
        return writeSchedulingError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"entry": toEntryJSON(updated)})
}

// Rank handles GET /v1/waitlist.  Query parameters select the bucket:
// slot_date, start, end and an optional venue_id (omit it for the
// wildcard bucket).  The response lists WAITING entries in promotion
// order with their current scores.
func (h *WaitlistHandler) Rank(c echo.Context) error {
    slot, err := parseSlot(slotBody{
        SlotDate: c.QueryParam("slot_date"),
        Start:    c.QueryParam("start"),
        End:      c.QueryParam("end"),
    })
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }
    var venueID *uint64
    if raw := c.QueryParam("venue_id"); raw != "" {
        id, err := strconv.ParseUint(raw, 10, 64)
        if err != nil || id == 0 {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid venue id"})
        }
        venueID = &id
    }
    ranked, err := h.Queue.Rank(c.Request().Context(), scheduling.Bucket{VenueID: venueID, Slot: slot})
    if err != nil {
        return writeSchedulingError(c, err)
    }
    items := make([]entryJSON, 0, len(ranked))
    for i := range ranked {
        item := toEntryJSON(&ranked[i].WaitlistEntry)
        score := ranked[i].Score
        item.Score = &score
        items = append(items, item)
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// ListMine handles GET /v1/my-waitlist.  It returns all of the caller's
// entries, including withdrawn and promoted ones, newest first.
func (h *WaitlistHandler) ListMine(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    entries, err := h.WaitlistRepo.ListByRequester(c.Request().Context(), userID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load waitlist entries"})
    }
    items := make([]entryJSON, 0, len(entries))
    for i := range entries {
        items = append(items, toEntryJSON(&entries[i]))
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items})
}
