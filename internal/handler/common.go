package handler // handler defines http handlers

import (
    "errors"
    "net/http"
    "strconv"
    "time"

    "github.com/venuedesk/venue-slot-reservation/internal/interval"
    "github.com/venuedesk/venue-slot-reservation/internal/model"
    "github.com/venuedesk/venue-slot-reservation/internal/scheduling"
    "github.com/labstack/echo/v4"
)

// getUserID extracts the user_id from echo.Context and converts it to uint64.
// JWTAuth stores the raw claim value, so several numeric encodings show up
// depending on how the token was produced.
func getUserID(c echo.Context) (uint64, error) {
    v := c.Get("user_id")
    switch t := v.(type) {
    case uint64:
        return t, nil
    case int:
        return uint64(t), nil
    case int64:
        return uint64(t), nil
    case float64:
        return uint64(t), nil
    case string:
        if n, err := strconv.ParseUint(t, 10, 64); err == nil {
            return n, nil
        }
    }
    return 0, errors.New("invalid user_id in context")
}

// isAdmin reports whether the current request carries the ADMIN role.
func isAdmin(c echo.Context) bool {
    role, _ := c.Get("role").(string)
    return role == "ADMIN"
}

// slotBody is the JSON shape shared by hold and waitlist requests.  Times
// are wall-clock strings ("14:00"); the date is YYYY-MM-DD.
type slotBody struct {
    VenueID  *uint64 `json:"venue_id"`
    SlotDate string  `json:"slot_date"`
    Start    string  `json:"start"`
    End      string  `json:"end"`
}

// parseSlot converts the wire shape into an interval.Range.  Full range
// validation happens in the scheduling core; this only rejects clock
// strings that do not parse at all.
func parseSlot(b slotBody) (interval.Range, error) {
    start, err := interval.ParseClock(b.Start)
    if err != nil {
        return interval.Range{}, err
    }
    end, err := interval.ParseClock(b.End)
    if err != nil {
        return interval.Range{}, err
    }
    return interval.Range{Date: b.SlotDate, StartMin: start, EndMin: end}, nil
}

// holdJSON is the response shape for a reservation hold.
type holdJSON struct {
    ID                  uint64  `json:"id"`
    RequesterID         uint64  `json:"requester_id"`
    VenueID             *uint64 `json:"venue_id,omitempty"`
    SlotDate            string  `json:"slot_date"`
    Start               string  `json:"start"`
    End                 string  `json:"end"`
    Status              string  `json:"status"`
    Deadline            string  `json:"deadline"`
    Extensions          uint8   `json:"extensions"`
    EstimatedValueCents uint32  `json:"estimated_value_cents"`
    Notes               string  `json:"notes,omitempty"`
    BookingRef          *string `json:"booking_ref,omitempty"`
    ConvertedAt         *string `json:"converted_at,omitempty"`
    CreatedAt           string  `json:"created_at"`
}

func toHoldJSON(r *model.Reservation) holdJSON {
    out := holdJSON{
        ID:                  r.ID,
        RequesterID:         r.RequesterID,
        VenueID:             r.VenueID,
        SlotDate:            r.SlotDate,
        Start:               interval.FormatClock(r.StartMin),
        End:                 interval.FormatClock(r.EndMin),
        Status:              r.Status,
        Deadline:            r.Deadline.UTC().Format(time.RFC3339),
        Extensions:          r.Extensions,
        EstimatedValueCents: r.EstimatedValueCents,
        Notes:               r.Notes,
        BookingRef:          r.BookingRef,
        CreatedAt:           r.CreatedAt.UTC().Format(time.RFC3339),
    }
    if r.ConvertedAt != nil {
        iso := r.ConvertedAt.UTC().Format(time.RFC3339)
        out.ConvertedAt = &iso
    }
    return out
}

// entryJSON is the response shape for a waitlist entry.  Score is only set
// on ranked listings; it is recomputed per request and never stored.
type entryJSON struct {
    ID          uint64   `json:"id"`
    RequesterID uint64   `json:"requester_id"`
    VenueID     *uint64  `json:"venue_id,omitempty"`
    SlotDate    string   `json:"slot_date"`
    Start       string   `json:"start"`
    End         string   `json:"end"`
    Status      string   `json:"status"`
    Reason      string   `json:"reason,omitempty"`
    Demotions   uint8    `json:"demotions"`
    NotifiedAt  *string  `json:"notified_at,omitempty"`
    Score       *float64 `json:"score,omitempty"`
    CreatedAt   string   `json:"created_at"`
}

func toEntryJSON(e *model.WaitlistEntry) entryJSON {
    out := entryJSON{
        ID:          e.ID,
        RequesterID: e.RequesterID,
        VenueID:     e.VenueID,
        SlotDate:    e.SlotDate,
        Start:       interval.FormatClock(e.StartMin),
        End:         interval.FormatClock(e.EndMin),
        Status:      e.Status,
        Reason:      e.Reason,
        Demotions:   e.Demotions,
        CreatedAt:   e.CreatedAt.UTC().Format(time.RFC3339),
    }
    if e.NotifiedAt != nil {
        iso := e.NotifiedAt.UTC().Format(time.RFC3339)
        out.NotifiedAt = &iso
    }
    return out
}

// writeSchedulingError maps the scheduling error taxonomy onto HTTP
// responses so every handler reports failures the same way.  Unrecognized
// errors fall through to a 500.
func writeSchedulingError(c echo.Context, err error) error {
    var (
        vErr  *scheduling.ValidationError
        cErr  *scheduling.ConflictError
        isErr *scheduling.InvalidStateError
    )
    switch {
    case errors.As(err, &vErr):
        return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": vErr.Reason})
    case errors.As(err, &cErr):
        blocking := make([]holdJSON, 0, len(cErr.Blocking))
        for i := range cErr.Blocking {
            blocking = append(blocking, toHoldJSON(&cErr.Blocking[i]))
        }
        return c.JSON(http.StatusConflict, echo.Map{
            "error":    "slot conflicts with existing holds",
            "blocking": blocking,
        })
    case errors.As(err, &isErr):
        return c.JSON(http.StatusConflict, echo.Map{"error": isErr.Error()})
    case errors.Is(err, scheduling.ErrStaleState):
        return c.JSON(http.StatusConflict, echo.Map{"error": "resource changed concurrently, retry"})
    case errors.Is(err, scheduling.ErrNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
    }
    return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
