package router

import (
	"github.com/venuedesk/venue-slot-reservation/internal/handler"
	"github.com/venuedesk/venue-slot-reservation/internal/middleware"
	"github.com/labstack/echo/v4"
)

// RegisterHolds registers the hold lifecycle endpoints under /v1.  All
// routes require a valid JWT; both roles may hold slots (admins manage on
// behalf of their salespeople, ownership checks live in the handlers).
func RegisterHolds(e *echo.Echo, h *handler.HoldHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("SALES", "ADMIN"),
	)
	g.POST("/holds", h.Create)
	g.GET("/holds/:id", h.Get)
	g.POST("/holds/:id/extend", h.Extend)
	g.POST("/holds/:id/convert", h.Convert)
	g.DELETE("/holds/:id", h.Release)
	g.GET("/my-holds", h.ListMine)
}

// RegisterWaitlist registers the waitlist endpoints under /v1 with the
// same authentication requirements as the hold routes.
func RegisterWaitlist(e *echo.Echo, w *handler.WaitlistHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("SALES", "ADMIN"),
	)
	g.POST("/waitlist", w.Join)
	g.GET("/waitlist", w.Rank)
	g.DELETE("/waitlist/:id", w.Withdraw)
	g.GET("/my-waitlist", w.ListMine)
}

// RegisterAdmin registers venue management endpoints under /v1.  All
// routes require a valid JWT and the ADMIN role.
func RegisterAdmin(e *echo.Echo, v *handler.VenueHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("ADMIN"),
	)
	g.GET("/my-venues", v.ListMine)
	g.POST("/venues", v.Create)
	g.PUT("/venues/:id", v.Update)
	g.PATCH("/venues/:id", v.Update) // allow partial/semantic updates via PATCH as well
	g.DELETE("/venues/:id", v.Delete)
}
