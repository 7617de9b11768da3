package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/class-booking/internal/handler"
)

// RegisterRoutes registers the unauthenticated probes.  /healthz answers
// as long as the process runs; /readyz also checks the database.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler) {
	e.GET("/healthz", h.Health)
	e.GET("/readyz", h.Ready)
}

// RegisterPublic registers the availability queries customers use to pick
// a date and a session.  mw typically holds the rate limiter and the
// response cache; both are read-only lookups so caching is safe.
func RegisterPublic(e *echo.Echo, a *handler.AvailabilityHandler, mw ...echo.MiddlewareFunc) {
	g := e.Group("/v1/availability", mw...)
	g.GET("", a.Dates)
	g.GET("/sessions", a.Sessions)
}
