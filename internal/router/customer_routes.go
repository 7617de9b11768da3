package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/class-booking/internal/handler"
)

// RegisterCustomer registers the cart workflow and the booking form.  These
// routes are public: a cart is only reachable through its id, and nothing
// here consumes capacity.
func RegisterCustomer(e *echo.Echo, h *handler.CartHandler, r *handler.ReserveHandler, mw ...echo.MiddlewareFunc) {
	g := e.Group("/v1/carts", mw...)
	g.POST("", h.New)
	g.GET("/:cartId", h.Get)
	g.DELETE("/:cartId", h.Abandon)
	g.POST("/:cartId/lines", h.AddLine)
	g.PUT("/:cartId/lines/:lineId", h.UpdateLine)
	g.DELETE("/:cartId/lines/:lineId", h.RemoveLine)
	g.POST("/:cartId/checkout", h.Checkout)

	e.POST("/reserve", r.Reserve, mw...)
}
