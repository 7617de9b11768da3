package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/class-booking/internal/handler"
	"github.com/iliyamo/class-booking/internal/middleware"
)

// RegisterIntegration registers the server-to-server webhook of the order
// platform.  It is authenticated by the shared X-Integration-Key.
func RegisterIntegration(e *echo.Echo, o *handler.OrderHandler, keyHash string) {
	g := e.Group("/v1/orders", middleware.IntegrationKey(keyHash))
	g.POST("/completed", o.Completed)
}
