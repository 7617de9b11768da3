package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/class-booking/internal/handler"
	"github.com/iliyamo/class-booking/internal/middleware"
	"github.com/iliyamo/class-booking/internal/utils"
)

// RegisterOperator registers the schedule management endpoints under
// /v1/sessions.  Every route needs a valid operator JWT; deleting and
// refunding also need the delete capability.
func RegisterOperator(e *echo.Echo, s *handler.SessionHandler, jwtSecret string) {
	g := e.Group("/v1/sessions", middleware.JWTAuth(jwtSecret))
	edit := middleware.RequireCapability(utils.CapEdit)
	del := middleware.RequireCapability(utils.CapDelete)

	g.GET("", s.List, edit)
	g.POST("", s.Create, edit)
	g.GET("/:id", s.Get, edit)
	g.PUT("/:id", s.Update, edit)
	g.PATCH("/:id/status", s.SetStatus, edit)
	g.POST("/:id/product", s.LinkProduct, edit)
	g.DELETE("/:id", s.Delete, del)
	g.POST("/:id/refund", s.Refund, del)
}
