package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/class-booking/internal/booking"
)

// AvailabilityHandler serves the public date and session pickers.
type AvailabilityHandler struct {
	svc *booking.AvailabilityService
	log *zap.Logger
}

// NewAvailabilityHandler constructs an AvailabilityHandler.
func NewAvailabilityHandler(svc *booking.AvailabilityService, log *zap.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{svc: svc, log: log}
}

// Dates handles GET /v1/availability?classId=.
func (h *AvailabilityHandler) Dates(c echo.Context) error {
	classID, err := queryID(c, "classId")
	if err != nil {
		return respondError(c, h.log, err)
	}
	dates, err := h.svc.AvailableDates(c.Request().Context(), classID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"classId": classID, "dates": dates})
}

// Sessions handles GET /v1/availability/sessions?classId=&date=.
func (h *AvailabilityHandler) Sessions(c echo.Context) error {
	classID, err := queryID(c, "classId")
	if err != nil {
		return respondError(c, h.log, err)
	}
	date := c.QueryParam("date")
	slots, err := h.svc.SessionsByDate(c.Request().Context(), classID, date)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"classId": classID, "date": date, "sessions": slots})
}
