package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/class-booking/internal/booking"
	"github.com/iliyamo/class-booking/internal/model"
)

// SessionHandler exposes the operator endpoints of the session schedule.
type SessionHandler struct {
	svc    *booking.SessionService
	ledger *booking.Ledger
	cache  Invalidator
	log    *zap.Logger
}

// NewSessionHandler constructs a SessionHandler and panics if a required
// dependency is nil.  cache may be nil.
func NewSessionHandler(svc *booking.SessionService, ledger *booking.Ledger, cache Invalidator, log *zap.Logger) *SessionHandler {
	if svc == nil || ledger == nil || log == nil {
		panic("nil dependency passed to NewSessionHandler")
	}
	return &SessionHandler{svc: svc, ledger: ledger, cache: orNoop(cache), log: log}
}

// List handles GET /v1/sessions?classId= and returns the upcoming active
// sessions of a class.
func (h *SessionHandler) List(c echo.Context) error {
	classID, err := queryID(c, "classId")
	if err != nil {
		return respondError(c, h.log, err)
	}
	sessions, err := h.svc.FindUpcomingByClass(c.Request().Context(), classID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"sessions": sessions})
}

// Create handles POST /v1/sessions.
func (h *SessionHandler) Create(c echo.Context) error {
	var cmd booking.CreateSessionCmd
	if err := bind(c, &cmd); err != nil {
		return respondError(c, h.log, err)
	}
	sess, err := h.svc.Create(c.Request().Context(), cmd)
	if err != nil {
		return respondError(c, h.log, err)
	}
	h.cache.Invalidate(c.Request().Context())
	return c.JSON(http.StatusCreated, echo.Map{"id": sess.ID, "session": sess})
}

// Get handles GET /v1/sessions/:id.
func (h *SessionHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	sess, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, sess)
}

// Update handles PUT /v1/sessions/:id.  Omitted fields keep their value.
func (h *SessionHandler) Update(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	var cmd booking.UpdateSessionCmd
	if err := bind(c, &cmd); err != nil {
		return respondError(c, h.log, err)
	}
	sess, err := h.svc.Update(c.Request().Context(), id, cmd)
	if err != nil {
		return respondError(c, h.log, err)
	}
	h.cache.Invalidate(c.Request().Context())
	return c.JSON(http.StatusOK, sess)
}

// SetStatus handles PATCH /v1/sessions/:id/status with {"status": "active"|"inactive"}.
func (h *SessionHandler) SetStatus(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	var body struct {
		Status model.Status `json:"status"`
	}
	if err := bind(c, &body); err != nil {
		return respondError(c, h.log, err)
	}
	sess, err := h.svc.SetStatus(c.Request().Context(), id, body.Status)
	if err != nil {
		return respondError(c, h.log, err)
	}
	h.cache.Invalidate(c.Request().Context())
	return c.JSON(http.StatusOK, sess)
}

// Delete handles DELETE /v1/sessions/:id.  Sessions with bookings are kept.
func (h *SessionHandler) Delete(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return respondError(c, h.log, err)
	}
	h.cache.Invalidate(c.Request().Context())
	return c.JSON(http.StatusOK, echo.Map{"deleted": id})
}

// LinkProduct handles POST /v1/sessions/:id/product.
func (h *SessionHandler) LinkProduct(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	sess, err := h.svc.LinkProduct(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, sess)
}

// Refund handles POST /v1/sessions/:id/refund with {"quantity": n}.
func (h *SessionHandler) Refund(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	var body struct {
		Quantity int `json:"quantity"`
	}
	if err := bind(c, &body); err != nil {
		return respondError(c, h.log, err)
	}
	ctx := c.Request().Context()
	if err := h.ledger.Refund(ctx, id, body.Quantity); err != nil {
		return respondError(c, h.log, err)
	}
	h.cache.Invalidate(ctx)
	sess, err := h.svc.Get(ctx, id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, sess)
}
