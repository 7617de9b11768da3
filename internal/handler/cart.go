package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/class-booking/internal/booking"
)

// CartHandler exposes the customer cart.  Carts are addressed by an opaque
// id the client keeps; nothing here consumes capacity.
type CartHandler struct {
	wf  *booking.Workflow
	log *zap.Logger
}

// NewCartHandler constructs a CartHandler.
func NewCartHandler(wf *booking.Workflow, log *zap.Logger) *CartHandler {
	return &CartHandler{wf: wf, log: log}
}

func cartID(c echo.Context) (string, error) {
	id := c.Param("cartId")
	if _, err := uuid.Parse(id); err != nil {
		return "", booking.ErrValidation.Msg("invalid cartId").With("fields", []string{"cartId"})
	}
	return id, nil
}

// New handles POST /v1/carts and hands out a fresh cart id.
func (h *CartHandler) New(c echo.Context) error {
	return c.JSON(http.StatusCreated, echo.Map{"id": uuid.NewString()})
}

// Get handles GET /v1/carts/:cartId.  An unknown id is an empty cart.
func (h *CartHandler) Get(c echo.Context) error {
	id, err := cartID(c)
	if err != nil {
		return respondError(c, h.log, err)
	}
	cart, err := h.wf.Cart(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, cart)
}

// AddLine handles POST /v1/carts/:cartId/lines.
func (h *CartHandler) AddLine(c echo.Context) error {
	id, err := cartID(c)
	if err != nil {
		return respondError(c, h.log, err)
	}
	var cmd booking.AddLineCmd
	if err := bind(c, &cmd); err != nil {
		return respondError(c, h.log, err)
	}
	cart, err := h.wf.AddLine(c.Request().Context(), id, cmd)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, cart)
}

// UpdateLine handles PUT /v1/carts/:cartId/lines/:lineId with {"persons": n}.
func (h *CartHandler) UpdateLine(c echo.Context) error {
	id, err := cartID(c)
	if err != nil {
		return respondError(c, h.log, err)
	}
	var body struct {
		Persons int `json:"persons"`
	}
	if err := bind(c, &body); err != nil {
		return respondError(c, h.log, err)
	}
	cart, err := h.wf.UpdateLine(c.Request().Context(), id, c.Param("lineId"), body.Persons)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, cart)
}

// RemoveLine handles DELETE /v1/carts/:cartId/lines/:lineId.
func (h *CartHandler) RemoveLine(c echo.Context) error {
	id, err := cartID(c)
	if err != nil {
		return respondError(c, h.log, err)
	}
	cart, err := h.wf.RemoveLine(c.Request().Context(), id, c.Param("lineId"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, cart)
}

// Abandon handles DELETE /v1/carts/:cartId.
func (h *CartHandler) Abandon(c echo.Context) error {
	id, err := cartID(c)
	if err != nil {
		return respondError(c, h.log, err)
	}
	if err := h.wf.Abandon(c.Request().Context(), id); err != nil {
		return respondError(c, h.log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Checkout handles POST /v1/carts/:cartId/checkout.  It returns the order
// lines the order platform must carry; capacity is consumed only when the
// order completes.
func (h *CartHandler) Checkout(c echo.Context) error {
	id, err := cartID(c)
	if err != nil {
		return respondError(c, h.log, err)
	}
	lines, err := h.wf.Checkout(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"cartId": id, "lines": lines})
}
