package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/class-booking/internal/booking"
	"github.com/iliyamo/class-booking/internal/model"
)

// OrderHandler receives completed orders from the order platform.
type OrderHandler struct {
	wf    *booking.Workflow
	cache Invalidator
	log   *zap.Logger
}

// NewOrderHandler constructs an OrderHandler.  cache may be nil.
func NewOrderHandler(wf *booking.Workflow, cache Invalidator, log *zap.Logger) *OrderHandler {
	return &OrderHandler{wf: wf, cache: orNoop(cache), log: log}
}

// Completed handles POST /v1/orders/completed.  The answer lists the
// outcome of every line; replays report "duplicate" and change nothing.
func (h *OrderHandler) Completed(c echo.Context) error {
	var cmd booking.CompleteOrderCmd
	if err := bind(c, &cmd); err != nil {
		return respondError(c, h.log, err)
	}
	ctx := c.Request().Context()
	outcomes, err := h.wf.CompleteOrder(ctx, cmd)
	if err != nil {
		return respondError(c, h.log, err)
	}
	for _, o := range outcomes {
		if o.Status == model.LineApplied {
			h.cache.Invalidate(ctx)
			break
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"orderId": cmd.OrderID, "lines": outcomes})
}
