package handler // handler holds the echo handlers of the booking API

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/class-booking/internal/booking"
)

// Invalidator drops cached availability answers after a write.
type Invalidator interface {
	Invalidate(ctx context.Context)
}

type noInvalidate struct{}

func (noInvalidate) Invalidate(context.Context) {}

func orNoop(inv Invalidator) Invalidator {
	if inv == nil {
		return noInvalidate{}
	}
	return inv
}

// respondError writes the error envelope {"error": {"code", "message", ...}}.
// Unknown errors become 500 and are logged; their text never reaches the client.
func respondError(c echo.Context, log *zap.Logger, err error) error {
	de := booking.AsError(err)
	if de.Status >= http.StatusInternalServerError {
		log.Error("request failed", zap.String("path", c.Path()), zap.String("code", de.Code), zap.Error(err))
		if de.Code == booking.ErrInternal.Code {
			de = booking.ErrInternal
		}
	}
	body := echo.Map{"code": de.Code, "message": de.Message}
	for k, v := range de.Details {
		body[k] = v
	}
	return c.JSON(de.Status, echo.Map{"error": body})
}

// parseID reads a positive numeric path parameter.
func parseID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, booking.ErrValidation.Msg("invalid %s", name).With("fields", []string{name})
	}
	return id, nil
}

// queryID reads a positive numeric query parameter; a missing one is 0.
func queryID(c echo.Context, name string) (uint64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, booking.ErrValidation.Msg("invalid %s", name).With("fields", []string{name})
	}
	return id, nil
}

func bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return booking.ErrValidation.Msg("invalid request body")
	}
	return nil
}
