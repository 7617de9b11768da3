package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	db  *sql.DB
	rdb *redis.Client // optional
}

// NewHealthHandler constructs a HealthHandler.  rdb may be nil.
func NewHealthHandler(db *sql.DB, rdb *redis.Client) *HealthHandler {
	return &HealthHandler{db: db, rdb: rdb}
}

// Health is used by load balancers to verify the process is up.  It
// returns a plain text "ok".
func (h *HealthHandler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Ready checks the database (and Redis, when configured) and answers 503
// when a dependency is down.
func (h *HealthHandler) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	checks := echo.Map{"db": "ok"}
	status := http.StatusOK
	if err := h.db.PingContext(ctx); err != nil {
		checks["db"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	if h.rdb != nil {
		checks["redis"] = "ok"
		if err := h.rdb.Ping(ctx).Err(); err != nil {
			checks["redis"] = err.Error()
			status = http.StatusServiceUnavailable
		}
	}
	return c.JSON(status, checks)
}
