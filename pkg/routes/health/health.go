// Package health exposes liveness and readiness probes.
package health

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ardhq/biosync/pkg/database"
	"github.com/ardhq/biosync/pkg/redis"
)

type Handler struct {
	db    database.DB
	redis *redis.Client
}

func NewHandler(db database.DB, redisClient *redis.Client) *Handler {
	return &Handler{
		db:    db,
		redis: redisClient,
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/health/live", h.Live)
	g.GET("/health/ready", h.Ready)
}

// Live reports the process is up.
func (h *Handler) Live(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Ready reports whether the service's backing stores are reachable.
func (h *Handler) Ready(c echo.Context) error {
	ctx := c.Request().Context()

	checks := map[string]string{
		"database": "ok",
		"redis":    "ok",
	}
	status := http.StatusOK

	if err := h.db.PingContext(ctx); err != nil {
		checks["database"] = err.Error()
		status = http.StatusServiceUnavailable
	}

	if err := h.redis.Ping(ctx); err != nil {
		checks["redis"] = err.Error()
		status = http.StatusServiceUnavailable
	}

	return c.JSON(status, checks)
}
