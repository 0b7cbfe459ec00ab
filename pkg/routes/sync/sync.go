// Package sync exposes the operator actions: discovery, punch event
// ingestion, employee back-propagation, connection test, and the device
// settings. Each run holds a redis lock so concurrent triggers of the same
// operation are rejected instead of interleaved.
package sync

import (
	"errors"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/ardhq/biosync/internal/repositories/setting"
	"github.com/ardhq/biosync/pkg/models"
	"github.com/ardhq/biosync/pkg/redis"
	"github.com/ardhq/biosync/pkg/routes/base"
	"github.com/ardhq/biosync/pkg/syncer"
)

// Lock keys per operation. Discover and transactions share employee lookups
// but stage disjoint tables, so they lock independently.
const (
	lockDiscover     = "sync:discover"
	lockTransactions = "sync:transactions"
	lockEmployees    = "sync:employees"
)

type Handler struct {
	service  *syncer.Service
	settings *setting.Repository
	locker   *redis.Locker
	lockTTL  time.Duration
	logger   ectologger.Logger
}

func NewHandler(service *syncer.Service, settings *setting.Repository, locker *redis.Locker, lockTTL time.Duration, logger ectologger.Logger) *Handler {
	return &Handler{
		service:  service,
		settings: settings,
		locker:   locker,
		lockTTL:  lockTTL,
		logger:   logger,
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/sync/discover", h.Discover)
	g.POST("/sync/transactions", h.SyncTransactions)
	g.POST("/sync/transactions/window", h.SyncTransactionsWindow)
	g.POST("/sync/employees", h.PublishEmployees)
	g.GET("/sync/test", h.TestConnection)
	g.GET("/sync/settings", h.GetSettings)
	g.PUT("/sync/settings", h.SaveSettings)
}

// withLock runs fn while holding the named run lock, translating a held
// lock into a 409.
func (h *Handler) withLock(c echo.Context, key string, fn func() error) error {
	ctx := c.Request().Context()

	lock, err := h.locker.Acquire(ctx, key, h.lockTTL)
	if err != nil {
		if errors.Is(err, redis.ErrLockNotAcquired) {
			return base.Conflict("a sync run is already in progress for this operation")
		}
		return err
	}
	defer func() {
		if err := lock.Release(ctx); err != nil {
			h.logger.WithContext(ctx).WithError(err).Warn("Failed to release sync lock")
		}
	}()

	return fn()
}

// Discover runs employee discovery.
func (h *Handler) Discover(c echo.Context) error {
	return h.withLock(c, lockDiscover, func() error {
		report, err := h.service.Discover(c.Request().Context())
		if err != nil {
			return err
		}
		return base.SuccessResponse(c, report)
	})
}

// SyncTransactions fetches and ingests punch events for the configured
// reference date.
func (h *Handler) SyncTransactions(c echo.Context) error {
	return h.withLock(c, lockTransactions, func() error {
		report, err := h.service.SyncTransactions(c.Request().Context())
		if err != nil {
			return err
		}
		return base.SuccessResponse(c, report)
	})
}

type windowRequest struct {
	ReferenceDate string `json:"reference_date" validate:"required"`
}

// SyncTransactionsWindow fetches and ingests punch events for the month
// around an explicit reference date (YYYY-MM-DD).
func (h *Handler) SyncTransactionsWindow(c echo.Context) error {
	var req windowRequest
	if err := base.BindAndValidate(c, &req); err != nil {
		return err
	}

	ref, err := time.Parse("2006-01-02", req.ReferenceDate)
	if err != nil {
		return base.BadRequest("reference_date must be formatted YYYY-MM-DD")
	}

	return h.withLock(c, lockTransactions, func() error {
		report, err := h.service.SyncTransactionsAt(c.Request().Context(), ref)
		if err != nil {
			return err
		}
		return base.SuccessResponse(c, report)
	})
}

// PublishEmployees pushes unlinked HR employees to the device service.
func (h *Handler) PublishEmployees(c echo.Context) error {
	return h.withLock(c, lockEmployees, func() error {
		report, err := h.service.PublishEmployees(c.Request().Context())
		if err != nil {
			return err
		}
		return base.SuccessResponse(c, report)
	})
}

// TestConnection verifies the stored device credentials authenticate.
func (h *Handler) TestConnection(c echo.Context) error {
	if err := h.service.TestConnection(c.Request().Context()); err != nil {
		return err
	}
	return base.SuccessResponse(c, map[string]string{"status": "connected"})
}

// GetSettings returns the device connection settings.
func (h *Handler) GetSettings(c echo.Context) error {
	settings, err := h.settings.Get(c.Request().Context())
	if err != nil {
		return err
	}
	return base.SuccessResponse(c, settings)
}

type settingsRequest struct {
	BaseURL       string `json:"base_url" validate:"required,url"`
	Username      string `json:"username" validate:"required"`
	Password      string `json:"password" validate:"required"`
	ReferenceDate string `json:"reference_date"`
}

// SaveSettings writes the device connection settings.
func (h *Handler) SaveSettings(c echo.Context) error {
	var req settingsRequest
	if err := base.BindAndValidate(c, &req); err != nil {
		return err
	}

	settings := &models.DeviceSettings{
		BaseURL:  req.BaseURL,
		Username: req.Username,
		Password: req.Password,
	}

	if req.ReferenceDate != "" {
		ref, err := time.Parse("2006-01-02", req.ReferenceDate)
		if err != nil {
			return base.BadRequest("reference_date must be formatted YYYY-MM-DD")
		}
		settings.ReferenceDate = &ref
	}

	saved, err := h.settings.Upsert(c.Request().Context(), settings)
	if err != nil {
		return err
	}

	return base.SuccessResponse(c, saved)
}
