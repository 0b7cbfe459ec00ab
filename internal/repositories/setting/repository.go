package setting

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/ardhq/biosync/pkg/database"
	"github.com/ardhq/biosync/pkg/models"
	"github.com/ardhq/biosync/pkg/tracing"
)

// settingsRowID is the fixed id of the single device settings row.
const settingsRowID = int16(1)

// Repository handles the single-row device settings record
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new settings repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Get retrieves the device settings row
func (r *Repository) Get(ctx context.Context) (*models.DeviceSettings, error) {
	ctx, span := tracing.StartSpan(ctx, "setting.Repository.Get")
	defer span.End()

	query := `SELECT id, base_url, username, password, reference_date, updated_at FROM device_settings WHERE id = $1`
	var settings models.DeviceSettings
	if err := r.db.GetContext(ctx, &settings, query, settingsRowID); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, "device settings are not configured")
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get device settings")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get device settings")
	}

	return &settings, nil
}

// Upsert writes the device settings row, creating it on first save
func (r *Repository) Upsert(ctx context.Context, settings *models.DeviceSettings) (*models.DeviceSettings, error) {
	ctx, span := tracing.StartSpan(ctx, "setting.Repository.Upsert")
	defer span.End()

	settings.ID = settingsRowID
	settings.UpdatedAt = time.Now().UTC()

	ib := database.NewInsertBuilder()
	ib = ib.InsertInto("device_settings")
	ib = ib.Cols("id", "base_url", "username", "password", "reference_date", "updated_at")
	ib = ib.Values(settings.ID, settings.BaseURL, settings.Username, settings.Password, settings.ReferenceDate, settings.UpdatedAt)
	ub := ib.OnConflict("id")
	ub.Set(
		ub.Assign("base_url", database.Excluded("base_url")),
		ub.Assign("username", database.Excluded("username")),
		ub.Assign("password", database.Excluded("password")),
		ub.Assign("reference_date", database.Excluded("reference_date")),
		ub.Assign("updated_at", database.Excluded("updated_at")),
	)

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to upsert device settings")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to save device settings")
	}

	return settings, nil
}
