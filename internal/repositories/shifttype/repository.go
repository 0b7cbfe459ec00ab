package shifttype

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/ardhq/biosync/pkg/database"
	"github.com/ardhq/biosync/pkg/models"
	"github.com/ardhq/biosync/pkg/tracing"
)

var columns = []string{"id", "name", "auto_attendance", "last_sync_at", "created_at", "updated_at"}

// Repository handles shift type persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new shift type repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// ListAutoAttendance retrieves shift types with auto attendance enabled
func (r *Repository) ListAutoAttendance(ctx context.Context) ([]models.ShiftType, error) {
	ctx, span := tracing.StartSpan(ctx, "shifttype.Repository.ListAutoAttendance")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("shift_types")
	sb.Where(sb.Equal("auto_attendance", true))
	sb.OrderBy("name")

	query, args := sb.Build()
	var shifts []models.ShiftType
	if err := r.db.SelectContext(ctx, &shifts, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list auto attendance shift types")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list shift types")
	}

	return shifts, nil
}

// TouchLastSync stamps last_sync_at on every auto attendance shift type so
// downstream attendance calculation picks up the new punches.
func (r *Repository) TouchLastSync(ctx context.Context, syncedAt time.Time) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "shifttype.Repository.TouchLastSync")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("shift_types")
	sb.Set(
		sb.Assign("last_sync_at", syncedAt),
		sb.Assign("updated_at", time.Now().UTC()),
	)
	sb.Where(sb.Equal("auto_attendance", true))

	query, args := sb.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to touch shift type last sync")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to touch shift type last sync")
	}

	rows, _ := result.RowsAffected()
	return int(rows), nil
}
