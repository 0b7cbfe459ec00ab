package checkin

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/ardhq/biosync/pkg/database"
	"github.com/ardhq/biosync/pkg/models"
	"github.com/ardhq/biosync/pkg/tracing"
)

var columns = []string{"id", "employee_id", "device_code", "transaction_id", "punch_time", "direction", "created_at"}

// Repository handles attendance record persistence. The table is
// append-only; there is deliberately no update or delete.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new checkin repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// ExistsByTransactionID reports whether a punch event was already ingested
func (r *Repository) ExistsByTransactionID(ctx context.Context, transactionID string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "checkin.Repository.ExistsByTransactionID")
	defer span.End()

	query := `SELECT EXISTS(SELECT 1 FROM attendance_records WHERE transaction_id = $1)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, transactionID); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to check attendance record existence")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to check attendance record existence")
	}

	return exists, nil
}

// Create creates a new attendance record. The unique transaction_id
// constraint backs up the pre-insert existence check.
func (r *Repository) Create(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "checkin.Repository.Create")
	defer span.End()

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	record.CreatedAt = time.Now().UTC()

	ib := database.NewInsertBuilder()
	ib = ib.InsertInto("attendance_records")
	ib = ib.Cols(columns...)
	ib = ib.Values(record.ID, record.EmployeeID, record.DeviceCode, record.TransactionID, record.PunchTime, record.Direction, record.CreatedAt)

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"transaction_id": record.TransactionID}).Error("Failed to create attendance record")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create attendance record")
	}

	return record, nil
}

// ListByEmployee retrieves attendance records for one employee, newest first
func (r *Repository) ListByEmployee(ctx context.Context, employeeID uuid.UUID, limit int) ([]models.AttendanceRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "checkin.Repository.ListByEmployee")
	defer span.End()

	if limit < 1 || limit > 500 {
		limit = 100
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("attendance_records")
	sb.Where(sb.Equal("employee_id", employeeID))
	sb.OrderBy("punch_time DESC")
	sb.Limit(limit)

	query, args := sb.Build()
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list attendance records")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list attendance records")
	}

	return records, nil
}

// ListByWindow retrieves attendance records inside a time window
func (r *Repository) ListByWindow(ctx context.Context, start, end time.Time) ([]models.AttendanceRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "checkin.Repository.ListByWindow")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("attendance_records")
	sb.Where(
		sb.GreaterEqualThan("punch_time", start),
		sb.LessThan("punch_time", end),
	)
	sb.OrderBy("punch_time")

	query, args := sb.Build()
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list attendance records by window")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list attendance records")
	}

	return records, nil
}
