package discovery

import (
	"context"
	"fmt"
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

var columns = []string{"id", "device_code", "display_name", "first_name", "last_name", "candidate_department", "candidate_position", "mapped_department", "mapped_designation", "status", "payload", "validated_by", "validated_at", "created_at", "updated_at"}

// Repository handles discovery record persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new discovery repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Replace swaps the staged snapshot wholesale: every existing record is
// deleted and the new batch inserted in one transaction, so reviewers always
// see the latest discovery run. In-flight review state does not survive a
// re-run.
func (r *Repository) Replace(ctx context.Context, records []*models.DiscoveryRecord) error {
	ctx, span := tracing.StartSpan(ctx, "discovery.Repository.Replace")
	defer span.End()

	txCtx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to begin discovery replace")
	}

	if _, err := tx.ExecContext(txCtx, `DELETE FROM discovery_records`); err != nil {
		_ = tx.Rollback(ctx)
		r.logger.WithContext(ctx).WithError(err).Error("Failed to clear discovery records")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to clear discovery records")
	}

	if len(records) > 0 {
		now := time.Now().UTC()
		sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
		sb.InsertInto("discovery_records")
		sb.Cols(columns...)

		for _, record := range records {
			if record.ID == uuid.Nil {
				record.ID = uuid.New()
			}
			if record.Status == "" {
				record.Status = models.DiscoveryStatusPending
			}
			record.CreatedAt = now
			record.UpdatedAt = now
			sb.Values(record.ID, record.DeviceCode, record.DisplayName, record.FirstName, record.LastName, record.CandidateDepartment, record.CandidatePosition, record.MappedDepartment, record.MappedDesignation, record.Status, record.Payload, record.ValidatedBy, record.ValidatedAt, record.CreatedAt, record.UpdatedAt)
		}

		query, args := sb.Build()
		if _, err := tx.ExecContext(txCtx, query, args...); err != nil {
			_ = tx.Rollback(ctx)
			r.logger.WithContext(ctx).WithError(err).Error("Failed to stage discovery records")
			return httperror.NewHTTPError(http.StatusInternalServerError, "failed to stage discovery records")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to commit discovery replace")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"count": len(records)}).Debug("Replaced discovery snapshot")
	return nil
}

// Get retrieves a discovery record by ID
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.DiscoveryRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "discovery.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("discovery_records")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var record models.DiscoveryRecord
	if err := r.db.GetContext(ctx, &record, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("discovery record %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get discovery record")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get discovery record")
	}

	return &record, nil
}

// List retrieves discovery records, optionally filtered by status
func (r *Repository) List(ctx context.Context, status string) ([]models.DiscoveryRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "discovery.Repository.List")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("discovery_records")
	if status != "" {
		sb.Where(sb.Equal("status", status))
	}
	sb.OrderBy("display_name")

	query, args := sb.Build()
	var records []models.DiscoveryRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list discovery records")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list discovery records")
	}

	return records, nil
}

// UpdateStatus moves records to validated or rejected, recording the
// reviewer and timestamp
func (r *Repository) UpdateStatus(ctx context.Context, ids []uuid.UUID, status string, validatedBy string) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "discovery.Repository.UpdateStatus")
	defer span.End()

	if len(ids) == 0 {
		return 0, nil
	}
	if status != models.DiscoveryStatusValidated && status != models.DiscoveryStatusRejected {
		return 0, httperror.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid discovery status %q", status))
	}

	now := time.Now().UTC()
	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("discovery_records")
	sb.Set(
		sb.Assign("status", status),
		sb.Assign("validated_by", validatedBy),
		sb.Assign("validated_at", now),
		sb.Assign("updated_at", now),
	)
	sb.Where(
		sb.In("id", idsToAny(ids)...),
		sb.Equal("status", models.DiscoveryStatusPending),
	)

	query, args := sb.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to update discovery record status")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to update discovery record status")
	}

	rows, _ := result.RowsAffected()
	return int(rows), nil
}

// MarkCreated marks a validated record as turned into an HR employee
func (r *Repository) MarkCreated(ctx context.Context, id uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "discovery.Repository.MarkCreated")
	defer span.End()

	now := time.Now().UTC()
	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("discovery_records")
	sb.Set(
		sb.Assign("status", models.DiscoveryStatusCreated),
		sb.Assign("updated_at", now),
	)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("status", models.DiscoveryStatusValidated),
	)

	query, args := sb.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to mark discovery record created")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to mark discovery record created")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusConflict, fmt.Sprintf("discovery record %s is not validated", id))
	}

	return nil
}

func idsToAny(ids []uuid.UUID) []any {
	result := make([]any, len(ids))
	for i, id := range ids {
		result[i] = id
	}
	return result
}
