package departmentmapping

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

var columns = []string{"id", "device_department", "hr_department", "default_designation", "default_shift", "created_at", "updated_at"}

// Repository handles department mapping persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new department mapping repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new mapping. device_department is unique.
func (r *Repository) Create(ctx context.Context, mapping *models.DepartmentMapping) (*models.DepartmentMapping, error) {
	ctx, span := tracing.StartSpan(ctx, "departmentmapping.Repository.Create")
	defer span.End()

	if mapping.ID == uuid.Nil {
		mapping.ID = uuid.New()
	}
	mapping.CreatedAt = time.Now().UTC()
	mapping.UpdatedAt = mapping.CreatedAt

	ib := database.NewInsertBuilder()
	ib = ib.InsertInto("department_mappings")
	ib = ib.Cols(columns...)
	ib = ib.Values(mapping.ID, mapping.DeviceDepartment, mapping.HrDepartment, mapping.DefaultDesignation, mapping.DefaultShift, mapping.CreatedAt, mapping.UpdatedAt)
	ub := ib.OnConflict("device_department")
	ub.Set(
		ub.Assign("hr_department", mapping.HrDepartment),
		ub.Assign("default_designation", mapping.DefaultDesignation),
		ub.Assign("default_shift", mapping.DefaultShift),
		ub.Assign("updated_at", mapping.UpdatedAt),
	)

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"device_department": mapping.DeviceDepartment}).Error("Failed to create department mapping")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create department mapping")
	}

	return mapping, nil
}

// List retrieves all mappings
func (r *Repository) List(ctx context.Context) ([]models.DepartmentMapping, error) {
	ctx, span := tracing.StartSpan(ctx, "departmentmapping.Repository.List")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("department_mappings")
	sb.OrderBy("device_department")

	query, args := sb.Build()
	var mappings []models.DepartmentMapping
	if err := r.db.SelectContext(ctx, &mappings, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list department mappings")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list department mappings")
	}

	return mappings, nil
}

// GetByDeviceDepartment retrieves the mapping for a device department name
func (r *Repository) GetByDeviceDepartment(ctx context.Context, deviceDepartment string) (*models.DepartmentMapping, error) {
	ctx, span := tracing.StartSpan(ctx, "departmentmapping.Repository.GetByDeviceDepartment")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("department_mappings")
	sb.Where(sb.Equal("device_department", deviceDepartment))

	query, args := sb.Build()
	var mapping models.DepartmentMapping
	if err := r.db.GetContext(ctx, &mapping, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("no mapping for device department %q", deviceDepartment))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get department mapping")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get department mapping")
	}

	return &mapping, nil
}

// GetByHrDepartment retrieves the mapping for an HR department name
func (r *Repository) GetByHrDepartment(ctx context.Context, hrDepartment string) (*models.DepartmentMapping, error) {
	ctx, span := tracing.StartSpan(ctx, "departmentmapping.Repository.GetByHrDepartment")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("department_mappings")
	sb.Where(sb.Equal("hr_department", hrDepartment))
	sb.Limit(1)

	query, args := sb.Build()
	var mapping models.DepartmentMapping
	if err := r.db.GetContext(ctx, &mapping, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("no mapping for HR department %q", hrDepartment))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get department mapping by HR department")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get department mapping")
	}

	return &mapping, nil
}

// Delete removes a mapping
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "departmentmapping.Repository.Delete")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	sb.DeleteFrom("department_mappings")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete department mapping")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete department mapping")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("department mapping %s not found", id))
	}

	return nil
}
