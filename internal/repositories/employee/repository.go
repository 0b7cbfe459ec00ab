package employee

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

var columns = []string{"id", "employee_number", "first_name", "last_name", "department", "position", "default_shift", "device_code", "active", "created_at", "updated_at"}

// Repository handles HR employee persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new employee repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new HR employee
func (r *Repository) Create(ctx context.Context, emp *models.HrEmployee) (*models.HrEmployee, error) {
	ctx, span := tracing.StartSpan(ctx, "employee.Repository.Create")
	defer span.End()

	if emp.ID == uuid.Nil {
		emp.ID = uuid.New()
	}
	emp.CreatedAt = time.Now().UTC()
	emp.UpdatedAt = emp.CreatedAt

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("employees")
	sb.Cols(columns...)
	sb.Values(emp.ID, emp.EmployeeNumber, emp.FirstName, emp.LastName, emp.Department, emp.Position, emp.DefaultShift, emp.DeviceCode, emp.Active, emp.CreatedAt, emp.UpdatedAt)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"employee_number": emp.EmployeeNumber}).Error("Failed to create employee")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create employee")
	}

	return emp, nil
}

// Get retrieves an employee by ID
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.HrEmployee, error) {
	ctx, span := tracing.StartSpan(ctx, "employee.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("employees")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var emp models.HrEmployee
	if err := r.db.GetContext(ctx, &emp, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("employee %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get employee")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get employee")
	}

	return &emp, nil
}

// GetByDeviceCode retrieves the employee linked to a device enrollment
func (r *Repository) GetByDeviceCode(ctx context.Context, deviceCode string) (*models.HrEmployee, error) {
	ctx, span := tracing.StartSpan(ctx, "employee.Repository.GetByDeviceCode")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("employees")
	sb.Where(sb.Equal("device_code", deviceCode))

	query, args := sb.Build()
	var emp models.HrEmployee
	if err := r.db.GetContext(ctx, &emp, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("no employee with device code %s", deviceCode))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get employee by device code")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get employee by device code")
	}

	return &emp, nil
}

// ListLinked retrieves employees with a device enrollment
func (r *Repository) ListLinked(ctx context.Context) ([]models.HrEmployee, error) {
	ctx, span := tracing.StartSpan(ctx, "employee.Repository.ListLinked")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("employees")
	sb.Where(sb.NotEqual("device_code", ""))
	sb.OrderBy("employee_number")

	query, args := sb.Build()
	var emps []models.HrEmployee
	if err := r.db.SelectContext(ctx, &emps, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list linked employees")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list linked employees")
	}

	return emps, nil
}

// ListUnlinked retrieves active employees without a device enrollment
func (r *Repository) ListUnlinked(ctx context.Context) ([]models.HrEmployee, error) {
	ctx, span := tracing.StartSpan(ctx, "employee.Repository.ListUnlinked")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("employees")
	sb.Where(
		sb.Equal("active", true),
		sb.Equal("device_code", ""),
	)
	sb.OrderBy("employee_number")

	query, args := sb.Build()
	var emps []models.HrEmployee
	if err := r.db.SelectContext(ctx, &emps, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list unlinked employees")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list unlinked employees")
	}

	return emps, nil
}

// SetDeviceCode records the enrollment code assigned by the device service
func (r *Repository) SetDeviceCode(ctx context.Context, employeeID string, deviceCode string) error {
	ctx, span := tracing.StartSpan(ctx, "employee.Repository.SetDeviceCode")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("employees")
	sb.Set(
		sb.Assign("device_code", deviceCode),
		sb.Assign("updated_at", time.Now().UTC()),
	)
	sb.Where(sb.Equal("id", employeeID))

	query, args := sb.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"employee_id": employeeID}).Error("Failed to set device code")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to set device code")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("employee %s not found", employeeID))
	}

	return nil
}

// ListDepartments retrieves the distinct HR department names in use
func (r *Repository) ListDepartments(ctx context.Context) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "employee.Repository.ListDepartments")
	defer span.End()

	query := `SELECT DISTINCT department FROM employees WHERE department != '' ORDER BY department`
	var departments []string
	if err := r.db.SelectContext(ctx, &departments, query); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list departments")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list departments")
	}

	return departments, nil
}

// ExistsByDeviceCode reports whether any employee is linked to the code
func (r *Repository) ExistsByDeviceCode(ctx context.Context, deviceCode string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "employee.Repository.ExistsByDeviceCode")
	defer span.End()

	query := `SELECT EXISTS(SELECT 1 FROM employees WHERE device_code = $1)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, deviceCode); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to check employee existence by device code")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to check employee existence")
	}

	return exists, nil
}
