// Package discovery exposes the review surface for staged device
// enrollments: list, validate, reject, and create HR employees from
// validated records.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	appctx "github.com/ardhq/biosync/pkg/context"
	"github.com/ardhq/biosync/pkg/device"
	"github.com/ardhq/biosync/pkg/models"
	"github.com/ardhq/biosync/pkg/routes/base"
)

// DiscoveryStore reads and updates staged discovery records.
type DiscoveryStore interface {
	Get(ctx context.Context, id uuid.UUID) (*models.DiscoveryRecord, error)
	List(ctx context.Context, status string) ([]models.DiscoveryRecord, error)
	UpdateStatus(ctx context.Context, ids []uuid.UUID, status string, validatedBy string) (int, error)
	MarkCreated(ctx context.Context, id uuid.UUID) error
}

// EmployeeStore creates HR employees from validated records.
type EmployeeStore interface {
	Create(ctx context.Context, emp *models.HrEmployee) (*models.HrEmployee, error)
	ExistsByDeviceCode(ctx context.Context, deviceCode string) (bool, error)
}

// MappingLookup resolves a device department to its HR mapping.
type MappingLookup interface {
	GetByDeviceDepartment(ctx context.Context, deviceDepartment string) (*models.DepartmentMapping, error)
}

type Handler struct {
	discoveries DiscoveryStore
	employees   EmployeeStore
	mappings    MappingLookup
	logger      ectologger.Logger
}

func NewHandler(discoveries DiscoveryStore, employees EmployeeStore, mappings MappingLookup, logger ectologger.Logger) *Handler {
	return &Handler{
		discoveries: discoveries,
		employees:   employees,
		mappings:    mappings,
		logger:      logger,
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/discovery", h.List)
	g.POST("/discovery/validate", h.Validate)
	g.POST("/discovery/reject", h.Reject)
	g.POST("/discovery/create", h.CreateEmployees)
	g.POST("/discovery/:id/create", h.CreateEmployee)
}

// List returns discovery records, optionally filtered by status.
func (h *Handler) List(c echo.Context) error {
	status := c.QueryParam("status")
	records, err := h.discoveries.List(c.Request().Context(), status)
	if err != nil {
		return err
	}
	return base.SuccessResponse(c, records)
}

type reviewRequest struct {
	IDs []uuid.UUID `json:"ids" validate:"required,min=1"`
}

type reviewResponse struct {
	Updated int    `json:"updated"`
	Message string `json:"message"`
}

func (h *Handler) review(c echo.Context, status string) error {
	var req reviewRequest
	if err := base.BindAndValidate(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	reviewer := appctx.GetUserID(ctx)

	updated, err := h.discoveries.UpdateStatus(ctx, req.IDs, status, reviewer)
	if err != nil {
		return err
	}

	return base.SuccessResponse(c, reviewResponse{
		Updated: updated,
		Message: fmt.Sprintf("%d of %d records marked %s", updated, len(req.IDs), status),
	})
}

// Validate marks pending records as validated.
func (h *Handler) Validate(c echo.Context) error {
	return h.review(c, models.DiscoveryStatusValidated)
}

// Reject marks pending records as rejected.
func (h *Handler) Reject(c echo.Context) error {
	return h.review(c, models.DiscoveryStatusRejected)
}

// CreateEmployee turns one validated discovery record into an HR employee.
func (h *Handler) CreateEmployee(c echo.Context) error {
	id, err := base.ParseUUID(c, "id")
	if err != nil {
		return err
	}

	created, err := h.createFromRecord(c.Request().Context(), id)
	if err != nil {
		return err
	}

	return base.CreatedResponse(c, created)
}

type createResult struct {
	ID         uuid.UUID  `json:"id"`
	EmployeeID *uuid.UUID `json:"employee_id,omitempty"`
	Status     string     `json:"status"`
	Message    string     `json:"message,omitempty"`
}

type createResponse struct {
	Created int            `json:"created"`
	Failed  int            `json:"failed"`
	Results []createResult `json:"results"`
	Message string         `json:"message"`
}

// CreateEmployees turns a batch of validated discovery records into HR
// employees. Each record is isolated; one failure never stops the batch.
func (h *Handler) CreateEmployees(c echo.Context) error {
	var req reviewRequest
	if err := base.BindAndValidate(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	resp := createResponse{Results: make([]createResult, 0, len(req.IDs))}

	for _, id := range req.IDs {
		created, err := h.createFromRecord(ctx, id)
		if err != nil {
			resp.Failed++
			resp.Results = append(resp.Results, createResult{ID: id, Status: "failed", Message: err.Error()})
			continue
		}
		resp.Created++
		resp.Results = append(resp.Results, createResult{ID: id, EmployeeID: &created.ID, Status: "created"})
	}

	resp.Message = fmt.Sprintf("created %d of %d employees (%d failed)", resp.Created, len(req.IDs), resp.Failed)
	return base.SuccessResponse(c, resp)
}

// createFromRecord builds an HR employee from a validated discovery record.
// The staged device payload supplies the name; department, designation and
// default shift come from the pre-resolved mapped fields, falling back to
// the department mapping table and finally the raw device values.
func (h *Handler) createFromRecord(ctx context.Context, id uuid.UUID) (*models.HrEmployee, error) {
	record, err := h.discoveries.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.Status != models.DiscoveryStatusValidated {
		return nil, base.Conflict(fmt.Sprintf("discovery record %s must be validated before creating an employee", id))
	}

	linked, err := h.employees.ExistsByDeviceCode(ctx, record.DeviceCode)
	if err != nil {
		return nil, err
	}
	if linked {
		return nil, base.Conflict(fmt.Sprintf("device code %s is already linked to an employee", record.DeviceCode))
	}

	var staged device.Employee
	if len(record.Payload.Data) > 0 {
		if err := json.Unmarshal(record.Payload.Data, &staged); err != nil {
			h.logger.WithContext(ctx).WithError(err).Warn("Discovery payload is not a readable employee record")
		}
	}

	deviceDepartment := record.CandidateDepartment
	if deviceDepartment == "" {
		deviceDepartment = staged.Department.DeptName
	}

	department := deviceDepartment
	designation := record.MappedDesignation
	var defaultShift *string

	if record.MappedDepartment != nil {
		department = *record.MappedDepartment
	}

	if deviceDepartment != "" && h.mappings != nil {
		if mapping, err := h.mappings.GetByDeviceDepartment(ctx, deviceDepartment); err == nil {
			if record.MappedDepartment == nil {
				department = mapping.HrDepartment
			}
			if designation == nil {
				designation = mapping.DefaultDesignation
			}
			defaultShift = mapping.DefaultShift
		}
	}

	if designation == nil {
		if position := record.CandidatePosition; position != "" {
			designation = &position
		} else if name := staged.PositionName(); name != "" {
			designation = &name
		}
	}

	firstName := record.FirstName
	if firstName == "" {
		firstName = staged.FirstName
	}
	lastName := record.LastName
	if lastName == "" {
		lastName = staged.LastName
	}

	emp := &models.HrEmployee{
		EmployeeNumber: record.DeviceCode,
		FirstName:      firstName,
		LastName:       lastName,
		Department:     department,
		Position:       designation,
		DefaultShift:   defaultShift,
		DeviceCode:     record.DeviceCode,
		Active:         true,
	}

	created, err := h.employees.Create(ctx, emp)
	if err != nil {
		return nil, err
	}

	if err := h.discoveries.MarkCreated(ctx, id); err != nil {
		return nil, err
	}

	return created, nil
}
