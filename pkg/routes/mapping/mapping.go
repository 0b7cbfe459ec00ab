// Package mapping exposes department mapping CRUD and the auto-map helper.
package mapping

import (
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/ardhq/biosync/internal/repositories/departmentmapping"
	"github.com/ardhq/biosync/internal/repositories/employee"
	"github.com/ardhq/biosync/pkg/models"
	"github.com/ardhq/biosync/pkg/routes/base"
)

type Handler struct {
	mappings  *departmentmapping.Repository
	employees *employee.Repository
	logger    ectologger.Logger
}

func NewHandler(mappings *departmentmapping.Repository, employees *employee.Repository, logger ectologger.Logger) *Handler {
	return &Handler{
		mappings:  mappings,
		employees: employees,
		logger:    logger,
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/mappings", h.List)
	g.POST("/mappings", h.Create)
	g.DELETE("/mappings/:id", h.Delete)
	g.POST("/mappings/suggest", h.Suggest)
}

// List returns all department mappings.
func (h *Handler) List(c echo.Context) error {
	mappings, err := h.mappings.List(c.Request().Context())
	if err != nil {
		return err
	}
	return base.SuccessResponse(c, mappings)
}

type createRequest struct {
	DeviceDepartment   string  `json:"device_department" validate:"required"`
	HrDepartment       string  `json:"hr_department" validate:"required"`
	DefaultDesignation *string `json:"default_designation"`
	DefaultShift       *string `json:"default_shift"`
}

// Create creates or updates the mapping for a device department.
func (h *Handler) Create(c echo.Context) error {
	var req createRequest
	if err := base.BindAndValidate(c, &req); err != nil {
		return err
	}

	mapping, err := h.mappings.Create(c.Request().Context(), &models.DepartmentMapping{
		DeviceDepartment:   req.DeviceDepartment,
		HrDepartment:       req.HrDepartment,
		DefaultDesignation: req.DefaultDesignation,
		DefaultShift:       req.DefaultShift,
	})
	if err != nil {
		return err
	}

	return base.CreatedResponse(c, mapping)
}

// Delete removes a mapping.
func (h *Handler) Delete(c echo.Context) error {
	id, err := base.ParseUUID(c, "id")
	if err != nil {
		return err
	}

	if err := h.mappings.Delete(c.Request().Context(), id); err != nil {
		return err
	}

	return base.NoContentResponse(c)
}

type suggestRequest struct {
	DeviceDepartment string `json:"device_department" validate:"required"`
}

type suggestResponse struct {
	DeviceDepartment string `json:"device_department"`
	HrDepartment     string `json:"hr_department"`
	Matched          bool   `json:"matched"`
}

// Suggest proposes an HR department for a device department name by
// substring containment against the departments in use.
func (h *Handler) Suggest(c echo.Context) error {
	var req suggestRequest
	if err := base.BindAndValidate(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	departments, err := h.employees.ListDepartments(ctx)
	if err != nil {
		return err
	}

	match := departmentmapping.SuggestHrDepartment(req.DeviceDepartment, departments)

	return base.SuccessResponse(c, suggestResponse{
		DeviceDepartment: req.DeviceDepartment,
		HrDepartment:     match,
		Matched:          match != "",
	})
}
