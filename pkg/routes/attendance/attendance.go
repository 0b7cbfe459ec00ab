// Package attendance exposes the read surface over ingested punch data:
// employee lookups, per-employee attendance history, windowed queries, and
// the shift types driven by ingestion.
package attendance

import (
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/ardhq/biosync/internal/repositories/checkin"
	"github.com/ardhq/biosync/internal/repositories/employee"
	"github.com/ardhq/biosync/internal/repositories/shifttype"
	"github.com/ardhq/biosync/pkg/routes/base"
)

const dateLayout = "2006-01-02"

type Handler struct {
	employees *employee.Repository
	checkins  *checkin.Repository
	shifts    *shifttype.Repository
	logger    ectologger.Logger
}

func NewHandler(employees *employee.Repository, checkins *checkin.Repository, shifts *shifttype.Repository, logger ectologger.Logger) *Handler {
	return &Handler{
		employees: employees,
		checkins:  checkins,
		shifts:    shifts,
		logger:    logger,
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/employees/:id", h.GetEmployee)
	g.GET("/employees/:id/attendance", h.ListEmployeeAttendance)
	g.GET("/attendance", h.ListAttendance)
	g.GET("/shift-types", h.ListShiftTypes)
}

// GetEmployee returns one HR employee.
func (h *Handler) GetEmployee(c echo.Context) error {
	id, err := base.ParseUUID(c, "id")
	if err != nil {
		return err
	}

	emp, err := h.employees.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return base.SuccessResponse(c, emp)
}

// ListEmployeeAttendance returns an employee's attendance records, newest
// first.
func (h *Handler) ListEmployeeAttendance(c echo.Context) error {
	id, err := base.ParseUUID(c, "id")
	if err != nil {
		return err
	}

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil {
			return base.BadRequest("limit must be an integer")
		}
	}

	records, err := h.checkins.ListByEmployee(c.Request().Context(), id, limit)
	if err != nil {
		return err
	}
	return base.SuccessResponse(c, records)
}

// ListAttendance returns attendance records inside a date window
// (start inclusive, end exclusive).
func (h *Handler) ListAttendance(c echo.Context) error {
	start, err := time.Parse(dateLayout, c.QueryParam("start"))
	if err != nil {
		return base.BadRequest("start must be formatted YYYY-MM-DD")
	}
	end, err := time.Parse(dateLayout, c.QueryParam("end"))
	if err != nil {
		return base.BadRequest("end must be formatted YYYY-MM-DD")
	}
	if !end.After(start) {
		return base.BadRequest("end must be after start")
	}

	records, err := h.checkins.ListByWindow(c.Request().Context(), start, end)
	if err != nil {
		return err
	}
	return base.SuccessResponse(c, records)
}

// ListShiftTypes returns the shift types with auto attendance enabled.
func (h *Handler) ListShiftTypes(c echo.Context) error {
	shifts, err := h.shifts.ListAutoAttendance(c.Request().Context())
	if err != nil {
		return err
	}
	return base.SuccessResponse(c, shifts)
}
