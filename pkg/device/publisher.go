package device

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/Gobusters/ectologger"

	"github.com/ardhq/biosync/pkg/httpclient"
	"github.com/ardhq/biosync/pkg/metrics"
	"github.com/ardhq/biosync/pkg/models"
	"github.com/ardhq/biosync/pkg/tracing"
)

// Area names that must not be assigned to new enrollments. Both the
// accented and plain spellings appear on real devices.
var restrictedAreaNames = map[string]struct{}{
	"pas autorisé": {},
	"pas autorise": {},
	"unauthorized": {},
	"restricted":   {},
}

// MappingLookup resolves a device department for an HR department.
type MappingLookup interface {
	GetByHrDepartment(ctx context.Context, hrDepartment string) (*models.DepartmentMapping, error)
}

// CodeWriter records the device code assigned to an HR employee.
type CodeWriter interface {
	SetDeviceCode(ctx context.Context, employeeID string, deviceCode string) error
}

// Publisher pushes HR employees to the device service and writes the
// assigned enrollment code back. Each employee is isolated; one failure
// never stops the batch.
type Publisher struct {
	http          *httpclient.Client
	logger        ectologger.Logger
	mappings      MappingLookup
	employees     CodeWriter
	defaultAreaID int
	defaultDeptID int
}

func NewPublisher(client *httpclient.Client, logger ectologger.Logger, mappings MappingLookup, employees CodeWriter, defaultAreaID, defaultDeptID int) *Publisher {
	return &Publisher{
		http:          client,
		logger:        logger,
		mappings:      mappings,
		employees:     employees,
		defaultAreaID: defaultAreaID,
		defaultDeptID: defaultDeptID,
	}
}

// SelectAreaID picks the first area that is not restricted, then the first
// area at all, then the default.
func SelectAreaID(areas []Area, defaultID int) int {
	for _, area := range areas {
		name := strings.ToLower(strings.TrimSpace(area.AreaName))
		if _, restricted := restrictedAreaNames[name]; !restricted {
			return area.ID
		}
	}
	if len(areas) > 0 {
		return areas[0].ID
	}
	return defaultID
}

// resolveDepartmentID consults the department mapping for the employee's HR
// department. The device API exposes no department lookup by name, so even a
// mapped department resolves to the default id for now.
func (p *Publisher) resolveDepartmentID(ctx context.Context, hrDepartment string) int {
	if hrDepartment == "" || p.mappings == nil {
		return p.defaultDeptID
	}

	mapping, err := p.mappings.GetByHrDepartment(ctx, hrDepartment)
	if err != nil || mapping == nil {
		p.logger.WithContext(ctx).WithFields(map[string]any{"hr_department": hrDepartment}).Debug("No department mapping, using default department")
	}

	return p.defaultDeptID
}

// publishPayload is the employee create request. The device expects a
// numeric position id and there is no designation lookup to resolve one,
// so no position field is ever sent.
type publishPayload struct {
	EmpCode    string `json:"emp_code"`
	Department int    `json:"department"`
	Area       []int  `json:"area"`
	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
}

type publishResponse struct {
	ID      int    `json:"id"`
	EmpCode string `json:"emp_code"`
}

// PublishEmployee pushes one HR employee to the device service and records
// the enrollment code the device assigned.
func (p *Publisher) PublishEmployee(ctx context.Context, session *Session, areas []Area, emp models.HrEmployee) models.PublishResult {
	ctx, span := tracing.StartSpan(ctx, "device.Publisher.PublishEmployee")
	defer span.End()

	result := models.PublishResult{EmployeeID: emp.ID}

	payload := publishPayload{
		EmpCode:    emp.EmployeeNumber,
		Department: p.resolveDepartmentID(ctx, emp.Department),
		Area:       []int{SelectAreaID(areas, p.defaultAreaID)},
		FirstName:  emp.FirstName,
		LastName:   emp.LastName,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		result.Status = models.PublishStatusFailed
		result.Message = "failed to encode employee payload"
		return result
	}

	resp, err := p.http.Post(ctx, session.BaseURL()+"/personnel/api/employees/", session.Headers(), body)
	if err != nil {
		p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"employee_id": emp.ID}).Error("Failed to publish employee to device service")
		result.Status = models.PublishStatusFailed
		result.Message = "device service request failed"
		return result
	}

	if !resp.IsSuccess() {
		p.logger.WithContext(ctx).WithFields(map[string]any{
			"employee_id": emp.ID,
			"status":      resp.StatusCode,
			"body":        string(resp.Body),
		}).Error("Device service rejected employee")
		result.Status = models.PublishStatusFailed
		result.Message = "device service rejected employee: status " + strconv.Itoa(resp.StatusCode)
		return result
	}

	var created publishResponse
	if err := json.Unmarshal(resp.Body, &created); err != nil {
		result.Status = models.PublishStatusFailed
		result.Message = "device service returned an unreadable response"
		return result
	}

	deviceCode := created.EmpCode
	if deviceCode == "" && created.ID != 0 {
		deviceCode = strconv.Itoa(created.ID)
	}
	if deviceCode == "" {
		result.Status = models.PublishStatusFailed
		result.Message = "device service response had no emp_code or id"
		return result
	}

	if err := p.employees.SetDeviceCode(ctx, emp.ID.String(), deviceCode); err != nil {
		p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"employee_id": emp.ID,
			"device_code": deviceCode,
		}).Error("Published employee but failed to record device code")
		result.Status = models.PublishStatusFailed
		result.Message = "published to device but failed to record device code"
		return result
	}

	result.Status = models.PublishStatusPublished
	result.DeviceCode = deviceCode
	return result
}

// PublishAll pushes every given employee, isolating per-employee failures.
func (p *Publisher) PublishAll(ctx context.Context, session *Session, areas []Area, emps []models.HrEmployee) models.PublishReport {
	ctx, span := tracing.StartSpan(ctx, "device.Publisher.PublishAll")
	defer span.End()

	report := models.PublishReport{Total: len(emps)}

	for _, emp := range emps {
		result := p.PublishEmployee(ctx, session, areas, emp)
		report.Results = append(report.Results, result)

		metrics.EmployeesPublished.WithLabelValues(result.Status).Inc()
		if result.Status == models.PublishStatusPublished {
			report.Published++
		} else {
			report.Failed++
		}
	}

	report.Message = "published " + strconv.Itoa(report.Published) + " of " + strconv.Itoa(report.Total) + " employees (" + strconv.Itoa(report.Failed) + " failed)"
	return report
}
