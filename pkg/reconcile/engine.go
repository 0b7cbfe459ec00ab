// Package reconcile computes which device enrollments have no HR employee
// and stages them for human review.
package reconcile

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Gobusters/ectologger"

	"github.com/ardhq/biosync/pkg/database"
	"github.com/ardhq/biosync/pkg/device"
	"github.com/ardhq/biosync/pkg/metrics"
	"github.com/ardhq/biosync/pkg/models"
	"github.com/ardhq/biosync/pkg/tracing"
)

// Collector fetches enrollments from the device service.
type Collector interface {
	FetchEmployees(ctx context.Context, session *device.Session) ([]device.Employee, error)
}

// EmployeeLister lists HR employees linked to a device enrollment.
type EmployeeLister interface {
	ListLinked(ctx context.Context) ([]models.HrEmployee, error)
}

// DiscoveryStore replaces the staged discovery snapshot.
type DiscoveryStore interface {
	Replace(ctx context.Context, records []*models.DiscoveryRecord) error
}

// MappingLister loads the department mapping reference table, used to
// pre-resolve mapped department and designation on staged records.
type MappingLister interface {
	List(ctx context.Context) ([]models.DepartmentMapping, error)
}

// Notifier announces a completed discovery run.
type Notifier interface {
	EmitDiscoveryCompleted(ctx context.Context, report models.DiscoveryReport)
}

// Engine runs employee discovery.
type Engine struct {
	collector Collector
	employees EmployeeLister
	staging   DiscoveryStore
	mappings  MappingLister
	notifier  Notifier
	logger    ectologger.Logger
}

func NewEngine(collector Collector, employees EmployeeLister, staging DiscoveryStore, mappings MappingLister, notifier Notifier, logger ectologger.Logger) *Engine {
	return &Engine{
		collector: collector,
		employees: employees,
		staging:   staging,
		mappings:  mappings,
		notifier:  notifier,
		logger:    logger,
	}
}

// Discover fetches every device enrollment, subtracts the enrollments
// already linked to an HR employee, and replaces the discovery snapshot
// with the remainder. A partial device fetch still stages what arrived,
// with the report marked incomplete.
func (e *Engine) Discover(ctx context.Context, session *device.Session) (models.DiscoveryReport, error) {
	ctx, span := tracing.StartSpan(ctx, "reconcile.Engine.Discover")
	defer span.End()

	report := models.DiscoveryReport{Complete: true}

	deviceEmployees, fetchErr := e.collector.FetchEmployees(ctx, session)
	if fetchErr != nil {
		if len(deviceEmployees) == 0 {
			return report, fetchErr
		}
		e.logger.WithContext(ctx).WithError(fetchErr).Warn("Device employee fetch incomplete, staging partial snapshot")
		report.Complete = false
	}
	report.DeviceCount = len(deviceEmployees)

	linked, err := e.employees.ListLinked(ctx)
	if err != nil {
		return report, err
	}

	report.LinkedCount = len(linked)

	linkedCodes := make(map[string]struct{}, len(linked))
	for _, emp := range linked {
		if emp.DeviceCode != "" {
			linkedCodes[emp.DeviceCode] = struct{}{}
		}
	}

	mappings := e.loadMappings(ctx)

	var records []*models.DiscoveryRecord
	seen := make(map[string]struct{})
	for _, emp := range deviceEmployees {
		code := emp.DeviceCode()
		if code == "" {
			continue
		}
		if _, linked := linkedCodes[code]; linked {
			continue
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}

		record := &models.DiscoveryRecord{
			DeviceCode:          code,
			DisplayName:         models.DisplayName(emp.FirstName, emp.LastName, code),
			FirstName:           emp.FirstName,
			LastName:            emp.LastName,
			CandidateDepartment: emp.Department.DeptName,
			CandidatePosition:   emp.PositionName(),
			Status:              models.DiscoveryStatusPending,
			Payload:             database.JSONB[json.RawMessage]{Data: emp.Raw},
		}
		if mapping, ok := mappings[record.CandidateDepartment]; ok {
			record.MappedDepartment = &mapping.HrDepartment
			record.MappedDesignation = mapping.DefaultDesignation
		}
		records = append(records, record)
	}
	report.MissingCount = len(records)

	if err := e.staging.Replace(ctx, records); err != nil {
		return report, err
	}

	metrics.DiscoveryRecordsStaged.Set(float64(report.MissingCount))

	report.Message = fmt.Sprintf("%d device enrollments: %d linked, %d staged for review", report.DeviceCount, report.LinkedCount, report.MissingCount)
	if !report.Complete {
		report.Message += " (device fetch incomplete)"
	}

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"device_count":  report.DeviceCount,
		"linked_count":  report.LinkedCount,
		"missing_count": report.MissingCount,
		"complete":      report.Complete,
	}).Info("Discovery run completed")

	if e.notifier != nil {
		e.notifier.EmitDiscoveryCompleted(ctx, report)
	}

	return report, nil
}

// loadMappings indexes the department mapping table by device department
// name. Mapping resolution is best-effort; a load failure stages records
// unmapped rather than failing the run.
func (e *Engine) loadMappings(ctx context.Context) map[string]models.DepartmentMapping {
	if e.mappings == nil {
		return nil
	}

	mappings, err := e.mappings.List(ctx)
	if err != nil {
		e.logger.WithContext(ctx).WithError(err).Warn("Failed to load department mappings, staging records unmapped")
		return nil
	}

	byDevice := make(map[string]models.DepartmentMapping, len(mappings))
	for _, mapping := range mappings {
		byDevice[mapping.DeviceDepartment] = mapping
	}
	return byDevice
}
