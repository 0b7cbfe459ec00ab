package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardhq/biosync/pkg/device"
	"github.com/ardhq/biosync/pkg/models"
)

type fakeCollector struct {
	employees []device.Employee
	err       error
}

func (f *fakeCollector) FetchEmployees(ctx context.Context, session *device.Session) ([]device.Employee, error) {
	return f.employees, f.err
}

type fakeLister struct {
	linked []models.HrEmployee
	err    error
}

func (f *fakeLister) ListLinked(ctx context.Context) ([]models.HrEmployee, error) {
	return f.linked, f.err
}

type fakeStaging struct {
	replaced []*models.DiscoveryRecord
	err      error
}

func (f *fakeStaging) Replace(ctx context.Context, records []*models.DiscoveryRecord) error {
	f.replaced = records
	return f.err
}

type fakeMappings struct {
	mappings []models.DepartmentMapping
	err      error
}

func (f *fakeMappings) List(ctx context.Context) ([]models.DepartmentMapping, error) {
	return f.mappings, f.err
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func deviceEmployee(id int, empCode, firstName, lastName string) device.Employee {
	emp := device.Employee{ID: id, EmpCode: empCode, FirstName: firstName, LastName: lastName}
	emp.Raw = json.RawMessage(fmt.Sprintf(`{"id": %d, "emp_code": %q}`, id, empCode))
	return emp
}

func TestDiscover_StagesUnlinkedEnrollments(t *testing.T) {
	collector := &fakeCollector{employees: []device.Employee{
		deviceEmployee(1, "42", "Ada", "Lovelace"),
		deviceEmployee(2, "43", "Grace", "Hopper"),
		deviceEmployee(3, "44", "", ""),
	}}
	lister := &fakeLister{linked: []models.HrEmployee{{DeviceCode: "42"}}}
	staging := &fakeStaging{}

	engine := NewEngine(collector, lister, staging, nil, nil, testLogger())

	report, err := engine.Discover(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 3, report.DeviceCount)
	assert.Equal(t, 1, report.LinkedCount)
	assert.Equal(t, 2, report.MissingCount)
	assert.True(t, report.Complete)
	assert.Equal(t, "3 device enrollments: 1 linked, 2 staged for review", report.Message)

	require.Len(t, staging.replaced, 2)
	assert.Equal(t, "43", staging.replaced[0].DeviceCode)
	assert.Equal(t, "Grace Hopper", staging.replaced[0].DisplayName)
	assert.Equal(t, models.DiscoveryStatusPending, staging.replaced[0].Status)
	assert.JSONEq(t, `{"id": 2, "emp_code": "43"}`, string(staging.replaced[0].Payload.Data))

	// nameless enrollment gets a code-derived label
	assert.Equal(t, "Employee 44", staging.replaced[1].DisplayName)
}

func TestDiscover_ReportsAllLinkedEmployees(t *testing.T) {
	collector := &fakeCollector{employees: []device.Employee{
		deviceEmployee(1, "42", "Ada", "Lovelace"),
		deviceEmployee(2, "43", "Grace", "Hopper"),
	}}
	// one linked employee matches this fetch, one does not; both count
	lister := &fakeLister{linked: []models.HrEmployee{{DeviceCode: "42"}, {DeviceCode: "50"}}}
	staging := &fakeStaging{}

	engine := NewEngine(collector, lister, staging, nil, nil, testLogger())

	report, err := engine.Discover(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 2, report.LinkedCount)
	assert.Equal(t, 1, report.MissingCount)
	assert.Equal(t, "2 device enrollments: 2 linked, 1 staged for review", report.Message)
}

func TestDiscover_AutoMapsDepartments(t *testing.T) {
	welder := device.Employee{
		ID:         1,
		EmpCode:    "42",
		FirstName:  "Ada",
		LastName:   "Lovelace",
		Department: device.Department{ID: 3, DeptName: "Atelier"},
		Position:   &device.Position{ID: 5, PositionName: "Soudeur"},
	}
	welder.Raw = json.RawMessage(`{"id": 1, "emp_code": "42"}`)
	clerk := deviceEmployee(2, "43", "Grace", "Hopper")

	designation := "Operator"
	mappings := &fakeMappings{mappings: []models.DepartmentMapping{
		{DeviceDepartment: "Atelier", HrDepartment: "Production", DefaultDesignation: &designation},
	}}
	staging := &fakeStaging{}

	engine := NewEngine(&fakeCollector{employees: []device.Employee{welder, clerk}}, &fakeLister{}, staging, mappings, nil, testLogger())

	_, err := engine.Discover(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, staging.replaced, 2)

	mapped := staging.replaced[0]
	assert.Equal(t, "Ada", mapped.FirstName)
	assert.Equal(t, "Lovelace", mapped.LastName)
	assert.Equal(t, "Atelier", mapped.CandidateDepartment)
	assert.Equal(t, "Soudeur", mapped.CandidatePosition)
	require.NotNil(t, mapped.MappedDepartment)
	assert.Equal(t, "Production", *mapped.MappedDepartment)
	require.NotNil(t, mapped.MappedDesignation)
	assert.Equal(t, "Operator", *mapped.MappedDesignation)

	// no mapping for an enrollment without a known department
	unmapped := staging.replaced[1]
	assert.Nil(t, unmapped.MappedDepartment)
	assert.Nil(t, unmapped.MappedDesignation)
}

func TestDiscover_MappingLoadFailureStagesUnmapped(t *testing.T) {
	collector := &fakeCollector{employees: []device.Employee{deviceEmployee(1, "42", "Ada", "Lovelace")}}
	mappings := &fakeMappings{err: fmt.Errorf("db down")}
	staging := &fakeStaging{}

	engine := NewEngine(collector, &fakeLister{}, staging, mappings, nil, testLogger())

	report, err := engine.Discover(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.MissingCount)
	require.Len(t, staging.replaced, 1)
	assert.Nil(t, staging.replaced[0].MappedDepartment)
}

func TestDiscover_DeduplicatesDeviceCodes(t *testing.T) {
	collector := &fakeCollector{employees: []device.Employee{
		deviceEmployee(1, "42", "Ada", "Lovelace"),
		deviceEmployee(2, "42", "Ada", "Lovelace"),
	}}
	staging := &fakeStaging{}

	engine := NewEngine(collector, &fakeLister{}, staging, nil, nil, testLogger())

	report, err := engine.Discover(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.MissingCount)
	assert.Len(t, staging.replaced, 1)
}

func TestDiscover_SkipsEnrollmentsWithoutCode(t *testing.T) {
	collector := &fakeCollector{employees: []device.Employee{{}}}
	staging := &fakeStaging{}

	engine := NewEngine(collector, &fakeLister{}, staging, nil, nil, testLogger())

	report, err := engine.Discover(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.DeviceCount)
	assert.Equal(t, 0, report.MissingCount)
	assert.Empty(t, staging.replaced)
}

func TestDiscover_PartialFetchStagesAndMarksIncomplete(t *testing.T) {
	collector := &fakeCollector{
		employees: []device.Employee{deviceEmployee(1, "42", "Ada", "Lovelace")},
		err:       fmt.Errorf("page fetch failed after 1 items"),
	}
	staging := &fakeStaging{}

	engine := NewEngine(collector, &fakeLister{}, staging, nil, nil, testLogger())

	report, err := engine.Discover(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, report.Complete)
	assert.Contains(t, report.Message, "(device fetch incomplete)")
	assert.Len(t, staging.replaced, 1)
}

func TestDiscover_TotalFetchFailureAborts(t *testing.T) {
	collector := &fakeCollector{err: fmt.Errorf("device unreachable")}
	staging := &fakeStaging{}

	engine := NewEngine(collector, &fakeLister{}, staging, nil, nil, testLogger())

	_, err := engine.Discover(context.Background(), nil)
	require.Error(t, err)
	assert.Empty(t, staging.replaced)
}

func TestDiscover_ReplaceFailurePropagates(t *testing.T) {
	collector := &fakeCollector{employees: []device.Employee{deviceEmployee(1, "42", "Ada", "Lovelace")}}
	staging := &fakeStaging{err: fmt.Errorf("db down")}

	engine := NewEngine(collector, &fakeLister{}, staging, nil, nil, testLogger())

	_, err := engine.Discover(context.Background(), nil)
	require.Error(t, err)
}
