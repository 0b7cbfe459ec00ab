package discovery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardhq/biosync/pkg/database"
	"github.com/ardhq/biosync/pkg/models"
	"github.com/ardhq/biosync/pkg/routes/base"
)

type fakeDiscoveries struct {
	records map[uuid.UUID]*models.DiscoveryRecord
	created []uuid.UUID
}

func (f *fakeDiscoveries) Get(ctx context.Context, id uuid.UUID) (*models.DiscoveryRecord, error) {
	record, ok := f.records[id]
	if !ok {
		return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("discovery record %s not found", id))
	}
	copied := *record
	return &copied, nil
}

func (f *fakeDiscoveries) List(ctx context.Context, status string) ([]models.DiscoveryRecord, error) {
	var records []models.DiscoveryRecord
	for _, record := range f.records {
		if status == "" || record.Status == status {
			records = append(records, *record)
		}
	}
	return records, nil
}

func (f *fakeDiscoveries) UpdateStatus(ctx context.Context, ids []uuid.UUID, status string, validatedBy string) (int, error) {
	updated := 0
	for _, id := range ids {
		if record, ok := f.records[id]; ok && record.Status == models.DiscoveryStatusPending {
			record.Status = status
			updated++
		}
	}
	return updated, nil
}

func (f *fakeDiscoveries) MarkCreated(ctx context.Context, id uuid.UUID) error {
	record, ok := f.records[id]
	if !ok || record.Status != models.DiscoveryStatusValidated {
		return httperror.NewHTTPError(http.StatusConflict, fmt.Sprintf("discovery record %s is not validated", id))
	}
	record.Status = models.DiscoveryStatusCreated
	f.created = append(f.created, id)
	return nil
}

type fakeEmployees struct {
	linkedCodes map[string]struct{}
	created     []models.HrEmployee
	createErr   error
}

func (f *fakeEmployees) Create(ctx context.Context, emp *models.HrEmployee) (*models.HrEmployee, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	emp.ID = uuid.New()
	f.created = append(f.created, *emp)
	return emp, nil
}

func (f *fakeEmployees) ExistsByDeviceCode(ctx context.Context, deviceCode string) (bool, error) {
	_, ok := f.linkedCodes[deviceCode]
	return ok, nil
}

type fakeMappingLookup struct {
	byDevice map[string]*models.DepartmentMapping
}

func (f *fakeMappingLookup) GetByDeviceDepartment(ctx context.Context, deviceDepartment string) (*models.DepartmentMapping, error) {
	if mapping, ok := f.byDevice[deviceDepartment]; ok {
		return mapping, nil
	}
	return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("no mapping for device department %q", deviceDepartment))
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func testContext(t *testing.T, method, target string, body any) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	e := echo.New()
	e.Validator = base.NewValidator()
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func stagedRecord(id uuid.UUID, status string) *models.DiscoveryRecord {
	return &models.DiscoveryRecord{
		ID:                  id,
		DeviceCode:          "42",
		DisplayName:         "Ada Lovelace",
		FirstName:           "Ada",
		LastName:            "Lovelace",
		CandidateDepartment: "Atelier",
		CandidatePosition:   "Soudeur",
		Status:              status,
		Payload:             database.JSONB[json.RawMessage]{Data: json.RawMessage(`{"id": 1, "emp_code": "42"}`)},
	}
}

func TestCreateEmployee_AppliesMappingDefaults(t *testing.T) {
	id := uuid.New()
	discoveries := &fakeDiscoveries{records: map[uuid.UUID]*models.DiscoveryRecord{
		id: stagedRecord(id, models.DiscoveryStatusValidated),
	}}
	employees := &fakeEmployees{}
	designation := "Operator"
	shift := "Day Shift"
	mappings := &fakeMappingLookup{byDevice: map[string]*models.DepartmentMapping{
		"Atelier": {DeviceDepartment: "Atelier", HrDepartment: "Production", DefaultDesignation: &designation, DefaultShift: &shift},
	}}

	h := NewHandler(discoveries, employees, mappings, testLogger())

	c, rec := testContext(t, http.MethodPost, "/discovery/"+id.String()+"/create", nil)
	c.SetParamNames("id")
	c.SetParamValues(id.String())

	require.NoError(t, h.CreateEmployee(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	require.Len(t, employees.created, 1)
	created := employees.created[0]
	assert.Equal(t, "42", created.EmployeeNumber)
	assert.Equal(t, "Ada", created.FirstName)
	assert.Equal(t, "Production", created.Department)
	require.NotNil(t, created.Position)
	assert.Equal(t, "Operator", *created.Position)
	require.NotNil(t, created.DefaultShift)
	assert.Equal(t, "Day Shift", *created.DefaultShift)
	assert.Equal(t, "42", created.DeviceCode)
	assert.True(t, created.Active)

	assert.Equal(t, []uuid.UUID{id}, discoveries.created)
}

func TestCreateEmployee_PrefersPreResolvedMapping(t *testing.T) {
	id := uuid.New()
	record := stagedRecord(id, models.DiscoveryStatusValidated)
	department := "Production"
	designation := "Welder"
	record.MappedDepartment = &department
	record.MappedDesignation = &designation
	discoveries := &fakeDiscoveries{records: map[uuid.UUID]*models.DiscoveryRecord{id: record}}
	employees := &fakeEmployees{}

	h := NewHandler(discoveries, employees, &fakeMappingLookup{}, testLogger())

	c, _ := testContext(t, http.MethodPost, "/discovery/"+id.String()+"/create", nil)
	c.SetParamNames("id")
	c.SetParamValues(id.String())

	require.NoError(t, h.CreateEmployee(c))

	require.Len(t, employees.created, 1)
	assert.Equal(t, "Production", employees.created[0].Department)
	require.NotNil(t, employees.created[0].Position)
	assert.Equal(t, "Welder", *employees.created[0].Position)
}

func TestCreateEmployee_UnmappedFallsBackToDeviceValues(t *testing.T) {
	id := uuid.New()
	discoveries := &fakeDiscoveries{records: map[uuid.UUID]*models.DiscoveryRecord{
		id: stagedRecord(id, models.DiscoveryStatusValidated),
	}}
	employees := &fakeEmployees{}

	h := NewHandler(discoveries, employees, &fakeMappingLookup{}, testLogger())

	c, _ := testContext(t, http.MethodPost, "/discovery/"+id.String()+"/create", nil)
	c.SetParamNames("id")
	c.SetParamValues(id.String())

	require.NoError(t, h.CreateEmployee(c))

	require.Len(t, employees.created, 1)
	assert.Equal(t, "Atelier", employees.created[0].Department)
	require.NotNil(t, employees.created[0].Position)
	assert.Equal(t, "Soudeur", *employees.created[0].Position)
	assert.Nil(t, employees.created[0].DefaultShift)
}

func TestCreateEmployee_RequiresValidatedRecord(t *testing.T) {
	id := uuid.New()
	discoveries := &fakeDiscoveries{records: map[uuid.UUID]*models.DiscoveryRecord{
		id: stagedRecord(id, models.DiscoveryStatusPending),
	}}

	h := NewHandler(discoveries, &fakeEmployees{}, &fakeMappingLookup{}, testLogger())

	c, _ := testContext(t, http.MethodPost, "/discovery/"+id.String()+"/create", nil)
	c.SetParamNames("id")
	c.SetParamValues(id.String())

	err := h.CreateEmployee(c)
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, httperror.GetStatusCode(err))
}

func TestCreateEmployee_AlreadyLinkedConflict(t *testing.T) {
	id := uuid.New()
	discoveries := &fakeDiscoveries{records: map[uuid.UUID]*models.DiscoveryRecord{
		id: stagedRecord(id, models.DiscoveryStatusValidated),
	}}
	employees := &fakeEmployees{linkedCodes: map[string]struct{}{"42": {}}}

	h := NewHandler(discoveries, employees, &fakeMappingLookup{}, testLogger())

	c, _ := testContext(t, http.MethodPost, "/discovery/"+id.String()+"/create", nil)
	c.SetParamNames("id")
	c.SetParamValues(id.String())

	err := h.CreateEmployee(c)
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, httperror.GetStatusCode(err))
	assert.Empty(t, employees.created)
}

func TestCreateEmployees_BulkIsolatesFailures(t *testing.T) {
	validatedA := uuid.New()
	pending := uuid.New()
	validatedB := uuid.New()

	recordB := stagedRecord(validatedB, models.DiscoveryStatusValidated)
	recordB.DeviceCode = "43"

	discoveries := &fakeDiscoveries{records: map[uuid.UUID]*models.DiscoveryRecord{
		validatedA: stagedRecord(validatedA, models.DiscoveryStatusValidated),
		pending:    stagedRecord(pending, models.DiscoveryStatusPending),
		validatedB: recordB,
	}}
	employees := &fakeEmployees{}

	h := NewHandler(discoveries, employees, &fakeMappingLookup{}, testLogger())

	c, rec := testContext(t, http.MethodPost, "/discovery/create", map[string]any{
		"ids": []string{validatedA.String(), pending.String(), validatedB.String()},
	})

	require.NoError(t, h.CreateEmployees(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp createResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, 2, resp.Created)
	assert.Equal(t, 1, resp.Failed)
	assert.Equal(t, "created 2 of 3 employees (1 failed)", resp.Message)
	require.Len(t, resp.Results, 3)
	assert.Equal(t, "created", resp.Results[0].Status)
	assert.Equal(t, "failed", resp.Results[1].Status)
	assert.Contains(t, resp.Results[1].Message, "must be validated")
	assert.Equal(t, "created", resp.Results[2].Status)

	assert.Len(t, employees.created, 2)
	assert.ElementsMatch(t, []uuid.UUID{validatedA, validatedB}, discoveries.created)
}
