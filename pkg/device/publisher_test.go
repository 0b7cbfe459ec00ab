package device

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardhq/biosync/pkg/models"
)

type fakeCodeWriter struct {
	codes map[string]string
	err   error
}

func (f *fakeCodeWriter) SetDeviceCode(ctx context.Context, employeeID string, deviceCode string) error {
	if f.err != nil {
		return f.err
	}
	if f.codes == nil {
		f.codes = make(map[string]string)
	}
	f.codes[employeeID] = deviceCode
	return nil
}

func TestSelectAreaID(t *testing.T) {
	tests := []struct {
		name     string
		areas    []Area
		expected int
	}{
		{
			name:     "first non-restricted area",
			areas:    []Area{{ID: 1, AreaName: "Pas Autorisé"}, {ID: 2, AreaName: "Main Office"}},
			expected: 2,
		},
		{
			name:     "all restricted falls back to first",
			areas:    []Area{{ID: 1, AreaName: "unauthorized"}, {ID: 2, AreaName: "Restricted"}},
			expected: 1,
		},
		{
			name:     "no areas uses default",
			areas:    nil,
			expected: 99,
		},
		{
			name:     "plain spelling is also restricted",
			areas:    []Area{{ID: 5, AreaName: "pas autorise"}, {ID: 6, AreaName: "Atelier"}},
			expected: 6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SelectAreaID(tt.areas, 99))
		})
	}
}

func TestPublishEmployee(t *testing.T) {
	empID := uuid.New()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/personnel/api/employees/", r.URL.Path)

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "EMP-042", payload["emp_code"])
		assert.Equal(t, float64(1), payload["department"])
		assert.Equal(t, []any{float64(2)}, payload["area"])
		assert.Equal(t, "Ada", payload["first_name"])
		// the device expects a numeric position id, which can't be resolved
		// from the HR designation, so the field must be absent
		assert.NotContains(t, payload, "position")

		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id": 77, "emp_code": "EMP-042"}`)
	}))
	defer srv.Close()

	session, client := testSession(t, srv.URL)
	writer := &fakeCodeWriter{}
	publisher := NewPublisher(client, testLogger(), nil, writer, 1, 1)

	areas := []Area{{ID: 9, AreaName: "restricted"}, {ID: 2, AreaName: "Main Office"}}
	designation := "Engineer"
	emp := models.HrEmployee{ID: empID, EmployeeNumber: "EMP-042", FirstName: "Ada", LastName: "Lovelace", Department: "Engineering", Position: &designation}

	result := publisher.PublishEmployee(context.Background(), session, areas, emp)
	assert.Equal(t, models.PublishStatusPublished, result.Status)
	assert.Equal(t, "EMP-042", result.DeviceCode)
	assert.Equal(t, "EMP-042", writer.codes[empID.String()])
}

func TestPublishEmployee_FallsBackToResponseID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id": 77}`)
	}))
	defer srv.Close()

	session, client := testSession(t, srv.URL)
	writer := &fakeCodeWriter{}
	publisher := NewPublisher(client, testLogger(), nil, writer, 1, 1)

	result := publisher.PublishEmployee(context.Background(), session, nil, models.HrEmployee{ID: uuid.New(), EmployeeNumber: "EMP-001"})
	assert.Equal(t, models.PublishStatusPublished, result.Status)
	assert.Equal(t, "77", result.DeviceCode)
}

func TestPublishEmployee_DeviceRejects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"emp_code": ["employee with this emp code already exists."]}`)
	}))
	defer srv.Close()

	session, client := testSession(t, srv.URL)
	publisher := NewPublisher(client, testLogger(), nil, &fakeCodeWriter{}, 1, 1)

	result := publisher.PublishEmployee(context.Background(), session, nil, models.HrEmployee{ID: uuid.New(), EmployeeNumber: "EMP-001"})
	assert.Equal(t, models.PublishStatusFailed, result.Status)
	assert.Contains(t, result.Message, "status 400")
}

func TestPublishEmployee_WriteBackFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id": 77, "emp_code": "EMP-001"}`)
	}))
	defer srv.Close()

	session, client := testSession(t, srv.URL)
	writer := &fakeCodeWriter{err: fmt.Errorf("db down")}
	publisher := NewPublisher(client, testLogger(), nil, writer, 1, 1)

	result := publisher.PublishEmployee(context.Background(), session, nil, models.HrEmployee{ID: uuid.New(), EmployeeNumber: "EMP-001"})
	assert.Equal(t, models.PublishStatusFailed, result.Status)
	assert.Contains(t, result.Message, "failed to record device code")
}

func TestPublishAll_IsolatesFailures(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"id": %d}`, calls)
	}))
	defer srv.Close()

	session, client := testSession(t, srv.URL)
	publisher := NewPublisher(client, testLogger(), nil, &fakeCodeWriter{}, 1, 1)

	emps := []models.HrEmployee{
		{ID: uuid.New(), EmployeeNumber: "EMP-001"},
		{ID: uuid.New(), EmployeeNumber: "EMP-002"},
		{ID: uuid.New(), EmployeeNumber: "EMP-003"},
	}

	report := publisher.PublishAll(context.Background(), session, nil, emps)
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 2, report.Published)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, "published 2 of 3 employees (1 failed)", report.Message)
	require.Len(t, report.Results, 3)
	assert.Equal(t, models.PublishStatusFailed, report.Results[0].Status)
}
