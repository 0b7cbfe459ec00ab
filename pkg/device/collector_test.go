package device

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardhq/biosync/pkg/httpclient"
	"github.com/ardhq/biosync/pkg/models"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func testSession(t *testing.T, baseURL string) (*Session, *httpclient.Client) {
	t.Helper()
	logger := testLogger()
	client := httpclient.NewClient(httpclient.DefaultConfig(), logger)
	session := NewSession(models.DeviceSettings{BaseURL: baseURL}, client, logger)
	return session, client
}

func TestFetchAllPages_WalksPagination(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/items/":
			next := srv.URL + "/items/page2/"
			fmt.Fprintf(w, `{"data": [{"id": 1}, {"id": 2}], "next": %q, "count": 3}`, next)
		case "/items/page2/":
			fmt.Fprint(w, `{"data": [{"id": 3}], "next": null, "count": 3}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	session, client := testSession(t, srv.URL)
	collector := NewCollector(client, testLogger(), nil)

	items, err := collector.FetchAllPages(context.Background(), session, srv.URL+"/items/", "fetching items")
	require.NoError(t, err)
	assert.Len(t, items, 3)
	assert.JSONEq(t, `{"id": 3}`, string(items[2]))
}

func TestFetchAllPages_PartialFailureReturnsFetchedItems(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/items/":
			next := srv.URL + "/items/page2/"
			fmt.Fprintf(w, `{"data": [{"id": 1}, {"id": 2}], "next": %q, "count": 4}`, next)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	session, client := testSession(t, srv.URL)
	collector := NewCollector(client, testLogger(), nil)

	items, err := collector.FetchAllPages(context.Background(), session, srv.URL+"/items/", "fetching items")
	require.Error(t, err)
	assert.Len(t, items, 2)
}

func TestFetchAllPages_UndecodableEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `not json`)
	}))
	defer srv.Close()

	session, client := testSession(t, srv.URL)
	collector := NewCollector(client, testLogger(), nil)

	items, err := collector.FetchAllPages(context.Background(), session, srv.URL+"/items/", "fetching items")
	require.Error(t, err)
	assert.Empty(t, items)
}

func TestFetchEmployees_KeepsRawPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/personnel/api/employees/", r.URL.Path)
		fmt.Fprint(w, `{"data": [
			{"id": 7, "emp_code": "42", "first_name": "Ada", "last_name": "Lovelace", "department": {"id": 3, "dept_name": "Engineering"}},
			{"id": 8, "first_name": "", "last_name": ""}
		], "next": null, "count": 2}`)
	}))
	defer srv.Close()

	session, client := testSession(t, srv.URL)
	collector := NewCollector(client, testLogger(), nil)

	emps, err := collector.FetchEmployees(context.Background(), session)
	require.NoError(t, err)
	require.Len(t, emps, 2)

	assert.Equal(t, "42", emps[0].DeviceCode())
	assert.Equal(t, "Engineering", emps[0].Department.DeptName)
	assert.JSONEq(t, `{"id": 7, "emp_code": "42", "first_name": "Ada", "last_name": "Lovelace", "department": {"id": 3, "dept_name": "Engineering"}}`, string(emps[0].Raw))

	// no emp_code falls back to the numeric id
	assert.Equal(t, "8", emps[1].DeviceCode())
}

func TestFetchEmployees_DecodesPositionObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data": [
			{"id": 7, "emp_code": "42", "first_name": "Ada", "position": {"id": 5, "position_name": "Technician"}},
			{"id": 8, "emp_code": "43", "position": null}
		], "next": null, "count": 2}`)
	}))
	defer srv.Close()

	session, client := testSession(t, srv.URL)
	collector := NewCollector(client, testLogger(), nil)

	emps, err := collector.FetchEmployees(context.Background(), session)
	require.NoError(t, err)
	require.Len(t, emps, 2, "enrollments with a position are kept")

	assert.Equal(t, "Technician", emps[0].PositionName())
	assert.Equal(t, "", emps[1].PositionName())
}

func TestTransactionWindow(t *testing.T) {
	ref := time.Date(2026, time.February, 14, 9, 30, 0, 0, time.UTC)
	start, end := TransactionWindow(ref)

	assert.Equal(t, time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC), end)
}

func TestFetchTransactions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/iclock/api/transactions/", r.URL.Path)
		assert.Equal(t, "2026-02-01 00:00:00", r.URL.Query().Get("start_time"))
		assert.Equal(t, "2026-03-01 00:00:00", r.URL.Query().Get("end_time"))

		fmt.Fprint(w, `{"data": [
			{"id": 100, "emp_code": "42", "punch_time": "2026-02-14 08:58:03", "punch_state": "0"},
			{"id": 101, "emp_code": "42", "punch_time": "2026-02-14 17:02:44", "punch_state": "1"},
			{"id": 102, "emp_code": "43", "punch_time": "not a time", "punch_state": "0"}
		], "next": null, "count": 3}`)
	}))
	defer srv.Close()

	session, client := testSession(t, srv.URL)
	collector := NewCollector(client, testLogger(), nil)

	ref := time.Date(2026, time.February, 14, 12, 0, 0, 0, time.UTC)
	events, err := collector.FetchTransactions(context.Background(), session, ref)
	require.NoError(t, err)
	require.Len(t, events, 2, "unparseable punch time is skipped")

	assert.Equal(t, "100", events[0].TransactionID)
	assert.Equal(t, "42", events[0].DeviceCode)
	assert.Equal(t, time.Date(2026, time.February, 14, 8, 58, 3, 0, time.UTC), events[0].PunchTime)
	assert.Equal(t, "0", events[0].PunchState)
	assert.Equal(t, "101", events[1].TransactionID)
	assert.Equal(t, "1", events[1].PunchState)
}

func TestFetchTransactions_SkipsUndecodableRecords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data": [
			{"id": "not an int"},
			{"id": 200, "emp_code": "42", "punch_time": "2026-02-02 07:00:00", "punch_state": "0"}
		], "next": null, "count": 2}`)
	}))
	defer srv.Close()

	session, client := testSession(t, srv.URL)
	collector := NewCollector(client, testLogger(), nil)

	events, err := collector.FetchTransactions(context.Background(), session, time.Date(2026, time.February, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "200", events[0].TransactionID)
}

func TestEmployeeDeviceCode(t *testing.T) {
	tests := []struct {
		name     string
		employee Employee
		expected string
	}{
		{"emp_code wins", Employee{ID: 9, EmpCode: "42"}, "42"},
		{"falls back to id", Employee{ID: 9}, "9"},
		{"nothing", Employee{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.employee.DeviceCode())
		})
	}
}
