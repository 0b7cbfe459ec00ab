package ingest

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardhq/biosync/pkg/models"
)

type fakeResolver struct {
	employees map[string]*models.HrEmployee
}

func (f *fakeResolver) GetByDeviceCode(ctx context.Context, deviceCode string) (*models.HrEmployee, error) {
	if emp, ok := f.employees[deviceCode]; ok {
		return emp, nil
	}
	return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("no employee with device code %s", deviceCode))
}

type fakeStore struct {
	existing  map[string]struct{}
	created   []models.AttendanceRecord
	createErr error
}

func (f *fakeStore) ExistsByTransactionID(ctx context.Context, transactionID string) (bool, error) {
	_, ok := f.existing[transactionID]
	return ok, nil
}

func (f *fakeStore) Create(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.existing == nil {
		f.existing = make(map[string]struct{})
	}
	f.existing[record.TransactionID] = struct{}{}
	f.created = append(f.created, *record)
	return record, nil
}

type fakeToucher struct {
	calls int
}

func (f *fakeToucher) TouchLastSync(ctx context.Context, syncedAt time.Time) (int, error) {
	f.calls++
	return 1, nil
}

type fakeNotifier struct {
	records []models.AttendanceRecord
}

func (f *fakeNotifier) EmitCheckinsCreated(ctx context.Context, records []models.AttendanceRecord) {
	f.records = append(f.records, records...)
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func punchEvent(txnID, code, state string) models.PunchEvent {
	return models.PunchEvent{
		TransactionID: txnID,
		DeviceCode:    code,
		PunchTime:     time.Date(2026, time.February, 14, 9, 0, 0, 0, time.UTC),
		PunchState:    state,
	}
}

func TestIngest_CreatesRecords(t *testing.T) {
	empID := uuid.New()
	resolver := &fakeResolver{employees: map[string]*models.HrEmployee{
		"42": {ID: empID, DeviceCode: "42"},
	}}
	store := &fakeStore{}
	toucher := &fakeToucher{}
	notifier := &fakeNotifier{}

	engine := NewEngine(resolver, store, toucher, notifier, nil, testLogger())

	events := []models.PunchEvent{
		punchEvent("100", "42", "0"),
		punchEvent("101", "42", "1"),
		punchEvent("102", "42", "255"),
	}

	report, err := engine.Ingest(context.Background(), events)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 3, report.Created)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, "processed 3 punch events: 3 created, 0 already existed, 0 failed", report.Message)

	require.Len(t, store.created, 3)
	assert.Equal(t, empID, store.created[0].EmployeeID)
	assert.Equal(t, models.DirectionIn, store.created[0].Direction)
	assert.Equal(t, models.DirectionOut, store.created[1].Direction)
	assert.Equal(t, models.DirectionUnknown, store.created[2].Direction, "unrecognized punch state is still kept")

	assert.Equal(t, 1, toucher.calls)
	assert.Len(t, notifier.records, 3)
}

func TestIngest_SkipsExistingTransactions(t *testing.T) {
	resolver := &fakeResolver{employees: map[string]*models.HrEmployee{
		"42": {ID: uuid.New(), DeviceCode: "42"},
	}}
	store := &fakeStore{existing: map[string]struct{}{"100": {}}}
	toucher := &fakeToucher{}

	engine := NewEngine(resolver, store, toucher, nil, nil, testLogger())

	report, err := engine.Ingest(context.Background(), []models.PunchEvent{
		punchEvent("100", "42", "0"),
		punchEvent("101", "42", "1"),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, report.SkippedExisting)
	assert.Equal(t, 1, report.Created)
	assert.Len(t, store.created, 1)
	assert.Equal(t, "101", store.created[0].TransactionID)
}

func TestIngest_UnknownDeviceCodeNoticesAndContinues(t *testing.T) {
	resolver := &fakeResolver{employees: map[string]*models.HrEmployee{
		"42": {ID: uuid.New(), DeviceCode: "42"},
	}}
	store := &fakeStore{}
	toucher := &fakeToucher{}

	engine := NewEngine(resolver, store, toucher, nil, nil, testLogger())

	report, err := engine.Ingest(context.Background(), []models.PunchEvent{
		punchEvent("100", "999", "0"),
		punchEvent("101", "42", "0"),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Created)
	require.Len(t, report.Notices, 1)
	assert.Equal(t, "can't create transaction 100: no employee with device code 999, fetch employees first", report.Notices[0])
}

func TestIngest_WriteFailureDoesNotStopBatch(t *testing.T) {
	resolver := &fakeResolver{employees: map[string]*models.HrEmployee{
		"42": {ID: uuid.New(), DeviceCode: "42"},
	}}
	store := &fakeStore{createErr: fmt.Errorf("db down")}
	toucher := &fakeToucher{}

	engine := NewEngine(resolver, store, toucher, nil, nil, testLogger())

	report, err := engine.Ingest(context.Background(), []models.PunchEvent{
		punchEvent("100", "42", "0"),
		punchEvent("101", "42", "1"),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Failed)
	assert.Equal(t, 0, report.Created)
	assert.Equal(t, 0, toucher.calls, "shift types are not touched when nothing was created")
}

func TestIngest_RerunIsIdempotent(t *testing.T) {
	resolver := &fakeResolver{employees: map[string]*models.HrEmployee{
		"42": {ID: uuid.New(), DeviceCode: "42"},
	}}
	store := &fakeStore{}

	engine := NewEngine(resolver, store, &fakeToucher{}, nil, nil, testLogger())

	events := []models.PunchEvent{
		punchEvent("100", "42", "0"),
		punchEvent("101", "42", "1"),
	}

	first, err := engine.Ingest(context.Background(), events)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Created)

	second, err := engine.Ingest(context.Background(), events)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 2, second.SkippedExisting)
	assert.Len(t, store.created, 2, "rerun creates no duplicate records")
}

func TestIngest_EmptyBatch(t *testing.T) {
	engine := NewEngine(&fakeResolver{}, &fakeStore{}, &fakeToucher{}, nil, nil, testLogger())

	report, err := engine.Ingest(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Total)
	assert.Equal(t, "processed 0 punch events: 0 created, 0 already existed, 0 failed", report.Message)
}
