// Package ingest turns fetched punch events into attendance records,
// idempotently on transaction id.
package ingest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/ardhq/biosync/pkg/metrics"
	"github.com/ardhq/biosync/pkg/models"
	"github.com/ardhq/biosync/pkg/progress"
	"github.com/ardhq/biosync/pkg/tracing"
)

// EmployeeResolver resolves device codes to HR employees.
type EmployeeResolver interface {
	GetByDeviceCode(ctx context.Context, deviceCode string) (*models.HrEmployee, error)
}

// CheckinStore persists attendance records.
type CheckinStore interface {
	ExistsByTransactionID(ctx context.Context, transactionID string) (bool, error)
	Create(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error)
}

// ShiftToucher stamps the last-sync marker on auto attendance shift types.
type ShiftToucher interface {
	TouchLastSync(ctx context.Context, syncedAt time.Time) (int, error)
}

// Notifier announces created attendance records.
type Notifier interface {
	EmitCheckinsCreated(ctx context.Context, records []models.AttendanceRecord)
}

// Engine ingests punch event batches.
type Engine struct {
	employees EmployeeResolver
	checkins  CheckinStore
	shifts    ShiftToucher
	notifier  Notifier
	progress  progress.Sink
	logger    ectologger.Logger
}

func NewEngine(employees EmployeeResolver, checkins CheckinStore, shifts ShiftToucher, notifier Notifier, sink progress.Sink, logger ectologger.Logger) *Engine {
	if sink == nil {
		sink = progress.NewNoopSink()
	}
	return &Engine{
		employees: employees,
		checkins:  checkins,
		shifts:    shifts,
		notifier:  notifier,
		progress:  sink,
		logger:    logger,
	}
}

// Ingest processes a punch event batch. Every event is handled
// independently: already-ingested transaction ids are skipped, events whose
// device code matches no employee are counted failed with a per-item notice,
// and a write failure is logged and counted without stopping the batch. The
// returned report carries one consolidated summary.
func (e *Engine) Ingest(ctx context.Context, events []models.PunchEvent) (models.IngestReport, error) {
	ctx, span := tracing.StartSpan(ctx, "ingest.Engine.Ingest")
	defer span.End()

	report := models.IngestReport{Total: len(events)}
	var created []models.AttendanceRecord

	for i, event := range events {
		e.progress.Publish(ctx, "creating attendance records", (i+1)*100/max(len(events), 1))

		exists, err := e.checkins.ExistsByTransactionID(ctx, event.TransactionID)
		if err != nil {
			report.Failed++
			metrics.RecordCheckin("failed")
			continue
		}
		if exists {
			report.SkippedExisting++
			metrics.RecordCheckin("skipped_existing")
			continue
		}

		emp, err := e.employees.GetByDeviceCode(ctx, event.DeviceCode)
		if err != nil {
			report.Failed++
			metrics.RecordCheckin("failed")
			if httperror.IsHTTPError(err) && httperror.GetStatusCode(err) == http.StatusNotFound {
				report.Notices = append(report.Notices, fmt.Sprintf(
					"can't create transaction %s: no employee with device code %s, fetch employees first",
					event.TransactionID, event.DeviceCode))
			}
			continue
		}

		record := &models.AttendanceRecord{
			EmployeeID:    emp.ID,
			DeviceCode:    event.DeviceCode,
			TransactionID: event.TransactionID,
			PunchTime:     event.PunchTime,
			Direction:     models.DirectionFromPunchState(event.PunchState),
		}

		if _, err := e.checkins.Create(ctx, record); err != nil {
			report.Failed++
			metrics.RecordCheckin("failed")
			e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"transaction_id": event.TransactionID,
			}).Error("Failed to create attendance record")
			continue
		}

		report.Created++
		metrics.RecordCheckin("created")
		created = append(created, *record)
	}

	if report.Created > 0 && e.shifts != nil {
		if _, err := e.shifts.TouchLastSync(ctx, time.Now().UTC()); err != nil {
			e.logger.WithContext(ctx).WithError(err).Warn("Failed to touch shift type last sync")
		}
	}

	if e.notifier != nil {
		e.notifier.EmitCheckinsCreated(ctx, created)
	}

	report.Message = fmt.Sprintf("processed %d punch events: %d created, %d already existed, %d failed",
		report.Total, report.Created, report.SkippedExisting, report.Failed)

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"total":            report.Total,
		"created":          report.Created,
		"skipped_existing": report.SkippedExisting,
		"failed":           report.Failed,
	}).Info("Punch event batch ingested")

	return report, nil
}
