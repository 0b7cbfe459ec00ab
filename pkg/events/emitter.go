// Package events emits attendance lifecycle events for downstream consumers
// such as the attendance calculator. Emission failures are logged and
// swallowed; an event that could not be sent never fails a sync run.
package events

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"

	"github.com/ardhq/biosync/pkg/kafka"
	"github.com/ardhq/biosync/pkg/models"
	"github.com/ardhq/biosync/pkg/tracing"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// Emitter handles event emission for biosync
type Emitter struct {
	producer *kafka.Producer
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// EmitCheckinsCreated emits one checkin.created event per created attendance
// record, published as a single batch.
func (e *Emitter) EmitCheckinsCreated(ctx context.Context, records []models.AttendanceRecord) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitCheckinsCreated")
	defer span.End()

	if len(records) == 0 {
		return
	}

	batch := make([]*kafka.AttendanceEvent, 0, len(records))
	for _, record := range records {
		data, err := json.Marshal(record)
		if err != nil {
			continue
		}
		batch = append(batch, &kafka.AttendanceEvent{
			EventType:  "checkin.created",
			DeviceCode: record.DeviceCode,
			Data:       data,
		})
	}

	if err := e.producer.PublishAttendanceEvents(ctx, batch); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit checkin.created events")
	}
}

// EmitDiscoveryCompleted emits a discovery.completed event with the run
// counts.
func (e *Emitter) EmitDiscoveryCompleted(ctx context.Context, report models.DiscoveryReport) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitDiscoveryCompleted")
	defer span.End()

	data, err := json.Marshal(report)
	if err != nil {
		return
	}

	event := &kafka.AttendanceEvent{
		EventType: "discovery.completed",
		Data:      data,
	}

	if err := e.producer.PublishAttendanceEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit discovery.completed event")
	}
}

// EmitEmployeePublished emits an employee.published event after a successful
// back-propagation.
func (e *Emitter) EmitEmployeePublished(ctx context.Context, result models.PublishResult) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitEmployeePublished")
	defer span.End()

	data, err := json.Marshal(result)
	if err != nil {
		return
	}

	event := &kafka.AttendanceEvent{
		EventType:  "employee.published",
		DeviceCode: result.DeviceCode,
		Data:       data,
	}

	if err := e.producer.PublishAttendanceEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit employee.published event")
	}
}
