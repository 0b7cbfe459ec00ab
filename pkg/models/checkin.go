package models

import (
	"time"

	"github.com/google/uuid"
)

// Punch directions. Unrecognized punch states map to DirectionUnknown so the
// record is still kept.
const (
	DirectionIn      = "IN"
	DirectionOut     = "OUT"
	DirectionUnknown = ""
)

// AttendanceRecord is one ingested punch event. Append-only; rows are never
// updated or deleted.
type AttendanceRecord struct {
	ID         uuid.UUID `db:"id" json:"id"`
	EmployeeID uuid.UUID `db:"employee_id" json:"employee_id"`
	DeviceCode string    `db:"device_code" json:"device_code"`
	// TransactionID is the device-assigned identifier. Unique; the
	// idempotency key for ingestion.
	TransactionID string    `db:"transaction_id" json:"transaction_id"`
	PunchTime     time.Time `db:"punch_time" json:"punch_time"`
	Direction     string    `db:"direction" json:"direction"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// PunchEvent is a punch fetched from the device service, before resolution
// against HR employees.
type PunchEvent struct {
	DeviceCode    string    `json:"device_code"`
	TransactionID string    `json:"transaction_id"`
	PunchTime     time.Time `json:"punch_time"`
	PunchState    string    `json:"punch_state"`
}

// DirectionFromPunchState maps device punch states to directions.
func DirectionFromPunchState(state string) string {
	switch state {
	case "0":
		return DirectionIn
	case "1":
		return DirectionOut
	default:
		return DirectionUnknown
	}
}

// IngestReport summarizes one ingestion batch.
type IngestReport struct {
	Total           int      `json:"total"`
	Created         int      `json:"created"`
	SkippedExisting int      `json:"skipped_existing"`
	Failed          int      `json:"failed"`
	Notices         []string `json:"notices,omitempty"`
	Message         string   `json:"message"`
}
