package models

import (
	"time"

	"github.com/google/uuid"
)

// ShiftType is a work schedule definition. Shift types with auto attendance
// enabled get their last-sync timestamp touched after every ingestion batch
// that created records, so downstream attendance calculation knows fresh
// punches are available.
type ShiftType struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	Name           string     `db:"name" json:"name"`
	AutoAttendance bool       `db:"auto_attendance" json:"auto_attendance"`
	LastSyncAt     *time.Time `db:"last_sync_at" json:"last_sync_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}
