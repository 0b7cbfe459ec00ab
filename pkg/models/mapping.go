package models

import (
	"time"

	"github.com/google/uuid"
)

// DepartmentMapping links a device-side department name to an HR department.
// The device API exposes department names but not a usable remote id, so
// publishing an employee still falls back to the default department id.
type DepartmentMapping struct {
	ID               uuid.UUID `db:"id" json:"id"`
	DeviceDepartment string    `db:"device_department" json:"device_department"`
	HrDepartment     string    `db:"hr_department" json:"hr_department"`
	// Defaults applied to employees created from discovery records in
	// this department. Nil means none configured.
	DefaultDesignation *string   `db:"default_designation" json:"default_designation,omitempty"`
	DefaultShift       *string   `db:"default_shift" json:"default_shift,omitempty"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}
