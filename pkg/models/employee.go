package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// HrEmployee is an employee record in the HR system of record.
type HrEmployee struct {
	ID uuid.UUID `db:"id" json:"id"`
	// EmployeeNumber is the human-readable HR identifier, sent as emp_code
	// when the employee is pushed to the device service.
	EmployeeNumber string  `db:"employee_number" json:"employee_number"`
	FirstName      string  `db:"first_name" json:"first_name"`
	LastName       string  `db:"last_name" json:"last_name"`
	Department     string  `db:"department" json:"department"`
	Position       *string `db:"position" json:"position,omitempty"`
	// DefaultShift is the shift type assigned when the employee was created
	// from a discovery record whose department mapping configures one.
	DefaultShift *string `db:"default_shift" json:"default_shift,omitempty"`
	// DeviceCode links the employee to a biometric device enrollment. Empty
	// means not yet enrolled.
	DeviceCode string    `db:"device_code" json:"device_code"`
	Active     bool      `db:"active" json:"active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// DisplayName joins the name parts, falling back to a code-derived label
// when both are blank.
func DisplayName(firstName, lastName, deviceCode string) string {
	name := strings.TrimSpace(strings.TrimSpace(firstName) + " " + strings.TrimSpace(lastName))
	if name == "" {
		return "Employee " + deviceCode
	}
	return name
}
