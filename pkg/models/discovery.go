package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/ardhq/biosync/pkg/database"
)

// Discovery record lifecycle. Records start Pending; a reviewer validates or
// rejects them, and validated records can be turned into HR employees.
const (
	DiscoveryStatusPending   = "pending"
	DiscoveryStatusValidated = "validated"
	DiscoveryStatusRejected  = "rejected"
	DiscoveryStatusCreated   = "created"
)

// DiscoveryRecord is a device enrollment with no matching HR employee,
// staged for human review. The discovery table is replaced wholesale on
// every discovery run.
type DiscoveryRecord struct {
	ID          uuid.UUID `db:"id" json:"id"`
	DeviceCode  string    `db:"device_code" json:"device_code"`
	DisplayName string    `db:"display_name" json:"display_name"`
	FirstName   string    `db:"first_name" json:"first_name"`
	LastName    string    `db:"last_name" json:"last_name"`
	// Candidate fields are copied from the device enrollment as-is;
	// the mapped fields hold what the department mapping table resolved
	// them to, left nil when no mapping matched.
	CandidateDepartment string  `db:"candidate_department" json:"candidate_department"`
	CandidatePosition   string  `db:"candidate_position" json:"candidate_position"`
	MappedDepartment    *string `db:"mapped_department" json:"mapped_department,omitempty"`
	MappedDesignation   *string `db:"mapped_designation" json:"mapped_designation,omitempty"`
	Status              string  `db:"status" json:"status"`
	// Payload is the device employee record verbatim, kept for review and
	// for creating the HR employee later.
	Payload     database.JSONB[json.RawMessage] `db:"payload" json:"payload"`
	ValidatedBy *string                         `db:"validated_by" json:"validated_by,omitempty"`
	ValidatedAt *time.Time                      `db:"validated_at" json:"validated_at,omitempty"`
	CreatedAt   time.Time                       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time                       `db:"updated_at" json:"updated_at"`
}

// DiscoveryReport summarizes one discovery run.
type DiscoveryReport struct {
	DeviceCount int `json:"device_count"`
	// LinkedCount is the total number of HR employees with a device
	// enrollment, not just those seen in this run's device fetch.
	LinkedCount  int `json:"linked_count"`
	MissingCount int `json:"missing_count"`
	// Complete is false when the device fetch stopped early and the staged
	// snapshot may not cover every enrollment.
	Complete bool   `json:"complete"`
	Message  string `json:"message"`
}
