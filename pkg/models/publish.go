package models

import "github.com/google/uuid"

// Publish outcomes for one employee.
const (
	PublishStatusPublished = "published"
	PublishStatusFailed    = "failed"
)

// PublishResult is the outcome of pushing one HR employee to the device
// service.
type PublishResult struct {
	EmployeeID uuid.UUID `json:"employee_id"`
	DeviceCode string    `json:"device_code,omitempty"`
	Status     string    `json:"status"`
	Message    string    `json:"message,omitempty"`
}

// PublishReport summarizes one back-propagation batch.
type PublishReport struct {
	Total     int             `json:"total"`
	Published int             `json:"published"`
	Failed    int             `json:"failed"`
	Results   []PublishResult `json:"results,omitempty"`
	Message   string          `json:"message"`
}
