package device

import (
	"encoding/json"
	"strconv"
)

// pageEnvelope is the paginated list shape the device service returns.
type pageEnvelope struct {
	Data  []json.RawMessage `json:"data"`
	Next  *string           `json:"next"`
	Count int               `json:"count"`
}

// Department is the nested department on a device employee.
type Department struct {
	ID       int    `json:"id"`
	DeptName string `json:"dept_name"`
}

// Position is the nested position on a device employee. Absent for
// enrollments created without one.
type Position struct {
	ID           int    `json:"id"`
	PositionName string `json:"position_name"`
}

// Area is a device access zone.
type Area struct {
	ID       int    `json:"id"`
	AreaName string `json:"area_name"`
}

// Employee is an enrollment record on the device service.
type Employee struct {
	ID         int        `json:"id"`
	EmpCode    string     `json:"emp_code"`
	FirstName  string     `json:"first_name"`
	LastName   string     `json:"last_name"`
	Department Department `json:"department"`
	Area       []Area     `json:"area"`
	Position   *Position  `json:"position"`

	// Raw is the record as received, kept verbatim for discovery staging.
	Raw json.RawMessage `json:"-"`
}

// DeviceCode returns the enrollment identifier: emp_code when present,
// otherwise the numeric id as a string.
func (e *Employee) DeviceCode() string {
	if e.EmpCode != "" {
		return e.EmpCode
	}
	if e.ID != 0 {
		return strconv.Itoa(e.ID)
	}
	return ""
}

// PositionName returns the nested position name, or empty when the
// enrollment carries no position.
func (e *Employee) PositionName() string {
	if e.Position == nil {
		return ""
	}
	return e.Position.PositionName
}

// Transaction is a raw punch event from the device service.
type Transaction struct {
	ID         int    `json:"id"`
	EmpCode    string `json:"emp_code"`
	PunchTime  string `json:"punch_time"`
	PunchState string `json:"punch_state"`
}
