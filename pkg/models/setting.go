package models

import "time"

// DeviceSettings is the single-row device service connection record.
// Editable at runtime; sync operations read it at the start of every run.
type DeviceSettings struct {
	ID       int16  `db:"id" json:"-"`
	BaseURL  string `db:"base_url" json:"base_url"`
	Username string `db:"username" json:"username"`
	Password string `db:"password" json:"-"`
	// ReferenceDate anchors the transaction fetch window. Nil means today.
	ReferenceDate *time.Time `db:"reference_date" json:"reference_date,omitempty"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}
