package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name       string
		firstName  string
		lastName   string
		deviceCode string
		expected   string
	}{
		{"full name", "Ada", "Lovelace", "42", "Ada Lovelace"},
		{"first only", "Ada", "", "42", "Ada"},
		{"last only", "", "Lovelace", "42", "Lovelace"},
		{"blank falls back to code", "", "", "42", "Employee 42"},
		{"whitespace falls back to code", "  ", "  ", "42", "Employee 42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DisplayName(tt.firstName, tt.lastName, tt.deviceCode))
		})
	}
}

func TestDirectionFromPunchState(t *testing.T) {
	assert.Equal(t, DirectionIn, DirectionFromPunchState("0"))
	assert.Equal(t, DirectionOut, DirectionFromPunchState("1"))
	assert.Equal(t, DirectionUnknown, DirectionFromPunchState("4"))
	assert.Equal(t, DirectionUnknown, DirectionFromPunchState(""))
}
