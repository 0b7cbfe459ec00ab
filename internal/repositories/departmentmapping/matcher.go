package departmentmapping

import "strings"

// SuggestHrDepartment proposes an HR department for a device department name
// by case-insensitive substring containment in either direction. Returns ""
// when nothing matches.
func SuggestHrDepartment(deviceDepartment string, hrDepartments []string) string {
	device := strings.ToLower(strings.TrimSpace(deviceDepartment))
	if device == "" {
		return ""
	}

	for _, hr := range hrDepartments {
		candidate := strings.ToLower(strings.TrimSpace(hr))
		if candidate == "" {
			continue
		}
		if strings.Contains(candidate, device) || strings.Contains(device, candidate) {
			return hr
		}
	}

	return ""
}
