package carriers

import (
	"fmt"
	"regexp"
	"strings"
)

// statusLabels maps the carrier's numeric status codes to stable labels.
// Carrier contract knowledge, subject to change with their API.
var statusLabels = map[string]string{
	"1":  "AWB Assigned",
	"2":  "Label Generated",
	"3":  "Pickup Scheduled",
	"4":  "Picked Up",
	"5":  "In Transit",
	"6":  "Out for Delivery",
	"7":  "Delivered",
	"8":  "Cancelled",
	"9":  "RTO Initiated",
	"10": "RTO Delivered",
	"11": "Lost",
	"12": "Damaged",
}

// IsNumericStatus reports whether s consists only of ASCII digits. The
// carrier sometimes reports status as a bare code, sometimes as free text.
func IsNumericStatus(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// NormalizeStatus maps a numeric carrier status code to its label. Unmapped
// codes get a fallback label embedding the raw code; free text passes
// through unchanged. Deterministic and side-effect-free: it is applied both
// to live sync results and when redisplaying stored statuses.
func NormalizeStatus(status string) string {
	status = strings.TrimSpace(status)
	if !IsNumericStatus(status) {
		return status
	}
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return fmt.Sprintf("Tracking in progress (code %s)", status)
}

// currentAWBPattern matches the carrier's refusal to reassign an AWB to a
// different courier; the refusal discloses the AWB it already holds.
// Carrier contract knowledge, subject to change.
var currentAWBPattern = regexp.MustCompile(`Current AWB\s+([A-Za-z0-9-]+)`)

// SalvageAWB scans a failed AWB-assignment error body for the carrier's
// "Current AWB <value>" signature and recovers the AWB it discloses. This
// turns a narrow class of 4xx responses into a partial success.
func SalvageAWB(errText string) (string, bool) {
	m := currentAWBPattern.FindStringSubmatch(errText)
	if len(m) != 2 {
		return "", false
	}
	return m[1], true
}

// IsInvalidPickupLocation reports whether a stored carrier response indicates
// the creation payload named a pickup location the carrier rejects. Retrying
// cannot help; reconciliation forces the shipment into the error state.
func IsInvalidPickupLocation(raw string) bool {
	lower := strings.ToLower(raw)
	return strings.Contains(lower, "pickup location") &&
		(strings.Contains(lower, "invalid") || strings.Contains(lower, "does not exist"))
}
