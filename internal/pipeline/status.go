package pipeline

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// Target transaction statuses. Every legacy status string maps onto exactly
// one of these; unknown strings degrade to PENDING.
const (
	StatusPending   = "PENDING"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
	StatusRefunded  = "REFUNDED"
)

var statusTable = map[string]string{
	"completed":       StatusCompleted,
	"success":         StatusCompleted,
	"failed":          StatusFailed,
	"cancelled":       StatusFailed,
	"refunded":        StatusRefunded,
	"pending":         StatusPending,
	"on-hold":         StatusPending,
	"payment-confirm": StatusPending,
}

// MapStatus translates a legacy order status. The second return is false for
// strings outside the known table.
func MapStatus(raw string) (string, bool) {
	s, ok := statusTable[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return StatusPending, false
	}
	return s, true
}

// nearestStatus suggests the closest known legacy status for log messages
// about unknown strings, typically catching export typos like "complated".
func nearestStatus(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	best, bestDist := "", -1
	for known := range statusTable {
		d := levenshtein.ComputeDistance(raw, known)
		if bestDist < 0 || d < bestDist || (d == bestDist && known < best) {
			best, bestDist = known, d
		}
	}
	return best
}
