package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMapStatus(t *testing.T) {
	cases := []struct {
		raw   string
		want  string
		known bool
	}{
		{"completed", StatusCompleted, true},
		{"success", StatusCompleted, true},
		{"failed", StatusFailed, true},
		{"cancelled", StatusFailed, true},
		{"refunded", StatusRefunded, true},
		{"pending", StatusPending, true},
		{"on-hold", StatusPending, true},
		{"payment-confirm", StatusPending, true},
		{"COMPLETED", StatusCompleted, true},
		{" completed ", StatusCompleted, true},
		{"complated", StatusPending, false},
		{"", StatusPending, false},
	}
	for _, tc := range cases {
		got, known := MapStatus(tc.raw)
		require.Equal(t, tc.want, got, "status %q", tc.raw)
		require.Equal(t, tc.known, known, "status %q", tc.raw)
	}
}

func TestNearestStatusSuggestsTypoFix(t *testing.T) {
	require.Equal(t, "completed", nearestStatus("complated"))
	require.Equal(t, "refunded", nearestStatus("refund"))
}
