package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name       string
		delta      time.Duration
		status     Status
		recordable bool
	}{
		{"ninety minutes early is present", -90 * time.Minute, StatusPresent, true},
		{"twenty minutes past start is late", 20 * time.Minute, StatusLate, true},
		{"forty-five minutes past start records nothing", 45 * time.Minute, "", false},
		{"fifteen minutes early falls in the gap", -15 * time.Minute, "", false},
		{"thirty minutes early falls in the gap", -30 * time.Minute, "", false},
		{"exactly on time falls in the gap", 0, "", false},
		{"exactly one hour early falls in the gap", -time.Hour, "", false},
		{"one second past the early window is present", -time.Hour - time.Second, StatusPresent, true},
		{"exactly thirty minutes past start is late", 30 * time.Minute, StatusLate, true},
		{"one second past the late cutoff records nothing", 30*time.Minute + time.Second, "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, recordable := Classify(tc.delta)
			require.Equal(t, tc.recordable, recordable)
			require.Equal(t, tc.status, status)
		})
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	for _, delta := range []time.Duration{-2 * time.Hour, -30 * time.Minute, 10 * time.Minute, time.Hour} {
		first, firstOK := Classify(delta)
		for i := 0; i < 5; i++ {
			status, ok := Classify(delta)
			require.Equal(t, first, status)
			require.Equal(t, firstOK, ok)
		}
	}
}
