package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStudyValidate(t *testing.T) {
	valid := Study{Name: "algo", Weekdays: []int{0, 2, 4}, StartTime: "08:00", RoomID: "room-1"}
	require.NoError(t, valid.Validate())

	cases := []struct {
		name  string
		study Study
	}{
		{"empty name", Study{Weekdays: []int{0}, StartTime: "08:00", RoomID: "room-1"}},
		{"empty room", Study{Name: "algo", Weekdays: []int{0}, StartTime: "08:00"}},
		{"no weekdays", Study{Name: "algo", StartTime: "08:00", RoomID: "room-1"}},
		{"weekday out of range", Study{Name: "algo", Weekdays: []int{7}, StartTime: "08:00", RoomID: "room-1"}},
		{"negative weekday", Study{Name: "algo", Weekdays: []int{-1}, StartTime: "08:00", RoomID: "room-1"}},
		{"malformed time", Study{Name: "algo", Weekdays: []int{0}, StartTime: "8am", RoomID: "room-1"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Error(t, tc.study.Validate())
		})
	}
}

func TestNormalizeWeekdays(t *testing.T) {
	require.Equal(t, []int{0, 2, 4}, NormalizeWeekdays([]int{4, 0, 2, 0, 4}))
	require.Empty(t, NormalizeWeekdays(nil))
}

func TestWeekdayIndexIsMondayBased(t *testing.T) {
	monday := time.Date(2025, time.June, 2, 9, 0, 0, 0, time.UTC)
	require.Equal(t, time.Monday, monday.Weekday())
	require.Equal(t, 0, WeekdayIndex(monday))

	sunday := time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC)
	require.Equal(t, 6, WeekdayIndex(sunday))
}

func TestParseStartTime(t *testing.T) {
	hour, minute, err := ParseStartTime("08:30")
	require.NoError(t, err)
	require.Equal(t, 8, hour)
	require.Equal(t, 30, minute)

	_, _, err = ParseStartTime("25:00")
	require.Error(t, err)
	_, _, err = ParseStartTime("")
	require.Error(t, err)
}
