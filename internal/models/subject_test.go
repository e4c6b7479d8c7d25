package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestValidateSharingTransition(t *testing.T) {
	cases := []struct {
		from, to string
		ok       bool
	}{
		{SharingStateDisabled, SharingStateSharing, true},
		{SharingStateSharing, SharingStatePaused, true},
		{SharingStatePaused, SharingStateSharing, true},
		{SharingStateSharing, SharingStateDisabled, true},
		{SharingStatePaused, SharingStateDisabled, true},
		{SharingStateDisabled, SharingStatePaused, false},
		{SharingStateSharing, SharingStateSharing, true},
	}

	for _, tc := range cases {
		err := ValidateSharingTransition(tc.from, tc.to)
		if tc.ok {
			require.NoError(t, err, "%s -> %s", tc.from, tc.to)
		} else {
			require.Error(t, err, "%s -> %s", tc.from, tc.to)
		}
	}

	require.Error(t, ValidateSharingTransition("unknown", SharingStateSharing))
}

func TestInOfficeHoursMatchesWeekdayAndClock(t *testing.T) {
	subject := Subject{}
	require.NoError(t, subject.SetOfficeHourSlots([]OfficeHourSlot{
		{Weekday: time.Tuesday, Start: "08:00", End: "10:00"},
	}))

	tuesdayInside := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	require.Equal(t, time.Tuesday, tuesdayInside.Weekday())
	require.True(t, subject.InOfficeHours(tuesdayInside))

	tuesdayAfter := time.Date(2026, time.March, 10, 10, 0, 0, 0, time.UTC)
	require.False(t, subject.InOfficeHours(tuesdayAfter))

	wednesday := time.Date(2026, time.March, 11, 9, 0, 0, 0, time.UTC)
	require.False(t, subject.InOfficeHours(wednesday))
}

func TestPresenceRecordStaleAt(t *testing.T) {
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	record := PresenceRecord{CapturedAt: now.Add(-25 * time.Hour)}

	require.True(t, record.StaleAt(now, 24*time.Hour))
	require.False(t, record.StaleAt(now, 48*time.Hour))
}
