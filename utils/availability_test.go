package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/psicanalise-online/platform/models"
)

func strPtr(s string) *string { return &s }

func TestGenerateSlotsHonoursBreaksAndLength(t *testing.T) {
	hours := []models.WorkingHours{{
		DayOfWeek:  models.Saturday,
		StartTime:  "09:00",
		EndTime:    "13:00",
		IsWorkDay:  true,
		BreakStart: strPtr("11:00"),
		BreakEnd:   strPtr("12:00"),
	}}
	// 2025-03-01 is a Saturday.
	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	slots := GenerateSlots(hours, time.UTC, from, to, 50*time.Minute)
	require.Len(t, slots, 3)
	require.Equal(t, 9, slots[0].StartAt.Hour())
	require.Equal(t, 10, slots[1].StartAt.Hour())
	require.Equal(t, 12, slots[2].StartAt.Hour())
	require.Equal(t, 50*time.Minute, slots[0].EndAt.Sub(slots[0].StartAt))
}

func TestGenerateSlotsUsesLocation(t *testing.T) {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)
	hours := []models.WorkingHours{{DayOfWeek: models.Monday, StartTime: "09:00", EndTime: "10:00", IsWorkDay: true}}
	from := time.Date(2025, 3, 3, 0, 0, 0, 0, loc)

	slots := GenerateSlots(hours, loc, from, from.Add(24*time.Hour), time.Hour)
	require.Len(t, slots, 1)
	require.Equal(t, time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC), slots[0].StartAt.UTC())
}

func TestGenerateSlotsSkipsNonWorkDays(t *testing.T) {
	hours := []models.WorkingHours{{DayOfWeek: models.Sunday, StartTime: "09:00", EndTime: "17:00", IsWorkDay: false}}
	from := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)
	require.Empty(t, GenerateSlots(hours, time.UTC, from, from.Add(24*time.Hour), time.Hour))
}

func TestFreeSlotsAndContains(t *testing.T) {
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	slots := []models.Slot{
		{StartAt: base, EndAt: base.Add(time.Hour)},
		{StartAt: base.Add(time.Hour), EndAt: base.Add(2 * time.Hour)},
	}
	busy := []models.Appointment{{Status: models.StatusScheduled, StartAt: base.Add(30 * time.Minute), EndAt: base.Add(90 * time.Minute)}}

	require.Empty(t, FreeSlots(slots, busy))
	busy[0].Status = models.StatusCancelled
	require.Len(t, FreeSlots(slots, busy), 2)
	require.True(t, ContainsSlot(slots, base.Add(time.Hour)))
	require.False(t, ContainsSlot(slots, base.Add(10*time.Minute)))
}
