package utils

import (
	"time"

	"github.com/samber/lo"

	"github.com/psicanalise-online/platform/models"
)

// SlotStep is the spacing between consecutive slot starts.
const SlotStep = time.Hour

// GenerateSlots expands weekly working hours into concrete slots of the given
// length inside [from, to]. Days are evaluated in loc, so "09:00" means nine
// o'clock at the professional's location regardless of the caller's zone.
func GenerateSlots(hours []models.WorkingHours, loc *time.Location, from, to time.Time, length time.Duration) []models.Slot {
	if length <= 0 || !from.Before(to) {
		return nil
	}
	step := SlotStep
	if length > step {
		step = length
	}

	byDay := lo.KeyBy(
		lo.Filter(hours, func(w models.WorkingHours, _ int) bool { return w.IsWorkDay }),
		func(w models.WorkingHours) models.DayOfWeek { return w.DayOfWeek },
	)

	var slots []models.Slot
	localFrom := from.In(loc)
	day := time.Date(localFrom.Year(), localFrom.Month(), localFrom.Day(), 0, 0, 0, 0, loc)
	for ; day.Before(to); day = day.AddDate(0, 0, 1) {
		wh, ok := byDay[models.DayOfWeek(day.Weekday())]
		if !ok {
			continue
		}
		open, errOpen := models.ParseClock(wh.StartTime)
		closeAt, errClose := models.ParseClock(wh.EndTime)
		if errOpen != nil || errClose != nil {
			continue
		}
		dayEnd := atClock(day, closeAt)

		var breakStart, breakEnd time.Time
		hasBreak := false
		if wh.BreakStart != nil && wh.BreakEnd != nil {
			bs, err1 := models.ParseClock(*wh.BreakStart)
			be, err2 := models.ParseClock(*wh.BreakEnd)
			if err1 == nil && err2 == nil {
				breakStart, breakEnd, hasBreak = atClock(day, bs), atClock(day, be), true
			}
		}

		for start := atClock(day, open); !start.Add(length).After(dayEnd); start = start.Add(step) {
			end := start.Add(length)
			if start.Before(from) || end.After(to) {
				continue
			}
			if hasBreak && start.Before(breakEnd) && end.After(breakStart) {
				continue
			}
			slots = append(slots, models.Slot{StartAt: start, EndAt: end})
		}
	}
	return slots
}

func atClock(day time.Time, offset time.Duration) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), int(offset/time.Hour), int(offset%time.Hour/time.Minute), 0, 0, day.Location())
}

// FreeSlots drops slots that intersect any of the busy appointments.
func FreeSlots(slots []models.Slot, busy []models.Appointment) []models.Slot {
	return lo.Filter(slots, func(s models.Slot, _ int) bool {
		return !lo.SomeBy(busy, func(a models.Appointment) bool {
			return a.Status == models.StatusScheduled && a.Overlaps(s.StartAt, s.EndAt)
		})
	})
}

// ContainsSlot reports whether a slot starting at start exists in slots.
func ContainsSlot(slots []models.Slot, start time.Time) bool {
	return lo.ContainsBy(slots, func(s models.Slot) bool { return s.StartAt.Equal(start) })
}
