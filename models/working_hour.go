package models

import (
	"fmt"
	"time"
)

type DayOfWeek int

const (
	Sunday DayOfWeek = iota
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

// WorkingHours is one weekday of a professional's agenda.
type WorkingHours struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	ProfessionalID uint      `json:"professional_id" gorm:"index;not null"`
	DayOfWeek      DayOfWeek `json:"day_of_week"`
	StartTime      string    `json:"start_time"` // Format "HH:MM" in 24h
	EndTime        string    `json:"end_time"`   // Format "HH:MM" in 24h
	IsWorkDay      bool      `json:"is_work_day"`
	BreakStart     *string   `json:"break_start"` // Optional break start time
	BreakEnd       *string   `json:"break_end"`   // Optional break end time
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Validate checks the clock fields parse and are ordered.
func (w *WorkingHours) Validate() error {
	if w.DayOfWeek < Sunday || w.DayOfWeek > Saturday {
		return fmt.Errorf("day_of_week must be between 0 and 6")
	}
	start, err := ParseClock(w.StartTime)
	if err != nil {
		return fmt.Errorf("invalid start_time: %w", err)
	}
	end, err := ParseClock(w.EndTime)
	if err != nil {
		return fmt.Errorf("invalid end_time: %w", err)
	}
	if end <= start {
		return fmt.Errorf("end_time must be after start_time")
	}
	if (w.BreakStart == nil) != (w.BreakEnd == nil) {
		return fmt.Errorf("break_start and break_end must be set together")
	}
	if w.BreakStart != nil {
		bs, err := ParseClock(*w.BreakStart)
		if err != nil {
			return fmt.Errorf("invalid break_start: %w", err)
		}
		be, err := ParseClock(*w.BreakEnd)
		if err != nil {
			return fmt.Errorf("invalid break_end: %w", err)
		}
		if be <= bs {
			return fmt.Errorf("break_end must be after break_start")
		}
	}
	return nil
}

// ParseClock parses "HH:MM" into an offset from midnight.
func ParseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// Slot is a candidate appointment window.
type Slot struct {
	StartAt time.Time `json:"start_at"`
	EndAt   time.Time `json:"end_at"`
}
