package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

type AppointmentStatus string

const (
	StatusScheduled   AppointmentStatus = "scheduled"
	StatusCompleted   AppointmentStatus = "completed"
	StatusCancelled   AppointmentStatus = "cancelled"
	StatusRescheduled AppointmentStatus = "rescheduled"
)

// Appointment is a booked session between a client and a professional.
type Appointment struct {
	ID                uint              `json:"id" gorm:"primaryKey"`
	UserID            uint              `json:"user_id" gorm:"index;not null"`
	Client            *Profile          `json:"client,omitempty" gorm:"foreignKey:UserID"`
	ProfessionalID    uint              `json:"professional_id" gorm:"index;not null"`
	Professional      *Profile          `json:"professional,omitempty" gorm:"foreignKey:ProfessionalID"`
	ProductID         uint              `json:"product_id"`
	CreditID          uint              `json:"credit_id" gorm:"index;not null"`
	AppointmentType   AppointmentType   `json:"appointment_type" gorm:"size:10;not null"`
	Status            AppointmentStatus `json:"status" gorm:"size:20;index;not null"`
	StartAt           time.Time         `json:"start_at" gorm:"index;not null"`
	EndAt             time.Time         `json:"end_at" gorm:"not null"`
	VideoRoomName     string            `json:"video_room_name,omitempty" gorm:"size:120"`
	VideoRoomURL      string            `json:"video_room_url,omitempty"`
	RescheduledFromID *uint             `json:"rescheduled_from_id,omitempty"`
	ReminderSentAt    *time.Time        `json:"reminder_sent_at,omitempty"`
	CancelledAt       *time.Time        `json:"cancelled_at,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

func (a *Appointment) BeforeCreate(tx *gorm.DB) error {
	if a.Status == "" {
		a.Status = StatusScheduled
	}
	if !a.StartAt.Before(a.EndAt) {
		return fmt.Errorf("appointment must start before it ends")
	}
	return nil
}

// TransitionTo applies a status change. Only scheduled appointments move.
func (a *Appointment) TransitionTo(next AppointmentStatus) error {
	switch a.Status {
	case StatusScheduled:
		if next != StatusCompleted && next != StatusCancelled && next != StatusRescheduled {
			return fmt.Errorf("invalid transition from scheduled to %s", next)
		}
	case StatusCompleted, StatusCancelled, StatusRescheduled:
		return fmt.Errorf("no transitions allowed from %s", a.Status)
	default:
		return fmt.Errorf("unknown appointment status %q", a.Status)
	}
	a.Status = next
	return nil
}

// IsWithinWindow reports whether now falls inside [StartAt, EndAt].
func (a *Appointment) IsWithinWindow(now time.Time) bool {
	return !now.Before(a.StartAt) && !now.After(a.EndAt)
}

// Overlaps reports whether the appointment intersects [start, end).
func (a *Appointment) Overlaps(start, end time.Time) bool {
	return a.StartAt.Before(end) && a.EndAt.After(start)
}

func (a *Appointment) IsParticipant(userID uint) bool {
	return userID != 0 && (a.UserID == userID || a.ProfessionalID == userID)
}
