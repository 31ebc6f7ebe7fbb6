package models

import (
	"time"

	"gorm.io/datatypes"
)

type NotificationType string

const (
	NotifyNewAppointment         NotificationType = "new_appointment"
	NotifyAppointmentCancelled   NotificationType = "appointment_cancelled"
	NotifyAppointmentRescheduled NotificationType = "appointment_rescheduled"
	NotifyPaymentValidated       NotificationType = "payment_validated"
	NotifyCreditsReleased        NotificationType = "credits_released"
	NotifyChatMessage            NotificationType = "chat_message"
	NotifyAppointmentReminder    NotificationType = "appointment_reminder"
	NotifyEmailVerified          NotificationType = "email_verified"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotifyNewAppointment, NotifyAppointmentCancelled, NotifyAppointmentRescheduled,
		NotifyPaymentValidated, NotifyCreditsReleased, NotifyChatMessage,
		NotifyAppointmentReminder, NotifyEmailVerified:
		return true
	}
	return false
}

type Notification struct {
	ID        uint              `json:"id" gorm:"primaryKey"`
	UserID    uint              `json:"user_id" gorm:"index:idx_notification_user_read;not null"`
	Type      NotificationType  `json:"type" gorm:"size:40;not null"`
	Title     string            `json:"title" gorm:"size:255;not null"`
	Message   string            `json:"message"`
	Metadata  datatypes.JSONMap `json:"metadata,omitempty" gorm:"type:jsonb"`
	IsRead    bool              `json:"is_read" gorm:"index:idx_notification_user_read;not null"`
	ReadAt    *time.Time        `json:"read_at,omitempty"`
	CreatedAt time.Time         `json:"created_at" gorm:"index"`
}
