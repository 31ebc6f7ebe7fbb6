package models

import "time"

// SessionNotes are the professional's clinical notes, one row per appointment.
type SessionNotes struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	AppointmentID  uint      `json:"appointment_id" gorm:"uniqueIndex;not null"`
	ProfessionalID uint      `json:"professional_id" gorm:"index;not null"`
	ClientID       uint      `json:"client_id" gorm:"index;not null"`
	Content        string    `json:"content" gorm:"type:text"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
