package models

import "time"

// ChatMessage is an append-only message exchanged inside a chat session.
type ChatMessage struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	AppointmentID uint      `json:"appointment_id" gorm:"index:idx_chat_appointment_created;not null"`
	SenderID      uint      `json:"sender_id" gorm:"not null"`
	SenderRole    Role      `json:"sender_role" gorm:"size:20;not null"`
	Message       string    `json:"message" gorm:"type:text;not null"`
	CreatedAt     time.Time `json:"created_at" gorm:"index:idx_chat_appointment_created"`
}
