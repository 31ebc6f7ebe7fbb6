package models

import "time"

type AppointmentType string

const (
	TypeVideo AppointmentType = "video"
	TypeChat  AppointmentType = "chat"
)

func (t AppointmentType) Valid() bool {
	return t == TypeVideo || t == TypeChat
}

const DefaultSessionMinutes = 50

// Product is a package of sessions sold by a professional.
type Product struct {
	ID              uint            `json:"id" gorm:"primaryKey"`
	ProfessionalID  uint            `json:"professional_id" gorm:"index;not null"`
	Professional    *Profile        `json:"professional,omitempty" gorm:"foreignKey:ProfessionalID"`
	Name            string          `json:"name" gorm:"size:160;not null"`
	Description     string          `json:"description"`
	AppointmentType AppointmentType `json:"appointment_type" gorm:"size:10;not null"`
	SessionsCount   int             `json:"sessions_count" gorm:"not null"`
	PriceCents      int64           `json:"price_cents" gorm:"not null"`
	DurationMinutes int             `json:"duration_minutes" gorm:"not null"`
	IsActive        bool            `json:"is_active"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// SessionLength is the length of one booked session.
func (p *Product) SessionLength() time.Duration {
	if p.DurationMinutes <= 0 {
		return DefaultSessionMinutes * time.Minute
	}
	return time.Duration(p.DurationMinutes) * time.Minute
}
