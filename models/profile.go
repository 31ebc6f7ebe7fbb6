package models

import (
	"time"

	"gorm.io/gorm"
)

type Role string

const (
	RoleClient       Role = "client"
	RoleProfessional Role = "professional"
)

func (r Role) Valid() bool {
	return r == RoleClient || r == RoleProfessional
}

type ProfileStatus string

const (
	ProfilePending ProfileStatus = "pending"
	ProfileActive  ProfileStatus = "active"
	ProfileBlocked ProfileStatus = "blocked"
)

// Profile is a client or professional account.
type Profile struct {
	ID              uint           `json:"id" gorm:"primaryKey"`
	Name            string         `json:"name" gorm:"size:160;not null"`
	Email           string         `json:"email" gorm:"size:190;uniqueIndex;not null"`
	Phone           string         `json:"phone" gorm:"size:40"`
	PasswordHash    string         `json:"-" gorm:"size:255;not null"`
	Role            Role           `json:"role" gorm:"size:20;index;not null"`
	Status          ProfileStatus  `json:"status" gorm:"size:20;not null"`
	AvatarURL       string         `json:"avatar_url,omitempty"`
	EmailVerifiedAt *time.Time     `json:"email_verified_at"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

func (p *Profile) IsDeleted() bool { return p.DeletedAt.Valid }

func (p *Profile) IsVerified() bool { return p.EmailVerifiedAt != nil }

// CanAuthenticate reports whether the account may enter protected areas.
func (p *Profile) CanAuthenticate() bool {
	return p.Status != ProfileBlocked && !p.IsDeleted()
}
