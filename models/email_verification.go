package models

import "time"

// EmailVerification stores the digest of a single-use verification token.
// The raw token is never persisted.
type EmailVerification struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	UserID    uint       `json:"user_id" gorm:"index;not null"`
	TokenHash string     `json:"-" gorm:"size:64;uniqueIndex;not null"`
	ExpiresAt time.Time  `json:"expires_at" gorm:"not null"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func (v *EmailVerification) IsUsed() bool { return v.UsedAt != nil }

func (v *EmailVerification) IsExpired(now time.Time) bool { return now.After(v.ExpiresAt) }
