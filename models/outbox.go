package models

import (
	"time"

	"gorm.io/datatypes"
)

type OutboxKind string

const (
	OutboxEmail OutboxKind = "email"
	OutboxEvent OutboxKind = "event"
)

type OutboxStatus string

const (
	OutboxReady OutboxStatus = "ready"
	OutboxRetry OutboxStatus = "retry"
	OutboxSent  OutboxStatus = "sent"
	OutboxDead  OutboxStatus = "dead"
)

// OutboxMessage is a side effect recorded in the same transaction as the
// state change that caused it, delivered later by the relay.
type OutboxMessage struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	Kind        OutboxKind     `json:"kind" gorm:"size:10;not null"`
	Topic       string         `json:"topic" gorm:"size:120;not null"`
	Key         string         `json:"key" gorm:"size:120"`
	Payload     datatypes.JSON `json:"payload" gorm:"type:jsonb"`
	Status      OutboxStatus   `json:"status" gorm:"size:10;index:idx_outbox_due;not null"`
	Attempts    int            `json:"attempts" gorm:"not null;default:0"`
	LastError   string         `json:"last_error,omitempty"`
	AvailableAt time.Time      `json:"available_at" gorm:"index:idx_outbox_due;not null"`
	SentAt      *time.Time     `json:"sent_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
