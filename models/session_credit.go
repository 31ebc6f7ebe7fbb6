package models

import (
	"errors"
	"time"
)

type CreditStatus string

const (
	CreditActive   CreditStatus = "active"
	CreditConsumed CreditStatus = "consumed"
	CreditRefunded CreditStatus = "refunded"
)

var (
	ErrCreditExhausted = errors.New("credit has no remaining sessions")
	ErrCreditUnused    = errors.New("credit has no used sessions to return")
)

// SessionCredit is a prepaid allotment of sessions with one professional for
// one appointment type.
type SessionCredit struct {
	ID              uint            `json:"id" gorm:"primaryKey"`
	UserID          uint            `json:"user_id" gorm:"index:idx_credit_owner;not null"`
	ProfessionalID  uint            `json:"professional_id" gorm:"index:idx_credit_owner;not null"`
	AppointmentType AppointmentType `json:"appointment_type" gorm:"index:idx_credit_owner;size:10;not null"`
	Total           int             `json:"total" gorm:"not null"`
	Used            int             `json:"used" gorm:"not null;default:0"`
	Status          CreditStatus    `json:"status" gorm:"size:20;not null"`
	OrderID         uint            `json:"order_id" gorm:"uniqueIndex;not null"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (c *SessionCredit) Remaining() int { return c.Total - c.Used }

func (c *SessionCredit) Spendable() bool {
	return c.Status == CreditActive && c.Used < c.Total
}

// Consume takes one session from the credit.
func (c *SessionCredit) Consume() error {
	if !c.Spendable() {
		return ErrCreditExhausted
	}
	c.Used++
	if c.Used == c.Total {
		c.Status = CreditConsumed
	}
	return nil
}

// Refund returns one session to the credit.
func (c *SessionCredit) Refund() error {
	if c.Used == 0 || c.Status == CreditRefunded {
		return ErrCreditUnused
	}
	c.Used--
	c.Status = CreditActive
	return nil
}
