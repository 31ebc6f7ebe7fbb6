package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/psicanalise-online/platform/models"
	"github.com/psicanalise-online/platform/repository"
)

const (
	outboxBatchSize   = 50
	outboxMaxAttempts = 5
	outboxBaseBackoff = 30 * time.Second
)

// Event types published through the outbox.
const (
	EventOrderPaid              = "order.paid"
	EventOrderCancelled         = "order.cancelled"
	EventAppointmentBooked      = "appointment.booked"
	EventAppointmentCancelled   = "appointment.cancelled"
	EventAppointmentRescheduled = "appointment.rescheduled"
	EventEmailVerified          = "profile.email_verified"
)

type EmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body,omitempty"`
}

func enqueueEmail(ctx context.Context, st repository.Store, now time.Time, to, subject, body string) error {
	payload, err := json.Marshal(EmailPayload{To: to, Subject: subject, Body: body})
	if err != nil {
		return err
	}
	return st.EnqueueOutbox(ctx, &models.OutboxMessage{
		Kind:        models.OutboxEmail,
		Topic:       "email",
		Key:         to,
		Payload:     datatypes.JSON(payload),
		Status:      models.OutboxReady,
		AvailableAt: now,
	})
}

func enqueueEvent(ctx context.Context, st repository.Store, now time.Time, eventType, key string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return st.EnqueueOutbox(ctx, &models.OutboxMessage{
		Kind:        models.OutboxEvent,
		Topic:       eventType,
		Key:         key,
		Payload:     datatypes.JSON(payload),
		Status:      models.OutboxReady,
		AvailableAt: now,
	})
}

// OutboxRelay delivers outbox rows: emails through the Mailer and events
// through the EventPublisher.
type OutboxRelay struct {
	store     repository.Store
	mailer    Mailer
	publisher EventPublisher
	now       func() time.Time
	log       *zap.Logger
}

func NewOutboxRelay(store repository.Store, mailer Mailer, publisher EventPublisher, log *zap.Logger) *OutboxRelay {
	return &OutboxRelay{store: store, mailer: mailer, publisher: publisher, now: time.Now, log: log}
}

// RunOnce delivers one batch of due messages and returns how many were sent.
func (r *OutboxRelay) RunOnce(ctx context.Context) (int, error) {
	sent := 0
	err := r.store.Tx(ctx, func(tx repository.Store) error {
		due, err := tx.ListDueOutbox(ctx, r.now(), outboxBatchSize)
		if err != nil {
			return err
		}
		for i := range due {
			msg := &due[i]
			if deliverErr := r.deliver(ctx, msg); deliverErr != nil {
				r.fail(msg, deliverErr)
			} else {
				r.succeed(msg)
				sent++
			}
			if err := tx.UpdateOutbox(ctx, msg); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return sent, fmt.Errorf("outbox relay: %w", err)
	}
	return sent, nil
}

func (r *OutboxRelay) deliver(ctx context.Context, msg *models.OutboxMessage) error {
	switch msg.Kind {
	case models.OutboxEmail:
		var email EmailPayload
		if err := json.Unmarshal(msg.Payload, &email); err != nil {
			return fmt.Errorf("decode email payload: %w", err)
		}
		return r.mailer.Send(ctx, email.To, email.Subject, email.Body)
	case models.OutboxEvent:
		return r.publisher.Publish(ctx, msg.Topic, msg.Key, msg.Payload)
	default:
		return fmt.Errorf("unknown outbox kind %q", msg.Kind)
	}
}

func (r *OutboxRelay) succeed(msg *models.OutboxMessage) {
	now := r.now()
	msg.Status = models.OutboxSent
	msg.SentAt = &now
	msg.LastError = ""
	if msg.Kind == models.OutboxEmail {
		// Verification links carry raw tokens; keep only the envelope.
		var email EmailPayload
		if err := json.Unmarshal(msg.Payload, &email); err == nil {
			email.Body = ""
			if scrubbed, err := json.Marshal(email); err == nil {
				msg.Payload = datatypes.JSON(scrubbed)
			}
		}
	}
}

func (r *OutboxRelay) fail(msg *models.OutboxMessage, err error) {
	msg.Attempts++
	msg.LastError = err.Error()
	if msg.Attempts >= outboxMaxAttempts {
		msg.Status = models.OutboxDead
		r.log.Error("outbox message dead-lettered",
			zap.Uint("id", msg.ID), zap.String("kind", string(msg.Kind)), zap.String("topic", msg.Topic), zap.Error(err))
		return
	}
	msg.Status = models.OutboxRetry
	msg.AvailableAt = r.now().Add(time.Duration(msg.Attempts*msg.Attempts) * outboxBaseBackoff)
	r.log.Warn("outbox delivery failed",
		zap.Uint("id", msg.ID), zap.Int("attempts", msg.Attempts), zap.Error(err))
}
