package services

import (
	"context"
	"io"
	"time"

	"github.com/psicanalise-online/platform/models"
)

// Caller is the authenticated identity attached to a request.
type Caller struct {
	UserID uint
	Role   models.Role
	Name   string
	Email  string
}

func (c Caller) IsProfessional() bool { return c.Role == models.RoleProfessional }

func (c Caller) IsClient() bool { return c.Role == models.RoleClient }

// ChargeRequest asks the payment rail to open a charge for an order.
type ChargeRequest struct {
	Reference     string
	Method        models.PaymentMethod
	AmountCents   int64
	Description   string
	CustomerName  string
	CustomerEmail string
}

// Charge is the rail's handle for an open charge. QRCode is only set for PIX.
type Charge struct {
	Reference string
	QRCode    string
}

// Confirmation is the rail's verdict on a charge.
type Confirmation struct {
	Confirmed bool
	Status    string
	Message   string
}

type PaymentRail interface {
	CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error)
	Confirm(ctx context.Context, method models.PaymentMethod, reference string) (*Confirmation, error)
}

type RoomRequest struct {
	Name      string
	NotBefore time.Time
	ExpiresAt time.Time
}

type Room struct {
	Name string
	URL  string
}

type MeetingTokenRequest struct {
	RoomName  string
	UserName  string
	IsOwner   bool
	ExpiresAt time.Time
}

type VideoRooms interface {
	CreateRoom(ctx context.Context, req RoomRequest) (*Room, error)
	CreateMeetingToken(ctx context.Context, req MeetingTokenRequest) (string, error)
}

type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

type EventPublisher interface {
	Publish(ctx context.Context, eventType, key string, payload []byte) error
}

// Locker hands out short-lived exclusive locks. ok is false when the key is
// already held.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// Cooldown reports whether an action keyed by key may run now, starting the
// cooldown window when it does.
type Cooldown interface {
	Allow(ctx context.Context, key string, window time.Duration) (bool, error)
}

type MediaUploader interface {
	Upload(ctx context.Context, file io.Reader, folder, publicID string) (string, error)
}

// Pusher delivers realtime events to connected users.
type Pusher interface {
	Push(userIDs []uint, eventType string, data interface{})
}

type noopPusher struct{}

func (noopPusher) Push([]uint, string, interface{}) {}
