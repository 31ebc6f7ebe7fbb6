package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/psicanalise-online/platform/models"
	"github.com/psicanalise-online/platform/repository"
	"github.com/psicanalise-online/platform/utils"
)

const (
	roomEarlyJoin     = 10 * time.Minute
	roomGracePeriod   = 2 * time.Hour
	maxMessageLength  = 4000
	chatMessageEvent  = "chat_message"
	roomWaitingStatus = "waiting"
	roomOpenStatus    = "open"
	roomClosedStatus  = "closed"
)

type RoomService struct {
	store         repository.Store
	video         VideoRooms
	pusher        Pusher
	notifications *NotificationService
	now           func() time.Time
	log           *zap.Logger
}

func NewRoomService(store repository.Store, video VideoRooms, pusher Pusher, notifications *NotificationService, log *zap.Logger) *RoomService {
	if pusher == nil {
		pusher = noopPusher{}
	}
	return &RoomService{store: store, video: video, pusher: pusher, notifications: notifications, now: time.Now, log: log}
}

type Participant struct {
	ID     uint   `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar_url,omitempty"`
}

// RoomView is what a participant sees when opening a session room.
type RoomView struct {
	AppointmentID     uint                     `json:"appointment_id"`
	AppointmentType   models.AppointmentType   `json:"appointment_type"`
	AppointmentStatus models.AppointmentStatus `json:"appointment_status"`
	Status            string                   `json:"status"`
	StartAt           time.Time                `json:"start_at"`
	EndAt             time.Time                `json:"end_at"`
	IsWithinWindow    bool                     `json:"is_within_window"`
	CanJoin           bool                     `json:"can_join"`
	RoomURL           string                   `json:"room_url,omitempty"`
	MeetingToken      string                   `json:"meeting_token,omitempty"`
	Client            Participant              `json:"client"`
	Professional      Participant              `json:"professional"`
}

func participant(p *models.Profile, id uint) Participant {
	if p == nil {
		return Participant{ID: id}
	}
	return Participant{ID: p.ID, Name: p.Name, Avatar: p.AvatarURL}
}

func (s *RoomService) load(ctx context.Context, caller Caller, id uint) (*models.Appointment, error) {
	if caller.UserID == 0 {
		return nil, utils.ErrUnauthorized
	}
	a, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		return nil, storeErr(err, "appointment not found")
	}
	if err := Authorize(caller, Resource{Kind: ResourceAppointment, OwnerID: a.UserID, ProfessionalID: a.ProfessionalID}, ActionRead); err != nil {
		return nil, err
	}
	return a, nil
}

// Open returns the room state for a participant. Video rooms are created on
// first entry inside the session window.
func (s *RoomService) Open(ctx context.Context, caller Caller, id uint) (*RoomView, error) {
	a, err := s.load(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	within := a.IsWithinWindow(now)

	view := &RoomView{
		AppointmentID:     a.ID,
		AppointmentType:   a.AppointmentType,
		AppointmentStatus: a.Status,
		Status:            roomWaitingStatus,
		StartAt:           a.StartAt,
		EndAt:             a.EndAt,
		IsWithinWindow:    within,
		Client:            participant(a.Client, a.UserID),
		Professional:      participant(a.Professional, a.ProfessionalID),
	}
	if a.Status != models.StatusScheduled || now.After(a.EndAt) {
		view.Status = roomClosedStatus
		view.IsWithinWindow = false
		return view, nil
	}
	if !within {
		return view, nil
	}

	view.Status = roomOpenStatus
	view.CanJoin = true
	if a.AppointmentType != models.TypeVideo {
		return view, nil
	}

	if a.VideoRoomURL == "" {
		if err := s.attachRoom(ctx, a); err != nil {
			return nil, err
		}
		if a.Status != models.StatusScheduled {
			view.AppointmentStatus = a.Status
			view.Status = roomClosedStatus
			view.IsWithinWindow = false
			view.CanJoin = false
			return view, nil
		}
	}
	view.RoomURL = a.VideoRoomURL

	token, err := s.video.CreateMeetingToken(ctx, MeetingTokenRequest{
		RoomName:  a.VideoRoomName,
		UserName:  caller.Name,
		IsOwner:   caller.UserID == a.ProfessionalID,
		ExpiresAt: a.EndAt.Add(roomGracePeriod),
	})
	if err != nil {
		s.log.Warn("meeting token unavailable", zap.Uint("appointment_id", a.ID), zap.Error(err))
	} else {
		view.MeetingToken = token
	}
	return view, nil
}

// attachRoom creates a provider room and stores it unless another request or
// a cancellation got there first, in which case a is reloaded. A losing room
// is left to expire on the provider side.
func (s *RoomService) attachRoom(ctx context.Context, a *models.Appointment) error {
	room, err := s.video.CreateRoom(ctx, RoomRequest{
		Name:      "session-" + uuid.NewString(),
		NotBefore: a.StartAt.Add(-roomEarlyJoin),
		ExpiresAt: a.EndAt.Add(roomGracePeriod),
	})
	if err != nil {
		return utils.NewUpstream("failed to create video room", err)
	}
	won, err := s.store.SetVideoRoom(ctx, a.ID, room.Name, room.URL)
	if err != nil {
		return utils.NewInternal(err)
	}
	if won {
		a.VideoRoomName = room.Name
		a.VideoRoomURL = room.URL
		return nil
	}

	current, err := s.store.GetAppointment(ctx, a.ID)
	if err != nil {
		return storeErr(err, "appointment not found")
	}
	s.log.Debug("video room already attached", zap.Uint("appointment_id", a.ID), zap.String("discarded_room", room.Name))
	*a = *current
	return nil
}

func (s *RoomService) ListMessages(ctx context.Context, caller Caller, id uint) ([]models.ChatMessage, error) {
	a, err := s.load(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	messages, err := s.store.ListChatMessages(ctx, a.ID)
	if err != nil {
		return nil, utils.NewInternal(err)
	}
	if messages == nil {
		messages = []models.ChatMessage{}
	}
	return messages, nil
}

// SendMessage appends a chat message and pushes it to both participants.
func (s *RoomService) SendMessage(ctx context.Context, caller Caller, id uint, text string) (*models.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, utils.NewValidation("message is required")
	}
	if utf8.RuneCountInString(text) > maxMessageLength {
		return nil, utils.NewValidation(fmt.Sprintf("message cannot exceed %d characters", maxMessageLength))
	}
	a, err := s.load(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if a.AppointmentType != models.TypeChat {
		return nil, utils.NewValidation("chat is only available for chat sessions")
	}
	if a.Status != models.StatusScheduled || !a.IsWithinWindow(s.now()) {
		return nil, utils.NewValidation("chat is only available during the session")
	}

	role := models.RoleClient
	if caller.UserID == a.ProfessionalID {
		role = models.RoleProfessional
	}
	msg := &models.ChatMessage{
		AppointmentID: a.ID,
		SenderID:      caller.UserID,
		SenderRole:    role,
		Message:       text,
	}

	var created *models.Notification
	err = s.store.Tx(ctx, func(tx repository.Store) error {
		if err := tx.CreateChatMessage(ctx, msg); err != nil {
			return err
		}
		created = &models.Notification{
			UserID:  otherParty(a, caller.UserID),
			Type:    models.NotifyChatMessage,
			Title:   "Nova mensagem",
			Message: fmt.Sprintf("%s enviou uma mensagem.", caller.Name),
			Metadata: map[string]interface{}{
				"appointment_id": a.ID,
				"message_id":     msg.ID,
			},
		}
		return s.notifications.Create(ctx, tx, created)
	})
	if err != nil {
		return nil, utils.NewInternal(err)
	}

	s.pusher.Push([]uint{a.UserID, a.ProfessionalID}, chatMessageEvent, msg)
	s.notifications.Push(created)
	return msg, nil
}
