package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/psicanalise-online/platform/models"
	"github.com/psicanalise-online/platform/repository"
	"github.com/psicanalise-online/platform/utils"
)

const (
	defaultNotificationLimit = 20
	maxNotificationLimit     = 100
)

type NotificationService struct {
	store  repository.Store
	pusher Pusher
	now    func() time.Time
	log    *zap.Logger
}

func NewNotificationService(store repository.Store, pusher Pusher, log *zap.Logger) *NotificationService {
	if pusher == nil {
		pusher = noopPusher{}
	}
	return &NotificationService{store: store, pusher: pusher, now: time.Now, log: log}
}

// Create records a notification through st, which may be a transaction.
// Callers push it with Push once the transaction commits.
func (s *NotificationService) Create(ctx context.Context, st repository.Store, n *models.Notification) error {
	if !n.Type.Valid() {
		return utils.NewValidation("unknown notification type")
	}
	n.IsRead = false
	n.ReadAt = nil
	return st.CreateNotification(ctx, n)
}

func (s *NotificationService) Push(notifications ...*models.Notification) {
	for _, n := range notifications {
		s.pusher.Push([]uint{n.UserID}, "notification", n)
	}
}

// Notify creates and pushes a notification outside any workflow transaction.
func (s *NotificationService) Notify(ctx context.Context, n *models.Notification) error {
	if err := s.Create(ctx, s.store, n); err != nil {
		return err
	}
	s.Push(n)
	return nil
}

type ListNotificationsInput struct {
	UnreadOnly bool
	Limit      int
	Offset     int
}

type NotificationPage struct {
	Notifications []models.Notification `json:"notifications"`
	Total         int64                 `json:"total"`
	UnreadCount   int64                 `json:"unread_count"`
	Limit         int                   `json:"limit"`
	Offset        int                   `json:"offset"`
}

func normalizePage(limit, offset, def, max int) (int, int) {
	if limit <= 0 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (s *NotificationService) List(ctx context.Context, caller Caller, in ListNotificationsInput) (*NotificationPage, error) {
	if caller.UserID == 0 {
		return nil, utils.ErrUnauthorized
	}
	limit, offset := normalizePage(in.Limit, in.Offset, defaultNotificationLimit, maxNotificationLimit)

	items, total, err := s.store.ListNotifications(ctx, repository.NotificationFilter{
		UserID:     caller.UserID,
		UnreadOnly: in.UnreadOnly,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		return nil, utils.NewInternal(err)
	}
	unread, err := s.store.CountUnreadNotifications(ctx, caller.UserID)
	if err != nil {
		return nil, utils.NewInternal(err)
	}
	if items == nil {
		items = []models.Notification{}
	}
	return &NotificationPage{Notifications: items, Total: total, UnreadCount: unread, Limit: limit, Offset: offset}, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, caller Caller) (int64, error) {
	if caller.UserID == 0 {
		return 0, utils.ErrUnauthorized
	}
	n, err := s.store.CountUnreadNotifications(ctx, caller.UserID)
	if err != nil {
		return 0, utils.NewInternal(err)
	}
	return n, nil
}

// MarkAsRead marks one of the caller's notifications. Marking an already read
// notification succeeds without changes.
func (s *NotificationService) MarkAsRead(ctx context.Context, caller Caller, id uint) error {
	if caller.UserID == 0 {
		return utils.ErrUnauthorized
	}
	err := s.store.MarkNotificationRead(ctx, caller.UserID, id, s.now())
	return storeErr(err, "notification not found")
}

func (s *NotificationService) MarkAllAsRead(ctx context.Context, caller Caller) (int64, error) {
	if caller.UserID == 0 {
		return 0, utils.ErrUnauthorized
	}
	n, err := s.store.MarkAllNotificationsRead(ctx, caller.UserID, s.now())
	if err != nil {
		return 0, utils.NewInternal(err)
	}
	return n, nil
}

func (s *NotificationService) Delete(ctx context.Context, caller Caller, id uint) error {
	if caller.UserID == 0 {
		return utils.ErrUnauthorized
	}
	return storeErr(s.store.DeleteNotification(ctx, caller.UserID, id), "notification not found")
}

func (s *NotificationService) DeleteAllRead(ctx context.Context, caller Caller) (int64, error) {
	if caller.UserID == 0 {
		return 0, utils.ErrUnauthorized
	}
	n, err := s.store.DeleteReadNotifications(ctx, caller.UserID)
	if err != nil {
		return 0, utils.NewInternal(err)
	}
	return n, nil
}
