package services

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/psicanalise-online/platform/models"
	"github.com/psicanalise-online/platform/utils"
)

func seedNotifications(t *testing.T, f *fixture, userID uint, n int) []*models.Notification {
	t.Helper()
	var out []*models.Notification
	for i := 0; i < n; i++ {
		note := &models.Notification{
			UserID:  userID,
			Type:    models.NotifyChatMessage,
			Title:   "Nova mensagem",
			Message: fmt.Sprintf("mensagem %d", i),
		}
		require.NoError(t, f.notifications.Notify(f.ctx, note))
		out = append(out, note)
	}
	return out
}

func TestNotifyPushesToOwner(t *testing.T) {
	f := newFixture(t)
	_, ana := f.profile(t, models.RoleClient, "Ana", "ana@example.com")
	seedNotifications(t, f, ana.UserID, 1)

	pushedEvents := f.pusher.ofType("notification")
	require.Len(t, pushedEvents, 1)
	require.Equal(t, []uint{ana.UserID}, pushedEvents[0].UserIDs)

	err := f.notifications.Notify(f.ctx, &models.Notification{UserID: ana.UserID, Type: "bogus"})
	require.Equal(t, utils.KindValidation, utils.KindOf(err))
}

func TestListNotificationsPaging(t *testing.T) {
	f := newFixture(t)
	_, ana := f.profile(t, models.RoleClient, "Ana", "ana@example.com")
	_, bia := f.profile(t, models.RoleClient, "Bia", "bia@example.com")
	seedNotifications(t, f, ana.UserID, 25)
	seedNotifications(t, f, bia.UserID, 2)

	page, err := f.notifications.List(f.ctx, ana, ListNotificationsInput{})
	require.NoError(t, err)
	require.Len(t, page.Notifications, 20)
	require.EqualValues(t, 25, page.Total)
	require.EqualValues(t, 25, page.UnreadCount)
	require.Equal(t, "mensagem 24", page.Notifications[0].Message)

	page, err = f.notifications.List(f.ctx, ana, ListNotificationsInput{Limit: 500, Offset: 20})
	require.NoError(t, err)
	require.Equal(t, 100, page.Limit)
	require.Len(t, page.Notifications, 5)

	page, err = f.notifications.List(f.ctx, ana, ListNotificationsInput{Offset: 40})
	require.NoError(t, err)
	require.NotNil(t, page.Notifications)
	require.Empty(t, page.Notifications)

	_, err = f.notifications.List(f.ctx, Caller{}, ListNotificationsInput{})
	require.ErrorIs(t, err, utils.ErrUnauthorized)
}

func TestMarkNotificationsRead(t *testing.T) {
	f := newFixture(t)
	_, ana := f.profile(t, models.RoleClient, "Ana", "ana@example.com")
	_, bia := f.profile(t, models.RoleClient, "Bia", "bia@example.com")
	notes := seedNotifications(t, f, ana.UserID, 3)

	require.NoError(t, f.notifications.MarkAsRead(f.ctx, ana, notes[0].ID))
	require.NoError(t, f.notifications.MarkAsRead(f.ctx, ana, notes[0].ID))

	err := f.notifications.MarkAsRead(f.ctx, bia, notes[1].ID)
	require.Equal(t, utils.KindNotFound, utils.KindOf(err))

	count, err := f.notifications.UnreadCount(f.ctx, ana)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	page, err := f.notifications.List(f.ctx, ana, ListNotificationsInput{UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, page.Notifications, 2)

	updated, err := f.notifications.MarkAllAsRead(f.ctx, ana)
	require.NoError(t, err)
	require.EqualValues(t, 2, updated)

	updated, err = f.notifications.MarkAllAsRead(f.ctx, ana)
	require.NoError(t, err)
	require.Zero(t, updated)
}

func TestDeleteNotifications(t *testing.T) {
	f := newFixture(t)
	_, ana := f.profile(t, models.RoleClient, "Ana", "ana@example.com")
	_, bia := f.profile(t, models.RoleClient, "Bia", "bia@example.com")
	notes := seedNotifications(t, f, ana.UserID, 4)

	err := f.notifications.Delete(f.ctx, bia, notes[0].ID)
	require.Equal(t, utils.KindNotFound, utils.KindOf(err))
	require.NoError(t, f.notifications.Delete(f.ctx, ana, notes[0].ID))

	require.NoError(t, f.notifications.MarkAsRead(f.ctx, ana, notes[1].ID))
	require.NoError(t, f.notifications.MarkAsRead(f.ctx, ana, notes[2].ID))
	deleted, err := f.notifications.DeleteAllRead(f.ctx, ana)
	require.NoError(t, err)
	require.EqualValues(t, 2, deleted)

	page, err := f.notifications.List(f.ctx, ana, ListNotificationsInput{})
	require.NoError(t, err)
	require.Len(t, page.Notifications, 1)
	require.Equal(t, notes[3].ID, page.Notifications[0].ID)
}
