package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/psicanalise-online/platform/models"
	"github.com/psicanalise-online/platform/repository"
	"github.com/psicanalise-online/platform/utils"
)

type bookingScenario struct {
	f            *fixture
	client       Caller
	professional Caller
	product      *models.Product
	credit       *models.SessionCredit
}

func newBookingScenario(t *testing.T, sessions int) *bookingScenario {
	t.Helper()
	f := newFixture(t)
	_, pro := f.profile(t, models.RoleProfessional, "Dr. Luz", "luz@example.com")
	_, client := f.profile(t, models.RoleClient, "Ana", "ana@example.com")
	f.everyDay(t, pro.UserID)
	product := f.product(t, pro.UserID, models.TypeVideo, sessions, 20000, 60)
	credit := f.credit(t, client.UserID, pro.UserID, models.TypeVideo, sessions)
	return &bookingScenario{f: f, client: client, professional: pro, product: product, credit: credit}
}

func (s *bookingScenario) book(caller Caller, start string) (*models.Appointment, error) {
	return s.f.scheduling.Book(s.f.ctx, caller, BookingRequest{
		ProfessionalID: s.professional.UserID,
		ProductID:      s.product.ID,
		StartAt:        at(start),
	})
}

func (s *bookingScenario) creditState(t *testing.T, id uint) *models.SessionCredit {
	t.Helper()
	c, err := s.f.store.GetSessionCredit(s.f.ctx, id)
	require.NoError(t, err)
	return c
}

func TestBookConsumesOneUnitOfTheMatchingCredit(t *testing.T) {
	s := newBookingScenario(t, 4)
	chat := s.f.credit(t, s.client.UserID, s.professional.UserID, models.TypeChat, 2)

	a, err := s.book(s.client, "2025-03-01T14:00:00Z")
	require.NoError(t, err)
	require.Equal(t, models.StatusScheduled, a.Status)
	require.Equal(t, models.TypeVideo, a.AppointmentType)
	require.True(t, a.StartAt.Equal(*at("2025-03-01T14:00:00Z")))
	require.True(t, a.EndAt.Equal(*at("2025-03-01T15:00:00Z")))
	require.Equal(t, s.credit.ID, a.CreditID)

	require.Equal(t, 1, s.creditState(t, s.credit.ID).Used)
	require.Equal(t, 0, s.creditState(t, chat.ID).Used)

	page, err := s.f.notifications.List(s.f.ctx, s.professional, ListNotificationsInput{})
	require.NoError(t, err)
	require.Len(t, page.Notifications, 1)
	require.Equal(t, models.NotifyNewAppointment, page.Notifications[0].Type)
}

func TestBookWithoutCredit(t *testing.T) {
	s := newBookingScenario(t, 1)
	_, other := s.f.profile(t, models.RoleClient, "Bia", "bia@example.com")

	_, err := s.book(other, "2025-03-01T14:00:00Z")
	require.ErrorIs(t, err, utils.ErrInsufficientCredits)

	_, err = s.book(s.client, "2025-03-01T14:00:00Z")
	require.NoError(t, err)
	_, err = s.book(s.client, "2025-03-01T16:00:00Z")
	require.ErrorIs(t, err, utils.ErrInsufficientCredits)
	require.Equal(t, models.CreditConsumed, s.creditState(t, s.credit.ID).Status)
}

func TestBookValidation(t *testing.T) {
	s := newBookingScenario(t, 2)

	_, err := s.f.scheduling.Book(s.f.ctx, s.client, BookingRequest{ProductID: s.product.ID})
	require.Equal(t, utils.KindValidation, utils.KindOf(err))
	require.Equal(t, "slot and product are required", utils.PublicMessage(err))

	_, err = s.book(s.client, "2025-02-26T14:00:00Z")
	require.Equal(t, utils.KindValidation, utils.KindOf(err))

	_, err = s.book(s.client, "2025-03-01T20:00:00Z")
	require.Equal(t, utils.KindConflict, utils.KindOf(err))

	_, err = s.book(s.client, "2025-03-01T14:30:00Z")
	require.Equal(t, utils.KindConflict, utils.KindOf(err))

	_, err = s.book(s.professional, "2025-03-01T14:00:00Z")
	require.Equal(t, utils.KindForbidden, utils.KindOf(err))
}

func TestBookRaceForLastUnit(t *testing.T) {
	s := newBookingScenario(t, 1)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, start := range []string{"2025-03-01T14:00:00Z", "2025-03-01T16:00:00Z"} {
		wg.Add(1)
		go func(start string) {
			defer wg.Done()
			_, err := s.book(s.client, start)
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}(start)
	}
	wg.Wait()

	succeeded, insufficient := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, utils.ErrInsufficientCredits):
			insufficient++
		}
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, 1, insufficient)
	require.Equal(t, 1, s.creditState(t, s.credit.ID).Used)
}

func TestSameSlotCannotBeBookedTwice(t *testing.T) {
	s := newBookingScenario(t, 2)
	_, other := s.f.profile(t, models.RoleClient, "Bia", "bia@example.com")
	s.f.credit(t, other.UserID, s.professional.UserID, models.TypeVideo, 1)

	_, err := s.book(s.client, "2025-03-01T14:00:00Z")
	require.NoError(t, err)

	_, err = s.book(other, "2025-03-01T14:00:00Z")
	require.Equal(t, utils.KindConflict, utils.KindOf(err))
}

func TestAvailableSlotsSkipBookedSessions(t *testing.T) {
	s := newBookingScenario(t, 2)
	q := SlotQuery{
		ProfessionalID: s.professional.UserID,
		ProductID:      s.product.ID,
		From:           at("2025-03-01T00:00:00Z"),
		To:             at("2025-03-02T00:00:00Z"),
	}

	slots, err := s.f.scheduling.AvailableSlots(s.f.ctx, q)
	require.NoError(t, err)
	require.Len(t, slots, 9)

	_, err = s.book(s.client, "2025-03-01T14:00:00Z")
	require.NoError(t, err)

	slots, err = s.f.scheduling.AvailableSlots(s.f.ctx, q)
	require.NoError(t, err)
	require.Len(t, slots, 8)
	require.False(t, utils.ContainsSlot(slots, *at("2025-03-01T14:00:00Z")))

	q.To = at("2025-04-15T00:00:00Z")
	_, err = s.f.scheduling.AvailableSlots(s.f.ctx, q)
	require.Equal(t, utils.KindValidation, utils.KindOf(err))
}

func TestCancelWithNoticeRefundsCredit(t *testing.T) {
	s := newBookingScenario(t, 1)
	a, err := s.book(s.client, "2025-03-01T14:00:00Z")
	require.NoError(t, err)
	require.Equal(t, models.CreditConsumed, s.creditState(t, s.credit.ID).Status)

	cancelled, err := s.f.scheduling.Cancel(s.f.ctx, s.client, a.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)

	credit := s.creditState(t, s.credit.ID)
	require.Equal(t, 0, credit.Used)
	require.Equal(t, models.CreditActive, credit.Status)

	_, err = s.f.scheduling.Cancel(s.f.ctx, s.client, a.ID)
	require.Equal(t, utils.KindValidation, utils.KindOf(err))
}

func TestCancelInsideWindowRejectedForClient(t *testing.T) {
	s := newBookingScenario(t, 2)
	a, err := s.book(s.client, "2025-03-01T14:00:00Z")
	require.NoError(t, err)

	s.f.now = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err = s.f.scheduling.Cancel(s.f.ctx, s.client, a.ID)
	require.Equal(t, utils.KindValidation, utils.KindOf(err))
	require.Equal(t, "cancellation window closed; reschedule instead", utils.PublicMessage(err))
	require.Equal(t, 1, s.creditState(t, s.credit.ID).Used)

	_, err = s.f.scheduling.Cancel(s.f.ctx, s.professional, a.ID)
	require.NoError(t, err)
	require.Equal(t, 0, s.creditState(t, s.credit.ID).Used)
}

func TestCancelByStranger(t *testing.T) {
	s := newBookingScenario(t, 2)
	a, err := s.book(s.client, "2025-03-01T14:00:00Z")
	require.NoError(t, err)

	_, stranger := s.f.profile(t, models.RoleClient, "Eve", "eve@example.com")
	_, err = s.f.scheduling.Cancel(s.f.ctx, stranger, a.ID)
	require.Equal(t, utils.KindForbidden, utils.KindOf(err))
}

func TestRescheduleKeepsCredit(t *testing.T) {
	s := newBookingScenario(t, 2)
	a, err := s.book(s.client, "2025-03-01T14:00:00Z")
	require.NoError(t, err)

	next, err := s.f.scheduling.Reschedule(s.f.ctx, s.client, a.ID, at("2025-03-02T10:00:00Z"))
	require.NoError(t, err)
	require.Equal(t, models.StatusScheduled, next.Status)
	require.Equal(t, a.CreditID, next.CreditID)
	require.Equal(t, a.ID, *next.RescheduledFromID)
	require.True(t, next.EndAt.Equal(*at("2025-03-02T11:00:00Z")))
	require.Equal(t, 1, s.creditState(t, s.credit.ID).Used)

	old, err := s.f.store.GetAppointment(s.f.ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusRescheduled, old.Status)

	_, err = s.f.scheduling.Reschedule(s.f.ctx, s.client, a.ID, at("2025-03-03T10:00:00Z"))
	require.Equal(t, utils.KindValidation, utils.KindOf(err))
}

func TestComplete(t *testing.T) {
	s := newBookingScenario(t, 2)
	a, err := s.book(s.client, "2025-03-01T14:00:00Z")
	require.NoError(t, err)

	_, err = s.f.scheduling.Complete(s.f.ctx, s.professional, a.ID)
	require.Equal(t, utils.KindValidation, utils.KindOf(err))

	s.f.now = *at("2025-03-01T15:05:00Z")
	_, err = s.f.scheduling.Complete(s.f.ctx, s.client, a.ID)
	require.Equal(t, utils.KindForbidden, utils.KindOf(err))

	done, err := s.f.scheduling.Complete(s.f.ctx, s.professional, a.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusCompleted, done.Status)
}

// staleStore lets another writer slip in between a service's read and its
// conditional write.
type staleStore struct {
	repository.Store
	beforeTransition func()
}

func (s staleStore) TransitionAppointment(ctx context.Context, id uint, from, to models.AppointmentStatus) (bool, error) {
	if s.beforeTransition != nil {
		s.beforeTransition()
	}
	return s.Store.TransitionAppointment(ctx, id, from, to)
}

func TestCompleteLosesToConcurrentCancel(t *testing.T) {
	s := newBookingScenario(t, 2)
	a, err := s.book(s.client, "2025-03-01T14:00:00Z")
	require.NoError(t, err)
	s.f.now = *at("2025-03-01T14:30:00Z")

	racing := *s.f.scheduling
	racing.store = staleStore{Store: s.f.store, beforeTransition: func() {
		_, err := s.f.scheduling.Cancel(s.f.ctx, s.professional, a.ID)
		require.NoError(t, err)
	}}

	_, err = racing.Complete(s.f.ctx, s.professional, a.ID)
	require.Equal(t, utils.KindConflict, utils.KindOf(err))

	stored, err := s.f.store.GetAppointment(s.f.ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusCancelled, stored.Status)
	require.Equal(t, 0, s.creditState(t, s.credit.ID).Used)
}

func TestSendReminders(t *testing.T) {
	s := newBookingScenario(t, 2)
	_, err := s.book(s.client, "2025-03-01T14:00:00Z")
	require.NoError(t, err)

	s.f.now = *at("2025-03-01T13:00:00Z")
	n, err := s.f.scheduling.SendReminders(s.f.ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = s.f.scheduling.SendReminders(s.f.ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	require.Len(t, s.f.pendingEmails(t, "ana@example.com"), 1)
	require.Len(t, s.f.pusher.ofType("notification"), 3)
}

func TestSetWorkingHours(t *testing.T) {
	s := newBookingScenario(t, 1)
	breakStart, breakEnd := "12:00", "13:00"

	hours, err := s.f.scheduling.SetWorkingHours(s.f.ctx, s.professional, []models.WorkingHours{
		{DayOfWeek: models.Monday, StartTime: "08:00", EndTime: "17:00", IsWorkDay: true, BreakStart: &breakStart, BreakEnd: &breakEnd},
	})
	require.NoError(t, err)
	require.Len(t, hours, 1)

	_, err = s.f.scheduling.SetWorkingHours(s.f.ctx, s.professional, []models.WorkingHours{
		{DayOfWeek: models.Monday, StartTime: "08:00", EndTime: "17:00", IsWorkDay: true},
		{DayOfWeek: models.Monday, StartTime: "18:00", EndTime: "19:00", IsWorkDay: true},
	})
	require.Equal(t, utils.KindValidation, utils.KindOf(err))

	_, err = s.f.scheduling.SetWorkingHours(s.f.ctx, s.client, nil)
	require.Equal(t, utils.KindForbidden, utils.KindOf(err))

	// 2025-03-03 is a Monday; the lunch break removes the 12:00 slot.
	slots, err := s.f.scheduling.AvailableSlots(s.f.ctx, SlotQuery{
		ProfessionalID: s.professional.UserID,
		ProductID:      s.product.ID,
		From:           at("2025-03-03T00:00:00Z"),
		To:             at("2025-03-04T00:00:00Z"),
	})
	require.NoError(t, err)
	require.Len(t, slots, 8)
	require.False(t, utils.ContainsSlot(slots, *at("2025-03-03T12:00:00Z")))
}
