package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/psicanalise-online/platform/models"
)

func TestDashboardOverview(t *testing.T) {
	s := newBookingScenario(t, 3)
	dashboard := NewDashboardService(s.f.store)
	dashboard.now = func() time.Time { return s.f.now }

	first, err := s.book(s.client, "2025-03-01T14:00:00Z")
	require.NoError(t, err)
	_, err = s.book(s.client, "2025-03-02T14:00:00Z")
	require.NoError(t, err)
	_, err = s.f.scheduling.Cancel(s.f.ctx, s.client, first.ID)
	require.NoError(t, err)

	require.NoError(t, s.f.store.CreateOrder(s.f.ctx, &models.Order{
		Reference:      "ord-dashboard",
		UserID:         s.client.UserID,
		ProfessionalID: s.professional.UserID,
		ProductID:      s.product.ID,
		AmountCents:    20000,
		Status:         models.OrderPaid,
		PaymentMethod:  models.PaymentPix,
	}))

	client, err := dashboard.Overview(s.f.ctx, s.client)
	require.NoError(t, err)
	require.EqualValues(t, 2, client.TotalAppointments)
	require.EqualValues(t, 1, client.ScheduledCount)
	require.EqualValues(t, 1, client.CancelledCount)
	require.Len(t, client.Upcoming, 1)
	require.Equal(t, 2, client.RemainingCredits)

	pro, err := dashboard.Overview(s.f.ctx, s.professional)
	require.NoError(t, err)
	require.EqualValues(t, 2, pro.TotalAppointments)
	require.EqualValues(t, 1, pro.ActiveProducts)
	require.EqualValues(t, 20000, pro.RevenueCents)
	require.EqualValues(t, 3, pro.UnreadCount)
	require.Zero(t, pro.RemainingCredits)
}
