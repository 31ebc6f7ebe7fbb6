package services

import (
	"context"
	"time"

	"github.com/samber/lo"

	"github.com/psicanalise-online/platform/models"
	"github.com/psicanalise-online/platform/repository"
	"github.com/psicanalise-online/platform/utils"
)

const upcomingLimit = 5

type DashboardService struct {
	store repository.Store
	now   func() time.Time
}

func NewDashboardService(store repository.Store) *DashboardService {
	return &DashboardService{store: store, now: time.Now}
}

// Dashboard summarises a user's activity. Professional-only fields are
// zero for clients and the credit fields are zero for professionals.
type Dashboard struct {
	TotalAppointments int64                `json:"total_appointments"`
	ScheduledCount    int64                `json:"scheduled_count"`
	CompletedCount    int64                `json:"completed_count"`
	CancelledCount    int64                `json:"cancelled_count"`
	RescheduledCount  int64                `json:"rescheduled_count"`
	Upcoming          []models.Appointment `json:"upcoming"`
	RemainingCredits  int                  `json:"remaining_credits"`
	ActiveProducts    int64                `json:"active_products"`
	RevenueCents      int64                `json:"revenue_cents"`
	UnreadCount       int64                `json:"unread_notifications"`
	LastUpdated       time.Time            `json:"last_updated"`
}

func (s *DashboardService) Overview(ctx context.Context, caller Caller) (*Dashboard, error) {
	if caller.UserID == 0 {
		return nil, utils.ErrUnauthorized
	}
	filter := repository.AppointmentFilter{}
	if caller.IsProfessional() {
		filter.ProfessionalID = caller.UserID
	} else {
		filter.UserID = caller.UserID
	}

	counts, err := s.store.CountAppointmentsByStatus(ctx, filter)
	if err != nil {
		return nil, utils.NewInternal(err)
	}
	now := s.now()
	upcomingFilter := filter
	upcomingFilter.Status = models.StatusScheduled
	upcomingFilter.From = &now
	upcomingFilter.Limit = upcomingLimit
	upcoming, err := s.store.ListAppointments(ctx, upcomingFilter)
	if err != nil {
		return nil, utils.NewInternal(err)
	}
	unread, err := s.store.CountUnreadNotifications(ctx, caller.UserID)
	if err != nil {
		return nil, utils.NewInternal(err)
	}

	d := &Dashboard{
		TotalAppointments: lo.Sum(lo.Values(counts)),
		ScheduledCount:    counts[models.StatusScheduled],
		CompletedCount:    counts[models.StatusCompleted],
		CancelledCount:    counts[models.StatusCancelled],
		RescheduledCount:  counts[models.StatusRescheduled],
		Upcoming:          upcoming,
		UnreadCount:       unread,
		LastUpdated:       now,
	}
	if d.Upcoming == nil {
		d.Upcoming = []models.Appointment{}
	}

	if caller.IsProfessional() {
		if d.ActiveProducts, err = s.store.CountProducts(ctx, repository.ProductFilter{ProfessionalID: caller.UserID, OnlyActive: true}); err != nil {
			return nil, utils.NewInternal(err)
		}
		if d.RevenueCents, err = s.store.SumPaidOrders(ctx, caller.UserID); err != nil {
			return nil, utils.NewInternal(err)
		}
		return d, nil
	}

	credits, err := s.store.ListSessionCredits(ctx, caller.UserID)
	if err != nil {
		return nil, utils.NewInternal(err)
	}
	d.RemainingCredits = lo.SumBy(credits, func(c models.SessionCredit) int {
		if c.Status != models.CreditActive {
			return 0
		}
		return c.Remaining()
	})
	return d, nil
}
