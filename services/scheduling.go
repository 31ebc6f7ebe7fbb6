package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/psicanalise-online/platform/models"
	"github.com/psicanalise-online/platform/repository"
	"github.com/psicanalise-online/platform/utils"
)

const (
	cancellationNotice = 24 * time.Hour
	maxSlotWindow      = 31 * 24 * time.Hour
	defaultSlotWindow  = 7 * 24 * time.Hour
	reminderLeadMin    = 55 * time.Minute
	reminderLeadMax    = 65 * time.Minute
)

type SchedulingService struct {
	store         repository.Store
	notifications *NotificationService
	loc           *time.Location
	now           func() time.Time
	log           *zap.Logger
}

func NewSchedulingService(store repository.Store, notifications *NotificationService, loc *time.Location, log *zap.Logger) *SchedulingService {
	if loc == nil {
		loc = time.UTC
	}
	return &SchedulingService{store: store, notifications: notifications, loc: loc, now: time.Now, log: log}
}

type SlotQuery struct {
	ProfessionalID  uint
	ProductID       uint
	AppointmentType models.AppointmentType
	From            *time.Time
	To              *time.Time
}

func (s *SchedulingService) professional(ctx context.Context, st repository.Store, id uint) (*models.Profile, error) {
	p, err := st.GetProfile(ctx, id)
	if err != nil {
		return nil, storeErr(err, "professional not found")
	}
	if p.Role != models.RoleProfessional || !p.CanAuthenticate() {
		return nil, utils.NewNotFound("professional not found")
	}
	return p, nil
}

// AvailableSlots lists open slots of a professional in the requested window.
func (s *SchedulingService) AvailableSlots(ctx context.Context, q SlotQuery) ([]models.Slot, error) {
	if q.ProfessionalID == 0 {
		return nil, utils.NewValidation("professional id is required")
	}
	if q.AppointmentType != "" && !q.AppointmentType.Valid() {
		return nil, utils.NewValidation("type must be video or chat")
	}
	if _, err := s.professional(ctx, s.store, q.ProfessionalID); err != nil {
		return nil, err
	}

	length := time.Duration(models.DefaultSessionMinutes) * time.Minute
	if q.ProductID != 0 {
		product, err := s.store.GetProduct(ctx, q.ProductID)
		if err != nil {
			return nil, storeErr(err, "product not found")
		}
		if product.ProfessionalID != q.ProfessionalID {
			return nil, utils.NewValidation("product does not belong to this professional")
		}
		if q.AppointmentType != "" && product.AppointmentType != q.AppointmentType {
			return nil, utils.NewValidation("product type does not match requested type")
		}
		length = product.SessionLength()
	}

	now := s.now()
	from := now
	if q.From != nil && q.From.After(now) {
		from = *q.From
	}
	to := from.Add(defaultSlotWindow)
	if q.To != nil {
		to = *q.To
	}
	if !to.After(from) {
		return []models.Slot{}, nil
	}
	if to.Sub(from) > maxSlotWindow {
		return nil, utils.NewValidation("slot window cannot exceed 31 days")
	}

	hours, err := s.store.ListWorkingHours(ctx, q.ProfessionalID)
	if err != nil {
		return nil, utils.NewInternal(err)
	}
	busy, err := s.store.ListAppointments(ctx, repository.AppointmentFilter{
		ProfessionalID: q.ProfessionalID,
		Status:         models.StatusScheduled,
		From:           &from,
		To:             &to,
	})
	if err != nil {
		return nil, utils.NewInternal(err)
	}

	slots := utils.FreeSlots(utils.GenerateSlots(hours, s.loc, from, to, length), busy)
	if slots == nil {
		slots = []models.Slot{}
	}
	return slots, nil
}

// isWorkingSlot reports whether [start, start+length) is one of the
// professional's generated slots.
func (s *SchedulingService) isWorkingSlot(ctx context.Context, professionalID uint, start time.Time, length time.Duration) (bool, error) {
	hours, err := s.store.ListWorkingHours(ctx, professionalID)
	if err != nil {
		return false, err
	}
	slots := utils.GenerateSlots(hours, s.loc, start, start.Add(length), length)
	return utils.ContainsSlot(slots, start), nil
}

type BookingRequest struct {
	ProfessionalID uint       `json:"professional_id"`
	ProductID      uint       `json:"product_id"`
	StartAt        *time.Time `json:"start_at"`
}

// Book reserves a slot and consumes one unit of the caller's credit for the
// professional and session type, all in one transaction.
func (s *SchedulingService) Book(ctx context.Context, caller Caller, req BookingRequest) (*models.Appointment, error) {
	if caller.UserID == 0 {
		return nil, utils.ErrUnauthorized
	}
	if !caller.IsClient() {
		return nil, utils.NewForbidden("only clients can book sessions")
	}
	if req.StartAt == nil || req.ProductID == 0 {
		return nil, utils.NewValidation("slot and product are required")
	}

	product, err := s.store.GetProduct(ctx, req.ProductID)
	if err != nil {
		return nil, storeErr(err, "product not found")
	}
	if req.ProfessionalID != 0 && req.ProfessionalID != product.ProfessionalID {
		return nil, utils.NewValidation("product does not belong to this professional")
	}
	professionalID := product.ProfessionalID
	if _, err := s.professional(ctx, s.store, professionalID); err != nil {
		return nil, err
	}

	start := req.StartAt.UTC()
	end := start.Add(product.SessionLength())
	if !start.After(s.now()) {
		return nil, utils.NewValidation("start time must be in the future")
	}
	ok, err := s.isWorkingSlot(ctx, professionalID, start, product.SessionLength())
	if err != nil {
		return nil, utils.NewInternal(err)
	}
	if !ok {
		return nil, utils.NewConflict("slot not available")
	}

	var (
		appointment *models.Appointment
		created     *models.Notification
	)
	err = s.store.Tx(ctx, func(tx repository.Store) error {
		if err := tx.LockProfile(ctx, professionalID); err != nil {
			return err
		}

		credit, err := tx.FindSpendableCredit(ctx, caller.UserID, professionalID, product.AppointmentType)
		if errors.Is(err, repository.ErrNotFound) {
			return utils.ErrInsufficientCredits
		}
		if err != nil {
			return err
		}

		overlap, err := tx.HasOverlap(ctx, repository.OverlapQuery{
			ProfessionalID: professionalID,
			UserID:         caller.UserID,
			Start:          start,
			End:            end,
		})
		if err != nil {
			return err
		}
		if overlap {
			return utils.NewConflict("slot not available")
		}

		consumed, err := tx.ConsumeCredit(ctx, credit.ID)
		if err != nil {
			return err
		}
		if !consumed {
			return utils.ErrInsufficientCredits
		}

		appointment = &models.Appointment{
			UserID:          caller.UserID,
			ProfessionalID:  professionalID,
			ProductID:       product.ID,
			CreditID:        credit.ID,
			AppointmentType: product.AppointmentType,
			Status:          models.StatusScheduled,
			StartAt:         start,
			EndAt:           end,
		}
		if err := tx.CreateAppointment(ctx, appointment); err != nil {
			return err
		}

		created = &models.Notification{
			UserID:  professionalID,
			Type:    models.NotifyNewAppointment,
			Title:   "Nova sessão agendada",
			Message: fmt.Sprintf("%s agendou uma sessão para %s.", caller.Name, s.formatTime(start)),
			Metadata: map[string]interface{}{
				"appointment_id": appointment.ID,
			},
		}
		if err := s.notifications.Create(ctx, tx, created); err != nil {
			return err
		}
		return enqueueEvent(ctx, tx, s.now(), EventAppointmentBooked, fmt.Sprint(appointment.ID), appointmentEvent(appointment))
	})
	if err != nil {
		return nil, storeErr(err, "professional not found")
	}
	s.notifications.Push(created)
	s.log.Info("appointment booked",
		zap.Uint("appointment_id", appointment.ID),
		zap.Uint("user_id", caller.UserID),
		zap.Uint("credit_id", appointment.CreditID))
	return appointment, nil
}

func appointmentEvent(a *models.Appointment) map[string]interface{} {
	return map[string]interface{}{
		"appointment_id":  a.ID,
		"user_id":         a.UserID,
		"professional_id": a.ProfessionalID,
		"type":            string(a.AppointmentType),
		"status":          string(a.Status),
		"start_at":        a.StartAt,
		"end_at":          a.EndAt,
	}
}

func (s *SchedulingService) formatTime(t time.Time) string {
	return t.In(s.loc).Format("02/01/2006 15:04")
}

func (s *SchedulingService) participantAppointment(ctx context.Context, caller Caller, id uint) (*models.Appointment, error) {
	if caller.UserID == 0 {
		return nil, utils.ErrUnauthorized
	}
	a, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		return nil, storeErr(err, "appointment not found")
	}
	if err := Authorize(caller, Resource{Kind: ResourceAppointment, OwnerID: a.UserID, ProfessionalID: a.ProfessionalID}, ActionWrite); err != nil {
		return nil, err
	}
	return a, nil
}

func otherParty(a *models.Appointment, userID uint) uint {
	if userID == a.ProfessionalID {
		return a.UserID
	}
	return a.ProfessionalID
}

// Cancel cancels a scheduled appointment and returns its credit unit. Clients
// must cancel at least 24 hours ahead; professionals may cancel any time.
func (s *SchedulingService) Cancel(ctx context.Context, caller Caller, id uint) (*models.Appointment, error) {
	a, err := s.participantAppointment(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if a.Status != models.StatusScheduled {
		return nil, utils.NewValidation("only scheduled appointments can be cancelled")
	}
	now := s.now()
	byProfessional := caller.UserID == a.ProfessionalID
	if !byProfessional && now.After(a.StartAt.Add(-cancellationNotice)) {
		return nil, utils.NewValidation("cancellation window closed; reschedule instead")
	}

	var (
		updated *models.Appointment
		created *models.Notification
	)
	err = s.store.Tx(ctx, func(tx repository.Store) error {
		current, err := tx.GetAppointmentForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := current.TransitionTo(models.StatusCancelled); err != nil {
			return utils.NewValidation("only scheduled appointments can be cancelled")
		}
		current.CancelledAt = &now
		if err := tx.UpdateAppointment(ctx, current); err != nil {
			return err
		}
		if _, err := tx.RefundCredit(ctx, current.CreditID); err != nil {
			return err
		}

		created = &models.Notification{
			UserID:  otherParty(current, caller.UserID),
			Type:    models.NotifyAppointmentCancelled,
			Title:   "Sessão cancelada",
			Message: fmt.Sprintf("A sessão de %s foi cancelada.", s.formatTime(current.StartAt)),
			Metadata: map[string]interface{}{
				"appointment_id": current.ID,
				"cancelled_by":   caller.UserID,
			},
		}
		if err := s.notifications.Create(ctx, tx, created); err != nil {
			return err
		}
		updated = current
		return enqueueEvent(ctx, tx, now, EventAppointmentCancelled, fmt.Sprint(current.ID), appointmentEvent(current))
	})
	if err != nil {
		return nil, storeErr(err, "appointment not found")
	}
	s.notifications.Push(created)
	return updated, nil
}

// Reschedule moves a scheduled appointment to a new slot. The old record is
// kept as rescheduled and the new one carries the same credit.
func (s *SchedulingService) Reschedule(ctx context.Context, caller Caller, id uint, newStart *time.Time) (*models.Appointment, error) {
	if newStart == nil {
		return nil, utils.NewValidation("start_at is required")
	}
	a, err := s.participantAppointment(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if a.Status != models.StatusScheduled {
		return nil, utils.NewValidation("only scheduled appointments can be rescheduled")
	}
	now := s.now()
	if !now.Before(a.StartAt) {
		return nil, utils.NewValidation("appointment has already started")
	}
	start := newStart.UTC()
	length := a.EndAt.Sub(a.StartAt)
	end := start.Add(length)
	if !start.After(now) {
		return nil, utils.NewValidation("start time must be in the future")
	}
	ok, err := s.isWorkingSlot(ctx, a.ProfessionalID, start, length)
	if err != nil {
		return nil, utils.NewInternal(err)
	}
	if !ok {
		return nil, utils.NewConflict("slot not available")
	}

	var (
		next    *models.Appointment
		created *models.Notification
	)
	err = s.store.Tx(ctx, func(tx repository.Store) error {
		if err := tx.LockProfile(ctx, a.ProfessionalID); err != nil {
			return err
		}
		current, err := tx.GetAppointmentForUpdate(ctx, id)
		if err != nil {
			return err
		}
		overlap, err := tx.HasOverlap(ctx, repository.OverlapQuery{
			ProfessionalID: current.ProfessionalID,
			UserID:         current.UserID,
			Start:          start,
			End:            end,
			ExcludeID:      current.ID,
		})
		if err != nil {
			return err
		}
		if overlap {
			return utils.NewConflict("slot not available")
		}
		if err := current.TransitionTo(models.StatusRescheduled); err != nil {
			return utils.NewValidation("only scheduled appointments can be rescheduled")
		}
		if err := tx.UpdateAppointment(ctx, current); err != nil {
			return err
		}

		from := current.ID
		next = &models.Appointment{
			UserID:            current.UserID,
			ProfessionalID:    current.ProfessionalID,
			ProductID:         current.ProductID,
			CreditID:          current.CreditID,
			AppointmentType:   current.AppointmentType,
			Status:            models.StatusScheduled,
			StartAt:           start,
			EndAt:             end,
			RescheduledFromID: &from,
		}
		if err := tx.CreateAppointment(ctx, next); err != nil {
			return err
		}

		created = &models.Notification{
			UserID:  otherParty(current, caller.UserID),
			Type:    models.NotifyAppointmentRescheduled,
			Title:   "Sessão reagendada",
			Message: fmt.Sprintf("A sessão foi remarcada para %s.", s.formatTime(start)),
			Metadata: map[string]interface{}{
				"appointment_id":      next.ID,
				"rescheduled_from_id": current.ID,
			},
		}
		if err := s.notifications.Create(ctx, tx, created); err != nil {
			return err
		}
		return enqueueEvent(ctx, tx, now, EventAppointmentRescheduled, fmt.Sprint(next.ID), appointmentEvent(next))
	})
	if err != nil {
		return nil, storeErr(err, "appointment not found")
	}
	s.notifications.Push(created)
	return next, nil
}

// Complete marks a started appointment as completed. Professional only.
func (s *SchedulingService) Complete(ctx context.Context, caller Caller, id uint) (*models.Appointment, error) {
	a, err := s.participantAppointment(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if caller.UserID != a.ProfessionalID {
		return nil, utils.NewForbidden("only the professional can complete a session")
	}
	if s.now().Before(a.StartAt) {
		return nil, utils.NewValidation("session has not started yet")
	}
	if err := a.TransitionTo(models.StatusCompleted); err != nil {
		return nil, utils.NewValidation(err.Error())
	}
	moved, err := s.store.TransitionAppointment(ctx, a.ID, models.StatusScheduled, models.StatusCompleted)
	if err != nil {
		return nil, utils.NewInternal(err)
	}
	if !moved {
		return nil, utils.NewConflict("appointment is no longer scheduled")
	}
	return a, nil
}

type AppointmentListInput struct {
	Status   models.AppointmentStatus
	Upcoming bool
}

func (s *SchedulingService) ListAppointments(ctx context.Context, caller Caller, in AppointmentListInput) ([]models.Appointment, error) {
	if caller.UserID == 0 {
		return nil, utils.ErrUnauthorized
	}
	filter := repository.AppointmentFilter{Status: in.Status, Limit: 200}
	if caller.IsProfessional() {
		filter.ProfessionalID = caller.UserID
	} else {
		filter.UserID = caller.UserID
	}
	if in.Upcoming {
		now := s.now()
		filter.From = &now
	}
	appointments, err := s.store.ListAppointments(ctx, filter)
	if err != nil {
		return nil, utils.NewInternal(err)
	}
	if appointments == nil {
		appointments = []models.Appointment{}
	}
	return appointments, nil
}

func (s *SchedulingService) GetWorkingHours(ctx context.Context, professionalID uint) ([]models.WorkingHours, error) {
	if _, err := s.professional(ctx, s.store, professionalID); err != nil {
		return nil, err
	}
	hours, err := s.store.ListWorkingHours(ctx, professionalID)
	if err != nil {
		return nil, utils.NewInternal(err)
	}
	if hours == nil {
		hours = []models.WorkingHours{}
	}
	return hours, nil
}

// SetWorkingHours replaces the caller's weekly agenda.
func (s *SchedulingService) SetWorkingHours(ctx context.Context, caller Caller, hours []models.WorkingHours) ([]models.WorkingHours, error) {
	if caller.UserID == 0 {
		return nil, utils.ErrUnauthorized
	}
	if !caller.IsProfessional() {
		return nil, utils.NewForbidden("only professionals manage working hours")
	}
	seen := map[models.DayOfWeek]bool{}
	for i := range hours {
		if err := hours[i].Validate(); err != nil {
			return nil, utils.NewValidation(err.Error())
		}
		if seen[hours[i].DayOfWeek] {
			return nil, utils.NewValidation("each day_of_week may appear only once")
		}
		seen[hours[i].DayOfWeek] = true
	}
	if err := s.store.ReplaceWorkingHours(ctx, caller.UserID, hours); err != nil {
		return nil, utils.NewInternal(err)
	}
	return s.store.ListWorkingHours(ctx, caller.UserID)
}

// SendReminders notifies both parties of sessions starting in about an hour
// and queues a reminder email to the client.
func (s *SchedulingService) SendReminders(ctx context.Context) (int, error) {
	now := s.now()
	due, err := s.store.ListRemindable(ctx, now.Add(reminderLeadMin), now.Add(reminderLeadMax))
	if err != nil {
		return 0, fmt.Errorf("list remindable appointments: %w", err)
	}

	sent := 0
	for i := range due {
		a := &due[i]
		var created []*models.Notification
		err := s.store.Tx(ctx, func(tx repository.Store) error {
			marked, err := tx.MarkReminderSent(ctx, a.ID, now)
			if err != nil || !marked {
				return err
			}
			when := s.formatTime(a.StartAt)
			for _, uid := range []uint{a.UserID, a.ProfessionalID} {
				n := &models.Notification{
					UserID:   uid,
					Type:     models.NotifyAppointmentReminder,
					Title:    "Lembrete de sessão",
					Message:  fmt.Sprintf("Sua sessão começa em %s.", when),
					Metadata: map[string]interface{}{"appointment_id": a.ID},
				}
				if err := s.notifications.Create(ctx, tx, n); err != nil {
					return err
				}
				created = append(created, n)
			}
			if a.Client == nil {
				return nil
			}
			professionalName := ""
			if a.Professional != nil {
				professionalName = a.Professional.Name
			}
			subject, body := utils.ReminderEmail(a.Client.Name, professionalName, string(a.AppointmentType), when)
			return enqueueEmail(ctx, tx, now, a.Client.Email, subject, body)
		})
		if err != nil {
			s.log.Error("failed to send reminder", zap.Uint("appointment_id", a.ID), zap.Error(err))
			continue
		}
		if len(created) > 0 {
			s.notifications.Push(created...)
			sent++
		}
	}
	return sent, nil
}
