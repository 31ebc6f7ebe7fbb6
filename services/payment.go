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
	validationLockTTL = 30 * time.Second
	staleOrderAge     = 24 * time.Hour
	staleOrderBatch   = 200
)

var errCreditGranted = errors.New("credit already granted for order")

type ValidatePaymentInput struct {
	OrderID        uint `json:"orderId"`
	ProfessionalID uint `json:"professionalId"`
}

type PaymentResult struct {
	Order       *models.Order         `json:"order"`
	Credit      *models.SessionCredit `json:"credit"`
	AlreadyPaid bool                  `json:"already_paid"`
}

// PaymentService confirms payments with the rail and grants session credits.
type PaymentService struct {
	store         repository.Store
	rail          PaymentRail
	locker        Locker
	notifications *NotificationService
	now           func() time.Time
	log           *zap.Logger
}

func NewPaymentService(store repository.Store, rail PaymentRail, locker Locker, notifications *NotificationService, log *zap.Logger) *PaymentService {
	return &PaymentService{
		store:         store,
		rail:          rail,
		locker:        locker,
		notifications: notifications,
		now:           time.Now,
		log:           log,
	}
}

// Validate confirms an order's payment and grants its credit exactly once.
// Repeated calls for a paid order return the existing credit.
func (s *PaymentService) Validate(ctx context.Context, caller Caller, in ValidatePaymentInput) (*PaymentResult, error) {
	if caller.UserID == 0 {
		return nil, utils.ErrUnauthorized
	}
	if in.OrderID == 0 || in.ProfessionalID == 0 {
		return nil, utils.NewValidation("orderId and professionalId are required")
	}

	release, ok, err := s.locker.Acquire(ctx, fmt.Sprintf("lock:order:%d", in.OrderID), validationLockTTL)
	if err != nil {
		return nil, utils.NewInternal(fmt.Errorf("acquire order lock: %w", err))
	}
	if !ok {
		return nil, utils.NewConflict("validation already in progress for this order")
	}
	defer release()

	order, err := s.store.GetOrder(ctx, in.OrderID)
	if err != nil {
		return nil, storeErr(err, "order not found")
	}
	if err := Authorize(caller, Resource{Kind: ResourceOrder, OwnerID: order.UserID, ProfessionalID: order.ProfessionalID}, ActionWrite); err != nil {
		return nil, err
	}
	if order.ProfessionalID != in.ProfessionalID {
		return nil, utils.NewValidation("order does not belong to this professional")
	}

	if order.Status == models.OrderPaid {
		return s.existingGrant(ctx, order)
	}
	if order.IsTerminal() {
		return nil, utils.NewValidation(fmt.Sprintf("order is %s and cannot be validated", order.Status))
	}

	reference := order.PaymentReference()
	if reference == "" {
		return nil, utils.NewValidation("order has no payment reference")
	}
	confirmation, err := s.rail.Confirm(ctx, order.PaymentMethod, reference)
	if err != nil {
		return nil, utils.NewUpstream("failed to confirm payment", err)
	}
	if !confirmation.Confirmed {
		msg := confirmation.Message
		if msg == "" {
			msg = fmt.Sprintf("payment not confirmed (status %s)", confirmation.Status)
		}
		return nil, utils.NewValidation(msg)
	}

	result, err := s.grant(ctx, order.ID)
	if errors.Is(err, errCreditGranted) {
		return s.existingGrant(ctx, order)
	}
	if err != nil {
		return nil, err
	}
	s.log.Info("payment validated",
		zap.Uint("order_id", result.Order.ID),
		zap.Uint("credit_id", result.Credit.ID),
		zap.Int("sessions", result.Credit.Total))
	return result, nil
}

func (s *PaymentService) existingGrant(ctx context.Context, order *models.Order) (*PaymentResult, error) {
	credit, err := s.store.GetSessionCreditByOrder(ctx, order.ID)
	if err != nil {
		return nil, storeErr(err, "credit for paid order not found")
	}
	return &PaymentResult{Order: order, Credit: credit, AlreadyPaid: true}, nil
}

// grant marks the order paid and creates its credit in one transaction.
func (s *PaymentService) grant(ctx context.Context, orderID uint) (*PaymentResult, error) {
	now := s.now()
	var (
		result  PaymentResult
		created []*models.Notification
	)
	err := s.store.Tx(ctx, func(tx repository.Store) error {
		order, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status == models.OrderPaid {
			return errCreditGranted
		}
		if err := order.TransitionTo(models.OrderPaid); err != nil {
			return utils.NewValidation(err.Error())
		}
		order.PaidAt = &now
		if err := tx.UpdateOrder(ctx, order); err != nil {
			return err
		}

		product, err := tx.GetProduct(ctx, order.ProductID)
		if err != nil {
			return err
		}
		if _, err := tx.GetSessionCreditByOrder(ctx, order.ID); err == nil {
			return errCreditGranted
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		credit := &models.SessionCredit{
			UserID:          order.UserID,
			ProfessionalID:  order.ProfessionalID,
			AppointmentType: product.AppointmentType,
			Total:           product.SessionsCount,
			Used:            0,
			Status:          models.CreditActive,
			OrderID:         order.ID,
		}
		if err := tx.CreateSessionCredit(ctx, credit); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return errCreditGranted
			}
			return err
		}

		created = []*models.Notification{
			{
				UserID:  order.UserID,
				Type:    models.NotifyPaymentValidated,
				Title:   "Pagamento confirmado",
				Message: fmt.Sprintf("O pagamento do pedido %s foi confirmado.", order.Reference),
				Metadata: map[string]interface{}{
					"order_id": order.ID,
				},
			},
			{
				UserID:  order.UserID,
				Type:    models.NotifyCreditsReleased,
				Title:   "Créditos liberados",
				Message: fmt.Sprintf("%d sessões disponíveis para agendamento.", credit.Total),
				Metadata: map[string]interface{}{
					"credit_id":        credit.ID,
					"professional_id":  credit.ProfessionalID,
					"appointment_type": string(credit.AppointmentType),
					"total":            credit.Total,
				},
			},
		}
		for _, n := range created {
			if err := s.notifications.Create(ctx, tx, n); err != nil {
				return err
			}
		}

		if err := enqueueEvent(ctx, tx, now, EventOrderPaid, order.Reference, map[string]interface{}{
			"order_id":        order.ID,
			"user_id":         order.UserID,
			"professional_id": order.ProfessionalID,
			"amount_cents":    order.AmountCents,
			"credit_id":       credit.ID,
		}); err != nil {
			return err
		}

		order.Product = product
		result = PaymentResult{Order: order, Credit: credit}
		return nil
	})
	if err != nil {
		if errors.Is(err, errCreditGranted) {
			return nil, err
		}
		return nil, storeErr(err, "order not found")
	}
	s.notifications.Push(created...)
	return &result, nil
}

// ExpireStaleOrders cancels orders left unpaid for a day. Each order is
// checked with the rail first; a payment that settled late is granted
// instead of cancelled.
func (s *PaymentService) ExpireStaleOrders(ctx context.Context) (int, error) {
	stale, err := s.store.ListStaleOrders(ctx, s.now().Add(-staleOrderAge), staleOrderBatch)
	if err != nil {
		return 0, fmt.Errorf("list stale orders: %w", err)
	}
	expired := 0
	for i := range stale {
		cancelled, err := s.expireOrder(ctx, &stale[i])
		if err != nil {
			s.log.Error("failed to expire order", zap.Uint("order_id", stale[i].ID), zap.Error(err))
			continue
		}
		if cancelled {
			expired++
		}
	}
	return expired, nil
}

func (s *PaymentService) expireOrder(ctx context.Context, order *models.Order) (bool, error) {
	release, ok, err := s.locker.Acquire(ctx, fmt.Sprintf("lock:order:%d", order.ID), validationLockTTL)
	if err != nil {
		return false, fmt.Errorf("acquire order lock: %w", err)
	}
	if !ok {
		return false, nil
	}
	defer release()

	if reference := order.PaymentReference(); reference != "" {
		confirmation, err := s.rail.Confirm(ctx, order.PaymentMethod, reference)
		if err != nil {
			// Try again on the next run rather than cancel a payment we cannot see.
			return false, fmt.Errorf("confirm payment: %w", err)
		}
		if confirmation.Confirmed {
			result, err := s.grant(ctx, order.ID)
			if errors.Is(err, errCreditGranted) {
				return false, nil
			}
			if err != nil {
				return false, err
			}
			s.log.Info("late payment granted instead of expiring order",
				zap.Uint("order_id", order.ID),
				zap.Uint("credit_id", result.Credit.ID))
			return false, nil
		}
	}

	cancelled := false
	err = s.store.Tx(ctx, func(tx repository.Store) error {
		current, err := tx.GetOrderForUpdate(ctx, order.ID)
		if err != nil {
			return err
		}
		if current.IsTerminal() {
			return nil
		}
		if err := current.TransitionTo(models.OrderCancelled); err != nil {
			return err
		}
		if err := tx.UpdateOrder(ctx, current); err != nil {
			return err
		}
		cancelled = true
		return enqueueEvent(ctx, tx, s.now(), EventOrderCancelled, current.Reference, map[string]interface{}{
			"order_id": current.ID,
			"reason":   "expired",
		})
	})
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	return cancelled, err
}
