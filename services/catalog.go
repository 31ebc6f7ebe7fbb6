package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/psicanalise-online/platform/models"
	"github.com/psicanalise-online/platform/repository"
	"github.com/psicanalise-online/platform/utils"
)

type CatalogService struct {
	store repository.Store
	rail  PaymentRail
	log   *zap.Logger
}

func NewCatalogService(store repository.Store, rail PaymentRail, log *zap.Logger) *CatalogService {
	return &CatalogService{store: store, rail: rail, log: log}
}

func (s *CatalogService) ListProducts(ctx context.Context, filter repository.ProductFilter) ([]models.Product, error) {
	if filter.AppointmentType != "" && !filter.AppointmentType.Valid() {
		return nil, utils.NewValidation("appointment_type must be video or chat")
	}
	products, err := s.store.ListProducts(ctx, filter)
	if err != nil {
		return nil, utils.NewInternal(err)
	}
	if products == nil {
		products = []models.Product{}
	}
	return products, nil
}

type ProductInput struct {
	Name            string                 `json:"name"`
	Description     string                 `json:"description"`
	AppointmentType models.AppointmentType `json:"appointment_type"`
	SessionsCount   int                    `json:"sessions_count"`
	PriceCents      int64                  `json:"price_cents"`
	DurationMinutes int                    `json:"duration_minutes"`
}

func (in ProductInput) validate() error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return utils.NewValidation("name is required")
	case !in.AppointmentType.Valid():
		return utils.NewValidation("appointment_type must be video or chat")
	case in.SessionsCount <= 0:
		return utils.NewValidation("sessions_count must be greater than zero")
	case in.PriceCents <= 0:
		return utils.NewValidation("price_cents must be greater than zero")
	case in.DurationMinutes < 0 || in.DurationMinutes > 240:
		return utils.NewValidation("duration_minutes must be between 1 and 240")
	}
	return nil
}

func (s *CatalogService) CreateProduct(ctx context.Context, caller Caller, in ProductInput) (*models.Product, error) {
	if err := Authorize(caller, Resource{Kind: ResourceProduct, ProfessionalID: caller.UserID}, ActionWrite); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	duration := in.DurationMinutes
	if duration == 0 {
		duration = models.DefaultSessionMinutes
	}
	product := &models.Product{
		ProfessionalID:  caller.UserID,
		Name:            strings.TrimSpace(in.Name),
		Description:     strings.TrimSpace(in.Description),
		AppointmentType: in.AppointmentType,
		SessionsCount:   in.SessionsCount,
		PriceCents:      in.PriceCents,
		DurationMinutes: duration,
		IsActive:        true,
	}
	if err := s.store.CreateProduct(ctx, product); err != nil {
		return nil, utils.NewInternal(err)
	}
	return product, nil
}

func (s *CatalogService) SetProductActive(ctx context.Context, caller Caller, productID uint, active bool) (*models.Product, error) {
	product, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, storeErr(err, "product not found")
	}
	if err := Authorize(caller, Resource{Kind: ResourceProduct, ProfessionalID: product.ProfessionalID}, ActionWrite); err != nil {
		return nil, err
	}
	product.IsActive = active
	if err := s.store.UpdateProduct(ctx, product); err != nil {
		return nil, utils.NewInternal(err)
	}
	return product, nil
}

// CreateOrder opens an order for a product and a charge on the payment rail.
// A rail failure leaves the order recorded as failed.
func (s *CatalogService) CreateOrder(ctx context.Context, caller Caller, productID uint, method models.PaymentMethod) (*models.Order, error) {
	if caller.UserID == 0 {
		return nil, utils.ErrUnauthorized
	}
	if !caller.IsClient() {
		return nil, utils.NewForbidden("only clients can place orders")
	}
	if productID == 0 {
		return nil, utils.NewValidation("product_id is required")
	}
	if !method.Valid() {
		return nil, utils.NewValidation("payment_method must be pix or card")
	}

	product, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, storeErr(err, "product not found")
	}
	if !product.IsActive {
		return nil, utils.NewValidation("product is not available")
	}

	order := &models.Order{
		Reference:      uuid.NewString(),
		UserID:         caller.UserID,
		ProfessionalID: product.ProfessionalID,
		ProductID:      product.ID,
		Status:         models.OrderPending,
		AmountCents:    product.PriceCents,
		PaymentMethod:  method,
	}
	if err := s.store.CreateOrder(ctx, order); err != nil {
		return nil, utils.NewInternal(err)
	}

	charge, chargeErr := s.rail.CreateCharge(ctx, ChargeRequest{
		Reference:     order.Reference,
		Method:        method,
		AmountCents:   order.AmountCents,
		Description:   product.Name,
		CustomerName:  caller.Name,
		CustomerEmail: caller.Email,
	})
	if chargeErr != nil {
		order.Status = models.OrderFailed
		if err := s.store.UpdateOrder(ctx, order); err != nil {
			s.log.Error("failed to record failed order", zap.Uint("order_id", order.ID), zap.Error(err))
		}
		s.log.Warn("payment rail rejected charge", zap.Uint("order_id", order.ID), zap.Error(chargeErr))
		return nil, utils.NewUpstream("failed to create payment", chargeErr)
	}

	if method == models.PaymentPix {
		order.Status = models.OrderPendingPix
		order.PixReference = charge.Reference
		order.PixQRCode = charge.QRCode
	} else {
		order.CardPaymentIntentID = charge.Reference
	}
	if err := s.store.UpdateOrder(ctx, order); err != nil {
		return nil, utils.NewInternal(err)
	}
	order.Product = product
	return order, nil
}

func (s *CatalogService) ListOrders(ctx context.Context, caller Caller) ([]models.Order, error) {
	if caller.UserID == 0 {
		return nil, utils.ErrUnauthorized
	}
	orders, err := s.store.ListOrders(ctx, caller.UserID)
	if err != nil {
		return nil, utils.NewInternal(err)
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return orders, nil
}

func (s *CatalogService) GetOrder(ctx context.Context, caller Caller, id uint) (*models.Order, error) {
	order, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return nil, storeErr(err, "order not found")
	}
	if err := Authorize(caller, Resource{Kind: ResourceOrder, OwnerID: order.UserID, ProfessionalID: order.ProfessionalID}, ActionRead); err != nil {
		return nil, err
	}
	return order, nil
}

// CreditView is a session credit with its remaining balance.
type CreditView struct {
	models.SessionCredit
	Remaining int `json:"remaining"`
}

func (s *CatalogService) ListCredits(ctx context.Context, caller Caller) ([]CreditView, error) {
	if caller.UserID == 0 {
		return nil, utils.ErrUnauthorized
	}
	credits, err := s.store.ListSessionCredits(ctx, caller.UserID)
	if err != nil {
		return nil, utils.NewInternal(err)
	}
	views := make([]CreditView, 0, len(credits))
	for _, c := range credits {
		views = append(views, CreditView{SessionCredit: c, Remaining: c.Remaining()})
	}
	return views, nil
}
