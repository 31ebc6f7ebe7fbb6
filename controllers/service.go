package controllers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/psicanalise-online/platform/models"
	"github.com/psicanalise-online/platform/repository"
	"github.com/psicanalise-online/platform/services"
	"github.com/psicanalise-online/platform/utils"
)

// ListProducts godoc
// @Summary List session packages
// @Tags products
// @Produce json
// @Param professional_id query int false "Professional ID"
// @Param type query string false "video or chat"
// @Success 200 {array} models.Product
// @Router /api/products [get]
func (h *Handler) ListProducts(c *fiber.Ctx) error {
	professionalID, err := queryUint(c, "professional_id")
	if err != nil {
		return h.fail(c, err)
	}
	filter := repository.ProductFilter{
		ProfessionalID:  professionalID,
		AppointmentType: models.AppointmentType(c.Query("type")),
		OnlyActive:      c.Query("include_inactive") != "true",
	}
	if filter.AppointmentType != "" && !filter.AppointmentType.Valid() {
		return h.fail(c, utils.NewValidation("type must be video or chat"))
	}
	products, err := h.Catalog.ListProducts(c.UserContext(), filter)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(products)
}

// CreateProduct godoc
// @Summary Create a session package
// @Tags products
// @Accept json
// @Produce json
// @Param product body services.ProductInput true "Product"
// @Success 201 {object} models.Product
// @Failure 400 {object} utils.ErrorResponse
// @Router /api/professional/products [post]
func (h *Handler) CreateProduct(c *fiber.Ctx) error {
	cl, err := caller(c)
	if err != nil {
		return h.fail(c, err)
	}
	var in services.ProductInput
	if err := parseBody(c, &in); err != nil {
		return h.fail(c, err)
	}
	product, err := h.Catalog.CreateProduct(c.UserContext(), cl, in)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(product)
}

type updateProductRequest struct {
	IsActive *bool `json:"is_active"`
}

func (h *Handler) UpdateProduct(c *fiber.Ctx) error {
	cl, err := caller(c)
	if err != nil {
		return h.fail(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	var in updateProductRequest
	if err := parseBody(c, &in); err != nil {
		return h.fail(c, err)
	}
	if in.IsActive == nil {
		return h.fail(c, utils.NewValidation("is_active is required"))
	}
	product, err := h.Catalog.SetProductActive(c.UserContext(), cl, id, *in.IsActive)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(product)
}

type createOrderRequest struct {
	ProductID     uint                 `json:"product_id"`
	PaymentMethod models.PaymentMethod `json:"payment_method"`
}

// CreateOrder opens an order and the matching charge on the payment rail.
func (h *Handler) CreateOrder(c *fiber.Ctx) error {
	cl, err := caller(c)
	if err != nil {
		return h.fail(c, err)
	}
	var in createOrderRequest
	if err := parseBody(c, &in); err != nil {
		return h.fail(c, err)
	}
	if in.ProductID == 0 {
		return h.fail(c, utils.NewValidation("product_id is required"))
	}
	order, err := h.Catalog.CreateOrder(c.UserContext(), cl, in.ProductID, in.PaymentMethod)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(order)
}

func (h *Handler) ListOrders(c *fiber.Ctx) error {
	cl, err := caller(c)
	if err != nil {
		return h.fail(c, err)
	}
	orders, err := h.Catalog.ListOrders(c.UserContext(), cl)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(orders)
}

func (h *Handler) GetOrder(c *fiber.Ctx) error {
	cl, err := caller(c)
	if err != nil {
		return h.fail(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	order, err := h.Catalog.GetOrder(c.UserContext(), cl, id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(order)
}

func (h *Handler) ListCredits(c *fiber.Ctx) error {
	cl, err := caller(c)
	if err != nil {
		return h.fail(c, err)
	}
	credits, err := h.Catalog.ListCredits(c.UserContext(), cl)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(credits)
}

type paymentResponse struct {
	Success bool                    `json:"success"`
	Message string                  `json:"message"`
	Error   string                  `json:"error,omitempty"`
	Data    *services.PaymentResult `json:"data,omitempty"`
}

func (h *Handler) paymentFailure(c *fiber.Ctx, err error) error {
	status := utils.HTTPStatus(err)
	switch utils.KindOf(err) {
	case utils.KindUpstream:
		h.Log.Warn("payment rail unavailable", zap.Error(err))
	case utils.KindInternal:
		h.Log.Error("payment validation failed", zap.Error(err))
	}
	return c.Status(status).JSON(paymentResponse{
		Success: false,
		Message: utils.PublicMessage(err),
		Error:   string(utils.KindOf(err)),
	})
}

// ValidatePayment godoc
// @Summary Confirm an order's payment and release its session credits
// @Description Serves both /validate and the legacy /validate-pix path.
// @Tags payments
// @Accept json
// @Produce json
// @Param body body services.ValidatePaymentInput true "Order and professional"
// @Success 200 {object} paymentResponse
// @Failure 400 {object} paymentResponse
// @Failure 500 {object} paymentResponse
// @Router /api/payments/validate [post]
func (h *Handler) ValidatePayment(c *fiber.Ctx) error {
	cl, err := caller(c)
	if err != nil {
		return h.paymentFailure(c, err)
	}
	var in services.ValidatePaymentInput
	if err := c.BodyParser(&in); err != nil {
		return h.paymentFailure(c, utils.NewValidation("cannot parse request body"))
	}
	if in.OrderID == 0 || in.ProfessionalID == 0 {
		return h.paymentFailure(c, utils.NewValidation("orderId and professionalId are required"))
	}
	result, err := h.Payments.Validate(c.UserContext(), cl, in)
	if err != nil {
		return h.paymentFailure(c, err)
	}
	msg := "Payment confirmed and session credits released"
	if result.AlreadyPaid {
		msg = "Payment already confirmed"
	}
	return c.JSON(paymentResponse{Success: true, Message: msg, Data: result})
}
