package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/psicanalise-online/platform/models"
	"github.com/psicanalise-online/platform/services"
	"github.com/psicanalise-online/platform/utils"
)

// GetWorkingHours returns a professional's weekly schedule.
func (h *Handler) GetWorkingHours(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	hours, err := h.Scheduling.GetWorkingHours(c.UserContext(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(hours)
}

// SetWorkingHours replaces the caller's whole weekly schedule with the body,
// a JSON array of days.
func (h *Handler) SetWorkingHours(c *fiber.Ctx) error {
	cl, err := caller(c)
	if err != nil {
		return h.fail(c, err)
	}
	var hours []models.WorkingHours
	if err := parseBody(c, &hours); err != nil {
		return h.fail(c, err)
	}
	saved, err := h.Scheduling.SetWorkingHours(c.UserContext(), cl, hours)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(saved)
}

// AvailableSlots godoc
// @Summary List bookable slots of a professional
// @Tags scheduling
// @Produce json
// @Param id path int true "Professional ID"
// @Param type query string false "video or chat"
// @Param product_id query int false "Product that sets the session length"
// @Param from query string false "RFC 3339 start of window"
// @Param to query string false "RFC 3339 end of window"
// @Success 200 {array} models.Slot
// @Failure 400 {object} utils.ErrorResponse
// @Router /api/professionals/{id}/slots [get]
func (h *Handler) AvailableSlots(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	q := services.SlotQuery{
		ProfessionalID:  id,
		AppointmentType: models.AppointmentType(c.Query("type")),
	}
	if q.AppointmentType != "" && !q.AppointmentType.Valid() {
		return h.fail(c, utils.NewValidation("type must be video or chat"))
	}
	if q.ProductID, err = queryUint(c, "product_id"); err != nil {
		return h.fail(c, err)
	}
	if q.From, err = queryTime(c, "from"); err != nil {
		return h.fail(c, err)
	}
	if q.To, err = queryTime(c, "to"); err != nil {
		return h.fail(c, err)
	}
	slots, err := h.Scheduling.AvailableSlots(c.UserContext(), q)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(slots)
}
