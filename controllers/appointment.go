package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/psicanalise-online/platform/models"
	"github.com/psicanalise-online/platform/services"
	"github.com/psicanalise-online/platform/utils"
)

// CreateAppointment godoc
// @Summary Book a session with one session credit
// @Tags appointments
// @Accept json
// @Produce json
// @Param appointment body services.BookingRequest true "Booking"
// @Success 201 {object} models.Appointment
// @Failure 400 {object} utils.ErrorResponse
// @Failure 409 {object} utils.ErrorResponse
// @Router /api/appointments [post]
func (h *Handler) CreateAppointment(c *fiber.Ctx) error {
	cl, err := caller(c)
	if err != nil {
		return h.fail(c, err)
	}
	var req services.BookingRequest
	if err := parseBody(c, &req); err != nil {
		return h.fail(c, err)
	}
	appointment, err := h.Scheduling.Book(c.UserContext(), cl, req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(appointment)
}

// GetAppointments godoc
// @Summary List the caller's appointments
// @Tags appointments
// @Produce json
// @Param status query string false "scheduled, completed, cancelled or rescheduled"
// @Param upcoming query bool false "Only future appointments"
// @Success 200 {array} models.Appointment
// @Router /api/appointments [get]
func (h *Handler) GetAppointments(c *fiber.Ctx) error {
	cl, err := caller(c)
	if err != nil {
		return h.fail(c, err)
	}
	in := services.AppointmentListInput{
		Status:   models.AppointmentStatus(c.Query("status")),
		Upcoming: c.QueryBool("upcoming", false),
	}
	appointments, err := h.Scheduling.ListAppointments(c.UserContext(), cl, in)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(appointments)
}

// CancelAppointment refunds the credit when the cancellation window allows it.
func (h *Handler) CancelAppointment(c *fiber.Ctx) error {
	cl, err := caller(c)
	if err != nil {
		return h.fail(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	appointment, err := h.Scheduling.Cancel(c.UserContext(), cl, id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(appointment)
}

type rescheduleRequest struct {
	StartAt *time.Time `json:"start_at"`
}

func (h *Handler) RescheduleAppointment(c *fiber.Ctx) error {
	cl, err := caller(c)
	if err != nil {
		return h.fail(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	var in rescheduleRequest
	if err := parseBody(c, &in); err != nil {
		return h.fail(c, err)
	}
	if in.StartAt == nil {
		return h.fail(c, utils.NewValidation("start_at is required"))
	}
	appointment, err := h.Scheduling.Reschedule(c.UserContext(), cl, id, in.StartAt)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(appointment)
}

func (h *Handler) CompleteAppointment(c *fiber.Ctx) error {
	cl, err := caller(c)
	if err != nil {
		return h.fail(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	appointment, err := h.Scheduling.Complete(c.UserContext(), cl, id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(appointment)
}

// GetRoom returns the session room state for the caller.
func (h *Handler) GetRoom(c *fiber.Ctx) error {
	cl, err := caller(c)
	if err != nil {
		return h.fail(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	view, err := h.Rooms.Open(c.UserContext(), cl, id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(view)
}

func (h *Handler) ListMessages(c *fiber.Ctx) error {
	cl, err := caller(c)
	if err != nil {
		return h.fail(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	messages, err := h.Rooms.ListMessages(c.UserContext(), cl, id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(messages)
}

type messageRequest struct {
	Message string `json:"message"`
}

func (h *Handler) SendMessage(c *fiber.Ctx) error {
	cl, err := caller(c)
	if err != nil {
		return h.fail(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	var in messageRequest
	if err := parseBody(c, &in); err != nil {
		return h.fail(c, err)
	}
	msg, err := h.Rooms.SendMessage(c.UserContext(), cl, id, in.Message)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

func (h *Handler) GetNotes(c *fiber.Ctx) error {
	cl, err := caller(c)
	if err != nil {
		return h.fail(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	notes, err := h.Notes.Get(c.UserContext(), cl, id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(notes)
}

type notesRequest struct {
	Content string `json:"content"`
}

func (h *Handler) SaveNotes(c *fiber.Ctx) error {
	cl, err := caller(c)
	if err != nil {
		return h.fail(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	var in notesRequest
	if err := parseBody(c, &in); err != nil {
		return h.fail(c, err)
	}
	notes, err := h.Notes.Save(c.UserContext(), cl, id, in.Content)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(notes)
}
