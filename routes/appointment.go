package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/psicanalise-online/platform/controllers"
)

// SetupAppointmentRoutes configures booking, lifecycle and session room routes
func SetupAppointmentRoutes(app *fiber.App, h *controllers.Handler) {
	appointment := app.Group("/api/appointments")
	appointment.Post("/", h.CreateAppointment)
	appointment.Get("/", h.GetAppointments)
	appointment.Post("/:id/cancel", h.CancelAppointment)
	appointment.Post("/:id/reschedule", h.RescheduleAppointment)
	appointment.Post("/:id/complete", h.CompleteAppointment)

	appointment.Get("/:id/room", h.GetRoom)
	appointment.Get("/:id/messages", h.ListMessages)
	appointment.Post("/:id/messages", h.SendMessage)
	appointment.Get("/:id/notes", h.GetNotes)
	appointment.Put("/:id/notes", h.SaveNotes)

	app.Get("/dashboard", h.GetDashboard)
	app.Get("/professional/dashboard", h.GetDashboard)
}
