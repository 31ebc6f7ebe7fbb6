package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/psicanalise-online/platform/controllers"
)

// SetupWorkingHourRoutes configures the public schedule lookups. Editing
// lives under /api/professional.
func SetupWorkingHourRoutes(app *fiber.App, h *controllers.Handler) {
	professionals := app.Group("/api/professionals")
	professionals.Get("/:id/slots", h.AvailableSlots)
	professionals.Get("/:id/working-hours", h.GetWorkingHours)
}
