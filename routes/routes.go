package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/psicanalise-online/platform/controllers"
)

// Setup mounts every route group. The gateway middleware must already be
// installed on app.
func Setup(app *fiber.App, h *controllers.Handler) {
	app.Get("/healthz", h.Healthz)
	app.Get("/readyz", h.Readyz)
	app.Get("/api/config/public", h.PublicConfig)

	SetupAuthRoutes(app, h)
	SetupServiceRoutes(app, h)
	SetupWorkingHourRoutes(app, h)
	SetupAppointmentRoutes(app, h)
	SetupNotificationRoutes(app, h)
	SetupAdminRoutes(app, h)
	SetupBlogRoutes(app, h)
}
