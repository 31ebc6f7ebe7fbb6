package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/psicanalise-online/platform/controllers"
)

func SetupNotificationRoutes(app *fiber.App, h *controllers.Handler) {
	notifications := app.Group("/api/notifications")
	notifications.Get("/", h.ListNotifications)
	notifications.Get("/unread-count", h.UnreadCount)
	notifications.Post("/read-all", h.MarkAllNotificationsRead)
	notifications.Post("/:id/read", h.MarkNotificationRead)
	notifications.Delete("/read", h.DeleteReadNotifications)
	notifications.Delete("/:id", h.DeleteNotification)
}
