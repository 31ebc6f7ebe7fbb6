package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/psicanalise-online/platform/services"
)

// ListNotifications godoc
// @Summary List the caller's notifications
// @Tags notifications
// @Produce json
// @Param unread_only query bool false "Only unread"
// @Param limit query int false "Page size (default 20, max 100)"
// @Param offset query int false "Offset"
// @Success 200 {object} services.NotificationPage
// @Router /api/notifications [get]
func (h *Handler) ListNotifications(c *fiber.Ctx) error {
	cl, err := caller(c)
	if err != nil {
		return h.fail(c, err)
	}
	page, err := h.Notifications.List(c.UserContext(), cl, services.ListNotificationsInput{
		UnreadOnly: c.QueryBool("unread_only", false),
		Limit:      c.QueryInt("limit", 0),
		Offset:     c.QueryInt("offset", 0),
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(page)
}

func (h *Handler) UnreadCount(c *fiber.Ctx) error {
	cl, err := caller(c)
	if err != nil {
		return h.fail(c, err)
	}
	count, err := h.Notifications.UnreadCount(c.UserContext(), cl)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"unread_count": count})
}

func (h *Handler) MarkNotificationRead(c *fiber.Ctx) error {
	cl, err := caller(c)
	if err != nil {
		return h.fail(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	if err := h.Notifications.MarkAsRead(c.UserContext(), cl, id); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

func (h *Handler) MarkAllNotificationsRead(c *fiber.Ctx) error {
	cl, err := caller(c)
	if err != nil {
		return h.fail(c, err)
	}
	updated, err := h.Notifications.MarkAllAsRead(c.UserContext(), cl)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "updated": updated})
}

func (h *Handler) DeleteNotification(c *fiber.Ctx) error {
	cl, err := caller(c)
	if err != nil {
		return h.fail(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	if err := h.Notifications.Delete(c.UserContext(), cl, id); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) DeleteReadNotifications(c *fiber.Ctx) error {
	cl, err := caller(c)
	if err != nil {
		return h.fail(c, err)
	}
	deleted, err := h.Notifications.DeleteAllRead(c.UserContext(), cl)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "deleted": deleted})
}
