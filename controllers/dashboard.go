package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// GetDashboard godoc
// @Summary Activity summary for the caller
// @Tags dashboard
// @Produce json
// @Success 200 {object} services.Dashboard
// @Failure 401 {object} utils.ErrorResponse
// @Router /dashboard [get]
func (h *Handler) GetDashboard(c *fiber.Ctx) error {
	cl, err := caller(c)
	if err != nil {
		return h.fail(c, err)
	}
	dashboard, err := h.Dashboard.Overview(c.UserContext(), cl)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(dashboard)
}

func (h *Handler) Healthz(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok", "time": time.Now().UTC()})
}

func (h *Handler) Readyz(c *fiber.Ctx) error {
	if err := h.DB.Ping(c.UserContext()); err != nil {
		h.Log.Warn("readiness check failed", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
	}
	return c.JSON(fiber.Map{"status": "ready"})
}

// PublicConfig exposes the settings the frontend needs at boot.
func (h *Handler) PublicConfig(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"site_url":     h.Config.Site.BaseURL,
		"timezone":     h.Config.Site.Timezone,
		"analytics_id": h.Config.Site.AnalyticsID,
	})
}
