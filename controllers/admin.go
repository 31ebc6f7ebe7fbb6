package controllers

import "github.com/gofiber/fiber/v2"

// SearchUsers godoc
// @Summary Search client accounts
// @Description Case-insensitive match on name, email or phone. Professionals only.
// @Tags admin
// @Produce json
// @Param search query string false "Search term"
// @Success 200 {array} models.Profile
// @Failure 401 {object} utils.ErrorResponse
// @Failure 403 {object} utils.ErrorResponse
// @Router /api/admin/users [get]
func (h *Handler) SearchUsers(c *fiber.Ctx) error {
	cl, err := caller(c)
	if err != nil {
		return h.fail(c, err)
	}
	users, err := h.Admin.SearchClients(c.UserContext(), cl, c.Query("search"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"users": users})
}
