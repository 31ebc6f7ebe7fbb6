package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/psicanalise-online/platform/controllers"
	"github.com/psicanalise-online/platform/middleware"
	"github.com/psicanalise-online/platform/models"
)

// SetupServiceRoutes configures the catalog, order and payment routes
func SetupServiceRoutes(app *fiber.App, h *controllers.Handler) {
	app.Get("/api/products", h.ListProducts)

	onlyProfessionals := middleware.RequireRole(models.RoleProfessional)
	professional := app.Group("/api/professional")
	professional.Post("/products", onlyProfessionals, h.CreateProduct)
	professional.Patch("/products/:id", onlyProfessionals, h.UpdateProduct)
	professional.Post("/blog", onlyProfessionals, h.CreatePost)
	professional.Put("/working-hours", onlyProfessionals, h.SetWorkingHours)

	orders := app.Group("/api/orders")
	orders.Post("/", h.CreateOrder)
	orders.Get("/", h.ListOrders)
	orders.Get("/:id", h.GetOrder)

	app.Get("/api/credits", h.ListCredits)

	payments := app.Group("/api/payments")
	payments.Post("/validate", h.ValidatePayment)
	payments.Post("/validate-pix", h.ValidatePayment)
}
