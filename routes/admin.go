package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/psicanalise-online/platform/controllers"
)

func SetupAdminRoutes(app *fiber.App, h *controllers.Handler) {
	admin := app.Group("/api/admin")
	admin.Get("/users", h.SearchUsers)
}

func SetupBlogRoutes(app *fiber.App, h *controllers.Handler) {
	blog := app.Group("/api/blog")
	blog.Get("/", h.ListPosts)
	blog.Get("/:slug", h.GetPost)
}
