package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/psicanalise-online/platform/controllers"
)

func SetupAuthRoutes(app *fiber.App, h *controllers.Handler) {
	auth := app.Group("/api/auth")
	auth.Post("/register", h.Register)
	auth.Post("/login", h.Login)
	auth.Post("/refresh", h.Refresh)
	auth.Post("/logout", h.Logout)
	auth.Post("/resend-verification", h.ResendVerification)
	auth.Post("/verify-email", h.VerifyEmail)
	auth.Get("/me", h.Me)
	auth.Put("/me/avatar", h.UpdateAvatar)
}
