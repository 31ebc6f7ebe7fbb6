package controllers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/psicanalise-online/platform/middleware"
	"github.com/psicanalise-online/platform/services"
	"github.com/psicanalise-online/platform/utils"
)

// Register godoc
// @Summary Create an account
// @Tags auth
// @Accept json
// @Produce json
// @Param body body services.RegisterInput true "Account"
// @Success 201 {object} models.Profile
// @Failure 400 {object} utils.ErrorResponse
// @Failure 409 {object} utils.ErrorResponse
// @Router /api/auth/register [post]
func (h *Handler) Register(c *fiber.Ctx) error {
	var in services.RegisterInput
	if err := parseBody(c, &in); err != nil {
		return h.fail(c, err)
	}
	profile, err := h.Auth.Register(c.UserContext(), in)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Account created. Check your email to verify it.",
		"user":    profile,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login godoc
// @Summary Log in with email and password
// @Tags auth
// @Accept json
// @Produce json
// @Success 200 {object} services.TokenPair
// @Failure 401 {object} utils.ErrorResponse
// @Failure 403 {object} utils.ErrorResponse
// @Router /api/auth/login [post]
func (h *Handler) Login(c *fiber.Ctx) error {
	var in loginRequest
	if err := parseBody(c, &in); err != nil {
		return h.fail(c, err)
	}
	if in.Email == "" || in.Password == "" {
		return h.fail(c, utils.NewValidation("email and password are required"))
	}
	pair, profile, err := h.Auth.Login(c.UserContext(), in.Email, in.Password)
	if err != nil {
		return h.fail(c, err)
	}
	middleware.SetSessionCookie(c, h.Config.JWT, pair.AccessToken, pair.AccessExpiresAt)
	return c.JSON(fiber.Map{
		"token":        pair.AccessToken,
		"refreshToken": pair.RefreshToken,
		"expires_at":   pair.AccessExpiresAt,
		"user":         profile,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *Handler) Refresh(c *fiber.Ctx) error {
	var in refreshRequest
	if err := parseBody(c, &in); err != nil {
		return h.fail(c, err)
	}
	pair, err := h.Auth.Refresh(c.UserContext(), in.RefreshToken)
	if err != nil {
		return h.fail(c, err)
	}
	middleware.SetSessionCookie(c, h.Config.JWT, pair.AccessToken, pair.AccessExpiresAt)
	return c.JSON(pair)
}

func (h *Handler) Logout(c *fiber.Ctx) error {
	middleware.ClearSessionCookie(c, h.Config.JWT)
	return c.JSON(fiber.Map{"success": true})
}

func (h *Handler) Me(c *fiber.Ctx) error {
	cl, err := caller(c)
	if err != nil {
		return h.fail(c, err)
	}
	profile, err := h.Auth.Me(c.UserContext(), cl)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(profile)
}

// UpdateAvatar accepts a multipart "avatar" file.
func (h *Handler) UpdateAvatar(c *fiber.Ctx) error {
	cl, err := caller(c)
	if err != nil {
		return h.fail(c, err)
	}
	header, err := c.FormFile("avatar")
	if err != nil {
		return h.fail(c, utils.NewValidation("avatar file is required"))
	}
	file, err := header.Open()
	if err != nil {
		return h.fail(c, utils.NewValidation("cannot read avatar file"))
	}
	defer file.Close()

	profile, err := h.Auth.UpdateAvatar(c.UserContext(), cl, file)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(profile)
}

type emailRequest struct {
	Email string `json:"email"`
}

// ResendVerification answers the same way whether or not the address has an
// account, so it cannot be used to enumerate users.
func (h *Handler) ResendVerification(c *fiber.Ctx) error {
	var in emailRequest
	if err := parseBody(c, &in); err != nil {
		return h.fail(c, err)
	}
	if err := h.Verification.RequestVerification(c.UserContext(), in.Email); err != nil {
		if utils.KindOf(err) == utils.KindValidation {
			return h.fail(c, err)
		}
		h.Log.Error("resend verification failed", zap.Error(err))
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "If the address has a pending account, a new verification email is on its way.",
	})
}

type verifyRequest struct {
	Token string `json:"token"`
}

func (h *Handler) VerifyEmail(c *fiber.Ctx) error {
	var in verifyRequest
	if err := parseBody(c, &in); err != nil {
		return h.fail(c, err)
	}
	if err := h.Verification.Verify(c.UserContext(), in.Token); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Email verified"})
}
