package middleware

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	jwtware "github.com/gofiber/jwt/v3"
	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"

	"github.com/psicanalise-online/platform/config"
	"github.com/psicanalise-online/platform/models"
	"github.com/psicanalise-online/platform/repository"
	"github.com/psicanalise-online/platform/services"
	"github.com/psicanalise-online/platform/utils"
)

const callerKey = "caller"

// ProfileLookup loads the account behind a session, soft-deleted rows included.
type ProfileLookup interface {
	GetProfile(ctx context.Context, id uint) (*models.Profile, error)
}

// TokenIssuer signs replacement access tokens for rotation.
type TokenIssuer interface {
	IssueAccessToken(profile *models.Profile) (string, time.Time, error)
}

type GatewayConfig struct {
	JWT      config.JWTConfig
	Profiles ProfileLookup
	Tokens   TokenIssuer
	Log      *zap.Logger
	Now      func() time.Time
}

// Gateway guards every non-public route: it validates the session token,
// loads the profile, denies blocked or deleted accounts, enforces the
// professional-only areas and rotates tokens close to expiry.
func Gateway(cfg GatewayConfig) fiber.Handler {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return jwtware.New(jwtware.Config{
		Filter:        isPublic,
		SigningKey:    []byte(cfg.JWT.Secret),
		SigningMethod: jwtware.HS256,
		Claims:        &services.SessionClaims{},
		TokenLookup:   "header:" + fiber.HeaderAuthorization + ",cookie:" + cfg.JWT.CookieName,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			cfg.Log.Debug("session rejected", zap.String("path", c.Path()), zap.Error(err))
			return deny(c, fiber.StatusUnauthorized, "authentication required")
		},
		SuccessHandler: func(c *fiber.Ctx) error {
			return cfg.authorize(c)
		},
	})
}

func (cfg GatewayConfig) authorize(c *fiber.Ctx) error {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok {
		return deny(c, fiber.StatusUnauthorized, "authentication required")
	}
	claims, ok := token.Claims.(*services.SessionClaims)
	if !ok || claims.Kind != services.TokenAccess || claims.UserID == 0 {
		return deny(c, fiber.StatusUnauthorized, "invalid session")
	}

	profile, err := cfg.Profiles.GetProfile(c.UserContext(), claims.UserID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			cfg.Log.Error("session profile lookup failed", zap.Uint("user_id", claims.UserID), zap.Error(err))
		}
		return deny(c, fiber.StatusUnauthorized, "invalid session")
	}
	if !profile.CanAuthenticate() {
		return deny(c, fiber.StatusForbidden, "account is not available")
	}
	if role, restricted := requiredRole(c.Path()); restricted && profile.Role != role {
		return deny(c, fiber.StatusForbidden, "you don't have the required role to access this resource")
	}

	if claims.ExpiresAt != nil && claims.ExpiresAt.Sub(cfg.Now()) < cfg.JWT.RefreshThreshold {
		cfg.rotate(c, profile)
	}

	c.Locals(callerKey, services.Caller{
		UserID: profile.ID,
		Role:   profile.Role,
		Name:   profile.Name,
		Email:  profile.Email,
	})
	return c.Next()
}

func (cfg GatewayConfig) rotate(c *fiber.Ctx, profile *models.Profile) {
	token, exp, err := cfg.Tokens.IssueAccessToken(profile)
	if err != nil {
		cfg.Log.Warn("session rotation failed", zap.Uint("user_id", profile.ID), zap.Error(err))
		return
	}
	SetSessionCookie(c, cfg.JWT, token, exp)
	c.Set("X-Session-Token", token)
}

// SetSessionCookie stores the access token in the session cookie.
func SetSessionCookie(c *fiber.Ctx, jwtCfg config.JWTConfig, token string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     jwtCfg.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		Secure:   jwtCfg.CookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func ClearSessionCookie(c *fiber.Ctx, jwtCfg config.JWTConfig) {
	c.Cookie(&fiber.Cookie{
		Name:     jwtCfg.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   jwtCfg.CookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// deny answers API paths with JSON and page paths with a redirect.
func deny(c *fiber.Ctx, status int, msg string) error {
	if isAPI(c.Path()) {
		kind := utils.KindUnauthorized
		if status == fiber.StatusForbidden {
			kind = utils.KindForbidden
		}
		return c.Status(status).JSON(utils.ErrorResponse{Message: msg, Error: string(kind)})
	}
	if status == fiber.StatusUnauthorized {
		return c.Redirect("/login", fiber.StatusFound)
	}
	return c.Redirect("/", fiber.StatusFound)
}

func isAPI(path string) bool {
	return path == "/api" || strings.HasPrefix(path, "/api/")
}

// CallerFrom returns the identity the gateway attached to the request.
func CallerFrom(c *fiber.Ctx) (services.Caller, bool) {
	caller, ok := c.Locals(callerKey).(services.Caller)
	return caller, ok
}
