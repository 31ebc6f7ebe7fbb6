package controllers

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/psicanalise-online/platform/config"
	"github.com/psicanalise-online/platform/middleware"
	"github.com/psicanalise-online/platform/services"
	"github.com/psicanalise-online/platform/utils"
)

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds the services the HTTP handlers call into.
type Handler struct {
	Auth          *services.AuthService
	Verification  *services.VerificationService
	Catalog       *services.CatalogService
	Payments      *services.PaymentService
	Scheduling    *services.SchedulingService
	Rooms         *services.RoomService
	Notes         *services.NotesService
	Notifications *services.NotificationService
	Admin         *services.AdminService
	Blog          *services.BlogService
	Dashboard     *services.DashboardService
	DB            Pinger
	Config        *config.Config
	Log           *zap.Logger
}

// fail writes err and logs it when it is not the caller's fault.
func (h *Handler) fail(c *fiber.Ctx, err error) error {
	if utils.HTTPStatus(err) >= fiber.StatusInternalServerError {
		h.Log.Error("request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err))
	}
	return utils.WriteError(c, err)
}

func caller(c *fiber.Ctx) (services.Caller, error) {
	cl, ok := middleware.CallerFrom(c)
	if !ok {
		return services.Caller{}, utils.ErrUnauthorized
	}
	return cl, nil
}

func paramID(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, utils.NewValidation("invalid " + name)
	}
	return uint(id), nil
}

func queryUint(c *fiber.Ctx, name string) (uint, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, utils.NewValidation("invalid " + name)
	}
	return uint(v), nil
}

func queryTime(c *fiber.Ctx, name string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, utils.NewValidation(name + " must be an RFC 3339 timestamp")
	}
	return &t, nil
}

func parseBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return utils.NewValidation("cannot parse request body")
	}
	return nil
}
