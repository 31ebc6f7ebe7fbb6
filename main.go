package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/psicanalise-online/platform/config"
	"github.com/psicanalise-online/platform/controllers"
	"github.com/psicanalise-online/platform/cron"
	"github.com/psicanalise-online/platform/db"
	"github.com/psicanalise-online/platform/events"
	"github.com/psicanalise-online/platform/integrations/payments"
	"github.com/psicanalise-online/platform/integrations/video"
	"github.com/psicanalise-online/platform/logger"
	"github.com/psicanalise-online/platform/middleware"
	"github.com/psicanalise-online/platform/redis"
	"github.com/psicanalise-online/platform/repository"
	"github.com/psicanalise-online/platform/routes"
	"github.com/psicanalise-online/platform/services"
	"github.com/psicanalise-online/platform/utils"
	"github.com/psicanalise-online/platform/ws"
)

func main() {
	var opts options
	flag.BoolVar(&opts.migrateOnly, "migrate", false, "run database migrations and exit")
	flag.StringVar(&opts.professionalEmail, "create-professional", "", "create a professional account with this email and exit (password from PROFESSIONAL_PASSWORD)")
	flag.StringVar(&opts.professionalName, "name", "", "display name for -create-professional")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	zl, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zl.Sync() //nolint:errcheck

	if err := run(cfg, zl, opts); err != nil {
		zl.Fatal("server stopped", zap.Error(err))
	}
}

type options struct {
	migrateOnly       bool
	professionalEmail string
	professionalName  string
}

type publisher interface {
	services.EventPublisher
	Close() error
}

func run(cfg *config.Config, zl *zap.Logger, opts options) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Init(cfg, zl)
	if err != nil {
		return err
	}
	if opts.migrateOnly {
		if err := db.Migrate(conn); err != nil {
			return err
		}
		zl.Info("migrations applied")
		return nil
	}
	store := repository.NewGormStore(conn)

	var (
		locker   services.Locker
		cooldown services.Cooldown
	)
	if cfg.Redis.Addr != "" {
		client, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer client.Close()
		locker, cooldown = redis.NewLocker(client), redis.NewCooldown(client)
	} else {
		zl.Warn("REDIS_ADDR not set, using in-process locks")
		locker, cooldown = redis.NewLocalLocker(), redis.NewLocalCooldown()
	}

	var bus publisher
	if len(cfg.Kafka.Brokers) > 0 {
		bus = events.NewKafkaPublisher(cfg.Kafka)
	} else {
		zl.Warn("KAFKA_BROKERS not set, domain events are only logged")
		bus = events.NewLogPublisher(zl)
	}
	defer bus.Close()

	var mailer services.Mailer = utils.NewMailer(cfg.Email)
	if !cfg.IsEmailConfigured() {
		zl.Warn("SMTP not configured, emails are only logged")
		mailer = logMailer{log: zl}
	}

	var uploader services.MediaUploader
	if cfg.IsCloudinaryConfigured() {
		u, err := utils.NewUploader(cfg.Cloudinary)
		if err != nil {
			return err
		}
		uploader = u
	}

	hub := ws.NewHub(zl)
	rail := payments.NewClient(cfg.Payment)

	notifications := services.NewNotificationService(store, hub, zl)
	verification := services.NewVerificationService(store, cooldown, notifications, cfg, zl)
	auth := services.NewAuthService(store, verification, uploader, cfg.JWT, zl)
	if opts.professionalEmail != "" {
		profile, err := auth.CreateProfessional(ctx, services.RegisterInput{
			Name:     opts.professionalName,
			Email:    opts.professionalEmail,
			Password: os.Getenv("PROFESSIONAL_PASSWORD"),
		})
		if err != nil {
			return err
		}
		zl.Info("professional created", zap.Uint("user_id", profile.ID))
		return nil
	}
	catalog := services.NewCatalogService(store, rail, zl)
	payment := services.NewPaymentService(store, rail, locker, notifications, zl)
	scheduling := services.NewSchedulingService(store, notifications, cfg.Location(), zl)
	relay := services.NewOutboxRelay(store, mailer, bus, zl)

	h := &controllers.Handler{
		Auth:          auth,
		Verification:  verification,
		Catalog:       catalog,
		Payments:      payment,
		Scheduling:    scheduling,
		Rooms:         services.NewRoomService(store, video.NewClient(cfg.Video), hub, notifications, zl),
		Notes:         services.NewNotesService(store),
		Notifications: notifications,
		Admin:         services.NewAdminService(store),
		Blog:          services.NewBlogService(store, uploader, zl),
		Dashboard:     services.NewDashboardService(store),
		DB:            store,
		Config:        cfg,
		Log:           zl,
	}

	app := fiber.New(fiber.Config{
		AppName:      "psicanalise-online",
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		BodyLimit:    10 * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return c.Status(fe.Code).JSON(utils.ErrorResponse{Message: fe.Message})
			}
			zl.Error("unhandled error", zap.String("path", c.Path()), zap.Error(err))
			return utils.WriteError(c, err)
		},
	})

	origins := strings.Join(cfg.Server.CORSAllowedOrigins, ",")
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowCredentials: origins != "*",
	}))
	app.Use(middleware.RequestLogger(zl))
	app.Use(middleware.Gateway(middleware.GatewayConfig{
		JWT:      cfg.JWT,
		Profiles: store,
		Tokens:   auth,
		Log:      zl,
	}))
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("Psicanálise Online API")
	})
	routes.Setup(app, h)

	mux := http.NewServeMux()
	mux.Handle("/ws", &ws.Handler{Hub: hub, Tokens: auth, Profiles: store, OriginPatterns: cfg.Server.CORSAllowedOrigins, Log: zl})
	wsServer := &http.Server{Addr: ":" + cfg.Server.WSPort, Handler: mux, ReadHeaderTimeout: cfg.Server.ReadTimeout}

	scheduler, err := cron.New(zl,
		cron.Spec{Name: "appointment-reminders", Schedule: "@every 1m", Run: scheduling.SendReminders},
		cron.Spec{Name: "outbox-relay", Schedule: "@every 15s", Run: relay.RunOnce},
		cron.Spec{Name: "expire-stale-orders", Schedule: "@hourly", Run: payment.ExpireStaleOrders},
	)
	if err != nil {
		return err
	}
	scheduler.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zl.Info("http server listening", zap.String("port", cfg.Server.Port))
		return app.Listen(":" + cfg.Server.Port)
	})
	g.Go(func() error {
		zl.Info("websocket server listening", zap.String("port", cfg.Server.WSPort))
		if err := wsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zl.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		hub.Close()
		scheduler.Stop(shutdownCtx)
		if err := wsServer.Shutdown(shutdownCtx); err != nil {
			zl.Warn("websocket shutdown", zap.Error(err))
		}
		return app.ShutdownWithContext(shutdownCtx)
	})
	return g.Wait()
}

// logMailer stands in for SMTP in development.
type logMailer struct {
	log *zap.Logger
}

func (m logMailer) Send(ctx context.Context, to, subject, body string) error {
	m.log.Info("email not sent, SMTP disabled", zap.String("to", to), zap.String("subject", subject))
	return nil
}
