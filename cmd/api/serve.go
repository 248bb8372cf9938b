package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/Mustafaygtbs/CertificateManagement/cache"
	config "github.com/Mustafaygtbs/CertificateManagement/configs"
	"github.com/Mustafaygtbs/CertificateManagement/database"
	"github.com/Mustafaygtbs/CertificateManagement/handlers"
	"github.com/Mustafaygtbs/CertificateManagement/jobs"
	"github.com/Mustafaygtbs/CertificateManagement/logging"
	"github.com/Mustafaygtbs/CertificateManagement/metrics"
	"github.com/Mustafaygtbs/CertificateManagement/middleware"
	"github.com/Mustafaygtbs/CertificateManagement/notifications"
	"github.com/Mustafaygtbs/CertificateManagement/repositories"
	"github.com/Mustafaygtbs/CertificateManagement/routes"
	"github.com/Mustafaygtbs/CertificateManagement/services"
	"github.com/Mustafaygtbs/CertificateManagement/storage"
	"github.com/Mustafaygtbs/CertificateManagement/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

const (
	shutdownTimeout = 15 * time.Second
	jobTimeout      = 10 * time.Minute
)

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, log, db, err := bootstrap()
	if err != nil {
		return err
	}
	log.Info("starting", slog.String("app", cfg.App.Name), slog.String("env", cfg.Env))

	if err := database.Migrate(db); err != nil {
		return err
	}

	store := repositories.NewGormStore(db)
	hasher := services.NewPasswordHasher(0)
	if err := database.SeedAdmin(ctx, store.Users(), hasher, cfg.Admin, log); err != nil {
		return err
	}

	blobs, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	mailer, err := notifications.New(cfg.Email, log)
	if err != nil {
		return err
	}

	health := map[string]handlers.Pinger{"database": store}
	var verification services.VerificationCache
	if cfg.Redis.URL != "" {
		rc, err := cache.NewRedisVerificationCache(ctx, cfg.Redis.URL, cfg.Redis.VerificationTTL)
		if err != nil {
			return err
		}
		defer rc.Close()
		verification = rc
		health["redis"] = rc
	}

	tokens := services.NewTokenIssuer(cfg.JWT)
	m := metrics.New()
	hub := websocket.NewHub(tokens, log)
	go hub.Run(ctx)

	generator := services.NewCertificateGenerator(blobs, services.NewChromeRenderer(cfg.PDF), cfg.Storage.Timeout)
	completion := services.NewCompletionOrchestrator(store, generator, blobs, mailer, services.CompletionOptions{
		BaseURL:     cfg.App.BaseURL,
		Workers:     cfg.Completion.Workers,
		BlobTimeout: cfg.Storage.Timeout,
		Progress:    hub,
		Metrics:     m,
		Cache:       verification,
	}, log)

	authService := services.NewAuthService(store, hasher, tokens, log)
	courseService := services.NewCourseService(store, blobs, completion, verification, log)
	studentService := services.NewStudentService(store, generator, blobs, mailer, verification, cfg.App.BaseURL, log)
	certificateService := services.NewCertificateService(store, blobs, verification, log)

	if cfg.Jobs.Enabled {
		scheduler := jobs.NewScheduler(log)
		job := jobs.NewPendingCertificatesJob(studentService, jobTimeout, log)
		if _, err := scheduler.AddJob(cfg.Jobs.PendingCertificates, job); err != nil {
			return fmt.Errorf("schedule pending certificates: %w", err)
		}
		scheduler.Start()
		defer func() { <-scheduler.Stop().Done() }()
		log.Info("cron_scheduled", slog.String("job", "pending_certificates"), slog.String("schedule", cfg.Jobs.PendingCertificates))
	}

	requests, cancelRequests := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelRequests()
	app := newApp(requests, cfg, log)
	routes.Setup(app, routes.Handlers{
		Tokens:       tokens,
		Auth:         handlers.NewAuthHandler(authService, log),
		Courses:      handlers.NewCourseHandler(courseService, log),
		Students:     handlers.NewStudentHandler(studentService, log),
		Certificates: handlers.NewCertificateHandler(certificateService, log),
		Hub:          hub,
		Health:       handlers.Health(health),
		Metrics:      m.Handler(),
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info("http_listening", slog.String("addr", cfg.HTTP.Addr()))
		errCh <- app.Listen(cfg.HTTP.Addr())
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting_down")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		log.Error("http_shutdown_failed", logging.Err(err))
	}
	cancelRequests()
	return nil
}

// requests is the parent of every request context; cancelling it aborts
// in-flight work.
func newApp(requests context.Context, cfg *config.Config, log *slog.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:       cfg.App.Name,
		CaseSensitive: true,
		StrictRouting: true,
		ReadTimeout:   cfg.HTTP.ReadTimeout,
		WriteTimeout:  cfg.HTTP.WriteTimeout,
		IdleTimeout:   cfg.HTTP.IdleTimeout,
		BodyLimit:     cfg.HTTP.BodyLimitMB << 20,
		ErrorHandler:  handlers.ErrorHandler(log),
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.HTTP.CORSOrigins,
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowMethods:  "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		ExposeHeaders: "Content-Length, Content-Disposition",
		MaxAge:        86400,
	}))
	app.Use(recover.New())
	app.Use(middleware.RequestContext(requests))
	app.Use(logger.New(logger.Config{
		TimeFormat: "2006-01-02 15:04:05",
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "success",
			"message": "Welcome to " + cfg.App.Name,
		})
	})
	return app
}
