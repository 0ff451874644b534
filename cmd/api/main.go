package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"pdfupload/docs"
	"pdfupload/internal/config"
	"pdfupload/internal/database"
	handlers "pdfupload/internal/http/handler"
	"pdfupload/internal/http/middleware"
	"pdfupload/internal/logging"
	"pdfupload/internal/otel"
	"pdfupload/internal/repository"
	"pdfupload/internal/repository/postgres"
	"pdfupload/internal/service"
	"pdfupload/internal/storage"
)

const shutdownTimeout = 10 * time.Second

// @title PDF Upload API
// @version 1.0
// @description Accepts PDF uploads and stores them in blob storage.
// @BasePath /
func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New(os.Stderr, time.UTC, "info")
		bootLogger.Fatal().Err(err).Msg("invalid configuration")
	}

	logger := logging.New(os.Stdout, cfg.Location(), cfg.LogLevel)
	zerolog.DefaultContextLogger = &logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, logger, prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
	stop()
	if err != nil {
		logger.Error().Err(err).Msg("server exited with error")
		os.Exit(1)
	}
	logger.Info().Msg("server exited")
}

// run wires every component, serves until ctx is cancelled and releases
// what it opened on the way out.
func run(ctx context.Context, cfg *config.AppConfig, logger zerolog.Logger, reg prometheus.Registerer, gatherer prometheus.Gatherer) error {
	shutdownTracing, err := otel.Init(ctx, logger)
	if err != nil {
		return fmt.Errorf("initialize tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Error().Err(err).Msg("tracing shutdown failed")
		}
	}()

	// One blob client per process, shared by every request
	store, err := storage.New(cfg.Storage)
	if err != nil {
		return fmt.Errorf("initialize %s blob storage: %w", cfg.Storage.Backend, err)
	}

	// Optional upload ledger
	var (
		checker handlers.ReadinessChecker
		ledger  repository.UploadRepository
	)
	if cfg.Database.Enabled() {
		db, err := database.Open(ctx, cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("open upload ledger: %w", err)
		}
		defer db.Close()
		checker = db
		ledger = postgres.NewUploadPostgres(db.DB)
	}

	metrics, err := service.NewMetrics(reg)
	if err != nil {
		return fmt.Errorf("register upload metrics: %w", err)
	}
	opts := []service.Option{
		service.WithTimeout(cfg.UploadTimeout),
		service.WithMetrics(metrics),
	}
	if ledger != nil {
		opts = append(opts, service.WithLedger(ledger))
	}
	uploadSvc := service.NewUploadService(store, opts...)

	app, err := newServer(cfg, logger, reg, gatherer, checker, uploadSvc, ledger)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("http shutdown failed")
		}
	}()

	addr := ":" + cfg.Port
	logger.Info().
		Str("addr", addr).
		Str("backend", cfg.Storage.Backend).
		Str("container", store.Container()).
		Bool("ledger", ledger != nil).
		Msg("server starting")

	if err := app.Listen(addr); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return nil
}

// newServer builds the Fiber app with the global middleware chain and every route.
func newServer(
	cfg *config.AppConfig,
	logger zerolog.Logger,
	reg prometheus.Registerer,
	gatherer prometheus.Gatherer,
	checker handlers.ReadinessChecker,
	uploadSvc service.UploadService,
	ledger repository.UploadRepository,
) (*fiber.App, error) {
	promMiddleware, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		return nil, fmt.Errorf("register http metrics: %w", err)
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          handlers.ErrorHandler(),
		BodyLimit:             cfg.MaxBodyBytes,
		DisableStartupMessage: true,
	})

	// Register global middleware
	app.Use(otelfiber.Middleware())
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger(logger))
	app.Use(middleware.Recover())
	app.Use(promMiddleware.Handler())
	app.Use(middleware.CORS(cfg.CORS))

	handlers.RegisterRoutes(app, checker, uploadSvc, ledger)
	app.Get(middleware.MetricsPath, adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	return app, nil
}
