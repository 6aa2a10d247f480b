package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/arturoeanton/go-commit-reporter/internal/app"
	"github.com/arturoeanton/go-commit-reporter/internal/handler"
	"github.com/arturoeanton/go-commit-reporter/internal/middleware"
	"github.com/arturoeanton/go-commit-reporter/internal/tracing"
	"github.com/arturoeanton/go-commit-reporter/pkg/config"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// ── Load .env file ───────────────────────────────────────────────────
	_ = godotenv.Load() // silently ignore if .env doesn't exist

	// ── Configuration ────────────────────────────────────────────────────
	cfg := config.Load()
	slog.SetDefault(app.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat))

	slog.Info("🚀 Starting Commit Reporter",
		"port", cfg.Port,
		"storage", cfg.StorageBackend,
		"llm_provider", cfg.LLMProvider,
		"worker_enabled", cfg.WorkerEnabled,
		"tracing", cfg.TracingEnabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ── Tracing ──────────────────────────────────────────────────────────
	exporter, shutdownTracing := tracing.Init(cfg.TracingEnabled)
	defer func() { _ = shutdownTracing(context.Background()) }()
	var timings handler.TimingSource
	if exporter != nil {
		timings = exporter
	}

	// ── Services ─────────────────────────────────────────────────────────
	a, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	// ── Workers ──────────────────────────────────────────────────────────
	workersDone := make(chan struct{})
	if cfg.WorkerEnabled {
		go func() {
			defer close(workersDone)
			if err := a.Pool.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("report workers stopped", "error", err)
			}
		}()
	} else {
		close(workersDone)
	}
	go a.RunMaintenance(ctx)

	// ── Fiber App ────────────────────────────────────────────────────────
	server := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // report generation is synchronous
	})

	// Global middleware
	server.Use(recover.New())
	server.Use(fiberlogger.New())
	server.Use(cors.New(cors.Config{
		AllowOrigins: []string{cfg.FrontendURL},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
	}))
	server.Use(middleware.AuditMiddleware(a.AuditWriter))

	api := server.Group("/api/v1")

	handler.NewHealthHandler(cfg.AppName, timings).Register(api)

	rateLimit := limiter.New(limiter.Config{
		Max:        cfg.RateLimitMax,
		Expiration: cfg.RateLimitWindow,
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "too many requests"})
		},
	})
	handler.NewReportsHandler(a.Reports).Register(api, rateLimit)
	handler.NewJobsHandler(a.Jobs).Register(api)

	if a.AuditReader != nil {
		handler.NewAuditHandler(a.AuditReader).Register(api)
	}

	// ── Start ────────────────────────────────────────────────────────────
	go func() {
		<-ctx.Done()
		slog.Info("shutting down")
		if err := server.ShutdownWithTimeout(shutdownTimeout); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("🌐 Fiber listening", "port", cfg.Port)
	if err := server.Listen(":" + cfg.Port); err != nil {
		slog.Error("server failed", "error", err)
		stop()
	}

	<-workersDone
	slog.Info("bye")
}
