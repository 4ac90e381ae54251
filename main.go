package main

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"competition-engine/config"
	"competition-engine/handlers"
	"competition-engine/middleware"
	"competition-engine/services"
	"competition-engine/storage"
	"competition-engine/utils"
	"competition-engine/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jonboulle/clockwork"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := storage.Migrate(db); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	clock := clockwork.NewRealClock()
	scheduler, err := services.NewJobScheduler(clock, logger)
	if err != nil {
		logger.Error("failed to create draw scheduler", "error", err)
		os.Exit(1)
	}

	var archive services.DrawArchive
	if cfg.ArchiveEnabled() {
		r2, err := utils.NewR2Archive(ctx, cfg.R2())
		if err != nil {
			logger.Error("failed to initialize R2 archive", "error", err)
			os.Exit(1)
		}
		archive = r2
	}

	seed := cfg.RandomSeed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	svc := services.New(services.Deps{
		Store:       storage.NewGormStore(db),
		Scheduler:   scheduler,
		Clock:       clock,
		Random:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		Archive:     archive,
		Logger:      logger,
		DrawTimeout: cfg.DrawTimeout,
	})

	scheduler.Start()
	restored, err := svc.Draws.Restore(ctx)
	if err != nil {
		logger.Error("failed to restore draw jobs", "error", err)
		os.Exit(1)
	}
	logger.Info("draw jobs restored", "count", restored)

	sweeper := workers.NewSweepWorker(svc.Competitions, svc.Entries, logger)
	go sweeper.Poll(ctx, cfg.SweepInterval)

	// Services and the lock table keep ids taken from route params.
	app := fiber.New(fiber.Config{Immutable: true})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, X-User-Roles",
		AllowCredentials: true,
		MaxAge:           86400,
	}))
	app.Use(middleware.GatewayAuthMiddleware(cfg.GatewayToken, logger))
	app.Use(middleware.UserContextMiddleware())
	app.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	handlers.SetupCompetitionRoutes(app, handlers.NewHandler(svc, logger))

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error("server error", "error", err)
			stop()
		}
	}()
	logger.Info("server running", "port", cfg.Port, "sweep_interval", cfg.SweepInterval, "archive", cfg.ArchiveEnabled())

	<-ctx.Done()
	logger.Info("shutting down server")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	if err := scheduler.Shutdown(); err != nil {
		logger.Error("scheduler shutdown failed", "error", err)
	}
}
