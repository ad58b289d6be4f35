package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"facedesk/internal/backend"
	"facedesk/internal/camera"
	"facedesk/internal/capture"
	"facedesk/internal/cloudinary"
	"facedesk/internal/config"
	"facedesk/internal/dashboard"
	"facedesk/internal/journal"
	"facedesk/internal/queue"
	"facedesk/internal/registration"
	"facedesk/internal/store"
	"facedesk/internal/web"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	// Set Gin mode based on environment
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		log.Fatalf("kiosk failed: %v", err)
	}
}

func newLogger(cfg config.App) *slog.Logger {
	if cfg.Production() {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func run(cfg config.App, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := backend.New(cfg.BackendURL, cfg.BackendTimeout, logger)
	if cfg.OperatorEmail != "" {
		loginCtx, cancel := context.WithTimeout(ctx, cfg.BackendTimeout)
		if _, err := client.Login(loginCtx, cfg.OperatorEmail); err != nil {
			logger.Warn("operator login failed; sign in from the page", slog.Any("error", err))
		}
		cancel()
	}

	device, err := camera.NewDevice(cfg.CameraDriver, cfg.CameraCommand, cfg.CameraStillPath)
	if err != nil {
		return err
	}
	cam := camera.NewAdapter(device, cfg.JPEGQuality, logger)

	checks := map[string]web.HealthCheck{"backend": client.Health}

	// Cloudinary archiver (nil when not configured)
	var archiver journal.Archiver
	if cfg.CloudinaryEnabled() {
		archiver = cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		logger.Info("cloudinary archive enabled", slog.String("cloud", cfg.CloudinaryCloudName))
	}

	var rc *redis.Client
	if cfg.QueueBackend == "redis" {
		r := store.NewRedis(cfg.RedisAddr)
		defer r.Close()
		checks["redis"] = r.Healthy
		rc = r.Client
	}
	q, err := queue.New(cfg.QueueBackend, rc, logger)
	if err != nil {
		return err
	}

	var repo journal.Repository = journal.NewMemoryRepository()
	if cfg.DatabaseURL != "" {
		dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		db, err := store.NewDB(dbCtx, cfg.DatabaseURL)
		cancel()
		if err != nil {
			return err
		}
		defer db.Close()
		pg := journal.NewPostgresRepository(db.Client)
		applied, err := pg.Migrate(ctx)
		if err != nil {
			return err
		}
		if len(applied) > 0 {
			logger.Info("journal migrations applied", slog.Any("files", applied))
		}
		repo = pg
		checks["db"] = db.Healthy
	}
	svc := journal.NewService(repo, archiver, logger)

	// With the in-process queue the kiosk writes its own journal; with redis
	// cmd/worker does, and the listing needs the shared database.
	var reader web.JournalReader = svc
	if cfg.QueueBackend == "redis" && cfg.DatabaseURL == "" {
		reader = nil
	}
	if cfg.QueueBackend == "memory" {
		w := journal.NewWorker(svc, logger)
		go func() {
			if err := w.Run(ctx, q); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("journal worker stopped", slog.Any("error", err))
			}
		}()
	}

	echo := dashboard.NewEcho(0)
	ctrl := capture.NewController(cam, client, client, capture.Options{
		OnMarked: echo.Add,
		Sink:     journal.NewQueueSink(q, archiver != nil, logger),
		Logger:   logger,
	})
	defer ctrl.Unmount()

	router := web.NewRouter(web.Deps{
		Backend:         client,
		Capture:         ctrl,
		Camera:          cam,
		Registration:    registration.NewWorkflow(client, logger),
		Echo:            echo,
		Journal:         reader,
		Checks:          checks,
		Logger:          logger,
		SessionKey:      cfg.BackendJWTKey,
		LegacyBadge:     cfg.RosterLegacyBadge,
		RateLimitPerMin: cfg.RateLimitPerMin,
		CORSOrigins:     cfg.CORSOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.BackendTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("kiosk listening", slog.String("addr", srv.Addr), slog.String("backend", cfg.BackendURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	// Release the camera before waiting on in-flight requests.
	ctrl.Unmount()
	return srv.Shutdown(shutdownCtx)
}
