package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"facedesk/internal/cloudinary"
	"facedesk/internal/config"
	"facedesk/internal/journal"
	"facedesk/internal/queue"
	"facedesk/internal/store"
)

// Worker drains capture attempts published by the kiosk into the journal.
func main() {
	cfg := config.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	if !cfg.Production() {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	if cfg.QueueBackend != "redis" {
		log.Fatalf("worker needs QUEUE_BACKEND=redis; the memory queue is drained inside the kiosk")
	}

	dbCtx, dbCancel := context.WithTimeout(ctx, 10*time.Second)
	db, err := store.NewDB(dbCtx, cfg.DatabaseURL)
	dbCancel()
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	repo := journal.NewPostgresRepository(db.Client)
	applied, err := repo.Migrate(ctx)
	if err != nil {
		log.Fatalf("journal migrations failed: %v", err)
	}
	for _, name := range applied {
		logger.Info("migration applied", slog.String("file", name))
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()
	if !redisClient.Healthy(ctx) {
		logger.Warn("redis not reachable yet; consumer will keep retrying", slog.String("addr", cfg.RedisAddr))
	}
	q, err := queue.New(cfg.QueueBackend, redisClient.Client, logger)
	if err != nil {
		log.Fatalf("queue init failed: %v", err)
	}

	var archiver journal.Archiver
	if cfg.CloudinaryEnabled() {
		archiver = cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		logger.Info("cloudinary archive enabled", slog.String("cloud", cfg.CloudinaryCloudName))
	} else {
		logger.Info("cloudinary not configured; frames are not archived")
	}

	w := journal.NewWorker(journal.NewService(repo, archiver, logger), logger)
	if err := w.Run(ctx, q); err != nil {
		log.Fatalf("worker failed: %v", err)
	}
}
