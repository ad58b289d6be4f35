package journal

import (
	"context"
	"encoding/json"
	"log/slog"

	"facedesk/internal/queue"
)

// Worker drains attempt messages into the journal.
type Worker struct {
	svc    *Service
	logger *slog.Logger
}

// NewWorker creates a worker writing through svc.
func NewWorker(svc *Service, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{svc: svc, logger: logger}
}

// Run consumes q until ctx is done. Malformed or failed messages are logged
// and skipped.
func (w *Worker) Run(ctx context.Context, q queue.Queue) error {
	messages, err := q.Consume(ctx)
	if err != nil {
		return err
	}
	w.logger.Info("journal worker started")
	for msg := range messages {
		w.handle(ctx, msg)
	}
	w.logger.Info("journal worker stopped")
	return nil
}

func (w *Worker) handle(ctx context.Context, msg queue.Message) {
	if msg.Type != MessageType {
		w.logger.Debug("skipping message", slog.String("type", msg.Type))
		return
	}
	var e Entry
	if err := json.Unmarshal(msg.Body, &e); err != nil {
		w.logger.Warn("malformed attempt message", slog.Any("error", err))
		return
	}
	saved, err := w.svc.Record(ctx, e)
	if err != nil {
		w.logger.Error("journal write failed", slog.String("attempt", e.ID), slog.Any("error", err))
		return
	}
	w.logger.Debug("attempt journaled",
		slog.String("attempt", saved.ID),
		slog.String("outcome", saved.Outcome),
		slog.Bool("archived", saved.FrameURL != ""),
	)
}
