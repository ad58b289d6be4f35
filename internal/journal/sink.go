package journal

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"facedesk/internal/capture"
	"facedesk/internal/queue"
)

// MessageType tags attempt messages on the queue.
const MessageType = "capture_attempt"

const publishTimeout = 2 * time.Second

// QueueSink publishes settled attempts for the journal worker. It implements
// capture.AttemptSink; publish failures are logged, never returned to the
// capture workflow.
type QueueSink struct {
	queue     queue.Queue
	keepFrame bool
	logger    *slog.Logger
}

var _ capture.AttemptSink = (*QueueSink)(nil)

// NewQueueSink creates a sink. keepFrame ships the captured JPEG along with
// the attempt so the worker can archive it.
func NewQueueSink(q queue.Queue, keepFrame bool, logger *slog.Logger) *QueueSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueueSink{queue: q, keepFrame: keepFrame, logger: logger}
}

func (s *QueueSink) RecordAttempt(ctx context.Context, a capture.Attempt) {
	body, err := json.Marshal(FromAttempt(a, s.keepFrame))
	if err != nil {
		s.logger.Error("encode attempt", slog.String("attempt", a.ID), slog.Any("error", err))
		return
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := s.queue.Publish(ctx, queue.Message{Type: MessageType, Body: body}); err != nil {
		s.logger.Warn("publish attempt", slog.String("attempt", a.ID), slog.Any("error", err))
	}
}
