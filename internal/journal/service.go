package journal

import (
	"context"
	"log/slog"

	"facedesk/internal/metrics"
)

// Archiver stores an attempt's frame somewhere durable and returns its URL.
type Archiver interface {
	Archive(ctx context.Context, frame []byte, name string) (string, error)
}

// Service writes journal entries, archiving frames when an archiver is set.
type Service struct {
	repo     Repository
	archiver Archiver
	logger   *slog.Logger
}

// NewService creates a service backed by a repository. archiver may be nil.
func NewService(repo Repository, archiver Archiver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, archiver: archiver, logger: logger}
}

// Record archives the entry's frame, if any, and persists the entry. An
// archive failure is logged and the entry is stored without a frame URL.
func (s *Service) Record(ctx context.Context, e Entry) (Entry, error) {
	if s.archiver != nil && len(e.Frame) > 0 && e.FrameURL == "" {
		url, err := s.archiver.Archive(ctx, e.Frame, "attempt-"+e.ID)
		if err != nil {
			s.logger.Warn("frame archive failed", slog.String("attempt", e.ID), slog.Any("error", err))
		} else {
			e.FrameURL = url
		}
	}
	e.Frame = nil

	saved, err := s.repo.Insert(ctx, e)
	if err != nil {
		metrics.JournalWrites.WithLabelValues("error").Inc()
		return Entry{}, err
	}
	metrics.JournalWrites.WithLabelValues("ok").Inc()
	return saved, nil
}

// List returns journal entries newest first.
func (s *Service) List(ctx context.Context, f Filter) ([]Entry, error) {
	return s.repo.List(ctx, f)
}
