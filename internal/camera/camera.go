// Package camera owns the kiosk's video device: acquiring it, snapshotting
// frames as JPEG and releasing it.
package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"sync"

	"facedesk/internal/metrics"
)

var (
	ErrPermissionDenied = errors.New("camera access denied")
	ErrNoVideoSource    = errors.New("video element not available")
)

// Constraints are the preferred capture settings passed to a device.
type Constraints struct {
	Width  int
	Height int
	Facing string
}

// DefaultConstraints asks for 720p from the user-facing camera.
var DefaultConstraints = Constraints{Width: 1280, Height: 720, Facing: "user"}

// Stream is an open video source.
type Stream interface {
	Frame(ctx context.Context) (image.Image, error)
	Close() error
}

// Device opens video streams.
type Device interface {
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// Adapter binds at most one stream at a time and encodes snapshots.
type Adapter struct {
	device      Device
	constraints Constraints
	quality     int
	logger      *slog.Logger

	mu     sync.Mutex
	stream Stream
	errMsg string
}

// NewAdapter creates an adapter over device. quality is the fixed JPEG quality.
func NewAdapter(device Device, quality int, logger *slog.Logger) *Adapter {
	if quality <= 0 || quality > 100 {
		quality = 92
	}
	return &Adapter{
		device:      device,
		constraints: DefaultConstraints,
		quality:     quality,
		logger:      logger,
	}
}

// Start acquires the device. Starting an already streaming adapter is a no-op.
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stream != nil {
		return nil
	}
	stream, err := a.device.Open(ctx, a.constraints)
	if err != nil {
		a.errMsg = "Camera access denied: " + err.Error()
		a.logger.Warn("camera start failed", slog.Any("error", err))
		if errors.Is(err, ErrPermissionDenied) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	a.stream = stream
	a.errMsg = ""
	metrics.CameraStreaming.Set(1)
	a.logger.Debug("camera streaming")
	return nil
}

// Stop releases the device. Stopping an idle adapter is a no-op.
func (a *Adapter) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stream == nil {
		return
	}
	if err := a.stream.Close(); err != nil {
		a.logger.Warn("camera close failed", slog.Any("error", err))
	}
	a.stream = nil
	metrics.CameraStreaming.Set(0)
	a.logger.Debug("camera stopped")
}

// Streaming reports whether a stream is bound.
func (a *Adapter) Streaming() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stream != nil
}

// Err returns the last start failure message, empty after a successful start.
func (a *Adapter) Err() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.errMsg
}

// CaptureFrame snapshots the current frame as JPEG at the adapter's fixed
// quality and original size. It does not stop the stream.
func (a *Adapter) CaptureFrame(ctx context.Context) ([]byte, error) {
	a.mu.Lock()
	stream := a.stream
	a.mu.Unlock()

	if stream == nil {
		return nil, ErrNoVideoSource
	}
	img, err := stream.Frame(ctx)
	if err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: a.quality}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

// With runs fn while holding the device and always releases it afterwards.
func (a *Adapter) With(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := a.Start(ctx); err != nil {
		return err
	}
	defer a.Stop()
	return fn(ctx)
}
