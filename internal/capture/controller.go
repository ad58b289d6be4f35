// Package capture runs the kiosk's capture, recognise and submit workflow.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"facedesk/internal/clock"
	"facedesk/internal/metrics"
	"facedesk/internal/model"
)

var (
	ErrBusy          = errors.New("a recognition is already in progress")
	ErrInvalidState  = errors.New("action not available in current state")
	ErrNotRecognized = errors.New("face not recognized")
)

// User-facing messages.
const (
	msgNotRecognized     = "Face not recognized"
	msgRecognitionFailed = "Face recognition failed"
	msgSubmitFailed      = "Failed to record attendance"
)

// State is the workflow's single source of truth.
type State int

const (
	Idle State = iota
	Streaming
	Captured
	Recognizing
	Recognized
	Submitting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Streaming:
		return "streaming"
	case Captured:
		return "captured"
	case Recognizing:
		return "recognizing"
	case Recognized:
		return "recognized"
	case Submitting:
		return "submitting"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Camera is the part of the media adapter the workflow drives.
type Camera interface {
	Start(ctx context.Context) error
	Stop()
	CaptureFrame(ctx context.Context) ([]byte, error)
	Err() string
}

// Recognizer identifies the person in a frame.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (*model.RecognitionResult, error)
}

// Submitter records attendance for a recognised identity.
type Submitter interface {
	SubmitAttendance(ctx context.Context, identityID model.ID, kind model.EventKind, confidence float64) (*model.AttendanceEvent, error)
}

// Marked is emitted after the backend accepted an attendance event.
type Marked struct {
	Identity   model.Identity
	Kind       model.EventKind
	Confidence float64
	Event      model.AttendanceEvent
	// Echo is set when Event was synthesised locally because the backend
	// did not return the stored record.
	Echo bool
}

// Controller owns one capture session. It is safe for concurrent use; at most
// one recognise/submit round trip runs at a time.
type Controller struct {
	camera     Camera
	recognizer Recognizer
	submitter  Submitter
	onMarked   func(Marked)
	sink       AttemptSink
	clock      clock.Clock
	logger     *slog.Logger

	mu         sync.Mutex
	state      State
	frame      []byte
	result     *model.RecognitionResult
	errMsg     string
	processing bool
	kind       model.EventKind
	generation int
}

// Options carries the controller's optional collaborators.
type Options struct {
	OnMarked func(Marked)
	Sink     AttemptSink
	Clock    clock.Clock
	Logger   *slog.Logger
}

// NewController creates a controller in the Idle state.
func NewController(cam Camera, rec Recognizer, sub Submitter, opts Options) *Controller {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Controller{
		camera:     cam,
		recognizer: rec,
		submitter:  sub,
		onMarked:   opts.OnMarked,
		sink:       opts.Sink,
		clock:      opts.Clock,
		logger:     opts.Logger,
		state:      Idle,
		kind:       model.CheckIn,
	}
}

// Mount opens the session and starts the camera. A camera failure leaves the
// controller Idle with the error surfaced; the caller can retry with StartCamera.
func (c *Controller) Mount(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	return c.startLocked(ctx)
}

// Unmount releases the camera whatever the current state and discards the
// session. An in-flight round trip still completes but no longer changes state.
func (c *Controller) Unmount() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.camera.Stop()
	c.generation++
	c.state = Idle
	c.frame = nil
	c.result = nil
	c.errMsg = ""
}

// StartCamera is the manual retry after a failed start.
func (c *Controller) StartCamera(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.processing:
		return ErrBusy
	case c.state == Streaming:
		return nil
	case c.state != Idle:
		return fmt.Errorf("%w: start camera from %s", ErrInvalidState, c.state)
	}
	return c.startLocked(ctx)
}

func (c *Controller) startLocked(ctx context.Context) error {
	if err := c.camera.Start(ctx); err != nil {
		c.state = Idle
		c.errMsg = c.camera.Err()
		if c.errMsg == "" {
			c.errMsg = err.Error()
		}
		return err
	}
	c.state = Streaming
	c.errMsg = ""
	return nil
}

// Capture snapshots the current frame and releases the camera.
func (c *Controller) Capture(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Streaming {
		return fmt.Errorf("%w: capture from %s", ErrInvalidState, c.state)
	}
	frame, err := c.camera.CaptureFrame(ctx)
	if err != nil {
		c.errMsg = capitalise(err.Error())
		return err
	}
	c.camera.Stop()
	c.frame = frame
	c.result = nil
	c.errMsg = ""
	c.setState(Captured)
	return nil
}

// Retake discards the captured frame and restarts the camera.
func (c *Controller) Retake(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.processing {
		return ErrBusy
	}
	if c.state != Captured && c.state != Recognized {
		return fmt.Errorf("%w: retake from %s", ErrInvalidState, c.state)
	}
	c.frame = nil
	c.result = nil
	c.errMsg = ""
	c.state = Idle
	return c.startLocked(ctx)
}

// SetKind selects the event kind sent on the next confirmation.
func (c *Controller) SetKind(kind model.EventKind) error {
	if !kind.Valid() {
		return fmt.Errorf("invalid event kind %q", kind)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kind = kind
	return nil
}

// Confirm recognises the captured frame and, on a match, submits attendance
// straight away. Failures return the workflow to Captured with the frame kept.
// Cancelling ctx does not abort a round trip that has started.
func (c *Controller) Confirm(ctx context.Context) error {
	c.mu.Lock()
	if c.processing {
		c.mu.Unlock()
		return ErrBusy
	}
	if c.state != Captured {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: confirm from %s", ErrInvalidState, state)
	}
	c.processing = true
	c.setState(Recognizing)
	c.errMsg = ""
	frame, kind, gen := c.frame, c.kind, c.generation
	c.mu.Unlock()

	// The round trip outlives the caller; the backend client's timeout bounds it.
	ctx = context.WithoutCancel(ctx)

	res, err := c.recognizer.Recognize(ctx, frame)
	if err != nil {
		c.settleFailure(gen, msgRecognitionFailed)
		c.record(ctx, Attempt{Outcome: OutcomeRecognitionFailed, Kind: kind, Message: err.Error(), Frame: frame})
		c.logger.Warn("recognition request failed", slog.Any("error", err))
		return err
	}
	if !res.Matched() {
		msg := res.Message
		if msg == "" {
			msg = msgNotRecognized
		}
		c.settleFailure(gen, msg)
		c.record(ctx, Attempt{Outcome: OutcomeNotRecognized, Kind: kind, Confidence: res.ConfidenceValue(), Message: msg, Frame: frame})
		return fmt.Errorf("%w: %s", ErrNotRecognized, msg)
	}

	identity := *res.Employee
	confidence := res.ConfidenceValue()

	c.mu.Lock()
	if c.generation == gen {
		c.result = res
		c.setState(Recognized)
		c.setState(Submitting)
	}
	c.mu.Unlock()

	event, err := c.submitter.SubmitAttendance(ctx, identity.ID, kind, confidence)
	if err != nil {
		c.settleFailure(gen, msgSubmitFailed)
		c.record(ctx, Attempt{Outcome: OutcomeSubmitFailed, IdentityID: identity.ID, IdentityName: identity.Name, Kind: kind, Confidence: confidence, Message: err.Error(), Frame: frame})
		c.logger.Warn("attendance submit failed", slog.String("identity", string(identity.ID)), slog.Any("error", err))
		return err
	}

	marked := Marked{Identity: identity, Kind: kind, Confidence: confidence}
	if event != nil {
		marked.Event = *event
	} else {
		marked.Echo = true
		marked.Event = model.AttendanceEvent{
			ID:           model.ID(uuid.NewString()),
			EmployeeID:   identity.ID,
			EmployeeName: identity.Name,
			Kind:         kind,
			Timestamp:    model.Time{Time: c.clock.Now()},
			Confidence:   confidence,
		}
	}
	c.record(ctx, Attempt{Outcome: OutcomeMarked, IdentityID: identity.ID, IdentityName: identity.Name, Kind: kind, Confidence: confidence, Frame: frame})
	c.logger.Info("attendance marked",
		slog.String("identity", string(identity.ID)),
		slog.String("kind", string(kind)),
		slog.Float64("confidence", confidence),
	)
	if c.onMarked != nil {
		c.onMarked(marked)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.processing = false
	if c.generation != gen {
		return nil
	}
	c.frame = nil
	c.result = nil
	c.state = Idle
	if err := c.startLocked(ctx); err != nil {
		c.logger.Warn("camera restart failed", slog.Any("error", err))
	}
	return nil
}

func (c *Controller) setState(s State) {
	c.logger.Debug("capture state", slog.String("from", c.state.String()), slog.String("to", s.String()))
	c.state = s
}

func (c *Controller) settleFailure(gen int, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.processing = false
	if c.generation != gen {
		return
	}
	c.result = nil
	c.setState(Captured)
	c.errMsg = msg
}

func (c *Controller) record(ctx context.Context, a Attempt) {
	metrics.CaptureAttempts.WithLabelValues(string(a.Outcome)).Inc()
	if c.sink == nil {
		return
	}
	a.ID = uuid.NewString()
	a.At = c.clock.Now()
	c.sink.RecordAttempt(context.WithoutCancel(ctx), a)
}

// Recognition is the matched identity shown while submitting.
type Recognition struct {
	Identity   model.Identity `json:"employee"`
	Confidence float64        `json:"confidence"`
}

// View is a consistent read of the session for rendering.
type View struct {
	State          string          `json:"state"`
	Error          string          `json:"error,omitempty"`
	HasFrame       bool            `json:"has_frame"`
	Processing     bool            `json:"processing"`
	ConfirmEnabled bool            `json:"confirm_enabled"`
	Kind           model.EventKind `json:"kind"`
	Recognition    *Recognition    `json:"recognition,omitempty"`
}

// Snapshot returns the current view.
func (c *Controller) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := View{
		State:          c.state.String(),
		Error:          c.errMsg,
		HasFrame:       c.frame != nil,
		Processing:     c.processing,
		ConfirmEnabled: !c.processing,
		Kind:           c.kind,
	}
	if c.result != nil && c.result.Matched() {
		v.Recognition = &Recognition{Identity: *c.result.Employee, Confidence: c.result.ConfidenceValue()}
	}
	return v
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Frame returns the captured frame, if any.
func (c *Controller) Frame() ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frame == nil {
		return nil, false
	}
	out := make([]byte, len(c.frame))
	copy(out, c.frame)
	return out, true
}

func capitalise(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'a' && b[0] <= 'z' {
		b[0] -= 'a' - 'A'
	}
	return string(b)
}

// Attempt is a settled confirmation, success or failure.
type Attempt struct {
	ID           string
	At           time.Time
	Outcome      Outcome
	IdentityID   model.ID
	IdentityName string
	Kind         model.EventKind
	Confidence   float64
	Message      string
	Frame        []byte
}

// Outcome classifies a settled attempt.
type Outcome string

const (
	OutcomeMarked            Outcome = "marked"
	OutcomeNotRecognized     Outcome = "not_recognized"
	OutcomeRecognitionFailed Outcome = "recognition_failed"
	OutcomeSubmitFailed      Outcome = "submit_failed"
)

// AttemptSink receives every settled attempt.
type AttemptSink interface {
	RecordAttempt(ctx context.Context, a Attempt)
}
