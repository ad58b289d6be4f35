package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"facedesk/internal/clock"
	"facedesk/internal/model"
	"facedesk/internal/testutil"
)

type fakeCamera struct {
	mu       sync.Mutex
	starts   int
	stops    int
	on       bool
	startErr error
	frameErr error
}

func (f *fakeCamera) Start(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	if !f.on {
		f.starts++
		f.on = true
	}
	return nil
}

func (f *fakeCamera) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.on {
		f.stops++
		f.on = false
	}
}

func (f *fakeCamera) CaptureFrame(context.Context) ([]byte, error) {
	if f.frameErr != nil {
		return nil, f.frameErr
	}
	return []byte{0xff, 0xd8, 0x01}, nil
}

func (f *fakeCamera) Err() string {
	if f.startErr != nil {
		return "Camera access denied: " + f.startErr.Error()
	}
	return ""
}

type fakeRecognizer struct {
	result *model.RecognitionResult
	err    error
	gate   chan struct{}
	calls  int
}

func (f *fakeRecognizer) Recognize(ctx context.Context, _ []byte) (*model.RecognitionResult, error) {
	f.calls++
	if f.gate != nil {
		<-f.gate
	}
	return f.result, f.err
}

type fakeSubmitter struct {
	event *model.AttendanceEvent
	err   error
	calls int
	kind  model.EventKind
	id    model.ID
}

func (f *fakeSubmitter) SubmitAttendance(_ context.Context, id model.ID, kind model.EventKind, _ float64) (*model.AttendanceEvent, error) {
	f.calls++
	f.id = id
	f.kind = kind
	return f.event, f.err
}

type sinkRecorder struct {
	mu       sync.Mutex
	attempts []Attempt
}

func (s *sinkRecorder) RecordAttempt(_ context.Context, a Attempt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append(s.attempts, a)
}

func matched(conf float64) *model.RecognitionResult {
	return &model.RecognitionResult{
		Recognized: true,
		Confidence: &conf,
		Employee:   &model.Identity{ID: "7", Name: "Ada", Department: "R&D", Email: "ada@example.com"},
	}
}

type ControllerSuite struct {
	suite.Suite
	cam    *fakeCamera
	rec    *fakeRecognizer
	sub    *fakeSubmitter
	sink   *sinkRecorder
	clock  *clock.MockClock
	marked []Marked
	ctrl   *Controller
}

func TestControllerSuite(t *testing.T) {
	suite.Run(t, new(ControllerSuite))
}

func (s *ControllerSuite) SetupTest() {
	s.cam = &fakeCamera{}
	s.rec = &fakeRecognizer{result: matched(0.93)}
	s.sub = &fakeSubmitter{}
	s.sink = &sinkRecorder{}
	s.clock = clock.NewMock(time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC))
	s.marked = nil
	s.ctrl = NewController(s.cam, s.rec, s.sub, Options{
		OnMarked: func(m Marked) { s.marked = append(s.marked, m) },
		Sink:     s.sink,
		Clock:    s.clock,
		Logger:   testutil.NopLogger(),
	})
}

func (s *ControllerSuite) captured() {
	s.Require().NoError(s.ctrl.Mount(context.Background()))
	s.Require().NoError(s.ctrl.Capture(context.Background()))
	s.Require().Equal(Captured, s.ctrl.State())
}

func (s *ControllerSuite) TestMountStartsStreaming() {
	s.Require().NoError(s.ctrl.Mount(context.Background()))
	s.Equal(Streaming, s.ctrl.State())
	s.Equal(1, s.cam.starts)
}

func (s *ControllerSuite) TestUnmountReleasesCameraInEveryState() {
	s.Require().NoError(s.ctrl.Mount(context.Background()))
	s.ctrl.Unmount()
	s.Equal(s.cam.starts, s.cam.stops)
	s.Equal(Idle, s.ctrl.State())

	s.captured()
	s.ctrl.Unmount()
	s.Equal(s.cam.starts, s.cam.stops)
	_, ok := s.ctrl.Frame()
	s.False(ok)
}

func (s *ControllerSuite) TestCameraFailureLeavesIdleWithError() {
	s.cam.startErr = errors.New("NotAllowedError")
	s.Error(s.ctrl.Mount(context.Background()))

	v := s.ctrl.Snapshot()
	s.Equal("idle", v.State)
	s.Equal("Camera access denied: NotAllowedError", v.Error)
	s.ErrorIs(s.ctrl.Capture(context.Background()), ErrInvalidState)

	s.cam.startErr = nil
	s.Require().NoError(s.ctrl.StartCamera(context.Background()))
	s.Equal(Streaming, s.ctrl.State())
	s.Empty(s.ctrl.Snapshot().Error)
}

func (s *ControllerSuite) TestCaptureStopsCameraAndKeepsFrame() {
	s.captured()
	s.False(s.cam.on)
	frame, ok := s.ctrl.Frame()
	s.True(ok)
	s.NotEmpty(frame)
	s.True(s.ctrl.Snapshot().HasFrame)
}

func (s *ControllerSuite) TestCaptureErrorIsCapitalised() {
	s.Require().NoError(s.ctrl.Mount(context.Background()))
	s.cam.frameErr = errors.New("video element not available")

	s.Error(s.ctrl.Capture(context.Background()))
	s.Equal(Streaming, s.ctrl.State())
	s.Equal("Video element not available", s.ctrl.Snapshot().Error)
}

func (s *ControllerSuite) TestRetakeRestartsCamera() {
	s.captured()
	s.Require().NoError(s.ctrl.Retake(context.Background()))
	s.Equal(Streaming, s.ctrl.State())
	s.Equal(2, s.cam.starts)
	_, ok := s.ctrl.Frame()
	s.False(ok)
}

func (s *ControllerSuite) TestConfirmOutsideCapturedIsRejected() {
	s.ErrorIs(s.ctrl.Confirm(context.Background()), ErrInvalidState)
	s.Require().NoError(s.ctrl.Mount(context.Background()))
	s.ErrorIs(s.ctrl.Confirm(context.Background()), ErrInvalidState)
	s.Zero(s.rec.calls)
}

func (s *ControllerSuite) TestNotRecognizedReturnsToCaptured() {
	s.rec.result = &model.RecognitionResult{Recognized: false, Message: "no match"}
	s.captured()

	err := s.ctrl.Confirm(context.Background())
	s.ErrorIs(err, ErrNotRecognized)

	v := s.ctrl.Snapshot()
	s.Equal("captured", v.State)
	s.Equal("no match", v.Error)
	s.True(v.HasFrame)
	s.True(v.ConfirmEnabled)
	s.Nil(v.Recognition)
	s.Zero(s.sub.calls)
	s.Empty(s.marked)

	s.Require().Len(s.sink.attempts, 1)
	s.Equal(OutcomeNotRecognized, s.sink.attempts[0].Outcome)
}

func (s *ControllerSuite) TestNotRecognizedWithoutMessage() {
	s.rec.result = &model.RecognitionResult{Recognized: true}
	s.captured()

	s.ErrorIs(s.ctrl.Confirm(context.Background()), ErrNotRecognized)
	s.Equal("Face not recognized", s.ctrl.Snapshot().Error)
}

func (s *ControllerSuite) TestRecognitionTransportFailure() {
	s.rec.result = nil
	s.rec.err = errors.New("connection refused")
	s.captured()

	s.Error(s.ctrl.Confirm(context.Background()))
	v := s.ctrl.Snapshot()
	s.Equal("captured", v.State)
	s.Equal("Face recognition failed", v.Error)
	s.True(v.HasFrame)
}

func (s *ControllerSuite) TestSuccessfulConfirmEmitsMarked() {
	s.sub.event = &model.AttendanceEvent{ID: "a1", EmployeeID: "7", EmployeeName: "Ada", Kind: model.CheckOut, Confidence: 0.93}
	s.Require().NoError(s.ctrl.SetKind(model.CheckOut))
	s.captured()

	s.Require().NoError(s.ctrl.Confirm(context.Background()))

	s.Equal(model.ID("7"), s.sub.id)
	s.Equal(model.CheckOut, s.sub.kind)
	s.Require().Len(s.marked, 1)
	s.Equal(model.CheckOut, s.marked[0].Kind)
	s.Equal("Ada", s.marked[0].Identity.Name)
	s.False(s.marked[0].Echo)
	s.Equal(model.ID("a1"), s.marked[0].Event.ID)

	v := s.ctrl.Snapshot()
	s.Equal("streaming", v.State)
	s.False(v.HasFrame)
	s.False(v.Processing)
	s.Nil(v.Recognition)
	s.True(s.cam.on)

	s.Require().Len(s.sink.attempts, 1)
	s.Equal(OutcomeMarked, s.sink.attempts[0].Outcome)
	s.Equal(s.clock.Now(), s.sink.attempts[0].At)
}

func (s *ControllerSuite) TestEchoWhenBackendReturnsNoRecord() {
	s.captured()
	s.Require().NoError(s.ctrl.Confirm(context.Background()))

	s.Require().Len(s.marked, 1)
	m := s.marked[0]
	s.True(m.Echo)
	s.NotEmpty(m.Event.ID)
	s.Equal(model.CheckIn, m.Event.Kind)
	s.Equal("Ada", m.Event.EmployeeName)
	s.True(m.Event.Timestamp.Equal(s.clock.Now()))
	s.InDelta(0.93, m.Event.Confidence, 1e-9)
}

func (s *ControllerSuite) TestSubmitFailureKeepsFrame() {
	s.sub.err = errors.New("401")
	s.captured()

	s.Error(s.ctrl.Confirm(context.Background()))
	v := s.ctrl.Snapshot()
	s.Equal("captured", v.State)
	s.Equal("Failed to record attendance", v.Error)
	s.True(v.HasFrame)
	s.True(v.ConfirmEnabled)
	s.Empty(s.marked)
	s.Equal(OutcomeSubmitFailed, s.sink.attempts[0].Outcome)
}

func (s *ControllerSuite) TestConcurrentConfirmIsBusy() {
	s.rec.gate = make(chan struct{})
	s.captured()

	done := make(chan error, 1)
	go func() { done <- s.ctrl.Confirm(context.Background()) }()

	s.Eventually(func() bool { return s.ctrl.Snapshot().Processing }, time.Second, 5*time.Millisecond)
	v := s.ctrl.Snapshot()
	s.Equal("recognizing", v.State)
	s.False(v.ConfirmEnabled)
	s.ErrorIs(s.ctrl.Confirm(context.Background()), ErrBusy)
	s.ErrorIs(s.ctrl.Retake(context.Background()), ErrBusy)

	close(s.rec.gate)
	s.Require().NoError(<-done)
	s.Equal(1, s.rec.calls)
	s.Equal(1, s.sub.calls)
}

func (s *ControllerSuite) TestUnmountDuringRoundTripDiscardsResult() {
	s.rec.gate = make(chan struct{})
	s.captured()

	done := make(chan error, 1)
	go func() { done <- s.ctrl.Confirm(context.Background()) }()
	s.Eventually(func() bool { return s.ctrl.Snapshot().Processing }, time.Second, 5*time.Millisecond)

	s.ctrl.Unmount()
	close(s.rec.gate)
	s.Require().NoError(<-done)

	s.Equal(Idle, s.ctrl.State())
	s.False(s.cam.on)
	s.Equal(s.cam.starts, s.cam.stops)
}

func (s *ControllerSuite) TestSetKindRejectsUnknown() {
	s.Error(s.ctrl.SetKind("lunch"))
	s.Equal(model.CheckIn, s.ctrl.Snapshot().Kind)
}
