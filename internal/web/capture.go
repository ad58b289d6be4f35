package web

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"facedesk/internal/backend"
	"facedesk/internal/camera"
	"facedesk/internal/capture"
	"facedesk/internal/model"
)

func (s *Server) captureView(c *gin.Context) {
	c.JSON(http.StatusOK, s.Capture.Snapshot())
}

// mount opens the capture session when the camera tab is shown.
func (s *Server) mount(c *gin.Context) {
	s.respondCapture(c, s.Capture.Mount(c.Request.Context()))
}

// unmount always releases the camera, whatever the session state.
func (s *Server) unmount(c *gin.Context) {
	s.Capture.Unmount()
	c.JSON(http.StatusOK, s.Capture.Snapshot())
}

func (s *Server) startCamera(c *gin.Context) {
	s.respondCapture(c, s.Capture.StartCamera(c.Request.Context()))
}

func (s *Server) snapshot(c *gin.Context) {
	s.respondCapture(c, s.Capture.Capture(c.Request.Context()))
}

func (s *Server) retake(c *gin.Context) {
	s.respondCapture(c, s.Capture.Retake(c.Request.Context()))
}

func (s *Server) setKind(c *gin.Context) {
	var req struct {
		Kind string `json:"kind" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, err.Error())
		return
	}
	kind, err := model.ParseEventKind(req.Kind)
	if err != nil {
		errorJSON(c, http.StatusBadRequest, err.Error())
		return
	}
	s.respondCapture(c, s.Capture.SetKind(kind))
}

// confirm runs recognition and submission. The request waits for the round
// trip, which keeps running if the client goes away.
func (s *Server) confirm(c *gin.Context) {
	s.respondCapture(c, s.Capture.Confirm(c.Request.Context()))
}

func (s *Server) frame(c *gin.Context) {
	frame, ok := s.Capture.Frame()
	if !ok {
		errorJSON(c, http.StatusNotFound, "no captured frame")
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/jpeg", frame)
}

func (s *Server) preview(c *gin.Context) {
	frame, err := s.Camera.CaptureFrame(c.Request.Context())
	if err != nil {
		if errors.Is(err, camera.ErrNoVideoSource) {
			errorJSON(c, http.StatusConflict, "Video element not available")
			return
		}
		s.Logger.Warn("preview frame failed", slog.Any("error", err))
		errorJSON(c, http.StatusInternalServerError, "Could not read camera frame")
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/jpeg", frame)
}

// respondCapture maps a workflow error to a status code. The body always
// carries the session view so the page can render the settled state.
func (s *Server) respondCapture(c *gin.Context, err error) {
	view := s.Capture.Snapshot()
	if err == nil {
		c.JSON(http.StatusOK, view)
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, capture.ErrBusy), errors.Is(err, capture.ErrInvalidState):
		status = http.StatusConflict
	case errors.Is(err, capture.ErrNotRecognized):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, camera.ErrPermissionDenied):
		status = http.StatusServiceUnavailable
	case errors.Is(err, camera.ErrNoVideoSource):
		status = http.StatusConflict
	case errors.Is(err, backend.ErrRecognitionRequestFailed), errors.Is(err, backend.ErrAttendanceSubmitFailed):
		status = http.StatusBadGateway
	}

	msg := view.Error
	if msg == "" {
		msg = err.Error()
	}
	c.JSON(status, gin.H{"error": msg, "session": view})
}
