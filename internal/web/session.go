package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"facedesk/internal/auth"
	"facedesk/internal/backend"
)

func (s *Server) backendHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	c.JSON(http.StatusOK, gin.H{"backend": s.Backend.Health(ctx)})
}

func (s *Server) session(c *gin.Context) {
	token, _ := s.Backend.SessionToken()
	sess, err := auth.ParseSession(token, s.SessionKey, s.now())
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"active": false, "reason": sessionReason(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"active":     true,
		"user_id":    sess.UserID,
		"email":      sess.Email,
		"expires_at": sess.ExpiresAt,
	})
}

func sessionReason(err error) string {
	switch {
	case errors.Is(err, auth.ErrNoSession):
		return "not signed in"
	case errors.Is(err, auth.ErrSessionExpired):
		return "session expired"
	}
	return "invalid session"
}

func (s *Server) login(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "a valid email is required")
		return
	}
	user, err := s.Backend.Login(c.Request.Context(), req.Email)
	if err != nil {
		s.Logger.Warn("operator login failed", slog.String("email", req.Email), slog.Any("error", err))
		status := http.StatusBadGateway
		if errors.Is(err, backend.ErrLoginFailed) {
			status = http.StatusUnauthorized
		}
		errorJSON(c, status, "Login failed")
		return
	}
	s.Logger.Info("operator signed in", slog.String("email", user.Email))
	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

func (s *Server) logout(c *gin.Context) {
	if err := s.Backend.Logout(c.Request.Context()); err != nil {
		s.Logger.Warn("backend logout failed", slog.Any("error", err))
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
