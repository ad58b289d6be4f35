// Package web serves the kiosk page and the JSON API it drives.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"facedesk/internal/auth"
	"facedesk/internal/backend"
	"facedesk/internal/capture"
	"facedesk/internal/clock"
	"facedesk/internal/dashboard"
	"facedesk/internal/httpmiddleware"
	"facedesk/internal/journal"
	"facedesk/internal/model"
	"facedesk/internal/registration"
)

// Backend is the part of the backend client the handlers use.
type Backend interface {
	ListEmployees(ctx context.Context) ([]model.Identity, error)
	ListAttendance(ctx context.Context) ([]model.AttendanceEvent, error)
	Health(ctx context.Context) bool
	Login(ctx context.Context, email string) (*backend.LoginResult, error)
	Logout(ctx context.Context) error
	SessionToken() (string, bool)
}

// CaptureSession is the capture workflow driven by the camera tab.
type CaptureSession interface {
	Mount(ctx context.Context) error
	Unmount()
	StartCamera(ctx context.Context) error
	Capture(ctx context.Context) error
	Confirm(ctx context.Context) error
	Retake(ctx context.Context) error
	SetKind(kind model.EventKind) error
	Snapshot() capture.View
	Frame() ([]byte, bool)
}

// Previewer grabs a live frame without ending the stream.
type Previewer interface {
	CaptureFrame(ctx context.Context) ([]byte, error)
}

// Registrar is the registration form.
type Registrar interface {
	SetFields(f registration.Fields)
	AddImage(data []byte) error
	RemoveImage(i int) error
	Image(i int) (registration.StagedImage, bool)
	Reset()
	Register(ctx context.Context) (*model.RegistrationResult, error)
	Snapshot() registration.View
}

// JournalReader lists journaled capture attempts.
type JournalReader interface {
	List(ctx context.Context, f journal.Filter) ([]journal.Entry, error)
}

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) bool

// Deps are the collaborators the router needs. Journal and Checks are optional.
type Deps struct {
	Backend      Backend
	Capture      CaptureSession
	Camera       Previewer
	Registration Registrar
	Echo         *dashboard.Echo
	Journal      JournalReader
	Checks       map[string]HealthCheck
	Clock        clock.Clock
	Logger       *slog.Logger

	SessionKey      string
	LegacyBadge     bool
	RateLimitPerMin int
	CORSOrigins     []string
}

// Server holds the handler dependencies.
type Server struct {
	Deps
}

// NewRouter builds the kiosk's gin engine.
func NewRouter(d Deps) *gin.Engine {
	if d.Clock == nil {
		d.Clock = clock.New()
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Echo == nil {
		d.Echo = dashboard.NewEcho(0)
	}
	s := &Server{Deps: d}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics", "/api/capture", "/api/capture/preview"},
	}))
	r.Use(cors.New(corsConfig(d.CORSOrigins)))
	r.Use(httpmiddleware.SecurityHeaders())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", s.healthz)
	mountStatic(r)

	api := r.Group("/api")
	api.Use(httpmiddleware.NewSimpleTokenBucket(d.RateLimitPerMin, d.RateLimitPerMin, d.Clock,
		"/api/capture", "/api/capture/preview", "/api/health").GinMiddleware())
	{
		api.GET("/health", s.backendHealth)

		api.GET("/session", s.session)
		api.POST("/session/login", s.login)
		api.POST("/session/logout", s.logout)

		api.GET("/capture", s.captureView)
		api.POST("/capture/mount", s.mount)
		api.POST("/capture/unmount", s.unmount)
		api.POST("/capture/camera", s.startCamera)
		api.POST("/capture/snapshot", s.snapshot)
		api.POST("/capture/retake", s.retake)
		api.PUT("/capture/kind", s.setKind)
		api.POST("/capture/confirm", auth.RequireSession(d.Backend, d.SessionKey, d.Clock), s.confirm)
		api.GET("/capture/frame", s.frame)
		api.GET("/capture/preview", s.preview)

		api.GET("/employees", s.roster)
		api.GET("/records", s.records)
		api.GET("/records/export", s.exportRecords)
		api.GET("/dashboard", s.dashboard)
		api.GET("/journal", s.journal)

		api.GET("/registration", s.registrationView)
		api.PUT("/registration/fields", s.registrationFields)
		api.POST("/registration/images", s.addRegistrationImage)
		api.GET("/registration/images/:index", s.registrationImage)
		api.DELETE("/registration/images/:index", s.removeRegistrationImage)
		api.POST("/registration/submit", s.submitRegistration)
		api.DELETE("/registration", s.resetRegistration)
	}
	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) > 0 {
		cfg.AllowOrigins = origins
	} else {
		cfg.AllowOriginFunc = func(string) bool { return true }
	}
	return cfg
}

func (s *Server) healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := gin.H{}
	status := http.StatusOK
	for name, check := range s.Checks {
		ok := check(ctx)
		checks[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
		}
	}
	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	c.JSON(status, gin.H{"status": state, "checks": checks})
}

func (s *Server) now() time.Time {
	return s.Clock.Now()
}

func errorJSON(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}
