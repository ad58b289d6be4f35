package standin

import (
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"facedesk/internal/auth"
	"facedesk/internal/backend"
	"facedesk/internal/clock"
	"facedesk/internal/model"
)

// MatchThreshold is the minimum fingerprint similarity counted as a match.
const MatchThreshold = 0.9

const (
	sessionTTL    = 24 * time.Hour
	requiredShots = 3
)

// Handler serves the backend API over a Store.
type Handler struct {
	store  *Store
	key    string
	clock  clock.Clock
	logger *slog.Logger
}

// New creates a handler. key signs session tokens.
func New(store *Store, key string, clk clock.Clock, logger *slog.Logger) *Handler {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{store: store, key: key, clock: clk, logger: logger}
}

// Router mounts the API under /api.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOriginFunc:  func(string) bool { return true },
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		AllowCredentials: true,
	}))

	api := r.Group("/api")
	{
		api.GET("/health", h.health)
		api.GET("/employees", h.listEmployees)
		api.POST("/register_employee", h.registerEmployee)
		api.POST("/login", h.login)
		api.POST("/logout", h.logout)
		api.GET("/attendance", h.listAttendance)

		protected := api.Group("", h.tokenRequired)
		protected.POST("/recognize", h.recognize)
		protected.POST("/attendance", h.markAttendance)
	}
	return r
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "message": "stand-in backend is running"})
}

func (h *Handler) listEmployees(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.ListIdentities())
}

func (h *Handler) listAttendance(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.ListAttendance())
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"success": false, "message": msg})
}

// registerEmployee expects multipart fields name, department, email and
// exactly three "images" files.
func (h *Handler) registerEmployee(c *gin.Context) {
	name := strings.TrimSpace(c.PostForm("name"))
	department := strings.TrimSpace(c.PostForm("department"))
	email := strings.TrimSpace(c.PostForm("email"))
	if name == "" || department == "" || email == "" {
		fail(c, http.StatusBadRequest, "Missing required fields")
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		fail(c, http.StatusBadRequest, "Exactly 3 images are required")
		return
	}
	files := form.File["images"]
	if len(files) != requiredShots {
		fail(c, http.StatusBadRequest, "Exactly 3 images are required")
		return
	}

	refs := make([]Fingerprint, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			fail(c, http.StatusBadRequest, "One or more image files are missing")
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			fail(c, http.StatusBadRequest, "One or more image files are missing")
			return
		}
		if !strings.HasPrefix(mimetype.Detect(data).String(), "image/") {
			fail(c, http.StatusBadRequest, "Invalid file type. Only images are allowed")
			return
		}
		fp, err := FingerprintImage(data)
		if err != nil {
			fail(c, http.StatusInternalServerError, "Face processing failed: "+err.Error())
			return
		}
		refs = append(refs, fp)
	}

	id, err := h.store.CreateIdentity(name, department, email, refs)
	if err != nil {
		fail(c, http.StatusConflict, err.Error())
		return
	}
	h.logger.Info("employee registered", slog.String("id", string(id.ID)), slog.String("email", email))
	c.JSON(http.StatusCreated, gin.H{"success": true, "employee": id, "message": "Employee registered successfully"})
}

func (h *Handler) login(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
	}
	_ = c.ShouldBindJSON(&req)
	user, ok := h.store.FindByEmail(req.Email)
	if !ok {
		fail(c, http.StatusUnauthorized, "User not found")
		return
	}
	token, err := auth.IssueSession(user.ID, user.Email, h.key, sessionTTL, h.clock.Now())
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.SetCookie(backend.SessionCookie, token, int(sessionTTL.Seconds()), "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user":    gin.H{"id": user.ID, "email": user.Email, "name": user.Name},
	})
}

func (h *Handler) logout(c *gin.Context) {
	c.SetCookie(backend.SessionCookie, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Successfully logged out"})
}

func (h *Handler) tokenRequired(c *gin.Context) {
	token, _ := c.Cookie(backend.SessionCookie)
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Authentication token is missing"})
		return
	}
	sess, err := auth.ParseSession(token, h.key, h.clock.Now())
	if err != nil {
		msg := "Invalid token"
		if errors.Is(err, auth.ErrSessionExpired) {
			msg = "Token has expired"
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": msg})
		return
	}
	c.Set("session", sess)
	c.Next()
}

func (h *Handler) recognize(c *gin.Context) {
	var req struct {
		Image string `json:"image"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Image == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No image provided"})
		return
	}
	data, err := base64.StdEncoding.DecodeString(backend.StripDataURI(req.Image))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Image processing failed: " + err.Error()})
		return
	}
	fp, err := FingerprintImage(data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Image processing failed: " + err.Error()})
		return
	}

	id, confidence, ok := h.store.Match(fp, MatchThreshold)
	if !ok {
		h.logger.Debug("no match", slog.Float64("best", confidence))
		c.JSON(http.StatusOK, gin.H{"recognized": false, "message": "No matching employee found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"recognized": true,
		"employee": gin.H{
			"id":         id.ID,
			"name":       id.Name,
			"department": id.Department,
			"email":      id.Email,
		},
		"confidence": confidence,
	})
}

// markAttendance records for employee_id, or for the signed-in user when the
// body names nobody.
func (h *Handler) markAttendance(c *gin.Context) {
	var req struct {
		EmployeeID model.ID `json:"employee_id"`
		Type       string   `json:"type"`
		Confidence float64  `json:"confidence"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Type == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Attendance type required"})
		return
	}
	kind, err := model.ParseEventKind(req.Type)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	who := req.EmployeeID
	if who == "" {
		who = c.MustGet("session").(auth.Session).UserID
	}

	evt, err := h.store.MarkAttendance(who, kind, req.Confidence, h.clock.Now())
	if err != nil {
		if errors.Is(err, ErrUnknownEmployee) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Employee not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Attendance marked successfully", "record": evt})
}
