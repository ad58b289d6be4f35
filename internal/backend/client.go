// Package backend talks to the recognition backend's REST API.
package backend

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"facedesk/internal/metrics"
	"facedesk/internal/model"
)

var (
	ErrRecognitionRequestFailed = errors.New("face recognition failed")
	ErrAttendanceSubmitFailed   = errors.New("failed to record attendance")
	ErrRegistrationFailed       = errors.New("registration failed")
	ErrFetchFailed              = errors.New("fetch failed")
	ErrLoginFailed              = errors.New("login failed")
)

// SessionCookie is the cookie the backend issues on login and requires on
// /recognize and /attendance.
const SessionCookie = "auth_token"

// Client calls the recognition backend.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	logger  *slog.Logger
}

// New creates a client with a cookie jar so the backend session survives
// across calls.
func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	jar, _ := cookiejar.New(nil)
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: timeout, // recognition can take a while
			Jar:     jar,
		},
		logger: logger,
	}
}

// StripDataURI drops a leading "data:<mime>;base64," prefix, if any.
func StripDataURI(payload string) string {
	if !strings.HasPrefix(payload, "data:") {
		return payload
	}
	if i := strings.IndexByte(payload, ','); i >= 0 {
		return payload[i+1:]
	}
	return payload
}

// Recognize sends a JPEG frame for recognition.
func (c *Client) Recognize(ctx context.Context, image []byte) (*model.RecognitionResult, error) {
	return c.RecognizeEncoded(ctx, base64.StdEncoding.EncodeToString(image))
}

// RecognizeEncoded sends an already base64-encoded image, with or without a
// data URI prefix. It never retries.
func (c *Client) RecognizeEncoded(ctx context.Context, encoded string) (*model.RecognitionResult, error) {
	body, _ := json.Marshal(map[string]string{"image": StripDataURI(encoded)})
	resp, err := c.send(ctx, "recognize", http.MethodPost, "/recognize", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecognitionRequestFailed, err)
	}

	var out model.RecognitionResult
	if err := json.Unmarshal(resp, &out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrRecognitionRequestFailed, err)
	}
	return &out, nil
}

// SubmitAttendance records an attendance event for a recognised identity.
// The returned event is nil when the backend acknowledged without echoing
// the stored record.
func (c *Client) SubmitAttendance(ctx context.Context, identityID model.ID, kind model.EventKind, confidence float64) (*model.AttendanceEvent, error) {
	body, _ := json.Marshal(map[string]any{
		"employee_id": identityID,
		"type":        kind,
		"confidence":  confidence,
	})
	resp, err := c.send(ctx, "attendance_submit", http.MethodPost, "/attendance", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAttendanceSubmitFailed, err)
	}

	var envelope struct {
		Success *bool                  `json:"success"`
		Message string                 `json:"message"`
		Record  *model.AttendanceEvent `json:"record"`
	}
	if err := json.Unmarshal(resp, &envelope); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrAttendanceSubmitFailed, err)
	}
	if envelope.Success != nil && !*envelope.Success {
		return nil, fmt.Errorf("%w: %s", ErrAttendanceSubmitFailed, envelope.Message)
	}
	if envelope.Record != nil {
		return envelope.Record, nil
	}

	var bare model.AttendanceEvent
	if err := json.Unmarshal(resp, &bare); err == nil && bare.ID != "" {
		return &bare, nil
	}
	return nil, nil
}

// ListEmployees fetches the roster.
func (c *Client) ListEmployees(ctx context.Context) ([]model.Identity, error) {
	resp, err := c.send(ctx, "employees", http.MethodGet, "/employees", "", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: employees: %v", ErrFetchFailed, err)
	}
	out := []model.Identity{}
	if err := json.Unmarshal(resp, &out); err != nil {
		return nil, fmt.Errorf("%w: decode employees: %v", ErrFetchFailed, err)
	}
	return out, nil
}

// ListAttendance fetches attendance records, newest first.
func (c *Client) ListAttendance(ctx context.Context) ([]model.AttendanceEvent, error) {
	resp, err := c.send(ctx, "attendance_list", http.MethodGet, "/attendance", "", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: attendance: %v", ErrFetchFailed, err)
	}
	out := []model.AttendanceEvent{}
	if err := json.Unmarshal(resp, &out); err != nil {
		return nil, fmt.Errorf("%w: decode attendance: %v", ErrFetchFailed, err)
	}
	return out, nil
}

// Health checks if the backend is reachable.
func (c *Client) Health(ctx context.Context) bool {
	_, err := c.send(ctx, "health", http.MethodGet, "/health", "", nil)
	if err != nil {
		c.logger.Debug("backend health check failed", slog.Any("error", err))
		return false
	}
	return true
}

// LoginResult is the user the backend session belongs to.
type LoginResult struct {
	ID    model.ID `json:"id"`
	Email string   `json:"email"`
	Name  string   `json:"name"`
}

// Login opens a backend session for the given operator email. The session
// cookie is kept in the client's jar.
func (c *Client) Login(ctx context.Context, email string) (*LoginResult, error) {
	if strings.TrimSpace(email) == "" {
		return nil, fmt.Errorf("%w: email required", ErrLoginFailed)
	}
	body, _ := json.Marshal(map[string]string{"email": email})
	resp, err := c.send(ctx, "login", http.MethodPost, "/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}

	var out struct {
		Success bool        `json:"success"`
		User    LoginResult `json:"user"`
		Message string      `json:"message"`
	}
	if err := json.Unmarshal(resp, &out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrLoginFailed, err)
	}
	if !out.Success {
		return nil, fmt.Errorf("%w: %s", ErrLoginFailed, out.Message)
	}
	return &out.User, nil
}

// Logout ends the backend session.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.send(ctx, "logout", http.MethodPost, "/logout", "application/json", nil)
	c.clearSession()
	return err
}

// SessionToken returns the backend session token, if one is held.
func (c *Client) SessionToken() (string, bool) {
	u, err := url.Parse(c.BaseURL + "/")
	if err != nil || c.HTTP.Jar == nil {
		return "", false
	}
	for _, ck := range c.HTTP.Jar.Cookies(u) {
		if ck.Name == SessionCookie && ck.Value != "" {
			return ck.Value, true
		}
	}
	return "", false
}

// SetSessionToken installs a session token obtained elsewhere (e.g. from the CLI).
func (c *Client) SetSessionToken(token string) {
	u, err := url.Parse(c.BaseURL + "/")
	if err != nil || c.HTTP.Jar == nil {
		return
	}
	c.HTTP.Jar.SetCookies(u, []*http.Cookie{{Name: SessionCookie, Value: token, Path: "/"}})
}

func (c *Client) clearSession() {
	u, err := url.Parse(c.BaseURL + "/")
	if err != nil || c.HTTP.Jar == nil {
		return
	}
	c.HTTP.Jar.SetCookies(u, []*http.Cookie{{Name: SessionCookie, Value: "", Path: "/", MaxAge: -1}})
}

// send performs one request and returns the body of a 2xx response. Any
// other status is an error carrying the server's message when it sent one.
func (c *Client) send(ctx context.Context, endpoint, method, path, contentType string, body io.Reader) ([]byte, error) {
	start := time.Now()
	outcome := "error"
	defer func() {
		metrics.BackendRequests.WithLabelValues(endpoint, outcome).Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		outcome = "status_" + fmt.Sprint(resp.StatusCode)
		c.logger.Warn("backend returned error",
			slog.String("endpoint", endpoint),
			slog.Int("status", resp.StatusCode),
		)
		return nil, fmt.Errorf("backend error %s: %s", resp.Status, serverMessage(respBody))
	}
	outcome = "ok"
	return respBody, nil
}

// serverMessage extracts "message" or "error" from a JSON error body,
// falling back to the raw body.
func serverMessage(body []byte) string {
	var m struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &m); err == nil {
		if m.Message != "" {
			return m.Message
		}
		if m.Error != "" {
			return m.Error
		}
	}
	return strings.TrimSpace(string(body))
}
