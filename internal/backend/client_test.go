package backend

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facedesk/internal/model"
	"facedesk/internal/testutil"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/api", 0, testutil.NopLogger())
}

func TestStripDataURI(t *testing.T) {
	assert.Equal(t, "QUJD", StripDataURI("data:image/jpeg;base64,QUJD"))
	assert.Equal(t, "QUJD", StripDataURI("QUJD"))
	assert.Equal(t, "data:broken", StripDataURI("data:broken"))
}

func TestRecognizeSendsBase64WithoutPrefix(t *testing.T) {
	frame := []byte{0xff, 0xd8, 0xff, 0xe0}
	var got map[string]string

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/recognize", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"recognized":true,"confidence":0.91,"employee":{"id":7,"name":"Ada","department":"R&D","email":"ada@example.com"}}`)
	}))

	res, err := c.Recognize(context.Background(), frame)
	require.NoError(t, err)

	assert.Equal(t, base64.StdEncoding.EncodeToString(frame), got["image"])
	assert.True(t, res.Matched())
	assert.InDelta(t, 0.91, res.ConfidenceValue(), 1e-9)
	assert.Equal(t, model.ID("7"), res.Employee.ID)
}

func TestRecognizeEncodedStripsPrefix(t *testing.T) {
	var got map[string]string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"recognized":false,"message":"No matching employee found"}`)
	}))

	res, err := c.RecognizeEncoded(context.Background(), "data:image/jpeg;base64,QUJD")
	require.NoError(t, err)
	assert.Equal(t, "QUJD", got["image"])
	assert.False(t, res.Matched())
	assert.Equal(t, "No matching employee found", res.Message)
}

func TestRecognizeNonSuccessStatus(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":"Face recognition failed: no face"}`)
	}))

	_, err := c.Recognize(context.Background(), []byte("x"))
	require.ErrorIs(t, err, ErrRecognitionRequestFailed)
	assert.Contains(t, err.Error(), "no face")
}

func TestSubmitAttendanceEnvelope(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/attendance", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"success":true,"message":"Attendance marked successfully","record":{
			"id":"a1","employee_id":"7","employee_name":"Ada","type":"check-in",
			"timestamp":"Mon, 19 Oct 2026 09:30:00 GMT","confidence":0.91}}`)
	}))

	rec, err := c.SubmitAttendance(context.Background(), "7", model.CheckIn, 0.91)
	require.NoError(t, err)

	assert.Equal(t, "7", got["employee_id"])
	assert.Equal(t, "check-in", got["type"])
	assert.InDelta(t, 0.91, got["confidence"], 1e-9)

	require.NotNil(t, rec)
	assert.Equal(t, model.ID("a1"), rec.ID)
	assert.Equal(t, "Ada", rec.EmployeeName)
	assert.Equal(t, 9, rec.Timestamp.Hour())
}

func TestSubmitAttendanceBareRecordAndEmptyAck(t *testing.T) {
	body := `{"id":"a2","employee_id":"7","employee_name":"Ada","type":"check-out","timestamp":"2026-10-19T17:00:00Z","confidence":0.8}`
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, body)
	}))

	rec, err := c.SubmitAttendance(context.Background(), "7", model.CheckOut, 0.8)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, model.CheckOut, rec.Kind)

	body = `{"success":true}`
	rec, err = c.SubmitAttendance(context.Background(), "7", model.CheckOut, 0.8)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestSubmitAttendanceFailure(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"success":false,"message":"Authentication token is missing"}`)
	}))

	_, err := c.SubmitAttendance(context.Background(), "7", model.CheckIn, 0.9)
	require.ErrorIs(t, err, ErrAttendanceSubmitFailed)
	assert.Contains(t, err.Error(), "Authentication token is missing")
}

func TestListEmployeesAndAttendance(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/employees", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"id":1,"name":"Ada","email":"ada@example.com","department":"R&D","isPresent":true,"lastSeen":"2026-10-19T08:00:00Z"},
			{"id":"2","name":"Bo","email":"bo@example.com","department":"Ops"}]`)
	})
	mux.HandleFunc("/api/attendance", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"id":"r1","employee_id":"1","employee_name":"Ada","type":"check-in","timestamp":"2026-10-19T08:00:00","confidence":0.97}]`)
	})
	c := newTestClient(t, mux)

	people, err := c.ListEmployees(context.Background())
	require.NoError(t, err)
	require.Len(t, people, 2)
	assert.Equal(t, model.ID("1"), people[0].ID)
	assert.True(t, people[0].IsPresent)
	require.NotNil(t, people[0].LastSeen)
	assert.Nil(t, people[1].LastSeen)

	records, err := c.ListAttendance(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Ada", records[0].EmployeeName)
}

func TestListEmployeesFailure(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := c.ListEmployees(context.Background())
	assert.ErrorIs(t, err, ErrFetchFailed)
	_, err = c.ListAttendance(context.Background())
	assert.ErrorIs(t, err, ErrFetchFailed)
}

func TestHealth(t *testing.T) {
	healthy := true
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"status":"healthy"}`)
	}))

	assert.True(t, c.Health(context.Background()))
	healthy = false
	assert.False(t, c.Health(context.Background()))
}

func TestLoginKeepsSessionCookie(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "tok-123", HttpOnly: true})
		_, _ = io.WriteString(w, `{"success":true,"user":{"id":3,"email":"op@example.com","name":"Operator"}}`)
	})
	mux.HandleFunc("/api/attendance", func(w http.ResponseWriter, r *http.Request) {
		ck, err := r.Cookie(SessionCookie)
		if err != nil || ck.Value != "tok-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `{"success":true}`)
	})
	mux.HandleFunc("/api/logout", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "", MaxAge: -1})
		_, _ = io.WriteString(w, `{"success":true}`)
	})
	c := newTestClient(t, mux)

	_, ok := c.SessionToken()
	assert.False(t, ok)

	user, err := c.Login(context.Background(), "op@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Operator", user.Name)

	token, ok := c.SessionToken()
	require.True(t, ok)
	assert.Equal(t, "tok-123", token)

	_, err = c.SubmitAttendance(context.Background(), "3", model.CheckIn, 0.9)
	require.NoError(t, err)

	require.NoError(t, c.Logout(context.Background()))
	_, ok = c.SessionToken()
	assert.False(t, ok)
}

func TestLoginRejected(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"success":false,"message":"User not found"}`)
	}))

	_, err := c.Login(context.Background(), "nobody@example.com")
	require.ErrorIs(t, err, ErrLoginFailed)
	assert.Contains(t, err.Error(), "User not found")

	_, err = c.Login(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrLoginFailed)
}
