package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// EventKind is the direction of an attendance event.
type EventKind string

const (
	CheckIn  EventKind = "check-in"
	CheckOut EventKind = "check-out"
)

// Valid reports whether k is one of the known kinds.
func (k EventKind) Valid() bool {
	return k == CheckIn || k == CheckOut
}

// ParseEventKind accepts "check-in"/"check-out" (and the underscore spellings).
func ParseEventKind(s string) (EventKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "check-in", "check_in", "checkin":
		return CheckIn, nil
	case "check-out", "check_out", "checkout":
		return CheckOut, nil
	}
	return "", fmt.Errorf("unknown event kind %q", s)
}

// ID is an identifier the backend may send as either a JSON string or number.
type ID string

// UnmarshalJSON accepts both `"42"` and `42`.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// Time is a timestamp that tolerates the formats the backend emits:
// RFC 3339, RFC 3339 without a zone (treated as UTC), and RFC 1123 (HTTP date).
type Time struct {
	time.Time
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	time.RFC1123,
	time.RFC1123Z,
}

// ParseTime parses s using the accepted layouts.
func ParseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

func (t *Time) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := ParseTime(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

// Identity is an enrolled person (employee or student).
type Identity struct {
	ID         ID     `json:"id"`
	Name       string `json:"name"`
	Department string `json:"department"`
	Email      string `json:"email"`
	Avatar     string `json:"avatar,omitempty"`
	IsPresent  bool   `json:"isPresent"`
	LastSeen   *Time  `json:"lastSeen,omitempty"`
}

// AttendanceEvent is an immutable check-in/check-out record. EmployeeName is
// denormalised by the backend and is carried through unchanged.
type AttendanceEvent struct {
	ID           ID        `json:"id"`
	EmployeeID   ID        `json:"employee_id"`
	EmployeeName string    `json:"employee_name"`
	Kind         EventKind `json:"type"`
	Timestamp    Time      `json:"timestamp"`
	Confidence   float64   `json:"confidence"`
}

// RecognitionResult is the backend's answer to a recognition request.
type RecognitionResult struct {
	Recognized bool      `json:"recognized"`
	Confidence *float64  `json:"confidence,omitempty"`
	Employee   *Identity `json:"employee,omitempty"`
	Message    string    `json:"message,omitempty"`
}

// Matched reports whether the result names an identity.
func (r RecognitionResult) Matched() bool {
	return r.Recognized && r.Employee != nil
}

// ConfidenceValue returns the confidence, or 0 when absent.
func (r RecognitionResult) ConfidenceValue() float64 {
	if r.Confidence == nil {
		return 0
	}
	return *r.Confidence
}

// RegistrationResult is the backend's answer to an enrolment upload.
type RegistrationResult struct {
	Success  bool      `json:"success"`
	Employee *Identity `json:"employee,omitempty"`
	Message  string    `json:"message,omitempty"`
}
