// Package journal keeps an audit trail of every settled capture attempt.
package journal

import (
	"time"

	"facedesk/internal/capture"
)

// Entry is one journaled capture attempt.
type Entry struct {
	ID           string    `json:"id"`
	At           time.Time `json:"at"`
	Outcome      string    `json:"outcome"`
	IdentityID   string    `json:"identity_id,omitempty"`
	IdentityName string    `json:"identity_name,omitempty"`
	Kind         string    `json:"kind"`
	Confidence   float64   `json:"confidence"`
	Message      string    `json:"message,omitempty"`
	Frame        []byte    `json:"frame,omitempty"`
	FrameURL     string    `json:"frame_url,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
}

// FromAttempt converts a settled attempt. The frame is carried only when
// keepFrame is set, since it is only needed for archival.
func FromAttempt(a capture.Attempt, keepFrame bool) Entry {
	e := Entry{
		ID:           a.ID,
		At:           a.At.UTC(),
		Outcome:      string(a.Outcome),
		IdentityID:   string(a.IdentityID),
		IdentityName: a.IdentityName,
		Kind:         string(a.Kind),
		Confidence:   a.Confidence,
		Message:      a.Message,
	}
	if keepFrame {
		e.Frame = a.Frame
	}
	return e
}

// Filter narrows a journal listing.
type Filter struct {
	Outcome    string
	IdentityID string
	Limit      int
	Offset     int
}

func (f Filter) normalized() Filter {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

func (f Filter) match(e Entry) bool {
	if f.Outcome != "" && e.Outcome != f.Outcome {
		return false
	}
	if f.IdentityID != "" && e.IdentityID != f.IdentityID {
		return false
	}
	return true
}
