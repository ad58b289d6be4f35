// Package roster filters and formats the enrolled identities for display.
package roster

import (
	"fmt"
	"strings"
	"time"

	"facedesk/internal/model"
)

// Status narrows the roster by presence.
type Status string

const (
	StatusAll     Status = "all"
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
)

// ParseStatus maps query input to a Status; empty means all.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case "", StatusAll:
		return StatusAll, nil
	case StatusPresent:
		return StatusPresent, nil
	case StatusAbsent:
		return StatusAbsent, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Query is the roster view's local filter.
type Query struct {
	Search string
	Status Status
}

// Match reports whether id satisfies q.
func (q Query) Match(id model.Identity) bool {
	return q.matchesSearch(id) && q.matchesStatus(id)
}

func (q Query) matchesSearch(id model.Identity) bool {
	term := strings.ToLower(q.Search)
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(id.Name), term) ||
		strings.Contains(strings.ToLower(id.Department), term) ||
		strings.Contains(strings.ToLower(id.Email), term)
}

func (q Query) matchesStatus(id model.Identity) bool {
	switch q.Status {
	case StatusPresent:
		return id.IsPresent
	case StatusAbsent:
		return !id.IsPresent
	}
	return true
}

// Filter returns the identities matching q, in source order. items is not modified.
func Filter(items []model.Identity, q Query) []model.Identity {
	out := make([]model.Identity, 0, len(items))
	for _, id := range items {
		if q.Match(id) {
			out = append(out, id)
		}
	}
	return out
}

// StatusCounts are the numbers shown on the status filter buttons.
type StatusCounts struct {
	All     int `json:"all"`
	Present int `json:"present"`
	Absent  int `json:"absent"`
}

// Counts tallies presence over the whole roster, independent of any filter.
func Counts(items []model.Identity) StatusCounts {
	c := StatusCounts{All: len(items)}
	for _, id := range items {
		if id.IsPresent {
			c.Present++
		} else {
			c.Absent++
		}
	}
	return c
}

// DefaultAvatar is the placeholder image used when an identity has none.
func DefaultAvatar(email string) string {
	return "https://i.pravatar.cc/150?u=" + email
}

// WithAvatars fills missing avatars, returning a new slice.
func WithAvatars(items []model.Identity) []model.Identity {
	out := make([]model.Identity, len(items))
	for i, id := range items {
		if id.Avatar == "" {
			id.Avatar = DefaultAvatar(id.Email)
		}
		out[i] = id
	}
	return out
}

// FormatLastSeen renders a last-seen time relative to now.
func FormatLastSeen(lastSeen *model.Time, now time.Time) string {
	if lastSeen == nil || lastSeen.IsZero() {
		return "Never"
	}
	mins := int(now.Sub(lastSeen.Time) / time.Minute)
	hours := mins / 60
	switch {
	case mins < 1:
		return "Just now"
	case mins < 60:
		return fmt.Sprintf("%dm ago", mins)
	case hours < 24:
		return fmt.Sprintf("%dh ago", hours)
	}
	return lastSeen.In(now.Location()).Format("1/2/2006")
}

// Badge returns the presence label for id. In legacy mode any identity is
// labelled "Present", which is what the existing dashboard shows; otherwise
// the presence flag decides.
func Badge(id *model.Identity, legacy bool) string {
	if legacy {
		if id != nil {
			return "Present"
		}
		return "Absent"
	}
	if id != nil && id.IsPresent {
		return "Present"
	}
	return "Absent"
}

// Entry is one row of the rendered roster.
type Entry struct {
	model.Identity
	Badge        string `json:"badge"`
	LastSeenText string `json:"lastSeenText"`
}

// View is the roster as the page renders it.
type View struct {
	Entries []Entry      `json:"employees"`
	Counts  StatusCounts `json:"counts"`
	Total   int          `json:"total"`
	Shown   int          `json:"shown"`
}

// Render filters items and decorates every match for display.
func Render(items []model.Identity, q Query, now time.Time, legacyBadge bool) View {
	items = WithAvatars(items)
	matched := Filter(items, q)
	v := View{
		Entries: make([]Entry, 0, len(matched)),
		Counts:  Counts(items),
		Total:   len(items),
		Shown:   len(matched),
	}
	for i := range matched {
		v.Entries = append(v.Entries, Entry{
			Identity:     matched[i],
			Badge:        Badge(&matched[i], legacyBadge),
			LastSeenText: FormatLastSeen(matched[i].LastSeen, now),
		})
	}
	return v
}
