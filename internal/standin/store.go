// Package standin is a small in-memory attendance backend that speaks the
// same REST contract as the production recognition service. deskctl serves
// it for local kiosk development; matching uses an image fingerprint instead
// of face embeddings.
package standin

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"facedesk/internal/model"
)

var (
	ErrDuplicateEmail  = errors.New("employee already exists")
	ErrUnknownEmployee = errors.New("employee not found")
)

type person struct {
	identity   model.Identity
	references []Fingerprint
	seq        int
}

// Store keeps identities and attendance events in memory.
type Store struct {
	mu     sync.RWMutex
	people map[model.ID]*person
	events []model.AttendanceEvent
	seq    int
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{people: make(map[model.ID]*person)}
}

// CreateIdentity adds a person with their reference fingerprints. Emails are
// unique, case-insensitively.
func (s *Store) CreateIdentity(name, department, email string, refs []Fingerprint) (model.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.people {
		if strings.EqualFold(p.identity.Email, email) {
			return model.Identity{}, fmt.Errorf("%w: %s", ErrDuplicateEmail, email)
		}
	}
	id := model.Identity{
		ID:         model.ID(uuid.New().String()),
		Name:       name,
		Department: department,
		Email:      email,
	}
	s.seq++
	s.people[id.ID] = &person{identity: id, references: refs, seq: s.seq}
	return id, nil
}

// ListIdentities returns everyone in registration order.
func (s *Store) ListIdentities() []model.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ps := make([]*person, 0, len(s.people))
	for _, p := range s.people {
		ps = append(ps, p)
	}
	sort.Slice(ps, func(i, j int) bool { return ps[i].seq < ps[j].seq })
	out := make([]model.Identity, len(ps))
	for i, p := range ps {
		out[i] = p.identity
	}
	return out
}

// FindByEmail looks a person up for login.
func (s *Store) FindByEmail(email string) (model.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.people {
		if strings.EqualFold(p.identity.Email, email) {
			return p.identity, true
		}
	}
	return model.Identity{}, false
}

// Match returns the person whose closest reference is most similar to fp.
// ok is false when nobody reaches threshold.
func (s *Store) Match(fp Fingerprint, threshold float64) (id model.Identity, confidence float64, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.people {
		for _, ref := range p.references {
			if sim := fp.Similarity(ref); sim > confidence {
				confidence = sim
				id = p.identity
			}
		}
	}
	if confidence < threshold {
		return model.Identity{}, confidence, false
	}
	return id, confidence, true
}

// MarkAttendance stores an event and updates the person's presence.
func (s *Store) MarkAttendance(id model.ID, kind model.EventKind, confidence float64, now time.Time) (model.AttendanceEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.people[id]
	if !ok {
		return model.AttendanceEvent{}, fmt.Errorf("%w: %s", ErrUnknownEmployee, id)
	}
	evt := model.AttendanceEvent{
		ID:           model.ID(uuid.New().String()),
		EmployeeID:   id,
		EmployeeName: p.identity.Name,
		Kind:         kind,
		Timestamp:    model.Time{Time: now.UTC()},
		Confidence:   confidence,
	}
	s.events = append(s.events, evt)

	p.identity.IsPresent = kind == model.CheckIn
	seen := model.Time{Time: now.UTC()}
	p.identity.LastSeen = &seen
	return evt, nil
}

// ListAttendance returns events newest first.
func (s *Store) ListAttendance() []model.AttendanceEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.AttendanceEvent, len(s.events))
	for i, e := range s.events {
		out[len(s.events)-1-i] = e
	}
	return out
}
