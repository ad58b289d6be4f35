// Package dashboard computes the kiosk's summary statistics and keeps the
// marks made at this kiosk visible before the backend reports them.
package dashboard

import (
	"sync"
	"time"

	"facedesk/internal/capture"
	"facedesk/internal/model"
)

// RecentLimit is how many of today's records the dashboard lists.
const RecentLimit = 5

// Stats is the dashboard summary.
type Stats struct {
	Total          int                     `json:"total"`
	Present        int                     `json:"present"`
	Absent         int                     `json:"absent"`
	AttendanceRate float64                 `json:"attendance_rate"`
	TodayCount     int                     `json:"today_count"`
	Recent         []model.AttendanceEvent `json:"recent"`
	PresentPeople  []model.Identity        `json:"present_people"`
	AbsentPeople   []model.Identity        `json:"absent_people"`
}

// Compute summarises identities and records as of now. records are expected
// newest first, as the backend returns them.
func Compute(identities []model.Identity, records []model.AttendanceEvent, now time.Time) Stats {
	s := Stats{
		Total:         len(identities),
		Recent:        []model.AttendanceEvent{},
		PresentPeople: []model.Identity{},
		AbsentPeople:  []model.Identity{},
	}
	for _, id := range identities {
		if id.IsPresent {
			s.PresentPeople = append(s.PresentPeople, id)
		} else {
			s.AbsentPeople = append(s.AbsentPeople, id)
		}
	}
	s.Present = len(s.PresentPeople)
	s.Absent = len(s.AbsentPeople)
	if s.Total > 0 {
		s.AttendanceRate = float64(s.Present) / float64(s.Total) * 100
	}

	for _, r := range records {
		if !sameDay(r.Timestamp.Time, now) {
			continue
		}
		s.TodayCount++
		if len(s.Recent) < RecentLimit {
			s.Recent = append(s.Recent, r)
		}
	}
	return s
}

func sameDay(t, now time.Time) bool {
	y1, m1, d1 := t.In(now.Location()).Date()
	y2, m2, d2 := now.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// matchWindow is how far apart a locally synthesised mark and the backend's
// record of it may be and still count as the same event.
const matchWindow = 2 * time.Minute

// Echo remembers marks made at this kiosk and overlays them on fetched data
// until the backend reports them itself.
type Echo struct {
	mu    sync.Mutex
	marks []capture.Marked
	limit int
}

// NewEcho keeps at most limit marks, newest first.
func NewEcho(limit int) *Echo {
	if limit <= 0 {
		limit = 200
	}
	return &Echo{limit: limit}
}

// Add records a mark. It is the capture controller's OnMarked callback.
func (e *Echo) Add(m capture.Marked) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.marks = append([]capture.Marked{m}, e.marks...)
	if len(e.marks) > e.limit {
		e.marks = e.marks[:e.limit]
	}
}

// Len returns the number of pending marks.
func (e *Echo) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.marks)
}

// Apply merges pending marks into freshly fetched data. Marks the backend
// already reports are forgotten. Neither input slice is modified.
func (e *Echo) Apply(identities []model.Identity, records []model.AttendanceEvent) ([]model.Identity, []model.AttendanceEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pending := e.marks[:0:0]
	for _, m := range e.marks {
		if !reported(m, records) {
			pending = append(pending, m)
		}
	}
	e.marks = pending

	outRecords := make([]model.AttendanceEvent, 0, len(pending)+len(records))
	for _, m := range pending {
		outRecords = append(outRecords, m.Event)
	}
	outRecords = append(outRecords, records...)

	outIDs := make([]model.Identity, len(identities))
	copy(outIDs, identities)
	// pending is newest first, so walk it backwards to let the latest mark win.
	for i := len(pending) - 1; i >= 0; i-- {
		m := pending[i]
		for j := range outIDs {
			if outIDs[j].ID != m.Identity.ID {
				continue
			}
			seen := m.Event.Timestamp
			outIDs[j].IsPresent = m.Kind == model.CheckIn
			outIDs[j].LastSeen = &seen
		}
	}
	return outIDs, outRecords
}

func reported(m capture.Marked, records []model.AttendanceEvent) bool {
	for _, r := range records {
		if r.ID == m.Event.ID {
			return true
		}
		if m.Echo && r.EmployeeID == m.Identity.ID && r.Kind == m.Kind {
			d := r.Timestamp.Sub(m.Event.Timestamp.Time)
			if d < 0 {
				d = -d
			}
			if d <= matchWindow {
				return true
			}
		}
	}
	return false
}
