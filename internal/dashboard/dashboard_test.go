package dashboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facedesk/internal/capture"
	"facedesk/internal/model"
)

var now = time.Date(2026, 10, 19, 15, 0, 0, 0, time.UTC)

func rec(id string, emp model.ID, kind model.EventKind, at time.Time) model.AttendanceEvent {
	return model.AttendanceEvent{ID: model.ID(id), EmployeeID: emp, EmployeeName: "n-" + string(emp), Kind: kind, Timestamp: model.Time{Time: at}, Confidence: 0.9}
}

func people() []model.Identity {
	return []model.Identity{
		{ID: "1", Name: "Ada", IsPresent: true},
		{ID: "2", Name: "Grace"},
		{ID: "3", Name: "Alan"},
		{ID: "4", Name: "Barbara", IsPresent: true},
	}
}

func TestComputeCounts(t *testing.T) {
	s := Compute(people(), nil, now)
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 2, s.Present)
	assert.Equal(t, 2, s.Absent)
	assert.InDelta(t, 50.0, s.AttendanceRate, 1e-9)
	assert.Len(t, s.PresentPeople, 2)
	assert.Empty(t, s.Recent)
}

func TestComputeEmptyRoster(t *testing.T) {
	s := Compute(nil, nil, now)
	assert.Zero(t, s.AttendanceRate)
	assert.Zero(t, s.Total)
}

func TestComputeTodayAndRecent(t *testing.T) {
	var records []model.AttendanceEvent
	for i := 0; i < 7; i++ {
		records = append(records, rec(string(rune('a'+i)), "1", model.CheckIn, now.Add(-time.Duration(i)*time.Hour)))
	}
	records = append(records, rec("old", "2", model.CheckIn, now.AddDate(0, 0, -1)))

	s := Compute(people(), records, now)
	assert.Equal(t, 7, s.TodayCount)
	require.Len(t, s.Recent, RecentLimit)
	assert.Equal(t, model.ID("a"), s.Recent[0].ID)
	assert.Equal(t, model.ID("e"), s.Recent[4].ID)
}

func TestEchoOverlaysMarks(t *testing.T) {
	e := NewEcho(0)
	mark := capture.Marked{
		Identity: model.Identity{ID: "2", Name: "Grace"},
		Kind:     model.CheckIn,
		Event:    rec("local-1", "2", model.CheckIn, now),
		Echo:     true,
	}
	e.Add(mark)

	src := people()
	fetched := []model.AttendanceEvent{rec("r1", "1", model.CheckIn, now.Add(-time.Hour))}
	ids, records := e.Apply(src, fetched)

	require.Len(t, records, 2)
	assert.Equal(t, model.ID("local-1"), records[0].ID)
	assert.True(t, ids[1].IsPresent)
	require.NotNil(t, ids[1].LastSeen)
	assert.True(t, ids[1].LastSeen.Equal(now))

	assert.False(t, src[1].IsPresent, "input untouched")
	assert.Len(t, fetched, 1)
	assert.Equal(t, 1, e.Len())
}

func TestEchoLatestMarkWins(t *testing.T) {
	e := NewEcho(10)
	e.Add(capture.Marked{Identity: model.Identity{ID: "1"}, Kind: model.CheckIn, Event: rec("x1", "1", model.CheckIn, now.Add(-time.Hour))})
	e.Add(capture.Marked{Identity: model.Identity{ID: "1"}, Kind: model.CheckOut, Event: rec("x2", "1", model.CheckOut, now)})

	ids, records := e.Apply(people(), nil)
	assert.False(t, ids[0].IsPresent)
	assert.Equal(t, model.ID("x2"), records[0].ID)
}

func TestEchoForgetsReportedMarks(t *testing.T) {
	e := NewEcho(10)
	e.Add(capture.Marked{Identity: model.Identity{ID: "1"}, Kind: model.CheckIn, Event: rec("srv-1", "1", model.CheckIn, now)})
	e.Add(capture.Marked{Identity: model.Identity{ID: "2"}, Kind: model.CheckIn, Event: rec("local", "2", model.CheckIn, now), Echo: true})

	fetched := []model.AttendanceEvent{
		rec("srv-1", "1", model.CheckIn, now),
		rec("srv-2", "2", model.CheckIn, now.Add(30*time.Second)),
	}
	_, records := e.Apply(people(), fetched)
	assert.Len(t, records, 2)
	assert.Zero(t, e.Len())
}

func TestEchoLimit(t *testing.T) {
	e := NewEcho(2)
	for i := 0; i < 5; i++ {
		e.Add(capture.Marked{Identity: model.Identity{ID: "1"}, Kind: model.CheckIn, Event: rec(string(rune('a'+i)), "1", model.CheckIn, now)})
	}
	assert.Equal(t, 2, e.Len())
	_, records := e.Apply(nil, nil)
	assert.Equal(t, model.ID("e"), records[0].ID)
}
