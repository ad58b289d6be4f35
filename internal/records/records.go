// Package records filters attendance records and exports them as CSV.
package records

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"facedesk/internal/model"
)

// Range is a date bucket relative to now.
type Range string

const (
	RangeAll   Range = "all"
	RangeToday Range = "today"
	RangeWeek  Range = "week"
	RangeMonth Range = "month"
)

// ParseRange maps query input to a Range; empty means all.
func ParseRange(s string) (Range, error) {
	switch r := Range(strings.ToLower(strings.TrimSpace(s))); r {
	case "":
		return RangeAll, nil
	case RangeAll, RangeToday, RangeWeek, RangeMonth:
		return r, nil
	}
	return "", fmt.Errorf("unknown date range %q", s)
}

// Bounds returns the inclusive window for r. ok is false for RangeAll.
// Midnight is taken in now's location.
func Bounds(r Range, now time.Time) (start, end time.Time, ok bool) {
	y, m, d := now.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	const day = 24 * time.Hour
	switch r {
	case RangeToday:
		return midnight, midnight.Add(day), true
	case RangeWeek:
		return midnight.Add(-7 * day), now, true
	case RangeMonth:
		return midnight.Add(-30 * day), now, true
	}
	return time.Time{}, time.Time{}, false
}

// Query is the records view's local filter. An empty Kind matches both kinds.
type Query struct {
	Search string
	Kind   model.EventKind
	Range  Range
}

// Filter returns the records matching q as of now, in source order.
func Filter(items []model.AttendanceEvent, q Query, now time.Time) []model.AttendanceEvent {
	term := strings.ToLower(q.Search)
	start, end, bounded := Bounds(q.Range, now)

	out := make([]model.AttendanceEvent, 0, len(items))
	for _, r := range items {
		if term != "" && !strings.Contains(strings.ToLower(r.EmployeeName), term) {
			continue
		}
		if q.Kind != "" && r.Kind != q.Kind {
			continue
		}
		if bounded && (r.Timestamp.Before(start) || r.Timestamp.After(end)) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Header is the first row of every export.
var Header = []string{"Employee Name", "Type", "Date", "Time", "Confidence"}

// Row renders one record in loc.
func Row(r model.AttendanceEvent, loc *time.Location) []string {
	ts := r.Timestamp.In(loc)
	return []string{
		r.EmployeeName,
		string(r.Kind),
		ts.Format("1/2/2006"),
		ts.Format("3:04:05 PM"),
		FormatConfidence(r.Confidence),
	}
}

// FormatConfidence renders a 0..1 confidence as a percentage with one decimal.
func FormatConfidence(c float64) string {
	return fmt.Sprintf("%.1f%%", c*100)
}

// WriteCSV writes the header and one row per record, in order.
func WriteCSV(w io.Writer, items []model.AttendanceEvent, loc *time.Location) error {
	if loc == nil {
		loc = time.Local
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range items {
		if err := cw.Write(Row(r, loc)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportFilename names an export produced at now.
func ExportFilename(now time.Time) string {
	return "attendance-records-" + now.UTC().Format("2006-01-02") + ".csv"
}

// View is the filtered record list with the "showing N of M" counts.
type View struct {
	Records []model.AttendanceEvent `json:"records"`
	Total   int                     `json:"total"`
	Shown   int                     `json:"shown"`
}

// Render filters items for display.
func Render(items []model.AttendanceEvent, q Query, now time.Time) View {
	matched := Filter(items, q, now)
	return View{Records: matched, Total: len(items), Shown: len(matched)}
}
