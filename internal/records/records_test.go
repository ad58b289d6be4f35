package records

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facedesk/internal/model"
)

var now = time.Date(2026, 10, 19, 15, 30, 0, 0, time.UTC)

func ev(id, name string, kind model.EventKind, at time.Time, conf float64) model.AttendanceEvent {
	return model.AttendanceEvent{ID: model.ID(id), EmployeeID: "e-" + model.ID(id), EmployeeName: name, Kind: kind, Timestamp: model.Time{Time: at}, Confidence: conf}
}

func sample() []model.AttendanceEvent {
	return []model.AttendanceEvent{
		ev("1", "Ada Lovelace", model.CheckIn, now.Add(-time.Hour), 0.97),
		ev("2", "Grace Hopper", model.CheckOut, now.Add(-30*time.Minute), 0.912),
		ev("3", "Ada Lovelace", model.CheckOut, now.Add(-3*24*time.Hour), 0.88),
		ev("4", "Alan Turing", model.CheckIn, now.Add(-20*24*time.Hour), 0.75),
		ev("5", "Hopper, Grace", model.CheckIn, now.Add(-60*24*time.Hour), 0.5),
	}
}

func ids(items []model.AttendanceEvent) []model.ID {
	out := make([]model.ID, len(items))
	for i, r := range items {
		out[i] = r.ID
	}
	return out
}

func TestBounds(t *testing.T) {
	midnight := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

	start, end, ok := Bounds(RangeToday, now)
	require.True(t, ok)
	assert.Equal(t, midnight, start)
	assert.Equal(t, midnight.Add(24*time.Hour), end)

	start, end, ok = Bounds(RangeWeek, now)
	require.True(t, ok)
	assert.Equal(t, midnight.AddDate(0, 0, -7), start)
	assert.Equal(t, now, end)

	start, _, ok = Bounds(RangeMonth, now)
	require.True(t, ok)
	assert.Equal(t, midnight.AddDate(0, 0, -30), start)

	_, _, ok = Bounds(RangeAll, now)
	assert.False(t, ok)
}

func TestFilter(t *testing.T) {
	items := sample()

	assert.Equal(t, []model.ID{"1", "2", "3", "4", "5"}, ids(Filter(items, Query{}, now)))
	assert.Equal(t, []model.ID{"1", "3"}, ids(Filter(items, Query{Search: "ADA"}, now)))
	assert.Equal(t, []model.ID{"2", "3"}, ids(Filter(items, Query{Kind: model.CheckOut}, now)))
	assert.Equal(t, []model.ID{"1", "2"}, ids(Filter(items, Query{Range: RangeToday}, now)))
	assert.Equal(t, []model.ID{"1", "2", "3"}, ids(Filter(items, Query{Range: RangeWeek}, now)))
	assert.Equal(t, []model.ID{"1", "2", "3", "4"}, ids(Filter(items, Query{Range: RangeMonth}, now)))
	assert.Equal(t, []model.ID{"3"}, ids(Filter(items, Query{Search: "ada", Kind: model.CheckOut, Range: RangeWeek}, now)))
}

func TestFilterBoundsAreInclusive(t *testing.T) {
	midnight := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	items := []model.AttendanceEvent{
		ev("a", "x", model.CheckIn, midnight, 1),
		ev("b", "x", model.CheckIn, midnight.Add(-time.Nanosecond), 1),
		ev("c", "x", model.CheckIn, midnight.Add(24*time.Hour), 1),
	}
	assert.Equal(t, []model.ID{"a", "c"}, ids(Filter(items, Query{Range: RangeToday}, now)))
}

func TestWriteCSVRowsMatchFilteredView(t *testing.T) {
	for _, q := range []Query{{}, {Search: "grace"}, {Range: RangeToday}, {Search: "nobody"}} {
		filtered := Filter(sample(), q, now)

		var buf bytes.Buffer
		require.NoError(t, WriteCSV(&buf, filtered, time.UTC))

		rows, err := csv.NewReader(&buf).ReadAll()
		require.NoError(t, err)
		require.Len(t, rows, len(filtered)+1)
		assert.Equal(t, Header, rows[0])
		for i, r := range filtered {
			assert.Equal(t, r.EmployeeName, rows[i+1][0])
		}
	}
}

func TestRowFormat(t *testing.T) {
	r := ev("2", "Grace Hopper", model.CheckOut, time.Date(2026, 3, 7, 14, 5, 9, 0, time.UTC), 0.912)
	assert.Equal(t, []string{"Grace Hopper", "check-out", "3/7/2026", "2:05:09 PM", "91.2%"}, Row(r, time.UTC))

	r.Timestamp = model.Time{Time: time.Date(2026, 3, 7, 0, 5, 9, 0, time.UTC)}
	assert.Equal(t, "12:05:09 AM", Row(r, time.UTC)[3])
}

func TestWriteCSVQuotesNames(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sample()[4:], time.UTC))
	assert.Contains(t, buf.String(), `"Hopper, Grace",check-in`)
}

func TestExportFilename(t *testing.T) {
	assert.Equal(t, "attendance-records-2026-10-19.csv", ExportFilename(now))
}

func TestParseRange(t *testing.T) {
	r, err := ParseRange("")
	require.NoError(t, err)
	assert.Equal(t, RangeAll, r)

	r, err = ParseRange("Week")
	require.NoError(t, err)
	assert.Equal(t, RangeWeek, r)

	_, err = ParseRange("year")
	assert.Error(t, err)
}

func TestRender(t *testing.T) {
	v := Render(sample(), Query{Kind: model.CheckIn}, now)
	assert.Equal(t, 5, v.Total)
	assert.Equal(t, 3, v.Shown)
	assert.Len(t, v.Records, 3)
}
