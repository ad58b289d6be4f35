package web

import (
	"bytes"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"facedesk/internal/dashboard"
	"facedesk/internal/journal"
	"facedesk/internal/model"
	"facedesk/internal/records"
	"facedesk/internal/roster"
)

// fetchAll loads the roster and records and overlays the kiosk's own marks.
func (s *Server) fetchAll(c *gin.Context) ([]model.Identity, []model.AttendanceEvent, bool) {
	ctx := c.Request.Context()
	people, err := s.Backend.ListEmployees(ctx)
	if err != nil {
		s.Logger.Warn("roster fetch failed", slog.Any("error", err))
		errorJSON(c, http.StatusBadGateway, "Failed to fetch employees")
		return nil, nil, false
	}
	recs, err := s.Backend.ListAttendance(ctx)
	if err != nil {
		s.Logger.Warn("records fetch failed", slog.Any("error", err))
		errorJSON(c, http.StatusBadGateway, "Failed to fetch attendance records")
		return nil, nil, false
	}
	people, recs = s.Echo.Apply(people, recs)
	return people, recs, true
}

func (s *Server) roster(c *gin.Context) {
	status, err := roster.ParseStatus(c.Query("status"))
	if err != nil {
		errorJSON(c, http.StatusBadRequest, err.Error())
		return
	}
	people, err := s.Backend.ListEmployees(c.Request.Context())
	if err != nil {
		s.Logger.Warn("roster fetch failed", slog.Any("error", err))
		errorJSON(c, http.StatusBadGateway, "Failed to fetch employees")
		return
	}
	people, _ = s.Echo.Apply(people, nil)

	q := roster.Query{Search: c.Query("search"), Status: status}
	c.JSON(http.StatusOK, roster.Render(people, q, s.now(), s.LegacyBadge))
}

func recordsQuery(c *gin.Context) (records.Query, error) {
	r, err := records.ParseRange(c.Query("range"))
	if err != nil {
		return records.Query{}, err
	}
	q := records.Query{Search: c.Query("search"), Range: r}
	if kind := c.Query("type"); kind != "" && kind != "all" {
		k, err := model.ParseEventKind(kind)
		if err != nil {
			return records.Query{}, err
		}
		q.Kind = k
	}
	return q, nil
}

func (s *Server) loadRecords(c *gin.Context) ([]model.AttendanceEvent, bool) {
	recs, err := s.Backend.ListAttendance(c.Request.Context())
	if err != nil {
		s.Logger.Warn("records fetch failed", slog.Any("error", err))
		errorJSON(c, http.StatusBadGateway, "Failed to fetch attendance records")
		return nil, false
	}
	_, recs = s.Echo.Apply(nil, recs)
	return recs, true
}

func (s *Server) records(c *gin.Context) {
	q, err := recordsQuery(c)
	if err != nil {
		errorJSON(c, http.StatusBadRequest, err.Error())
		return
	}
	recs, ok := s.loadRecords(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, records.Render(recs, q, s.now()))
}

// exportRecords downloads the currently filtered records as CSV. An empty
// view still yields the header row.
func (s *Server) exportRecords(c *gin.Context) {
	q, err := recordsQuery(c)
	if err != nil {
		errorJSON(c, http.StatusBadRequest, err.Error())
		return
	}
	recs, ok := s.loadRecords(c)
	if !ok {
		return
	}
	now := s.now()
	filtered := records.Filter(recs, q, now)

	var buf bytes.Buffer
	if err := records.WriteCSV(&buf, filtered, now.Location()); err != nil {
		errorJSON(c, http.StatusInternalServerError, "export failed")
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+records.ExportFilename(now)+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (s *Server) dashboard(c *gin.Context) {
	people, recs, ok := s.fetchAll(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, dashboard.Compute(people, recs, s.now()))
}

func (s *Server) journal(c *gin.Context) {
	if s.Journal == nil {
		errorJSON(c, http.StatusServiceUnavailable, "attempt journal not configured")
		return
	}
	f := journal.Filter{
		Outcome:    c.Query("outcome"),
		IdentityID: c.Query("identity"),
	}
	f.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	f.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	entries, err := s.Journal.List(c.Request.Context(), f)
	if err != nil {
		s.Logger.Error("journal list failed", slog.Any("error", err))
		errorJSON(c, http.StatusInternalServerError, "journal unavailable")
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
