package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kilianp07/mesplan/core/model"
	"github.com/kilianp07/mesplan/core/results"
	"github.com/kilianp07/mesplan/core/store"
	"github.com/kilianp07/mesplan/scenario"
)

// SolveResponse is returned by POST /api/v1/solve.
type SolveResponse struct {
	RunID    string                `json:"run_id"`
	Summary  results.Summary       `json:"summary"`
	Profiles []results.HourProfile `json:"profiles,omitempty"`
}

// solve decodes a scenario document, plans it and returns the summary.
// ?profiles=true adds the hourly dispatch.
func (s *Server) solve(c *gin.Context) {
	if s.Data == nil || s.Runner == nil {
		abort(c, http.StatusServiceUnavailable, "NO_DATA", "server has no annual data loaded")
		return
	}
	if s.MaxBodyBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.MaxBodyBytes)
	}
	var f scenario.File
	if err := c.ShouldBindJSON(&f); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			abortErr(c, err)
			return
		}
		abort(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	cfg, err := f.Config(s.Data)
	if err != nil {
		abortErr(c, err)
		return
	}
	rep, _ := s.Runner.Run(c.Request.Context(), []model.ScenarioConfig{cfg})
	o := rep.Outcomes[0]
	if !o.OK() {
		if o.Err == nil {
			abort(c, http.StatusServiceUnavailable, "CANCELED", "scenario "+string(o.Status))
			return
		}
		abortErr(c, o.Err)
		return
	}
	resp := SolveResponse{RunID: rep.RunID, Summary: *o.Summary()}
	if c.Query("profiles") == "true" {
		ps, err := results.Profiles(o.Plan.Model, o.Plan.Result)
		if err != nil {
			abortErr(c, err)
			return
		}
		resp.Profiles = ps
	}
	c.JSON(http.StatusOK, resp)
}

// RunResponse is returned by GET /api/v1/runs/:id.
type RunResponse struct {
	RunID   string         `json:"run_id"`
	Records []store.Record `json:"records"`
}

// run lists the stored results of a run, optionally filtered by scenario,
// status and an RFC 3339 start and end.
func (s *Server) run(c *gin.Context) {
	if s.Store == nil {
		abort(c, http.StatusServiceUnavailable, "NO_STORE", "no result store configured")
		return
	}
	q := store.Query{
		RunID:    c.Param("id"),
		Scenario: c.Query("scenario"),
		Status:   c.Query("status"),
	}
	for _, b := range []struct {
		name string
		dst  *time.Time
	}{{"start", &q.Start}, {"end", &q.End}} {
		v := c.Query(b.name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			abort(c, http.StatusBadRequest, "INVALID_REQUEST", b.name+": "+err.Error())
			return
		}
		*b.dst = t
	}
	recs, err := s.Store.Query(c.Request.Context(), q)
	if err != nil {
		abortErr(c, err)
		return
	}
	if len(recs) == 0 {
		abort(c, http.StatusNotFound, "RUN_NOT_FOUND", "no results for run "+q.RunID)
		return
	}
	c.JSON(http.StatusOK, RunResponse{RunID: q.RunID, Records: recs})
}
