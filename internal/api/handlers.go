package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/offaxis/internal/db"
	"github.com/banshee-data/offaxis/internal/httputil"
	"github.com/banshee-data/offaxis/internal/offaxis"
	"github.com/banshee-data/offaxis/internal/report"
	"github.com/banshee-data/offaxis/internal/rig"
	"github.com/banshee-data/offaxis/internal/scene"
	"github.com/banshee-data/offaxis/internal/units"
	"gonum.org/v1/gonum/spatial/r3"
)

// Corners is the wire form of a target rectangle.
type Corners struct {
	BottomLeft  [3]float64 `json:"bottom_left"`
	BottomRight [3]float64 `json:"bottom_right"`
	TopLeft     [3]float64 `json:"top_left"`
}

func (c Corners) target() offaxis.TargetRectangle {
	v := func(a [3]float64) r3.Vec { return r3.Vec{X: a[0], Y: a[1], Z: a[2]} }
	return offaxis.TargetRectangle{
		BottomLeft:  v(c.BottomLeft),
		BottomRight: v(c.BottomRight),
		TopLeft:     v(c.TopLeft),
	}
}

// SolveRequest asks for one camera to be fitted to one rectangle.
type SolveRequest struct {
	Camera     scene.CameraFile   `json:"camera"`
	Rectangle  Corners            `json:"rectangle"`
	Resolution offaxis.Resolution `json:"resolution"`
	// Record stores the solve as a single-pair run.
	Record bool `json:"record,omitempty"`
}

// SolveResponse is a SolverResult plus derived viewing angles.
type SolveResponse struct {
	offaxis.SolverResult
	// FieldOfView is the horizontal and vertical angle the sensor covers
	// at the solved lens; nil for orthographic cameras.
	FieldOfView *[2]float64 `json:"fov,omitempty"`
	FOVUnits    string      `json:"fov_units,omitempty"`
	RunID       string      `json:"run_id,omitempty"`
}

// PairResponse is one entry of a rig response.
type PairResponse struct {
	Camera    string                `json:"camera"`
	Rectangle string                `json:"rectangle"`
	Result    *offaxis.SolverResult `json:"result,omitempty"`
	Error     string                `json:"error,omitempty"`
	ErrorKind string                `json:"error_kind,omitempty"`
}

// RigResponse reports a rig solve and returns the rig with solved cameras
// written back.
type RigResponse struct {
	RunID   string         `json:"run_id,omitempty"`
	Solved  int            `json:"solved"`
	Failed  int            `json:"failed"`
	Results []PairResponse `json:"results"`
	Rig     *scene.File    `json:"rig"`
}

// RunResponse is a stored run with its results.
type RunResponse struct {
	Run     *db.SolveRun      `json:"run"`
	Results []*db.SolveResult `json:"results"`
}

func (s *Server) handleSolve(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodPost) {
		return
	}

	angleUnits := units.Degrees
	if u := r.URL.Query().Get("units"); u != "" {
		if !units.IsValid(u) {
			httputil.Errorf(w, http.StatusBadRequest, "Invalid 'units' parameter. Must be one of: %s", units.GetValidUnitsString())
			return
		}
		angleUnits = u
	}

	var req SolveRequest
	if err := decodeBody(w, r, &req); err != nil {
		httputil.Errorf(w, http.StatusBadRequest, "Invalid request body: %v", err)
		return
	}

	cam, err := req.Camera.Camera()
	if err != nil {
		httputil.Errorf(w, http.StatusBadRequest, "Invalid camera: %v", err)
		return
	}
	in := offaxis.Inputs{
		CameraPosition: cam.Location,
		Target:         req.Rectangle.target(),
		Camera:         cam.Intrinsics,
		Resolution:     req.Resolution,
	}

	start := time.Now()
	res, solveErr := offaxis.Solve(in, s.cfg.SolverOptions())
	elapsed := time.Since(start)

	var resp SolveResponse
	if req.Record && s.db != nil {
		run := &db.SolveRun{Source: "api/solve", PairCount: 1, ElapsedNs: elapsed.Nanoseconds()}
		if solveErr != nil {
			run.FailedCount = 1
		}
		row := db.NewSolveResult("camera", "rectangle", res, solveErr)
		if err := s.db.RecordRun(run, []*db.SolveResult{row}); err != nil {
			httputil.Errorf(w, http.StatusInternalServerError, "Failed to record solve: %v", err)
			return
		}
		resp.RunID = run.RunID
	}

	if solveErr != nil {
		httputil.WriteJSONError(w, statusForError(solveErr), solveErr.Error())
		return
	}

	resp.SolverResult = res
	if res.Lens != nil {
		fov := [2]float64{
			units.ConvertAngle(units.FieldOfView(*res.Lens, in.Camera.SensorWidth), angleUnits),
			units.ConvertAngle(units.FieldOfView(*res.Lens, in.Camera.SensorHeight), angleUnits),
		}
		resp.FieldOfView = &fov
		resp.FOVUnits = angleUnits
	}
	httputil.WriteJSONOK(w, resp)
}

func (s *Server) handleRig(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodPost) {
		return
	}

	var f scene.File
	if err := decodeBody(w, r, &f); err != nil {
		httputil.Errorf(w, http.StatusBadRequest, "Invalid rig file: %v", err)
		return
	}
	if len(f.Pairs) == 0 {
		httputil.WriteJSONError(w, http.StatusBadRequest, "Rig file has no pairs")
		return
	}
	m, err := f.Memory()
	if err != nil {
		httputil.WriteJSONError(w, statusForError(err), err.Error())
		return
	}

	start := time.Now()
	results := rig.SolveWithTimeout(r.Context(), m, f.Pairs, s.cfg)
	elapsed := time.Since(start)

	if _, err := rig.Apply(m, results); err != nil {
		httputil.Errorf(w, http.StatusInternalServerError, "Failed to apply results: %v", err)
		return
	}

	resp := RigResponse{Rig: m.Snapshot(f.Pairs)}
	resp.Solved, resp.Failed = rig.Summary(results)
	for _, pr := range results {
		entry := PairResponse{Camera: pr.Pair.Camera, Rectangle: pr.Pair.Rectangle}
		if pr.Err != nil {
			row := db.NewSolveResult(pr.Pair.Camera, pr.Pair.Rectangle, pr.Result, pr.Err)
			entry.Error = row.ErrorDetail
			entry.ErrorKind = row.ErrorKind
		} else {
			res := pr.Result
			entry.Result = &res
		}
		resp.Results = append(resp.Results, entry)
	}

	if s.db != nil && !errors.Is(r.Context().Err(), context.Canceled) {
		run, rows := db.NewRun("api/rig", results, elapsed)
		if err := s.db.RecordRun(run, rows); err != nil {
			httputil.Errorf(w, http.StatusInternalServerError, "Failed to record run: %v", err)
			return
		}
		resp.RunID = run.RunID
	}

	httputil.WriteJSONOK(w, resp)
}

func (s *Server) requireDB(w http.ResponseWriter) bool {
	if s.db == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "Persistence is not enabled")
		return false
	}
	return true
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	if !s.requireDB(w) {
		return
	}

	limit := 50 // default value
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			httputil.WriteJSONError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	runs, err := s.db.ListRuns(limit)
	if err != nil {
		httputil.Errorf(w, http.StatusInternalServerError, "Failed to retrieve runs: %v", err)
		return
	}
	if runs == nil {
		runs = []*db.SolveRun{}
	}
	httputil.WriteJSONOK(w, runs)
}

// handleRun serves /api/runs/{id} and /api/runs/{id}/chart.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	if !s.requireDB(w) {
		return
	}

	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/runs/"), "/")
	runID, sub, _ := strings.Cut(rest, "/")
	if runID == "" || (sub != "" && sub != "chart") {
		httputil.WriteJSONError(w, http.StatusNotFound, "Not found")
		return
	}

	run, err := s.db.GetRun(runID)
	if err != nil {
		httputil.WriteJSONError(w, statusForError(err), err.Error())
		return
	}
	results, err := s.db.ListResults(runID)
	if err != nil {
		httputil.Errorf(w, http.StatusInternalServerError, "Failed to retrieve results: %v", err)
		return
	}

	if sub == "chart" {
		s.renderRunChart(w, run, results)
		return
	}
	if results == nil {
		results = []*db.SolveResult{}
	}
	httputil.WriteJSONOK(w, RunResponse{Run: run, Results: results})
}

func (s *Server) renderRunChart(w http.ResponseWriter, run *db.SolveRun, results []*db.SolveResult) {
	rows := make([]report.Row, 0, len(results))
	for _, res := range results {
		row := report.Row{
			Label:  res.Camera + "->" + res.Rectangle,
			Lens:   res.Lens,
			Failed: res.Failed(),
		}
		if res.ShiftX != nil {
			row.ShiftX = *res.ShiftX
		}
		if res.ShiftY != nil {
			row.ShiftY = *res.ShiftY
		}
		rows = append(rows, row)
	}

	var buf bytes.Buffer
	title := fmt.Sprintf("Run %s (%s)", run.RunID, run.Source)
	if err := report.ShiftChart(&buf, title, rows); err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
