package db

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/banshee-data/offaxis/internal/offaxis"
	"github.com/banshee-data/offaxis/internal/rig"
)

// ErrorKindInput marks pairs that failed before reaching the solver, such as
// unknown object names or invalid camera settings.
const ErrorKindInput = "invalid_input"

// NewRun builds a run record and its result rows from a rig solve.
func NewRun(source string, results []rig.PairResult, elapsed time.Duration) (*SolveRun, []*SolveResult) {
	_, failed := rig.Summary(results)
	run := &SolveRun{
		Source:      source,
		PairCount:   len(results),
		FailedCount: failed,
		ElapsedNs:   elapsed.Nanoseconds(),
	}

	rows := make([]*SolveResult, 0, len(results))
	for _, r := range results {
		rows = append(rows, NewSolveResult(r.Pair.Camera, r.Pair.Rectangle, r.Result, r.Err))
	}
	return run, rows
}

// NewSolveResult converts one solve outcome into a row.
func NewSolveResult(camera, rectangle string, res offaxis.SolverResult, solveErr error) *SolveResult {
	row := &SolveResult{Camera: camera, Rectangle: rectangle}
	if solveErr != nil {
		row.ErrorKind = ErrorKindInput
		var gerr *offaxis.GeometryError
		if errors.As(solveErr, &gerr) {
			row.ErrorKind = string(gerr.Kind)
		}
		row.ErrorDetail = solveErr.Error()
		return row
	}

	if data, err := json.Marshal(res.Transform); err == nil {
		raw := json.RawMessage(data)
		row.Matrix = &raw
	}
	row.Lens = res.Lens
	shiftX, shiftY := res.ShiftX, res.ShiftY
	row.ShiftX = &shiftX
	row.ShiftY = &shiftY
	return row
}
