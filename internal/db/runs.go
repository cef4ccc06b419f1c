package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrRunNotFound is returned by GetRun for unknown run IDs.
var ErrRunNotFound = errors.New("solve run not found")

// SolveRun is one invocation of the solver over a set of pairs.
type SolveRun struct {
	RunID       string `json:"run_id"`
	Source      string `json:"source"`
	CreatedAtNs int64  `json:"created_at_ns"`
	PairCount   int    `json:"pair_count"`
	FailedCount int    `json:"failed_count"`
	ElapsedNs   int64  `json:"elapsed_ns"`
}

// SolveResult is the stored outcome of one camera/rectangle pair.
// Failed pairs carry ErrorKind/ErrorDetail and no solution fields.
type SolveResult struct {
	ResultID    string           `json:"result_id"`
	RunID       string           `json:"run_id"`
	Camera      string           `json:"camera"`
	Rectangle   string           `json:"rectangle"`
	Matrix      *json.RawMessage `json:"matrix,omitempty"`
	Lens        *float64         `json:"lens,omitempty"`
	ShiftX      *float64         `json:"shift_x,omitempty"`
	ShiftY      *float64         `json:"shift_y,omitempty"`
	ErrorKind   string           `json:"error_kind,omitempty"`
	ErrorDetail string           `json:"error_detail,omitempty"`
	CreatedAtNs int64            `json:"created_at_ns"`
}

// Failed reports whether the stored pair failed to solve.
func (r *SolveResult) Failed() bool {
	return r.ErrorKind != ""
}

type execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

// InsertRun stores a new run. If run.RunID is empty, a new UUID is generated.
func (db *DB) InsertRun(run *SolveRun) error {
	return insertRun(db, run, db.clock.Now())
}

// InsertResult stores one pair result. If res.ResultID is empty, a new UUID
// is generated.
func (db *DB) InsertResult(res *SolveResult) error {
	return insertResult(db, res, db.clock.Now())
}

// RecordRun stores run and all of its results in one transaction. Each
// result's RunID is set to the run's.
func (db *DB) RecordRun(run *SolveRun, results []*SolveResult) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := insertRun(tx, run, db.clock.Now()); err != nil {
		return err
	}
	for _, res := range results {
		res.RunID = run.RunID
		if err := insertResult(tx, res, time.Unix(0, run.CreatedAtNs)); err != nil {
			return fmt.Errorf("%s->%s: %w", res.Camera, res.Rectangle, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	logf("recorded run %s: %d pairs, %d failed", run.RunID, run.PairCount, run.FailedCount)
	return nil
}

func insertRun(e execer, run *SolveRun, now time.Time) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAtNs == 0 {
		run.CreatedAtNs = now.UnixNano()
	}

	_, err := e.Exec(`
		INSERT INTO solve_runs (
			run_id, source, created_at_ns, pair_count, failed_count, elapsed_ns
		) VALUES (?, ?, ?, ?, ?, ?)`,
		run.RunID,
		run.Source,
		run.CreatedAtNs,
		run.PairCount,
		run.FailedCount,
		run.ElapsedNs,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func insertResult(e execer, res *SolveResult, now time.Time) error {
	if res.ResultID == "" {
		res.ResultID = uuid.New().String()
	}
	if res.CreatedAtNs == 0 {
		res.CreatedAtNs = now.UnixNano()
	}

	var matrix interface{}
	if res.Matrix != nil {
		matrix = string(*res.Matrix)
	}

	_, err := e.Exec(`
		INSERT INTO solve_results (
			result_id, run_id, camera, rectangle, matrix_json,
			lens, shift_x, shift_y, error_kind, error_detail, created_at_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.ResultID,
		res.RunID,
		res.Camera,
		res.Rectangle,
		matrix,
		nullFloat64(res.Lens),
		nullFloat64(res.ShiftX),
		nullFloat64(res.ShiftY),
		nullString(res.ErrorKind),
		nullString(res.ErrorDetail),
		res.CreatedAtNs,
	)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (db *DB) GetRun(runID string) (*SolveRun, error) {
	var run SolveRun
	err := db.QueryRow(`
		SELECT run_id, source, created_at_ns, pair_count, failed_count, elapsed_ns
		FROM solve_runs
		WHERE run_id = ?`, runID).Scan(
		&run.RunID,
		&run.Source,
		&run.CreatedAtNs,
		&run.PairCount,
		&run.FailedCount,
		&run.ElapsedNs,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return &run, nil
}

// ListRuns returns the most recent runs first. A non-positive limit
// returns every run.
func (db *DB) ListRuns(limit int) ([]*SolveRun, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.Query(`
		SELECT run_id, source, created_at_ns, pair_count, failed_count, elapsed_ns
		FROM solve_runs
		ORDER BY created_at_ns DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*SolveRun
	for rows.Next() {
		var run SolveRun
		if err := rows.Scan(
			&run.RunID,
			&run.Source,
			&run.CreatedAtNs,
			&run.PairCount,
			&run.FailedCount,
			&run.ElapsedNs,
		); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs rows: %w", err)
	}
	return runs, nil
}

// ListResults returns the results of one run in insertion order.
func (db *DB) ListResults(runID string) ([]*SolveResult, error) {
	rows, err := db.Query(`
		SELECT result_id, run_id, camera, rectangle, matrix_json,
		       lens, shift_x, shift_y, error_kind, error_detail, created_at_ns
		FROM solve_results
		WHERE run_id = ?
		ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var results []*SolveResult
	for rows.Next() {
		var res SolveResult
		var matrix, errorKind, errorDetail sql.NullString
		var lens, shiftX, shiftY sql.NullFloat64

		if err := rows.Scan(
			&res.ResultID,
			&res.RunID,
			&res.Camera,
			&res.Rectangle,
			&matrix,
			&lens,
			&shiftX,
			&shiftY,
			&errorKind,
			&errorDetail,
			&res.CreatedAtNs,
		); err != nil {
			return nil, fmt.Errorf("scan result row: %w", err)
		}

		if matrix.Valid {
			raw := json.RawMessage(matrix.String)
			res.Matrix = &raw
		}
		res.Lens = floatOrNil(lens)
		res.ShiftX = floatOrNil(shiftX)
		res.ShiftY = floatOrNil(shiftY)
		res.ErrorKind = errorKind.String
		res.ErrorDetail = errorDetail.String

		results = append(results, &res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list results rows: %w", err)
	}
	return results, nil
}

func nullFloat64(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func floatOrNil(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}
