// Package rig solves many camera/rectangle pairs at once, as needed for
// multi-surface projection rigs where every wall has its own camera.
package rig

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/offaxis/internal/config"
	"github.com/banshee-data/offaxis/internal/monitoring"
	"github.com/banshee-data/offaxis/internal/offaxis"
	"github.com/banshee-data/offaxis/internal/scene"
)

var logf = monitoring.Prefixed("[rig] ")

// PairResult is the outcome of solving one pair. Err is nil on success.
type PairResult struct {
	Pair     scene.Pair
	Inputs   offaxis.Inputs
	Result   offaxis.SolverResult
	Err      error
	Duration time.Duration
}

// OK reports whether the pair solved.
func (r PairResult) OK() bool { return r.Err == nil }

// Summary counts how many results failed.
func Summary(results []PairResult) (solved, failed int) {
	for _, r := range results {
		if r.Err != nil {
			failed++
		} else {
			solved++
		}
	}
	return solved, failed
}

// Solve solves every pair against r using cfg.GetWorkers() goroutines.
// Results are in the same order as pairs. Once ctx is done no further pairs
// are started and the remaining ones report ctx.Err().
func Solve(ctx context.Context, r scene.SceneReader, pairs []scene.Pair, cfg *config.TuningConfig) []PairResult {
	if cfg == nil {
		cfg = config.EmptyTuningConfig()
	}
	opts := cfg.SolverOptions()
	workers := cfg.GetWorkers()
	if workers > len(pairs) {
		workers = len(pairs)
	}

	results := make([]PairResult, len(pairs))
	for i, p := range pairs {
		results[i].Pair = p
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				start := time.Now()
				p := pairs[i]
				in, res, err := scene.Solve(r, p.Camera, p.Rectangle, opts)
				results[i] = PairResult{
					Pair:     p,
					Inputs:   in,
					Result:   res,
					Err:      err,
					Duration: time.Since(start),
				}
			}
		}()
	}

	next := 0
dispatch:
	for ; next < len(pairs); next++ {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- next:
		}
	}
	close(jobs)
	wg.Wait()

	for i := next; i < len(pairs); i++ {
		results[i].Err = ctx.Err()
	}

	solved, failed := Summary(results)
	logf("solved %d of %d pairs (%d failed)", solved, len(pairs), failed)
	return results
}

// SolveWithTimeout bounds Solve by cfg.GetRigTimeout().
func SolveWithTimeout(ctx context.Context, r scene.SceneReader, pairs []scene.Pair, cfg *config.TuningConfig) []PairResult {
	if cfg == nil {
		cfg = config.EmptyTuningConfig()
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.GetRigTimeout())
	defer cancel()
	return Solve(ctx, r, pairs, cfg)
}

// Apply writes every successful result back through w and returns the
// number of cameras updated. Failed pairs are skipped.
func Apply(w scene.SceneWriter, results []PairResult) (int, error) {
	applied := 0
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		if err := scene.Apply(w, r.Pair.Camera, r.Result); err != nil {
			return applied, fmt.Errorf("apply %s: %w", r.Pair, err)
		}
		applied++
	}
	return applied, nil
}
