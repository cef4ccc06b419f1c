package scene

import (
	"fmt"

	"github.com/banshee-data/offaxis/internal/monitoring"
	"github.com/banshee-data/offaxis/internal/offaxis"
)

var logf = monitoring.Prefixed("[scene] ")

// ReadInputs gathers everything one solve needs from r.
func ReadInputs(r SceneReader, camera, rectangle string) (offaxis.Inputs, error) {
	pos, err := r.CameraPosition(camera)
	if err != nil {
		return offaxis.Inputs{}, err
	}
	intr, err := r.CameraIntrinsics(camera)
	if err != nil {
		return offaxis.Inputs{}, err
	}
	rect, err := r.RectangleCorners(rectangle)
	if err != nil {
		return offaxis.Inputs{}, err
	}
	res, err := r.Resolution()
	if err != nil {
		return offaxis.Inputs{}, fmt.Errorf("failed to read resolution: %w", err)
	}
	return offaxis.Inputs{
		CameraPosition: pos,
		Target:         rect,
		Camera:         intr,
		Resolution:     res,
	}, nil
}

// Solve reads the named pair and solves it without writing anything back.
func Solve(r SceneReader, camera, rectangle string, opts offaxis.Options) (offaxis.Inputs, offaxis.SolverResult, error) {
	in, err := ReadInputs(r, camera, rectangle)
	if err != nil {
		return offaxis.Inputs{}, offaxis.SolverResult{}, err
	}
	res, err := offaxis.Solve(in, opts)
	if err != nil {
		return in, offaxis.SolverResult{}, fmt.Errorf("solve %s->%s: %w", camera, rectangle, err)
	}
	return in, res, nil
}

// Apply writes a solved result to the named camera. The lens is only written
// for perspective results.
func Apply(w SceneWriter, camera string, res offaxis.SolverResult) error {
	if err := w.SetCameraTransform(camera, res.Transform); err != nil {
		return fmt.Errorf("failed to set transform: %w", err)
	}
	if res.Lens != nil {
		if err := w.SetCameraLens(camera, *res.Lens); err != nil {
			return fmt.Errorf("failed to set lens: %w", err)
		}
	}
	if err := w.SetCameraShift(camera, res.ShiftX, res.ShiftY); err != nil {
		return fmt.Errorf("failed to set shift: %w", err)
	}
	return nil
}

// Update aligns the named camera so its image exactly frames the named
// rectangle. Nothing is written when the solve fails.
func Update(r SceneReader, w SceneWriter, camera, rectangle string, opts offaxis.Options) (offaxis.SolverResult, error) {
	_, res, err := Solve(r, camera, rectangle, opts)
	if err != nil {
		return offaxis.SolverResult{}, err
	}
	if err := Apply(w, camera, res); err != nil {
		return offaxis.SolverResult{}, fmt.Errorf("apply %s: %w", camera, err)
	}

	if res.Lens != nil {
		logf("updated %s to frame %s: lens=%.4f shift=(%.4f, %.4f)", camera, rectangle, *res.Lens, res.ShiftX, res.ShiftY)
	} else {
		logf("updated %s to frame %s: orthographic shift=(%.4f, %.4f)", camera, rectangle, res.ShiftX, res.ShiftY)
	}
	return res, nil
}
