package offaxis

import "fmt"

// Solve computes the transform, lens and shift that make the camera frame
// in.Target exactly. The camera position is never changed: the returned
// transform's translation equals in.CameraPosition. No partial result is
// returned on error.
func Solve(in Inputs, opts Options) (SolverResult, error) {
	if err := in.Camera.Validate(); err != nil {
		return SolverResult{}, fmt.Errorf("invalid camera: %w", err)
	}
	if err := in.Resolution.Validate(); err != nil {
		return SolverResult{}, err
	}
	if opts.PixelAspectX <= 0 || opts.PixelAspectY <= 0 {
		return SolverResult{}, fmt.Errorf("pixel aspect must be positive, got %g:%g", opts.PixelAspectX, opts.PixelAspectY)
	}

	ext, err := SolveExtrinsics(in.CameraPosition, in.Target, opts)
	if err != nil {
		return SolverResult{}, err
	}

	intr, err := SolveIntrinsics(in.CameraPosition, ext.Basis, in.Target, in.Camera, in.Resolution, opts)
	if err != nil {
		return SolverResult{}, err
	}

	return SolverResult{
		Transform: ext.Transform,
		Lens:      intr.Lens,
		ShiftX:    intr.ShiftX,
		ShiftY:    intr.ShiftY,
		Bounds:    intr.Bounds,
	}, nil
}
