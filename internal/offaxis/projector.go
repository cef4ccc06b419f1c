package offaxis

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Projector is a pinhole camera built from a solve. It maps world points to
// frame coordinates where (0,0) is the bottom-left corner of the rendered
// image and (1,1) the top-right.
type Projector struct {
	transform RigidTransform
	lens      float64
	shiftX    float64
	shiftY    float64
	fitSize   float64
	halfW     float64
	halfH     float64
}

// NewProjector builds a perspective projector. Orthographic results carry no
// lens and cannot be projected this way.
func NewProjector(res SolverResult, cam CameraIntrinsics, resolution Resolution, opts Options) (*Projector, error) {
	if res.Lens == nil {
		return nil, errors.New("projector needs a perspective result with a lens")
	}
	if err := resolution.Validate(); err != nil {
		return nil, err
	}
	if !res.Transform.IsRigid(MatrixValidationTolerance) {
		return nil, errors.New("transform is not a proper rigid transform")
	}

	fit := EffectiveSensorFit(cam.SensorFit, resolution, opts)
	ycor := opts.PixelAspectY / opts.PixelAspectX
	aspect := ycor * float64(resolution.Y) / float64(resolution.X)

	p := &Projector{
		transform: res.Transform,
		lens:      *res.Lens,
		shiftX:    res.ShiftX,
		shiftY:    res.ShiftY,
	}
	if fit == SensorFitVertical {
		p.fitSize = cam.SensorHeight
		p.halfW = 0.5 / aspect
		p.halfH = 0.5
	} else {
		p.fitSize = cam.SensorWidth
		p.halfW = 0.5
		p.halfH = 0.5 * aspect
	}
	return p, nil
}

// Project maps a world point to frame coordinates. ok is false for points
// on or behind the camera plane.
func (p *Projector) Project(world r3.Vec) (fx, fy float64, ok bool) {
	local := p.transform.ApplyInverse(world)
	depth := -local.Z
	if depth <= 0 {
		return 0, 0, false
	}
	u := local.X/depth*p.lens/p.fitSize - p.shiftX
	v := local.Y/depth*p.lens/p.fitSize - p.shiftY
	return (u/p.halfW + 1) / 2, (v/p.halfH + 1) / 2, true
}

// Verify projects the three solved corners and returns the largest distance
// from their expected frame positions (0,0), (1,0) and (0,1).
func Verify(in Inputs, res SolverResult, opts Options) (float64, error) {
	proj, err := NewProjector(res, in.Camera, in.Resolution, opts)
	if err != nil {
		return 0, err
	}

	corners := []struct {
		world  r3.Vec
		fx, fy float64
	}{
		{in.Target.BottomLeft, 0, 0},
		{in.Target.BottomRight, 1, 0},
		{in.Target.TopLeft, 0, 1},
		{in.Target.TopRight(), 1, 1},
	}

	var worst float64
	for _, c := range corners {
		fx, fy, ok := proj.Project(c.world)
		if !ok {
			return math.Inf(1), nil
		}
		worst = math.Max(worst, math.Hypot(fx-c.fx, fy-c.fy))
	}
	return worst, nil
}
