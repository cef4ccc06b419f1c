package offaxis

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Intrinsics is the output of the intrinsic stage.
type Intrinsics struct {
	Lens   *float64
	ShiftX float64
	ShiftY float64
	Bounds FrustumBounds
	// Fit is the sensor fit after resolving auto.
	Fit SensorFit
}

// EffectiveSensorFit resolves auto to horizontal when the image is at least
// as wide as it is tall (after pixel aspect), otherwise vertical.
func EffectiveSensorFit(fit SensorFit, res Resolution, opts Options) SensorFit {
	switch fit {
	case SensorFitHorizontal, SensorFitVertical:
		return fit
	}
	if opts.PixelAspectX*float64(res.X) >= opts.PixelAspectY*float64(res.Y) {
		return SensorFitHorizontal
	}
	return SensorFitVertical
}

// NearPlaneBounds projects the corners onto the rectangle basis and scales
// them from the plane distance to clipStart. The returned distance is the
// signed perpendicular distance from p to the plane along -Normal.
func NearPlaneBounds(p r3.Vec, b Basis, rect TargetRectangle, clipStart float64) (FrustumBounds, float64) {
	va := r3.Sub(rect.BottomLeft, p)
	vb := r3.Sub(rect.BottomRight, p)
	vc := r3.Sub(rect.TopLeft, p)

	d := -r3.Dot(va, b.Normal)
	s := clipStart / d
	return FrustumBounds{
		Left:   r3.Dot(b.Right, va) * s,
		Right:  r3.Dot(b.Right, vb) * s,
		Bottom: r3.Dot(b.Up, va) * s,
		Top:    r3.Dot(b.Up, vc) * s,
	}, d
}

// SolveIntrinsics derives the focal length and sensor shift for a camera at
// p whose near plane is already parallel to the rectangle described by b.
func SolveIntrinsics(p r3.Vec, b Basis, rect TargetRectangle, cam CameraIntrinsics, res Resolution, opts Options) (Intrinsics, error) {
	clip := cam.ClipStart

	d := -r3.Dot(r3.Sub(rect.BottomLeft, p), b.Normal)
	if d == 0 || (d < 0 && opts.RejectBehindPlane) {
		return Intrinsics{}, geometryErrorf(KindCameraBehindPlane,
			"camera is %g units behind the target plane", -d)
	}

	bounds, _ := NearPlaneBounds(p, b, rect, clip)
	width := bounds.Right - bounds.Left
	height := bounds.Top - bounds.Bottom
	if width == 0 || height == 0 || math.IsNaN(width) || math.IsNaN(height) {
		return Intrinsics{}, geometryErrorf(KindDegenerateTarget,
			"zero-extent target: frustum %gx%g", width, height)
	}

	ycor := opts.PixelAspectY / opts.PixelAspectX
	fit := EffectiveSensorFit(cam.SensorFit, res, opts)
	resx := float64(res.X)
	resy := float64(res.Y)

	viewfac := resx
	if fit == SensorFitVertical {
		viewfac = ycor * resy
	}

	var lens *float64
	if cam.ProjectionType != ProjectionOrthographic {
		sensor := cam.SensorWidth
		if fit == SensorFitVertical {
			sensor = cam.SensorHeight
		}
		l := sensor * clip / viewfac * resx / width
		lens = &l
	}

	if mismatch := math.Abs(math.Abs(width/resx) - math.Abs(height/ycor/resy)); !(mismatch < opts.AspectTolerance) {
		return Intrinsics{}, geometryErrorf(KindInconsistentFrustum,
			"inconsistent frustum: target aspect %.6g does not match resolution %dx%d (mismatch %g)",
			width/height, res.X, res.Y, mismatch)
	}

	return Intrinsics{
		Lens:   lens,
		ShiftX: resx * (bounds.Left + bounds.Right) / width / 2 / viewfac,
		ShiftY: resy * (bounds.Top + bounds.Bottom) / height * ycor / viewfac / 2,
		Bounds: bounds,
		Fit:    fit,
	}, nil
}
