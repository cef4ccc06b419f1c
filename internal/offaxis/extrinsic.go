package offaxis

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Canonical camera axes in local space: +Y is up and +Z points back toward
// the viewer (the camera looks down -Z).
var (
	cameraUp   = r3.Vec{Y: 1}
	cameraBack = r3.Vec{Z: 1}
)

// Basis is the rectangle's orthonormal frame.
type Basis struct {
	Right  r3.Vec `json:"right"`
	Up     r3.Vec `json:"up"`
	Normal r3.Vec `json:"normal"`
}

// Extrinsics is the output of the extrinsic stage.
type Extrinsics struct {
	Transform   RigidTransform
	Orientation quat.Number
	Basis       Basis
}

// NewBasis derives vr, vu and vn = vr x vu from three corners. Corners must
// span non-zero edges that meet at a right angle within tol.
func NewBasis(rect TargetRectangle, tol float64) (Basis, error) {
	right := r3.Sub(rect.BottomRight, rect.BottomLeft)
	up := r3.Sub(rect.TopLeft, rect.BottomLeft)
	if r3.Norm(right) == 0 || r3.Norm(up) == 0 {
		return Basis{}, geometryErrorf(KindDegenerateTarget, "zero-extent target: coincident corners")
	}

	vr := r3.Unit(right)
	vu := r3.Unit(up)
	if dot := r3.Dot(vr, vu); math.Abs(dot) >= tol || math.IsNaN(dot) {
		return Basis{}, geometryErrorf(KindNonRectangularTarget,
			"degenerate or non-rectangular target: edge dot product %g exceeds %g", dot, tol)
	}

	vn := r3.Cross(vr, vu)
	if r3.Norm(vn) == 0 {
		return Basis{}, geometryErrorf(KindDegenerateTarget, "zero-extent target: collinear edges")
	}
	return Basis{Right: vr, Up: vu, Normal: r3.Unit(vn)}, nil
}

// Orientation returns the rotation taking the camera's local right, up and
// back axes onto b.Right, b.Up and b.Normal. The up axis is aligned first,
// then the back axis is swung about the new up axis onto the normal.
func (b Basis) Orientation() quat.Number {
	qu := ShortestArc(cameraUp, b.Up)
	back := Rotate(qu, cameraBack)
	qn := shortestArc(back, b.Normal, b.Up)
	return Compose(qn, qu)
}

// SolveExtrinsics aligns a camera at position p with the rectangle. The
// returned transform keeps p as its translation.
func SolveExtrinsics(p r3.Vec, rect TargetRectangle, opts Options) (Extrinsics, error) {
	basis, err := NewBasis(rect, opts.OrthogonalityTolerance)
	if err != nil {
		return Extrinsics{}, err
	}
	q := basis.Orientation()
	return Extrinsics{
		Transform:   NewRigidTransform(q, p),
		Orientation: q,
		Basis:       basis,
	}, nil
}
