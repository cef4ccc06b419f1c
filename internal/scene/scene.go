// Package scene is the boundary between the off-axis solver and whatever
// holds the cameras and rectangles: reading solver inputs by object name and
// writing the solved placement, lens and shift back.
package scene

import (
	"errors"

	"github.com/banshee-data/offaxis/internal/offaxis"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrNotFound is wrapped by lookups of unknown object names.
var ErrNotFound = errors.New("scene object not found")

// SceneReader supplies solver inputs by object name.
type SceneReader interface {
	CameraPosition(name string) (r3.Vec, error)
	CameraIntrinsics(name string) (offaxis.CameraIntrinsics, error)
	// RectangleCorners returns the world-space bottom-left, bottom-right
	// and top-left corners of the named rectangle.
	RectangleCorners(name string) (offaxis.TargetRectangle, error)
	Resolution() (offaxis.Resolution, error)
}

// SceneWriter applies solver output to a camera.
type SceneWriter interface {
	SetCameraTransform(name string, t offaxis.RigidTransform) error
	SetCameraLens(name string, lens float64) error
	SetCameraShift(name string, x, y float64) error
}

// Pair names one camera and the rectangle it should frame.
type Pair struct {
	Camera    string `json:"camera"`
	Rectangle string `json:"rectangle"`
}

func (p Pair) String() string {
	return p.Camera + "->" + p.Rectangle
}

// Matrix4 is a general 4x4 row-major affine matrix. Unlike
// offaxis.RigidTransform it may carry scale, as object world matrices do.
type Matrix4 [16]float64

// IdentityMatrix returns the identity matrix.
func IdentityMatrix() Matrix4 {
	return Matrix4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Apply maps a local point to world space.
func (m Matrix4) Apply(p r3.Vec) r3.Vec {
	return r3.Vec{
		X: m[0]*p.X + m[1]*p.Y + m[2]*p.Z + m[3],
		Y: m[4]*p.X + m[5]*p.Y + m[6]*p.Z + m[7],
		Z: m[8]*p.X + m[9]*p.Y + m[10]*p.Z + m[11],
	}
}
