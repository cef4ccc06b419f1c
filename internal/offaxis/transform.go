package offaxis

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// MatrixValidationTolerance is the tolerance for checking rotation matrix validity.
const MatrixValidationTolerance = 1e-6

// RigidTransform is a 4x4 row-major affine matrix holding a rotation and a
// translation: m00,m01,m02,m03, m10,... The last row is always 0 0 0 1.
type RigidTransform [16]float64

// IdentityTransform returns the identity matrix.
func IdentityTransform() RigidTransform {
	return RigidTransform{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// NewRigidTransform assembles a transform from a unit quaternion and a translation.
// Column i of the rotation block is the image of the i-th local axis.
func NewRigidTransform(q quat.Number, translation r3.Vec) RigidTransform {
	x := Rotate(q, r3.Vec{X: 1})
	y := Rotate(q, r3.Vec{Y: 1})
	z := Rotate(q, r3.Vec{Z: 1})
	return RigidTransform{
		x.X, y.X, z.X, translation.X,
		x.Y, y.Y, z.Y, translation.Y,
		x.Z, y.Z, z.Z, translation.Z,
		0, 0, 0, 1,
	}
}

// Column returns column i (0..3) of the upper 3x4 block. Columns 0-2 are the
// local right, up and back axes in world space; column 3 is the translation.
func (t RigidTransform) Column(i int) r3.Vec {
	return r3.Vec{X: t[i], Y: t[4+i], Z: t[8+i]}
}

// Translation returns the world position of the local origin.
func (t RigidTransform) Translation() r3.Vec {
	return t.Column(3)
}

// Apply maps a local point to world space.
func (t RigidTransform) Apply(p r3.Vec) r3.Vec {
	return r3.Vec{
		X: t[0]*p.X + t[1]*p.Y + t[2]*p.Z + t[3],
		Y: t[4]*p.X + t[5]*p.Y + t[6]*p.Z + t[7],
		Z: t[8]*p.X + t[9]*p.Y + t[10]*p.Z + t[11],
	}
}

// ApplyInverse maps a world point into the local frame. It relies on the
// rotation block being orthonormal, so R^-1 = R^T.
func (t RigidTransform) ApplyInverse(p r3.Vec) r3.Vec {
	d := r3.Sub(p, t.Translation())
	return r3.Vec{
		X: r3.Dot(t.Column(0), d),
		Y: r3.Dot(t.Column(1), d),
		Z: r3.Dot(t.Column(2), d),
	}
}

// Dense returns the transform as a gonum matrix.
func (t RigidTransform) Dense() *mat.Dense {
	data := make([]float64, 16)
	copy(data, t[:])
	return mat.NewDense(4, 4, data)
}

// IsRigid reports whether t is a proper rigid transform: orthonormal rotation
// block with determinant 1 and a last row of 0 0 0 1.
func (t RigidTransform) IsRigid(tol float64) bool {
	if t[12] != 0 || t[13] != 0 || t[14] != 0 || math.Abs(t[15]-1) > tol {
		return false
	}

	r := t.Dense().Slice(0, 3, 0, 3)
	if math.Abs(mat.Det(r)-1) > tol {
		return false
	}

	var rtr mat.Dense
	rtr.Mul(r.T(), r)
	return mat.EqualApprox(&rtr, eye3, tol)
}

var eye3 = mat.NewDiagDense(3, []float64{1, 1, 1})
