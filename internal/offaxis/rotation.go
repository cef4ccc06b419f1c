package offaxis

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// parallelEpsilon is how close 1+dot(a, b) may get to zero before two unit
// vectors are treated as exactly opposite.
const parallelEpsilon = 1e-12

// Identity is the unit quaternion for no rotation.
var Identity = quat.Number{Real: 1}

// ShortestArc returns the unit quaternion rotating direction from onto
// direction to along the great circle between them. Inputs need not be unit
// length but must be non-zero. Equal directions give the identity; opposite
// directions give a half turn about an arbitrary axis orthogonal to from.
func ShortestArc(from, to r3.Vec) quat.Number {
	return shortestArc(from, to, r3.Vec{})
}

// shortestArc is ShortestArc with a preferred half-turn axis. The hint is
// used for opposite inputs when it is orthogonal to from, which keeps an
// already aligned axis fixed.
func shortestArc(from, to, hint r3.Vec) quat.Number {
	a := r3.Unit(from)
	b := r3.Unit(to)

	w := 1 + r3.Dot(a, b)
	if w < parallelEpsilon {
		axis := hint
		if r3.Norm(axis) == 0 || math.Abs(r3.Dot(r3.Unit(axis), a)) > 1e-9 {
			axis = orthogonal(a)
		}
		axis = r3.Unit(axis)
		return quat.Number{Real: 0, Imag: axis.X, Jmag: axis.Y, Kmag: axis.Z}
	}

	c := r3.Cross(a, b)
	q := quat.Number{Real: w, Imag: c.X, Jmag: c.Y, Kmag: c.Z}
	return quat.Scale(1/quat.Abs(q), q)
}

// orthogonal returns a vector perpendicular to v, built from its two
// largest components.
func orthogonal(v r3.Vec) r3.Vec {
	if math.Abs(v.X) > math.Abs(v.Z) {
		return r3.Vec{X: -v.Y, Y: v.X}
	}
	return r3.Vec{Y: -v.Z, Z: v.Y}
}

// Rotate applies the unit quaternion q to v.
func Rotate(q quat.Number, v r3.Vec) r3.Vec {
	return r3.Rotation(q).Rotate(v)
}

// Compose returns the rotation that applies first then second.
func Compose(second, first quat.Number) quat.Number {
	return quat.Mul(second, first)
}
