// Package spatialmath defines spatial mathematical operations
package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// If a quaternion's imaginary part is shorter than this, it is treated as the identity rotation.
const angleEpsilon = 1e-12

// Norm returns the norm of the quaternion, i.e. the sqrt of the squares of the imaginary parts.
func Norm(q quat.Number) float64 {
	return math.Sqrt(q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
}

// Flip will multiply a quaternion by -1, returning a quaternion representing the same orientation but in the opposing octant.
func Flip(q quat.Number) quat.Number {
	return quat.Number{Real: -q.Real, Imag: -q.Imag, Jmag: -q.Jmag, Kmag: -q.Kmag}
}

// Normalize scales q to unit magnitude. A zero quaternion becomes the identity.
func Normalize(q quat.Number) quat.Number {
	abs := quat.Abs(q)
	if abs == 0 || math.IsNaN(abs) {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1/abs, q)
}

// Slerp returns the spherical linear interpolation between q1 and q2 along the shortest arc.
// by = 0 yields q1 and by = 1 yields q2. Values outside [0, 1] continue the same rotation,
// which is how extrapolated poses are produced.
func Slerp(q1, q2 quat.Number, by float64) quat.Number {
	q1 = Normalize(q1)
	delta := quat.Mul(quat.Conj(q1), Normalize(q2))
	if delta.Real < 0 {
		delta = Flip(delta)
	}

	n := Norm(delta)
	if n < angleEpsilon {
		return q1
	}
	halfAngle := math.Atan2(n, delta.Real) * by
	s := math.Sin(halfAngle) / n
	step := quat.Number{
		Real: math.Cos(halfAngle),
		Imag: delta.Imag * s,
		Jmag: delta.Jmag * s,
		Kmag: delta.Kmag * s,
	}
	return Normalize(quat.Mul(q1, step))
}

// RotatePoint rotates v by the unit quaternion q.
func RotatePoint(q quat.Number, v r3.Vector) r3.Vector {
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	rotated := quat.Mul(quat.Mul(q, p), quat.Conj(q))
	return r3.Vector{X: rotated.Imag, Y: rotated.Jmag, Z: rotated.Kmag}
}

// QuatFromRPY returns the rotation applying roll about x, then pitch about y, then yaw about z.
// Angles are in radians.
func QuatFromRPY(roll, pitch, yaw float64) quat.Number {
	qx := quat.Number{Real: math.Cos(roll / 2), Imag: math.Sin(roll / 2)}
	qy := quat.Number{Real: math.Cos(pitch / 2), Jmag: math.Sin(pitch / 2)}
	qz := quat.Number{Real: math.Cos(yaw / 2), Kmag: math.Sin(yaw / 2)}
	return Normalize(quat.Mul(qz, quat.Mul(qy, qx)))
}

// QuatToRPY converts a rotation unit quaternion to roll, pitch and yaw in radians.
// See https://en.wikipedia.org/wiki/Conversion_between_quaternions_and_Euler_angles
func QuatToRPY(q quat.Number) (roll, pitch, yaw float64) {
	w := q.Real
	x := q.Imag
	y := q.Jmag
	z := q.Kmag

	roll = math.Atan2(2*(w*x+y*z), 1-2*(x*x+y*y))
	sinp := 2 * (w*y - x*z)
	if sinp > 1 {
		sinp = 1
	} else if sinp < -1 {
		sinp = -1
	}
	pitch = math.Asin(sinp)
	yaw = math.Atan2(2*(w*z+y*x), 1-2*(y*y+z*z))
	return roll, pitch, yaw
}

// QuatToR4AA converts a quat to an R4 axis angle in the same way the C++ Eigen library does.
// https://eigen.tuxfamily.org/dox/AngleAxis_8h_source.html
func QuatToR4AA(q quat.Number) R4AA {
	denom := Norm(q)

	angle := 2 * math.Atan2(denom, math.Abs(q.Real))
	if q.Real < 0 {
		angle *= -1
	}

	if denom < 1e-6 {
		return R4AA{angle, 1, 0, 0}
	}
	return R4AA{angle, q.Imag / denom, q.Jmag / denom, q.Kmag / denom}
}

// QuaternionAlmostEqual reports whether a and b describe the same rotation within tol,
// treating q and -q as equal.
func QuaternionAlmostEqual(a, b quat.Number, tol float64) bool {
	return quatNear(a, b, tol) || quatNear(a, Flip(b), tol)
}

func quatNear(a, b quat.Number, tol float64) bool {
	return math.Abs(a.Real-b.Real) <= tol &&
		math.Abs(a.Imag-b.Imag) <= tol &&
		math.Abs(a.Jmag-b.Jmag) <= tol &&
		math.Abs(a.Kmag-b.Kmag) <= tol
}
