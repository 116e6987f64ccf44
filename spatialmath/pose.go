package spatialmath

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/avclean/utils"
)

// Pose is a rigid transform: a unit quaternion rotation followed by a translation.
// Poses are values and every operation returns a new Pose with a renormalized rotation.
type Pose struct {
	point       r3.Vector
	orientation quat.Number
}

// NewZeroPose returns the identity pose.
func NewZeroPose() Pose {
	return Pose{orientation: quat.Number{Real: 1}}
}

// NewPose returns a pose with the given translation and rotation. The rotation is normalized.
func NewPose(point r3.Vector, orientation quat.Number) Pose {
	return Pose{point: point, orientation: Normalize(orientation)}
}

// NewPoseFromPoint returns a pure translation.
func NewPoseFromPoint(point r3.Vector) Pose {
	return Pose{point: point, orientation: quat.Number{Real: 1}}
}

// NewPoseFromRPY returns a pose from a translation and roll, pitch and yaw in radians.
func NewPoseFromRPY(point r3.Vector, roll, pitch, yaw float64) Pose {
	return Pose{point: point, orientation: QuatFromRPY(roll, pitch, yaw)}
}

// rigidTolerance bounds how far a matrix may be from a proper rotation and still be accepted.
const rigidTolerance = 1e-6

// NewPoseFromMatrix builds a pose from a row-major 4x4 homogeneous transform. The upper left
// 3x3 block must be orthonormal with determinant 1 and the last row must be (0, 0, 0, 1).
func NewPoseFromMatrix(m [16]float64) (Pose, error) {
	for i, v := range m {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Pose{}, utils.NewConfigurationError("transform", m, fmt.Sprintf("element %d is not finite", i))
		}
	}
	if math.Abs(m[12]) > rigidTolerance || math.Abs(m[13]) > rigidTolerance ||
		math.Abs(m[14]) > rigidTolerance || math.Abs(m[15]-1) > rigidTolerance {
		return Pose{}, utils.NewConfigurationError("transform", m, "last row must be 0 0 0 1")
	}

	rot := mat.NewDense(3, 3, []float64{
		m[0], m[1], m[2],
		m[4], m[5], m[6],
		m[8], m[9], m[10],
	})
	if det := mat.Det(rot); math.Abs(det-1) > rigidTolerance {
		return Pose{}, utils.NewConfigurationError("transform", m, fmt.Sprintf("rotation determinant %.6f is not 1", det))
	}
	var rtr mat.Dense
	rtr.Mul(rot.T(), rot)
	if !mat.EqualApprox(&rtr, eye3(), rigidTolerance) {
		return Pose{}, utils.NewConfigurationError("transform", m, "rotation is not orthonormal")
	}

	mglMat := mgl64.Mat4FromRows(
		mgl64.Vec4{m[0], m[1], m[2], m[3]},
		mgl64.Vec4{m[4], m[5], m[6], m[7]},
		mgl64.Vec4{m[8], m[9], m[10], m[11]},
		mgl64.Vec4{m[12], m[13], m[14], m[15]},
	)
	q := mgl64.Mat4ToQuat(mglMat)
	return NewPose(
		r3.Vector{X: m[3], Y: m[7], Z: m[11]},
		quat.Number{Real: q.W, Imag: q.X(), Jmag: q.Y(), Kmag: q.Z()},
	), nil
}

func eye3() *mat.Dense {
	return mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
}

// Point returns the translation of the pose.
func (p Pose) Point() r3.Vector {
	return p.point
}

// Orientation returns the unit quaternion rotation of the pose.
func (p Pose) Orientation() quat.Number {
	if p.orientation == (quat.Number{}) {
		return quat.Number{Real: 1}
	}
	return p.orientation
}

// Transform applies the pose to a point: rotate, then translate.
func (p Pose) Transform(v r3.Vector) r3.Vector {
	return RotatePoint(p.Orientation(), v).Add(p.point)
}

// Invert returns the pose that undoes p.
func (p Pose) Invert() Pose {
	inv := quat.Conj(p.Orientation())
	return Pose{point: RotatePoint(inv, p.point).Mul(-1), orientation: inv}
}

// Matrix returns the row-major 4x4 homogeneous form of the pose.
func (p Pose) Matrix() [16]float64 {
	q := p.Orientation()
	m := mgl64.Quat{W: q.Real, V: mgl64.Vec3{q.Imag, q.Jmag, q.Kmag}}.Mat4()
	return [16]float64{
		m.At(0, 0), m.At(0, 1), m.At(0, 2), p.point.X,
		m.At(1, 0), m.At(1, 1), m.At(1, 2), p.point.Y,
		m.At(2, 0), m.At(2, 1), m.At(2, 2), p.point.Z,
		0, 0, 0, 1,
	}
}

func (p Pose) String() string {
	roll, pitch, yaw := QuatToRPY(p.Orientation())
	return fmt.Sprintf("{X:%.4f Y:%.4f Z:%.4f Roll:%.4f Pitch:%.4f Yaw:%.4f}",
		p.point.X, p.point.Y, p.point.Z, roll, pitch, yaw)
}

// Compose returns a ∘ b, the pose that applies b and then a.
func Compose(a, b Pose) Pose {
	return Pose{
		point:       a.Transform(b.point),
		orientation: Normalize(quat.Mul(a.Orientation(), b.Orientation())),
	}
}

// PoseDelta returns the pose taking from to to, expressed in from's frame.
func PoseDelta(from, to Pose) Pose {
	return Compose(from.Invert(), to)
}

// Interpolate linearly interpolates translation and slerps rotation. by is not clamped, so
// values outside [0, 1] extrapolate along the same segment.
func Interpolate(p1, p2 Pose, by float64) Pose {
	point := p1.point.Add(p2.point.Sub(p1.point).Mul(by))
	return Pose{point: point, orientation: Slerp(p1.Orientation(), p2.Orientation(), by)}
}

// PoseAlmostEqual checks that translations and rotations match within the given tolerance.
func PoseAlmostEqual(a, b Pose, tol float64) bool {
	return a.point.Sub(b.point).Norm() <= tol && QuaternionAlmostEqual(a.Orientation(), b.Orientation(), tol)
}

// CheckRigid returns an error if the rotation of p has drifted away from unit norm.
func CheckRigid(p Pose) error {
	if n := quat.Abs(p.Orientation()); math.Abs(n-1) > rigidTolerance {
		return errors.Errorf("rotation norm %.9f is not 1", n)
	}
	return nil
}
