package spatialmath

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/avclean/utils"
)

func randomPose(rng *rand.Rand) Pose {
	return NewPoseFromRPY(
		r3.Vector{X: rng.Float64()*20 - 10, Y: rng.Float64()*20 - 10, Z: rng.Float64()*4 - 2},
		rng.Float64()*2*math.Pi, rng.Float64()*math.Pi-math.Pi/2, rng.Float64()*2*math.Pi,
	)
}

func TestPoseTransformAndInvert(t *testing.T) {
	p := NewPoseFromRPY(r3.Vector{X: 1, Y: 2, Z: 3}, 0, 0, math.Pi/2)
	v := p.Transform(r3.Vector{X: 1})
	test.That(t, v.X, test.ShouldAlmostEqual, 1)
	test.That(t, v.Y, test.ShouldAlmostEqual, 3)
	test.That(t, v.Z, test.ShouldAlmostEqual, 3)

	back := p.Invert().Transform(v)
	test.That(t, back.X, test.ShouldAlmostEqual, 1)
	test.That(t, back.Y, test.ShouldAlmostEqual, 0)
	test.That(t, back.Z, test.ShouldAlmostEqual, 0)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		a := randomPose(rng)
		test.That(t, PoseAlmostEqual(Compose(a, a.Invert()), NewZeroPose(), 1e-9), test.ShouldBeTrue)
		test.That(t, PoseAlmostEqual(PoseDelta(a, a), NewZeroPose(), 1e-9), test.ShouldBeTrue)
	}
}

func TestComposeAssociative(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 50; i++ {
		a, b, c := randomPose(rng), randomPose(rng), randomPose(rng)
		left := Compose(Compose(a, b), c)
		right := Compose(a, Compose(b, c))
		test.That(t, PoseAlmostEqual(left, right, 1e-9), test.ShouldBeTrue)
		test.That(t, CheckRigid(left), test.ShouldBeNil)
	}
}

func TestPoseMatrixRoundTrip(t *testing.T) {
	p := NewPoseFromRPY(r3.Vector{X: -4, Y: 0.5, Z: 2}, 0.3, -0.1, 1.2)
	back, err := NewPoseFromMatrix(p.Matrix())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, PoseAlmostEqual(p, back, 1e-9), test.ShouldBeTrue)

	identity, err := NewPoseFromMatrix([16]float64{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, PoseAlmostEqual(identity, NewZeroPose(), 1e-12), test.ShouldBeTrue)
}

func TestPoseFromMatrixRejectsNonRigid(t *testing.T) {
	for name, m := range map[string][16]float64{
		"scaled":     {2, 0, 0, 0, 0, 2, 0, 0, 0, 0, 2, 0, 0, 0, 0, 1},
		"reflection": {-1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1},
		"sheared":    {1, 0.5, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1},
		"projective": {1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 1, 1},
		"nan":        {math.NaN(), 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewPoseFromMatrix(m)
			test.That(t, errors.Is(err, utils.ErrConfiguration), test.ShouldBeTrue)
		})
	}
}

func TestInterpolatePose(t *testing.T) {
	a := NewZeroPose()
	b := NewPoseFromPoint(r3.Vector{X: 1})
	mid := Interpolate(a, b, 0.5)
	test.That(t, mid.Point(), test.ShouldResemble, r3.Vector{X: 0.5})
	test.That(t, PoseAlmostEqual(Interpolate(a, b, 0), a, 1e-12), test.ShouldBeTrue)
	test.That(t, PoseAlmostEqual(Interpolate(a, b, 1), b, 1e-12), test.ShouldBeTrue)
	test.That(t, Interpolate(a, b, 1.5).Point().X, test.ShouldAlmostEqual, 1.5)
}

func TestZeroValuePose(t *testing.T) {
	var p Pose
	test.That(t, p.Orientation().Real, test.ShouldEqual, 1.)
	test.That(t, p.Transform(r3.Vector{X: 1, Y: 2, Z: 3}), test.ShouldResemble, r3.Vector{X: 1, Y: 2, Z: 3})
}

func TestExtrinsic(t *testing.T) {
	lidarToVehicle := NewExtrinsic("lidar", "vehicle", NewPoseFromRPY(r3.Vector{Z: 1.8}, 0, 0, math.Pi))
	vehicleToCamera := NewExtrinsic("vehicle", "camera", NewPoseFromRPY(r3.Vector{X: -0.5}, -math.Pi/2, 0, -math.Pi/2))

	lidarToCamera, err := ComposeExtrinsics(vehicleToCamera, lidarToVehicle)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, lidarToCamera.From, test.ShouldEqual, "lidar")
	test.That(t, lidarToCamera.To, test.ShouldEqual, "camera")

	pt := r3.Vector{X: 3, Y: -1, Z: 0.2}
	direct := lidarToCamera.Transform(pt)
	chained := vehicleToCamera.Transform(lidarToVehicle.Transform(pt))
	test.That(t, direct.Sub(chained).Norm(), test.ShouldBeLessThan, 1e-9)

	roundTrip, err := ComposeExtrinsics(lidarToCamera.Invert(), lidarToCamera)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, roundTrip.From, test.ShouldEqual, "lidar")
	test.That(t, roundTrip.To, test.ShouldEqual, "lidar")
	test.That(t, PoseAlmostEqual(roundTrip.Pose, NewZeroPose(), 1e-9), test.ShouldBeTrue)

	_, err = ComposeExtrinsics(lidarToVehicle, vehicleToCamera)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "does not match")
}
