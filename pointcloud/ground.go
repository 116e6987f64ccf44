package pointcloud

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/golang/geo/r3"

	"go.viam.com/avclean/utils"
)

// DefaultGroundSeed seeds the RANSAC sampler when no seed is configured, so repeated runs
// over the same cloud pick the same plane.
const DefaultGroundSeed = 1

// Plane is the set of points p with Normal·p + Offset = 0. Normal has unit length.
type Plane struct {
	Normal r3.Vector
	Offset float64
}

// NewPlaneFromPoints returns the plane through three points, or false if they are collinear.
func NewPlaneFromPoints(p0, p1, p2 r3.Vector) (Plane, bool) {
	v1 := p1.Sub(p0)
	v2 := p2.Sub(p0)
	cross := v1.Cross(v2)
	n := cross.Norm()
	if n == 0 || n <= 1e-9*v1.Norm()*v2.Norm() {
		return Plane{}, false
	}
	normal := cross.Mul(1 / n)
	return Plane{Normal: normal, Offset: -normal.Dot(p0)}, true
}

// Distance returns the signed distance from pt to the plane.
func (p Plane) Distance(pt r3.Vector) float64 {
	return p.Normal.Dot(pt) + p.Offset
}

// Equation returns the coefficients a, b, c, d of ax + by + cz + d = 0.
func (p Plane) Equation() [4]float64 {
	return [4]float64{p.Normal.X, p.Normal.Y, p.Normal.Z, p.Offset}
}

func (p Plane) String() string {
	return fmt.Sprintf("%.4fx + %.4fy + %.4fz + %.4f = 0", p.Normal.X, p.Normal.Y, p.Normal.Z, p.Offset)
}

// GroundResult is the outcome of a ground fit.
type GroundResult struct {
	Plane     Plane
	Ground    *PointCloud
	NonGround *PointCloud
}

// FitGroundPlane runs RANSAC for maxIterations iterations: sample three distinct points,
// fit a plane and count the points within threshold of it. The first plane with the most
// inliers wins. Collinear samples are redrawn and do not count as iterations.
func FitGroundPlane(cloud *PointCloud, maxIterations int, threshold float64, seed int64) (Plane, error) {
	if err := checkGroundParams(maxIterations, threshold); err != nil {
		return Plane{}, err
	}
	n := cloud.Size()
	if n < 3 {
		return Plane{}, utils.NewDegenerateInputError(fmt.Sprintf("need at least 3 points to fit a plane, have %d", n))
	}

	positions := cloud.Positions()
	r := rand.New(rand.NewSource(seed)) //nolint:gosec

	var best Plane
	bestInliers := -1
	maxDraws := maxIterations * 10
	draws := 0
	for iter := 0; iter < maxIterations && draws < maxDraws; draws++ {
		i0, i1, i2 := sampleTriple(r, n)
		plane, ok := NewPlaneFromPoints(positions[i0], positions[i1], positions[i2])
		if !ok {
			continue
		}
		iter++

		currentInliers := 0
		for _, pt := range positions {
			if math.Abs(plane.Distance(pt)) <= threshold {
				currentInliers++
			}
		}
		if currentInliers > bestInliers {
			best = plane
			bestInliers = currentInliers
		}
	}
	if bestInliers < 0 {
		return Plane{}, utils.NewDegenerateInputError(fmt.Sprintf("no non-collinear sample found in %d draws", maxDraws))
	}
	return best, nil
}

// SegmentGround splits the cloud into the points within threshold of the best RANSAC plane
// and the rest, sampling with DefaultGroundSeed. Both halves keep input order.
func SegmentGround(cloud *PointCloud, maxIterations int, threshold float64) (*PointCloud, *PointCloud, error) {
	res, err := SegmentGroundWithSeed(cloud, maxIterations, threshold, DefaultGroundSeed)
	if err != nil {
		return nil, nil, err
	}
	return res.Ground, res.NonGround, nil
}

// SegmentGroundWithSeed is SegmentGround with an explicit sampler seed. It also returns the plane.
func SegmentGroundWithSeed(cloud *PointCloud, maxIterations int, threshold float64, seed int64) (GroundResult, error) {
	plane, err := FitGroundPlane(cloud, maxIterations, threshold, seed)
	if err != nil {
		return GroundResult{}, err
	}
	keep := make([]bool, cloud.Size())
	cloud.Iterate(func(i int, p Point) bool {
		keep[i] = math.Abs(plane.Distance(p.Position)) <= threshold
		return true
	})
	ground, nonGround := cloud.Partition(keep)
	return GroundResult{Plane: plane, Ground: ground, NonGround: nonGround}, nil
}

func sampleTriple(r *rand.Rand, n int) (int, int, int) {
	i0 := r.Intn(n)
	i1 := r.Intn(n - 1)
	if i1 >= i0 {
		i1++
	}
	i2 := r.Intn(n - 2)
	lo, hi := i0, i1
	if lo > hi {
		lo, hi = hi, lo
	}
	if i2 >= lo {
		i2++
	}
	if i2 >= hi {
		i2++
	}
	return i0, i1, i2
}

func checkGroundParams(maxIterations int, threshold float64) error {
	if maxIterations <= 0 {
		return utils.NewConfigurationError("max_iterations", maxIterations, "must be positive")
	}
	if math.IsNaN(threshold) || threshold <= 0 {
		return utils.NewConfigurationError("threshold", threshold, "must be positive")
	}
	return nil
}
