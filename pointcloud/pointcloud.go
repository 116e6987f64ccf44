// Package pointcloud defines an immutable LIDAR point cloud and the filters that clean it.
//
// Every operation returns a new cloud; the input is never modified, so the stages of a
// pipeline can be reordered, repeated and compared against fixtures.
package pointcloud

import (
	"math"

	"github.com/golang/geo/r3"

	"go.viam.com/avclean/spatialmath"
)

// Point is one LIDAR return.
type Point struct {
	Position  r3.Vector
	Intensity float64
	// Timestamp is the capture time in microseconds. It is only meaningful when HasTimestamp is set.
	Timestamp    int64
	HasTimestamp bool
}

// NewPoint returns a point without a capture time.
func NewPoint(x, y, z, intensity float64) Point {
	return Point{Position: r3.Vector{X: x, Y: y, Z: z}, Intensity: intensity}
}

// NewTimedPoint returns a point captured at ts.
func NewTimedPoint(x, y, z, intensity float64, ts int64) Point {
	return Point{Position: r3.Vector{X: x, Y: y, Z: z}, Intensity: intensity, Timestamp: ts, HasTimestamp: true}
}

// MetaData is data about what's stored in the point cloud.
type MetaData struct {
	HasTimestamps bool

	MinX, MaxX float64
	MinY, MaxY float64
	MinZ, MaxZ float64

	MinTimestamp, MaxTimestamp int64
}

// PointCloud is an ordered, immutable sequence of points.
type PointCloud struct {
	points []Point
	meta   MetaData
}

// New returns a cloud over a copy of points.
func New(points []Point) *PointCloud {
	copied := make([]Point, len(points))
	copy(copied, points)
	return newOwned(copied)
}

// newOwned takes ownership of points without copying.
func newOwned(points []Point) *PointCloud {
	cloud := &PointCloud{points: points}
	cloud.meta = computeMeta(points)
	return cloud
}

func computeMeta(points []Point) MetaData {
	meta := MetaData{
		HasTimestamps: len(points) > 0,
		MinX:          math.MaxFloat64, MinY: math.MaxFloat64, MinZ: math.MaxFloat64,
		MaxX: -math.MaxFloat64, MaxY: -math.MaxFloat64, MaxZ: -math.MaxFloat64,
		MinTimestamp: math.MaxInt64, MaxTimestamp: math.MinInt64,
	}
	for _, p := range points {
		meta.MinX = math.Min(meta.MinX, p.Position.X)
		meta.MaxX = math.Max(meta.MaxX, p.Position.X)
		meta.MinY = math.Min(meta.MinY, p.Position.Y)
		meta.MaxY = math.Max(meta.MaxY, p.Position.Y)
		meta.MinZ = math.Min(meta.MinZ, p.Position.Z)
		meta.MaxZ = math.Max(meta.MaxZ, p.Position.Z)
		if !p.HasTimestamp {
			meta.HasTimestamps = false
			continue
		}
		if p.Timestamp < meta.MinTimestamp {
			meta.MinTimestamp = p.Timestamp
		}
		if p.Timestamp > meta.MaxTimestamp {
			meta.MaxTimestamp = p.Timestamp
		}
	}
	return meta
}

// Size returns the number of points in the cloud.
func (cloud *PointCloud) Size() int {
	return len(cloud.points)
}

// MetaData returns the bounds of the cloud. HasTimestamps is true when every point has one.
func (cloud *PointCloud) MetaData() MetaData {
	return cloud.meta
}

// At returns the i-th point.
func (cloud *PointCloud) At(i int) Point {
	return cloud.points[i]
}

// Points returns a copy of the points.
func (cloud *PointCloud) Points() []Point {
	out := make([]Point, len(cloud.points))
	copy(out, cloud.points)
	return out
}

// Positions returns the positions of the points in order.
func (cloud *PointCloud) Positions() []r3.Vector {
	out := make([]r3.Vector, len(cloud.points))
	for i, p := range cloud.points {
		out[i] = p.Position
	}
	return out
}

// Iterate calls fn for each point in order until fn returns false.
func (cloud *PointCloud) Iterate(fn func(i int, p Point) bool) {
	for i, p := range cloud.points {
		if !fn(i, p) {
			return
		}
	}
}

// Select returns a new cloud with the points at the given indices, in the given order.
func (cloud *PointCloud) Select(indices []int) *PointCloud {
	out := make([]Point, len(indices))
	for i, idx := range indices {
		out[i] = cloud.points[idx]
	}
	return newOwned(out)
}

// Partition splits the cloud by keep, preserving order in both halves.
func (cloud *PointCloud) Partition(keep []bool) (*PointCloud, *PointCloud) {
	in := make([]Point, 0, len(cloud.points))
	out := make([]Point, 0)
	for i, p := range cloud.points {
		if keep[i] {
			in = append(in, p)
		} else {
			out = append(out, p)
		}
	}
	return newOwned(in), newOwned(out)
}

// Transform returns a new cloud with every position moved by pose. Other fields are kept.
func (cloud *PointCloud) Transform(pose spatialmath.Pose) *PointCloud {
	out := make([]Point, len(cloud.points))
	for i, p := range cloud.points {
		p.Position = pose.Transform(p.Position)
		out[i] = p
	}
	return newOwned(out)
}

// Centroid returns the mean position, or the origin for an empty cloud.
func (cloud *PointCloud) Centroid() r3.Vector {
	var sum r3.Vector
	if len(cloud.points) == 0 {
		return sum
	}
	for _, p := range cloud.points {
		sum = sum.Add(p.Position)
	}
	return sum.Mul(1 / float64(len(cloud.points)))
}

// Merge concatenates clouds in order.
func Merge(clouds ...*PointCloud) *PointCloud {
	n := 0
	for _, c := range clouds {
		n += c.Size()
	}
	out := make([]Point, 0, n)
	for _, c := range clouds {
		out = append(out, c.points...)
	}
	return newOwned(out)
}
