package transform

import (
	"math"

	"go.viam.com/avclean/pointcloud"
	"go.viam.com/avclean/rimage"
	"go.viam.com/avclean/spatialmath"
)

// Projection is a point of a cloud seen in a camera image.
type Projection struct {
	X     float64
	Y     float64
	Depth float64
	// Index is the position of the source point in the projected cloud.
	Index int
}

// Project moves every point of cloud into the camera frame with extrinsic, drops points at or
// behind the image plane, and keeps the pinhole projections that land in
// [0, width) x [0, height). Output follows cloud order and holds each source index at most once.
func Project(
	cloud *pointcloud.PointCloud,
	extrinsic spatialmath.Extrinsic,
	intrinsics *PinholeCameraIntrinsics,
) ([]Projection, error) {
	if err := intrinsics.CheckValid(); err != nil {
		return nil, err
	}
	out := make([]Projection, 0, cloud.Size())
	for i, pt := range cloud.Points() {
		c := extrinsic.Transform(pt.Position)
		if !(c.Z > 0) || math.IsInf(c.Z, 0) {
			continue
		}
		u, v := intrinsics.PointToPixel(c.X, c.Y, c.Z)
		if !intrinsics.InBounds(u, v) {
			continue
		}
		out = append(out, Projection{X: u, Y: v, Depth: c.Z, Index: i})
	}
	return out, nil
}

// DepthImage rasterizes projections into a sparse depth map, keeping the nearest depth when
// several points share a pixel.
func DepthImage(projections []Projection, intrinsics *PinholeCameraIntrinsics) *rimage.DepthMap {
	dm := rimage.NewEmptyDepthMap(intrinsics.Width, intrinsics.Height)
	for _, p := range projections {
		x, y := int(math.Floor(p.X)), int(math.Floor(p.Y))
		if x < 0 || y < 0 || x >= intrinsics.Width || y >= intrinsics.Height {
			continue
		}
		dm.SetNearest(x, y, p.Depth)
	}
	return dm
}
