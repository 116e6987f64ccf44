package pointcloud

import (
	"math"

	"github.com/golang/geo/r3"

	"go.viam.com/avclean/utils"
)

// VoxelCoords are the integer coordinates of a cube of side leaf size.
type VoxelCoords struct {
	I, J, K int64
}

// VoxelOf returns the voxel containing pos.
func VoxelOf(pos r3.Vector, leafSize float64) VoxelCoords {
	return VoxelCoords{
		I: int64(math.Floor(pos.X / leafSize)),
		J: int64(math.Floor(pos.Y / leafSize)),
		K: int64(math.Floor(pos.Z / leafSize)),
	}
}

// VoxelDownsample keeps one point per occupied voxel: the one nearest the voxel's centroid,
// the earliest on ties. Surviving points keep all their fields and are emitted in the order
// their voxels were first seen.
func VoxelDownsample(cloud *PointCloud, leafSize float64) (*PointCloud, error) {
	if math.IsNaN(leafSize) || leafSize <= 0 {
		return nil, utils.NewConfigurationError("leaf_size", leafSize, "must be positive")
	}

	type voxel struct {
		members []int
		sum     r3.Vector
	}
	voxels := map[VoxelCoords]*voxel{}
	var order []VoxelCoords
	cloud.Iterate(func(i int, p Point) bool {
		key := VoxelOf(p.Position, leafSize)
		v, ok := voxels[key]
		if !ok {
			v = &voxel{}
			voxels[key] = v
			order = append(order, key)
		}
		v.members = append(v.members, i)
		v.sum = v.sum.Add(p.Position)
		return true
	})

	kept := make([]int, 0, len(order))
	for _, key := range order {
		v := voxels[key]
		centroid := v.sum.Mul(1 / float64(len(v.members)))
		best := v.members[0]
		bestDist := cloud.At(best).Position.Sub(centroid).Norm2()
		for _, idx := range v.members[1:] {
			if d := cloud.At(idx).Position.Sub(centroid).Norm2(); d < bestDist {
				best, bestDist = idx, d
			}
		}
		kept = append(kept, best)
	}
	return cloud.Select(kept), nil
}
