package pointcloud

import (
	"github.com/pkg/errors"
)

// Filter is a stage that derives a new cloud from its input.
type Filter func(cloud *PointCloud) (*PointCloud, error)

// StatisticalOutlierFilter returns a Filter bound to k and stdRatio. Parameters are checked up front.
func StatisticalOutlierFilter(k int, stdRatio float64) (Filter, error) {
	if err := checkStatisticalParams(k, stdRatio); err != nil {
		return nil, err
	}
	return func(cloud *PointCloud) (*PointCloud, error) {
		return RemoveStatisticalOutliers(cloud, k, stdRatio)
	}, nil
}

// RadiusOutlierFilter returns a Filter bound to radius and minNeighbors.
func RadiusOutlierFilter(radius float64, minNeighbors int) (Filter, error) {
	if err := checkRadiusParams(radius, minNeighbors); err != nil {
		return nil, err
	}
	return func(cloud *PointCloud) (*PointCloud, error) {
		return RemoveRadiusOutliers(cloud, radius, minNeighbors)
	}, nil
}

// VoxelFilter returns a Filter that downsamples with the given leaf size.
func VoxelFilter(leafSize float64) (Filter, error) {
	if _, err := VoxelDownsample(New(nil), leafSize); err != nil {
		return nil, err
	}
	return func(cloud *PointCloud) (*PointCloud, error) {
		return VoxelDownsample(cloud, leafSize)
	}, nil
}

// GroundRemovalFilter returns a Filter that keeps only the non-ground points.
func GroundRemovalFilter(maxIterations int, threshold float64, seed int64) (Filter, error) {
	if err := checkGroundParams(maxIterations, threshold); err != nil {
		return nil, err
	}
	return func(cloud *PointCloud) (*PointCloud, error) {
		res, err := SegmentGroundWithSeed(cloud, maxIterations, threshold, seed)
		if err != nil {
			return nil, err
		}
		return res.NonGround, nil
	}, nil
}

// Chain runs filters in order, feeding each the previous output.
func Chain(filters ...Filter) Filter {
	return func(cloud *PointCloud) (*PointCloud, error) {
		current := cloud
		for i, f := range filters {
			next, err := f(current)
			if err != nil {
				return nil, errors.Wrapf(err, "filter %d", i)
			}
			current = next
		}
		return current, nil
	}
}
