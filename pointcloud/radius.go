package pointcloud

import (
	"context"
	"math"

	"go.viam.com/avclean/utils"
)

// RemoveRadiusOutliers keeps the points that have at least minNeighbors other points within
// radius. Order is preserved.
func RemoveRadiusOutliers(cloud *PointCloud, radius float64, minNeighbors int) (*PointCloud, error) {
	if err := checkRadiusParams(radius, minNeighbors); err != nil {
		return nil, err
	}
	tree := newSearchTree(cloud.Positions())
	keep := make([]bool, cloud.Size())
	err := utils.GroupWorkParallel(
		context.Background(),
		cloud.Size(),
		nil,
		func(groupNum, groupSize, from, to int) (utils.MemberWorkFunc, utils.GroupWorkDoneFunc) {
			return func(memberNum, workNum int) {
				keep[workNum] = len(tree.withinRadius(workNum, radius)) >= minNeighbors
			}, nil
		},
	)
	if err != nil {
		return nil, err
	}
	inliers, _ := cloud.Partition(keep)
	return inliers, nil
}

func checkRadiusParams(radius float64, minNeighbors int) error {
	if math.IsNaN(radius) || radius <= 0 {
		return utils.NewConfigurationError("radius", radius, "must be positive")
	}
	if minNeighbors < 0 {
		return utils.NewConfigurationError("min_neighbors", minNeighbors, "must not be negative")
	}
	return nil
}
