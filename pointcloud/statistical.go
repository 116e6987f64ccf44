package pointcloud

import (
	"context"
	"math"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"

	"go.viam.com/avclean/utils"
)

// thresholdTolerance keeps points that sit on the threshold up to floating point noise.
const thresholdTolerance = 1e-9

// RemoveStatisticalOutliers drops every point whose mean distance to its k nearest neighbours
// is more than stdRatio standard deviations above the cloud-wide mean of that quantity.
// The standard deviation is the population one. Order is preserved.
func RemoveStatisticalOutliers(cloud *PointCloud, k int, stdRatio float64) (*PointCloud, error) {
	if err := checkStatisticalParams(k, stdRatio); err != nil {
		return nil, err
	}
	if cloud.Size() <= k {
		return nil, utils.NewInsufficientPointsError(cloud.Size(), k+1)
	}

	meanDists, err := meanNeighborDistances(cloud, k)
	if err != nil {
		return nil, err
	}
	mu, err := stats.Mean(meanDists)
	if err != nil {
		return nil, errors.Wrap(err, "mean neighbour distance")
	}
	sigma, err := stats.StandardDeviationPopulation(meanDists)
	if err != nil {
		return nil, errors.Wrap(err, "neighbour distance deviation")
	}
	threshold := mu + stdRatio*sigma
	threshold += thresholdTolerance * math.Max(1, math.Abs(threshold))

	keep := make([]bool, cloud.Size())
	for i, d := range meanDists {
		keep[i] = d <= threshold
	}
	inliers, _ := cloud.Partition(keep)
	return inliers, nil
}

func checkStatisticalParams(k int, stdRatio float64) error {
	if k <= 0 {
		return utils.NewConfigurationError("k", k, "must be positive")
	}
	if math.IsNaN(stdRatio) || stdRatio < 0 {
		return utils.NewConfigurationError("std_ratio", stdRatio, "must be a non-negative number")
	}
	return nil
}

// meanNeighborDistances returns, for every point, the mean distance to its k nearest
// neighbours, excluding itself.
func meanNeighborDistances(cloud *PointCloud, k int) ([]float64, error) {
	tree := newSearchTree(cloud.Positions())
	out := make([]float64, cloud.Size())
	err := utils.GroupWorkParallel(
		context.Background(),
		cloud.Size(),
		nil,
		func(groupNum, groupSize, from, to int) (utils.MemberWorkFunc, utils.GroupWorkDoneFunc) {
			return func(memberNum, workNum int) {
				nbs := tree.kNearest(workNum, k)
				var sum float64
				for _, nb := range nbs {
					sum += nb.dist
				}
				out[workNum] = sum / float64(len(nbs))
			}, nil
		},
	)
	return out, err
}
