package trajectory

import (
	"fmt"

	"go.viam.com/avclean/spatialmath"
	"go.viam.com/avclean/timeindex"
	"go.viam.com/avclean/utils"
)

// Accumulate chains relative odometry into absolute poses. Each relative sample is the motion
// from the previous timestamp to its own, expressed in the previous pose's frame. The result
// starts with origin and has one more sample than relative.
func Accumulate(
	origin timeindex.Sample[spatialmath.Pose],
	relative []timeindex.Sample[spatialmath.Pose],
) ([]timeindex.Sample[spatialmath.Pose], error) {
	out := make([]timeindex.Sample[spatialmath.Pose], 0, len(relative)+1)
	out = append(out, origin)
	current := origin
	for i, rel := range relative {
		if rel.Timestamp < current.Timestamp {
			return nil, utils.NewConfigurationError(
				"relative poses", fmt.Sprintf("[%d]=%d", i, rel.Timestamp),
				fmt.Sprintf("precedes previous timestamp %d", current.Timestamp),
			)
		}
		current = timeindex.Sample[spatialmath.Pose]{
			Timestamp: rel.Timestamp,
			Payload:   spatialmath.Compose(current.Payload, rel.Payload),
		}
		out = append(out, current)
	}
	return out, nil
}

// Relative is the inverse of Accumulate: it returns the motion between consecutive samples.
func Relative(absolute []timeindex.Sample[spatialmath.Pose]) []timeindex.Sample[spatialmath.Pose] {
	if len(absolute) < 2 {
		return nil
	}
	out := make([]timeindex.Sample[spatialmath.Pose], 0, len(absolute)-1)
	for i := 1; i < len(absolute); i++ {
		out = append(out, timeindex.Sample[spatialmath.Pose]{
			Timestamp: absolute[i].Timestamp,
			Payload:   spatialmath.PoseDelta(absolute[i-1].Payload, absolute[i].Payload),
		})
	}
	return out
}
