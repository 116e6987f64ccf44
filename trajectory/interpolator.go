// Package trajectory turns sparse timestamped pose samples into a continuous pose function.
package trajectory

import (
	"github.com/pkg/errors"

	"go.viam.com/avclean/spatialmath"
	"go.viam.com/avclean/timeindex"
	"go.viam.com/avclean/utils"
)

// Config controls how samples are read and how queries outside the sampled time range are
// answered.
type Config struct {
	// Extrapolate continues the motion of the two nearest samples past either end instead of
	// failing with OutOfRange.
	Extrapolate bool `json:"extrapolate"`
	// Relative marks the samples as odometry: the first is the absolute starting pose and
	// every later one is the motion since its predecessor.
	Relative bool `json:"relative,omitempty"`
}

// Interpolator answers pose queries at arbitrary timestamps. It is immutable and safe for
// concurrent use.
type Interpolator struct {
	poses *timeindex.Stream[spatialmath.Pose]
	cfg   Config
}

// NewInterpolator builds an interpolator from samples sorted by timestamp.
func NewInterpolator(samples []timeindex.Sample[spatialmath.Pose], cfg Config) (*Interpolator, error) {
	if len(samples) == 0 {
		return nil, utils.NewConfigurationError("poses", 0, "at least one pose sample is required")
	}
	if cfg.Relative {
		var err error
		if samples, err = Accumulate(samples[0], samples[1:]); err != nil {
			return nil, err
		}
	}
	poses, err := timeindex.NewStream(samples)
	if err != nil {
		return nil, err
	}
	return &Interpolator{poses: poses, cfg: cfg}, nil
}

// Range returns the first and last sampled timestamps.
func (ip *Interpolator) Range() (int64, int64) {
	return ip.poses.Index().First(), ip.poses.Index().Last()
}

// Contains reports whether q can be answered without extrapolation.
func (ip *Interpolator) Contains(q int64) bool {
	return ip.poses.Index().Contains(q)
}

// PoseAt returns the pose at q. Inside the sampled range translation is interpolated linearly
// and rotation by shortest-arc slerp. Outside it PoseAt fails with OutOfRange unless the
// interpolator extrapolates.
func (ip *Interpolator) PoseAt(q int64) (spatialmath.Pose, error) {
	index := ip.poses.Index()
	lo, hi, err := index.Bracket(q)
	if err != nil {
		if !ip.cfg.Extrapolate || !errors.Is(err, utils.ErrOutOfRange) {
			return spatialmath.Pose{}, err
		}
		return ip.extrapolate(q), nil
	}
	return ip.between(lo, hi, q), nil
}

func (ip *Interpolator) between(lo, hi int, q int64) spatialmath.Pose {
	a, b := ip.poses.At(lo), ip.poses.At(hi)
	if a.Timestamp == b.Timestamp {
		return spatialmath.NewPose(a.Payload.Point(), a.Payload.Orientation())
	}
	by := float64(q-a.Timestamp) / float64(b.Timestamp-a.Timestamp)
	return spatialmath.Interpolate(a.Payload, b.Payload, by)
}

// extrapolate uses the two nearest samples with distinct timestamps at the end q lies past.
func (ip *Interpolator) extrapolate(q int64) spatialmath.Pose {
	index := ip.poses.Index()
	n := index.Len()
	var a, b int
	if q < index.First() {
		a = 0
		_, b = index.Window(index.First(), index.First())
		if b >= n {
			return ip.poses.At(0).Payload
		}
	} else {
		b = n - 1
		a, _ = index.Window(index.Last(), index.Last())
		a--
		if a < 0 {
			return ip.poses.At(b).Payload
		}
	}
	sa, sb := ip.poses.At(a), ip.poses.At(b)
	by := float64(q-sa.Timestamp) / float64(sb.Timestamp-sa.Timestamp)
	return spatialmath.Interpolate(sa.Payload, sb.Payload, by)
}

// PosesAt answers a batch of queries. It stops at the first query that fails.
func (ip *Interpolator) PosesAt(qs []int64) ([]spatialmath.Pose, error) {
	out := make([]spatialmath.Pose, len(qs))
	for i, q := range qs {
		p, err := ip.PoseAt(q)
		if err != nil {
			return nil, errors.Wrapf(err, "query %d", i)
		}
		out[i] = p
	}
	return out, nil
}
