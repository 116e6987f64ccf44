// Package deskew removes the ego-motion smear from LIDAR sweeps by moving every point into
// the vehicle frame at a single reference time.
package deskew

import (
	"context"
	"fmt"
	"strings"

	"go.opencensus.io/trace"

	"go.viam.com/avclean/logging"
	"go.viam.com/avclean/pointcloud"
	"go.viam.com/avclean/spatialmath"
	"go.viam.com/avclean/trajectory"
	"go.viam.com/avclean/utils"
)

// Stats counts what happened to the points of one sweep.
type Stats struct {
	Input   int
	Kept    int
	Dropped int
}

// Deskewer corrects sweeps against a pose trajectory. It holds no mutable state and is safe
// for concurrent use.
type Deskewer struct {
	poses  *trajectory.Interpolator
	logger logging.Logger
}

// New returns a Deskewer over poses. A nil logger discards output.
func New(poses *trajectory.Interpolator, logger logging.Logger) *Deskewer {
	if logger == nil {
		logger = logging.NewBlankLogger("deskew")
	}
	return &Deskewer{poses: poses, logger: logger}
}

// Deskew maps every point p captured at t to inverse(pose(ref)) ∘ pose(t) ∘ p. Points whose
// time is outside the trajectory are dropped and counted. A reference time outside the
// trajectory is an OutOfRange error. Every point must carry a timestamp.
func (d *Deskewer) Deskew(ctx context.Context, scan *pointcloud.PointCloud, ref int64) (*pointcloud.PointCloud, Stats, error) {
	_, span := trace.StartSpan(ctx, "deskew::Deskewer::Deskew")
	defer span.End()

	stats := Stats{Input: scan.Size()}
	if !d.poses.Contains(ref) {
		first, last := d.poses.Range()
		return nil, stats, utils.NewOutOfRangeError(ref, first, last)
	}
	refPose, err := d.poses.PoseAt(ref)
	if err != nil {
		return nil, stats, err
	}
	refInv := refPose.Invert()

	corrections := map[int64]spatialmath.Pose{}
	out := make([]pointcloud.Point, 0, scan.Size())
	for i := 0; i < scan.Size(); i++ {
		p := scan.At(i)
		if !p.HasTimestamp {
			return nil, stats, utils.NewConfigurationError("point", i, "point has no timestamp")
		}
		correction, ok := corrections[p.Timestamp]
		if !ok {
			if !d.poses.Contains(p.Timestamp) {
				stats.Dropped++
				continue
			}
			pose, err := d.poses.PoseAt(p.Timestamp)
			if err != nil {
				return nil, stats, err
			}
			correction = spatialmath.Compose(refInv, pose)
			corrections[p.Timestamp] = correction
		}
		p.Position = correction.Transform(p.Position)
		out = append(out, p)
	}
	stats.Kept = len(out)
	if stats.Dropped > 0 {
		d.logger.Debugw("dropped points outside trajectory", "dropped", stats.Dropped, "input", stats.Input)
	}
	return pointcloud.New(out), stats, nil
}

// ReferencePolicy picks the reference time of a sweep.
type ReferencePolicy string

// The supported reference policies.
const (
	ReferenceStart  = ReferencePolicy("start")
	ReferenceMiddle = ReferencePolicy("middle")
	ReferenceEnd    = ReferencePolicy("end")
)

// ParseReferencePolicy returns the policy named by s. The empty string means middle.
func ParseReferencePolicy(s string) (ReferencePolicy, error) {
	switch p := ReferencePolicy(strings.ToLower(s)); p {
	case "":
		return ReferenceMiddle, nil
	case ReferenceStart, ReferenceMiddle, ReferenceEnd:
		return p, nil
	default:
		return "", utils.NewConfigurationError("reference", s, "must be one of start, middle, end")
	}
}

// ReferenceTimestamp resolves policy against the capture times of scan.
func ReferenceTimestamp(scan *pointcloud.PointCloud, policy ReferencePolicy) (int64, error) {
	meta := scan.MetaData()
	if !meta.HasTimestamps {
		return 0, utils.NewConfigurationError("scan", scan.Size(), "every point needs a timestamp to pick a reference time")
	}
	switch policy {
	case ReferenceStart:
		return meta.MinTimestamp, nil
	case ReferenceEnd:
		return meta.MaxTimestamp, nil
	case ReferenceMiddle, "":
		return meta.MinTimestamp + (meta.MaxTimestamp-meta.MinTimestamp)/2, nil
	default:
		return 0, utils.NewConfigurationError("reference", policy, fmt.Sprintf("unknown policy %q", string(policy)))
	}
}
