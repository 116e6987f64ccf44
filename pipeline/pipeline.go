package pipeline

import (
	"context"
	"image"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
	"go.uber.org/atomic"

	"go.viam.com/avclean/config"
	"go.viam.com/avclean/deskew"
	"go.viam.com/avclean/logging"
	"go.viam.com/avclean/pointcloud"
	"go.viam.com/avclean/rimage"
	"go.viam.com/avclean/rimage/transform"
	"go.viam.com/avclean/spatialmath"
	"go.viam.com/avclean/timeindex"
	"go.viam.com/avclean/trajectory"
	"go.viam.com/avclean/utils"
)

// Stage names used in timings.
const (
	StageDemosaic = "demosaic"
	StageRectify  = "rectify"
	StageFilter   = "filter"
	StageDeskew   = "deskew"
	StageProject  = "project"
)

// StageTiming is how long one stage of a frame took.
type StageTiming struct {
	Stage    string
	Duration time.Duration
}

// Result is the outcome of one frame. When Err is set the other fields hold whatever the
// stages before the failure produced.
type Result struct {
	FrameID        string
	ImageTimestamp int64
	ScanTimestamp  int64
	HasScan        bool

	Image *image.RGBA64
	// Cloud is the cleaned sweep in the vehicle frame at the deskew reference time.
	Cloud       *pointcloud.PointCloud
	Ground      *pointcloud.PointCloud
	Projections []transform.Projection
	Depth       *rimage.DepthMap
	Deskew      deskew.Stats

	Timings  []StageTiming
	Duration time.Duration
	Err      error
}

// Timing returns the duration of the named stage, or 0 if it did not run.
func (r *Result) Timing(stage string) time.Duration {
	for _, st := range r.Timings {
		if st.Stage == stage {
			return st.Duration
		}
	}
	return 0
}

// cloudStage is one configured filter. Ground stages keep what they remove.
type cloudStage struct {
	filter pointcloud.Filter
	ground *config.GroundConfig
}

// Pipeline processes frames against a fixed calibration. It is safe for concurrent use.
type Pipeline struct {
	calib     *config.Calibration
	rectifier *transform.Rectifier
	stages    []cloudStage
	deskewer  *deskew.Deskewer
	reference deskew.ReferencePolicy
	workers   int

	logger logging.Logger
	clock  clock.Clock

	processed atomic.Int64
	failed    atomic.Int64
}

// New builds a pipeline from cfg. poses may be empty when deskewing is disabled. A nil clock
// uses the wall clock.
func New(
	cfg *config.Config,
	poses []timeindex.Sample[spatialmath.Pose],
	logger logging.Logger,
	clk clock.Clock,
) (*Pipeline, error) {
	calib, err := cfg.Calibration()
	if err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.New()
	}
	p := &Pipeline{
		calib:     calib,
		rectifier: transform.NewRectifier(calib.Rectifier, logger.Sublogger("rectifier")),
		workers:   cfg.Workers,
		logger:    logger,
		clock:     clk,
	}
	if p.workers <= 0 {
		p.workers = 1
	}

	for i := range cfg.Filters {
		fc := &cfg.Filters[i]
		if fc.Type == config.GroundFilter {
			ground, err := fc.Ground()
			if err != nil {
				return nil, errors.Wrapf(err, "filters.%d", i)
			}
			p.stages = append(p.stages, cloudStage{ground: ground})
			continue
		}
		f, err := fc.Build()
		if err != nil {
			return nil, errors.Wrapf(err, "filters.%d", i)
		}
		p.stages = append(p.stages, cloudStage{filter: f})
	}

	if cfg.Deskew.Enabled {
		if len(poses) == 0 {
			return nil, utils.NewConfigurationError("deskew", "enabled", "deskewing needs pose samples")
		}
		ip, err := trajectory.NewInterpolator(poses, cfg.Poses)
		if err != nil {
			return nil, err
		}
		p.deskewer = deskew.New(ip, logger.Sublogger("deskew"))
		p.reference, err = deskew.ParseReferencePolicy(cfg.Deskew.Reference)
		if err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Calibration returns the resolved calibration.
func (p *Pipeline) Calibration() *config.Calibration {
	return p.calib
}

// Counts returns how many frames this pipeline has processed and how many of those failed.
func (p *Pipeline) Counts() (processed, failed int64) {
	return p.processed.Load(), p.failed.Load()
}

// RemapComputations returns how many remap tables the rectifier has built.
func (p *Pipeline) RemapComputations() int64 {
	return p.rectifier.Computations()
}

// ProcessFrame runs one frame through every stage. Stages run in order: demosaic, rectify,
// then for frames with a sweep filter, deskew and project.
func (p *Pipeline) ProcessFrame(ctx context.Context, frame Frame) Result {
	ctx, span := trace.StartSpan(ctx, "pipeline::Pipeline::ProcessFrame")
	defer span.End()

	start := p.clock.Now()
	res := Result{
		FrameID:        frame.ID,
		ImageTimestamp: frame.ImageTimestamp,
		ScanTimestamp:  frame.ScanTimestamp,
		HasScan:        frame.HasScan(),
	}
	res.Err = p.process(ctx, frame, &res)
	res.Duration = p.clock.Since(start)

	p.processed.Inc()
	logger := p.logger.With("frame", frame.ID)
	if res.Err != nil {
		p.failed.Inc()
		logger.Warnw("frame failed", "error", res.Err)
	} else {
		logger.Debugw("frame done", "duration", res.Duration, "projections", len(res.Projections))
	}
	return res
}

func (p *Pipeline) process(ctx context.Context, frame Frame, res *Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if frame.Image == nil {
		return utils.NewConfigurationError("image", frame.ID, "frame has no image")
	}

	img := frame.Image
	if p.calib.Pattern != "" {
		var demosaiced *image.RGBA64
		err := p.timed(res, StageDemosaic, func() error {
			var err error
			demosaiced, err = rimage.Demosaic(img, p.calib.Pattern)
			return err
		})
		if err != nil {
			return err
		}
		img = demosaiced
	}
	if err := p.timed(res, StageRectify, func() error {
		var err error
		res.Image, err = p.rectifier.Undistort(ctx, img, p.calib.Camera)
		return err
	}); err != nil {
		return err
	}

	if !frame.HasScan() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	cloud := frame.Scan
	if err := p.timed(res, StageFilter, func() error {
		var err error
		cloud, res.Ground, err = p.filter(cloud)
		return err
	}); err != nil {
		return err
	}

	// Without deskewing the sweep is projected straight from the lidar frame.
	projected, cameraFrom := cloud, p.calib.CameraFromLidar
	cloud = cloud.Transform(p.calib.VehicleFromLidar.Pose)
	if p.deskewer != nil {
		if err := p.timed(res, StageDeskew, func() error {
			ref, err := deskew.ReferenceTimestamp(frame.Scan, p.reference)
			if err != nil {
				return err
			}
			cloud, res.Deskew, err = p.deskewer.Deskew(ctx, cloud, ref)
			return err
		}); err != nil {
			return err
		}
		projected, cameraFrom = cloud, p.calib.CameraFromVehicle
	}
	res.Cloud = cloud

	return p.timed(res, StageProject, func() error {
		var err error
		res.Projections, err = transform.Project(projected, cameraFrom, p.calib.Camera.PinholeCameraIntrinsics)
		if err != nil {
			return err
		}
		res.Depth = transform.DepthImage(res.Projections, p.calib.Camera.PinholeCameraIntrinsics)
		return nil
	})
}

// filter runs the configured stages in order and returns the cleaned cloud and the points
// ground stages removed, in the lidar frame.
func (p *Pipeline) filter(cloud *pointcloud.PointCloud) (*pointcloud.PointCloud, *pointcloud.PointCloud, error) {
	var grounds []*pointcloud.PointCloud
	for i, st := range p.stages {
		if st.ground != nil {
			seg, err := pointcloud.SegmentGroundWithSeed(cloud, st.ground.MaxIterations, st.ground.Threshold, st.ground.SeedOrDefault())
			if err != nil {
				return nil, nil, errors.Wrapf(err, "filter %d", i)
			}
			grounds = append(grounds, seg.Ground)
			cloud = seg.NonGround
			continue
		}
		next, err := st.filter(cloud)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "filter %d", i)
		}
		cloud = next
	}
	return cloud, pointcloud.Merge(grounds...), nil
}

func (p *Pipeline) timed(res *Result, stage string, fn func() error) error {
	start := p.clock.Now()
	err := fn()
	res.Timings = append(res.Timings, StageTiming{Stage: stage, Duration: p.clock.Since(start)})
	if err != nil {
		return errors.Wrap(err, stage)
	}
	return nil
}
