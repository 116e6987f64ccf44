// Package synthetic generates a drive past a wall over flat ground: a pose trajectory,
// rolling-shutter style LIDAR sweeps with per-point capture times, and distorted raw camera
// images. It backs the demo command and end-to-end tests.
package synthetic

import (
	"image"
	"image/color"
	"math"
	"math/rand"

	"github.com/golang/geo/r3"
	"github.com/samber/lo"

	"go.viam.com/avclean/config"
	"go.viam.com/avclean/pointcloud"
	"go.viam.com/avclean/rimage"
	"go.viam.com/avclean/spatialmath"
	"go.viam.com/avclean/timeindex"
	"go.viam.com/avclean/trajectory"
	"go.viam.com/avclean/utils"
)

// Intensities tag the origin of every generated point.
const (
	GroundIntensity  = 0.2
	WallIntensity    = 0.8
	OutlierIntensity = 0.05
)

// SceneConfig controls the generated drive. Zero values take the defaults noted per field.
type SceneConfig struct {
	Frames        int     // 10
	FramePeriodUs int64   // 100000
	SweepUs       int64   // 100000
	Speed         float64 // 10 m/s
	YawRate       float64 // rad/s
	GroundPoints  int     // 1500 per sweep
	WallPoints    int     // 500 per sweep
	WallDistance  float64 // 20 m ahead of the start
	Outliers      int     // 15 per sweep, negative for none
	// ImageOffsetUs shifts image capture relative to the sweep midpoint.
	ImageOffsetUs int64
	// DropScanEvery leaves every n-th frame without a sweep. 0 keeps all.
	DropScanEvery int
	// RelativePoses emits odometry: the first pose sample is absolute and the rest are
	// increments from the previous sample.
	RelativePoses bool
	Seed          int64
}

func (cfg SceneConfig) withDefaults() SceneConfig {
	if cfg.Frames <= 0 {
		cfg.Frames = 10
	}
	if cfg.FramePeriodUs <= 0 {
		cfg.FramePeriodUs = 100000
	}
	if cfg.SweepUs <= 0 {
		cfg.SweepUs = 100000
	}
	if cfg.Speed == 0 {
		cfg.Speed = 10
	}
	if cfg.GroundPoints <= 0 {
		cfg.GroundPoints = 1500
	}
	if cfg.WallPoints <= 0 {
		cfg.WallPoints = 500
	}
	if cfg.WallDistance <= 0 {
		cfg.WallDistance = 20
	}
	if cfg.Outliers < 0 {
		cfg.Outliers = 0
	} else if cfg.Outliers == 0 {
		cfg.Outliers = 15
	}
	return cfg
}

// Scene holds the generated streams, each sorted by time.
type Scene struct {
	Poses  []timeindex.Sample[spatialmath.Pose]
	Images []timeindex.Sample[image.Image]
	Scans  []timeindex.Sample[*pointcloud.PointCloud]
}

// VehiclePose returns the pose of the vehicle in the world at t microseconds for a constant
// speed and turn rate starting at the origin facing +x.
func VehiclePose(cfg SceneConfig, t int64) spatialmath.Pose {
	cfg = cfg.withDefaults()
	sec := float64(t) / 1e6
	yaw := cfg.YawRate * sec
	var x, y float64
	if math.Abs(cfg.YawRate) < 1e-12 {
		x = cfg.Speed * sec
	} else {
		x = cfg.Speed / cfg.YawRate * math.Sin(yaw)
		y = cfg.Speed / cfg.YawRate * (1 - math.Cos(yaw))
	}
	return spatialmath.NewPoseFromRPY(r3.Vector{X: x, Y: y}, 0, 0, yaw)
}

// Generate builds the scene as seen through calib.
func Generate(cfg SceneConfig, calib *config.Calibration) (*Scene, error) {
	cfg = cfg.withDefaults()
	r := rand.New(rand.NewSource(cfg.Seed)) //nolint:gosec

	end := int64(cfg.Frames)*cfg.FramePeriodUs + cfg.SweepUs
	const poseStepUs = 10000
	scene := &Scene{
		Poses: lo.Times(int(end/poseStepUs)+2, func(i int) timeindex.Sample[spatialmath.Pose] {
			ts := int64(i-1) * poseStepUs
			return timeindex.Sample[spatialmath.Pose]{Timestamp: ts, Payload: VehiclePose(cfg, ts)}
		}),
	}

	if cfg.RelativePoses {
		scene.Poses = append(scene.Poses[:1:1], trajectory.Relative(scene.Poses)...)
	}

	lidarFromVehicle := calib.VehicleFromLidar.Pose.Invert()
	for i := 0; i < cfg.Frames; i++ {
		sweepStart := int64(i) * cfg.FramePeriodUs
		mid := sweepStart + cfg.SweepUs/2
		if cfg.DropScanEvery <= 0 || i%cfg.DropScanEvery != cfg.DropScanEvery-1 {
			scan := sweep(cfg, r, sweepStart, lidarFromVehicle)
			scene.Scans = append(scene.Scans, timeindex.Sample[*pointcloud.PointCloud]{Timestamp: mid, Payload: scan})
		}
		img, err := rawImage(calib, i)
		if err != nil {
			return nil, err
		}
		scene.Images = append(scene.Images, timeindex.Sample[image.Image]{Timestamp: mid + cfg.ImageOffsetUs, Payload: img})
	}
	return scene, nil
}

// sweep samples world points over one sweep and expresses each in the lidar frame at its own
// capture time.
func sweep(cfg SceneConfig, r *rand.Rand, start int64, lidarFromVehicle spatialmath.Pose) *pointcloud.PointCloud {
	origin := VehiclePose(cfg, start)
	total := cfg.GroundPoints + cfg.WallPoints + cfg.Outliers
	pts := make([]pointcloud.Point, 0, total)

	for j := 0; j < total; j++ {
		ts := start + int64(j)*cfg.SweepUs/int64(total)
		var world r3.Vector
		var intensity float64
		switch {
		case j < cfg.GroundPoints:
			local := r3.Vector{X: 2 + r.Float64()*16, Y: r.Float64()*16 - 8}
			world = origin.Transform(local)
			world.Z = 0
			intensity = GroundIntensity
		case j < cfg.GroundPoints+cfg.WallPoints:
			world = r3.Vector{X: cfg.WallDistance, Y: origin.Point().Y + r.Float64()*16 - 8, Z: 0.5 + r.Float64()*3}
			intensity = WallIntensity
		default:
			dir := r3.Vector{X: r.NormFloat64(), Y: r.NormFloat64(), Z: math.Abs(r.NormFloat64())}.Normalize()
			world = origin.Transform(dir.Mul(10 + r.Float64()*30))
			world.Z += 8
			intensity = OutlierIntensity
		}
		vehicle := VehiclePose(cfg, ts).Invert().Transform(world)
		lidar := lidarFromVehicle.Transform(vehicle)
		pts = append(pts, pointcloud.NewTimedPoint(lidar.X, lidar.Y, lidar.Z, intensity, ts))
	}
	return pointcloud.New(pts)
}

// rawImage renders a checkerboard through the camera's lens and, when the camera has a color
// filter array, mosaics it.
func rawImage(calib *config.Calibration, frame int) (image.Image, error) {
	model := calib.Camera
	w, h := model.Width, model.Height
	img := image.NewRGBA64(image.Rect(0, 0, w, h))
	shift := float64(frame * 3)
	if err := utils.ParallelForEachPixel(image.Point{w, h}, func(u, v int) {
		p := model.UndistortPixel(float64(u), float64(v), 20, 1e-9)
		cx := int(math.Floor((p.X + shift) / 8))
		cy := int(math.Floor(p.Y / 8))
		if (cx+cy)%2 == 0 {
			img.SetRGBA64(u, v, color.RGBA64{R: 0xd000, G: 0x4000, B: 0x2000, A: 0xffff})
		} else {
			img.SetRGBA64(u, v, color.RGBA64{R: 0x2000, G: 0x6000, B: 0xc000, A: 0xffff})
		}
	}); err != nil {
		return nil, err
	}
	if calib.Pattern == "" {
		return img, nil
	}
	raw, err := rimage.Mosaic(img, calib.Pattern)
	if err != nil {
		return nil, err
	}
	return raw, nil
}
