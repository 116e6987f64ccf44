// Package config defines the on-disk description of a cleaning run: camera calibration,
// sensor extrinsics, point cloud filter stages, deskew policy and logging.
package config

import (
	"fmt"
	"runtime"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/avclean/deskew"
	"go.viam.com/avclean/logging"
	"go.viam.com/avclean/rimage"
	"go.viam.com/avclean/rimage/transform"
	"go.viam.com/avclean/spatialmath"
	"go.viam.com/avclean/trajectory"
	rutils "go.viam.com/avclean/utils"
)

// Frame names used by the calibration.
const (
	LidarFrame   = "lidar"
	VehicleFrame = "vehicle"
	CameraFrame  = "camera"
)

// DefaultSyncToleranceUs is how far apart an image and a scan may be and still form a frame.
const DefaultSyncToleranceUs = 50000

// Config describes a cleaning run.
type Config struct {
	Workers           int               `json:"workers,omitempty"`
	SyncToleranceUs   int64             `json:"sync_tolerance_us,omitempty"`
	Camera            CameraConfig      `json:"camera"`
	CameraFromVehicle TransformConfig   `json:"camera_from_vehicle"`
	VehicleFromLidar  TransformConfig   `json:"vehicle_from_lidar"`
	Poses             trajectory.Config `json:"poses"`
	Filters           []FilterConfig    `json:"filters,omitempty"`
	Deskew            DeskewConfig      `json:"deskew"`
	Log               LogConfig         `json:"log"`
}

// CameraConfig describes the camera and how its images are rectified.
type CameraConfig struct {
	Intrinsics     *transform.PinholeCameraIntrinsics `json:"intrinsic_parameters,omitempty"`
	// IntrinsicsFile names a JSON file holding intrinsic_parameters instead. Relative paths
	// are resolved against the config file's directory.
	IntrinsicsFile string                             `json:"intrinsics_file,omitempty"`
	Distortion     DistortionConfig                   `json:"distortion"`
	BayerPattern   string                             `json:"bayer_pattern,omitempty"`
	Border         string                             `json:"border,omitempty"`
	MaxIterations  int                                `json:"max_iterations,omitempty"`
	Tolerance      float64                            `json:"tolerance,omitempty"`
}

// DistortionConfig names a lens model and its coefficients.
type DistortionConfig struct {
	Model      string    `json:"model,omitempty"`
	Parameters []float64 `json:"parameters,omitempty"`
}

// TransformConfig is a rigid transform given either as a row-major 4x4 matrix or as a
// translation in meters plus a rotation. The rotation is an axis angle in radians when
// axis_angle is set and roll, pitch, yaw in degrees otherwise.
type TransformConfig struct {
	Translation [3]float64        `json:"translation"`
	RPY         [3]float64        `json:"rpy"`
	AxisAngle   *spatialmath.R4AA `json:"axis_angle,omitempty"`
	Matrix      *[16]float64      `json:"matrix,omitempty"`
}

// DeskewConfig controls motion compensation of LIDAR sweeps.
type DeskewConfig struct {
	Enabled   bool   `json:"enabled"`
	Reference string `json:"reference,omitempty"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level      string `json:"level,omitempty"`
	File       string `json:"file,omitempty"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty"`
	MaxAgeDays int    `json:"max_age_days,omitempty"`
}

// Ensure validates the config and fills in defaults.
func (c *Config) Ensure() error {
	if c.Workers < 0 {
		return utils.NewConfigValidationError("workers", rutils.NewConfigurationError("workers", c.Workers, "must not be negative"))
	}
	if c.Workers == 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.SyncToleranceUs < 0 {
		return utils.NewConfigValidationError("sync_tolerance_us",
			rutils.NewConfigurationError("sync_tolerance_us", c.SyncToleranceUs, "must not be negative"))
	}
	if c.SyncToleranceUs == 0 {
		c.SyncToleranceUs = DefaultSyncToleranceUs
	}
	if err := c.Camera.loadIntrinsics(); err != nil {
		return utils.NewConfigValidationError("camera", err)
	}
	if err := c.Camera.Validate("camera"); err != nil {
		return err
	}
	if err := c.CameraFromVehicle.Validate("camera_from_vehicle"); err != nil {
		return err
	}
	if err := c.VehicleFromLidar.Validate("vehicle_from_lidar"); err != nil {
		return err
	}
	for idx := range c.Filters {
		if err := c.Filters[idx].Validate(fmt.Sprintf("%s.%d", "filters", idx)); err != nil {
			return err
		}
	}
	if err := c.Deskew.Validate("deskew"); err != nil {
		return err
	}
	return c.Log.Validate("log")
}

// Validate ensures all parts of the config are valid.
func (c *CameraConfig) Validate(path string) error {
	if c.Intrinsics == nil {
		return utils.NewConfigValidationFieldRequiredError(path, "intrinsic_parameters")
	}
	if _, err := c.Model(); err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	if c.BayerPattern != "" {
		if _, err := rimage.ParseBayerPattern(c.BayerPattern); err != nil {
			return utils.NewConfigValidationError(path, err)
		}
	}
	if _, err := rimage.ParseBorderPolicy(c.Border); err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	if c.MaxIterations < 0 {
		return utils.NewConfigValidationError(path, rutils.NewConfigurationError("max_iterations", c.MaxIterations, "must not be negative"))
	}
	if c.Tolerance < 0 {
		return utils.NewConfigValidationError(path, rutils.NewConfigurationError("tolerance", c.Tolerance, "must not be negative"))
	}
	return nil
}

func (c *CameraConfig) loadIntrinsics() error {
	if c.IntrinsicsFile == "" {
		return nil
	}
	if c.Intrinsics != nil {
		return rutils.NewConfigurationError("intrinsics_file", c.IntrinsicsFile, "cannot be combined with intrinsic_parameters")
	}
	intrinsics, err := transform.NewPinholeCameraIntrinsicsFromJSONFile(c.IntrinsicsFile)
	if err != nil {
		return err
	}
	c.Intrinsics = intrinsics
	c.IntrinsicsFile = ""
	return nil
}

// Model builds the camera model.
func (c *CameraConfig) Model() (*transform.PinholeCameraModel, error) {
	return transform.NewPinholeCameraModel(c.Intrinsics, transform.DistortionType(c.Distortion.Model), c.Distortion.Parameters)
}

// Rectifier returns the rectifier settings, with unset values left for the rectifier to default.
func (c *CameraConfig) Rectifier() (transform.RectifierConfig, error) {
	border, err := rimage.ParseBorderPolicy(c.Border)
	if err != nil {
		return transform.RectifierConfig{}, err
	}
	return transform.RectifierConfig{Border: border, MaxIterations: c.MaxIterations, Tolerance: c.Tolerance}, nil
}

// Pattern returns the color filter layout of raw images, or "" when images arrive demosaiced.
func (c *CameraConfig) Pattern() (rimage.BayerPattern, error) {
	if c.BayerPattern == "" {
		return "", nil
	}
	return rimage.ParseBayerPattern(c.BayerPattern)
}

// Validate ensures all parts of the config are valid.
func (tc *TransformConfig) Validate(path string) error {
	if _, err := tc.Pose(); err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	return nil
}

// Pose returns the rigid transform described by the config.
func (tc *TransformConfig) Pose() (spatialmath.Pose, error) {
	if tc.Matrix != nil {
		if tc.AxisAngle != nil {
			return spatialmath.Pose{}, rutils.NewConfigurationError("axis_angle", *tc.AxisAngle, "cannot be combined with matrix")
		}
		return spatialmath.NewPoseFromMatrix(*tc.Matrix)
	}
	if tc.AxisAngle != nil {
		if tc.RPY != ([3]float64{}) {
			return spatialmath.Pose{}, rutils.NewConfigurationError("axis_angle", *tc.AxisAngle, "cannot be combined with rpy")
		}
		return spatialmath.NewPose(vec(tc.Translation), tc.AxisAngle.ToQuat()), nil
	}
	return spatialmath.NewPoseFromRPY(
		vec(tc.Translation),
		rutils.DegToRad(tc.RPY[0]),
		rutils.DegToRad(tc.RPY[1]),
		rutils.DegToRad(tc.RPY[2]),
	), nil
}

// Validate ensures all parts of the config are valid.
func (dc *DeskewConfig) Validate(path string) error {
	if _, err := deskew.ParseReferencePolicy(dc.Reference); err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	return nil
}

// Validate ensures all parts of the config are valid.
func (lc *LogConfig) Validate(path string) error {
	if _, err := logging.LevelFromString(lc.Level); err != nil {
		return utils.NewConfigValidationError(path, errors.Wrap(rutils.ErrConfiguration, err.Error()))
	}
	return nil
}

// NewLogger builds a logger at the configured level, also writing to the configured file.
// The returned function closes the file.
func (lc *LogConfig) NewLogger(name string, debug bool) (logging.Logger, func() error, error) {
	level, err := logging.LevelFromString(lc.Level)
	if err != nil {
		return nil, nil, err
	}
	if debug {
		level = logging.DEBUG
	}
	logger := logging.NewLogger(name)
	logger.SetLevel(level)
	closer := func() error { return nil }
	if lc.File != "" {
		appender, closeFile := logging.NewFileAppender(logging.FileAppenderConfig{
			Filename:   lc.File,
			MaxSizeMB:  lc.MaxSizeMB,
			MaxBackups: lc.MaxBackups,
			MaxAgeDays: lc.MaxAgeDays,
		})
		logger.AddAppender(appender)
		closer = closeFile
	}
	return logger, closer, nil
}
