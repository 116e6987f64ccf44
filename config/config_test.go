package config

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/avclean/pointcloud"
	"go.viam.com/avclean/rimage"
	"go.viam.com/avclean/rimage/transform"
	"go.viam.com/avclean/spatialmath"
	"go.viam.com/avclean/utils"
)

const sampleConfig = `{
  "workers": 4,
  "sync_tolerance_us": 20000,
  "camera": {
    "intrinsic_parameters": {"width_px": 640, "height_px": 480, "fx": 500, "fy": 500, "ppx": 320, "ppy": 240},
    "distortion": {"model": "brown_conrady", "parameters": [0.01, 0, 0, 0, 0]},
    "bayer_pattern": "GBRG",
    "border": "mirror",
    "max_iterations": 10,
    "tolerance": 1e-8
  },
  "camera_from_vehicle": {"translation": [0, 0, -1], "rpy": [0, 0, 90]},
  "vehicle_from_lidar": {"translation": [1, 0, 2], "rpy": [0, 0, 0]},
  "poses": {"extrapolate": true},
  "filters": [
    {"type": "statistical_outlier", "attributes": {"k": 8, "std_ratio": 2}},
    {"type": "radius_outlier", "attributes": {"radius": 0.5, "min_neighbors": 3}},
    {"type": "voxel", "attributes": {"leaf_size": 0.1}},
    {"type": "ground", "attributes": {"max_iterations": 100, "threshold": 0.05, "seed": 42}}
  ],
  "deskew": {"enabled": true, "reference": "end"},
  "log": {"level": "debug"}
}`

func TestFromReader(t *testing.T) {
	cfg, err := FromReader("sample", strings.NewReader(sampleConfig))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Workers, test.ShouldEqual, 4)
	test.That(t, cfg.SyncToleranceUs, test.ShouldEqual, int64(20000))
	test.That(t, cfg.Poses.Extrapolate, test.ShouldBeTrue)
	test.That(t, cfg.Deskew.Enabled, test.ShouldBeTrue)
	test.That(t, len(cfg.Filters), test.ShouldEqual, 4)

	filters, err := cfg.BuildFilters()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(filters), test.ShouldEqual, 4)

	calib, err := cfg.Calibration()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, calib.Pattern, test.ShouldEqual, rimage.BayerGBRG)
	test.That(t, calib.Rectifier, test.ShouldResemble, transform.RectifierConfig{
		Border: rimage.BorderMirror, MaxIterations: 10, Tolerance: 1e-8,
	})
	test.That(t, calib.Camera.Distortion.ModelType(), test.ShouldEqual, transform.BrownConradyDistortionType)
	test.That(t, calib.CameraFromLidar.From, test.ShouldEqual, LidarFrame)
	test.That(t, calib.CameraFromLidar.To, test.ShouldEqual, CameraFrame)

	// lidar origin -> vehicle (1, 0, 2) -> camera: yaw 90 gives (0, 1, 2), then z-1.
	p := calib.CameraFromLidar.Transform(r3.Vector{})
	test.That(t, p.X, test.ShouldAlmostEqual, 0.)
	test.That(t, p.Y, test.ShouldAlmostEqual, 1.)
	test.That(t, p.Z, test.ShouldAlmostEqual, 1.)
}

func TestDefaults(t *testing.T) {
	cfg, err := FromReader("minimal", strings.NewReader(`{
		"camera": {"intrinsic_parameters": {"width_px": 4, "height_px": 4, "fx": 1, "fy": 1, "ppx": 2, "ppy": 2}}
	}`))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Workers, test.ShouldBeGreaterThan, 0)
	test.That(t, cfg.SyncToleranceUs, test.ShouldEqual, int64(DefaultSyncToleranceUs))

	calib, err := cfg.Calibration()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, calib.Camera.Distortion, test.ShouldBeNil)
	test.That(t, calib.Pattern, test.ShouldEqual, rimage.BayerPattern(""))
	test.That(t, calib.Rectifier.Border, test.ShouldEqual, rimage.BorderBlack)
	test.That(t, spatialmath.PoseAlmostEqual(calib.CameraFromLidar.Pose, spatialmath.NewZeroPose(), 1e-12), test.ShouldBeTrue)
}

func TestValidationErrors(t *testing.T) {
	intr := `"intrinsic_parameters": {"width_px": 4, "height_px": 4, "fx": 1, "fy": 1, "ppx": 2, "ppy": 2}`
	for _, tc := range []struct {
		name     string
		body     string
		contains string
		isConfig bool
	}{
		{"missing intrinsics", `{"camera": {}}`, "intrinsic_parameters", false},
		{"bad focal", `{"camera": {"intrinsic_parameters": {"width_px": 4, "height_px": 4, "fx": 0, "fy": 1}}}`, "focal length", true},
		{"bad pattern", `{"camera": {` + intr + `, "bayer_pattern": "XYZW"}}`, "XYZW", false},
		{"bad border", `{"camera": {` + intr + `, "border": "wrap"}}`, "border", true},
		{"bad distortion", `{"camera": {` + intr + `, "distortion": {"model": "fisheye"}}}`, "distortion", true},
		{"negative workers", `{"workers": -1, "camera": {` + intr + `}}`, "workers", true},
		{"unknown filter", `{"camera": {` + intr + `}, "filters": [{"type": "median"}]}`, "median", true},
		{"missing filter type", `{"camera": {` + intr + `}, "filters": [{}]}`, "type", false},
		{"bad filter param", `{"camera": {` + intr + `}, "filters": [{"type": "voxel", "attributes": {"leaf_size": 0}}]}`, "leaf_size", true},
		{"unknown attribute", `{"camera": {` + intr + `}, "filters": [{"type": "voxel", "attributes": {"leaf": 1}}]}`, "leaf", true},
		{"bad reference", `{"camera": {` + intr + `}, "deskew": {"reference": "latest"}}`, "reference", true},
		{"bad level", `{"camera": {` + intr + `}, "log": {"level": "loud"}}`, "loud", true},
		{"non rigid", `{"camera": {` + intr + `}, "vehicle_from_lidar": {"matrix": [2,0,0,0, 0,1,0,0, 0,0,1,0, 0,0,0,1]}}`, "determinant", true},
		{"unknown field", `{"camera": {` + intr + `}, "cameras": {}}`, "cameras", false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FromReader(tc.name, strings.NewReader(tc.body))
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.contains)
			if tc.isConfig {
				test.That(t, errors.Is(err, utils.ErrConfiguration), test.ShouldBeTrue)
			}
		})
	}
}

func TestReadExpandsEnvironment(t *testing.T) {
	t.Setenv("AVCLEAN_FX", "321")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{"camera": {"intrinsic_parameters": {"width_px": 4, "height_px": 4, "fx": ${AVCLEAN_FX}, "fy": 1, "ppx": 2, "ppy": 2}}}`
	test.That(t, os.WriteFile(path, []byte(body), 0o600), test.ShouldBeNil)

	cfg, err := Read(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Camera.Intrinsics.Fx, test.ShouldEqual, 321.)

	_, err = Read(filepath.Join(dir, "missing.json"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestIntrinsicsFile(t *testing.T) {
	dir := t.TempDir()
	test.That(t, os.WriteFile(filepath.Join(dir, "cam.json"),
		[]byte(`{"width_px": 320, "height_px": 240, "fx": 250, "fy": 250, "ppx": 160, "ppy": 120}`), 0o600), test.ShouldBeNil)

	inline := `"intrinsic_parameters": {"width_px": 640, "height_px": 480, "fx": 500, "fy": 500, "ppx": 320, "ppy": 240},`
	fromFile := strings.Replace(sampleConfig, inline, `"intrinsics_file": "cam.json",`, 1)
	path := filepath.Join(dir, "avclean.json")
	test.That(t, os.WriteFile(path, []byte(fromFile), 0o600), test.ShouldBeNil)

	cfg, err := Read(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Camera.IntrinsicsFile, test.ShouldBeEmpty)
	test.That(t, cfg.Camera.Intrinsics.Width, test.ShouldEqual, 320)
	test.That(t, cfg.Camera.Intrinsics.Ppy, test.ShouldEqual, 120.)

	both := strings.Replace(sampleConfig, inline, inline+`"intrinsics_file": "cam.json",`, 1)
	_, err = FromReader("both", strings.NewReader(both))
	test.That(t, errors.Is(err, utils.ErrConfiguration), test.ShouldBeTrue)

	missing := strings.Replace(sampleConfig, inline, `"intrinsics_file": "nope.json",`, 1)
	_, err = FromReader(filepath.Join(dir, "missing.json"), strings.NewReader(missing))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "nope.json")

	bad := filepath.Join(dir, "bad.json")
	test.That(t, os.WriteFile(bad, []byte(`{"width_px": 0}`), 0o600), test.ShouldBeNil)
	_, err = transform.NewPinholeCameraIntrinsicsFromJSONFile(bad)
	test.That(t, errors.Is(err, utils.ErrConfiguration), test.ShouldBeTrue)
}

func TestTransformConfigMatrix(t *testing.T) {
	tc := TransformConfig{Matrix: &[16]float64{
		0, -1, 0, 1,
		1, 0, 0, 2,
		0, 0, 1, 3,
		0, 0, 0, 1,
	}}
	pose, err := tc.Pose()
	test.That(t, err, test.ShouldBeNil)
	p := pose.Transform(r3.Vector{X: 1})
	test.That(t, p.X, test.ShouldAlmostEqual, 1.)
	test.That(t, p.Y, test.ShouldAlmostEqual, 3.)
	test.That(t, p.Z, test.ShouldAlmostEqual, 3.)

	rpy := TransformConfig{RPY: [3]float64{0, 0, 180}}
	pose, err = rpy.Pose()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pose.Transform(r3.Vector{X: 1}).X, test.ShouldAlmostEqual, -1.)
	_, _, yaw := spatialmath.QuatToRPY(pose.Orientation())
	test.That(t, math.Abs(yaw), test.ShouldAlmostEqual, math.Pi)
}

func TestTransformConfigAxisAngle(t *testing.T) {
	tc := TransformConfig{
		Translation: [3]float64{0, 0, 1},
		AxisAngle:   &spatialmath.R4AA{Theta: math.Pi / 2, RZ: 1},
	}
	pose, err := tc.Pose()
	test.That(t, err, test.ShouldBeNil)
	p := pose.Transform(r3.Vector{X: 1})
	test.That(t, p.X, test.ShouldAlmostEqual, 0.)
	test.That(t, p.Y, test.ShouldAlmostEqual, 1.)
	test.That(t, p.Z, test.ShouldAlmostEqual, 1.)

	tc.RPY = [3]float64{0, 0, 10}
	_, err = tc.Pose()
	test.That(t, errors.Is(err, utils.ErrConfiguration), test.ShouldBeTrue)

	tc.RPY = [3]float64{}
	tc.Matrix = &[16]float64{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}
	_, err = tc.Pose()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "matrix")
}

func TestBuiltFiltersRun(t *testing.T) {
	seed := int64(3)
	fc := FilterConfig{Type: GroundFilter, Attributes: utils.AttributeMap{"max_iterations": 20, "threshold": 0.1, "seed": seed}}
	f, err := fc.Build()
	test.That(t, err, test.ShouldBeNil)

	pts := []pointcloud.Point{}
	for i := 0; i < 5; i++ {
		for j := 0; j < 5; j++ {
			pts = append(pts, pointcloud.NewPoint(float64(i), float64(j), 0, 0))
		}
	}
	pts = append(pts, pointcloud.NewPoint(2, 2, 3, 0))
	out, err := f(pointcloud.New(pts))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.Size(), test.ShouldEqual, 1)
	test.That(t, out.At(0).Position.Z, test.ShouldEqual, 3.)
}

func TestSchema(t *testing.T) {
	schema, err := Schema()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(schema), test.ShouldContainSubstring, "sync_tolerance_us")
	test.That(t, string(schema), test.ShouldContainSubstring, "intrinsic_parameters")
	test.That(t, len(RegisteredFilterSchemas), test.ShouldEqual, 4)
}

func TestLogConfigNewLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "avclean.log")
	lc := LogConfig{Level: "warn", File: path}
	logger, closeFile, err := lc.NewLogger("test", false)
	test.That(t, err, test.ShouldBeNil)
	logger.Warnw("written")
	logger.Infow("filtered")
	test.That(t, closeFile(), test.ShouldBeNil)

	data, err := os.ReadFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(data), test.ShouldContainSubstring, "written")
	test.That(t, string(data), test.ShouldNotContainSubstring, "filtered")

}
