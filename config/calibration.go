package config

import (
	"github.com/golang/geo/r3"

	"go.viam.com/avclean/rimage"
	"go.viam.com/avclean/rimage/transform"
	"go.viam.com/avclean/spatialmath"
)

// Calibration is the resolved, immutable sensor calibration shared by every frame.
type Calibration struct {
	Camera            *transform.PinholeCameraModel
	Pattern           rimage.BayerPattern
	Rectifier         transform.RectifierConfig
	VehicleFromLidar  spatialmath.Extrinsic
	CameraFromVehicle spatialmath.Extrinsic
	CameraFromLidar   spatialmath.Extrinsic
}

// Calibration resolves the camera model and the extrinsic chain lidar -> vehicle -> camera.
func (c *Config) Calibration() (*Calibration, error) {
	model, err := c.Camera.Model()
	if err != nil {
		return nil, err
	}
	pattern, err := c.Camera.Pattern()
	if err != nil {
		return nil, err
	}
	rect, err := c.Camera.Rectifier()
	if err != nil {
		return nil, err
	}
	vehicleFromLidarPose, err := c.VehicleFromLidar.Pose()
	if err != nil {
		return nil, err
	}
	cameraFromVehiclePose, err := c.CameraFromVehicle.Pose()
	if err != nil {
		return nil, err
	}
	vehicleFromLidar := spatialmath.NewExtrinsic(LidarFrame, VehicleFrame, vehicleFromLidarPose)
	cameraFromVehicle := spatialmath.NewExtrinsic(VehicleFrame, CameraFrame, cameraFromVehiclePose)
	cameraFromLidar, err := spatialmath.ComposeExtrinsics(cameraFromVehicle, vehicleFromLidar)
	if err != nil {
		return nil, err
	}
	return &Calibration{
		Camera:            model,
		Pattern:           pattern,
		Rectifier:         rect,
		VehicleFromLidar:  vehicleFromLidar,
		CameraFromVehicle: cameraFromVehicle,
		CameraFromLidar:   cameraFromLidar,
	}, nil
}

func vec(v [3]float64) r3.Vector {
	return r3.Vector{X: v[0], Y: v[1], Z: v[2]}
}
