package transform

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"go.viam.com/avclean/utils"
)

// PinholeCameraIntrinsics holds the parameters necessary to do a perspective projection of a 3D scene to the 2D plane.
type PinholeCameraIntrinsics struct {
	Width  int     `json:"width_px"`
	Height int     `json:"height_px"`
	Fx     float64 `json:"fx"`
	Fy     float64 `json:"fy"`
	Ppx    float64 `json:"ppx"`
	Ppy    float64 `json:"ppy"`
}

// NewNoIntrinsicsError is used when the intrinsics are missing or unusable.
func NewNoIntrinsicsError(msg string) error {
	return utils.NewConfigurationError("intrinsic_parameters", "", msg)
}

// CheckValid checks if the fields for PinholeCameraIntrinsics have valid inputs.
func (params *PinholeCameraIntrinsics) CheckValid() error {
	if params == nil {
		return NewNoIntrinsicsError("Intrinsics do not exist")
	}
	if params.Width <= 0 || params.Height <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid size (%#v, %#v)", params.Width, params.Height))
	}
	if params.Fx <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid focal length Fx = %#v", params.Fx))
	}
	if params.Fy <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid focal length Fy = %#v", params.Fy))
	}
	if params.Ppx < 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid principal X point Ppx = %#v", params.Ppx))
	}
	if params.Ppy < 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid principal Y point Ppy = %#v", params.Ppy))
	}
	return nil
}

// NewPinholeCameraIntrinsicsFromJSONFile takes in a file path to a JSON and turns it into PinholeCameraIntrinsics.
func NewPinholeCameraIntrinsicsFromJSONFile(jsonPath string) (*PinholeCameraIntrinsics, error) {
	//nolint:gosec
	byteValue, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, errors.Wrap(err, "error reading JSON data")
	}
	intrinsics := &PinholeCameraIntrinsics{}
	if err := json.Unmarshal(byteValue, intrinsics); err != nil {
		return nil, errors.Wrap(err, "error parsing JSON string")
	}
	if err := intrinsics.CheckValid(); err != nil {
		return nil, err
	}
	return intrinsics, nil
}

// PointToPixel projects a camera frame point onto the image plane. Coordinates are not
// rounded. A point at zero depth projects to (-1, -1) so bounds checks reject it.
func (params *PinholeCameraIntrinsics) PointToPixel(x, y, z float64) (float64, float64) {
	if z != 0. {
		return (x/z)*params.Fx + params.Ppx, (y/z)*params.Fy + params.Ppy
	}
	return -1.0, -1.0
}

// InBounds reports whether (u, v) lies within [0, width) x [0, height).
func (params *PinholeCameraIntrinsics) InBounds(u, v float64) bool {
	return u >= 0 && v >= 0 && u < float64(params.Width) && v < float64(params.Height)
}

// PinholeCameraModel is the model of a pinhole camera. It is immutable once built.
type PinholeCameraModel struct {
	*PinholeCameraIntrinsics `json:"intrinsic_parameters"`
	Distortion               Distorter `json:"-"`
}

// NewPinholeCameraModel validates intrinsics and builds the distortion model.
func NewPinholeCameraModel(
	intrinsics *PinholeCameraIntrinsics,
	distortionType DistortionType,
	parameters []float64,
) (*PinholeCameraModel, error) {
	if err := intrinsics.CheckValid(); err != nil {
		return nil, err
	}
	distorter, err := NewDistorter(distortionType, parameters)
	if err != nil {
		return nil, err
	}
	copied := *intrinsics
	return &PinholeCameraModel{PinholeCameraIntrinsics: &copied, Distortion: distorter}, nil
}

// Key identifies the model for caching: intrinsics, distortion model and coefficients.
func (params *PinholeCameraModel) Key() string {
	in := params.PinholeCameraIntrinsics
	key := fmt.Sprintf("%dx%d|%g,%g,%g,%g", in.Width, in.Height, in.Fx, in.Fy, in.Ppx, in.Ppy)
	if params.Distortion == nil {
		return key + "|none"
	}
	return fmt.Sprintf("%s|%s%v", key, params.Distortion.ModelType(), params.Distortion.Parameters())
}

func (params *PinholeCameraModel) normalize(u, v float64) (float64, float64) {
	return (u - params.Ppx) / params.Fx, (v - params.Ppy) / params.Fy
}

func (params *PinholeCameraModel) denormalize(x, y float64) (float64, float64) {
	return x*params.Fx + params.Ppx, y*params.Fy + params.Ppy
}

// SourcePixel returns where in the distorted image the undistorted pixel (u, v) comes from.
// Forward models are evaluated directly. Models that map distorted to undistorted coordinates
// are inverted by fixed-point iteration. ok is false when the model gives no finite location.
func (params *PinholeCameraModel) SourcePixel(u, v float64, maxIterations int, tolerance float64) (r2.Point, bool) {
	if params.Distortion == nil {
		return r2.Point{X: u, Y: v}, true
	}
	x, y := params.normalize(u, v)
	switch params.Distortion.ModelType() {
	case BrownConradyDistortionType:
		x, y = params.Distortion.Transform(x, y)
	default:
		x, y, _ = FixedPointInverse(params.Distortion, x, y, maxIterations, tolerance)
	}
	sx, sy := params.denormalize(x, y)
	if !isFinite(sx) || !isFinite(sy) {
		return r2.Point{}, false
	}
	return r2.Point{X: sx, Y: sy}, true
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// UndistortPixel returns where a pixel of the distorted image lands once the lens is removed.
func (params *PinholeCameraModel) UndistortPixel(u, v float64, maxIterations int, tolerance float64) r2.Point {
	if params.Distortion == nil {
		return r2.Point{X: u, Y: v}
	}
	x, y := params.normalize(u, v)
	switch params.Distortion.ModelType() {
	case BrownConradyDistortionType:
		x, y, _ = FixedPointInverse(params.Distortion, x, y, maxIterations, tolerance)
	default:
		x, y = params.Distortion.Transform(x, y)
	}
	ux, uy := params.denormalize(x, y)
	return r2.Point{X: ux, Y: uy}
}
