// Package transform holds camera models, lens distortion, image rectification and projection
// of point clouds into camera images.
package transform

import (
	"fmt"

	"go.viam.com/avclean/utils"
)

// DistortionType is the name of the distortion model.
type DistortionType string

const (
	// BrownConradyDistortionType maps undistorted normalized coordinates to distorted ones.
	BrownConradyDistortionType = DistortionType("brown_conrady")
	// InverseBrownConradyDistortionType maps distorted normalized coordinates to undistorted ones.
	InverseBrownConradyDistortionType = DistortionType("inverse_brown_conrady")
	// NoneDistortionType is an ideal pinhole.
	NoneDistortionType = DistortionType("none")
)

// Distorter is a lens model over normalized image coordinates.
type Distorter interface {
	ModelType() DistortionType
	CheckValid() error
	Parameters() []float64
	Transform(x, y float64) (float64, float64)
}

// InvalidDistortionError is used when the distortion_parameters are invalid.
func InvalidDistortionError(msg string) error {
	return utils.NewConfigurationError("distortion_parameters", "", msg)
}

// NewDistorter returns a Distorter given a valid DistortionType and its parameters.
func NewDistorter(distortionType DistortionType, parameters []float64) (Distorter, error) {
	switch distortionType {
	case BrownConradyDistortionType:
		return NewBrownConrady(parameters)
	case InverseBrownConradyDistortionType:
		return NewInverseBrownConrady(parameters)
	case NoneDistortionType, "":
		return nil, nil
	default:
		return nil, utils.NewConfigurationError("distortion model", distortionType, "unknown model")
	}
}

// Iteration bounds used when a distortion has to be inverted numerically.
const (
	DefaultMaxIterations = 20
	DefaultTolerance     = 1e-9
)

// FixedPointInverse finds p such that d.Transform(p) equals (x, y), starting from (x, y) and
// iterating p <- p - (d(p) - target). It stops after maxIterations or once the step is below
// tolerance. The second return value reports convergence.
func FixedPointInverse(d Distorter, x, y float64, maxIterations int, tolerance float64) (float64, float64, bool) {
	if d == nil {
		return x, y, true
	}
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	px, py := x, y
	for i := 0; i < maxIterations; i++ {
		dx, dy := d.Transform(px, py)
		ex, ey := dx-x, dy-y
		px -= ex
		py -= ey
		if ex*ex+ey*ey <= tolerance*tolerance {
			return px, py, true
		}
	}
	return px, py, false
}

// fillParameters pads inp with zeros up to n entries.
func fillParameters(name string, inp []float64, n int) ([]float64, error) {
	if len(inp) > n {
		return nil, InvalidDistortionError(fmt.Sprintf("%s expects at most %d parameters, got %d", name, n, len(inp)))
	}
	out := make([]float64, n)
	copy(out, inp)
	return out, nil
}
