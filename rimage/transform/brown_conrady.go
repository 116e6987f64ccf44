package transform

import (
	"math"
)

// BrownConrady is the radial and tangential lens model of Brown (1966). Transform takes
// undistorted normalized coordinates to where the lens images them:
//
//	x_d = x_u * (1 + k1*r² + k2*r⁴ + k3*r⁶) + 2*p1*x_u*y_u + p2*(r² + 2*x_u²)
//	y_d = y_u * (1 + k1*r² + k2*r⁴ + k3*r⁶) + 2*p2*x_u*y_u + p1*(r² + 2*y_u²)
type BrownConrady struct {
	RadialK1     float64 `json:"rk1"`
	RadialK2     float64 `json:"rk2"`
	RadialK3     float64 `json:"rk3"`
	TangentialP1 float64 `json:"tp1"`
	TangentialP2 float64 `json:"tp2"`
}

// NewBrownConrady takes the parameters k1, k2, k3, p1, p2 in order. Missing values are 0.
func NewBrownConrady(inp []float64) (*BrownConrady, error) {
	params, err := fillParameters("brown_conrady", inp, 5)
	if err != nil {
		return nil, err
	}
	bc := &BrownConrady{params[0], params[1], params[2], params[3], params[4]}
	if err := bc.CheckValid(); err != nil {
		return nil, err
	}
	return bc, nil
}

// CheckValid checks that every coefficient is finite.
func (bc *BrownConrady) CheckValid() error {
	if bc == nil {
		return InvalidDistortionError("BrownConrady shaped distortion_parameters not provided")
	}
	for _, p := range bc.Parameters() {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return InvalidDistortionError("coefficients must be finite")
		}
	}
	return nil
}

// ModelType returns the type of distortion model.
func (bc *BrownConrady) ModelType() DistortionType {
	return BrownConradyDistortionType
}

// Parameters returns the parameters of the distortion model as a list of floats.
func (bc *BrownConrady) Parameters() []float64 {
	if bc == nil {
		return []float64{}
	}
	return []float64{bc.RadialK1, bc.RadialK2, bc.RadialK3, bc.TangentialP1, bc.TangentialP2}
}

// Transform distorts the normalized point (x, y).
func (bc *BrownConrady) Transform(x, y float64) (float64, float64) {
	if bc == nil {
		return x, y
	}
	return brownConrady(bc.RadialK1, bc.RadialK2, bc.RadialK3, bc.TangentialP1, bc.TangentialP2, x, y)
}

func brownConrady(k1, k2, k3, p1, p2, x, y float64) (float64, float64) {
	r2 := x*x + y*y
	r4 := r2 * r2
	r6 := r4 * r2
	radDist := 1.0 + k1*r2 + k2*r4 + k3*r6
	tanDistX := 2.0*p1*x*y + p2*(r2+2.0*x*x)
	tanDistY := 2.0*p2*x*y + p1*(r2+2.0*y*y)
	return x*radDist + tanDistX, y*radDist + tanDistY
}
