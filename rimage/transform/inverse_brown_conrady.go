package transform

import (
	"math"
)

// InverseBrownConrady undoes the Brown-Conrady model: Transform takes distorted normalized
// coordinates to the undistorted ones that would produce them, solved by Newton-Raphson.
// The coefficients are those of the forward model.
type InverseBrownConrady struct {
	RadialK1     float64 `json:"rk1"`
	RadialK2     float64 `json:"rk2"`
	RadialK3     float64 `json:"rk3"`
	TangentialP1 float64 `json:"tp1"`
	TangentialP2 float64 `json:"tp2"`
}

// NewInverseBrownConrady takes in a slice of floats that will be passed into the struct in order.
func NewInverseBrownConrady(inp []float64) (*InverseBrownConrady, error) {
	params, err := fillParameters("inverse_brown_conrady", inp, 5)
	if err != nil {
		return nil, err
	}
	ibc := &InverseBrownConrady{params[0], params[1], params[2], params[3], params[4]}
	if err := ibc.CheckValid(); err != nil {
		return nil, err
	}
	return ibc, nil
}

// CheckValid checks if the fields for InverseBrownConrady have valid inputs.
func (ibc *InverseBrownConrady) CheckValid() error {
	if ibc == nil {
		return InvalidDistortionError("InverseBrownConrady shaped distortion_parameters not provided")
	}
	for _, p := range ibc.Parameters() {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return InvalidDistortionError("coefficients must be finite")
		}
	}
	return nil
}

// ModelType returns the type of distortion model.
func (ibc *InverseBrownConrady) ModelType() DistortionType {
	return InverseBrownConradyDistortionType
}

// Parameters returns the parameters of the distortion model as a list of floats.
func (ibc *InverseBrownConrady) Parameters() []float64 {
	if ibc == nil {
		return []float64{}
	}
	return []float64{ibc.RadialK1, ibc.RadialK2, ibc.RadialK3, ibc.TangentialP1, ibc.TangentialP2}
}

// Transform solves brownConrady(x_u, y_u) = (xd, yd) for the undistorted point.
func (ibc *InverseBrownConrady) Transform(xd, yd float64) (float64, float64) {
	if ibc == nil {
		return xd, yd
	}
	k1, k2, k3 := ibc.RadialK1, ibc.RadialK2, ibc.RadialK3
	p1, p2 := ibc.TangentialP1, ibc.TangentialP2

	// Start with the distorted point as initial guess
	xu, yu := xd, yd
	const tolerance = 1e-10
	for i := 0; i < DefaultMaxIterations; i++ {
		xdEst, ydEst := brownConrady(k1, k2, k3, p1, p2, xu, yu)
		errX := xdEst - xd
		errY := ydEst - yd
		if errX*errX+errY*errY < tolerance*tolerance {
			break
		}

		r2 := xu*xu + yu*yu
		r4 := r2 * r2
		radDist := 1.0 + k1*r2 + k2*r4 + k3*r4*r2
		dRad := 2.0 * (k1 + 2.0*k2*r2 + 3.0*k3*r4)

		// J = [[dxd/dxu, dxd/dyu], [dyd/dxu, dyd/dyu]]
		dxdDxu := radDist + xu*xu*dRad + 2.0*p1*yu + 6.0*p2*xu
		dxdDyu := xu*yu*dRad + 2.0*p1*xu + 2.0*p2*yu
		dydDxu := yu*xu*dRad + 2.0*p2*yu + 2.0*p1*xu
		dydDyu := radDist + yu*yu*dRad + 2.0*p2*xu + 6.0*p1*yu

		det := dxdDxu*dydDyu - dxdDyu*dydDxu
		if det == 0 {
			break
		}
		xu -= (dydDyu*errX - dxdDyu*errY) / det
		yu -= (-dydDxu*errX + dxdDxu*errY) / det
	}
	return xu, yu
}
