package rimage

import (
	"image"
	"image/color"
	"math"

	"go.viam.com/avclean/utils"
)

// BorderPolicy decides what a lookup outside the image returns.
type BorderPolicy string

// The supported border policies.
const (
	BorderBlack  = BorderPolicy("black")
	BorderClamp  = BorderPolicy("clamp")
	BorderMirror = BorderPolicy("mirror")
)

// ParseBorderPolicy returns the policy named by s. The empty string means black.
func ParseBorderPolicy(s string) (BorderPolicy, error) {
	switch p := BorderPolicy(s); p {
	case "":
		return BorderBlack, nil
	case BorderBlack, BorderClamp, BorderMirror:
		return p, nil
	default:
		return "", utils.NewConfigurationError("border", s, "must be one of black, clamp, mirror")
	}
}

// Resolve maps i into [0, n). It returns false when the policy fills the location with black.
func (b BorderPolicy) Resolve(i, n int) (int, bool) {
	if i >= 0 && i < n {
		return i, true
	}
	switch b {
	case BorderClamp:
		return utils.ClampInt(i, 0, n-1), true
	case BorderMirror:
		return utils.ReflectInt(i, n), true
	default:
		return 0, false
	}
}

// SampleBilinear returns the bilinearly interpolated color of img at the continuous location
// (x, y), where integer coordinates are pixel centers. Under the black policy any location
// outside [0, w-1] x [0, h-1] is black.
func SampleBilinear(img *image.RGBA64, x, y float64, policy BorderPolicy) color.RGBA64 {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return color.RGBA64{}
	}
	if policy != BorderClamp && policy != BorderMirror {
		if x < 0 || y < 0 || x > float64(width-1) || y > float64(height-1) {
			return color.RGBA64{}
		}
	}

	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	fx := x - float64(x0)
	fy := y - float64(y0)

	var acc [4]float64
	weights := [4]float64{(1 - fx) * (1 - fy), fx * (1 - fy), (1 - fx) * fy, fx * fy}
	offsets := [4]image.Point{{0, 0}, {1, 0}, {0, 1}, {1, 1}}
	for i, off := range offsets {
		if weights[i] == 0 {
			continue
		}
		xx, okX := policy.Resolve(x0+off.X, width)
		yy, okY := policy.Resolve(y0+off.Y, height)
		if !okX || !okY {
			continue
		}
		c := img.RGBA64At(bounds.Min.X+xx, bounds.Min.Y+yy)
		acc[0] += weights[i] * float64(c.R)
		acc[1] += weights[i] * float64(c.G)
		acc[2] += weights[i] * float64(c.B)
		acc[3] += weights[i] * float64(c.A)
	}
	return color.RGBA64{
		R: uint16(math.Round(acc[0])),
		G: uint16(math.Round(acc[1])),
		B: uint16(math.Round(acc[2])),
		A: uint16(math.Round(acc[3])),
	}
}
