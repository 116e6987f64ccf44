// Package rimage holds image utilities: demosaicing, border handling and depth rasters.
package rimage

import (
	"image"
	"image/color"
	"strings"

	"go.viam.com/avclean/utils"
)

// BayerPattern names the 2x2 color filter tile, read left to right then top to bottom.
// "RGGB" means red at (0,0), green at (1,0) and (0,1), blue at (1,1).
type BayerPattern string

// The supported color filter array layouts.
const (
	BayerBGGR = BayerPattern("BGGR")
	BayerRGGB = BayerPattern("RGGB")
	BayerGRBG = BayerPattern("GRBG")
	BayerGBRG = BayerPattern("GBRG")
)

// ParseBayerPattern returns the pattern named by s, case-insensitively.
func ParseBayerPattern(s string) (BayerPattern, error) {
	p := BayerPattern(strings.ToUpper(s))
	if err := p.CheckValid(); err != nil {
		return "", err
	}
	return p, nil
}

// CheckValid returns UnsupportedPattern for anything but the four Bayer layouts.
func (p BayerPattern) CheckValid() error {
	switch p {
	case BayerBGGR, BayerRGGB, BayerGRBG, BayerGBRG:
		return nil
	default:
		return utils.NewUnsupportedPatternError(string(p))
	}
}

const (
	red = iota
	green
	blue
)

// channelAt returns which color the filter passes at (x, y) relative to the image origin.
func (p BayerPattern) channelAt(x, y int) int {
	switch p[(y&1)*2+(x&1)] {
	case 'R':
		return red
	case 'G':
		return green
	default:
		return blue
	}
}

// Demosaic reconstructs a color image from a single channel mosaic with bilinear interpolation:
// each missing channel is the mean of the neighbours in the surrounding 3x3 block that carry it.
// Borders are reflected without repeating the edge, which keeps the filter colour of every
// reflected neighbour. raw is read as 16 bit gray.
func Demosaic(raw image.Image, pattern BayerPattern) (*image.RGBA64, error) {
	if err := pattern.CheckValid(); err != nil {
		return nil, err
	}
	bounds := raw.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width < 2 || height < 2 {
		return nil, utils.NewConfigurationError("mosaic", bounds, "needs at least one full 2x2 tile")
	}

	values := grayValues(raw)
	out := image.NewRGBA64(image.Rect(0, 0, width, height))
	if err := utils.ParallelForEachPixel(image.Point{width, height}, func(x, y int) {
		var sums [3]uint32
		var counts [3]uint32
		for dy := -1; dy <= 1; dy++ {
			yy := utils.ReflectInt(y+dy, height)
			for dx := -1; dx <= 1; dx++ {
				xx := utils.ReflectInt(x+dx, width)
				c := pattern.channelAt(xx, yy)
				sums[c] += uint32(values[yy*width+xx])
				counts[c]++
			}
		}

		var rgb [3]uint16
		own := pattern.channelAt(x, y)
		for c := range rgb {
			if c == own {
				rgb[c] = values[y*width+x]
				continue
			}
			rgb[c] = uint16((sums[c] + counts[c]/2) / counts[c])
		}
		out.SetRGBA64(x, y, color.RGBA64{R: rgb[red], G: rgb[green], B: rgb[blue], A: 0xffff})
	}); err != nil {
		return nil, err
	}
	return out, nil
}

func grayValues(raw image.Image) []uint16 {
	bounds := raw.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	values := make([]uint16, width*height)
	switch img := raw.(type) {
	case *image.Gray16:
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				values[y*width+x] = img.Gray16At(bounds.Min.X+x, bounds.Min.Y+y).Y
			}
		}
	case *image.Gray:
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				v := uint16(img.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y)
				values[y*width+x] = v<<8 | v
			}
		}
	default:
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				g, _ := color.Gray16Model.Convert(raw.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray16)
				values[y*width+x] = g.Y
			}
		}
	}
	return values
}

// Mosaic samples a color image through the pattern's filter, producing the single channel
// image a sensor with that filter would record. It is the inverse of Demosaic on flat regions.
func Mosaic(img image.Image, pattern BayerPattern) (*image.Gray16, error) {
	if err := pattern.CheckValid(); err != nil {
		return nil, err
	}
	bounds := img.Bounds()
	out := image.NewGray16(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			c, _ := color.RGBA64Model.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.RGBA64)
			var v uint16
			switch pattern.channelAt(x, y) {
			case red:
				v = c.R
			case green:
				v = c.G
			default:
				v = c.B
			}
			out.SetGray16(x, y, color.Gray16{Y: v})
		}
	}
	return out, nil
}
