package rimage

import (
	"image"
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// DepthMap is a sparse per-pixel depth raster in meters. Zero means no data.
type DepthMap struct {
	width  int
	height int

	data []float64
}

// NewEmptyDepthMap returns a depth map with no data.
func NewEmptyDepthMap(width, height int) *DepthMap {
	return &DepthMap{
		width:  width,
		height: height,
		data:   make([]float64, width*height),
	}
}

// HasData reports whether the map has a non-zero size.
func (dm *DepthMap) HasData() bool {
	return dm.width > 0 && dm.data != nil
}

// Width returns the horizontal size.
func (dm *DepthMap) Width() int {
	return dm.width
}

// Height returns the vertical size.
func (dm *DepthMap) Height() int {
	return dm.height
}

// GetDepth returns the depth at (x, y), or 0 if there is none.
func (dm *DepthMap) GetDepth(x, y int) float64 {
	return dm.data[y*dm.width+x]
}

// Set overwrites the depth at (x, y).
func (dm *DepthMap) Set(x, y int, val float64) {
	dm.data[y*dm.width+x] = val
}

// SetNearest keeps the smaller of the current and the given depth at (x, y).
func (dm *DepthMap) SetNearest(x, y int, val float64) {
	k := y*dm.width + x
	if cur := dm.data[k]; cur == 0 || val < cur {
		dm.data[k] = val
	}
}

// Filled returns the number of pixels with data.
func (dm *DepthMap) Filled() int {
	n := 0
	for _, z := range dm.data {
		if z > 0 {
			n++
		}
	}
	return n
}

// MinMax returns the smallest and largest depths present. Both are 0 for an empty map.
func (dm *DepthMap) MinMax() (float64, float64) {
	min := math.Inf(1)
	max := 0.0
	for _, z := range dm.data {
		if z == 0 {
			continue
		}
		if z < min {
			min = z
		}
		if z > max {
			max = z
		}
	}
	if math.IsInf(min, 1) {
		return 0, 0
	}
	return min, max
}

// DepthColor maps z within [min, max] onto a hue ramp, near in red and far in blue.
func DepthColor(z, min, max float64) color.Color {
	span := max - min
	ratio := 0.0
	if span > 0 {
		ratio = (math.Min(math.Max(z, min), max) - min) / span
	}
	hue := 30 + (200.0 * ratio)
	return colorful.Hsv(hue, 1.0, 1.0)
}

// ToPrettyPicture colors every pixel with data by its depth, clipped to [hardMin, hardMax].
func (dm *DepthMap) ToPrettyPicture(hardMin, hardMax float64) image.Image {
	min, max := dm.MinMax()
	if min < hardMin {
		min = hardMin
	}
	if max > hardMax {
		max = hardMax
	}

	img := image.NewRGBA(image.Rect(0, 0, dm.Width(), dm.Height()))
	for y := 0; y < dm.Height(); y++ {
		for x := 0; x < dm.Width(); x++ {
			z := dm.GetDepth(x, y)
			if z == 0 {
				continue
			}
			img.Set(x, y, DepthColor(z, min, max))
		}
	}
	return img
}
