package rimage

import (
	"image"
	"image/color"
	"math"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"
)

var (
	labelFontOnce sync.Once
	labelFont     *truetype.Font
)

func labelTypeface() *truetype.Font {
	labelFontOnce.Do(func() {
		f, err := truetype.Parse(goregular.TTF)
		if err != nil {
			panic(err)
		}
		labelFont = f
	})
	return labelFont
}

// labelBackdrop is drawn behind label text so it stays readable over any image.
var labelBackdrop = color.NRGBA{A: 0x99}

// DrawLabel writes text on a translucent dark box whose top left corner is at p and returns
// the box. Faces are built per call since truetype faces are not safe for concurrent use.
func DrawLabel(dc *gg.Context, text string, p image.Point, c color.Color, size float64) image.Rectangle {
	dc.SetFontFace(truetype.NewFace(labelTypeface(), &truetype.Options{Size: size}))
	w, h := dc.MeasureString(text)
	pad := size / 4
	box := image.Rect(p.X, p.Y, p.X+int(math.Ceil(w+2*pad)), p.Y+int(math.Ceil(h+2*pad)))

	dc.SetColor(labelBackdrop)
	dc.DrawRectangle(float64(box.Min.X), float64(box.Min.Y), float64(box.Dx()), float64(box.Dy()))
	dc.Fill()
	dc.SetColor(c)
	dc.DrawStringAnchored(text, float64(p.X)+pad, float64(p.Y)+pad, 0, 1)
	return box
}

// DrawPoint draws a filled dot centered on (x, y).
func DrawPoint(dc *gg.Context, x, y, radius float64, c color.Color) {
	dc.SetColor(c)
	dc.DrawCircle(x, y, radius)
	dc.Fill()
}
