package rimage

import (
	"image"
	"image/color"
	"sync"
	"testing"

	"github.com/fogleman/gg"
	"go.viam.com/test"
)

func TestDrawLabel(t *testing.T) {
	dc := gg.NewContext(200, 40)
	dc.SetColor(color.White)
	dc.Clear()

	box := DrawLabel(dc, "frame_000003_300", image.Point{10, 5}, color.White, 12)
	test.That(t, box.Min, test.ShouldResemble, image.Point{10, 5})
	test.That(t, box.Dx(), test.ShouldBeGreaterThan, 12)
	test.That(t, box.Dy(), test.ShouldBeGreaterThan, 6)
	test.That(t, box.Max.X, test.ShouldBeLessThan, 200)

	inside := color.RGBAModel.Convert(dc.Image().At(box.Min.X+1, box.Min.Y+1)).(color.RGBA)
	test.That(t, inside.R, test.ShouldBeLessThan, uint8(0xff))
	outside := color.RGBAModel.Convert(dc.Image().At(box.Max.X+5, box.Min.Y+1)).(color.RGBA)
	test.That(t, outside, test.ShouldResemble, color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff})
}

func TestDrawLabelConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			DrawLabel(gg.NewContext(80, 20), "label", image.Point{}, color.Black, 10)
		}()
	}
	wg.Wait()
}

func TestDrawPoint(t *testing.T) {
	dc := gg.NewContext(10, 10)
	DrawPoint(dc, 5, 5, 2, color.RGBA{R: 0xff, A: 0xff})
	test.That(t, color.RGBAModel.Convert(dc.Image().At(5, 5)), test.ShouldResemble, color.RGBA{R: 0xff, A: 0xff})
	test.That(t, color.RGBAModel.Convert(dc.Image().At(0, 0)), test.ShouldResemble, color.RGBA{})
}
