package rimage

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"

	"go.viam.com/test"

	"go.viam.com/avclean/utils"
)

func TestBorderResolve(t *testing.T) {
	i, ok := BorderBlack.Resolve(-1, 5)
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, i, test.ShouldEqual, 0)

	i, ok = BorderClamp.Resolve(-3, 5)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, i, test.ShouldEqual, 0)
	i, _ = BorderClamp.Resolve(9, 5)
	test.That(t, i, test.ShouldEqual, 4)

	i, ok = BorderMirror.Resolve(-1, 5)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, i, test.ShouldEqual, 1)
	i, _ = BorderMirror.Resolve(5, 5)
	test.That(t, i, test.ShouldEqual, 3)

	i, ok = BorderBlack.Resolve(2, 5)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, i, test.ShouldEqual, 2)
}

func TestParseBorderPolicy(t *testing.T) {
	p, err := ParseBorderPolicy("")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p, test.ShouldEqual, BorderBlack)
	p, err = ParseBorderPolicy("mirror")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p, test.ShouldEqual, BorderMirror)
	_, err = ParseBorderPolicy("wrap")
	test.That(t, errors.Is(err, utils.ErrConfiguration), test.ShouldBeTrue)
}

func TestSampleBilinear(t *testing.T) {
	img := image.NewRGBA64(image.Rect(0, 0, 2, 1))
	img.SetRGBA64(0, 0, color.RGBA64{R: 0, A: 0xffff})
	img.SetRGBA64(1, 0, color.RGBA64{R: 1000, A: 0xffff})

	test.That(t, SampleBilinear(img, 0.25, 0, BorderBlack).R, test.ShouldEqual, uint16(250))
	test.That(t, SampleBilinear(img, 1, 0, BorderBlack).R, test.ShouldEqual, uint16(1000))
	test.That(t, SampleBilinear(img, 1.5, 0, BorderBlack), test.ShouldResemble, color.RGBA64{})
	test.That(t, SampleBilinear(img, 1.5, 0, BorderClamp).R, test.ShouldEqual, uint16(1000))
	test.That(t, SampleBilinear(img, -4, 0, BorderClamp).R, test.ShouldEqual, uint16(0))
	// Mirroring 1.5 between 1 and 2->0 gives halfway between 1000 and 0.
	test.That(t, SampleBilinear(img, 1.5, 0, BorderMirror).R, test.ShouldEqual, uint16(500))
	test.That(t, SampleBilinear(img, math.Inf(-1), 0, BorderClamp), test.ShouldResemble, color.RGBA64{})
	test.That(t, SampleBilinear(img, 0, math.NaN(), BorderMirror), test.ShouldResemble, color.RGBA64{})
}

func TestDepthMap(t *testing.T) {
	dm := NewEmptyDepthMap(3, 2)
	test.That(t, dm.HasData(), test.ShouldBeTrue)
	min, max := dm.MinMax()
	test.That(t, min, test.ShouldEqual, 0.)
	test.That(t, max, test.ShouldEqual, 0.)

	dm.SetNearest(1, 1, 5)
	dm.SetNearest(1, 1, 7)
	dm.SetNearest(1, 1, 3)
	dm.Set(0, 0, 9)
	test.That(t, dm.GetDepth(1, 1), test.ShouldEqual, 3.)
	test.That(t, dm.Filled(), test.ShouldEqual, 2)
	min, max = dm.MinMax()
	test.That(t, min, test.ShouldEqual, 3.)
	test.That(t, max, test.ShouldEqual, 9.)

	pic := dm.ToPrettyPicture(0, 100)
	test.That(t, pic.Bounds(), test.ShouldResemble, image.Rect(0, 0, 3, 2))
	_, _, _, a := pic.At(2, 1).RGBA()
	test.That(t, a, test.ShouldEqual, uint32(0))
	_, _, _, a = pic.At(1, 1).RGBA()
	test.That(t, a, test.ShouldEqual, uint32(0xffff))
}
