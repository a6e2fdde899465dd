package rimage

import (
	"image"
	"image/color"
	"testing"

	"go.viam.com/test"
)

func TestMakeGray(t *testing.T) {
	img := image.NewRGBA(image.Rect(2, 2, 6, 6))
	for y := 2; y < 6; y++ {
		for x := 2; x < 6; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 200, B: 200, A: 255})
		}
	}
	gray := MakeGray(img)
	test.That(t, gray.Bounds(), test.ShouldResemble, image.Rect(0, 0, 4, 4))
	test.That(t, gray.GrayAt(0, 0).Y, test.ShouldEqual, 200)
	test.That(t, SameImgSize(img, gray), test.ShouldBeTrue)

	test.That(t, MakeGray(gray), test.ShouldEqual, gray)
}

func TestBlurGray(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 21, 21))
	gray.SetGray(10, 10, color.Gray{Y: 255})

	blurred := BlurGray(gray, 2)
	test.That(t, blurred.GrayAt(10, 10).Y, test.ShouldBeLessThan, 255)
	test.That(t, blurred.GrayAt(11, 10).Y, test.ShouldBeGreaterThan, 0)
	test.That(t, blurred.GrayAt(0, 0).Y, test.ShouldEqual, 0)

	copied := BlurGray(gray, 0)
	test.That(t, copied.Pix, test.ShouldResemble, gray.Pix)
}
