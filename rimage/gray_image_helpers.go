package rimage

import (
	"image"
	"image/draw"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// MakeGray converts any image to an 8-bit luminance image whose bounds start at the origin.
func MakeGray(pic image.Image) *image.Gray {
	if g, ok := pic.(*image.Gray); ok && g.Bounds().Min == (image.Point{}) {
		return g
	}
	return toGray(imaging.Grayscale(pic))
}

// BlurGray returns a Gaussian smoothed copy of gray. sigma is the standard deviation in pixels.
func BlurGray(gray *image.Gray, sigma float64) *image.Gray {
	if sigma <= 0 {
		return toGray(imaging.Clone(gray))
	}
	return toGray(imaging.Blur(gray, sigma))
}

// OpenImage decodes an image file, the format being chosen from its contents.
func OpenImage(path string) (image.Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "error opening image %q", path)
	}
	return img, nil
}

// SameImgSize compares two images to see if they're the same size.
func SameImgSize(g1, g2 image.Image) bool {
	return g1.Bounds().Dx() == g2.Bounds().Dx() && g1.Bounds().Dy() == g2.Bounds().Dy()
}

func toGray(src *image.NRGBA) *image.Gray {
	b := src.Bounds()
	result := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(result, result.Bounds(), src, b.Min, draw.Src)
	return result
}
