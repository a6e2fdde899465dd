package rimage

import (
	"image"
	"image/color"
	"image/png"
	"math"
	"os"

	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// DepthImage is a dense range image with one float32 metric depth per pixel.
// Invalid measurements are stored as NaN.
type DepthImage struct {
	width  int
	height int
	data   []float32
}

// NewDepthImage returns a width x height depth image with every pixel invalid.
func NewDepthImage(width, height int) *DepthImage {
	data := make([]float32, width*height)
	for i := range data {
		data[i] = float32(math.NaN())
	}
	return &DepthImage{width: width, height: height, data: data}
}

// NewDepthImageFromSlice wraps row-major meters. The slice is used directly.
func NewDepthImageFromSlice(width, height int, data []float32) (*DepthImage, error) {
	if len(data) != width*height {
		return nil, errors.Errorf("depth data has %d values, expected %d for %dx%d", len(data), width*height, width, height)
	}
	return &DepthImage{width: width, height: height, data: data}, nil
}

// Width returns the horizontal size.
func (di *DepthImage) Width() int {
	return di.width
}

// Height returns the vertical size.
func (di *DepthImage) Height() int {
	return di.height
}

// Bounds returns the rectangle covered by the image.
func (di *DepthImage) Bounds() image.Rectangle {
	return image.Rect(0, 0, di.width, di.height)
}

// Contains reports whether (x, y) lies within the image.
func (di *DepthImage) Contains(x, y int) bool {
	return x >= 0 && y >= 0 && x < di.width && y < di.height
}

// Get returns the depth at (x, y) in meters, or NaN outside of the image.
func (di *DepthImage) Get(x, y int) float64 {
	if !di.Contains(x, y) {
		return math.NaN()
	}
	return float64(di.data[y*di.width+x])
}

// Set stores the depth at (x, y); points outside the image are ignored.
func (di *DepthImage) Set(x, y int, meters float64) {
	if !di.Contains(x, y) {
		return
	}
	di.data[y*di.width+x] = float32(meters)
}

// Fill sets every pixel to meters.
func (di *DepthImage) Fill(meters float64) {
	for i := range di.data {
		di.data[i] = float32(meters)
	}
}

// ValidMask returns an 8-bit mask that is 255 exactly where the depth is finite and positive.
func (di *DepthImage) ValidMask() *image.Gray {
	mask := image.NewGray(di.Bounds())
	for i, d := range di.data {
		v := float64(d)
		if !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0 {
			mask.Pix[i] = 255
		}
	}
	return mask
}

// NewDepthImageFromGray16 converts a 16-bit depth raster to meters using unitsPerMeter
// (1000 for millimeter sensors). Zero samples become invalid.
func NewDepthImageFromGray16(img image.Image, unitsPerMeter float64) (*DepthImage, error) {
	if unitsPerMeter <= 0 {
		return nil, errors.Errorf("units per meter must be positive, got %v", unitsPerMeter)
	}
	b := img.Bounds()
	di := NewDepthImage(b.Dx(), b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			raw, ok := color.Gray16Model.Convert(img.At(x, y)).(color.Gray16)
			if !ok || raw.Y == 0 {
				continue
			}
			di.Set(x-b.Min.X, y-b.Min.Y, float64(raw.Y)/unitsPerMeter)
		}
	}
	return di, nil
}

// ReadDepthPNG loads a 16-bit millimeter depth PNG such as the ones written by Kinect style sensors.
func ReadDepthPNG(path string) (*DepthImage, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "error opening depth image %q", path)
	}
	defer utils.UncheckedErrorFunc(f.Close)
	img, err := png.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "error decoding depth image %q", path)
	}
	return NewDepthImageFromGray16(img, 1000)
}
