// Package keypoints contains the feature pipeline used by visual odometry:
// - FAST keypoints, spread over the image by a grid
// - BRIEF binary descriptors
// - windowed Hamming matching with a mutual consistency check
package keypoints

import (
	"image"

	"github.com/golang/geo/r2"
	"github.com/samber/lo"
)

type (
	// KeyPoints is a slice of image.Point that contains several kps.
	KeyPoints []image.Point
	// Descriptor is a packed binary descriptor, 64 bits per word.
	Descriptor []uint64
	// Descriptors holds one Descriptor per keypoint, index aligned.
	Descriptors []Descriptor
)

// FeatureExtractor is the capability used to find and describe features on a gray image.
// Detect must only return keypoints where mask is non-zero (a nil mask admits every pixel),
// and Describe must return exactly one descriptor per input keypoint.
type FeatureExtractor interface {
	Detect(gray *image.Gray, mask *image.Gray) (KeyPoints, error)
	Describe(gray *image.Gray, kps KeyPoints) (Descriptors, error)
}

// ToR2 converts keypoints to floating point pixel coordinates.
func (kps KeyPoints) ToR2() []r2.Point {
	return lo.Map(kps, func(p image.Point, _ int) r2.Point {
		return r2.Point{X: float64(p.X), Y: float64(p.Y)}
	})
}
