package utils

import (
	"image"
	"sync/atomic"
	"testing"

	"go.viam.com/test"
)

func TestParallelForEachPixel(t *testing.T) {
	rect := image.Rect(3, 2, 40, 17)
	visits := make([]int32, rect.Dx()*rect.Dy())
	ParallelForEachPixel(rect, func(x, y int) {
		atomic.AddInt32(&visits[(y-rect.Min.Y)*rect.Dx()+x-rect.Min.X], 1)
	})
	for _, v := range visits {
		test.That(t, v, test.ShouldEqual, 1)
	}

	prev := ParallelFactor
	defer func() { ParallelFactor = prev }()
	ParallelFactor = 64
	count := int32(0)
	ParallelForEachPixel(image.Rect(0, 0, 5, 3), func(x, y int) {
		atomic.AddInt32(&count, 1)
	})
	test.That(t, count, test.ShouldEqual, 15)

	ParallelForEachPixel(image.Rectangle{}, func(x, y int) {
		t.Fatal("empty rectangles have no pixels")
	})
}
