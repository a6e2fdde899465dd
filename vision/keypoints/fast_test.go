package keypoints

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"go.viam.com/test"
)

func createTestImage() *image.Gray {
	rectImage := image.NewGray(image.Rect(0, 0, 300, 200))
	whiteRect := image.Rect(50, 30, 100, 150)
	white := color.Gray{255}
	black := color.Gray{0}
	draw.Draw(rectImage, rectImage.Bounds(), &image.Uniform{black}, image.Point{0, 0}, draw.Src)
	draw.Draw(rectImage, whiteRect, &image.Uniform{white}, image.Point{0, 0}, draw.Src)
	return rectImage
}

func closeTo(p, q image.Point, tol int) bool {
	return absInt(p.X-q.X) <= tol && absInt(p.Y-q.Y) <= tol
}

func TestComputeFASTRectangle(t *testing.T) {
	rectImage := createTestImage()
	corners, err := ComputeFAST(rectImage, nil, DefaultFASTConfig())
	test.That(t, err, test.ShouldBeNil)

	expected := []image.Point{{50, 30}, {99, 30}, {50, 149}, {99, 149}}
	test.That(t, len(corners), test.ShouldBeGreaterThanOrEqualTo, len(expected))
	for _, e := range expected {
		found := false
		for _, c := range corners {
			if closeTo(c.Point, e, 3) {
				found = true
			}
		}
		test.That(t, found, test.ShouldBeTrue)
	}
	for _, c := range corners {
		nearCorner := false
		for _, e := range expected {
			if closeTo(c.Point, e, 3) {
				nearCorner = true
			}
		}
		test.That(t, nearCorner, test.ShouldBeTrue)
		test.That(t, c.Score, test.ShouldBeGreaterThan, 0)
	}

	// the sharp corner itself wins the suppression
	var top ScoredKeyPoint
	for _, c := range corners {
		if closeTo(c.Point, expected[0], 3) {
			top = c
		}
	}
	test.That(t, top.Point, test.ShouldResemble, expected[0])
}

func TestComputeFASTMask(t *testing.T) {
	rectImage := createTestImage()
	mask := image.NewGray(rectImage.Bounds())
	corners, err := ComputeFAST(rectImage, mask, DefaultFASTConfig())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, corners, test.ShouldBeEmpty)

	// only the top half is valid
	draw.Draw(mask, image.Rect(0, 0, 300, 100), &image.Uniform{color.Gray{255}}, image.Point{}, draw.Src)
	corners, err = ComputeFAST(rectImage, mask, DefaultFASTConfig())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, corners, test.ShouldNotBeEmpty)
	for _, c := range corners {
		test.That(t, c.Point.Y, test.ShouldBeLessThan, 100)
	}

	_, err = ComputeFAST(rectImage, image.NewGray(image.Rect(0, 0, 10, 10)), DefaultFASTConfig())
	test.That(t, err, test.ShouldNotBeNil)

	_, err = ComputeFAST(rectImage, nil, FASTConfig{Threshold: 10, NMatchesCircle: 17})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestComputeFASTNoSuppression(t *testing.T) {
	rectImage := createTestImage()
	cfg := DefaultFASTConfig()
	suppressed, err := ComputeFAST(rectImage, nil, cfg)
	test.That(t, err, test.ShouldBeNil)
	cfg.NonMaxSuppression = false
	all, err := ComputeFAST(rectImage, nil, cfg)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(all), test.ShouldBeGreaterThan, len(suppressed))
}

func TestHasContiguousArc(t *testing.T) {
	var states [16]int8
	for i := 12; i < 16; i++ {
		states[i] = 1
	}
	for i := 0; i < 5; i++ {
		states[i] = 1
	}
	test.That(t, hasContiguousArc(states, 1, 9), test.ShouldBeTrue)
	test.That(t, hasContiguousArc(states, 1, 10), test.ShouldBeFalse)
	test.That(t, hasContiguousArc(states, -1, 1), test.ShouldBeFalse)
}

func TestRetainBestPerCell(t *testing.T) {
	corners := []ScoredKeyPoint{
		{Point: image.Point{1, 1}, Score: 5},
		{Point: image.Point{2, 2}, Score: 9},
		{Point: image.Point{3, 3}, Score: 7},
		{Point: image.Point{60, 1}, Score: 1},
		{Point: image.Point{60, 60}, Score: 4},
	}
	kps, err := RetainBestPerCell(corners, image.Point{100, 100}, GridConfig{MaxFeatures: 8, Cols: 2, Rows: 2})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, kps, test.ShouldResemble, KeyPoints{{2, 2}, {3, 3}, {60, 1}, {60, 60}})

	_, err = RetainBestPerCell(corners, image.Point{100, 100}, GridConfig{MaxFeatures: 3, Cols: 2, Rows: 2})
	test.That(t, err, test.ShouldNotBeNil)
	_, err = RetainBestPerCell(corners, image.Point{100, 100}, GridConfig{MaxFeatures: 3, Cols: 0, Rows: 2})
	test.That(t, err, test.ShouldNotBeNil)
}
