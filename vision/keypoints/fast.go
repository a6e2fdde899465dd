package keypoints

import (
	"image"
	"sort"

	"github.com/pkg/errors"

	"go.viam.com/vo/utils"
)

// circleOffsets is the Bresenham circle of radius 3 used by the FAST segment test, clockwise from the top.
var circleOffsets = [16]image.Point{
	{0, -3}, {1, -3}, {2, -2}, {3, -1}, {3, 0}, {3, 1}, {2, 2}, {1, 3},
	{0, 3}, {-1, 3}, {-2, 2}, {-3, 1}, {-3, 0}, {-3, -1}, {-2, -2}, {-1, -3},
}

const fastRadius = 3

// FASTConfig holds the parameters of the FAST segment test.
type FASTConfig struct {
	Threshold         int  `json:"threshold" yaml:"threshold"`
	NMatchesCircle    int  `json:"n_matches_circle" yaml:"n_matches_circle"`
	NonMaxSuppression bool `json:"non_max_suppression" yaml:"non_max_suppression"`
}

// DefaultFASTConfig returns a FAST-9 test with threshold 10 and non-maximum suppression.
func DefaultFASTConfig() FASTConfig {
	return FASTConfig{Threshold: 10, NMatchesCircle: 9, NonMaxSuppression: true}
}

// ScoredKeyPoint is a corner with its FAST strength.
type ScoredKeyPoint struct {
	Point image.Point
	Score int
}

// ComputeFAST runs the segment test on every pixel admitted by mask and returns the corners
// in raster order.
func ComputeFAST(img *image.Gray, mask *image.Gray, cfg FASTConfig) ([]ScoredKeyPoint, error) {
	if cfg.NMatchesCircle < 1 || cfg.NMatchesCircle > len(circleOffsets) {
		return nil, errors.Errorf("n_matches_circle must be in [1, 16], got %d", cfg.NMatchesCircle)
	}
	b := img.Bounds()
	if mask != nil && (mask.Bounds().Dx() != b.Dx() || mask.Bounds().Dy() != b.Dy()) {
		return nil, errors.Errorf("mask size %v does not match image size %v", mask.Bounds().Size(), b.Size())
	}
	w, h := b.Dx(), b.Dy()
	// zero marks a non-corner, corner scores are always positive
	scores := make([]int, w*h)
	utils.ParallelForEachPixel(image.Rect(fastRadius, fastRadius, w-fastRadius, h-fastRadius), func(x, y int) {
		if mask != nil && mask.GrayAt(mask.Bounds().Min.X+x, mask.Bounds().Min.Y+y).Y == 0 {
			return
		}
		if score, ok := segmentTest(img, b.Min.X+x, b.Min.Y+y, cfg); ok {
			scores[y*w+x] = score
		}
	})
	var corners []ScoredKeyPoint
	for y := fastRadius; y < h-fastRadius; y++ {
		for x := fastRadius; x < w-fastRadius; x++ {
			if s := scores[y*w+x]; s > 0 {
				corners = append(corners, ScoredKeyPoint{Point: image.Point{x, y}, Score: s})
			}
		}
	}
	if !cfg.NonMaxSuppression {
		return corners, nil
	}
	kept := corners[:0]
	for _, c := range corners {
		if isLocalMax(scores, w, h, c) {
			kept = append(kept, c)
		}
	}
	return kept, nil
}

// isLocalMax keeps a corner that is not beaten in its 3x3 neighborhood. Ties are resolved in favour
// of the earlier pixel in raster order.
func isLocalMax(scores []int, w, h int, c ScoredKeyPoint) bool {
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			x, y := c.Point.X+dx, c.Point.Y+dy
			if x < 0 || y < 0 || x >= w || y >= h {
				continue
			}
			s := scores[y*w+x]
			if s > c.Score || (s == c.Score && (dy < 0 || (dy == 0 && dx < 0))) {
				return false
			}
		}
	}
	return true
}

// segmentTest reports whether (x, y) has NMatchesCircle contiguous circle pixels all brighter or all
// darker than the center by more than the threshold. The score is the larger of the summed
// excess brightness and darkness over the circle.
func segmentTest(img *image.Gray, x, y int, cfg FASTConfig) (int, bool) {
	center := int(img.GrayAt(x, y).Y)
	var states [16]int8
	sumBright, sumDark := 0, 0
	for i, off := range circleOffsets {
		d := int(img.GrayAt(x+off.X, y+off.Y).Y) - center
		switch {
		case d > cfg.Threshold:
			states[i] = 1
			sumBright += d - cfg.Threshold
		case d < -cfg.Threshold:
			states[i] = -1
			sumDark += -d - cfg.Threshold
		}
	}
	if !hasContiguousArc(states, 1, cfg.NMatchesCircle) && !hasContiguousArc(states, -1, cfg.NMatchesCircle) {
		return 0, false
	}
	if sumBright > sumDark {
		return sumBright, true
	}
	return sumDark, true
}

func hasContiguousArc(states [16]int8, want int8, n int) bool {
	run := 0
	// walk the circle twice so that arcs wrapping past the start are counted
	for i := 0; i < 2*len(states); i++ {
		if states[i%len(states)] == want {
			run++
			if run >= n {
				return true
			}
		} else {
			run = 0
		}
	}
	return false
}

// sortByScore orders corners strongest first, raster order among equals.
func sortByScore(corners []ScoredKeyPoint) {
	sort.SliceStable(corners, func(i, j int) bool {
		return corners[i].Score > corners[j].Score
	})
}
