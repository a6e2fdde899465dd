package odometry

import (
	"context"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/vo/rimage"
	"go.viam.com/vo/rimage/transform"
	"go.viam.com/vo/spatialmath"
	"go.viam.com/vo/utils"
	"go.viam.com/vo/vision/keypoints"
)

// DefaultFallbackDepth is the range, in meters, given to features without a valid depth sample.
const DefaultFallbackDepth = 8.0

// MatchingWindowConfig sets the half sizes of the matching window and how a rotation guess shrinks it.
type MatchingWindowConfig struct {
	Width          int     `json:"width_px" yaml:"width_px"`
	Height         int     `json:"height_px" yaml:"height_px"`
	RollThreshold  float64 `json:"roll_threshold_rad" yaml:"roll_threshold_rad"`
	RollWidth      int     `json:"roll_width_px" yaml:"roll_width_px"`
	RollHeight     int     `json:"roll_height_px" yaml:"roll_height_px"`
	PitchThreshold float64 `json:"pitch_threshold_rad" yaml:"pitch_threshold_rad"`
	PitchHeight    int     `json:"pitch_height_px" yaml:"pitch_height_px"`
	YawThreshold   float64 `json:"yaw_threshold_rad" yaml:"yaw_threshold_rad"`
	YawWidth       int     `json:"yaw_width_px" yaml:"yaw_width_px"`
}

// DefaultMatchingWindowConfig returns a 300x200 px window, 120x120 under strong roll, 180 px high under
// pitch and 250 px wide under yaw.
func DefaultMatchingWindowConfig() MatchingWindowConfig {
	return MatchingWindowConfig{
		Width:          300,
		Height:         200,
		RollThreshold:  0.2,
		RollWidth:      120,
		RollHeight:     120,
		PitchThreshold: 0.12,
		PitchHeight:    180,
		YawThreshold:   0.12,
		YawWidth:       250,
	}
}

// CheckValid checks that every window is non-empty.
func (cfg MatchingWindowConfig) CheckValid() error {
	for name, v := range map[string]int{
		"width_px":        cfg.Width,
		"height_px":       cfg.Height,
		"roll_width_px":   cfg.RollWidth,
		"roll_height_px":  cfg.RollHeight,
		"pitch_height_px": cfg.PitchHeight,
		"yaw_width_px":    cfg.YawWidth,
	} {
		if v <= 0 {
			return errors.Errorf("matching window %s must be positive, got %d", name, v)
		}
	}
	return nil
}

// Select returns the window for a rotation guess. Roll takes precedence over pitch, pitch over yaw.
// A nil guess, or one whose R00 is below 0.1 and so carries no rotation, keeps the default window.
func (cfg MatchingWindowConfig) Select(guess mat.Matrix) (width, height int) {
	width, height = cfg.Width, cfg.Height
	if guess == nil {
		return width, height
	}
	if r, c := guess.Dims(); r != 3 || c != 3 || guess.At(0, 0) < 0.1 {
		return width, height
	}
	roll, pitch, yaw := spatialmath.ExtractRollPitchYaw(guess)
	switch {
	case absf(roll) > cfg.RollThreshold:
		width, height = cfg.RollWidth, cfg.RollHeight
	case absf(pitch) > cfg.PitchThreshold:
		height = cfg.PitchHeight
	case absf(yaw) > cfg.YawThreshold:
		width = cfg.YawWidth
	}
	return width, height
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// Features are the described keypoints of a frame together with their idealized pixels and 3D points,
// all index aligned.
type Features struct {
	KeyPoints   keypoints.KeyPoints
	Descriptors keypoints.Descriptors
	Ideal       []r2.Point
	Points      []r3.Vector
}

// Len returns the number of features.
func (f *Features) Len() int {
	if f == nil {
		return 0
	}
	return len(f.KeyPoints)
}

// CorrespondenceSet holds index aligned reference and current observations of the same scene points.
type CorrespondenceSet struct {
	Reference3D []r3.Vector
	Reference2D []r2.Point
	Current3D   []r3.Vector
	Current2D   []r2.Point
	// Matches gives, per correspondence, the current feature index (Idx1) and the reference one (Idx2).
	Matches []keypoints.DescriptorMatch
}

// Len returns the number of correspondences.
func (s *CorrespondenceSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Reference3D)
}

// Subset returns the correspondences at idx, in that order.
func (s *CorrespondenceSet) Subset(idx []int) *CorrespondenceSet {
	out := &CorrespondenceSet{}
	for _, i := range idx {
		out.Reference3D = append(out.Reference3D, s.Reference3D[i])
		out.Reference2D = append(out.Reference2D, s.Reference2D[i])
		out.Current3D = append(out.Current3D, s.Current3D[i])
		out.Current2D = append(out.Current2D, s.Current2D[i])
		if len(s.Matches) > i {
			out.Matches = append(out.Matches, s.Matches[i])
		}
	}
	return out
}

// CorrespondenceResult is a correspondence set with its matching diagnostics.
type CorrespondenceResult struct {
	Set *CorrespondenceSet
	// RawMatches counts current features that found a reference feature in the forward direction.
	RawMatches int
	// Candidates is the number of current features.
	Candidates int
}

// CorrespondenceBuilder turns described keypoints with depth into 3D features and matches them mutually.
type CorrespondenceBuilder struct {
	camera        *transform.IdealCamera
	window        MatchingWindowConfig
	fallbackDepth float64
}

// NewCorrespondenceBuilder returns a builder for the given camera model.
func NewCorrespondenceBuilder(camera *transform.IdealCamera, window MatchingWindowConfig, fallbackDepth float64,
) (*CorrespondenceBuilder, error) {
	if camera == nil {
		return nil, transform.NewNoIntrinsicsError("correspondence builder needs a camera")
	}
	if err := window.CheckValid(); err != nil {
		return nil, err
	}
	if !utils.IsFinitePositive(fallbackDepth) {
		return nil, errors.Errorf("fallback depth must be finite and positive, got %v", fallbackDepth)
	}
	return &CorrespondenceBuilder{camera: camera, window: window, fallbackDepth: fallbackDepth}, nil
}

// Features idealizes keypoints and back-projects them with depth. The depth is read at the raw keypoint
// pixel and the back-projection uses the idealized pixel and the projection intrinsics. An
// undistortion failure is returned as an error so callers can treat the frame as featureless.
func (cb *CorrespondenceBuilder) Features(kps keypoints.KeyPoints, descs keypoints.Descriptors, depth *rimage.DepthImage,
) (*Features, error) {
	if len(descs) != len(kps) {
		return nil, errors.Errorf("got %d descriptors for %d keypoints", len(descs), len(kps))
	}
	ideal, err := cb.camera.Undistort(kps.ToR2())
	if err != nil {
		return nil, errors.Wrap(err, "cannot idealize keypoints")
	}
	return &Features{
		KeyPoints:   kps,
		Descriptors: descs,
		Ideal:       ideal,
		Points:      BackProject(kps, ideal, depth, cb.camera.Projection, cb.fallbackDepth),
	}, nil
}

// BackProject lifts each idealized pixel to 3D with the depth sampled at the matching raw keypoint.
// Missing, non-finite or non-positive depth is replaced by fallback so that no point is dropped.
func BackProject(kps keypoints.KeyPoints, ideal []r2.Point, depth *rimage.DepthImage,
	projection *transform.PinholeCameraIntrinsics, fallback float64,
) []r3.Vector {
	out := make([]r3.Vector, len(kps))
	for i, kp := range kps {
		z := fallback
		if depth != nil {
			if d := depth.Get(kp.X, kp.Y); utils.IsFinitePositive(d) {
				z = d
			}
		}
		out[i] = projection.PixelToPoint(ideal[i].X, ideal[i].Y, z)
	}
	return out
}

// Build matches the current features against the reference ones inside the matching window chosen from
// the rotation guess and returns the mutual matches as a correspondence set.
func (cb *CorrespondenceBuilder) Build(ctx context.Context, reference, current *Features, rotationGuess mat.Matrix,
) (*CorrespondenceResult, error) {
	width, height := cb.window.Select(rotationGuess)
	forwardMask := keypoints.NewWindowedMatchingMask(current.KeyPoints, reference.KeyPoints, width, height)
	matches, err := keypoints.CrossCheckMatch(ctx, current.Descriptors, reference.Descriptors,
		forwardMask, forwardMask.Transposed())
	if err != nil {
		return nil, err
	}
	set := &CorrespondenceSet{Matches: matches.Mutual}
	for _, m := range matches.Mutual {
		set.Reference3D = append(set.Reference3D, reference.Points[m.Idx2])
		set.Reference2D = append(set.Reference2D, reference.Ideal[m.Idx2])
		set.Current3D = append(set.Current3D, current.Points[m.Idx1])
		set.Current2D = append(set.Current2D, current.Ideal[m.Idx1])
	}
	return &CorrespondenceResult{Set: set, RawMatches: matches.RawMatches(), Candidates: current.Len()}, nil
}
