package keypoints

import (
	"image"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/vo/rimage"
)

// FASTBRIEFConfig configures the default FeatureExtractor.
type FASTBRIEFConfig struct {
	FAST  FASTConfig  `json:"fast" yaml:"fast"`
	Grid  GridConfig  `json:"grid" yaml:"grid"`
	BRIEF BRIEFConfig `json:"brief" yaml:"brief"`
}

// DefaultFASTBRIEFConfig returns the grid adapted FAST-9 detector with 512 bit BRIEF descriptors.
func DefaultFASTBRIEFConfig() FASTBRIEFConfig {
	return FASTBRIEFConfig{FAST: DefaultFASTConfig(), Grid: DefaultGridConfig(), BRIEF: DefaultBRIEFConfig()}
}

// CheckValid checks the detector and descriptor settings.
func (cfg FASTBRIEFConfig) CheckValid() error {
	if cfg.FAST.NMatchesCircle < 1 || cfg.FAST.NMatchesCircle > 16 {
		return errors.Errorf("n_matches_circle must be in [1, 16], got %d", cfg.FAST.NMatchesCircle)
	}
	if err := cfg.Grid.CheckValid(); err != nil {
		return err
	}
	return cfg.BRIEF.CheckValid()
}

// FASTBRIEF detects grid adapted FAST corners and describes them with BRIEF.
type FASTBRIEF struct {
	cfg   FASTBRIEFConfig
	pairs *SamplePairs
}

// NewFASTBRIEF returns the default FeatureExtractor.
func NewFASTBRIEF(cfg FASTBRIEFConfig) (*FASTBRIEF, error) {
	if err := cfg.CheckValid(); err != nil {
		return nil, err
	}
	return &FASTBRIEF{
		cfg:   cfg,
		pairs: GenerateSamplePairs(cfg.BRIEF.N, cfg.BRIEF.PatchSize, cfg.BRIEF.Seed),
	}, nil
}

// Detect implements FeatureExtractor. Corners whose BRIEF patch would leave the image are discarded
// before the grid retention.
func (fb *FASTBRIEF) Detect(gray, mask *image.Gray) (KeyPoints, error) {
	corners, err := ComputeFAST(gray, mask, fb.cfg.FAST)
	if err != nil {
		return nil, err
	}
	size := gray.Bounds().Size()
	half := fb.cfg.BRIEF.PatchSize / 2
	describable := image.Rect(half, half, size.X-half, size.Y-half)
	corners = lo.Filter(corners, func(c ScoredKeyPoint, _ int) bool {
		return c.Point.In(describable)
	})
	return RetainBestPerCell(corners, size, fb.cfg.Grid)
}

// Describe implements FeatureExtractor.
func (fb *FASTBRIEF) Describe(gray *image.Gray, kps KeyPoints) (Descriptors, error) {
	if gray == nil {
		return nil, errors.New("cannot describe keypoints of a nil image")
	}
	smoothed := rimage.BlurGray(gray, fb.cfg.BRIEF.Sigma)
	return ComputeBRIEFDescriptors(smoothed, fb.pairs, kps, fb.cfg.BRIEF.PatchSize), nil
}
