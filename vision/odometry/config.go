package odometry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"
	"gopkg.in/yaml.v3"

	"go.viam.com/vo/rimage/transform"
	"go.viam.com/vo/vision/keypoints"
)

// Config contains the parameters of the pose estimator.
type Config struct {
	Intrinsics *transform.PinholeCameraIntrinsics `json:"intrinsic_parameters" yaml:"intrinsic_parameters"`
	// Projection are the intrinsics of the idealized camera, the raw intrinsics when unset.
	Projection *transform.PinholeCameraIntrinsics `json:"projection_parameters,omitempty" yaml:"projection_parameters,omitempty"`
	Distortion *transform.InverseBrownConrady     `json:"distortion,omitempty" yaml:"distortion,omitempty"`

	RANSAC         RANSACConfig              `json:"ransac" yaml:"ransac"`
	Covariance     CovarianceConfig          `json:"covariance" yaml:"covariance"`
	MatchingWindow MatchingWindowConfig      `json:"matching_window" yaml:"matching_window"`
	Features       keypoints.FASTBRIEFConfig `json:"features" yaml:"features"`

	MinReferenceFeatures int     `json:"min_reference_features" yaml:"min_reference_features"`
	MinMatches           int     `json:"min_matches" yaml:"min_matches"`
	FallbackDepth        float64 `json:"fallback_depth_m" yaml:"fallback_depth_m"`
}

// DefaultConfig returns the Kinect tuning without camera parameters.
func DefaultConfig() Config {
	return Config{
		RANSAC:               DefaultRANSACConfig(),
		Covariance:           DefaultCovarianceConfig(),
		MatchingWindow:       DefaultMatchingWindowConfig(),
		Features:             keypoints.DefaultFASTBRIEFConfig(),
		MinReferenceFeatures: 200,
		MinMatches:           4,
		FallbackDepth:        DefaultFallbackDepth,
	}
}

// Validate ensures all parts of the config are valid, reporting every problem found.
func (cfg *Config) Validate(path string) error {
	var err error
	field := func(name string) string {
		if path == "" {
			return name
		}
		return fmt.Sprintf("%s.%s", path, name)
	}
	if cfg.Intrinsics == nil {
		err = multierr.Append(err, errors.Errorf("%s: camera intrinsics are required", field("intrinsic_parameters")))
	} else if e := cfg.Intrinsics.CheckValid(); e != nil {
		err = multierr.Append(err, errors.Wrap(e, field("intrinsic_parameters")))
	}
	if cfg.Projection != nil {
		if e := cfg.Projection.CheckValid(); e != nil {
			err = multierr.Append(err, errors.Wrap(e, field("projection_parameters")))
		}
	}
	if e := cfg.Distortion.CheckValid(); e != nil {
		err = multierr.Append(err, errors.Wrap(e, field("distortion")))
	}
	if e := cfg.RANSAC.CheckValid(); e != nil {
		err = multierr.Append(err, errors.Wrap(e, field("ransac")))
	}
	if e := cfg.Covariance.CheckValid(); e != nil {
		err = multierr.Append(err, errors.Wrap(e, field("covariance")))
	}
	if e := cfg.MatchingWindow.CheckValid(); e != nil {
		err = multierr.Append(err, errors.Wrap(e, field("matching_window")))
	}
	if e := cfg.Features.CheckValid(); e != nil {
		err = multierr.Append(err, errors.Wrap(e, field("features")))
	}
	if cfg.MinReferenceFeatures < 0 {
		err = multierr.Append(err, errors.Errorf("%s: must not be negative", field("min_reference_features")))
	}
	if cfg.MinMatches < sampleSize {
		err = multierr.Append(err, errors.Errorf("%s: must be at least %d, got %d", field("min_matches"), sampleSize, cfg.MinMatches))
	}
	if cfg.FallbackDepth <= 0 {
		err = multierr.Append(err, errors.Errorf("%s: must be positive, got %v", field("fallback_depth_m"), cfg.FallbackDepth))
	}
	return err
}

// Projection intrinsics in use: the configured projection or else the raw intrinsics.
func (cfg *Config) projection() *transform.PinholeCameraIntrinsics {
	if cfg.Projection != nil {
		return cfg.Projection
	}
	return cfg.Intrinsics
}

// LoadConfig loads a pose estimator configuration from a json or yaml file. Fields that are absent keep
// their DefaultConfig value.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	//nolint:gosec
	configFile, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "error opening config file")
	}
	defer utils.UncheckedErrorFunc(configFile.Close)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.NewDecoder(configFile).Decode(&cfg)
	default:
		err = json.NewDecoder(configFile).Decode(&cfg)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "error parsing config %q", path)
	}
	if err := cfg.Validate(""); err != nil {
		return nil, err
	}
	return &cfg, nil
}
