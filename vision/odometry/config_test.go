package odometry

import (
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	test.That(t, os.WriteFile(path, []byte(content), 0o600), test.ShouldBeNil)
	return path
}

func TestLoadConfigJSON(t *testing.T) {
	path := writeFile(t, "vo.json", `{
		"intrinsic_parameters": {"width_px": 640, "height_px": 480, "fx": 525, "fy": 525, "ppx": 319.5, "ppy": 239.5},
		"distortion": {"rk1": 0.1, "rk2": -0.05, "rk3": 0, "tp1": 0, "tp2": 0},
		"ransac": {"iterations": 500, "inlier_threshold_px": 10, "consensus": 0.9, "solver": "p3p"}
	}`)
	cfg, err := LoadConfig(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Intrinsics.Fx, test.ShouldEqual, 525)
	test.That(t, cfg.Distortion.RadialK1, test.ShouldEqual, 0.1)
	test.That(t, cfg.RANSAC.Iterations, test.ShouldEqual, 500)
	test.That(t, cfg.RANSAC.Solver, test.ShouldEqual, P3PSolver)
	// absent fields keep their defaults
	test.That(t, cfg.RANSAC.Seed, test.ShouldEqual, 1)
	test.That(t, cfg.MinReferenceFeatures, test.ShouldEqual, 200)
	test.That(t, cfg.FallbackDepth, test.ShouldEqual, 8.0)
	test.That(t, cfg.MatchingWindow, test.ShouldResemble, DefaultMatchingWindowConfig())
	test.That(t, cfg.projection(), test.ShouldEqual, cfg.Intrinsics)
}

func TestLoadConfigYAML(t *testing.T) {
	path := writeFile(t, "vo.yaml", `
intrinsic_parameters:
  width_px: 640
  height_px: 480
  fx: 525
  fy: 525
  ppx: 319.5
  ppy: 239.5
projection_parameters:
  width_px: 640
  height_px: 480
  fx: 520
  fy: 520
  ppx: 320
  ppy: 240
covariance:
  pixel_variance_u: 1
  pixel_variance_v: 1
  depth_variance: 0.0004
  uniqueness_tolerance: 0.01
  quaternion_scale: 1000000
  translation_scale: 20
min_matches: 6
`)
	cfg, err := LoadConfig(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.projection().Fx, test.ShouldEqual, 520)
	test.That(t, cfg.Covariance.DepthVariance, test.ShouldEqual, 0.0004)
	test.That(t, cfg.MinMatches, test.ShouldEqual, 6)
	test.That(t, cfg.RANSAC, test.ShouldResemble, DefaultRANSACConfig())
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "error opening config file")

	_, err = LoadConfig(writeFile(t, "broken.json", `{"ransac": `))
	test.That(t, err, test.ShouldNotBeNil)

	_, err = LoadConfig(writeFile(t, "nocamera.json", `{}`))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "intrinsic_parameters")
}

func TestConfigValidate(t *testing.T) {
	cfg := testConfig()
	test.That(t, cfg.Validate("vo"), test.ShouldBeNil)

	cfg.MinMatches = 2
	cfg.FallbackDepth = -1
	cfg.RANSAC.Iterations = 0
	err := cfg.Validate("vo")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "vo.min_matches")
	test.That(t, err.Error(), test.ShouldContainSubstring, "vo.fallback_depth_m")
	test.That(t, err.Error(), test.ShouldContainSubstring, "vo.ransac")

	cfg = testConfig()
	cfg.Features.Grid.Cols = 0
	test.That(t, cfg.Validate(""), test.ShouldNotBeNil)
}
