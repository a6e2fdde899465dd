package keypoints

import (
	"image"
	"math"
	mrand "math/rand/v2"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat/distuv"
)

// SamplePairs are N pairs of offsets used to create the BRIEF descriptor of a patch.
type SamplePairs struct {
	P0 []image.Point
	P1 []image.Point
	N  int
}

// BRIEFConfig stores the parameters of the descriptor.
type BRIEFConfig struct {
	// N is the number of binary tests, a multiple of 64.
	N         int     `json:"n" yaml:"n"`
	PatchSize int     `json:"patch_size" yaml:"patch_size"`
	Sigma     float64 `json:"smoothing_sigma" yaml:"smoothing_sigma"`
	Seed      uint64  `json:"seed" yaml:"seed"`
}

// DefaultBRIEFConfig returns 512 tests (64 bytes) over a 48 pixel patch, smoothed with sigma 2.
func DefaultBRIEFConfig() BRIEFConfig {
	return BRIEFConfig{N: 512, PatchSize: 48, Sigma: 2, Seed: 1}
}

// CheckValid checks the descriptor length and patch.
func (cfg BRIEFConfig) CheckValid() error {
	if cfg.N <= 0 || cfg.N%64 != 0 {
		return errors.Errorf("BRIEF length must be a positive multiple of 64, got %d", cfg.N)
	}
	if cfg.PatchSize < 4 {
		return errors.Errorf("BRIEF patch size must be at least 4, got %d", cfg.PatchSize)
	}
	return nil
}

// GenerateSamplePairs draws the test locations from an isotropic gaussian of standard deviation
// patchSize/5 clipped to the patch, the second sampling strategy of the BRIEF paper.
// The same seed always yields the same pairs.
func GenerateSamplePairs(n, patchSize int, seed uint64) *SamplePairs {
	//nolint:gosec
	dist := distuv.Normal{Mu: 0, Sigma: float64(patchSize) / 5, Src: mrand.NewPCG(seed, seed^0x9e3779b97f4a7c15)}
	half := float64(patchSize/2 - 1)
	draw := func() int {
		v := math.Round(dist.Rand())
		return int(math.Max(-half, math.Min(half, v)))
	}
	sp := &SamplePairs{P0: make([]image.Point, n), P1: make([]image.Point, n), N: n}
	for i := 0; i < n; i++ {
		sp.P0[i] = image.Point{X: draw(), Y: draw()}
		sp.P1[i] = image.Point{X: draw(), Y: draw()}
	}
	return sp
}

// ComputeBRIEFDescriptors computes BRIEF descriptors on an already smoothed image at kps. Keypoints
// whose patch leaves the image get an all-zero descriptor so that the output stays index aligned.
func ComputeBRIEFDescriptors(smoothed *image.Gray, sp *SamplePairs, kps KeyPoints, patchSize int) Descriptors {
	descs := make(Descriptors, len(kps))
	bnd := smoothed.Bounds()
	halfSize := patchSize / 2
	for k, kp := range kps {
		// Divide by 64 since we store a descriptor as a uint64 array.
		descriptor := make(Descriptor, sp.N/64)
		descs[k] = descriptor
		p := kp.Add(bnd.Min)
		inner := image.Rect(p.X-halfSize, p.Y-halfSize, p.X+halfSize+1, p.Y+halfSize+1)
		if !inner.In(bnd) {
			continue
		}
		for i := 0; i < sp.N; i++ {
			p0Val := smoothed.GrayAt(p.X+sp.P0[i].X, p.Y+sp.P0[i].Y).Y
			p1Val := smoothed.GrayAt(p.X+sp.P1[i].X, p.Y+sp.P1[i].Y).Y
			if p0Val < p1Val {
				descriptor[i/64] |= 1 << (i % 64)
			}
		}
	}
	return descs
}
