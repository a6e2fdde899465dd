package odometry

import (
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/vo/logging"
	"go.viam.com/vo/rimage/transform"
	"go.viam.com/vo/utils"
)

// ErrNoValidFit is returned when no RANSAC iteration produced a usable transform.
var ErrNoValidFit = errors.New("RANSAC did not find a valid transform")

// SolverType names the minimal solver RANSAC runs on each sample.
type SolverType string

const (
	// RigidSolver aligns the 3D points of both frames.
	RigidSolver = SolverType("rigid")
	// P3PSolver computes the absolute pose of the current camera from reference 3D points and current pixels.
	P3PSolver = SolverType("p3p")
)

// sampleSize is the minimal cardinality of both solvers.
const sampleSize = 3

// RANSACConfig configures the consensus loop.
type RANSACConfig struct {
	Iterations int `json:"iterations" yaml:"iterations"`
	// InlierThreshold is the maximum reprojection distance, in pixels, of an inlier.
	InlierThreshold float64 `json:"inlier_threshold_px" yaml:"inlier_threshold_px"`
	// Consensus is the inlier fraction that stops the loop early.
	Consensus float64    `json:"consensus" yaml:"consensus"`
	Seed      int64      `json:"seed" yaml:"seed"`
	Solver    SolverType `json:"solver" yaml:"solver"`
}

// DefaultRANSACConfig returns 300 rigid iterations with a 20 px threshold and 95% consensus.
func DefaultRANSACConfig() RANSACConfig {
	return RANSACConfig{Iterations: 300, InlierThreshold: 20, Consensus: 0.95, Seed: 1, Solver: RigidSolver}
}

// CheckValid checks the loop parameters.
func (cfg RANSACConfig) CheckValid() error {
	if cfg.Iterations <= 0 {
		return errors.Errorf("iterations must be positive, got %d", cfg.Iterations)
	}
	if cfg.InlierThreshold <= 0 {
		return errors.Errorf("inlier_threshold_px must be positive, got %v", cfg.InlierThreshold)
	}
	if cfg.Consensus <= 0 || cfg.Consensus > 1 {
		return errors.Errorf("consensus must be in (0, 1], got %v", cfg.Consensus)
	}
	switch cfg.Solver {
	case RigidSolver, P3PSolver, "":
	default:
		return errors.Errorf("unknown solver %q", cfg.Solver)
	}
	return nil
}

// RANSACResult is the winning hypothesis of a run.
type RANSACResult struct {
	Pose          Pose
	Inliers       int
	InlierIndices []int
	// InlierError is the summed squared reprojection error of the inliers of the winning pose.
	InlierError float64
	// TotalError also sums the error of the outliers that project into the image.
	TotalError float64
	Sample     [3]int
	// SVD is set when the winning pose came from rigid alignment.
	SVD        *SVDFactors
	Iterations int
}

// RANSAC estimates a pose from a correspondence set while rejecting outliers.
type RANSAC struct {
	cfg        RANSACConfig
	projection *transform.PinholeCameraIntrinsics
	sampler    utils.Sampler
	logger     logging.Logger
}

// NewRANSAC returns a RANSAC reprojecting with the projection intrinsics. A nil sampler uses a
// rejection sampler seeded with the configured seed.
func NewRANSAC(cfg RANSACConfig, projection *transform.PinholeCameraIntrinsics, sampler utils.Sampler, logger logging.Logger,
) (*RANSAC, error) {
	if err := cfg.CheckValid(); err != nil {
		return nil, err
	}
	if err := projection.CheckValid(); err != nil {
		return nil, err
	}
	if cfg.Solver == "" {
		cfg.Solver = RigidSolver
	}
	if sampler == nil {
		sampler = utils.NewRejectionSampler(cfg.Seed)
	}
	return &RANSAC{cfg: cfg, projection: projection, sampler: sampler, logger: logger}, nil
}

type hypothesis struct {
	pose  Pose
	svd   *SVDFactors
	score PoseScore
}

// better ranks by inlier support first and the error of that support second.
func (h *hypothesis) better(other *hypothesis) bool {
	if other == nil {
		return true
	}
	if len(h.score.Inliers) != len(other.score.Inliers) {
		return len(h.score.Inliers) > len(other.score.Inliers)
	}
	return h.score.InlierError < other.score.InlierError
}

// Run samples minimal sets, solves, scores every hypothesis against all correspondences and returns the
// best one. ErrNoValidFit is returned when there are fewer than 3 correspondences or no sample produced
// a pose.
func (r *RANSAC) Run(set *CorrespondenceSet) (*RANSACResult, error) {
	n := set.Len()
	if n < sampleSize {
		return nil, errors.Wrapf(ErrNoValidFit, "%d correspondences", n)
	}
	var best *hypothesis
	var bestSample [3]int
	iterations := 0
	for iterations < r.cfg.Iterations {
		iterations++
		idx := r.sampler.Sample(sampleSize, n)
		if len(idx) != sampleSize {
			continue
		}
		sample := [3]int{idx[0], idx[1], idx[2]}
		for _, h := range r.solve(set, sample) {
			if h.better(best) {
				best = h
				bestSample = sample
			}
		}
		if best != nil && float64(len(best.score.Inliers)) >= r.cfg.Consensus*float64(n) {
			break
		}
	}
	if best == nil || !best.pose.IsValid() {
		return nil, errors.Wrapf(ErrNoValidFit, "after %d iterations over %d correspondences", iterations, n)
	}
	r.logger.Debugw("RANSAC finished", "iterations", iterations, "inliers", len(best.score.Inliers), "correspondences", n)
	return &RANSACResult{
		Pose:          best.pose,
		Inliers:       len(best.score.Inliers),
		InlierIndices: best.score.Inliers,
		InlierError:   best.score.InlierError,
		TotalError:    best.score.TotalError,
		Sample:        bestSample,
		SVD:           best.svd,
		Iterations:    iterations,
	}, nil
}

// solve returns the scored hypotheses of one minimal sample, none when the sample is degenerate.
func (r *RANSAC) solve(set *CorrespondenceSet, sample [3]int) []*hypothesis {
	switch r.cfg.Solver {
	case P3PSolver:
		var world, bearings [3]r3.Vector
		for i, idx := range sample {
			world[i] = set.Reference3D[idx]
			bearings[i] = r.projection.BearingVector(set.Current2D[idx])
		}
		poses := SolveP3P(world, bearings)
		out := make([]*hypothesis, 0, len(poses))
		for _, p := range poses {
			out = append(out, &hypothesis{
				pose:  p,
				score: ScorePose(p, set.Reference3D, set.Current2D, r.projection, r.cfg.InlierThreshold),
			})
		}
		return out
	default:
		ref := make([]r3.Vector, sampleSize)
		cur := make([]r3.Vector, sampleSize)
		for i, idx := range sample {
			ref[i] = set.Reference3D[idx]
			cur[i] = set.Current3D[idx]
		}
		p, svd, err := EstimateRigidTransform(ref, cur)
		if err != nil || !isFinitePose(p) {
			return nil
		}
		score := ScorePose(p, set.Reference3D, set.Current2D, r.projection, r.cfg.InlierThreshold)
		return []*hypothesis{{pose: p, svd: svd, score: score}}
	}
}

// PoseScore is the support of a pose hypothesis.
type PoseScore struct {
	Inliers     []int
	InlierError float64
	TotalError  float64
}

// ScorePose reprojects every reference point through pose and the projection intrinsics and compares it
// with the observed current pixel. A correspondence is an inlier when its squared distance is at most
// threshold². Points that land behind the camera are outliers and do not add to either error.
func ScorePose(pose Pose, reference3D []r3.Vector, current2D []r2.Point, projection *transform.PinholeCameraIntrinsics,
	threshold float64,
) PoseScore {
	thr2 := threshold * threshold
	var score PoseScore
	for i, pt := range reference3D {
		px, ok := projection.PointToPixel(pose.Transform(pt))
		if !ok {
			continue
		}
		d := px.Sub(current2D[i])
		e := d.Dot(d)
		score.TotalError += e
		if e <= thr2 {
			score.Inliers = append(score.Inliers, i)
			score.InlierError += e
		}
	}
	return score
}
