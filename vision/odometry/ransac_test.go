package odometry

import (
	"math"
	"math/rand"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/vo/logging"
)

// corrupt moves the first k correspondences of order far away in both the current image and the
// current cloud.
func corrupt(set *CorrespondenceSet, order []int, k int, r *rand.Rand) *CorrespondenceSet {
	out := &CorrespondenceSet{
		Reference3D: append([]r3.Vector(nil), set.Reference3D...),
		Reference2D: append([]r2.Point(nil), set.Reference2D...),
		Current3D:   append([]r3.Vector(nil), set.Current3D...),
		Current2D:   append([]r2.Point(nil), set.Current2D...),
	}
	for _, i := range order[:k] {
		angle := 2 * math.Pi * r.Float64()
		out.Current2D[i] = out.Current2D[i].Add(r2.Point{X: 100 * math.Cos(angle), Y: 100 * math.Sin(angle)})
		out.Current3D[i] = out.Current3D[i].Add(r3.Vector{X: r.Float64() - 0.5, Y: r.Float64() - 0.5, Z: r.Float64()})
	}
	return out
}

func TestRANSACInlierMonotonicity(t *testing.T) {
	logger := logging.NewTestLogger(t)
	r := rand.New(rand.NewSource(7))
	truth := randomPose(r)
	clean := synthesize(truth, randomScene(r, 100))
	order := r.Perm(100)

	for _, solver := range []SolverType{RigidSolver, P3PSolver} {
		t.Run(string(solver), func(t *testing.T) {
			cfg := DefaultRANSACConfig()
			cfg.Solver = solver
			previous := clean.Len() + 1
			for _, k := range []int{0, 10, 30, 50} {
				set := corrupt(clean, order, k, rand.New(rand.NewSource(int64(k))))
				rs, err := NewRANSAC(cfg, kinectIntrinsics(), nil, logger)
				test.That(t, err, test.ShouldBeNil)
				res, err := rs.Run(set)
				test.That(t, err, test.ShouldBeNil)
				test.That(t, res.Inliers, test.ShouldBeLessThanOrEqualTo, previous)
				test.That(t, res.Inliers, test.ShouldEqual, clean.Len()-k)
				test.That(t, len(res.InlierIndices), test.ShouldEqual, res.Inliers)
				test.That(t, mat.EqualApprox(res.Pose.Rotation, truth.Rotation, 1e-4), test.ShouldBeTrue)
				test.That(t, res.Pose.Translation.Sub(truth.Translation).Norm(), test.ShouldBeLessThan, 1e-4)
				previous = res.Inliers
			}
		})
	}
}

func TestRANSACWinningSample(t *testing.T) {
	logger := logging.NewTestLogger(t)
	r := rand.New(rand.NewSource(8))
	set := synthesize(randomPose(r), randomScene(r, 40))

	rs, err := NewRANSAC(DefaultRANSACConfig(), kinectIntrinsics(), nil, logger)
	test.That(t, err, test.ShouldBeNil)
	res, err := rs.Run(set)
	test.That(t, err, test.ShouldBeNil)

	// clean data reaches consensus on the first sample
	test.That(t, res.Iterations, test.ShouldEqual, 1)
	test.That(t, res.Inliers, test.ShouldEqual, 40)
	test.That(t, res.SVD, test.ShouldNotBeNil)
	test.That(t, res.Sample[0], test.ShouldNotEqual, res.Sample[1])
	test.That(t, res.Sample[1], test.ShouldNotEqual, res.Sample[2])
	test.That(t, res.Sample[0], test.ShouldNotEqual, res.Sample[2])
	test.That(t, res.TotalError, test.ShouldBeLessThan, 1e-12)
}

func TestRANSACTooFewCorrespondences(t *testing.T) {
	logger := logging.NewTestLogger(t)
	r := rand.New(rand.NewSource(9))
	set := synthesize(randomPose(r), randomScene(r, 2))

	rs, err := NewRANSAC(DefaultRANSACConfig(), kinectIntrinsics(), nil, logger)
	test.That(t, err, test.ShouldBeNil)
	_, err = rs.Run(set)
	test.That(t, errors.Is(err, ErrNoValidFit), test.ShouldBeTrue)

	_, err = rs.Run(&CorrespondenceSet{})
	test.That(t, errors.Is(err, ErrNoValidFit), test.ShouldBeTrue)
}

func TestRANSACConfig(t *testing.T) {
	test.That(t, DefaultRANSACConfig().CheckValid(), test.ShouldBeNil)

	cfg := DefaultRANSACConfig()
	cfg.Consensus = 1.5
	test.That(t, cfg.CheckValid(), test.ShouldNotBeNil)
	cfg = DefaultRANSACConfig()
	cfg.Solver = "epnp"
	test.That(t, cfg.CheckValid(), test.ShouldNotBeNil)
	cfg = DefaultRANSACConfig()
	cfg.Iterations = 0
	test.That(t, cfg.CheckValid(), test.ShouldNotBeNil)

	_, err := NewRANSAC(DefaultRANSACConfig(), nil, nil, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestScorePose(t *testing.T) {
	intrinsics := kinectIntrinsics()
	ref := []r3.Vector{{X: 0, Y: 0, Z: 2}, {X: 0.2, Y: 0.1, Z: 3}, {X: 0, Y: 0, Z: -1}}
	cur := project(intrinsics, ref[:2])
	cur = append(cur, r2.Point{X: 320, Y: 240})
	cur[1] = cur[1].Add(r2.Point{X: 3, Y: 4})

	score := ScorePose(IdentityPose(), ref, cur, intrinsics, 4)
	test.That(t, score.Inliers, test.ShouldResemble, []int{0})
	test.That(t, score.InlierError, test.ShouldAlmostEqual, 0, 1e-9)
	test.That(t, score.TotalError, test.ShouldAlmostEqual, 25, 1e-9)

	score = ScorePose(IdentityPose(), ref, cur, intrinsics, 5.1)
	test.That(t, score.Inliers, test.ShouldResemble, []int{0, 1})
	test.That(t, score.InlierError, test.ShouldAlmostEqual, 25, 1e-9)
	test.That(t, score.TotalError, test.ShouldAlmostEqual, 25, 1e-9)
}

func TestHypothesisTieBreak(t *testing.T) {
	intrinsics := kinectIntrinsics()
	r := rand.New(rand.NewSource(9))
	truth := randomPose(r)
	clean := synthesize(truth, randomScene(r, 30))
	order := r.Perm(30)
	set := corrupt(clean, order, 5, rand.New(rand.NewSource(5)))

	exact := &hypothesis{pose: truth, score: ScorePose(truth, set.Reference3D, set.Current2D, intrinsics, 20)}
	test.That(t, exact.score.Inliers, test.ShouldHaveLength, 25)
	test.That(t, exact.score.InlierError, test.ShouldBeLessThan, 1e-9)

	// a pose a few millimeters off keeps the same support with a larger error on it
	shifted := NewPose(truth.Rotation, truth.Translation.Add(r3.Vector{X: 0.005, Y: -0.003}))
	near := &hypothesis{pose: shifted, score: ScorePose(shifted, set.Reference3D, set.Current2D, intrinsics, 20)}
	test.That(t, near.score.Inliers, test.ShouldHaveLength, 25)
	test.That(t, near.score.InlierError, test.ShouldBeGreaterThan, exact.score.InlierError)

	test.That(t, exact.better(near), test.ShouldBeTrue)
	test.That(t, near.better(exact), test.ShouldBeFalse)

	lowTotal := &hypothesis{score: PoseScore{Inliers: exact.score.Inliers, InlierError: 1, TotalError: 0}}
	highTotal := &hypothesis{score: PoseScore{Inliers: exact.score.Inliers, InlierError: 0, TotalError: 1e6}}
	test.That(t, highTotal.better(lowTotal), test.ShouldBeTrue)
}
