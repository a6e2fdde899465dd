package odometry

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"golang.org/x/time/rate"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/vo/logging"
	"go.viam.com/vo/rimage"
	"go.viam.com/vo/rimage/transform"
	"go.viam.com/vo/utils"
	"go.viam.com/vo/vision/keypoints"
)

// ErrReferenceNotSet is returned by Estimate when no reference view was accepted yet. Callers are expected
// to call SetReferenceView first; hitting it is a programming error.
var ErrReferenceNotSet = errors.New("reference view is not set")

// Frame is one RGB-D observation.
type Frame struct {
	Color image.Image
	// Depth is in meters; missing samples are NaN.
	Depth *rimage.DepthImage
	// Mask restricts detection to its non-zero pixels. A nil mask allows every pixel.
	Mask *image.Gray
	// RotationGuess is an optional rough rotation used only to adapt the matching window.
	RotationGuess mat.Matrix
}

type referenceFrame struct {
	color    image.Image
	gray     *image.Gray
	depth    *rimage.DepthImage
	features *Features
}

// Estimate is the outcome of one Estimate call. Counts are filled in on failure too.
type Estimate struct {
	Success    bool
	Pose       Pose
	Quaternion quat.Number
	Covariance *Covariance
	Refined    *Pose

	Inliers       int
	InlierIndices []int
	// Correspondences is the number of mutual matches.
	Correspondences int
	// Total is the number of current features.
	Total      int
	RawMatches int

	ReferencePromoted bool
	ReferenceCleared  bool
}

// Stats are running counters of a PoseEstimator.
type Stats struct {
	Frames     int64
	Successes  int64
	Failures   int64
	Promotions int64
	Resets     int64

	// InlierRatio is the mean inliers/correspondences over the recent successful estimates.
	InlierRatio float64
}

const inlierRatioWindow = 30

// Option configures a PoseEstimator.
type Option func(*PoseEstimator)

// WithRefiner runs refiner on every successful estimate.
func WithRefiner(refiner Refiner) Option {
	return func(pe *PoseEstimator) {
		pe.refiner = refiner
	}
}

// WithSampler replaces the RANSAC minimal sample source.
func WithSampler(sampler utils.Sampler) Option {
	return func(pe *PoseEstimator) {
		pe.sampler = sampler
	}
}

// PoseEstimator estimates the motion of an RGB-D camera between a stored reference view and new frames.
// Its methods may be called from several goroutines; calls are serialized.
type PoseEstimator struct {
	cfg        Config
	extractor  keypoints.FeatureExtractor
	builder    *CorrespondenceBuilder
	ransac     *RANSAC
	covariance *CovariancePropagator
	refiner    Refiner
	sampler    utils.Sampler
	logger     logging.Logger

	mu        sync.Mutex
	reference *referenceFrame

	throttle rate.Sometimes

	frames     atomic.Int64
	successes  atomic.Int64
	failures   atomic.Int64
	promotions atomic.Int64
	resets     atomic.Int64

	inlierRatio *utils.RollingAverage
}

// NewPoseEstimator returns an estimator without a reference view. A nil extractor uses FAST corners with
// BRIEF descriptors configured by cfg.Features.
func NewPoseEstimator(cfg Config, extractor keypoints.FeatureExtractor, logger logging.Logger, opts ...Option,
) (*PoseEstimator, error) {
	if err := cfg.Validate("odometry"); err != nil {
		return nil, err
	}
	if extractor == nil {
		fb, err := keypoints.NewFASTBRIEF(cfg.Features)
		if err != nil {
			return nil, err
		}
		extractor = fb
	}
	pe := &PoseEstimator{
		cfg:       cfg,
		extractor: extractor,
		logger:    logger,
		throttle:  rate.Sometimes{Interval: time.Second},

		inlierRatio: utils.NewRollingAverage(inlierRatioWindow),
	}
	for _, opt := range opts {
		opt(pe)
	}

	camera, err := transform.NewIdealCamera(cfg.Intrinsics, cfg.Projection, cfg.Distortion)
	if err != nil {
		return nil, err
	}
	if pe.builder, err = NewCorrespondenceBuilder(camera, cfg.MatchingWindow, cfg.FallbackDepth); err != nil {
		return nil, err
	}
	if pe.ransac, err = NewRANSAC(cfg.RANSAC, cfg.projection(), pe.sampler, logger.Sublogger("ransac")); err != nil {
		return nil, err
	}
	if pe.covariance, err = NewCovariancePropagator(cfg.Covariance, cfg.projection(), logger.Sublogger("covariance")); err != nil {
		return nil, err
	}
	return pe, nil
}

// extract detects, describes, idealizes and back-projects the features of frame. A detection, description
// or idealization failure is logged and reported as zero features.
func (pe *PoseEstimator) extract(frame Frame) (*image.Gray, *Features, error) {
	if frame.Color == nil {
		return nil, nil, errors.New("frame has no color image")
	}
	gray := rimage.MakeGray(frame.Color)
	kps, err := pe.extractor.Detect(gray, frame.Mask)
	if err != nil {
		pe.logger.Warnw("treating frame as featureless", "error", errors.Wrap(err, "cannot detect keypoints"))
		return gray, &Features{}, nil
	}
	descs, err := pe.extractor.Describe(gray, kps)
	if err != nil {
		pe.logger.Warnw("treating frame as featureless", "error", errors.Wrap(err, "cannot describe keypoints"))
		return gray, &Features{}, nil
	}
	features, err := pe.builder.Features(kps, descs, frame.Depth)
	if err != nil {
		pe.logger.Warnw("treating frame as featureless", "error", err)
		return gray, &Features{}, nil
	}
	return gray, features, nil
}

// SetReferenceView makes frame the reference view. It returns false, keeping the previous reference, when
// the frame yields fewer than MinReferenceFeatures features.
func (pe *PoseEstimator) SetReferenceView(ctx context.Context, frame Frame) (bool, error) {
	pe.mu.Lock()
	defer pe.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return false, err
	}
	gray, features, err := pe.extract(frame)
	if err != nil {
		return false, err
	}
	if features.Len() < pe.cfg.MinReferenceFeatures {
		pe.throttle.Do(func() {
			pe.logger.Infow("not enough features to set the reference view",
				"features", features.Len(), "required", pe.cfg.MinReferenceFeatures)
		})
		return false, nil
	}
	pe.setReference(frame, gray, features)
	return true, nil
}

func (pe *PoseEstimator) setReference(frame Frame, gray *image.Gray, features *Features) {
	pe.reference = &referenceFrame{color: frame.Color, gray: gray, depth: frame.Depth, features: features}
}

// Estimate computes the pose of frame relative to the reference view. Insufficient input is reported by
// Success false with the diagnostic counts filled in, not by an error. When setAsReference is true the
// frame replaces the reference after the estimate has been computed, even if it failed for lack of
// matches; a frame with no features at all clears the reference instead.
func (pe *PoseEstimator) Estimate(ctx context.Context, frame Frame, setAsReference bool) (*Estimate, error) {
	pe.mu.Lock()
	defer pe.mu.Unlock()
	if pe.reference == nil {
		return nil, ErrReferenceNotSet
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pe.frames.Inc()

	gray, current, err := pe.extract(frame)
	if err != nil {
		return nil, err
	}
	est := &Estimate{Total: current.Len()}

	if current.Len() == 0 {
		if setAsReference {
			pe.reference = nil
			pe.resets.Inc()
			est.ReferenceCleared = true
			pe.logger.Warn("no features in the current frame, reference view cleared")
		}
		return pe.fail(est), nil
	}

	corr, err := pe.builder.Build(ctx, pe.reference.features, current, frame.RotationGuess)
	if err != nil {
		return nil, err
	}
	est.Correspondences = corr.Set.Len()
	est.RawMatches = corr.RawMatches

	if corr.Set.Len() < pe.cfg.MinMatches {
		pe.logger.Debugw("too few mutual matches", "matches", corr.Set.Len(), "required", pe.cfg.MinMatches)
		pe.promote(est, frame, gray, current, setAsReference)
		return pe.fail(est), nil
	}

	res, err := pe.ransac.Run(corr.Set)
	if err != nil {
		if !errors.Is(err, ErrNoValidFit) {
			return nil, err
		}
		pe.logger.Debugw("RANSAC failed", "error", err)
		pe.promote(est, frame, gray, current, setAsReference)
		return pe.fail(est), nil
	}

	est.Success = true
	est.Pose = res.Pose
	est.Quaternion = res.Pose.Quaternion()
	est.Inliers = res.Inliers
	est.InlierIndices = res.InlierIndices
	est.Covariance = pe.sampleCovariance(corr.Set, res)

	if pe.refiner != nil {
		refined, err := pe.refiner.Refine(res.Pose, observationsOf(corr.Set, res.InlierIndices))
		if err != nil {
			pe.logger.Warnw("pose refinement failed", "error", err)
		} else {
			est.Refined = &refined
		}
	}
	pe.successes.Inc()
	pe.inlierRatio.Add(float64(res.Inliers) / float64(corr.Set.Len()))

	pe.promote(est, frame, gray, current, setAsReference)
	return est, nil
}

// sampleCovariance propagates noise through the rigid fit of the winning sample. P3P winners carry no SVD
// so the sample is refit first.
func (pe *PoseEstimator) sampleCovariance(set *CorrespondenceSet, res *RANSACResult) *Covariance {
	sample := set.Subset(res.Sample[:])
	svd, rot := res.SVD, mat.Matrix(res.Pose.Rotation)
	if svd == nil {
		fit, factors, err := EstimateRigidTransform(sample.Reference3D, sample.Current3D)
		if err != nil {
			pe.logger.Warnw("cannot refit the winning sample for its covariance", "error", err)
			return nil
		}
		svd, rot = factors, fit.Rotation
	}
	cov, err := pe.covariance.Compute(CovarianceSample{
		Reference:   sample.Reference3D,
		Current:     sample.Current3D,
		ReferencePx: sample.Reference2D,
		CurrentPx:   sample.Current2D,
	}, svd, rot)
	if err != nil {
		pe.logger.Warnw("cannot compute pose covariance", "error", err)
		return nil
	}
	return cov
}

func (pe *PoseEstimator) promote(est *Estimate, frame Frame, gray *image.Gray, current *Features, setAsReference bool) {
	if !setAsReference {
		return
	}
	pe.setReference(frame, gray, current)
	pe.promotions.Inc()
	est.ReferencePromoted = true
}

func (pe *PoseEstimator) fail(est *Estimate) *Estimate {
	pe.failures.Inc()
	return est
}

// HasReference reports whether a reference view is set.
func (pe *PoseEstimator) HasReference() bool {
	pe.mu.Lock()
	defer pe.mu.Unlock()
	return pe.reference != nil
}

// ClearReference drops the reference view.
func (pe *PoseEstimator) ClearReference() {
	pe.mu.Lock()
	defer pe.mu.Unlock()
	if pe.reference != nil {
		pe.reference = nil
		pe.resets.Inc()
	}
}

// Stats returns a snapshot of the counters.
func (pe *PoseEstimator) Stats() Stats {
	return Stats{
		Frames:     pe.frames.Load(),
		Successes:  pe.successes.Load(),
		Failures:   pe.failures.Load(),
		Promotions: pe.promotions.Load(),
		Resets:     pe.resets.Load(),

		InlierRatio: pe.inlierRatio.Average(),
	}
}
