package odometry

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/vo/logging"
	"go.viam.com/vo/rimage/transform"
)

// CovarianceConfig is the sensor noise model and the scale factors applied to the propagated blocks.
type CovarianceConfig struct {
	PixelVarianceU      float64 `json:"pixel_variance_u" yaml:"pixel_variance_u"`
	PixelVarianceV      float64 `json:"pixel_variance_v" yaml:"pixel_variance_v"`
	DepthVariance       float64 `json:"depth_variance" yaml:"depth_variance"`
	UniquenessTolerance float64 `json:"uniqueness_tolerance" yaml:"uniqueness_tolerance"`
	QuaternionScale     float64 `json:"quaternion_scale" yaml:"quaternion_scale"`
	TranslationScale    float64 `json:"translation_scale" yaml:"translation_scale"`
}

// DefaultCovarianceConfig returns 2 px standard deviation on the image, 1 cm on depth and the
// empirical block scales of the Kinect tuning.
func DefaultCovarianceConfig() CovarianceConfig {
	return CovarianceConfig{
		PixelVarianceU:      4,
		PixelVarianceV:      4,
		DepthVariance:       1e-4,
		UniquenessTolerance: 0.01,
		QuaternionScale:     1e6,
		TranslationScale:    20,
	}
}

// CheckValid checks that every variance and scale is usable.
func (cfg CovarianceConfig) CheckValid() error {
	for name, v := range map[string]float64{
		"pixel_variance_u":  cfg.PixelVarianceU,
		"pixel_variance_v":  cfg.PixelVarianceV,
		"depth_variance":    cfg.DepthVariance,
		"quaternion_scale":  cfg.QuaternionScale,
		"translation_scale": cfg.TranslationScale,
	} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Errorf("%s must be finite and non-negative, got %v", name, v)
		}
	}
	if cfg.UniquenessTolerance <= 0 {
		return errors.Errorf("uniqueness_tolerance must be positive, got %v", cfg.UniquenessTolerance)
	}
	return nil
}

// quaternionEpsilon is the smallest 1+tr(R) for which the trace formula is differentiated.
const quaternionEpsilon = 1e-6

// Covariance is the 7x7 uncertainty over (tx, ty, tz, qx, qy, qz, qw).
type Covariance struct {
	Matrix *mat.SymDense
	// Degenerate is set when singular values were not unique or the quaternion Jacobian was singular;
	// the matrix is still finite but less trustworthy.
	Degenerate     bool
	SingularValues [3]float64
}

// CovarianceSample is the minimal sample a covariance is computed from.
type CovarianceSample struct {
	Reference   []r3.Vector
	Current     []r3.Vector
	ReferencePx []r2.Point
	CurrentPx   []r2.Point
}

// CovariancePropagator pushes per-pixel image and depth noise through the rigid alignment of a
// sample into a pose covariance.
type CovariancePropagator struct {
	cfg        CovarianceConfig
	projection *transform.PinholeCameraIntrinsics
	logger     logging.Logger
}

// NewCovariancePropagator returns a propagator using the projection intrinsics the samples
// were back-projected with.
func NewCovariancePropagator(cfg CovarianceConfig, projection *transform.PinholeCameraIntrinsics, logger logging.Logger,
) (*CovariancePropagator, error) {
	if err := cfg.CheckValid(); err != nil {
		return nil, err
	}
	if err := projection.CheckValid(); err != nil {
		return nil, err
	}
	return &CovariancePropagator{cfg: cfg, projection: projection, logger: logger}, nil
}

// Compute returns the pose covariance of the rigid fit of sample with SVD factors svd and rotation rot.
func (cp *CovariancePropagator) Compute(sample CovarianceSample, svd *SVDFactors, rot mat.Matrix) (*Covariance, error) {
	n := len(sample.Reference)
	if n < 3 || len(sample.Current) != n || len(sample.ReferencePx) != n || len(sample.CurrentPx) != n {
		return nil, errors.Errorf("covariance needs at least 3 aligned points, got %d/%d/%d/%d",
			n, len(sample.Current), len(sample.ReferencePx), len(sample.CurrentPx))
	}
	if svd == nil {
		return nil, errors.New("covariance needs the SVD factors of the fit")
	}
	out := &Covariance{SingularValues: svd.S}

	refCov := make([]*mat.SymDense, n)
	curCov := make([]*mat.SymDense, n)
	for i := 0; i < n; i++ {
		refCov[i] = cp.PointCovariance(sample.ReferencePx[i], sample.Reference[i].Z)
		curCov[i] = cp.PointCovariance(sample.CurrentPx[i], sample.Current[i].Z)
	}

	sigmaH := CrossCovarianceCovariance(sample.Reference, sample.Current,
		CenteredPointCovariances(refCov), CenteredPointCovariances(curCov))

	jacR, unique := cp.RotationJacobian(svd)
	if !unique {
		out.Degenerate = true
		cp.logger.Warnw("singular values are not unique, using the minimum norm SVD perturbation",
			"singular_values", svd.S)
	}
	var sigmaR mat.Dense
	sigmaR.Product(jacR, sigmaH, jacR.T())

	sigmaQ, ok := quaternionCovariance(rot, &sigmaR)
	if !ok {
		out.Degenerate = true
		cp.logger.Warn("rotation is close to a half turn, quaternion covariance left empty")
	}
	sigmaQ.Scale(cp.cfg.QuaternionScale, sigmaQ)

	sigmaT := translationCovariance(rot, &sigmaR, Centroid(sample.Reference), centroidCovariance(refCov), centroidCovariance(curCov))
	sigmaT.Scale(cp.cfg.TranslationScale, sigmaT)

	out.Matrix = mat.NewSymDense(7, nil)
	for a := 0; a < 3; a++ {
		for b := a; b < 3; b++ {
			out.Matrix.SetSym(a, b, (sigmaT.At(a, b)+sigmaT.At(b, a))/2)
		}
	}
	for a := 0; a < 4; a++ {
		for b := a; b < 4; b++ {
			out.Matrix.SetSym(3+a, 3+b, (sigmaQ.At(a, b)+sigmaQ.At(b, a))/2)
		}
	}
	return out, nil
}

// PointCovariance propagates the diagonal (u, v, z) noise of a pixel with depth z into the covariance of
// its back-projected point.
func (cp *CovariancePropagator) PointCovariance(px r2.Point, z float64) *mat.SymDense {
	p := cp.projection
	jac := mat.NewDense(3, 3, []float64{
		z / p.Fx, 0, (px.X - p.Ppx) / p.Fx,
		0, z / p.Fy, (px.Y - p.Ppy) / p.Fy,
		0, 0, 1,
	})
	noise := mat.NewDiagDense(3, []float64{cp.cfg.PixelVarianceU, cp.cfg.PixelVarianceV, cp.cfg.DepthVariance})
	var cov mat.Dense
	cov.Product(jac, noise, jac.T())
	return symmetrize(&cov)
}

// CenteredPointCovariances returns the covariance of each point after its set's centroid is subtracted:
// point i weighs itself by (1−1/n) and every peer by 1/n.
func CenteredPointCovariances(pointCov []*mat.SymDense) []*mat.SymDense {
	n := len(pointCov)
	out := make([]*mat.SymDense, n)
	self := 1 - 1/float64(n)
	peer := 1 / float64(n)
	for i := range pointCov {
		acc := mat.NewSymDense(3, nil)
		for j, c := range pointCov {
			w := peer
			if i == j {
				w = self
			}
			acc.AddSym(acc, scaledSym(c, w*w))
		}
		out[i] = acc
	}
	return out
}

// CrossCovarianceCovariance returns the 9x9 covariance of vec(H), row-major, for
// H = Σ ref_c·cur_cᵀ given the centered point covariances of both sets.
func CrossCovarianceCovariance(ref, cur []r3.Vector, refCentered, curCentered []*mat.SymDense) *mat.Dense {
	refMean, curMean := Centroid(ref), Centroid(cur)
	sigma := mat.NewDense(9, 9, nil)
	for i := range ref {
		r := ref[i].Sub(refMean)
		c := cur[i].Sub(curMean)
		rv := [3]float64{r.X, r.Y, r.Z}
		cv := [3]float64{c.X, c.Y, c.Z}

		// ∂H_ab/∂r_a = c_b and ∂H_ab/∂c_b = r_a
		jr := mat.NewDense(9, 3, nil)
		jc := mat.NewDense(9, 3, nil)
		for a := 0; a < 3; a++ {
			for b := 0; b < 3; b++ {
				jr.Set(a*3+b, a, cv[b])
				jc.Set(a*3+b, b, rv[a])
			}
		}
		var term mat.Dense
		term.Product(jr, refCentered[i], jr.T())
		sigma.Add(sigma, &term)
		term.Reset()
		term.Product(jc, curCentered[i], jc.T())
		sigma.Add(sigma, &term)
	}
	return sigma
}

// RotationJacobian returns the 9x9 Jacobian of vec(R), R = V·C·Uᵀ, with respect to vec(H), both row-major,
// from the first order perturbation of the SVD (Papadopoulo and Lourakis, ECCV 2000). unique is false
// when some pair of singular values was too close and the minimum norm solution was used.
func (cp *CovariancePropagator) RotationJacobian(svd *SVDFactors) (*mat.Dense, bool) {
	u, v := svd.U, svd.V
	d := svd.S
	c := mat.NewDiagDense(3, []float64{1, 1, svd.ReflectionSign()})
	unique := true

	jac := mat.NewDense(9, 9, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			omegaU := mat.NewDense(3, 3, nil)
			omegaV := mat.NewDense(3, 3, nil)
			for k := 0; k < 3; k++ {
				for l := k + 1; l < 3; l++ {
					rhsA := u.At(i, k) * v.At(j, l)
					rhsB := -u.At(i, l) * v.At(j, k)
					wu, wv, ok := cp.solveSkewPair(d[k], d[l], rhsA, rhsB)
					if !ok {
						unique = false
					}
					omegaU.Set(k, l, wu)
					omegaU.Set(l, k, -wu)
					omegaV.Set(k, l, wv)
					omegaV.Set(l, k, -wv)
				}
			}
			// ∂R/∂H_ij = −V·Ω_V·C·Uᵀ − V·C·Ω_U·Uᵀ
			var first, second mat.Dense
			first.Product(v, omegaV, c, u.T())
			second.Product(v, c, omegaU, u.T())
			first.Add(&first, &second)
			first.Scale(-1, &first)

			col := i*3 + j
			for a := 0; a < 3; a++ {
				for b := 0; b < 3; b++ {
					jac.Set(a*3+b, col, first.At(a, b))
				}
			}
		}
	}
	return jac, unique
}

// solveSkewPair solves [d_l d_k; d_k d_l]·[ω_U; ω_V] = [a; b]. When d_k and d_l are not unique within the
// configured tolerance the eigen directions of the system with a vanishing eigenvalue are dropped,
// which gives the minimum norm solution.
func (cp *CovariancePropagator) solveSkewPair(dk, dl, a, b float64) (float64, float64, bool) {
	tol := cp.cfg.UniquenessTolerance * math.Max(1, math.Max(math.Abs(dk), math.Abs(dl)))
	if math.Abs(dk-dl) > tol {
		den := dl*dl - dk*dk
		return (dl*a - dk*b) / den, (-dk*a + dl*b) / den, true
	}
	// eigenvectors (1, 1)/√2 for d_l+d_k and (1, −1)/√2 for d_l−d_k
	var wu, wv float64
	if sum := dl + dk; math.Abs(sum) > tol {
		s := (a + b) / (2 * sum)
		wu += s
		wv += s
	}
	if diff := dl - dk; math.Abs(diff) > tol {
		s := (a - b) / (2 * diff)
		wu += s
		wv -= s
	}
	return wu, wv, false
}

// quaternionCovariance maps the rotation covariance into (qx, qy, qz, qw) through the Jacobian of the
// trace formula. ok is false when 1+tr(R) is too small, in which case the block is zero.
func quaternionCovariance(rot mat.Matrix, sigmaR *mat.Dense) (*mat.Dense, bool) {
	out := mat.NewDense(4, 4, nil)
	s := 1 + rot.At(0, 0) + rot.At(1, 1) + rot.At(2, 2)
	if s <= quaternionEpsilon {
		return out, false
	}
	sqrtS := math.Sqrt(s)
	s32 := s * sqrtS
	jac := mat.NewDense(4, 9, nil)
	diffs := [3]float64{
		rot.At(2, 1) - rot.At(1, 2),
		rot.At(0, 2) - rot.At(2, 0),
		rot.At(1, 0) - rot.At(0, 1),
	}
	// index pairs (plus, minus) of R for qx, qy and qz
	pairs := [3][2]int{{2*3 + 1, 1*3 + 2}, {0*3 + 2, 2*3 + 0}, {1*3 + 0, 0*3 + 1}}
	for row := 0; row < 3; row++ {
		for k := 0; k < 3; k++ {
			jac.Set(row, k*3+k, -diffs[row]/(4*s32))
		}
		jac.Set(row, pairs[row][0], 1/(2*sqrtS))
		jac.Set(row, pairs[row][1], -1/(2*sqrtS))
	}
	for k := 0; k < 3; k++ {
		jac.Set(3, k*3+k, 1/(4*sqrtS))
	}
	out.Product(jac, sigmaR, jac.T())
	return out, true
}

// translationCovariance propagates rotation and centroid covariances through T = c̄_cur − R·c̄_ref.
func translationCovariance(rot mat.Matrix, sigmaR *mat.Dense, refCentroid r3.Vector, sigmaRef, sigmaCur *mat.SymDense,
) *mat.Dense {
	cRef := [3]float64{refCentroid.X, refCentroid.Y, refCentroid.Z}
	jac := mat.NewDense(3, 15, nil)
	for a := 0; a < 3; a++ {
		for b := 0; b < 3; b++ {
			jac.Set(a, a*3+b, -cRef[b])
			jac.Set(a, 9+b, -rot.At(a, b))
		}
		jac.Set(a, 12+a, 1)
	}
	joint := mat.NewDense(15, 15, nil)
	joint.Slice(0, 9, 0, 9).(*mat.Dense).Copy(sigmaR)
	joint.Slice(9, 12, 9, 12).(*mat.Dense).Copy(sigmaRef)
	joint.Slice(12, 15, 12, 15).(*mat.Dense).Copy(sigmaCur)

	var out mat.Dense
	out.Product(jac, joint, jac.T())
	return &out
}

// centroidCovariance returns Σ Σ_i / n², the covariance of the mean of independent points.
func centroidCovariance(pointCov []*mat.SymDense) *mat.SymDense {
	acc := mat.NewSymDense(3, nil)
	for _, c := range pointCov {
		acc.AddSym(acc, c)
	}
	n := float64(len(pointCov))
	acc.ScaleSym(1/(n*n), acc)
	return acc
}

func scaledSym(m *mat.SymDense, f float64) *mat.SymDense {
	out := mat.NewSymDense(m.SymmetricDim(), nil)
	out.ScaleSym(f, m)
	return out
}

func symmetrize(m mat.Matrix) *mat.SymDense {
	r, _ := m.Dims()
	out := mat.NewSymDense(r, nil)
	for a := 0; a < r; a++ {
		for b := a; b < r; b++ {
			out.SetSym(a, b, (m.At(a, b)+m.At(b, a))/2)
		}
	}
	return out
}
