package odometry

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/vo/spatialmath"
	"go.viam.com/vo/utils"
)

// SVDFactors holds the decomposition H = U·diag(S)·Vᵀ of the centered cross-covariance of a rigid fit.
type SVDFactors struct {
	U *mat.Dense
	S [3]float64
	V *mat.Dense
}

// ReflectionSign returns det(V·Uᵀ) rounded to ±1, the last entry of the correction diag(1, 1, ±1).
func (f *SVDFactors) ReflectionSign() float64 {
	var vut mat.Dense
	vut.Mul(f.V, f.U.T())
	return utils.Sign(mat.Det(&vut))
}

// Centroid returns the mean of pts.
func Centroid(pts []r3.Vector) r3.Vector {
	var c r3.Vector
	for _, p := range pts {
		c = c.Add(p)
	}
	return c.Mul(1 / float64(len(pts)))
}

// CrossCovariance returns H = Σ (ref_i − ref̄)·(cur_i − cur̄)ᵀ as a 3x3 matrix whose row a and column b
// hold Σ ref_a·cur_b.
func CrossCovariance(ref, cur []r3.Vector) *mat.Dense {
	refMean, curMean := Centroid(ref), Centroid(cur)
	h := mat.NewDense(3, 3, nil)
	for i := range ref {
		r := ref[i].Sub(refMean)
		c := cur[i].Sub(curMean)
		rv := [3]float64{r.X, r.Y, r.Z}
		cv := [3]float64{c.X, c.Y, c.Z}
		for a := 0; a < 3; a++ {
			for b := 0; b < 3; b++ {
				h.Set(a, b, h.At(a, b)+rv[a]*cv[b])
			}
		}
	}
	return h
}

// EstimateRigidTransform finds the least squares rotation and translation with cur = R·ref + T
// (Arun, Huang and Blostein, 1987). At least three index aligned points are required.
func EstimateRigidTransform(ref, cur []r3.Vector) (Pose, *SVDFactors, error) {
	if len(ref) != len(cur) {
		return Pose{}, nil, errors.Errorf("point sets differ in size: %d != %d", len(ref), len(cur))
	}
	if len(ref) < 3 {
		return Pose{}, nil, errors.Errorf("rigid alignment needs at least 3 points, got %d", len(ref))
	}
	h := CrossCovariance(ref, cur)

	var svd mat.SVD
	if ok := svd.Factorize(h, mat.SVDFull); !ok {
		return Pose{}, nil, errors.New("SVD of the cross-covariance failed")
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	values := svd.Values(nil)
	factors := &SVDFactors{U: &u, V: &v, S: [3]float64{values[0], values[1], values[2]}}

	c := mat.NewDiagDense(3, []float64{1, 1, factors.ReflectionSign()})
	var rot mat.Dense
	rot.Product(&v, c, u.T())

	t := Centroid(cur).Sub(spatialmath.MulVec(&rot, Centroid(ref)))
	return Pose{Rotation: &rot, Translation: t}, factors, nil
}
