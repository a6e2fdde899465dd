package transform

import (
	"math"

	"github.com/pkg/errors"
)

// InvalidDistortionError is used when the distortion_parameters are invalid.
func InvalidDistortionError(msg string) error {
	return errors.Wrap(errors.New("invalid distortion_parameters"), msg)
}

// ErrUndistortionDiverged is returned when an inverse distortion does not converge to a finite point.
var ErrUndistortionDiverged = errors.New("undistortion did not converge")

// InverseBrownConrady applies the inverse of the Brown-Conrady distortion model.
// Given distorted points, it computes the corresponding undistorted points using
// an iterative Newton-Raphson method.
type InverseBrownConrady struct {
	RadialK1     float64 `json:"rk1" yaml:"rk1"`
	RadialK2     float64 `json:"rk2" yaml:"rk2"`
	RadialK3     float64 `json:"rk3" yaml:"rk3"`
	TangentialP1 float64 `json:"tp1" yaml:"tp1"`
	TangentialP2 float64 `json:"tp2" yaml:"tp2"`
}

// NewInverseBrownConrady takes in a slice of floats ordered k1, k2, p1, p2, k3 like a camera_info D vector.
func NewInverseBrownConrady(inp []float64) (*InverseBrownConrady, error) {
	if len(inp) > 5 {
		return nil, errors.Errorf("list of parameters too long, expected max 5, got %d", len(inp))
	}
	padded := make([]float64, 5)
	copy(padded, inp)
	return &InverseBrownConrady{
		RadialK1:     padded[0],
		RadialK2:     padded[1],
		TangentialP1: padded[2],
		TangentialP2: padded[3],
		RadialK3:     padded[4],
	}, nil
}

// CheckValid checks that every coefficient is finite.
func (ibc *InverseBrownConrady) CheckValid() error {
	if ibc == nil {
		return nil
	}
	for _, p := range ibc.Parameters() {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return InvalidDistortionError("coefficients must be finite")
		}
	}
	return nil
}

// Parameters returns the parameters of the distortion model as a list of floats.
func (ibc *InverseBrownConrady) Parameters() []float64 {
	if ibc == nil {
		return []float64{}
	}
	return []float64{ibc.RadialK1, ibc.RadialK2, ibc.RadialK3, ibc.TangentialP1, ibc.TangentialP2}
}

// Distort applies the forward Brown-Conrady model to normalized coordinates:
//
//	x_d = x_u * (1 + k1*r² + k2*r⁴ + k3*r⁶) + 2*p1*x_u*y_u + p2*(r² + 2*x_u²)
//	y_d = y_u * (1 + k1*r² + k2*r⁴ + k3*r⁶) + 2*p2*x_u*y_u + p1*(r² + 2*y_u²)
func (ibc *InverseBrownConrady) Distort(xu, yu float64) (float64, float64) {
	if ibc == nil {
		return xu, yu
	}
	r2 := xu*xu + yu*yu
	radDist := 1.0 + ibc.RadialK1*r2 + ibc.RadialK2*r2*r2 + ibc.RadialK3*r2*r2*r2
	xd := xu*radDist + 2.0*ibc.TangentialP1*xu*yu + ibc.TangentialP2*(r2+2.0*xu*xu)
	yd := yu*radDist + 2.0*ibc.TangentialP2*xu*yu + ibc.TangentialP1*(r2+2.0*yu*yu)
	return xd, yd
}

// Transform solves the forward model for the undistorted normalized point that produces (xd, yd).
// An error is returned when the iteration reaches a singular Jacobian, leaves the finite range or
// does not converge.
func (ibc *InverseBrownConrady) Transform(xd, yd float64) (float64, float64, error) {
	if ibc == nil {
		return xd, yd, nil
	}

	const maxIterations = 20
	const tolerance = 1e-10

	xu, yu := xd, yd
	for i := 0; i < maxIterations; i++ {
		xdEst, ydEst := ibc.Distort(xu, yu)
		errX := xdEst - xd
		errY := ydEst - yd
		if errX*errX+errY*errY < tolerance*tolerance {
			return xu, yu, nil
		}

		r2 := xu*xu + yu*yu
		r4 := r2 * r2
		radDist := 1.0 + ibc.RadialK1*r2 + ibc.RadialK2*r4 + ibc.RadialK3*r4*r2
		dRad := ibc.RadialK1 + 2.0*ibc.RadialK2*r2 + 3.0*ibc.RadialK3*r4

		dxdDxu := radDist + 2.0*xu*xu*dRad + 2.0*ibc.TangentialP1*yu + 6.0*ibc.TangentialP2*xu
		dxdDyu := 2.0*xu*yu*dRad + 2.0*ibc.TangentialP1*xu + 2.0*ibc.TangentialP2*yu
		dydDxu := 2.0*xu*yu*dRad + 2.0*ibc.TangentialP2*yu + 2.0*ibc.TangentialP1*xu
		dydDyu := radDist + 2.0*yu*yu*dRad + 2.0*ibc.TangentialP2*xu + 6.0*ibc.TangentialP1*yu

		det := dxdDxu*dydDyu - dxdDyu*dydDxu
		if det == 0 {
			return 0, 0, errors.Wrap(ErrUndistortionDiverged, "singular distortion jacobian")
		}
		xu -= (dydDyu*errX - dxdDyu*errY) / det
		yu -= (-dydDxu*errX + dxdDxu*errY) / det
		if math.IsNaN(xu) || math.IsNaN(yu) || math.IsInf(xu, 0) || math.IsInf(yu, 0) {
			return 0, 0, errors.Wrapf(ErrUndistortionDiverged, "iterate left the finite range at (%v, %v)", xd, yd)
		}
	}
	xdEst, ydEst := ibc.Distort(xu, yu)
	if math.Hypot(xdEst-xd, ydEst-yd) > 1e-6 {
		return 0, 0, errors.Wrapf(ErrUndistortionDiverged, "residual too large at (%v, %v)", xd, yd)
	}
	return xu, yu, nil
}
