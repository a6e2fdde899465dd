package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
)

// R4AA represents an R4 axis angle: a unit axis (RX, RY, RZ) and a rotation Theta about it in radians.
type R4AA struct {
	Theta float64 `json:"th"`
	RX    float64 `json:"x"`
	RY    float64 `json:"y"`
	RZ    float64 `json:"z"`
}

// NewR4AA creates an identity R4AA about the z axis.
func NewR4AA() *R4AA {
	return &R4AA{Theta: 0, RX: 0, RY: 0, RZ: 1}
}

// R3ToR4 converts an R3 rotation vector, whose direction is the axis and whose norm is the angle, to R4.
func R3ToR4(aa r3.Vector) *R4AA {
	theta := aa.Norm()
	if theta == 0 {
		return NewR4AA()
	}
	return &R4AA{theta, aa.X / theta, aa.Y / theta, aa.Z / theta}
}

// ToR3 converts an R4 angle axis to R3.
func (r4 *R4AA) ToR3() r3.Vector {
	return r3.Vector{X: r4.RX * r4.Theta, Y: r4.RY * r4.Theta, Z: r4.RZ * r4.Theta}
}

// Normalize scales the x, y, and z components of a R4 axis angle to be on the unit sphere.
func (r4 *R4AA) Normalize() error {
	norm := math.Sqrt(r4.RX*r4.RX + r4.RY*r4.RY + r4.RZ*r4.RZ)
	if norm == 0.0 {
		return errors.New("cannot normalize R4AA with a zero axis")
	}
	r4.RX /= norm
	r4.RY /= norm
	r4.RZ /= norm
	return nil
}

// ToQuat converts an R4 axis angle to a unit quaternion.
// See: https://www.euclideanspace.com/maths/geometry/rotations/conversions/angleToQuaternion/index.htm
func (r4 *R4AA) ToQuat() quat.Number {
	axis := *r4
	if err := axis.Normalize(); err != nil {
		return quat.Number{Real: 1}
	}
	sinA := math.Sin(axis.Theta / 2)
	return quat.Number{
		Real: math.Cos(axis.Theta / 2),
		Imag: axis.RX * sinA,
		Jmag: axis.RY * sinA,
		Kmag: axis.RZ * sinA,
	}
}

// RotationMatrix returns the rotation described by the axis angle.
func (r4 *R4AA) RotationMatrix() *mat.Dense {
	return QuaternionToRotation(r4.ToQuat())
}
