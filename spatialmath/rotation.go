package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
)

// Identity3 returns a new 3x3 identity matrix.
func Identity3() *mat.Dense {
	return mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
}

// IsRotation reports whether m is a 3x3 orthonormal matrix with determinant +1, within tol.
func IsRotation(m mat.Matrix, tol float64) bool {
	if m == nil {
		return false
	}
	r, c := m.Dims()
	if r != 3 || c != 3 {
		return false
	}
	var rtr mat.Dense
	rtr.Mul(m.T(), m)
	if !mat.EqualApprox(&rtr, Identity3(), tol) {
		return false
	}
	return math.Abs(mat.Det(m)-1) <= tol
}

// MulVec returns m·v for a 3x3 matrix m.
func MulVec(m mat.Matrix, v r3.Vector) r3.Vector {
	return r3.Vector{
		X: m.At(0, 0)*v.X + m.At(0, 1)*v.Y + m.At(0, 2)*v.Z,
		Y: m.At(1, 0)*v.X + m.At(1, 1)*v.Y + m.At(1, 2)*v.Z,
		Z: m.At(2, 0)*v.X + m.At(2, 1)*v.Y + m.At(2, 2)*v.Z,
	}
}

// VecToDense returns v as a 3x1 column.
func VecToDense(v r3.Vector) *mat.Dense {
	return mat.NewDense(3, 1, []float64{v.X, v.Y, v.Z})
}

// DenseToVec reads a 3x1 column, or the first three entries of a row, as a vector.
func DenseToVec(m mat.Matrix) r3.Vector {
	r, _ := m.Dims()
	if r == 1 {
		return r3.Vector{X: m.At(0, 0), Y: m.At(0, 1), Z: m.At(0, 2)}
	}
	return r3.Vector{X: m.At(0, 0), Y: m.At(1, 0), Z: m.At(2, 0)}
}

// RotationToQuaternion converts a rotation matrix to a unit quaternion with non-negative real part.
// The trace formula is used whenever 1+tr(R) is comfortably positive, otherwise the branch on the
// largest diagonal element (Shepperd) keeps the division well conditioned.
func RotationToQuaternion(m mat.Matrix) quat.Number {
	r00, r01, r02 := m.At(0, 0), m.At(0, 1), m.At(0, 2)
	r10, r11, r12 := m.At(1, 0), m.At(1, 1), m.At(1, 2)
	r20, r21, r22 := m.At(2, 0), m.At(2, 1), m.At(2, 2)
	tr := r00 + r11 + r22

	var q quat.Number
	switch {
	case tr > 0:
		s := math.Sqrt(1+tr) * 2
		q = quat.Number{Real: s / 4, Imag: (r21 - r12) / s, Jmag: (r02 - r20) / s, Kmag: (r10 - r01) / s}
	case r00 > r11 && r00 > r22:
		s := math.Sqrt(1+r00-r11-r22) * 2
		q = quat.Number{Real: (r21 - r12) / s, Imag: s / 4, Jmag: (r01 + r10) / s, Kmag: (r02 + r20) / s}
	case r11 > r22:
		s := math.Sqrt(1+r11-r00-r22) * 2
		q = quat.Number{Real: (r02 - r20) / s, Imag: (r01 + r10) / s, Jmag: s / 4, Kmag: (r12 + r21) / s}
	default:
		s := math.Sqrt(1+r22-r00-r11) * 2
		q = quat.Number{Real: (r10 - r01) / s, Imag: (r02 + r20) / s, Jmag: (r12 + r21) / s, Kmag: s / 4}
	}
	if q.Real < 0 {
		q = quat.Scale(-1, q)
	}
	return Normalize(q)
}

// Normalize returns q scaled to unit length. The zero quaternion maps to identity.
func Normalize(q quat.Number) quat.Number {
	norm := quat.Abs(q)
	if norm == 0 {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1/norm, q)
}

// QuaternionToRotation converts a quaternion to its rotation matrix. q need not be normalized.
func QuaternionToRotation(q quat.Number) *mat.Dense {
	q = Normalize(q)
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return mat.NewDense(3, 3, []float64{
		1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y),
		2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x),
		2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y),
	})
}

// QuaternionAngle returns the rotation angle, in radians, between two unit quaternions.
func QuaternionAngle(a, b quat.Number) float64 {
	d := math.Abs(a.Real*b.Real + a.Imag*b.Imag + a.Jmag*b.Jmag + a.Kmag*b.Kmag)
	return 2 * math.Acos(math.Min(1, d))
}

// ExtractRollPitchYaw returns the camera roll, pitch and yaw of a reference-to-current rotation.
// In the optical frame roll is about z (atan2(R01, R00)), pitch is about x (atan2(R12, R22)) and
// yaw is about y (asin(-R02)). A matrix with a zero R00 yields all zeros.
func ExtractRollPitchYaw(m mat.Matrix) (roll, pitch, yaw float64) {
	if m.At(0, 0) == 0 {
		return 0, 0, 0
	}
	pitch = math.Atan2(m.At(1, 2), m.At(2, 2))
	yaw = math.Asin(math.Max(-1, math.Min(1, -m.At(0, 2))))
	roll = math.Atan2(m.At(0, 1), m.At(0, 0))
	return roll, pitch, yaw
}
