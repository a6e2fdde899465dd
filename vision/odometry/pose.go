package odometry

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/vo/spatialmath"
)

// Pose maps a point expressed in the reference camera frame into the current camera frame:
// p_current = Rotation·p_reference + Translation.
type Pose struct {
	Rotation    *mat.Dense
	Translation r3.Vector
}

// IdentityPose returns the pose of a camera that did not move.
func IdentityPose() Pose {
	return Pose{Rotation: spatialmath.Identity3()}
}

// NewPose returns a pose from a 3x3 rotation and a translation. The rotation is copied.
func NewPose(rotation mat.Matrix, translation r3.Vector) Pose {
	return Pose{Rotation: mat.DenseCopyOf(rotation), Translation: translation}
}

// Transform applies the pose to a reference frame point.
func (p Pose) Transform(pt r3.Vector) r3.Vector {
	return spatialmath.MulVec(p.Rotation, pt).Add(p.Translation)
}

// Quaternion returns the rotation as a unit quaternion with non-negative real part.
func (p Pose) Quaternion() quat.Number {
	return spatialmath.RotationToQuaternion(p.Rotation)
}

// Inverse returns the pose mapping current frame points back into the reference frame.
func (p Pose) Inverse() Pose {
	rt := mat.DenseCopyOf(p.Rotation.T())
	return Pose{Rotation: rt, Translation: spatialmath.MulVec(rt, p.Translation).Mul(-1)}
}

// IsValid reports whether the rotation is a proper 3x3 rotation matrix.
func (p Pose) IsValid() bool {
	return spatialmath.IsRotation(p.Rotation, 1e-6)
}
