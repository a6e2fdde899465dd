package odometry

import (
	"math/rand"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/vo/rimage/transform"
	"go.viam.com/vo/spatialmath"
)

func kinectIntrinsics() *transform.PinholeCameraIntrinsics {
	return &transform.PinholeCameraIntrinsics{Width: 640, Height: 480, Fx: 525, Fy: 525, Ppx: 319.5, Ppy: 239.5}
}

func randomRotation(r *rand.Rand, maxAngle float64) *mat.Dense {
	aa := &spatialmath.R4AA{Theta: r.Float64() * maxAngle, RX: r.NormFloat64(), RY: r.NormFloat64(), RZ: r.NormFloat64()}
	return aa.RotationMatrix()
}

func randomPose(r *rand.Rand) Pose {
	return Pose{
		Rotation:    randomRotation(r, 0.2),
		Translation: r3.Vector{X: 0.2 * (r.Float64() - 0.5), Y: 0.2 * (r.Float64() - 0.5), Z: 0.2 * (r.Float64() - 0.5)},
	}
}

// randomScene returns points in front of the camera that stay in view under small motions.
func randomScene(r *rand.Rand, n int) []r3.Vector {
	pts := make([]r3.Vector, n)
	for i := range pts {
		z := 1.5 + 2*r.Float64()
		pts[i] = r3.Vector{X: (r.Float64() - 0.5) * z * 0.6, Y: (r.Float64() - 0.5) * z * 0.45, Z: z}
	}
	return pts
}

func project(t *transform.PinholeCameraIntrinsics, pts []r3.Vector) []r2.Point {
	out := make([]r2.Point, len(pts))
	for i, p := range pts {
		out[i], _ = t.PointToPixel(p)
	}
	return out
}

// synthesize observes the reference points from the reference camera and from the camera moved by pose.
func synthesize(pose Pose, ref []r3.Vector) *CorrespondenceSet {
	intrinsics := kinectIntrinsics()
	cur := make([]r3.Vector, len(ref))
	for i, p := range ref {
		cur[i] = pose.Transform(p)
	}
	return &CorrespondenceSet{
		Reference3D: ref,
		Reference2D: project(intrinsics, ref),
		Current3D:   cur,
		Current2D:   project(intrinsics, cur),
	}
}
