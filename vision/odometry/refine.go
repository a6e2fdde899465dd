package odometry

import (
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
)

// Observations are the inlier correspondences a refinement can use: reference points with the current
// pixels they were observed at.
type Observations struct {
	Reference3D []r3.Vector
	Current2D   []r2.Point
	Current3D   []r3.Vector
}

// Refiner improves a RANSAC pose from its inlier observations, bundle adjustment for instance.
type Refiner interface {
	Refine(pose Pose, obs Observations) (Pose, error)
}

// RefinerFunc adapts a function to a Refiner.
type RefinerFunc func(pose Pose, obs Observations) (Pose, error)

// Refine implements Refiner.
func (f RefinerFunc) Refine(pose Pose, obs Observations) (Pose, error) {
	return f(pose, obs)
}

// InlierRefiner refits the rigid transform on every inlier, a cheap least squares polish of the
// minimal sample solution.
type InlierRefiner struct{}

// Refine implements Refiner.
func (InlierRefiner) Refine(pose Pose, obs Observations) (Pose, error) {
	refined, _, err := EstimateRigidTransform(obs.Reference3D, obs.Current3D)
	if err != nil {
		return pose, err
	}
	return refined, nil
}

func observationsOf(set *CorrespondenceSet, inliers []int) Observations {
	sub := set.Subset(inliers)
	return Observations{Reference3D: sub.Reference3D, Current2D: sub.Current2D, Current3D: sub.Current3D}
}
