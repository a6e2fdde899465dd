package odometry

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/vo/spatialmath"
)

// collinearTolerance bounds |(P2−P1)×(P3−P1)| relative to the squared spread of the world points.
const collinearTolerance = 1e-9

// SolveP3P computes the candidate poses of a camera observing the reference points world along the
// unit bearing vectors, following Kneip, Scaramuzza and Siegwart (CVPR 2011). Up to four poses are
// returned, each mapping reference points into the camera frame. Collinear world points yield none.
func SolveP3P(world, bearings [3]r3.Vector) []Pose {
	p1, p2, p3 := world[0], world[1], world[2]
	spread := p2.Sub(p1).Norm2() + p3.Sub(p1).Norm2()
	if spread == 0 || p2.Sub(p1).Cross(p3.Sub(p1)).Norm() <= collinearTolerance*spread {
		return nil
	}
	f1, f2, f3 := bearings[0].Normalize(), bearings[1].Normalize(), bearings[2].Normalize()

	// intermediate camera frame τ
	e1 := f1
	e3 := f1.Cross(f2)
	if e3.Norm() == 0 {
		return nil
	}
	e3 = e3.Normalize()
	e2 := e3.Cross(e1)
	t := rowsMatrix(e1, e2, e3)
	f3t := mulRows(e1, e2, e3, f3)

	// keep θ in [0, π] by ordering the first two points
	if f3t.Z > 0 {
		p1, p2 = p2, p1
		f1, f2 = f2, f1
		e1 = f1
		e3 = f1.Cross(f2).Normalize()
		e2 = e3.Cross(e1)
		t = rowsMatrix(e1, e2, e3)
		f3t = mulRows(e1, e2, e3, f3)
	}

	// intermediate world frame η
	n1 := p2.Sub(p1).Normalize()
	n3 := n1.Cross(p3.Sub(p1)).Normalize()
	n2 := n3.Cross(n1)
	p3n := mulRows(n1, n2, n3, p3.Sub(p1))

	d12 := p2.Sub(p1).Norm()
	phi1 := f3t.X / f3t.Z
	phi2 := f3t.Y / f3t.Z
	px := p3n.X
	py := p3n.Y

	cosBeta := f1.Dot(f2)
	b := math.Sqrt(1/(1-cosBeta*cosBeta) - 1)
	if cosBeta < 0 {
		b = -b
	}

	phi1p2 := phi1 * phi1
	phi2p2 := phi2 * phi2
	p1p2 := px * px
	p1p3 := p1p2 * px
	p1p4 := p1p3 * px
	p2p2 := py * py
	p2p3 := p2p2 * py
	p2p4 := p2p3 * py
	d12p2 := d12 * d12
	bp2 := b * b

	a4 := -phi2p2*p2p4 - p2p4*phi1p2 - p2p4
	a3 := 2*p2p3*d12*b + 2*phi2p2*p2p3*d12*b - 2*phi2*p2p3*phi1*d12
	a2 := -phi2p2*p2p2*p1p2 - phi2p2*p2p2*d12p2*bp2 - phi2p2*p2p2*d12p2 + phi2p2*p2p4 + p2p4*phi1p2 +
		2*px*p2p2*d12 + 2*phi1*phi2*px*p2p2*d12*b - p2p2*p1p2*phi1p2 + 2*px*p2p2*phi2p2*d12 -
		p2p2*d12p2*bp2 - 2*p1p2*p2p2
	a1 := 2*p1p2*py*d12*b + 2*phi2*p2p3*phi1*d12 - 2*phi2p2*p2p3*d12*b - 2*px*py*d12p2*b
	a0 := -2*phi2*p2p2*phi1*px*d12*b + phi2p2*p2p2*d12p2 + 2*p1p3*d12 - p1p2*d12p2 + phi2p2*p2p2*p1p2 -
		p1p4 - 2*phi2p2*p2p2*px*d12 + p2p2*phi1p2*p1p2 + phi2p2*p2p2*d12p2*bp2

	roots, err := SolveQuartic(a4, a3, a2, a1, a0)
	if err != nil {
		return nil
	}

	var nt mat.Dense
	nt.CloneFrom(rowsMatrix(n1, n2, n3).T())

	poses := make([]Pose, 0, 4)
	for _, cosTheta := range realParts(roots) {
		cotAlpha := (-phi1*px/phi2 - cosTheta*py + d12*b) / (-phi1*cosTheta*py/phi2 + px - d12)
		sinTheta := math.Sqrt(1 - cosTheta*cosTheta)
		sinAlpha := math.Sqrt(1 / (cotAlpha*cotAlpha + 1))
		cosAlpha := math.Sqrt(1 - sinAlpha*sinAlpha)
		if cotAlpha < 0 {
			cosAlpha = -cosAlpha
		}
		k := sinAlpha*b + cosAlpha

		// camera center in η, then in the world frame
		c := r3.Vector{X: d12 * cosAlpha * k, Y: cosTheta * d12 * sinAlpha * k, Z: sinTheta * d12 * sinAlpha * k}
		c = p1.Add(spatialmath.MulVec(&nt, c))

		rest := mat.NewDense(3, 3, []float64{
			-cosAlpha, -sinAlpha * cosTheta, -sinAlpha * sinTheta,
			sinAlpha, -cosAlpha * cosTheta, -cosAlpha * sinTheta,
			0, -sinTheta, cosTheta,
		})
		// camera to world rotation
		var rcw mat.Dense
		rcw.Product(&nt, rest.T(), t)

		var rot mat.Dense
		rot.CloneFrom(rcw.T())
		pose := Pose{Rotation: &rot, Translation: spatialmath.MulVec(&rot, c).Mul(-1)}
		if !isFinitePose(pose) {
			continue
		}
		poses = append(poses, pose)
	}
	return poses
}

func rowsMatrix(r0, r1, r2 r3.Vector) *mat.Dense {
	return mat.NewDense(3, 3, []float64{r0.X, r0.Y, r0.Z, r1.X, r1.Y, r1.Z, r2.X, r2.Y, r2.Z})
}

func mulRows(r0, r1, r2, v r3.Vector) r3.Vector {
	return r3.Vector{X: r0.Dot(v), Y: r1.Dot(v), Z: r2.Dot(v)}
}

func isFinitePose(p Pose) bool {
	for _, v := range p.Rotation.RawMatrix().Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	for _, v := range []float64{p.Translation.X, p.Translation.Y, p.Translation.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
