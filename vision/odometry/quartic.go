package odometry

import (
	"math"
	"math/cmplx"

	"github.com/pkg/errors"
)

var errNotQuartic = errors.New("leading coefficient of the quartic is zero")

// SolveQuartic returns the four roots of a·x⁴ + b·x³ + c·x² + d·x + e through Ferrari's
// resolvent cubic. Complex roots are returned as well; callers keep the real parts they need.
func SolveQuartic(a, b, c, d, e float64) ([4]complex128, error) {
	var roots [4]complex128
	if a == 0 {
		return roots, errNotQuartic
	}
	a2 := a * a
	a3 := a2 * a
	b2 := b * b
	b3 := b2 * b

	alpha := -3*b2/(8*a2) + c/a
	beta := b3/(8*a3) - b*c/(2*a2) + d/a
	gamma := -3*b3*b/(256*a3*a) + b2*c/(16*a3) - b*d/(4*a2) + e/a
	shift := complex(-b/(4*a), 0)

	if math.Abs(beta) < 1e-14*math.Max(1, math.Abs(alpha)+math.Abs(gamma)) {
		// biquadratic: u⁴ + α·u² + γ = 0
		disc := cmplx.Sqrt(complex(alpha*alpha-4*gamma, 0))
		z1 := (complex(-alpha, 0) + disc) / 2
		z2 := (complex(-alpha, 0) - disc) / 2
		roots[0] = shift + cmplx.Sqrt(z1)
		roots[1] = shift - cmplx.Sqrt(z1)
		roots[2] = shift + cmplx.Sqrt(z2)
		roots[3] = shift - cmplx.Sqrt(z2)
		return roots, nil
	}

	alpha2 := alpha * alpha
	p := complex(-alpha2/12-gamma, 0)
	q := complex(-alpha2*alpha/108+alpha*gamma/3-beta*beta/8, 0)
	r := -q/2 + cmplx.Sqrt(q*q/4+p*p*p/27)
	u := cmplx.Pow(r, 1.0/3)

	var y complex128
	if real(u) == 0 {
		y = complex(-5*alpha/6, 0) - cmplx.Pow(q, 1.0/3)
	} else {
		y = complex(-5*alpha/6, 0) - p/(3*u) + u
	}
	w := cmplx.Sqrt(complex(alpha, 0) + 2*y)
	if w == 0 {
		return roots, errors.New("degenerate resolvent for the quartic")
	}

	cAlpha := complex(alpha, 0)
	twoBetaOverW := complex(2*beta, 0) / w
	plus := cmplx.Sqrt(-(3*cAlpha + 2*y + twoBetaOverW))
	minus := cmplx.Sqrt(-(3*cAlpha + 2*y - twoBetaOverW))
	roots[0] = shift + (w+plus)/2
	roots[1] = shift + (w-plus)/2
	roots[2] = shift + (-w+minus)/2
	roots[3] = shift + (-w-minus)/2
	return roots, nil
}

// realParts drops the imaginary parts of roots.
func realParts(roots [4]complex128) [4]float64 {
	var out [4]float64
	for i, r := range roots {
		out[i] = real(r)
	}
	return out
}
