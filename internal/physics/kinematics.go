package physics

import (
	"math"

	"go-hep.org/x/hep/fmom"
	"gonum.org/v1/gonum/spatial/r3"
)

// FourMomentum returns the four-momentum of a particle with momentum p
// under mass hypothesis m.
func FourMomentum(p r3.Vec, m float64) fmom.PxPyPzE {
	return fmom.NewPxPyPzE(p.X, p.Y, p.Z, math.Sqrt(r3.Norm2(p)+m*m))
}

// Sum adds the daughters' four-momenta. masses[i] is the hypothesis for
// moms[i]; the slices must have equal length.
func Sum(moms []r3.Vec, masses []float64) fmom.PxPyPzE {
	var px, py, pz, e float64
	for i, p := range moms {
		p4 := FourMomentum(p, masses[i])
		px += p4.Px()
		py += p4.Py()
		pz += p4.Pz()
		e += p4.E()
	}
	return fmom.NewPxPyPzE(px, py, pz, e)
}

// InvariantMass returns the invariant mass of the daughter system. Only the
// assumed masses differ between hypotheses; the momenta are used as given.
// Mismatched or empty inputs yield NaN.
func InvariantMass(moms []r3.Vec, masses []float64) float64 {
	if len(moms) == 0 || len(moms) != len(masses) {
		return math.NaN()
	}
	sum := Sum(moms, masses)
	return sum.M()
}

// TwoBodyMass is InvariantMass for the common two-daughter case.
func TwoBodyMass(p0, p1 r3.Vec, m0, m1 float64) float64 {
	a := FourMomentum(p0, m0)
	b := FourMomentum(p1, m1)
	return fmom.Add(&a, &b).M()
}

// Pt returns the transverse momentum of the summed momenta.
func Pt(moms ...r3.Vec) float64 {
	var s r3.Vec
	for _, p := range moms {
		s = r3.Add(s, p)
	}
	return math.Hypot(s.X, s.Y)
}

// P returns the magnitude of the summed momenta.
func P(moms ...r3.Vec) float64 {
	var s r3.Vec
	for _, p := range moms {
		s = r3.Add(s, p)
	}
	return r3.Norm(s)
}

// Distance is the 3D distance between two points.
func Distance(a, b r3.Vec) float64 {
	return r3.Norm(r3.Sub(a, b))
}

// DistanceXY is the transverse distance between two points.
func DistanceXY(a, b r3.Vec) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// CPA is the cosine of the pointing angle between the flight line from the
// primary vertex pv to the secondary vertex sv and the momentum p. The result
// is clamped to [-1, 1]; a degenerate flight line or momentum gives 0.
func CPA(pv, sv, p r3.Vec) float64 {
	line := r3.Sub(sv, pv)
	den := math.Sqrt(r3.Norm2(line) * r3.Norm2(p))
	if den == 0 {
		return 0
	}
	return clampCos(r3.Dot(line, p) / den)
}

// CPAXY is CPA restricted to the transverse plane.
func CPAXY(pv, sv, p r3.Vec) float64 {
	lx, ly := sv.X-pv.X, sv.Y-pv.Y
	den := math.Sqrt((lx*lx + ly*ly) * (p.X*p.X + p.Y*p.Y))
	if den == 0 {
		return 0
	}
	return clampCos((lx*p.X + ly*p.Y) / den)
}

func clampCos(c float64) float64 {
	switch {
	case c < -1:
		return -1
	case c > 1:
		return 1
	}
	return c
}
