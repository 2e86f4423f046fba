package track

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// MaterialLayer is a cylindrical shell of material.
type MaterialLayer struct {
	RMin float64 `json:"r_min"` // cm
	RMax float64 `json:"r_max"` // cm
	X2X0 float64 `json:"x2x0"`  // thickness in radiation lengths at normal incidence
}

// MaterialLUT is a coarse material budget lookup made of cylindrical layers.
type MaterialLUT struct {
	Layers []MaterialLayer `json:"layers"`
}

// Validate checks that every layer is well formed.
func (m *MaterialLUT) Validate() error {
	if len(m.Layers) == 0 {
		return errors.New("material LUT has no layers")
	}
	for i, l := range m.Layers {
		if l.RMin < 0 || l.RMax <= l.RMin {
			return fmt.Errorf("layer %d: invalid radii [%g, %g]", i, l.RMin, l.RMax)
		}
		if l.X2X0 < 0 {
			return fmt.Errorf("layer %d: negative x/X0 %g", i, l.X2X0)
		}
	}
	return nil
}

// X2X0 returns the material crossed, in radiation lengths, by a straight
// segment from a to b.
func (m *MaterialLUT) X2X0(a, b r3.Vec) float64 {
	ra := math.Hypot(a.X, a.Y)
	rb := math.Hypot(b.X, b.Y)
	lo, hi := math.Min(ra, rb), math.Max(ra, rb)
	seg := r3.Sub(b, a)
	length := r3.Norm(seg)
	if length == 0 {
		return 0
	}
	// path length per unit radial advance, capped for tangential segments
	cosInc := math.Max((hi-lo)/length, 0.1)
	var x float64
	for _, l := range m.Layers {
		overlap := math.Min(hi, l.RMax) - math.Max(lo, l.RMin)
		if overlap <= 0 {
			continue
		}
		x += l.X2X0 * overlap / (l.RMax - l.RMin) / cosInc
	}
	return x
}

// scatter inflates the momentum covariance of t by the Highland multiple
// scattering angle for x2x0 radiation lengths, assuming mass m.
func scatter(t ParCov, x2x0, m float64) ParCov {
	if x2x0 <= 0 {
		return t
	}
	p2 := r3.Norm2(t.Mom)
	if p2 == 0 {
		return t
	}
	p := math.Sqrt(p2)
	beta := p / math.Sqrt(p2+m*m)
	theta0 := 0.0136 / (beta * p) * math.Sqrt(x2x0) * (1 + 0.038*math.Log(x2x0/(beta*beta)))
	if theta0 <= 0 || math.IsNaN(theta0) {
		return t
	}
	// (p²·I − p·pᵀ)·θ0² spreads the direction while preserving |p|
	k := theta0 * theta0
	mom := [3]float64{t.Mom.X, t.Mom.Y, t.Mom.Z}
	cov := mat.NewSymDense(StateDim, nil)
	cov.CopySym(t.cov())
	for i := 0; i < 3; i++ {
		for j := 0; j <= i; j++ {
			d := -mom[i] * mom[j]
			if i == j {
				d += p2
			}
			cov.SetSym(3+i, 3+j, cov.At(3+i, 3+j)+k*d)
		}
	}
	return ParCov{Params: t.Params, Cov: cov}
}
