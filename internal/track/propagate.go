package track

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/omegac/internal/physics"
)

// ErrInvalidTrack is returned when a trajectory cannot be propagated.
var ErrInvalidTrack = errors.New("invalid track parameters")

// maxPropagationSteps bounds the stepping loop of PropagateToDCA.
const maxPropagationSteps = 1000

// DCA is the signed distance of closest approach to a vertex. Y is the
// transverse component along the left-hand normal of the track direction,
// Z the longitudinal offset. Sigmas include the vertex covariance.
type DCA struct {
	Y       float64
	Z       float64
	SigmaY2 float64
	SigmaZ2 float64
	SigmaYZ float64
}

// R2 returns the squared 3D distance.
func (d DCA) R2() float64 { return d.Y*d.Y + d.Z*d.Z }

// Propagator transports trajectories through a field with optional material
// effects.
type Propagator struct {
	Field    Field
	Material *MaterialLUT // nil disables material corrections
	MaxStep  float64      // cm; 0 means a single step
	Mass     float64      // hypothesis for multiple scattering; 0 means pion
}

// NewPropagator returns a propagator for field f.
func NewPropagator(f Field, lut *MaterialLUT, maxStep float64) *Propagator {
	return &Propagator{Field: f, Material: lut, MaxStep: maxStep}
}

// PropagateToDCA moves t to its point of closest transverse approach to v
// and returns the propagated trajectory with its impact parameter. The field
// is re-evaluated at the start of every step.
func (p *Propagator) PropagateToDCA(t ParCov, v Vertex) (ParCov, DCA, error) {
	if !t.Valid() {
		return t, DCA{}, ErrInvalidTrack
	}
	mass := p.Mass
	if mass == 0 {
		mass = physics.MassPiPlus
	}
	cur := t
	for step := 0; step < maxPropagationSteps; step++ {
		bz := p.Field.Bz(cur.Pos)
		s := NewHelix(cur.Params, bz).ArcTo(v.Pos.X, v.Pos.Y)
		last := true
		if p.MaxStep > 0 && math.Abs(s) > p.MaxStep {
			s = math.Copysign(p.MaxStep, s)
			last = false
		}
		next := cur.Propagate(s, bz)
		if p.Material != nil {
			next = scatter(next, p.Material.X2X0(cur.Pos, next.Pos), mass)
		}
		if !next.Valid() {
			return t, DCA{}, fmt.Errorf("step %d: %w", step, ErrInvalidTrack)
		}
		cur = next
		if last {
			return cur, dcaTo(cur, v), nil
		}
	}
	return t, DCA{}, fmt.Errorf("no closest approach after %d steps", maxPropagationSteps)
}

func dcaTo(t ParCov, v Vertex) DCA {
	d := r3.Sub(t.Pos, v.Pos)
	sn, cs := math.Sincos(t.Phi())
	nx, ny := -sn, cs
	c := t.cov()
	syy := nx*nx*c.At(0, 0) + 2*nx*ny*c.At(0, 1) + ny*ny*c.At(1, 1)
	syy += nx*nx*v.covAt(0, 0) + 2*nx*ny*v.covAt(0, 1) + ny*ny*v.covAt(1, 1)
	syz := nx*c.At(0, 2) + ny*c.At(1, 2) + nx*v.covAt(0, 2) + ny*v.covAt(1, 2)
	return DCA{
		Y:       d.X*nx + d.Y*ny,
		Z:       d.Z,
		SigmaY2: syy,
		SigmaZ2: c.At(2, 2) + v.covAt(2, 2),
		SigmaYZ: syz,
	}
}
