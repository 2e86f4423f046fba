package track

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// B2C converts field × length to transverse momentum: pt[GeV/c] = B2C·B[kG]·R[cm].
const B2C = 0.299792458e-3

// StateDim is the dimension of the Cartesian track state (x, y, z, px, py, pz).
const StateDim = 6

// CovLen is the number of independent entries of a packed lower-triangular
// state covariance.
const CovLen = StateDim * (StateDim + 1) / 2

// defaultCovDiag is used when a trajectory arrives without covariance:
// 100 µm in position, 1 MeV/c in momentum.
var defaultCovDiag = [StateDim]float64{1e-4, 1e-4, 1e-4, 1e-6, 1e-6, 1e-6}

// Params is a trajectory state at a reference point.
type Params struct {
	Pos    r3.Vec // cm
	Mom    r3.Vec // GeV/c
	Charge int    // sign of the charge; 0 for neutral
}

// Pt returns the transverse momentum.
func (p Params) Pt() float64 { return math.Hypot(p.Mom.X, p.Mom.Y) }

// P returns the total momentum.
func (p Params) P() float64 { return r3.Norm(p.Mom) }

// Phi returns the azimuth of the momentum.
func (p Params) Phi() float64 { return math.Atan2(p.Mom.Y, p.Mom.X) }

// Valid reports whether the state is finite and has non-zero transverse
// momentum.
func (p Params) Valid() bool {
	for _, v := range []float64{p.Pos.X, p.Pos.Y, p.Pos.Z, p.Mom.X, p.Mom.Y, p.Mom.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return p.Pt() > 0
}

func (p Params) vector() []float64 {
	return []float64{p.Pos.X, p.Pos.Y, p.Pos.Z, p.Mom.X, p.Mom.Y, p.Mom.Z}
}

func paramsFromVector(v []float64, charge int) Params {
	return Params{
		Pos:    r3.Vec{X: v[0], Y: v[1], Z: v[2]},
		Mom:    r3.Vec{X: v[3], Y: v[4], Z: v[5]},
		Charge: charge,
	}
}

// Propagate moves the state by transverse arc length s in a uniform field bz
// (kG) along z.
func (p Params) Propagate(s, bz float64) Params {
	h := NewHelix(p, bz)
	return Params{Pos: h.Point(s), Mom: h.Momentum(s), Charge: p.Charge}
}

// ParCov is a trajectory state with its 6×6 Cartesian covariance. Values are
// never modified in place; propagation returns a new ParCov.
type ParCov struct {
	Params
	Cov *mat.SymDense
}

// NewParCov builds a ParCov from a packed lower-triangular covariance
// (row-major, CovLen entries). A nil cov yields a small diagonal default.
func NewParCov(pos, mom r3.Vec, charge int, cov []float64) (ParCov, error) {
	t := ParCov{Params: Params{Pos: pos, Mom: mom, Charge: charge}}
	switch len(cov) {
	case 0:
		t.Cov = DefaultCov()
	case CovLen:
		t.Cov = UnpackCov(cov)
	default:
		return ParCov{}, fmt.Errorf("covariance has %d entries, want %d", len(cov), CovLen)
	}
	return t, nil
}

// DefaultCov returns the covariance assumed for trajectories without one.
func DefaultCov() *mat.SymDense {
	c := mat.NewSymDense(StateDim, nil)
	for i, v := range defaultCovDiag {
		c.SetSym(i, i, v)
	}
	return c
}

// UnpackCov expands a packed lower-triangular covariance.
func UnpackCov(packed []float64) *mat.SymDense {
	c := mat.NewSymDense(StateDim, nil)
	k := 0
	for i := 0; i < StateDim; i++ {
		for j := 0; j <= i; j++ {
			c.SetSym(i, j, packed[k])
			k++
		}
	}
	return c
}

// PackCov is the inverse of UnpackCov.
func PackCov(c mat.Symmetric) []float64 {
	out := make([]float64, 0, CovLen)
	for i := 0; i < StateDim; i++ {
		for j := 0; j <= i; j++ {
			out = append(out, c.At(i, j))
		}
	}
	return out
}

// PosCov returns the 3×3 position block of the covariance.
func (t ParCov) PosCov() *mat.SymDense {
	return block(t.cov(), 0)
}

// MomCov returns the 3×3 momentum block of the covariance.
func (t ParCov) MomCov() *mat.SymDense {
	return block(t.cov(), 3)
}

func (t ParCov) cov() *mat.SymDense {
	if t.Cov == nil {
		return DefaultCov()
	}
	return t.Cov
}

func block(c *mat.SymDense, off int) *mat.SymDense {
	b := mat.NewSymDense(3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j <= i; j++ {
			b.SetSym(i, j, c.At(off+i, off+j))
		}
	}
	return b
}

// Propagate moves the trajectory by transverse arc length s in a uniform
// field bz and transports the covariance with the numerical Jacobian of the
// helix map.
func (t ParCov) Propagate(s, bz float64) ParCov {
	out := ParCov{Params: t.Params.Propagate(s, bz)}
	jac := mat.NewDense(StateDim, StateDim, nil)
	fd.Jacobian(jac, func(y, x []float64) {
		q := paramsFromVector(x, t.Charge).Propagate(s, bz)
		copy(y, q.vector())
	}, t.vector(), &fd.JacobianSettings{Formula: fd.Central, Step: 1e-7})
	out.Cov = transport(jac, t.cov())
	return out
}

// transport returns J·C·Jᵀ, symmetrised.
func transport(jac *mat.Dense, c *mat.SymDense) *mat.SymDense {
	var tmp, full mat.Dense
	tmp.Mul(jac, c)
	full.Mul(&tmp, jac.T())
	n, _ := full.Dims()
	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			out.SetSym(i, j, 0.5*(full.At(i, j)+full.At(j, i)))
		}
	}
	return out
}

// Vertex is a point with its 3×3 covariance, typically the primary vertex.
type Vertex struct {
	Pos r3.Vec
	Cov *mat.SymDense // may be nil
}

// NewVertex builds a Vertex from a packed lower-triangular covariance
// (xx, yx, yy, zx, zy, zz).
func NewVertex(pos r3.Vec, cov []float64) Vertex {
	v := Vertex{Pos: pos}
	if len(cov) == 6 {
		v.Cov = mat.NewSymDense(3, []float64{
			cov[0], cov[1], cov[3],
			cov[1], cov[2], cov[4],
			cov[3], cov[4], cov[5],
		})
	}
	return v
}

func (v Vertex) covAt(i, j int) float64 {
	if v.Cov == nil {
		return 0
	}
	return v.Cov.At(i, j)
}
