package vertexing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/omegac/internal/track"
)

// Outcome is the result of a two-body fit.
type Outcome int

const (
	// Converged means a PCA was found and the accessors are valid.
	Converged Outcome = iota
	// NotConverged covers iteration budget exhaustion and singular systems.
	NotConverged
	// GeometryRejected means every seed or the final PCA violated MaxR or
	// MaxDZIni.
	GeometryRejected
	// NumericalFault means a non-finite value or panic occurred inside the
	// fit.
	NumericalFault
)

func (o Outcome) String() string {
	switch o {
	case Converged:
		return "converged"
	case NotConverged:
		return "not_converged"
	case GeometryRejected:
		return "geometry_rejected"
	case NumericalFault:
		return "numerical_fault"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// OK reports whether the fit converged.
func (o Outcome) OK() bool { return o == Converged }

// Config holds the fitter settings.
type Config struct {
	Bz               float64 // kG
	PropagateToPCA   bool
	UseAbsDCA        bool
	MaxR             float64 // cm
	MaxDZIni         float64 // cm; <= 0 disables the check
	MinParamChange   float64 // cm
	MinRelChi2Change float64
	MaxIter          int
}

// DefaultConfig returns the standard settings for a nominal 5 kG field.
func DefaultConfig() Config {
	return Config{
		Bz:               5,
		PropagateToPCA:   true,
		UseAbsDCA:        true,
		MaxR:             200,
		MaxDZIni:         4,
		MinParamChange:   1e-3,
		MinRelChi2Change: 0.9,
		MaxIter:          20,
	}
}

// maxHalvings bounds the step-halving search inside one Newton iteration.
const maxHalvings = 6

// covFloor regularises position covariances before inversion (cm²).
const covFloor = 1e-12

// Fitter finds the point of closest approach of two trajectories.
//
// A Fitter is a scratch workspace: every call to Fit resets it, and the
// accessors describe the most recent successful fit only. It is not safe for
// concurrent or reentrant use; give each worker its own instance.
type Fitter struct {
	cfg Config

	valid  bool
	pca    r3.Vec
	pcaCov *mat.SymDense
	chi2   float64
	iters  int
	atPCA  [2]track.ParCov // as exposed to callers
	moved  [2]track.ParCov // always propagated, used for the parent
}

// NewFitter returns a fitter with the given configuration.
func NewFitter(cfg Config) *Fitter {
	if cfg.MaxIter <= 0 {
		cfg.MaxIter = DefaultConfig().MaxIter
	}
	return &Fitter{cfg: cfg}
}

// Config returns the current configuration.
func (f *Fitter) Config() Config { return f.cfg }

// SetBz updates the field used by subsequent fits.
func (f *Fitter) SetBz(bz float64) {
	if bz != f.cfg.Bz {
		diagf("field changed from %.3f to %.3f kG", f.cfg.Bz, bz)
	}
	f.cfg.Bz = bz
}

// Reset clears the result of the previous fit.
func (f *Fitter) Reset() {
	f.valid = false
	f.pca = r3.Vec{}
	f.pcaCov = nil
	f.chi2 = 0
	f.iters = 0
	f.atPCA = [2]track.ParCov{}
	f.moved = [2]track.ParCov{}
}

// Valid reports whether the accessors hold a converged fit.
func (f *Fitter) Valid() bool { return f.valid }

// PCA returns the fitted point of closest approach.
func (f *Fitter) PCA() r3.Vec { return f.pca }

// PCACovariance returns the 3×3 covariance of the PCA.
func (f *Fitter) PCACovariance() *mat.SymDense { return f.pcaCov }

// Chi2AtPCA returns the fit χ². With UseAbsDCA it is the unweighted sum of
// squared residuals in cm².
func (f *Fitter) Chi2AtPCA() float64 { return f.chi2 }

// Iterations returns the number of Newton iterations of the winning seed.
func (f *Fitter) Iterations() int { return f.iters }

// TrackAtPCA returns trajectory i (0 or 1) at the PCA, or unpropagated when
// PropagateToPCA is off.
func (f *Fitter) TrackAtPCA(i int) track.ParCov { return f.atPCA[i] }

// CreateParent returns the mother trajectory at the PCA: summed momenta and
// charges, the PCA covariance as position block and the summed daughter
// momentum covariances as momentum block.
func (f *Fitter) CreateParent() track.ParCov {
	if !f.valid {
		return track.ParCov{}
	}
	a, b := f.moved[0], f.moved[1]
	cov := mat.NewSymDense(track.StateDim, nil)
	ma, mb := a.MomCov(), b.MomCov()
	for i := 0; i < 3; i++ {
		for j := 0; j <= i; j++ {
			cov.SetSym(i, j, f.pcaCov.At(i, j))
			cov.SetSym(3+i, 3+j, ma.At(i, j)+mb.At(i, j))
		}
	}
	return track.ParCov{
		Params: track.Params{
			Pos:    f.pca,
			Mom:    r3.Add(a.Mom, b.Mom),
			Charge: a.Charge + b.Charge,
		},
		Cov: cov,
	}
}

// candidate is the minimum reached from one seed.
type candidate struct {
	s     [2]float64
	iters int
}

// Fit searches the PCA of a and b. Failures are reported through the
// Outcome; a failed fit leaves the fitter in its reset state.
func (f *Fitter) Fit(a, b track.ParCov) (out Outcome) {
	f.Reset()
	defer func() {
		if r := recover(); r != nil {
			tracef("fit panic recovered: %v", r)
			f.Reset()
			out = NumericalFault
		}
	}()
	if !a.Valid() || !b.Valid() {
		return NumericalFault
	}

	ha := track.NewHelix(a.Params, f.cfg.Bz)
	hb := track.NewHelix(b.Params, f.cfg.Bz)

	var (
		best      candidate
		bestChi2  = math.Inf(1)
		found     bool
		sawFault  bool
		sawNoConv bool
	)
	for _, sd := range crossings(ha, hb) {
		if !finite(sd.x, sd.y) {
			sawFault = true
			continue
		}
		if math.Hypot(sd.x, sd.y) > f.cfg.MaxR {
			continue
		}
		s := [2]float64{ha.ArcTo(sd.x, sd.y), hb.ArcTo(sd.x, sd.y)}
		if f.cfg.MaxDZIni > 0 && math.Abs(ha.Point(s[0]).Z-hb.Point(s[1]).Z) > f.cfg.MaxDZIni {
			continue
		}
		c, o := f.minimize(a, b, ha, hb, s)
		switch o {
		case Converged:
			chi2, _, _, err := f.evaluate(a, b, c.s)
			if err != nil {
				sawFault = true
				continue
			}
			if chi2 < bestChi2 {
				best, bestChi2, found = c, chi2, true
			}
		case NumericalFault:
			sawFault = true
		default:
			sawNoConv = true
		}
	}

	switch {
	case !found && sawFault:
		return NumericalFault
	case !found && sawNoConv:
		return NotConverged
	case !found:
		return GeometryRejected
	}

	chi2, pca, pcaCov, err := f.evaluate(a, b, best.s)
	if err != nil {
		return NumericalFault
	}
	if math.Hypot(pca.X, pca.Y) > f.cfg.MaxR {
		return GeometryRejected
	}

	f.moved[0] = a.Propagate(best.s[0], f.cfg.Bz)
	f.moved[1] = b.Propagate(best.s[1], f.cfg.Bz)
	if f.cfg.PropagateToPCA {
		f.atPCA = f.moved
	} else {
		f.atPCA = [2]track.ParCov{a, b}
	}
	f.pca = pca
	f.pcaCov = pcaCov
	f.chi2 = chi2
	f.iters = best.iters
	f.valid = true
	return Converged
}

// minimize runs Newton iterations on the two arc lengths.
func (f *Fitter) minimize(a, b track.ParCov, ha, hb track.Helix, s [2]float64) (candidate, Outcome) {
	w, err := f.weight(a, b, s)
	if err != nil {
		return candidate{}, NumericalFault
	}
	fval := objective(ha, hb, s, w)
	for iter := 1; iter <= f.cfg.MaxIter; iter++ {
		step, ok := newtonStep(ha, hb, s, w)
		if !ok {
			return candidate{}, NotConverged
		}
		obj := func(at [2]float64) float64 { return objective(ha, hb, at, w) }
		next, fnext, improved := lineSearch(obj, s, step, fval)
		if !finite(next[0], next[1], fnext) {
			return candidate{}, NumericalFault
		}
		if !improved {
			// no descent along the Newton direction: s is the minimum found
			return candidate{s: s, iters: iter}, Converged
		}
		dmax := math.Max(math.Abs(next[0]-s[0]), math.Abs(next[1]-s[1]))
		s = next
		if !f.cfg.UseAbsDCA {
			// re-linearise the weights at the new point
			if w, err = f.weight(a, b, s); err != nil {
				return candidate{}, NumericalFault
			}
			fnext = objective(ha, hb, s, w)
		}
		prev := fval
		fval = fnext
		if dmax < f.cfg.MinParamChange || (prev > 0 && fval/prev > f.cfg.MinRelChi2Change) {
			return candidate{s: s, iters: iter}, Converged
		}
	}
	return candidate{}, NotConverged
}

// lineSearch halves step until obj does not increase from fval at s. When
// every halving increases it, s and fval are returned with improved false.
// A NaN value ends the search and is returned as is.
func lineSearch(obj func([2]float64) float64, s, step [2]float64, fval float64) (next [2]float64, fnext float64, improved bool) {
	lambda := 1.0
	for k := 0; k < maxHalvings; k++ {
		next = [2]float64{s[0] + lambda*step[0], s[1] + lambda*step[1]}
		fnext = obj(next)
		if fnext <= fval || math.IsNaN(fnext) {
			return next, fnext, true
		}
		lambda *= 0.5
	}
	return s, fval, false
}

// weight returns the metric of the distance: identity for absolute DCA,
// otherwise the inverse of the summed position covariances at s.
func (f *Fitter) weight(a, b track.ParCov, s [2]float64) (*mat.SymDense, error) {
	if f.cfg.UseAbsDCA {
		return identity3(), nil
	}
	ca := a.Propagate(s[0], f.cfg.Bz).PosCov()
	cb := b.Propagate(s[1], f.cfg.Bz).PosCov()
	sum := mat.NewSymDense(3, nil)
	sum.AddSym(ca, cb)
	return invertSym(sum)
}

// evaluate computes χ², PCA and PCA covariance for arc lengths s.
func (f *Fitter) evaluate(a, b track.ParCov, s [2]float64) (float64, r3.Vec, *mat.SymDense, error) {
	pa := a.Propagate(s[0], f.cfg.Bz)
	pb := b.Propagate(s[1], f.cfg.Bz)
	wa, err := invertSym(pa.PosCov())
	if err != nil {
		return 0, r3.Vec{}, nil, err
	}
	wb, err := invertSym(pb.PosCov())
	if err != nil {
		return 0, r3.Vec{}, nil, err
	}
	wsum := mat.NewSymDense(3, nil)
	wsum.AddSym(wa, wb)
	pcaCov, err := invertSym(wsum)
	if err != nil {
		return 0, r3.Vec{}, nil, err
	}

	var pca r3.Vec
	if f.cfg.UseAbsDCA {
		pca = r3.Scale(0.5, r3.Add(pa.Pos, pb.Pos))
	} else {
		pca = mulSym(pcaCov, r3.Add(mulSym(wa, pa.Pos), mulSym(wb, pb.Pos)))
	}
	ra := r3.Sub(pa.Pos, pca)
	rb := r3.Sub(pb.Pos, pca)
	var chi2 float64
	if f.cfg.UseAbsDCA {
		chi2 = r3.Norm2(ra) + r3.Norm2(rb)
	} else {
		chi2 = r3.Dot(ra, mulSym(wa, ra)) + r3.Dot(rb, mulSym(wb, rb))
	}
	if !finite(chi2, pca.X, pca.Y, pca.Z) {
		return 0, r3.Vec{}, nil, fmt.Errorf("non-finite fit result")
	}
	return chi2, pca, pcaCov, nil
}

// objective is the weighted squared distance Dᵀ·W·D between the helices.
func objective(ha, hb track.Helix, s [2]float64, w *mat.SymDense) float64 {
	d := r3.Sub(ha.Point(s[0]), hb.Point(s[1]))
	return r3.Dot(d, mulSym(w, d))
}

// newtonStep solves H·Δ = −g for the arc-length update. A Hessian that is not
// positive definite falls back to the Gauss-Newton matrix.
func newtonStep(ha, hb track.Helix, s [2]float64, w *mat.SymDense) ([2]float64, bool) {
	d := r3.Sub(ha.Point(s[0]), hb.Point(s[1]))
	ta, tb := ha.Tangent(s[0]), hb.Tangent(s[1])
	ka, kb := ha.Curvature(s[0]), hb.Curvature(s[1])
	wd := mulSym(w, d)
	wta := mulSym(w, ta)
	wtb := mulSym(w, tb)

	g := mat.NewVecDense(2, []float64{-2 * r3.Dot(ta, wd), 2 * r3.Dot(tb, wd)})
	gnAA := 2 * r3.Dot(ta, wta)
	gnBB := 2 * r3.Dot(tb, wtb)
	hAB := -2 * r3.Dot(ta, wtb)

	full := mat.NewSymDense(2, []float64{
		gnAA + 2*r3.Dot(ka, wd), hAB,
		hAB, gnBB - 2*r3.Dot(kb, wd),
	})
	if step, ok := solve2(full, g); ok {
		return step, true
	}
	return solve2(mat.NewSymDense(2, []float64{gnAA, hAB, hAB, gnBB}), g)
}

func solve2(h *mat.SymDense, rhs *mat.VecDense) ([2]float64, bool) {
	var chol mat.Cholesky
	if !chol.Factorize(h) {
		return [2]float64{}, false
	}
	var x mat.VecDense
	if err := chol.SolveVecTo(&x, rhs); err != nil {
		return [2]float64{}, false
	}
	step := [2]float64{x.AtVec(0), x.AtVec(1)}
	if !finite(step[0], step[1]) {
		return [2]float64{}, false
	}
	return step, true
}

func invertSym(m *mat.SymDense) (*mat.SymDense, error) {
	reg := mat.NewSymDense(3, nil)
	reg.CopySym(m)
	for i := 0; i < 3; i++ {
		reg.SetSym(i, i, reg.At(i, i)+covFloor)
	}
	var chol mat.Cholesky
	if !chol.Factorize(reg) {
		return nil, fmt.Errorf("covariance not positive definite")
	}
	inv := mat.NewSymDense(3, nil)
	if err := chol.InverseTo(inv); err != nil {
		return nil, fmt.Errorf("invert covariance: %w", err)
	}
	return inv, nil
}

func identity3() *mat.SymDense {
	return mat.NewSymDense(3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
}

func mulSym(m *mat.SymDense, v r3.Vec) r3.Vec {
	return r3.Vec{
		X: m.At(0, 0)*v.X + m.At(0, 1)*v.Y + m.At(0, 2)*v.Z,
		Y: m.At(1, 0)*v.X + m.At(1, 1)*v.Y + m.At(1, 2)*v.Z,
		Z: m.At(2, 0)*v.X + m.At(2, 1)*v.Y + m.At(2, 2)*v.Z,
	}
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
