package physics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestInvariantMass_AtRest(t *testing.T) {
	t.Parallel()
	m := InvariantMass([]r3.Vec{{}}, []float64{MassOmega})
	assert.InDelta(t, MassOmega, m, 1e-12)
}

func TestInvariantMass_SymmetricUnderConsistentSwap(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		p0, p1 r3.Vec
		m0, m1 float64
	}{
		{"omega pi", r3.Vec{X: 1.2, Y: -0.3, Z: 0.8}, r3.Vec{X: 0.2, Y: 0.4, Z: -0.1}, MassOmega, MassPiPlus},
		{"lambda kaon", r3.Vec{X: -2.1, Y: 0.7, Z: 3.3}, r3.Vec{X: -0.4, Y: 0.05, Z: 0.6}, MassLambda0, MassKPlus},
		{"proton pion", r3.Vec{X: 0.9, Y: 0.9, Z: 0.0}, r3.Vec{X: 0.1, Y: -0.2, Z: 0.3}, MassProton, MassPiMinus},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			fwd := InvariantMass([]r3.Vec{tc.p0, tc.p1}, []float64{tc.m0, tc.m1})
			rev := InvariantMass([]r3.Vec{tc.p1, tc.p0}, []float64{tc.m1, tc.m0})
			assert.InDelta(t, fwd, rev, 1e-12)
			assert.InDelta(t, fwd, TwoBodyMass(tc.p0, tc.p1, tc.m0, tc.m1), 1e-12)
		})
	}
}

func TestInvariantMass_HypothesisOnlyChangesEnergy(t *testing.T) {
	t.Parallel()
	p0 := r3.Vec{X: 1, Y: 0.5, Z: 0.2}
	p1 := r3.Vec{X: 0.3, Y: -0.1, Z: 0.4}
	mXi := InvariantMass([]r3.Vec{p0, p1}, []float64{MassLambda0, MassPiPlus})
	mOm := InvariantMass([]r3.Vec{p0, p1}, []float64{MassLambda0, MassKPlus})
	assert.Greater(t, mOm, mXi)
}

func TestInvariantMass_BadInput(t *testing.T) {
	t.Parallel()
	assert.True(t, math.IsNaN(InvariantMass(nil, nil)))
	assert.True(t, math.IsNaN(InvariantMass([]r3.Vec{{X: 1}}, []float64{1, 2})))
}

func TestCPA(t *testing.T) {
	t.Parallel()
	pv := r3.Vec{}
	sv := r3.Vec{X: 1, Y: 1, Z: 0}

	assert.InDelta(t, 1.0, CPA(pv, sv, r3.Vec{X: 2, Y: 2}), 1e-12)
	assert.InDelta(t, -1.0, CPA(pv, sv, r3.Vec{X: -1, Y: -1}), 1e-12)
	assert.InDelta(t, 0.0, CPA(pv, sv, r3.Vec{X: 1, Y: -1}), 1e-12)
	assert.Equal(t, 0.0, CPA(pv, pv, r3.Vec{X: 1}))

	// XY ignores the longitudinal component
	assert.InDelta(t, 1.0, CPAXY(pv, r3.Vec{X: 1, Z: 5}, r3.Vec{X: 3, Z: -2}), 1e-12)
}

func TestDistance(t *testing.T) {
	t.Parallel()
	a := r3.Vec{X: 3, Y: 4, Z: 12}
	assert.InDelta(t, 13.0, Distance(a, r3.Vec{}), 1e-12)
	assert.InDelta(t, 5.0, DistanceXY(a, r3.Vec{}), 1e-12)
}

func TestIsBeautyHadron(t *testing.T) {
	t.Parallel()
	for _, pdg := range []int{511, -521, 531, 5122, -5132, 5332} {
		assert.True(t, IsBeautyHadron(pdg), "pdg %d", pdg)
	}
	for _, pdg := range []int{5, 211, 4332, 4122, 421, 3334} {
		assert.False(t, IsBeautyHadron(pdg), "pdg %d", pdg)
	}
}
