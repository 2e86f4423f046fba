package mctruth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/omegac/internal/aod"
	"github.com/banshee-data/omegac/internal/physics"
)

// omegacEvent builds Ωc⁰ → Ω⁻ π⁺, Ω⁻ → Λ K⁻, Λ → p π⁻ with the indices
//
//	0 Ωc⁰, 1 Ω⁻, 2 π⁺, 3 Λ, 4 K⁻, 5 p, 6 π⁻
func omegacEvent() []aod.McParticle {
	return []aod.McParticle{
		{PdgCode: physics.PdgOmegaC0, Daughters: []int{1, 2}, Mom: [3]float64{2, 0, 1}},
		{PdgCode: physics.PdgOmega, Mothers: []int{0}, Daughters: []int{3, 4}, Mom: [3]float64{1.5, 0, 0.8}, Vtx: [3]float64{0.003, 0.004, 0}},
		{PdgCode: physics.PdgPiPlus, Mothers: []int{0}, Mom: [3]float64{0.5, 0, 0.2}, Vtx: [3]float64{0.003, 0.004, 0}},
		{PdgCode: physics.PdgLambda0, Mothers: []int{1}, Daughters: []int{5, 6}, Vtx: [3]float64{3, 4, 12}},
		{PdgCode: physics.PdgKMinus, Mothers: []int{1}, Vtx: [3]float64{3, 4, 12}},
		{PdgCode: physics.PdgProton, Mothers: []int{3}, Vtx: [3]float64{6, 8, 20}},
		{PdgCode: physics.PdgPiMinus, Mothers: []int{3}, Vtx: [3]float64{6, 8, 20}},
	}
}

var fullLabels = ChainLabels{Bachelor: 2, CascBach: 4, V0Pos: 5, V0Neg: 6}

func TestMatchChain_FullyReconstructed(t *testing.T) {
	parts := omegacEvent()
	m := MatchChain(parts, fullLabels)

	require.True(t, m.Matched)
	assert.Equal(t, ChannelOmegaPi, m.Channel)
	for name, l := range map[string]LayerMatch{"baryon": m.Baryon, "casc": m.Casc, "v0": m.V0} {
		assert.True(t, l.Matched, name)
		assert.Equal(t, 1, l.Sign, name)
		assert.Zero(t, l.NPiToMu, name)
		assert.Zero(t, l.NKaToPi, name)
	}
	assert.Equal(t, 0, m.Baryon.Index)
	assert.Equal(t, 1, m.Casc.Index)
	assert.Equal(t, 3, m.V0.Index)
	assert.Equal(t, OriginPrompt, m.Origin)
	assert.Empty(t, m.Beauty)
}

func TestMatchChain_SingleLayerMismatch(t *testing.T) {
	base := omegacEvent()
	// 7 Λ with daughters 8 p and 9 π⁻, produced promptly
	// 10 K⁻ and 11 π⁺, produced promptly
	extra := []aod.McParticle{
		{PdgCode: physics.PdgLambda0, Daughters: []int{8, 9}},
		{PdgCode: physics.PdgProton, Mothers: []int{7}},
		{PdgCode: physics.PdgPiMinus, Mothers: []int{7}},
		{PdgCode: physics.PdgKMinus},
		{PdgCode: physics.PdgPiPlus},
	}
	parts := append(base, extra...)

	tests := []struct {
		name   string
		labels ChainLabels
		v0     bool
	}{
		{"v0 proton from another lambda", ChainLabels{Bachelor: 2, CascBach: 4, V0Pos: 8, V0Neg: 6}, false},
		{"cascade bachelor not from the omega", ChainLabels{Bachelor: 2, CascBach: 10, V0Pos: 5, V0Neg: 6}, true},
		{"pion not from the omegac", ChainLabels{Bachelor: 11, CascBach: 4, V0Pos: 5, V0Neg: 6}, true},
		{"unlabelled bachelor", ChainLabels{Bachelor: aod.NoIndex, CascBach: 4, V0Pos: 5, V0Neg: 6}, true},
		{"v0 and cascade of another decay", ChainLabels{Bachelor: 2, CascBach: 4, V0Pos: 8, V0Neg: 9}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := MatchChain(parts, tt.labels)
			assert.False(t, m.Matched)
			assert.Equal(t, ChannelNone, m.Channel)
			assert.Equal(t, aod.NoIndex, m.Baryon.Index)
			assert.Equal(t, OriginNone, m.Origin)
			assert.Equal(t, tt.v0, m.V0.Matched)
		})
	}
}

func TestMatchChain_PionToMuon(t *testing.T) {
	parts := omegacEvent()
	parts[2].Daughters = []int{7}
	parts = append(parts, aod.McParticle{PdgCode: -physics.PdgMuon, Mothers: []int{2}})

	m := MatchChain(parts, ChainLabels{Bachelor: 7, CascBach: 4, V0Pos: 5, V0Neg: 6})
	require.True(t, m.Matched)
	assert.Equal(t, ChannelOmegaPi, m.Channel)
	assert.Equal(t, 1, m.Baryon.NPiToMu)
	assert.Zero(t, m.Casc.NPiToMu)
}

func TestMatchChain_KaonToPion(t *testing.T) {
	parts := omegacEvent()
	parts[2].PdgCode = physics.PdgKPlus
	parts[2].Daughters = []int{7}
	parts = append(parts, aod.McParticle{PdgCode: physics.PdgPiPlus, Mothers: []int{2}})

	m := MatchChain(parts, ChainLabels{Bachelor: 7, CascBach: 4, V0Pos: 5, V0Neg: 6})
	require.True(t, m.Matched)
	assert.Equal(t, ChannelOmegaK, m.Channel)
	assert.Equal(t, 1, m.Baryon.NKaToPi)
}

func TestMatchChain_Antiparticle(t *testing.T) {
	parts := omegacEvent()
	for i := range parts {
		parts[i].PdgCode = -parts[i].PdgCode
	}
	m := MatchChain(parts, fullLabels)
	require.True(t, m.Matched)
	assert.Equal(t, -1, m.Baryon.Sign)
	assert.Equal(t, -1, m.Casc.Sign)
	assert.Equal(t, -1, m.V0.Sign)
}

func TestMatchChain_XiC(t *testing.T) {
	parts := omegacEvent()
	parts[0].PdgCode = physics.PdgXiC0
	parts[1].PdgCode = physics.PdgXiMinus
	parts[4].PdgCode = physics.PdgPiMinus

	m := MatchChain(parts, fullLabels)
	require.True(t, m.Matched)
	assert.Equal(t, ChannelXiPi, m.Channel)
}

func TestMatchLayer_ExtraDaughterRejected(t *testing.T) {
	parts := omegacEvent()
	// a third Λ daughter makes the p π⁻ pair an incomplete reconstruction
	parts[3].Daughters = []int{5, 6, 7}
	parts = append(parts, aod.McParticle{PdgCode: 22, Mothers: []int{3}})

	m := MatchLayer(parts, []int{5, 6}, lambdaDecay, Substitutions{})
	assert.False(t, m.Matched)
}

func TestCharmHadronOrigin(t *testing.T) {
	parts := omegacEvent()
	origin, beauty := CharmHadronOrigin(parts, 0)
	assert.Equal(t, OriginPrompt, origin)
	assert.Nil(t, beauty)

	// Λb⁰ → Ωc⁰ X, with a string entry above the Λb
	parts[0].Mothers = []int{7}
	parts = append(parts,
		aod.McParticle{PdgCode: 5122, Mothers: []int{8}, Daughters: []int{0}},
		aod.McParticle{PdgCode: 92, Daughters: []int{7}},
	)
	origin, beauty = CharmHadronOrigin(parts, 0)
	assert.Equal(t, OriginNonPrompt, origin)
	assert.Equal(t, []int{7}, beauty)
	assert.Equal(t, "non_prompt", origin.String())

	origin, _ = CharmHadronOrigin(parts, 99)
	assert.Equal(t, OriginNone, origin)
}

func TestScanGenerated(t *testing.T) {
	parts := omegacEvent()
	colls := []aod.McCollision{{Pos: [3]float64{0, 0, 0}}}

	// 7 Ξc⁰ → Ξ⁻ K⁺ is not a recognised channel
	// 10 Ωc⁰ with three daughters is skipped
	parts = append(parts,
		aod.McParticle{PdgCode: physics.PdgXiC0, Daughters: []int{8, 9}},
		aod.McParticle{PdgCode: physics.PdgXiMinus, Mothers: []int{7}},
		aod.McParticle{PdgCode: physics.PdgKPlus, Mothers: []int{7}},
		aod.McParticle{PdgCode: -physics.PdgOmegaC0, Daughters: []int{11, 12, 13}},
		aod.McParticle{PdgCode: -physics.PdgOmega, Mothers: []int{10}},
		aod.McParticle{PdgCode: physics.PdgPiMinus, Mothers: []int{10}},
		aod.McParticle{PdgCode: 111, Mothers: []int{10}},
	)

	gens := ScanGenerated(parts, colls)
	require.Len(t, gens, 1)
	g := gens[0]
	assert.Equal(t, 0, g.Particle)
	assert.Equal(t, 1, g.CascParticle)
	assert.Equal(t, 2, g.BachParticle)
	assert.Equal(t, ChannelOmegaPi, g.Channel)
	assert.Equal(t, physics.PdgOmegaC0, g.PdgCode)
	assert.Equal(t, physics.PdgOmega, g.CascPdgCode)
	assert.InDelta(t, 0.005, g.DecayLength, 1e-12)
	assert.InDelta(t, 0.005, g.DecayLengthXY, 1e-12)
	assert.InDelta(t, 13, g.CascDecayLength, 1e-12)
	assert.InDelta(t, 5, g.CascDecayLengthXY, 1e-12)
	assert.Equal(t, OriginPrompt, g.Origin)

	// a generated cascade without daughters keeps the -1 decay length
	parts[1].Daughters = nil
	gens = ScanGenerated(parts, colls)
	require.Len(t, gens, 1)
	assert.Equal(t, -1.0, gens[0].CascDecayLength)
	assert.Equal(t, -1.0, gens[0].CascDecayLengthXY)
}

func TestGenContext(t *testing.T) {
	parts := omegacEvent()
	ctx := NewGenContext()
	ctx.Set(0, 41)

	assert.Equal(t, 41, ctx.Row(0))
	assert.Equal(t, aod.NoIndex, ctx.Row(1))
	assert.Equal(t, 41, ctx.MotherRow(parts, 2))
	assert.Equal(t, 41, ctx.MotherRow(parts, 1))
	assert.Equal(t, aod.NoIndex, ctx.MotherRow(parts, 0))
	assert.Equal(t, aod.NoIndex, ctx.MotherRow(parts, aod.NoIndex))
	assert.Equal(t, 1, ctx.Len())

	var none *GenContext
	assert.Equal(t, aod.NoIndex, none.Row(0))
}
