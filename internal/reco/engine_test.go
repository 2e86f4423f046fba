package reco

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/omegac/internal/aod"
	"github.com/banshee-data/omegac/internal/conditions"
	"github.com/banshee-data/omegac/internal/mctruth"
	"github.com/banshee-data/omegac/internal/monitoring"
	"github.com/banshee-data/omegac/internal/physics"
	"github.com/banshee-data/omegac/internal/track"
	"github.com/banshee-data/omegac/internal/vertexing"
)

const testBz = 5.0

type countingProvider struct {
	runs []int
	err  error
}

func (p *countingProvider) ConditionsForRun(_ context.Context, run int, ts int64) (*conditions.RunConditions, error) {
	p.runs = append(p.runs, run)
	if p.err != nil {
		return nil, p.err
	}
	return &conditions.RunConditions{Run: run, Timestamp: ts, Bz: testBz, Field: track.UniformField(testBz)}, nil
}

// twoBody decays a particle of momentum p and mass m into daughters of mass
// m1 and m2, with daughter 1 emitted along dir in the rest frame.
func twoBody(p r3.Vec, m, m1, m2 float64, dir r3.Vec) (r3.Vec, r3.Vec) {
	pStar := math.Sqrt((m*m-(m1+m2)*(m1+m2))*(m*m-(m1-m2)*(m1-m2))) / (2 * m)
	q := r3.Scale(pStar, r3.Unit(dir))
	e1 := math.Sqrt(pStar*pStar + m1*m1)
	e := math.Sqrt(r3.Norm2(p) + m*m)
	beta := r3.Scale(1/e, p)
	gamma := e / m
	bq := r3.Dot(beta, q)
	p1 := r3.Add(q, r3.Scale((gamma-1)*bq/r3.Norm2(beta)+gamma*e1, beta))
	return p1, r3.Sub(p, p1)
}

func vec3(v r3.Vec) [3]float64 { return [3]float64{v.X, v.Y, v.Z} }

func intp(i int) *int { return &i }

func goodTrack(pos, mom r3.Vec, sign, label int) aod.Track {
	return aod.Track{
		Pos:                vec3(pos),
		Mom:                vec3(mom),
		Sign:               sign,
		HasTPC:             true,
		ITSClusterMap:      0x7f,
		ITSChi2NCl:         2,
		TPCNClsFindable:    140,
		TPCNClsFound:       125,
		TPCNClsCrossedRows: 130,
		TPCChi2NCl:         1.5,
		TPCNSigmaPi:        0.3,
		TPCNSigmaKa:        0.4,
		TPCNSigmaPr:        0.2,
		McParticle:         intp(label),
	}
}

// omegacFrame builds one collision at the origin with Ωc⁰ → Ω⁻ π⁺,
// Ω⁻ → Λ K⁻, Λ → p π⁻. Track and MC particle indices:
//
//	tracks: 0 p, 1 π⁻, 2 K⁻, 3 tracked Ω⁻, 4 π⁺
//	particles: 0 Ωc⁰, 1 Ω⁻, 2 π⁺, 3 Λ, 4 K⁻, 5 p, 6 π⁻
func omegacFrame(run int) *aod.DataFrame {
	return omegacFrameWithMass(run, physics.MassOmegaC0)
}

// omegacFrameWithMass is omegacFrame with the Ωc⁰ decaying at mass m.
func omegacFrameWithMass(run int, m float64) *aod.DataFrame {
	pv := r3.Vec{}
	sv := r3.Vec{X: 0.006, Y: 0.008, Z: 0.01}
	pOmegaC := r3.Vec{X: 3, Y: 1.5, Z: 0.8}

	pOmega, pPi := twoBody(pOmegaC, m, physics.MassOmega, physics.MassPiPlus, r3.Vec{X: 0.3, Y: -0.8, Z: 0.2})
	atDecay := track.Params{Pos: sv, Mom: pOmega, Charge: -1}.Propagate(3, testBz)
	pLambda, pK := twoBody(atDecay.Mom, physics.MassOmega, physics.MassLambda0, physics.MassKMinus, r3.Vec{X: -0.5, Y: 0.6, Z: 0.3})
	lv := r3.Add(atDecay.Pos, r3.Scale(5, r3.Unit(pLambda)))
	pP, pPiMinus := twoBody(pLambda, physics.MassLambda0, physics.MassProton, physics.MassPiMinus, r3.Vec{X: 0.2, Y: 0.7, Z: -0.4})

	return &aod.DataFrame{
		BCs:        []aod.BC{{RunNumber: run, Timestamp: 1700000000000}},
		Collisions: []aod.Collision{{BC: 0, Sel8: true, McCollision: intp(0)}},
		Tracks: []aod.Track{
			goodTrack(lv, pP, 1, 5),
			goodTrack(lv, pPiMinus, -1, 6),
			goodTrack(atDecay.Pos, pK, -1, 4),
			goodTrack(atDecay.Pos, atDecay.Mom, -1, 1),
			goodTrack(sv, pPi, 1, 2),
		},
		TrackAssoc: []aod.TrackAssoc{
			{Collision: 0, Track: 0}, {Collision: 0, Track: 1}, {Collision: 0, Track: 2},
			{Collision: 0, Track: 3}, {Collision: 0, Track: 4},
		},
		V0s:      []aod.V0{{PosTrack: 0, NegTrack: 1}},
		Cascades: []aod.Cascade{{V0: 0, Bachelor: 2}},
		TrackedCascades: []aod.TrackedCascade{
			{Collision: 0, Track: 3, Cascade: 0, MatchingChi2: 10, TopologyChi2: 1, XiMass: 1.4, OmegaMass: 1.67},
		},
		McCollisions: []aod.McCollision{{Pos: vec3(pv)}},
		McParticles: []aod.McParticle{
			{PdgCode: physics.PdgOmegaC0, McCollision: 0, Daughters: []int{1, 2}, Mom: vec3(pOmegaC), Vtx: vec3(pv)},
			{PdgCode: physics.PdgOmega, McCollision: 0, Mothers: []int{0}, Daughters: []int{3, 4}, Mom: vec3(pOmega), Vtx: vec3(sv)},
			{PdgCode: physics.PdgPiPlus, McCollision: 0, Mothers: []int{0}, Mom: vec3(pPi), Vtx: vec3(sv)},
			{PdgCode: physics.PdgLambda0, McCollision: 0, Mothers: []int{1}, Daughters: []int{5, 6}, Mom: vec3(pLambda), Vtx: vec3(atDecay.Pos)},
			{PdgCode: physics.PdgKMinus, McCollision: 0, Mothers: []int{1}, Mom: vec3(pK), Vtx: vec3(atDecay.Pos)},
			{PdgCode: physics.PdgProton, McCollision: 0, Mothers: []int{3}, Mom: vec3(pP), Vtx: vec3(lv)},
			{PdgCode: physics.PdgPiMinus, McCollision: 0, Mothers: []int{3}, Mom: vec3(pPiMinus), Vtx: vec3(lv)},
		},
	}
}

func newTestEngine(t *testing.T, mode Mode, prov conditions.Provider, sink Sink, hists *monitoring.Histograms) *Engine {
	t.Helper()
	e, err := NewEngine(Options{
		Mode:       mode,
		Cuts:       DefaultCuts(),
		Fitter:     vertexing.DefaultConfig(),
		Provider:   prov,
		Sink:       sink,
		Histograms: hists,
	})
	require.NoError(t, err)
	return e
}

func TestEngine_ReconstructsOmegaC(t *testing.T) {
	sink := &MemorySink{}
	hists := monitoring.NewHistograms(monitoring.DefaultHistSpecs())
	e := newTestEngine(t, ModeData, &countingProvider{}, sink, hists)

	require.NoError(t, e.Process(context.Background(), omegacFrame(1)))

	cands := sink.Candidates()
	require.Len(t, cands, 1)
	c := cands[0]
	assert.InDelta(t, physics.MassOmega, c.MassOmega, 1e-3)
	assert.InDelta(t, physics.MassLambda0, c.MassLambda, 1e-3)
	assert.InDelta(t, physics.MassOmegaC0, c.MassOmegaPi, 1e-3)
	assert.Greater(t, c.MassOmegaK, c.MassOmegaPi)

	assert.InDelta(t, 0.01414, c.DecayLengthCharmedBaryon, 1e-3)
	assert.InDelta(t, 0.01, c.DecayLengthXYCharmedBaryon, 1e-3)
	assert.Greater(t, c.DecayLengthCharmedBaryonUntracked, 0.0)
	assert.Greater(t, c.DecayLengthCasc, 3.0)
	assert.Greater(t, c.CpaCasc, 0.9)
	assert.False(t, c.IsPositiveCasc)
	assert.True(t, c.IsPositivePionOrKaon)
	assert.Equal(t, uint8(0x7f), c.ItsClusterMapPionOrKaon)
	assert.Equal(t, 1, c.RunNumber)

	// data mode carries no truth
	assert.Equal(t, aod.NoIndex, c.MotherCasc)
	assert.Equal(t, aod.NoIndex, c.MotherPionOrKaon)
	assert.False(t, c.McMatched)
	assert.Equal(t, mctruth.ChannelNone, c.McChannel)
	assert.Empty(t, sink.Generated())

	st := e.Stats()
	assert.Equal(t, 4, st.SelfPairs)
	assert.Equal(t, 1, st.Candidates)
	assert.Equal(t, FitStats{Attempted: 1, Succeeded: 1}, st.Fits[monitoring.StagePrPi])
	assert.Equal(t, FitStats{Attempted: 1, Succeeded: 1}, st.Fits[monitoring.StageV0Pi])
	assert.Equal(t, FitStats{Attempted: 1, Succeeded: 1}, st.Fits[monitoring.StageCascPiOrK])

	assert.Equal(t, int64(1), hists.Entries(monitoring.HMassOmegaPi))
	assert.Equal(t, int64(1), hists.Entries(monitoring.HDecayLength))
	assert.Equal(t, int64(1), hists.Entries(monitoring.HDca))
}

func TestEngine_TrackedFitFailureDropsCombination(t *testing.T) {
	f := omegacFrame(1)
	// move the tracked cascade 10 cm along z: it no longer meets the pion
	f.Tracks[3].Pos[2] += 10

	sink := &MemorySink{}
	e := newTestEngine(t, ModeData, &countingProvider{}, sink, nil)
	require.NoError(t, e.Process(context.Background(), f))

	assert.Empty(t, sink.Candidates())
	st := e.Stats()
	assert.Equal(t, FitStats{Attempted: 1, Failed: 1}, st.Fits[monitoring.StageCascPiOrK])
	assert.Equal(t, FitStats{Attempted: 1, Succeeded: 1}, st.Fits[monitoring.StageCascPiOrKUntracked])
}

func TestEngine_CascadeTierTracksNeverPair(t *testing.T) {
	f := omegacFrame(1)
	f.Tracks = f.Tracks[:4]
	f.TrackAssoc = f.TrackAssoc[:4]

	sink := &MemorySink{}
	e := newTestEngine(t, ModeData, &countingProvider{}, sink, nil)
	require.NoError(t, e.Process(context.Background(), f))

	assert.Empty(t, sink.Candidates())
	st := e.Stats()
	assert.Equal(t, 4, st.SelfPairs)
	assert.Zero(t, st.Fits[monitoring.StageCascPiOrK].Attempted)
}

func TestEngine_Selections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *aod.DataFrame)
		cuts   func(c *Cuts)
		check  func(t *testing.T, st Stats)
	}{
		{
			name:   "sel8",
			mutate: func(f *aod.DataFrame) { f.Collisions[0].Sel8 = false },
			check:  func(t *testing.T, st Stats) { assert.Equal(t, 1, st.SkippedSel8) },
		},
		{
			name:   "bachelor without TPC",
			mutate: func(f *aod.DataFrame) { f.Tracks[2].HasTPC = false },
			check:  func(t *testing.T, st Stats) { assert.Equal(t, 1, st.RejectedCascadeTier) },
		},
		{
			name:   "matching chi2 with the cut enabled",
			mutate: func(f *aod.DataFrame) { f.TrackedCascades[0].MatchingChi2 = 5000 },
			cuts:   func(c *Cuts) { c.MaxMatchingChi2TrackedCascade = 2000 },
			check:  func(t *testing.T, st Stats) { assert.Equal(t, 1, st.RejectedCascadeTier) },
		},
		{
			name:   "proton PID",
			mutate: func(f *aod.DataFrame) { f.Tracks[0].TPCNSigmaPr = 7 },
			check:  func(t *testing.T, st Stats) { assert.Equal(t, 1, st.RejectedCascadePID) },
		},
		{
			name:   "bachelor PID",
			mutate: func(f *aod.DataFrame) { f.Tracks[2].TPCNSigmaKa, f.Tracks[2].TPCNSigmaPi = 6, 6 },
			check:  func(t *testing.T, st Stats) { assert.Equal(t, 1, st.RejectedCascadePID) },
		},
		{
			name:   "candidate ITS clusters",
			mutate: func(f *aod.DataFrame) { f.Tracks[4].ITSClusterMap = 0x07 },
			check:  func(t *testing.T, st Stats) { assert.Equal(t, 1, st.RejectedTrackQuality) },
		},
		{
			name:   "candidate crossed rows fraction",
			mutate: func(f *aod.DataFrame) { f.Tracks[4].TPCNClsFindable = 200 },
			check:  func(t *testing.T, st Stats) { assert.Equal(t, 1, st.RejectedTrackQuality) },
		},
		{
			name:   "candidate PID",
			mutate: func(f *aod.DataFrame) { f.Tracks[4].TPCNSigmaPi, f.Tracks[4].TPCNSigmaKa = 8, 8 },
			check:  func(t *testing.T, st Stats) { assert.Equal(t, 1, st.RejectedTrackQuality) },
		},
		{
			name:   "stored cascade mass outside the window",
			mutate: func(f *aod.DataFrame) { f.TrackedCascades[0].OmegaMass = 1.9 },
			cuts:   func(c *Cuts) { c.RecalculateMasses = false },
			check:  func(t *testing.T, st Stats) { assert.Equal(t, 1, st.RejectedCascadeMass) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := omegacFrame(1)
			tt.mutate(f)
			sink := &MemorySink{}
			e := newTestEngine(t, ModeData, &countingProvider{}, sink, nil)
			if tt.cuts != nil {
				tt.cuts(&e.cuts)
			}
			require.NoError(t, e.Process(context.Background(), f))
			assert.Empty(t, sink.Candidates())
			tt.check(t, e.Stats())
		})
	}
}

func TestEngine_BaryonMassWindow(t *testing.T) {
	tests := []struct {
		name   string
		mass   float64
		window float64
		emit   bool
	}{
		{"at the nominal mass with a closed window", physics.MassOmegaC0, 0, false},
		{"offset inside the window", physics.MassOmegaC0 + 0.05, 0.1, true},
		{"offset outside the window", physics.MassOmegaC0 + 0.05, 0.01, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &MemorySink{}
			e := newTestEngine(t, ModeData, &countingProvider{}, sink, nil)
			e.cuts.MassWindowOmegaC = tt.window
			e.cuts.MassWindowXiC = 0

			require.NoError(t, e.Process(context.Background(), omegacFrameWithMass(1, tt.mass)))
			if tt.emit {
				cands := sink.Candidates()
				require.Len(t, cands, 1)
				assert.InDelta(t, tt.mass, cands[0].MassOmegaPi, 1e-3)
				assert.Zero(t, e.Stats().RejectedBaryonMass)
				return
			}
			assert.Empty(t, sink.Candidates())
			assert.Equal(t, 1, e.Stats().RejectedBaryonMass)
		})
	}
}

func TestEngine_MatchingChi2AndLambdaWindowOffByDefault(t *testing.T) {
	f := omegacFrame(1)
	f.TrackedCascades[0].MatchingChi2 = 2500

	sink := &MemorySink{}
	e := newTestEngine(t, ModeData, &countingProvider{}, sink, nil)
	require.NoError(t, e.Process(context.Background(), f))
	assert.Len(t, sink.Candidates(), 1)
	assert.Zero(t, e.Stats().RejectedCascadeTier)
	assert.Zero(t, e.Stats().RejectedCascadeMass)
}

func TestEngine_DuplicateAssociationEmitsOnce(t *testing.T) {
	f := omegacFrame(1)
	f.TrackAssoc = append(f.TrackAssoc, aod.TrackAssoc{Collision: 0, Track: 4})
	require.NoError(t, f.Validate())

	sink := &MemorySink{}
	e := newTestEngine(t, ModeData, &countingProvider{}, sink, nil)
	require.NoError(t, e.Process(context.Background(), f))
	assert.Len(t, sink.Candidates(), 1)
	assert.Equal(t, 1, e.Stats().Candidates)
}

func TestEngine_RefreshesConditionsOnRunChange(t *testing.T) {
	prov := &countingProvider{}
	sink := &MemorySink{}
	e := newTestEngine(t, ModeData, prov, sink, nil)

	for _, run := range []int{100, 100, 101, 101, 100} {
		require.NoError(t, e.Process(context.Background(), omegacFrame(run)))
	}
	assert.Equal(t, []int{100, 101, 100}, prov.runs)
	assert.Equal(t, 3, e.Stats().RunChanges)
	assert.Len(t, sink.Candidates(), 5)
	require.NotNil(t, e.Conditions())
	assert.Equal(t, 100, e.Conditions().Run)
}

func TestEngine_MissingFieldIsFatal(t *testing.T) {
	prov := &countingProvider{err: fmt.Errorf("%w: nothing for run 7", conditions.ErrNoField)}
	sink := &MemorySink{}
	e := newTestEngine(t, ModeData, prov, sink, nil)

	err := e.Process(context.Background(), omegacFrame(7))
	require.Error(t, err)
	assert.True(t, errors.Is(err, conditions.ErrNoField))
	assert.Contains(t, err.Error(), "run 7")
	assert.Empty(t, sink.Candidates())
}

func TestEngine_McRecAnnotatesCandidates(t *testing.T) {
	sink := &MemorySink{}
	hists := monitoring.NewHistograms(monitoring.DefaultHistSpecs())
	e := newTestEngine(t, ModeMcRec, &countingProvider{}, sink, hists)

	require.NoError(t, e.Process(context.Background(), omegacFrame(1)))

	gens := sink.Generated()
	require.Len(t, gens, 1)
	assert.Equal(t, physics.PdgOmegaC0, gens[0].PdgCodeCharmedBaryon)
	assert.Equal(t, physics.PdgOmega, gens[0].PdgCodeCasc)
	assert.Equal(t, mctruth.ChannelOmegaPi, gens[0].DecayChannel)
	assert.Equal(t, mctruth.OriginPrompt, gens[0].OriginMcGen)
	assert.InDelta(t, 0.01414, gens[0].DecayLengthCharmedBaryon, 1e-4)

	cands := sink.Candidates()
	require.Len(t, cands, 1)
	c := cands[0]
	assert.Equal(t, 0, c.MotherCasc)
	assert.Equal(t, 0, c.MotherPionOrKaon)
	assert.True(t, c.McMatched)
	assert.Equal(t, mctruth.ChannelOmegaPi, c.McChannel)
	assert.Equal(t, mctruth.OriginPrompt, c.OriginMcRec)
	assert.Zero(t, c.NPiToMu)
	assert.Equal(t, int64(1), hists.Entries(monitoring.HDecayLengthScaledMc))
}

func TestEngine_McRecCountsSubstitutionsPerLayer(t *testing.T) {
	f := omegacFrame(1)
	// the V0 π⁻ decays in flight and its track is labelled with the muon
	f.McParticles[6].Daughters = []int{7}
	f.McParticles = append(f.McParticles, aod.McParticle{PdgCode: physics.PdgMuon, Mothers: []int{6}})
	f.Tracks[1].McParticle = intp(7)

	sink := &MemorySink{}
	e := newTestEngine(t, ModeMcRec, &countingProvider{}, sink, nil)
	require.NoError(t, e.Process(context.Background(), f))

	cands := sink.Candidates()
	require.Len(t, cands, 1)
	c := cands[0]
	assert.True(t, c.McMatched)
	assert.Equal(t, 1, c.NPiToMuV0)
	assert.Equal(t, 1, c.NPiToMuCasc)
	assert.Equal(t, 1, c.NPiToMu)
	assert.Zero(t, c.NKaToPiCasc)
	assert.Zero(t, c.NKaToPi)
}

func TestEngine_McRecWrongPartnerIsUnmatched(t *testing.T) {
	f := omegacFrame(1)
	// a prompt π⁺ that is not the Ωc daughter
	f.McParticles = append(f.McParticles, aod.McParticle{PdgCode: physics.PdgPiPlus})
	f.Tracks[4].McParticle = intp(7)

	sink := &MemorySink{}
	e := newTestEngine(t, ModeMcRec, &countingProvider{}, sink, nil)
	require.NoError(t, e.Process(context.Background(), f))

	cands := sink.Candidates()
	require.Len(t, cands, 1)
	assert.False(t, cands[0].McMatched)
	assert.Equal(t, mctruth.ChannelNone, cands[0].McChannel)
	assert.Equal(t, 0, cands[0].MotherCasc)
	assert.Equal(t, aod.NoIndex, cands[0].MotherPionOrKaon)
}

func TestEngine_McGenFillsResolutionHistograms(t *testing.T) {
	hists := monitoring.NewHistograms(monitoring.DefaultHistSpecs())
	e := newTestEngine(t, ModeMcGen, &countingProvider{}, nil, hists)

	require.NoError(t, e.Process(context.Background(), omegacFrame(1)))

	for _, name := range []string{
		monitoring.HMassOmegacId,
		monitoring.HMassOmegacGen,
		monitoring.HDecayLengthId,
		monitoring.HDecayLengthGen,
		monitoring.HDeltaDecayLength,
		monitoring.HDeltaPtVsPt,
	} {
		assert.Equal(t, int64(1), hists.Entries(name), name)
	}
	assert.Equal(t, FitStats{Attempted: 1, Succeeded: 1}, e.Stats().Fits[monitoring.StageCascPiOrK])
}

func TestEngine_ContextCancelled(t *testing.T) {
	e := newTestEngine(t, ModeData, &countingProvider{}, &MemorySink{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, e.Process(ctx, omegacFrame(1)), context.Canceled)
}

func TestNewEngine_Validation(t *testing.T) {
	_, err := NewEngine(Options{Sink: &MemorySink{}})
	assert.Error(t, err)
	_, err = NewEngine(Options{Provider: &countingProvider{}})
	assert.Error(t, err)
	_, err = NewEngine(Options{Mode: ModeMcGen, Provider: &countingProvider{}})
	assert.NoError(t, err)
}

func TestParseMode(t *testing.T) {
	for _, m := range []Mode{ModeData, ModeMcRec, ModeMcGen} {
		got, err := ParseMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	_, err := ParseMode("reco")
	assert.Error(t, err)
}
