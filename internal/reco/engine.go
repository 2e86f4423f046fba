package reco

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/omegac/internal/aod"
	"github.com/banshee-data/omegac/internal/conditions"
	"github.com/banshee-data/omegac/internal/mctruth"
	"github.com/banshee-data/omegac/internal/monitoring"
	"github.com/banshee-data/omegac/internal/physics"
	"github.com/banshee-data/omegac/internal/track"
	"github.com/banshee-data/omegac/internal/vertexing"
)

// Mode selects what the engine does with a frame.
type Mode int

const (
	// ModeData reconstructs candidates without truth information.
	ModeData Mode = iota
	// ModeMcRec records generated decays, then reconstructs candidates and
	// annotates them with truth.
	ModeMcRec
	// ModeMcGen pairs true cascades with true pions to fill resolution
	// histograms. Nothing is emitted.
	ModeMcGen
)

func (m Mode) String() string {
	switch m {
	case ModeData:
		return "data"
	case ModeMcRec:
		return "mcrec"
	case ModeMcGen:
		return "mcgen"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseMode parses the name of a Mode.
func ParseMode(s string) (Mode, error) {
	for _, m := range []Mode{ModeData, ModeMcRec, ModeMcGen} {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown mode %q (want data, mcrec or mcgen)", s)
}

// Options configures an Engine. Counters and Histograms may be nil.
type Options struct {
	Mode       Mode
	Cuts       Cuts
	Fitter     vertexing.Config
	Provider   conditions.Provider
	Sink       Sink
	Counters   *monitoring.FitCounters
	Histograms *monitoring.Histograms
}

// FitStats counts the fits of one stage.
type FitStats struct {
	Attempted int
	Failed    int
	Succeeded int
}

// Stats summarises what an engine has processed and why combinations were
// dropped.
type Stats struct {
	Frames          int
	Collisions      int
	SkippedSel8     int
	RunChanges      int
	TrackedCascades int

	RejectedCascadeTier  int // clusters or matching χ² of the cascade-tier tracks
	RejectedCascadeMass  int
	RejectedCascadePID   int
	SelfPairs            int
	RejectedTrackQuality int
	RejectedBaryonMass   int
	DCAFailures          int

	Fits       map[string]FitStats
	Candidates int
	Generated  int
}

// Engine reconstructs charm-baryon candidates frame by frame.
//
// An Engine owns its vertex fitter and run cache and must not be shared
// between goroutines; run one Engine per worker.
type Engine struct {
	mode     Mode
	cuts     Cuts
	provider conditions.Provider
	sink     Sink
	counters *monitoring.FitCounters
	hists    *monitoring.Histograms

	fitter *vertexing.Fitter
	prop   *track.Propagator

	hasRun bool
	run    int
	cond   *conditions.RunConditions

	stats Stats
}

// NewEngine returns an engine for opts.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Provider == nil {
		return nil, errors.New("reco: no conditions provider")
	}
	if opts.Sink == nil && opts.Mode != ModeMcGen {
		return nil, errors.New("reco: no sink")
	}
	return &Engine{
		mode:     opts.Mode,
		cuts:     opts.Cuts,
		provider: opts.Provider,
		sink:     opts.Sink,
		counters: opts.Counters,
		hists:    opts.Histograms,
		fitter:   vertexing.NewFitter(opts.Fitter),
		stats:    Stats{Fits: make(map[string]FitStats)},
	}, nil
}

// Stats returns a snapshot of the engine statistics.
func (e *Engine) Stats() Stats {
	s := e.stats
	s.Fits = make(map[string]FitStats, len(e.stats.Fits))
	for k, v := range e.stats.Fits {
		s.Fits[k] = v
	}
	return s
}

// Conditions returns the conditions of the current run, or nil before the
// first collision.
func (e *Engine) Conditions() *conditions.RunConditions { return e.cond }

// Process handles one frame according to the engine mode. A frame without
// MC information is processed as data in ModeMcRec and skipped in ModeMcGen.
func (e *Engine) Process(ctx context.Context, f *aod.DataFrame) error {
	e.stats.Frames++
	switch e.mode {
	case ModeMcGen:
		if !f.HasMC() {
			opsf("frame %d has no MC particles, skipped in %s mode", e.stats.Frames-1, e.mode)
			return nil
		}
		return e.ProcessMcGen(ctx, f)
	case ModeMcRec:
		if !f.HasMC() {
			opsf("frame %d has no MC particles, processed as data", e.stats.Frames-1)
			return e.reconstruct(ctx, f, noTruth{})
		}
		gen, err := e.emitGenerated(f)
		if err != nil {
			return err
		}
		return e.reconstruct(ctx, f, labelTruth{frame: f, gen: gen})
	default:
		return e.reconstruct(ctx, f, noTruth{})
	}
}

// emitGenerated writes the generated decays of the frame and returns the
// map from generated baryon to output row.
func (e *Engine) emitGenerated(f *aod.DataFrame) (*mctruth.GenContext, error) {
	gen := mctruth.NewGenContext()
	for _, g := range mctruth.ScanGenerated(f.McParticles, f.McCollisions) {
		rec := GeneratedFromDecay(g)
		row, err := e.sink.AppendGenerated(&rec)
		if err != nil {
			return nil, fmt.Errorf("append generated record: %w", err)
		}
		gen.Set(g.Particle, row)
		e.stats.Generated++
		if p := r3.Norm(g.Mom); p > 0 {
			e.hists.Fill(monitoring.HDecayLengthScaledMc, g.DecayLength*physics.MassOmegaC0/p*physics.CmToMicron)
		}
	}
	return gen, nil
}

// refreshRun loads the conditions when the run number changes.
func (e *Engine) refreshRun(ctx context.Context, bc aod.BC) error {
	if e.hasRun && bc.RunNumber == e.run {
		return nil
	}
	rc, err := e.provider.ConditionsForRun(ctx, bc.RunNumber, bc.Timestamp)
	if err != nil {
		return fmt.Errorf("conditions for run %d: %w", bc.RunNumber, err)
	}
	e.hasRun, e.run, e.cond = true, bc.RunNumber, rc
	e.fitter.SetBz(rc.Bz)

	var field track.Field = track.UniformField(rc.Bz)
	if !e.cuts.BzOnly && rc.Field != nil {
		field = rc.Field
	}
	e.prop = track.NewPropagator(field, rc.Material, e.cuts.DCAMaxStep)
	e.stats.RunChanges++
	opsf("run %d: Bz=%.2f kG, material corrections %t", rc.Run, rc.Bz, rc.Material != nil)
	return nil
}

// fit runs one vertex fit and records its outcome.
func (e *Engine) fit(stage string, a, b track.ParCov) bool {
	o := e.fitter.Fit(a, b)
	ok := o.OK()
	fs := e.stats.Fits[stage]
	fs.Attempted++
	if ok {
		fs.Succeeded++
	} else {
		fs.Failed++
		tracef("%s fit: %s", stage, o)
	}
	e.stats.Fits[stage] = fs
	e.counters.Observe(stage, ok, o.String())
	return ok
}

// toPV propagates t to the primary vertex. On failure the unpropagated
// track is returned with unset impact parameters.
func (e *Engine) toPV(t track.ParCov, pv track.Vertex, what string) (track.ParCov, track.DCA) {
	moved, dca, err := e.prop.PropagateToDCA(t, pv)
	if err != nil {
		e.stats.DCAFailures++
		diagf("impact parameter of %s: %v", what, err)
		return t, track.DCA{Y: UnsetDCA, Z: UnsetDCA, SigmaY2: UnsetDCA, SigmaZ2: UnsetDCA}
	}
	return moved, dca
}

func (e *Engine) reconstruct(ctx context.Context, f *aod.DataFrame, truth TruthLinks) error {
	tracksByColl := f.TracksByCollision()
	cascByColl := f.TrackedCascadesByCollision()
	for ci, coll := range f.Collisions {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.stats.Collisions++
		if e.cuts.UseSel8Trigger && !coll.Sel8 {
			e.stats.SkippedSel8++
			continue
		}
		if len(cascByColl[ci]) == 0 {
			continue
		}
		if err := e.refreshRun(ctx, f.BCs[coll.BC]); err != nil {
			return err
		}
		for _, tci := range cascByColl[ci] {
			if err := e.processCascade(f, coll, f.TrackedCascades[tci], tracksByColl[ci], truth); err != nil {
				return err
			}
		}
	}
	return nil
}

// cascadeLayer is the reconstructed V0 and cascade of a tracked cascade.
type cascadeLayer struct {
	prIdx, piIdx, bachIdx int
	v0Pos, v0Neg          int

	untracked track.ParCov // cascade parent at its decay vertex
	sv        r3.Vec
	chi2      float64
	mLambda   float64
	mXi       float64
	mOmega    float64
	cpa       float64
	cpaXY     float64
	length    float64
	lengthXY  float64
}

func (e *Engine) processCascade(f *aod.DataFrame, coll aod.Collision, tc aod.TrackedCascade, tracks []int, truth TruthLinks) error {
	e.stats.TrackedCascades++
	pv := coll.Vertex()

	casc := f.Cascades[tc.Cascade]
	v0 := f.V0s[casc.V0]
	cascTrack := f.Tracks[tc.Track]
	if !e.cuts.cascadeTierOK(tc, f.Tracks[v0.PosTrack], f.Tracks[v0.NegTrack], f.Tracks[casc.Bachelor]) {
		e.stats.RejectedCascadeTier++
		return nil
	}

	layer := cascadeLayer{
		prIdx:   v0.PosTrack,
		piIdx:   v0.NegTrack,
		bachIdx: casc.Bachelor,
		v0Pos:   v0.PosTrack,
		v0Neg:   v0.NegTrack,
	}
	if cascTrack.Sign > 0 {
		layer.prIdx, layer.piIdx = v0.NegTrack, v0.PosTrack
	}
	pr, pi, bach := f.Tracks[layer.prIdx], f.Tracks[layer.piIdx], f.Tracks[layer.bachIdx]

	cascPC, err := cascTrack.ParCov()
	if err != nil {
		opsf("tracked cascade track %d: %v", tc.Track, err)
		return nil
	}
	prPC, err := pr.ParCov()
	if err != nil {
		opsf("V0 track %d: %v", layer.prIdx, err)
		return nil
	}
	piPC, err := pi.ParCov()
	if err != nil {
		opsf("V0 track %d: %v", layer.piIdx, err)
		return nil
	}
	bachPC, err := bach.ParCov()
	if err != nil {
		opsf("bachelor track %d: %v", layer.bachIdx, err)
		return nil
	}

	cascAtPV, dcaCasc := e.toPV(cascPC, pv, "tracked cascade")

	if !e.fit(monitoring.StagePrPi, prPC, piPC) {
		return nil
	}
	layer.mLambda = physics.TwoBodyMass(e.fitter.TrackAtPCA(0).Mom, e.fitter.TrackAtPCA(1).Mom, physics.MassProton, physics.MassPiMinus)
	v0Parent := e.fitter.CreateParent()

	if !e.fit(monitoring.StageV0Pi, v0Parent, bachPC) {
		return nil
	}
	pLambda, pBach := e.fitter.TrackAtPCA(0).Mom, e.fitter.TrackAtPCA(1).Mom
	layer.untracked = e.fitter.CreateParent()
	layer.sv = e.fitter.PCA()
	layer.chi2 = e.fitter.Chi2AtPCA()
	layer.length = physics.Distance(layer.sv, pv.Pos)
	layer.lengthXY = physics.DistanceXY(layer.sv, pv.Pos)
	layer.cpa = physics.CPA(pv.Pos, layer.sv, layer.untracked.Mom)
	layer.cpaXY = physics.CPAXY(pv.Pos, layer.sv, layer.untracked.Mom)
	if e.cuts.RecalculateMasses {
		layer.mXi = physics.TwoBodyMass(pLambda, pBach, physics.MassLambda0, physics.MassPiMinus)
		layer.mOmega = physics.TwoBodyMass(pLambda, pBach, physics.MassLambda0, physics.MassKMinus)
	} else {
		layer.mXi, layer.mOmega = tc.XiMass, tc.OmegaMass
	}

	if dcaCasc.Y != UnsetDCA {
		e.hists.Fill(monitoring.HDca, math.Sqrt(dcaCasc.R2()))
		e.hists.Fill(monitoring.HDcaXY, dcaCasc.Y)
		e.hists.Fill2D(monitoring.HDcaXYVsPt, cascAtPV.Pt(), dcaCasc.Y)
		e.hists.Fill(monitoring.HDcaZ, dcaCasc.Z)
		e.hists.Fill2D(monitoring.HDcaZVsPt, cascAtPV.Pt(), dcaCasc.Z)
		e.hists.Fill2D(monitoring.HDcaVsPt, dcaCasc.Y, cascTrack.Pt())
		e.hists.Fill2D(monitoring.HDcaVsR, dcaCasc.Y, math.Hypot(cascTrack.Pos[0], cascTrack.Pos[1]))
	}
	e.hists.Fill2D(monitoring.HPtVsMassOmega, cascTrack.Pt(), layer.mOmega)

	if !e.cuts.cascadeMassOK(layer.mOmega, layer.mXi, layer.mLambda) {
		e.stats.RejectedCascadeMass++
		return nil
	}
	if !e.cuts.cascadePIDOK(bach, pr, pi) {
		e.stats.RejectedCascadePID++
		return nil
	}

	_, dcaPr := e.toPV(prPC, pv, "V0 proton")
	_, dcaPi := e.toPV(piPC, pv, "V0 pion")
	_, dcaBach := e.toPV(bachPC, pv, "bachelor")

	base := Candidate{
		RunNumber:  e.run,
		MassOmega:  layer.mOmega,
		MassXi:     layer.mXi,
		MassLambda: layer.mLambda,

		NSigmaTpcV0Pr:   pr.TPCNSigmaPr,
		NSigmaTofV0Pr:   pr.TOFNSigmaPr,
		NSigmaTpcV0Pi:   pi.TPCNSigmaPi,
		NSigmaTofV0Pi:   pi.TOFNSigmaPi,
		NSigmaTpcBachPi: bach.TPCNSigmaPi,
		NSigmaTofBachPi: bach.TOFNSigmaPi,
		NSigmaTpcBachKa: bach.TPCNSigmaKa,
		NSigmaTofBachKa: bach.TOFNSigmaKa,

		IsPositiveCasc: cascTrack.Sign > 0,
		CpaCasc:        layer.cpa,
		CpaXYCasc:      layer.cpaXY,

		DcaXYCasc:    dcaCasc.Y,
		DcaXYUncCasc: sqrtOrUnset(dcaCasc.SigmaY2),
		DcaZCasc:     dcaCasc.Z,
		DcaZUncCasc:  sqrtOrUnset(dcaCasc.SigmaZ2),
		DcaXYPr:      dcaPr.Y,
		DcaZPr:       dcaPr.Z,
		DcaXYV0Pi:    dcaPi.Y,
		DcaZV0Pi:     dcaPi.Z,
		DcaXYBach:    dcaBach.Y,
		DcaZBach:     dcaBach.Z,

		Chi2TopologicalCasc: layer.chi2,
		DecayLengthCasc:     layer.length,
		DecayLengthXYCasc:   layer.lengthXY,

		MotherCasc: truth.MotherRow(tc.Track),
	}

	for _, ti := range tracks {
		if ti == layer.prIdx || ti == layer.piIdx || ti == layer.bachIdx || ti == tc.Track {
			e.stats.SelfPairs++
			continue
		}
		t := f.Tracks[ti]
		if !e.cuts.candidateOK(t) {
			e.stats.RejectedTrackQuality++
			continue
		}
		if err := e.pairCandidate(ti, t, pv, cascAtPV, layer, base, truth); err != nil {
			return err
		}
	}
	return nil
}

// pairCandidate fits the cascade with one charm-baryon daughter candidate
// and emits the result.
func (e *Engine) pairCandidate(ti int, t aod.Track, pv track.Vertex, cascAtPV track.ParCov, layer cascadeLayer, c Candidate, truth TruthLinks) error {
	tPC, err := t.ParCov()
	if err != nil {
		opsf("track %d: %v", ti, err)
		return nil
	}
	tAtPV, dcaT := e.toPV(tPC, pv, "charm-baryon daughter")

	c.DecayLengthCharmedBaryonUntracked = UnsetDecayLength
	c.DecayLengthXYCharmedBaryonUntracked = UnsetDecayLength
	if e.fit(monitoring.StageCascPiOrKUntracked, layer.untracked, tAtPV) {
		sv := e.fitter.PCA()
		c.DecayLengthCharmedBaryonUntracked = physics.Distance(sv, pv.Pos)
		c.DecayLengthXYCharmedBaryonUntracked = physics.DistanceXY(sv, pv.Pos)
	}

	if !e.fit(monitoring.StageCascPiOrK, cascAtPV, tAtPV) {
		return nil
	}
	sv := e.fitter.PCA()
	pCasc, pTrack := e.fitter.TrackAtPCA(0).Mom, e.fitter.TrackAtPCA(1).Mom
	parent := e.fitter.CreateParent()

	c.Chi2TopologicalCharmedBaryon = e.fitter.Chi2AtPCA()
	c.DecayLengthCharmedBaryon = physics.Distance(sv, pv.Pos)
	c.DecayLengthXYCharmedBaryon = physics.DistanceXY(sv, pv.Pos)
	c.CpaCharmedBaryon = physics.CPA(pv.Pos, sv, parent.Mom)
	c.CpaXYCharmedBaryon = physics.CPAXY(pv.Pos, sv, parent.Mom)

	c.MassOmegaPi = physics.TwoBodyMass(pCasc, pTrack, physics.MassOmega, physics.MassPiPlus)
	c.MassOmegaK = physics.TwoBodyMass(pCasc, pTrack, physics.MassOmega, physics.MassKPlus)
	c.MassXiPi = physics.TwoBodyMass(pCasc, pTrack, physics.MassXiMinus, physics.MassPiPlus)

	pt := physics.Pt(pCasc, pTrack)
	e.hists.Fill(monitoring.HMassOmegaPi, c.MassOmegaPi)
	e.hists.Fill2D(monitoring.HMassOmegaPiVsPt, c.MassOmegaPi, pt)
	e.hists.Fill(monitoring.HMassOmegaK, c.MassOmegaK)
	e.hists.Fill2D(monitoring.HMassOmegaKVsPt, c.MassOmegaK, pt)

	if !e.cuts.baryonMassOK(c.MassOmegaPi, c.MassOmegaK, c.MassXiPi) {
		e.stats.RejectedBaryonMass++
		return nil
	}

	e.hists.Fill(monitoring.HDecayLength, c.DecayLengthCharmedBaryon*physics.CmToMicron)
	if p := physics.P(pCasc, pTrack); p > 0 {
		e.hists.Fill(monitoring.HDecayLengthScaled, c.DecayLengthCharmedBaryon*physics.MassOmegaC0/p*physics.CmToMicron)
	}

	c.NSigmaTpcPion = t.TPCNSigmaPi
	c.NSigmaTofPion = t.TOFNSigmaPi
	c.NSigmaTpcKaon = t.TPCNSigmaKa
	c.NSigmaTofKaon = t.TOFNSigmaKa

	c.PxCasc, c.PyCasc, c.PzCasc = pCasc.X, pCasc.Y, pCasc.Z
	c.PxPionOrKaon, c.PyPionOrKaon, c.PzPionOrKaon = pTrack.X, pTrack.Y, pTrack.Z
	c.IsPositivePionOrKaon = t.Sign > 0
	c.ItsClusterMapPionOrKaon = t.ITSClusterMap

	c.DcaXYPionOrKaon = dcaT.Y
	c.DcaXYUncPionOrKaon = sqrtOrUnset(dcaT.SigmaY2)
	c.DcaZPionOrKaon = dcaT.Z
	c.DcaZUncPionOrKaon = sqrtOrUnset(dcaT.SigmaZ2)

	c.MotherPionOrKaon = truth.MotherRow(ti)
	m := truth.Match(ti, layer.bachIdx, layer.v0Pos, layer.v0Neg)
	c.McMatched = m.Matched
	c.McChannel = m.Channel
	c.OriginMcRec = m.Origin
	c.NPiToMu = m.Baryon.NPiToMu
	c.NKaToPi = m.Baryon.NKaToPi
	c.NPiToMuV0 = m.V0.NPiToMu
	c.NPiToMuCasc = m.Casc.NPiToMu
	c.NKaToPiCasc = m.Casc.NKaToPi

	if err := e.sink.AppendCandidate(&c); err != nil {
		return fmt.Errorf("append candidate: %w", err)
	}
	e.stats.Candidates++
	return nil
}

func sqrtOrUnset(v float64) float64 {
	if v == UnsetDCA || v < 0 {
		return UnsetDCA
	}
	return math.Sqrt(v)
}
