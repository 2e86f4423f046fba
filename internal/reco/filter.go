package reco

import (
	"math"

	"github.com/banshee-data/omegac/internal/aod"
	"github.com/banshee-data/omegac/internal/config"
	"github.com/banshee-data/omegac/internal/physics"
	"github.com/banshee-data/omegac/internal/vertexing"
)

// Cuts are the candidate selection settings.
type Cuts struct {
	MinNoClsTrackedCascade        int
	MinNoClsTrackedPionOrKaon     int
	UseSel8Trigger                bool
	MassWindowTrackedOmega        float64
	MassWindowXiExclTrackedOmega  float64
	MassWindowTrackedXi           float64
	MassWindowLambda              float64
	MassWindowXiC                 float64
	MassWindowOmegaC              float64
	MaxMatchingChi2TrackedCascade float64
	RecalculateMasses             bool
	MaxNSigmaBachelor             float64
	MaxNSigmaV0Pr                 float64
	MaxNSigmaV0Pi                 float64
	MaxNSigmaPion                 float64
	MaxNSigmaKaon                 float64
	ItsNClsMin                    int
	TpcNClsFindableFraction       float64
	TpcChi2NClMax                 float64
	ItsChi2NClMax                 float64

	BzOnly     bool    // uniform field for impact parameters
	DCAMaxStep float64 // cm
}

// CutsFromConfig builds Cuts from a loaded configuration.
func CutsFromConfig(cfg *config.RecoConfig) Cuts {
	return Cuts{
		MinNoClsTrackedCascade:        cfg.GetMinNoClsTrackedCascade(),
		MinNoClsTrackedPionOrKaon:     cfg.GetMinNoClsTrackedPionOrKaon(),
		UseSel8Trigger:                cfg.GetUseSel8Trigger(),
		MassWindowTrackedOmega:        cfg.GetMassWindowTrackedOmega(),
		MassWindowXiExclTrackedOmega:  cfg.GetMassWindowXiExclTrackedOmega(),
		MassWindowTrackedXi:           cfg.GetMassWindowTrackedXi(),
		MassWindowLambda:              cfg.GetMassWindowLambda(),
		MassWindowXiC:                 cfg.GetMassWindowXiC(),
		MassWindowOmegaC:              cfg.GetMassWindowOmegaC(),
		MaxMatchingChi2TrackedCascade: cfg.GetMaxMatchingChi2TrackedCascade(),
		RecalculateMasses:             cfg.GetRecalculateMasses(),
		MaxNSigmaBachelor:             cfg.GetMaxNSigmaBachelor(),
		MaxNSigmaV0Pr:                 cfg.GetMaxNSigmaV0Pr(),
		MaxNSigmaV0Pi:                 cfg.GetMaxNSigmaV0Pi(),
		MaxNSigmaPion:                 cfg.GetMaxNSigmaPion(),
		MaxNSigmaKaon:                 cfg.GetMaxNSigmaKaon(),
		ItsNClsMin:                    cfg.GetItsNClsMin(),
		TpcNClsFindableFraction:       cfg.GetTpcNClsFindableFraction(),
		TpcChi2NClMax:                 cfg.GetTpcChi2NClMax(),
		ItsChi2NClMax:                 cfg.GetItsChi2NClMax(),
		BzOnly:                        cfg.GetBzOnly(),
		DCAMaxStep:                    cfg.GetDCAMaxStep(),
	}
}

// DefaultCuts returns the cuts of the bundled defaults file.
func DefaultCuts() Cuts {
	return CutsFromConfig(config.MustLoadDefaultConfig())
}

// FitterConfigFromConfig builds the vertex fitter settings. The field is
// set per run.
func FitterConfigFromConfig(cfg *config.RecoConfig) vertexing.Config {
	return vertexing.Config{
		Bz:               vertexing.DefaultConfig().Bz,
		PropagateToPCA:   cfg.GetPropToDCA(),
		UseAbsDCA:        cfg.GetUseAbsDCA(),
		MaxR:             cfg.GetMaxR(),
		MaxDZIni:         cfg.GetMaxDZIni(),
		MinParamChange:   cfg.GetMinParamChange(),
		MinRelChi2Change: cfg.GetMinRelChi2Change(),
		MaxIter:          cfg.GetMaxIter(),
	}
}

// cascadeTierOK checks that the V0 daughters and the bachelor have TPC
// information with enough findable clusters. The matching χ² of the tracked
// cascade is only cut when MaxMatchingChi2TrackedCascade is positive.
func (c Cuts) cascadeTierOK(tc aod.TrackedCascade, tracks ...aod.Track) bool {
	for _, t := range tracks {
		if !t.HasTPC || t.TPCNClsFindable < c.MinNoClsTrackedCascade {
			return false
		}
	}
	return c.MaxMatchingChi2TrackedCascade <= 0 || tc.MatchingChi2 < c.MaxMatchingChi2TrackedCascade
}

// cascadeMassOK accepts an Ω (outside the Ξ exclusion window) or a Ξ. The Λ
// window applies only when MassWindowLambda is positive.
func (c Cuts) cascadeMassOK(mOmega, mXi, mLambda float64) bool {
	if c.MassWindowLambda > 0 && math.Abs(mLambda-physics.MassLambda0) >= c.MassWindowLambda {
		return false
	}
	omega := math.Abs(mOmega-physics.MassOmega) < c.MassWindowTrackedOmega
	if omega && c.MassWindowXiExclTrackedOmega > 0 && math.Abs(mXi-physics.MassXiMinus) < c.MassWindowXiExclTrackedOmega {
		omega = false
	}
	xi := math.Abs(mXi-physics.MassXiMinus) < c.MassWindowTrackedXi
	return omega || xi
}

func (c Cuts) cascadePIDOK(bach, pr, pi aod.Track) bool {
	bachOK := math.Abs(bach.TPCNSigmaKa) < c.MaxNSigmaBachelor || math.Abs(bach.TPCNSigmaPi) < c.MaxNSigmaBachelor
	return bachOK &&
		math.Abs(pr.TPCNSigmaPr) < c.MaxNSigmaV0Pr &&
		math.Abs(pi.TPCNSigmaPi) < c.MaxNSigmaV0Pi
}

// candidateOK applies the track quality and pion/kaon PID selection to a
// charm-baryon daughter candidate.
func (c Cuts) candidateOK(t aod.Track) bool {
	switch {
	case t.ITSNCls() < c.ItsNClsMin:
		return false
	case t.TPCNClsFound < c.MinNoClsTrackedPionOrKaon:
		return false
	case t.TPCNClsCrossedRows < c.MinNoClsTrackedPionOrKaon:
		return false
	case float64(t.TPCNClsCrossedRows) < c.TpcNClsFindableFraction*float64(t.TPCNClsFindable):
		return false
	case t.TPCChi2NCl > c.TpcChi2NClMax:
		return false
	case t.ITSChi2NCl > c.ItsChi2NClMax:
		return false
	}
	return math.Abs(t.TPCNSigmaPi) < c.MaxNSigmaPion || math.Abs(t.TPCNSigmaKa) < c.MaxNSigmaKaon
}

func (c Cuts) baryonMassOK(mOmegaPi, mOmegaK, mXiPi float64) bool {
	return math.Abs(mOmegaPi-physics.MassOmegaC0) < c.MassWindowOmegaC ||
		math.Abs(mOmegaK-physics.MassOmegaC0) < c.MassWindowOmegaC ||
		math.Abs(mXiPi-physics.MassXiC0) < c.MassWindowXiC
}
