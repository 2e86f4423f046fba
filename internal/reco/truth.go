package reco

import (
	"github.com/banshee-data/omegac/internal/aod"
	"github.com/banshee-data/omegac/internal/mctruth"
)

// TruthLinks annotates candidates with generator information. It is chosen
// once per frame: data frames get a no-op implementation.
type TruthLinks interface {
	// MotherRow returns the generated-record row of the mother of the
	// particle behind track, or aod.NoIndex.
	MotherRow(track int) int
	// Match runs the three-layer truth match of a candidate.
	Match(bachelor, cascBach, v0Pos, v0Neg int) mctruth.ChainMatch
}

type noTruth struct{}

func (noTruth) MotherRow(int) int { return aod.NoIndex }

func (noTruth) Match(int, int, int, int) mctruth.ChainMatch {
	return mctruth.ChainMatch{Channel: mctruth.ChannelNone}
}

type labelTruth struct {
	frame *aod.DataFrame
	gen   *mctruth.GenContext
}

func (l labelTruth) label(track int) int {
	if track < 0 || track >= len(l.frame.Tracks) {
		return aod.NoIndex
	}
	return l.frame.Tracks[track].McParticleIndex()
}

func (l labelTruth) MotherRow(track int) int {
	return l.gen.MotherRow(l.frame.McParticles, l.label(track))
}

func (l labelTruth) Match(bachelor, cascBach, v0Pos, v0Neg int) mctruth.ChainMatch {
	return mctruth.MatchChain(l.frame.McParticles, mctruth.ChainLabels{
		Bachelor: l.label(bachelor),
		CascBach: l.label(cascBach),
		V0Pos:    l.label(v0Pos),
		V0Neg:    l.label(v0Neg),
	})
}
