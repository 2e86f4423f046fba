package mctruth

import (
	"github.com/banshee-data/omegac/internal/aod"
	"github.com/banshee-data/omegac/internal/physics"
)

// Decay describes the expected topology of one decay layer.
type Decay struct {
	Mother int   // PDG code of the particle
	Final  []int // PDG codes of the reconstructed daughters, particle convention
	Depth  int   // generations between the mother and its final daughters
}

// Substitutions selects which feed-down replacements are tolerated.
type Substitutions struct {
	PiToMu bool // a reconstructed muon from a pion decay counts as the pion
	KaToPi bool // a reconstructed pion from a kaon decay counts as the kaon
}

// LayerMatch is the outcome of matching one decay layer.
type LayerMatch struct {
	Matched bool
	Index   int // generated mother, or aod.NoIndex
	Sign    int // +1 particle, -1 antiparticle
	NPiToMu int
	NKaToPi int
}

var noMatch = LayerMatch{Index: aod.NoIndex}

// MatchLayer matches reconstructed daughters, given by their MC labels, to a
// common generated mother of the given decay. Antiparticles are accepted and
// the expected daughter codes are conjugated accordingly. Every daughter must
// descend from the mother within d.Depth generations, the mother must have
// exactly len(labels) final daughters, and each daughter code must be used
// once.
func MatchLayer(parts []aod.McParticle, labels []int, d Decay, subs Substitutions) LayerMatch {
	if len(labels) == 0 || len(labels) != len(d.Final) {
		return noMatch
	}

	m := LayerMatch{Index: aod.NoIndex}
	eff := make([]int, len(labels))
	for i, l := range labels {
		if l < 0 || l >= len(parts) {
			return noMatch
		}
		eff[i] = l
		if subs.PiToMu && abs(parts[eff[i]].PdgCode) == physics.PdgMuon {
			if mo := parts[eff[i]].FirstMother(); mo >= 0 && abs(parts[mo].PdgCode) == physics.PdgPion {
				eff[i] = mo
				m.NPiToMu++
			}
		}
		if subs.KaToPi && abs(parts[eff[i]].PdgCode) == physics.PdgPion {
			if mo := parts[eff[i]].FirstMother(); mo >= 0 && abs(parts[mo].PdgCode) == physics.PdgKaon {
				eff[i] = mo
				m.NKaToPi++
			}
		}
	}

	// the mother is searched among the ancestors of the first daughter
	mother, sign := aod.NoIndex, 0
	cur := eff[0]
	for stage := 0; stage < d.Depth; stage++ {
		cur = parts[cur].FirstMother()
		if cur < 0 {
			break
		}
		if parts[cur].PdgCode == d.Mother {
			mother, sign = cur, 1
			break
		}
		if parts[cur].PdgCode == -d.Mother {
			mother, sign = cur, -1
			break
		}
	}
	if mother < 0 {
		return noMatch
	}

	for _, e := range eff[1:] {
		if !descendsFrom(parts, e, mother, d.Depth) {
			return noMatch
		}
	}

	if n := len(finalDaughters(parts, mother, d.Final, d.Depth)); n != len(labels) {
		return noMatch
	}

	used := make([]bool, len(d.Final))
	for _, e := range eff {
		found := false
		for j, pdg := range d.Final {
			if !used[j] && parts[e].PdgCode == sign*pdg {
				used[j] = true
				found = true
				break
			}
		}
		if !found {
			return noMatch
		}
	}

	m.Matched = true
	m.Index = mother
	m.Sign = sign
	return m
}

func descendsFrom(parts []aod.McParticle, idx, ancestor, depth int) bool {
	cur := idx
	for stage := 0; stage < depth; stage++ {
		cur = parts[cur].FirstMother()
		if cur < 0 {
			return false
		}
		if cur == ancestor {
			return true
		}
	}
	return false
}

// finalDaughters collects the descendants of idx down to depth generations,
// stopping at particles whose code (either sign) is in final.
func finalDaughters(parts []aod.McParticle, idx int, final []int, depth int) []int {
	var out []int
	var walk func(i, stage int)
	walk = func(i, stage int) {
		p := parts[i]
		if stage > 0 && (stage == depth || len(p.Daughters) == 0 || isFinal(p.PdgCode, final)) {
			out = append(out, i)
			return
		}
		for _, d := range p.Daughters {
			walk(d, stage+1)
		}
	}
	walk(idx, 0)
	return out
}

func isFinal(pdg int, final []int) bool {
	for _, f := range final {
		if abs(pdg) == abs(f) {
			return true
		}
	}
	return false
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
