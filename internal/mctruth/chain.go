package mctruth

import (
	"github.com/banshee-data/omegac/internal/aod"
	"github.com/banshee-data/omegac/internal/physics"
)

// Channel identifies a charm baryon decay.
type Channel int

const (
	ChannelNone    Channel = -1
	ChannelXiPi    Channel = 0 // Ξc⁰ → Ξ⁻ π⁺
	ChannelOmegaPi Channel = 1 // Ωc⁰ → Ω⁻ π⁺
	ChannelOmegaK  Channel = 2 // Ωc⁰ → Ω⁻ K⁺
)

func (c Channel) String() string {
	switch c {
	case ChannelXiPi:
		return "xic_to_xi_pi"
	case ChannelOmegaPi:
		return "omegac_to_omega_pi"
	case ChannelOmegaK:
		return "omegac_to_omega_k"
	default:
		return "none"
	}
}

// ChainLabels are the MC labels of the four reconstructed tracks of a
// candidate; aod.NoIndex where a track has no label.
type ChainLabels struct {
	Bachelor int // charm-baryon daughter (pion or kaon)
	CascBach int // cascade bachelor
	V0Pos    int
	V0Neg    int
}

// ChainMatch is the three-layer truth match of a candidate. It is only
// Matched when every layer matched and the layers are linked mother to
// daughter.
type ChainMatch struct {
	Matched bool
	Channel Channel
	Baryon  LayerMatch
	Casc    LayerMatch
	V0      LayerMatch
	Origin  Origin
	Beauty  []int // beauty-hadron ancestors of the baryon
}

type chainDecay struct {
	channel Channel
	baryon  Decay
	casc    Decay
}

var lambdaDecay = Decay{Mother: physics.PdgLambda0, Final: []int{physics.PdgProton, physics.PdgPiMinus}, Depth: 1}

var chainDecays = []chainDecay{
	{
		channel: ChannelOmegaPi,
		baryon:  Decay{Mother: physics.PdgOmegaC0, Final: []int{physics.PdgPiPlus, physics.PdgKMinus, physics.PdgProton, physics.PdgPiMinus}, Depth: 3},
		casc:    Decay{Mother: physics.PdgOmega, Final: []int{physics.PdgKMinus, physics.PdgProton, physics.PdgPiMinus}, Depth: 2},
	},
	{
		channel: ChannelOmegaK,
		baryon:  Decay{Mother: physics.PdgOmegaC0, Final: []int{physics.PdgKPlus, physics.PdgKMinus, physics.PdgProton, physics.PdgPiMinus}, Depth: 3},
		casc:    Decay{Mother: physics.PdgOmega, Final: []int{physics.PdgKMinus, physics.PdgProton, physics.PdgPiMinus}, Depth: 2},
	},
	{
		channel: ChannelXiPi,
		baryon:  Decay{Mother: physics.PdgXiC0, Final: []int{physics.PdgPiPlus, physics.PdgPiMinus, physics.PdgProton, physics.PdgPiMinus}, Depth: 3},
		casc:    Decay{Mother: physics.PdgXiMinus, Final: []int{physics.PdgPiMinus, physics.PdgProton, physics.PdgPiMinus}, Depth: 2},
	},
}

// MatchChain matches a candidate bottom-up: the V0 daughters to a Λ, the
// cascade bachelor and V0 daughters to an Ω⁻ or Ξ⁻ whose daughter is that Λ,
// and all four tracks to a charm baryon that is the cascade's mother. The
// channels are tried in turn and the first complete match wins.
func MatchChain(parts []aod.McParticle, l ChainLabels) ChainMatch {
	unmatched := ChainMatch{Channel: ChannelNone, Baryon: noMatch, Casc: noMatch, V0: noMatch}

	v0 := MatchLayer(parts, []int{l.V0Pos, l.V0Neg}, lambdaDecay, Substitutions{PiToMu: true})
	if !v0.Matched {
		return unmatched
	}
	unmatched.V0 = v0

	for _, cd := range chainDecays {
		casc := MatchLayer(parts, []int{l.CascBach, l.V0Pos, l.V0Neg}, cd.casc, Substitutions{PiToMu: true, KaToPi: true})
		if !casc.Matched || parts[v0.Index].FirstMother() != casc.Index {
			continue
		}
		baryon := MatchLayer(parts, []int{l.Bachelor, l.CascBach, l.V0Pos, l.V0Neg}, cd.baryon, Substitutions{PiToMu: true, KaToPi: true})
		if !baryon.Matched || parts[casc.Index].FirstMother() != baryon.Index {
			continue
		}
		origin, beauty := CharmHadronOrigin(parts, baryon.Index)
		return ChainMatch{
			Matched: true,
			Channel: cd.channel,
			Baryon:  baryon,
			Casc:    casc,
			V0:      v0,
			Origin:  origin,
			Beauty:  beauty,
		}
	}
	return unmatched
}
