package mctruth

import (
	"github.com/banshee-data/omegac/internal/aod"
	"github.com/banshee-data/omegac/internal/physics"
)

// Origin classifies how a charm hadron was produced.
type Origin int8

const (
	OriginNone      Origin = 0
	OriginPrompt    Origin = 1
	OriginNonPrompt Origin = 2
)

func (o Origin) String() string {
	switch o {
	case OriginPrompt:
		return "prompt"
	case OriginNonPrompt:
		return "non_prompt"
	default:
		return "none"
	}
}

// CharmHadronOrigin walks every ancestor of particle idx. Any beauty hadron
// among them makes the particle non-prompt; the indices of those beauty
// hadrons are returned in walk order.
func CharmHadronOrigin(parts []aod.McParticle, idx int) (Origin, []int) {
	if idx < 0 || idx >= len(parts) {
		return OriginNone, nil
	}
	var beauty []int
	seen := map[int]bool{idx: true}
	stage := parts[idx].Mothers
	for len(stage) > 0 {
		var next []int
		for _, m := range stage {
			if m < 0 || m >= len(parts) || seen[m] {
				continue
			}
			seen[m] = true
			if physics.IsBeautyHadron(parts[m].PdgCode) {
				beauty = append(beauty, m)
			}
			next = append(next, parts[m].Mothers...)
		}
		stage = next
	}
	if len(beauty) > 0 {
		return OriginNonPrompt, beauty
	}
	return OriginPrompt, nil
}
