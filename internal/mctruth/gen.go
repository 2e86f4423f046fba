package mctruth

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/omegac/internal/aod"
	"github.com/banshee-data/omegac/internal/physics"
)

// GenDecay is a generated charm baryon decaying to a cascade and a pion or
// kaon. Decay lengths are in cm; the cascade decay length is -1 when the
// generated cascade has no daughters.
type GenDecay struct {
	Particle          int // index of the charm baryon in the frame
	CascParticle      int
	BachParticle      int
	Mom               r3.Vec
	PdgCode           int
	CascMom           r3.Vec
	CascPdgCode       int
	DecayLength       float64
	DecayLengthXY     float64
	CascDecayLength   float64
	CascDecayLengthXY float64
	Origin            Origin
	Beauty            []int
	Channel           Channel
}

// ScanGenerated finds every Ωc⁰ and Ξc⁰ (either sign) with exactly two
// daughters, one of them the expected cascade and the other a charged pion
// or kaon. Decays of other topologies are skipped.
func ScanGenerated(parts []aod.McParticle, colls []aod.McCollision) []GenDecay {
	var out []GenDecay
	for i, p := range parts {
		isOmegaC := abs(p.PdgCode) == physics.PdgOmegaC0
		isXiC := abs(p.PdgCode) == physics.PdgXiC0
		if (!isOmegaC && !isXiC) || len(p.Daughters) != 2 {
			continue
		}
		cascPdg := physics.PdgXiMinus
		if isOmegaC {
			cascPdg = physics.PdgOmega
		}
		casc, pion, kaon := aod.NoIndex, aod.NoIndex, aod.NoIndex
		for _, d := range p.Daughters {
			switch abs(parts[d].PdgCode) {
			case cascPdg:
				if casc < 0 {
					casc = d
				}
			case physics.PdgPion:
				if pion < 0 {
					pion = d
				}
			case physics.PdgKaon:
				if kaon < 0 {
					kaon = d
				}
			}
		}
		if casc < 0 {
			continue
		}

		ch, bach := ChannelNone, aod.NoIndex
		switch {
		case pion >= 0 && isOmegaC:
			ch, bach = ChannelOmegaPi, pion
		case kaon >= 0 && isOmegaC:
			ch, bach = ChannelOmegaK, kaon
		case pion >= 0 && isXiC:
			ch, bach = ChannelXiPi, pion
		}
		if ch == ChannelNone {
			continue
		}

		pv := r3.Vec{}
		if p.McCollision >= 0 && p.McCollision < len(colls) {
			pv = colls[p.McCollision].PosVec()
		}
		cd := parts[casc]
		sv := cd.VtxVec()
		g := GenDecay{
			Particle:          i,
			CascParticle:      casc,
			BachParticle:      bach,
			Mom:               p.MomVec(),
			PdgCode:           p.PdgCode,
			CascMom:           cd.MomVec(),
			CascPdgCode:       cd.PdgCode,
			DecayLength:       physics.Distance(sv, pv),
			DecayLengthXY:     physics.DistanceXY(sv, pv),
			CascDecayLength:   -1,
			CascDecayLengthXY: -1,
			Channel:           ch,
		}
		if len(cd.Daughters) > 0 {
			tv := parts[cd.Daughters[0]].VtxVec()
			g.CascDecayLength = physics.Distance(tv, pv)
			g.CascDecayLengthXY = physics.DistanceXY(tv, pv)
		}
		g.Origin, g.Beauty = CharmHadronOrigin(parts, i)
		out = append(out, g)
	}
	return out
}

// GenContext maps generated charm baryons to the rows their GenDecay was
// written to. It is built for one frame and discarded afterwards.
type GenContext struct {
	rows map[int]int
}

// NewGenContext returns an empty context.
func NewGenContext() *GenContext {
	return &GenContext{rows: make(map[int]int)}
}

// Set records the output row of generated particle idx.
func (c *GenContext) Set(idx, row int) { c.rows[idx] = row }

// Row returns the output row of generated particle idx, or aod.NoIndex.
func (c *GenContext) Row(idx int) int {
	if c == nil {
		return aod.NoIndex
	}
	if r, ok := c.rows[idx]; ok {
		return r
	}
	return aod.NoIndex
}

// MotherRow returns the output row of the first mother of the particle
// labelled label, or aod.NoIndex.
func (c *GenContext) MotherRow(parts []aod.McParticle, label int) int {
	if label < 0 || label >= len(parts) {
		return aod.NoIndex
	}
	mo := parts[label].FirstMother()
	if mo < 0 {
		return aod.NoIndex
	}
	return c.Row(mo)
}

// Len returns the number of recorded rows.
func (c *GenContext) Len() int { return len(c.rows) }
