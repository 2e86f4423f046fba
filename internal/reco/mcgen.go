package reco

import (
	"context"

	"github.com/banshee-data/omegac/internal/aod"
	"github.com/banshee-data/omegac/internal/monitoring"
	"github.com/banshee-data/omegac/internal/physics"
)

// ProcessMcGen pairs every true Ω of the frame's tracked cascades with the
// true pions of matching charge and fills the resolution histograms. It
// compares the reconstructed Ωc decay length and mass with the generated
// ones and emits no records.
func (e *Engine) ProcessMcGen(ctx context.Context, f *aod.DataFrame) error {
	parts := f.McParticles
	label := func(track int) int {
		l := f.Tracks[track].McParticleIndex()
		if l >= len(parts) {
			return aod.NoIndex
		}
		return l
	}

	cascByColl := f.TrackedCascadesByCollision()
	for ci, coll := range f.Collisions {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(cascByColl[ci]) == 0 {
			continue
		}
		e.stats.Collisions++
		if err := e.refreshRun(ctx, f.BCs[coll.BC]); err != nil {
			return err
		}
		pv := coll.Vertex()
		mcPV := pv.Pos
		if mc := coll.McCollisionIndex(); mc >= 0 && mc < len(f.McCollisions) {
			mcPV = f.McCollisions[mc].PosVec()
		}

		for _, tci := range cascByColl[ci] {
			tc := f.TrackedCascades[tci]
			e.stats.TrackedCascades++
			casc := f.Cascades[tc.Cascade]
			v0 := f.V0s[casc.V0]
			posL, negL, bachL := label(v0.PosTrack), label(v0.NegTrack), label(casc.Bachelor)
			if posL < 0 || negL < 0 || bachL < 0 {
				continue
			}
			v0Part := parts[posL].FirstMother()
			if v0Part < 0 || v0Part != parts[negL].FirstMother() {
				continue
			}
			cascPart := parts[v0Part].FirstMother()
			if cascPart < 0 || cascPart != parts[bachL].FirstMother() {
				continue
			}
			cascPdg := parts[cascPart].PdgCode
			if abs(cascPdg) != physics.PdgOmega {
				continue
			}

			cascPC, err := f.Tracks[tc.Track].ParCov()
			if err != nil {
				opsf("tracked cascade track %d: %v", tc.Track, err)
				continue
			}
			cascAtPV, _ := e.toPV(cascPC, pv, "tracked cascade")

			pionPdg := physics.PdgPiPlus
			if cascPdg < 0 {
				pionPdg = physics.PdgPiMinus
			}
			for ti := range f.Tracks {
				pl := label(ti)
				if pl < 0 || parts[pl].PdgCode != pionPdg {
					continue
				}
				pion := parts[pl]
				tPC, err := f.Tracks[ti].ParCov()
				if err != nil {
					continue
				}
				tAtPV, _ := e.toPV(tPC, pv, "true pion")

				if mcPt := pion.Pt(); mcPt > 0 {
					e.hists.Fill2D(monitoring.HDeltaPtVsPt, mcPt, (tAtPV.Pt()-mcPt)/mcPt)
				}
				e.hists.Fill(monitoring.HMassOmegacId,
					physics.TwoBodyMass(cascAtPV.Mom, tAtPV.Mom, physics.MassOmega, physics.MassPiPlus))

				if e.fit(monitoring.StageCascPiOrK, cascAtPV, tAtPV) {
					sv := e.fitter.PCA()
					length := physics.Distance(sv, pv.Pos)
					mother := parts[cascPart].FirstMother()
					if mother >= 0 && abs(parts[mother].PdgCode) == physics.PdgOmegaC0 && pion.FirstMother() == mother {
						p := physics.P(e.fitter.TrackAtPCA(0).Mom, e.fitter.TrackAtPCA(1).Mom)
						e.hists.Fill(monitoring.HDecayLengthId, length*physics.CmToMicron)
						if p > 0 {
							e.hists.Fill(monitoring.HDecayLengthScaledId, length*physics.MassOmegaC0/p*physics.CmToMicron)
						}

						genLength := physics.Distance(parts[cascPart].VtxVec(), mcPV)
						e.hists.Fill(monitoring.HDecayLengthGen, genLength*physics.CmToMicron)
						if pGen := parts[mother].P(); pGen > 0 {
							e.hists.Fill(monitoring.HDecayLengthScaledGen, genLength*physics.MassOmegaC0/pGen*physics.CmToMicron)
						}
						e.hists.Fill(monitoring.HDeltaDecayLength, (length-genLength)*physics.CmToMicron)
					}
				}
				e.hists.Fill(monitoring.HMassOmegacGen,
					physics.TwoBodyMass(parts[cascPart].MomVec(), pion.MomVec(), physics.MassOmega, physics.MassPiPlus))
			}
		}
	}
	return nil
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
