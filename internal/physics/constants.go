package physics

// Particle masses in GeV/c².
const (
	MassProton  = 0.93827208943
	MassPiPlus  = 0.13957039
	MassKPlus   = 0.493677
	MassMuon    = 0.1056583755
	MassLambda0 = 1.115683
	MassXiMinus = 1.32171
	MassOmega   = 1.67245
	MassOmegaC0 = 2.6952
	MassXiC0    = 2.47044
	MassPiMinus = MassPiPlus
	MassKMinus  = MassKPlus
)

// PDG Monte-Carlo particle codes. Antiparticles carry the negated code.
const (
	PdgMuon    = 13
	PdgPion    = 211
	PdgKaon    = 321
	PdgProton  = 2212
	PdgLambda0 = 3122
	PdgXiMinus = 3312
	PdgOmega   = 3334
	PdgXiC0    = 4132
	PdgOmegaC0 = 4332
)

// Signed codes used in decay descriptors.
const (
	PdgPiPlus  = PdgPion
	PdgPiMinus = -PdgPion
	PdgKPlus   = PdgKaon
	PdgKMinus  = -PdgKaon
)

// CmToMicron converts lengths for monitoring histograms.
const CmToMicron = 1e4

// IsBeautyHadron reports whether the PDG code denotes a hadron containing a
// b quark.
func IsBeautyHadron(pdg int) bool {
	if pdg < 0 {
		pdg = -pdg
	}
	if pdg < 100 {
		return false
	}
	// quark content sits in the hundreds (meson) and thousands (baryon) digits
	q1 := (pdg / 1000) % 10
	q2 := (pdg / 100) % 10
	return q1 == 5 || q2 == 5
}
