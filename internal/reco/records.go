package reco

import (
	"sync"

	"github.com/banshee-data/omegac/internal/mctruth"
)

// UnsetDCA marks an impact parameter that could not be computed.
const UnsetDCA = -999.

// UnsetDecayLength marks the untracked decay lengths when the untracked fit
// did not converge.
const UnsetDecayLength = -1.

// Candidate is one emitted charm-baryon candidate. Lengths are in cm,
// momenta in GeV/c and masses in GeV/c².
type Candidate struct {
	RunNumber int `json:"run_number"`

	// cascade
	MassOmega  float64 `json:"mass_omega"`
	MassXi     float64 `json:"mass_xi"`
	MassLambda float64 `json:"mass_lambda"`

	// PID of the candidate and of the cascade-tier tracks
	NSigmaTpcPion   float64 `json:"nsigma_tpc_pion"`
	NSigmaTofPion   float64 `json:"nsigma_tof_pion"`
	NSigmaTpcKaon   float64 `json:"nsigma_tpc_kaon"`
	NSigmaTofKaon   float64 `json:"nsigma_tof_kaon"`
	NSigmaTpcV0Pr   float64 `json:"nsigma_tpc_v0_pr"`
	NSigmaTofV0Pr   float64 `json:"nsigma_tof_v0_pr"`
	NSigmaTpcV0Pi   float64 `json:"nsigma_tpc_v0_pi"`
	NSigmaTofV0Pi   float64 `json:"nsigma_tof_v0_pi"`
	NSigmaTpcBachPi float64 `json:"nsigma_tpc_bach_pi"`
	NSigmaTofBachPi float64 `json:"nsigma_tof_bach_pi"`
	NSigmaTpcBachKa float64 `json:"nsigma_tpc_bach_ka"`
	NSigmaTofBachKa float64 `json:"nsigma_tof_bach_ka"`

	// momenta at the charm-baryon vertex
	PxCasc                  float64 `json:"px_casc"`
	PyCasc                  float64 `json:"py_casc"`
	PzCasc                  float64 `json:"pz_casc"`
	IsPositiveCasc          bool    `json:"is_positive_casc"`
	PxPionOrKaon            float64 `json:"px_pion_or_kaon"`
	PyPionOrKaon            float64 `json:"py_pion_or_kaon"`
	PzPionOrKaon            float64 `json:"pz_pion_or_kaon"`
	IsPositivePionOrKaon    bool    `json:"is_positive_pion_or_kaon"`
	ItsClusterMapPionOrKaon uint8   `json:"its_cluster_map_pion_or_kaon"`

	// topology
	CpaCharmedBaryon   float64 `json:"cpa_charmed_baryon"`
	CpaXYCharmedBaryon float64 `json:"cpa_xy_charmed_baryon"`
	CpaCasc            float64 `json:"cpa_casc"`
	CpaXYCasc          float64 `json:"cpa_xy_casc"`

	// impact parameters at the primary vertex
	DcaXYCasc          float64 `json:"dca_xy_casc"`
	DcaXYUncCasc       float64 `json:"dca_xy_unc_casc"`
	DcaZCasc           float64 `json:"dca_z_casc"`
	DcaZUncCasc        float64 `json:"dca_z_unc_casc"`
	DcaXYPionOrKaon    float64 `json:"dca_xy_pion_or_kaon"`
	DcaXYUncPionOrKaon float64 `json:"dca_xy_unc_pion_or_kaon"`
	DcaZPionOrKaon     float64 `json:"dca_z_pion_or_kaon"`
	DcaZUncPionOrKaon  float64 `json:"dca_z_unc_pion_or_kaon"`
	DcaXYPr            float64 `json:"dca_xy_pr"`
	DcaZPr             float64 `json:"dca_z_pr"`
	DcaXYV0Pi          float64 `json:"dca_xy_v0_pi"`
	DcaZV0Pi           float64 `json:"dca_z_v0_pi"`
	DcaXYBach          float64 `json:"dca_xy_bach"`
	DcaZBach           float64 `json:"dca_z_bach"`

	Chi2TopologicalCharmedBaryon float64 `json:"chi2_topological_charmed_baryon"`
	Chi2TopologicalCasc          float64 `json:"chi2_topological_casc"`

	DecayLengthCharmedBaryon            float64 `json:"decay_length_charmed_baryon"`
	DecayLengthXYCharmedBaryon          float64 `json:"decay_length_xy_charmed_baryon"`
	DecayLengthCharmedBaryonUntracked   float64 `json:"decay_length_charmed_baryon_untracked"`
	DecayLengthXYCharmedBaryonUntracked float64 `json:"decay_length_xy_charmed_baryon_untracked"`
	DecayLengthCasc                     float64 `json:"decay_length_casc"`
	DecayLengthXYCasc                   float64 `json:"decay_length_xy_casc"`

	// invariant masses of the charm baryon under each hypothesis
	MassOmegaPi float64 `json:"mass_omega_pi"`
	MassOmegaK  float64 `json:"mass_omega_k"`
	MassXiPi    float64 `json:"mass_xi_pi"`

	// MC provenance; rows index the generated records, -1 when absent
	MotherCasc       int             `json:"mother_casc"`
	MotherPionOrKaon int             `json:"mother_pion_or_kaon"`
	OriginMcRec      mctruth.Origin  `json:"origin_mc_rec"`
	McMatched        bool            `json:"mc_matched"`
	McChannel        mctruth.Channel `json:"mc_channel"`
	NPiToMu          int             `json:"n_pi_to_mu"`
	NKaToPi          int             `json:"n_ka_to_pi"`
	NPiToMuV0        int             `json:"n_pi_to_mu_v0"`
	NPiToMuCasc      int             `json:"n_pi_to_mu_casc"`
	NKaToPiCasc      int             `json:"n_ka_to_pi_casc"`
}

// Generated is one generated charm-baryon decay.
type Generated struct {
	PxCharmedBaryon            float64         `json:"px_charmed_baryon"`
	PyCharmedBaryon            float64         `json:"py_charmed_baryon"`
	PzCharmedBaryon            float64         `json:"pz_charmed_baryon"`
	PdgCodeCharmedBaryon       int             `json:"pdg_code_charmed_baryon"`
	PxCasc                     float64         `json:"px_casc"`
	PyCasc                     float64         `json:"py_casc"`
	PzCasc                     float64         `json:"pz_casc"`
	PdgCodeCasc                int             `json:"pdg_code_casc"`
	DecayLengthCharmedBaryon   float64         `json:"decay_length_charmed_baryon"`
	DecayLengthXYCharmedBaryon float64         `json:"decay_length_xy_charmed_baryon"`
	DecayLengthCasc            float64         `json:"decay_length_casc"`
	DecayLengthXYCasc          float64         `json:"decay_length_xy_casc"`
	OriginMcGen                mctruth.Origin  `json:"origin_mc_gen"`
	DecayChannel               mctruth.Channel `json:"decay_channel"`
}

// GeneratedFromDecay flattens a generated decay.
func GeneratedFromDecay(g mctruth.GenDecay) Generated {
	return Generated{
		PxCharmedBaryon:            g.Mom.X,
		PyCharmedBaryon:            g.Mom.Y,
		PzCharmedBaryon:            g.Mom.Z,
		PdgCodeCharmedBaryon:       g.PdgCode,
		PxCasc:                     g.CascMom.X,
		PyCasc:                     g.CascMom.Y,
		PzCasc:                     g.CascMom.Z,
		PdgCodeCasc:                g.CascPdgCode,
		DecayLengthCharmedBaryon:   g.DecayLength,
		DecayLengthXYCharmedBaryon: g.DecayLengthXY,
		DecayLengthCasc:            g.CascDecayLength,
		DecayLengthXYCasc:          g.CascDecayLengthXY,
		OriginMcGen:                g.Origin,
		DecayChannel:               g.Channel,
	}
}

// Sink receives emitted records. AppendGenerated returns the row index that
// reconstructed candidates use to refer to the generated record.
type Sink interface {
	AppendCandidate(c *Candidate) error
	AppendGenerated(g *Generated) (int, error)
}

// MemorySink keeps records in memory. It is safe for concurrent use.
type MemorySink struct {
	mu         sync.Mutex
	candidates []Candidate
	generated  []Generated
}

// AppendCandidate implements Sink.
func (s *MemorySink) AppendCandidate(c *Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candidates = append(s.candidates, *c)
	return nil
}

// AppendGenerated implements Sink.
func (s *MemorySink) AppendGenerated(g *Generated) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generated = append(s.generated, *g)
	return len(s.generated) - 1, nil
}

// Candidates returns a copy of the emitted candidates.
func (s *MemorySink) Candidates() []Candidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Candidate(nil), s.candidates...)
}

// Generated returns a copy of the emitted generated records.
func (s *MemorySink) Generated() []Generated {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Generated(nil), s.generated...)
}
