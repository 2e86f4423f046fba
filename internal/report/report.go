// Package report summarises a stored reconstruction run as histograms,
// plots and summary statistics.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/omegac/internal/mctruth"
	"github.com/banshee-data/omegac/internal/monitoring"
	"github.com/banshee-data/omegac/internal/physics"
	"github.com/banshee-data/omegac/internal/reco"
)

// Histograms built from stored records only.
const (
	HCpaCharmedBaryon   = "hCpaCharmedBaryon"
	HChi2Topological    = "hChi2TopologicalCharmedBaryon"
	HMassXiPi           = "hMassXiPi"
	HDecayLengthGenRecs = "hDecayLengthGenRecords"
)

// Specs lists the histograms of a report.
func Specs() []monitoring.HistSpec {
	mass := monitoring.Axis{Bins: 400, Min: 1.5, Max: 3}
	length := monitoring.Axis{Bins: 200, Min: 0, Max: 500}
	return []monitoring.HistSpec{
		{Name: monitoring.HMassOmegaPi, Title: "m(Ωπ) (GeV/c²)", X: mass},
		{Name: monitoring.HMassOmegaK, Title: "m(ΩK) (GeV/c²)", X: mass},
		{Name: HMassXiPi, Title: "m(Ξπ) (GeV/c²)", X: mass},
		{Name: monitoring.HDecayLength, Title: "decay length (µm)", X: length},
		{Name: monitoring.HDecayLengthScaled, Title: "decay length × M/p (µm/c)", X: length},
		{Name: HCpaCharmedBaryon, Title: "cos pointing angle", X: monitoring.Axis{Bins: 200, Min: -1, Max: 1}},
		{Name: HChi2Topological, Title: "PCA χ² (cm²)", X: monitoring.Axis{Bins: 100, Min: 0, Max: 0.01}},
		{Name: HDecayLengthGenRecs, Title: "generated decay length (µm)", X: length},
	}
}

// Stat summarises one variable.
type Stat struct {
	N      int     `json:"n"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Median float64 `json:"median"`
}

func describe(xs []float64) Stat {
	if len(xs) == 0 {
		return Stat{}
	}
	s := Stat{N: len(xs)}
	s.Mean, s.StdDev = stat.MeanStdDev(xs, nil)
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	s.Median = stat.Quantile(0.5, stat.Empirical, sorted, nil)
	return s
}

// Summary is the machine-readable part of a report.
type Summary struct {
	RunID       string         `json:"run_id"`
	Candidates  int            `json:"candidates"`
	Generated   int            `json:"generated"`
	Matched     int            `json:"matched"`
	ByChannel   map[string]int `json:"matched_by_channel,omitempty"`
	MassOmegaPi Stat           `json:"mass_omega_pi"`
	MassOmegaK  Stat           `json:"mass_omega_k"`
	DecayLength Stat           `json:"decay_length_cm"`
	GenLength   Stat           `json:"generated_decay_length_cm"`
}

// Build fills the report histograms from stored records.
func Build(runID string, cands []reco.Candidate, gens []reco.Generated) (*monitoring.Histograms, Summary) {
	h := monitoring.NewHistograms(Specs())
	s := Summary{RunID: runID, Candidates: len(cands), Generated: len(gens)}

	var omegaPi, omegaK, length, genLength []float64
	for _, c := range cands {
		h.Fill(monitoring.HMassOmegaPi, c.MassOmegaPi)
		h.Fill(monitoring.HMassOmegaK, c.MassOmegaK)
		h.Fill(HMassXiPi, c.MassXiPi)
		h.Fill(monitoring.HDecayLength, c.DecayLengthCharmedBaryon*physics.CmToMicron)
		casc := r3.Vec{X: c.PxCasc, Y: c.PyCasc, Z: c.PzCasc}
		bach := r3.Vec{X: c.PxPionOrKaon, Y: c.PyPionOrKaon, Z: c.PzPionOrKaon}
		if p := physics.P(casc, bach); p > 0 {
			h.Fill(monitoring.HDecayLengthScaled, c.DecayLengthCharmedBaryon*physics.MassOmegaC0/p*physics.CmToMicron)
		}
		h.Fill(HCpaCharmedBaryon, c.CpaCharmedBaryon)
		h.Fill(HChi2Topological, c.Chi2TopologicalCharmedBaryon)

		omegaPi = append(omegaPi, c.MassOmegaPi)
		omegaK = append(omegaK, c.MassOmegaK)
		length = append(length, c.DecayLengthCharmedBaryon)
		if c.McMatched {
			s.Matched++
			if s.ByChannel == nil {
				s.ByChannel = make(map[string]int)
			}
			s.ByChannel[c.McChannel.String()]++
		}
	}
	for _, g := range gens {
		h.Fill(HDecayLengthGenRecs, g.DecayLengthCharmedBaryon*physics.CmToMicron)
		if g.DecayChannel != mctruth.ChannelNone {
			genLength = append(genLength, g.DecayLengthCharmedBaryon)
		}
	}
	s.MassOmegaPi = describe(omegaPi)
	s.MassOmegaK = describe(omegaK)
	s.DecayLength = describe(length)
	s.GenLength = describe(genLength)
	return h, s
}

// Write stores report.html, summary.json, histograms.yoda and one PNG per
// histogram under dir.
func Write(dir string, h *monitoring.Histograms, s Summary) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	f, err := os.Create(filepath.Join(dir, "report.html"))
	if err != nil {
		return err
	}
	if err := h.RenderHTML(f, fmt.Sprintf("omegac run %s", s.RunID)); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	raw, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "summary.json"), raw, 0644); err != nil {
		return err
	}
	if err := h.WriteYODA(filepath.Join(dir, "histograms.yoda")); err != nil {
		return err
	}
	_, err = h.WritePNGs(filepath.Join(dir, "png"))
	return err
}
