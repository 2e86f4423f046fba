package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/omegac/internal/mctruth"
	"github.com/banshee-data/omegac/internal/monitoring"
	"github.com/banshee-data/omegac/internal/reco"
)

func sample() ([]reco.Candidate, []reco.Generated) {
	cands := []reco.Candidate{
		{MassOmegaPi: 2.69, MassOmegaK: 2.9, DecayLengthCharmedBaryon: 0.01, PxCasc: 2, PxPionOrKaon: 1, CpaCharmedBaryon: 0.99, McMatched: true, McChannel: mctruth.ChannelOmegaPi},
		{MassOmegaPi: 2.70, MassOmegaK: 2.91, DecayLengthCharmedBaryon: 0.02, PxCasc: 1, PxPionOrKaon: 1, CpaCharmedBaryon: 0.95, McChannel: mctruth.ChannelNone},
		{MassOmegaPi: 2.71, MassOmegaK: 2.92, DecayLengthCharmedBaryon: 0.03, PxCasc: 1, PxPionOrKaon: 2, CpaCharmedBaryon: 0.9, McMatched: true, McChannel: mctruth.ChannelOmegaK},
	}
	gens := []reco.Generated{
		{DecayLengthCharmedBaryon: 0.004, DecayChannel: mctruth.ChannelOmegaPi},
		{DecayLengthCharmedBaryon: 0.006, DecayChannel: mctruth.ChannelXiPi},
	}
	return cands, gens
}

func TestBuild(t *testing.T) {
	cands, gens := sample()
	h, s := Build("run-1", cands, gens)

	assert.Equal(t, "run-1", s.RunID)
	assert.Equal(t, 3, s.Candidates)
	assert.Equal(t, 2, s.Generated)
	assert.Equal(t, 2, s.Matched)
	assert.Equal(t, map[string]int{"omegac_to_omega_pi": 1, "omegac_to_omega_k": 1}, s.ByChannel)

	assert.Equal(t, 3, s.MassOmegaPi.N)
	assert.InDelta(t, 2.70, s.MassOmegaPi.Mean, 1e-9)
	assert.InDelta(t, 0.01, s.MassOmegaPi.StdDev, 1e-9)
	assert.InDelta(t, 0.02, s.DecayLength.Median, 1e-9)
	assert.InDelta(t, 0.005, s.GenLength.Mean, 1e-9)

	assert.EqualValues(t, 3, h.Entries(monitoring.HMassOmegaPi))
	assert.EqualValues(t, 3, h.Entries(monitoring.HDecayLengthScaled))
	assert.EqualValues(t, 3, h.Entries(HCpaCharmedBaryon))
	assert.EqualValues(t, 2, h.Entries(HDecayLengthGenRecs))
	assert.InDelta(t, 200, h.H1D(monitoring.HDecayLength).XMean(), 1e-6)
}

func TestBuild_Empty(t *testing.T) {
	h, s := Build("empty", nil, nil)
	assert.Zero(t, s.Candidates)
	assert.Zero(t, s.MassOmegaPi)
	assert.Nil(t, s.ByChannel)
	assert.EqualValues(t, 0, h.Entries(monitoring.HMassOmegaPi))
}

func TestWrite(t *testing.T) {
	cands, gens := sample()
	h, s := Build("run-1", cands, gens)
	dir := filepath.Join(t.TempDir(), "out")
	require.NoError(t, Write(dir, h, s))

	for _, name := range []string{"report.html", "summary.json", "histograms.yoda"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
	pngs, err := filepath.Glob(filepath.Join(dir, "png", "*.png"))
	require.NoError(t, err)
	assert.Contains(t, pngs, filepath.Join(dir, "png", monitoring.HMassOmegaPi+".png"))

	raw, err := os.ReadFile(filepath.Join(dir, "summary.json"))
	require.NoError(t, err)
	var back Summary
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, s, back)
}
