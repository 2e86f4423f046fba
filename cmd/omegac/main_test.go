package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/omegac/internal/aod"
	"github.com/banshee-data/omegac/internal/config"
	"github.com/banshee-data/omegac/internal/storage/sqlite"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFrames(t *testing.T, path string, frames ...*aod.DataFrame) {
	t.Helper()
	w, err := aod.Create(path)
	require.NoError(t, err)
	for _, f := range frames {
		require.NoError(t, w.Write(f))
	}
	require.NoError(t, w.Close())
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "omegac dev")
}

func TestConditionsImport(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "objects.json")
	require.NoError(t, os.WriteFile(src, []byte(`[
		{"path": "GLO/GRP/GRP", "valid_from": 0, "valid_until": 9999999999999, "payload": {"nominal_l3_field": 5}}
	]`), 0644))

	out, err := run(t, "conditions", "import", "--db", filepath.Join(dir, "cond.db"), src)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 1 object(s)")

	_, err = run(t, "conditions", "import", "--db", filepath.Join(dir, "cond.db"), filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestProcessAndReport(t *testing.T) {
	dir := t.TempDir()
	frames := filepath.Join(dir, "frames.json.gz")
	// a collision without tracked cascades never needs the conditions
	writeFrames(t, frames,
		&aod.DataFrame{
			BCs:        []aod.BC{{RunNumber: 1, Timestamp: 1700000000000}},
			Collisions: []aod.Collision{{BC: 0, Sel8: true}, {BC: 0}},
		},
		&aod.DataFrame{BCs: []aod.BC{{RunNumber: 1}}},
	)
	candDB := filepath.Join(dir, "cand.db")
	metrics := filepath.Join(dir, "fits.prom")

	out, err := run(t, "process",
		"--conditions", filepath.Join(dir, "cond.db"),
		"--out", candDB,
		"--workers", "2",
		"--metrics-file", metrics,
		"--histograms", filepath.Join(dir, "hists"),
		frames)
	require.NoError(t, err)
	assert.Contains(t, out, "frames 2, collisions 2 (sel8 skipped 1)")
	assert.Contains(t, out, "candidates 0, generated 0")
	assert.FileExists(t, metrics)
	assert.FileExists(t, filepath.Join(dir, "hists", "monitoring.yoda"))

	store, err := sqlite.Open(candDB)
	require.NoError(t, err)
	runs, err := store.ListRuns(context.Background())
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.Len(t, runs, 1)
	assert.Equal(t, "data", runs[0].Mode)
	assert.Equal(t, []string{frames}, runs[0].Inputs)
	assert.NotNil(t, runs[0].FinishedAtNs)

	reportDir := filepath.Join(dir, "report")
	out, err = run(t, "report", "--db", candDB, "--out-dir", reportDir)
	require.NoError(t, err)
	assert.Contains(t, out, runs[0].RunID)
	assert.FileExists(t, filepath.Join(reportDir, "summary.json"))
	assert.FileExists(t, filepath.Join(reportDir, "report.html"))
}

func TestProcessFlagErrors(t *testing.T) {
	dir := t.TempDir()
	frames := filepath.Join(dir, "frames.json")
	writeFrames(t, frames)
	common := []string{"process", "--conditions", filepath.Join(dir, "cond.db"), "--out", filepath.Join(dir, "cand.db")}

	_, err := run(t, append(common, "--mode", "bogus", frames)...)
	assert.Error(t, err)

	_, err = run(t, append(common, "--workers", "0", frames)...)
	assert.Error(t, err)

	_, err = run(t, "process")
	assert.Error(t, err)
}

func TestProviderOptions(t *testing.T) {
	cfg := config.EmptyRecoConfig()
	o := providerOptions(cfg)
	assert.Equal(t, "GLO/GRP/GRP", o.GRPPath)
	assert.Equal(t, "GLO/Config/GRPMagField", o.GRPMagPath)
	assert.True(t, o.BzOnly)
	assert.True(t, o.UseMaterialLUT)
}
