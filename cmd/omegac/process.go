package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/omegac/internal/aod"
	"github.com/banshee-data/omegac/internal/conditions"
	"github.com/banshee-data/omegac/internal/config"
	"github.com/banshee-data/omegac/internal/monitoring"
	"github.com/banshee-data/omegac/internal/reco"
	"github.com/banshee-data/omegac/internal/storage/sqlite"
)

type processOptions struct {
	configPath  string
	conditions  string
	out         string
	mode        string
	workers     int
	metricsFile string
	histDir     string
}

func newProcessCommand() *cobra.Command {
	o := &processOptions{}
	cmd := &cobra.Command{
		Use:   "process [flags] inputs...",
		Short: "Reconstruct candidates from frame files into a candidate database",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			err := runProcess(ctx, o, args, cmd.OutOrStdout())
			if errors.Is(err, conditions.ErrNoField) {
				log.Fatalf("omegac: %v", err)
			}
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.configPath, "config", "", "Reconstruction config JSON (defaults apply when empty)")
	f.StringVar(&o.conditions, "conditions", "", "Conditions database (overrides conditions_db in the config)")
	f.StringVar(&o.out, "out", "candidates.db", "Candidate database")
	f.StringVar(&o.mode, "mode", "data", "Processing mode: data, mcrec or mcgen")
	f.IntVar(&o.workers, "workers", 1, "Number of input files processed concurrently")
	f.StringVar(&o.metricsFile, "metrics-file", "", "Write fit counters in Prometheus text format to this file")
	f.StringVar(&o.histDir, "histograms", "", "Write monitoring histograms (YODA, PNG, HTML) to this directory")
	return cmd
}

func loadConfig(path string) (*config.RecoConfig, error) {
	if path == "" {
		return config.EmptyRecoConfig(), nil
	}
	return config.LoadRecoConfig(path)
}

func providerOptions(cfg *config.RecoConfig) conditions.Options {
	return conditions.Options{
		GRPMagPath:     cfg.GetGRPMagPath(),
		GRPPath:        cfg.GetGRPPath(),
		MatLUTPath:     cfg.GetMatLUTPath(),
		FieldMapPath:   cfg.GetFieldMapPath(),
		UseMaterialLUT: cfg.UseMaterialLUT(),
		BzOnly:         cfg.GetBzOnly(),
	}
}

func runProcess(ctx context.Context, o *processOptions, inputs []string, out io.Writer) error {
	mode, err := reco.ParseMode(o.mode)
	if err != nil {
		return err
	}
	if o.workers < 1 {
		return fmt.Errorf("--workers must be at least 1, got %d", o.workers)
	}
	cfg, err := loadConfig(o.configPath)
	if err != nil {
		return err
	}
	condPath := cfg.GetConditionsDB()
	if o.conditions != "" {
		condPath = o.conditions
	}

	condStore, err := conditions.OpenStore(condPath)
	if err != nil {
		return fmt.Errorf("open conditions: %w", err)
	}
	defer condStore.Close()

	store, err := sqlite.Open(o.out)
	if err != nil {
		return fmt.Errorf("open candidate database: %w", err)
	}
	defer store.Close()

	runID, err := store.StartRun(ctx, mode.String(), cfg.JSON(), inputs)
	if err != nil {
		return err
	}
	log.Printf("run %s: %d input(s), mode %s, %d worker(s)", runID, len(inputs), mode, o.workers)

	counters := monitoring.NewFitCounters()
	var hists *monitoring.Histograms
	if o.histDir != "" {
		hists = monitoring.NewHistograms(monitoring.DefaultHistSpecs())
	}

	var sink reco.Sink = store
	if mode == reco.ModeMcGen {
		sink = nil
	}
	opts := reco.Options{
		Mode:       mode,
		Cuts:       reco.CutsFromConfig(cfg),
		Fitter:     reco.FitterConfigFromConfig(cfg),
		Provider:   conditions.NewCCDBProvider(condStore, providerOptions(cfg)),
		Sink:       sink,
		Counters:   counters,
		Histograms: hists,
	}

	var (
		mu    sync.Mutex
		total []reco.Stats
	)
	files := make(chan string)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(files)
		for _, in := range inputs {
			select {
			case files <- in:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	for w := 0; w < o.workers; w++ {
		g.Go(func() error {
			eng, err := reco.NewEngine(opts)
			if err != nil {
				return err
			}
			for path := range files {
				if err := processFile(gctx, eng, path); err != nil {
					return err
				}
			}
			mu.Lock()
			total = append(total, eng.Stats())
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := store.FinishRun(ctx); err != nil {
		return err
	}
	if o.metricsFile != "" {
		if err := counters.WriteToTextfile(o.metricsFile); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	if hists != nil {
		if err := writeHistograms(o.histDir, hists, runID); err != nil {
			return err
		}
	}

	printStats(out, runID, mergeStats(total))
	return nil
}

func processFile(ctx context.Context, eng *reco.Engine, path string) error {
	r, err := aod.Open(path)
	if err != nil {
		return err
	}
	defer r.Close()
	for {
		f, err := r.Next()
		if errors.Is(err, io.EOF) {
			log.Printf("%s: %d frame(s)", path, r.Frames())
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if err := eng.Process(ctx, f); err != nil {
			return fmt.Errorf("%s frame %d: %w", path, r.Frames()-1, err)
		}
	}
}

func writeHistograms(dir string, h *monitoring.Histograms, runID string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	if err := h.WriteYODA(filepath.Join(dir, "monitoring.yoda")); err != nil {
		return err
	}
	if _, err := h.WritePNGs(filepath.Join(dir, "png")); err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(dir, "monitoring.html"))
	if err != nil {
		return err
	}
	if err := h.RenderHTML(f, "omegac monitoring "+runID); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func mergeStats(all []reco.Stats) reco.Stats {
	m := reco.Stats{Fits: make(map[string]reco.FitStats)}
	for _, s := range all {
		m.Frames += s.Frames
		m.Collisions += s.Collisions
		m.SkippedSel8 += s.SkippedSel8
		m.RunChanges += s.RunChanges
		m.TrackedCascades += s.TrackedCascades
		m.RejectedCascadeTier += s.RejectedCascadeTier
		m.RejectedCascadeMass += s.RejectedCascadeMass
		m.RejectedCascadePID += s.RejectedCascadePID
		m.SelfPairs += s.SelfPairs
		m.RejectedTrackQuality += s.RejectedTrackQuality
		m.RejectedBaryonMass += s.RejectedBaryonMass
		m.DCAFailures += s.DCAFailures
		m.Candidates += s.Candidates
		m.Generated += s.Generated
		for k, v := range s.Fits {
			t := m.Fits[k]
			t.Attempted += v.Attempted
			t.Failed += v.Failed
			t.Succeeded += v.Succeeded
			m.Fits[k] = t
		}
	}
	return m
}

func printStats(w io.Writer, runID string, s reco.Stats) {
	fmt.Fprintf(w, "run %s\n", runID)
	fmt.Fprintf(w, "  frames %d, collisions %d (sel8 skipped %d), run changes %d\n", s.Frames, s.Collisions, s.SkippedSel8, s.RunChanges)
	fmt.Fprintf(w, "  tracked cascades %d: tier %d, mass %d, pid %d rejected\n", s.TrackedCascades, s.RejectedCascadeTier, s.RejectedCascadeMass, s.RejectedCascadePID)
	fmt.Fprintf(w, "  pairs: self %d, track quality %d, baryon mass %d rejected, dca failures %d\n", s.SelfPairs, s.RejectedTrackQuality, s.RejectedBaryonMass, s.DCAFailures)
	for _, stage := range []string{monitoring.StagePrPi, monitoring.StageV0Pi, monitoring.StageCascPiOrKUntracked, monitoring.StageCascPiOrK} {
		f := s.Fits[stage]
		fmt.Fprintf(w, "  fit %-22s attempted %d, failed %d, succeeded %d\n", stage, f.Attempted, f.Failed, f.Succeeded)
	}
	fmt.Fprintf(w, "  candidates %d, generated %d\n", s.Candidates, s.Generated)
}
