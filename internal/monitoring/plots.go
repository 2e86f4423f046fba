package monitoring

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"go-hep.org/x/hep/hplot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/vg"
)

// echartsAssetsHost serves the echarts javascript for rendered pages.
const echartsAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// WritePNGs draws every filled histogram to dir/<name>.png and returns the
// written paths. Empty histograms are skipped.
func (h *Histograms) WritePNGs(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	var paths []string
	for _, name := range h.Names() {
		if h.Entries(name) == 0 {
			continue
		}
		spec := h.spec[name]
		p := hplot.New()
		p.Title.Text = spec.Title
		p.X.Label.Text = spec.Title

		h.mu.Lock()
		if h1, ok := h.h1[name]; ok {
			hp := hplot.NewH1D(h1)
			hp.Infos.Style = hplot.HInfoSummary
			p.Add(hp)
		} else {
			p.Add(hplot.NewH2D(h.h2[name], palette.Heat(16, 1)))
		}
		h.mu.Unlock()

		path := filepath.Join(dir, name+".png")
		if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
			return paths, fmt.Errorf("save %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// RenderHTML writes a page with one bar chart per one-dimensional
// histogram. Two-dimensional histograms are only drawn by WritePNGs.
func (h *Histograms) RenderHTML(w io.Writer, title string) error {
	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsHost)
	page.PageTitle = title

	for _, name := range h.Names() {
		h.mu.Lock()
		h1, ok := h.h1[name]
		if !ok {
			h.mu.Unlock()
			continue
		}
		bins := h1.Binning.Bins
		x := make([]string, len(bins))
		y := make([]opts.BarData, len(bins))
		for i, b := range bins {
			x[i] = fmt.Sprintf("%.4g", b.XMid())
			y[i] = opts.BarData{Value: b.SumW()}
		}
		entries := h1.Entries()
		h.mu.Unlock()

		bar := charts.NewBar()
		bar.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px", AssetsHost: echartsAssetsHost}),
			charts.WithTitleOpts(opts.Title{Title: name, Subtitle: fmt.Sprintf("%s, %d entries", h.spec[name].Title, entries)}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		)
		bar.SetXAxis(x).AddSeries(name, y)
		page.AddCharts(bar)
	}

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}
