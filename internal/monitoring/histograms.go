package monitoring

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go-hep.org/x/hep/hbook"
)

// Histogram names filled by the reconstruction.
const (
	HDca                  = "hDca"
	HDcaXY                = "hDcaXY"
	HDcaXYVsPt            = "hDcaXYVsPt"
	HDcaZ                 = "hDcaZ"
	HDcaZVsPt             = "hDcaZVsPt"
	HDcaVsPt              = "hDcaVsPt"
	HDcaVsR               = "hDcaVsR"
	HDecayLength          = "hDecayLength"
	HDecayLengthId        = "hDecayLengthId"
	HDecayLengthGen       = "hDecayLengthGen"
	HDeltaDecayLength     = "hDeltaDecayLength"
	HDecayLengthScaled    = "hDecayLengthScaled"
	HDecayLengthScaledId  = "hDecayLengthScaledId"
	HDecayLengthScaledGen = "hDecayLengthScaledGen"
	HDecayLengthScaledMc  = "hDecayLengthScaledMc"
	HMassOmegaPi          = "hMassOmegaPi"
	HMassOmegaPiVsPt      = "hMassOmegaPiVsPt"
	HMassOmegaK           = "hMassOmegaK"
	HMassOmegaKVsPt       = "hMassOmegaKVsPt"
	HMassOmegacId         = "hMassOmegacId"
	HMassOmegacGen        = "hMassOmegacGen"
	HPtVsMassOmega        = "hPtVsMassOmega"
	HDeltaPtVsPt          = "hDeltaPtVsPt"
)

// Axis is a uniform binning.
type Axis struct {
	Bins     int
	Min, Max float64
}

// HistSpec books one histogram. Y is zero for one-dimensional histograms.
type HistSpec struct {
	Name  string
	Title string
	X     Axis
	Y     Axis
}

// DefaultHistSpecs lists every histogram the reconstruction fills. Lengths
// are in µm, momenta in GeV/c and masses in GeV/c².
func DefaultHistSpecs() []HistSpec {
	dca := Axis{200, 0, 0.5}
	dcaSigned := Axis{200, -0.5, 0.5}
	pt := Axis{200, 0, 10}
	length := Axis{200, 0, 500}
	mass := Axis{400, 1.5, 3}
	return []HistSpec{
		{Name: HDca, Title: "DCA (cm)", X: dca},
		{Name: HDcaXY, Title: "DCA xy (cm)", X: dcaSigned},
		{Name: HDcaXYVsPt, Title: "pT (GeV/c) vs DCA xy (cm)", X: pt, Y: dcaSigned},
		{Name: HDcaZ, Title: "DCA z (cm)", X: dcaSigned},
		{Name: HDcaZVsPt, Title: "pT (GeV/c) vs DCA z (cm)", X: pt, Y: dcaSigned},
		{Name: HDcaVsPt, Title: "DCA (cm) vs pT (GeV/c)", X: dca, Y: pt},
		{Name: HDcaVsR, Title: "DCA (cm) vs R (cm)", X: dca, Y: Axis{200, 0, 10}},
		{Name: HDecayLength, Title: "decay length (µm)", X: length},
		{Name: HDecayLengthId, Title: "decay length, true Ωc (µm)", X: length},
		{Name: HDecayLengthGen, Title: "decay length, generated (µm)", X: length},
		{Name: HDeltaDecayLength, Title: "decay length - generated (µm)", X: Axis{200, -250, 250}},
		{Name: HDecayLengthScaled, Title: "decay length × M/p (µm/c)", X: length},
		{Name: HDecayLengthScaledId, Title: "decay length × M/p, true Ωc (µm/c)", X: length},
		{Name: HDecayLengthScaledGen, Title: "decay length × M/p, MC id (µm/c)", X: length},
		{Name: HDecayLengthScaledMc, Title: "decay length × M/p, MC (µm/c)", X: length},
		{Name: HMassOmegaPi, Title: "m(Ωπ) (GeV/c²)", X: mass},
		{Name: HMassOmegaPiVsPt, Title: "m(Ωπ) (GeV/c²) vs pT (GeV/c)", X: mass, Y: Axis{10, 0, 10}},
		{Name: HMassOmegaK, Title: "m(ΩK) (GeV/c²)", X: mass},
		{Name: HMassOmegaKVsPt, Title: "m(ΩK) (GeV/c²) vs pT (GeV/c)", X: mass, Y: Axis{10, 0, 10}},
		{Name: HMassOmegacId, Title: "m(Ωπ), MC id (GeV/c²)", X: mass},
		{Name: HMassOmegacGen, Title: "m(Ωπ), generated (GeV/c²)", X: mass},
		{Name: HPtVsMassOmega, Title: "pT (GeV/c) vs m(Ω) (GeV/c²)", X: pt, Y: Axis{1000, 1, 3}},
		{Name: HDeltaPtVsPt, Title: "pT (GeV/c) vs ΔpT/pT", X: pt, Y: Axis{200, -1, 1}},
	}
}

// Histograms is a named registry of go-hep histograms, safe for concurrent
// filling. A nil *Histograms discards fills.
type Histograms struct {
	mu   sync.Mutex
	h1   map[string]*hbook.H1D
	h2   map[string]*hbook.H2D
	spec map[string]HistSpec
}

// NewHistograms books the given histograms.
func NewHistograms(specs []HistSpec) *Histograms {
	h := &Histograms{
		h1:   make(map[string]*hbook.H1D),
		h2:   make(map[string]*hbook.H2D),
		spec: make(map[string]HistSpec),
	}
	for _, s := range specs {
		h.spec[s.Name] = s
		if s.Y.Bins == 0 {
			hh := hbook.NewH1D(s.X.Bins, s.X.Min, s.X.Max)
			hh.Annotation()["name"] = s.Name
			hh.Annotation()["title"] = s.Title
			h.h1[s.Name] = hh
			continue
		}
		hh := hbook.NewH2D(s.X.Bins, s.X.Min, s.X.Max, s.Y.Bins, s.Y.Min, s.Y.Max)
		hh.Annotation()["name"] = s.Name
		hh.Annotation()["title"] = s.Title
		h.h2[s.Name] = hh
	}
	return h
}

// Fill adds x to the one-dimensional histogram name. Unknown names are
// ignored.
func (h *Histograms) Fill(name string, x float64) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if hh, ok := h.h1[name]; ok {
		hh.Fill(x, 1)
	}
}

// Fill2D adds (x, y) to the two-dimensional histogram name.
func (h *Histograms) Fill2D(name string, x, y float64) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if hh, ok := h.h2[name]; ok {
		hh.Fill(x, y, 1)
	}
}

// H1D returns the one-dimensional histogram name, or nil.
func (h *Histograms) H1D(name string) *hbook.H1D {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.h1[name]
}

// H2D returns the two-dimensional histogram name, or nil.
func (h *Histograms) H2D(name string) *hbook.H2D {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.h2[name]
}

// Spec returns the booking of name.
func (h *Histograms) Spec(name string) (HistSpec, bool) {
	s, ok := h.spec[name]
	return s, ok
}

// Names returns the booked histogram names in sorted order.
func (h *Histograms) Names() []string { return h.sortedNames() }

// Entries returns the number of fills of name.
func (h *Histograms) Entries(name string) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if hh, ok := h.h1[name]; ok {
		return hh.Entries()
	}
	if hh, ok := h.h2[name]; ok {
		return hh.Entries()
	}
	return 0
}

// WriteYODA writes every histogram to a single YODA text file.
func (h *Histograms) WriteYODA(path string) error {
	var buf bytes.Buffer
	if err := h.EncodeYODA(&buf); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

// EncodeYODA appends the YODA encoding of every histogram to buf.
func (h *Histograms) EncodeYODA(buf *bytes.Buffer) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, name := range h.sortedNames() {
		var (
			raw []byte
			err error
		)
		if hh, ok := h.h1[name]; ok {
			raw, err = hh.MarshalYODA()
		} else {
			raw, err = h.h2[name].MarshalYODA()
		}
		if err != nil {
			return fmt.Errorf("encode %s: %w", name, err)
		}
		buf.Write(raw)
	}
	return nil
}

func (h *Histograms) sortedNames() []string {
	names := make([]string, 0, len(h.spec))
	for n := range h.spec {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
