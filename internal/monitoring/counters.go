package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Fit stages counted by FitCounters.
const (
	StagePrPi               = "pr_pi"
	StageV0Pi               = "v0_pi"
	StageCascPiOrK          = "casc_pi_or_k"
	StageCascPiOrKUntracked = "casc_pi_or_k_untracked"
)

// Fit counter outcomes.
const (
	OutcomeAttempted = "attempted"
	OutcomeFailed    = "failed"
	OutcomeSucceeded = "succeeded"
)

// FitCounters counts vertex fits per stage in a private Prometheus registry.
// A nil *FitCounters discards observations.
type FitCounters struct {
	registry *prometheus.Registry
	fits     *prometheus.CounterVec
	reasons  *prometheus.CounterVec
}

// NewFitCounters registers the fit counters in a fresh registry.
func NewFitCounters() *FitCounters {
	c := &FitCounters{
		registry: prometheus.NewRegistry(),
		fits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "omegac",
			Name:      "vertex_fits_total",
			Help:      "Two-body vertex fits by stage and outcome.",
		}, []string{"stage", "outcome"}),
		reasons: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "omegac",
			Name:      "vertex_fit_results_total",
			Help:      "Two-body vertex fit results by stage and fitter outcome.",
		}, []string{"stage", "result"}),
	}
	c.registry.MustRegister(c.fits, c.reasons)
	return c
}

// Observe records one fit at stage. result is the fitter outcome name.
func (c *FitCounters) Observe(stage string, ok bool, result string) {
	if c == nil {
		return
	}
	c.fits.WithLabelValues(stage, OutcomeAttempted).Inc()
	if ok {
		c.fits.WithLabelValues(stage, OutcomeSucceeded).Inc()
	} else {
		c.fits.WithLabelValues(stage, OutcomeFailed).Inc()
	}
	c.reasons.WithLabelValues(stage, result).Inc()
}

// Registry exposes the private registry.
func (c *FitCounters) Registry() *prometheus.Registry { return c.registry }

// WriteToTextfile writes the counters in the text exposition format.
func (c *FitCounters) WriteToTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}
