// Package metrics exposes pipeline counters in Prometheus text format.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder holds the pipeline collectors on a private registry. A nil
// *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry
	steps    *prometheus.CounterVec
	attempts *prometheus.CounterVec
	duration *prometheus.HistogramVec
	pending  *prometheus.GaugeVec
}

// New registers the bistr collectors on a fresh registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bistr_steps_total",
			Help: "Completed file steps by model and outcome.",
		}, []string{"model", "outcome"}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bistr_generate_calls_total",
			Help: "Calls made to the analysis service.",
		}, []string{"model"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bistr_step_duration_seconds",
			Help:    "Wall time of a completed file step, retries included.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}, []string{"model"}),
		pending: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bistr_pending_files",
			Help: "Files still pending for a target directory.",
		}, []string{"target"}),
	}
	r.registry.MustRegister(r.steps, r.attempts, r.duration, r.pending)
	return r
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ObserveCall counts one request to the analysis service.
func (r *Recorder) ObserveCall(model string) {
	if r == nil {
		return
	}
	r.attempts.WithLabelValues(model).Inc()
}

// ObserveStep records a completed step.
func (r *Recorder) ObserveStep(model, outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.steps.WithLabelValues(model, outcome).Inc()
	r.duration.WithLabelValues(model).Observe(d.Seconds())
}

// SetPending sets the remaining file count for target.
func (r *Recorder) SetPending(target string, n int) {
	if r == nil {
		return
	}
	r.pending.WithLabelValues(target).Set(float64(n))
}

// WriteTextfile writes the registry to path in the text exposition format,
// suitable for the node_exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
