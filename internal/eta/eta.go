// Package eta projects remaining batch time from the running mean of
// completed step durations.
package eta

import (
	"fmt"
	"time"
)

// WarmupSamples is the number of samples required before an estimate is given.
const WarmupSamples = 4

// Estimator accumulates per-step durations for the current run.
type Estimator struct {
	samples []time.Duration
	total   time.Duration
}

// New creates an empty Estimator.
func New() *Estimator {
	return &Estimator{}
}

// Add records one completed step.
func (e *Estimator) Add(d time.Duration) {
	e.samples = append(e.samples, d)
	e.total += d
}

// Count returns the number of recorded samples.
func (e *Estimator) Count() int {
	return len(e.samples)
}

// Mean returns the average sample, or zero with no samples.
func (e *Estimator) Mean() time.Duration {
	if len(e.samples) == 0 {
		return 0
	}
	return e.total / time.Duration(len(e.samples))
}

// Estimate returns remaining × mean. ok is false until WarmupSamples
// samples exist.
func (e *Estimator) Estimate(remaining int) (d time.Duration, ok bool) {
	if len(e.samples) < WarmupSamples {
		return 0, false
	}
	if remaining <= 0 {
		return 0, true
	}
	return time.Duration(remaining) * e.Mean(), true
}

// Describe renders the estimate for a progress line.
func (e *Estimator) Describe(remaining int) string {
	d, ok := e.Estimate(remaining)
	if !ok {
		return "Pending time estimation"
	}
	return "Estimated time remaining: " + FormatDuration(d)
}

// FormatDuration renders d as "Xh Ym Zs", truncating fractional seconds.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%dh %dm %ds", secs/3600, (secs%3600)/60, secs%60)
}
