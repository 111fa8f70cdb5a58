package eta

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEstimate_WithheldUntilWarmup(t *testing.T) {
	e := New()
	for i := 0; i < WarmupSamples-1; i++ {
		e.Add(10 * time.Second)
		_, ok := e.Estimate(5)
		assert.False(t, ok, "estimate must be withheld with %d samples", e.Count())
		assert.Equal(t, "Pending time estimation", e.Describe(5))
	}

	e.Add(10 * time.Second)
	d, ok := e.Estimate(5)
	assert.True(t, ok)
	assert.Equal(t, 50*time.Second, d)
	assert.Equal(t, "Estimated time remaining: 0h 0m 50s", e.Describe(5))
}

func TestEstimate_UsesMean(t *testing.T) {
	e := New()
	for _, s := range []int{1, 2, 3, 6} {
		e.Add(time.Duration(s) * time.Second)
	}
	assert.Equal(t, 3*time.Second, e.Mean())

	d, ok := e.Estimate(10)
	assert.True(t, ok)
	assert.Equal(t, 30*time.Second, d)

	d, ok = e.Estimate(0)
	assert.True(t, ok)
	assert.Zero(t, d)
}

func TestMean_Empty(t *testing.T) {
	assert.Zero(t, New().Mean())
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{3661 * time.Second, "1h 1m 1s"},
		{0, "0h 0m 0s"},
		{59*time.Second + 999*time.Millisecond, "0h 0m 59s"},
		{26*time.Hour + 5*time.Minute, "26h 5m 0s"},
		{-time.Second, "0h 0m 0s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.in), "FormatDuration(%v)", tt.in)
	}
}
