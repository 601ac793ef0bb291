package utils

import (
	"sync"

	"github.com/montanaflynn/stats"
)

// RollingWindow keeps the most recent samples of a float64 series. It is safe for
// concurrent use.
type RollingWindow struct {
	mu   sync.Mutex
	data []float64
	pos  int
	full bool
}

// NewRollingWindow returns a window over the last numSamples values. numSamples must be positive.
func NewRollingWindow(numSamples int) *RollingWindow {
	if numSamples <= 0 {
		numSamples = 1
	}
	return &RollingWindow{data: make([]float64, numSamples)}
}

// NumSamples is the capacity of the window.
func (rw *RollingWindow) NumSamples() int {
	return len(rw.data)
}

// Add records x, evicting the oldest sample once the window is full.
func (rw *RollingWindow) Add(x float64) {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	rw.data[rw.pos] = x
	rw.pos++
	if rw.pos >= len(rw.data) {
		rw.pos = 0
		rw.full = true
	}
}

// Samples returns a copy of the retained samples, oldest first.
func (rw *RollingWindow) Samples() []float64 {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if !rw.full {
		return append([]float64(nil), rw.data[:rw.pos]...)
	}
	out := make([]float64, 0, len(rw.data))
	out = append(out, rw.data[rw.pos:]...)
	return append(out, rw.data[:rw.pos]...)
}

// Summary is the mean and 95th percentile of a window. Both are zero for an empty window.
type Summary struct {
	Count int
	Mean  float64
	P95   float64
	Max   float64
}

// Summarize computes a Summary over the retained samples.
func (rw *RollingWindow) Summarize() Summary {
	samples := stats.Float64Data(rw.Samples())
	if samples.Len() == 0 {
		return Summary{}
	}
	// Mean and Max only fail on empty input, which is handled above.
	mean, _ := samples.Mean()
	maxVal, _ := samples.Max()
	p95, err := samples.Percentile(95)
	if err != nil {
		// too few samples to index the percentile
		p95 = maxVal
	}
	return Summary{Count: samples.Len(), Mean: mean, P95: p95, Max: maxVal}
}
