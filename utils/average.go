package utils

import "sync"

// RollingAverage is the mean of the last NumSamples values added. It is safe for concurrent use.
type RollingAverage struct {
	mu    sync.Mutex
	data  []float64
	pos   int
	count int
}

// NewRollingAverage returns an empty window of numSamples values.
func NewRollingAverage(numSamples int) *RollingAverage {
	if numSamples < 1 {
		numSamples = 1
	}
	return &RollingAverage{data: make([]float64, numSamples)}
}

// NumSamples returns the window size.
func (ra *RollingAverage) NumSamples() int {
	return len(ra.data)
}

// Add pushes x, evicting the oldest value once the window is full.
func (ra *RollingAverage) Add(x float64) {
	ra.mu.Lock()
	defer ra.mu.Unlock()
	ra.data[ra.pos] = x
	ra.pos++
	if ra.pos >= len(ra.data) {
		ra.pos = 0
	}
	if ra.count < len(ra.data) {
		ra.count++
	}
}

// Average returns the mean of the values in the window, 0 when nothing was added.
func (ra *RollingAverage) Average() float64 {
	ra.mu.Lock()
	defer ra.mu.Unlock()
	if ra.count == 0 {
		return 0
	}
	sum := 0.0
	for _, d := range ra.data[:ra.count] {
		sum += d
	}
	return sum / float64(ra.count)
}
