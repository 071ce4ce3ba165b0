package stats

import (
	"math"
	"sort"
)

// RollingWindow is a fixed-capacity FIFO of samples with a robust
// median/MAD summary. Median and MAD are always derived from the same sorted
// snapshot and cached until the next Add, so repeated reads are identical.
//
// Not safe for concurrent use.
type RollingWindow struct {
	capacity int
	warmup   int

	buf   []float64
	head  int // index of the oldest sample once the buffer is full
	count int

	cache *summary
}

type summary struct {
	median float64
	mad    float64
}

// NewRollingWindow creates a window holding at most capacity samples that is
// warm once it holds warmup samples.
func NewRollingWindow(capacity, warmup int) *RollingWindow {
	if capacity < 1 {
		capacity = 1
	}
	return &RollingWindow{
		capacity: capacity,
		warmup:   warmup,
		buf:      make([]float64, 0, min(capacity, 4096)),
	}
}

// Add appends v, evicting the oldest sample when full.
func (w *RollingWindow) Add(v float64) {
	if w.count < w.capacity {
		w.buf = append(w.buf, v)
		w.count++
	} else {
		w.buf[w.head] = v
		w.head = (w.head + 1) % w.capacity
	}
	w.cache = nil
}

// Count returns the number of samples held.
func (w *RollingWindow) Count() int { return w.count }

// IsWarm reports whether the warm-up threshold has been reached.
func (w *RollingWindow) IsWarm() bool { return w.count >= w.warmup }

// Median returns the lower median, or 0 on an empty window.
func (w *RollingWindow) Median() float64 {
	if w.count == 0 {
		return 0
	}
	return w.summarize().median
}

// MAD returns the lower median of absolute deviations from Median, or 0 on
// an empty window.
func (w *RollingWindow) MAD() float64 {
	if w.count == 0 {
		return 0
	}
	return w.summarize().mad
}

// values returns the samples oldest first.
func (w *RollingWindow) values() []float64 {
	out := make([]float64, 0, w.count)
	if w.count < w.capacity {
		return append(out, w.buf...)
	}
	out = append(out, w.buf[w.head:]...)
	return append(out, w.buf[:w.head]...)
}

// Reset drops all samples and the cached summary.
func (w *RollingWindow) Reset() {
	w.buf = w.buf[:0]
	w.head = 0
	w.count = 0
	w.cache = nil
}

func (w *RollingWindow) summarize() summary {
	if w.cache != nil {
		return *w.cache
	}

	sorted := make([]float64, w.count)
	copy(sorted, w.buf)
	sort.Float64s(sorted)
	median := lowerMedian(sorted)

	deviations := make([]float64, len(sorted))
	for i, v := range sorted {
		deviations[i] = math.Abs(v - median)
	}
	sort.Float64s(deviations)

	w.cache = &summary{median: median, mad: lowerMedian(deviations)}
	return *w.cache
}

// lowerMedian picks index (n-1)/2 of sorted data; never interpolates.
func lowerMedian(sorted []float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	return sorted[(len(sorted)-1)/2]
}
