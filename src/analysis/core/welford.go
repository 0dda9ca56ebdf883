package core

import "math"

// Welford accumulates mean and variance in a single pass with Welford's
// update. The zero value is an empty accumulator.
type Welford struct {
	count int64
	mean  float64
	m2    float64
}

// -----------------------------------------------------------------------------

// Add folds one observation into the accumulator.
func (w *Welford) Add(x float64) {
	w.count++
	delta := x - w.mean
	w.mean += delta / float64(w.count)
	w.m2 += delta * (x - w.mean)
	// Rounding can push m2 a hair below zero when all samples are equal.
	if w.m2 < 0 {
		w.m2 = 0
	}
}

// -----------------------------------------------------------------------------

func (w *Welford) Count() int64 { return w.count }

func (w *Welford) Mean() float64 { return w.mean }

// Variance returns the population variance, matching CalculateMeanStd.
func (w *Welford) Variance() float64 {
	if w.count < 2 {
		return 0
	}
	return w.m2 / float64(w.count)
}

func (w *Welford) StdDev() float64 {
	return math.Sqrt(w.Variance())
}

// Reset empties the accumulator.
func (w *Welford) Reset() {
	*w = Welford{}
}
