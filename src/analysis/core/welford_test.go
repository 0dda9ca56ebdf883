package core

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWelford_MatchesTwoPass(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 50; trial++ {
		n := 1 + rng.Intn(500)
		// Large offset with small spread is where naive sum-of-squares fails.
		offset := rng.Float64() * 1e6
		data := make([]float64, n)

		var w Welford
		for i := range data {
			data[i] = offset + rng.NormFloat64()*0.01
			w.Add(data[i])
		}

		mean, std := CalculateMeanStd(data)
		assert.Equal(t, int64(n), w.Count())
		assert.InDelta(t, mean, w.Mean(), 1e-9*math.Max(1, math.Abs(mean)))
		assert.InDelta(t, std*std, w.Variance(), 1e-9)
		assert.GreaterOrEqual(t, w.Variance(), 0.0)
	}
}

func TestWelford_SingleAndConstant(t *testing.T) {
	var w Welford
	assert.Zero(t, w.Variance())

	w.Add(100)
	assert.Equal(t, 100.0, w.Mean())
	assert.Zero(t, w.Variance())

	for i := 0; i < 1000; i++ {
		w.Add(100)
	}
	assert.Equal(t, 100.0, w.Mean())
	assert.Zero(t, w.Variance())

	w.Reset()
	assert.Zero(t, w.Count())
	assert.Zero(t, w.Mean())
}

func TestCalculateChangePercent(t *testing.T) {
	assert.InDelta(t, 2.0, CalculateChangePercent(102, 100), 1e-12)
	assert.InDelta(t, -50.0, CalculateChangePercent(50, 100), 1e-12)
	assert.Zero(t, CalculateChangePercent(10, 0))
}
