package stream

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff_BaseDelaySequence(t *testing.T) {
	b := Backoff{Base: time.Second, Cap: 60 * time.Second}

	want := []time.Duration{1, 2, 4, 8, 16, 32, 60, 60}
	for i, w := range want {
		assert.Equal(t, w*time.Second, b.BaseDelay(i+1), "attempt %d", i+1)
	}
	assert.Equal(t, time.Second, b.BaseDelay(0))
	assert.Equal(t, 60*time.Second, b.BaseDelay(1_000_000))
}

func TestBackoff_NonDecreasingAndJitterBounded(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	b := Backoff{Base: time.Second, Cap: 60 * time.Second, Jitter: 0.2, Rand: rng.Float64}

	prev := time.Duration(0)
	for attempt := 1; attempt <= 200; attempt++ {
		base := b.BaseDelay(attempt)
		assert.GreaterOrEqual(t, base, prev)
		assert.LessOrEqual(t, base, b.Cap)
		prev = base

		for i := 0; i < 20; i++ {
			d := b.Delay(attempt)
			assert.GreaterOrEqual(t, float64(d), 0.8*float64(base)-1)
			assert.LessOrEqual(t, float64(d), 1.2*float64(base)+1)
		}
	}
}

func TestBackoff_JitterExtremes(t *testing.T) {
	b := Backoff{Base: 10 * time.Second, Cap: time.Minute, Jitter: 0.2}

	b.Rand = func() float64 { return 0 }
	assert.InDelta(t, float64(8*time.Second), float64(b.Delay(1)), 1)

	b.Rand = func() float64 { return 0.5 }
	assert.Equal(t, 10*time.Second, b.Delay(1))
}
