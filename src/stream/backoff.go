package stream

import (
	"math/rand/v2"
	"time"
)

// Backoff computes reconnect delays: Base doubled per consecutive failure up
// to Cap, then spread by ±Jitter (a fraction of the base delay).
type Backoff struct {
	Base   time.Duration
	Cap    time.Duration
	Jitter float64
	// Rand returns a value in [0, 1). Defaults to math/rand/v2.
	Rand func() float64
}

// -----------------------------------------------------------------------------

// BaseDelay is the delay before jitter for the given attempt (1 = first
// retry). It never decreases with attempt and never exceeds Cap.
func (b Backoff) BaseDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	d := b.Base
	for i := 1; i < attempt; i++ {
		if d >= b.Cap/2 {
			return b.Cap
		}
		d *= 2
	}
	if d > b.Cap {
		return b.Cap
	}
	return d
}

// -----------------------------------------------------------------------------

// Delay is BaseDelay with jitter applied. The result stays within
// ±Jitter of the base and may exceed Cap by at most that fraction.
func (b Backoff) Delay(attempt int) time.Duration {
	base := b.BaseDelay(attempt)
	if b.Jitter <= 0 {
		return base
	}

	random := b.Rand
	if random == nil {
		random = rand.Float64
	}

	factor := 1 + b.Jitter*(2*random()-1)
	return time.Duration(float64(base) * factor)
}
