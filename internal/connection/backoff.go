package connection

import (
	"math"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Backoff yields reconnect delays of max(base, prev*factor): base on the
// first retry, growing by factor on each further one. It is deterministic
// (no jitter) and not safe for concurrent use.
type Backoff struct {
	exp     *backoff.ExponentialBackOff
	attempt int
}

// NewBackoff creates a Backoff. factor below 1 is treated as 1, so the delay
// never drops under base. max <= 0 leaves the delay unbounded.
func NewBackoff(base time.Duration, factor float64, max time.Duration) *Backoff {
	if factor < 1 {
		factor = 1
	}
	if max <= 0 {
		max = time.Duration(math.MaxInt64)
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = base
	exp.Multiplier = factor
	exp.RandomizationFactor = 0
	exp.MaxInterval = max
	exp.Reset()

	return &Backoff{exp: exp}
}

// Next returns the delay before the next retry and advances.
func (b *Backoff) Next() time.Duration {
	b.attempt++
	return b.exp.NextBackOff()
}

// Attempt returns how many delays have been handed out since the last Reset.
func (b *Backoff) Attempt() int { return b.attempt }

// Reset returns to the base delay. Called after a successful open.
func (b *Backoff) Reset() {
	b.attempt = 0
	b.exp.Reset()
}

// Delay returns the n-th (0-based) delay of a fresh Backoff without jitter
// or cap.
func Delay(base time.Duration, factor float64, n int) time.Duration {
	if factor < 1 {
		factor = 1
	}
	return time.Duration(float64(base) * math.Pow(factor, float64(n)))
}
