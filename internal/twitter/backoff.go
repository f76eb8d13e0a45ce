package twitter

import "time"

// Backoff computes exponential reconnect delays.
type Backoff struct {
	Base      time.Duration
	Max       time.Duration
	attempt   int
	exhausted bool
}

func NewBackoff(base, max time.Duration) *Backoff {
	return &Backoff{Base: base, Max: max}
}

func (b *Backoff) Next() time.Duration {
	if b.exhausted {
		return b.Max
	}
	d := b.Base << b.attempt
	if d <= 0 || d >= b.Max {
		b.exhausted = true
		return b.Max
	}
	b.attempt++
	return d
}

// Exhaust makes every following Next return Max until Reset.
// Used when the API tells us we are rate limited.
func (b *Backoff) Exhaust() {
	b.exhausted = true
}

func (b *Backoff) Reset() {
	b.attempt = 0
	b.exhausted = false
}
