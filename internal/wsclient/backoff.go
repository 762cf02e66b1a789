package wsclient

import (
	"math"
	"time"
)

// Backoff is the reconnection schedule of a Manager.
type Backoff struct {
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
	MaxAttempts int
}

// DefaultBackoff is 500ms growing by 1.5x up to 3s, 10 attempts.
func DefaultBackoff() Backoff {
	return Backoff{
		BaseDelay:   500 * time.Millisecond,
		Multiplier:  1.5,
		MaxDelay:    3 * time.Second,
		MaxAttempts: 10,
	}
}

func (b Backoff) withDefaults() Backoff {
	d := DefaultBackoff()
	if b.BaseDelay <= 0 {
		b.BaseDelay = d.BaseDelay
	}
	if b.Multiplier < 1 {
		b.Multiplier = d.Multiplier
	}
	if b.MaxDelay < b.BaseDelay {
		b.MaxDelay = b.BaseDelay
	}
	if b.MaxAttempts <= 0 {
		b.MaxAttempts = d.MaxAttempts
	}
	return b
}

// Delay returns the wait before retry number n, counting from 0.
func (b Backoff) Delay(n int) time.Duration {
	if n < 0 {
		n = 0
	}
	d := float64(b.BaseDelay) * math.Pow(b.Multiplier, float64(n))
	if d > float64(b.MaxDelay) || math.IsInf(d, 0) {
		return b.MaxDelay
	}
	return time.Duration(d)
}
