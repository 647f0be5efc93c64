// Package retry computes bounded exponential backoff with jitter for
// step retries and background queue re-attempts.
package retry

import (
	"math/rand"
	"sync"
	"time"
)

const (
	// DefaultBaseDelay is the delay before the first retry.
	DefaultBaseDelay = 1 * time.Second

	// DefaultMaxDelay caps the computed backoff.
	DefaultMaxDelay = 30 * time.Second

	// jitterFraction is the maximum fraction of the exponential delay
	// added as random jitter (0–30%).
	jitterFraction = 0.3
)

// Policy computes exponential backoff delays. The zero value is not
// usable; construct with NewPolicy.
type Policy struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration

	mu   sync.Mutex
	rand *rand.Rand
}

// NewPolicy returns a Policy with the given base and cap. Non-positive
// values fall back to the defaults.
func NewPolicy(base, max time.Duration) *Policy {
	if base <= 0 {
		base = DefaultBaseDelay
	}
	if max <= 0 {
		max = DefaultMaxDelay
	}
	return &Policy{
		BaseDelay: base,
		MaxDelay:  max,
		rand:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NewPolicyWithSeed returns a Policy with a deterministic jitter source,
// for tests that assert exact delays.
func NewPolicyWithSeed(base, max time.Duration, seed int64) *Policy {
	p := NewPolicy(base, max)
	p.rand = rand.New(rand.NewSource(seed))
	return p
}

// Delay returns the backoff before retrying the given 1-indexed attempt:
// min(base·2^(attempt−1) + jitter(0–30%), max). Attempts below 1 are
// treated as 1. The result without jitter is non-decreasing in attempt
// and never exceeds max.
func (p *Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= p.MaxDelay {
			delay = p.MaxDelay
			break
		}
	}

	if delay < p.MaxDelay {
		p.mu.Lock()
		jitter := time.Duration(p.rand.Float64() * jitterFraction * float64(delay))
		p.mu.Unlock()
		delay += jitter
	}

	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// Wait sleeps for the attempt's backoff delay or until done is closed or
// receives. It returns false if the wait was interrupted.
func (p *Policy) Wait(attempt int, done <-chan struct{}) bool {
	timer := time.NewTimer(p.Delay(attempt))
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-done:
		return false
	}
}
