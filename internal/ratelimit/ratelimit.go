// Package ratelimit provides per-provider request throttling shared by
// every concurrent debate and judge call in a run.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter is a token bucket with a requests-per-minute refill rate and
// a single token of capacity, so over any rolling minute acquisitions
// stay within one token of the configured RPM. A larger bucket would
// let a fresh limiter admit a whole extra minute of requests at once.
type Limiter struct {
	mu      sync.Mutex
	rpm     int
	limiter *rate.Limiter
}

// New returns a limiter for the given requests-per-minute ceiling.
// rpm <= 0 means unlimited.
func New(rpm int) *Limiter {
	l := &Limiter{}
	l.SetRPM(rpm)
	return l
}

// SetRPM replaces the ceiling. rpm <= 0 disables throttling.
func (l *Limiter) SetRPM(rpm int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rpm = rpm
	if rpm <= 0 {
		l.limiter = nil
		return
	}
	l.limiter = rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1)
}

// Wait blocks until a request token is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	lim := l.limiter
	l.mu.Unlock()
	if lim == nil {
		return ctx.Err()
	}
	return lim.Wait(ctx)
}

// RPM returns the configured ceiling, 0 when unlimited.
func (l *Limiter) RPM() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rpm
}

// Registry hands out one limiter per provider name.
type Registry struct {
	mu       sync.Mutex
	limiters map[string]*Limiter
	rpm      int
}

// NewRegistry creates a registry whose limiters start at the given RPM.
func NewRegistry(rpm int) *Registry {
	return &Registry{limiters: make(map[string]*Limiter), rpm: rpm}
}

// For returns the shared limiter for a provider, creating it on first use.
func (r *Registry) For(provider string) *Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.limiters[provider]
	if !ok {
		l = New(r.rpm)
		r.limiters[provider] = l
	}
	return l
}
