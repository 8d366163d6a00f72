// Package orchestrator wires the supervisor together: registry, metrics,
// HTTP API, dashboard and the processes started with the supervisor.
package orchestrator

import (
	"context"
	"math/rand"
	"time"
)

// RampScheduler paces the startup processes listed in the config so they do
// not all spawn at once. Each slot gets a deterministic jitter derived from
// its index and the scheduler seed.
type RampScheduler struct {
	rate      int           // processes per second; <= 0 means no pacing
	maxJitter time.Duration // maximum jitter per process
	seed      int64
}

// NewRampScheduler creates a new scheduler with the given rate and jitter.
func NewRampScheduler(rate int, maxJitter time.Duration) *RampScheduler {
	return NewRampSchedulerWithSeed(rate, maxJitter, time.Now().UnixNano())
}

// NewRampSchedulerWithSeed creates a scheduler with a specific seed for reproducibility.
func NewRampSchedulerWithSeed(rate int, maxJitter time.Duration, seed int64) *RampScheduler {
	return &RampScheduler{
		rate:      rate,
		maxJitter: maxJitter,
		seed:      seed,
	}
}

// Delay returns how long to wait before starting process n.
// Jitter is capped at half the base delay when a rate is set.
func (r *RampScheduler) Delay(n int) time.Duration {
	var baseDelay time.Duration
	if r.rate > 0 {
		baseDelay = time.Second / time.Duration(r.rate)
	}

	maxJitter := r.maxJitter
	if baseDelay > 0 && maxJitter > baseDelay/2 {
		maxJitter = baseDelay / 2
	}

	return baseDelay + r.jitter(n, maxJitter)
}

// jitter returns a value in [0, max) that is stable for a given n and seed.
func (r *RampScheduler) jitter(n int, max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	rng := rand.New(rand.NewSource(int64(n) ^ r.seed))
	return time.Duration(rng.Int63n(int64(max)))
}

// Schedule waits the appropriate amount of time before starting process n.
// Returns nil on success, or the context error if cancelled.
func (r *RampScheduler) Schedule(ctx context.Context, n int) error {
	delay := r.Delay(n)
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// EstimatedRampDuration returns the estimated time to start total processes.
func (r *RampScheduler) EstimatedRampDuration(total int) time.Duration {
	if r.rate <= 0 || total <= 0 {
		return 0
	}
	baseTime := time.Duration(total) * time.Second / time.Duration(r.rate)
	return baseTime + r.maxJitter/2
}

// Rate returns the configured rate (processes per second).
func (r *RampScheduler) Rate() int {
	return r.rate
}

// MaxJitter returns the configured maximum jitter.
func (r *RampScheduler) MaxJitter() time.Duration {
	return r.maxJitter
}
