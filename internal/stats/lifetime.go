// Package stats provides lifetime statistics for supervised processes and
// the summary printed when the supervisor shuts down.
package stats

import (
	"sync"
	"time"

	"github.com/influxdata/tdigest"
)

// LifetimeTracker accumulates the lifetimes of exited processes.
//
// Percentiles come from a t-digest, so memory stays bounded no matter how
// many processes come and go. Safe for concurrent use.
type LifetimeTracker struct {
	mu     sync.Mutex
	digest *tdigest.TDigest
	count  int64
	total  time.Duration
	min    time.Duration
	max    time.Duration
}

// NewLifetimeTracker creates an empty tracker.
func NewLifetimeTracker() *LifetimeTracker {
	return &LifetimeTracker{
		digest: tdigest.NewWithCompression(100), // ~100 centroids, ~10KB
	}
}

// Record adds one lifetime observation. Negative values are ignored.
func (t *LifetimeTracker) Record(d time.Duration) {
	if d < 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.digest.Add(d.Seconds(), 1)
	if t.count == 0 || d < t.min {
		t.min = d
	}
	if d > t.max {
		t.max = d
	}
	t.count++
	t.total += d
}

// Percentiles returns the 50th, 95th and 99th percentile lifetimes.
// All are zero until something has been recorded.
func (t *LifetimeTracker) Percentiles() (p50, p95, p99 time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.count == 0 {
		return 0, 0, 0
	}
	return t.quantile(0.50), t.quantile(0.95), t.quantile(0.99)
}

// Quantile returns the lifetime at q (0.0-1.0).
func (t *LifetimeTracker) Quantile(q float64) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.count == 0 {
		return 0
	}
	return t.quantile(q)
}

func (t *LifetimeTracker) quantile(q float64) time.Duration {
	d := time.Duration(t.digest.Quantile(q) * float64(time.Second))
	// The digest interpolates; keep results inside the observed range.
	if d < t.min {
		d = t.min
	}
	if d > t.max {
		d = t.max
	}
	return d
}

// LifetimeSnapshot is a point-in-time copy of the tracker's figures.
type LifetimeSnapshot struct {
	Count int64
	Mean  time.Duration
	Min   time.Duration
	Max   time.Duration
	P50   time.Duration
	P95   time.Duration
	P99   time.Duration
}

// Snapshot returns every figure at once.
func (t *LifetimeTracker) Snapshot() LifetimeSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.count == 0 {
		return LifetimeSnapshot{}
	}
	return LifetimeSnapshot{
		Count: t.count,
		Mean:  t.total / time.Duration(t.count),
		Min:   t.min,
		Max:   t.max,
		P50:   t.quantile(0.50),
		P95:   t.quantile(0.95),
		P99:   t.quantile(0.99),
	}
}

// Count returns the number of recorded lifetimes.
func (t *LifetimeTracker) Count() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}
