package stats

import (
	"sync"
	"testing"
	"time"
)

func TestLifetimeTracker_Empty(t *testing.T) {
	lt := NewLifetimeTracker()

	p50, p95, p99 := lt.Percentiles()
	if p50 != 0 || p95 != 0 || p99 != 0 {
		t.Errorf("Percentiles() = %v, %v, %v, want zeros", p50, p95, p99)
	}
	if lt.Count() != 0 {
		t.Errorf("Count() = %d, want 0", lt.Count())
	}
	if snap := lt.Snapshot(); snap != (LifetimeSnapshot{}) {
		t.Errorf("Snapshot() = %+v, want zero value", snap)
	}
}

func TestLifetimeTracker_SingleValue(t *testing.T) {
	lt := NewLifetimeTracker()
	lt.Record(3 * time.Second)

	p50, p95, p99 := lt.Percentiles()
	for _, p := range []time.Duration{p50, p95, p99} {
		if p != 3*time.Second {
			t.Errorf("percentile = %v, want 3s", p)
		}
	}
}

func TestLifetimeTracker_Distribution(t *testing.T) {
	lt := NewLifetimeTracker()
	for i := 1; i <= 100; i++ {
		lt.Record(time.Duration(i) * time.Second)
	}

	tests := []struct {
		name string
		q    float64
		want time.Duration
	}{
		{"p50", 0.50, 50 * time.Second},
		{"p95", 0.95, 95 * time.Second},
		{"p99", 0.99, 99 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := lt.Quantile(tt.q)
			// t-digest is approximate.
			if diff := got - tt.want; diff < -2*time.Second || diff > 2*time.Second {
				t.Errorf("Quantile(%v) = %v, want ~%v", tt.q, got, tt.want)
			}
		})
	}

	snap := lt.Snapshot()
	if snap.Count != 100 {
		t.Errorf("Count = %d, want 100", snap.Count)
	}
	if snap.Min != time.Second || snap.Max != 100*time.Second {
		t.Errorf("Min/Max = %v/%v, want 1s/100s", snap.Min, snap.Max)
	}
	if snap.Mean != 50500*time.Millisecond {
		t.Errorf("Mean = %v, want 50.5s", snap.Mean)
	}
}

func TestLifetimeTracker_IgnoresNegative(t *testing.T) {
	lt := NewLifetimeTracker()
	lt.Record(-time.Second)
	if lt.Count() != 0 {
		t.Errorf("Count() = %d, want 0", lt.Count())
	}
}

func TestLifetimeTracker_Concurrent(t *testing.T) {
	lt := NewLifetimeTracker()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				lt.Record(time.Duration(i) * time.Millisecond)
			}
		}()
	}
	wg.Wait()

	if lt.Count() != 800 {
		t.Errorf("Count() = %d, want 800", lt.Count())
	}
}
