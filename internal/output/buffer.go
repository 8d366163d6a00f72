// Package output holds the per-process line history and the readers that
// feed it from a child's stdout and stderr pipes.
package output

import (
	"strings"
	"sync"
)

// DefaultCapacity is the number of lines kept per process when the caller
// does not choose one.
const DefaultCapacity = 500

// Buffer is a bounded, order-preserving history of text lines.
//
// Lines are stored in a circular buffer; once full, every push evicts the
// oldest line. Safe for concurrent use: a process's stdout and stderr
// captures append to the same Buffer while readers take snapshots.
type Buffer struct {
	mu    sync.Mutex
	ring  []string
	start int // index of the oldest line
	n     int // number of lines held

	// Monotonic counters, not reset by Clear.
	appended int64
	evicted  int64
}

// NewBuffer creates a buffer holding at most capacity lines.
// A capacity below 1 selects DefaultCapacity.
func NewBuffer(capacity int) *Buffer {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Buffer{
		ring: make([]string, capacity),
	}
}

// Append splits text on newlines and pushes every fragment that is not
// blank after trimming whitespace. Blank lines are never recorded.
// Returns the number of lines pushed.
func (b *Buffer) Append(text string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	pushed := 0
	for _, fragment := range strings.Split(text, "\n") {
		fragment = strings.TrimSuffix(fragment, "\r")
		if strings.TrimSpace(fragment) == "" {
			continue
		}
		b.push(fragment)
		pushed++
	}
	return pushed
}

// push adds one line, evicting the oldest when full. Caller holds mu.
func (b *Buffer) push(line string) {
	size := len(b.ring)
	if b.n < size {
		b.ring[(b.start+b.n)%size] = line
		b.n++
	} else {
		b.ring[b.start] = line
		b.start = (b.start + 1) % size
		b.evicted++
	}
	b.appended++
}

// Snapshot returns the last min(k, Len()) lines in their original order.
// It does not modify the buffer.
func (b *Buffer) Snapshot(k int) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked(k)
}

func (b *Buffer) snapshotLocked(k int) []string {
	if k > b.n {
		k = b.n
	}
	if k <= 0 {
		return []string{}
	}

	size := len(b.ring)
	first := b.n - k
	lines := make([]string, k)
	for i := 0; i < k; i++ {
		lines[i] = b.ring[(b.start+first+i)%size]
	}
	return lines
}

// SnapshotAndClear returns the last min(k, Len()) lines and then drops every
// line, under one lock so no line appended in between is lost unseen.
func (b *Buffer) SnapshotAndClear(k int) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	lines := b.snapshotLocked(k)
	b.clearLocked()
	return lines
}

// Clear drops every line. Capacity and counters are unchanged.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clearLocked()
}

func (b *Buffer) clearLocked() {
	for i := range b.ring {
		b.ring[i] = ""
	}
	b.start = 0
	b.n = 0
}

// Len returns the number of lines currently held.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.n
}

// Cap returns the configured capacity.
func (b *Buffer) Cap() int {
	return len(b.ring)
}

// Stats returns (appended, evicted) line counts since creation.
func (b *Buffer) Stats() (appended, evicted int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.appended, b.evicted
}
