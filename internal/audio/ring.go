// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"sync"

	"specmon/internal/config"
)

// RingBuffer is a fixed-capacity FIFO store of mono audio samples in the
// range [-1, 1]. When full, each push evicts exactly the oldest sample.
//
// The producer side (Write, called from the capture callback) is
// allocation-free and holds the lock only for the copy; the consumer side
// (Snapshot) allocates its own copy so analysis never touches live storage.
type RingBuffer struct {
	mu   sync.Mutex
	buf  []float64
	head int // index of the next write position
	n    int // number of valid samples
}

// NewRingBuffer creates a RingBuffer holding up to capacity samples.
// A non-positive capacity is a configuration error.
func NewRingBuffer(capacity int) (*RingBuffer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: ring buffer capacity must be positive, got %d",
			config.ErrConfiguration, capacity)
	}
	return &RingBuffer{buf: make([]float64, capacity)}, nil
}

// Push appends a single sample, evicting the oldest if the buffer is full.
func (r *RingBuffer) Push(s float64) {
	r.mu.Lock()
	r.buf[r.head] = s
	r.head = (r.head + 1) % len(r.buf)
	if r.n < len(r.buf) {
		r.n++
	}
	r.mu.Unlock()
}

// Write appends a block of samples under a single lock acquisition.
// If the block would overflow the buffer, the oldest samples are dropped.
// Allocation-free; safe to call from the capture callback.
func (r *RingBuffer) Write(block []float64) {
	r.mu.Lock()
	for _, s := range block {
		r.buf[r.head] = s
		r.head = (r.head + 1) % len(r.buf)
	}
	r.n += len(block)
	if r.n > len(r.buf) {
		r.n = len(r.buf)
	}
	r.mu.Unlock()
}

// Snapshot returns an oldest-first copy of the current contents. The copy is
// owned by the caller; concurrent writes never mutate it.
func (r *RingBuffer) Snapshot() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.n == 0 {
		return nil
	}

	out := make([]float64, r.n)
	start := (r.head - r.n + len(r.buf)) % len(r.buf)
	tail := copy(out, r.buf[start:min(start+r.n, len(r.buf))])
	copy(out[tail:], r.buf[:r.n-tail])
	return out
}

// Clear empties the buffer atomically with respect to concurrent snapshots.
func (r *RingBuffer) Clear() {
	r.mu.Lock()
	r.head = 0
	r.n = 0
	r.mu.Unlock()
}

// Len returns the number of samples currently held.
func (r *RingBuffer) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}

// Cap returns the fixed capacity in samples.
func (r *RingBuffer) Cap() int {
	return len(r.buf)
}
