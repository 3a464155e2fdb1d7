// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"sync"
	"testing"

	"specmon/internal/config"
)

func TestNewRingBufferValidation(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		wantErr  bool
	}{
		{"Zero capacity", 0, true},
		{"Negative capacity", -5, true},
		{"Valid capacity", 1, false},
		{"Typical capacity", 220500, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRingBuffer(tt.capacity)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("NewRingBuffer(%d) expected error, got nil", tt.capacity)
				}
				if !errors.Is(err, config.ErrConfiguration) {
					t.Errorf("error %v should wrap ErrConfiguration", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewRingBuffer(%d) unexpected error: %v", tt.capacity, err)
			}
			if r.Cap() != tt.capacity {
				t.Errorf("Cap() = %d, want %d", r.Cap(), tt.capacity)
			}
		})
	}
}

func TestRingBufferFIFO(t *testing.T) {
	r, err := NewRingBuffer(4)
	if err != nil {
		t.Fatal(err)
	}

	// Partial fill preserves arrival order.
	r.Push(1)
	r.Push(2)
	r.Push(3)
	assertSnapshot(t, r, []float64{1, 2, 3})

	// At capacity.
	r.Push(4)
	assertSnapshot(t, r, []float64{1, 2, 3, 4})

	// Each push beyond capacity evicts exactly the oldest sample.
	r.Push(5)
	assertSnapshot(t, r, []float64{2, 3, 4, 5})
	r.Push(6)
	assertSnapshot(t, r, []float64{3, 4, 5, 6})
}

func TestRingBufferSnapshotBounded(t *testing.T) {
	const capacity = 16
	r, err := NewRingBuffer(capacity)
	if err != nil {
		t.Fatal(err)
	}

	// For any number of pushes, the snapshot never exceeds capacity and,
	// once pushes >= capacity, equals exactly the most recent capacity
	// pushes in arrival order.
	for i := 0; i < 100; i++ {
		r.Push(float64(i))

		snap := r.Snapshot()
		if len(snap) > capacity {
			t.Fatalf("after %d pushes: snapshot length %d exceeds capacity %d", i+1, len(snap), capacity)
		}

		first := 0
		if i+1 > capacity {
			first = i + 1 - capacity
		}
		for j, v := range snap {
			if v != float64(first+j) {
				t.Fatalf("after %d pushes: snapshot[%d] = %v, want %v", i+1, j, v, float64(first+j))
			}
		}
	}
}

func TestRingBufferWriteBlock(t *testing.T) {
	r, err := NewRingBuffer(5)
	if err != nil {
		t.Fatal(err)
	}

	r.Write([]float64{1, 2, 3})
	assertSnapshot(t, r, []float64{1, 2, 3})

	// Block larger than remaining space drops the oldest samples.
	r.Write([]float64{4, 5, 6, 7})
	assertSnapshot(t, r, []float64{3, 4, 5, 6, 7})

	// Block larger than the whole buffer keeps only its tail.
	r.Write([]float64{10, 11, 12, 13, 14, 15, 16})
	assertSnapshot(t, r, []float64{12, 13, 14, 15, 16})
}

func TestRingBufferClear(t *testing.T) {
	r, err := NewRingBuffer(8)
	if err != nil {
		t.Fatal(err)
	}

	r.Write([]float64{1, 2, 3, 4})
	r.Clear()

	if got := r.Snapshot(); len(got) != 0 {
		t.Errorf("Snapshot() after Clear() = %v, want empty", got)
	}
	if r.Len() != 0 {
		t.Errorf("Len() after Clear() = %d, want 0", r.Len())
	}

	// Buffer remains usable after a clear.
	r.Push(9)
	assertSnapshot(t, r, []float64{9})
}

func TestRingBufferWriteHotPath(t *testing.T) {
	r, err := NewRingBuffer(4096)
	if err != nil {
		t.Fatal(err)
	}
	block := make([]float64, 512)

	// Warm-up call, then assert the producer path stays allocation-free.
	r.Write(block)
	allocs := testing.AllocsPerRun(100, func() {
		r.Write(block)
	})

	if allocs > 0 {
		t.Errorf("Expected zero allocations in Write hot path, got %.1f", allocs)
	}
}

func TestRingBufferConcurrentAccess(t *testing.T) {
	r, err := NewRingBuffer(1024)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		block := make([]float64, 64)
		for {
			select {
			case <-stop:
				return
			default:
				r.Write(block)
			}
		}
	}()

	for i := 0; i < 1000; i++ {
		if snap := r.Snapshot(); len(snap) > r.Cap() {
			t.Errorf("snapshot length %d exceeds capacity %d", len(snap), r.Cap())
			break
		}
		if i%100 == 0 {
			r.Clear()
		}
	}

	close(stop)
	wg.Wait()
}

func assertSnapshot(t *testing.T, r *RingBuffer, want []float64) {
	t.Helper()
	got := r.Snapshot()
	if len(got) != len(want) {
		t.Fatalf("Snapshot() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Snapshot()[%d] = %v, want %v (full: %v)", i, got[i], want[i], got)
		}
	}
}

func BenchmarkRingWrite(b *testing.B) {
	r, err := NewRingBuffer(220500)
	if err != nil {
		b.Fatal(err)
	}
	block := make([]float64, 2048)

	b.ReportAllocs()
	for b.Loop() {
		r.Write(block)
	}
}

func BenchmarkRingSnapshot(b *testing.B) {
	r, err := NewRingBuffer(220500)
	if err != nil {
		b.Fatal(err)
	}
	block := make([]float64, 220500)
	r.Write(block)

	b.ReportAllocs()
	for b.Loop() {
		_ = r.Snapshot()
	}
}
