// Package buffer provides the two primitives the storage layer builds
// everything else on: a preallocated slice pool ([Arena]) and a
// little-endian cursor view over a byte region ([LEBuffer]).
package buffer

import (
	"fmt"

	"github.com/flintdb/flintdb/internal/ferr"
)

// Arena is a preallocated, contiguous byte region carved into equal-size
// slices and handed out from a queue. Returned slices are cleared and
// re-queued; requests larger than the slice size bypass the pool with a
// heap allocation.
//
// Arena has no internal mutex: borrow/return go through a buffered channel,
// which gives the same externally-observable behavior as a lock-free queue
// (concurrent borrow/return never blocks on a held lock) without hand-rolled
// atomics. A request that finds the channel empty falls back to a heap
// allocation rather than waiting.
type Arena struct {
	region     []byte
	sliceBytes int
	maxSlices  int
	pool       chan []byte
}

// New allocates one contiguous region of sliceBytes*maxSlices and slices it
// into maxSlices equal views, all initially queued.
func New(sliceBytes, maxSlices int) (*Arena, error) {
	if sliceBytes <= 0 {
		return nil, fmt.Errorf("slice_bytes must be > 0, got %d: %w", sliceBytes, ferr.Config)
	}

	if maxSlices <= 0 {
		return nil, fmt.Errorf("max_slices must be > 0, got %d: %w", maxSlices, ferr.Config)
	}

	total := sliceBytes * maxSlices
	if total/maxSlices != sliceBytes {
		return nil, fmt.Errorf("slice_bytes*max_slices overflows: %w", ferr.Config)
	}

	a := &Arena{
		region:     make([]byte, total),
		sliceBytes: sliceBytes,
		maxSlices:  maxSlices,
	}
	a.Clear()

	return a, nil
}

// Clear re-slices the master region and refills the queue, discarding any
// slices currently borrowed (callers must not use them afterward).
func (a *Arena) Clear() {
	a.pool = make(chan []byte, a.maxSlices)

	for i := 0; i < a.maxSlices; i++ {
		start := i * a.sliceBytes
		a.pool <- a.region[start : start : start+a.sliceBytes]
	}
}

// Borrow returns a buffer with length requested. If requested <= sliceBytes
// and the pool is non-empty, a pooled slice is dequeued and resliced;
// otherwise a heap buffer of the exact size is returned. Callers must not
// assume the result is pooled.
func (a *Arena) Borrow(requested int) []byte {
	if requested <= a.sliceBytes {
		select {
		case buf := <-a.pool:
			return buf[:requested]
		default:
		}
	}

	return make([]byte, requested)
}

// Return accepts buf back into the pool iff it has exactly the arena's slice
// capacity and the pool isn't already full. Non-accepted buffers (oversized
// fallback allocations, or a full pool) are silently discarded and left to
// the garbage collector.
func (a *Arena) Return(buf []byte) {
	if cap(buf) != a.sliceBytes {
		return
	}

	full := buf[:a.sliceBytes]
	for i := range full {
		full[i] = 0
	}

	select {
	case a.pool <- full[:0]:
	default:
	}
}

// Close releases the master region. Pooled slice views become invalid.
func (a *Arena) Close() {
	a.region = nil
	a.pool = nil
}
