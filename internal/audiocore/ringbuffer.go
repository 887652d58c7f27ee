package audiocore

import (
	"sync/atomic"
)

// SampleRingBuffer is a fixed-capacity single-producer/single-consumer queue of
// audio chunks. Slots form an arena indexed by two monotonically increasing
// cursors; the slot for cursor n is n % capacity.
//
// Push and TryPop never block. On overflow the producer evicts the oldest
// unread chunk by advancing the read cursor with a compare-and-swap, the same
// operation the consumer uses to claim a chunk, so a chunk is either evicted or
// popped but never both.
type SampleRingBuffer struct {
	slots    []atomic.Pointer[AudioChunk]
	capacity uint64

	// read is advanced by the consumer (pop) and by the producer (eviction)
	read atomic.Uint64
	_    [56]byte

	// write is only advanced by the producer
	write atomic.Uint64
	_     [56]byte

	dropped atomic.Uint64
}

// NewSampleRingBuffer creates a ring buffer holding up to capacity chunks.
// Non-positive capacities fall back to DefaultRingCapacity.
func NewSampleRingBuffer(capacity int) *SampleRingBuffer {
	if capacity <= 0 {
		capacity = DefaultRingCapacity
	}
	return &SampleRingBuffer{
		slots:    make([]atomic.Pointer[AudioChunk], capacity),
		capacity: uint64(capacity),
	}
}

// Push stores chunk as the newest entry, evicting the oldest unread chunk when
// the buffer is full. It returns false only when chunk cannot be stored.
// Must only be called from the producer context.
func (rb *SampleRingBuffer) Push(chunk *AudioChunk) bool {
	if chunk == nil {
		return false
	}

	w := rb.write.Load()
	for {
		r := rb.read.Load()
		if w-r < rb.capacity {
			break
		}
		// Full: claim the oldest slot. A failed CAS means the consumer popped
		// it first, which frees space just the same.
		if rb.read.CompareAndSwap(r, r+1) {
			rb.dropped.Add(1)
		}
	}

	rb.slots[w%rb.capacity].Store(chunk)
	rb.write.Store(w + 1)
	return true
}

// TryPop removes and returns the oldest unread chunk. It returns false
// immediately when the buffer is empty. Must only be called from the consumer
// context.
func (rb *SampleRingBuffer) TryPop() (*AudioChunk, bool) {
	for {
		r := rb.read.Load()
		w := rb.write.Load()
		if r >= w {
			return nil, false
		}

		slot := &rb.slots[r%rb.capacity]
		chunk := slot.Load()
		if !rb.read.CompareAndSwap(r, r+1) {
			// Producer evicted r while we were reading; retry at the new head
			continue
		}

		// Release the reference unless the producer already reused the slot
		slot.CompareAndSwap(chunk, nil)
		return chunk, true
	}
}

// Len returns the number of unread chunks. The value is a snapshot and may be
// stale by the time it is used.
func (rb *SampleRingBuffer) Len() int {
	r := rb.read.Load()
	w := rb.write.Load()
	if r >= w {
		return 0
	}
	return int(w - r)
}

// Capacity returns the number of chunk slots.
func (rb *SampleRingBuffer) Capacity() int {
	return int(rb.capacity)
}

// Dropped returns how many chunks were evicted by overflow.
func (rb *SampleRingBuffer) Dropped() uint64 {
	return rb.dropped.Load()
}

// Pushed returns how many chunks have been stored since creation.
func (rb *SampleRingBuffer) Pushed() uint64 {
	return rb.write.Load()
}
