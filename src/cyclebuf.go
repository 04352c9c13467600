package jt9decode

import "sync"

// CycleBuffer holds the most recent audio.  Older samples are overwritten
// once it is full; only the latest window ever matters.
type CycleBuffer struct {
	mu       sync.Mutex
	samples  []int16
	writePos int   // Next slot to write.
	total    int64 // Samples written since creation.
}

func NewCycleBuffer(capacity int) *CycleBuffer {
	if capacity <= 0 {
		capacity = MaxSamples
	}

	return &CycleBuffer{samples: make([]int16, capacity)} //nolint:exhaustruct
}

func (b *CycleBuffer) Capacity() int {
	return len(b.samples)
}

// Write appends samples, wrapping around as needed.
func (b *CycleBuffer) Write(samples []int16) {
	if len(samples) == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var capacity = len(b.samples)

	b.total += int64(len(samples))

	// Anything more than a full buffer would only be overwritten again.
	if len(samples) > capacity {
		samples = samples[len(samples)-capacity:]
	}

	var n = copy(b.samples[b.writePos:], samples)
	if n < len(samples) {
		copy(b.samples, samples[n:])
	}

	b.writePos = (b.writePos + len(samples)) % capacity
}

// Total is the number of samples ever written.
func (b *CycleBuffer) Total() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.total
}

/*------------------------------------------------------------------
 *
 * Function:	Snapshot
 *
 * Purpose:	Copy out the most recent samples.
 *
 * Inputs:	n	- How many.  Fewer are returned if fewer have been
 *			  written or the buffer is smaller.
 *
 * Returns:	Samples, oldest first.  The caller owns the slice.
 *
 * Description:	The window may straddle the end of the buffer, in which
 *		case it is two copies: the tail end then the start.
 *
 *------------------------------------------------------------------*/

func (b *CycleBuffer) Snapshot(n int) []int16 {
	b.mu.Lock()
	defer b.mu.Unlock()

	var capacity = len(b.samples)

	n = int(min(int64(n), b.total, int64(capacity)))
	if n <= 0 {
		return nil
	}

	var out = make([]int16, n)
	var start = (b.writePos - n + capacity) % capacity

	if start+n <= capacity {
		copy(out, b.samples[start:start+n])
	} else {
		var first = copy(out, b.samples[start:])
		copy(out[first:], b.samples[:n-first])
	}

	return out
}
