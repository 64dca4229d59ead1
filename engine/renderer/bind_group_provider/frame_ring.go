package bind_group_provider

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// DefaultInFlightFrames is how many frames may be encoded ahead of the GPU.
const DefaultInFlightFrames = 5

// ErrFrameNotInFlight is returned when Complete is called for a frame that was not begun.
var ErrFrameNotInFlight = errors.New("frame ring: frame not in flight")

// FrameRing rotates through a fixed number of per-frame resource sets. Begin hands
// out the next index and blocks while every set is still in use by the GPU;
// Complete, called from the GPU completion callback, returns a set to the ring.
// A frame's uniforms are written only between its Begin and its submission, so the
// GPU never reads a buffer the host is rewriting.
type FrameRing struct {
	slots chan struct{}

	mu       sync.Mutex
	next     int
	inFlight []bool
}

// NewFrameRing creates a ring of n frames; n below 1 is treated as 1.
func NewFrameRing(n int) *FrameRing {
	if n < 1 {
		n = 1
	}
	r := &FrameRing{
		slots:    make(chan struct{}, n),
		inFlight: make([]bool, n),
	}
	for range n {
		r.slots <- struct{}{}
	}
	return r
}

// Len returns the number of frames in the ring.
func (r *FrameRing) Len() int {
	return len(r.inFlight)
}

// Begin waits for a free frame and returns its index.
//
// Parameters:
//   - ctx: cancels the wait
//
// Returns:
//   - int: the frame index, in round-robin order
//   - error: ctx.Err() if the context ends first
func (r *FrameRing) Begin(ctx context.Context) (int, error) {
	select {
	case <-r.slots:
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// holding a token guarantees at least one frame is free
	idx := r.next
	for r.inFlight[idx] {
		idx = (idx + 1) % len(r.inFlight)
	}
	r.inFlight[idx] = true
	r.next = (idx + 1) % len(r.inFlight)
	return idx, nil
}

// Complete returns a frame to the ring. It is safe to call from any goroutine.
//
// Returns:
//   - error: ErrFrameNotInFlight if idx was not begun or was already completed
func (r *FrameRing) Complete(idx int) error {
	r.mu.Lock()
	if idx < 0 || idx >= len(r.inFlight) || !r.inFlight[idx] {
		r.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrFrameNotInFlight, idx)
	}
	r.inFlight[idx] = false
	r.mu.Unlock()

	r.slots <- struct{}{}
	return nil
}

// InFlight returns how many frames are begun and not yet completed.
func (r *FrameRing) InFlight() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, f := range r.inFlight {
		if f {
			n++
		}
	}
	return n
}
