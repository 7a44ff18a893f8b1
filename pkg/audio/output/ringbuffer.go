// ABOUTME: Fixed capacity byte ring shared by the producer and the device writer
// ABOUTME: Reads and writes are all-or-nothing so accounting can never drift
package output

import "sync"

// RingBuffer provides a thread-safe circular buffer of PCM bytes.
//
// Write and Read either move the full request or nothing at all; a request
// that does not fit fails with ErrInsufficientSpace or ErrInsufficientData
// and leaves the buffer untouched.
type RingBuffer struct {
	mu       sync.Locker
	buffer   []byte
	readPos  int
	writePos int
	count    int // Number of bytes currently in buffer
}

// NewRingBuffer creates a ring buffer guarded by its own mutex
func NewRingBuffer(capacity int) (*RingBuffer, error) {
	return NewRingBufferWithLock(capacity, &sync.Mutex{})
}

// NewRingBufferWithLock creates a ring buffer guarded by a lock the caller
// already uses for related state. The lock must not be held when calling
// any RingBuffer method.
func NewRingBufferWithLock(capacity int, l sync.Locker) (*RingBuffer, error) {
	if capacity <= 0 {
		return nil, ErrZeroCapacity
	}
	return &RingBuffer{
		mu:     l,
		buffer: make([]byte, capacity),
	}, nil
}

// Write copies all of p into the buffer, or nothing if it does not fit
func (rb *RingBuffer) Write(p []byte) (int, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if len(p) > len(rb.buffer)-rb.count {
		return 0, ErrInsufficientSpace
	}

	// Split copy when the free region wraps past the end
	n := copy(rb.buffer[rb.writePos:], p)
	if n < len(p) {
		copy(rb.buffer, p[n:])
	}

	rb.writePos = (rb.writePos + len(p)) % len(rb.buffer)
	rb.count += len(p)
	return len(p), nil
}

// Read fills all of p from the buffer, or nothing if fewer bytes are queued.
// Callers that want a partial read ask Used() first.
func (rb *RingBuffer) Read(p []byte) (int, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if len(p) > rb.count {
		return 0, ErrInsufficientData
	}

	n := copy(p, rb.buffer[rb.readPos:min(rb.readPos+len(p), len(rb.buffer))])
	if n < len(p) {
		copy(p[n:], rb.buffer)
	}

	rb.readPos = (rb.readPos + len(p)) % len(rb.buffer)
	rb.count -= len(p)
	return len(p), nil
}

// Used returns the number of bytes available to read
func (rb *RingBuffer) Used() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.count
}

// Free returns the number of bytes that can be written
func (rb *RingBuffer) Free() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return len(rb.buffer) - rb.count
}

// Cap returns the fixed capacity
func (rb *RingBuffer) Cap() int {
	return len(rb.buffer)
}

// Reset discards all buffered data
func (rb *RingBuffer) Reset() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.readPos = 0
	rb.writePos = 0
	rb.count = 0
}
