// ABOUTME: Recording fake audio device for output tests
// ABOUTME: Captures every byte written and counts control calls
package audiotest

import (
	"errors"
	"sync"
	"time"
)

var ErrClosed = errors.New("audiotest: device closed")

// Device records everything written to it. It satisfies the output device
// interface and its optional capabilities without importing the output
// package, so that package's own tests can use it.
type Device struct {
	mu         sync.Mutex
	data       []byte
	blockSize  int
	bufferSize int
	delay      int
	writable   bool
	writeErr   error
	writeDelay time.Duration
	paused     bool
	closed     bool

	dropMarks []int
	syncs     int
	posts     int
	closes    int
	reopens   int
	polls     int
}

// NewDevice creates a device with the given block and queue sizes
func NewDevice(blockSize, bufferSize int) *Device {
	return &Device{
		blockSize:  blockSize,
		bufferSize: bufferSize,
		writable:   true,
	}
}

func (d *Device) Write(p []byte) (int, error) {
	d.mu.Lock()
	wait := d.writeDelay
	d.mu.Unlock()
	if wait > 0 {
		time.Sleep(wait)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return 0, ErrClosed
	}
	if d.writeErr != nil {
		return 0, d.writeErr
	}
	d.data = append(d.data, p...)
	return len(p), nil
}

func (d *Device) BlockSize() int  { return d.blockSize }
func (d *Device) BufferSize() int { return d.bufferSize }

// Delay returns the occupancy set with SetDelay
func (d *Device) Delay() (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.delay, nil
}

func (d *Device) Sync() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.syncs++
	d.delay = 0
	return nil
}

// Drop marks the current length of the recorded data
func (d *Device) Drop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dropMarks = append(d.dropMarks, len(d.data))
	d.delay = 0
	return nil
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closes++
	d.closed = true
	return nil
}

func (d *Device) Post() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.posts++
	return nil
}

func (d *Device) Pause(paused bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.paused = paused
	return nil
}

func (d *Device) Reopen() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reopens++
	d.delay = 0
	return nil
}

// WaitWritable reports the value set with SetWritable, sleeping for the
// timeout when not writable like a real poll would
func (d *Device) WaitWritable(timeout time.Duration) (bool, error) {
	d.mu.Lock()
	d.polls++
	writable := d.writable
	d.mu.Unlock()

	if !writable {
		time.Sleep(timeout)
	}
	return writable, nil
}

// SetDelay sets the occupancy reported by Delay
func (d *Device) SetDelay(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.delay = n
}

// SetWritable sets the result of WaitWritable
func (d *Device) SetWritable(writable bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writable = writable
}

// SetWriteDelay makes every Write block for delay before it is recorded
func (d *Device) SetWriteDelay(delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writeDelay = delay
}

// SetWriteErr makes every Write fail with err until cleared with nil
func (d *Device) SetWriteErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writeErr = err
}

// Bytes returns a copy of everything written so far
func (d *Device) Bytes() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.data...)
}

func (d *Device) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.data)
}

// DropMarks returns the recorded length at each Drop
func (d *Device) DropMarks() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int(nil), d.dropMarks...)
}

func (d *Device) Paused() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.paused
}

func (d *Device) Syncs() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.syncs
}

func (d *Device) Posts() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.posts
}

func (d *Device) Closes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closes
}

func (d *Device) Reopens() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reopens
}

func (d *Device) Polls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.polls
}

// WaitLen waits until at least n bytes were written, reporting success
func (d *Device) WaitLen(n int, timeout time.Duration) bool {
	return Eventually(timeout, func() bool { return d.Len() >= n })
}

// Eventually polls cond every millisecond until it holds or timeout passes
func Eventually(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for {
		if cond() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
}
