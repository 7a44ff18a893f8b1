// ABOUTME: Null device that discards PCM at real-time pace
// ABOUTME: Headless playback for CI and machines without a sound card
package output

import (
	"log"
	"sync"
	"time"

	"github.com/Resonate-Protocol/audout/pkg/audio"
)

// nullDevice behaves like a device with a fixed queue that drains in real time
type nullDevice struct {
	mu        sync.Mutex
	format    audio.Format
	pacer     *pacer
	block     int
	bufSize   int
	closed    bool
	sleepFunc func(time.Duration)
}

func openNull(format audio.Format, cfg DeviceConfig) (Device, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}

	block := fragmentSize(format.BytesPerSecond())
	d := &nullDevice{
		format:    format,
		pacer:     newPacer(format, nil),
		block:     block,
		bufSize:   latencyBytes(format, cfg.Latency, block),
		sleepFunc: time.Sleep,
	}

	log.Printf("Null output opened: %s, block %d bytes, queue %d bytes", format, d.block, d.bufSize)
	return d, nil
}

func (d *nullDevice) Write(p []byte) (int, error) {
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return 0, ErrDeviceClosed
	}

	// Block until the queue has room, like a full hardware buffer would
	queued := d.pacer.delay()
	if excess := queued + len(p) - d.bufSize; excess > 0 {
		d.sleepFunc(time.Duration(d.format.BytesToMs(int64(excess))) * time.Millisecond)
	}

	d.pacer.add(len(p))
	return len(p), nil
}

func (d *nullDevice) BlockSize() int  { return d.block }
func (d *nullDevice) BufferSize() int { return d.bufSize }

func (d *nullDevice) Delay() (int, error) {
	return d.pacer.delay(), nil
}

func (d *nullDevice) Sync() error {
	d.sleepFunc(d.pacer.remaining())
	return nil
}

func (d *nullDevice) Drop() error {
	d.pacer.reset()
	return nil
}

func (d *nullDevice) Pause(paused bool) error {
	d.pacer.pause(paused)
	return nil
}

func (d *nullDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}
