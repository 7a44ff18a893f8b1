// ABOUTME: Device writer goroutine draining the ring buffer into the device
// ABOUTME: Serves pause and flush requests and keeps the occupancy counters current
package output

import (
	"log"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/audout/pkg/audio"
	"golang.org/x/time/rate"
)

const (
	// writerTick is the idle wait and the readiness poll timeout
	writerTick = 10 * time.Millisecond

	// defaultBlockSize is used when a device does not report one
	defaultBlockSize = 2048

	errorLogInterval = 5 * time.Second
)

// WriterState describes what the device writer is doing
type WriterState int32

const (
	WriterIdle WriterState = iota
	WriterDraining
	WriterPaused
	WriterResetting
	WriterStopped
)

func (s WriterState) String() string {
	switch s {
	case WriterIdle:
		return "idle"
	case WriterDraining:
		return "draining"
	case WriterPaused:
		return "paused"
	case WriterResetting:
		return "resetting"
	case WriterStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

type requestKind int

const (
	requestPause requestKind = iota
	requestFlush
)

// request is a control message acknowledged by closing done
type request struct {
	kind     requestKind
	paused   bool
	targetMs int64
	done     chan struct{}
}

// deviceWriter owns the device for the lifetime of one session
type deviceWriter struct {
	ctrl   *Controller
	sess   *session
	device Device
	cfg    Config

	wake  chan struct{}
	reqs  chan request
	quit  chan struct{}
	done  chan struct{}
	state atomic.Int32

	buf    []byte
	errLog rate.Sometimes
}

func newDeviceWriter(ctrl *Controller, sess *session, device Device, cfg Config) *deviceWriter {
	return &deviceWriter{
		ctrl:   ctrl,
		sess:   sess,
		device: device,
		cfg:    cfg,
		wake:   make(chan struct{}, 1),
		reqs:   make(chan request),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		buf:    make([]byte, sess.blockSize),
		errLog: rate.Sometimes{First: 1, Interval: errorLogInterval},
	}
}

// notify wakes the writer without blocking
func (w *deviceWriter) notify() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *deviceWriter) writerState() WriterState {
	return WriterState(w.state.Load())
}

func (w *deviceWriter) setState(s WriterState) {
	w.state.Store(int32(s))
}

// run is the writer loop; it exits after quit is closed and the device is released
func (w *deviceWriter) run() {
	defer close(w.done)

	ticker := time.NewTicker(writerTick)
	defer ticker.Stop()

	for {
		// Control requests take priority over data
		select {
		case <-w.quit:
			w.shutdown()
			return
		case req := <-w.reqs:
			w.handle(req)
			continue
		default:
		}

		wrote := w.writeBlock()
		w.updateDelay()
		if wrote {
			continue
		}

		select {
		case <-w.quit:
			w.shutdown()
			return
		case req := <-w.reqs:
			w.handle(req)
		case <-w.wake:
		case <-ticker.C:
		}
	}
}

// writeBlock moves at most one device block from the ring to the device.
// It reports whether the loop should continue without waiting.
func (w *deviceWriter) writeBlock() bool {
	c, s := w.ctrl, w.sess

	c.mu.Lock()
	used := s.ring.Used()
	if s.prebuffering && used > 0 && used >= s.prebufferSize {
		s.prebuffering = false
	}
	ready := used > 0 && !s.paused && !s.prebuffering
	paused := s.paused
	selectWorks := s.selectWorks
	volume, muted := c.volume, c.muted
	c.mu.Unlock()

	if !ready {
		if paused {
			w.setState(WriterPaused)
		} else {
			w.setState(WriterIdle)
		}
		return false
	}

	if selectWorks {
		if poller, ok := w.device.(Poller); ok {
			writable, err := poller.WaitWritable(writerTick)
			if err != nil {
				w.errLog.Do(func() {
					log.Printf("Audio device poll failed: %v", err)
				})
				return false
			}
			if !writable {
				// The poll already waited a full tick
				return true
			}
		}
	}

	n := frameAligned(s.format, min(s.blockSize, used))
	if n == 0 {
		n = used
	}

	block := w.buf[:n]
	if _, err := s.ring.Read(block); err != nil {
		return false
	}
	w.setState(WriterDraining)

	applyVolume(block, s.format.Encoding, volume, muted)
	failed := w.deliver(block)

	c.mu.Lock()
	// A failed block still counts as delivered so output time keeps up with written time
	s.delivered += int64(n)
	if failed {
		s.writeErrors++
	}
	empty := s.ring.Used() == 0
	if empty {
		s.prebuffering = true
		s.underruns++
	}
	delivered := s.delivered
	c.mu.Unlock()

	if empty {
		if w.cfg.Debug {
			log.Printf("Audio buffer ran dry after %d bytes", delivered)
		}
		if poster, ok := w.device.(Poster); ok {
			if err := poster.Post(); err != nil {
				w.errLog.Do(func() {
					log.Printf("Audio device post failed: %v", err)
				})
			}
		}
	}
	return true
}

// deliver writes the whole block, continuing short writes, and reports failure
func (w *deviceWriter) deliver(block []byte) bool {
	for len(block) > 0 {
		n, err := w.device.Write(block)
		if err != nil {
			w.errLog.Do(func() {
				log.Printf("Audio device write failed, dropping %d bytes: %v", len(block), err)
			})
			return true
		}
		if n <= 0 {
			return true
		}
		block = block[n:]
	}
	return false
}

// updateDelay refreshes the device occupancy; it is frozen while paused
func (w *deviceWriter) updateDelay() {
	c, s := w.ctrl, w.sess

	c.mu.Lock()
	paused := s.paused
	c.mu.Unlock()
	if paused {
		return
	}

	d, err := w.device.Delay()
	if err != nil {
		return
	}

	c.mu.Lock()
	s.deviceUsed = d
	c.mu.Unlock()
}

func (w *deviceWriter) handle(req request) {
	defer close(req.done)

	switch req.kind {
	case requestPause:
		w.pause(req.paused)
	case requestFlush:
		w.flush(req.targetMs)
	}
}

func (w *deviceWriter) pause(paused bool) {
	c, s := w.ctrl, w.sess

	c.mu.Lock()
	already := s.paused == paused
	c.mu.Unlock()
	if already {
		return
	}

	if paused {
		pauser, ok := w.device.(Pauser)
		if ok {
			if err := pauser.Pause(true); err != nil {
				log.Printf("Audio device pause failed: %v", err)
				ok = false
			}
		}
		if !ok {
			// Without a pause control the queued audio plays out first
			if err := w.device.Sync(); err != nil {
				log.Printf("Audio device sync failed: %v", err)
			}
		}

		used := 0
		if ok {
			used, _ = w.device.Delay()
		}

		c.mu.Lock()
		s.paused = true
		s.deviceUsed = used
		c.mu.Unlock()
		w.setState(WriterPaused)
		return
	}

	if !w.reopen() {
		if pauser, ok := w.device.(Pauser); ok {
			if err := pauser.Pause(false); err != nil {
				log.Printf("Audio device resume failed: %v", err)
			}
		}
	}

	c.mu.Lock()
	s.paused = false
	c.mu.Unlock()
	w.setState(WriterIdle)
}

// reopen closes and reopens the device when configured to; it reports
// whether the device was reopened
func (w *deviceWriter) reopen() bool {
	if !w.cfg.ResetAfterPause {
		return false
	}
	reopener, ok := w.device.(Reopener)
	if !ok {
		return false
	}

	if err := reopener.Reopen(); err != nil {
		log.Printf("Audio device reopen failed: %v", err)
		w.ctrl.mu.Lock()
		w.sess.writeErrors++
		w.ctrl.mu.Unlock()
		return false
	}
	return true
}

func (w *deviceWriter) flush(targetMs int64) {
	c, s := w.ctrl, w.sess
	w.setState(WriterResetting)

	if err := w.device.Drop(); err != nil {
		log.Printf("Audio device drop failed: %v", err)
	}
	w.reopen()

	c.mu.Lock()
	s.ring.Reset()
	s.written = 0
	s.delivered = 0
	s.deviceUsed = 0
	s.offsetMs = targetMs
	s.prebuffering = true
	s.removePrebuffer = false
	s.flushing = false
	paused := s.paused
	c.mu.Unlock()

	if paused {
		w.setState(WriterPaused)
	} else {
		w.setState(WriterIdle)
	}
}

// shutdown releases the device; queued audio plays out unless paused
func (w *deviceWriter) shutdown() {
	c, s := w.ctrl, w.sess

	c.mu.Lock()
	paused := s.paused
	c.mu.Unlock()

	if paused {
		if err := w.device.Drop(); err != nil {
			log.Printf("Audio device drop failed: %v", err)
		}
	} else if err := w.device.Sync(); err != nil {
		log.Printf("Audio device sync failed: %v", err)
	}

	if err := w.device.Close(); err != nil {
		log.Printf("Audio device close failed: %v", err)
	}
	w.setState(WriterStopped)
}

// frameAligned trims n down to whole frames of format
func frameAligned(format audio.Format, n int) int {
	frame := format.FrameSize()
	if frame <= 0 {
		return n
	}
	return n - n%frame
}
