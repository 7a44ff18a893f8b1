// ABOUTME: Playback controller coordinating the ring buffer and the device writer
// ABOUTME: Non-blocking writes, prebuffering, pause, flush and timing queries
package output

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Resonate-Protocol/audout/pkg/audio"
	"github.com/google/uuid"
)

const (
	// minBufferSize is the smallest ring, whatever BufferMs says
	minBufferSize = 8192

	// minWritable is the room the prebuffer must always leave in the ring
	minWritable = 4096

	// readinessProbeTimeout is how long Open waits to see if the device
	// reports write readiness
	readinessProbeTimeout = 50 * time.Millisecond

	// tailBlocks is how many device blocks may remain queued when the
	// stream counts as finished
	tailBlocks = 3
)

// PlaybackState describes the controller as seen by the producer
type PlaybackState int

const (
	StateClosed PlaybackState = iota
	StatePrebuffering
	StatePlaying
	StatePaused
	StateFlushing
)

func (s PlaybackState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StatePrebuffering:
		return "prebuffering"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateFlushing:
		return "flushing"
	default:
		return "unknown"
	}
}

// session is the state of one Open/Close cycle, guarded by Controller.mu
type session struct {
	id     uuid.UUID
	format audio.Format
	ring   *RingBuffer

	bufferSize    int
	prebufferSize int
	reserve       int // device buffer size kept free in the ring
	blockSize     int

	prebuffering    bool
	removePrebuffer bool
	paused          bool
	flushing        bool
	selectWorks     bool

	written    int64 // bytes accepted since the last flush
	delivered  int64 // bytes handed to the device since the last flush
	deviceUsed int   // bytes the device still holds
	offsetMs   int64 // stream position of the last flush

	underruns   int64
	writeErrors int64

	writer *deviceWriter
}

// Stats is a snapshot of the session counters
type Stats struct {
	SessionID        string
	Format           audio.Format
	State            PlaybackState
	WriterState      WriterState
	BufferSize       int
	PrebufferSize    int
	RingCapacity     int
	RingUsed         int
	BlockSize        int
	DeviceBufferSize int
	DeviceUsed       int
	Written          int64
	Delivered        int64
	OffsetMs         int64
	Underruns        int64
	WriteErrors      int64
	SelectWorks      bool
}

// Controller drives one audio output. A producer opens it with a format,
// writes PCM without blocking while FreeSpace allows, and reads the
// output and written times back for position display.
type Controller struct {
	openMu sync.Mutex // serializes Open and Close

	mu     sync.Mutex
	cfg    Config
	opener DeviceOpener
	volume int
	muted  bool
	sess   *session
}

// New creates a controller that opens devices through opener
func New(cfg Config, opener DeviceOpener) *Controller {
	return &Controller{
		cfg:    cfg.WithDefaults(),
		opener: opener,
		volume: 100,
	}
}

// NewForBackend creates a controller for the backend named in cfg
func NewForBackend(cfg Config) (*Controller, error) {
	cfg = cfg.WithDefaults()
	opener, err := OpenerFor(cfg.Backend)
	if err != nil {
		return nil, err
	}
	return New(cfg, opener), nil
}

// Open starts a playback session. An open session is closed first.
func (c *Controller) Open(format audio.Format) error {
	if err := format.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if err := c.cfg.Validate(); err != nil {
		return err
	}

	c.openMu.Lock()
	defer c.openMu.Unlock()

	c.closeSession()

	cfg := c.cfg
	device, err := c.opener(format, cfg.deviceConfig())
	if err != nil {
		if errors.Is(err, ErrDeviceOpen) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrDeviceOpen, err)
	}

	bps := format.BytesPerSecond()
	bufferSize := max(cfg.BufferMs*bps/1000, minBufferSize)
	prebufferSize := bufferSize * cfg.Prebuffer / 100
	if bufferSize-prebufferSize < minWritable {
		prebufferSize = bufferSize - minWritable
	}

	reserve := max(device.BufferSize(), 0)
	ring, err := NewRingBuffer(bufferSize + reserve)
	if err != nil {
		device.Close()
		return err
	}

	blockSize := device.BlockSize()
	if blockSize <= 0 {
		blockSize = defaultBlockSize
	}

	selectWorks := false
	if poller, ok := device.(Poller); ok && cfg.ProbeReadiness {
		writable, err := poller.WaitWritable(readinessProbeTimeout)
		selectWorks = err == nil && writable
		if !selectWorks {
			log.Printf("Audio device does not report write readiness, writing blind")
		}
	}

	s := &session{
		id:            uuid.New(),
		format:        format,
		ring:          ring,
		bufferSize:    bufferSize,
		prebufferSize: prebufferSize,
		reserve:       reserve,
		blockSize:     blockSize,
		prebuffering:  true,
		selectWorks:   selectWorks,
	}
	s.writer = newDeviceWriter(c, s, device, cfg)

	if cfg.UseMaster {
		log.Printf("Master channel volume is not supported, using software volume")
	}
	log.Printf("Audio output opened: %s, buffer %d bytes, prebuffer %d bytes, device buffer %d bytes, block %d bytes (session %s)",
		format, bufferSize, prebufferSize, reserve, blockSize, s.id)

	c.mu.Lock()
	c.sess = s
	c.mu.Unlock()

	go s.writer.run()
	return nil
}

// Write queues as much of p as fits without blocking. When p does not fit
// it returns the accepted byte count with ErrBufferOverfill.
func (c *Controller) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.sess
	if s == nil {
		return 0, ErrNotOpen
	}
	s.removePrebuffer = false

	total := 0
	for total < len(p) {
		n := min(len(p)-total, s.ring.Free())
		if n < len(p)-total {
			n = frameAligned(s.format, n)
		}
		if n <= 0 {
			break
		}
		if _, err := s.ring.Write(p[total : total+n]); err != nil {
			break
		}
		total += n
	}

	s.written += int64(total)
	if total > 0 {
		s.writer.notify()
	}

	if total < len(p) {
		return total, fmt.Errorf("%w: accepted %d of %d bytes", ErrBufferOverfill, total, len(p))
	}
	return total, nil
}

// Pause holds or resumes playback and returns once the writer has done so
func (c *Controller) Pause(paused bool) {
	c.send(request{kind: requestPause, paused: paused})
}

// Flush discards all queued audio and restarts the clock at targetMs.
// It returns after the device has been reset.
func (c *Controller) Flush(targetMs int64) {
	c.mu.Lock()
	if c.sess != nil {
		c.sess.flushing = true
	}
	c.mu.Unlock()

	c.send(request{kind: requestFlush, targetMs: targetMs})
}

// send hands a request to the writer and waits for the acknowledgement
func (c *Controller) send(req request) {
	c.mu.Lock()
	s := c.sess
	c.mu.Unlock()
	if s == nil {
		return
	}

	w := s.writer
	req.done = make(chan struct{})
	select {
	case w.reqs <- req:
	case <-w.done:
		return
	}

	select {
	case <-req.done:
	case <-w.done:
	}
}

// Close stops the writer and releases the device. Closing a closed
// controller does nothing.
func (c *Controller) Close() error {
	c.openMu.Lock()
	defer c.openMu.Unlock()

	c.closeSession()
	return nil
}

func (c *Controller) closeSession() {
	c.mu.Lock()
	s := c.sess
	c.sess = nil
	c.mu.Unlock()

	if s == nil {
		return
	}

	close(s.writer.quit)
	<-s.writer.done
	log.Printf("Audio output closed (session %s): %d underruns, %d write errors", s.id, s.underruns, s.writeErrors)
}

// FreeSpace returns how many bytes Write accepts right now. While
// prebuffering, two calls without a Write in between release the
// prebuffer so the tail of a stream shorter than the prebuffer plays.
func (c *Controller) FreeSpace() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.sess
	if s == nil {
		return 0
	}

	if s.prebuffering {
		if s.removePrebuffer {
			s.prebuffering = false
			s.removePrebuffer = false
			s.writer.notify()
		} else {
			s.removePrebuffer = true
		}
	}

	return max(s.ring.Free()-s.reserve-1, 0)
}

// OutputTime returns the stream position in milliseconds of the audio
// currently leaving the device
func (c *Controller) OutputTime() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.sess
	if s == nil {
		return 0
	}
	played := max(s.delivered-int64(s.deviceUsed), 0)
	return s.offsetMs + s.format.BytesToMs(played)
}

// WrittenTime returns the stream position in milliseconds of the end of
// the data accepted by Write
func (c *Controller) WrittenTime() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.sess
	if s == nil {
		return 0
	}
	return s.offsetMs + s.format.BytesToMs(s.written)
}

// IsPlaying reports whether audio remains to be heard
func (c *Controller) IsPlaying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.sess
	if s == nil {
		return false
	}
	if s.ring.Used() == 0 && s.deviceUsed-tailBlocks*s.blockSize <= 0 {
		return false
	}
	return true
}

// Drain waits until everything written has been played
func (c *Controller) Drain(ctx context.Context) error {
	ticker := time.NewTicker(writerTick)
	defer ticker.Stop()

	for {
		// FreeSpace also releases a pending prebuffer
		c.FreeSpace()
		if !c.IsPlaying() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// State returns the current playback state
func (c *Controller) State() PlaybackState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Controller) stateLocked() PlaybackState {
	s := c.sess
	switch {
	case s == nil:
		return StateClosed
	case s.flushing:
		return StateFlushing
	case s.paused:
		return StatePaused
	case s.prebuffering:
		return StatePrebuffering
	default:
		return StatePlaying
	}
}

// Format returns the format of the open session
func (c *Controller) Format() audio.Format {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess == nil {
		return audio.Format{}
	}
	return c.sess.format
}

// Stats returns a snapshot of the session counters
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.sess
	if s == nil {
		return Stats{State: StateClosed, WriterState: WriterStopped}
	}

	return Stats{
		SessionID:        s.id.String(),
		Format:           s.format,
		State:            c.stateLocked(),
		WriterState:      s.writer.writerState(),
		BufferSize:       s.bufferSize,
		PrebufferSize:    s.prebufferSize,
		RingCapacity:     s.ring.Cap(),
		RingUsed:         s.ring.Used(),
		BlockSize:        s.blockSize,
		DeviceBufferSize: s.reserve,
		DeviceUsed:       s.deviceUsed,
		Written:          s.written,
		Delivered:        s.delivered,
		OffsetMs:         s.offsetMs,
		Underruns:        s.underruns,
		WriteErrors:      s.writeErrors,
		SelectWorks:      s.selectWorks,
	}
}

// SetVolume sets the software volume (0-100)
func (c *Controller) SetVolume(volume int) {
	volume = clampVolume(volume)

	c.mu.Lock()
	c.volume = volume
	c.mu.Unlock()

	log.Printf("Volume set to %d", volume)
}

// Volume returns current volume
func (c *Controller) Volume() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.volume
}

// SetMuted sets mute state
func (c *Controller) SetMuted(muted bool) {
	c.mu.Lock()
	c.muted = muted
	c.mu.Unlock()

	log.Printf("Muted: %v", muted)
}

// Muted returns mute state
func (c *Controller) Muted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.muted
}
