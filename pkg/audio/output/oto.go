// ABOUTME: Oto-based audio output backend
// ABOUTME: A persistent oto player pulls PCM from a small ring fed by the device writer
package output

import (
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/Resonate-Protocol/audout/pkg/audio"
	"github.com/ebitengine/oto/v3"
)

const (
	// otoReadWait bounds how long the oto mixer waits for data before it
	// plays silence for this period
	otoReadWait = 20 * time.Millisecond
	otoReadPoll = 5 * time.Millisecond

	otoSyncPoll = 10 * time.Millisecond
)

// oto only allows one context per process, so it outlives sessions and is
// reused for every later session with the same output format
var otoShared struct {
	mu       sync.Mutex
	ctx      *oto.Context
	rate     int
	channels int
	encoding audio.Encoding
}

// otoContext returns the process context, creating it on first use
func otoContext(rate, channels int, enc audio.Encoding, latency time.Duration) (*oto.Context, error) {
	otoShared.mu.Lock()
	defer otoShared.mu.Unlock()

	if otoShared.ctx != nil {
		if otoShared.rate != rate || otoShared.channels != channels || otoShared.encoding != enc {
			return nil, fmt.Errorf("%w: oto is already running at %s %dHz %dch and cannot be reinitialized",
				ErrUnsupportedFormat, otoShared.encoding, otoShared.rate, otoShared.channels)
		}
		if err := otoShared.ctx.Resume(); err != nil {
			return nil, fmt.Errorf("%w: resume oto context: %v", ErrDeviceOpen, err)
		}
		log.Printf("Audio output already initialized with same format, reusing context")
		return otoShared.ctx, nil
	}

	otoFormat := oto.FormatSignedInt16LE
	if enc == audio.U8 {
		otoFormat = oto.FormatUnsignedInt8
	}

	op := &oto.NewContextOptions{
		SampleRate:   rate,
		ChannelCount: channels,
		Format:       otoFormat,
		BufferSize:   latency,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create oto context: %v", ErrDeviceOpen, err)
	}
	<-readyChan

	otoShared.ctx = ctx
	otoShared.rate = rate
	otoShared.channels = channels
	otoShared.encoding = enc
	return ctx, nil
}

// otoSource is the io.Reader the oto player pulls from
type otoSource struct {
	mu     sync.Mutex
	cond   *sync.Cond
	ring   *RingBuffer
	frame  int
	closed bool
}

func newOtoSource(capacity, frame int) (*otoSource, error) {
	s := &otoSource{frame: frame}
	s.cond = sync.NewCond(&s.mu)

	ring, err := NewRingBuffer(capacity)
	if err != nil {
		return nil, err
	}
	s.ring = ring
	return s, nil
}

// Read hands the mixer whatever whole frames are queued, waiting briefly when empty
func (s *otoSource) Read(p []byte) (int, error) {
	deadline := time.Now().Add(otoReadWait)
	for {
		used := s.ring.Used()
		if used > 0 {
			n := min(len(p), used)
			n -= n % s.frame
			if n == 0 {
				n = min(len(p), used)
			}
			n, _ = s.ring.Read(p[:n])

			s.mu.Lock()
			s.cond.Broadcast()
			s.mu.Unlock()
			return n, nil
		}

		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return 0, io.EOF
		}
		if time.Now().After(deadline) {
			return 0, nil
		}
		time.Sleep(otoReadPoll)
	}
}

// write queues all of p, blocking while the ring is full
func (s *otoSource) write(p []byte) error {
	for len(p) > 0 {
		s.mu.Lock()
		for !s.closed && s.ring.Free() == 0 {
			s.cond.Wait()
		}
		if s.closed {
			s.mu.Unlock()
			return ErrDeviceClosed
		}
		s.mu.Unlock()

		n := min(len(p), s.ring.Free())
		if _, err := s.ring.Write(p[:n]); err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}

func (s *otoSource) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.cond.Broadcast()
}

// otoPlayer is the part of *oto.Player a device drives
type otoPlayer interface {
	Play()
	Pause()
	BufferedSize() int
	SetBufferSize(bufferSize int)
	Err() error
	Close() error
}

// otoDevice plays through the shared oto context
type otoDevice struct {
	format    audio.Format
	outEnc    audio.Encoding
	newPlayer func(io.Reader) otoPlayer
	player    otoPlayer
	source    *otoSource
	block     int
	bufSize   int
	paused    bool
	scratch   []byte
}

func openOto(format audio.Format, cfg DeviceConfig) (Device, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}

	// oto accepts unsigned 8-bit or signed 16-bit little endian
	outEnc := audio.S16LE
	if format.Encoding == audio.U8 {
		outEnc = audio.U8
	}

	ctx, err := otoContext(format.SampleRate, format.Channels, outEnc, cfg.Latency)
	if err != nil {
		return nil, err
	}

	d := newOtoDevice(format, outEnc, cfg, func(r io.Reader) otoPlayer {
		return ctx.NewPlayer(r)
	})
	if err := d.start(); err != nil {
		return nil, err
	}

	log.Printf("Audio output initialized: %s (oto %s), queue %d bytes", format, outEnc, d.bufSize)
	return d, nil
}

func newOtoDevice(format audio.Format, outEnc audio.Encoding, cfg DeviceConfig, newPlayer func(io.Reader) otoPlayer) *otoDevice {
	d := &otoDevice{
		format:    format,
		outEnc:    outEnc,
		newPlayer: newPlayer,
		block:     fragmentSize(format.BytesPerSecond()),
	}
	d.bufSize = latencyBytes(format, cfg.Latency, d.block)
	return d
}

// start attaches a new player reading from a new, empty source
func (d *otoDevice) start() error {
	outFrame := d.format.Channels * d.outEnc.BytesPerSample()
	source, err := newOtoSource(d.toOutput(d.bufSize), outFrame)
	if err != nil {
		return err
	}

	d.source = source
	d.player = d.newPlayer(source)
	d.player.SetBufferSize(d.toOutput(d.bufSize))
	if !d.paused {
		d.player.Play()
	}
	return nil
}

// toOutput converts a byte count in the stream encoding to the oto encoding
func (d *otoDevice) toOutput(n int) int {
	return n * d.outEnc.BytesPerSample() / d.format.Encoding.BytesPerSample()
}

// toInput converts a byte count in the oto encoding back to the stream encoding
func (d *otoDevice) toInput(n int) int {
	return n * d.format.Encoding.BytesPerSample() / d.outEnc.BytesPerSample()
}

func (d *otoDevice) Write(p []byte) (int, error) {
	out := p
	if d.format.Encoding != d.outEnc {
		d.scratch = audio.Convert(d.scratch, p, d.format.Encoding, d.outEnc)
		out = d.scratch
	}

	if err := d.source.write(out); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (d *otoDevice) BlockSize() int  { return d.block }
func (d *otoDevice) BufferSize() int { return d.bufSize }

// Delay counts bytes waiting in our ring and in the player's buffer
func (d *otoDevice) Delay() (int, error) {
	if err := d.player.Err(); err != nil {
		return 0, fmt.Errorf("oto player: %w", err)
	}
	return d.toInput(d.source.ring.Used() + d.player.BufferedSize()), nil
}

func (d *otoDevice) Sync() error {
	limit := time.Now().Add(time.Duration(d.format.BytesToMs(int64(d.bufSize*2)))*time.Millisecond + time.Second)
	for time.Now().Before(limit) {
		n, err := d.Delay()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		time.Sleep(otoSyncPoll)
	}
	return nil
}

// Drop replaces the player and its source. The mixer may still append a
// chunk it read before the drop; that lands in the closed player, which is
// never mixed again.
func (d *otoDevice) Drop() error {
	d.source.ring.Reset()
	d.source.close()
	if err := d.player.Close(); err != nil {
		return fmt.Errorf("oto drop: %w", err)
	}
	return d.start()
}

func (d *otoDevice) Pause(paused bool) error {
	d.paused = paused
	if paused {
		d.player.Pause()
	} else {
		d.player.Play()
	}
	return nil
}

func (d *otoDevice) Close() error {
	d.source.close()
	return d.player.Close()
}
