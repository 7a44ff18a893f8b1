// ABOUTME: Wall-clock estimate of how much audio a blocking device still holds
// ABOUTME: Used by backends whose driver cannot report its queue occupancy
package output

import (
	"sync"
	"time"

	"github.com/Resonate-Protocol/audout/pkg/audio"
)

// pacer tracks the instant at which everything written so far will have played
type pacer struct {
	mu          sync.Mutex
	format      audio.Format
	now         func() time.Time
	queuedUntil time.Time
	held        time.Duration // remaining duration while paused
	paused      bool
}

func newPacer(format audio.Format, now func() time.Time) *pacer {
	if now == nil {
		now = time.Now
	}
	return &pacer{
		format:      format,
		now:         now,
		queuedUntil: now(),
	}
}

// add records n more bytes handed to the device
func (p *pacer) add(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	d := time.Duration(p.format.BytesToMs(int64(n))) * time.Millisecond
	if p.paused {
		p.held += d
		return
	}

	now := p.now()
	if p.queuedUntil.Before(now) {
		p.queuedUntil = now
	}
	p.queuedUntil = p.queuedUntil.Add(d)
}

// remaining returns the queued duration not yet played
func (p *pacer) remaining() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.remainingLocked()
}

func (p *pacer) remainingLocked() time.Duration {
	if p.paused {
		return p.held
	}
	left := p.queuedUntil.Sub(p.now())
	if left < 0 {
		return 0
	}
	return left
}

// delay returns the queued audio in bytes, frame aligned
func (p *pacer) delay() int {
	return int(p.format.MsToBytes(p.remaining().Milliseconds()))
}

// pause freezes the queue so the held audio does not count as played
func (p *pacer) pause(paused bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if paused == p.paused {
		return
	}
	if paused {
		p.held = p.remainingLocked()
		p.paused = true
		return
	}
	p.paused = false
	p.queuedUntil = p.now().Add(p.held)
	p.held = 0
}

// reset forgets everything queued
func (p *pacer) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queuedUntil = p.now()
	p.held = 0
}
