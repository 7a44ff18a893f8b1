// ABOUTME: Main player application orchestration
// ABOUTME: Feeds decoded files into the output controller and applies user commands
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/Resonate-Protocol/audout/pkg/audio"
	"github.com/Resonate-Protocol/audout/pkg/audio/decode"
	"github.com/Resonate-Protocol/audout/pkg/audio/output"
	"github.com/Resonate-Protocol/audout/pkg/audio/resample"
	"golang.org/x/sync/errgroup"
)

const (
	defaultChunkSize = 4096
	pollInterval     = 10 * time.Millisecond
	statusInterval   = 250 * time.Millisecond
)

// Config holds player configuration
type Config struct {
	// Files are played in order
	Files []string

	// Raw describes headerless .pcm and .raw files
	Raw audio.Format

	// Volume is the initial volume (0-100)
	Volume int

	// OutputRate resamples every file to one rate when non-zero
	OutputRate int

	// ChunkSize is the number of bytes read from the decoder per write
	ChunkSize int

	// OnStatus is called periodically with the playback status
	OnStatus func(Status)
}

// CommandKind identifies a user command
type CommandKind int

const (
	CommandPause CommandKind = iota // toggle
	CommandSeek                     // Value is a relative offset in ms
	CommandNext
	CommandVolume // Value is a relative change
	CommandMute   // toggle
)

// Command is a request from the user interface
type Command struct {
	Kind  CommandKind
	Value int
}

// Status describes what the player is doing
type Status struct {
	File       string
	Index      int
	Count      int
	Format     audio.Format
	State      output.PlaybackState
	OutputMs   int64
	WrittenMs  int64
	DurationMs int64
	Volume     int
	Muted      bool
	Stats      output.Stats
}

// Player represents the main player application
type Player struct {
	config   Config
	output   output.Output
	commands chan Command

	mu         sync.Mutex
	file       string
	index      int
	durationMs int64
	paused     bool
}

// New creates a new player writing to out
func New(config Config, out output.Output) *Player {
	if config.ChunkSize <= 0 {
		config.ChunkSize = defaultChunkSize
	}

	return &Player{
		config:   config,
		output:   out,
		commands: make(chan Command, 16),
	}
}

// Commands returns the channel user commands are sent on
func (p *Player) Commands() chan<- Command {
	return p.commands
}

// Run plays every file and returns when done or when ctx is cancelled.
// Files that cannot be opened are logged and skipped.
func (p *Player) Run(ctx context.Context) error {
	p.output.SetVolume(p.config.Volume)

	playCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(playCtx)
	g.Go(func() error {
		defer cancel()
		return p.playAll(gctx)
	})
	g.Go(func() error {
		p.statusLoop(gctx)
		return nil
	})

	return g.Wait()
}

func (p *Player) playAll(ctx context.Context) error {
	for i, path := range p.config.Files {
		p.mu.Lock()
		p.file = path
		p.index = i
		p.mu.Unlock()

		err := p.playFile(ctx, path)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if err != nil {
			log.Printf("Skipping %s: %v", path, err)
		}
	}
	log.Printf("Playlist finished")
	return nil
}

// playFile pumps one file into the output, honoring FreeSpace backpressure
func (p *Player) playFile(ctx context.Context, path string) error {
	dec, err := decode.Open(path, p.config.Raw)
	if err != nil {
		return err
	}
	defer dec.Close()

	var src io.Reader = dec
	format := dec.Format()

	var rs *resample.Reader
	if p.config.OutputRate > 0 && format.SampleRate != p.config.OutputRate {
		rs, err = resample.NewReader(dec, format, p.config.OutputRate)
		if err != nil {
			return fmt.Errorf("resample: %w", err)
		}
		src = rs
		format = rs.Format()
		log.Printf("Resampling %dHz to %dHz", dec.Format().SampleRate, format.SampleRate)
	}

	if err := p.output.Open(format); err != nil {
		return fmt.Errorf("open output: %w", err)
	}
	defer p.output.Close()

	p.mu.Lock()
	p.durationMs = dec.DurationMs()
	paused := p.paused
	p.mu.Unlock()
	if paused {
		p.output.Pause(true)
	}

	log.Printf("Playing %s (%s)", filepath.Base(path), format)

	buf := make([]byte, p.config.ChunkSize)
	var pending []byte
	eof := false

	for {
		next, seeked, err := p.handleCommands(dec)
		if err != nil {
			log.Printf("Command failed: %v", err)
		}
		if next {
			return nil
		}
		if seeked {
			pending = nil
			eof = false
			if rs != nil {
				rs.Reset()
			}
		}

		if eof && len(pending) == 0 {
			// FreeSpace also releases a held prebuffer for short tails
			p.output.FreeSpace()
			if !p.output.IsPlaying() {
				return nil
			}
			if err := sleep(ctx, pollInterval); err != nil {
				return err
			}
			continue
		}

		if len(pending) == 0 {
			n, err := src.Read(buf)
			if n > 0 {
				pending = buf[:n]
			}
			if err == io.EOF {
				eof = true
			} else if err != nil {
				return fmt.Errorf("decode: %w", err)
			}
			continue
		}

		if p.output.FreeSpace() < len(pending) {
			if err := sleep(ctx, pollInterval); err != nil {
				return err
			}
			continue
		}

		n, err := p.output.Write(pending)
		pending = pending[n:]
		if err != nil && !errors.Is(err, output.ErrBufferOverfill) {
			return err
		}
	}
}

// handleCommands applies all queued commands. It reports whether to skip
// to the next file and whether the stream position moved.
func (p *Player) handleCommands(dec decode.Decoder) (next, seeked bool, err error) {
	for {
		select {
		case cmd := <-p.commands:
			switch cmd.Kind {
			case CommandPause:
				p.mu.Lock()
				p.paused = !p.paused
				paused := p.paused
				p.mu.Unlock()
				p.output.Pause(paused)

			case CommandSeek:
				if err := p.seek(dec, int64(cmd.Value)); err != nil {
					return next, seeked, err
				}
				seeked = true

			case CommandNext:
				next = true

			case CommandVolume:
				p.output.SetVolume(p.output.Volume() + cmd.Value)

			case CommandMute:
				p.output.SetMuted(!p.output.Muted())
			}
		default:
			return next, seeked, nil
		}
	}
}

// seek moves the decoder by deltaMs from what is being heard and flushes
// the output so the clock restarts at the new position
func (p *Player) seek(dec decode.Decoder, deltaMs int64) error {
	target := max(p.output.OutputTime()+deltaMs, 0)
	if d := dec.DurationMs(); d >= 0 && target > d {
		target = d
	}

	if err := dec.SeekMs(target); err != nil {
		return fmt.Errorf("seek to %dms: %w", target, err)
	}
	p.output.Flush(target)
	log.Printf("Seeked to %dms", target)
	return nil
}

// Status returns a snapshot of the playback status
func (p *Player) Status() Status {
	p.mu.Lock()
	file, index, duration := p.file, p.index, p.durationMs
	p.mu.Unlock()

	stats := p.output.Stats()
	return Status{
		File:       file,
		Index:      index,
		Count:      len(p.config.Files),
		Format:     stats.Format,
		State:      stats.State,
		OutputMs:   p.output.OutputTime(),
		WrittenMs:  p.output.WrittenTime(),
		DurationMs: duration,
		Volume:     p.output.Volume(),
		Muted:      p.output.Muted(),
		Stats:      stats,
	}
}

// statusLoop periodically reports status until ctx is done
func (p *Player) statusLoop(ctx context.Context) {
	if p.config.OnStatus == nil {
		return
	}

	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.config.OnStatus(p.Status())
		case <-ctx.Done():
			return
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
