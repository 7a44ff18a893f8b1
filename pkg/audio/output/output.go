// ABOUTME: Audio output interface definition
// ABOUTME: The producer-facing surface implemented by Controller
package output

import (
	"context"

	"github.com/Resonate-Protocol/audout/pkg/audio"
)

// Output represents a buffered audio output fed by a producer
type Output interface {
	// Open starts a session for the given format
	Open(format audio.Format) error

	// Write queues PCM without blocking
	Write(p []byte) (int, error)

	// Pause holds or resumes playback
	Pause(paused bool)

	// Flush discards queued audio and restarts the clock at targetMs
	Flush(targetMs int64)

	// Close releases output resources
	Close() error

	// FreeSpace returns how many bytes Write accepts right now
	FreeSpace() int

	// OutputTime is the position in ms of the audio being heard
	OutputTime() int64

	// WrittenTime is the position in ms of the end of the queued audio
	WrittenTime() int64

	// IsPlaying reports whether audio remains to be heard
	IsPlaying() bool

	// Drain waits until the queued audio has played
	Drain(ctx context.Context) error

	State() PlaybackState
	Stats() Stats

	SetVolume(volume int)
	Volume() int
	SetMuted(muted bool)
	Muted() bool
}
