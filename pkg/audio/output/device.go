// ABOUTME: Audio device abstraction drained by the device writer
// ABOUTME: Backends implement Device plus any optional capabilities they support
package output

import (
	"fmt"
	"time"

	"github.com/Resonate-Protocol/audout/pkg/audio"
)

// Device is a physical (or simulated) PCM sink. Only the device writer
// goroutine touches it between Open and Close.
type Device interface {
	// Write sends PCM bytes in the stream's format. It may block until the
	// device has room. Interrupted system calls are retried internally.
	Write(p []byte) (int, error)

	// BlockSize is the preferred number of bytes per Write
	BlockSize() int

	// BufferSize is the capacity of the device's own queue in bytes
	BufferSize() int

	// Delay reports how many written bytes have not been played yet
	Delay() (int, error)

	// Sync blocks until queued data has been played
	Sync() error

	// Drop discards queued data
	Drop() error

	// Close releases the device
	Close() error
}

// Poller is implemented by devices that can report write readiness
type Poller interface {
	WaitWritable(timeout time.Duration) (bool, error)
}

// Poster is implemented by devices that want a hint when the stream pauses
// for lack of data
type Poster interface {
	Post() error
}

// Pauser is implemented by devices that can hold playback without draining
type Pauser interface {
	Pause(paused bool) error
}

// Reopener is implemented by devices that can be closed and reopened with
// the same parameters, for drivers that misbehave after a pause or reset
type Reopener interface {
	Reopen() error
}

// DeviceConfig carries the settings a backend needs to open a device
type DeviceConfig struct {
	// Path is the device node, used by the oss backend
	Path string

	// Latency sizes the device queue for backends without a hardware query
	Latency time.Duration

	// File is the output file of the wav backend
	File string
}

// DeviceOpener opens a device for one playback session
type DeviceOpener func(format audio.Format, cfg DeviceConfig) (Device, error)

// Backend names a device implementation
type Backend string

const (
	BackendOSS  Backend = "oss"
	BackendALSA Backend = "alsa"
	BackendOto  Backend = "oto"
	BackendNull Backend = "null"
	BackendWAV  Backend = "wav"
)

// OpenerFor returns the opener for a backend name
func OpenerFor(b Backend) (DeviceOpener, error) {
	switch b {
	case BackendOSS:
		return openOSS, nil
	case BackendALSA:
		return openALSA, nil
	case BackendOto:
		return openOto, nil
	case BackendNull:
		return openNull, nil
	case BackendWAV:
		return openWAVFile, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, b)
	}
}

// fragmentSize picks a power-of-two block just under 1/25 s of audio
func fragmentSize(bytesPerSecond int) int {
	shift := 0
	for (1 << shift) < bytesPerSecond/25 {
		shift++
	}
	if shift > 0 {
		shift--
	}
	return 1 << shift
}

// latencyBytes converts a latency to a frame aligned byte count, at least one block
func latencyBytes(format audio.Format, latency time.Duration, block int) int {
	n := int(format.MsToBytes(latency.Milliseconds()))
	if n < block {
		n = block
	}
	return n
}
