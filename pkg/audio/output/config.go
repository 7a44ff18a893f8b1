// ABOUTME: Output configuration read when a playback session opens
// ABOUTME: Buffer sizing, prebuffer percentage and device selection
package output

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultBufferMs is the ring size in milliseconds of audio
	DefaultBufferMs = 500

	// DefaultPrebuffer is the share of the ring, in percent, that must fill
	// before playback starts
	DefaultPrebuffer = 25

	// MaxPrebuffer caps the prebuffer percentage
	MaxPrebuffer = 90

	// DefaultLatency sizes the queue of devices that cannot report one
	DefaultLatency = 100 * time.Millisecond
)

// Config holds output configuration
type Config struct {
	// Backend selects the device implementation (default: oto)
	Backend Backend

	// BufferMs is the playback buffer size in milliseconds (default: 500)
	BufferMs int

	// Prebuffer is the percentage of the buffer filled before playback starts
	Prebuffer int

	// AudioDevice selects /dev/dspN for the oss backend when greater than zero
	AudioDevice int

	// UseAltAudioDevice enables AltAudioDevice
	UseAltAudioDevice bool

	// AltAudioDevice is an absolute device path overriding AudioDevice
	AltAudioDevice string

	// UseMaster is accepted for compatibility; volume is always applied in software
	UseMaster bool

	// ResetAfterPause closes and reopens the device after pause and flush
	// for drivers that stall otherwise
	ResetAfterPause bool

	// ProbeReadiness tests whether the device reports write readiness and
	// waits for it before each block when it does
	ProbeReadiness bool

	// Latency sizes the device queue for backends without a hardware query
	Latency time.Duration

	// OutputFile is where the wav backend writes; later sessions get a
	// numeric suffix
	OutputFile string

	// Debug logs every underrun
	Debug bool
}

// DefaultConfig returns the configuration used when nothing is set
func DefaultConfig() Config {
	return Config{
		Backend:        BackendOto,
		BufferMs:       DefaultBufferMs,
		Prebuffer:      DefaultPrebuffer,
		ProbeReadiness: true,
		Latency:        DefaultLatency,
	}
}

// WithDefaults fills unset fields and clamps the prebuffer percentage
func (c Config) WithDefaults() Config {
	if c.Backend == "" {
		c.Backend = BackendOto
	}
	if c.BufferMs <= 0 {
		c.BufferMs = DefaultBufferMs
	}
	if c.Prebuffer < 0 {
		c.Prebuffer = 0
	}
	if c.Prebuffer > MaxPrebuffer {
		c.Prebuffer = MaxPrebuffer
	}
	if c.Latency <= 0 {
		c.Latency = DefaultLatency
	}
	return c
}

// Validate rejects settings that cannot be honored
func (c Config) Validate() error {
	if c.UseAltAudioDevice && !strings.HasPrefix(c.AltAudioDevice, "/") {
		return fmt.Errorf("%w: alternate audio device %q is not an absolute path", ErrInvalidConfig, c.AltAudioDevice)
	}
	if c.AudioDevice < 0 {
		return fmt.Errorf("%w: audio device number %d", ErrInvalidConfig, c.AudioDevice)
	}
	if _, err := OpenerFor(c.Backend); c.Backend != "" && err != nil {
		return err
	}
	if c.Backend == BackendWAV && c.OutputFile == "" {
		return fmt.Errorf("%w: wav backend needs an output file", ErrInvalidConfig)
	}
	return nil
}

// DevicePath returns the device node the oss backend opens
func (c Config) DevicePath() string {
	if c.UseAltAudioDevice && strings.HasPrefix(c.AltAudioDevice, "/") {
		return c.AltAudioDevice
	}
	if c.AudioDevice > 0 {
		return fmt.Sprintf("/dev/dsp%d", c.AudioDevice)
	}
	return "/dev/dsp"
}

// deviceConfig extracts what a backend needs from the output configuration
func (c Config) deviceConfig() DeviceConfig {
	return DeviceConfig{
		Path:    c.DevicePath(),
		Latency: c.Latency,
		File:    c.OutputFile,
	}
}
