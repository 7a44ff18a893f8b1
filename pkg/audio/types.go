// ABOUTME: Audio type definitions
// ABOUTME: Defines sample encodings, the PCM format descriptor and byte/time arithmetic
package audio

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// 16-bit range constants
	MaxInt16 = 32767
	MinInt16 = -32768
)

var (
	ErrUnknownEncoding = errors.New("unknown sample encoding")
	ErrInvalidFormat   = errors.New("invalid audio format")
)

// Encoding identifies how a single sample is laid out in bytes
type Encoding int

const (
	EncodingUnknown Encoding = iota
	U8
	S8
	U16LE
	U16BE
	S16LE
	S16BE
)

var encodingNames = map[Encoding]string{
	U8:    "u8",
	S8:    "s8",
	U16LE: "u16le",
	U16BE: "u16be",
	S16LE: "s16le",
	S16BE: "s16be",
}

// String returns the short lowercase name used on the command line
func (e Encoding) String() string {
	if name, ok := encodingNames[e]; ok {
		return name
	}
	return fmt.Sprintf("Encoding(%d)", int(e))
}

// ParseEncoding maps a name such as "s16le" to its Encoding
func ParseEncoding(name string) (Encoding, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for enc, n := range encodingNames {
		if n == name {
			return enc, nil
		}
	}
	return EncodingUnknown, fmt.Errorf("%w: %q", ErrUnknownEncoding, name)
}

// BytesPerSample returns the storage size of one sample, or 0 if unknown
func (e Encoding) BytesPerSample() int {
	switch e {
	case U8, S8:
		return 1
	case U16LE, U16BE, S16LE, S16BE:
		return 2
	default:
		return 0
	}
}

// Signed reports whether samples are two's complement
func (e Encoding) Signed() bool {
	return e == S8 || e == S16LE || e == S16BE
}

// BigEndian reports whether multi-byte samples are stored most significant byte first
func (e Encoding) BigEndian() bool {
	return e == U16BE || e == S16BE
}

// Format describes a raw PCM stream. It does not change between open and close.
type Format struct {
	Encoding   Encoding
	SampleRate int
	Channels   int
}

// Validate checks the format can be played
func (f Format) Validate() error {
	if f.Encoding.BytesPerSample() == 0 {
		return fmt.Errorf("%w: %v", ErrUnknownEncoding, f.Encoding)
	}
	if f.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrInvalidFormat, f.SampleRate)
	}
	if f.Channels < 1 || f.Channels > 8 {
		return fmt.Errorf("%w: %d channels", ErrInvalidFormat, f.Channels)
	}
	return nil
}

// FrameSize is the number of bytes holding one sample for every channel
func (f Format) FrameSize() int {
	return f.Encoding.BytesPerSample() * f.Channels
}

// BytesPerSecond is the byte rate of the stream
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.FrameSize()
}

// BytesToMs converts a byte count to milliseconds of audio
func (f Format) BytesToMs(n int64) int64 {
	bps := int64(f.BytesPerSecond())
	if bps == 0 {
		return 0
	}
	return n * 1000 / bps
}

// MsToBytes converts milliseconds to a byte count, rounded down to whole frames
func (f Format) MsToBytes(ms int64) int64 {
	n := ms * int64(f.BytesPerSecond()) / 1000
	if fs := int64(f.FrameSize()); fs > 0 {
		n -= n % fs
	}
	return n
}

// String renders the format the way log lines print it
func (f Format) String() string {
	return fmt.Sprintf("%s %dHz %dch", f.Encoding, f.SampleRate, f.Channels)
}
