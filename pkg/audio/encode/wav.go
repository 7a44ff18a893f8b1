// ABOUTME: WAV encoder built on go-audio/wav
// ABOUTME: Writes 8-bit and 16-bit PCM and converts other encodings to 16-bit
package encode

import (
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/Resonate-Protocol/audout/pkg/audio"
)

// wavPCM is the WAVE_FORMAT_PCM format tag
const wavPCM = 1

// WAVEncoder writes PCM to a WAV file
type WAVEncoder struct {
	enc    *wav.Encoder
	in     audio.Format
	out    audio.Encoding
	buf    *goaudio.IntBuffer
	closed bool
}

// NewWAV creates an encoder writing format to w. The header is completed
// on Close, which needs w to seek.
func NewWAV(w io.WriteSeeker, format audio.Format) (*WAVEncoder, error) {
	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("wav encoder: %w", err)
	}

	// WAV stores 8-bit samples unsigned and wider ones signed little-endian
	out := audio.S16LE
	bits := 16
	if format.Encoding == audio.U8 {
		out = audio.U8
		bits = 8
	}

	return &WAVEncoder{
		enc: wav.NewEncoder(w, format.SampleRate, bits, format.Channels, wavPCM),
		in:  format,
		out: out,
		buf: &goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: format.Channels, SampleRate: format.SampleRate},
			SourceBitDepth: bits,
		},
	}, nil
}

// Format returns the input format
func (e *WAVEncoder) Format() audio.Format {
	return e.in
}

// Write encodes the whole samples in p
func (e *WAVEncoder) Write(p []byte) (int, error) {
	if e.closed {
		return 0, ErrClosed
	}

	size := e.in.Encoding.BytesPerSample()
	count := len(p) / size
	if count == 0 {
		return 0, nil
	}

	if cap(e.buf.Data) < count {
		e.buf.Data = make([]int, count)
	}
	e.buf.Data = e.buf.Data[:count]

	for i := 0; i < count; i++ {
		if e.out == audio.U8 {
			e.buf.Data[i] = int(p[i])
		} else {
			e.buf.Data[i] = int(audio.SampleAt(e.in.Encoding, p[i*size:]))
		}
	}

	if err := e.enc.Write(e.buf); err != nil {
		return 0, fmt.Errorf("wav encoder: %w", err)
	}
	return count * size, nil
}

// Close writes the final chunk sizes
func (e *WAVEncoder) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	return e.enc.Close()
}
