// ABOUTME: WAV file decoder
// ABOUTME: Parses RIFF headers with go-audio/wav and serves the data chunk directly
package decode

import (
	"fmt"
	"io"
	"os"

	"github.com/Resonate-Protocol/audout/pkg/audio"
	"github.com/go-audio/wav"
)

// WAVDecoder reads 8-bit unsigned or 16-bit signed little endian WAV data
type WAVDecoder struct {
	file    *os.File
	format  audio.Format
	section *io.SectionReader
}

// OpenWAV opens a WAV file and positions it at the first PCM byte
func OpenWAV(path string) (*WAVDecoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	d, err := newWAV(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

func newWAV(f *os.File) (*WAVDecoder, error) {
	if !wav.NewDecoder(f).IsValidFile() {
		return nil, fmt.Errorf("%w: not a valid wav file", ErrUnsupportedFile)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	dec := wav.NewDecoder(f)
	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFile, err)
	}

	var enc audio.Encoding
	switch dec.BitDepth {
	case 8:
		enc = audio.U8
	case 16:
		enc = audio.S16LE
	default:
		return nil, fmt.Errorf("%w: %d-bit wav", ErrUnsupportedFile, dec.BitDepth)
	}

	format := audio.Format{
		Encoding:   enc,
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
	}
	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFile, err)
	}

	// The data chunk starts where the header parser stopped
	start, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}
	size := int64(dec.PCMChunk.Size)
	if info, err := f.Stat(); err == nil && start+size > info.Size() {
		size = info.Size() - start
	}

	return &WAVDecoder{
		file:    f,
		format:  format,
		section: io.NewSectionReader(f, start, size),
	}, nil
}

func (d *WAVDecoder) Format() audio.Format { return d.format }

func (d *WAVDecoder) Read(p []byte) (int, error) {
	return d.section.Read(p)
}

func (d *WAVDecoder) SeekMs(ms int64) error {
	return seekSection(d.section, d.format, ms)
}

func (d *WAVDecoder) DurationMs() int64 {
	return d.format.BytesToMs(d.section.Size())
}

// Close releases resources
func (d *WAVDecoder) Close() error {
	return d.file.Close()
}
