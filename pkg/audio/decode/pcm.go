// ABOUTME: Raw PCM file decoder
// ABOUTME: Serves headerless PCM in a caller-supplied format
package decode

import (
	"fmt"
	"io"
	"os"

	"github.com/Resonate-Protocol/audout/pkg/audio"
)

// PCMDecoder reads headerless PCM
type PCMDecoder struct {
	format  audio.Format
	section *io.SectionReader
	closer  io.Closer
}

// OpenPCM opens a raw PCM file whose layout is given by format
func OpenPCM(path string, format audio.Format) (*PCMDecoder, error) {
	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("raw pcm needs a format: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	d := NewPCM(f, info.Size(), format)
	d.closer = f
	return d, nil
}

// NewPCM serves size bytes of r as PCM in format
func NewPCM(r io.ReaderAt, size int64, format audio.Format) *PCMDecoder {
	return &PCMDecoder{
		format:  format,
		section: io.NewSectionReader(r, 0, size),
	}
}

func (d *PCMDecoder) Format() audio.Format { return d.format }

func (d *PCMDecoder) Read(p []byte) (int, error) {
	return d.section.Read(p)
}

func (d *PCMDecoder) SeekMs(ms int64) error {
	return seekSection(d.section, d.format, ms)
}

func (d *PCMDecoder) DurationMs() int64 {
	return d.format.BytesToMs(d.section.Size())
}

// Close releases resources
func (d *PCMDecoder) Close() error {
	if d.closer == nil {
		return nil
	}
	return d.closer.Close()
}

// seekSection moves a section reader to a frame aligned millisecond offset
func seekSection(s *io.SectionReader, format audio.Format, ms int64) error {
	if ms < 0 {
		return fmt.Errorf("%w: %dms", ErrInvalidSeek, ms)
	}
	off := min(format.MsToBytes(ms), s.Size())
	_, err := s.Seek(off, io.SeekStart)
	return err
}
