// ABOUTME: FLAC file decoder
// ABOUTME: Decodes FLAC frames with mewkiz/flac into 16-bit little endian PCM
package decode

import (
	"fmt"
	"io"
	"os"

	"github.com/Resonate-Protocol/audout/pkg/audio"
	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
)

// FLACDecoder decodes FLAC audio
type FLACDecoder struct {
	file     *os.File
	stream   *flac.Stream
	format   audio.Format
	bits     int
	total    uint64 // samples per channel, 0 when unknown
	position uint64 // samples per channel already returned
	pending  []byte
}

// OpenFLAC opens a FLAC file
func OpenFLAC(path string) (*FLACDecoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	d := &FLACDecoder{file: f}
	if err := d.reset(); err != nil {
		f.Close()
		return nil, err
	}
	return d, nil
}

// reset parses the stream headers from the start of the file
func (d *FLACDecoder) reset() error {
	if _, err := d.file.Seek(0, io.SeekStart); err != nil {
		return err
	}

	stream, err := flac.New(d.file)
	if err != nil {
		return fmt.Errorf("failed to create flac decoder: %w", err)
	}

	info := stream.Info
	d.stream = stream
	d.bits = int(info.BitsPerSample)
	d.total = info.NSamples
	d.position = 0
	d.pending = d.pending[:0]
	d.format = audio.Format{
		Encoding:   audio.S16LE,
		SampleRate: int(info.SampleRate),
		Channels:   int(info.NChannels),
	}
	if err := d.format.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedFile, err)
	}
	return nil
}

func (d *FLACDecoder) Format() audio.Format { return d.format }

func (d *FLACDecoder) Read(p []byte) (int, error) {
	for len(d.pending) == 0 {
		f, err := d.stream.ParseNext()
		if err != nil {
			return 0, err
		}
		d.pending = packFrame(d.pending[:0], f, d.bits)
	}

	n := copy(p, d.pending)
	d.pending = d.pending[n:]
	d.position += uint64(n / d.format.FrameSize())
	return n, nil
}

// SeekMs decodes forward to the target, restarting from the top to go back
func (d *FLACDecoder) SeekMs(ms int64) error {
	if ms < 0 {
		return fmt.Errorf("%w: %dms", ErrInvalidSeek, ms)
	}

	target := uint64(ms) * uint64(d.format.SampleRate) / 1000
	if d.total > 0 && target > d.total {
		target = d.total
	}
	if target < d.position {
		if err := d.reset(); err != nil {
			return err
		}
	}

	frameSize := d.format.FrameSize()
	for d.position < target {
		if len(d.pending) == 0 {
			f, err := d.stream.ParseNext()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return fmt.Errorf("flac seek: %w", err)
			}
			d.pending = packFrame(d.pending[:0], f, d.bits)
		}

		skip := min(target-d.position, uint64(len(d.pending)/frameSize))
		d.pending = d.pending[int(skip)*frameSize:]
		d.position += skip
	}
	return nil
}

func (d *FLACDecoder) DurationMs() int64 {
	if d.total == 0 {
		return -1
	}
	return int64(d.total * 1000 / uint64(d.format.SampleRate))
}

// Close releases decoder resources
func (d *FLACDecoder) Close() error {
	return d.file.Close()
}

// packFrame interleaves the subframes of f as S16LE, rescaling from bits
func packFrame(dst []byte, f *frame.Frame, bits int) []byte {
	if len(f.Subframes) == 0 {
		return dst
	}
	samples := len(f.Subframes[0].Samples)
	channels := len(f.Subframes)

	need := samples * channels * 2
	if cap(dst) < need {
		dst = make([]byte, 0, need)
	}
	dst = dst[:need]

	i := 0
	for s := 0; s < samples; s++ {
		for ch := 0; ch < channels; ch++ {
			audio.PutSample(audio.S16LE, dst[i:], scaleTo16(f.Subframes[ch].Samples[s], bits))
			i += 2
		}
	}
	return dst
}

// scaleTo16 shifts a sample of the given bit depth into the 16-bit range
func scaleTo16(v int32, bits int) int32 {
	switch {
	case bits > 16:
		return v >> (bits - 16)
	case bits < 16 && bits > 0:
		return v << (16 - bits)
	default:
		return v
	}
}
