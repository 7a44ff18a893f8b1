// ABOUTME: MP3 file decoder
// ABOUTME: Decodes MP3 to 16-bit stereo PCM with go-mp3
package decode

import (
	"fmt"
	"io"
	"os"

	"github.com/Resonate-Protocol/audout/pkg/audio"
	"github.com/hajimehoshi/go-mp3"
)

// MP3Decoder decodes MP3 audio
type MP3Decoder struct {
	file    *os.File
	decoder *mp3.Decoder
	format  audio.Format
}

// OpenMP3 opens an MP3 file; go-mp3 always produces S16LE stereo
func OpenMP3(path string) (*MP3Decoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create mp3 decoder: %w", err)
	}

	return &MP3Decoder{
		file:    f,
		decoder: decoder,
		format: audio.Format{
			Encoding:   audio.S16LE,
			SampleRate: decoder.SampleRate(),
			Channels:   2,
		},
	}, nil
}

func (d *MP3Decoder) Format() audio.Format { return d.format }

func (d *MP3Decoder) Read(p []byte) (int, error) {
	return d.decoder.Read(p)
}

// SeekMs jumps to a byte offset in the decoded stream
func (d *MP3Decoder) SeekMs(ms int64) error {
	if ms < 0 {
		return fmt.Errorf("%w: %dms", ErrInvalidSeek, ms)
	}
	off := d.format.MsToBytes(ms)
	if length := d.decoder.Length(); length >= 0 && off > length {
		off = length
	}
	if _, err := d.decoder.Seek(off, io.SeekStart); err != nil {
		return fmt.Errorf("mp3 seek: %w", err)
	}
	return nil
}

func (d *MP3Decoder) DurationMs() int64 {
	length := d.decoder.Length()
	if length < 0 {
		return -1
	}
	return d.format.BytesToMs(length)
}

// Close releases decoder resources
func (d *MP3Decoder) Close() error {
	return d.file.Close()
}
