// ABOUTME: Decoder interface definition
// ABOUTME: Common interface for file decoders producing raw PCM bytes
package decode

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Resonate-Protocol/audout/pkg/audio"
)

var (
	ErrUnsupportedFile = errors.New("unsupported audio file")
	ErrInvalidSeek     = errors.New("invalid seek position")
)

// Decoder reads a file as interleaved PCM in the format it reports
type Decoder interface {
	// Format describes the PCM returned by Read
	Format() audio.Format

	// Read fills p with PCM bytes; io.EOF marks the end of the stream
	Read(p []byte) (int, error)

	// SeekMs moves to a position in milliseconds from the start
	SeekMs(ms int64) error

	// DurationMs returns the stream length, or -1 when unknown
	DurationMs() int64

	// Close releases decoder resources
	Close() error
}

// Open picks a decoder by file extension. raw describes .pcm and .raw
// files, which carry no header.
func Open(path string, raw audio.Format) (Decoder, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave":
		return OpenWAV(path)
	case ".mp3":
		return OpenMP3(path)
	case ".flac":
		return OpenFLAC(path)
	case ".pcm", ".raw":
		return OpenPCM(path, raw)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, path)
	}
}
