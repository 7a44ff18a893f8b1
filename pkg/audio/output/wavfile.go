// ABOUTME: WAV file device rendering delivered PCM to disk
// ABOUTME: Writes as fast as the writer delivers, with no queue of its own
package output

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Resonate-Protocol/audout/pkg/audio"
	"github.com/Resonate-Protocol/audout/pkg/audio/encode"
)

// wavDevice records each session to its own file
type wavDevice struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	enc    *encode.WAVEncoder
	block  int
	closed bool
}

func openWAVFile(format audio.Format, cfg DeviceConfig) (Device, error) {
	if cfg.File == "" {
		return nil, fmt.Errorf("%w: wav backend needs an output file", ErrInvalidConfig)
	}

	path, err := freePath(cfg.File)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, err
	}

	enc, err := encode.NewWAV(f, format)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	d := &wavDevice{
		path:  path,
		file:  f,
		enc:   enc,
		block: fragmentSize(format.BytesPerSecond()),
	}

	log.Printf("WAV output opened: %s (%s)", path, format)
	return d, nil
}

// freePath returns name, or name with a numeric suffix when it exists, so
// consecutive sessions do not overwrite each other
func freePath(name string) (string, error) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	path := name
	for i := 1; ; i++ {
		_, err := os.Stat(path)
		if os.IsNotExist(err) {
			return path, nil
		}
		if err != nil {
			return "", err
		}
		if i > 9999 {
			return "", fmt.Errorf("%w: no free file name for %s", ErrDeviceOpen, name)
		}
		path = fmt.Sprintf("%s-%d%s", base, i, ext)
	}
}

func (d *wavDevice) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return 0, ErrDeviceClosed
	}
	return d.enc.Write(p)
}

func (d *wavDevice) BlockSize() int  { return d.block }
func (d *wavDevice) BufferSize() int { return 0 }

// Delay is zero; a file holds nothing back
func (d *wavDevice) Delay() (int, error) { return 0, nil }

func (d *wavDevice) Sync() error { return nil }
func (d *wavDevice) Drop() error { return nil }

func (d *wavDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true

	err := d.enc.Close()
	if cerr := d.file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("finalize %s: %w", d.path, err)
	}
	log.Printf("WAV output closed: %s", d.path)
	return nil
}
