// ABOUTME: Tests for the raw PCM decoder
// ABOUTME: Tests reading, seeking and duration of headerless PCM
package decode

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/Resonate-Protocol/audout/pkg/audio"
)

var cdFormat = audio.Format{Encoding: audio.S16LE, SampleRate: 44100, Channels: 2}

func TestPCMDecoder(t *testing.T) {
	data := make([]byte, 176400) // 1s
	for i := range data {
		data[i] = byte(i)
	}

	d := NewPCM(bytes.NewReader(data), int64(len(data)), cdFormat)

	if d.Format() != cdFormat {
		t.Errorf("expected %v, got %v", cdFormat, d.Format())
	}
	if d.DurationMs() != 1000 {
		t.Errorf("expected 1000ms, got %d", d.DurationMs())
	}

	if err := d.SeekMs(500); err != nil {
		t.Fatalf("SeekMs: %v", err)
	}
	buf := make([]byte, 4)
	if _, err := io.ReadFull(d, buf); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf, data[88200:88204]) {
		t.Errorf("expected bytes at 88200, got %v", buf)
	}

	// Past the end clamps to EOF
	if err := d.SeekMs(5000); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Read(buf); err != io.EOF {
		t.Errorf("expected EOF, got %v", err)
	}

	if err := d.SeekMs(-1); !errors.Is(err, ErrInvalidSeek) {
		t.Errorf("expected ErrInvalidSeek, got %v", err)
	}
}

func TestDecodersImplementDecoder(t *testing.T) {
	var _ Decoder = (*PCMDecoder)(nil)
	var _ Decoder = (*WAVDecoder)(nil)
	var _ Decoder = (*MP3Decoder)(nil)
	var _ Decoder = (*FLACDecoder)(nil)
}

func TestOpenPCMNeedsFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.raw")
	if err := os.WriteFile(path, make([]byte, 64), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Open(path, audio.Format{}); err == nil {
		t.Error("expected error without a format")
	}

	d, err := Open(path, cdFormat)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Close()

	got, err := io.ReadAll(d)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 64 {
		t.Errorf("expected 64 bytes, got %d", len(got))
	}
}

func TestOpenUnknownExtension(t *testing.T) {
	if _, err := Open("song.ogg", cdFormat); !errors.Is(err, ErrUnsupportedFile) {
		t.Errorf("expected ErrUnsupportedFile, got %v", err)
	}
}
