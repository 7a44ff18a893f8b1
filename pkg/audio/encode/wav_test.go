// ABOUTME: Unit tests for the WAV encoder
// ABOUTME: Round trips PCM through the decoder and checks conversions
package encode

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/Resonate-Protocol/audout/pkg/audio"
	"github.com/Resonate-Protocol/audout/pkg/audio/decode"
)

func encodeFile(t *testing.T, format audio.Format, chunks ...[]byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "out.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	enc, err := NewWAV(f, format)
	if err != nil {
		t.Fatalf("NewWAV: %v", err)
	}
	for _, c := range chunks {
		n, err := enc.Write(c)
		if err != nil {
			t.Fatalf("Write: %v", err)
		}
		if n != len(c) {
			t.Fatalf("expected %d bytes consumed, got %d", len(c), n)
		}
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return path
}

func readBack(t *testing.T, path string) (audio.Format, []byte) {
	t.Helper()

	d, err := decode.Open(path, audio.Format{})
	if err != nil {
		t.Fatalf("decode.Open: %v", err)
	}
	defer d.Close()

	data, err := io.ReadAll(d)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return d.Format(), data
}

func TestNewWAV(t *testing.T) {
	tests := []struct {
		name    string
		format  audio.Format
		wantErr bool
	}{
		{"s16le stereo", audio.Format{Encoding: audio.S16LE, SampleRate: 48000, Channels: 2}, false},
		{"u8 mono", audio.Format{Encoding: audio.U8, SampleRate: 8000, Channels: 1}, false},
		{"unknown encoding", audio.Format{SampleRate: 48000, Channels: 2}, true},
		{"no channels", audio.Format{Encoding: audio.S16LE, SampleRate: 48000}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := os.Create(filepath.Join(t.TempDir(), "x.wav"))
			if err != nil {
				t.Fatal(err)
			}
			defer f.Close()

			_, err = NewWAV(f, tt.format)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewWAV() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestWAVRoundTripS16LE(t *testing.T) {
	format := audio.Format{Encoding: audio.S16LE, SampleRate: 44100, Channels: 2}

	pcm := make([]byte, 4410*4)
	for i := 0; i < len(pcm)/2; i++ {
		audio.PutSample(audio.S16LE, pcm[i*2:], int32((i%512)-256)*64)
	}

	// Written in two chunks to cover repeated Write calls
	path := encodeFile(t, format, pcm[:8000], pcm[8000:])

	got, data := readBack(t, path)
	if got != format {
		t.Fatalf("expected %v, got %v", format, got)
	}
	if len(data) != len(pcm) {
		t.Fatalf("expected %d bytes, got %d", len(pcm), len(data))
	}
	for i := range pcm {
		if data[i] != pcm[i] {
			t.Fatalf("byte %d differs: %d != %d", i, data[i], pcm[i])
		}
	}
}

func TestWAVRoundTripU8(t *testing.T) {
	format := audio.Format{Encoding: audio.U8, SampleRate: 8000, Channels: 1}
	pcm := []byte{0x80, 0xff, 0x00, 0x40}

	path := encodeFile(t, format, pcm)

	got, data := readBack(t, path)
	if got != format {
		t.Fatalf("expected %v, got %v", format, got)
	}
	if string(data) != string(pcm) {
		t.Errorf("expected %v, got %v", pcm, data)
	}
}

func TestWAVConvertsBigEndian(t *testing.T) {
	format := audio.Format{Encoding: audio.S16BE, SampleRate: 8000, Channels: 1}
	pcm := make([]byte, 4)
	audio.PutSample(audio.S16BE, pcm, 1000)
	audio.PutSample(audio.S16BE, pcm[2:], -1000)

	path := encodeFile(t, format, pcm)

	got, data := readBack(t, path)
	if got.Encoding != audio.S16LE {
		t.Fatalf("expected s16le, got %v", got.Encoding)
	}
	if v := audio.SampleAt(audio.S16LE, data); v != 1000 {
		t.Errorf("expected 1000, got %d", v)
	}
	if v := audio.SampleAt(audio.S16LE, data[2:]); v != -1000 {
		t.Errorf("expected -1000, got %d", v)
	}
}

func TestWAVWritePartialSample(t *testing.T) {
	format := audio.Format{Encoding: audio.S16LE, SampleRate: 8000, Channels: 1}
	f, err := os.Create(filepath.Join(t.TempDir(), "p.wav"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	enc, err := NewWAV(f, format)
	if err != nil {
		t.Fatal(err)
	}

	n, err := enc.Write([]byte{1, 2, 3})
	if err != nil || n != 2 {
		t.Errorf("expected 2 bytes consumed, got %d (%v)", n, err)
	}

	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}
	if _, err := enc.Write([]byte{0, 0}); err != ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}
