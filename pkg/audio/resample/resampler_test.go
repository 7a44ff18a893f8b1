// ABOUTME: Tests for the linear resampler and resampling reader
// ABOUTME: Covers ratios, chunk continuity, and stream formats
package resample

import (
	"bytes"
	"io"
	"testing"

	"github.com/Resonate-Protocol/audout/pkg/audio"
)

func TestResampleIdentity(t *testing.T) {
	r := New(44100, 44100, 1)
	input := []int32{0, 100, 200, 300, 400}
	output := make([]int32, r.MaxOutputSamples(len(input)))

	n := r.Resample(input, output)

	// The last frame is held back for interpolation with the next chunk
	if n != 4 {
		t.Fatalf("expected 4 samples, got %d", n)
	}
	for i := 0; i < n; i++ {
		if output[i] != input[i] {
			t.Errorf("sample %d: expected %d, got %d", i, input[i], output[i])
		}
	}
}

func TestResampleUpsampleInterpolates(t *testing.T) {
	r := New(1, 2, 1)
	input := []int32{0, 100, 200}
	output := make([]int32, r.MaxOutputSamples(len(input)))

	n := r.Resample(input, output)

	expected := []int32{0, 50, 100, 150}
	if n != len(expected) {
		t.Fatalf("expected %d samples, got %d", len(expected), n)
	}
	for i, want := range expected {
		if output[i] != want {
			t.Errorf("sample %d: expected %d, got %d", i, want, output[i])
		}
	}
}

func TestResampleDownsample(t *testing.T) {
	r := New(2, 1, 2)
	// Stereo frames (L, R)
	input := []int32{0, 1000, 10, 1010, 20, 1020, 30, 1030, 40, 1040}
	output := make([]int32, r.MaxOutputSamples(len(input)))

	n := r.Resample(input, output)

	expected := []int32{0, 1000, 20, 1020}
	if n != len(expected) {
		t.Fatalf("expected %d samples, got %d", len(expected), n)
	}
	for i, want := range expected {
		if output[i] != want {
			t.Errorf("sample %d: expected %d, got %d", i, want, output[i])
		}
	}
}

func TestResampleChunksMatchWhole(t *testing.T) {
	input := make([]int32, 300)
	for i := range input {
		input[i] = int32(i * 7)
	}

	whole := New(3, 2, 1)
	wantBuf := make([]int32, whole.MaxOutputSamples(len(input)))
	want := wantBuf[:whole.Resample(input, wantBuf)]

	chunked := New(3, 2, 1)
	var got []int32
	for start := 0; start < len(input); start += 37 {
		end := min(start+37, len(input))
		buf := make([]int32, chunked.MaxOutputSamples(end-start))
		got = append(got, buf[:chunked.Resample(input[start:end], buf)]...)
	}

	if len(got) != len(want) {
		t.Fatalf("expected %d samples, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample %d: expected %d, got %d", i, want[i], got[i])
		}
	}
}

func TestResampleReset(t *testing.T) {
	r := New(1, 2, 1)
	output := make([]int32, 16)

	r.Resample([]int32{1000, 1000}, output)
	r.Reset()

	n := r.Resample([]int32{0, 0}, output)
	for i := 0; i < n; i++ {
		if output[i] != 0 {
			t.Fatalf("sample %d leaked state from before reset: %d", i, output[i])
		}
	}
}

func TestReaderFormat(t *testing.T) {
	in := audio.Format{Encoding: audio.S16LE, SampleRate: 22050, Channels: 2}
	rd, err := NewReader(bytes.NewReader(nil), in, 44100)
	if err != nil {
		t.Fatal(err)
	}

	out := rd.Format()
	if out.SampleRate != 44100 || out.Channels != 2 || out.Encoding != audio.S16LE {
		t.Errorf("unexpected output format %v", out)
	}

	if _, err := NewReader(nil, in, 0); err != ErrInvalidRate {
		t.Errorf("expected ErrInvalidRate, got %v", err)
	}
	if _, err := NewReader(nil, audio.Format{}, 44100); err == nil {
		t.Error("expected error for invalid input format")
	}
}

func TestReaderDoublesLength(t *testing.T) {
	in := audio.Format{Encoding: audio.S16LE, SampleRate: 8000, Channels: 1}
	frames := 4000
	src := make([]byte, frames*2)
	for i := 0; i < frames; i++ {
		audio.PutSample(audio.S16LE, src[i*2:], int32(i%100)*100)
	}

	rd, err := NewReader(bytes.NewReader(src), in, 16000)
	if err != nil {
		t.Fatal(err)
	}

	out, err := io.ReadAll(rd)
	if err != nil {
		t.Fatal(err)
	}

	// Every input frame but the held-back last one yields two output frames
	if len(out) != (frames-1)*2*2 {
		t.Errorf("expected %d bytes, got %d", (frames-1)*2*2, len(out))
	}
	if len(out)%in.FrameSize() != 0 {
		t.Error("output is not frame aligned")
	}

	// Output sample 2 sits exactly on input sample 1
	if got := audio.SampleAt(audio.S16LE, out[4:]); got != 100 {
		t.Errorf("expected sample 100, got %d", got)
	}
}

// oddReader returns data in sizes that split frames
type oddReader struct {
	data []byte
}

func (o *oddReader) Read(p []byte) (int, error) {
	if len(o.data) == 0 {
		return 0, io.EOF
	}
	n := copy(p[:min(len(p), 3)], o.data)
	o.data = o.data[n:]
	return n, nil
}

func TestReaderHandlesSplitFrames(t *testing.T) {
	in := audio.Format{Encoding: audio.U8, SampleRate: 1000, Channels: 2}
	src := bytes.Repeat([]byte{0x80, 0xff}, 50)

	rd, err := NewReader(&oddReader{data: src}, in, 1000)
	if err != nil {
		t.Fatal(err)
	}

	out, err := io.ReadAll(rd)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 49*2 {
		t.Fatalf("expected %d bytes, got %d", 49*2, len(out))
	}
	for i := 0; i < len(out); i += 2 {
		if out[i] != 0x80 || out[i+1] != 0xff {
			t.Fatalf("frame %d corrupted: %x %x", i/2, out[i], out[i+1])
		}
	}
}
