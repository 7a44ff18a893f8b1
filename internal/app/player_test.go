// ABOUTME: Tests for player application orchestration
// ABOUTME: Tests file playback, user commands, and cancellation
package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Resonate-Protocol/audout/internal/audiotest"
	"github.com/Resonate-Protocol/audout/pkg/audio"
	"github.com/Resonate-Protocol/audout/pkg/audio/decode"
	"github.com/Resonate-Protocol/audout/pkg/audio/output"
	"github.com/matryer/is"
)

var rawFormat = audio.Format{Encoding: audio.S16LE, SampleRate: 44100, Channels: 2}

// recorder opens a fresh fake device per session
type recorder struct {
	mu      sync.Mutex
	devices []*audiotest.Device
	formats []audio.Format
}

func (r *recorder) open(format audio.Format, _ output.DeviceConfig) (output.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := audiotest.NewDevice(2048, 8192)
	r.devices = append(r.devices, d)
	r.formats = append(r.formats, format)
	return d, nil
}

func (r *recorder) sessions() []*audiotest.Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*audiotest.Device(nil), r.devices...)
}

func newTestOutput(t *testing.T) (*output.Controller, *recorder) {
	t.Helper()
	cfg := output.DefaultConfig()
	cfg.BufferMs = 10
	rec := &recorder{}
	out := output.New(cfg, rec.open)
	t.Cleanup(func() { out.Close() })
	return out, rec
}

// writeRaw writes a headerless file of n bytes filled with fill
func writeRaw(t *testing.T, dir, name string, n int, fill byte) string {
	t.Helper()
	data := make([]byte, n)
	for i := range data {
		data[i] = fill
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNewPlayer(t *testing.T) {
	is := is.New(t)
	out, _ := newTestOutput(t)

	player := New(Config{Files: []string{"a.wav"}, Volume: 80}, out)

	is.True(player != nil)
	is.Equal(player.config.ChunkSize, defaultChunkSize)
	is.Equal(player.config.Volume, 80)
	is.True(player.Commands() != nil)
}

func TestRunPlaysFilesInOrder(t *testing.T) {
	is := is.New(t)
	out, rec := newTestOutput(t)
	dir := t.TempDir()

	files := []string{
		writeRaw(t, dir, "one.pcm", 20000, 0x11),
		writeRaw(t, dir, "two.raw", 12000, 0x22),
	}
	player := New(Config{Files: files, Raw: rawFormat, Volume: 100}, out)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	is.NoErr(player.Run(ctx))

	devices := rec.sessions()
	is.Equal(len(devices), 2)
	is.Equal(devices[0].Len(), 20000)
	is.Equal(devices[1].Len(), 12000)
	is.Equal(devices[0].Bytes()[19999], byte(0x11))
	is.Equal(devices[1].Bytes()[0], byte(0x22))

	// Each session is released after its file
	is.Equal(devices[0].Closes(), 1)
	is.Equal(devices[1].Closes(), 1)
	is.Equal(out.State(), output.StateClosed)
}

func TestRunResamplesToOutputRate(t *testing.T) {
	is := is.New(t)
	out, rec := newTestOutput(t)
	dir := t.TempDir()

	// 100ms of mono audio at 22050Hz
	mono := audio.Format{Encoding: audio.S16LE, SampleRate: 22050, Channels: 1}
	path := writeRaw(t, dir, "low.pcm", 2205*2, 0)
	player := New(Config{Files: []string{path}, Raw: mono, Volume: 100, OutputRate: 44100}, out)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	is.NoErr(player.Run(ctx))

	devices := rec.sessions()
	is.Equal(len(devices), 1)
	is.Equal(rec.formats[0].SampleRate, 44100)
	is.Equal(rec.formats[0].Channels, 1)
	is.Equal(devices[0].Len(), (2205-1)*2*2) // the final input frame has no successor
}

func TestRunSkipsUnplayableFiles(t *testing.T) {
	is := is.New(t)
	out, rec := newTestOutput(t)
	dir := t.TempDir()

	files := []string{
		filepath.Join(dir, "missing.wav"),
		filepath.Join(dir, "notes.txt"),
		writeRaw(t, dir, "ok.pcm", 4000, 0x33),
	}
	player := New(Config{Files: files, Raw: rawFormat, Volume: 100}, out)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	is.NoErr(player.Run(ctx))

	devices := rec.sessions()
	is.Equal(len(devices), 1)
	is.Equal(devices[0].Len(), 4000)
}

func TestRunHonorsCancel(t *testing.T) {
	is := is.New(t)
	out, _ := newTestOutput(t)
	dir := t.TempDir()

	path := writeRaw(t, dir, "long.pcm", 400000, 0x44)
	player := New(Config{Files: []string{path}, Raw: rawFormat, Volume: 100}, out)

	// Paused output never drains so the player is still running at cancel
	player.Commands() <- Command{Kind: CommandPause}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- player.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		is.True(errors.Is(err, context.Canceled))
	case <-time.After(5 * time.Second):
		t.Fatal("player did not stop after cancel")
	}
}

func TestNextCommandSkipsFile(t *testing.T) {
	is := is.New(t)
	out, rec := newTestOutput(t)
	dir := t.TempDir()

	files := []string{
		writeRaw(t, dir, "long.pcm", 400000, 0x55),
		writeRaw(t, dir, "short.pcm", 4000, 0x66),
	}
	player := New(Config{Files: files, Raw: rawFormat, Volume: 100}, out)
	player.Commands() <- Command{Kind: CommandNext}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	is.NoErr(player.Run(ctx))

	devices := rec.sessions()
	is.Equal(len(devices), 2)
	is.True(devices[0].Len() < 400000)
	is.Equal(devices[1].Len(), 4000)
}

func TestSeekFlushesOutput(t *testing.T) {
	is := is.New(t)
	out, rec := newTestOutput(t)
	dir := t.TempDir()

	// 10 seconds of audio
	path := writeRaw(t, dir, "ten.pcm", rawFormat.BytesPerSecond()*10, 0x77)
	dec, err := decode.Open(path, rawFormat)
	is.NoErr(err)
	defer dec.Close()

	is.NoErr(out.Open(dec.Format()))
	player := New(Config{Files: []string{path}, Raw: rawFormat, Volume: 100}, out)

	is.NoErr(player.seek(dec, 3000))
	is.Equal(out.WrittenTime(), int64(3000))
	is.Equal(out.OutputTime(), int64(3000))
	is.Equal(len(rec.sessions()[0].DropMarks()), 1)

	// Seeking back before the start clamps to zero
	is.NoErr(player.seek(dec, -60000))
	is.Equal(out.WrittenTime(), int64(0))

	// Seeking past the end clamps to the duration
	is.NoErr(player.seek(dec, 60000))
	is.Equal(out.WrittenTime(), int64(10000))
}

func TestCommandsAdjustOutput(t *testing.T) {
	is := is.New(t)
	out, _ := newTestOutput(t)
	dir := t.TempDir()

	path := writeRaw(t, dir, "cmd.pcm", 8000, 0)
	dec, err := decode.Open(path, rawFormat)
	is.NoErr(err)
	defer dec.Close()
	is.NoErr(out.Open(dec.Format()))

	player := New(Config{Files: []string{path}, Raw: rawFormat, Volume: 100}, out)
	out.SetVolume(100)

	player.Commands() <- Command{Kind: CommandVolume, Value: -30}
	player.Commands() <- Command{Kind: CommandVolume, Value: 50}
	player.Commands() <- Command{Kind: CommandMute}
	player.Commands() <- Command{Kind: CommandPause}

	next, seeked, err := player.handleCommands(dec)
	is.NoErr(err)
	is.True(!next)
	is.True(!seeked)
	is.Equal(out.Volume(), 100) // 100 - 30 + 50, clamped
	is.True(out.Muted())
	is.Equal(out.State(), output.StatePaused)

	player.Commands() <- Command{Kind: CommandPause}
	player.Commands() <- Command{Kind: CommandSeek, Value: 500}
	player.Commands() <- Command{Kind: CommandNext}

	next, seeked, err = player.handleCommands(dec)
	is.NoErr(err)
	is.True(next)
	is.True(seeked)
	is.True(out.State() != output.StatePaused)
}

func TestStatusReporting(t *testing.T) {
	is := is.New(t)
	out, _ := newTestOutput(t)
	dir := t.TempDir()

	path := writeRaw(t, dir, "status.pcm", 20000, 0x01)

	var mu sync.Mutex
	var reports []Status
	player := New(Config{
		Files:  []string{path},
		Raw:    rawFormat,
		Volume: 70,
		OnStatus: func(s Status) {
			mu.Lock()
			reports = append(reports, s)
			mu.Unlock()
		},
	}, out)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	is.NoErr(player.Run(ctx))

	status := player.Status()
	is.Equal(status.File, path)
	is.Equal(status.Count, 1)
	is.Equal(status.Volume, 70)
	is.Equal(status.DurationMs, int64(113)) // 20000 bytes at 176400 bytes/s

	// Run may finish before the first tick; reports are only checked for shape
	mu.Lock()
	defer mu.Unlock()
	for _, r := range reports {
		is.Equal(r.Count, 1)
	}
}
