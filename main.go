// ABOUTME: Entry point for the audout file player
// ABOUTME: Parses CLI flags and runs the player, TUI, and signal actors
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"syscall"
	"time"

	"github.com/Resonate-Protocol/audout/internal/app"
	"github.com/Resonate-Protocol/audout/internal/ui"
	"github.com/Resonate-Protocol/audout/internal/version"
	"github.com/Resonate-Protocol/audout/pkg/audio"
	"github.com/Resonate-Protocol/audout/pkg/audio/output"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/oklog/run"
	"github.com/peterbourgon/ff"
)

var (
	fs = flag.NewFlagSet("audout", flag.ExitOnError)

	backend         = fs.String("backend", string(output.BackendOto), "Output backend: oss, alsa, oto, null, or wav")
	bufferMs        = fs.Int("buffer-ms", output.DefaultBufferMs, "Ring buffer size in milliseconds")
	prebuffer       = fs.Int("prebuffer", output.DefaultPrebuffer, "Percent of the buffer filled before playback starts")
	device          = fs.Int("device", 0, "OSS device number (/dev/dsp<n>)")
	altDevice       = fs.String("alt-device", "", "Explicit device path, overrides -device")
	outputFile      = fs.String("output-file", "", "File the wav backend renders to")
	latency         = fs.Duration("latency", output.DefaultLatency, "Requested device latency")
	resetAfterPause = fs.Bool("reset-after-pause", false, "Reopen the device when resuming from pause")
	probeReadiness  = fs.Bool("probe-readiness", true, "Wait for device write readiness before each block")
	useMaster       = fs.Bool("use-master", false, "Accepted for compatibility and ignored; volume is always software")
	volume          = fs.Int("volume", 100, "Initial volume (0-100)")
	rawEncoding     = fs.String("format", "s16le", "Sample encoding of .pcm and .raw files")
	rawRate         = fs.Int("rate", 44100, "Sample rate of .pcm and .raw files")
	rawChannels     = fs.Int("channels", 2, "Channel count of .pcm and .raw files")
	resampleRate    = fs.Int("resample-rate", 0, "Resample every file to this rate (0 keeps each file's rate)")
	logFile         = fs.String("log-file", "audout.log", "Log file path")
	noTUI           = fs.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	debug           = fs.Bool("debug", false, "Log buffer underruns")
	showVersion     = fs.Bool("version", false, "Print version and exit")
	_               = fs.String("config", "", "Config file with one flag per line")
)

func main() {
	err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("AUDOUT"),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
	)
	if err != nil {
		log.Fatalf("error parsing flags: %v", err)
	}

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	files := fs.Args()
	if len(files) == 0 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] file...\n", fs.Name())
		fs.PrintDefaults()
		os.Exit(2)
	}

	useTUI := !*noTUI

	// Set up logging
	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		// Streaming logs mode: log to both stdout and file
		multiWriter := io.MultiWriter(os.Stdout, f)
		log.SetOutput(multiWriter)
	}

	log.Printf("Starting %s", version.String())

	encoding, err := audio.ParseEncoding(*rawEncoding)
	if err != nil {
		log.Fatalf("Invalid -format: %v", err)
	}

	cfg := output.DefaultConfig()
	cfg.Backend = output.Backend(*backend)
	cfg.BufferMs = *bufferMs
	cfg.Prebuffer = *prebuffer
	cfg.AudioDevice = *device
	cfg.UseAltAudioDevice = *altDevice != ""
	cfg.AltAudioDevice = *altDevice
	cfg.Latency = *latency
	cfg.ResetAfterPause = *resetAfterPause
	cfg.ProbeReadiness = *probeReadiness
	cfg.UseMaster = *useMaster
	cfg.OutputFile = *outputFile
	cfg.Debug = *debug

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid output configuration: %v", err)
	}

	out, err := output.NewForBackend(cfg)
	if err != nil {
		log.Fatalf("Failed to create output: %v", err)
	}
	defer out.Close()

	// TUI setup
	var tuiProg *tea.Program
	var controls *ui.Controls

	if useTUI {
		controls = ui.NewControls()
		tuiProg, err = ui.Run(controls)
		if err != nil {
			log.Fatalf("Failed to start TUI: %v", err)
		}
	}

	// Helper to update TUI
	updateTUI := func(msg ui.StatusMsg) {
		if tuiProg != nil {
			tuiProg.Send(msg)
		}
	}

	player := app.New(app.Config{
		Files: files,
		Raw: audio.Format{
			Encoding:   encoding,
			SampleRate: *rawRate,
			Channels:   *rawChannels,
		},
		Volume:     *volume,
		OutputRate: *resampleRate,
		OnStatus: func(s app.Status) {
			updateTUI(statusMsg(s))
		},
	}, out)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var g run.Group

	// Player
	{
		ctx, cancel := context.WithCancel(ctx)
		g.Add(func() error {
			return player.Run(ctx)
		}, func(error) {
			cancel()
		})
	}

	// Signals
	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))

	// TUI, its controls, and runtime stats
	if tuiProg != nil {
		g.Add(func() error {
			_, err := tuiProg.Run()
			return err
		}, func(error) {
			tuiProg.Quit()
		})

		ctx, cancel := context.WithCancel(ctx)
		g.Add(func() error {
			handleControls(ctx, player, controls)
			return nil
		}, func(error) {
			cancel()
		})

		go runtimeStatsLoop(ctx, updateTUI)
	}

	err = g.Run()

	var sigErr run.SignalError
	switch {
	case errors.As(err, &sigErr):
		log.Printf("Shutdown signal received: %v", sigErr.Signal)
	case err != nil && !errors.Is(err, context.Canceled):
		log.Printf("Player error: %v", err)
		out.Close()
		os.Exit(1)
	}

	log.Printf("Player stopped")
}

// handleControls forwards TUI requests to the player until the user quits
func handleControls(ctx context.Context, player *app.Player, controls *ui.Controls) {
	commands := player.Commands()
	for {
		select {
		case req := <-controls.Requests:
			var cmd app.Command
			switch req.Action {
			case ui.ActionPause:
				cmd = app.Command{Kind: app.CommandPause}
			case ui.ActionSeek:
				cmd = app.Command{Kind: app.CommandSeek, Value: req.Value}
			case ui.ActionNext:
				cmd = app.Command{Kind: app.CommandNext}
			case ui.ActionVolume:
				cmd = app.Command{Kind: app.CommandVolume, Value: req.Value}
			case ui.ActionMute:
				cmd = app.Command{Kind: app.CommandMute}
			}
			select {
			case commands <- cmd:
			case <-ctx.Done():
				return
			}
		case <-controls.Quit:
			log.Printf("Received quit signal from TUI")
			return
		case <-ctx.Done():
			return
		}
	}
}

// statusMsg converts a player status into a TUI update
func statusMsg(s app.Status) ui.StatusMsg {
	volume := s.Volume
	muted := s.Muted
	paused := s.State == output.StatePaused

	msg := ui.StatusMsg{
		File:   s.File,
		Index:  s.Index,
		Count:  s.Count,
		State:  s.State.String(),
		Paused: &paused,
		Position: &ui.Position{
			OutputMs:   s.OutputMs,
			WrittenMs:  s.WrittenMs,
			DurationMs: s.DurationMs,
		},
		Buffer: &ui.Buffer{
			Used:        s.Stats.RingUsed,
			Size:        s.Stats.BufferSize,
			DeviceUsed:  s.Stats.DeviceUsed,
			Underruns:   s.Stats.Underruns,
			WriteErrors: s.Stats.WriteErrors,
		},
		Volume: &volume,
		Muted:  &muted,
	}
	if s.Format.Encoding != audio.EncodingUnknown {
		msg.Encoding = s.Format.Encoding.String()
		msg.SampleRate = s.Format.SampleRate
		msg.Channels = s.Format.Channels
	}
	return msg
}

// runtimeStatsLoop periodically updates TUI with runtime statistics
func runtimeStatsLoop(ctx context.Context, updateTUI func(ui.StatusMsg)) {
	// Slow ticker to avoid GC pauses from ReadMemStats
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			updateTUI(ui.StatusMsg{
				Goroutines: runtime.NumGoroutine(),
				MemAlloc:   m.Alloc,
				MemSys:     m.Sys,
			})
		case <-ctx.Done():
			return
		}
	}
}
