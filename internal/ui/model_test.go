// ABOUTME: Tests for TUI model and state management
// ABOUTME: Tests status updates, key handling, and render helpers
package ui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/matryer/is"
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestNewModel(t *testing.T) {
	is := is.New(t)
	model := NewModel(nil) // Controls are optional for testing

	is.Equal(model.volume, 100)
	is.Equal(model.state, "closed")
	is.True(!model.muted)
	is.True(!model.paused)
	is.True(!model.showDebug)
}

func TestStatusMsgTrack(t *testing.T) {
	is := is.New(t)
	model := NewModel(nil)

	model.applyStatus(StatusMsg{
		File:       "/music/a.wav",
		Index:      1,
		Count:      3,
		Encoding:   "s16le",
		SampleRate: 44100,
		Channels:   2,
		State:      "playing",
	})

	is.Equal(model.file, "/music/a.wav")
	is.Equal(model.index, 1)
	is.Equal(model.count, 3)
	is.Equal(model.encoding, "s16le")
	is.Equal(model.sampleRate, 44100)
	is.Equal(model.channels, 2)
	is.Equal(model.state, "playing")
}

func TestStatusMsgPositionAndBuffer(t *testing.T) {
	is := is.New(t)
	model := NewModel(nil)

	model.applyStatus(StatusMsg{
		Position: &Position{OutputMs: 1200, WrittenMs: 1700, DurationMs: 60000},
		Buffer:   &Buffer{Used: 4096, Size: 88200, DeviceUsed: 2048, Underruns: 2, WriteErrors: 1},
	})

	is.Equal(model.outputMs, int64(1200))
	is.Equal(model.writtenMs, int64(1700))
	is.Equal(model.durationMs, int64(60000))
	is.Equal(model.bufferUsed, 4096)
	is.Equal(model.bufferSize, 88200)
	is.Equal(model.deviceUsed, 2048)
	is.Equal(model.underruns, int64(2))
	is.Equal(model.writeErrors, int64(1))

	// A flush back to the start reports zero positions, which must apply
	model.applyStatus(StatusMsg{Position: &Position{}})
	is.Equal(model.outputMs, int64(0))
	is.Equal(model.durationMs, int64(0))
}

func TestStatusMsgZeroValues(t *testing.T) {
	is := is.New(t)
	model := NewModel(nil)

	model.applyStatus(StatusMsg{File: "a.wav", Encoding: "u8", State: "playing"})

	// Empty fields leave the model unchanged
	model.applyStatus(StatusMsg{})
	is.Equal(model.file, "a.wav")
	is.Equal(model.encoding, "u8")
	is.Equal(model.state, "playing")
	is.Equal(model.volume, 100)

	// Volume 0 is a real value when sent explicitly
	zero := 0
	muted := true
	model.applyStatus(StatusMsg{Volume: &zero, Muted: &muted})
	is.Equal(model.volume, 0)
	is.True(model.muted)
}

func TestStatusMsgRuntimeStats(t *testing.T) {
	is := is.New(t)
	model := NewModel(nil)

	model.applyStatus(StatusMsg{
		Goroutines: 42,
		MemAlloc:   1024 * 1024,
		MemSys:     2048 * 1024,
	})

	is.Equal(model.goroutines, 42)
	is.Equal(model.memAlloc, uint64(1024*1024))
	is.Equal(model.memSys, uint64(2048*1024))
}

func TestKeyControls(t *testing.T) {
	tests := []struct {
		name string
		key  tea.KeyMsg
		want ControlMsg
	}{
		{"pause", tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}, ControlMsg{Action: ActionPause}},
		{"seek back", tea.KeyMsg{Type: tea.KeyLeft}, ControlMsg{Action: ActionSeek, Value: -seekStepMs}},
		{"seek forward", tea.KeyMsg{Type: tea.KeyRight}, ControlMsg{Action: ActionSeek, Value: seekStepMs}},
		{"volume up", runes("+"), ControlMsg{Action: ActionVolume, Value: volumeStep}},
		{"volume down", tea.KeyMsg{Type: tea.KeyDown}, ControlMsg{Action: ActionVolume, Value: -volumeStep}},
		{"mute", runes("m"), ControlMsg{Action: ActionMute}},
		{"next", runes("n"), ControlMsg{Action: ActionNext}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			controls := NewControls()
			model := NewModel(controls)

			_, cmd := model.Update(tt.key)
			is.Equal(cmd, nil)

			select {
			case got := <-controls.Requests:
				is.Equal(got, tt.want)
			default:
				t.Fatal("expected a control request")
			}
		})
	}
}

func TestKeyUpdatesLocalState(t *testing.T) {
	is := is.New(t)
	model := NewModel(nil)

	updated, _ := model.Update(runes("-"))
	model = updated.(Model)
	is.Equal(model.volume, 95)

	// Volume saturates at 100
	updated, _ = model.Update(tea.KeyMsg{Type: tea.KeyUp})
	updated, _ = updated.Update(tea.KeyMsg{Type: tea.KeyUp})
	model = updated.(Model)
	is.Equal(model.volume, 100)

	updated, _ = model.Update(runes("m"))
	model = updated.(Model)
	is.True(model.muted)

	updated, _ = model.Update(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	model = updated.(Model)
	is.True(model.paused)

	updated, _ = model.Update(runes("d"))
	model = updated.(Model)
	is.True(model.showDebug)
}

func TestQuitKey(t *testing.T) {
	is := is.New(t)
	controls := NewControls()
	model := NewModel(controls)

	_, cmd := model.Update(runes("q"))
	is.True(cmd != nil)

	select {
	case <-controls.Quit:
	default:
		t.Fatal("expected quit notification")
	}
}

func TestSendDoesNotBlock(t *testing.T) {
	controls := &Controls{
		Requests: make(chan ControlMsg),
		Quit:     make(chan QuitMsg),
	}
	model := NewModel(controls)

	// Nobody is receiving; the key must still be handled
	model.Update(runes("n"))
	model.Update(runes("q"))
}

func TestViewBeforeResize(t *testing.T) {
	is := is.New(t)
	model := NewModel(nil)
	is.Equal(model.View(), "Loading...")

	updated, _ := model.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	is.True(updated.View() != "Loading...")
}

func TestTruncateFunction(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"short", 10, "short"},
		{"this is longer than allowed", 10, "this is..."},
		{"", 10, ""},
		{"abc", 3, "abc"},
		{"abcde", 4, "a..."},
	}

	for _, tt := range tests {
		result := truncate(tt.input, tt.maxLen)
		if result != tt.expected {
			t.Errorf("truncate(%q, %d) = %q, expected %q",
				tt.input, tt.maxLen, result, tt.expected)
		}
	}
}

func TestChannelNameFunction(t *testing.T) {
	tests := []struct {
		channels int
		expected string
	}{
		{1, "Mono"},
		{2, "Stereo"},
		{6, "6ch"},
		{0, ""},
	}

	for _, tt := range tests {
		result := channelName(tt.channels)
		if result != tt.expected {
			t.Errorf("channelName(%d) = %q, expected %q",
				tt.channels, result, tt.expected)
		}
	}
}

func TestFormatMs(t *testing.T) {
	tests := []struct {
		ms       int64
		expected string
	}{
		{0, "0:00.0"},
		{1500, "0:01.5"},
		{61250, "1:01.2"},
		{-10, "0:00.0"},
	}

	for _, tt := range tests {
		if got := formatMs(tt.ms); got != tt.expected {
			t.Errorf("formatMs(%d) = %q, expected %q", tt.ms, got, tt.expected)
		}
	}
}

func TestRenderBar(t *testing.T) {
	is := is.New(t)
	is.Equal(renderBar(50, 100, 4), "██░░")
	is.Equal(renderBar(0, 0, 2), "░░") // empty buffer before the first session
	is.Equal(renderBar(100, 100, 2), "██")
}
