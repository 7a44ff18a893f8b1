// ABOUTME: Bubbletea model for player TUI
// ABOUTME: Defines application state and update logic
package ui

import (
	"fmt"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
)

const (
	seekStepMs = 5000
	volumeStep = 5
)

// Model represents the TUI state
type Model struct {
	// Track
	file  string
	index int
	count int

	// Format
	encoding   string
	sampleRate int
	channels   int

	// Playback
	state      string
	outputMs   int64
	writtenMs  int64
	durationMs int64
	paused     bool
	volume     int
	muted      bool

	// Buffer
	bufferUsed int
	bufferSize int
	deviceUsed int

	// Stats
	underruns   int64
	writeErrors int64

	// Runtime
	goroutines int
	memAlloc   uint64
	memSys     uint64

	// Debug
	showDebug bool

	// Dimensions
	width  int
	height int

	controls *Controls
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	s := ""
	s += m.renderHeader()
	s += m.renderTrack()
	s += m.renderControls()
	s += m.renderStats()

	if m.showDebug {
		s += m.renderDebug()
	}

	s += m.renderHelp()

	return s
}

// renderHeader renders the playback state
func (m Model) renderHeader() string {
	state := m.state
	if m.paused {
		state = "paused"
	}

	return fmt.Sprintf(`┌─ Audio Output ───────────────────────────────────────┐
│ State:  %-45s │
├──────────────────────────────────────────────────────┤
`, state)
}

// renderTrack renders the current file and position
func (m Model) renderTrack() string {
	if m.file == "" {
		return "│ Nothing playing                                      │\n"
	}

	s := fmt.Sprintf("│ File:   %-45s │\n", truncate(filepath.Base(m.file), 45))
	s += fmt.Sprintf("│ Track:  %d of %d%-38s │\n", m.index+1, m.count, "")
	s += fmt.Sprintf("│ Format: %s %dHz %s%-20s │\n",
		m.encoding, m.sampleRate, channelName(m.channels), "")

	pos := formatMs(m.outputMs)
	if m.durationMs > 0 {
		pos += " / " + formatMs(m.durationMs)
	}
	s += fmt.Sprintf("│ Time:   %-45s │\n", pos)

	return s
}

// renderControls renders volume and buffer status
func (m Model) renderControls() string {
	muteIcon := ""
	if m.muted {
		muteIcon = " 🔇"
	}

	volumeBar := renderBar(m.volume, 100, 10)
	bufferBar := renderBar(m.bufferUsed, m.bufferSize, 10)

	return fmt.Sprintf("│                                                      │\n"+
		"│ Volume: [%s] %d%%%s%-17s │\n"+
		"│ Buffer: [%s] %dms ahead%-18s │\n",
		volumeBar, m.volume, muteIcon, "",
		bufferBar, m.writtenMs-m.outputMs, "")
}

// renderStats renders playback statistics
func (m Model) renderStats() string {
	return fmt.Sprintf(`├──────────────────────────────────────────────────────┤
│ Stats:  Underruns: %d  Write errors: %d%-10s │
│                                                      │
`, m.underruns, m.writeErrors, "")
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return `│ space:Pause ←/→:Seek ↑/↓:Volume m:Mute n:Next q:Quit │
└──────────────────────────────────────────────────────┘
`
}

// renderDebug renders debug information
func (m Model) renderDebug() string {
	return fmt.Sprintf(`│ DEBUG:                                               │
│   Goroutines: %-38d │
│   Memory: %d KB alloc, %d KB sys%-17s │
│   Ring: %d/%d bytes  Device: %d bytes%-12s │
`, m.goroutines, m.memAlloc/1024, m.memSys/1024, "",
		m.bufferUsed, m.bufferSize, m.deviceUsed, "")
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if m.controls != nil {
			select {
			case m.controls.Quit <- QuitMsg{}:
			default:
			}
		}
		return m, tea.Quit
	case " ":
		m.paused = !m.paused
		m.send(ControlMsg{Action: ActionPause})
	case "left":
		m.send(ControlMsg{Action: ActionSeek, Value: -seekStepMs})
	case "right":
		m.send(ControlMsg{Action: ActionSeek, Value: seekStepMs})
	case "up", "+":
		m.volume = min(m.volume+volumeStep, 100)
		m.send(ControlMsg{Action: ActionVolume, Value: volumeStep})
	case "down", "-":
		m.volume = max(m.volume-volumeStep, 0)
		m.send(ControlMsg{Action: ActionVolume, Value: -volumeStep})
	case "m":
		m.muted = !m.muted
		m.send(ControlMsg{Action: ActionMute})
	case "n":
		m.send(ControlMsg{Action: ActionNext})
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

// send forwards a request without blocking the UI
func (m Model) send(msg ControlMsg) {
	if m.controls == nil {
		return
	}
	select {
	case m.controls.Requests <- msg:
	default:
	}
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.File != "" {
		m.file = msg.File
		m.index = msg.Index
		m.count = msg.Count
	}
	if msg.Encoding != "" {
		m.encoding = msg.Encoding
		m.sampleRate = msg.SampleRate
		m.channels = msg.Channels
	}
	if msg.State != "" {
		m.state = msg.State
	}
	if msg.Paused != nil {
		m.paused = *msg.Paused
	}
	if msg.Position != nil {
		m.outputMs = msg.Position.OutputMs
		m.writtenMs = msg.Position.WrittenMs
		m.durationMs = msg.Position.DurationMs
	}
	if msg.Buffer != nil {
		m.bufferUsed = msg.Buffer.Used
		m.bufferSize = msg.Buffer.Size
		m.deviceUsed = msg.Buffer.DeviceUsed
		m.underruns = msg.Buffer.Underruns
		m.writeErrors = msg.Buffer.WriteErrors
	}
	if msg.Volume != nil {
		m.volume = *msg.Volume
	}
	if msg.Muted != nil {
		m.muted = *msg.Muted
	}
	if msg.Goroutines != 0 {
		m.goroutines = msg.Goroutines
		m.memAlloc = msg.MemAlloc
		m.memSys = msg.MemSys
	}
}

// Position carries the playback clock
type Position struct {
	OutputMs   int64
	WrittenMs  int64
	DurationMs int64
}

// Buffer carries ring and device occupancy
type Buffer struct {
	Used        int
	Size        int
	DeviceUsed  int
	Underruns   int64
	WriteErrors int64
}

// StatusMsg updates TUI state; zero and nil fields leave the model unchanged
type StatusMsg struct {
	File       string
	Index      int
	Count      int
	Encoding   string
	SampleRate int
	Channels   int
	State      string
	Paused     *bool
	Position   *Position
	Buffer     *Buffer
	Volume     *int
	Muted      *bool
	Goroutines int
	MemAlloc   uint64
	MemSys     uint64
}

// Utility functions
func renderBar(value, max, width int) string {
	filled := 0
	if max > 0 {
		filled = (value * width) / max
	}
	bar := ""
	for i := 0; i < width; i++ {
		if i < filled {
			bar += "█"
		} else {
			bar += "░"
		}
	}
	return bar
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}

func channelName(channels int) string {
	switch channels {
	case 0:
		return ""
	case 1:
		return "Mono"
	case 2:
		return "Stereo"
	default:
		return fmt.Sprintf("%dch", channels)
	}
}

func formatMs(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	sec := ms / 1000
	return fmt.Sprintf("%d:%02d.%d", sec/60, sec%60, (ms%1000)/100)
}
