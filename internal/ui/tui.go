// ABOUTME: TUI initialization and control
// ABOUTME: Wraps bubbletea program for player UI
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Action identifies a user request from the TUI
type Action int

const (
	ActionPause Action = iota
	ActionSeek
	ActionNext
	ActionVolume
	ActionMute
)

// ControlMsg is a user request; Value is the seek offset in ms or the volume change
type ControlMsg struct {
	Action Action
	Value  int
}

// QuitMsg is sent when the user quits the TUI
type QuitMsg struct{}

// Controls holds channels for playback control communication
type Controls struct {
	Requests chan ControlMsg
	Quit     chan QuitMsg
}

// NewControls creates a new control handler
func NewControls() *Controls {
	return &Controls{
		Requests: make(chan ControlMsg, 10),
		Quit:     make(chan QuitMsg, 1),
	}
}

// NewModel creates a new TUI model
func NewModel(controls *Controls) Model {
	return Model{
		volume:   100,
		state:    "closed",
		controls: controls,
	}
}

// Run creates the TUI program; the caller runs it
func Run(controls *Controls) (*tea.Program, error) {
	p := tea.NewProgram(NewModel(controls), tea.WithAltScreen())
	return p, nil
}
