package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"idledata/pkg/overlay"
)

// TUI runs the market watch view. It is an overlay.Renderer, so a Session
// can render into it directly.
type TUI struct {
	program *tea.Program
	model   *Model
}

// NewTUI creates the watch view
func NewTUI(handlers Handlers, hasKey bool) *TUI {
	model := NewModel(handlers, hasKey)
	program := tea.NewProgram(&model, tea.WithAltScreen())

	return &TUI{
		program: program,
		model:   &model,
	}
}

// Start runs the view until the user quits
func (t *TUI) Start() error {
	_, err := t.program.Run()
	return err
}

// Stop quits the view
func (t *TUI) Stop() {
	t.program.Quit()
}

// Send sends a message to the TUI
func (t *TUI) Send(msg tea.Msg) {
	if t.program != nil {
		t.program.Send(msg)
	}
}

// Render shows an overlay update
func (t *TUI) Render(update overlay.Update) {
	t.Send(UpdateMsg{Update: update})
}

// SetKeyStatus reports whether an API key is available
func (t *TUI) SetKeyStatus(hasKey bool) {
	t.Send(KeyStatusMsg{HasKey: hasKey})
}

// Log adds a line to the activity pane
func (t *TUI) Log(level, message string) {
	t.Send(SendLog(level, message))
}
