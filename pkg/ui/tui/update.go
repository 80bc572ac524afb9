package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"idledata/pkg/overlay"
)

// Message types for the TUI

// UpdateMsg carries an overlay update from the session
type UpdateMsg struct {
	Update overlay.Update
}

// KeyStatusMsg reports that the stored API key was added or removed
type KeyStatusMsg struct {
	HasKey bool
}

// LogMsg adds a line to the activity pane
type LogMsg struct {
	Level   string
	Message string
}

// Update handles all messages and updates the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case UpdateMsg:
		m.ApplyUpdate(msg.Update)
		return m, nil

	case KeyStatusMsg:
		m.SetKeyStatus(msg.HasKey)
		if msg.HasKey {
			m.AddLogMessage("INFO", "API key updated")
		} else {
			m.AddLogMessage("WARN", "API key removed")
		}
		return m, nil

	case LogMsg:
		m.AddLogMessage(msg.Level, msg.Message)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleKeyPress handles keyboard input
func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		return m, tea.Quit

	case "enter":
		href := strings.TrimSpace(m.input.Value())
		m.input.SetValue("")
		if href != "" {
			m.Submit(href)
		}
		return m, nil

	case "ctrl+r":
		m.Clear()
		m.AddLogMessage("INFO", "Selection cleared")
		return m, nil

	case "ctrl+l":
		m.mu.Lock()
		m.logMessages = nil
		m.mu.Unlock()
		return m, nil

	case "ctrl+h", "f1":
		m.showHelp = !m.showHelp
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// SendLog creates a log message
func SendLog(level, message string) tea.Msg {
	return LogMsg{Level: level, Message: message}
}
