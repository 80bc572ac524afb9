package tui

import (
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"idledata/pkg/market"
	"idledata/pkg/overlay"
)

const maxLogMessages = 8

// LogMessage is one line of the activity pane
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
}

// Model is the watch view: an input for inspect links, the price rows of
// the current selection and a short activity log
type Model struct {
	input   textinput.Model
	spinner spinner.Model

	handlers Handlers

	selection *overlay.Selection
	state     string
	summary   market.Summary
	loading   bool
	hasKey    bool

	logMessages []LogMessage
	width       int
	height      int
	showHelp    bool

	mu sync.RWMutex
}

// Handlers connect the view to an overlay session
type Handlers struct {
	// OnLink receives every submitted link that needs a lookup.
	OnLink func(href string)
	// OnClear is called when the user clears the selection.
	OnClear func()
}

// NewModel creates the watch model
func NewModel(handlers Handlers, hasKey bool) Model {
	in := textinput.New()
	in.Placeholder = "https://web.idle-mmo.com/item/inspect/<item>?tier=0"
	in.Prompt = "inspect> "
	in.CharLimit = 512
	in.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(gold)

	return Model{
		input:    in,
		spinner:  s,
		handlers: handlers,
		hasKey:   hasKey,
		summary:  market.StateSummary(market.StateNoData),
	}
}

// Init starts the cursor blink and the spinner
func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// Submit handles a link typed by the user. Links that do not parse, or
// that show the item already on screen, are logged and otherwise ignored.
func (m *Model) Submit(href string) {
	sel, err := overlay.ParseInspectURL(href)
	if err != nil {
		m.AddLogMessage("WARN", "Not an inspect link: "+href)
		return
	}

	m.mu.Lock()
	same := m.selection != nil && *m.selection == sel && !m.loading
	if !same {
		m.loading = true
		m.state = market.StateLoading
		m.summary = market.StateSummary(market.StateLoading)
	}
	m.mu.Unlock()

	if same {
		m.AddLogMessage("INFO", "Already showing "+sel.String())
		return
	}
	m.AddLogMessage("INFO", "Looking up "+sel.String())
	if m.handlers.OnLink != nil {
		m.handlers.OnLink(href)
	}
}

// ApplyUpdate shows a rendered overlay update
func (m *Model) ApplyUpdate(u overlay.Update) {
	m.mu.Lock()
	sel := u.Selection
	m.selection = &sel
	m.state = u.State
	m.summary = u.Summary
	m.loading = false
	m.mu.Unlock()

	switch u.State {
	case market.StateError:
		m.AddLogMessage("ERROR", "Could not fetch "+sel.String())
	case market.StateNoAPIKey:
		m.AddLogMessage("WARN", "No API key; run 'idledata auth login'")
	default:
		m.AddLogMessage("SUCCESS", "Updated "+sel.String())
	}
}

// SetKeyStatus records whether an API key is available
func (m *Model) SetKeyStatus(hasKey bool) {
	m.mu.Lock()
	m.hasKey = hasKey
	m.mu.Unlock()
}

// Clear forgets the selection so the next link always renders
func (m *Model) Clear() {
	m.mu.Lock()
	m.selection = nil
	m.state = ""
	m.loading = false
	m.summary = market.StateSummary(market.StateNoData)
	m.mu.Unlock()

	if m.handlers.OnClear != nil {
		m.handlers.OnClear()
	}
}

// AddLogMessage appends to the activity pane, keeping the newest lines
func (m *Model) AddLogMessage(level, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logMessages = append(m.logMessages, LogMessage{Time: time.Now(), Level: level, Message: message})
	if len(m.logMessages) > maxLogMessages {
		m.logMessages = m.logMessages[len(m.logMessages)-maxLogMessages:]
	}
}

// Selection returns the selection on screen, if any
func (m *Model) Selection() (overlay.Selection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.selection == nil {
		return overlay.Selection{}, false
	}
	return *m.selection, true
}
