package watch

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/antstride/internal/monitor"
	"github.com/muurk/antstride/internal/stride"
	"github.com/muurk/antstride/internal/ui"
)

// Messages from the feed
type readingMsg struct {
	reading *monitor.Reading
}

type feedErrMsg struct {
	err error
}

// ErrFeedClosed is returned when the monitor ends the feed
var ErrFeedClosed = errors.New("monitor closed the feed")

// keyMap defines key bindings for the watch view
type keyMap struct {
	Quit key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Quit}}
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "esc", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// Model is the live view of one monitor
type Model struct {
	source  Source
	addr    string
	spinner spinner.Model
	help    help.Model
	reading *monitor.Reading
	updates int

	Width    int
	Err      error
	Quitting bool
}

// NewModel creates a view reading from source. addr is only displayed.
func NewModel(source Source, addr string) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = ui.SearchingStyle

	return Model{
		source:  source,
		addr:    addr,
		spinner: s,
		help:    help.New(),
		Width:   ui.GetTerminalWidth(),
	}
}

// waitForReading reads the next reading off the feed
func waitForReading(source Source) tea.Cmd {
	return func() tea.Msg {
		reading, err := source.Next()
		if err != nil {
			return feedErrMsg{err: err}
		}
		return readingMsg{reading: reading}
	}
}

// Init starts the spinner and the first feed read
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForReading(m.source))
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.Quitting = true
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case readingMsg:
		m.reading = msg.reading
		m.updates++
		return m, waitForReading(m.source)

	case feedErrMsg:
		m.Err = msg.err
		if errors.Is(msg.err, io.EOF) {
			m.Err = ErrFeedClosed
		}
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// Paired reports whether the last reading had a paired device
func (m Model) Paired() bool {
	return m.reading != nil && m.reading.Paired
}

// View renders the model
func (m Model) View() string {
	if m.Quitting {
		return ""
	}

	var b strings.Builder
	switch {
	case m.Err != nil:
		b.WriteString(ui.RenderError("Connection lost", m.Err, []string{
			"Check that the monitor at " + m.addr + " is still running",
		}, m.Width))

	case !m.Paired():
		line := m.spinner.View() + " " + SearchingLine(m.addr)
		if m.reading != nil {
			line += ui.SubtitleStyle.Render(fmt.Sprintf(" (%d messages)", m.reading.Messages))
		}
		b.WriteString(line)

	default:
		b.WriteString(m.renderReading())
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(keys))
	b.WriteString("\n")
	return b.String()
}

// SearchingLine is the status shown while the channel has not paired
func SearchingLine(addr string) string {
	return ui.SearchingStyle.Render("Searching") + " for a stride sensor on " + addr + "..."
}

func (m Model) renderReading() string {
	r := m.reading
	snap := stride.Snapshot{Device: r.Device, State: r.State}

	title := "Stride sensor"
	if id, ok := r.Device.Get(); ok {
		title += " " + id.String()
	}
	subtitle := lipgloss.JoinHorizontal(lipgloss.Top,
		ui.PairedStyle.Render(ui.SuccessMarker+" paired"),
		ui.SubtitleStyle.Render(fmt.Sprintf("  %s  %d messages  %d updates",
			m.addr, r.Messages, m.updates)),
	)

	return ui.RenderFields(title, subtitle, ui.SnapshotFields(snap), m.Width)
}
