// Package tui is a live terminal view of a running beatsblox app.
package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"

	"github.com/icco/beatsblox/internal/music"
	"github.com/icco/beatsblox/internal/theory"
)

const (
	maxMessageHistory = 20
	meterWidth        = 20
	refreshInterval   = 60 * time.Millisecond
)

// Source is what the monitor watches and controls.
type Source interface {
	Status() music.Status
	StopAll()
}

type tickMsg time.Time

type logMsg string

// DoneMsg reports that the program driving the source finished.
type DoneMsg struct{ Err error }

type keyMap struct {
	Quit    key.Binding
	StopAll key.Binding
	Clear   key.Binding
	Help    key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.StopAll, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.StopAll, k.Clear}, {k.Help, k.Quit}}
}

var keys = keyMap{
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	StopAll: key.NewBinding(key.WithKeys("s", " "), key.WithHelp("s", "stop all")),
	Clear:   key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear log")),
	Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more keys")),
}

// meter follows a track's peak level with a spring so it rises and falls
// smoothly between polls.
type meter struct {
	pos, vel float64
}

// Model is the bubbletea model of the monitor.
type Model struct {
	title  string
	source Source
	hook   *LogHook

	status   music.Status
	meters   map[string]*meter
	spring   harmonica.Spring
	messages []string
	count    int
	done     bool
	err      error

	help   help.Model
	width  int
	height int
}

// New creates a monitor for source. A nil hook shows no log messages.
func New(title string, source Source, hook *LogHook) *Model {
	return &Model{
		title:  title,
		source: source,
		hook:   hook,
		meters: make(map[string]*meter),
		spring: harmonica.NewSpring(harmonica.FPS(int(time.Second/refreshInterval)), 6.0, 0.7),
		help:   help.New(),
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(tick(), m.waitForLog())
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *Model) waitForLog() tea.Cmd {
	if m.hook == nil {
		return nil
	}
	return func() tea.Msg {
		return logMsg(<-m.hook.entries)
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tickMsg:
		m.refresh()
		return m, tick()

	case logMsg:
		m.addMessage(string(msg))
		return m, m.waitForLog()

	case DoneMsg:
		m.done = true
		m.err = msg.Err
		if msg.Err != nil {
			m.addMessage("ERROR " + msg.Err.Error())
		} else {
			m.addMessage("program finished")
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.StopAll):
			m.source.StopAll()
			m.addMessage("stop all")
		case key.Matches(msg, keys.Clear):
			m.messages = nil
		case key.Matches(msg, keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}
	}
	return m, nil
}

func (m *Model) refresh() {
	m.status = m.source.Status()
	seen := make(map[string]bool, len(m.status.Tracks))
	for _, tr := range m.status.Tracks {
		seen[tr.ID] = true
		mt, ok := m.meters[tr.ID]
		if !ok {
			mt = &meter{}
			m.meters[tr.ID] = mt
		}
		mt.pos, mt.vel = m.spring.Update(mt.pos, mt.vel, float64(tr.Level))
	}
	for id := range m.meters {
		if !seen[id] {
			delete(m.meters, id)
		}
	}
}

func (m *Model) addMessage(s string) {
	m.count++
	m.messages = append([]string{s}, m.messages...)
	if len(m.messages) > maxMessageHistory {
		m.messages = m.messages[:maxMessageHistory]
	}
}

var (
	titleStyle        = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FAFAFA")).Background(lipgloss.Color("#7D56F4")).Padding(0, 1)
	subtitleStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	statusStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")).Bold(true)
	stoppedStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500")).Bold(true)
	errorStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")).Bold(true)
	noteStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD700"))
	recordingStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4040")).Bold(true)
	meterStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#00D7FF"))
	logStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
	logHighlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF"))
	trackNameStyle    = lipgloss.NewStyle().Bold(true).Width(12)
)

func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("♫ "+m.title) + "\n\n")

	st := m.status
	state := statusStyle.Render("● running")
	if !st.Running {
		state = stoppedStyle.Render("■ stopped")
	}
	b.WriteString(fmt.Sprintf("%s  %s %s  %s %.0f  %s %d/%d\n",
		state,
		subtitleStyle.Render("time"), st.Time.Truncate(time.Millisecond),
		subtitleStyle.Render("bpm"), st.BPM,
		subtitleStyle.Render("cohorts"), st.Cohorts, st.Arrived))
	if m.done {
		if m.err != nil {
			b.WriteString(errorStyle.Render("program failed") + "\n")
		} else {
			b.WriteString(subtitleStyle.Render("program finished") + "\n")
		}
	}

	b.WriteString("\n" + subtitleStyle.Render("Tracks:") + "\n")
	active := make(map[int]bool)
	for _, tr := range st.Tracks {
		b.WriteString("  " + trackNameStyle.Render(tr.ID))
		b.WriteString(meterStyle.Render(renderMeter(m.meterLevel(tr.ID))))
		b.WriteString(" " + tr.Instrument)
		if dev := trackDevice(tr.MIDIDevice, tr.AudioDevice); dev != "" {
			b.WriteString(subtitleStyle.Render(" ← " + dev))
		}
		if tr.Recording {
			b.WriteString(" " + recordingStyle.Render("● REC"))
		}
		if len(tr.Effects) > 0 {
			names := make([]string, len(tr.Effects))
			for i, fx := range tr.Effects {
				names[i] = fx.Name
			}
			sort.Strings(names)
			b.WriteString(subtitleStyle.Render(" [" + strings.Join(names, ", ") + "]"))
		}
		if len(tr.ActiveNotes) > 0 {
			names := make([]string, len(tr.ActiveNotes))
			for i, n := range tr.ActiveNotes {
				names[i] = theory.NoteName(n)
				active[n] = true
			}
			b.WriteString(" " + noteStyle.Render(strings.Join(names, " ")))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n" + renderKeyboard(active) + "\n")

	b.WriteString("\n" + subtitleStyle.Render(fmt.Sprintf("Message Log: [%d total]", m.count)) + "\n")
	if len(m.messages) == 0 {
		b.WriteString("  " + logStyle.Render("(nothing yet)") + "\n")
	} else {
		for i, msg := range m.messages[:min(len(m.messages), 10)] {
			if i == 0 {
				b.WriteString("  " + logHighlightStyle.Render("▶ "+msg) + "\n")
			} else {
				b.WriteString("  " + logStyle.Render("  "+msg) + "\n")
			}
		}
	}

	b.WriteString("\n" + m.help.View(keys))
	return b.String()
}

func (m *Model) meterLevel(id string) float64 {
	if mt, ok := m.meters[id]; ok {
		return mt.pos
	}
	return 0
}

// renderMeter draws level in [0, 1] as a bar; overshoot from the spring is
// clipped.
func renderMeter(level float64) string {
	n := int(level*meterWidth + 0.5)
	n = max(0, min(n, meterWidth))
	return "[" + strings.Repeat("|", n) + strings.Repeat(" ", meterWidth-n) + "]"
}

func trackDevice(midiDevice, audioDevice string) string {
	if midiDevice != "" {
		return midiDevice
	}
	return audioDevice
}
