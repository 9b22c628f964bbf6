// SPDX-License-Identifier: MIT

// Package tui implements the terminal control surface and the device picker.
package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ledspectrum/internal/led"
	"ledspectrum/internal/state"
)

// Gain slider range and step.
const (
	MinGain  = 0.001
	MaxGain  = 5.0
	GainStep = 1.25
)

// Stats reports frame delivery counters.
type Stats interface {
	Sent() uint64
	Dropped() uint64
}

type controlKeys struct {
	GainUp, GainDown, Color, Pause, Quit key.Binding
}

func newControlKeys() controlKeys {
	return controlKeys{
		GainUp:   key.NewBinding(key.WithKeys("+", "=", "up")),
		GainDown: key.NewBinding(key.WithKeys("-", "_", "down")),
		Color:    key.NewBinding(key.WithKeys("c")),
		Pause:    key.NewBinding(key.WithKeys("p", " ", "space")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c")),
	}
}

type tickMsg time.Time

// DoneMsg tells the control surface the pipeline has stopped.
type DoneMsg struct {
	Err error
}

// ControlModel is the control surface: it writes gain, color mode and the
// paused flag into the shared state and shows the latest frame.
type ControlModel struct {
	state  *state.State
	stats  Stats
	enc    *led.Encoder
	period time.Duration
	keys   controlKeys
	onQuit func()

	heights  []int
	loudness float64
	err      error
	quitting bool
}

// NewControlModel returns a control surface over st refreshing every period.
// onQuit runs once when the operator quits; stats may be nil.
func NewControlModel(st *state.State, enc *led.Encoder, stats Stats, period time.Duration, onQuit func()) ControlModel {
	if onQuit == nil {
		onQuit = func() {}
	}
	heights, loudness := st.HeightsInto(nil)
	return ControlModel{
		state:    st,
		stats:    stats,
		enc:      enc,
		period:   period,
		keys:     newControlKeys(),
		onQuit:   onQuit,
		heights:  heights,
		loudness: loudness,
	}
}

func (m ControlModel) tick() tea.Cmd {
	return tea.Tick(m.period, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init starts the refresh ticker.
func (m ControlModel) Init() tea.Cmd {
	return m.tick()
}

func (m ControlModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.heights, m.loudness = m.state.HeightsInto(m.heights)
		return m, m.tick()

	case DoneMsg:
		m.err = msg.Err
		m.quitting = true
		return m, tea.Quit

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			m.onQuit()
			return m, tea.Quit
		case key.Matches(msg, m.keys.GainUp):
			m.scaleGain(GainStep)
		case key.Matches(msg, m.keys.GainDown):
			m.scaleGain(1 / GainStep)
		case key.Matches(msg, m.keys.Color):
			m.state.CycleColorMode()
		case key.Matches(msg, m.keys.Pause):
			m.state.TogglePaused()
		}
	}
	return m, nil
}

func (m ControlModel) scaleGain(f float64) {
	g := math.Min(MaxGain, math.Max(MinGain, m.state.Gain()*f))
	_ = m.state.SetGain(g) // g is always in range
}

// Err returns the pipeline error delivered with DoneMsg.
func (m ControlModel) Err() error { return m.err }

// View renders the matrix preview and the control state.
func (m ControlModel) View() string {
	if m.quitting {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("LED Spectrum"))
	sb.WriteString("\n\n")
	sb.WriteString(m.renderMatrix())
	sb.WriteString("\n")

	mode := m.state.ColorMode()
	status := fmt.Sprintf("gain %.3f  •  mode %s  •  loudness %6.1f dB", m.state.Gain(), mode, m.loudness)
	if m.stats != nil {
		status += fmt.Sprintf("  •  frames %d", m.stats.Sent())
		if d := m.stats.Dropped(); d > 0 {
			status += fmt.Sprintf(" (%d dropped)", d)
		}
	}
	sb.WriteString(infoStyle.Render(status))
	if m.state.Paused() {
		sb.WriteString("  ")
		sb.WriteString(pausedStyle.Render("PAUSED"))
	}
	sb.WriteString("\n\n")
	sb.WriteString(infoStyle.Render("+/-: Gain • c: Color mode • p/space: Pause • q: Quit"))
	sb.WriteString("\n")
	return sb.String()
}

// renderMatrix draws the bars top row first, as the matrix shows them.
func (m ControlModel) renderMatrix() string {
	mode := m.state.ColorMode()
	cells := make([]lipgloss.Style, m.enc.Width)
	for x := range cells {
		cells[x] = lipgloss.NewStyle().Foreground(lipgloss.Color(m.enc.ColumnColor(x, mode).Hex()))
	}

	var sb strings.Builder
	for y := m.enc.Height - 1; y >= 0; y-- {
		for x := 0; x < m.enc.Width; x++ {
			h := 0
			if x < len(m.heights) {
				h = m.heights[x]
			}
			if y < h {
				sb.WriteString(cells[x].Render("██"))
			} else {
				sb.WriteString(dimStyle.Render("··"))
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// NewControlProgram returns the Bubble Tea program for m.
func NewControlProgram(m ControlModel, opts ...tea.ProgramOption) *tea.Program {
	return tea.NewProgram(m, append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)...)
}
