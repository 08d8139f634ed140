package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-looper/debug"
	"go-looper/engine"
	"go-looper/looper"
	"go-looper/measure"
	"go-looper/midi"
	"go-looper/theme"
	"go-looper/widgets"
)

// Engine is the part of *engine.Manager the UI talks to
type Engine interface {
	Send(cmd engine.Command) bool
	Updates() <-chan looper.Snapshot
	Status() <-chan engine.Status
}

type Model struct {
	Engine     Engine
	Theme      *theme.Theme
	ExportPath string

	snapshot looper.Snapshot
	synced   bool
	status   engine.Status
	inName   string
	outName  string
	width    int
	showHelp bool
	quitting bool
}

type UpdateMsg looper.Snapshot

type StatusMsg engine.Status

// DeviceEventMsg is sent with Program.Send by whoever watches the ports
type DeviceEventMsg midi.DeviceEvent

// engineClosedMsg means the engine stopped and its channels are closed
type engineClosedMsg struct{}

func NewModel(e Engine, th *theme.Theme, exportPath string) Model {
	return Model{
		Engine:     e,
		Theme:      th,
		ExportPath: exportPath,
	}
}

func ListenForUpdates(updates <-chan looper.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-updates
		if !ok {
			return engineClosedMsg{}
		}
		return UpdateMsg(snap)
	}
}

func ListenForStatus(status <-chan engine.Status) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-status
		if !ok {
			return engineClosedMsg{}
		}
		return StatusMsg(s)
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		ListenForUpdates(m.Engine.Updates()),
		ListenForStatus(m.Engine.Status()),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg.String())

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case UpdateMsg:
		m.snapshot = looper.Snapshot(msg)
		m.synced = true
		debug.LogEvery(300, "tui", "snapshot %s cursor=%d samples=%d", m.snapshot.State, m.snapshot.TimeCursor, len(m.snapshot.Samples))
		return m, ListenForUpdates(m.Engine.Updates())

	case StatusMsg:
		m.status = engine.Status(msg)
		return m, ListenForStatus(m.Engine.Status())

	case DeviceEventMsg:
		debug.Log("tui", "%s: %s", msg.Type, msg.Name)
		switch msg.Type {
		case midi.InputConnected:
			m.inName = msg.Name
		case midi.InputDisconnected:
			m.inName = ""
		case midi.OutputConnected:
			m.outName = msg.Name
		case midi.OutputDisconnected:
			m.outName = ""
		}

	case engineClosedMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

func (m Model) handleKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "q", "esc", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "?":
		m.showHelp = !m.showHelp

	case "+", "=":
		m.send(engine.Command{Type: engine.CmdSetTempo, Tempo: m.tempo() + tempoStep})

	case "-", "_":
		tempo := m.tempo()
		if tempo > tempoStep {
			tempo -= tempoStep
		} else {
			tempo = 1
		}
		m.send(engine.Command{Type: engine.CmdSetTempo, Tempo: tempo})

	default:
		cmd, ok := lookupKey(key)
		if !ok {
			break
		}
		c := engine.Command{Type: cmd}
		if cmd == engine.CmdExport {
			c.Path = m.ExportPath
		}
		m.send(c)
	}
	return m, nil
}

func (m Model) send(cmd engine.Command) {
	if !m.Engine.Send(cmd) {
		debug.Log("tui", "%s dropped, engine busy", cmd.Type)
	}
}

// tempo is the last tempo the engine reported
func (m Model) tempo() uint32 {
	if !m.synced {
		return measure.DefaultTempoBPM
	}
	return m.snapshot.Measure.TempoBPM
}

func (m Model) stateLabel() string {
	s := m.snapshot
	sym := m.Theme.Symbols
	var label string
	switch s.State {
	case looper.Recording:
		label = fmt.Sprintf("%c REC %d", sym.Record, s.RecordedEvents)
	case looper.Pause:
		label = fmt.Sprintf("%c PAUSE", sym.Pause)
	default:
		label = fmt.Sprintf("%c LOOP", sym.Loop)
	}
	if s.Pending {
		label += " > " + s.NextState.String()
	}
	return label
}

func (m Model) stateColor() lipgloss.Color {
	switch m.snapshot.State {
	case looper.Recording:
		return m.Theme.Active()
	case looper.Pause:
		return m.Theme.Muted()
	}
	return m.Theme.Success()
}

func portName(name string) string {
	if name == "" {
		return "-"
	}
	return name
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	headerStyle := lipgloss.NewStyle().Foreground(m.Theme.Accent())
	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())
	stateStyle := lipgloss.NewStyle().Foreground(m.stateColor()).Bold(true)

	var out strings.Builder
	out.WriteString("\n")

	if !m.synced {
		out.WriteString(headerStyle.Render("go-looper  waiting for engine..."))
		out.WriteString("\n")
		return out.String()
	}

	s := m.snapshot
	header := headerStyle.Render(fmt.Sprintf("go-looper  %3dbpm %d/4  measure %d/%d  quant %3d/%d",
		s.Measure.TempoBPM, s.Measure.MeasureSizeBPM,
		s.CurrentMeasure()+1, s.AmountOfMeasures,
		s.CurrentQuant(), s.LoopQuants()))
	out.WriteString(header)
	out.WriteString("  ")
	out.WriteString(stateStyle.Render(m.stateLabel()))
	out.WriteString("\n")
	out.WriteString(dimStyle.Render(fmt.Sprintf("in: %s  out: %s", portName(m.inName), portName(m.outName))))
	out.WriteString("\n\n")

	out.WriteString(renderRoll(m.Theme, s, m.width))
	out.WriteString("\n\n")

	if m.status.Text != "" {
		statusStyle := lipgloss.NewStyle().Foreground(m.Theme.FG())
		if m.status.Err != nil {
			statusStyle = statusStyle.Foreground(m.Theme.Warning())
		}
		out.WriteString(statusStyle.Render(m.status.String()))
		out.WriteString("\n")
	}

	if m.showHelp {
		out.WriteString(keyHelp())
		out.WriteString("\n\n")
		out.WriteString(m.legend())
	} else {
		out.WriteString(dimStyle.Render(keyLine()))
	}

	return out.String()
}

func (m Model) legend() string {
	sym := m.Theme.Symbols
	note := [3]uint8(m.Theme.ChannelRGB(0))
	muted := [3]uint8(m.Theme.RGB(theme.RoleMuted))
	return strings.Join([]string{
		"Roll",
		widgets.RenderLegendItem(note, string(sym.NoteStart), "a note starts"),
		widgets.RenderLegendItem(note, string(sym.NoteHold), "a note is held"),
		widgets.RenderLegendItem(note, string(sym.Event), "controller change"),
		widgets.RenderLegendItem(muted, string(sym.Bar), "bar line"),
		widgets.RenderLegendItem(muted, string(sym.Playhead), "playhead"),
	}, "\n")
}
