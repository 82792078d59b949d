package tui

import (
	"fmt"
	"math"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-metronome/midi"
	"go-metronome/remote"
	"go-metronome/sequencer"
	"go-metronome/swing"
	"go-metronome/theme"
	"go-metronome/widgets"
)

// Engine is the scheduler as seen by the UI
type Engine interface {
	Start() error
	Stop()
	IsRunning() bool
	SetTempo(bpm float64) error
	Tempo() float64
	SetVolume(level float64)
	Volume() float64
	SwitchPattern(p sequencer.Pattern) error
	Pattern() sequencer.Pattern
	Position() float64
	Err() error
	Updates() <-chan struct{}
	Errors() <-chan error
}

const volumeStep = 0.05

type Model struct {
	Engine    Engine
	Swing     *swing.State
	DeviceMgr *midi.DeviceManager // nil when no pedal is configured
	Theme     *theme.Theme
	Output    string

	pedal    string // connected pedal port
	err      error
	quitting bool
}

type UpdateMsg struct{}

type ErrorMsg struct{ Err error }

type DeviceEventMsg midi.DeviceEvent

type PedalMsg midi.PedalEvent

// RemoteMsg reports a command applied by the remote control server
type RemoteMsg remote.Command

func NewModel(engine Engine, sw *swing.State, deviceMgr *midi.DeviceManager, th *theme.Theme) Model {
	return Model{
		Engine:    engine,
		Swing:     sw,
		DeviceMgr: deviceMgr,
		Theme:     th,
	}
}

func ListenForUpdates(engine Engine) tea.Cmd {
	return func() tea.Msg {
		<-engine.Updates()
		return UpdateMsg{}
	}
}

func ListenForErrors(engine Engine) tea.Cmd {
	return func() tea.Msg {
		return ErrorMsg{Err: <-engine.Errors()}
	}
}

func ListenForDevices(deviceMgr *midi.DeviceManager) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-deviceMgr.Events()
		if !ok {
			return nil
		}
		return DeviceEventMsg(event)
	}
}

func ListenForPedal(c midi.Controller) tea.Cmd {
	return func() tea.Msg {
		evt, ok := <-c.Events()
		if !ok {
			return nil
		}
		return PedalMsg(evt)
	}
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		ListenForUpdates(m.Engine),
		ListenForErrors(m.Engine),
	}
	if m.DeviceMgr != nil {
		cmds = append(cmds, ListenForDevices(m.DeviceMgr))
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			m.Engine.Stop()
			return m, tea.Quit

		case "p", " ", "space":
			m.toggle()

		case "+", "=":
			m.Swing.NudgeFrames(1)
			m.applyTempo()

		case "-", "_":
			m.Swing.NudgeFrames(-1)
			m.applyTempo()

		case "r":
			m.Swing.ToggleRatio()
			m.applyPattern()
			m.applyTempo()

		case "e":
			m.Swing.SetEmphasizeImpact(!m.Swing.EmphasizeImpact())
			m.applyPattern()

		case "[":
			m.Engine.SetVolume(m.Engine.Volume() - volumeStep)

		case "]":
			m.Engine.SetVolume(m.Engine.Volume() + volumeStep)

		case "1", "2", "3", "4":
			idx := int(msg.String()[0] - '1')
			presets := swing.Presets(m.Swing.Ratio())
			if idx < len(presets) {
				m.err = m.Swing.LoadPreset(presets[idx])
				m.applyTempo()
			}
		}

	case UpdateMsg:
		return m, ListenForUpdates(m.Engine)

	case ErrorMsg:
		m.err = msg.Err
		return m, ListenForErrors(m.Engine)

	case RemoteMsg:
		// The server already drove the engine; keep the swing in step
		if msg.Cmd == "tempo" && msg.Value != nil {
			_ = m.Swing.SetDownswingMs(swing.BPMToMs(*msg.Value))
		}

	case PedalMsg:
		m.toggle()
		if c := m.controller(msg.Source); c != nil {
			return m, ListenForPedal(c)
		}

	case DeviceEventMsg:
		event := midi.DeviceEvent(msg)
		next := ListenForDevices(m.DeviceMgr)
		switch event.Type {
		case midi.DeviceConnected:
			m.pedal = event.ID
			return m, tea.Batch(next, ListenForPedal(event.Controller))
		case midi.DeviceDisconnected:
			if m.pedal == event.ID {
				m.pedal = ""
			}
		}
		return m, next
	}

	return m, nil
}

func (m *Model) toggle() {
	if m.Engine.IsRunning() {
		m.Engine.Stop()
		return
	}
	m.err = m.Engine.Start()
}

func (m *Model) applyTempo() {
	if err := m.Engine.SetTempo(m.Swing.InternalBPM()); err != nil {
		m.err = err
	}
}

func (m *Model) applyPattern() {
	if err := m.Engine.SwitchPattern(m.Swing.Pattern()); err != nil {
		m.err = err
	}
}

func (m Model) controller(id string) midi.Controller {
	if m.DeviceMgr == nil {
		return nil
	}
	return m.DeviceMgr.Controllers()[id]
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	playing := m.Engine.IsRunning()
	sw := m.Swing

	// Styles
	headerStyle := lipgloss.NewStyle().Foreground(m.Theme.Accent())
	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())
	fgStyle := lipgloss.NewStyle().Foreground(m.Theme.FG())
	errStyle := lipgloss.NewStyle().Foreground(m.Theme.Warning()).Bold(true)

	playState := string(m.Theme.Symbols.Stopped) + " STOP"
	if playing {
		playState = string(m.Theme.Symbols.Playing) + " PLAY"
	}

	header := headerStyle.Render(fmt.Sprintf("go-metronome  %s  %3.0fbpm  %s", playState, sw.DisplayBPM(), sw.Ratio()))

	emphasis := "top"
	if sw.EmphasizeImpact() {
		emphasis = "impact"
	}
	timing := fgStyle.Render(fmt.Sprintf("swing %.0f/%.0f frames  (%.0f+%.0fms)  pulse %.0fbpm  accent:%s",
		math.Round(swing.MsToFrames(sw.BackswingMs())), math.Round(sw.DownswingFrames()),
		sw.BackswingMs(), sw.DownswingMs(), sw.PerceivedBPM(), emphasis))

	position := -1.0
	if playing {
		position = m.Engine.Position()
	}
	strip := widgets.RenderPattern(m.Engine.Pattern(), position, m.Theme)

	status := "vol " + widgets.RenderMeter(m.Engine.Volume(), 20, m.Theme)
	if m.Output != "" {
		status += dimStyle.Render("  out:" + m.Output)
	}
	if m.pedal != "" {
		status += dimStyle.Render("  pedal:" + m.pedal)
	}

	var presets []string
	for i, p := range swing.Presets(sw.Ratio()) {
		presets = append(presets, fmt.Sprintf("%d:%s", i+1, p))
	}

	help := dimStyle.Render("p:play  +/-:frame  r:ratio  e:accent  [/]:vol  " + strings.Join(presets, " ") + "  q:quit")

	// Build output
	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n")
	out.WriteString(timing)
	out.WriteString("\n\n")
	out.WriteString(strip)
	out.WriteString("\n\n")
	out.WriteString(status)

	if m.err != nil {
		out.WriteString("\n\n")
		out.WriteString(errStyle.Render("error: " + m.err.Error()))
	}

	out.WriteString("\n\n")
	out.WriteString(help)

	return out.String()
}
