package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/0xshey/ionthruster-test-automation/internal/thruster"
)

var (
	cyan    = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	white   = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	dim     = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	green   = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	yellow  = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	red     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	magenta = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))

	panel = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444466")).
		Padding(0, 1)
)

const historyLen = 60

var fieldLabels = map[string]string{
	thruster.KeyIoniserVoltage:     "ioniser V",
	thruster.KeyGridAnodeVoltage:   "anode V",
	thruster.KeyGridCathodeVoltage: "cathode V",
	thruster.KeyPropellantFlowRate: "flow",
}

var fieldOrder = []string{
	thruster.KeyIoniserVoltage,
	thruster.KeyGridAnodeVoltage,
	thruster.KeyGridCathodeVoltage,
	thruster.KeyPropellantFlowRate,
}

// Controller is the part of the simulator the dashboard drives.
type Controller interface {
	Start()
	Stop()
	Running() bool
	OutputOn()
	OutputOff()
	OutputEnabled() bool
	UpdateConfigFields(map[string]float64) error
	ReadTelemetry() thruster.Telemetry
}

type model struct {
	sim      Controller
	interval time.Duration
	cursor   int
	steps    map[string]float64

	tel        thruster.Telemetry
	thrustHist []float64
	tempHist   []float64
	err        error

	width  int
	height int
}

func newDashboard(sim Controller, interval time.Duration) model {
	return model{
		sim:      sim,
		interval: interval,
		steps: map[string]float64{
			thruster.KeyIoniserVoltage:     10,
			thruster.KeyGridAnodeVoltage:   10,
			thruster.KeyGridCathodeVoltage: 10,
			thruster.KeyPropellantFlowRate: 0.5,
		},
		tel:        sim.ReadTelemetry(),
		thrustHist: make([]float64, 0, historyLen),
		tempHist:   make([]float64, 0, historyLen),
		width:      80,
		height:     24,
	}
}

type tickMsg time.Time

type stoppedMsg struct{}

// stopSim stops the simulator off the update loop; Stop can wait for the worker.
func (m model) stopSim(then tea.Msg) tea.Cmd {
	return func() tea.Msg {
		m.sim.Stop()
		return then
	}
}

func (m model) poll() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Init() tea.Cmd { return m.poll() }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tickMsg:
		m.refresh()
		return m, m.poll()
	case stoppedMsg:
		m.tel = m.sim.ReadTelemetry()
		return m, nil
	}
	return m, nil
}

func (m *model) refresh() {
	m.tel = m.sim.ReadTelemetry()
	m.thrustHist = pushHistory(m.thrustHist, m.tel.Thrust)
	m.tempHist = pushHistory(m.tempHist, m.tel.ChamberTemperature)
}

func pushHistory(h []float64, v float64) []float64 {
	h = append(h, v)
	if len(h) > historyLen {
		h = h[len(h)-historyLen:]
	}
	return h
}

func (m model) handleKey(msg tea.KeyMsg) (model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, m.stopSim(tea.QuitMsg{})
	case "s", " ":
		if m.sim.Running() {
			return m, m.stopSim(stoppedMsg{})
		}
		m.sim.Start()
	case "o":
		if m.sim.OutputEnabled() {
			m.sim.OutputOff()
		} else {
			m.sim.OutputOn()
		}
	case "up", "k":
		m.cursor = (m.cursor - 1 + len(fieldOrder)) % len(fieldOrder)
	case "down", "j":
		m.cursor = (m.cursor + 1) % len(fieldOrder)
	case "+", "=", "right", "l":
		m.adjust(1)
	case "-", "_", "left", "h":
		m.adjust(-1)
	case "0":
		m.err = m.sim.UpdateConfigFields(map[string]float64{fieldOrder[m.cursor]: 0})
	}
	m.tel = m.sim.ReadTelemetry()
	return m, nil
}

func (m *model) adjust(dir float64) {
	key := fieldOrder[m.cursor]
	current := m.sim.ReadTelemetry().ConfigMap()[key]
	m.err = m.sim.UpdateConfigFields(map[string]float64{key: current + dir*m.steps[key]})
}

func (m model) View() string {
	var b strings.Builder

	status := dim.Render("STOPPED")
	if m.tel.Running {
		status = green.Render("RUNNING")
	}
	output := dim.Render("OUTPUT OFF")
	if m.tel.OutputEnabled {
		output = yellow.Render("OUTPUT ON")
	}
	b.WriteString(cyan.Bold(true).Render("ION THRUSTER") + "  " + status + "  " + output +
		dim.Render(fmt.Sprintf("  tick %d", m.tel.Ticks)) + "\n\n")

	var cfg strings.Builder
	values := m.tel.ConfigMap()
	for i, key := range fieldOrder {
		cursor := "  "
		label := dim.Render(fmt.Sprintf("%-10s", fieldLabels[key]))
		if i == m.cursor {
			cursor = magenta.Render("> ")
			label = white.Render(fmt.Sprintf("%-10s", fieldLabels[key]))
		}
		cfg.WriteString(fmt.Sprintf("%s%s %8.2f\n", cursor, label, values[key]))
	}
	cfg.WriteString(dim.Render(fmt.Sprintf("  grid       %8.2f", m.tel.Config.GridVoltage())))

	var state strings.Builder
	state.WriteString(fmt.Sprintf("%s %8.3f N\n", dim.Render("thrust     "), m.tel.Thrust))
	state.WriteString(fmt.Sprintf("%s %8.2f °C\n", dim.Render("chamber    "), m.tel.ChamberTemperature))
	state.WriteString(fmt.Sprintf("%s %8.2f kPa\n", dim.Render("pressure   "), m.tel.EnvironmentPressure))
	state.WriteString(fmt.Sprintf("%s %8.3f A\n", dim.Render("ioniser I  "), m.tel.IoniserCurrent))
	state.WriteString(fmt.Sprintf("%s %8.3f A\n", dim.Render("grid I     "), m.tel.GridCurrent))
	state.WriteString(fmt.Sprintf("%s %8.2f W", dim.Render("power      "), m.tel.PowerDraw.Total()))

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		panel.Render(cfg.String()),
		panel.Render(state.String()),
	))
	b.WriteString("\n")

	if len(m.thrustHist) > 1 {
		b.WriteString(asciigraph.Plot(m.thrustHist,
			asciigraph.Height(5), asciigraph.Width(50), asciigraph.Caption("thrust (N)")))
		b.WriteString("\n")
	}
	if len(m.tempHist) > 1 {
		b.WriteString(asciigraph.Plot(m.tempHist,
			asciigraph.Height(5), asciigraph.Width(50), asciigraph.Caption("chamber temperature (°C)")))
		b.WriteString("\n")
	}

	if m.err != nil {
		b.WriteString(red.Render(m.err.Error()) + "\n")
	}
	b.WriteString(dim.Render("s start/stop · o output · ↑↓ select · +/- adjust · 0 zero · q quit"))
	return b.String()
}

// Run shows the dashboard until the user quits. The simulator is stopped on exit.
func Run(sim Controller, interval time.Duration) error {
	p := tea.NewProgram(newDashboard(sim, interval), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
