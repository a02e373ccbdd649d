package dashboard

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/muurk/salus/internal/logging"
	"github.com/muurk/salus/internal/salus"
)

const (
	// SnapshotInterval is how often the model re-reads the thermostat
	SnapshotInterval = time.Second

	// DefaultCommandTimeout bounds one command sent from the dashboard
	DefaultCommandTimeout = 15 * time.Second
)

// Thermostat is the part of thermostat.Handle the dashboard drives.
type Thermostat interface {
	Name() string
	DeviceID() string
	State() (salus.ThermostatState, bool)
	UpdatedAt() time.Time
	Online() bool
	LastError() error
	SetTargetTemperature(ctx context.Context, value float64) error
	SetMode(ctx context.Context, mode salus.Mode) error
	Refresh() bool
}

// snapshotMsg carries the thermostat's current view into Update
type snapshotMsg struct {
	state     salus.ThermostatState
	hasState  bool
	online    bool
	updatedAt time.Time
	err       error
}

type tickMsg time.Time

// commandDoneMsg reports the outcome of a command started from a key press
type commandDoneMsg struct {
	command string
	err     error
}

// Model is the bubbletea model of the thermostat dashboard.
type Model struct {
	device         Thermostat
	commandTimeout time.Duration

	state     salus.ThermostatState
	hasState  bool
	online    bool
	updatedAt time.Time
	lastErr   error

	// pending is the setpoint most recently requested from the keyboard;
	// it stays ahead of state until the next poll confirms it.
	pending    float64
	pendingAt  time.Time
	hasPending bool
	busy       bool
	status     string

	width    int
	quitting bool

	spinner spinner.Model
	help    help.Model
	keys    keyMap
}

// New returns a dashboard over device.
func New(device Thermostat) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	m := Model{
		device:         device,
		commandTimeout: DefaultCommandTimeout,
		spinner:        s,
		help:           help.New(),
		keys:           defaultKeyMap(),
	}
	return m.applySnapshot(takeSnapshot(device))
}

// WithCommandTimeout overrides DefaultCommandTimeout.
func (m Model) WithCommandTimeout(d time.Duration) Model {
	if d > 0 {
		m.commandTimeout = d
	}
	return m
}

// Init starts the spinner and the snapshot ticker
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tick())
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		return m.applySnapshot(takeSnapshot(m.device)), tick()

	case snapshotMsg:
		return m.applySnapshot(msg), nil

	case commandDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.hasPending = false
			m.status = fmt.Sprintf("%s failed: %s", msg.command, salus.GetShortErrorMessage(msg.err))
			logging.Warn("Dashboard command failed", zap.String("command", msg.command), zap.Error(msg.err))
		} else {
			m.pendingAt = m.updatedAt
			m.status = msg.command + " sent"
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		if m.device.Refresh() {
			m.status = "refreshing"
		} else {
			m.status = "polling is stopped"
		}
		return m, nil
	}

	if !m.hasState {
		return m, nil
	}
	if m.busy {
		m.status = "waiting for the previous command"
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Up):
		return m.adjustTarget(salus.TemperatureStep)
	case key.Matches(msg, m.keys.Down):
		return m.adjustTarget(-salus.TemperatureStep)
	case key.Matches(msg, m.keys.Mode):
		mode := m.state.Mode.Toggle()
		m.busy = true
		m.status = fmt.Sprintf("switching heating %s", mode)
		return m, m.setModeCmd(mode)
	}
	return m, nil
}

func (m Model) adjustTarget(delta float64) (tea.Model, tea.Cmd) {
	value := roundToStep(m.Target() + delta)
	if err := salus.ValidateTemperature(value); err != nil {
		m.status = salus.GetShortErrorMessage(err)
		return m, nil
	}

	m.pending = value
	m.hasPending = true
	m.busy = true
	m.status = fmt.Sprintf("setting target to %s °C", salus.FormatTemperature(value))
	return m, m.setTemperatureCmd(value)
}

func (m Model) setTemperatureCmd(value float64) tea.Cmd {
	device, timeout := m.device, m.commandTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return commandDoneMsg{command: "set temperature", err: device.SetTargetTemperature(ctx, value)}
	}
}

func (m Model) setModeCmd(mode salus.Mode) tea.Cmd {
	device, timeout := m.device, m.commandTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return commandDoneMsg{command: "set mode", err: device.SetMode(ctx, mode)}
	}
}

func (m Model) applySnapshot(s snapshotMsg) Model {
	if s.hasState {
		if m.hasPending && !m.busy && s.updatedAt.After(m.pendingAt) {
			m.hasPending = false
		}
		m.state = s.state
		m.hasState = true
		m.updatedAt = s.updatedAt
	}
	m.online = s.online
	m.lastErr = s.err
	return m
}

// Target is the setpoint shown to the user: the pending request when one
// is outstanding, otherwise the last polled value.
func (m Model) Target() float64 {
	if m.hasPending {
		return m.pending
	}
	return m.state.TargetTemperatureC
}

// Status is the last status line
func (m Model) Status() string {
	return m.status
}

// Quitting reports whether the user asked to leave
func (m Model) Quitting() bool {
	return m.quitting
}

func takeSnapshot(device Thermostat) snapshotMsg {
	state, ok := device.State()
	return snapshotMsg{
		state:     state,
		hasState:  ok,
		online:    device.Online(),
		updatedAt: device.UpdatedAt(),
		err:       device.LastError(),
	}
}

func tick() tea.Cmd {
	return tea.Tick(SnapshotInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func roundToStep(v float64) float64 {
	return math.Round(v/salus.TemperatureStep) * salus.TemperatureStep
}
