package dashboard

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/salus/internal/salus"
)

type fakeThermostat struct {
	mu        sync.Mutex
	state     salus.ThermostatState
	hasState  bool
	online    bool
	updatedAt time.Time
	err       error
	cmdErr    error
	temps     []float64
	modes     []salus.Mode
	refreshes int
}

func (f *fakeThermostat) Name() string     { return "Hall" }
func (f *fakeThermostat) DeviceID() string { return "STA00012345" }

func (f *fakeThermostat) State() (salus.ThermostatState, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state, f.hasState
}

func (f *fakeThermostat) UpdatedAt() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.updatedAt
}

func (f *fakeThermostat) Online() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.online
}

func (f *fakeThermostat) LastError() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *fakeThermostat) SetTargetTemperature(ctx context.Context, value float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.temps = append(f.temps, value)
	return f.cmdErr
}

func (f *fakeThermostat) SetMode(ctx context.Context, mode salus.Mode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.modes = append(f.modes, mode)
	return f.cmdErr
}

func (f *fakeThermostat) Refresh() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	return true
}

func (f *fakeThermostat) publish(target float64, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.TargetTemperatureC = target
	f.updatedAt = at
}

func newFake(target float64) *fakeThermostat {
	return &fakeThermostat{
		state: salus.ThermostatState{
			TargetTemperatureC:  target,
			CurrentTemperatureC: 19.5,
			FrostTemperatureC:   10,
			HeatingActive:       true,
			Mode:                salus.ModeOn,
		},
		hasState:  true,
		online:    true,
		updatedAt: time.Now(),
	}
}

func keyPress(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// press sends a key and runs the resulting command, feeding its message back.
func press(t *testing.T, m Model, s string) Model {
	t.Helper()
	next, cmd := m.Update(keyPress(s))
	m = next.(Model)
	if cmd != nil {
		next, _ = m.Update(cmd())
		m = next.(Model)
	}
	return m
}

func TestModel_RaiseTarget(t *testing.T) {
	device := newFake(21)
	m := press(t, New(device), "+")

	if len(device.temps) != 1 || device.temps[0] != 21.5 {
		t.Fatalf("temps = %v, want [21.5]", device.temps)
	}
	if m.Target() != 21.5 {
		t.Errorf("Target() = %v, want pending 21.5", m.Target())
	}
	if m.Status() != "set temperature sent" {
		t.Errorf("Status() = %q", m.Status())
	}
}

func TestModel_LowerTargetRoundsToStep(t *testing.T) {
	device := newFake(20.3)
	press(t, New(device), "-")

	if len(device.temps) != 1 || device.temps[0] != 20 {
		t.Errorf("temps = %v, want [20]", device.temps)
	}
}

func TestModel_TargetAtLimitSendsNothing(t *testing.T) {
	device := newFake(salus.MaxTemp)
	next, cmd := New(device).Update(keyPress("+"))

	if cmd != nil {
		t.Error("raising past the maximum should not produce a command")
	}
	if !strings.Contains(next.(Model).Status(), "outside") {
		t.Errorf("Status() = %q, want range message", next.(Model).Status())
	}
	if len(device.temps) != 0 {
		t.Errorf("temps = %v, want none", device.temps)
	}
}

func TestModel_ToggleMode(t *testing.T) {
	device := newFake(21)
	press(t, New(device), "m")

	if len(device.modes) != 1 || device.modes[0] != salus.ModeOff {
		t.Errorf("modes = %v, want [OFF]", device.modes)
	}
}

func TestModel_CommandFailureClearsPending(t *testing.T) {
	device := newFake(21)
	device.cmdErr = &salus.ClientError{Kind: salus.KindTransport, NetworkSubtype: salus.NetworkTimeout}

	m := press(t, New(device), "+")

	if m.Target() != 21 {
		t.Errorf("Target() = %v, want polled 21 after failure", m.Target())
	}
	if !strings.Contains(m.Status(), "failed") {
		t.Errorf("Status() = %q, want failure", m.Status())
	}
}

func TestModel_PendingClearedByNewerPoll(t *testing.T) {
	device := newFake(21)
	m := press(t, New(device), "+")

	// Same poll timestamp: still pending
	next, _ := m.Update(tickMsg(time.Now()))
	m = next.(Model)
	if m.Target() != 21.5 {
		t.Fatalf("Target() = %v, want pending 21.5", m.Target())
	}

	device.publish(21.5, time.Now().Add(time.Second))
	next, _ = m.Update(tickMsg(time.Now()))
	m = next.(Model)
	if m.hasPending {
		t.Error("a newer poll should clear the pending setpoint")
	}
	if m.Target() != 21.5 {
		t.Errorf("Target() = %v, want 21.5", m.Target())
	}
}

func TestModel_OneCommandAtATime(t *testing.T) {
	device := newFake(21)
	m := New(device)

	next, first := m.Update(keyPress("+"))
	m = next.(Model)
	next, second := m.Update(keyPress("+"))
	m = next.(Model)

	if first == nil {
		t.Fatal("first key press should produce a command")
	}
	if second != nil {
		t.Error("second key press should wait for the first command")
	}
	first()
	if len(device.temps) != 1 {
		t.Errorf("temps = %v, want one command", device.temps)
	}
}

func TestModel_KeysIgnoredWithoutState(t *testing.T) {
	device := &fakeThermostat{err: errors.New("portal down")}
	m := New(device)

	_, cmd := m.Update(keyPress("+"))
	if cmd != nil {
		t.Error("commands need a known state")
	}

	view := m.View()
	if !strings.Contains(view, "Waiting for the first poll") {
		t.Errorf("View() missing waiting message:\n%s", view)
	}
}

func TestModel_Refresh(t *testing.T) {
	device := newFake(21)
	m := press(t, New(device), "r")

	if device.refreshes != 1 {
		t.Errorf("refreshes = %d, want 1", device.refreshes)
	}
	if m.Status() != "refreshing" {
		t.Errorf("Status() = %q", m.Status())
	}
}

func TestModel_Quit(t *testing.T) {
	next, cmd := New(newFake(21)).Update(keyPress("q"))
	if cmd == nil {
		t.Fatal("q should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
	if !next.(Model).Quitting() {
		t.Error("Quitting() = false")
	}
	if next.(Model).View() != "" {
		t.Error("View() should be empty after quitting")
	}
}

func TestModel_View(t *testing.T) {
	view := New(newFake(21)).View()

	for _, part := range []string{"Hall", "STA00012345", "19.5 °C", "21.0 °C", "10.0 °C", "heating on", "online"} {
		if !strings.Contains(view, part) {
			t.Errorf("View() missing expected part: %s", part)
		}
	}
}
