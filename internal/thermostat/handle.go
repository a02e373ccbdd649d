package thermostat

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/salus/internal/logging"
	"github.com/muurk/salus/internal/poller"
	"github.com/muurk/salus/internal/salus"
)

// Observer receives poll and command outcomes. *metrics.Recorder satisfies it.
type Observer interface {
	ObservePoll(state salus.ThermostatState, err error)
	ObserveCommand(command string, err error)
}

// Options configure a Handle. The zero value is usable.
type Options struct {
	// Name shown to users (default salus.DefaultName)
	Name string

	// PollInterval between state refreshes (default poller.DefaultInterval)
	PollInterval time.Duration

	// Client options passed to salus.NewClient
	Client salus.Options

	// Observer is notified of every poll and command, if set
	Observer Observer
}

// Handle owns one device client and its poll loop
type Handle struct {
	name     string
	client   *salus.Client
	loop     *poller.Loop
	observer Observer

	mu            sync.Mutex
	online        bool
	stateHooks    []func(salus.ThermostatState)
	onlineHooks   []func(bool)
	lastPollError error
}

// New creates a stopped handle
func New(creds salus.Credentials, deviceID string, opts Options) (*Handle, error) {
	client, err := salus.NewClient(creds, deviceID, opts.Client)
	if err != nil {
		return nil, err
	}
	return newHandle(client, opts), nil
}

func newHandle(client *salus.Client, opts Options) *Handle {
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		name = salus.DefaultName
	}

	h := &Handle{
		name:     name,
		client:   client,
		loop:     poller.New(client, poller.Options{Interval: opts.PollInterval}),
		observer: opts.Observer,
	}
	h.loop.Subscribe(h.handleState)
	h.loop.OnError(h.handlePollError)
	return h
}

// Start begins polling; the first poll happens immediately
func (h *Handle) Start() {
	logging.Info("Starting thermostat",
		zap.String("name", h.name),
		zap.String("device_id", h.client.DeviceID()),
		zap.Duration("interval", h.loop.Interval()),
	)
	h.loop.Start()
}

// Stop ends polling. Results of an in-flight poll are discarded.
func (h *Handle) Stop() {
	h.loop.Stop()
	logging.Info("Stopped thermostat", zap.String("device_id", h.client.DeviceID()))
}

// Running reports whether the handle is polling
func (h *Handle) Running() bool {
	return h.loop.Running()
}

// OnStateChanged registers fn to receive every successfully polled state
func (h *Handle) OnStateChanged(fn func(salus.ThermostatState)) {
	h.mu.Lock()
	h.stateHooks = append(h.stateHooks, fn)
	h.mu.Unlock()
}

// OnOnlineChanged registers fn to be called when the device goes online or offline
func (h *Handle) OnOnlineChanged(fn func(bool)) {
	h.mu.Lock()
	h.onlineHooks = append(h.onlineHooks, fn)
	h.mu.Unlock()
}

// SetTargetTemperature sets the heating setpoint and refreshes state on success
func (h *Handle) SetTargetTemperature(ctx context.Context, value float64) error {
	err := h.client.SetTargetTemperature(ctx, value)
	h.afterCommand("set_temperature", err)
	return err
}

// SetMode switches heating on or off and refreshes state on success
func (h *Handle) SetMode(ctx context.Context, mode salus.Mode) error {
	err := h.client.SetMode(ctx, mode)
	h.afterCommand("set_mode", err)
	return err
}

// Refresh asks the poll loop for an immediate cycle. It reports false when
// the handle is stopped.
func (h *Handle) Refresh() bool {
	return h.loop.Refresh()
}

func (h *Handle) afterCommand(command string, err error) {
	if h.observer != nil {
		h.observer.ObserveCommand(command, err)
	}
	if err != nil {
		logging.Warn("Command failed",
			zap.String("device_id", h.client.DeviceID()),
			zap.String("command", command),
			zap.Error(err),
		)
		return
	}
	h.loop.Refresh()
}

// State returns the last published state
func (h *Handle) State() (salus.ThermostatState, bool) {
	state, _, ok := h.loop.Last()
	return state, ok
}

// UpdatedAt returns when the last published state was fetched
func (h *Handle) UpdatedAt() time.Time {
	_, at, _ := h.loop.Last()
	return at
}

// Online reports whether the most recent poll succeeded
func (h *Handle) Online() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.online
}

// LastError returns the error of the most recent failed poll, or nil after a success
func (h *Handle) LastError() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastPollError
}

func (h *Handle) Name() string     { return h.name }
func (h *Handle) DeviceID() string { return h.client.DeviceID() }
func (h *Handle) MinTemp() float64 { return salus.MinTemp }
func (h *Handle) MaxTemp() float64 { return salus.MaxTemp }

// UniqueID identifies the climate entity: "<name>_climate"
func (h *Handle) UniqueID() string {
	return h.name + "_climate"
}

// Client returns the underlying device client
func (h *Handle) Client() *salus.Client {
	return h.client
}

func (h *Handle) handleState(state salus.ThermostatState) {
	if h.observer != nil {
		h.observer.ObservePoll(state, nil)
	}

	h.mu.Lock()
	changed := !h.online
	h.online = true
	h.lastPollError = nil
	stateHooks := slices.Clone(h.stateHooks)
	onlineHooks := slices.Clone(h.onlineHooks)
	h.mu.Unlock()

	if changed {
		for _, fn := range onlineHooks {
			fn(true)
		}
	}
	for _, fn := range stateHooks {
		fn(state)
	}
}

func (h *Handle) handlePollError(err error) {
	if h.observer != nil {
		h.observer.ObservePoll(salus.ThermostatState{}, err)
	}

	h.mu.Lock()
	changed := h.online
	h.online = false
	h.lastPollError = err
	onlineHooks := slices.Clone(h.onlineHooks)
	h.mu.Unlock()

	if changed {
		logging.Warn("Thermostat went offline",
			zap.String("device_id", h.client.DeviceID()),
			zap.String("reason", salus.GetShortErrorMessage(err)),
		)
		for _, fn := range onlineHooks {
			fn(false)
		}
	}
}
