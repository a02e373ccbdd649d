package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/muurk/salus/internal/salus"
)

// Registry represents the entire user configuration file.
// It stores the portal account, per-device metadata and preferences.
type Registry struct {
	Version     int                `yaml:"version"`
	Account     *Account           `yaml:"account,omitempty"`
	Devices     map[string]*Device `yaml:"devices,omitempty"` // Keyed by vendor device id (e.g. STA00012345)
	Preferences *Preferences       `yaml:"preferences,omitempty"`
}

// Account identifies the vendor portal login.
// Note: the password is NEVER stored - see PasswordEnvVar.
type Account struct {
	Email   string `yaml:"email"`
	BaseURL string `yaml:"base_url,omitempty"` // Portal override, empty = production
}

// Device represents user-defined metadata for a single thermostat.
type Device struct {
	Name              string    `yaml:"name,omitempty"`
	SecondHeatingZone bool      `yaml:"second_heating_zone,omitempty"` // CH2 wired (stored, not yet used)
	WaterHeating      bool      `yaml:"water_heating,omitempty"`       // Hot water wired (stored, not yet used)
	LastSeen          time.Time `yaml:"last_seen,omitempty"`
	LastTarget        float64   `yaml:"last_target,omitempty"`
	LastMode          string    `yaml:"last_mode,omitempty"`
}

// DisplayName returns the device name or the default name
func (d *Device) DisplayName() string {
	if d == nil || strings.TrimSpace(d.Name) == "" {
		return salus.DefaultName
	}
	return d.Name
}

// Preferences represents application-wide user preferences.
type Preferences struct {
	PollIntervalSeconds   int    `yaml:"poll_interval_seconds"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
	DefaultDevice         string `yaml:"default_device,omitempty"`
	ListenAddr            string `yaml:"listen_addr,omitempty"` // salus-server bind address
}

// Preference defaults
const (
	DefaultPollIntervalSeconds   = 60
	DefaultRequestTimeoutSeconds = 10
	DefaultListenAddr            = ":8500"
)

func defaultPreferences() *Preferences {
	return &Preferences{
		PollIntervalSeconds:   DefaultPollIntervalSeconds,
		RequestTimeoutSeconds: DefaultRequestTimeoutSeconds,
		ListenAddr:            DefaultListenAddr,
	}
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:     1,
		Devices:     make(map[string]*Device),
		Preferences: defaultPreferences(),
	}
}

// GetDevice retrieves device metadata by device id.
// Returns nil if the device doesn't exist in the registry.
func (r *Registry) GetDevice(id string) *Device {
	return r.Devices[id]
}

// EnsureDevice returns the entry for id, creating it if needed.
func (r *Registry) EnsureDevice(id string) *Device {
	if r.Devices == nil {
		r.Devices = make(map[string]*Device)
	}
	if device, exists := r.Devices[id]; exists {
		return device
	}
	device := &Device{}
	r.Devices[id] = device
	return device
}

// DeviceIDs returns the registered device ids in sorted order
func (r *Registry) DeviceIDs() []string {
	ids := make([]string, 0, len(r.Devices))
	for id := range r.Devices {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ResolveDevice picks the device to operate on: the explicit id if given,
// then the default device, then the only registered device.
func (r *Registry) ResolveDevice(explicit string) (string, error) {
	if id := strings.TrimSpace(explicit); id != "" {
		return id, nil
	}
	if r.Preferences != nil && r.Preferences.DefaultDevice != "" {
		return r.Preferences.DefaultDevice, nil
	}
	switch len(r.Devices) {
	case 0:
		return "", fmt.Errorf("no device configured (run 'salus-ctl login' or pass --device)")
	case 1:
		return r.DeviceIDs()[0], nil
	default:
		return "", fmt.Errorf("multiple devices configured (%s), pass --device", strings.Join(r.DeviceIDs(), ", "))
	}
}

// RecordState stores the last observed state for a device.
func (r *Registry) RecordState(id string, state salus.ThermostatState, at time.Time) {
	device := r.EnsureDevice(id)
	device.LastSeen = at
	device.LastTarget = state.TargetTemperatureC
	device.LastMode = string(state.Mode)
}

// SetAccount stores the login email and optional portal base URL.
func (r *Registry) SetAccount(email, baseURL string) {
	r.Account = &Account{Email: strings.TrimSpace(email), BaseURL: baseURL}
}

// PollInterval returns the configured poll interval
func (r *Registry) PollInterval() time.Duration {
	if r.Preferences == nil || r.Preferences.PollIntervalSeconds <= 0 {
		return DefaultPollIntervalSeconds * time.Second
	}
	return time.Duration(r.Preferences.PollIntervalSeconds) * time.Second
}

// RequestTimeout returns the configured per-request timeout
func (r *Registry) RequestTimeout() time.Duration {
	if r.Preferences == nil || r.Preferences.RequestTimeoutSeconds <= 0 {
		return DefaultRequestTimeoutSeconds * time.Second
	}
	return time.Duration(r.Preferences.RequestTimeoutSeconds) * time.Second
}
