package salus

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	// MinTemp is the lowest setpoint the iT500 accepts, in °C
	MinTemp = 5.0

	// MaxTemp is the highest setpoint the iT500 accepts, in °C
	MaxTemp = 34.5

	// TemperatureStep is the setpoint resolution exposed by the vendor UI
	TemperatureStep = 0.5

	// DefaultName is the display name used when the collaborator does not provide one
	DefaultName = "Salus Thermostat"

	// Domain is the canonical identifier of this integration
	Domain = "salus_it500"
)

// Mode is the configured heating enable state of the thermostat.
type Mode string

const (
	ModeOn  Mode = "ON"
	ModeOff Mode = "OFF"
)

// ParseMode accepts on/off in any case, plus heat as an alias for on.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "heat":
		return ModeOn, nil
	case "off":
		return ModeOff, nil
	default:
		return "", fmt.Errorf("invalid mode %q (use on or off)", s)
	}
}

// Valid reports whether m is ModeOn or ModeOff.
func (m Mode) Valid() bool {
	return m == ModeOn || m == ModeOff
}

// Toggle returns the opposite mode.
func (m Mode) Toggle() Mode {
	if m == ModeOn {
		return ModeOff
	}
	return ModeOn
}

// Credentials are the vendor portal account details.
type Credentials struct {
	Email    string
	Password string
}

// Validate checks that both fields are present.
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.Email) == "" {
		return fmt.Errorf("email is required")
	}
	if c.Password == "" {
		return fmt.Errorf("password is required")
	}
	return nil
}

// String never includes the password.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{Email: %s}", c.Email)
}

// SessionToken is the opaque token scraped from the device control page.
// It has no declared expiry; the server invalidates it whenever it likes.
type SessionToken struct {
	Value      string
	ObtainedAt time.Time
}

// ThermostatState is an immutable snapshot decoded from one poll.
type ThermostatState struct {
	TargetTemperatureC  float64 `json:"target_temperature_c"`
	CurrentTemperatureC float64 `json:"current_temperature_c"`
	FrostTemperatureC   float64 `json:"frost_temperature_c"`
	HeatingActive       bool    `json:"heating_active"`
	Mode                Mode    `json:"mode"`
}

// String returns a one-line summary
func (s ThermostatState) String() string {
	relay := "idle"
	if s.HeatingActive {
		relay = "heating"
	}
	return fmt.Sprintf("%s target=%.1f°C current=%.1f°C frost=%.1f°C (%s)",
		s.Mode, s.TargetTemperatureC, s.CurrentTemperatureC, s.FrostTemperatureC, relay)
}

// ValidateTemperature checks a setpoint against [MinTemp, MaxTemp].
// NaN and infinities are rejected.
func ValidateTemperature(v float64) error {
	if math.IsNaN(v) || v < MinTemp || v > MaxTemp {
		return &ClientError{
			Kind:    KindOutOfRange,
			Message: fmt.Sprintf("temperature %s outside [%s, %s]", FormatTemperature(v), FormatTemperature(MinTemp), FormatTemperature(MaxTemp)),
		}
	}
	return nil
}

// FormatTemperature renders a setpoint the way the vendor form expects it.
func FormatTemperature(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
