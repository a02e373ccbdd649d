package feed

import (
	"time"

	"github.com/muurk/salus/internal/salus"
)

// StateMessage is one update on the feed
type StateMessage struct {
	DeviceID  string                 `json:"device_id"`
	Name      string                 `json:"name"`
	Online    bool                   `json:"online"`
	State     *salus.ThermostatState `json:"state,omitempty"` // nil until the first successful poll
	UpdatedAt time.Time              `json:"updated_at,omitzero"`
}

// ErrorMessage is the body of a failed API call
type ErrorMessage struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// TemperatureRequest is the body of POST /api/temperature
type TemperatureRequest struct {
	Value float64 `json:"value"`
}

// ModeRequest is the body of POST /api/mode
type ModeRequest struct {
	Mode string `json:"mode"`
}
