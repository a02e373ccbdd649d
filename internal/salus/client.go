package salus

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/salus/internal/logging"
	"github.com/muurk/salus/internal/urls"
)

// Options tune a Client. The zero value is usable.
type Options struct {
	// BaseURL of the vendor portal (default urls.DefaultBaseURL)
	BaseURL string

	// Timeout applied to every request (default DefaultTimeout)
	Timeout time.Duration

	// HTTPClient is copied and given a cookie jar if it has none
	HTTPClient *http.Client

	// UserAgent sent with every request (default DefaultUserAgent)
	UserAgent string

	// Now is the clock used for cache busting and token timestamps
	Now func() time.Time
}

// Client drives one thermostat through the vendor web portal.
// A Client is safe for concurrent use by a poll loop and command callers.
type Client struct {
	deviceID  string
	transport *transport
	session   *Session
	now       func() time.Time

	// last-known values, kept for observability only
	mu         sync.RWMutex
	lastState  *ThermostatState
	lastMode   Mode
	lastTarget float64
	updatedAt  time.Time
}

// NewClient creates a client bound to a single device
func NewClient(creds Credentials, deviceID string, opts Options) (*Client, error) {
	if err := creds.Validate(); err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", err)
	}
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil, fmt.Errorf("device id is required")
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = urls.DefaultBaseURL
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	t, err := newTransport(baseURL, opts.Timeout, opts.HTTPClient, opts.UserAgent)
	if err != nil {
		return nil, err
	}

	return &Client{
		deviceID:  deviceID,
		transport: t,
		session:   newSession(t, creds, deviceID, now),
		now:       now,
	}, nil
}

// DeviceID returns the vendor device identifier this client is bound to
func (c *Client) DeviceID() string {
	return c.deviceID
}

// Session exposes the session manager (token state and counters)
func (c *Client) Session() *Session {
	return c.session
}

// FetchState reads and decodes the current device values.
//
// If the first attempt fails for any reason the session token is assumed to
// have expired: it is invalidated and the whole fetch is retried exactly once.
// A second failure is returned as a KindUnreachable ClientError.
func (c *Client) FetchState(ctx context.Context) (ThermostatState, error) {
	state, err := c.fetchOnce(ctx)
	if err == nil {
		c.recordState(state)
		return state, nil
	}

	if ctx.Err() != nil {
		return ThermostatState{}, &ClientError{
			Kind:    KindUnreachable,
			Op:      "fetch_state",
			Message: "fetch cancelled",
			Err:     err,
		}
	}

	logging.Warn("State fetch failed, refreshing session",
		zap.String("device_id", c.deviceID),
		zap.Error(err),
	)
	c.session.Invalidate()

	state, err = c.fetchOnce(ctx)
	if err != nil {
		return ThermostatState{}, &ClientError{
			Kind:    KindUnreachable,
			Op:      "fetch_state",
			Message: "device values unavailable after session refresh",
			Err:     err,
		}
	}

	c.recordState(state)
	return state, nil
}

func (c *Client) fetchOnce(ctx context.Context) (ThermostatState, error) {
	tok, err := c.session.EnsureToken(ctx)
	if err != nil {
		return ThermostatState{}, err
	}

	query := url.Values{
		"devId": {c.deviceID},
		"token": {tok.Value},
		// cache buster, milliseconds since epoch
		"_": {strconv.FormatInt(c.now().UnixMilli(), 10)},
	}

	resp, err := c.transport.get(ctx, urls.DeviceValues, query)
	if err != nil {
		return ThermostatState{}, err
	}
	logging.LogPayload("Device values", resp.Body)

	return Decode(resp.Body)
}

// SetTargetTemperature sets the heating setpoint in °C.
//
// Out-of-range values fail before any request is made. Write failures are
// returned to the caller without a session refresh; callers re-issue.
func (c *Client) SetTargetTemperature(ctx context.Context, value float64) error {
	if err := ValidateTemperature(value); err != nil {
		var ce *ClientError
		if errors.As(err, &ce) {
			ce.Op = "set_temperature"
		}
		return err
	}

	form := url.Values{
		"tempUnit":           {"0"},
		"current_tempZ1_set": {"1"},
		"current_tempZ1":     {FormatTemperature(value)},
	}
	if err := c.command(ctx, "set_temperature", form); err != nil {
		return err
	}

	c.mu.Lock()
	c.lastTarget = value
	c.mu.Unlock()

	logging.Info("Target temperature set",
		zap.String("device_id", c.deviceID),
		zap.Float64("target_c", value),
	)
	return nil
}

// SetMode switches heating on or off. The vendor flag is inverted:
// auto=1 turns heating OFF, auto=0 turns it ON.
func (c *Client) SetMode(ctx context.Context, mode Mode) error {
	var auto string
	switch mode {
	case ModeOff:
		auto = "1"
	case ModeOn:
		auto = "0"
	default:
		return &ClientError{Kind: KindOutOfRange, Op: "set_mode", Message: fmt.Sprintf("unknown mode %q", mode)}
	}

	form := url.Values{
		"auto":       {auto},
		"auto_setZ1": {"1"},
	}
	if err := c.command(ctx, "set_mode", form); err != nil {
		return err
	}

	c.mu.Lock()
	c.lastMode = mode
	c.mu.Unlock()

	logging.Info("Mode set",
		zap.String("device_id", c.deviceID),
		zap.String("mode", string(mode)),
	)
	return nil
}

// command posts a form to set.php with the token and device id added
func (c *Client) command(ctx context.Context, op string, form url.Values) error {
	tok, err := c.session.EnsureToken(ctx)
	if err != nil {
		return err
	}

	form.Set("token", tok.Value)
	form.Set("devId", c.deviceID)

	if _, err := c.transport.postForm(ctx, urls.Set, form); err != nil {
		var ce *ClientError
		if errors.As(err, &ce) {
			ce.Op = op
			return ce
		}
		return &ClientError{Kind: KindTransport, Op: op, Message: "command failed", Err: err}
	}
	return nil
}

func (c *Client) recordState(state ThermostatState) {
	c.mu.Lock()
	s := state
	c.lastState = &s
	c.lastMode = state.Mode
	c.lastTarget = state.TargetTemperatureC
	c.updatedAt = c.now()
	c.mu.Unlock()

	logging.LogStateChange(c.deviceID, state.TargetTemperatureC, state.CurrentTemperatureC,
		state.FrostTemperatureC, state.HeatingActive, string(state.Mode))
}

// LastState returns the most recent successfully decoded state
func (c *Client) LastState() (ThermostatState, time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.lastState == nil {
		return ThermostatState{}, time.Time{}, false
	}
	return *c.lastState, c.updatedAt, true
}

// LastMode returns the last mode seen by a poll or set by SetMode.
// It is informational; the next poll is always authoritative.
func (c *Client) LastMode() (Mode, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastMode, c.lastMode != ""
}

// LastTarget returns the last setpoint seen by a poll or set by SetTargetTemperature
func (c *Client) LastTarget() (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastTarget, c.lastTarget != 0
}
