package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/muurk/salus/internal/salus"
)

const namespace = "salus"

// Result labels
const (
	ResultOK             = "ok"
	ResultOutOfRange     = "out_of_range"
	ResultTransport      = "transport"
	ResultUnreachable    = "unreachable"
	ResultAuth           = "auth"
	ResultDecode         = "decode"
	ResultNotImplemented = "not_implemented"
	ResultError          = "error"
)

// Result maps an operation error to its result label
func Result(err error) string {
	if err == nil {
		return ResultOK
	}
	if errors.Is(err, salus.ErrNotImplemented) {
		return ResultNotImplemented
	}
	if kind, ok := salus.KindOf(err); ok {
		switch kind {
		case salus.KindOutOfRange:
			return ResultOutOfRange
		case salus.KindTransport:
			return ResultTransport
		case salus.KindUnreachable:
			return ResultUnreachable
		}
	}
	if salus.IsAuthError(err) {
		return ResultAuth
	}
	if salus.IsDecodeError(err) {
		return ResultDecode
	}
	return ResultError
}

// Recorder records metrics for one device
type Recorder struct {
	polls    *prometheus.CounterVec
	commands *prometheus.CounterVec

	target      prometheus.Gauge
	current     prometheus.Gauge
	frost       prometheus.Gauge
	heating     prometheus.Gauge
	mode        prometheus.Gauge
	online      prometheus.Gauge
	lastSuccess prometheus.Gauge
}

// NewRecorder creates a Recorder and registers its collectors on reg.
// stats, if non-nil, is read on every scrape for session counters.
func NewRecorder(reg prometheus.Registerer, deviceID string, stats func() salus.SessionStats) (*Recorder, error) {
	labels := prometheus.Labels{"device_id": deviceID}

	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
	}

	r := &Recorder{
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "polls_total",
			Help:        "State polls by result.",
			ConstLabels: labels,
		}, []string{"result"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "commands_total",
			Help:        "Commands sent to the thermostat by command and result.",
			ConstLabels: labels,
		}, []string{"command", "result"}),
		target:      gauge("target_temperature_celsius", "Heating setpoint."),
		current:     gauge("current_temperature_celsius", "Measured room temperature."),
		frost:       gauge("frost_temperature_celsius", "Frost protection setpoint."),
		heating:     gauge("heating_active", "1 when the boiler relay is on."),
		mode:        gauge("mode_on", "1 when heating is enabled."),
		online:      gauge("online", "1 when the last poll succeeded."),
		lastSuccess: gauge("last_success_timestamp_seconds", "Unix time of the last successful poll."),
	}

	collectors := []prometheus.Collector{
		r.polls, r.commands,
		r.target, r.current, r.frost, r.heating, r.mode, r.online, r.lastSuccess,
	}
	if stats != nil {
		collectors = append(collectors,
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace:   namespace,
				Name:        "logins_total",
				Help:        "Completed portal logins.",
				ConstLabels: labels,
			}, func() float64 { return float64(stats().Logins) }),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace:   namespace,
				Name:        "login_failures_total",
				Help:        "Failed portal logins.",
				ConstLabels: labels,
			}, func() float64 { return float64(stats().LoginFailures) }),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace:   namespace,
				Name:        "token_invalidations_total",
				Help:        "Session tokens dropped after a failed fetch.",
				ConstLabels: labels,
			}, func() float64 { return float64(stats().Invalidations) }),
		)
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metrics for %s: %w", deviceID, err)
		}
	}
	return r, nil
}

// ObservePoll records a poll outcome. On success the state gauges are updated.
func (r *Recorder) ObservePoll(state salus.ThermostatState, err error) {
	r.polls.WithLabelValues(Result(err)).Inc()
	if err != nil {
		r.online.Set(0)
		return
	}

	r.online.Set(1)
	r.lastSuccess.SetToCurrentTime()
	r.target.Set(state.TargetTemperatureC)
	r.current.Set(state.CurrentTemperatureC)
	r.frost.Set(state.FrostTemperatureC)
	r.heating.Set(boolToFloat(state.HeatingActive))
	r.mode.Set(boolToFloat(state.Mode == salus.ModeOn))
}

// ObserveCommand records a command outcome
func (r *Recorder) ObserveCommand(command string, err error) {
	r.commands.WithLabelValues(command, Result(err)).Inc()
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
