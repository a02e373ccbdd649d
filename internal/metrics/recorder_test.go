package metrics

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/muurk/salus/internal/salus"
)

func TestResult(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ResultOK},
		{fmt.Errorf("set_preset: %w", salus.ErrNotImplemented), ResultNotImplemented},
		{&salus.ClientError{Kind: salus.KindOutOfRange}, ResultOutOfRange},
		{&salus.ClientError{Kind: salus.KindTransport}, ResultTransport},
		{&salus.ClientError{Kind: salus.KindUnreachable, Err: &salus.AuthError{}}, ResultUnreachable},
		{&salus.AuthError{Reason: salus.ReasonTokenNotFound}, ResultAuth},
		{&salus.DecodeError{Reason: salus.ReasonMalformed}, ResultDecode},
		{errors.New("other"), ResultError},
	}

	for _, tt := range tests {
		if got := Result(tt.err); got != tt.want {
			t.Errorf("Result(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestRecorder_ObservePoll(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := NewRecorder(reg, "STA1", nil)
	if err != nil {
		t.Fatalf("NewRecorder() error = %v", err)
	}

	r.ObservePoll(salus.ThermostatState{
		TargetTemperatureC:  21,
		CurrentTemperatureC: 19.5,
		FrostTemperatureC:   10,
		HeatingActive:       true,
		Mode:                salus.ModeOff,
	}, nil)

	if got := testutil.ToFloat64(r.target); got != 21 {
		t.Errorf("target = %v, want 21", got)
	}
	if got := testutil.ToFloat64(r.current); got != 19.5 {
		t.Errorf("current = %v, want 19.5", got)
	}
	if got := testutil.ToFloat64(r.heating); got != 1 {
		t.Errorf("heating = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.mode); got != 0 {
		t.Errorf("mode_on = %v, want 0", got)
	}
	if got := testutil.ToFloat64(r.online); got != 1 {
		t.Errorf("online = %v, want 1", got)
	}

	r.ObservePoll(salus.ThermostatState{}, &salus.ClientError{Kind: salus.KindUnreachable})

	if got := testutil.ToFloat64(r.online); got != 0 {
		t.Errorf("online after failure = %v, want 0", got)
	}
	if got := testutil.ToFloat64(r.target); got != 21 {
		t.Errorf("target after failure = %v, want previous 21", got)
	}

	expected := `
# HELP salus_polls_total State polls by result.
# TYPE salus_polls_total counter
salus_polls_total{device_id="STA1",result="ok"} 1
salus_polls_total{device_id="STA1",result="unreachable"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "salus_polls_total"); err != nil {
		t.Error(err)
	}
}

func TestRecorder_ObserveCommand(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := NewRecorder(reg, "STA1", nil)
	if err != nil {
		t.Fatalf("NewRecorder() error = %v", err)
	}

	r.ObserveCommand("set_temperature", nil)
	r.ObserveCommand("set_temperature", &salus.ClientError{Kind: salus.KindOutOfRange})
	r.ObserveCommand("set_mode", nil)

	if got := testutil.ToFloat64(r.commands.WithLabelValues("set_temperature", ResultOK)); got != 1 {
		t.Errorf("set_temperature ok = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.commands.WithLabelValues("set_temperature", ResultOutOfRange)); got != 1 {
		t.Errorf("set_temperature out_of_range = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(r.commands); got != 3 {
		t.Errorf("command series = %d, want 3", got)
	}
}

func TestRecorder_SessionCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	stats := salus.SessionStats{Logins: 3, LoginFailures: 1, Invalidations: 2}
	if _, err := NewRecorder(reg, "STA1", func() salus.SessionStats { return stats }); err != nil {
		t.Fatalf("NewRecorder() error = %v", err)
	}

	expected := `
# HELP salus_logins_total Completed portal logins.
# TYPE salus_logins_total counter
salus_logins_total{device_id="STA1"} 3
# HELP salus_token_invalidations_total Session tokens dropped after a failed fetch.
# TYPE salus_token_invalidations_total counter
salus_token_invalidations_total{device_id="STA1"} 2
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "salus_logins_total", "salus_token_invalidations_total"); err != nil {
		t.Error(err)
	}
}

func TestNewRecorder_DuplicateDevice(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewRecorder(reg, "STA1", nil); err != nil {
		t.Fatalf("NewRecorder() error = %v", err)
	}
	if _, err := NewRecorder(reg, "STA1", nil); err == nil {
		t.Error("registering the same device twice should fail")
	}
	if _, err := NewRecorder(reg, "STA2", nil); err != nil {
		t.Errorf("a second device should register: %v", err)
	}
}
