package ui

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/muurk/salus/internal/feed"
	"github.com/muurk/salus/internal/salus"
)

// Test fixture: a heating thermostat
func getSampleMessage() feed.StateMessage {
	return feed.StateMessage{
		DeviceID: "STA00012345",
		Name:     "Living Room",
		Online:   true,
		State: &salus.ThermostatState{
			TargetTemperatureC:  21.0,
			CurrentTemperatureC: 19.5,
			FrostTemperatureC:   10.0,
			HeatingActive:       true,
			Mode:                salus.ModeOn,
		},
		UpdatedAt: time.Date(2025, 1, 6, 7, 30, 0, 0, time.UTC),
	}
}

func TestFormatStateCompact(t *testing.T) {
	line := FormatStateCompact(getSampleMessage())

	if strings.Contains(line, "\n") {
		t.Error("FormatStateCompact() should return a single line")
	}
	want := "Living Room: ON target=21.0°C current=19.5°C frost=10.0°C heating"
	if line != want {
		t.Errorf("FormatStateCompact() = %q, want %q", line, want)
	}
}

func TestFormatStateCompact_NoState(t *testing.T) {
	msg := feed.StateMessage{DeviceID: "STA00012345"}

	line := FormatStateCompact(msg)
	if line != "STA00012345: offline, no data yet" {
		t.Errorf("FormatStateCompact() = %q", line)
	}
}

func TestFormatStateDetailed(t *testing.T) {
	out := FormatStateDetailed(getSampleMessage())

	expectedParts := []string{
		"LIVING ROOM",
		"STA00012345",
		"online",
		"19.5 °C",
		"21.0 °C",
		"10.0 °C",
		"heating on",
		"heating",
	}
	for _, part := range expectedParts {
		if !strings.Contains(out, part) {
			t.Errorf("FormatStateDetailed() missing expected part: %s", part)
		}
	}
}

func TestFormatStateDetailed_WaitingForFirstPoll(t *testing.T) {
	out := FormatStateDetailed(feed.StateMessage{DeviceID: "STA00012345"})

	if !strings.Contains(out, strings.ToUpper(salus.DefaultName)) {
		t.Error("FormatStateDetailed() should fall back to the default name")
	}
	if !strings.Contains(out, "waiting for first poll") {
		t.Error("FormatStateDetailed() should say no state has been seen yet")
	}
	if strings.Contains(out, "Target") {
		t.Error("FormatStateDetailed() should not render temperatures without a state")
	}
}

func TestFormatState_JSON(t *testing.T) {
	out, err := FormatState(FormatJSON, getSampleMessage())
	if err != nil {
		t.Fatalf("FormatState() error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded["device_id"] != "STA00012345" {
		t.Errorf("device_id = %v", decoded["device_id"])
	}
	state, ok := decoded["state"].(map[string]any)
	if !ok {
		t.Fatalf("state = %v, want object", decoded["state"])
	}
	if state["mode"] != "ON" || state["target_temperature_c"] != 21.0 {
		t.Errorf("state = %v", state)
	}
}

func TestFormatState_UnknownFallsBackToDetailed(t *testing.T) {
	msg := getSampleMessage()

	out, err := FormatState("fancy", msg)
	if err != nil {
		t.Fatalf("FormatState() error = %v", err)
	}
	if out != FormatStateDetailed(msg) {
		t.Error("unknown format should render the detailed view")
	}
}
