package ui

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/muurk/salus/internal/feed"
	"github.com/muurk/salus/internal/salus"
)

// Output formats accepted by FormatState
const (
	FormatDetailed = "detailed"
	FormatCompact  = "compact"
	FormatJSON     = "json"
)

// Formats lists the accepted output formats
var Formats = []string{FormatDetailed, FormatCompact, FormatJSON}

// FormatState renders a thermostat snapshot in one of Formats.
// Unknown formats fall back to detailed.
func FormatState(format string, msg feed.StateMessage) (string, error) {
	switch format {
	case FormatCompact:
		return FormatStateCompact(msg), nil
	case FormatJSON:
		data, err := json.MarshalIndent(msg, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to marshal JSON: %w", err)
		}
		return string(data), nil
	default:
		return FormatStateDetailed(msg), nil
	}
}

// FormatStateCompact returns a single line suitable for logs and watch output
func FormatStateCompact(msg feed.StateMessage) string {
	name := msg.Name
	if name == "" {
		name = msg.DeviceID
	}
	if msg.State == nil {
		return fmt.Sprintf("%s: %s, no data yet", name, onlineLabel(msg.Online))
	}
	s := msg.State
	return fmt.Sprintf("%s: %s target=%s°C current=%s°C frost=%s°C %s",
		name, s.Mode, FormatCelsius(s.TargetTemperatureC), FormatCelsius(s.CurrentTemperatureC),
		FormatCelsius(s.FrostTemperatureC), relayLabel(s.HeatingActive))
}

// FormatStateDetailed returns a styled multi-line view
func FormatStateDetailed(msg feed.StateMessage) string {
	var b strings.Builder

	name := msg.Name
	if name == "" {
		name = salus.DefaultName
	}
	b.WriteString(HeaderTitleStyle.Render(strings.ToUpper(name)))
	b.WriteString("\n")
	b.WriteString(HeaderCommandStyle.Render(msg.DeviceID))
	b.WriteString("\n\n")

	online := OfflineStyle.Render(onlineLabel(false))
	if msg.Online {
		online = OnlineStyle.Render(onlineLabel(true))
	}
	writeRow(&b, "Status", online)

	if msg.State == nil {
		writeRow(&b, "State", IdleStyle.Render("waiting for first poll"))
		return b.String()
	}

	s := msg.State
	writeRow(&b, "Current", FormatCelsius(s.CurrentTemperatureC)+" °C")
	writeRow(&b, "Target", FormatCelsius(s.TargetTemperatureC)+" °C")
	writeRow(&b, "Frost", FrostStyle.Render(FormatCelsius(s.FrostTemperatureC)+" °C"))
	writeRow(&b, "Mode", ModeLabel(s.Mode))
	writeRow(&b, "Relay", RelayLabel(s.HeatingActive))
	if !msg.UpdatedAt.IsZero() {
		writeRow(&b, "Updated", msg.UpdatedAt.Local().Format(time.DateTime))
	}

	return b.String()
}

// ModeLabel renders a heating mode with color
func ModeLabel(m salus.Mode) string {
	if m == salus.ModeOn {
		return OnlineStyle.Render("heating on")
	}
	return IdleStyle.Render("heating off")
}

// RelayLabel renders the relay state with a marker
func RelayLabel(active bool) string {
	if active {
		return HeatingStyle.Render(HeatingMarker + " " + relayLabel(true))
	}
	return IdleStyle.Render(IdleMarker + " " + relayLabel(false))
}

// FormatCelsius renders a temperature with one decimal
func FormatCelsius(v float64) string {
	return fmt.Sprintf("%.1f", v)
}

func writeRow(b *strings.Builder, key, value string) {
	b.WriteString(ResultKeyStyle.Render("  " + key + ":"))
	b.WriteString(" ")
	b.WriteString(value)
	b.WriteString("\n")
}

func relayLabel(active bool) string {
	if active {
		return "heating"
	}
	return "idle"
}

func onlineLabel(online bool) string {
	if online {
		return "online"
	}
	return "offline"
}
