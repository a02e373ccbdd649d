package dashboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/salus/internal/salus"
	"github.com/muurk/salus/internal/ui"
	"github.com/muurk/salus/internal/version"
)

const minWidth = 48

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(ui.PrimaryColor).
			Bold(true)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(ui.MutedColor).
			Italic(true)

	bigNumberStyle = lipgloss.NewStyle().
			Foreground(ui.TextColor).
			Bold(true)

	pendingStyle = lipgloss.NewStyle().
			Foreground(ui.WarningColor).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(ui.MutedColor).
			Width(10)

	statusStyle = lipgloss.NewStyle().
			Foreground(ui.MutedColor).
			Italic(true)

	spinnerStyle = lipgloss.NewStyle().
			Foreground(ui.PrimaryColor)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ui.PrimaryColor).
			Padding(1, 2)
)

// View renders the dashboard
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render(m.device.Name()))
	b.WriteString("  ")
	b.WriteString(subtitleStyle.Render(m.device.DeviceID() + " · salus " + version.Version))
	b.WriteString("\n\n")

	if !m.hasState {
		b.WriteString(m.spinner.View())
		b.WriteString(" Waiting for the first poll...")
		if m.lastErr != nil {
			b.WriteString("\n\n")
			b.WriteString(ui.ErrorMessageStyle.Render(salus.GetShortErrorMessage(m.lastErr)))
		}
	} else {
		b.WriteString(m.renderState())
	}

	if m.status != "" {
		b.WriteString("\n\n")
		b.WriteString(statusStyle.Render(m.status))
	}

	width := m.width - 2
	if width < minWidth {
		width = minWidth
	}
	return boxStyle.Width(width).Render(b.String()) + "\n" + m.help.View(m.keys) + "\n"
}

func (m Model) renderState() string {
	s := m.state
	var rows []string

	rows = append(rows, row("Current", bigNumberStyle.Render(ui.FormatCelsius(s.CurrentTemperatureC)+" °C")))

	target := bigNumberStyle.Render(ui.FormatCelsius(m.Target()) + " °C")
	if m.hasPending {
		target = pendingStyle.Render(ui.FormatCelsius(m.Target())+" °C") + subtitleStyle.Render(" (pending)")
	}
	rows = append(rows, row("Target", target))
	rows = append(rows, row("Frost", ui.FrostStyle.Render(ui.FormatCelsius(s.FrostTemperatureC)+" °C")))
	rows = append(rows, row("Mode", ui.ModeLabel(s.Mode)))
	rows = append(rows, row("Relay", ui.RelayLabel(s.HeatingActive)))

	online := ui.OfflineStyle.Render("offline")
	if m.online {
		online = ui.OnlineStyle.Render("online")
	}
	rows = append(rows, row("Portal", online))

	if !m.updatedAt.IsZero() {
		rows = append(rows, row("Updated", subtitleStyle.Render(formatAge(time.Since(m.updatedAt)))))
	}
	if !m.online && m.lastErr != nil {
		rows = append(rows, row("Error", ui.ErrorMessageStyle.Render(salus.GetShortErrorMessage(m.lastErr))))
	}

	return strings.Join(rows, "\n")
}

func row(label, value string) string {
	return labelStyle.Render(label) + value
}

func formatAge(d time.Duration) string {
	switch {
	case d < 5*time.Second:
		return "just now"
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	default:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	}
}
