package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Param is one key/value line shown under a header or inside a result box.
// Slices of Param keep their order, unlike maps.
type Param struct {
	Key   string
	Value string
}

// Header represents a command header with title, command, and parameters.
type Header struct {
	Title   string  // e.g., "Set temperature"
	Command string  // e.g., "salus-ctl set-temp 21.5"
	Params  []Param // e.g., {"Device", "STA00012345"}
	Width   int     // Terminal width for responsive rendering
}

// NewHeader creates a new header with the given values
func NewHeader(title, command string, params ...Param) *Header {
	return &Header{
		Title:   title,
		Command: command,
		Params:  params,
		Width:   GetTerminalWidth(),
	}
}

// SetWidth sets the terminal width for responsive rendering
func (h *Header) SetWidth(width int) *Header {
	h.Width = width
	return h
}

// Render returns the styled header as a string
func (h *Header) Render() string {
	width := h.Width
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}

	titleLine := HeaderTitleStyle.Render(strings.ToUpper(h.Title))
	commandLine := HeaderCommandStyle.Render(h.Command)
	content := lipgloss.JoinVertical(lipgloss.Left, titleLine, commandLine)

	if len(h.Params) > 0 {
		dividerWidth := width - 6 // border and padding
		if dividerWidth < 10 {
			dividerWidth = 10
		}
		divider := RenderHorizontalDivider(dividerWidth, "─")

		lines := make([]string, 0, len(h.Params))
		for _, p := range h.Params {
			lines = append(lines, HeaderParamKeyStyle.Render(p.Key+":")+" "+HeaderParamValueStyle.Render(p.Value))
		}
		content = lipgloss.JoinVertical(lipgloss.Left, content, divider, strings.Join(lines, "\n"))
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(PrimaryColor).
		Width(width - 2).
		Render(content)
}

// String implements fmt.Stringer
func (h *Header) String() string {
	return h.Render()
}
