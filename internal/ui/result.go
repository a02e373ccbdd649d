package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/salus/internal/salus"
)

// ResultType indicates success or failure
type ResultType int

const (
	ResultSuccess ResultType = iota
	ResultFailure
)

// Result represents a success or failure box
type Result struct {
	Type            ResultType
	Title           string  // e.g., "Target temperature set"
	Details         []Param // Key-value details to display
	Error           error   // Error (for failure results)
	Troubleshooting []string
	Width           int
}

// NewSuccessResult creates a success result box
func NewSuccessResult(title string, details ...Param) *Result {
	return &Result{
		Type:    ResultSuccess,
		Title:   title,
		Details: details,
		Width:   GetTerminalWidth(),
	}
}

// NewFailureResult creates a failure result box. Troubleshooting tips are
// derived from err when none are given.
func NewFailureResult(title string, err error, troubleshooting ...string) *Result {
	if len(troubleshooting) == 0 {
		troubleshooting = TroubleshootingFor(err)
	}
	return &Result{
		Type:            ResultFailure,
		Title:           title,
		Error:           err,
		Troubleshooting: troubleshooting,
		Width:           GetTerminalWidth(),
	}
}

// SetWidth sets the terminal width for responsive rendering
func (r *Result) SetWidth(width int) *Result {
	r.Width = width
	return r
}

// AddDetail appends a detail key-value pair
func (r *Result) AddDetail(key, value string) *Result {
	r.Details = append(r.Details, Param{Key: key, Value: value})
	return r
}

// Render returns the styled result box as a string
func (r *Result) Render() string {
	width := r.Width
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}

	lines := []string{""}
	border := SuccessColor

	if r.Type == ResultFailure {
		border = ErrorColor
		lines = append(lines, ErrorTitleStyle.Render(fmt.Sprintf("   %s  FAILED  ─  %s", FailureMarker, r.Title)), "")
		if r.Error != nil {
			lines = append(lines, ErrorMessageStyle.Render("   Error: "+salus.GetShortErrorMessage(r.Error)), "")
		}
		if len(r.Troubleshooting) > 0 {
			lines = append(lines, r.renderTroubleshootingBox(width), "")
		}
	} else {
		lines = append(lines, SuccessTitleStyle.Render(fmt.Sprintf("   %s  SUCCESS  ─  %s", SuccessMarker, r.Title)), "")
		for _, d := range r.Details {
			lines = append(lines, ResultKeyStyle.Render("   "+d.Key+":")+" "+ResultValueStyle.Render(d.Value))
		}
		lines = append(lines, "")
	}

	return lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(border).
		Width(width-2).
		Padding(0, 2).
		Render(strings.Join(lines, "\n"))
}

func (r *Result) renderTroubleshootingBox(width int) string {
	lines := []string{TroubleshootingTitleStyle.Render("Troubleshooting:"), ""}
	for _, tip := range r.Troubleshooting {
		lines = append(lines, TroubleshootingItemStyle.Render("  • "+tip))
	}

	innerWidth := width - 12
	if innerWidth < 40 {
		innerWidth = 40
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(MutedColor).
		Width(innerWidth).
		Padding(0, 1).
		MarginLeft(3).
		Render(strings.Join(lines, "\n"))
}

// String implements fmt.Stringer
func (r *Result) String() string {
	return r.Render()
}

// TroubleshootingFor suggests next steps for errors returned by the portal client.
func TroubleshootingFor(err error) []string {
	if err == nil {
		return nil
	}
	if errors.Is(err, salus.ErrNotImplemented) {
		return []string{"This operation is not supported by the portal client yet"}
	}

	var ae *salus.AuthError
	if errors.As(err, &ae) {
		switch ae.Reason {
		case salus.ReasonTokenNotFound:
			return []string{
				"The portal page layout may have changed",
				"Check that the device id is registered to this account",
			}
		default:
			return []string{
				"Check the account email (salus-ctl login --email ...)",
				"Set SALUS_PASSWORD or enter the password when prompted",
			}
		}
	}

	kind, ok := salus.KindOf(err)
	if !ok {
		return nil
	}
	switch kind {
	case salus.KindOutOfRange:
		return []string{fmt.Sprintf("Setpoints must be between %s and %s °C",
			salus.FormatTemperature(salus.MinTemp), salus.FormatTemperature(salus.MaxTemp))}
	case salus.KindUnreachable, salus.KindTransport:
		return []string{
			"Check your internet connection",
			"The vendor portal may be down; try again later",
			"Increase --timeout on slow connections",
		}
	}
	return nil
}

// RenderSuccess renders a success box with the given title and details
func RenderSuccess(title string, details ...Param) string {
	return NewSuccessResult(title, details...).Render()
}

// RenderFailure renders a failure box for err
func RenderFailure(title string, err error) string {
	return NewFailureResult(title, err).Render()
}
