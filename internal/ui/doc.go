// Package ui renders terminal output for salus-ctl.
//
// Components follow a "render once and print" pattern: a Header describing
// the command, a Result box for success or failure, and state views in the
// detailed, compact and json formats. Colors come from lipgloss and adapt to
// the terminal; widths are clamped between MinTerminalWidth and
// MaxContentWidth.
//
// Failure boxes derive troubleshooting tips from portal client errors:
//
//	fmt.Println(ui.RenderFailure("Set temperature", err))
//
// # Logging Integration
//
// Logging is controlled via the SALUS_LOG_LEVEL environment variable. When
// unset, zap logging is silent so the curated output is displayed cleanly.
package ui
