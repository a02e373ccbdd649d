// Package dashboard is a terminal dashboard for one thermostat, built on
// Bubble Tea.
//
// The model re-reads the thermostat every SnapshotInterval and renders the
// room temperature, setpoint, frost setpoint, mode, relay and portal status.
// Key presses turn into commands that run off the UI goroutine:
//
//	+ / -   raise or lower the setpoint by 0.5 °C
//	m       switch heating on or off
//	r       poll now
//	q       quit
//
// A requested setpoint is shown as pending until a poll that completes after
// the command confirms it. Only one command is in flight at a time.
package dashboard
