// Package thermostat is the entry point a host application holds for one
// Salus iT500 device.
//
// A Handle composes a salus.Client with a poller.Loop. The host starts and
// stops polling, subscribes to state updates and issues commands; after a
// successful command the handle asks the loop for an immediate refresh so the
// published state converges without waiting a full interval.
//
//	h, err := thermostat.New(creds, "STA00012345", thermostat.Options{Name: "Hallway"})
//	if err != nil {
//	    return err
//	}
//	h.OnStateChanged(func(s salus.ThermostatState) { fmt.Println(s) })
//	h.Start()
//	defer h.Stop()
package thermostat
