// Package metrics exposes thermostat and client health as Prometheus metrics.
//
// A Recorder is bound to one device id and registered on a
// prometheus.Registerer. Poll and command outcomes are counted by result
// label; the latest decoded state is exported as gauges. Session counters are
// read from the client on scrape.
package metrics
