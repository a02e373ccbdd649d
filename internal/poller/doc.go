// Package poller refreshes thermostat state on a fixed interval.
//
// A Loop is either Idle or Polling. Start runs the first cycle immediately
// and then one cycle per Interval; Stop returns it to Idle. Each cycle calls
// the Fetcher once. Successful results are published to subscribers, failures
// are logged and reported to error hooks while the previous state is kept.
// There is no backoff: the next attempt happens at the next tick.
//
// Fetches are not cancelled by Stop. A result that arrives after Stop, or
// after a Stop/Start cycle, belongs to an old generation and is discarded.
package poller
