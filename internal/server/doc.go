// Package server exposes one thermostat to the local network.
//
// The server wraps a thermostat handle with a small HTTP surface:
//
//	GET  /ws               websocket feed of feed.StateMessage (snapshot, then every change)
//	GET  /api/state        current snapshot, 503 until the first successful poll
//	POST /api/temperature  {"value": 21.5}
//	POST /api/mode         {"mode": "on"}
//	GET  /metrics          Prometheus metrics
//
// Command errors map to status codes: out-of-range arguments give 400,
// unsupported operations 501, and portal failures 502.
//
// # Feed keepalive
//
// Each websocket client has a buffered send queue and its own write pump.
// The server pings every feed.PingPeriod and drops clients that miss a pong
// or whose queue fills up.
//
// # Discovery
//
// With Config.Advertise set, the feed is announced over mDNS as
// _salus-feed._tcp with TXT records device, name, path and version, so
// `salus-ctl scan` can find it.
//
// # Usage Example
//
//	srv, err := server.New(&server.Config{Addr: ":8500", Advertise: true}, handle)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	handle.Start()
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
