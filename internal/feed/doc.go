// Package feed defines the live state feed served by salus-server and a
// websocket client for it.
//
// Each message is a JSON StateMessage. The server sends the current snapshot
// as soon as a client connects and then one message per state or
// availability change.
package feed
