package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/muurk/salus/internal/urls"
)

// Feed is a salus-server state feed found on the network
type Feed struct {
	// Instance is the advertised mDNS instance name, e.g. "Hallway (STA00012345)"
	Instance string

	// DeviceID is the thermostat's vendor device id
	DeviceID string

	// Name is the thermostat display name
	Name string

	// Hostname is the mDNS hostname of the server
	Hostname string

	// IP is the server address (IPv4 preferred)
	IP string

	// Port of the feed server
	Port int

	// Path of the websocket endpoint (default /ws)
	Path string

	// Metadata contains all TXT records
	Metadata map[string]string

	// DiscoveredAt is when the feed was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the feed
func (f *Feed) String() string {
	return fmt.Sprintf("%s (%s) at %s", f.Name, f.DeviceID, f.hostPort())
}

// BaseURL returns the HTTP base URL of the feed server
func (f *Feed) BaseURL() string {
	return "http://" + f.hostPort()
}

// WSURL returns the websocket URL of the feed
func (f *Feed) WSURL() string {
	path := f.Path
	if path == "" {
		path = urls.FeedWebSocket
	}
	return "ws://" + f.hostPort() + path
}

// GetMetadata retrieves a TXT value by key, or returns empty string if not found
func (f *Feed) GetMetadata(key string) string {
	if f.Metadata == nil {
		return ""
	}
	return f.Metadata[key]
}

func (f *Feed) hostPort() string {
	return net.JoinHostPort(f.IP, strconv.Itoa(f.Port))
}
