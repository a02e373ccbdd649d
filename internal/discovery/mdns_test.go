package discovery

import (
	"net"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
)

func entry(instance, host string, port int, v4, v6 []net.IP, text ...string) *zeroconf.ServiceEntry {
	return &zeroconf.ServiceEntry{
		ServiceRecord: zeroconf.ServiceRecord{Instance: instance, Service: ServiceType, Domain: "local"},
		HostName:      host,
		Port:          port,
		AddrIPv4:      v4,
		AddrIPv6:      v6,
		Text:          text,
	}
}

func TestScanner_parseServiceEntry(t *testing.T) {
	scanner := NewScanner()

	tests := []struct {
		name       string
		entry      *zeroconf.ServiceEntry
		wantNil    bool
		wantDevice string
		wantIP     string
		wantPort   int
		wantPath   string
	}{
		{
			name: "valid feed with IPv4",
			entry: entry("Hallway (STA00012345)", "pi.local.", 8500,
				[]net.IP{net.ParseIP("192.168.4.16")}, nil,
				"device=STA00012345", "name=Hallway", "path=/ws"),
			wantDevice: "STA00012345",
			wantIP:     "192.168.4.16",
			wantPort:   8500,
			wantPath:   "/ws",
		},
		{
			name: "missing path defaults to /ws",
			entry: entry("Landing (STA1)", "pi.local.", 9000,
				[]net.IP{net.ParseIP("10.0.0.5")}, nil,
				"device=STA1"),
			wantDevice: "STA1",
			wantIP:     "10.0.0.5",
			wantPort:   9000,
			wantPath:   "/ws",
		},
		{
			name: "IPv6 only",
			entry: entry("x", "pi.local.", 8500,
				nil, []net.IP{net.ParseIP("fe80::1")},
				"device=STA2"),
			wantDevice: "STA2",
			wantIP:     "fe80::1",
			wantPort:   8500,
			wantPath:   "/ws",
		},
		{
			name: "prefers IPv4",
			entry: entry("x", "pi.local.", 8500,
				[]net.IP{net.ParseIP("192.168.1.50")}, []net.IP{net.ParseIP("fe80::2")},
				"device=STA3"),
			wantDevice: "STA3",
			wantIP:     "192.168.1.50",
			wantPort:   8500,
			wantPath:   "/ws",
		},
		{
			name: "no device record",
			entry: entry("x", "pi.local.", 8500,
				[]net.IP{net.ParseIP("192.168.1.1")}, nil,
				"name=Hallway"),
			wantNil: true,
		},
		{
			name: "malformed device id",
			entry: entry("x", "pi.local.", 8500,
				[]net.IP{net.ParseIP("192.168.1.1")}, nil,
				"device=../../etc"),
			wantNil: true,
		},
		{
			name: "no address",
			entry: entry("x", "pi.local.", 8500, nil, nil,
				"device=STA1"),
			wantNil: true,
		},
		{
			name: "no port",
			entry: entry("x", "pi.local.", 0,
				[]net.IP{net.ParseIP("192.168.1.1")}, nil,
				"device=STA1"),
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			feed := scanner.parseServiceEntry(tt.entry)

			if tt.wantNil {
				if feed != nil {
					t.Errorf("parseServiceEntry() = %v, want nil", feed)
				}
				return
			}
			if feed == nil {
				t.Fatal("parseServiceEntry() = nil, want non-nil feed")
			}

			if feed.DeviceID != tt.wantDevice {
				t.Errorf("feed.DeviceID = %v, want %v", feed.DeviceID, tt.wantDevice)
			}
			if feed.IP != tt.wantIP {
				t.Errorf("feed.IP = %v, want %v", feed.IP, tt.wantIP)
			}
			if feed.Port != tt.wantPort {
				t.Errorf("feed.Port = %v, want %v", feed.Port, tt.wantPort)
			}
			if feed.Path != tt.wantPath {
				t.Errorf("feed.Path = %v, want %v", feed.Path, tt.wantPath)
			}
			if feed.Instance != tt.entry.Instance {
				t.Errorf("feed.Instance = %v, want %v", feed.Instance, tt.entry.Instance)
			}
			if time.Since(feed.DiscoveredAt) > time.Second {
				t.Errorf("feed.DiscoveredAt is not recent: %v", feed.DiscoveredAt)
			}
		})
	}
}

func TestScanner_parseServiceEntry_Metadata(t *testing.T) {
	scanner := NewScanner()

	feed := scanner.parseServiceEntry(entry("Hallway (STA1)", "pi.local.", 8500,
		[]net.IP{net.ParseIP("192.168.4.16")}, nil,
		"device=STA1", "name=Hallway", "flag", "version=v1.0.0"))
	if feed == nil {
		t.Fatal("parseServiceEntry() = nil, want feed")
	}

	expected := map[string]string{
		"device":  "STA1",
		"name":    "Hallway",
		"flag":    "",
		"version": "v1.0.0",
	}
	if len(feed.Metadata) != len(expected) {
		t.Errorf("feed.Metadata has %d entries, want %d", len(feed.Metadata), len(expected))
	}
	for key, want := range expected {
		if got, ok := feed.Metadata[key]; !ok || got != want {
			t.Errorf("feed.Metadata[%q] = %q, %v; want %q", key, got, ok, want)
		}
	}
	if feed.Name != "Hallway" {
		t.Errorf("feed.Name = %q, want Hallway", feed.Name)
	}
}

func TestNewScanner(t *testing.T) {
	scanner := NewScanner()
	if scanner.Timeout != DefaultScanTimeout {
		t.Errorf("scanner.Timeout = %v, want %v", scanner.Timeout, DefaultScanTimeout)
	}
}

func TestDeviceIDPattern(t *testing.T) {
	tests := []struct {
		id    string
		match bool
	}{
		{"STA00012345", true},
		{"sta1", true},
		{"STA", false},
		{"12345", false},
		{"STA123x", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := deviceIDPattern.MatchString(tt.id); got != tt.match {
			t.Errorf("deviceIDPattern.MatchString(%q) = %v, want %v", tt.id, got, tt.match)
		}
	}
}

// Note: live mDNS discovery needs multicast on the test host and is not
// exercised here.
