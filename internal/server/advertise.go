package server

import (
	"fmt"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/salus/internal/logging"
	"github.com/muurk/salus/internal/urls"
	"github.com/muurk/salus/internal/version"
)

const (
	// ServiceType is the mDNS service type of a state feed
	ServiceType = urls.FeedServiceType

	// ServiceDomain is the mDNS domain
	ServiceDomain = urls.FeedServiceDomain
)

// TXTRecords returns the TXT records advertised for the device
func TXTRecords(deviceID, name string) []string {
	return []string{
		"device=" + deviceID,
		"name=" + name,
		"path=" + urls.FeedWebSocket,
		"version=" + version.Version,
	}
}

func (s *Server) advertise(port int) error {
	instance := fmt.Sprintf("%s (%s)", s.device.Name(), s.device.DeviceID())
	mdns, err := zeroconf.Register(instance, ServiceType, ServiceDomain, port,
		TXTRecords(s.device.DeviceID(), s.device.Name()), nil)
	if err != nil {
		return fmt.Errorf("failed to register mDNS service: %w", err)
	}

	s.mu.Lock()
	s.mdns = mdns
	s.mu.Unlock()

	logging.Info("Advertising feed over mDNS",
		zap.String("instance", instance),
		zap.String("service", ServiceType),
		zap.Int("port", port),
	)
	return nil
}
