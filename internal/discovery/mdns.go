package discovery

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/salus/internal/logging"
	"github.com/muurk/salus/internal/urls"
)

const (
	// ServiceType is the mDNS service type salus-server advertises
	ServiceType = urls.FeedServiceType

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = urls.FeedServiceDomain

	// DefaultScanTimeout is the default timeout for feed discovery
	DefaultScanTimeout = 5 * time.Second
)

// deviceIDPattern matches vendor device ids (e.g. "STA00012345")
var deviceIDPattern = regexp.MustCompile(`^[A-Za-z]{2,4}\d+$`)

// Scanner handles mDNS feed discovery
type Scanner struct {
	// Timeout is the maximum time to wait for discovery
	Timeout time.Duration
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
	}
}

// Scan discovers all state feeds on the local network until the
// timeout or ctx expires.
func (s *Scanner) Scan(ctx context.Context) ([]*Feed, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	done := make(chan struct{})

	var mu sync.Mutex
	feeds := make([]*Feed, 0)
	seen := make(map[string]bool)

	go func() {
		defer close(done)
		for entry := range entries {
			feed := s.parseServiceEntry(entry)
			if feed == nil {
				continue
			}
			mu.Lock()
			if !seen[feed.Instance] {
				seen[feed.Instance] = true
				feeds = append(feeds, feed)
				logging.Debug("Discovered feed", zap.String("feed", feed.String()))
			}
			mu.Unlock()
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()

	// The resolver closes entries once the browse context ends
	select {
	case <-done:
	case <-time.After(time.Second):
	}

	mu.Lock()
	defer mu.Unlock()
	return append([]*Feed(nil), feeds...), nil
}

// WaitForFeed waits for the feed of a specific device
func (s *Scanner) WaitForFeed(ctx context.Context, deviceID string) (*Feed, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	found := make(chan *Feed, 1)

	go func() {
		for entry := range entries {
			feed := s.parseServiceEntry(entry)
			if feed != nil && strings.EqualFold(feed.DeviceID, deviceID) {
				select {
				case found <- feed:
				default:
				}
				cancel()
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	select {
	case feed := <-found:
		return feed, nil
	case <-ctx.Done():
		// A match may have cancelled the context
		select {
		case feed := <-found:
			return feed, nil
		default:
		}
		return nil, fmt.Errorf("feed for device %s not found within timeout", deviceID)
	}
}

// parseServiceEntry converts a zeroconf service entry to a Feed.
// Returns nil if the entry does not describe a usable feed.
func (s *Scanner) parseServiceEntry(entry *zeroconf.ServiceEntry) *Feed {
	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		parts := strings.SplitN(txt, "=", 2)
		if len(parts) == 2 {
			metadata[parts[0]] = parts[1]
		} else {
			metadata[parts[0]] = ""
		}
	}

	deviceID := metadata["device"]
	if !deviceIDPattern.MatchString(deviceID) {
		return nil
	}

	var ip string
	for _, addr := range entry.AddrIPv4 {
		ip = addr.String()
		break
	}
	if ip == "" && len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" || entry.Port == 0 {
		return nil
	}

	path := metadata["path"]
	if path == "" {
		path = urls.FeedWebSocket
	}

	return &Feed{
		Instance:     entry.Instance,
		DeviceID:     deviceID,
		Name:         metadata["name"],
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         entry.Port,
		Path:         path,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}

// QuickScan performs a fast scan with a 2-second timeout
func QuickScan(ctx context.Context) ([]*Feed, error) {
	scanner := NewScanner()
	scanner.Timeout = 2 * time.Second
	return scanner.Scan(ctx)
}
