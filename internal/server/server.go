package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/muurk/salus/internal/feed"
	"github.com/muurk/salus/internal/logging"
	"github.com/muurk/salus/internal/salus"
)

// DefaultShutdownTimeout bounds graceful shutdown
const DefaultShutdownTimeout = 10 * time.Second

// Thermostat is the device the server exposes. *thermostat.Handle satisfies it.
type Thermostat interface {
	DeviceID() string
	Name() string
	State() (salus.ThermostatState, bool)
	UpdatedAt() time.Time
	Online() bool
	OnStateChanged(func(salus.ThermostatState))
	OnOnlineChanged(func(bool))
	SetTargetTemperature(ctx context.Context, value float64) error
	SetMode(ctx context.Context, mode salus.Mode) error
}

// Config holds the server configuration
type Config struct {
	Addr      string // listen address, e.g. ":8500"
	CertPath  string // TLS certificate (optional, enables HTTPS/WSS with KeyPath)
	KeyPath   string
	Advertise bool // announce the feed over mDNS

	// Gatherer serves /metrics (default prometheus.DefaultGatherer)
	Gatherer prometheus.Gatherer

	// CommandTimeout bounds a command issued through the API (default salus.DefaultTimeout)
	CommandTimeout time.Duration
}

// Server exposes one thermostat over HTTP, websocket and mDNS
type Server struct {
	config    *Config
	device    Thermostat
	hub       *hub
	handler   http.Handler
	tlsConfig *tls.Config

	mu       sync.Mutex
	httpSrv  *http.Server
	listener net.Listener
	mdns     *zeroconf.Server
}

// New creates a Server and subscribes it to device updates
func New(config *Config, device Thermostat) (*Server, error) {
	if config.Gatherer == nil {
		config.Gatherer = prometheus.DefaultGatherer
	}
	if config.CommandTimeout <= 0 {
		config.CommandTimeout = salus.DefaultTimeout
	}

	s := &Server{
		config: config,
		device: device,
		hub:    newHub(),
	}

	if config.CertPath != "" || config.KeyPath != "" {
		tlsConfig, err := NewTLSConfig(config.CertPath, config.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		s.tlsConfig = tlsConfig
	}

	s.handler = s.routes()

	device.OnStateChanged(func(salus.ThermostatState) { s.publish() })
	device.OnOnlineChanged(func(bool) { s.publish() })

	return s, nil
}

// Handler returns the HTTP handler serving the API, feed and metrics
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Snapshot returns the current feed message
func (s *Server) Snapshot() feed.StateMessage {
	msg := feed.StateMessage{
		DeviceID: s.device.DeviceID(),
		Name:     s.device.Name(),
		Online:   s.device.Online(),
	}
	if state, ok := s.device.State(); ok {
		msg.State = &state
		msg.UpdatedAt = s.device.UpdatedAt()
	}
	return msg
}

func (s *Server) publish() {
	msg := s.Snapshot()
	if msg.State != nil {
		logging.LogStateChange(msg.DeviceID, msg.State.TargetTemperatureC, msg.State.CurrentTemperatureC,
			msg.State.FrostTemperatureC, msg.State.HeatingActive, string(msg.State.Mode))
	}
	s.hub.broadcast(msg)
}

// Listen binds the listen address. Addr is valid afterwards.
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	if s.tlsConfig != nil {
		listener = tls.NewListener(listener, s.tlsConfig)
	}

	s.mu.Lock()
	s.listener = listener
	s.httpSrv = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Unlock()
	return nil
}

// Addr returns the bound address, or nil before Listen
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Run listens, advertises and serves until ctx is cancelled, a shutdown
// signal arrives or the server fails.
func (s *Server) Run(ctx context.Context) error {
	if s.Addr() == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	addr := s.Addr()
	logging.Info("Starting Salus feed server",
		zap.String("addr", addr.String()),
		zap.String("device_id", s.device.DeviceID()),
		zap.Bool("tls", s.tlsConfig != nil),
	)
	if s.tlsConfig != nil {
		logging.Info("TLS Configuration", zap.Any("tls_info", GetTLSInfo(s.tlsConfig)))
	}

	if s.config.Advertise {
		if tcp, ok := addr.(*net.TCPAddr); ok {
			if err := s.advertise(tcp.Port); err != nil {
				// The feed still works by address
				logging.Warn("mDNS advertisement failed", zap.Error(err))
			}
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.httpSrv.Serve(s.listener)
	}()

	select {
	case <-sigChan:
		logging.Info("Shutdown signal received, stopping server...")
	case <-ctx.Done():
	case err := <-errChan:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown stops advertising, closes feed clients and drains HTTP requests
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down server...")

	s.mu.Lock()
	mdns := s.mdns
	s.mdns = nil
	httpSrv := s.httpSrv
	s.mu.Unlock()

	if mdns != nil {
		mdns.Shutdown()
	}

	s.hub.closeAll()

	var err error
	if httpSrv != nil {
		if err = httpSrv.Shutdown(ctx); err != nil {
			logging.Warn("Shutdown timeout, forcing close", zap.Error(err))
			_ = httpSrv.Close()
		}
	}

	logging.Sync()
	return err
}

// GetActiveConnections returns the number of connected feed clients
func (s *Server) GetActiveConnections() int {
	return s.hub.count()
}
