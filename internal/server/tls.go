package server

import (
	"crypto/tls"
	"fmt"

	"go.uber.org/zap"

	"github.com/muurk/salus/internal/logging"
)

// NewTLSConfig loads a certificate and key for serving the feed over HTTPS/WSS
func NewTLSConfig(certPath, keyPath string) (*tls.Config, error) {
	if certPath == "" || keyPath == "" {
		return nil, fmt.Errorf("both certificate and key are required for TLS")
	}

	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS certificate: %w", err)
	}

	logging.Info("TLS configuration created from files",
		zap.String("cert", certPath),
		zap.String("key", keyPath),
	)

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
		NextProtos:   []string{"http/1.1"}, // websocket upgrade needs HTTP/1.1
	}, nil
}

// GetTLSInfo returns human-readable TLS configuration information
func GetTLSInfo(config *tls.Config) map[string]interface{} {
	return map[string]interface{}{
		"min_version": tls.VersionName(config.MinVersion),
		"num_certs":   len(config.Certificates),
		"alpn":        config.NextProtos,
	}
}
