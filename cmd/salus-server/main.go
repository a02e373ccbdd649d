// Salus-server polls one Salus iT500 thermostat and republishes its state on
// the local network.
//
// It serves a websocket feed, a small JSON API for commands and Prometheus
// metrics, and advertises the feed over mDNS so salus-ctl can find it.
//
// Usage:
//
//	salus-server serve [flags]
//
// The portal password is read from SALUS_PASSWORD. The account email and
// device come from the salus-ctl configuration file or from flags.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/salus/internal/config"
	"github.com/muurk/salus/internal/logging"
	"github.com/muurk/salus/internal/metrics"
	"github.com/muurk/salus/internal/salus"
	"github.com/muurk/salus/internal/server"
	"github.com/muurk/salus/internal/thermostat"
	"github.com/muurk/salus/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "salus-server",
	Short: "Salus iT500 state feed server",
	Long: `A standalone server that keeps a Salus iT500 thermostat polled through the
vendor web portal and republishes its state on the local network.

Clients receive updates over a websocket feed, send commands through a JSON
API and scrape Prometheus metrics. The feed is advertised over mDNS.

Note: For one-off commands and the terminal dashboard, use 'salus-ctl'.`,
	Version: version.Version,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// Serve command and flags
var (
	addr         string
	certPath     string
	keyPath      string
	deviceID     string
	email        string
	deviceName   string
	pollInterval time.Duration
	logLevel     string
	noAdvertise  bool
	noSaveState  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Poll the thermostat and serve its state",
	Long: `Start polling the thermostat and serve its state feed.

Endpoints:
  GET  /ws                websocket feed of state updates
  GET  /api/state         current state as JSON
  POST /api/temperature   {"value": 21.5}
  POST /api/mode          {"mode": "on"}
  GET  /metrics           Prometheus metrics

HTTPS and WSS are enabled when both --cert and --key are given.`,
	Example: `  # Serve the default device from the salus-ctl configuration
  SALUS_PASSWORD=... salus-server serve

  # Explicit account and device, polling every 2 minutes
  SALUS_PASSWORD=... salus-server serve --email me@example.com --device STA00012345 --poll-interval 2m

  # TLS on a custom port without mDNS
  salus-server serve --addr :8443 --cert cert.pem --key key.pem --no-advertise`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, "+config.DefaultListenAddr+")")
	serveCmd.Flags().StringVar(&certPath, "cert", "", "Path to TLS certificate file (optional)")
	serveCmd.Flags().StringVar(&keyPath, "key", "", "Path to TLS private key file (optional)")
	serveCmd.Flags().StringVar(&deviceID, "device", "", "Device id (e.g. STA00012345)")
	serveCmd.Flags().StringVar(&email, "email", "", "Portal account email")
	serveCmd.Flags().StringVar(&deviceName, "name", "", "Display name (default from config)")
	serveCmd.Flags().DurationVar(&pollInterval, "poll-interval", 0, "Poll interval (default from config, 60s)")
	serveCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	serveCmd.Flags().BoolVar(&noAdvertise, "no-advertise", false, "Do not announce the feed over mDNS")
	serveCmd.Flags().BoolVar(&noSaveState, "no-save-state", false, "Do not record the last state in the config file")
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := logging.Initialize(logLevel); err != nil {
		return err
	}
	defer logging.Sync()

	if (certPath != "") != (keyPath != "") {
		return fmt.Errorf("both --cert and --key must be provided together, or neither")
	}
	for _, path := range []string{certPath, keyPath} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return fmt.Errorf("file not found: %s", path)
		}
	}

	registry, err := config.LoadRegistry()
	if err != nil {
		return err
	}

	id, err := registry.ResolveDevice(deviceID)
	if err != nil {
		return err
	}

	creds, baseURL, err := credentials(registry)
	if err != nil {
		return err
	}

	name := deviceName
	if name == "" {
		name = registry.GetDevice(id).DisplayName()
	}
	interval := pollInterval
	if interval <= 0 {
		interval = registry.PollInterval()
	}
	listen := addr
	if listen == "" {
		listen = registry.Preferences.ListenAddr
	}
	if listen == "" {
		listen = config.DefaultListenAddr
	}

	// The recorder reads session counters lazily, after the handle exists
	var handle *thermostat.Handle
	recorder, err := metrics.NewRecorder(prometheus.DefaultRegisterer, id, func() salus.SessionStats {
		return handle.Client().Session().Stats()
	})
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	handle, err = thermostat.New(creds, id, thermostat.Options{
		Name:         name,
		PollInterval: interval,
		Client: salus.Options{
			BaseURL:   baseURL,
			Timeout:   registry.RequestTimeout(),
			UserAgent: version.UserAgent(),
		},
		Observer: recorder,
	})
	if err != nil {
		return err
	}

	if !noSaveState {
		handle.OnStateChanged(func(state salus.ThermostatState) {
			registry.RecordState(id, state, time.Now())
			if err := registry.Save(); err != nil {
				logging.Warn("Failed to record state", zap.Error(err))
			}
		})
	}

	srv, err := server.New(&server.Config{
		Addr:           listen,
		CertPath:       certPath,
		KeyPath:        keyPath,
		Advertise:      !noAdvertise,
		CommandTimeout: registry.RequestTimeout(),
	}, handle)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	handle.Start()
	defer handle.Stop()

	return srv.Run(cmd.Context())
}

// credentials combines the account email from flags or config with the
// password from the environment.
func credentials(registry *config.Registry) (salus.Credentials, string, error) {
	var baseURL string
	account := strings.TrimSpace(email)
	if registry.Account != nil {
		if account == "" {
			account = registry.Account.Email
		}
		baseURL = registry.Account.BaseURL
	}
	if account == "" {
		return salus.Credentials{}, "", fmt.Errorf("no account email (run 'salus-ctl login' or pass --email)")
	}

	password := os.Getenv(config.PasswordEnvVar)
	if password == "" {
		return salus.Credentials{}, "", fmt.Errorf("%s is not set", config.PasswordEnvVar)
	}
	return salus.Credentials{Email: account, Password: password}, baseURL, nil
}

// Version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("salus-server %s (commit: %s)\n", version.Version, version.Commit)
	},
}
