package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/salus/internal/config"
	"github.com/muurk/salus/internal/dashboard"
	"github.com/muurk/salus/internal/feed"
	"github.com/muurk/salus/internal/logging"
	"github.com/muurk/salus/internal/salus"
	"github.com/muurk/salus/internal/thermostat"
	"github.com/muurk/salus/internal/ui"
	"github.com/muurk/salus/internal/version"
)

// Common flags (persistent on root)
var (
	deviceID     string
	accountEmail string
	outputFormat string
	timeout      time.Duration
)

func init() {
	rootCmd.PersistentFlags().StringVar(&deviceID, "device", "", "Device id, e.g. STA00012345 (default from config)")
	rootCmd.PersistentFlags().StringVar(&accountEmail, "email", "", "Portal account email (default from config)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", ui.FormatDetailed, "Output format ("+strings.Join(ui.Formats, ", ")+")")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Per-request timeout (default from config, 10s)")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(setTempCmd)
	rootCmd.AddCommand(setModeCmd)
	rootCmd.AddCommand(dashCmd)
}

// loginCmd verifies the account and stores it with the device
var loginCmd = &cobra.Command{
	Use:   "login <device-id>",
	Short: "Verify the portal login and remember the device",
	Long: `Log in to the vendor portal, read the device once and store the account
email and device id in the configuration file.

The password is not stored. Later commands read it from SALUS_PASSWORD or
prompt for it.`,
	Example: `  # Prompt for email and password
  salus-ctl login STA00012345

  # Name the device and make it the default
  salus-ctl login STA00012345 --email me@example.com --name "Living Room" --default`,
	Args: cobra.ExactArgs(1),
	RunE: runLogin,
}

var (
	loginName       string
	loginDefault    bool
	loginBaseURL    string
	loginSecondZone bool
	loginWater      bool
)

func init() {
	loginCmd.Flags().StringVar(&loginName, "name", "", "Display name for the device")
	loginCmd.Flags().BoolVar(&loginDefault, "default", false, "Make this the default device")
	loginCmd.Flags().StringVar(&loginBaseURL, "base-url", "", "Portal base URL override")
	loginCmd.Flags().BoolVar(&loginSecondZone, "second-zone", false, "Mark the device as having a second heating zone")
	loginCmd.Flags().BoolVar(&loginWater, "water-heating", false, "Mark the device as controlling hot water")
}

func runLogin(cmd *cobra.Command, args []string) error {
	registry, err := config.LoadRegistry()
	if err != nil {
		return err
	}

	id := strings.TrimSpace(args[0])
	email := strings.TrimSpace(accountEmail)
	if email == "" && registry.Account != nil {
		email = registry.Account.Email
	}
	if email == "" {
		if email, err = ui.PromptLine(os.Stdin, "Email"); err != nil {
			return err
		}
	}
	baseURL := loginBaseURL
	if baseURL == "" && registry.Account != nil {
		baseURL = registry.Account.BaseURL
	}

	password, err := readPassword()
	if err != nil {
		return err
	}

	fmt.Println(ui.NewHeader("Login", "salus-ctl login "+id,
		ui.Param{Key: "Account", Value: email},
		ui.Param{Key: "Device", Value: id},
	).Render())

	client, err := salus.NewClient(salus.Credentials{Email: email, Password: password}, id, clientOptions(baseURL, registry))
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd, registry)
	defer cancel()

	state, err := client.FetchState(ctx)
	if err != nil {
		return fail("Login", err)
	}

	registry.SetAccount(email, baseURL)
	device := registry.EnsureDevice(id)
	if loginName != "" {
		device.Name = loginName
	}
	if cmd.Flags().Changed("second-zone") {
		device.SecondHeatingZone = loginSecondZone
	}
	if cmd.Flags().Changed("water-heating") {
		device.WaterHeating = loginWater
	}
	registry.RecordState(id, state, time.Now())
	if loginDefault || registry.Preferences.DefaultDevice == "" {
		registry.Preferences.DefaultDevice = id
	}
	if err := registry.Save(); err != nil {
		return err
	}

	path, _ := config.GetConfigPath()
	fmt.Println(ui.RenderSuccess("Logged in",
		ui.Param{Key: "Device", Value: device.DisplayName() + " (" + id + ")"},
		ui.Param{Key: "State", Value: state.String()},
		ui.Param{Key: "Config", Value: path},
	))
	return nil
}

// showCmd displays the current thermostat state
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show thermostat state",
	Long: `Read the thermostat through the vendor portal and display its room
temperature, setpoint, frost setpoint, heating mode and relay state.`,
	Example: `  # Default device
  salus-ctl show

  # One line for scripts and status bars
  salus-ctl show --format compact

  # JSON output
  salus-ctl show --device STA00012345 --format json`,
	Args: cobra.NoArgs,
	RunE: runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	registry, client, err := openClient()
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd, registry)
	defer cancel()

	state, err := client.FetchState(ctx)
	if err != nil {
		if outputFormat == ui.FormatDetailed {
			return fail("Read thermostat", err)
		}
		return err
	}

	now := time.Now()
	recordState(registry, client.DeviceID(), state, now)

	out, err := ui.FormatState(outputFormat, feed.StateMessage{
		DeviceID:  client.DeviceID(),
		Name:      registry.GetDevice(client.DeviceID()).DisplayName(),
		Online:    true,
		State:     &state,
		UpdatedAt: now,
	})
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

// setTempCmd changes the setpoint
var setTempCmd = &cobra.Command{
	Use:   "set-temp <celsius>",
	Short: "Set the target temperature",
	Long: fmt.Sprintf(`Set the target temperature in °C.

Accepted values are %s to %s; the thermostat works in 0.5 °C steps.`,
		salus.FormatTemperature(salus.MinTemp), salus.FormatTemperature(salus.MaxTemp)),
	Example: `  salus-ctl set-temp 21.5
  salus-ctl set-temp 18 --device STA00012345`,
	Args: cobra.ExactArgs(1),
	RunE: runSetTemp,
}

func runSetTemp(cmd *cobra.Command, args []string) error {
	value, err := strconv.ParseFloat(strings.TrimSpace(args[0]), 64)
	if err != nil {
		return fmt.Errorf("invalid temperature %q: %w", args[0], err)
	}
	if err := salus.ValidateTemperature(value); err != nil {
		return fail("Set temperature", err)
	}

	registry, client, err := openClient()
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd, registry)
	defer cancel()

	if err := client.SetTargetTemperature(ctx, value); err != nil {
		return fail("Set temperature", err)
	}

	device := registry.EnsureDevice(client.DeviceID())
	device.LastTarget = value
	saveQuietly(registry)

	fmt.Println(ui.RenderSuccess("Target temperature set",
		ui.Param{Key: "Device", Value: device.DisplayName() + " (" + client.DeviceID() + ")"},
		ui.Param{Key: "Target", Value: salus.FormatTemperature(value) + " °C"},
	))
	return nil
}

// setModeCmd switches heating on or off
var setModeCmd = &cobra.Command{
	Use:       "set-mode <on|off>",
	Short:     "Switch heating on or off",
	Example:   "  salus-ctl set-mode off",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"on", "off"},
	RunE:      runSetMode,
}

func runSetMode(cmd *cobra.Command, args []string) error {
	mode, err := salus.ParseMode(args[0])
	if err != nil {
		return err
	}

	registry, client, err := openClient()
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd, registry)
	defer cancel()

	if err := client.SetMode(ctx, mode); err != nil {
		return fail("Set mode", err)
	}

	device := registry.EnsureDevice(client.DeviceID())
	device.LastMode = string(mode)
	saveQuietly(registry)

	fmt.Println(ui.RenderSuccess("Heating mode set",
		ui.Param{Key: "Device", Value: device.DisplayName() + " (" + client.DeviceID() + ")"},
		ui.Param{Key: "Mode", Value: string(mode)},
	))
	return nil
}

// dashCmd launches the terminal dashboard
var dashCmd = &cobra.Command{
	Use:   "dash",
	Short: "Launch the live terminal dashboard",
	Long: `Poll the thermostat and show a live dashboard.

Keys: + and - change the setpoint by 0.5 °C, m switches heating on or off,
r polls now, q quits.`,
	Args: cobra.NoArgs,
	RunE: runDash,
}

var dashInterval time.Duration

func init() {
	dashCmd.Flags().DurationVar(&dashInterval, "poll-interval", 0, "Poll interval (default from config, 60s)")
}

func runDash(cmd *cobra.Command, args []string) error {
	registry, err := config.LoadRegistry()
	if err != nil {
		return err
	}
	id, creds, baseURL, err := resolveAccount(registry)
	if err != nil {
		return err
	}

	interval := dashInterval
	if interval <= 0 {
		interval = registry.PollInterval()
	}

	handle, err := thermostat.New(creds, id, thermostat.Options{
		Name:         registry.GetDevice(id).DisplayName(),
		PollInterval: interval,
		Client:       clientOptions(baseURL, registry),
	})
	if err != nil {
		return err
	}
	handle.OnStateChanged(func(state salus.ThermostatState) {
		recordState(registry, id, state, time.Now())
	})

	handle.Start()
	defer handle.Stop()

	model := dashboard.New(handle).WithCommandTimeout(requestTimeout(registry))
	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("dashboard error: %w", err)
	}
	return nil
}

// openClient loads the configuration and builds a client for the selected device
func openClient() (*config.Registry, *salus.Client, error) {
	registry, err := config.LoadRegistry()
	if err != nil {
		return nil, nil, err
	}
	id, creds, baseURL, err := resolveAccount(registry)
	if err != nil {
		return nil, nil, err
	}
	client, err := salus.NewClient(creds, id, clientOptions(baseURL, registry))
	if err != nil {
		return nil, nil, err
	}
	return registry, client, nil
}

// resolveAccount picks the device and credentials from flags, config and environment
func resolveAccount(registry *config.Registry) (string, salus.Credentials, string, error) {
	id, err := registry.ResolveDevice(deviceID)
	if err != nil {
		return "", salus.Credentials{}, "", err
	}

	email := strings.TrimSpace(accountEmail)
	var baseURL string
	if registry.Account != nil {
		if email == "" {
			email = registry.Account.Email
		}
		baseURL = registry.Account.BaseURL
	}
	if email == "" {
		return "", salus.Credentials{}, "", fmt.Errorf("no account email (run 'salus-ctl login' or pass --email)")
	}

	password, err := readPassword()
	if err != nil {
		return "", salus.Credentials{}, "", err
	}
	return id, salus.Credentials{Email: email, Password: password}, baseURL, nil
}

func readPassword() (string, error) {
	if pw := os.Getenv(config.PasswordEnvVar); pw != "" {
		return pw, nil
	}
	pw, err := ui.PromptPassword("Password")
	if err != nil {
		return "", err
	}
	if pw == "" {
		return "", fmt.Errorf("password is required (set %s or enter it when prompted)", config.PasswordEnvVar)
	}
	return pw, nil
}

func clientOptions(baseURL string, registry *config.Registry) salus.Options {
	return salus.Options{
		BaseURL:   baseURL,
		Timeout:   requestTimeout(registry),
		UserAgent: version.UserAgent(),
	}
}

func requestTimeout(registry *config.Registry) time.Duration {
	if timeout > 0 {
		return timeout
	}
	return registry.RequestTimeout()
}

// commandContext bounds a whole command: a login plus a retried request
func commandContext(cmd *cobra.Command, registry *config.Registry) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), 4*requestTimeout(registry))
}

func recordState(registry *config.Registry, id string, state salus.ThermostatState, at time.Time) {
	registry.RecordState(id, state, at)
	saveQuietly(registry)
}

// saveQuietly persists last-known values; failing to do so never fails a command
func saveQuietly(registry *config.Registry) {
	if err := registry.Save(); err != nil {
		logging.Warn("Could not update config", zap.Error(err))
	}
}

// fail renders a failure box and returns an error main will not print again
func fail(title string, err error) error {
	fmt.Println(ui.RenderFailure(title, err))
	return &reportedError{err: err}
}
