package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/salus/internal/config"
	"github.com/muurk/salus/internal/discovery"
	"github.com/muurk/salus/internal/feed"
	"github.com/muurk/salus/internal/ui"
)

var scanTimeout int

func init() {
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(watchCmd)

	scanCmd.Flags().IntVar(&scanTimeout, "scan-timeout", 5, "Scan timeout in seconds")
	watchCmd.Flags().IntVar(&scanTimeout, "scan-timeout", 5, "Seconds to look for the device's feed when no URL is given")
}

// scanCmd discovers salus-server feeds on the network
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for salus-server feeds on the network",
	Long: `Scan for salus-server instances using mDNS/DNS-SD discovery.

Each server announces the thermostat it polls; the listing shows the device
id, display name and the websocket URL to pass to 'salus-ctl watch'.`,
	Example: `  # Scan for 5 seconds (default)
  salus-ctl scan

  # Longer scan for busy networks
  salus-ctl scan --scan-timeout 15`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	fmt.Printf("Scanning for salus-server feeds (timeout: %ds)...\n\n", scanTimeout)

	scanner := discovery.NewScanner()
	scanner.Timeout = time.Duration(scanTimeout) * time.Second

	feeds, err := scanner.Scan(cmd.Context())
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if len(feeds) == 0 {
		fmt.Println("No feeds found.")
		fmt.Println("\nTroubleshooting:")
		fmt.Println("  - Ensure salus-server is running without --no-advertise")
		fmt.Println("  - Check that this machine is on the same network segment")
		fmt.Println("  - Try increasing --scan-timeout")
		fmt.Println("  - Pass the feed URL to 'salus-ctl watch' directly if discovery fails")
		return nil
	}

	fmt.Printf("Found %d feed(s):\n\n", len(feeds))

	for i, f := range feeds {
		name := f.Name
		if name == "" {
			name = f.Instance
		}
		fmt.Printf("%d. %s\n", i+1, name)
		fmt.Printf("   Device:  %s\n", f.DeviceID)
		fmt.Printf("   Host:    %s (%s)\n", f.Hostname, f.IP)
		fmt.Printf("   Feed:    %s\n", f.WSURL())
		if v := f.GetMetadata("version"); v != "" {
			fmt.Printf("   Version: %s\n", v)
		}
		fmt.Println()
	}

	fmt.Println("Use 'salus-ctl watch <feed-url>' to follow a feed")
	return nil
}

// watchCmd follows a salus-server feed
var watchCmd = &cobra.Command{
	Use:   "watch [feed-url]",
	Short: "Follow the state feed of a salus-server",
	Long: `Connect to a salus-server websocket feed and print every update.

Without a URL the feed of the selected device is looked up over mDNS.
Output uses --format; compact is the usual choice for terminals and json for
piping into other tools.`,
	Example: `  # Discover the default device's feed
  salus-ctl watch --format compact

  # Explicit feed
  salus-ctl watch ws://192.168.1.20:8500/ws --format json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	url, err := feedURL(ctx, args)
	if err != nil {
		return err
	}

	conn, err := feed.Dial(ctx, url)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Unblock Next when interrupted
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	fmt.Fprintf(os.Stderr, "Following %s (Ctrl+C to stop)\n", url)
	for {
		msg, err := conn.Next()
		if err != nil {
			if ctx.Err() != nil || feed.IsClosed(err) {
				return nil
			}
			return err
		}

		out, err := ui.FormatState(outputFormat, msg)
		if err != nil {
			return err
		}
		if outputFormat == ui.FormatCompact {
			out = time.Now().Format(time.TimeOnly) + " " + out
		}
		fmt.Println(out)
	}
}

// feedURL returns the URL argument or discovers the selected device's feed
func feedURL(ctx context.Context, args []string) (string, error) {
	if len(args) == 1 {
		url := strings.TrimSpace(args[0])
		if !strings.HasPrefix(url, "ws://") && !strings.HasPrefix(url, "wss://") {
			return "", fmt.Errorf("feed URL must start with ws:// or wss://")
		}
		return url, nil
	}

	registry, err := config.LoadRegistry()
	if err != nil {
		return "", err
	}
	id, err := registry.ResolveDevice(deviceID)
	if err != nil {
		return "", err
	}

	scanner := discovery.NewScanner()
	scanner.Timeout = time.Duration(scanTimeout) * time.Second

	fmt.Fprintf(os.Stderr, "Looking for the feed of %s...\n", id)
	f, err := scanner.WaitForFeed(ctx, id)
	if err != nil {
		return "", fmt.Errorf("%w (pass the feed URL explicitly)", err)
	}
	return f.WSURL(), nil
}
