package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/antstride/internal/config"
	"github.com/muurk/antstride/internal/discovery"
	"github.com/muurk/antstride/internal/monitor"
	"github.com/muurk/antstride/internal/stride"
	"github.com/muurk/antstride/internal/ui"
	"github.com/muurk/antstride/internal/watch"
)

var (
	scanTimeout  int
	statusFormat string
	monitorName  string
)

// discoverCmd browses for monitors on the network
var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find monitors on the network",
	Long: `Find running monitors using mDNS/DNS-SD discovery.

Monitors started with 'antstride monitor --mdns' advertise themselves as
` + discovery.ServiceType + `.`,
	Example: `  # Scan for 5 seconds (default)
  antstride discover

  # Longer scan for busy networks
  antstride discover --timeout 15`,
	Args: cobra.NoArgs,
	RunE: runDiscover,
}

// statusCmd prints one reading from a monitor
var statusCmd = &cobra.Command{
	Use:   "status [address]",
	Short: "Show the current reading of a monitor",
	Long: `Query a monitor's REST API and print the current reading.

Without an address the monitor advertising --name is used, or the first
monitor found over mDNS.`,
	Example: `  antstride status 192.168.1.20:8457
  antstride status --name kitchen --format json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

// watchCmd shows a monitor's readings live
var watchCmd = &cobra.Command{
	Use:   "watch [address]",
	Short: "Watch a monitor's readings live",
	Long: `Connect to a monitor's websocket feed and show readings as they change.

Without an address the monitor advertising --name is used, or the first
monitor found over mDNS. When output is not a terminal, one JSON reading
is printed per line.`,
	Example: `  antstride watch 192.168.1.20:8457
  antstride watch | jq .state.stride_count`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	timeout := config.DefaultPreferences().DiscoverTimeout
	for _, cmd := range []*cobra.Command{discoverCmd, statusCmd, watchCmd} {
		cmd.Flags().IntVar(&scanTimeout, "timeout", timeout, "mDNS scan timeout in seconds")
	}
	for _, cmd := range []*cobra.Command{statusCmd, watchCmd} {
		cmd.Flags().StringVar(&monitorName, "name", "", "mDNS instance name of the monitor to use")
	}
	statusCmd.Flags().StringVar(&statusFormat, "format", "text", "Output format (text, json, yaml)")

	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(watchCmd)
}

// discoverTimeout returns the scan timeout, preferring the stored
// preference when --timeout was not given.
func discoverTimeout(cmd *cobra.Command) time.Duration {
	seconds := scanTimeout
	if !cmd.Flags().Changed("timeout") {
		if reg, err := config.LoadRegistry(); err == nil && reg.Preferences != nil && reg.Preferences.DiscoverTimeout > 0 {
			seconds = reg.Preferences.DiscoverTimeout
		}
	}
	return time.Duration(seconds) * time.Second
}

func runDiscover(cmd *cobra.Command, args []string) error {
	timeout := discoverTimeout(cmd)
	fmt.Printf("Scanning for monitors (timeout: %s)...\n\n", timeout)

	ctx, cancel := signalContext()
	defer cancel()

	monitors, err := discovery.ScanForMonitors(ctx, timeout)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if len(monitors) == 0 {
		fmt.Println("No monitors found.")
		fmt.Println("\nTroubleshooting:")
		fmt.Println("  - Start one with 'antstride monitor <capture>'")
		fmt.Println("  - Check that mDNS is not blocked between the machines")
		fmt.Println("  - Try increasing --timeout for slower networks")
		return nil
	}

	sort.Slice(monitors, func(i, j int) bool { return monitors[i].Instance < monitors[j].Instance })
	fmt.Printf("Found %d monitor(s):\n\n", len(monitors))

	for i, m := range monitors {
		fmt.Printf("%d. %s\n", i+1, m.Instance)
		fmt.Printf("   Address: %s\n", m.Addr())
		if v := m.GetMetadata("version"); v != "" {
			fmt.Printf("   Version: %s\n", v)
		}
		if d := m.GetMetadata("device"); d != "" {
			fmt.Printf("   Device:  %s\n", d)
		}
		fmt.Println()
	}

	fmt.Println("Use 'antstride status <address>' to read a monitor")
	fmt.Println("Use 'antstride watch <address>' to follow it live")
	return nil
}

// resolveMonitor returns the address given on the command line, the
// monitor advertising --name, or the first monitor found over mDNS.
func resolveMonitor(ctx context.Context, cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		if monitorName != "" {
			return "", fmt.Errorf("pass either an address or --name, not both")
		}
		return args[0], nil
	}

	if monitorName != "" {
		scanner := discovery.NewScanner()
		scanner.Timeout = discoverTimeout(cmd)
		m, err := scanner.WaitForMonitor(ctx, monitorName)
		if err != nil {
			return "", err
		}
		return m.Addr(), nil
	}

	monitors, err := discovery.ScanForMonitors(ctx, discoverTimeout(cmd))
	if err != nil {
		return "", fmt.Errorf("scan failed: %w", err)
	}
	if len(monitors) == 0 {
		return "", fmt.Errorf("no monitors found; pass an address or start one with 'antstride monitor'")
	}
	return monitors[0].Addr(), nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	if err := checkFormat(statusFormat); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	addr, err := resolveMonitor(ctx, cmd, args)
	if err != nil {
		return err
	}

	client := monitor.NewClient(addr, 5*time.Second)
	reading, err := client.Device()
	if err != nil {
		return err
	}

	if done, err := printStructured(statusFormat, reading); done || err != nil {
		return err
	}

	printer := ui.NewPrinter(nil)
	printer.PrintSnapshot("Stride sensor", stride.Snapshot{Device: reading.Device, State: reading.State})

	pages, err := client.Pages()
	if err != nil {
		return err
	}
	names := make([]string, 0, len(pages))
	for name := range pages {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := []ui.Field{ui.KnownField("Messages", fmt.Sprint(reading.Messages))}
	for _, name := range names {
		p := pages[name]
		fields = append(fields, ui.KnownField(name,
			fmt.Sprintf("%d (last %s)", p.Count, p.LastSeen.Local().Format(time.TimeOnly))))
	}
	printer.PrintFields("Pages", client.BaseURL(), fields)
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	addr, err := resolveMonitor(ctx, cmd, args)
	if err != nil {
		return err
	}
	return watch.Run(ctx, addr)
}
