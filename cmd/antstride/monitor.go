package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/antstride/internal/capture"
	"github.com/muurk/antstride/internal/config"
	"github.com/muurk/antstride/internal/discovery"
	"github.com/muurk/antstride/internal/logging"
	"github.com/muurk/antstride/internal/monitor"
	"github.com/muurk/antstride/internal/stride"
	"github.com/muurk/antstride/internal/ui"
	"github.com/muurk/antstride/internal/version"
)

var (
	monitorHost     string
	monitorPort     int
	monitorMDNS     bool
	monitorRecord   string
	monitorInstance string
)

// monitorCmd serves a decoder over HTTP and websocket
var monitorCmd = &cobra.Command{
	Use:   "monitor <capture>",
	Short: "Serve decoded readings over HTTP",
	Long: `Replay a capture at the channel rate and serve the decoder state.

Endpoints:
  GET /api/device  current reading (unknown fields are null)
  GET /api/pages   message count and last-seen time per data page
  GET /ws          websocket pushing a reading on every change

The monitor keeps serving the final state after the capture ends, until it
is interrupted. With --mdns it is advertised as ` + discovery.ServiceType + ` so
'antstride discover' and 'antstride watch' can find it.`,
	Example: `  # Serve on the default port and advertise over mDNS
  antstride monitor run.cap

  # Pair with one sensor and record what the channel received
  antstride monitor run.cap --device-number 12345 --record paired.cap`,
	Args: cobra.ExactArgs(1),
	RunE: runMonitor,
}

func init() {
	prefs := config.DefaultPreferences()
	addChannelFlags(monitorCmd)
	monitorCmd.Flags().StringVar(&monitorHost, "host", prefs.MonitorHost, "Address to listen on")
	monitorCmd.Flags().IntVar(&monitorPort, "port", prefs.MonitorPort, "Port to listen on")
	monitorCmd.Flags().BoolVar(&monitorMDNS, "mdns", prefs.Advertise, "Advertise the monitor over mDNS")
	monitorCmd.Flags().StringVar(&monitorRecord, "record", "", "Write the messages forwarded to the decoder to a capture file")
	monitorCmd.Flags().StringVar(&monitorInstance, "name", "", "mDNS instance name (default antstride-<hostname>)")
	rootCmd.AddCommand(monitorCmd)
}

// applyMonitorPreferences fills flags the user did not set from the registry.
func applyMonitorPreferences(cmd *cobra.Command) {
	reg, err := config.LoadRegistry()
	if err != nil || reg.Preferences == nil {
		return
	}
	prefs := reg.Preferences
	if !cmd.Flags().Changed("host") && prefs.MonitorHost != "" {
		monitorHost = prefs.MonitorHost
	}
	if !cmd.Flags().Changed("port") && prefs.MonitorPort != 0 {
		monitorPort = prefs.MonitorPort
	}
	if !cmd.Flags().Changed("mdns") {
		monitorMDNS = prefs.Advertise
	}
}

func runMonitor(cmd *cobra.Command, args []string) error {
	applyMonitorPreferences(cmd)

	id, err := channelIdentity()
	if err != nil {
		return err
	}

	in, err := openCapture(args[0])
	if err != nil {
		return err
	}
	defer in.Close()

	replayer := capture.NewReplayer(capture.NewReader(in))
	tap := monitor.NewTap(replayer)

	if monitorRecord != "" {
		f, err := os.Create(monitorRecord)
		if err != nil {
			return fmt.Errorf("failed to create recording: %w", err)
		}
		defer f.Close()
		w, err := capture.NewWriter(f)
		if err != nil {
			return err
		}
		tap.SetRecorder(w)
	}

	printer := ui.NewPrinter(nil)
	decoder := stride.NewDecoder(id.DeviceNumber, id.TransmissionType, stride.CallbackFuncs{
		OnDeviceFound: func(deviceNumber uint16, transmissionType uint8) {
			printer.PrintEvent("Device found: %d/%d", deviceNumber, transmissionType)
		},
	})
	if err := decoder.Start(tap); err != nil {
		return err
	}

	cfg := &monitor.Config{Host: monitorHost, Port: monitorPort}
	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Addr(), err)
	}
	srv := monitor.New(cfg, decoder, tap)

	ctx, cancel := signalContext()
	defer cancel()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ctx, ln)
	}()
	printer.PrintEvent("Monitor listening on http://%s", ln.Addr())

	if monitorMDNS {
		instance := monitorInstance
		if instance == "" {
			instance = defaultInstance()
		}
		device := ""
		if id.DeviceNumber != stride.WildcardDeviceNumber {
			device = id.String()
		}
		port := ln.Addr().(*net.TCPAddr).Port
		go func() {
			text := discovery.AdvertiseText(version.Version, device)
			if err := discovery.Advertise(ctx, instance, port, text); err != nil {
				logging.Warn("mDNS advertisement failed", zap.Error(err))
			}
		}()
		printer.PrintEvent("Advertising %q as %s", instance, discovery.ServiceType)
	}

	runErr := replayer.Run(ctx)
	switch {
	case ctx.Err() != nil:
	case errors.Is(runErr, capture.ErrDeviceNotFound):
		printer.PrintEvent("Capture ended without a matching stride sensor")
	case runErr != nil:
		cancel()
		<-serveErr
		return fmt.Errorf("replay failed: %w", runErr)
	default:
		stats := replayer.Stats()
		printer.PrintEvent("Capture finished: %d messages forwarded. Serving until interrupted.", stats.Forwarded)
	}

	return <-serveErr
}

func defaultInstance() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "antstride-" + strconv.Itoa(os.Getpid())
	}
	return "antstride-" + host
}
