package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/antstride/internal/capture"
	"github.com/muurk/antstride/internal/config"
	"github.com/muurk/antstride/internal/logging"
	"github.com/muurk/antstride/internal/stride"
	"github.com/muurk/antstride/internal/ui"
)

// Channel flags shared by replay and monitor
var (
	deviceNumber     uint16
	transmissionType uint8
	rememberedDevice string
)

func addChannelFlags(cmd *cobra.Command) {
	cmd.Flags().Uint16Var(&deviceNumber, "device-number", stride.WildcardDeviceNumber,
		"Device number to pair with (0 pairs with the first stride sensor)")
	cmd.Flags().Uint8Var(&transmissionType, "transmission-type", 0,
		"Transmission type to pair with (0 matches any)")
	cmd.Flags().StringVar(&rememberedDevice, "device", "",
		"Pair with a remembered device, by nickname or number")
}

// channelIdentity resolves the channel flags to the identity the decoder
// should search for.
func channelIdentity() (stride.Identity, error) {
	id := stride.Identity{DeviceNumber: deviceNumber, TransmissionType: transmissionType}
	if rememberedDevice == "" {
		return id, nil
	}

	reg, err := config.LoadRegistry()
	if err != nil {
		return id, fmt.Errorf("failed to load device registry: %w", err)
	}
	number, device, err := findDevice(reg, rememberedDevice)
	if err != nil {
		return id, err
	}
	return device.Identity(number), nil
}

// openCapture opens path, or stdin for "-".
func openCapture(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture: %w", err)
	}
	return f, nil
}

var (
	replayRealtime bool
	replayRemember bool
	replayFormat   string
)

// replayCmd runs a decoder against a capture file
var replayCmd = &cobra.Command{
	Use:   "replay <capture>",
	Short: "Decode a capture file",
	Long: `Replay a capture file through the stride decoder.

The capture holds one channel message per line in hex. Lines starting with
'#' are comments. Messages carrying a channel ID are filtered the way a
receiver channel would filter them: only the first stride sensor matching
--device-number and --transmission-type is paired. Plain 9-byte messages
carry no channel ID: they are forwarded, and they pair only when both
--device-number and --transmission-type are non-zero. Lines that are not
hex are skipped and counted as malformed.

Events are printed as they happen and the final state is printed at the end.`,
	Example: `  # Decode everything in a capture as fast as possible
  antstride replay run.cap

  # Pair with one sensor, at the real message rate
  antstride replay run.cap --device-number 12345 --realtime

  # Store the sensor for later runs
  antstride replay run.cap --remember`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	addChannelFlags(replayCmd)
	replayCmd.Flags().BoolVar(&replayRealtime, "realtime", false, "Pace messages at the channel period")
	replayCmd.Flags().BoolVar(&replayRemember, "remember", false, "Store the paired device in the registry")
	replayCmd.Flags().StringVar(&replayFormat, "format", "text", "Final state format (text, json, yaml)")
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	if err := checkFormat(replayFormat); err != nil {
		return err
	}
	id, err := channelIdentity()
	if err != nil {
		return err
	}

	in, err := openCapture(args[0])
	if err != nil {
		return err
	}
	defer in.Close()

	var opts []capture.Option
	if !replayRealtime {
		opts = append(opts, capture.WithInterval(0))
	}
	replayer := capture.NewReplayer(capture.NewReader(in), opts...)

	printer := ui.NewPrinter(nil)
	structured := replayFormat != "text"
	decoder := stride.NewDecoder(id.DeviceNumber, id.TransmissionType, stride.CallbackFuncs{
		OnDeviceFound: func(deviceNumber uint16, transmissionType uint8) {
			if !structured {
				printer.PrintEvent("Device found: %d/%d", deviceNumber, transmissionType)
			}
		},
		OnStrideData: func(numSteps uint8, distance stride.Optional[float64]) {
			if !structured {
				printer.PrintEvent("Stride data: %d steps, distance %s", numSteps, distance)
			}
		},
	})
	if err := decoder.Start(replayer); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	runErr := replayer.Run(ctx)
	stats := replayer.Stats()
	logging.Info("Replay stats",
		zap.Int("read", stats.Read),
		zap.Int("forwarded", stats.Forwarded),
		zap.Int("filtered", stats.Filtered),
		zap.Int("malformed", stats.Malformed),
	)

	if errors.Is(runErr, capture.ErrDeviceNotFound) {
		printer.PrintError("No stride sensor in capture", runErr, []string{
			fmt.Sprintf("%d messages read, %d filtered, %d malformed", stats.Read, stats.Filtered, stats.Malformed),
			"Check --device-number and --transmission-type",
			"Use --device-number 0 to pair with any stride sensor",
		})
		return runErr
	}
	if runErr != nil && ctx.Err() == nil {
		return fmt.Errorf("replay failed: %w", runErr)
	}

	snap := decoder.Snapshot()
	done, err := printStructured(replayFormat, snap)
	if err != nil {
		return err
	}
	if !done {
		printer.PrintEvent("Replayed %d of %d messages (%d filtered, %d malformed)",
			stats.Forwarded, stats.Read, stats.Filtered, stats.Malformed)
		printer.PrintSnapshot("Stride sensor", snap)
	}

	if replayRemember {
		return rememberSnapshot(printer, snap, !structured)
	}
	return nil
}

func rememberSnapshot(printer *ui.Printer, snap stride.Snapshot, verbose bool) error {
	reg, err := config.LoadRegistry()
	if err != nil {
		return fmt.Errorf("failed to load device registry: %w", err)
	}
	device, err := reg.RememberDevice(snap)
	if err != nil {
		return err
	}
	if err := reg.Save(); err != nil {
		return err
	}

	id, _ := snap.Device.Get()
	if verbose {
		printer.PrintEvent("Remembered %s", device.DisplayName(id.DeviceNumber))
	}
	return nil
}
