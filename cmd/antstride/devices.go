package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/muurk/antstride/internal/config"
	"github.com/muurk/antstride/internal/ui"
)

// devicesCmd manages the remembered stride sensors
var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "Manage remembered stride sensors",
	Long: `List, rename and forget the stride sensors stored with 'replay --remember'.

Remembered sensors can be selected by nickname or number with --device.`,
}

var devicesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List remembered stride sensors",
	Args:  cobra.NoArgs,
	RunE:  runDevicesList,
}

var devicesForgetCmd = &cobra.Command{
	Use:   "forget <device>",
	Short: "Forget a stride sensor",
	Args:  cobra.ExactArgs(1),
	RunE:  runDevicesForget,
}

var devicesNicknameCmd = &cobra.Command{
	Use:     "nickname <device> <nickname>",
	Short:   "Set the nickname of a stride sensor",
	Example: `  antstride devices nickname 12345 "left shoe"`,
	Args:    cobra.ExactArgs(2),
	RunE:    runDevicesNickname,
}

func init() {
	devicesCmd.AddCommand(devicesListCmd)
	devicesCmd.AddCommand(devicesForgetCmd)
	devicesCmd.AddCommand(devicesNicknameCmd)
	rootCmd.AddCommand(devicesCmd)
}

// findDevice looks a device up by nickname, then by number.
func findDevice(reg *config.Registry, ref string) (uint16, *config.Device, error) {
	for _, n := range reg.DeviceNumbers() {
		if d := reg.GetDevice(n); d != nil && d.Nickname == ref {
			return n, d, nil
		}
	}

	n, err := strconv.ParseUint(ref, 10, 16)
	if err == nil {
		if d := reg.GetDevice(uint16(n)); d != nil {
			return uint16(n), d, nil
		}
	}
	return 0, nil, fmt.Errorf("no remembered device %q (see 'antstride devices list')", ref)
}

func runDevicesList(cmd *cobra.Command, args []string) error {
	reg, err := config.LoadRegistry()
	if err != nil {
		return fmt.Errorf("failed to load device registry: %w", err)
	}

	numbers := reg.DeviceNumbers()
	if len(numbers) == 0 {
		fmt.Println("No remembered devices.")
		fmt.Println("\nUse 'antstride replay <capture> --remember' to store one.")
		return nil
	}

	printer := ui.NewPrinter(nil)
	for _, n := range numbers {
		d := reg.GetDevice(n)
		fields := []ui.Field{
			ui.KnownField("Device", d.Identity(n).String()),
		}
		if !d.LastSeen.IsZero() {
			fields = append(fields, ui.KnownField("Last seen", d.LastSeen.Local().Format("2006-01-02 15:04")))
		}
		if p := d.Product; p != nil {
			fields = append(fields,
				ui.Field{Key: "Manufacturer ID", Value: p.ManufacturerID.String(), Known: p.ManufacturerID.Known()},
				ui.Field{Key: "Model number", Value: p.ModelNumber.String(), Known: p.ModelNumber.Known()},
				ui.Field{Key: "Serial number", Value: p.SerialNumber.String(), Known: p.SerialNumber.Known()},
			)
		}
		printer.PrintFields(d.DisplayName(n), "", fields)
	}
	return nil
}

func runDevicesForget(cmd *cobra.Command, args []string) error {
	reg, err := config.LoadRegistry()
	if err != nil {
		return fmt.Errorf("failed to load device registry: %w", err)
	}

	n, d, err := findDevice(reg, args[0])
	if err != nil {
		return err
	}
	name := d.DisplayName(n)
	reg.RemoveDevice(n)
	if err := reg.Save(); err != nil {
		return err
	}

	fmt.Printf("Forgot %s\n", name)
	return nil
}

func runDevicesNickname(cmd *cobra.Command, args []string) error {
	reg, err := config.LoadRegistry()
	if err != nil {
		return fmt.Errorf("failed to load device registry: %w", err)
	}

	n, _, err := findDevice(reg, args[0])
	if err != nil {
		return err
	}
	reg.SetDeviceNickname(n, args[1])
	if err := reg.Save(); err != nil {
		return err
	}

	fmt.Printf("Device %d is now %q\n", n, args[1])
	return nil
}
