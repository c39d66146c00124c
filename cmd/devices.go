package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/strataos/installer/internal/adb"
	"github.com/strataos/installer/internal/ui"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "Check that exactly one device is connected and ready",
	RunE:  runDevices,
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}

func runDevices(cmd *cobra.Command, _ []string) error {
	out := ui.NewWriter(noColor)

	device, err := adb.Connect(cmd.Context(), slog.Default())

	switch {
	case err == nil:
		out.Successf("device %s connected and ready for installation", device.Serial())

		return nil
	case errors.Is(err, adb.ErrNoDevice):
		out.Warning("no device connected")
		out.Warning("connect a device and enable USB debugging")
	case errors.Is(err, adb.ErrMultipleDevices):
		out.Warning("multiple devices connected")
		out.Warning("connect exactly one device for installation")
	case errors.Is(err, adb.ErrUnauthorized):
		out.Warning("device unauthorized")
		out.Warning("accept the USB debugging prompt on the device")
	default:
		return fmt.Errorf("device connection failed: %w", err)
	}

	return err
}
