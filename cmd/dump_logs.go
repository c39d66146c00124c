package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/strataos/installer/internal/adb"
	"github.com/strataos/installer/internal/ui"
)

var dumpLogsStream bool

var dumpLogsCmd = &cobra.Command{
	Use:   "dump-logs",
	Short: "Capture the device log to a local file",
	Long: `Dump-logs writes the device logcat buffer to a timestamped file in the
current directory. With --stream it follows the log until interrupted.`,
	RunE: runDumpLogs,
}

func init() {
	dumpLogsCmd.Flags().BoolVarP(&dumpLogsStream, "stream", "s", false, "follow the log until interrupted")
	rootCmd.AddCommand(dumpLogsCmd)
}

func runDumpLogs(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	device, err := adb.Connect(ctx, slog.Default())
	if err != nil {
		return err
	}

	filename := fmt.Sprintf("strata_log_dump_%d.log", time.Now().UnixMilli())

	file, err := os.Create(filename) //nolint:gosec // filename is generated from a timestamp
	if err != nil {
		return fmt.Errorf("creating log file %s: %w", filename, err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			slog.Warn("failed to close log file", "file", filename, "err", err)
		}
	}()

	out := ui.NewWriter(noColor)

	if dumpLogsStream {
		out.Stepf("streaming device log to %s, press Ctrl-C to stop", filename)

		if err := device.StreamLogcat(ctx, file); err != nil {
			return err
		}

		out.Successf("wrote %s", filename)

		return nil
	}

	output, err := device.Shell(ctx, "logcat -d")
	if err != nil {
		return fmt.Errorf("dumping logcat: %w", err)
	}

	if _, err := file.WriteString(output); err != nil {
		return fmt.Errorf("writing log file %s: %w", filename, err)
	}

	out.Successf("wrote %d lines to %s", strings.Count(output, "\n")+1, filename)

	return nil
}
