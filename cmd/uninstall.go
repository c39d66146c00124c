package cmd

import (
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/strataos/installer/internal/adb"
	"github.com/strataos/installer/internal/engine"
	"github.com/strataos/installer/internal/github"
	"github.com/strataos/installer/internal/ui"
)

var uninstallRepos []string

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove installed repositories from the connected device",
	Long: `Uninstall runs each repository's cleanup steps in reverse configuration
order. Installation steps never run.`,
	RunE: runUninstall,
}

func init() {
	uninstallCmd.Flags().StringSliceVar(&uninstallRepos, "repos", nil, "repositories to uninstall (default: all)")
	rootCmd.AddCommand(uninstallCmd)
}

func runUninstall(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	cfg, err := loadConfig(ctx, "", "")
	if err != nil {
		return err
	}

	logger := slog.Default()

	device, err := adb.Connect(ctx, logger)
	if err != nil {
		return err
	}

	eng, err := engine.New(cfg, engine.Options{
		Device:   device,
		Resolver: github.New(githubToken, logger),
		Output:   ui.NewWriter(noColor),
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	return eng.Uninstall(ctx, uninstallRepos)
}
