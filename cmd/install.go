package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/strataos/installer/internal/adb"
	"github.com/strataos/installer/internal/config"
	"github.com/strataos/installer/internal/engine"
	"github.com/strataos/installer/internal/github"
	"github.com/strataos/installer/internal/ui"
)

var (
	installRepos     []string
	installConfig    string
	installConfigURL string
	installCacheDir  string
)

var installCmd = &cobra.Command{
	Use:   "install [-- --name value ...]",
	Short: "Install repositories onto the connected device",
	Long: `Install downloads release artifacts for each configured repository and
applies its installation steps to the connected device.

Configuration variables can be overridden with trailing flags after "--":

  strata install --repos sdk -- --bridge_port 9000`,
	RunE: runInstall,
}

func init() {
	installCmd.Flags().StringSliceVar(&installRepos, "repos", nil, "repositories to install (default: all)")
	installCmd.Flags().StringVar(&installConfig, "config", "", "path to an install plan file")
	installCmd.Flags().StringVar(&installConfigURL, "config-url", "", "URL of an install plan")
	installCmd.Flags().StringVar(&installCacheDir, "cache-dir", "", "install from pre-downloaded assets in this directory")
	rootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, args []string) error {
	overrides, err := parseVariableOverrides(args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	cfg, err := loadConfig(ctx, installConfig, installConfigURL)
	if err != nil {
		return err
	}

	values, err := cfg.ResolveVariables(overrides)
	if err != nil {
		return err
	}

	cfg, err = cfg.ApplyVariables(values)
	if err != nil {
		return err
	}

	logger := slog.Default()

	device, err := adb.Connect(ctx, logger)
	if err != nil {
		return err
	}

	eng, err := engine.New(cfg, engine.Options{
		Device:     device,
		Resolver:   github.New(githubToken, logger),
		StagingDir: installCacheDir,
		Output:     ui.NewWriter(noColor),
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	return eng.Install(ctx, installRepos, installCacheDir != "")
}

// loadConfig loads the install plan from a local path, a URL, or the
// built-in default. Path and URL are mutually exclusive.
func loadConfig(ctx context.Context, path, url string) (*config.InstallConfig, error) {
	switch {
	case path != "" && url != "":
		return nil, fmt.Errorf("--config and --config-url are mutually exclusive")
	case path != "":
		return config.LoadFile(path)
	case url != "":
		return config.LoadURL(ctx, url, slog.Default())
	default:
		return config.LoadBuiltin(builtinConfigName)
	}
}
