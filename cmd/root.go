// Package cmd defines the CLI commands for the strata installer.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/strataos/installer/internal/ui"
)

// builtinConfigName selects the install plan embedded in the binary when no
// --config or --config-url is given.
const builtinConfigName = "strata"

var (
	verbose     bool
	noColor     bool
	githubToken string
)

// rootCmd is the base command for the strata CLI.
var rootCmd = &cobra.Command{
	Use:   "strata",
	Short: "StrataOS official installer",
	Long: `Strata provisions a StrataOS device: it resolves versioned release
artifacts from GitHub, stages them locally, and applies the configured
installation steps to the single connected device over adb.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		initLogger()

		if githubToken == "" {
			githubToken = os.Getenv("GITHUB_TOKEN")
		}
	},
}

// Execute runs the root command, printing any error through the styled
// writer.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		ui.NewWriter(noColor).Errorf("%v", err)
	}

	return err
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&githubToken, "github-token", "", "GitHub API token (defaults to $GITHUB_TOKEN)")
}

func initLogger() {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}
