package cmd

import (
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/strataos/installer/internal/engine"
	"github.com/strataos/installer/internal/github"
	"github.com/strataos/installer/internal/ui"
)

var (
	downloadRepos    []string
	downloadCacheDir string
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Pre-download release assets for a later cached install",
	Long: `Download stages each repository's release assets into the cache
directory without touching a device. A later "strata install --cache-dir"
installs from the cache without network access.`,
	RunE: runDownload,
}

func init() {
	downloadCmd.Flags().StringSliceVar(&downloadRepos, "repos", nil, "repositories to download (default: all)")
	downloadCmd.Flags().StringVar(&downloadCacheDir, "cache-dir", "", "directory to stage assets into")

	if err := downloadCmd.MarkFlagRequired("cache-dir"); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	cfg, err := loadConfig(ctx, "", "")
	if err != nil {
		return err
	}

	logger := slog.Default()

	eng, err := engine.New(cfg, engine.Options{
		Resolver:   github.New(githubToken, logger),
		StagingDir: downloadCacheDir,
		Output:     ui.NewWriter(noColor),
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	return eng.Download(ctx, downloadRepos)
}
