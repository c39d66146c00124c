package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var listConfig string

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List the repositories in an install plan",
	Aliases: []string{"ls"},
	RunE:    runList,
}

func init() {
	listCmd.Flags().StringVar(&listConfig, "config", "", "path to an install plan file")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd.Context(), listConfig, "")
	if err != nil {
		return err
	}

	fmt.Printf("Repositories in %q:\n", cfg.Name)

	for i := range cfg.Repositories {
		repo := &cfg.Repositories[i]

		fmt.Printf("  %s\n", repo.Name)
		fmt.Printf("     repository: %s/%s\n", repo.Owner, repo.Repo)
		fmt.Printf("     version: %s\n", repo.ResolvedVersion())

		if repo.Optional {
			fmt.Println("     optional: true")
		}

		if len(repo.ReleaseAssets) > 0 {
			fmt.Printf("     assets: %s\n", strings.Join(repo.ReleaseAssets, ", "))
		}

		if len(repo.RepoFiles) > 0 {
			fmt.Printf("     files: %s\n", strings.Join(repo.RepoFiles, ", "))
		}
	}

	return nil
}
