package config

import (
	"fmt"
	"strings"
)

// Validate checks the structural invariants of an install plan. It is called
// by the loaders; configs built in code should call it before use.
func Validate(cfg *InstallConfig) error {
	for i := range cfg.Variables {
		v := &cfg.Variables[i]

		if strings.TrimSpace(v.Name) == "" {
			return fmt.Errorf("variables[%d]: name is required", i)
		}

		if !v.Required && v.Default == nil {
			return fmt.Errorf("optional variable %q must define a default value", v.Name)
		}
	}

	if len(cfg.Repositories) == 0 {
		return fmt.Errorf("configuration must have at least one repository")
	}

	seen := make(map[string]bool, len(cfg.Repositories))

	for i := range cfg.Repositories {
		repo := &cfg.Repositories[i]

		if strings.TrimSpace(repo.Name) == "" {
			return fmt.Errorf("repositories[%d]: name is required", i)
		}

		if seen[repo.Name] {
			return fmt.Errorf("duplicate repository name: %s", repo.Name)
		}

		seen[repo.Name] = true

		if repo.Owner == "" || repo.Repo == "" {
			return fmt.Errorf("repository %q must have owner and repo", repo.Name)
		}

		if len(repo.ReleaseAssets) == 0 && len(repo.RepoFiles) == 0 {
			return fmt.Errorf("repository %q must have at least one release asset or repo file", repo.Name)
		}
	}

	return nil
}
