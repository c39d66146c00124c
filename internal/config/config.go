// Package config handles parsing, validation, and variable substitution of
// install plan documents.
package config

import "fmt"

// VersionLatest is the sentinel version that resolves dynamically to the most
// recent release of a repository.
const VersionLatest = "latest"

// InstallConfig is the top-level install plan: the variables it declares, the
// repositories to install, and setup steps that run before any repository.
type InstallConfig struct {
	Name         string           `yaml:"name"`
	Variables    []ConfigVariable `yaml:"variables,omitempty"`
	Repositories []Repository     `yaml:"repositories"`
	GlobalSetup  []InstallStep    `yaml:"global_setup,omitempty"`
}

// ConfigVariable declares a named value that may be referenced as {{name}}
// in string fields throughout the plan.
type ConfigVariable struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description,omitempty"`
	Required    bool    `yaml:"required,omitempty"`
	Default     *string `yaml:"default,omitempty"`
}

// Repository is one named unit of software: a source-hosting project, a
// version, the artifacts to stage, and the ordered steps that install it.
type Repository struct {
	Name                  string        `yaml:"name"`
	Owner                 string        `yaml:"owner"`
	Repo                  string        `yaml:"repo"`
	Version               string        `yaml:"version,omitempty"`
	Optional              bool          `yaml:"optional,omitempty"`
	RebootAfterCompletion bool          `yaml:"reboot_after_completion,omitempty"`
	Cleanup               []CleanupStep `yaml:"cleanup,omitempty"`
	ReleaseAssets         []string      `yaml:"releaseAssets,omitempty"`
	RepoFiles             []string      `yaml:"repoFiles,omitempty"`
	Installation          []InstallStep `yaml:"installation"`
}

// ResolvedVersion returns the repository's version spec, defaulting to the
// latest sentinel when unset.
func (r *Repository) ResolvedVersion() string {
	if r.Version == "" {
		return VersionLatest
	}

	return r.Version
}

// FilePush maps a local glob pattern (relative to the repository's staging
// directory) to a remote destination. A remote ending in "/" is treated as a
// directory; otherwise it is the exact target path.
type FilePush struct {
	Local  string `yaml:"local"`
	Remote string `yaml:"remote"`
	Chmod  string `yaml:"chmod,omitempty"`
}

// PermissionGrant grants a single runtime permission to a package.
type PermissionGrant struct {
	Package    string `yaml:"package"`
	Permission string `yaml:"permission"`
}

// AppOpGrant sets one app-op mode for a package.
type AppOpGrant struct {
	Package   string `yaml:"package"`
	Operation string `yaml:"operation"`
	Mode      string `yaml:"mode"`
}

// RepositoryNotFoundError reports a repository filter naming a repository
// that does not exist in the plan.
type RepositoryNotFoundError struct {
	Name string
}

func (e *RepositoryNotFoundError) Error() string {
	return fmt.Sprintf("repository %q not found in configuration", e.Name)
}

// Repository returns the named repository, or nil if absent.
func (c *InstallConfig) Repository(name string) *Repository {
	for i := range c.Repositories {
		if c.Repositories[i].Name == name {
			return &c.Repositories[i]
		}
	}

	return nil
}

// FilterRepositories returns the repositories named in names, in the order
// given. The first unknown name fails the whole call with
// RepositoryNotFoundError; there is no partial result.
func (c *InstallConfig) FilterRepositories(names []string) ([]Repository, error) {
	filtered := make([]Repository, 0, len(names))

	for _, name := range names {
		repo := c.Repository(name)
		if repo == nil {
			return nil, &RepositoryNotFoundError{Name: name}
		}

		filtered = append(filtered, *repo)
	}

	return filtered, nil
}
