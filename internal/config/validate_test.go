package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strataos/installer/internal/config"
)

func validConfig() *config.InstallConfig {
	return &config.InstallConfig{
		Name: "Test",
		Repositories: []config.Repository{
			{
				Name:          "bridge",
				Owner:         "acme",
				Repo:          "bridge",
				ReleaseAssets: []string{"*.apk"},
			},
		},
	}
}

func TestValidate_Valid(t *testing.T) {
	t.Parallel()

	require.NoError(t, config.Validate(validConfig()))
}

func TestValidate_OptionalVariableWithoutDefault(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Variables = []config.ConfigVariable{
		{Name: "port", Required: false},
	}

	err := config.Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `optional variable "port" must define a default`)
}

func TestValidate_RequiredVariableWithoutDefault(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Variables = []config.ConfigVariable{
		{Name: "port", Required: true},
	}

	require.NoError(t, config.Validate(cfg))
}

func TestValidate_NoRepositories(t *testing.T) {
	t.Parallel()

	cfg := &config.InstallConfig{Name: "Test"}

	err := config.Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one repository")
}

func TestValidate_DuplicateRepositoryNames(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Repositories = append(cfg.Repositories, cfg.Repositories[0])

	err := config.Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate repository name: bridge")
}

func TestValidate_MissingOwner(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Repositories[0].Owner = ""

	err := config.Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `repository "bridge" must have owner and repo`)
}

func TestValidate_NoArtifacts(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Repositories[0].ReleaseAssets = nil
	cfg.Repositories[0].RepoFiles = nil

	err := config.Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one release asset or repo file")
}

func TestValidate_RepoFilesOnly(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Repositories[0].ReleaseAssets = nil
	cfg.Repositories[0].RepoFiles = []string{"configs/layout.json"}

	require.NoError(t, config.Validate(cfg))
}

func TestFilterRepositories(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Repositories = append(cfg.Repositories, config.Repository{
		Name:          "sdk",
		Owner:         "acme",
		Repo:          "sdk",
		ReleaseAssets: []string{"*.apk"},
	})

	repos, err := cfg.FilterRepositories([]string{"sdk", "bridge"})
	require.NoError(t, err)
	require.Len(t, repos, 2)
	assert.Equal(t, "sdk", repos[0].Name)
	assert.Equal(t, "bridge", repos[1].Name)
}

func TestFilterRepositories_NotFound(t *testing.T) {
	t.Parallel()

	cfg := validConfig()

	_, err := cfg.FilterRepositories([]string{"bridge", "missing"})
	require.Error(t, err)

	var notFound *config.RepositoryNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "missing", notFound.Name)
}
