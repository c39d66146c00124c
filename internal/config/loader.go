package config

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/strataos/installer/internal/getter"
)

//go:embed builtin/*.yaml
var builtinConfigs embed.FS

// LoadBuiltin loads one of the install plans embedded in the binary.
func LoadBuiltin(name string) (*InstallConfig, error) {
	data, err := builtinConfigs.ReadFile("builtin/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("unknown built-in config %q", name)
	}

	cfg, err := Load(data)
	if err != nil {
		return nil, fmt.Errorf("built-in config %q: %w", name, err)
	}

	return cfg, nil
}

// LoadFile reads and parses an install plan from a local path.
func LoadFile(path string) (*InstallConfig, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	cfg, err := Load(data)
	if err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	return cfg, nil
}

// LoadURL fetches an install plan from a remote URL into a temporary file and
// parses it.
func LoadURL(ctx context.Context, url string, logger *slog.Logger) (*InstallConfig, error) {
	tmpDir, err := os.MkdirTemp("", "strata-config-")
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			slog.Warn("failed to clean up temp config", "dir", tmpDir, "err", err)
		}
	}()

	dest := filepath.Join(tmpDir, "config.yaml")

	if err := getter.New(logger).FetchFile(ctx, url, dest); err != nil {
		return nil, fmt.Errorf("fetching config from %s: %w", url, err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		return nil, fmt.Errorf("reading fetched config: %w", err)
	}

	cfg, err := Load(data)
	if err != nil {
		return nil, fmt.Errorf("config from %s: %w", url, err)
	}

	return cfg, nil
}

// Load parses and validates an install plan document.
func Load(data []byte) (*InstallConfig, error) {
	var cfg InstallConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}
