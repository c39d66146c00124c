// Package getter wraps hashicorp/go-getter for downloading release assets,
// raw repository files, and remote install plans.
package getter

import (
	"context"
	"fmt"
	"log/slog"

	getter "github.com/hashicorp/go-getter/v2"
)

// Getter downloads single files over http, https, and file sources.
type Getter struct {
	client *getter.Client
	logger *slog.Logger
}

// New creates a Getter with default configuration.
func New(logger *slog.Logger) *Getter {
	if logger == nil {
		logger = slog.Default()
	}

	return &Getter{
		client: &getter.Client{
			DisableSymlinks: true,
		},
		logger: logger,
	}
}

// FetchFile downloads a single file from src to dest.
func (g *Getter) FetchFile(ctx context.Context, src, dest string) error {
	g.logger.Debug("fetching file", "src", src, "dest", dest)

	req := &getter.Request{
		Src:             src,
		Dst:             dest,
		GetMode:         getter.ModeFile,
		DisableSymlinks: true,
	}

	if _, err := g.client.Get(ctx, req); err != nil {
		return fmt.Errorf("fetching file %s: %w", src, err)
	}

	return nil
}
