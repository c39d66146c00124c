// Package engine executes install plans against a connected device: global
// setup, then per-repository cleanup, artifact staging, and installation
// steps, strictly in order.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/strataos/installer/internal/config"
	"github.com/strataos/installer/internal/ui"
)

// globalRepoKey marks steps that run outside any repository; they stage
// against the staging root.
const globalRepoKey = "global"

// defaultAppOpsDelay is the settle time between app-op repetitions. The
// device applies appops writes lazily; repeating after a delay converges.
const defaultAppOpsDelay = 5 * time.Second

// Device is the command transport to the single connected device.
type Device interface {
	Shell(ctx context.Context, command string) (string, error)
	InstallPackage(ctx context.Context, path string) error
	UninstallPackage(ctx context.Context, name string) error
	Push(ctx context.Context, localPath, remotePath string) error
	Reboot(ctx context.Context) error
	ListPackages(ctx context.Context, substr string) ([]string, error)
}

// Resolver resolves repository versions and downloads artifacts into the
// staging directory.
type Resolver interface {
	ResolveVersion(ctx context.Context, repo *config.Repository) (string, error)
	DownloadAssets(ctx context.Context, owner, repo, version, namePattern, destDir string, excludePatterns []string) ([]string, error)
	DownloadRepoFile(ctx context.Context, owner, repo, version, filePath, dest string) error
}

// Options configures an Engine.
type Options struct {
	// Device is the connected device transport. Required for Install and
	// Uninstall; Download runs without one.
	Device Device
	// Resolver downloads artifacts. Required.
	Resolver Resolver
	// StagingDir holds downloaded artifacts, keyed by repository name.
	// Defaults to DefaultStagingDir().
	StagingDir string
	// Output receives progress messages. Defaults to a plain stdout writer.
	Output *ui.Writer
	// Logger for debug output.
	Logger *slog.Logger
	// AppOpsDelay overrides the settle time between app-op repetitions.
	// Zero means the default; tests set a negative value to disable waiting.
	AppOpsDelay time.Duration
}

// Engine owns one run. The staging directory is exclusively its for the run's
// duration; concurrent runs over the same staging dir are not supported.
type Engine struct {
	cfg         *config.InstallConfig
	device      Device
	resolver    Resolver
	stagingDir  string
	out         *ui.Writer
	logger      *slog.Logger
	appOpsDelay time.Duration
}

// DefaultStagingDir returns the ephemeral staging location.
func DefaultStagingDir() string {
	return filepath.Join(os.TempDir(), "strata-installer")
}

// New creates an Engine for the given (already substituted) plan.
func New(cfg *config.InstallConfig, opts Options) (*Engine, error) {
	if opts.Resolver == nil {
		return nil, fmt.Errorf("engine requires a resolver")
	}

	stagingDir := opts.StagingDir
	if stagingDir == "" {
		stagingDir = DefaultStagingDir()
	}

	if err := os.MkdirAll(stagingDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating staging directory %s: %w", stagingDir, err)
	}

	out := opts.Output
	if out == nil {
		out = ui.NewWriter(true)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	appOpsDelay := opts.AppOpsDelay
	switch {
	case appOpsDelay == 0:
		appOpsDelay = defaultAppOpsDelay
	case appOpsDelay < 0:
		appOpsDelay = 0
	}

	return &Engine{
		cfg:         cfg,
		device:      opts.Device,
		resolver:    opts.Resolver,
		stagingDir:  stagingDir,
		out:         out,
		logger:      logger,
		appOpsDelay: appOpsDelay,
	}, nil
}

// Install runs global setup and then installs each selected repository in
// configuration order. With cacheMode the staging directory must already be
// populated (by Download) and is retained afterwards; otherwise artifacts are
// downloaded per repository and staging is discarded at the end.
//
// Cancelling the context stops the run at the next checked boundary without
// rolling back completed work.
func (e *Engine) Install(ctx context.Context, repoNames []string, cacheMode bool) error {
	if e.device == nil {
		return fmt.Errorf("no device transport configured")
	}

	e.out.Stepf("starting %s installation", e.cfg.Name)

	for _, step := range e.cfg.GlobalSetup {
		if cancelled(ctx) {
			break
		}

		if err := e.executeInstallStep(ctx, step.Step, globalRepoKey); err != nil {
			return &StepError{Repo: globalRepoKey, Step: step.Type(), Err: err}
		}
	}

	repos, err := e.selectRepositories(repoNames)
	if err != nil {
		return err
	}

	e.out.Stepf("installing %d repositories", len(repos))

	for i := range repos {
		if cancelled(ctx) {
			break
		}

		if err := e.installRepository(ctx, &repos[i], cacheMode); err != nil {
			return err
		}
	}

	if !cacheMode {
		e.logger.Debug("removing staging directory", "dir", e.stagingDir)

		if err := os.RemoveAll(e.stagingDir); err != nil {
			return fmt.Errorf("removing staging directory: %w", err)
		}
	}

	e.out.Successf("%s installation complete", e.cfg.Name)

	if !cancelled(ctx) && rebootRequested(repos) {
		e.out.Step("rebooting device")

		if err := e.device.Reboot(ctx); err != nil {
			return fmt.Errorf("rebooting device: %w", err)
		}
	}

	return nil
}

// Uninstall runs cleanup steps for each selected repository in reverse
// configuration order. Installation steps never run.
func (e *Engine) Uninstall(ctx context.Context, repoNames []string) error {
	if e.device == nil {
		return fmt.Errorf("no device transport configured")
	}

	e.out.Stepf("starting %s uninstall", e.cfg.Name)

	repos, err := e.selectRepositories(repoNames)
	if err != nil {
		return err
	}

	for i := len(repos) - 1; i >= 0; i-- {
		if cancelled(ctx) {
			break
		}

		if err := e.uninstallRepository(ctx, &repos[i]); err != nil {
			return err
		}
	}

	e.out.Successf("%s uninstall complete", e.cfg.Name)

	return nil
}

// Download stages artifacts for each selected repository without touching the
// device, leaving the staging directory populated for a later cache-mode
// install.
func (e *Engine) Download(ctx context.Context, repoNames []string) error {
	e.out.Stepf("starting %s asset download", e.cfg.Name)

	repos, err := e.selectRepositories(repoNames)
	if err != nil {
		return err
	}

	for i := range repos {
		if cancelled(ctx) {
			break
		}

		repo := &repos[i]

		e.out.Stepf("downloading %s", repo.Name)

		if err := e.stageArtifacts(ctx, repo); err != nil {
			return err
		}
	}

	e.out.Success("download complete, assets cached for installation")

	return nil
}

func (e *Engine) selectRepositories(repoNames []string) ([]config.Repository, error) {
	if len(repoNames) == 0 {
		if len(e.cfg.Repositories) == 0 {
			return nil, ErrNoRepositories
		}

		return append([]config.Repository(nil), e.cfg.Repositories...), nil
	}

	repos, err := e.cfg.FilterRepositories(repoNames)
	if err != nil {
		return nil, err
	}

	if len(repos) == 0 {
		return nil, ErrNoRepositories
	}

	return repos, nil
}

func (e *Engine) installRepository(ctx context.Context, repo *config.Repository, cacheMode bool) error {
	e.out.Stepf("installing repository %s", repo.Name)

	if cacheMode {
		repoDir := e.repoStagingDir(repo.Name)
		if _, err := os.Stat(repoDir); err != nil {
			return fmt.Errorf("no cached assets for repository %q, run 'strata download' first", repo.Name)
		}
	} else if err := e.stageArtifacts(ctx, repo); err != nil {
		return err
	}

	for _, cleanup := range repo.Cleanup {
		if cancelled(ctx) {
			break
		}

		if err := e.executeCleanupStep(ctx, cleanup.CleanupOp); err != nil {
			return &StepError{Repo: repo.Name, Step: cleanup.Type(), Err: err}
		}
	}

	for _, step := range repo.Installation {
		if cancelled(ctx) {
			break
		}

		if err := e.executeInstallStep(ctx, step.Step, repo.Name); err != nil {
			return &StepError{Repo: repo.Name, Step: step.Type(), Err: err}
		}
	}

	e.out.Successf("%s installed", repo.Name)

	return nil
}

func (e *Engine) uninstallRepository(ctx context.Context, repo *config.Repository) error {
	if len(repo.Cleanup) == 0 {
		e.out.Stepf("no cleanup steps defined for %s", repo.Name)

		return nil
	}

	e.out.Stepf("uninstalling repository %s", repo.Name)

	for _, cleanup := range repo.Cleanup {
		if cancelled(ctx) {
			break
		}

		if err := e.executeCleanupStep(ctx, cleanup.CleanupOp); err != nil {
			return &StepError{Repo: repo.Name, Step: cleanup.Type(), Err: err}
		}
	}

	e.out.Successf("%s uninstalled", repo.Name)

	return nil
}

// stageArtifacts resolves the repository's version and downloads matching
// release assets and repository files into its staging directory.
func (e *Engine) stageArtifacts(ctx context.Context, repo *config.Repository) error {
	version, err := e.resolver.ResolveVersion(ctx, repo)
	if err != nil {
		return fmt.Errorf("resolving version for %s: %w", repo.Name, err)
	}

	e.out.Stepf("%s version %s", repo.Name, version)

	repoDir := e.repoStagingDir(repo.Name)
	if err := os.MkdirAll(repoDir, 0o750); err != nil {
		return fmt.Errorf("creating staging directory for %s: %w", repo.Name, err)
	}

	excludePatterns := firstAPKExcludes(repo)

	for _, namePattern := range repo.ReleaseAssets {
		if cancelled(ctx) {
			break
		}

		downloaded, err := e.resolver.DownloadAssets(
			ctx, repo.Owner, repo.Repo, version, namePattern, repoDir, excludePatterns)
		if err != nil {
			return fmt.Errorf("downloading assets for %s: %w", repo.Name, err)
		}

		if len(downloaded) == 0 {
			e.out.Warningf("no release assets matched pattern %q", namePattern)
		}
	}

	for _, filePath := range repo.RepoFiles {
		if cancelled(ctx) {
			break
		}

		e.out.Stepf("downloading repository file %s", filePath)

		dest := repoDir
		if !strings.Contains(filePath, "*") {
			dest = filepath.Join(repoDir, path.Base(filePath))
		}

		if err := e.resolver.DownloadRepoFile(ctx, repo.Owner, repo.Repo, version, filePath, dest); err != nil {
			return fmt.Errorf("downloading repo file %s for %s: %w", filePath, repo.Name, err)
		}
	}

	return nil
}

// repoStagingDir returns the staging directory for a repository. Global setup
// steps stage against the root.
func (e *Engine) repoStagingDir(repoName string) string {
	if repoName == globalRepoKey {
		return e.stagingDir
	}

	return filepath.Join(e.stagingDir, repoName)
}

// firstAPKExcludes returns the exclude patterns of the first InstallApks step
// in the repository's installation list. Later InstallApks steps do not
// contribute download exclusions.
func firstAPKExcludes(repo *config.Repository) []string {
	for _, step := range repo.Installation {
		if apks, ok := step.Step.(*config.InstallApks); ok {
			return apks.ExcludePatterns
		}
	}

	return nil
}

func rebootRequested(repos []config.Repository) bool {
	for i := range repos {
		if repos[i].RebootAfterCompletion {
			return true
		}
	}

	return false
}

func cancelled(ctx context.Context) bool {
	return ctx.Err() != nil
}
