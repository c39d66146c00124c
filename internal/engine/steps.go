package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/strataos/installer/internal/config"
	"github.com/strataos/installer/internal/pattern"
)

// appOpsRepetitions is the fixed number of times the full op list is applied.
// This is a convergence workaround for lazily-applied appops writes, not a
// generic retry policy.
const appOpsRepetitions = 3

// executeInstallStep interprets one installation step. The type switch covers
// every Step variant; an unknown variant is a programming error.
func (e *Engine) executeInstallStep(ctx context.Context, step config.Step, repoName string) error {
	switch s := step.(type) {
	case *config.CreateDirectories:
		return e.createDirectories(ctx, s)
	case *config.InstallApks:
		return e.installAPKs(ctx, s, repoName)
	case *config.PushFiles:
		return e.pushFiles(ctx, s, repoName)
	case *config.GrantPermissions:
		return e.grantPermissions(ctx, s)
	case *config.SetAppOps:
		return e.setAppOps(ctx, s)
	case *config.RunCommand:
		return e.runCommand(ctx, s)
	case *config.SetLauncher:
		return e.setLauncher(ctx, s)
	case *config.CreateConfig:
		return e.createConfig(ctx, s)
	default:
		return fmt.Errorf("unhandled installation step type %T", step)
	}
}

// executeCleanupStep interprets one cleanup operation.
func (e *Engine) executeCleanupStep(ctx context.Context, op config.CleanupOp) error {
	switch s := op.(type) {
	case *config.UninstallPackages:
		return e.uninstallPackages(ctx, s)
	case *config.RemoveDirectories:
		return e.removeDirectories(ctx, s)
	case *config.RemoveDirectoriesIfEmpty:
		return e.removeDirectoriesIfEmpty(ctx, s)
	case *config.RemoveFiles:
		return e.removeFiles(ctx, s)
	default:
		return fmt.Errorf("unhandled cleanup step type %T", op)
	}
}

func (e *Engine) createDirectories(ctx context.Context, s *config.CreateDirectories) error {
	for _, path := range s.Paths {
		if cancelled(ctx) {
			break
		}

		e.out.Stepf("creating directory %s", path)

		if _, err := e.device.Shell(ctx, "mkdir -p "+path); err != nil {
			return fmt.Errorf("creating directory %s: %w", path, err)
		}
	}

	return nil
}

func (e *Engine) installAPKs(ctx context.Context, s *config.InstallApks, repoName string) error {
	repoDir := e.repoStagingDir(repoName)

	apks, err := filepath.Glob(filepath.Join(repoDir, "*.apk"))
	if err != nil {
		return fmt.Errorf("listing staged APKs: %w", err)
	}

	apks = excludeAPKs(apks, s.ExcludePatterns)

	if len(apks) == 0 {
		e.out.Step("no APK files found to install")

		return nil
	}

	ordered := prioritizeAPKs(apks, s.PriorityOrder)

	e.out.Stepf("installing %d APKs", len(ordered))

	for _, apk := range ordered {
		if cancelled(ctx) {
			break
		}

		name := filepath.Base(apk)

		e.out.Stepf("installing APK %s", name)

		if err := e.device.InstallPackage(ctx, apk); err != nil {
			if s.AllowFailures {
				e.out.Warningf("failed to install %s (continuing): %v", name, err)

				continue
			}

			return &ApkInstallError{Apk: name, Err: err}
		}
	}

	return nil
}

func (e *Engine) pushFiles(ctx context.Context, s *config.PushFiles, repoName string) error {
	repoDir := e.repoStagingDir(repoName)

	for i := range s.Files {
		if cancelled(ctx) {
			break
		}

		if err := e.pushFile(ctx, repoDir, &s.Files[i]); err != nil {
			return err
		}
	}

	return nil
}

func (e *Engine) pushFile(ctx context.Context, repoDir string, f *config.FilePush) error {
	matches, err := filepath.Glob(filepath.Join(repoDir, f.Local))
	if err != nil {
		return fmt.Errorf("expanding pattern %q: %w", f.Local, err)
	}

	if len(matches) == 0 {
		e.logger.Debug("no staged files matched push pattern", "pattern", f.Local)
	}

	for _, local := range matches {
		if cancelled(ctx) {
			break
		}

		// A remote ending in "/" is a directory; otherwise it is the exact
		// target path, so multiple glob matches overwrite each other.
		remote := f.Remote
		if strings.HasSuffix(remote, "/") {
			remote += filepath.Base(local)
		}

		e.out.Stepf("pushing %s -> %s", filepath.Base(local), remote)

		if err := e.device.Push(ctx, local, remote); err != nil {
			return fmt.Errorf("pushing %s: %w", local, err)
		}

		if f.Chmod != "" {
			if _, err := e.device.Shell(ctx, fmt.Sprintf("chmod %s %s", f.Chmod, remote)); err != nil {
				return fmt.Errorf("chmod %s %s: %w", f.Chmod, remote, err)
			}
		}
	}

	return nil
}

func (e *Engine) grantPermissions(ctx context.Context, s *config.GrantPermissions) error {
	for _, grant := range s.Grants {
		if cancelled(ctx) {
			break
		}

		e.out.Stepf("granting %s to %s", grant.Permission, grant.Package)

		if _, err := e.device.Shell(ctx, fmt.Sprintf("pm grant %s %s", grant.Package, grant.Permission)); err != nil {
			return fmt.Errorf("granting %s to %s: %w", grant.Permission, grant.Package, err)
		}
	}

	return nil
}

func (e *Engine) setAppOps(ctx context.Context, s *config.SetAppOps) error {
	for i := 0; i < appOpsRepetitions; i++ {
		if i != 0 {
			e.out.Stepf("waiting %s for app op changes to settle", e.appOpsDelay)

			if err := sleepCtx(ctx, e.appOpsDelay); err != nil {
				return nil //nolint:nilerr // cancellation stops the loop, not the run
			}
		}

		for _, op := range s.Ops {
			if cancelled(ctx) {
				break
			}

			e.out.Stepf("setting app op %s %s %s", op.Package, op.Operation, op.Mode)

			cmd := fmt.Sprintf("appops set %s %s %s", op.Package, op.Operation, op.Mode)
			if _, err := e.device.Shell(ctx, cmd); err != nil {
				return fmt.Errorf("setting app op %s for %s: %w", op.Operation, op.Package, err)
			}
		}
	}

	return nil
}

func (e *Engine) runCommand(ctx context.Context, s *config.RunCommand) error {
	e.out.Stepf("running command: %s", s.Command)

	output, err := e.device.Shell(ctx, s.Command)
	if err != nil {
		if s.IgnoreFailure {
			e.out.Warningf("command failed (ignoring): %v", err)

			return nil
		}

		return fmt.Errorf("running command %q: %w", s.Command, err)
	}

	if output != "" {
		e.logger.Debug("command output", "output", output)
	}

	return nil
}

func (e *Engine) setLauncher(ctx context.Context, s *config.SetLauncher) error {
	e.out.Stepf("setting launcher %s", s.Component)

	if _, err := e.device.Shell(ctx, "cmd package set-home-activity "+s.Component); err != nil {
		return fmt.Errorf("setting launcher %s: %w", s.Component, err)
	}

	return nil
}

func (e *Engine) createConfig(ctx context.Context, s *config.CreateConfig) error {
	if s.OnlyIfMissing {
		exists, err := e.fileExists(ctx, s.Path)
		if err != nil {
			return err
		}

		if exists {
			e.out.Stepf("config already exists: %s", s.Path)

			return nil
		}
	}

	e.out.Stepf("creating config %s", s.Path)

	escaped := strings.ReplaceAll(s.Content, "'", `'"'"'`)
	if _, err := e.device.Shell(ctx, fmt.Sprintf("echo '%s' > %s", escaped, s.Path)); err != nil {
		return fmt.Errorf("writing config %s: %w", s.Path, err)
	}

	return nil
}

func (e *Engine) uninstallPackages(ctx context.Context, s *config.UninstallPackages) error {
	for _, pat := range s.Patterns {
		if cancelled(ctx) {
			break
		}

		// The device-side listing is a plain substring match, so wildcards
		// are stripped before searching.
		search := strings.ReplaceAll(pat, "*", "")

		packages, err := e.device.ListPackages(ctx, search)
		if err != nil {
			return fmt.Errorf("listing packages matching %q: %w", pat, err)
		}

		for _, pkg := range packages {
			if cancelled(ctx) {
				break
			}

			e.out.Stepf("uninstalling package %s", pkg)

			if err := e.device.UninstallPackage(ctx, pkg); err != nil {
				return fmt.Errorf("uninstalling %s: %w", pkg, err)
			}
		}
	}

	return nil
}

func (e *Engine) removeDirectories(ctx context.Context, s *config.RemoveDirectories) error {
	for _, path := range s.Paths {
		if cancelled(ctx) {
			break
		}

		e.out.Stepf("removing directory %s", path)

		if _, err := e.device.Shell(ctx, "rm -rf "+path); err != nil {
			return fmt.Errorf("removing directory %s: %w", path, err)
		}
	}

	return nil
}

func (e *Engine) removeDirectoriesIfEmpty(ctx context.Context, s *config.RemoveDirectoriesIfEmpty) error {
	for _, path := range s.Paths {
		if cancelled(ctx) {
			break
		}

		output, err := e.device.Shell(ctx, "ls -A "+path)
		if err != nil {
			return fmt.Errorf("checking directory %s: %w", path, err)
		}

		if strings.TrimSpace(output) != "" {
			e.out.Warningf("directory not empty, skipping: %s", path)

			continue
		}

		e.out.Stepf("removing empty directory %s", path)

		if _, err := e.device.Shell(ctx, "rm -rf "+path); err != nil {
			return fmt.Errorf("removing directory %s: %w", path, err)
		}
	}

	return nil
}

func (e *Engine) removeFiles(ctx context.Context, s *config.RemoveFiles) error {
	for _, path := range s.Paths {
		if cancelled(ctx) {
			break
		}

		e.out.Stepf("removing file %s", path)

		if _, err := e.device.Shell(ctx, "rm -f "+path); err != nil {
			return fmt.Errorf("removing file %s: %w", path, err)
		}
	}

	return nil
}

// fileExists probes for a remote file. The || true keeps the shell exit code
// zero when the file is absent.
func (e *Engine) fileExists(ctx context.Context, path string) (bool, error) {
	output, err := e.device.Shell(ctx, fmt.Sprintf("[ -f %s ] && echo exists || true", path))
	if err != nil {
		return false, fmt.Errorf("checking %s: %w", path, err)
	}

	return strings.Contains(output, "exists"), nil
}

// excludeAPKs drops staged APKs whose filename matches any exclude pattern,
// using the case-insensitive APK policy.
func excludeAPKs(apks, excludePatterns []string) []string {
	if len(excludePatterns) == 0 {
		return apks
	}

	kept := apks[:0]

	for _, apk := range apks {
		name := filepath.Base(apk)

		match := false
		for _, pat := range excludePatterns {
			if pattern.MatchFold(name, pat) {
				match = true

				break
			}
		}

		if !match {
			kept = append(kept, apk)
		}
	}

	return kept
}

// prioritizeAPKs orders staged APKs by the declared priority patterns: for
// each pattern in order, the matching files move (in discovery order) to the
// end of the result; files matching no pattern follow in discovery order.
func prioritizeAPKs(apks []string, priorityOrder []string) []string {
	ordered := make([]string, 0, len(apks))
	remaining := append([]string(nil), apks...)

	for _, pat := range priorityOrder {
		kept := remaining[:0]

		for _, apk := range remaining {
			if pattern.MatchFold(filepath.Base(apk), pat) {
				ordered = append(ordered, apk)
			} else {
				kept = append(kept, apk)
			}
		}

		remaining = kept
	}

	return append(ordered, remaining...)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
