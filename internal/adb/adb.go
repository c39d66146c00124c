// Package adb is the device transport. It drives the adb binary against
// exactly one attached device.
package adb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
)

var (
	// ErrNoDevice indicates no attached device.
	ErrNoDevice = errors.New("no device connected")

	// ErrMultipleDevices indicates more than one attached device; the
	// installer never guesses which one to use.
	ErrMultipleDevices = errors.New("multiple devices connected (exactly one required)")

	// ErrUnauthorized indicates the attached device has not authorized this
	// host for debugging.
	ErrUnauthorized = errors.New("device unauthorized, enable USB debugging and accept the prompt")
)

// Manager executes adb commands against a single connected device, pinned by
// serial for the lifetime of the run.
type Manager struct {
	adbPath string
	serial  string
	logger  *slog.Logger
}

// Connect locates the adb binary, lists attached devices, and requires
// exactly one in the ready state.
func Connect(ctx context.Context, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}

	adbPath, err := exec.LookPath("adb")
	if err != nil {
		return nil, fmt.Errorf("adb binary not found in PATH: %w", err)
	}

	out, err := exec.CommandContext(ctx, adbPath, "devices").Output()
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}

	devices := parseDeviceList(string(out))

	switch len(devices) {
	case 0:
		return nil, ErrNoDevice
	case 1:
	default:
		return nil, ErrMultipleDevices
	}

	dev := devices[0]

	switch dev.state {
	case "device":
	case "unauthorized":
		return nil, ErrUnauthorized
	default:
		return nil, fmt.Errorf("device %s not ready: state %q", dev.serial, dev.state)
	}

	logger.Debug("connected to device", "serial", dev.serial)

	return &Manager{
		adbPath: adbPath,
		serial:  dev.serial,
		logger:  logger,
	}, nil
}

type deviceEntry struct {
	serial string
	state  string
}

// parseDeviceList parses `adb devices` output. The first line is a banner;
// each following non-empty line is "<serial>\t<state>".
func parseDeviceList(out string) []deviceEntry {
	var devices []deviceEntry

	for i, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if i == 0 || line == "" {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		devices = append(devices, deviceEntry{serial: fields[0], state: fields[1]})
	}

	return devices
}

// Serial returns the connected device's serial.
func (m *Manager) Serial() string {
	return m.serial
}

// Shell runs a shell command on the device and returns its trimmed output.
func (m *Manager) Shell(ctx context.Context, command string) (string, error) {
	return m.run(ctx, "shell", command)
}

// InstallPackage installs an APK from a local path, replacing any existing
// install of the same package.
func (m *Manager) InstallPackage(ctx context.Context, path string) error {
	if _, err := m.run(ctx, "install", "-r", path); err != nil {
		return fmt.Errorf("installing %s: %w", path, err)
	}

	return nil
}

// UninstallPackage removes a package. Both per-user and full uninstalls are
// attempted; failures are ignored because the package may be a system app
// removable only for user 0, or not installed at all.
func (m *Manager) UninstallPackage(ctx context.Context, name string) error {
	if _, err := m.Shell(ctx, "pm uninstall --user 0 "+name); err != nil {
		m.logger.Debug("per-user uninstall failed", "package", name, "err", err)
	}

	if _, err := m.Shell(ctx, "pm uninstall "+name); err != nil {
		m.logger.Debug("full uninstall failed", "package", name, "err", err)
	}

	return nil
}

// Push copies a local file to the device.
func (m *Manager) Push(ctx context.Context, localPath, remotePath string) error {
	if _, err := m.run(ctx, "push", localPath, remotePath); err != nil {
		return fmt.Errorf("pushing %s to %s: %w", localPath, remotePath, err)
	}

	return nil
}

// Reboot restarts the device.
func (m *Manager) Reboot(ctx context.Context) error {
	if _, err := m.run(ctx, "reboot"); err != nil {
		return fmt.Errorf("rebooting device: %w", err)
	}

	return nil
}

// ListPackages returns the installed package names containing substr. An
// empty substr returns every package.
func (m *Manager) ListPackages(ctx context.Context, substr string) ([]string, error) {
	out, err := m.Shell(ctx, "pm list packages")
	if err != nil {
		return nil, fmt.Errorf("listing packages: %w", err)
	}

	var packages []string

	for _, line := range strings.Split(out, "\n") {
		name := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "package:"))
		if name == "" {
			continue
		}

		if substr == "" || strings.Contains(name, substr) {
			packages = append(packages, name)
		}
	}

	return packages, nil
}

// StreamLogcat follows the device log, writing each line to w until the
// context is cancelled. Cancellation is the normal way to stop following and
// is not reported as an error.
func (m *Manager) StreamLogcat(ctx context.Context, w io.Writer) error {
	cmd := exec.CommandContext(ctx, m.adbPath, "-s", m.serial, "logcat")
	cmd.Stdout = w
	cmd.Stderr = w

	err := cmd.Run()
	if ctx.Err() != nil {
		return nil
	}

	if err != nil {
		return fmt.Errorf("streaming logcat: %w", err)
	}

	return nil
}

// run executes an adb subcommand against the pinned device.
func (m *Manager) run(ctx context.Context, args ...string) (string, error) {
	full := append([]string{"-s", m.serial}, args...)

	m.logger.Debug("adb", "args", strings.Join(args, " "))

	out, err := exec.CommandContext(ctx, m.adbPath, full...).CombinedOutput()
	if err != nil {
		detail := strings.TrimSpace(string(out))
		if detail != "" {
			return "", fmt.Errorf("adb %s: %w: %s", args[0], err, detail)
		}

		return "", fmt.Errorf("adb %s: %w", args[0], err)
	}

	return strings.TrimSpace(string(out)), nil
}
