package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"open-lovable/internal/config"
	"open-lovable/internal/logging"
	"open-lovable/internal/metrics"
)

// Progress event types streamed to the client
const (
	EventStart   = "start"
	EventStatus  = "status"
	EventInfo    = "info"
	EventSuccess = "success"
	EventError   = "error"
)

const (
	needInstallMarker = "NEED_INSTALL:"
)

var installExitCode = regexp.MustCompile(`INSTALL_EXIT_CODE:(\d+)`)

// Runner executes Python in a sandbox. *Sandbox implements it.
type Runner interface {
	RunCode(ctx context.Context, code string) (*Execution, error)
}

// Event is one progress update of an install
type Event struct {
	Type              string   `json:"type"`
	Message           string   `json:"message"`
	Packages          []string `json:"packages,omitempty"`
	InstalledPackages []string `json:"installedPackages,omitempty"`
	AlreadyInstalled  []string `json:"alreadyInstalled,omitempty"`
}

// NormalizePackages trims names, drops empties and keeps the first occurrence of each
func NormalizePackages(packages []string) []string {
	seen := make(map[string]bool, len(packages))
	out := make([]string, 0, len(packages))
	for _, p := range packages {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// Installer installs npm packages into the sandbox app
type Installer struct {
	cfg config.PackageConfig
}

// NewInstaller creates an installer
func NewInstaller(cfg config.PackageConfig) *Installer {
	return &Installer{cfg: cfg}
}

// Install stops the dev server, installs what package.json lacks and restarts
// the dev server, reporting each step through emit. Failures are reported as
// an error event and returned.
func (i *Installer) Install(ctx context.Context, sb Runner, packages []string, emit func(Event) error) (err error) {
	log := logging.L().With(zap.String("component", "package-installer"))
	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
			if emitErr := emit(Event{Type: EventError, Message: err.Error()}); emitErr != nil {
				log.Debug("failed to report install error", zap.Error(emitErr))
			}
		}
		metrics.Get().RecordPackageInstall(status, len(packages), time.Since(start))
	}()

	plural := ""
	if len(packages) > 1 {
		plural = "s"
	}
	if err := emit(Event{Type: EventStart, Message: fmt.Sprintf("Installing %d package%s...", len(packages), plural), Packages: packages}); err != nil {
		return err
	}

	if err := emit(Event{Type: EventStatus, Message: "Stopping development server..."}); err != nil {
		return err
	}
	if _, err := sb.RunCode(ctx, StopViteScript()); err != nil {
		return fmt.Errorf("failed to stop development server: %w", err)
	}

	if err := emit(Event{Type: EventStatus, Message: "Checking installed packages..."}); err != nil {
		return err
	}
	script, err := checkInstalledScript(packages)
	if err != nil {
		return err
	}
	check, err := sb.RunCode(ctx, script)
	if err != nil {
		return fmt.Errorf("failed to check installed packages: %w", err)
	}
	toInstall := ParseNeedInstall(check.Text(), packages)

	if len(toInstall) == 0 {
		return emit(Event{
			Type:             EventSuccess,
			Message:          "All packages are already installed",
			AlreadyInstalled: packages,
		})
	}

	if err := emit(Event{
		Type:    EventInfo,
		Message: fmt.Sprintf("Installing %d new package(s): %s", len(toInstall), strings.Join(toInstall, ", ")),
	}); err != nil {
		return err
	}

	installCtx := ctx
	if i.cfg.InstallTimeout > 0 {
		var cancel context.CancelFunc
		installCtx, cancel = context.WithTimeout(ctx, i.cfg.InstallTimeout)
		defer cancel()
	}
	script, err = npmInstallScript(toInstall, i.cfg.UseLegacyPeerDeps)
	if err != nil {
		return err
	}
	result, err := sb.RunCode(installCtx, script)
	if err != nil {
		return fmt.Errorf("npm install failed: %w", err)
	}
	if result.Error != nil {
		return fmt.Errorf("npm install failed: %w", result.Error)
	}
	if code := ParseInstallExitCode(result.Text()); code != 0 {
		return fmt.Errorf("npm install failed with code %d", code)
	}
	log.Info("packages installed", zap.Strings("packages", toInstall))

	if i.cfg.AutoRestartVite {
		if err := emit(Event{Type: EventStatus, Message: "Restarting development server..."}); err != nil {
			return err
		}
		vite, err := sb.RunCode(ctx, StartViteScript())
		if err != nil {
			return fmt.Errorf("failed to restart development server: %w", err)
		}
		if vite.Error != nil {
			return fmt.Errorf("failed to restart development server: %w", vite.Error)
		}
	}

	return emit(Event{
		Type:              EventSuccess,
		Message:           "Packages installed successfully",
		InstalledPackages: toInstall,
	})
}

// ParseNeedInstall reads the NEED_INSTALL marker; without one every package is installed
func ParseNeedInstall(output string, fallback []string) []string {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, needInstallMarker) {
			continue
		}
		var pkgs []string
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, needInstallMarker)), &pkgs); err == nil {
			return pkgs
		}
	}
	return fallback
}

// ParseInstallExitCode reads the INSTALL_EXIT_CODE marker, defaulting to 0
func ParseInstallExitCode(output string) int {
	m := installExitCode.FindStringSubmatch(output)
	if m == nil {
		return 0
	}
	code, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return code
}

func checkInstalledScript(packages []string) (string, error) {
	list, err := json.Marshal(packages)
	if err != nil {
		return "", fmt.Errorf("failed to encode packages: %w", err)
	}
	return fmt.Sprintf(`import os
import json

os.chdir(%q)
packages_to_check = %s

try:
    with open('package.json', 'r') as f:
        package_json = json.load(f)

    all_deps = {**package_json.get('dependencies', {}), **package_json.get('devDependencies', {})}
    already_installed = []
    need_install = []

    for pkg in packages_to_check:
        pkg_name = pkg if pkg.startswith('@') else pkg.split('@')[0]
        if pkg_name in all_deps:
            already_installed.append(pkg_name)
        else:
            need_install.append(pkg)

    print(f"Already installed: {already_installed}")
    print(f"Need to install: {need_install}")
    print(f"NEED_INSTALL:{json.dumps(need_install)}")
except Exception as e:
    print(f"Error checking packages: {e}")
    print(f"NEED_INSTALL:{json.dumps(packages_to_check)}")
`, AppDir, list), nil
}

func npmInstallScript(packages []string, legacyPeerDeps bool) (string, error) {
	list, err := json.Marshal(packages)
	if err != nil {
		return "", fmt.Errorf("failed to encode packages: %w", err)
	}
	flags := "[]"
	if legacyPeerDeps {
		flags = "['--legacy-peer-deps']"
	}
	return fmt.Sprintf(`import subprocess
import os

os.chdir(%q)

cmd_args = ['npm', 'install'] + %s + %s
print(f"Running command: {' '.join(cmd_args)}")

process = subprocess.run(cmd_args, capture_output=True, text=True)
for line in (process.stdout + process.stderr).splitlines():
    print(line.strip())

print(f"INSTALL_EXIT_CODE:{process.returncode}")
`, AppDir, flags, list), nil
}
