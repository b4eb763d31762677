package core

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fabric-powerbi/fabkit/internal/core/platform"
	"github.com/fabric-powerbi/fabkit/internal/core/probe"
)

const (
	syncTimeout       = 300 * time.Second
	venvCreateTimeout = 60 * time.Second
	pipInstallTimeout = 120 * time.Second
	readyProbeTimeout = 15 * time.Second
)

// InstallerOptions configures an Installer.
type InstallerOptions struct {
	BundleDir   string // root of the bundled component sources
	InstallRoot string // global destination root
	UVPath      string // uv executable for StrategyCopySync
}

// Installer materializes components from the bundle into the install root.
type Installer struct {
	runner probe.Runner
	prober *probe.Prober
	sig    platform.Signature
	logger *log.Logger
	opts   InstallerOptions
}

// NewInstaller creates an Installer.
func NewInstaller(runner probe.Runner, prober *probe.Prober, logger *log.Logger, opts InstallerOptions) *Installer {
	return &Installer{
		runner: runner,
		prober: prober,
		sig:    prober.Signature(),
		logger: logger,
		opts:   opts,
	}
}

// Install materializes c. Failures are reported in the result, never returned:
// a failed component is simply unavailable to the config build.
// force re-copies sources that are already present.
func (inst *Installer) Install(ctx context.Context, c Component, force bool) InstallResult {
	src := filepath.Join(inst.opts.BundleDir, filepath.FromSlash(c.Source))
	dest := filepath.Join(inst.opts.InstallRoot, c.Dir)
	res := InstallResult{Key: c.Key, Dir: dest}

	if !dirExists(src) {
		res.Skipped = true
		res.Message = fmt.Sprintf("Skipped %s (bundled source not found)", c.DisplayName)
		return res
	}

	switch c.Strategy {
	case StrategyCopy:
		return inst.installCopy(c, src, res)
	case StrategyCopySync:
		return inst.installCopySync(ctx, c, src, res)
	case StrategyCopyVenv:
		return inst.installCopyVenv(ctx, c, src, res, force)
	default:
		res.Message = fmt.Sprintf("%s: unknown install strategy %s", c.DisplayName, c.Strategy)
		return res
	}
}

func (inst *Installer) installCopy(c Component, src string, res InstallResult) InstallResult {
	if err := CopyTree(src, res.Dir, c.Exclusions); err != nil {
		res.Message = fmt.Sprintf("%s install failed: %v", c.DisplayName, err)
		return res
	}
	inst.logger.Info("copied component", "component", c.Key, "dest", res.Dir)
	res.OK = true
	res.Message = fmt.Sprintf("%s installed", c.DisplayName)
	return res
}

func (inst *Installer) installCopySync(ctx context.Context, c Component, src string, res InstallResult) InstallResult {
	if err := CopyTree(src, res.Dir, c.Exclusions); err != nil {
		res.Message = fmt.Sprintf("%s install failed: %v", c.DisplayName, err)
		return res
	}
	inst.logger.Info("copied component", "component", c.Key, "dest", res.Dir)

	uv := inst.opts.UVPath
	if uv == "" {
		uv = "uv"
	}
	inst.logger.Info("running dependency sync", "component", c.Key, "command", uv)
	if _, err := inst.runner.Run(ctx, probe.Command{
		Name:    uv,
		Args:    c.SyncArgs,
		Dir:     res.Dir,
		Timeout: syncTimeout,
	}); err != nil {
		res.Message = fmt.Sprintf("%s install failed: %v", c.DisplayName, err)
		return res
	}

	res.OK = true
	res.Message = fmt.Sprintf("%s installed and dependencies synced", c.DisplayName)
	return res
}

func (inst *Installer) installCopyVenv(ctx context.Context, c Component, src string, res InstallResult, force bool) InstallResult {
	if force || !fileExists(filepath.Join(res.Dir, c.EntryFile)) {
		if err := CopyTree(src, res.Dir, c.Exclusions); err != nil {
			res.Message = fmt.Sprintf("%s venv failed: %v", c.DisplayName, err)
			return res
		}
		inst.logger.Info("copied component", "component", c.Key, "dest", res.Dir)
	}

	venvDir := filepath.Join(res.Dir, venvDirName)
	venvPython := inst.sig.VenvPython(venvDir)

	if fileExists(venvPython) && inst.venvReady(ctx, c, venvPython) {
		res.OK = true
		res.Interpreter = venvPython
		res.Message = fmt.Sprintf("%s venv already set up", c.DisplayName)
		return res
	}

	systemPython, ok := inst.prober.FindPython(ctx, c.MinPython)
	if !ok {
		res.Message = fmt.Sprintf("Python %s+ not found for %s venv", c.MinPython, c.DisplayName)
		return res
	}

	inst.logger.Info("creating venv", "component", c.Key, "python", systemPython)
	if _, err := inst.runner.Run(ctx, probe.Command{
		Name:    systemPython,
		Args:    []string{"-m", "venv", venvDir},
		Dir:     res.Dir,
		Timeout: venvCreateTimeout,
	}); err != nil {
		res.Message = fmt.Sprintf("%s venv failed: %v", c.DisplayName, err)
		return res
	}

	inst.logger.Info("installing venv packages", "component", c.Key, "packages", c.Packages)
	args := append([]string{"-m", "pip", "install"}, c.Packages...)
	args = append(args, "--quiet")
	if _, err := inst.runner.Run(ctx, probe.Command{
		Name:    venvPython,
		Args:    args,
		Dir:     res.Dir,
		Timeout: pipInstallTimeout,
	}); err != nil {
		res.Message = fmt.Sprintf("%s venv failed: %v", c.DisplayName, err)
		return res
	}

	if !inst.venvReady(ctx, c, venvPython) {
		res.Message = fmt.Sprintf("%s venv failed: packages installed but %q does not import", c.DisplayName, c.ReadyImport)
		return res
	}

	res.OK = true
	res.Interpreter = venvPython
	res.Message = fmt.Sprintf("%s venv created", c.DisplayName)
	return res
}

// venvReady runs the component's import check inside the environment.
func (inst *Installer) venvReady(ctx context.Context, c Component, python string) bool {
	if c.ReadyImport == "" {
		return true
	}
	_, err := inst.runner.Run(ctx, probe.Command{
		Name:    python,
		Args:    []string{"-c", c.ReadyImport},
		Timeout: readyProbeTimeout,
	})
	return err == nil
}
