package core

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fabric-powerbi/fabkit/internal/core/platform"
	"github.com/fabric-powerbi/fabkit/internal/core/probe"
)

// ErrNoWorkspace is returned when a run has no workspace directory.
var ErrNoWorkspace = errors.New("no workspace folder")

// Step identifies a pipeline step.
type Step string

const (
	StepVersionGate    Step = "version-gate"
	StepPrereqs        Step = "prerequisites"
	StepComponents     Step = "components"
	StepStaticAssets   Step = "static-assets"
	StepPackageLocate  Step = "package-locate"
	StepConfigMerge    Step = "config-merge"
	StepPersistVersion Step = "persist-version"
)

// StepStatus is the outcome of one step.
type StepStatus string

const (
	StepOK      StepStatus = "ok"
	StepWarning StepStatus = "warning"
	StepFailed  StepStatus = "failed"
	StepSkipped StepStatus = "skipped"
)

// StepOutcome records how a step ended.
type StepOutcome struct {
	Step    Step
	Status  StepStatus
	Message string
}

// Summary is the result of an Orchestrator run.
type Summary struct {
	Version    string
	Manual     bool
	Skipped    bool     // automatic run short-circuited by the version gate
	Servers    []string // configured server keys, sorted
	ConfigPath string
	Steps      []StepOutcome
	Details    []string // per-component and per-asset messages
	Warnings   []Warning
}

// ServerCount returns the number of configured launchable components.
func (s *Summary) ServerCount() int {
	return len(s.Servers)
}

// Headline is the one-line completion message.
func (s *Summary) Headline() string {
	return fmt.Sprintf("Setup complete. %d MCP server(s) configured. Restart Claude Code to load.", s.ServerCount())
}

// Failed reports whether any step failed outright.
func (s *Summary) Failed() bool {
	for _, o := range s.Steps {
		if o.Status == StepFailed {
			return true
		}
	}
	return false
}

func (s *Summary) record(step Step, status StepStatus, format string, args ...interface{}) {
	s.Steps = append(s.Steps, StepOutcome{Step: step, Status: status, Message: fmt.Sprintf(format, args...)})
}

// RunOptions configures a pipeline run.
type RunOptions struct {
	WorkspaceDir string
	// Manual runs ignore the version gate, overwrite copied files and surface
	// warnings through the Reporter. Automatic runs only log them.
	Manual bool
}

// Diagnostic is one line of the prerequisite report.
type Diagnostic struct {
	Name   string
	Result probe.Result
}

// Orchestrator sequences the provisioning pipeline. Every step runs to
// completion regardless of earlier failures; only missing inputs are errors.
type Orchestrator struct {
	cfg       *Config
	prober    *probe.Prober
	installer *Installer
	state     *StateStore
	logger    *log.Logger
	reporter  Reporter
	uv        string
	now       func() time.Time
}

// NewOrchestrator creates an Orchestrator. A nil reporter discards progress.
func NewOrchestrator(cfg *Config, runner probe.Runner, sig platform.Signature, logger *log.Logger, reporter Reporter) *Orchestrator {
	if reporter == nil {
		reporter = NopReporter{}
	}
	prober := probe.New(runner, sig, cfg.ProbeConcurrency)
	uv := cfg.UVPath
	if uv == "" {
		uv = prober.ResolvePath("uv")
	}
	return &Orchestrator{
		cfg:    cfg,
		prober: prober,
		installer: NewInstaller(runner, prober, logger, InstallerOptions{
			BundleDir:   cfg.BundleDir,
			InstallRoot: cfg.InstallRoot,
			UVPath:      uv,
		}),
		state:    NewStateStore(cfg.StatePath()),
		logger:   logger,
		reporter: reporter,
		uv:       uv,
		now:      time.Now,
	}
}

// SetClock replaces the clock used for the lastRun timestamp.
func (o *Orchestrator) SetClock(now func() time.Time) {
	o.now = now
}

// State returns the version gate store.
func (o *Orchestrator) State() *StateStore {
	return o.state
}

// ShouldAutoRun reports whether the persisted gate differs from the current version.
func (o *Orchestrator) ShouldAutoRun() bool {
	return o.state.SetupVersion() != o.cfg.Version
}

// Run executes the pipeline against a workspace.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) (*Summary, error) {
	if opts.WorkspaceDir == "" {
		return nil, ErrNoWorkspace
	}

	sum := &Summary{
		Version:    o.cfg.Version,
		Manual:     opts.Manual,
		ConfigPath: MCPConfigPath(opts.WorkspaceDir),
	}

	o.reporter.StepStarted(StepVersionGate, "Checking setup version...")
	if !opts.Manual && !o.ShouldAutoRun() {
		o.logger.Debug("setup already ran for this version", "version", o.cfg.Version)
		sum.Skipped = true
		sum.record(StepVersionGate, StepSkipped, "setup already ran for version %s", o.cfg.Version)
		return sum, nil
	}
	sum.record(StepVersionGate, StepOK, "running setup for version %s", o.cfg.Version)

	satisfied := o.checkPrereqs(ctx, sum, opts.Manual)
	installState := o.installComponents(ctx, sum, satisfied, opts.Manual)
	o.syncStaticAssets(sum, opts.WorkspaceDir, opts.Manual)
	installState.PowerBIExe = o.locatePowerBI(sum)
	installState.UVPath = o.uvPath()
	o.mergeConfig(sum, installState, opts.Manual)

	o.reporter.StepStarted(StepPersistVersion, "Recording setup version...")
	if err := o.state.SetSetupVersion(o.cfg.Version, o.now()); err != nil {
		o.logger.Error("recording setup version", "err", err)
		sum.record(StepPersistVersion, StepFailed, "%v", err)
	} else {
		sum.record(StepPersistVersion, StepOK, "recorded version %s", o.cfg.Version)
	}

	o.logger.Info(sum.Headline())
	return sum, nil
}

func (o *Orchestrator) checkPrereqs(ctx context.Context, sum *Summary, manual bool) map[probe.Tool]bool {
	o.reporter.StepStarted(StepPrereqs, "Checking prerequisites...")

	checks := o.prober.CheckAll(ctx, probe.Python, probe.UV, probe.AzureCLI, probe.ODBC)
	satisfied := make(map[probe.Tool]bool, len(checks)+1)
	for _, c := range checks {
		satisfied[c.Tool] = c.Result.Satisfied
	}

	if satisfied[probe.AzureCLI] {
		o.reporter.StepStarted(StepPrereqs, "Checking Azure authentication...")
		auth := o.prober.Check(ctx, probe.AzureAuth)
		satisfied[probe.AzureAuth] = auth.Satisfied
		checks = append(checks, probe.Check{Tool: probe.AzureAuth, Result: auth})
	}

	failed := 0
	for _, c := range checks {
		if c.Result.Satisfied {
			o.logger.Debug(c.Result.Message, "tool", c.Tool)
			continue
		}
		failed++
		o.warn(sum, manual, Warning{
			Tool:    c.Tool,
			Message: probe.Headline(c.Tool),
			Detail:  joinNonEmpty(c.Result.Message, c.Result.Detail),
			Hints:   probe.Remediation(c.Tool, o.prober.Signature().OS),
		})
	}

	if failed > 0 {
		sum.record(StepPrereqs, StepWarning, "%d of %d prerequisite(s) missing", failed, len(checks))
	} else {
		sum.record(StepPrereqs, StepOK, "all %d prerequisite(s) satisfied", len(checks))
	}
	return satisfied
}

func (o *Orchestrator) installComponents(ctx context.Context, sum *Summary, satisfied map[probe.Tool]bool, manual bool) InstallState {
	var st InstallState
	failed := 0

	for _, c := range Components() {
		o.reporter.StepStarted(StepComponents, fmt.Sprintf("Installing %s...", c.DisplayName))

		if missing := missingTools(c.Requires, satisfied); len(missing) > 0 {
			msg := fmt.Sprintf("Skipped %s (missing %s)", c.DisplayName, strings.Join(missing, " or "))
			o.logger.Warn(msg, "component", c.Key)
			sum.Details = append(sum.Details, msg)
			continue
		}

		res := o.installer.Install(ctx, c, manual)
		sum.Details = append(sum.Details, res.Message)
		switch {
		case res.OK:
			o.logger.Info(res.Message, "component", c.Key)
		case res.Skipped:
			o.logger.Debug(res.Message, "component", c.Key)
			continue
		default:
			failed++
			o.warn(sum, manual, Warning{Message: res.Message})
			continue
		}

		switch c.Key {
		case KeyFabricCore:
			st.FabricCoreDir = res.Dir
		case KeyTranslationAudit:
			st.AuditDir = res.Dir
			st.AuditPython = res.Interpreter
		}
	}

	if failed > 0 {
		sum.record(StepComponents, StepWarning, "%d component(s) failed to install", failed)
	} else {
		sum.record(StepComponents, StepOK, "components processed")
	}
	return st
}

func (o *Orchestrator) syncStaticAssets(sum *Summary, workspaceDir string, force bool) {
	o.reporter.StepStarted(StepStaticAssets, "Copying knowledge base and toolkit files...")

	manifest, err := LoadBundleManifest(o.cfg.BundleDir)
	if err != nil {
		o.logger.Error("loading bundle manifest", "err", err)
		sum.record(StepStaticAssets, StepFailed, "%v", err)
		return
	}

	copied, kept := 0, 0
	var errs []string
	for _, set := range manifest.Assets {
		srcDir := filepath.Join(o.cfg.BundleDir, filepath.FromSlash(set.Source))
		destDir := filepath.Join(workspaceDir, filepath.FromSlash(set.Dest))
		for _, name := range set.ResolveFiles(o.cfg.BundleDir) {
			ok, err := CopyFileIfNewer(filepath.Join(srcDir, name), filepath.Join(destDir, name), force)
			switch {
			case err != nil:
				o.logger.Error("copying asset", "set", set.Name, "file", name, "err", err)
				errs = append(errs, fmt.Sprintf("%s: %v", name, err))
			case ok:
				copied++
			default:
				kept++
			}
		}
	}

	if len(errs) > 0 {
		sum.record(StepStaticAssets, StepFailed, "copied %d file(s), %d error(s): %s", copied, len(errs), strings.Join(errs, "; "))
		return
	}
	sum.record(StepStaticAssets, StepOK, "copied %d file(s), kept %d up-to-date file(s)", copied, kept)
}

func (o *Orchestrator) locatePowerBI(sum *Summary) string {
	o.reporter.StepStarted(StepPackageLocate, "Detecting Power BI Modeling MCP...")

	exe, ok := LocatePowerBIServer(o.cfg.ExtensionsDir, o.prober.Signature())
	if !ok {
		msg := "Power BI Modeling MCP not found (install from VS Code Marketplace if needed)"
		o.logger.Info("Power BI Modeling MCP extension not detected", "dir", o.cfg.ExtensionsDir)
		sum.Details = append(sum.Details, msg)
		sum.record(StepPackageLocate, StepWarning, "not found")
		return ""
	}

	o.logger.Info("Power BI Modeling MCP found", "path", exe)
	sum.Details = append(sum.Details, "Power BI Modeling MCP found")
	sum.record(StepPackageLocate, StepOK, "%s", exe)
	return exe
}

func (o *Orchestrator) mergeConfig(sum *Summary, st InstallState, manual bool) {
	o.reporter.StepStarted(StepConfigMerge, "Generating .mcp.json...")

	servers := BuildServers(st)
	res, err := MergeMCPConfig(sum.ConfigPath, servers)
	if err != nil {
		o.logger.Error("writing server config", "path", sum.ConfigPath, "err", err)
		sum.record(StepConfigMerge, StepFailed, "%v", err)
	} else {
		if res.Recovered {
			o.warn(sum, manual, recoveredWarning(sum.ConfigPath))
		}
		sum.Servers = res.Written
		sum.record(StepConfigMerge, StepOK, "%d server(s) written to %s", len(res.Written), sum.ConfigPath)
	}

	changed, err := EnsureSettingsFlag(o.cfg.SettingsPath, SettingsFlag)
	switch {
	case err != nil:
		o.logger.Error("updating settings", "path", o.cfg.SettingsPath, "err", err)
		sum.record(StepConfigMerge, StepFailed, "settings: %v", err)
	case changed:
		o.logger.Info("enabled project MCP servers", "path", o.cfg.SettingsPath)
	}
}

// Regenerate rebuilds the workspace server config from what is already
// installed, without installing anything.
func (o *Orchestrator) Regenerate(workspaceDir string) (*Summary, error) {
	if workspaceDir == "" {
		return nil, ErrNoWorkspace
	}

	sum := &Summary{
		Version:    o.cfg.Version,
		Manual:     true,
		ConfigPath: MCPConfigPath(workspaceDir),
	}

	st := o.DetectInstallState()
	res, err := MergeMCPConfig(sum.ConfigPath, BuildServers(st))
	if err != nil {
		return nil, err
	}
	if res.Recovered {
		o.warn(sum, true, recoveredWarning(sum.ConfigPath))
	}
	sum.Servers = res.Written
	sum.record(StepConfigMerge, StepOK, "%d server(s) written to %s", len(res.Written), sum.ConfigPath)
	o.logger.Info("regenerated server config", "path", sum.ConfigPath, "servers", len(res.Written))
	return sum, nil
}

// DetectInstallState derives launch facts from the install root and the
// extensions directory.
func (o *Orchestrator) DetectInstallState() InstallState {
	st := InstallState{UVPath: o.uvPath()}
	sig := o.prober.Signature()

	if c, ok := ComponentByKey(KeyFabricCore); ok {
		dir := o.cfg.ComponentDir(c.Dir)
		if fileExists(filepath.Join(dir, c.EntryFile)) {
			st.FabricCoreDir = dir
		}
	}
	if c, ok := ComponentByKey(KeyTranslationAudit); ok {
		dir := o.cfg.ComponentDir(c.Dir)
		if python := sig.VenvPython(filepath.Join(dir, venvDirName)); fileExists(python) {
			st.AuditDir = dir
			st.AuditPython = python
		}
	}
	if exe, ok := LocatePowerBIServer(o.cfg.ExtensionsDir, sig); ok {
		st.PowerBIExe = exe
	}
	return st
}

// CheckPrereqs runs every probe plus the Power BI locator. It mutates nothing.
func (o *Orchestrator) CheckPrereqs(ctx context.Context) []Diagnostic {
	checks := o.prober.CheckAll(ctx, probe.Python, probe.UV, probe.AzureCLI, probe.AzureAuth, probe.ODBC)

	diags := make([]Diagnostic, 0, len(checks)+1)
	for _, c := range checks {
		diags = append(diags, Diagnostic{Name: c.Tool.DisplayName(), Result: c.Result})
	}

	pbi := probe.Result{Message: "Not found", Detail: "Install the Power BI Modeling MCP extension from the VS Code Marketplace"}
	if exe, ok := LocatePowerBIServer(o.cfg.ExtensionsDir, o.prober.Signature()); ok {
		pbi = probe.Result{Satisfied: true, Message: "Found", Detail: exe}
	}
	return append(diags, Diagnostic{Name: "Power BI Modeling MCP", Result: pbi})
}

// warn logs w and, on manual runs, forwards it to the reporter.
func (o *Orchestrator) warn(sum *Summary, manual bool, w Warning) {
	sum.Warnings = append(sum.Warnings, w)
	if w.Detail != "" {
		o.logger.Warn(w.Message, "detail", w.Detail)
	} else {
		o.logger.Warn(w.Message)
	}
	if manual {
		o.reporter.Warn(w)
	}
}

func recoveredWarning(path string) Warning {
	return Warning{Message: fmt.Sprintf("%s was not valid JSON and has been replaced", path)}
}

func (o *Orchestrator) uvPath() string {
	return o.uv
}

func missingTools(required []probe.Tool, satisfied map[probe.Tool]bool) []string {
	var missing []string
	for _, t := range required {
		if !satisfied[t] {
			missing = append(missing, t.DisplayName())
		}
	}
	return missing
}

func joinNonEmpty(parts ...string) string {
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ": ")
}
