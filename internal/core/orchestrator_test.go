package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/fabric-powerbi/fabkit/internal/core/probe"
	"github.com/fabric-powerbi/fabkit/internal/core/probe/probetest"
)

type recordingReporter struct {
	steps    []Step
	warnings []Warning
}

func (r *recordingReporter) StepStarted(step Step, _ string) { r.steps = append(r.steps, step) }
func (r *recordingReporter) Warn(w Warning)                  { r.warnings = append(r.warnings, w) }

type orchestratorFixture struct {
	cfg       *Config
	workspace string
	runner    *probetest.Runner
	reporter  *recordingReporter
	orch      *Orchestrator
}

const authQuery = "az account get-access-token --resource https://api.fabric.microsoft.com/ --output json"

func newOrchestratorFixture(t *testing.T) *orchestratorFixture {
	t.Helper()
	home := t.TempDir()
	bundle := filepath.Join(home, "bundle")

	cfg := &Config{
		InstallRoot:      filepath.Join(home, ".fabric-mcp"),
		BundleDir:        bundle,
		ExtensionsDir:    filepath.Join(home, ".vscode", "extensions"),
		SettingsPath:     filepath.Join(home, ".claude", "settings.json"),
		UVPath:           "uv",
		ProbeConcurrency: 2,
		Version:          "1.6.1",
	}

	writeTestFile(t, filepath.Join(bundle, "fabric-core", "fabric_mcp_stdio.py"), "main")
	writeTestFile(t, filepath.Join(bundle, "fabric-core", "pyproject.toml"), "[project]")
	writeTestFile(t, filepath.Join(bundle, "translation-audit", "server.py"), "srv")
	writeTestFile(t, filepath.Join(bundle, "CLAUDE.md"), "# Knowledge base")
	writeTestFile(t, filepath.Join(bundle, "skills", "fabric-toolkit", "SKILL.md"), "skill")
	writeTestFile(t, filepath.Join(bundle, "agents", "reviewer.md"), "agent")
	writeTestFile(t, filepath.Join(bundle, "translation-toolkit", "TRANSLATION_PLAYBOOK.md"), "playbook")
	writeTestFile(t, filepath.Join(cfg.ExtensionsDir, "analysis-services.powerbi-modeling-mcp-0.1.9-linux-x64", "server", "powerbi-modeling-mcp"), "")

	f := &orchestratorFixture{
		cfg:       cfg,
		workspace: filepath.Join(home, "workspace"),
		runner:    probetest.NewRunner(),
		reporter:  &recordingReporter{},
	}
	if err := os.MkdirAll(f.workspace, 0o755); err != nil {
		t.Fatal(err)
	}
	f.orch = NewOrchestrator(cfg, f.runner, linuxSig, testLogger(), f.reporter)
	f.orch.SetClock(func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) })
	return f
}

// satisfyAll scripts a machine where every external tool works.
func (f *orchestratorFixture) satisfyAll() {
	python := linuxSig.VenvPython(filepath.Join(f.cfg.InstallRoot, "translation-audit", ".venv"))
	f.runner.
		Set("python3 --version", "Python 3.12.3").
		SetPath("python3", "/usr/bin/python3").
		Set("uv --version", "uv 0.5.1").
		Set("az version --output json", `{"azure-cli": "2.64.0"}`).
		Set(authQuery, `{"accessToken": "x"}`).
		Set("odbcinst -q -d", "[ODBC Driver 18 for SQL Server]").
		Set("uv sync", "").
		Set(python+" -m pip install mcp[cli] --quiet", "").
		Set(python+readyCheck, "")
	f.runner.Hook = venvHook
}

func (f *orchestratorFixture) mcpServers(t *testing.T) []string {
	t.Helper()
	servers := serversOf(t, decodeDoc(t, MCPConfigPath(f.workspace)))
	keys := make([]string, 0, len(servers))
	for k := range servers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func TestOrchestrator_RunEndToEnd(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.satisfyAll()

	if !f.orch.ShouldAutoRun() {
		t.Fatal("ShouldAutoRun() = false on a fresh install")
	}

	sum, err := f.orch.Run(context.Background(), RunOptions{WorkspaceDir: f.workspace})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	want := []string{KeyFabricCore, KeyPowerBIModeling, KeyTranslationAudit}
	if got := f.mcpServers(t); !reflect.DeepEqual(got, want) {
		t.Errorf("mcpServers keys = %v, want %v", got, want)
	}
	if sum.ServerCount() != len(want) {
		t.Errorf("ServerCount() = %d, want %d", sum.ServerCount(), len(want))
	}
	if sum.Headline() != "Setup complete. 3 MCP server(s) configured. Restart Claude Code to load." {
		t.Errorf("Headline() = %q", sum.Headline())
	}
	if len(sum.Warnings) != 0 {
		t.Errorf("Warnings = %+v, want none", sum.Warnings)
	}
	if sum.Failed() {
		t.Errorf("Steps = %+v, want no failures", sum.Steps)
	}

	if got := f.orch.State().SetupVersion(); got != "1.6.1" {
		t.Errorf("gate = %q, want %q", got, "1.6.1")
	}
	if f.orch.ShouldAutoRun() {
		t.Error("ShouldAutoRun() = true after a completed run")
	}

	for _, rel := range []string{
		"CLAUDE.md",
		"TRANSLATION_PLAYBOOK.md",
		filepath.Join(".claude", "skills", "fabric-toolkit", "SKILL.md"),
		filepath.Join(".claude", "agents", "reviewer.md"),
	} {
		if !fileExists(filepath.Join(f.workspace, rel)) {
			t.Errorf("%s not copied to workspace", rel)
		}
	}

	if decodeDoc(t, f.cfg.SettingsPath)[SettingsFlag] != true {
		t.Error("settings flag not enabled")
	}

	wantSteps := []Step{StepVersionGate, StepPrereqs, StepPrereqs, StepComponents, StepComponents,
		StepStaticAssets, StepPackageLocate, StepConfigMerge, StepPersistVersion}
	if !reflect.DeepEqual(f.reporter.steps, wantSteps) {
		t.Errorf("steps = %v, want %v", f.reporter.steps, wantSteps)
	}
}

func TestOrchestrator_RunIdempotent(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.satisfyAll()
	path := MCPConfigPath(f.workspace)
	writeTestFile(t, path, `{"mcpServers": {"custom": {"command": "node", "args": ["a.js"]}}}`)

	opts := RunOptions{WorkspaceDir: f.workspace, Manual: true}
	if _, err := f.orch.Run(context.Background(), opts); err != nil {
		t.Fatal(err)
	}
	first := readTestFile(t, path)
	gate := f.orch.State().SetupVersion()

	if _, err := f.orch.Run(context.Background(), opts); err != nil {
		t.Fatal(err)
	}
	if second := readTestFile(t, path); second != first {
		t.Errorf("config changed between runs:\n%s\n---\n%s", first, second)
	}
	if got := f.orch.State().SetupVersion(); got != gate {
		t.Errorf("gate changed from %q to %q", gate, got)
	}
}

func TestOrchestrator_RunContinuesAfterComponentFailure(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.satisfyAll()
	f.runner.Fail("uv sync", errors.New("failed to build wheel"))

	sum, err := f.orch.Run(context.Background(), RunOptions{WorkspaceDir: f.workspace, Manual: true})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	want := []string{KeyPowerBIModeling, KeyTranslationAudit}
	if got := f.mcpServers(t); !reflect.DeepEqual(got, want) {
		t.Errorf("mcpServers keys = %v, want %v", got, want)
	}
	if f.orch.State().SetupVersion() != "1.6.1" {
		t.Error("gate not updated after a partial failure")
	}
	if len(f.reporter.warnings) != 1 {
		t.Fatalf("reported %d warnings, want 1: %+v", len(f.reporter.warnings), f.reporter.warnings)
	}

	var components StepOutcome
	for _, o := range sum.Steps {
		if o.Step == StepComponents {
			components = o
		}
	}
	if components.Status != StepWarning {
		t.Errorf("components step = %+v, want warning", components)
	}
}

func TestOrchestrator_RunSkipsMissingBundledSource(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.satisfyAll()
	if err := os.RemoveAll(filepath.Join(f.cfg.BundleDir, "fabric-core")); err != nil {
		t.Fatal(err)
	}

	if _, err := f.orch.Run(context.Background(), RunOptions{WorkspaceDir: f.workspace, Manual: true}); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	want := []string{KeyPowerBIModeling, KeyTranslationAudit}
	if got := f.mcpServers(t); !reflect.DeepEqual(got, want) {
		t.Errorf("mcpServers keys = %v, want %v", got, want)
	}
	if f.runner.Ran("uv sync") {
		t.Error("uv sync ran without a bundled source")
	}
	if len(f.reporter.warnings) != 0 {
		t.Errorf("reported %+v, want no warnings for a skipped component", f.reporter.warnings)
	}
}

func TestOrchestrator_RunWithoutTools(t *testing.T) {
	for _, manual := range []bool{true, false} {
		name := "automatic"
		if manual {
			name = "manual"
		}
		t.Run(name, func(t *testing.T) {
			f := newOrchestratorFixture(t)

			sum, err := f.orch.Run(context.Background(), RunOptions{WorkspaceDir: f.workspace, Manual: manual})
			if err != nil {
				t.Fatalf("Run() error: %v", err)
			}

			if got := f.mcpServers(t); !reflect.DeepEqual(got, []string{KeyPowerBIModeling}) {
				t.Errorf("mcpServers keys = %v, want only powerbi-modeling", got)
			}
			if f.runner.Ran(authQuery) {
				t.Error("auth probe should not run when the Azure CLI is missing")
			}
			if f.runner.Ran("uv sync") {
				t.Error("fabric-core should be skipped without python and uv")
			}

			// python, uv, az, odbc and the audit venv.
			if len(sum.Warnings) != 5 {
				t.Errorf("got %d warnings, want 5: %+v", len(sum.Warnings), sum.Warnings)
			}
			wantReported := 0
			if manual {
				wantReported = len(sum.Warnings)
			}
			if len(f.reporter.warnings) != wantReported {
				t.Errorf("reporter got %d warnings, want %d", len(f.reporter.warnings), wantReported)
			}
			if sum.Warnings[0].Tool != probe.Python || len(sum.Warnings[0].Hints) == 0 {
				t.Errorf("first warning = %+v, want python with hints", sum.Warnings[0])
			}
			if f.orch.State().SetupVersion() != "1.6.1" {
				t.Error("gate not updated")
			}
		})
	}
}

func TestOrchestrator_AutoRunGate(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.satisfyAll()
	if err := f.orch.State().SetSetupVersion("1.6.1", time.Now()); err != nil {
		t.Fatal(err)
	}

	sum, err := f.orch.Run(context.Background(), RunOptions{WorkspaceDir: f.workspace})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !sum.Skipped {
		t.Error("Skipped = false, want true when the gate matches")
	}
	if len(f.runner.Calls()) != 0 {
		t.Errorf("ran %v, want nothing", f.runner.Calls())
	}
	if fileExists(MCPConfigPath(f.workspace)) {
		t.Error("config written by a gated run")
	}

	if _, err := f.orch.Run(context.Background(), RunOptions{WorkspaceDir: f.workspace, Manual: true}); err != nil {
		t.Fatal(err)
	}
	if !fileExists(MCPConfigPath(f.workspace)) {
		t.Error("manual run should ignore the gate")
	}
}

func TestOrchestrator_AutoRunKeepsUserEdits(t *testing.T) {
	f := newOrchestratorFixture(t)
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(filepath.Join(f.cfg.BundleDir, "CLAUDE.md"), old, old); err != nil {
		t.Fatal(err)
	}
	writeTestFile(t, filepath.Join(f.workspace, "CLAUDE.md"), "my notes")

	if _, err := f.orch.Run(context.Background(), RunOptions{WorkspaceDir: f.workspace}); err != nil {
		t.Fatal(err)
	}
	if got := readTestFile(t, filepath.Join(f.workspace, "CLAUDE.md")); got != "my notes" {
		t.Errorf("CLAUDE.md = %q, want user edit kept", got)
	}

	if _, err := f.orch.Run(context.Background(), RunOptions{WorkspaceDir: f.workspace, Manual: true}); err != nil {
		t.Fatal(err)
	}
	if got := readTestFile(t, filepath.Join(f.workspace, "CLAUDE.md")); got != "# Knowledge base" {
		t.Errorf("CLAUDE.md = %q, want manual run to refresh it", got)
	}
}

func TestOrchestrator_NoWorkspace(t *testing.T) {
	f := newOrchestratorFixture(t)

	if _, err := f.orch.Run(context.Background(), RunOptions{}); !errors.Is(err, ErrNoWorkspace) {
		t.Errorf("Run() error = %v, want ErrNoWorkspace", err)
	}
	if _, err := f.orch.Regenerate(""); !errors.Is(err, ErrNoWorkspace) {
		t.Errorf("Regenerate() error = %v, want ErrNoWorkspace", err)
	}
}

func TestOrchestrator_Regenerate(t *testing.T) {
	f := newOrchestratorFixture(t)
	writeTestFile(t, filepath.Join(f.cfg.InstallRoot, "fabric-core", "fabric_mcp_stdio.py"), "main")
	writeTestFile(t, MCPConfigPath(f.workspace), `{"mcpServers": {"custom": {"command": "node", "args": []}}}`)

	sum, err := f.orch.Regenerate(f.workspace)
	if err != nil {
		t.Fatalf("Regenerate() error: %v", err)
	}
	if sum.ServerCount() != 2 {
		t.Errorf("ServerCount() = %d, want 2", sum.ServerCount())
	}

	want := []string{"custom", KeyFabricCore, KeyPowerBIModeling}
	if got := f.mcpServers(t); !reflect.DeepEqual(got, want) {
		t.Errorf("mcpServers keys = %v, want %v", got, want)
	}
	if len(f.runner.Calls()) != 0 {
		t.Errorf("regenerate ran %v, want nothing", f.runner.Calls())
	}
	if f.orch.State().SetupVersion() != "" {
		t.Error("regenerate must not touch the gate")
	}
}

func TestOrchestrator_RegenerateWarnsOnInvalidConfig(t *testing.T) {
	f := newOrchestratorFixture(t)
	writeTestFile(t, MCPConfigPath(f.workspace), `{"mcpServers": {`)

	sum, err := f.orch.Regenerate(f.workspace)
	if err != nil {
		t.Fatalf("Regenerate() error: %v", err)
	}
	if len(sum.Warnings) != 1 || !strings.Contains(sum.Warnings[0].Message, "not valid JSON") {
		t.Errorf("Warnings = %+v, want one recovery warning", sum.Warnings)
	}
	if len(f.reporter.warnings) != 1 {
		t.Errorf("reported %d warnings, want 1", len(f.reporter.warnings))
	}
	if got := f.mcpServers(t); !reflect.DeepEqual(got, []string{KeyPowerBIModeling}) {
		t.Errorf("mcpServers keys = %v, want [%s]", got, KeyPowerBIModeling)
	}
}

func TestOrchestrator_DetectInstallState(t *testing.T) {
	f := newOrchestratorFixture(t)
	auditDir := filepath.Join(f.cfg.InstallRoot, "translation-audit")
	python := linuxSig.VenvPython(filepath.Join(auditDir, ".venv"))
	writeTestFile(t, python, "#!")

	st := f.orch.DetectInstallState()
	if st.FabricCoreDir != "" {
		t.Errorf("FabricCoreDir = %q, want empty without entry file", st.FabricCoreDir)
	}
	if st.AuditDir != auditDir || st.AuditPython != python {
		t.Errorf("audit = %q, %q", st.AuditDir, st.AuditPython)
	}
	if st.PowerBIExe == "" {
		t.Error("PowerBIExe not detected")
	}
	if st.UVPath != "uv" {
		t.Errorf("UVPath = %q", st.UVPath)
	}
}

func TestOrchestrator_CheckPrereqs(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.satisfyAll()
	f.runner.Fail(authQuery, errors.New("AADSTS700082: refresh token expired"))

	diags := f.orch.CheckPrereqs(context.Background())

	wantNames := []string{"Python 3.12+", "uv", "Azure CLI", "Azure Auth", "ODBC Driver 18", "Power BI Modeling MCP"}
	var names []string
	for _, d := range diags {
		names = append(names, d.Name)
	}
	if !reflect.DeepEqual(names, wantNames) {
		t.Errorf("names = %v, want %v", names, wantNames)
	}
	if diags[3].Result.Satisfied {
		t.Error("Azure Auth should fail")
	}
	if !diags[5].Result.Satisfied || diags[5].Result.Message != "Found" {
		t.Errorf("Power BI = %+v", diags[5].Result)
	}
	if dirExists(f.cfg.InstallRoot) || fileExists(MCPConfigPath(f.workspace)) {
		t.Error("check must not write anything")
	}
}
