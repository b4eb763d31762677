// Package probe detects external tool prerequisites. Every failure mode of a
// query (missing binary, non-zero exit, timeout, unparsable output) is reported
// as an unsatisfied Result; nothing in this package returns an error for them.
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fabric-powerbi/fabkit/internal/core/platform"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// AuthTimeout bounds the Azure token query, which may hit the network.
const AuthTimeout = 20 * time.Second

// DefaultConcurrency caps simultaneous probe processes.
const DefaultConcurrency = 4

// Tool names a prerequisite.
type Tool string

const (
	Python    Tool = "python"
	UV        Tool = "uv"
	AzureCLI  Tool = "az"
	AzureAuth Tool = "az-auth"
	ODBC      Tool = "odbc"
)

// DisplayName returns the label used in reports.
func (t Tool) DisplayName() string {
	switch t {
	case Python:
		return "Python 3.12+"
	case UV:
		return "uv"
	case AzureCLI:
		return "Azure CLI"
	case AzureAuth:
		return "Azure Auth"
	case ODBC:
		return "ODBC Driver 18"
	default:
		return string(t)
	}
}

// Result is the outcome of one probe. It is never persisted.
type Result struct {
	Satisfied bool
	Message   string
	Detail    string
}

// Check pairs a Result with the tool that produced it.
type Check struct {
	Tool   Tool
	Result Result
}

var (
	// MinPython is required by the fabric-core server.
	MinPython = Version{Major: 3, Minor: 12}
	// MinVenvPython is enough to host the translation audit environment.
	MinVenvPython = Version{Major: 3, Minor: 10}
)

const fabricTokenResource = "https://api.fabric.microsoft.com/"

type odbcQuery struct {
	cmd    Command
	marker string
}

var odbcQueries = map[platform.Family]odbcQuery{
	platform.Windows: {
		cmd: Command{Name: "reg", Args: []string{
			"query", `HKLM\SOFTWARE\ODBC\ODBCINST.INI\ODBC Driver 18 for SQL Server`, "/v", "Driver",
		}},
		marker: "Driver",
	},
	platform.Darwin: {cmd: Command{Name: "odbcinst", Args: []string{"-q", "-d"}}, marker: "ODBC Driver 18"},
	platform.Linux:  {cmd: Command{Name: "odbcinst", Args: []string{"-q", "-d"}}, marker: "ODBC Driver 18"},
}

// Prober runs prerequisite queries for one platform.
type Prober struct {
	runner      Runner
	sig         platform.Signature
	concurrency int64
}

// New creates a Prober. concurrency <= 0 selects DefaultConcurrency.
func New(runner Runner, sig platform.Signature, concurrency int64) *Prober {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Prober{runner: runner, sig: sig, concurrency: concurrency}
}

// Signature returns the platform the prober dispatches for.
func (p *Prober) Signature() platform.Signature { return p.sig }

// Check probes a single tool.
func (p *Prober) Check(ctx context.Context, tool Tool) Result {
	switch tool {
	case Python:
		return p.checkPython(ctx)
	case UV:
		return p.checkUV(ctx)
	case AzureCLI:
		return p.checkAzureCLI(ctx)
	case AzureAuth:
		return p.checkAzureAuth(ctx)
	case ODBC:
		return p.checkODBC(ctx)
	default:
		return Result{Message: fmt.Sprintf("unknown prerequisite %q", tool)}
	}
}

// CheckAll probes tools concurrently, bounded by the prober's concurrency,
// and returns results in the order the tools were given.
func (p *Prober) CheckAll(ctx context.Context, tools ...Tool) []Check {
	checks := make([]Check, len(tools))
	sem := semaphore.NewWeighted(p.concurrency)
	group, groupCtx := errgroup.WithContext(ctx)

	for i, tool := range tools {
		group.Go(func() error {
			checks[i].Tool = tool
			if err := sem.Acquire(groupCtx, 1); err != nil {
				checks[i].Result = Result{Message: fmt.Sprintf("%s check canceled: %v", tool.DisplayName(), err)}
				return nil
			}
			defer sem.Release(1)

			checks[i].Result = p.Check(groupCtx, tool)
			return nil
		})
	}

	_ = group.Wait()
	return checks
}

// Classify decides whether a parsed version meets min.
func Classify(name string, v, min Version) Result {
	if v.AtLeast(min) {
		return Result{Satisfied: true, Message: fmt.Sprintf("%s %s found", name, v)}
	}
	return Result{Message: fmt.Sprintf("%s %s found but need %s+", name, v, min)}
}

func (p *Prober) checkPython(ctx context.Context) Result {
	for _, name := range p.sig.PythonCandidates() {
		out, err := p.runner.Run(ctx, Command{Name: name, Args: []string{"--version"}})
		if err != nil {
			continue
		}
		v, ok := ParsePythonVersion(out)
		if !ok {
			continue
		}
		return Classify("Python", v, MinPython)
	}
	return Result{Message: fmt.Sprintf("Python not found. Install Python %s+.", MinPython)}
}

func (p *Prober) checkUV(ctx context.Context) Result {
	out, err := p.runner.Run(ctx, Command{Name: "uv", Args: []string{"--version"}})
	if err != nil || out == "" {
		return Result{Message: "uv not found. Install: " + uvURL}
	}
	return Result{Satisfied: true, Message: "uv found: " + out}
}

func (p *Prober) checkAzureCLI(ctx context.Context) Result {
	out, err := p.runner.Run(ctx, Command{Name: "az", Args: []string{"version", "--output", "json"}})
	if err != nil || out == "" {
		return Result{Message: "Azure CLI not found. Install: " + azureURL}
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(out), &data); err != nil {
		return Result{Satisfied: true, Message: "Azure CLI found"}
	}
	ver, _ := data["azure-cli"].(string)
	if ver == "" {
		ver = "unknown"
	}
	return Result{Satisfied: true, Message: fmt.Sprintf("Azure CLI %s found", ver)}
}

func (p *Prober) checkAzureAuth(ctx context.Context) Result {
	out, err := p.runner.Run(ctx, Command{
		Name:    "az",
		Args:    []string{"account", "get-access-token", "--resource", fabricTokenResource, "--output", "json"},
		Timeout: AuthTimeout,
	})
	if err != nil || out == "" {
		return Result{Message: "Not logged in. Run: az login"}
	}
	return Result{Satisfied: true, Message: "Azure authentication active"}
}

func (p *Prober) checkODBC(ctx context.Context) Result {
	if q, ok := odbcQueries[p.sig.OS]; ok {
		out, err := p.runner.Run(ctx, q.cmd)
		if err == nil && strings.Contains(out, q.marker) {
			return Result{Satisfied: true, Message: "ODBC Driver 18 found"}
		}
	}
	return Result{
		Message: "ODBC Driver 18 not found (optional, needed for SQL queries)",
		Detail:  odbcURL,
	}
}

// FindPython returns the first system interpreter at or above min, resolved
// to an absolute path when PATH lookup succeeds.
func (p *Prober) FindPython(ctx context.Context, min Version) (string, bool) {
	for _, name := range p.sig.PythonCandidates() {
		out, err := p.runner.Run(ctx, Command{Name: name, Args: []string{"--version"}})
		if err != nil {
			continue
		}
		v, ok := ParsePythonVersion(out)
		if !ok || !v.AtLeast(min) {
			continue
		}
		if full, err := p.runner.LookPath(name); err == nil {
			return full, true
		}
		return name, true
	}
	return "", false
}

// ResolvePath resolves an executable through PATH, falling back to the bare name.
func (p *Prober) ResolvePath(name string) string {
	if full, err := p.runner.LookPath(name); err == nil {
		return full
	}
	return name
}
