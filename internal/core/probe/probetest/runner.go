// Package probetest provides a scripted probe.Runner for tests.
package probetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/fabric-powerbi/fabkit/internal/core/probe"
)

type response struct {
	output string
	err    error
}

// Runner answers commands from a table keyed by the full command line.
// Unknown commands fail as if the executable were missing.
type Runner struct {
	mu        sync.Mutex
	responses map[string]response
	paths     map[string]string
	calls     []probe.Command

	// Hook, when set, runs before the table lookup. Returning handled=true
	// short-circuits the lookup.
	Hook func(cmd probe.Command) (out string, handled bool, err error)
}

// NewRunner returns an empty Runner.
func NewRunner() *Runner {
	return &Runner{
		responses: map[string]response{},
		paths:     map[string]string{},
	}
}

// Set makes cmdline succeed with output.
func (r *Runner) Set(cmdline, output string) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses[cmdline] = response{output: output}
	return r
}

// Fail makes cmdline fail with err.
func (r *Runner) Fail(cmdline string, err error) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses[cmdline] = response{err: err}
	return r
}

// SetPath registers a PATH lookup result.
func (r *Runner) SetPath(name, path string) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths[name] = path
	return r
}

// Calls returns every command line run so far.
func (r *Runner) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	for i, c := range r.calls {
		out[i] = c.String()
	}
	return out
}

// Ran reports whether cmdline was executed.
func (r *Runner) Ran(cmdline string) bool {
	for _, c := range r.Calls() {
		if c == cmdline {
			return true
		}
	}
	return false
}

// Run implements probe.Runner.
func (r *Runner) Run(ctx context.Context, cmd probe.Command) (string, error) {
	r.mu.Lock()
	r.calls = append(r.calls, cmd)
	hook := r.Hook
	resp, ok := r.responses[cmd.String()]
	r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if hook != nil {
		if out, handled, err := hook(cmd); handled {
			return out, err
		}
	}
	if !ok {
		return "", fmt.Errorf("%s: executable file not found in $PATH", cmd.Name)
	}
	return resp.output, resp.err
}

// LookPath implements probe.Runner.
func (r *Runner) LookPath(name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.paths[name]; ok {
		return p, nil
	}
	return "", fmt.Errorf("exec: %q: executable file not found in $PATH", name)
}
