package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout bounds every probe query unless a check asks for more.
const DefaultTimeout = 15 * time.Second

// waitDelay bounds how long Run waits for output pipes after the process is
// killed. Grandchildren that inherited the pipes would otherwise hold Run open.
const waitDelay = time.Second

// Command is one external process invocation.
type Command struct {
	Name    string
	Args    []string
	Dir     string        // working directory; empty means the current one
	Timeout time.Duration // zero means DefaultTimeout
}

func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Runner spawns external processes. Tests substitute a fake.
type Runner interface {
	// Run executes the command and returns its trimmed standard output.
	// A non-zero exit, a spawn failure or a timeout is reported as an error.
	Run(ctx context.Context, cmd Command) (string, error)
	// LookPath resolves an executable name against PATH.
	LookPath(name string) (string, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// NewExecRunner returns a Runner backed by os/exec.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes cmd, killing it when its timeout elapses.
func (ExecRunner) Run(ctx context.Context, cmd Command) (string, error) {
	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	c.WaitDelay = waitDelay
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	err := c.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "", fmt.Errorf("%s: command timed out after %s", cmd.Name, timeout)
	}
	// The process itself exited cleanly; only a detached descendant kept the pipes.
	if errors.Is(err, exec.ErrWaitDelay) {
		err = nil
	}
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%s: %w: %s", cmd.Name, err, firstLine(msg))
		}
		return "", fmt.Errorf("%s: %w", cmd.Name, err)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// LookPath resolves name with exec.LookPath.
func (ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

func firstLine(text string) string {
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		return strings.TrimSpace(text[:idx])
	}
	return text
}
