package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/fabric-powerbi/fabkit/internal/core"
	"github.com/fabric-powerbi/fabkit/internal/ui"
	"github.com/spf13/cobra"
)

// resolveTargetDir resolves the --dir flag or falls back to cwd.
func resolveTargetDir(cmd *cobra.Command) (string, error) {
	dir, _ := cmd.Flags().GetString("dir")
	if dir != "" {
		return dir, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting current directory: %w", err)
	}
	return cwd, nil
}

// outputWidth returns the terminal width from $COLUMNS, or 0 for no limit.
func outputWidth() int {
	n, err := strconv.Atoi(os.Getenv("COLUMNS"))
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

// consoleReporter prints warnings with their remediation hints and logs steps.
type consoleReporter struct {
	out    io.Writer
	logger *log.Logger
}

func newConsoleReporter(out io.Writer) func(*log.Logger) core.Reporter {
	return func(logger *log.Logger) core.Reporter {
		return &consoleReporter{out: out, logger: logger}
	}
}

func (r *consoleReporter) StepStarted(step core.Step, message string) {
	r.logger.Debug(message, "step", step)
}

func (r *consoleReporter) Warn(w core.Warning) {
	_, _ = fmt.Fprint(r.out, ui.RenderWarning(w, outputWidth()))
}
