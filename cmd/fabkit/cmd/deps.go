package cmd

import (
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/fabric-powerbi/fabkit/internal/core"
	"github.com/fabric-powerbi/fabkit/internal/core/platform"
	"github.com/fabric-powerbi/fabkit/internal/core/probe"
	"github.com/spf13/cobra"
)

// deps holds shared dependencies for CLI commands.
type deps struct {
	config *core.Config
	logger *log.Logger
	orch   *core.Orchestrator
}

// newDeps creates shared dependencies. reporter receives manual-run warnings;
// nil falls back to the logger.
func newDeps(cmd *cobra.Command, reporter func(*log.Logger) core.Reporter) (*deps, error) {
	flags := cmd.Root().PersistentFlags()
	configFile, _ := flags.GetString("config")

	cfg, err := core.LoadConfig(core.LoadOptions{ConfigFile: configFile, Flags: flags})
	if err != nil {
		return nil, fmt.Errorf("initializing config: %w", err)
	}

	logger, err := newLogger(cmd.ErrOrStderr(), cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	sig, ok := platform.Current()
	if !ok {
		return nil, fmt.Errorf("unsupported platform")
	}

	var rep core.Reporter = core.NewLogReporter(logger)
	if reporter != nil {
		rep = reporter(logger)
	}

	return &deps{
		config: cfg,
		logger: logger,
		orch:   core.NewOrchestrator(cfg, probe.NewExecRunner(), sig, logger, rep),
	}, nil
}

func newLogger(w io.Writer, level string) (*log.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return log.NewWithOptions(w, log.Options{
		Prefix: "fabkit",
		Level:  lvl,
	}), nil
}
