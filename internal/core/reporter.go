package core

import (
	"github.com/charmbracelet/log"
	"github.com/fabric-powerbi/fabkit/internal/core/probe"
)

// Warning is a degraded-but-continuing condition raised during a run.
type Warning struct {
	Tool    probe.Tool   // prerequisite the warning is about; empty for non-probe warnings
	Message string       // one-line headline
	Detail  string       // underlying probe or command output
	Hints   []probe.Hint // remediation actions
}

// Reporter receives progress from an Orchestrator run.
type Reporter interface {
	// StepStarted is called before each pipeline step.
	StepStarted(step Step, message string)
	// Warn surfaces a warning to the operator.
	Warn(w Warning)
}

// NopReporter discards everything.
type NopReporter struct{}

func (NopReporter) StepStarted(Step, string) {}
func (NopReporter) Warn(Warning)             {}

// LogReporter writes progress to a logger.
type LogReporter struct {
	Logger *log.Logger
}

// NewLogReporter creates a LogReporter.
func NewLogReporter(logger *log.Logger) *LogReporter {
	return &LogReporter{Logger: logger}
}

func (r *LogReporter) StepStarted(step Step, message string) {
	r.Logger.Info(message, "step", step)
}

func (r *LogReporter) Warn(w Warning) {
	keyvals := []interface{}{}
	if w.Tool != "" {
		keyvals = append(keyvals, "tool", w.Tool)
	}
	if w.Detail != "" {
		keyvals = append(keyvals, "detail", w.Detail)
	}
	for _, h := range w.Hints {
		if h.Command != "" {
			keyvals = append(keyvals, "fix", h.Command)
		}
		if h.URL != "" {
			keyvals = append(keyvals, "docs", h.URL)
		}
	}
	r.Logger.Warn(w.Message, keyvals...)
}
