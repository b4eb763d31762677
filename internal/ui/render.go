// Package ui renders fabkit reports for the terminal.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/fabric-powerbi/fabkit/internal/core"
)

const (
	checkTitle    = "=== Fabric & Power BI Prerequisite Check ==="
	allPassedText = "All checks passed."
	someFailedTxt = "Some checks failed. See above."
	detailIndent  = "       "
)

// AllPassed reports whether every diagnostic is satisfied.
func AllPassed(diags []core.Diagnostic) bool {
	for _, d := range diags {
		if !d.Result.Satisfied {
			return false
		}
	}
	return true
}

// RenderChecks formats the prerequisite report. width > 0 truncates long lines.
func RenderChecks(diags []core.Diagnostic, width int) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(checkTitle))
	b.WriteString("\n\n")

	for _, d := range diags {
		status := passStyle.Render("[PASS]")
		if !d.Result.Satisfied {
			status = failStyle.Render("[FAIL]")
		}
		line := fmt.Sprintf("%s %s: %s", status, nameStyle.Render(d.Name), d.Result.Message)
		b.WriteString(truncate(line, width))
		b.WriteString("\n")
		if d.Result.Detail != "" {
			b.WriteString(truncate(detailIndent+mutedStyle.Render(d.Result.Detail), width))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	if AllPassed(diags) {
		b.WriteString(passStyle.Render(allPassedText))
	} else {
		b.WriteString(failStyle.Render(someFailedTxt))
	}
	b.WriteString("\n")
	return b.String()
}

// RenderWarning formats a warning together with its remediation hints.
func RenderWarning(w core.Warning, width int) string {
	var b strings.Builder
	b.WriteString(truncate(warningStyle.Render("WARN")+" "+w.Message, width))
	b.WriteString("\n")
	if w.Detail != "" {
		b.WriteString(truncate("  "+mutedStyle.Render(w.Detail), width))
		b.WriteString("\n")
	}
	for _, h := range w.Hints {
		target := h.Command
		if target == "" {
			target = h.URL
		}
		b.WriteString(truncate(fmt.Sprintf("  %s: %s", h.Label, mutedStyle.Render(target)), width))
		b.WriteString("\n")
	}
	return b.String()
}

// RenderSummary formats the outcome of a setup run.
func RenderSummary(sum *core.Summary, width int) string {
	var b strings.Builder

	if sum.Skipped {
		b.WriteString(fmt.Sprintf("Setup already completed for version %s. Nothing to do.\n", sum.Version))
		return b.String()
	}

	b.WriteString(titleStyle.Render(sum.Headline()))
	b.WriteString("\n")

	if len(sum.Details) > 0 {
		b.WriteString("Details:\n")
		for _, d := range sum.Details {
			b.WriteString(truncate("  "+d, width))
			b.WriteString("\n")
		}
	}

	for _, o := range sum.Steps {
		if o.Status == core.StepOK || o.Status == core.StepSkipped {
			continue
		}
		line := fmt.Sprintf("%s %s: %s", statusLabel(o.Status), o.Step, o.Message)
		b.WriteString(truncate(line, width))
		b.WriteString("\n")
	}
	return b.String()
}

// RenderRegenerate formats the result of a config rebuild.
func RenderRegenerate(sum *core.Summary) string {
	return fmt.Sprintf(".mcp.json regenerated with %d server(s). Restart Claude Code to reload.\n", sum.ServerCount())
}

func statusLabel(s core.StepStatus) string {
	switch s {
	case core.StepFailed:
		return failStyle.Render("[FAILED]")
	case core.StepWarning:
		return warningStyle.Render("[WARN]")
	default:
		return mutedStyle.Render("[" + strings.ToUpper(string(s)) + "]")
	}
}

func truncate(line string, width int) string {
	if width <= 0 {
		return line
	}
	return ansi.Truncate(line, width, "…")
}
