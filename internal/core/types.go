// Package core provides the provisioning logic for fabkit.
// It has zero UI dependencies and is independently testable.
package core

import (
	"github.com/fabric-powerbi/fabkit/internal/core/probe"
)

// Server keys owned by fabkit inside the mcpServers container.
// Every other key in that container belongs to the user.
const (
	KeyFabricCore       = "fabric-core"
	KeyPowerBIModeling  = "powerbi-modeling"
	KeyTranslationAudit = "powerbi-translation-audit"
)

// ManagedKeys is the closed set of server keys fabkit writes.
var ManagedKeys = []string{KeyFabricCore, KeyPowerBIModeling, KeyTranslationAudit}

// Strategy selects how a Component is materialized.
type Strategy int

const (
	// StrategyCopy synchronizes the bundled tree and nothing else.
	StrategyCopy Strategy = iota
	// StrategyCopySync synchronizes, then runs the dependency manager in the destination.
	StrategyCopySync
	// StrategyCopyVenv synchronizes, then bootstraps an isolated Python environment.
	StrategyCopyVenv
)

func (s Strategy) String() string {
	switch s {
	case StrategyCopy:
		return "copy"
	case StrategyCopySync:
		return "copy+sync"
	case StrategyCopyVenv:
		return "copy+venv"
	default:
		return "unknown"
	}
}

// Component is an installable unit declared statically and never deleted.
type Component struct {
	Key         string       // server key
	DisplayName string       // human-readable name for messages
	Source      string       // bundle-relative source directory
	Dir         string       // destination directory name under the install root
	Strategy    Strategy     // installation strategy
	Requires    []probe.Tool // prerequisites that must be satisfied, otherwise the install is skipped
	Exclusions  []string     // entry names never copied

	// EntryFile marks the component as present at its destination.
	EntryFile string

	// SyncArgs are passed to uv for StrategyCopySync.
	SyncArgs []string

	// Venv settings for StrategyCopyVenv.
	MinPython   probe.Version
	Packages    []string // pip requirement specifiers
	ReadyImport string   // python statement that succeeds once Packages are importable
}

// InstallResult is the outcome of one Component install.
type InstallResult struct {
	Key         string
	OK          bool
	Skipped     bool   // nothing was attempted (missing source or prerequisites)
	Message     string // human-readable outcome
	Dir         string // destination directory
	Interpreter string // venv interpreter, set only for a successful StrategyCopyVenv install
}

// ServerDescriptor describes how to launch one component as a subprocess.
type ServerDescriptor struct {
	Type    string   `json:"type,omitempty"`
	Command string   `json:"command"`
	Args    []string `json:"args"`
}

// InstallState collects the facts a config build needs. An empty field means
// the corresponding component is unavailable.
type InstallState struct {
	UVPath        string // uv executable used to launch fabric-core
	FabricCoreDir string // installed and synced fabric-core directory
	AuditDir      string // translation audit directory
	AuditPython   string // interpreter of the translation audit venv
	PowerBIExe    string // located Power BI Modeling MCP server executable
}
