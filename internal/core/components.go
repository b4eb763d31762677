package core

import (
	"github.com/fabric-powerbi/fabkit/internal/core/probe"
)

const (
	fabricCoreEntry = "fabric_mcp_stdio.py"
	auditEntry      = "server.py"
	venvDirName     = ".venv"
)

// Components returns the installable components in installation order.
// Power BI Modeling is not listed: it is discovered, never installed.
func Components() []Component {
	return []Component{
		{
			Key:         KeyFabricCore,
			DisplayName: "fabric-core",
			Source:      "fabric-core",
			Dir:         "fabric-core",
			Strategy:    StrategyCopySync,
			Requires:    []probe.Tool{probe.Python, probe.UV},
			Exclusions:  DefaultExclusions,
			EntryFile:   fabricCoreEntry,
			SyncArgs:    []string{"sync"},
		},
		{
			Key:         KeyTranslationAudit,
			DisplayName: "translation audit",
			Source:      "translation-audit",
			Dir:         "translation-audit",
			Strategy:    StrategyCopyVenv,
			Exclusions:  DefaultExclusions,
			EntryFile:   auditEntry,
			MinPython:   probe.MinVenvPython,
			Packages:    []string{"mcp[cli]"},
			ReadyImport: "from mcp.server.fastmcp import FastMCP",
		},
	}
}

// ComponentByKey looks up a declared component.
func ComponentByKey(key string) (Component, bool) {
	for _, c := range Components() {
		if c.Key == key {
			return c, true
		}
	}
	return Component{}, false
}
