package core

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fabric-powerbi/fabkit/internal/core/platform"
)

// Power BI Modeling MCP ships as an editor extension; one directory per
// version and platform, e.g. analysis-services.powerbi-modeling-mcp-0.1.9-linux-x64.
const (
	powerBIPackagePrefix = "analysis-services.powerbi-modeling-mcp-"
	powerBIServerDir     = "server"
	powerBIExeBase       = "powerbi-modeling-mcp"
)

// LocatePackage returns subPath inside the greatest entry of root whose name
// starts with prefix and ends with the signature suffix. Entries are compared
// as plain strings, which matches version order only while every version
// component has the same number of digits (1.10.0 sorts before 1.2.0).
// A missing or unreadable root, no match, or a missing subPath all yield ok=false.
func LocatePackage(root, prefix string, sig platform.Signature, subPath string) (string, bool) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", false
	}

	suffix := "-" + sig.Suffix()
	var matches []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, suffix) {
			matches = append(matches, name)
		}
	}
	if len(matches) == 0 {
		return "", false
	}

	sort.Strings(matches)
	latest := matches[len(matches)-1]

	candidate := filepath.Join(root, latest, subPath)
	if _, err := os.Stat(candidate); err != nil {
		return "", false
	}
	return candidate, true
}

// LocatePowerBIServer finds the Power BI Modeling MCP server executable in an
// editor extensions directory.
func LocatePowerBIServer(extensionsDir string, sig platform.Signature) (string, bool) {
	subPath := filepath.Join(powerBIServerDir, sig.ExeName(powerBIExeBase))
	return LocatePackage(extensionsDir, powerBIPackagePrefix, sig, subPath)
}
