package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/tailscale/hujson"
)

// ServersKey is the top-level container of server descriptors.
const ServersKey = "mcpServers"

// SettingsFlag is ensured to be true in the user-scoped settings document.
const SettingsFlag = "enableAllProjectMcpServers"

const (
	fabricCoreRunScript = fabricCoreEntry
	powerBIStartArg     = "--start"
	stdioTransport      = "stdio"
)

// BuildServers derives one descriptor per launchable component in state.
// Components with an empty launch fact contribute nothing.
func BuildServers(state InstallState) map[string]ServerDescriptor {
	servers := make(map[string]ServerDescriptor)

	if state.FabricCoreDir != "" {
		uv := state.UVPath
		if uv == "" {
			uv = "uv"
		}
		servers[KeyFabricCore] = ServerDescriptor{
			Command: uv,
			Args:    []string{"--directory", filepath.ToSlash(state.FabricCoreDir), "run", fabricCoreRunScript},
		}
	}

	if state.PowerBIExe != "" {
		servers[KeyPowerBIModeling] = ServerDescriptor{
			Type:    stdioTransport,
			Command: filepath.FromSlash(state.PowerBIExe),
			Args:    []string{powerBIStartArg},
		}
	}

	if state.AuditPython != "" && state.AuditDir != "" {
		servers[KeyTranslationAudit] = ServerDescriptor{
			Command: state.AuditPython,
			Args:    []string{filepath.Join(state.AuditDir, auditEntry)},
		}
	}

	return servers
}

// MergeResult reports what a merge did.
type MergeResult struct {
	Path      string
	Written   []string // server keys written, sorted
	Recovered bool     // existing content was unparsable and has been replaced
}

// MergeMCPConfig writes servers into the mcpServers container of the document
// at path. Each given key is created or replaced; every other key in the
// document keeps its value. Unparsable content is treated as an empty
// document and is lost. Merging the same servers twice produces the same bytes.
func MergeMCPConfig(path string, servers map[string]ServerDescriptor) (*MergeResult, error) {
	result := &MergeResult{Path: path}

	root, recovered, err := loadObject(path)
	if err != nil {
		return nil, err
	}
	result.Recovered = recovered

	containerPtr := "/" + jsonPointerEscape(ServersKey)
	if v := root.Find(containerPtr); v == nil {
		if err := patch(&root, "add", containerPtr, "{}"); err != nil {
			return nil, fmt.Errorf("creating %q: %w", ServersKey, err)
		}
	} else if _, ok := v.Value.(*hujson.Object); !ok {
		if err := patch(&root, "replace", containerPtr, "{}"); err != nil {
			return nil, fmt.Errorf("resetting %q: %w", ServersKey, err)
		}
	}

	keys := make([]string, 0, len(servers))
	for k := range servers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// Find resolves the first of repeated names, so later copies of a managed
	// key would survive a replace and shadow it for most readers.
	owned := make(map[string]bool, len(ManagedKeys)+len(keys))
	for _, k := range ManagedKeys {
		owned[k] = true
	}
	for _, k := range keys {
		owned[k] = true
	}
	container := root.Find(containerPtr).Value.(*hujson.Object)
	dropRepeatedMembers(container, owned)

	for _, key := range keys {
		value, err := json.Marshal(servers[key])
		if err != nil {
			return nil, fmt.Errorf("encoding server %q: %w", key, err)
		}

		entryPtr := containerPtr + "/" + jsonPointerEscape(key)
		op := "add"
		if root.Find(entryPtr) != nil {
			op = "replace"
		}
		if err := patch(&root, op, entryPtr, string(value)); err != nil {
			return nil, fmt.Errorf("writing server %q: %w", key, err)
		}
	}
	result.Written = keys

	if err := writeConfigFile(path, finalizeConfig(&root)); err != nil {
		return nil, err
	}
	return result, nil
}

// EnsureSettingsFlag sets key to true in the settings document at path when it
// is not already true. Repeated copies of key are collapsed into the first.
// The file is only rewritten when it changes.
func EnsureSettingsFlag(path, key string) (bool, error) {
	root, _, err := loadObject(path)
	if err != nil {
		return false, err
	}

	dropped := dropRepeatedMembers(root.Value.(*hujson.Object), map[string]bool{key: true})

	ptr := "/" + jsonPointerEscape(key)
	op := "add"
	if v := root.Find(ptr); v != nil {
		if lit, ok := v.Value.(hujson.Literal); ok && bytes.Equal(lit, []byte("true")) && dropped == 0 {
			return false, nil
		}
		op = "replace"
	}

	if err := patch(&root, op, ptr, "true"); err != nil {
		return false, fmt.Errorf("setting %q: %w", key, err)
	}
	if err := writeConfigFile(path, finalizeConfig(&root)); err != nil {
		return false, err
	}
	return true, nil
}

// loadObject parses the JSON or JSONC object at path. A missing file yields
// an empty object; content that is not an object yields an empty object with
// recovered=true. Only read errors are returned.
func loadObject(path string) (root hujson.Value, recovered bool, err error) {
	content, err := readConfigFile(path)
	if err != nil {
		return hujson.Value{}, false, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(bytes.TrimSpace(content)) == 0 {
		return emptyObject(), false, nil
	}

	root, perr := hujson.Parse(content)
	if perr != nil {
		return emptyObject(), true, nil
	}
	if _, ok := root.Value.(*hujson.Object); !ok {
		return emptyObject(), true, nil
	}
	return root, false, nil
}

// dropRepeatedMembers keeps only the first member for each name in names and
// returns how many members were removed.
func dropRepeatedMembers(obj *hujson.Object, names map[string]bool) int {
	seen := make(map[string]bool)
	kept := obj.Members[:0]
	for _, m := range obj.Members {
		name := memberName(m)
		if names[name] {
			if seen[name] {
				continue
			}
			seen[name] = true
		}
		kept = append(kept, m)
	}
	dropped := len(obj.Members) - len(kept)
	obj.Members = kept
	return dropped
}

func memberName(m hujson.ObjectMember) string {
	lit, ok := m.Name.Value.(hujson.Literal)
	if !ok {
		return ""
	}
	return lit.String()
}

func emptyObject() hujson.Value {
	return hujson.Value{Value: &hujson.Object{}}
}

func patch(root *hujson.Value, op, ptr, valueJSON string) error {
	p := fmt.Sprintf(`[{"op":%q,"path":%q,"value":%s}]`, op, ptr, valueJSON)
	return root.Patch([]byte(p))
}

// finalizeConfig formats the AST as standard JSON with a trailing newline.
func finalizeConfig(root *hujson.Value) []byte {
	root.Format()
	removeTrailingCommas(root)
	root.Standardize()

	out := bytes.TrimRight(root.Pack(), "\n")
	return append(out, '\n')
}

// readConfigFile reads a config file. Returns nil content if not found.
func readConfigFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

// writeConfigFile writes content atomically, creating parent directories.
func writeConfigFile(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, content, 0o644); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// jsonPointerEscape escapes a string for use as a JSON Pointer token (RFC 6901).
func jsonPointerEscape(s string) string {
	result := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '~':
			result = append(result, '~', '0')
		case '/':
			result = append(result, '~', '1')
		default:
			result = append(result, s[i])
		}
	}
	return string(result)
}

// removeTrailingCommas walks the JSONC AST and removes trailing commas.
func removeTrailingCommas(v *hujson.Value) {
	switch vv := v.Value.(type) {
	case *hujson.Object:
		for i := range vv.Members {
			removeTrailingCommas(&vv.Members[i].Name)
			removeTrailingCommas(&vv.Members[i].Value)
		}
		if len(vv.Members) > 0 {
			vv.Members[len(vv.Members)-1].Value.AfterExtra = nil
		}
	case *hujson.Array:
		for i := range vv.Elements {
			removeTrailingCommas(&vv.Elements[i])
		}
		if len(vv.Elements) > 0 {
			vv.Elements[len(vv.Elements)-1].AfterExtra = nil
		}
	}
}
