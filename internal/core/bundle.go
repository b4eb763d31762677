package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

const bundleManifestName = "bundle.yaml"

// AssetSet is a group of static files copied from the bundle into the workspace.
type AssetSet struct {
	Name   string   `yaml:"name"`
	Source string   `yaml:"source"`          // bundle-relative directory; empty means the bundle root
	Dest   string   `yaml:"dest"`            // workspace-relative directory; empty means the workspace root
	Files  []string `yaml:"files,omitempty"` // file names; empty means every regular file in Source
}

// BundleManifest is the parsed bundled/bundle.yaml.
type BundleManifest struct {
	Assets []AssetSet `yaml:"assets"`
}

// DefaultAssets returns the static asset sets used when the bundle ships no manifest.
func DefaultAssets() []AssetSet {
	return []AssetSet{
		{
			Name:  "knowledge base",
			Files: []string{"CLAUDE.md"},
		},
		{
			Name:   "fabric-toolkit skill",
			Source: "skills/fabric-toolkit",
			Dest:   ".claude/skills/fabric-toolkit",
		},
		{
			Name:   "custom agents",
			Source: "agents",
			Dest:   ".claude/agents",
		},
		{
			Name:   "translation toolkit",
			Source: "translation-toolkit",
			Files: []string{
				"TRANSLATION_PLAYBOOK.md",
				"pbip_translate_display_names.py",
				"pbip_fix_visual_titles.py",
				"translation_map_sv-SE.json",
			},
		},
	}
}

// LoadBundleManifest reads bundle.yaml from bundleDir. A missing manifest
// yields the default asset sets.
func LoadBundleManifest(bundleDir string) (*BundleManifest, error) {
	data, err := os.ReadFile(filepath.Join(bundleDir, bundleManifestName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &BundleManifest{Assets: DefaultAssets()}, nil
		}
		return nil, fmt.Errorf("reading bundle manifest: %w", err)
	}

	var m BundleManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing bundle manifest: %w", err)
	}
	for i, a := range m.Assets {
		if a.Name == "" {
			return nil, fmt.Errorf("bundle manifest: asset set %d has no name", i)
		}
	}
	return &m, nil
}

// ResolveFiles lists the files of the set that exist in the bundle.
// Missing files are not an error: a bundle may ship a subset.
func (a AssetSet) ResolveFiles(bundleDir string) []string {
	srcDir := filepath.Join(bundleDir, filepath.FromSlash(a.Source))

	if len(a.Files) > 0 {
		var files []string
		for _, name := range a.Files {
			if fileExists(filepath.Join(srcDir, name)) {
				files = append(files, name)
			}
		}
		return files
	}

	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return nil
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files
}
