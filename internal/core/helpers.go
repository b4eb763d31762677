package core

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DefaultExclusions are entry names never copied out of the bundle: caches and
// nested isolated environments.
var DefaultExclusions = []string{"__pycache__", ".venv", "node_modules"}

// CopyTree copies src into dest depth-first, creating directories as needed.
// Entries whose name is in exclusions are skipped together with their
// subtrees. Every other file is overwritten unconditionally, so re-running
// after a partial copy converges on the same end state.
func CopyTree(src, dest string, exclusions []string) error {
	excluded := make(map[string]bool, len(exclusions))
	for _, name := range exclusions {
		excluded[name] = true
	}

	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}

		if rel != "." && excluded[d.Name()] {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		dstPath := filepath.Join(dest, rel)

		if d.IsDir() {
			return os.MkdirAll(dstPath, 0o755)
		}

		return copyFile(path, dstPath)
	})
}

// CopyFileIfNewer copies src to dest when force is set, when dest is missing,
// or when src was modified strictly after dest. It reports whether a copy
// happened. Without force, user edits to a previously copied file survive.
func CopyFileIfNewer(src, dest string, force bool) (bool, error) {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return false, err
	}

	if !force {
		destInfo, err := os.Stat(dest)
		if err == nil && !srcInfo.ModTime().After(destInfo.ModTime()) {
			return false, nil
		}
		if err != nil && !os.IsNotExist(err) {
			return false, err
		}
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return false, fmt.Errorf("creating directory for %s: %w", dest, err)
	}
	if err := copyFile(src, dest); err != nil {
		return false, err
	}
	return true, nil
}

// copyFile copies a single file from src to dst.
func copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = srcFile.Close() }()

	info, err := srcFile.Stat()
	if err != nil {
		return err
	}

	dstFile, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		_ = dstFile.Close()
		return err
	}
	return dstFile.Close()
}

// fileExists returns true if path exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// dirExists returns true if the path exists and is a directory.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// expandPath expands a leading ~ to the home directory and $VAR references.
func expandPath(p string) string {
	if p == "" {
		return p
	}
	if strings.Contains(p, "$") {
		p = os.ExpandEnv(p)
	}

	if strings.HasPrefix(p, "~/") || strings.HasPrefix(p, `~\`) {
		home, _ := os.UserHomeDir()
		p = filepath.Join(home, p[2:])
	} else if p == "~" {
		home, _ := os.UserHomeDir()
		p = home
	}

	return p
}
