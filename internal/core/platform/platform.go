// Package platform describes the executing environment as a PlatformSignature
// and provides the per-OS dispatch tables used by probes and locators.
package platform

import (
	"path/filepath"
	"runtime"
)

// Family is the operating-system family of a Signature.
type Family string

const (
	Windows Family = "win32"
	Darwin  Family = "darwin"
	Linux   Family = "linux"
)

// Arch is the CPU architecture family of a Signature.
type Arch string

const (
	X64   Arch = "x64"
	ARM64 Arch = "arm64"
)

// Signature identifies the platform packages are built for.
// It is derived once per run and never changes afterwards.
type Signature struct {
	OS   Family
	Arch Arch
}

// Current returns the signature of the running process.
// ok is false on operating systems that have no published packages.
func Current() (Signature, bool) {
	return Detect(runtime.GOOS, runtime.GOARCH)
}

// Detect maps Go's GOOS/GOARCH pair onto a Signature.
// Every non-arm64 architecture is treated as x64.
func Detect(goos, goarch string) (Signature, bool) {
	var sig Signature
	switch goos {
	case "windows":
		sig.OS = Windows
	case "darwin":
		sig.OS = Darwin
	case "linux":
		sig.OS = Linux
	default:
		return Signature{}, false
	}

	sig.Arch = X64
	if goarch == "arm64" {
		sig.Arch = ARM64
	}
	return sig, true
}

// Suffix returns the package-name suffix, e.g. "linux-x64".
func (s Signature) Suffix() string {
	return string(s.OS) + "-" + string(s.Arch)
}

func (s Signature) String() string { return s.Suffix() }

// IsWindows reports whether the signature targets Windows.
func (s Signature) IsWindows() bool { return s.OS == Windows }

// ExeName appends the platform executable extension to base.
func (s Signature) ExeName(base string) string {
	if s.IsWindows() {
		return base + ".exe"
	}
	return base
}

// VenvPython returns the interpreter path inside a virtual environment.
func (s Signature) VenvPython(venvDir string) string {
	if s.IsWindows() {
		return filepath.Join(venvDir, "Scripts", "python.exe")
	}
	return filepath.Join(venvDir, "bin", "python")
}

// PythonCandidates lists interpreter names to try, most preferred first.
func (s Signature) PythonCandidates() []string {
	return pythonCandidates[s.OS]
}

var pythonCandidates = map[Family][]string{
	Windows: {"python.exe", "python3.exe", "py.exe"},
	Darwin:  {"python3", "python"},
	Linux:   {"python3", "python"},
}
