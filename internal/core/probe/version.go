package probe

import (
	"fmt"
	"regexp"
	"strconv"
)

// Version is a major.minor pair parsed from tool output.
type Version struct {
	Major int
	Minor int
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// AtLeast compares (major, minor) tuples, so 4.0 satisfies a 3.12 minimum.
func (v Version) AtLeast(min Version) bool {
	if v.Major != min.Major {
		return v.Major > min.Major
	}
	return v.Minor >= min.Minor
}

var pythonVersionRegex = regexp.MustCompile(`Python (\d+)\.(\d+)`)

// ParsePythonVersion extracts the interpreter version from `python --version`.
func ParsePythonVersion(output string) (Version, bool) {
	return parseVersion(pythonVersionRegex, output)
}

// parseVersion applies a pattern whose first two groups are major and minor.
func parseVersion(re *regexp.Regexp, output string) (Version, bool) {
	m := re.FindStringSubmatch(output)
	if len(m) < 3 {
		return Version{}, false
	}
	major, err := strconv.Atoi(m[1])
	if err != nil {
		return Version{}, false
	}
	minor, err := strconv.Atoi(m[2])
	if err != nil {
		return Version{}, false
	}
	return Version{Major: major, Minor: minor}, true
}
