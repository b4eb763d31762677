package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DefaultVersion is the pipeline version recorded in the version gate.
const DefaultVersion = "1.6.1"

const (
	installDirName   = ".fabric-mcp"
	configFileName   = "config.toml"
	stateFileName    = "state.toml"
	mcpConfigName    = ".mcp.json"
	envPrefix        = "FABKIT"
	bundleDirName    = "bundled"
	settingsRelPath  = ".claude/settings.json"
	extensionRelPath = ".vscode/extensions"
)

// Config is the resolved runtime configuration. Every component receives the
// paths it needs from here; nothing reads the home directory on its own.
type Config struct {
	InstallRoot      string `mapstructure:"install-root"`
	BundleDir        string `mapstructure:"bundle-dir"`
	ExtensionsDir    string `mapstructure:"extensions-dir"`
	SettingsPath     string `mapstructure:"settings-path"`
	UVPath           string `mapstructure:"uv-path"`
	LogLevel         string `mapstructure:"log-level"`
	ProbeConcurrency int64  `mapstructure:"probe-concurrency"`
	Version          string `mapstructure:"version"`
}

// LoadOptions defines explicit configuration loading inputs.
type LoadOptions struct {
	// ConfigFile forces loading from a specific file when set.
	ConfigFile string
	// Flags, when set, override every other source for flags the user changed.
	Flags *pflag.FlagSet
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig(home, exeDir string) Config {
	return Config{
		InstallRoot:      filepath.Join(home, installDirName),
		BundleDir:        filepath.Join(exeDir, bundleDirName),
		ExtensionsDir:    filepath.Join(home, filepath.FromSlash(extensionRelPath)),
		SettingsPath:     filepath.Join(home, filepath.FromSlash(settingsRelPath)),
		LogLevel:         "info",
		ProbeConcurrency: 4,
		Version:          DefaultVersion,
	}
}

// LoadConfig layers defaults, an optional TOML file, FABKIT_* environment
// variables and command-line flags, in that order of precedence.
func LoadConfig(opts LoadOptions) (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting home directory: %w", err)
	}
	exeDir := "."
	if exe, err := os.Executable(); err == nil {
		exeDir = filepath.Dir(exe)
	}

	v := viper.New()
	defaults := DefaultConfig(home, exeDir)
	v.SetDefault("install-root", defaults.InstallRoot)
	v.SetDefault("bundle-dir", defaults.BundleDir)
	v.SetDefault("extensions-dir", defaults.ExtensionsDir)
	v.SetDefault("settings-path", defaults.SettingsPath)
	v.SetDefault("uv-path", defaults.UVPath)
	v.SetDefault("log-level", defaults.LogLevel)
	v.SetDefault("probe-concurrency", defaults.ProbeConcurrency)
	v.SetDefault("version", defaults.Version)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if opts.Flags != nil {
		if err := v.BindPFlags(opts.Flags); err != nil {
			return nil, fmt.Errorf("binding flags: %w", err)
		}
	}

	configFile := opts.ConfigFile
	if configFile == "" {
		candidate := filepath.Join(expandPath(v.GetString("install-root")), configFileName)
		if fileExists(candidate) {
			configFile = candidate
		}
	}
	if configFile != "" {
		v.SetConfigFile(expandPath(configFile))
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.InstallRoot = expandPath(cfg.InstallRoot)
	cfg.BundleDir = expandPath(cfg.BundleDir)
	cfg.ExtensionsDir = expandPath(cfg.ExtensionsDir)
	cfg.SettingsPath = expandPath(cfg.SettingsPath)
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}
	return &cfg, nil
}

// ComponentDir returns the global destination for a component directory name.
func (c *Config) ComponentDir(dir string) string {
	return filepath.Join(c.InstallRoot, dir)
}

// StatePath returns the path of the persisted version-gate store.
func (c *Config) StatePath() string {
	return filepath.Join(c.InstallRoot, stateFileName)
}

// MCPConfigPath returns the workspace-scoped server configuration path.
func MCPConfigPath(workspaceDir string) string {
	return filepath.Join(workspaceDir, mcpConfigName)
}
