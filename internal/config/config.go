package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

// DiffMode selects the diff implementation used by refresh.
type DiffMode string

const (
	// DiffExec runs the diff binary.
	DiffExec DiffMode = "exec"
	// DiffBuiltin computes diffs in-process.
	DiffBuiltin DiffMode = "builtin"
)

// Environment variables read by LoadDefault.
const (
	EnvConfig   = "PQUILT_CONFIG"
	EnvPatches  = "QUILT_PATCHES"
	EnvPC       = "QUILT_PC"
	EnvLogLevel = "PQUILT_LOG_LEVEL"
)

// DefaultConfigFile is looked up in the home directory.
const DefaultConfigFile = ".pquiltrc.yaml"

// Config represents the user configuration.
type Config struct {
	// PatchesDir is the patches directory, relative to the project root.
	PatchesDir string `yaml:"patches_dir"`

	// PCDir is the metadata directory, relative to the project root.
	PCDir string `yaml:"pc_dir"`

	// Diff selects the diff implementation.
	Diff DiffMode `yaml:"diff"`

	// DiffCommand is the diff binary for DiffExec.
	DiffCommand string `yaml:"diff_command"`

	// PatchCommand is the patch binary.
	PatchCommand string `yaml:"patch_command"`

	// Editor is the editor command line. Empty falls back to $EDITOR.
	Editor string `yaml:"editor"`

	// LogLevel is a zerolog level name.
	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration used without a config file.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and parses the configuration file at path.
func Load(path string) (*Config, error) {
	path = os.ExpandEnv(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.expandEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, errors.Errorf("invalid configuration in %s: %w", path, err)
	}

	return &cfg, nil
}

// LoadDefault loads $PQUILT_CONFIG, or ~/.pquiltrc.yaml when it exists, and
// applies environment overrides on top.
func LoadDefault() (*Config, error) {
	path := os.Getenv(EnvConfig)
	if path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			candidate := filepath.Join(home, DefaultConfigFile)
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
			}
		}
	}
	return Resolve(path)
}

// Resolve loads the file at path, or the defaults when path is empty, and
// applies environment overrides on top.
func Resolve(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		loaded, err := Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) expandEnv() {
	c.PatchesDir = os.ExpandEnv(c.PatchesDir)
	c.PCDir = os.ExpandEnv(c.PCDir)
	c.DiffCommand = os.ExpandEnv(c.DiffCommand)
	c.PatchCommand = os.ExpandEnv(c.PatchCommand)
	c.Editor = os.ExpandEnv(c.Editor)
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvPatches); v != "" {
		c.PatchesDir = v
	}
	if v := os.Getenv(EnvPC); v != "" {
		c.PCDir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.PatchesDir == "" {
		c.PatchesDir = DefaultPatchesDir
	}
	if c.PCDir == "" {
		c.PCDir = DefaultPCDir
	}
	if c.Diff == "" {
		c.Diff = DiffExec
	}
	if c.LogLevel == "" {
		c.LogLevel = zerolog.WarnLevel.String()
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Diff {
	case DiffExec, DiffBuiltin:
	default:
		return errors.Errorf("invalid diff mode %q (must be exec or builtin)", c.Diff)
	}

	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return errors.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}

	if filepath.Clean(c.PatchesDir) == filepath.Clean(c.PCDir) {
		return errors.Errorf("patches_dir and pc_dir must differ, both are %q", c.PatchesDir)
	}

	return nil
}
