// Package config loads, validates and persists saltmigrate settings.
//
// Settings come from three layers with increasing precedence: built-in
// defaults, a .saltmigrate.yaml file in the working directory, and
// SALTMIGRATE_* environment variables. CLI flags are bound on top by the
// command layer.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"saltmigrate/internal/migrate"
	"saltmigrate/internal/pysrc"
)

const (
	// ConfigName is the config file base name, resolved as
	// ConfigName + ".yaml" in the search directory.
	ConfigName = ".saltmigrate"

	// EnvPrefix namespaces environment overrides, e.g.
	// SALTMIGRATE_LOGGING_LEVEL=debug.
	EnvPrefix = "SALTMIGRATE"

	// DefaultSaltPath is where the Salt checkout is expected relative to
	// the working directory.
	DefaultSaltPath = "salt"
)

// Config is the root configuration for a migration run.
type Config struct {
	// SaltPath is the Salt monolith checkout to migrate out of.
	SaltPath string `yaml:"saltPath" mapstructure:"saltPath"`

	// DestPath is the extension checkout to migrate into. Empty means
	// saltext-<name> next to the working directory.
	DestPath string `yaml:"destPath,omitempty" mapstructure:"destPath"`

	// AnalysisDir holds the git filter-repo analysis reports. Empty means
	// <saltPath>/.git/filter-repo/analysis.
	AnalysisDir string `yaml:"analysisDir,omitempty" mapstructure:"analysisDir"`

	Filter  FilterConfig  `yaml:"filter" mapstructure:"filter"`
	Rewrite RewriteConfig `yaml:"rewrite" mapstructure:"rewrite"`
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
}

// FilterConfig controls candidate path selection.
type FilterConfig struct {
	// Match terms are substring-matched against the analysis reports.
	// Empty means match on the extension name alone.
	Match []string `yaml:"match,omitempty" mapstructure:"match"`

	// Include globs add paths regardless of the drop pattern.
	Include []string `yaml:"include,omitempty" mapstructure:"include"`

	// Exclude globs remove paths after everything else.
	Exclude []string `yaml:"exclude,omitempty" mapstructure:"exclude"`

	// DropPattern prunes infrastructure paths from matched candidates.
	DropPattern string `yaml:"dropPattern,omitempty" mapstructure:"dropPattern"`

	// AvoidCollisions renames every test path on arrival instead of
	// waiting for a collision.
	AvoidCollisions bool `yaml:"avoidCollisions" mapstructure:"avoidCollisions"`
}

// RewriteConfig controls the dunder-call and import rewriters.
type RewriteConfig struct {
	// EnvGlobals are the loader-injected names whose presence marks a
	// utils module as loader-dependent.
	EnvGlobals []string `yaml:"envGlobals,omitempty" mapstructure:"envGlobals"`
}

// LoggingConfig controls diagnostic output.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" mapstructure:"level"`

	// File enables an additional JSON log sink when non-empty.
	File string `yaml:"file,omitempty" mapstructure:"file"`

	// MaxSizeMB and MaxBackups bound the file sink's rotation.
	MaxSizeMB  int `yaml:"maxSizeMB,omitempty" mapstructure:"maxSizeMB"`
	MaxBackups int `yaml:"maxBackups,omitempty" mapstructure:"maxBackups"`
}

// DefaultConfig returns the built-in defaults, including the full
// environment-global and drop-pattern vocabularies so a saved config is
// self-describing.
func DefaultConfig() *Config {
	return &Config{
		SaltPath: DefaultSaltPath,
		Filter: FilterConfig{
			DropPattern: migrate.DefaultDropPattern,
		},
		Rewrite: RewriteConfig{
			EnvGlobals: pysrc.DefaultEnvGlobals(),
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("saltPath", DefaultSaltPath)
	v.SetDefault("destPath", "")
	v.SetDefault("analysisDir", "")
	v.SetDefault("filter.match", []string{})
	v.SetDefault("filter.include", []string{})
	v.SetDefault("filter.exclude", []string{})
	v.SetDefault("filter.dropPattern", migrate.DefaultDropPattern)
	v.SetDefault("filter.avoidCollisions", false)
	v.SetDefault("rewrite.envGlobals", pysrc.DefaultEnvGlobals())
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.maxSizeMB", 10)
	v.SetDefault("logging.maxBackups", 3)
}

// Load reads .saltmigrate.yaml from dir. A missing file is not an error;
// defaults and environment overrides still apply.
func Load(dir string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName(ConfigName)
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// Save writes the config as YAML to dir/.saltmigrate.yaml.
func (c *Config) Save(dir string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	path := filepath.Join(dir, ConfigName+".yaml")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown logging level %q", c.Logging.Level)
	}
	if c.Logging.MaxSizeMB < 0 {
		return fmt.Errorf("logging maxSizeMB must not be negative, got %d", c.Logging.MaxSizeMB)
	}
	if c.Logging.MaxBackups < 0 {
		return fmt.Errorf("logging maxBackups must not be negative, got %d", c.Logging.MaxBackups)
	}
	if c.Filter.DropPattern != "" {
		if _, err := regexp.Compile(c.Filter.DropPattern); err != nil {
			return fmt.Errorf("compile drop pattern: %w", err)
		}
	}
	return nil
}

// DestFor returns the extension checkout for name, preferring the
// configured destPath.
func (c *Config) DestFor(name string) string {
	if c.DestPath != "" {
		return c.DestPath
	}
	return "saltext-" + name
}

// AnalysisPath returns the filter-repo analysis directory, preferring the
// configured analysisDir.
func (c *Config) AnalysisPath() string {
	if c.AnalysisDir != "" {
		return c.AnalysisDir
	}
	return filepath.Join(c.SaltPath, ".git", "filter-repo", "analysis")
}
