package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"saltmigrate/internal/migrate"
	"saltmigrate/internal/pysrc"
)

func tempConfigDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "saltmigrate-config-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

func writeConfigFile(t *testing.T, dir, content string) {
	t.Helper()
	path := filepath.Join(dir, ConfigName+".yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.SaltPath != "salt" {
		t.Errorf("SaltPath = %q, want %q", cfg.SaltPath, "salt")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
	if cfg.Filter.DropPattern != migrate.DefaultDropPattern {
		t.Errorf("Filter.DropPattern = %q, want the built-in pattern", cfg.Filter.DropPattern)
	}
	if !reflect.DeepEqual(cfg.Rewrite.EnvGlobals, pysrc.DefaultEnvGlobals()) {
		t.Errorf("Rewrite.EnvGlobals = %v, want the built-in globals", cfg.Rewrite.EnvGlobals)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on defaults returned %v", err)
	}
}

func TestLoadNoFile(t *testing.T) {
	dir := tempConfigDir(t)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.SaltPath != "salt" {
		t.Errorf("SaltPath = %q, want %q", cfg.SaltPath, "salt")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
	if cfg.Filter.DropPattern != migrate.DefaultDropPattern {
		t.Errorf("Filter.DropPattern = %q, want the built-in pattern", cfg.Filter.DropPattern)
	}
	if !reflect.DeepEqual(cfg.Rewrite.EnvGlobals, pysrc.DefaultEnvGlobals()) {
		t.Errorf("Rewrite.EnvGlobals = %v, want the built-in globals", cfg.Rewrite.EnvGlobals)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := tempConfigDir(t)
	writeConfigFile(t, dir, `saltPath: /srv/salt
filter:
  match:
    - mysql
    - mysql_support
  avoidCollisions: true
rewrite:
  envGlobals:
    - __opts__
    - __context__
logging:
  level: debug
  file: migrate.log
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.SaltPath != "/srv/salt" {
		t.Errorf("SaltPath = %q, want %q", cfg.SaltPath, "/srv/salt")
	}
	wantMatch := []string{"mysql", "mysql_support"}
	if !reflect.DeepEqual(cfg.Filter.Match, wantMatch) {
		t.Errorf("Filter.Match = %v, want %v", cfg.Filter.Match, wantMatch)
	}
	if !cfg.Filter.AvoidCollisions {
		t.Error("Filter.AvoidCollisions = false, want true")
	}
	wantGlobals := []string{"__opts__", "__context__"}
	if !reflect.DeepEqual(cfg.Rewrite.EnvGlobals, wantGlobals) {
		t.Errorf("Rewrite.EnvGlobals = %v, want %v", cfg.Rewrite.EnvGlobals, wantGlobals)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.Logging.File != "migrate.log" {
		t.Errorf("Logging.File = %q, want %q", cfg.Logging.File, "migrate.log")
	}

	// Untouched settings keep their defaults.
	if cfg.Filter.DropPattern != migrate.DefaultDropPattern {
		t.Errorf("Filter.DropPattern = %q, want the built-in pattern", cfg.Filter.DropPattern)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	dir := tempConfigDir(t)
	t.Setenv("SALTMIGRATE_SALTPATH", "/opt/salt")
	t.Setenv("SALTMIGRATE_LOGGING_LEVEL", "warn")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.SaltPath != "/opt/salt" {
		t.Errorf("SaltPath = %q, want %q", cfg.SaltPath, "/opt/salt")
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "warn")
	}
}

func TestLoadMalformedFile(t *testing.T) {
	dir := tempConfigDir(t)
	writeConfigFile(t, dir, "saltPath: [unclosed\n")

	if _, err := Load(dir); err == nil {
		t.Fatal("Load() on malformed YAML succeeded, want error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults",
			mutate: func(c *Config) {},
		},
		{
			name:   "empty level",
			mutate: func(c *Config) { c.Logging.Level = "" },
		},
		{
			name:    "unknown level",
			mutate:  func(c *Config) { c.Logging.Level = "loud" },
			wantErr: "logging level",
		},
		{
			name:    "negative max size",
			mutate:  func(c *Config) { c.Logging.MaxSizeMB = -1 },
			wantErr: "maxSizeMB",
		},
		{
			name:    "bad drop pattern",
			mutate:  func(c *Config) { c.Filter.DropPattern = "(" },
			wantErr: "drop pattern",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() returned %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() returned nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := tempConfigDir(t)

	cfg := DefaultConfig()
	cfg.SaltPath = "/srv/salt"
	cfg.Filter.Match = []string{"vault"}
	cfg.Filter.AvoidCollisions = true

	if err := cfg.Save(dir); err != nil {
		t.Fatalf("Save() returned error: %v", err)
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() after Save() returned error: %v", err)
	}
	if loaded.SaltPath != cfg.SaltPath {
		t.Errorf("SaltPath = %q, want %q", loaded.SaltPath, cfg.SaltPath)
	}
	if !reflect.DeepEqual(loaded.Filter.Match, cfg.Filter.Match) {
		t.Errorf("Filter.Match = %v, want %v", loaded.Filter.Match, cfg.Filter.Match)
	}
	if !loaded.Filter.AvoidCollisions {
		t.Error("Filter.AvoidCollisions = false, want true")
	}
	if loaded.Filter.DropPattern != migrate.DefaultDropPattern {
		t.Errorf("Filter.DropPattern = %q, want the built-in pattern", loaded.Filter.DropPattern)
	}
}

func TestDerivedPaths(t *testing.T) {
	cfg := DefaultConfig()

	if got := cfg.DestFor("mysql"); got != "saltext-mysql" {
		t.Errorf("DestFor(mysql) = %q, want %q", got, "saltext-mysql")
	}
	if got := cfg.AnalysisPath(); got != filepath.Join("salt", ".git", "filter-repo", "analysis") {
		t.Errorf("AnalysisPath() = %q, want the default under the salt checkout", got)
	}

	cfg.DestPath = "/work/ext"
	cfg.AnalysisDir = "/work/analysis"
	if got := cfg.DestFor("mysql"); got != "/work/ext" {
		t.Errorf("DestFor(mysql) = %q, want %q", got, "/work/ext")
	}
	if got := cfg.AnalysisPath(); got != "/work/analysis" {
		t.Errorf("AnalysisPath() = %q, want %q", got, "/work/analysis")
	}
}
