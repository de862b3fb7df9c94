// Package config resolves runhistory settings from defaults, an optional
// .runhistory.yaml file in the scripts directory and environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	FileName = ".runhistory.yaml"

	DefaultTimeout      = 30 * time.Second
	DefaultVersionsDir  = "versions"
	DefaultGit          = "git"
	DefaultConsulPrefix = "runhistory"
)

// Config is the resolved configuration shared by runall and viewer.
type Config struct {
	ScriptsDir   string
	VersionsDir  string
	Timeout      time.Duration
	Interpreters map[string]string
	Exclude      []string
	Git          string
	Catalog      bool
	ConsulAddr   string
	ConsulPrefix string
}

type fileConfig struct {
	Timeout      time.Duration     `yaml:"timeout"`
	VersionsDir  string            `yaml:"versions_dir"`
	Interpreters map[string]string `yaml:"interpreters"`
	Exclude      []string          `yaml:"exclude"`
	Git          string            `yaml:"git"`
	Catalog      *bool             `yaml:"catalog"`
	ConsulAddr   string            `yaml:"consul_addr"`
	ConsulPrefix string            `yaml:"consul_prefix"`
}

func Default(scriptsDir string) *Config {
	return &Config{
		ScriptsDir:  scriptsDir,
		VersionsDir: DefaultVersionsDir,
		Timeout:     DefaultTimeout,
		Interpreters: map[string]string{
			".py": "python3",
			".sh": "/bin/bash",
		},
		Exclude:      []string{"run_all.py", "view_versions.py", "runall", "viewer"},
		Git:          DefaultGit,
		Catalog:      true,
		ConsulPrefix: DefaultConsulPrefix,
	}
}

// Load builds the configuration for scriptsDir. A missing config file is not
// an error; a malformed one is.
func Load(scriptsDir string) (*Config, error) {
	abs, err := filepath.Abs(scriptsDir)
	if err != nil {
		return nil, fmt.Errorf("resolve scripts dir: %w", err)
	}

	cfg := Default(abs)

	path := filepath.Join(abs, FileName)
	if FileExists(path) {
		var fc fileConfig
		if err := LoadYAML(path, &fc); err != nil {
			return nil, err
		}
		cfg.merge(&fc)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("invalid timeout %s", cfg.Timeout)
	}

	return cfg, nil
}

func (c *Config) merge(fc *fileConfig) {
	if fc.Timeout != 0 {
		c.Timeout = fc.Timeout
	}
	if fc.VersionsDir != "" {
		c.VersionsDir = fc.VersionsDir
	}
	for ext, interp := range fc.Interpreters {
		c.Interpreters[normalizeExt(ext)] = interp
	}
	c.Exclude = append(c.Exclude, fc.Exclude...)
	if fc.Git != "" {
		c.Git = fc.Git
	}
	if fc.Catalog != nil {
		c.Catalog = *fc.Catalog
	}
	if fc.ConsulAddr != "" {
		c.ConsulAddr = fc.ConsulAddr
	}
	if fc.ConsulPrefix != "" {
		c.ConsulPrefix = fc.ConsulPrefix
	}
}

func (c *Config) applyEnv() error {
	if python := os.Getenv("RUNHISTORY_PYTHON"); python != "" {
		c.Interpreters[".py"] = python
	}
	if timeout := os.Getenv("RUNHISTORY_TIMEOUT"); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return fmt.Errorf("parse RUNHISTORY_TIMEOUT: %w", err)
		}
		c.Timeout = d
	}
	c.ConsulAddr = GetEnv("CONSUL_HTTP_ADDR", c.ConsulAddr)
	return nil
}

// VersionsPath is the absolute location of the versions store.
func (c *Config) VersionsPath() string {
	if filepath.IsAbs(c.VersionsDir) {
		return c.VersionsDir
	}
	return filepath.Join(c.ScriptsDir, c.VersionsDir)
}

// Extensions lists the recognized script extensions in sorted order.
func (c *Config) Extensions() []string {
	exts := make([]string, 0, len(c.Interpreters))
	for ext := range c.Interpreters {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

func normalizeExt(ext string) string {
	if !strings.HasPrefix(ext, ".") {
		return "." + ext
	}
	return ext
}

func GetEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
