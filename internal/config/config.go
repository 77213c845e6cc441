// Package config loads and saves the YAML settings of dicomfolder.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mrsinham/dicomfolder/internal/logger"
	"github.com/mrsinham/dicomfolder/internal/scan"
	"gopkg.in/yaml.v3"
)

// Config represents the complete configuration for YAML serialization.
type Config struct {
	Scan ScanConfig    `yaml:"scan"`
	Log  logger.Config `yaml:"log"`
}

// ScanConfig holds the settings that decide which files a scan considers.
type ScanConfig struct {
	// Extensions accepted as candidates, case-insensitive. Empty means .dcm.
	Extensions []string `yaml:"extensions"`
	// Patterns are base name globs (e.g. IM*) also accepted as candidates.
	Patterns []string `yaml:"patterns,omitempty"`
	// Sniff accepts any file carrying the DICOM preamble, whatever its name.
	Sniff bool `yaml:"sniff"`
	// SkipHidden ignores dot-files and dot-directories.
	SkipHidden bool `yaml:"skip_hidden"`
	// Strict fails a file on the first malformed element instead of keeping
	// the elements read before it.
	Strict bool `yaml:"strict"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Scan: ScanConfig{Extensions: []string{scan.DefaultExtension}},
		Log:  logger.Config{Level: "info", Format: logger.FormatConsole},
	}
}

// Load reads a YAML configuration file. Keys missing from the file keep their
// default value.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path, creating parent directories if needed.
func Save(cfg Config, path string) error {
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("marshal YAML: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks the configuration for values that would silently never match.
func (c Config) Validate() error {
	for _, e := range c.Scan.Extensions {
		if strings.TrimSpace(e) == "" {
			return fmt.Errorf("scan.extensions: empty extension")
		}
		if strings.ContainsAny(e, `/\`) {
			return fmt.Errorf("scan.extensions: %q is not an extension", e)
		}
	}
	for _, p := range c.Scan.Patterns {
		if _, err := filepath.Match(p, ""); err != nil {
			return fmt.Errorf("scan.patterns: %q: %w", p, err)
		}
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}

// Matcher builds the candidate predicate described by the scan section.
func (c Config) Matcher() scan.Matcher {
	matchers := scan.AnyMatcher{scan.NewExtensionMatcher(c.Scan.Extensions...)}
	if len(c.Scan.Patterns) > 0 {
		matchers = append(matchers, scan.GlobMatcher{Patterns: c.Scan.Patterns})
	}
	if c.Scan.Sniff {
		matchers = append(matchers, scan.PreambleMatcher{})
	}
	if len(matchers) == 1 {
		return matchers[0]
	}
	return matchers
}
