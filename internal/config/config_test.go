package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/mrsinham/dicomfolder/internal/scan"
)

func TestLoad_ValidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test.yaml")

	content := `
scan:
  extensions: [".dcm", "ima"]
  patterns: ["IM*"]
  sniff: true
  skip_hidden: true
  strict: true
log:
  level: debug
  format: json
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if !reflect.DeepEqual(cfg.Scan.Extensions, []string{".dcm", "ima"}) {
		t.Errorf("Expected extensions [.dcm ima], got %v", cfg.Scan.Extensions)
	}
	if !reflect.DeepEqual(cfg.Scan.Patterns, []string{"IM*"}) {
		t.Errorf("Expected patterns [IM*], got %v", cfg.Scan.Patterns)
	}
	if !cfg.Scan.Sniff || !cfg.Scan.SkipHidden || !cfg.Scan.Strict {
		t.Errorf("Expected sniff, skip_hidden and strict to be true, got %+v", cfg.Scan)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Expected log level debug, got %s", cfg.Log.Level)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Expected log format json, got %s", cfg.Log.Format)
	}
}

func TestLoad_PartialConfigKeepsDefaults(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "partial.yaml")
	if err := os.WriteFile(configPath, []byte("scan:\n  sniff: true\n"), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !reflect.DeepEqual(cfg.Scan.Extensions, []string{".dcm"}) {
		t.Errorf("Expected default extensions, got %v", cfg.Scan.Extensions)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Expected default level info, got %s", cfg.Log.Level)
	}
}

func TestLoad_Errors(t *testing.T) {
	tmpDir := t.TempDir()

	if _, err := Load(filepath.Join(tmpDir, "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}

	tests := []struct {
		name    string
		content string
	}{
		{"invalid yaml", "scan: [unclosed"},
		{"bad pattern", "scan:\n  patterns: [\"[bad\"]\n"},
		{"empty extension", "scan:\n  extensions: [\"\"]\n"},
		{"path as extension", "scan:\n  extensions: [\"a/b\"]\n"},
		{"unknown level", "log:\n  level: loud\n"},
		{"unknown format", "log:\n  format: xml\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(tmpDir, tt.name+".yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("Failed to write test config: %v", err)
			}
			if _, err := Load(path); err == nil {
				t.Errorf("Expected error for %s", tt.name)
			}
		})
	}
}

func TestSaveAndLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dicomfolder.yaml")

	cfg := Default()
	cfg.Scan.Patterns = []string{"IM*"}
	cfg.Scan.Strict = true
	cfg.Log.Format = "json"

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !reflect.DeepEqual(loaded, cfg) {
		t.Errorf("Round trip mismatch:\nsaved:  %+v\nloaded: %+v", cfg, loaded)
	}
}

func TestMatcher(t *testing.T) {
	cfg := Default()
	if _, ok := cfg.Matcher().(scan.ExtensionMatcher); !ok {
		t.Errorf("Expected plain extension matcher for defaults, got %T", cfg.Matcher())
	}

	cfg.Scan.Patterns = []string{"IM*"}
	m := cfg.Matcher()
	if !m.Match("/data/IM000001") {
		t.Error("Expected IM000001 to match the pattern")
	}
	if !m.Match("/data/x.DCM") {
		t.Error("Expected x.DCM to match the extension")
	}
	if m.Match("/data/notes.txt") {
		t.Error("Expected notes.txt not to match")
	}

	cfg.Scan.Sniff = true
	if combined, ok := cfg.Matcher().(scan.AnyMatcher); !ok || len(combined) != 3 {
		t.Errorf("Expected three combined matchers, got %#v", cfg.Matcher())
	}
}
