package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/0mp/rstfmt/internal/markup"
)

var envKeys = []string{
	"PORT", "RSTFMT_API_KEY", "RSTFMT_MAX_UPLOAD_BYTES", "RSTFMT_WIDTH", "RSTFMT_WIDTHS",
	"RSTFMT_ARTIFACT_DIR", "RSTFMT_KEEP_GOING", "RSTFMT_JOBS", "RSTFMT_CODE_LANGUAGES",
	"RSTFMT_LOG_LEVEL", "RSTFMT_SHUTDOWN_TIMEOUT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg := Load()

	if cfg.Port != "8090" {
		t.Errorf("expected port 8090, got %q", cfg.Port)
	}
	if cfg.Width != 72 {
		t.Errorf("expected width 72, got %d", cfg.Width)
	}
	if len(cfg.Widths) != 12 || cfg.Widths[11] != markup.Unbounded {
		t.Errorf("expected the default width matrix, got %v", cfg.Widths)
	}
	if cfg.MaxUploadBytes != 1<<20 {
		t.Errorf("expected 1MB upload limit, got %d", cfg.MaxUploadBytes)
	}
	if cfg.ArtifactDir != os.TempDir() {
		t.Errorf("expected temp dir, got %q", cfg.ArtifactDir)
	}
	if cfg.Jobs != runtime.GOMAXPROCS(0) {
		t.Errorf("expected GOMAXPROCS jobs, got %d", cfg.Jobs)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("expected info level, got %s", cfg.LogLevel)
	}
	if cfg.KeepGoing {
		t.Errorf("expected fail-fast by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected defaults to validate, got %v", err)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("RSTFMT_WIDTH", "100")
	t.Setenv("RSTFMT_WIDTHS", "8, none ,40")
	t.Setenv("RSTFMT_JOBS", "3")
	t.Setenv("RSTFMT_KEEP_GOING", "true")
	t.Setenv("RSTFMT_CODE_LANGUAGES", "go")
	t.Setenv("RSTFMT_LOG_LEVEL", "debug")
	t.Setenv("RSTFMT_SHUTDOWN_TIMEOUT", "2s")

	cfg := Load()
	if cfg.Port != "9000" || cfg.Width != 100 || cfg.Jobs != 3 || !cfg.KeepGoing {
		t.Errorf("unexpected config %+v", cfg)
	}
	want := []markup.Width{8, markup.Unbounded, 40}
	if len(cfg.Widths) != len(want) {
		t.Fatalf("expected %v, got %v", want, cfg.Widths)
	}
	for i := range want {
		if cfg.Widths[i] != want[i] {
			t.Errorf("widths[%d]: expected %d, got %d", i, want[i], cfg.Widths[i])
		}
	}
	if strings.Join(cfg.CodeLanguages, ",") != "go" {
		t.Errorf("expected [go], got %v", cfg.CodeLanguages)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("expected debug level, got %s", cfg.LogLevel)
	}
	if cfg.ShutdownTimeout != 2*time.Second {
		t.Errorf("expected 2s, got %s", cfg.ShutdownTimeout)
	}
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("RSTFMT_WIDTHS", "8,-1")
	t.Setenv("RSTFMT_JOBS", "-2")
	t.Setenv("RSTFMT_MAX_UPLOAD_BYTES", "lots")
	t.Setenv("RSTFMT_LOG_LEVEL", "chatty")

	cfg := Load()
	if len(cfg.Widths) != 12 {
		t.Errorf("expected default widths after a bad entry, got %v", cfg.Widths)
	}
	if cfg.Jobs != runtime.GOMAXPROCS(0) {
		t.Errorf("expected default jobs, got %d", cfg.Jobs)
	}
	if cfg.MaxUploadBytes != 1<<20 {
		t.Errorf("expected default upload limit, got %d", cfg.MaxUploadBytes)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("expected info level, got %s", cfg.LogLevel)
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rstfmt.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFile_Overlay(t *testing.T) {
	clearEnv(t)
	base := Load()
	path := writeFile(t, `
width = 80
widths = [0, 40]
keep_going = true
code_languages = []
log_level = "warn"
`)
	cfg, err := LoadFile(path, base)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Width != 80 {
		t.Errorf("expected width 80, got %d", cfg.Width)
	}
	if len(cfg.Widths) != 2 || cfg.Widths[0] != markup.Unbounded || cfg.Widths[1] != 40 {
		t.Errorf("expected [unbounded 40], got %v", cfg.Widths)
	}
	if !cfg.KeepGoing {
		t.Errorf("expected keep_going from file")
	}
	if len(cfg.CodeRegistry()) != 0 {
		t.Errorf("expected empty code registry, got %d entries", len(cfg.CodeRegistry()))
	}
	if cfg.LogLevel != slog.LevelWarn {
		t.Errorf("expected warn level, got %s", cfg.LogLevel)
	}
	// Keys missing from the file keep the base values.
	if cfg.ArtifactDir != base.ArtifactDir || cfg.Jobs != base.Jobs || cfg.Port != base.Port {
		t.Errorf("expected untouched keys to keep base values")
	}
}

func TestLoadFile_Errors(t *testing.T) {
	clearEnv(t)
	base := Load()
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown key", "colour = true\n", "unknown keys: colour"},
		{"bad syntax", "width = \n", "failed to parse TOML"},
		{"bad level", "log_level = \"loud\"\n", "log_level"},
	}
	for _, tt := range tests {
		_, err := LoadFile(writeFile(t, tt.content), base)
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Errorf("%s: expected error containing %q, got %v", tt.name, tt.want, err)
		}
	}
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.toml"), base); err == nil {
		t.Errorf("expected error for a missing file")
	}
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	good := Load()
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative width", func(c *Config) { c.Width = -1 }},
		{"no widths", func(c *Config) { c.Widths = nil }},
		{"negative check width", func(c *Config) { c.Widths = []markup.Width{3, -3} }},
		{"zero jobs", func(c *Config) { c.Jobs = 0 }},
		{"no artifact dir", func(c *Config) { c.ArtifactDir = "" }},
	}
	for _, tt := range tests {
		cfg := good
		tt.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tt.name)
		}
	}
}

func TestCodeRegistry(t *testing.T) {
	cfg := Config{CodeLanguages: []string{"go", "cobol"}}
	reg := cfg.CodeRegistry()
	if _, ok := reg["go"]; !ok {
		t.Errorf("expected go formatter")
	}
	if len(reg) != 1 {
		t.Errorf("expected unknown languages to be ignored, got %d entries", len(reg))
	}
}
