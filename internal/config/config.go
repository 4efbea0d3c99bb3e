package config

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/0mp/rstfmt/internal/codefmt"
	"github.com/0mp/rstfmt/internal/markup"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Upload limits
	MaxUploadBytes int64

	// Formatting
	Width markup.Width

	// Round-trip checks
	Widths        []markup.Width
	ArtifactDir   string
	KeepGoing     bool
	Jobs          int
	CodeLanguages []string

	LogLevel        slog.Level
	ShutdownTimeout time.Duration
}

var defaultWidths = []markup.Width{1, 2, 3, 5, 8, 13, 34, 55, 89, 144, 72, markup.Unbounded}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("RSTFMT_API_KEY"),

		MaxUploadBytes: envInt64("RSTFMT_MAX_UPLOAD_BYTES", 1<<20), // 1MB

		Width: markup.Width(envInt("RSTFMT_WIDTH", 72)),

		Widths:        envWidths("RSTFMT_WIDTHS", defaultWidths),
		ArtifactDir:   envOr("RSTFMT_ARTIFACT_DIR", os.TempDir()),
		KeepGoing:     envBool("RSTFMT_KEEP_GOING", false),
		Jobs:          envInt("RSTFMT_JOBS", runtime.GOMAXPROCS(0)),
		CodeLanguages: envList("RSTFMT_CODE_LANGUAGES", []string{"go", "golang"}),

		LogLevel:        envLevel("RSTFMT_LOG_LEVEL", slog.LevelInfo),
		ShutdownTimeout: envDuration("RSTFMT_SHUTDOWN_TIMEOUT", 10*time.Second),
	}

	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 1 << 20
	}
	if cfg.Jobs <= 0 {
		cfg.Jobs = runtime.GOMAXPROCS(0)
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	return cfg
}

// fileConfig is the TOML shape read by LoadFile. Widths of 0 mean unbounded.
type fileConfig struct {
	Width         int      `toml:"width"`
	Widths        []int    `toml:"widths"`
	ArtifactDir   string   `toml:"artifact_dir"`
	KeepGoing     bool     `toml:"keep_going"`
	Jobs          int      `toml:"jobs"`
	CodeLanguages []string `toml:"code_languages"`
	LogLevel      string   `toml:"log_level"`
}

// LoadFile overlays the keys present in a TOML file onto base.
func LoadFile(path string, base Config) (Config, error) {
	var fc fileConfig
	meta, err := toml.DecodeFile(path, &fc)
	if err != nil {
		return base, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return base, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}

	cfg := base
	if meta.IsDefined("width") {
		cfg.Width = markup.Width(fc.Width)
	}
	if meta.IsDefined("widths") {
		cfg.Widths = make([]markup.Width, len(fc.Widths))
		for i, w := range fc.Widths {
			cfg.Widths[i] = markup.Width(w)
		}
	}
	if meta.IsDefined("artifact_dir") {
		cfg.ArtifactDir = fc.ArtifactDir
	}
	if meta.IsDefined("keep_going") {
		cfg.KeepGoing = fc.KeepGoing
	}
	if meta.IsDefined("jobs") {
		cfg.Jobs = fc.Jobs
	}
	if meta.IsDefined("code_languages") {
		cfg.CodeLanguages = fc.CodeLanguages
	}
	if meta.IsDefined("log_level") {
		if err := cfg.LogLevel.UnmarshalText([]byte(fc.LogLevel)); err != nil {
			return base, fmt.Errorf("%s: log_level: %w", path, err)
		}
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Width < 0 {
		return fmt.Errorf("width must not be negative, got %d", c.Width)
	}
	if len(c.Widths) == 0 {
		return fmt.Errorf("at least one check width is required")
	}
	for _, w := range c.Widths {
		if w < 0 {
			return fmt.Errorf("check widths must not be negative, got %d", w)
		}
	}
	if c.Jobs < 1 {
		return fmt.Errorf("jobs must be at least 1, got %d", c.Jobs)
	}
	if c.ArtifactDir == "" {
		return fmt.Errorf("RSTFMT_ARTIFACT_DIR is required")
	}
	return nil
}

// CodeRegistry returns the code formatters enabled by CodeLanguages.
func (c Config) CodeRegistry() codefmt.Registry {
	return codefmt.Default().Only(c.CodeLanguages...)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// envWidths parses a comma-separated width list; any bad entry falls back
// to the default list.
func envWidths(key string, fallback []markup.Width) []markup.Width {
	items := envList(key, nil)
	if len(items) == 0 {
		return fallback
	}
	out := make([]markup.Width, 0, len(items))
	for _, s := range items {
		w, err := markup.ParseWidth(s)
		if err != nil {
			return fallback
		}
		out = append(out, w)
	}
	return out
}

func envLevel(key string, fallback slog.Level) slog.Level {
	if v := os.Getenv(key); v != "" {
		var l slog.Level
		if err := l.UnmarshalText([]byte(v)); err == nil {
			return l
		}
	}
	return fallback
}
