package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	// Workspace is the default workspace root used when --path is omitted.
	// Empty means the current directory.
	Workspace string `toml:"workspace"`
	// LogDir overrides the log directory. Empty logs into <workspace>/.system/logs.
	LogDir string `toml:"log_dir"`
}

// LLM contains the inference service connection settings.
type LLM struct {
	APIKey            string `toml:"api_key"`
	BaseURL           string `toml:"base_url"`
	Model             string `toml:"model"`
	Referer           string `toml:"referer"`
	Title             string `toml:"title"`
	TimeoutSeconds    int    `toml:"timeout_seconds"`
	RequestsPerMinute int    `toml:"requests_per_minute"`
}

// Extraction contains settings for the extract stage.
type Extraction struct {
	Concurrency         int      `toml:"concurrency"`
	MaxAttempts         int      `toml:"max_attempts"`
	RetryBaseMillis     int      `toml:"retry_base_ms"`
	RetryMaxMillis      int      `toml:"retry_max_ms"`
	ConfidenceThreshold float64  `toml:"confidence_threshold"`
	Categories          []string `toml:"categories"`
}

// Breaker contains circuit breaker settings for the inference service.
type Breaker struct {
	Enabled             bool   `toml:"enabled"`
	ConsecutiveFailures uint32 `toml:"consecutive_failures"`
	OpenTimeoutSeconds  int    `toml:"open_timeout_seconds"`
}

// Organize contains file placement settings.
type Organize struct {
	// Mode is "move" or "copy".
	Mode string `toml:"mode"`
	// Layout is "folders", "spreadsheet" or "both".
	Layout string `toml:"layout"`
	// Duplicates is "route" (send repeated content to Duplicates/) or "organize".
	Duplicates string `toml:"duplicates"`
	AutoInit   bool   `toml:"auto_init"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for coworker.
//
// Configuration sections by subsystem:
//   - Paths: default workspace and log directory
//   - LLM: inference service connection
//   - Extraction: concurrency, retry budget, review threshold, categories
//   - Breaker: circuit breaker around the inference service
//   - Organize: move/copy mode, output layout, duplicate policy
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	LLM        LLM        `toml:"llm"`
	Extraction Extraction `toml:"extraction"`
	Breaker    Breaker    `toml:"breaker"`
	Organize   Organize   `toml:"organize"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath is ~/.config/coworker/config.toml, made absolute.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/coworker/config.toml")
}

// Load reads the configuration at path, or discovers one when path is empty,
// and returns it normalized and validated together with the resolved path
// and whether that file existed. A missing file yields the defaults.
// Unknown keys are rejected so that typos do not silently fall back to
// defaults.
func Load(path string) (*Config, string, bool, error) {
	resolved, exists, err := locate(path)
	if err != nil {
		return nil, "", false, err
	}
	cfg := Default()
	if exists {
		if err := decodeFile(resolved, &cfg); err != nil {
			return nil, "", false, err
		}
	}
	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolved, exists, nil
}

func decodeFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	dec := toml.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("parse config %s: unknown keys:\n%s", path, strict.String())
		}
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// locate resolves an explicit path, or else looks for the per-user file and
// then ./coworker.toml. With nothing found it reports the per-user path as
// missing.
func locate(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		found, err := isFile(expanded)
		return expanded, found, err
	}
	userPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("coworker.toml")
	if err != nil {
		return "", false, err
	}
	for _, candidate := range []string{userPath, projectPath} {
		if found, _ := isFile(candidate); found {
			return candidate, true, nil
		}
	}
	return userPath, false, nil
}

func isFile(path string) (bool, error) {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("stat config: %w", err)
	}
	return !info.IsDir(), nil
}

// WorkspaceRoot resolves the workspace root, preferring an explicit override.
func (c *Config) WorkspaceRoot(override string) (string, error) {
	candidate := strings.TrimSpace(override)
	if candidate == "" {
		candidate = c.Paths.Workspace
	}
	if candidate == "" {
		candidate = "."
	}
	return expandPath(candidate)
}

// RetryBackoff returns the base and maximum retry delays.
func (c *Config) RetryBackoff() (time.Duration, time.Duration) {
	return time.Duration(c.Extraction.RetryBaseMillis) * time.Millisecond,
		time.Duration(c.Extraction.RetryMaxMillis) * time.Millisecond
}

// UsesFolders reports whether the organize stage should place files.
func (c *Config) UsesFolders() bool {
	return c.Organize.Layout == LayoutFolders || c.Organize.Layout == LayoutBoth
}

// UsesSpreadsheet reports whether the export stage should run.
func (c *Config) UsesSpreadsheet() bool {
	return c.Organize.Layout == LayoutSpreadsheet || c.Organize.Layout == LayoutBoth
}

// ExpandPath resolves a leading ~ to the home directory and makes the result
// absolute. An empty path stays empty.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		path = filepath.Join(home, path[1:])
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", path, err)
	}
	return abs, nil
}

// CreateSample writes the commented sample configuration to path, creating
// its directory.
func CreateSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
