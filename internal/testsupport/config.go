package testsupport

import (
	"path/filepath"
	"testing"

	"coworker/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config rooted in a unique temp workspace per test.
// It sets a dummy API key so commands that require one can run against fakes.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.LLM.APIKey = "test"
	cfgVal.Paths.Workspace = filepath.Join(base, "workspace")
	cfgVal.Extraction.RetryBaseMillis = 1
	cfgVal.Extraction.RetryMaxMillis = 5

	for _, opt := range opts {
		opt(&cfgVal)
	}
	if err := cfgVal.Validate(); err != nil {
		t.Fatalf("invalid test config: %v", err)
	}
	return &cfgVal
}

// WithMode sets the organize file mode (move or copy).
func WithMode(mode string) ConfigOption {
	return func(c *config.Config) {
		c.Organize.Mode = mode
	}
}

// WithLayout sets the output layout (folders, spreadsheet or both).
func WithLayout(layout string) ConfigOption {
	return func(c *config.Config) {
		c.Organize.Layout = layout
	}
}

// WithDuplicates sets the duplicate policy.
func WithDuplicates(policy string) ConfigOption {
	return func(c *config.Config) {
		c.Organize.Duplicates = policy
	}
}

// WithConcurrency sets the extraction permit count.
func WithConcurrency(n int) ConfigOption {
	return func(c *config.Config) {
		c.Extraction.Concurrency = n
	}
}
