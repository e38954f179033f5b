package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// WorkspaceSettings holds the per-workspace overrides stored in
// .system/config.yml. Unset fields keep the global value.
type WorkspaceSettings struct {
	Concurrency         *int     `yaml:"concurrency,omitempty"`
	Model               string   `yaml:"model,omitempty"`
	ConfidenceThreshold *float64 `yaml:"confidence_threshold,omitempty"`
	Categories          []string `yaml:"categories,omitempty"`
	OrganizationMode    string   `yaml:"organization_mode,omitempty"`
	FileMode            string   `yaml:"file_mode,omitempty"`
}

const workspaceSample = `# Workspace overrides for coworker. Remove a key to use the global config.
# concurrency: 5
# model: google/gemini-2.5-flash
# confidence_threshold: 0.7
# categories: [Receipt, Invoice, Statement, Contract, Other]
# organization_mode: both   # folders | spreadsheet | both
# file_mode: move           # move | copy
`

// LoadWorkspaceSettings reads the workspace override file. A missing file
// yields empty settings and exists=false.
func LoadWorkspaceSettings(path string) (WorkspaceSettings, bool, error) {
	var settings WorkspaceSettings
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return settings, false, nil
		}
		return settings, false, fmt.Errorf("read workspace config: %w", err)
	}
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return settings, true, fmt.Errorf("parse workspace config %s: %w", path, err)
	}
	return settings, true, nil
}

// WriteWorkspaceSample writes a commented override file unless one exists.
func WriteWorkspaceSample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create workspace config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(workspaceSample), 0o644); err != nil {
		return fmt.Errorf("write workspace config: %w", err)
	}
	return nil
}

// SaveWorkspaceSettings writes settings as YAML.
func SaveWorkspaceSettings(path string, settings WorkspaceSettings) error {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode workspace config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create workspace config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write workspace config: %w", err)
	}
	return nil
}

// WithWorkspace returns a copy of the config with the overrides applied and
// re-validated.
func (c Config) WithWorkspace(settings WorkspaceSettings) (*Config, error) {
	out := c
	out.Extraction.Categories = append([]string(nil), c.Extraction.Categories...)
	if settings.Concurrency != nil {
		out.Extraction.Concurrency = *settings.Concurrency
	}
	if model := strings.TrimSpace(settings.Model); model != "" {
		out.LLM.Model = model
	}
	if settings.ConfidenceThreshold != nil {
		out.Extraction.ConfidenceThreshold = *settings.ConfidenceThreshold
	}
	if len(settings.Categories) > 0 {
		out.Extraction.Categories = normalizeCategories(settings.Categories)
	}
	if layout := strings.ToLower(strings.TrimSpace(settings.OrganizationMode)); layout != "" {
		out.Organize.Layout = layout
	}
	if mode := strings.ToLower(strings.TrimSpace(settings.FileMode)); mode != "" {
		out.Organize.Mode = mode
	}
	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("workspace config: %w", err)
	}
	return &out, nil
}
