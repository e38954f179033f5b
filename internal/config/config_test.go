package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"coworker/internal/config"
)

func TestLoadDefaultConfigUsesEnvKeyAndDefaults(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(tempHome)
	t.Setenv("COWORKER_API_KEY", "test-key")
	t.Setenv("COWORKER_MODEL", "")
	t.Setenv("COWORKER_CONCURRENCY", "")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if cfg.LLM.APIKey != "test-key" {
		t.Fatalf("expected api key from env, got %q", cfg.LLM.APIKey)
	}
	if cfg.Extraction.Concurrency != 5 {
		t.Fatalf("expected default concurrency 5, got %d", cfg.Extraction.Concurrency)
	}
	if cfg.Extraction.MaxAttempts != 3 {
		t.Fatalf("expected default attempts 3, got %d", cfg.Extraction.MaxAttempts)
	}
	if cfg.Extraction.ConfidenceThreshold != 0.7 {
		t.Fatalf("expected threshold 0.7, got %v", cfg.Extraction.ConfidenceThreshold)
	}
	if cfg.Organize.Mode != config.ModeMove || cfg.Organize.Layout != config.LayoutBoth {
		t.Fatalf("unexpected organize defaults: %+v", cfg.Organize)
	}
	if !cfg.Organize.AutoInit {
		t.Fatal("expected auto init enabled by default")
	}
	if len(cfg.Extraction.Categories) != len(config.DefaultCategories) {
		t.Fatalf("unexpected categories: %v", cfg.Extraction.Categories)
	}
}

func TestLoadCustomPathExpandsWorkspace(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configPath := filepath.Join(tempHome, "config.toml")
	cfg := config.Default()
	cfg.Paths.Workspace = "~/docs"
	cfg.Extraction.Concurrency = 3
	cfg.Organize.Mode = "COPY"
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	loaded, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected config at %s, got %s (exists=%v)", configPath, resolved, exists)
	}
	if loaded.Paths.Workspace != filepath.Join(tempHome, "docs") {
		t.Fatalf("unexpected workspace: %q", loaded.Paths.Workspace)
	}
	if loaded.Extraction.Concurrency != 3 {
		t.Fatalf("expected concurrency 3, got %d", loaded.Extraction.Concurrency)
	}
	if loaded.Organize.Mode != config.ModeCopy {
		t.Fatalf("expected mode normalized to copy, got %q", loaded.Organize.Mode)
	}
	root, err := loaded.WorkspaceRoot("")
	if err != nil {
		t.Fatalf("WorkspaceRoot: %v", err)
	}
	if root != loaded.Paths.Workspace {
		t.Fatalf("expected configured workspace, got %q", root)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("COWORKER_CONCURRENCY", "")

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "concurrency", body: "[extraction]\nconcurrency = 64\n", wantErr: "extraction.concurrency"},
		{name: "threshold", body: "[extraction]\nconfidence_threshold = 1.5\n", wantErr: "confidence_threshold"},
		{name: "mode", body: "[organize]\nmode = \"link\"\n", wantErr: "organize.mode"},
		{name: "layout", body: "[organize]\nlayout = \"pdf\"\n", wantErr: "organize.layout"},
		{name: "base url", body: "[llm]\nbase_url = \"ftp://example\"\n", wantErr: "llm.base_url"},
		{name: "unknown key", body: "[llm]\napi_ky = \"secret\"\n", wantErr: "unknown keys"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tt.body), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			_, _, _, err := config.Load(path)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected %q in error, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestEnvConcurrencyOverride(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(tempHome)
	t.Setenv("COWORKER_CONCURRENCY", "2")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Extraction.Concurrency != 2 {
		t.Fatalf("expected env concurrency 2, got %d", cfg.Extraction.Concurrency)
	}
}

func TestRequireAPIKey(t *testing.T) {
	cfg := config.Default()
	if err := cfg.RequireAPIKey(); err == nil {
		t.Fatal("expected missing api key error")
	}
	cfg.LLM.APIKey = "k"
	if err := cfg.RequireAPIKey(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	path := filepath.Join(tempHome, "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	if _, _, exists, err := config.Load(path); err != nil || !exists {
		t.Fatalf("expected sample to load, exists=%v err=%v", exists, err)
	}
}

func TestWorkspaceSettingsOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	body := "concurrency: 2\nmodel: custom/model\nconfidence_threshold: 0.8\ncategories: [Receipt, Tax Form]\norganization_mode: folders\nfile_mode: copy\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}

	settings, exists, err := config.LoadWorkspaceSettings(path)
	if err != nil || !exists {
		t.Fatalf("LoadWorkspaceSettings exists=%v err=%v", exists, err)
	}
	base := config.Default()
	cfg, err := base.WithWorkspace(settings)
	if err != nil {
		t.Fatalf("WithWorkspace: %v", err)
	}
	if cfg.Extraction.Concurrency != 2 || cfg.LLM.Model != "custom/model" {
		t.Fatalf("overrides not applied: %+v %+v", cfg.Extraction, cfg.LLM)
	}
	if cfg.Extraction.ConfidenceThreshold != 0.8 {
		t.Fatalf("expected threshold 0.8, got %v", cfg.Extraction.ConfidenceThreshold)
	}
	want := []string{"Receipt", "Tax Form", "Other"}
	if strings.Join(cfg.Extraction.Categories, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected categories: %v", cfg.Extraction.Categories)
	}
	if cfg.UsesSpreadsheet() || !cfg.UsesFolders() {
		t.Fatalf("expected folders-only layout, got %q", cfg.Organize.Layout)
	}
	if cfg.Organize.Mode != config.ModeCopy {
		t.Fatalf("expected copy mode, got %q", cfg.Organize.Mode)
	}
	if base.Extraction.Concurrency != 5 {
		t.Fatal("base config must not be mutated")
	}
}

func TestWorkspaceSettingsMissingFile(t *testing.T) {
	settings, exists, err := config.LoadWorkspaceSettings(filepath.Join(t.TempDir(), "missing.yml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false")
	}
	if settings.Concurrency != nil || settings.Model != "" {
		t.Fatalf("expected empty settings, got %+v", settings)
	}
}

func TestWorkspaceSettingsInvalidOverride(t *testing.T) {
	bad := 0
	base := config.Default()
	if _, err := base.WithWorkspace(config.WorkspaceSettings{Concurrency: &bad}); err == nil {
		t.Fatal("expected validation error for zero concurrency")
	}
}
