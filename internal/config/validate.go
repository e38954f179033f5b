package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateExtraction(); err != nil {
		return err
	}
	if err := c.validateOrganize(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	return nil
}

// RequireAPIKey reports a configuration error when no inference key is set.
// Only commands that call the service need it.
func (c *Config) RequireAPIKey() error {
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/coworker/config.toml"
		}
		return fmt.Errorf("llm.api_key is required. Set COWORKER_API_KEY env var or edit %s (create with 'coworker config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateExtraction() error {
	if c.Extraction.Concurrency < 1 || c.Extraction.Concurrency > maxConcurrency {
		return fmt.Errorf("extraction.concurrency must be between 1 and %d", maxConcurrency)
	}
	if c.Extraction.MaxAttempts < 1 {
		return errors.New("extraction.max_attempts must be positive")
	}
	if c.Extraction.ConfidenceThreshold < 0 || c.Extraction.ConfidenceThreshold > 1 {
		return errors.New("extraction.confidence_threshold must be between 0 and 1")
	}
	if len(c.Extraction.Categories) == 0 {
		return errors.New("extraction.categories must include at least one category")
	}
	return nil
}

func (c *Config) validateOrganize() error {
	switch c.Organize.Mode {
	case ModeMove, ModeCopy:
	default:
		return fmt.Errorf("organize.mode must be %q or %q, got %q", ModeMove, ModeCopy, c.Organize.Mode)
	}
	switch c.Organize.Layout {
	case LayoutFolders, LayoutSpreadsheet, LayoutBoth:
	default:
		return fmt.Errorf("organize.layout must be folders, spreadsheet or both, got %q", c.Organize.Layout)
	}
	switch c.Organize.Duplicates {
	case DuplicatesRoute, DuplicatesOrganize:
	default:
		return fmt.Errorf("organize.duplicates must be %q or %q, got %q", DuplicatesRoute, DuplicatesOrganize, c.Organize.Duplicates)
	}
	return nil
}

func (c *Config) validateLLM() error {
	if c.LLM.TimeoutSeconds <= 0 {
		return errors.New("llm.timeout_seconds must be positive")
	}
	if !strings.HasPrefix(c.LLM.BaseURL, "http://") && !strings.HasPrefix(c.LLM.BaseURL, "https://") {
		return fmt.Errorf("llm.base_url must be an http(s) URL, got %q", c.LLM.BaseURL)
	}
	return nil
}
