package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLLM()
	c.normalizeExtraction()
	c.normalizeBreaker()
	c.normalizeOrganize()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	c.Paths.Workspace = strings.TrimSpace(c.Paths.Workspace)
	if c.Paths.Workspace, err = expandPath(c.Paths.Workspace); err != nil {
		return fmt.Errorf("paths.workspace: %w", err)
	}
	c.Paths.LogDir = strings.TrimSpace(c.Paths.LogDir)
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("COWORKER_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	if value, ok := os.LookupEnv("COWORKER_MODEL"); ok && strings.TrimSpace(value) != "" {
		c.LLM.Model = strings.TrimSpace(value)
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	if c.LLM.Referer == "" {
		c.LLM.Referer = defaultLLMReferer
	}
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
	if c.LLM.Title == "" {
		c.LLM.Title = defaultLLMTitle
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	if c.LLM.RequestsPerMinute < 0 {
		c.LLM.RequestsPerMinute = 0
	}
}

func (c *Config) normalizeExtraction() {
	if value, ok := os.LookupEnv("COWORKER_CONCURRENCY"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && n > 0 {
			c.Extraction.Concurrency = n
		}
	}
	if c.Extraction.Concurrency <= 0 {
		c.Extraction.Concurrency = defaultConcurrency
	}
	if c.Extraction.MaxAttempts <= 0 {
		c.Extraction.MaxAttempts = defaultMaxAttempts
	}
	if c.Extraction.RetryBaseMillis <= 0 {
		c.Extraction.RetryBaseMillis = defaultRetryBaseMillis
	}
	if c.Extraction.RetryMaxMillis <= 0 {
		c.Extraction.RetryMaxMillis = defaultRetryMaxMillis
	}
	if c.Extraction.RetryMaxMillis < c.Extraction.RetryBaseMillis {
		c.Extraction.RetryMaxMillis = c.Extraction.RetryBaseMillis
	}
	c.Extraction.Categories = normalizeCategories(c.Extraction.Categories)
}

func (c *Config) normalizeBreaker() {
	if c.Breaker.ConsecutiveFailures == 0 {
		c.Breaker.ConsecutiveFailures = defaultBreakerFailures
	}
	if c.Breaker.OpenTimeoutSeconds <= 0 {
		c.Breaker.OpenTimeoutSeconds = defaultBreakerOpenSeconds
	}
}

func (c *Config) normalizeOrganize() {
	c.Organize.Mode = strings.ToLower(strings.TrimSpace(c.Organize.Mode))
	if c.Organize.Mode == "" {
		c.Organize.Mode = ModeMove
	}
	c.Organize.Layout = strings.ToLower(strings.TrimSpace(c.Organize.Layout))
	if c.Organize.Layout == "" {
		c.Organize.Layout = LayoutBoth
	}
	c.Organize.Duplicates = strings.ToLower(strings.TrimSpace(c.Organize.Duplicates))
	if c.Organize.Duplicates == "" {
		c.Organize.Duplicates = DuplicatesRoute
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json", "auto":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

// normalizeCategories trims and dedupes the category list and guarantees the
// catch-all "Other" is present.
func normalizeCategories(values []string) []string {
	out := make([]string, 0, len(values)+1)
	seen := make(map[string]struct{}, len(values)+1)
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, trimmed)
	}
	if len(out) == 0 {
		return append([]string(nil), DefaultCategories...)
	}
	if _, ok := seen["other"]; !ok {
		out = append(out, "Other")
	}
	return out
}
