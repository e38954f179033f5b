package config

const (
	defaultLLMBaseURL          = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel            = "google/gemini-2.5-flash"
	defaultLLMReferer          = "https://github.com/coworker-docs/coworker"
	defaultLLMTitle            = "Coworker"
	defaultLLMTimeoutSeconds   = 90
	defaultConcurrency         = 5
	maxConcurrency             = 32
	defaultMaxAttempts         = 3
	defaultRetryBaseMillis     = 1000
	defaultRetryMaxMillis      = 30000
	defaultConfidenceThreshold = 0.7
	defaultBreakerFailures     = 5
	defaultBreakerOpenSeconds  = 60
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// File modes.
const (
	ModeMove = "move"
	ModeCopy = "copy"
)

// Output layouts.
const (
	LayoutFolders     = "folders"
	LayoutSpreadsheet = "spreadsheet"
	LayoutBoth        = "both"
)

// Duplicate policies.
const (
	DuplicatesRoute    = "route"
	DuplicatesOrganize = "organize"
)

// DefaultCategories lists the document types the extractor may return.
var DefaultCategories = []string{"Receipt", "Invoice", "Statement", "Contract", "Other"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Extraction: Extraction{
			Concurrency:         defaultConcurrency,
			MaxAttempts:         defaultMaxAttempts,
			RetryBaseMillis:     defaultRetryBaseMillis,
			RetryMaxMillis:      defaultRetryMaxMillis,
			ConfidenceThreshold: defaultConfidenceThreshold,
			Categories:          append([]string(nil), DefaultCategories...),
		},
		Breaker: Breaker{
			Enabled:             true,
			ConsecutiveFailures: defaultBreakerFailures,
			OpenTimeoutSeconds:  defaultBreakerOpenSeconds,
		},
		Organize: Organize{
			Mode:       ModeMove,
			Layout:     LayoutBoth,
			Duplicates: DuplicatesRoute,
			AutoInit:   true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
