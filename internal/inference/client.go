package inference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/semaphore"

	"coworker/internal/config"
	"coworker/internal/document"
	"coworker/internal/extractcache"
	"coworker/internal/logging"
	"coworker/internal/review"
	"coworker/internal/services"
	"coworker/internal/services/llm"
)

const (
	stageName          = "extract"
	defaultConcurrency = 5
)

// Backend performs one document extraction call against the service.
type Backend interface {
	ExtractDocument(ctx context.Context, prompt string, doc llm.Document) (llm.Completion, error)
	Model() string
}

// Options configures a Client.
type Options struct {
	Concurrency int
	Threshold   float64
	Categories  []string
	Breaker     config.Breaker
	Logger      *slog.Logger
	// Now overrides the clock used for extracted_at.
	Now func() time.Time
}

// Outcome reports how a file's result was obtained.
type Outcome struct {
	Result   document.Result
	Cached   bool
	Attempts int
}

// Client extracts structured results with bounded concurrency.
type Client struct {
	backend    Backend
	cache      *extractcache.Cache
	permits    *semaphore.Weighted
	breaker    *gobreaker.CircuitBreaker[llm.Completion]
	schema     *jsonschema.Schema
	prompt     string
	threshold  float64
	categories []string
	logger     *slog.Logger
	now        func() time.Time
}

// New constructs a Client around backend, storing results in cache.
func New(backend Backend, cache *extractcache.Cache, opts Options) (*Client, error) {
	if backend == nil {
		return nil, errors.New("inference: backend required")
	}
	if cache == nil {
		return nil, errors.New("inference: cache required")
	}
	schema, err := compileSchema()
	if err != nil {
		return nil, err
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = review.DefaultThreshold
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := logging.NewComponentLogger(opts.Logger, "inference")
	client := &Client{
		backend:    backend,
		cache:      cache,
		permits:    semaphore.NewWeighted(int64(concurrency)),
		schema:     schema,
		prompt:     BuildPrompt(opts.Categories),
		threshold:  threshold,
		categories: append([]string(nil), opts.Categories...),
		logger:     logger,
		now:        now,
	}
	if opts.Breaker.Enabled {
		client.breaker = newBreaker(opts.Breaker, logger)
	}
	return client, nil
}

// NewFromConfig wires an LLM transport client from cfg.
func NewFromConfig(cfg *config.Config, cache *extractcache.Cache, logger *slog.Logger) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("inference: config required")
	}
	return New(NewTransport(cfg), cache, Options{
		Concurrency: cfg.Extraction.Concurrency,
		Threshold:   cfg.Extraction.ConfidenceThreshold,
		Categories:  cfg.Extraction.Categories,
		Breaker:     cfg.Breaker,
		Logger:      logger,
	})
}

// NewTransport builds the LLM client described by cfg, with its retry
// budget and request pacing.
func NewTransport(cfg *config.Config) *llm.Client {
	base, maxDelay := cfg.RetryBackoff()
	return llm.NewClient(
		llm.Config{
			APIKey:         cfg.LLM.APIKey,
			BaseURL:        cfg.LLM.BaseURL,
			Model:          cfg.LLM.Model,
			Referer:        cfg.LLM.Referer,
			Title:          cfg.LLM.Title,
			TimeoutSeconds: cfg.LLM.TimeoutSeconds,
		},
		llm.WithRetryMaxAttempts(cfg.Extraction.MaxAttempts),
		llm.WithRetryBackoff(base, maxDelay),
		llm.WithRateLimit(cfg.LLM.RequestsPerMinute),
	)
}

func newBreaker(cfg config.Breaker, logger *slog.Logger) *gobreaker.CircuitBreaker[llm.Completion] {
	threshold := cfg.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}
	timeout := time.Duration(cfg.OpenTimeoutSeconds) * time.Second
	return gobreaker.NewCircuitBreaker[llm.Completion](gobreaker.Settings{
		Name:        "inference",
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !countsAsServiceFailure(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.WarnWithContext(logger, "circuit breaker state changed", "inference_breaker_state",
				logging.String("breaker", name),
				logging.String("from", from.String()),
				logging.String("to", to.String()),
				logging.String(logging.FieldErrorHint, "check inference service availability and API quota"),
				logging.String(logging.FieldImpact, "extraction calls are rejected while the breaker is open"),
			)
		},
	})
}

// countsAsServiceFailure reports whether err reflects the service's health.
// Cancellation and local input problems do not.
func countsAsServiceFailure(err error) bool {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrConfiguration):
		return false
	}
	return true
}

// IsCircuitOpen reports whether err was caused by an open breaker.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// Model returns the backend model name.
func (c *Client) Model() string {
	return c.backend.Model()
}

// Threshold returns the review confidence threshold in use.
func (c *Client) Threshold() float64 {
	return c.threshold
}

// Extract sends data to the service and returns the reviewed result. The
// result is cached under hash before Extract returns. Transport failures
// return an error and cache nothing.
func (c *Client) Extract(ctx context.Context, hash string, data []byte, mime string) (document.Result, error) {
	if err := c.permits.Acquire(ctx, 1); err != nil {
		return document.Result{}, err
	}
	defer c.permits.Release(1)
	result, _, err := c.extract(ctx, hash, data, mime)
	return result, err
}

// extract runs one service call. The caller holds a permit.
func (c *Client) extract(ctx context.Context, hash string, data []byte, mime string) (document.Result, int, error) {
	logger := logging.WithContext(ctx, c.logger)
	doc := llm.Document{Name: hash, Mime: mime, Data: data}
	if name, ok := services.FileFromContext(ctx); ok {
		doc.Name = name
	}
	call := func() (llm.Completion, error) {
		return c.backend.ExtractDocument(ctx, c.prompt, doc)
	}

	var (
		completion llm.Completion
		err        error
	)
	if c.breaker != nil {
		completion, err = c.breaker.Execute(call)
		if IsCircuitOpen(err) {
			err = services.Wrap(services.ErrTransient, stageName, "inference", "circuit breaker open", err)
		}
	} else {
		completion, err = call()
	}
	if err != nil {
		return document.Result{}, 0, err
	}

	result, parseErr := parseReply(c.schema, completion.Content, c.categories)
	if parseErr != nil {
		logging.WarnWithContext(logger, "extraction reply unusable; recording parse failure", "extract_parse_failed",
			logging.String(logging.FieldHash, hash),
			logging.Error(parseErr),
			logging.String(logging.FieldErrorHint, "rerun with --force or fix the result manually"),
			logging.String(logging.FieldImpact, "document routed to review"),
		)
		result = document.ParseFailure()
	}
	result.ProcessingTime = completion.Duration.Seconds()
	result.TokenUsage = document.TokenUsage{
		PromptTokens:     completion.Usage.PromptTokens,
		CandidatesTokens: completion.Usage.CompletionTokens,
		TotalTokens:      completion.Usage.TotalTokens,
	}
	result.Model = completion.Model
	result.ExtractedAt = c.now().UTC()
	result = review.Apply(result, c.threshold)

	if err := c.cache.Put(hash, result); err != nil {
		return document.Result{}, completion.Attempts, fmt.Errorf("cache result %s: %w", hash, err)
	}
	logger.Debug("extraction complete",
		logging.String(logging.FieldHash, hash),
		logging.String("model", result.Model),
		logging.Float64("confidence", result.Confidence),
		logging.Bool("review", result.IsReviewNeeded),
		logging.Int("attempts", completion.Attempts),
		logging.Int("tokens", result.TokenUsage.TotalTokens),
	)
	return result, completion.Attempts, nil
}

// ExtractFile returns the cached result for file unless force is set, and
// otherwise reads the file and calls Extract. The file is read only once a
// permit is held, so at most Concurrency documents are in memory.
func (c *Client) ExtractFile(ctx context.Context, file document.File, force bool) (Outcome, error) {
	if !force {
		if result, ok := c.cache.Get(file.Hash); ok {
			return Outcome{Result: result, Cached: true}, nil
		}
	}
	if err := c.permits.Acquire(ctx, 1); err != nil {
		return Outcome{}, err
	}
	defer c.permits.Release(1)
	data, err := os.ReadFile(file.Path)
	if err != nil {
		return Outcome{}, fmt.Errorf("read %s: %w", file.Path, err)
	}
	ctx = services.WithFile(ctx, filepath.Base(file.Path))
	result, attempts, err := c.extract(ctx, file.Hash, data, file.Mime)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Result: result, Attempts: attempts}, nil
}
