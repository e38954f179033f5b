// Package llm provides the OpenRouter-compatible chat client that carries
// documents to the extraction model.
//
// # Entry Points
//
// NewClient: construct client from Config plus options.
// Client.ExtractDocument: send a prompt and one image or PDF, receive the JSON reply.
// Client.CompleteJSON: send system/user prompts, receive a JSON reply.
// Client.HealthCheck: verify API key and model availability.
//
// # Retry Behaviour
//
// HTTP 408/429/5xx, empty completions and network timeouts are transient.
// The wait before retry n is base*2^(n-1) plus uniform jitter in [0, base),
// raised to the server's Retry-After when that is longer and capped at the
// configured maximum. Other 4xx responses fail immediately. Final errors are
// tagged with the services markers: ErrTransient or ErrTimeout after the
// attempt budget is spent, ErrExternalTool for rejected requests. Context
// cancellation aborts retries immediately.
//
// Requests can be paced with WithRateLimit, and every request carries an
// X-Request-ID taken from the context correlation id.
package llm
