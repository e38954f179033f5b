package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"coworker/internal/services"
)

func (c *Client) completionWithRetry(ctx context.Context, payload chatRequest, op string) (Completion, error) {
	attempts := c.retryAttempts()
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return Completion{}, err
			}
		}
		start := time.Now()
		reply, body, err := c.post(ctx, payload)
		if err == nil {
			text, finishReason, refusal := reply.content()
			if text != "" {
				out := Completion{
					Content:  text,
					Model:    reply.Model,
					Attempts: attempt,
					Duration: time.Since(start),
				}
				if out.Model == "" {
					out.Model = c.cfg.Model
				}
				if reply.Usage != nil {
					out.Usage = *reply.Usage
				}
				return out, nil
			}
			err = &emptyReplyError{Op: op, FinishReason: finishReason, Refusal: refusal, Body: string(body)}
		}
		lastErr = err

		if ctx.Err() != nil {
			return Completion{}, ctx.Err()
		}
		if !isRetryable(err) {
			return Completion{}, services.Wrap(services.ErrExternalTool, "", op, "request rejected", err)
		}
		if attempt == attempts {
			break
		}
		if err := c.sleep(ctx, c.retryDelay(err, attempt)); err != nil {
			return Completion{}, err
		}
	}

	marker := services.ErrTransient
	if isTimeout(lastErr) {
		marker = services.ErrTimeout
	}
	return Completion{}, services.Wrap(marker, "", op, fmt.Sprintf("failed after %d attempts", attempts), lastErr)
}

func (c *Client) retryAttempts() int {
	if c == nil || c.retryMaxAttempts <= 0 {
		return 1
	}
	return c.retryMaxAttempts
}

// isRetryable reports whether err belongs to the transient class: rate
// limiting, request timeout, server errors, empty completions and network
// timeouts.
func isRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var emptyErr *emptyReplyError
	if errors.As(err, &emptyErr) {
		return true
	}
	var statusErr *statusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusRequestTimeout ||
			statusErr.StatusCode == http.StatusTooManyRequests ||
			statusErr.StatusCode >= http.StatusInternalServerError
	}
	return isTimeout(err)
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr) && urlErr.Timeout()
}

// retryDelay returns the wait before the attempt following the failed
// attempt n: base*2^(n-1) plus jitter in [0, base), raised to Retry-After
// when the server asks for longer, and capped at the max delay.
func (c *Client) retryDelay(err error, attempt int) time.Duration {
	delay := c.backoffDelay(attempt)
	var statusErr *statusError
	if errors.As(err, &statusErr) && statusErr.RetryAfter > delay {
		delay = statusErr.RetryAfter
	}
	return c.capDelay(delay)
}

func (c *Client) backoffDelay(attempt int) time.Duration {
	base := c.retryBaseDelay
	if base <= 0 {
		return 0
	}
	maxDelay := c.retryMaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultRetryMaxDelay
	}
	if attempt < 1 {
		attempt = 1
	}

	// attempt 1 -> base, attempt 2 -> base*2, attempt 3 -> base*4, ...
	delay := base
	for i := 1; i < attempt; i++ {
		if delay > maxDelay/2 {
			delay = maxDelay
			break
		}
		delay *= 2
	}
	if c.jitter != nil {
		if j := c.jitter(base); j > 0 && j < base {
			delay += j
		}
	}
	return c.capDelay(delay)
}

func (c *Client) capDelay(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	maxDelay := defaultRetryMaxDelay
	if c != nil && c.retryMaxDelay > 0 {
		maxDelay = c.retryMaxDelay
	}
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if delay <= 0 {
		return nil
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}

// StatusCode returns the HTTP status carried by err, if any.
func StatusCode(err error) (int, bool) {
	var statusErr *statusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode, true
	}
	return 0, false
}
