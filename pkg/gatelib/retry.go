package gatelib

import (
	"context"
	"errors"
	"io"
	"math"
	"math/rand"
	"net"
	"strings"
	"syscall"
	"time"
)

// Default retry configuration values
const (
	DEF_MAX_RETRIES    = 3
	DEF_BASE_DELAY     = 500 * time.Millisecond
	DEF_MAX_DELAY      = 10 * time.Second
	DEF_JITTER_FACTOR  = 0.5
	DEF_BACKOFF_FACTOR = 2.0
)

// RetryConfig holds configuration for probe retry behavior.
type RetryConfig struct {
	MaxRetries    int           // Maximum number of retry attempts (0 = none)
	BaseDelay     time.Duration // Initial delay before first retry
	MaxDelay      time.Duration // Maximum delay between retries
	JitterFactor  float64       // Random jitter factor (0-1)
	BackoffFactor float64       // Exponential backoff multiplier
}

// DefaultRetryConfig returns a RetryConfig with sensible defaults.
//
// Probes back a page reveal with a running timeout ceiling, so the budget is
// tighter than a bulk transfer would use.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    DEF_MAX_RETRIES,
		BaseDelay:     DEF_BASE_DELAY,
		MaxDelay:      DEF_MAX_DELAY,
		JitterFactor:  DEF_JITTER_FACTOR,
		BackoffFactor: DEF_BACKOFF_FACTOR,
	}
}

// ErrorCategory classifies errors for retry decisions
type ErrorCategory int

const (
	ErrCategoryFatal     ErrorCategory = iota // Non-retryable errors (404, canceled)
	ErrCategoryRetryable                      // Transient errors (EOF, timeout, reset)
	ErrCategoryThrottled                      // Rate limiting errors (429, 503)
)

// ClassifyError determines how an error should be handled for retry purposes.
// A *ProbeError carries its own verdict; anything else is matched against
// the usual network failure shapes.
func ClassifyError(err error) ErrorCategory {
	if err == nil {
		return ErrCategoryFatal
	}

	// Context cancellation means the run stopped wanting the answer.
	if errors.Is(err, context.Canceled) {
		return ErrCategoryFatal
	}

	var pErr *ProbeError
	if errors.As(err, &pErr) {
		if pErr.IsTransient() {
			return ErrCategoryRetryable
		}
		return ErrCategoryFatal
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrCategoryRetryable
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrCategoryRetryable
		}
	}

	var sysErr syscall.Errno
	if errors.As(err, &sysErr) {
		if isRetryableErrno(sysErr) {
			return ErrCategoryRetryable
		}
	}

	// String-based pattern matching for wrapped errors
	errStr := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"connection reset",
		"connection refused",
		"broken pipe",
		"timeout",
		"eof",
		"temporary failure",
		"no such host",
		"network is unreachable",
	}
	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return ErrCategoryRetryable
		}
	}

	throttlePatterns := []string{
		"429",
		"503",
		"too many requests",
		"service unavailable",
		"rate limit",
		"throttl",
	}
	for _, pattern := range throttlePatterns {
		if strings.Contains(errStr, pattern) {
			return ErrCategoryThrottled
		}
	}

	// Unknown errors are treated as fatal to avoid eating the ceiling.
	return ErrCategoryFatal
}

// CalculateBackoff computes the delay before the next retry attempt
func (c *RetryConfig) CalculateBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	// Exponential backoff: baseDelay * (backoffFactor ^ (attempt-1))
	delay := float64(c.BaseDelay) * math.Pow(c.BackoffFactor, float64(attempt-1))

	// Apply jitter: delay * (1 + jitterFactor * random(-1, 1))
	if c.JitterFactor > 0 {
		jitter := c.JitterFactor * (2*rand.Float64() - 1)
		delay *= (1 + jitter)
	}

	if delay > float64(c.MaxDelay) {
		delay = float64(c.MaxDelay)
	}
	if delay < 0 {
		delay = float64(c.BaseDelay)
	}

	return time.Duration(delay)
}

// withRetries runs fn until it succeeds, fails fatally or the retry budget
// is spent. Throttled attempts wait twice the computed backoff.
func withRetries(ctx context.Context, c RetryConfig, fn func() error) error {
	var attempts int
	for {
		err := fn()
		if err == nil {
			return nil
		}
		category := ClassifyError(err)
		if category == ErrCategoryFatal {
			return err
		}
		attempts++
		if c.MaxRetries > 0 && attempts > c.MaxRetries {
			return err
		}
		delay := c.CalculateBackoff(attempts)
		if category == ErrCategoryThrottled {
			delay *= 2
			if delay > c.MaxDelay {
				delay = c.MaxDelay
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}
