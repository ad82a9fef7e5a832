package retry

import (
	"context"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/diffanchor/diffanchor/internal/logging"
)

// Config controls bounded exponential backoff. Jitter is off by default so
// the delay sequence is deterministic (1s, 2s, 4s with the defaults).
type Config struct {
	MaxRetries int           // retry attempts after the first try (default: 3)
	BaseDelay  time.Duration // delay before the first retry (default: 1s)
	MaxDelay   time.Duration // delay ceiling (default: 30s)
	Multiplier float64       // backoff multiplier (default: 2.0)
}

// DefaultConfig returns the submission retry policy.
func DefaultConfig() Config {
	return Config{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
		Multiplier: 2.0,
	}
}

// Result describes how the retried operation concluded.
type Result struct {
	Attempts      int
	TotalDuration time.Duration
	LastError     error
	Success       bool
}

type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks an error as non-retryable; Do stops immediately when the
// operation returns one. Client-side (4xx) failures are permanent: retrying
// cannot fix a payload or auth problem.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// RetryableStatus classifies an HTTP status code: server errors and
// rate-limit responses are worth retrying, everything else is not.
func RetryableStatus(status int) bool {
	return status >= 500 || status == http.StatusTooManyRequests
}

// Do executes op with bounded exponential backoff. The loop is explicit: an
// attempt counter, a classification check, and a deterministic sleep — never
// retry-forever.
func Do(ctx context.Context, cfg Config, op func() error, logger *logging.RunLogger) Result {
	start := time.Now()
	result := Result{}

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		result.Attempts = attempt + 1

		err := op()
		if err == nil {
			result.Success = true
			result.TotalDuration = time.Since(start)
			if attempt > 0 {
				logger.Log("operation succeeded after %d retries", attempt)
			}
			return result
		}

		result.LastError = err

		var perm *permanentError
		if errors.As(err, &perm) {
			result.LastError = perm.err
			result.TotalDuration = time.Since(start)
			return result
		}

		if attempt >= cfg.MaxRetries {
			result.TotalDuration = time.Since(start)
			logger.Warnf("operation failed after %d attempts: %v", result.Attempts, err)
			return result
		}

		delay := backoffDelay(cfg, attempt)
		logger.Warnf("operation failed (attempt %d/%d): %v; retrying in %v",
			attempt+1, cfg.MaxRetries+1, err, delay)

		select {
		case <-ctx.Done():
			result.LastError = ctx.Err()
			result.TotalDuration = time.Since(start)
			return result
		case <-time.After(delay):
		}
	}

	result.TotalDuration = time.Since(start)
	return result
}

func backoffDelay(cfg Config, attempt int) time.Duration {
	delay := float64(cfg.BaseDelay) * math.Pow(cfg.Multiplier, float64(attempt))
	if max := float64(cfg.MaxDelay); delay > max {
		delay = max
	}
	return time.Duration(delay)
}
