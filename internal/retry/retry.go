// Package retry provides bounded retries with exponential backoff for SDC
// requests. Only errors explicitly marked with Retryable are retried.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/jpillora/backoff"
)

// Config holds retry configuration.
type Config struct {
	MaxAttempts int           // total attempts, at least 1
	InitialWait time.Duration // wait before the second attempt
	MaxWait     time.Duration // upper bound for a single wait
	Multiplier  float64       // backoff factor
}

// DefaultConfig returns the defaults used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		InitialWait: time.Second,
		MaxWait:     30 * time.Second,
		Multiplier:  2,
	}
}

// FromSettings builds a Config from the MaxRetries/InitialBackoff settings.
// maxRetries counts retries, so the total attempts is maxRetries+1.
func FromSettings(maxRetries int, initial time.Duration) Config {
	cfg := DefaultConfig()
	if maxRetries < 0 {
		maxRetries = 0
	}
	cfg.MaxAttempts = maxRetries + 1
	if initial > 0 {
		cfg.InitialWait = initial
	}
	if cfg.MaxWait < cfg.InitialWait {
		cfg.MaxWait = cfg.InitialWait
	}
	return cfg
}

func (c Config) backoff() *backoff.Backoff {
	return &backoff.Backoff{
		Min:    c.InitialWait,
		Max:    c.MaxWait,
		Factor: c.Multiplier,
		Jitter: true,
	}
}

// RetryableError wraps an error that should be retried.
type RetryableError struct {
	Err error
}

func (e RetryableError) Error() string {
	return e.Err.Error()
}

func (e RetryableError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error should be retried.
func IsRetryable(err error) bool {
	var retryable RetryableError
	return errors.As(err, &retryable)
}

// Retryable wraps an error to mark it as retryable.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return RetryableError{Err: err}
}

// Unwrap strips the retry marker so callers see the underlying error.
func Unwrap(err error) error {
	var retryable RetryableError
	if errors.As(err, &retryable) {
		return retryable.Err
	}
	return err
}

// DoWithResult executes fn until it succeeds, returns a non-retryable error,
// the attempts are exhausted or ctx is done.
func DoWithResult[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var zero T
	b := cfg.backoff()

	for attempt := 1; ; attempt++ {
		r, err := fn()
		if err == nil {
			return r, nil
		}
		if !IsRetryable(err) || attempt >= cfg.MaxAttempts {
			return zero, err
		}

		wait := time.NewTimer(b.Duration())
		select {
		case <-ctx.Done():
			wait.Stop()
			return zero, ctx.Err()
		case <-wait.C:
		}
	}
}
