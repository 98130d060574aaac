package common

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ledgertier/ledgertier/internal/service"
)

var (
	// ErrRateLimit indicates an upstream rate limit was hit.
	ErrRateLimit = errors.New("rate limit exceeded")
	// ErrMaxRetries indicates every retry attempt failed.
	ErrMaxRetries = errors.New("max retries exceeded")
)

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks an error as not worth retrying. WithRetry returns it
// immediately, unwrapped for errors.Is/As.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// WithRetry runs op until it succeeds, fails permanently, or attempts run
// out. Delay doubles per attempt up to MaxDelay; a rate-limited attempt
// waits the full cap before trying again.
func WithRetry(ctx context.Context, opts service.RetryOptions, op func(ctx context.Context) error) error {
	opts = opts.WithDefaults()

	var lastErr error
	delay := opts.InitialDelay

	for attempt := 1; ; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(lastErr, &perm) {
			return perm.err
		}
		if attempt >= opts.MaxAttempts {
			break
		}

		if errors.Is(lastErr, ErrRateLimit) {
			delay = opts.MaxDelay
		}

		slog.Warn("Retrying after failure",
			"attempt", attempt,
			"max_attempts", opts.MaxAttempts,
			"delay", delay,
			"error", lastErr)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * opts.Multiplier)
		if delay > opts.MaxDelay {
			delay = opts.MaxDelay
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrMaxRetries, opts.MaxAttempts, lastErr)
}
