package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ledgertier/ledgertier/internal/service"
)

func fastRetry(attempts int) service.RetryOptions {
	return service.RetryOptions{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
	}
}

func TestWithRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), fastRetry(3), func(_ context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
}

func TestWithRetry_ExhaustsAttempts(t *testing.T) {
	boom := errors.New("still broken")
	calls := 0
	err := WithRetry(context.Background(), fastRetry(3), func(_ context.Context) error {
		calls++
		return boom
	})
	if !errors.Is(err, ErrMaxRetries) {
		t.Errorf("Expected ErrMaxRetries, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("Expected wrapped cause, got %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
}

func TestWithRetry_PermanentErrorStopsImmediately(t *testing.T) {
	boom := errors.New("bad request")
	calls := 0
	err := WithRetry(context.Background(), fastRetry(5), func(_ context.Context) error {
		calls++
		return Permanent(boom)
	})
	if !errors.Is(err, boom) {
		t.Errorf("Expected the original error, got %v", err)
	}
	if errors.Is(err, ErrMaxRetries) {
		t.Errorf("Permanent failure should not report exhausted retries: %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}

func TestWithRetry_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := WithRetry(ctx, fastRetry(5), func(_ context.Context) error {
		calls++
		cancel()
		return errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call before cancellation, got %d", calls)
	}
}
