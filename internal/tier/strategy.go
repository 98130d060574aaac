// Package tier implements the tiered router that sequences cache, similarity,
// and inference layers for normalization and categorization.
package tier

import (
	"context"
	"log/slog"
	"time"

	"github.com/ledgertier/ledgertier/internal/model"
	"github.com/ledgertier/ledgertier/internal/service"
)

// Input carries one routing request through the strategy chain.
type Input struct {
	UserID        string
	Raw           string // raw description or vendor text
	TransactionID string
	Category      string // optional alias category filter
}

// Result is the outcome of a routed operation.
type Result struct {
	NormalizedText string
	GLCode         string
	Department     string
	EmbeddingID    string // backing embedding row, when Tier 2/3 produced one
	Tier           model.Tier
	Confidence     float64
	CacheHit       bool
}

// Strategy is one layer of the router. Attempt returns (nil, nil) on a miss;
// a miss advances exactly one tier, never retries.
type Strategy interface {
	Tier() model.Tier
	Attempt(ctx context.Context, in Input) (*Result, error)
}

// Config holds the router's tunable parameters.
type Config struct {
	SimilarityThreshold float64
	TopK                int
	InferenceTimeout    time.Duration
}

// DefaultConfig returns the default router configuration.
func DefaultConfig() Config {
	return Config{
		SimilarityThreshold: 0.92,
		TopK:                5,
		InferenceTimeout:    15 * time.Second,
	}
}

// withTimeout bounds an inference call. A zero timeout falls back to the
// default; Tier-3 calls are never unbounded.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultConfig().InferenceTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

// route walks the ordered strategy chain, logging every attempt. The usage
// log feeds reporting and alias promotion, never the routing decision, so a
// failed log write is a warning, not an error.
func route(ctx context.Context, store service.Storage, op model.OperationType, strategies []Strategy, in Input) (*Result, error) {
	for _, strategy := range strategies {
		start := time.Now()
		result, err := strategy.Attempt(ctx, in)
		elapsedMs := time.Since(start).Milliseconds()

		if err != nil {
			logUsage(ctx, store, op, strategy.Tier(), 0, elapsedMs, false, in.Raw)
			return nil, err
		}
		if result == nil {
			// Miss: record the attempt and advance one tier.
			logUsage(ctx, store, op, strategy.Tier(), 0, elapsedMs, false, in.Raw)
			continue
		}

		result.Tier = strategy.Tier()
		logUsage(ctx, store, op, result.Tier, result.Confidence, elapsedMs, result.CacheHit, in.Raw)
		return result, nil
	}

	return nil, nil
}

func logUsage(ctx context.Context, store service.Storage, op model.OperationType, tier model.Tier, confidence float64, elapsedMs int64, cacheHit bool, vendor string) {
	entry := &model.TierUsageLog{
		OperationType:  op,
		TierUsed:       tier,
		Confidence:     confidence,
		ResponseTimeMs: elapsedMs,
		CacheHit:       cacheHit,
		InputVendor:    vendor,
	}
	if err := store.LogTierUsage(ctx, entry); err != nil {
		slog.Warn("Failed to log tier usage",
			"operation", op,
			"tier", tier,
			"error", err)
	}
}
