package tier

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"time"

	"github.com/ledgertier/ledgertier/internal/common"
	"github.com/ledgertier/ledgertier/internal/inference"
	"github.com/ledgertier/ledgertier/internal/model"
	"github.com/ledgertier/ledgertier/internal/service"
)

// Normalizer routes description normalization: exact cache hit first, then
// the inference collaborator.
type Normalizer struct {
	store      service.Storage
	strategies []Strategy
}

// NewNormalizer creates a normalizer over the given store and inference client.
func NewNormalizer(store service.Storage, client inference.Client, cfg Config) *Normalizer {
	return &Normalizer{
		store: store,
		strategies: []Strategy{
			&cacheStrategy{store: store},
			&normalizeInferenceStrategy{store: store, client: client, timeout: cfg.InferenceTimeout},
		},
	}
}

// Normalize resolves raw description text to its normalized form. A Tier-1
// hit never reaches the inference collaborator.
func (n *Normalizer) Normalize(ctx context.Context, raw, userID string) (*Result, error) {
	if raw == "" {
		return nil, common.NewValidationError("raw", "must not be empty")
	}

	result, err := route(ctx, n.store, model.OperationNormalize, n.strategies, Input{
		UserID: userID,
		Raw:    raw,
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, common.ErrUpstreamUnavailable
	}

	return result, nil
}

// HashDescription computes the cache key for raw description text.
func HashDescription(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%x", sum)
}

// cacheStrategy is Tier 1 for normalization: exact hash lookup.
type cacheStrategy struct {
	store service.Storage
}

func (s *cacheStrategy) Tier() model.Tier { return model.TierCache }

func (s *cacheStrategy) Attempt(ctx context.Context, in Input) (*Result, error) {
	entry, err := s.store.GetCacheEntry(ctx, HashDescription(in.Raw))
	if err != nil {
		return nil, fmt.Errorf("cache lookup failed: %w", err)
	}
	if entry == nil {
		return nil, nil
	}

	// Hit accounting is advisory; a failed touch never costs the caller
	// the cached result.
	if err := s.store.TouchCacheEntry(ctx, entry.RawHash); err != nil {
		slog.Warn("Failed to record cache hit", "error", err)
	}

	return &Result{
		NormalizedText: entry.NormalizedText,
		Confidence:     1.0, // deterministic
		CacheHit:       true,
	}, nil
}

// normalizeInferenceStrategy is Tier 3 for normalization. The cache row is
// written only after the model call succeeds, so cancellation leaves nothing
// partial behind.
type normalizeInferenceStrategy struct {
	store   service.Storage
	client  inference.Client
	timeout time.Duration
}

func (s *normalizeInferenceStrategy) Tier() model.Tier { return model.TierInference }

func (s *normalizeInferenceStrategy) Attempt(ctx context.Context, in Input) (*Result, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	inferred, err := s.client.NormalizeDescription(ctx, in.Raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrUpstreamUnavailable, err)
	}

	entry := &model.DescriptionCacheEntry{
		RawHash:        HashDescription(in.Raw),
		RawText:        in.Raw,
		NormalizedText: inferred.NormalizedText,
	}
	if err := s.store.SaveCacheEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to save cache entry: %w", err)
	}

	return &Result{
		NormalizedText: inferred.NormalizedText,
		Confidence:     inferred.Confidence,
	}, nil
}
