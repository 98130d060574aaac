package tier

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgertier/ledgertier/internal/common"
	"github.com/ledgertier/ledgertier/internal/inference"
	"github.com/ledgertier/ledgertier/internal/model"
	"github.com/ledgertier/ledgertier/internal/service"
	"github.com/ledgertier/ledgertier/internal/storage"
)

// mockClient counts inference calls and returns canned results.
type mockClient struct {
	normalizeResult inference.NormalizationResult
	codingResult    inference.CodingResult
	err             error
	normalizeCalls  int
	codingCalls     int
}

func (m *mockClient) NormalizeDescription(_ context.Context, _ string) (inference.NormalizationResult, error) {
	m.normalizeCalls++
	if m.err != nil {
		return inference.NormalizationResult{}, m.err
	}
	return m.normalizeResult, nil
}

func (m *mockClient) SuggestCoding(_ context.Context, _ string) (inference.CodingResult, error) {
	m.codingCalls++
	if m.err != nil {
		return inference.CodingResult{}, m.err
	}
	return m.codingResult, nil
}

// mockEmbedder returns a fixed vector, or fails.
type mockEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.vector, nil
}

func newTierTestStorage(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestNormalizer_CacheMissThenHit(t *testing.T) {
	store := newTierTestStorage(t)
	client := &mockClient{
		normalizeResult: inference.NormalizationResult{
			NormalizedText: "Amazon Marketplace",
			Confidence:     0.97,
		},
	}
	normalizer := NewNormalizer(store, client, DefaultConfig())
	ctx := context.Background()
	raw := "AMZN MKTP US*2W4RT9013"

	// First lookup falls through to inference and seeds the cache.
	first, err := normalizer.Normalize(ctx, raw, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "Amazon Marketplace", first.NormalizedText)
	assert.Equal(t, model.TierInference, first.Tier)
	assert.False(t, first.CacheHit)
	assert.Equal(t, 1, client.normalizeCalls)

	// Second lookup is a Tier-1 hit: no inference call, hit count moves.
	second, err := normalizer.Normalize(ctx, raw, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "Amazon Marketplace", second.NormalizedText)
	assert.Equal(t, model.TierCache, second.Tier)
	assert.True(t, second.CacheHit)
	assert.Equal(t, 1.0, second.Confidence)
	assert.Equal(t, 1, client.normalizeCalls)

	entry, err := store.GetCacheEntry(ctx, HashDescription(raw))
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 1, entry.HitCount)

	// A different description is its own cache key.
	_, err = normalizer.Normalize(ctx, "STARBUCKS #554", "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, client.normalizeCalls)
}

// touchFailStore fails hit accounting while leaving lookups intact.
type touchFailStore struct {
	service.Storage
}

func (s *touchFailStore) TouchCacheEntry(context.Context, string) error {
	return errors.New("disk I/O error")
}

func TestNormalizer_CacheHitSurvivesTouchFailure(t *testing.T) {
	store := newTierTestStorage(t)
	client := &mockClient{
		normalizeResult: inference.NormalizationResult{
			NormalizedText: "Amazon Marketplace",
			Confidence:     0.97,
		},
	}
	normalizer := NewNormalizer(&touchFailStore{Storage: store}, client, DefaultConfig())
	ctx := context.Background()
	raw := "AMZN MKTP US*2W4RT9013"

	_, err := normalizer.Normalize(ctx, raw, "user-1")
	require.NoError(t, err)

	// The hit-count bump is advisory; its failure never costs the caller
	// the cached answer.
	second, err := normalizer.Normalize(ctx, raw, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "Amazon Marketplace", second.NormalizedText)
	assert.Equal(t, model.TierCache, second.Tier)
	assert.True(t, second.CacheHit)
	assert.Equal(t, 1, client.normalizeCalls)
}

func TestNormalizer_UpstreamUnavailable(t *testing.T) {
	store := newTierTestStorage(t)
	client := &mockClient{err: errors.New("api timeout")}
	normalizer := NewNormalizer(store, client, DefaultConfig())
	ctx := context.Background()

	_, err := normalizer.Normalize(ctx, "UNKNOWN VENDOR LLC", "user-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrUpstreamUnavailable)

	// The failed attempt wrote no cache row.
	entry, err := store.GetCacheEntry(ctx, HashDescription("UNKNOWN VENDOR LLC"))
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestNormalizer_EmptyInput(t *testing.T) {
	store := newTierTestStorage(t)
	normalizer := NewNormalizer(store, &mockClient{}, DefaultConfig())

	_, err := normalizer.Normalize(context.Background(), "", "user-1")
	assert.Error(t, err)
}

func TestNormalizer_EveryAttemptLogged(t *testing.T) {
	store := newTierTestStorage(t)
	client := &mockClient{
		normalizeResult: inference.NormalizationResult{NormalizedText: "Uber", Confidence: 0.9},
	}
	normalizer := NewNormalizer(store, client, DefaultConfig())
	ctx := context.Background()

	// Miss then inference: two log rows. Following hit: one more.
	_, err := normalizer.Normalize(ctx, "UBER TRIP 123", "user-1")
	require.NoError(t, err)
	_, err = normalizer.Normalize(ctx, "UBER TRIP 123", "user-1")
	require.NoError(t, err)

	stats, err := store.GetTierStats(ctx, time.Time{})
	require.NoError(t, err)

	var total int
	for _, stat := range stats {
		assert.Equal(t, model.OperationNormalize, stat.OperationType)
		total += stat.Count
	}
	assert.Equal(t, 3, total)
}
