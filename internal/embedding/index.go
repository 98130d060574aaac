package embedding

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ledgertier/ledgertier/internal/common"
	"github.com/ledgertier/ledgertier/internal/model"
)

// DefaultRetention is how long an unverified embedding survives before the
// purge job may remove it.
const DefaultRetention = 24 * time.Hour

// Store is the slice of persistence the index needs.
type Store interface {
	AddEmbedding(ctx context.Context, embedding *model.ExpenseEmbedding) error
	GetEmbeddingsForUser(ctx context.Context, userID string) ([]model.ExpenseEmbedding, error)
	MarkEmbeddingVerified(ctx context.Context, id string) error
	PurgeExpiredEmbeddings(ctx context.Context, now time.Time) (int64, error)
}

// Searcher is the read side of the index. The reference implementation is a
// linear scan; an indexed nearest-neighbor structure can replace it without
// changing callers.
type Searcher interface {
	FindSimilar(ctx context.Context, query []float32, userID string, limit int, threshold float64) ([]model.SimilarityMatch, error)
}

// Index is the linear-scan reference implementation of the similarity index.
type Index struct {
	store     Store
	retention time.Duration
}

// NewIndex creates an index over the given store. retention <= 0 selects
// DefaultRetention.
func NewIndex(store Store, retention time.Duration) *Index {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Index{store: store, retention: retention}
}

// FindSimilar returns matches at or above threshold, verified rows first,
// then unverified, each block by descending similarity with ties broken by
// most recent creation.
func (idx *Index) FindSimilar(ctx context.Context, query []float32, userID string, limit int, threshold float64) ([]model.SimilarityMatch, error) {
	if len(query) != model.EmbeddingDimensions {
		return nil, common.NewValidationError("query",
			fmt.Sprintf("expected %d dimensions, got %d", model.EmbeddingDimensions, len(query)))
	}
	if threshold < 0 || threshold > 1 {
		return nil, common.NewValidationError("threshold",
			fmt.Sprintf("must be within [0,1], got %f", threshold))
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := idx.store.GetEmbeddingsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load embeddings: %w", err)
	}

	matches := make([]model.SimilarityMatch, 0, len(rows))
	for i := range rows {
		sim := Cosine(query, rows[i].Vector)
		if sim < threshold {
			continue
		}
		matches = append(matches, model.SimilarityMatch{
			Embedding:  rows[i],
			Similarity: sim,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := &matches[i], &matches[j]
		if a.Embedding.Verified != b.Embedding.Verified {
			return a.Embedding.Verified
		}
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		return a.Embedding.CreatedAt.After(b.Embedding.CreatedAt)
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}

	return matches, nil
}

// Add inserts a new immutable row. Unverified rows get an expiry stamp;
// verified rows never expire.
func (idx *Index) Add(ctx context.Context, embedding *model.ExpenseEmbedding) error {
	if embedding == nil {
		return common.NewValidationError("embedding", "must not be nil")
	}

	if embedding.ID == "" {
		embedding.ID = uuid.NewString()
	}
	if embedding.CreatedAt.IsZero() {
		embedding.CreatedAt = time.Now()
	}
	if !embedding.Verified && embedding.ExpiresAt == nil {
		expiry := embedding.CreatedAt.Add(idx.retention)
		embedding.ExpiresAt = &expiry
	}

	return idx.store.AddEmbedding(ctx, embedding)
}

// MarkVerified promotes a row into the permanent verified pool.
func (idx *Index) MarkVerified(ctx context.Context, id string) error {
	return idx.store.MarkEmbeddingVerified(ctx, id)
}

// PurgeExpired removes unverified rows past expiry and returns the count.
// Safe to run concurrently with inserts; the delete is a single predicate.
func (idx *Index) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	return idx.store.PurgeExpiredEmbeddings(ctx, now)
}
