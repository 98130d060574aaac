package tier

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ledgertier/ledgertier/internal/common"
	"github.com/ledgertier/ledgertier/internal/embedding"
	"github.com/ledgertier/ledgertier/internal/inference"
	"github.com/ledgertier/ledgertier/internal/model"
	"github.com/ledgertier/ledgertier/internal/service"
)

// ClassificationRecorder receives confirmed-categorization signals so the
// pattern learner can fold them in. Implemented by pattern.Engine.
type ClassificationRecorder interface {
	LearnFromClassification(ctx context.Context, userID, transactionID string, class model.Classification) error
}

// Categorizer routes GL/department suggestion: alias match, then embedding
// similarity, then the inference collaborator.
type Categorizer struct {
	store      service.Storage
	index      *embedding.Index
	recorder   ClassificationRecorder
	strategies []Strategy
}

// NewCategorizer wires the three categorization tiers. embedder may be shared
// between Tier 2 search and Tier-3 result capture. recorder may be nil when
// no learner is attached.
func NewCategorizer(store service.Storage, client inference.Client, embedder inference.Embedder, index *embedding.Index, recorder ClassificationRecorder, cfg Config) *Categorizer {
	if cfg.SimilarityThreshold <= 0 || cfg.SimilarityThreshold > 1 {
		cfg.SimilarityThreshold = DefaultConfig().SimilarityThreshold
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultConfig().TopK
	}

	return &Categorizer{
		store:    store,
		index:    index,
		recorder: recorder,
		strategies: []Strategy{
			&aliasStrategy{store: store},
			&similarityStrategy{embedder: embedder, searcher: index, threshold: cfg.SimilarityThreshold, topK: cfg.TopK},
			&codingInferenceStrategy{client: client, embedder: embedder, index: index, timeout: cfg.InferenceTimeout},
		},
	}
}

// Suggest produces a GL/department suggestion for a transaction. On upstream
// failure it returns a typed error so callers fall back to manual entry; it
// never guesses.
func (c *Categorizer) Suggest(ctx context.Context, transactionID, userID string) (*Result, error) {
	txn, err := c.store.GetTransactionByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if txn == nil {
		return nil, fmt.Errorf("transaction %s: %w", transactionID, common.ErrNotFound)
	}

	vendor := txn.Vendor
	if vendor == "" {
		vendor = txn.Description
	}

	result, err := route(ctx, c.store, model.OperationCategorize, c.strategies, Input{
		UserID:        userID,
		Raw:           vendor,
		TransactionID: transactionID,
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, common.ErrUpstreamUnavailable
	}

	return result, nil
}

// Confirm accepts a suggestion: the backing embedding joins the verified pool
// and the learner receives a business classification signal.
func (c *Categorizer) Confirm(ctx context.Context, userID, transactionID, embeddingID string) error {
	if embeddingID != "" {
		if err := c.index.MarkVerified(ctx, embeddingID); err != nil {
			return fmt.Errorf("failed to verify embedding: %w", err)
		}
	}

	if c.recorder != nil {
		if err := c.recorder.LearnFromClassification(ctx, userID, transactionID, model.ClassificationBusiness); err != nil {
			return fmt.Errorf("failed to record classification: %w", err)
		}
	}

	return nil
}

// Skip declines a suggestion. The attempt is already in the usage log;
// nothing else changes.
func (c *Categorizer) Skip(ctx context.Context, transactionID string) {
	slog.Debug("Suggestion skipped", "transaction_id", transactionID)
}

// AliasCandidates surfaces vendors that repeatedly reached the inference
// tier over the lookback window, the inputs to alias promotion.
func (c *Categorizer) AliasCandidates(ctx context.Context, minCount int, lookback time.Duration) ([]service.VendorUsage, error) {
	since := time.Now().Add(-lookback)
	return c.store.GetTopInferenceVendors(ctx, minCount, since)
}

// aliasStrategy is Tier 1 for categorization: canonical alias match.
type aliasStrategy struct {
	store service.Storage
}

func (s *aliasStrategy) Tier() model.Tier { return model.TierCache }

func (s *aliasStrategy) Attempt(ctx context.Context, in Input) (*Result, error) {
	alias, err := s.store.FindAliasForVendor(ctx, in.Raw, in.Category)
	if err != nil {
		return nil, fmt.Errorf("alias lookup failed: %w", err)
	}
	if alias == nil {
		return nil, nil
	}

	if err := s.store.IncrementAliasMatchCount(ctx, alias.CanonicalName); err != nil {
		slog.Warn("Failed to increment alias match count",
			"alias", alias.CanonicalName,
			"error", err)
	}

	return &Result{
		NormalizedText: alias.CanonicalName,
		GLCode:         alias.Category,
		Confidence:     1.0,
		CacheHit:       true,
	}, nil
}

// similarityStrategy is Tier 2: embed the input and search the verified-first
// neighbor pool. An embedding-provider failure is treated as a miss so the
// inference tier still gets its turn.
type similarityStrategy struct {
	embedder  inference.Embedder
	searcher  embedding.Searcher
	threshold float64
	topK      int
}

func (s *similarityStrategy) Tier() model.Tier { return model.TierSimilarity }

func (s *similarityStrategy) Attempt(ctx context.Context, in Input) (*Result, error) {
	if s.embedder == nil {
		return nil, nil
	}

	vector, err := s.embedder.Embed(ctx, in.Raw)
	if err != nil {
		slog.Warn("Embedding provider unavailable, advancing tier", "error", err)
		return nil, nil
	}

	matches, err := s.searcher.FindSimilar(ctx, vector, in.UserID, s.topK, s.threshold)
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}
	if len(matches) == 0 {
		return nil, nil
	}

	best := matches[0]
	return &Result{
		GLCode:      best.Embedding.GLCode,
		Department:  best.Embedding.Department,
		EmbeddingID: best.Embedding.ID,
		Confidence:  best.Similarity,
	}, nil
}

// codingInferenceStrategy is Tier 3: bounded inference call. On success the
// result is captured as an unverified embedding so future lookups can stop
// at Tier 2.
type codingInferenceStrategy struct {
	client   inference.Client
	embedder inference.Embedder
	index    *embedding.Index
	timeout  time.Duration
}

func (s *codingInferenceStrategy) Tier() model.Tier { return model.TierInference }

func (s *codingInferenceStrategy) Attempt(ctx context.Context, in Input) (*Result, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	coding, err := s.client.SuggestCoding(ctx, in.Raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrUpstreamUnavailable, err)
	}

	result := &Result{
		GLCode:     coding.GLCode,
		Department: coding.Department,
		Confidence: coding.Confidence,
	}

	// Best-effort capture; the suggestion stands even if the vector write
	// fails.
	if s.embedder != nil {
		if vector, embErr := s.embedder.Embed(ctx, in.Raw); embErr == nil {
			row := &model.ExpenseEmbedding{
				UserID:     in.UserID,
				Vector:     vector,
				SourceText: in.Raw,
				GLCode:     coding.GLCode,
				Department: coding.Department,
			}
			if addErr := s.index.Add(ctx, row); addErr == nil {
				result.EmbeddingID = row.ID
			} else {
				slog.Warn("Failed to capture inference embedding", "error", addErr)
			}
		}
	}

	return result, nil
}
