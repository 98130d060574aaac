// Package predict generates confidence-scored predictions from learned
// patterns and feeds user verdicts back into them.
package predict

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ledgertier/ledgertier/internal/common"
	"github.com/ledgertier/ledgertier/internal/model"
	"github.com/ledgertier/ledgertier/internal/pattern"
	"github.com/ledgertier/ledgertier/internal/service"
)

// Config holds the generator's tunable parameters.
type Config struct {
	HighAccuracy    float64
	MediumAccuracy  float64
	HighOccurrences int
	FuzzyFloor      float64
	Concurrency     int
}

// DefaultConfig returns the default generator configuration.
func DefaultConfig() Config {
	return Config{
		HighAccuracy:    0.85,
		MediumAccuracy:  0.6,
		HighOccurrences: 5,
		FuzzyFloor:      pattern.DefaultSimilarityFloor,
		Concurrency:     4,
	}
}

// Generator matches unprocessed transactions against patterns.
type Generator struct {
	store   service.Storage
	learner *pattern.Engine
	cfg     Config
}

// NewGenerator creates a prediction generator.
func NewGenerator(store service.Storage, learner *pattern.Engine, cfg Config) *Generator {
	def := DefaultConfig()
	if cfg.HighAccuracy <= 0 {
		cfg.HighAccuracy = def.HighAccuracy
	}
	if cfg.MediumAccuracy <= 0 {
		cfg.MediumAccuracy = def.MediumAccuracy
	}
	if cfg.HighOccurrences <= 0 {
		cfg.HighOccurrences = def.HighOccurrences
	}
	if cfg.FuzzyFloor <= 0 {
		cfg.FuzzyFloor = def.FuzzyFloor
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	return &Generator{store: store, learner: learner, cfg: cfg}
}

// Generate creates Pending predictions for the given transactions, or for
// all of the user's transactions when transactionIDs is empty. Re-runs are
// idempotent: a transaction that already carries a prediction is skipped.
// Returns the number of predictions created; per-item failures are logged
// and tallied, never abort the batch.
func (g *Generator) Generate(ctx context.Context, userID string, transactionIDs []string) (int, error) {
	patterns, err := g.store.GetPatternsForUser(ctx, userID, false)
	if err != nil {
		return 0, err
	}
	if len(patterns) == 0 {
		return 0, nil
	}

	byVendor := make(map[string]*model.ExpensePattern, len(patterns))
	vendors := make([]string, 0, len(patterns))
	for i := range patterns {
		byVendor[patterns[i].NormalizedVendor] = &patterns[i]
		vendors = append(vendors, patterns[i].NormalizedVendor)
	}

	if len(transactionIDs) == 0 {
		transactions, err := g.store.GetTransactionsByUser(ctx, userID)
		if err != nil {
			return 0, err
		}
		for i := range transactions {
			transactionIDs = append(transactionIDs, transactions[i].ID)
		}
	}

	var created, failed atomic.Int64

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(g.cfg.Concurrency)

	for _, id := range transactionIDs {
		group.Go(func() error {
			ok, err := g.generateOne(ctx, userID, id, byVendor, vendors)
			if err != nil {
				slog.Error("Failed to generate prediction",
					"transaction_id", id,
					"error", err)
				failed.Add(1)
				return nil
			}
			if ok {
				created.Add(1)
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return int(created.Load()), err
	}

	slog.Info("Prediction generation complete",
		"user_id", userID,
		"created", created.Load(),
		"failed", failed.Load())

	return int(created.Load()), nil
}

func (g *Generator) generateOne(ctx context.Context, userID, transactionID string, byVendor map[string]*model.ExpensePattern, vendors []string) (bool, error) {
	exists, err := g.store.PredictionExists(ctx, transactionID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	txn, err := g.store.GetTransactionByID(ctx, transactionID)
	if err != nil {
		return false, err
	}
	if txn == nil || txn.UserID != userID {
		return false, nil
	}

	vendorText := txn.Vendor
	if vendorText == "" {
		vendorText = txn.Description
	}
	vendor := pattern.NormalizeVendor(vendorText)

	// Exact normalized-vendor match first; fuzzy only when no exact pattern.
	p := byVendor[vendor]
	if p == nil {
		match, _, ok := pattern.BestMatch(vendor, vendors, g.cfg.FuzzyFloor)
		if !ok {
			return false, nil
		}
		p = byVendor[match]
	}

	if p.RequiresReceiptMatch && !txn.HasReceiptMatch {
		return false, nil
	}

	prediction := &model.TransactionPrediction{
		ID:              uuid.NewString(),
		TransactionID:   transactionID,
		PatternID:       p.ID,
		ConfidenceLevel: g.band(p),
		Status:          model.PredictionPending,
	}

	if err := g.store.CreatePrediction(ctx, prediction); err != nil {
		// A concurrent generator got there first; that is the guard working.
		if errors.Is(err, common.ErrConflict) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

// band assigns a confidence level from pattern statistics.
func (g *Generator) band(p *model.ExpensePattern) model.ConfidenceLevel {
	if p.AccuracyRate >= g.cfg.HighAccuracy && p.OccurrenceCount >= g.cfg.HighOccurrences {
		return model.ConfidenceHigh
	}
	if p.AccuracyRate >= g.cfg.MediumAccuracy {
		return model.ConfidenceMedium
	}
	return model.ConfidenceLow
}

// Surfaceable reports whether a prediction is strong enough for proactive
// display. Low-confidence predictions exist but stay quiet.
func Surfaceable(p *model.TransactionPrediction) bool {
	return p.ConfidenceLevel != model.ConfidenceLow
}
