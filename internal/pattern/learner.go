package pattern

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ledgertier/ledgertier/internal/common"
	"github.com/ledgertier/ledgertier/internal/model"
	"github.com/ledgertier/ledgertier/internal/service"
)

// Config holds the learner's tunable parameters.
type Config struct {
	// ReinforcementRate is k in accuracy = min(1, accuracy + k*(1-accuracy)).
	ReinforcementRate float64
	// RejectionPenalty scales the multiplicative accuracy decrement on reject.
	RejectionPenalty float64
}

// DefaultConfig returns the default learner configuration.
func DefaultConfig() Config {
	return Config{
		ReinforcementRate: 0.1,
		RejectionPenalty:  0.15,
	}
}

// Engine derives and updates expense patterns from approved reports and from
// direct classification signals. All pattern mutation is a read-modify-write
// against a single (user, normalized vendor) row under an optimistic version
// check, retried once on conflict.
type Engine struct {
	store service.Storage
	cfg   Config
}

// NewEngine creates a learning engine over the given store.
func NewEngine(store service.Storage, cfg Config) *Engine {
	if cfg.ReinforcementRate <= 0 || cfg.ReinforcementRate >= 1 {
		cfg.ReinforcementRate = DefaultConfig().ReinforcementRate
	}
	if cfg.RejectionPenalty <= 0 || cfg.RejectionPenalty >= 1 {
		cfg.RejectionPenalty = DefaultConfig().RejectionPenalty
	}
	return &Engine{store: store, cfg: cfg}
}

// LearnStats tallies one learning pass.
type LearnStats struct {
	LinesProcessed int
	LinesSkipped   int
	Failures       int
}

// LearnFromReport folds every line of an approved report into the user's
// patterns. Each line is learned at most once, tracked in a per-line ledger,
// so re-running on the same report skips lines already folded in. Per-line
// failures are logged and tallied; the batch continues.
func (e *Engine) LearnFromReport(ctx context.Context, reportID string) (LearnStats, error) {
	var stats LearnStats

	report, err := e.store.GetReport(ctx, reportID)
	if err != nil {
		return stats, err
	}
	if report == nil {
		return stats, fmt.Errorf("report %s: %w", reportID, common.ErrNotFound)
	}
	if report.Status != model.ReportApproved {
		return stats, common.NewValidationError("report",
			fmt.Sprintf("expected status %s, got %s", model.ReportApproved, report.Status))
	}

	lines, err := e.store.GetReportLines(ctx, reportID)
	if err != nil {
		return stats, err
	}

	for i := range lines {
		line := &lines[i]
		learned, err := e.store.ReportLineLearned(ctx, line.ID)
		if err != nil {
			slog.Error("Failed to check report line ledger",
				"report_id", reportID,
				"line_id", line.ID,
				"error", err)
			stats.Failures++
			continue
		}
		if learned {
			stats.LinesSkipped++
			continue
		}
		if err := e.learnOccurrence(ctx, report.UserID, line.Vendor, line.Amount); err != nil {
			slog.Error("Failed to learn from report line",
				"report_id", reportID,
				"line_id", line.ID,
				"error", err)
			stats.Failures++
			continue
		}
		if err := e.store.MarkReportLineLearned(ctx, reportID, line.ID); err != nil {
			slog.Error("Failed to record learned report line",
				"report_id", reportID,
				"line_id", line.ID,
				"error", err)
			stats.Failures++
			continue
		}
		stats.LinesProcessed++
	}

	slog.Info("Learned from report",
		"report_id", reportID,
		"lines", stats.LinesProcessed,
		"skipped", stats.LinesSkipped,
		"failures", stats.Failures)

	return stats, nil
}

// LearnFromClassification folds a direct Business/Personal marking into the
// vendor's pattern. Idempotent per (user, transaction): re-marking the same
// transaction the same way is a no-op on counts, and a changed marking moves
// the classification without double-counting the occurrence.
func (e *Engine) LearnFromClassification(ctx context.Context, userID, transactionID string, class model.Classification) error {
	if !class.Valid() {
		return common.NewValidationError("classification", fmt.Sprintf("unknown value %q", class))
	}

	txn, err := e.store.GetTransactionByID(ctx, transactionID)
	if err != nil {
		return err
	}
	if txn == nil {
		return fmt.Errorf("transaction %s: %w", transactionID, common.ErrNotFound)
	}

	vendorText := txn.Vendor
	if vendorText == "" {
		vendorText = txn.Description
	}
	vendor := NormalizeVendor(vendorText)

	existing, err := e.store.GetClassificationSignal(ctx, userID, transactionID)
	if err != nil {
		return err
	}
	if existing != nil && existing.Classification == class {
		return nil
	}

	firstSignal := existing == nil

	// The pattern write lands before the signal is recorded: a failed
	// mutation leaves no signal behind, so a retry still counts.
	err = e.mutatePattern(ctx, userID, vendor, func(p *model.ExpensePattern) {
		p.ActiveClassification = class
		if firstSignal {
			p.OccurrenceCount++
			p.AverageAmount += (txn.Amount - p.AverageAmount) / float64(p.OccurrenceCount)
			e.reinforce(p)
		}
	})
	if err != nil {
		return err
	}

	return e.store.SaveClassificationSignal(ctx, &model.ClassificationSignal{
		UserID:         userID,
		TransactionID:  transactionID,
		Classification: class,
	})
}

// Reinforce records a confirmed prediction against the owning pattern.
func (e *Engine) Reinforce(ctx context.Context, patternID int64) error {
	return e.mutatePatternByID(ctx, patternID, func(p *model.ExpensePattern) {
		p.OccurrenceCount++
		e.reinforce(p)
	})
}

// Weaken records a rejected prediction: accuracy drops by a bounded
// decrement and naturally floors at zero. The occurrence count is history,
// not a quality signal, so it stays put.
func (e *Engine) Weaken(ctx context.Context, patternID int64) error {
	return e.mutatePatternByID(ctx, patternID, func(p *model.ExpensePattern) {
		p.AccuracyRate -= e.cfg.RejectionPenalty * p.AccuracyRate
		p.ClampAccuracy()
	})
}

// Rebuild recomputes all of a user's patterns from scratch over non-deleted
// historical reports. Patterns are updated in place by normalized-vendor key
// so concurrently-created predictions keep valid pattern IDs; suppression,
// receipt-match, and classification survive the rebuild.
func (e *Engine) Rebuild(ctx context.Context, userID string) (int, error) {
	lines, err := e.store.GetLearnableReportLines(ctx, userID)
	if err != nil {
		return 0, err
	}

	type vendorStats struct {
		count int
		avg   float64
	}
	byVendor := make(map[string]*vendorStats)
	for i := range lines {
		vendor := NormalizeVendor(lines[i].Vendor)
		stats := byVendor[vendor]
		if stats == nil {
			stats = &vendorStats{}
			byVendor[vendor] = stats
		}
		stats.count++
		stats.avg += (lines[i].Amount - stats.avg) / float64(stats.count)
	}

	rebuilt := 0
	for vendor, stats := range byVendor {
		accuracy := accumulatedAccuracy(e.cfg.ReinforcementRate, stats.count)
		err := e.mutatePattern(ctx, userID, vendor, func(p *model.ExpensePattern) {
			p.OccurrenceCount = stats.count
			p.AverageAmount = stats.avg
			p.AccuracyRate = accuracy
		})
		if err != nil {
			slog.Error("Failed to rebuild pattern",
				"user_id", userID,
				"vendor", vendor,
				"error", err)
			continue
		}
		rebuilt++
	}

	slog.Info("Rebuilt patterns", "user_id", userID, "patterns", rebuilt)
	return rebuilt, nil
}

// learnOccurrence upserts one observed (vendor, amount) occurrence.
func (e *Engine) learnOccurrence(ctx context.Context, userID, vendorText string, amount float64) error {
	vendor := NormalizeVendor(vendorText)
	return e.mutatePattern(ctx, userID, vendor, func(p *model.ExpensePattern) {
		p.OccurrenceCount++
		p.AverageAmount += (amount - p.AverageAmount) / float64(p.OccurrenceCount)
		e.reinforce(p)
	})
}

// reinforce nudges accuracy toward 1 with a bounded increment.
func (e *Engine) reinforce(p *model.ExpensePattern) {
	p.AccuracyRate = p.AccuracyRate + e.cfg.ReinforcementRate*(1-p.AccuracyRate)
	p.ClampAccuracy()
}

// accumulatedAccuracy replays n reinforcements from zero:
// 1 - (1-k)^n, the closed form of the nudge recurrence.
func accumulatedAccuracy(k float64, n int) float64 {
	accuracy := 1.0
	for i := 0; i < n; i++ {
		accuracy *= 1 - k
	}
	return 1 - accuracy
}

// mutatePattern applies mutate to the (user, vendor) pattern row, creating
// it when absent. The write is CAS-guarded; one retry on conflict, then the
// conflict surfaces.
func (e *Engine) mutatePattern(ctx context.Context, userID, vendor string, mutate func(*model.ExpensePattern)) error {
	for attempt := 0; attempt < 2; attempt++ {
		p, err := e.store.GetPattern(ctx, userID, vendor)
		if err != nil {
			return err
		}

		if p == nil {
			p = &model.ExpensePattern{
				UserID:               userID,
				NormalizedVendor:     vendor,
				ActiveClassification: model.ClassificationUnknown,
			}
			mutate(p)
			p.ClampAccuracy()
			err = e.store.CreatePattern(ctx, p)
			if err == nil {
				return nil
			}
			// Lost a create race; reread and update instead.
			if errors.Is(err, common.ErrConflict) && attempt == 0 {
				continue
			}
			return err
		}

		mutate(p)
		p.ClampAccuracy()
		err = e.store.UpdatePattern(ctx, p)
		if err == nil {
			return nil
		}
		if errors.Is(err, common.ErrConflict) && attempt == 0 {
			continue
		}
		return err
	}

	return fmt.Errorf("pattern update for vendor %q: %w", vendor, common.ErrConflict)
}

// mutatePatternByID is mutatePattern for feedback paths that hold an ID.
func (e *Engine) mutatePatternByID(ctx context.Context, patternID int64, mutate func(*model.ExpensePattern)) error {
	for attempt := 0; attempt < 2; attempt++ {
		p, err := e.store.GetPatternByID(ctx, patternID)
		if err != nil {
			return err
		}
		if p == nil {
			return fmt.Errorf("pattern %d: %w", patternID, common.ErrNotFound)
		}

		mutate(p)
		p.ClampAccuracy()
		err = e.store.UpdatePattern(ctx, p)
		if err == nil {
			return nil
		}
		if errors.Is(err, common.ErrConflict) && attempt == 0 {
			continue
		}
		return err
	}

	return fmt.Errorf("pattern update %d: %w", patternID, common.ErrConflict)
}
