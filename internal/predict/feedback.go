package predict

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ledgertier/ledgertier/internal/common"
	"github.com/ledgertier/ledgertier/internal/model"
	"github.com/ledgertier/ledgertier/internal/pattern"
	"github.com/ledgertier/ledgertier/internal/service"
)

// BulkAction names a feedback verb applied across many predictions.
type BulkAction string

// Bulk action constants.
const (
	ActionConfirm BulkAction = "confirm"
	ActionReject  BulkAction = "reject"
	ActionIgnore  BulkAction = "ignore"
)

// BulkResult is the per-item outcome of a bulk action.
type BulkResult struct {
	Err          error
	PredictionID string
}

// Feedback applies user verdicts to predictions and reinforces or weakens
// the owning pattern. This loop is what makes the engine self-correcting.
type Feedback struct {
	store   service.Storage
	learner *pattern.Engine
}

// NewFeedback creates the feedback handler.
func NewFeedback(store service.Storage, learner *pattern.Engine) *Feedback {
	return &Feedback{store: store, learner: learner}
}

// Confirm accepts a pending prediction: the pattern strengthens, then the
// prediction resolves.
func (f *Feedback) Confirm(ctx context.Context, predictionID string) error {
	prediction, err := f.pending(ctx, predictionID)
	if err != nil {
		return err
	}

	if err := f.learner.Reinforce(ctx, prediction.PatternID); err != nil {
		return fmt.Errorf("failed to reinforce pattern: %w", err)
	}

	return f.store.UpdatePredictionStatus(ctx, predictionID, model.PredictionConfirmed)
}

// Reject declines a pending prediction: the pattern weakens, occurrence
// history stays, then the prediction resolves.
func (f *Feedback) Reject(ctx context.Context, predictionID string) error {
	prediction, err := f.pending(ctx, predictionID)
	if err != nil {
		return err
	}

	if err := f.learner.Weaken(ctx, prediction.PatternID); err != nil {
		return fmt.Errorf("failed to weaken pattern: %w", err)
	}

	return f.store.UpdatePredictionStatus(ctx, predictionID, model.PredictionRejected)
}

// Ignore dismisses a pending prediction without touching the pattern.
func (f *Feedback) Ignore(ctx context.Context, predictionID string) error {
	if _, err := f.pending(ctx, predictionID); err != nil {
		return err
	}
	return f.store.UpdatePredictionStatus(ctx, predictionID, model.PredictionIgnored)
}

// Bulk applies one action per prediction ID and reports per-item outcomes.
// A failed item never aborts the rest of the batch.
func (f *Feedback) Bulk(ctx context.Context, action BulkAction, predictionIDs []string) ([]BulkResult, error) {
	if len(predictionIDs) == 0 {
		return nil, common.NewValidationError("predictionIDs", "must not be empty")
	}

	var apply func(context.Context, string) error
	switch action {
	case ActionConfirm:
		apply = f.Confirm
	case ActionReject:
		apply = f.Reject
	case ActionIgnore:
		apply = f.Ignore
	default:
		return nil, common.NewValidationError("action", fmt.Sprintf("unknown action %q", action))
	}

	results := make([]BulkResult, 0, len(predictionIDs))
	failures := 0
	for _, id := range predictionIDs {
		err := apply(ctx, id)
		if err != nil {
			failures++
			slog.Warn("Bulk action failed for prediction",
				"action", action,
				"prediction_id", id,
				"error", err)
		}
		results = append(results, BulkResult{PredictionID: id, Err: err})
	}

	slog.Info("Bulk action complete",
		"action", action,
		"total", len(predictionIDs),
		"failures", failures)

	return results, nil
}

// MarkManual records a direct user classification of a transaction, creating
// a resolved prediction without passing through Pending. The marking also
// feeds classification-driven learning.
func (f *Feedback) MarkManual(ctx context.Context, userID, transactionID string, class model.Classification) error {
	existing, err := f.store.GetPredictionByTransaction(ctx, transactionID)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("transaction %s already has a prediction: %w", transactionID, common.ErrConflict)
	}

	// Learning first guarantees the owning pattern row exists.
	if err := f.learner.LearnFromClassification(ctx, userID, transactionID, class); err != nil {
		return err
	}

	txn, err := f.store.GetTransactionByID(ctx, transactionID)
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
	p, err := f.store.GetPattern(ctx, userID, pattern.NormalizeVendor(vendorText))
	if err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("pattern for transaction %s: %w", transactionID, common.ErrNotFound)
	}

	status := model.PredictionConfirmed
	if class == model.ClassificationPersonal {
		status = model.PredictionRejected
	}

	now := time.Now()
	return f.store.CreatePrediction(ctx, &model.TransactionPrediction{
		ID:               uuid.NewString(),
		TransactionID:    transactionID,
		PatternID:        p.ID,
		ConfidenceLevel:  model.ConfidenceHigh,
		Status:           status,
		IsManualOverride: true,
		ResolvedAt:       &now,
	})
}

// pending loads a prediction and verifies it is still actionable.
func (f *Feedback) pending(ctx context.Context, predictionID string) (*model.TransactionPrediction, error) {
	prediction, err := f.store.GetPrediction(ctx, predictionID)
	if err != nil {
		return nil, err
	}
	if prediction == nil {
		return nil, fmt.Errorf("prediction %s: %w", predictionID, common.ErrNotFound)
	}
	if prediction.Resolved() {
		return nil, fmt.Errorf("prediction %s already %s: %w", predictionID, prediction.Status, common.ErrConflict)
	}
	return prediction, nil
}
