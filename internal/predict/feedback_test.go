package predict

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgertier/ledgertier/internal/common"
	"github.com/ledgertier/ledgertier/internal/model"
	"github.com/ledgertier/ledgertier/internal/storage"
)

func newTestFeedback(t *testing.T) (*Feedback, *storage.SQLiteStorage) {
	t.Helper()
	gen, store := newTestGenerator(t)
	return NewFeedback(store, gen.learner), store
}

// seedPrediction creates a pattern, a matching transaction, and a pending
// prediction for it. Returns the prediction ID and the pattern.
func seedPrediction(t *testing.T, store *storage.SQLiteStorage, userID, vendor string) (string, *model.ExpensePattern) {
	t.Helper()
	ctx := context.Background()

	p := saveTestPattern(t, store, &model.ExpensePattern{
		UserID:           userID,
		NormalizedVendor: vendor,
		AccuracyRate:     0.5,
		OccurrenceCount:  4,
	})
	txnID := saveTestTransaction(t, store, userID, vendor, 25.00, false)

	prediction := &model.TransactionPrediction{
		ID:              uuid.NewString(),
		TransactionID:   txnID,
		PatternID:       p.ID,
		ConfidenceLevel: model.ConfidenceMedium,
		Status:          model.PredictionPending,
	}
	require.NoError(t, store.CreatePrediction(ctx, prediction))
	return prediction.ID, p
}

func TestFeedback_ConfirmReinforcesPattern(t *testing.T) {
	fb, store := newTestFeedback(t)
	ctx := context.Background()

	predictionID, p := seedPrediction(t, store, "user-1", "STAPLES")
	require.NoError(t, fb.Confirm(ctx, predictionID))

	updated, err := store.GetPatternByID(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.InDelta(t, 0.5+0.1*(1-0.5), updated.AccuracyRate, 1e-9)
	assert.Equal(t, 5, updated.OccurrenceCount)

	prediction, err := store.GetPrediction(ctx, predictionID)
	require.NoError(t, err)
	assert.Equal(t, model.PredictionConfirmed, prediction.Status)
	assert.NotNil(t, prediction.ResolvedAt)
}

func TestFeedback_RejectWeakensPattern(t *testing.T) {
	fb, store := newTestFeedback(t)
	ctx := context.Background()

	predictionID, p := seedPrediction(t, store, "user-1", "STAPLES")
	require.NoError(t, fb.Reject(ctx, predictionID))

	updated, err := store.GetPatternByID(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.InDelta(t, 0.5*(1-0.15), updated.AccuracyRate, 1e-9)
	// Rejection questions the classification, not the vendor's recurrence.
	assert.Equal(t, 4, updated.OccurrenceCount)

	prediction, err := store.GetPrediction(ctx, predictionID)
	require.NoError(t, err)
	assert.Equal(t, model.PredictionRejected, prediction.Status)
}

func TestFeedback_IgnoreLeavesPatternAlone(t *testing.T) {
	fb, store := newTestFeedback(t)
	ctx := context.Background()

	predictionID, p := seedPrediction(t, store, "user-1", "STAPLES")
	require.NoError(t, fb.Ignore(ctx, predictionID))

	updated, err := store.GetPatternByID(ctx, p.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, updated.AccuracyRate, 1e-9)
	assert.Equal(t, 4, updated.OccurrenceCount)

	prediction, err := store.GetPrediction(ctx, predictionID)
	require.NoError(t, err)
	assert.Equal(t, model.PredictionIgnored, prediction.Status)
}

func TestFeedback_ResolvedPredictionCannotBeActedOnAgain(t *testing.T) {
	fb, store := newTestFeedback(t)
	ctx := context.Background()

	predictionID, _ := seedPrediction(t, store, "user-1", "STAPLES")
	require.NoError(t, fb.Confirm(ctx, predictionID))

	err := fb.Confirm(ctx, predictionID)
	assert.ErrorIs(t, err, common.ErrConflict)
	err = fb.Reject(ctx, predictionID)
	assert.ErrorIs(t, err, common.ErrConflict)
}

func TestFeedback_UnknownPrediction(t *testing.T) {
	fb, _ := newTestFeedback(t)

	err := fb.Confirm(context.Background(), "no-such-prediction")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestFeedback_Bulk(t *testing.T) {
	fb, store := newTestFeedback(t)
	ctx := context.Background()

	first, _ := seedPrediction(t, store, "user-1", "STAPLES")
	second, _ := seedPrediction(t, store, "user-1", "DELTA AIR")

	// One bad ID in the middle must not stop the rest.
	results, err := fb.Bulk(ctx, ActionConfirm, []string{first, "no-such-prediction", second})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, common.ErrNotFound)
	assert.NoError(t, results[2].Err)

	for _, id := range []string{first, second} {
		prediction, err := store.GetPrediction(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, model.PredictionConfirmed, prediction.Status)
	}
}

func TestFeedback_BulkValidation(t *testing.T) {
	fb, store := newTestFeedback(t)
	ctx := context.Background()

	_, err := fb.Bulk(ctx, ActionConfirm, nil)
	var validationErr *common.ValidationError
	assert.ErrorAs(t, err, &validationErr)

	predictionID, _ := seedPrediction(t, store, "user-1", "STAPLES")
	_, err = fb.Bulk(ctx, BulkAction("shred"), []string{predictionID})
	assert.ErrorAs(t, err, &validationErr)
}

func TestFeedback_MarkManual(t *testing.T) {
	fb, store := newTestFeedback(t)
	ctx := context.Background()

	txnID := saveTestTransaction(t, store, "user-1", "SQ *COFFEE HOUSE", 12.00, false)
	require.NoError(t, fb.MarkManual(ctx, "user-1", txnID, model.ClassificationBusiness))

	// Marking creates the pattern from the classification signal.
	p, err := store.GetPattern(ctx, "user-1", "COFFEE HOUSE")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, model.ClassificationBusiness, p.ActiveClassification)
	assert.Equal(t, 1, p.OccurrenceCount)

	prediction, err := store.GetPredictionByTransaction(ctx, txnID)
	require.NoError(t, err)
	require.NotNil(t, prediction)
	assert.Equal(t, model.PredictionConfirmed, prediction.Status)
	assert.Equal(t, model.ConfidenceHigh, prediction.ConfidenceLevel)
	assert.True(t, prediction.IsManualOverride)
	assert.NotNil(t, prediction.ResolvedAt)
}

func TestFeedback_MarkManualPersonal(t *testing.T) {
	fb, store := newTestFeedback(t)
	ctx := context.Background()

	txnID := saveTestTransaction(t, store, "user-1", "NETFLIX", 15.99, false)
	require.NoError(t, fb.MarkManual(ctx, "user-1", txnID, model.ClassificationPersonal))

	prediction, err := store.GetPredictionByTransaction(ctx, txnID)
	require.NoError(t, err)
	require.NotNil(t, prediction)
	assert.Equal(t, model.PredictionRejected, prediction.Status)
	assert.True(t, prediction.IsManualOverride)
}

func TestFeedback_MarkManualConflictsWithExistingPrediction(t *testing.T) {
	fb, store := newTestFeedback(t)
	ctx := context.Background()

	predictionID, _ := seedPrediction(t, store, "user-1", "STAPLES")
	prediction, err := store.GetPrediction(ctx, predictionID)
	require.NoError(t, err)

	err = fb.MarkManual(ctx, "user-1", prediction.TransactionID, model.ClassificationBusiness)
	assert.ErrorIs(t, err, common.ErrConflict)
}
