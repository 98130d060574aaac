package predict

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgertier/ledgertier/internal/model"
	"github.com/ledgertier/ledgertier/internal/pattern"
	"github.com/ledgertier/ledgertier/internal/storage"
)

func newTestGenerator(t *testing.T) (*Generator, *storage.SQLiteStorage) {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() { _ = store.Close() })

	learner := pattern.NewEngine(store, pattern.DefaultConfig())
	return NewGenerator(store, learner, DefaultConfig()), store
}

func saveTestTransaction(t *testing.T, store *storage.SQLiteStorage, userID, vendor string, amount float64, hasReceipt bool) string {
	t.Helper()
	txn := model.Transaction{
		Date:            time.Now(),
		UserID:          userID,
		Description:     vendor,
		Vendor:          vendor,
		Amount:          amount,
		HasReceiptMatch: hasReceipt,
	}
	txn.ID = txn.GenerateHash()
	require.NoError(t, store.SaveTransactions(context.Background(), []model.Transaction{txn}))
	return txn.ID
}

func saveTestPattern(t *testing.T, store *storage.SQLiteStorage, p *model.ExpensePattern) *model.ExpensePattern {
	t.Helper()
	if p.ActiveClassification == "" {
		p.ActiveClassification = model.ClassificationBusiness
	}
	if p.OccurrenceCount == 0 {
		p.OccurrenceCount = 1
	}
	require.NoError(t, store.CreatePattern(context.Background(), p))
	return p
}

func TestGenerator_GenerateIsIdempotent(t *testing.T) {
	gen, store := newTestGenerator(t)
	ctx := context.Background()

	saveTestPattern(t, store, &model.ExpensePattern{
		UserID:           "user-1",
		NormalizedVendor: "STAPLES",
		AccuracyRate:     0.9,
		OccurrenceCount:  10,
	})
	saveTestTransaction(t, store, "user-1", "STAPLES #101", 25.00, false)
	saveTestTransaction(t, store, "user-1", "STAPLES #202", 40.00, false)

	created, err := gen.Generate(ctx, "user-1", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	// A second pass over the same transactions creates nothing new.
	created, err = gen.Generate(ctx, "user-1", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, created)

	pending, err := store.GetPendingPredictions(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestGenerator_ConfidenceBands(t *testing.T) {
	tests := []struct {
		name     string
		vendor   string
		accuracy float64
		count    int
		want     model.ConfidenceLevel
	}{
		{"accurate and seasoned", "DELTA AIR", 0.90, 8, model.ConfidenceHigh},
		{"accurate but young", "HILTON HOTELS", 0.90, 3, model.ConfidenceMedium},
		{"middling accuracy", "UBER TRIP", 0.65, 20, model.ConfidenceMedium},
		{"weak pattern", "CORNER DELI", 0.30, 20, model.ConfidenceLow},
	}

	gen, store := newTestGenerator(t)
	ctx := context.Background()

	for _, tt := range tests {
		saveTestPattern(t, store, &model.ExpensePattern{
			UserID:           "user-1",
			NormalizedVendor: tt.vendor,
			AccuracyRate:     tt.accuracy,
			OccurrenceCount:  tt.count,
		})
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txnID := saveTestTransaction(t, store, "user-1", tt.vendor, 50.00, false)
			created, err := gen.Generate(ctx, "user-1", []string{txnID})
			require.NoError(t, err)
			require.Equal(t, 1, created)

			prediction, err := store.GetPredictionByTransaction(ctx, txnID)
			require.NoError(t, err)
			require.NotNil(t, prediction)
			assert.Equal(t, tt.want, prediction.ConfidenceLevel)
			assert.Equal(t, model.PredictionPending, prediction.Status)
		})
	}
}

func TestGenerator_FuzzyVendorFallback(t *testing.T) {
	gen, store := newTestGenerator(t)
	ctx := context.Background()

	p := saveTestPattern(t, store, &model.ExpensePattern{
		UserID:           "user-1",
		NormalizedVendor: "OFFICE DEPOT",
		AccuracyRate:     0.9,
		OccurrenceCount:  10,
	})

	// One edit away from the stored vendor; no exact pattern exists.
	txnID := saveTestTransaction(t, store, "user-1", "OFFICE DEPOTS", 30.00, false)
	created, err := gen.Generate(ctx, "user-1", []string{txnID})
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	prediction, err := store.GetPredictionByTransaction(ctx, txnID)
	require.NoError(t, err)
	require.NotNil(t, prediction)
	assert.Equal(t, p.ID, prediction.PatternID)
}

func TestGenerator_NoMatchNoPrediction(t *testing.T) {
	gen, store := newTestGenerator(t)
	ctx := context.Background()

	saveTestPattern(t, store, &model.ExpensePattern{
		UserID:           "user-1",
		NormalizedVendor: "DELTA AIR",
		AccuracyRate:     0.9,
		OccurrenceCount:  10,
	})

	txnID := saveTestTransaction(t, store, "user-1", "GREYHOUND BUS", 18.00, false)
	created, err := gen.Generate(ctx, "user-1", []string{txnID})
	require.NoError(t, err)
	assert.Equal(t, 0, created)

	prediction, err := store.GetPredictionByTransaction(ctx, txnID)
	require.NoError(t, err)
	assert.Nil(t, prediction)
}

func TestGenerator_SuppressedPatternExcluded(t *testing.T) {
	gen, store := newTestGenerator(t)
	ctx := context.Background()

	saveTestPattern(t, store, &model.ExpensePattern{
		UserID:           "user-1",
		NormalizedVendor: "STAPLES",
		AccuracyRate:     0.9,
		OccurrenceCount:  10,
		IsSuppressed:     true,
	})

	txnID := saveTestTransaction(t, store, "user-1", "STAPLES", 25.00, false)
	created, err := gen.Generate(ctx, "user-1", []string{txnID})
	require.NoError(t, err)
	assert.Equal(t, 0, created)
}

func TestGenerator_ReceiptMatchGate(t *testing.T) {
	gen, store := newTestGenerator(t)
	ctx := context.Background()

	saveTestPattern(t, store, &model.ExpensePattern{
		UserID:               "user-1",
		NormalizedVendor:     "MARRIOTT",
		AccuracyRate:         0.9,
		OccurrenceCount:      10,
		RequiresReceiptMatch: true,
	})

	noReceipt := saveTestTransaction(t, store, "user-1", "MARRIOTT", 180.00, false)
	withReceipt := saveTestTransaction(t, store, "user-1", "MARRIOTT", 210.00, true)

	created, err := gen.Generate(ctx, "user-1", []string{noReceipt, withReceipt})
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	prediction, err := store.GetPredictionByTransaction(ctx, noReceipt)
	require.NoError(t, err)
	assert.Nil(t, prediction)

	prediction, err = store.GetPredictionByTransaction(ctx, withReceipt)
	require.NoError(t, err)
	assert.NotNil(t, prediction)
}

func TestGenerator_UserIsolation(t *testing.T) {
	gen, store := newTestGenerator(t)
	ctx := context.Background()

	saveTestPattern(t, store, &model.ExpensePattern{
		UserID:           "user-1",
		NormalizedVendor: "STAPLES",
		AccuracyRate:     0.9,
		OccurrenceCount:  10,
	})

	// A transaction belonging to another user never gets user-1's patterns,
	// even when its ID is passed explicitly.
	otherTxn := saveTestTransaction(t, store, "user-2", "STAPLES", 25.00, false)
	created, err := gen.Generate(ctx, "user-1", []string{otherTxn})
	require.NoError(t, err)
	assert.Equal(t, 0, created)
}

func TestSurfaceable(t *testing.T) {
	assert.True(t, Surfaceable(&model.TransactionPrediction{ConfidenceLevel: model.ConfidenceHigh}))
	assert.True(t, Surfaceable(&model.TransactionPrediction{ConfidenceLevel: model.ConfidenceMedium}))
	assert.False(t, Surfaceable(&model.TransactionPrediction{ConfidenceLevel: model.ConfidenceLow}))
}
