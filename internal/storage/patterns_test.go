package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/ledgertier/ledgertier/internal/common"
	"github.com/ledgertier/ledgertier/internal/model"
)

func createTestPattern(userID, vendor string) *model.ExpensePattern {
	return &model.ExpensePattern{
		UserID:               userID,
		NormalizedVendor:     vendor,
		OccurrenceCount:      1,
		AverageAmount:        42.50,
		AccuracyRate:         0.5,
		ActiveClassification: model.ClassificationBusiness,
	}
}

func TestSQLiteStorage_CreatePattern(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	pattern := createTestPattern("user-1", "STARBUCKS")
	if err := store.CreatePattern(ctx, pattern); err != nil {
		t.Fatalf("Failed to create pattern: %v", err)
	}
	if pattern.ID <= 0 {
		t.Errorf("Expected assigned ID, got %d", pattern.ID)
	}
	if pattern.Version != 1 {
		t.Errorf("Expected version 1, got %d", pattern.Version)
	}

	// Second create for the same (user, vendor) key must conflict.
	dup := createTestPattern("user-1", "STARBUCKS")
	err := store.CreatePattern(ctx, dup)
	if !errors.Is(err, common.ErrConflict) {
		t.Errorf("Expected ErrConflict for duplicate key, got %v", err)
	}

	// A different user may hold the same vendor.
	other := createTestPattern("user-2", "STARBUCKS")
	if err := store.CreatePattern(ctx, other); err != nil {
		t.Errorf("Expected create for other user to succeed, got %v", err)
	}
}

func TestSQLiteStorage_GetPattern(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	pattern := createTestPattern("user-1", "DELTA AIRLINES")
	if err := store.CreatePattern(ctx, pattern); err != nil {
		t.Fatalf("Failed to create pattern: %v", err)
	}

	got, err := store.GetPattern(ctx, "user-1", "DELTA AIRLINES")
	if err != nil {
		t.Fatalf("Failed to get pattern: %v", err)
	}
	if got == nil {
		t.Fatal("Expected pattern, got nil")
	}
	if got.ID != pattern.ID {
		t.Errorf("Expected ID %d, got %d", pattern.ID, got.ID)
	}
	if got.ActiveClassification != model.ClassificationBusiness {
		t.Errorf("Expected BUSINESS classification, got %s", got.ActiveClassification)
	}

	missing, err := store.GetPattern(ctx, "user-1", "NEVER SEEN")
	if err != nil {
		t.Fatalf("Unexpected error for missing pattern: %v", err)
	}
	if missing != nil {
		t.Errorf("Expected nil for missing pattern, got %+v", missing)
	}
}

func TestSQLiteStorage_UpdatePattern(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	pattern := createTestPattern("user-1", "UBER")
	if err := store.CreatePattern(ctx, pattern); err != nil {
		t.Fatalf("Failed to create pattern: %v", err)
	}

	pattern.OccurrenceCount = 2
	pattern.AccuracyRate = 0.55
	if err := store.UpdatePattern(ctx, pattern); err != nil {
		t.Fatalf("Failed to update pattern: %v", err)
	}
	if pattern.Version != 2 {
		t.Errorf("Expected version bumped to 2, got %d", pattern.Version)
	}

	got, err := store.GetPatternByID(ctx, pattern.ID)
	if err != nil {
		t.Fatalf("Failed to reload pattern: %v", err)
	}
	if got.OccurrenceCount != 2 {
		t.Errorf("Expected occurrence count 2, got %d", got.OccurrenceCount)
	}
	if got.AccuracyRate != 0.55 {
		t.Errorf("Expected accuracy 0.55, got %f", got.AccuracyRate)
	}
}

func TestSQLiteStorage_UpdatePatternStaleVersion(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	pattern := createTestPattern("user-1", "LYFT")
	if err := store.CreatePattern(ctx, pattern); err != nil {
		t.Fatalf("Failed to create pattern: %v", err)
	}

	// Two readers take the same snapshot.
	stale, err := store.GetPatternByID(ctx, pattern.ID)
	if err != nil {
		t.Fatalf("Failed to load snapshot: %v", err)
	}

	// First writer wins.
	pattern.OccurrenceCount = 2
	if err := store.UpdatePattern(ctx, pattern); err != nil {
		t.Fatalf("First update failed: %v", err)
	}

	// Second writer's version is now stale.
	stale.OccurrenceCount = 99
	err = store.UpdatePattern(ctx, stale)
	if !errors.Is(err, common.ErrConflict) {
		t.Errorf("Expected ErrConflict on stale version, got %v", err)
	}

	// The losing write must not be applied.
	got, err := store.GetPatternByID(ctx, pattern.ID)
	if err != nil {
		t.Fatalf("Failed to reload pattern: %v", err)
	}
	if got.OccurrenceCount != 2 {
		t.Errorf("Expected occurrence count 2 after lost race, got %d", got.OccurrenceCount)
	}
}

func TestSQLiteStorage_UpdatePatternMissing(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	pattern := createTestPattern("user-1", "GHOST")
	pattern.ID = 12345
	pattern.Version = 1

	err := store.UpdatePattern(context.Background(), pattern)
	if !errors.Is(err, common.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for missing pattern, got %v", err)
	}
}

func TestSQLiteStorage_GetPatternsForUser(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	visible := createTestPattern("user-1", "COSTCO")
	if err := store.CreatePattern(ctx, visible); err != nil {
		t.Fatalf("Failed to create pattern: %v", err)
	}

	suppressed := createTestPattern("user-1", "NETFLIX")
	suppressed.IsSuppressed = true
	if err := store.CreatePattern(ctx, suppressed); err != nil {
		t.Fatalf("Failed to create suppressed pattern: %v", err)
	}

	active, err := store.GetPatternsForUser(ctx, "user-1", false)
	if err != nil {
		t.Fatalf("Failed to get patterns: %v", err)
	}
	if len(active) != 1 {
		t.Errorf("Expected 1 active pattern, got %d", len(active))
	}

	all, err := store.GetPatternsForUser(ctx, "user-1", true)
	if err != nil {
		t.Fatalf("Failed to get all patterns: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("Expected 2 patterns including suppressed, got %d", len(all))
	}
}

func TestSQLiteStorage_SetPatternFlags(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	pattern := createTestPattern("user-1", "HOME DEPOT")
	if err := store.CreatePattern(ctx, pattern); err != nil {
		t.Fatalf("Failed to create pattern: %v", err)
	}

	if err := store.SetPatternSuppressed(ctx, pattern.ID, true); err != nil {
		t.Fatalf("Failed to suppress pattern: %v", err)
	}
	if err := store.SetPatternReceiptMatch(ctx, pattern.ID, true); err != nil {
		t.Fatalf("Failed to require receipt: %v", err)
	}

	got, err := store.GetPatternByID(ctx, pattern.ID)
	if err != nil {
		t.Fatalf("Failed to reload pattern: %v", err)
	}
	if !got.IsSuppressed {
		t.Error("Expected pattern to be suppressed")
	}
	if !got.RequiresReceiptMatch {
		t.Error("Expected receipt-match requirement")
	}
}

func TestSQLiteStorage_DeletePattern(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	pattern := createTestPattern("user-1", "TARGET")
	if err := store.CreatePattern(ctx, pattern); err != nil {
		t.Fatalf("Failed to create pattern: %v", err)
	}

	if err := store.DeletePattern(ctx, pattern.ID); err != nil {
		t.Fatalf("Failed to delete pattern: %v", err)
	}

	got, err := store.GetPatternByID(ctx, pattern.ID)
	if err != nil {
		t.Fatalf("Unexpected error after delete: %v", err)
	}
	if got != nil {
		t.Errorf("Expected pattern gone, got %+v", got)
	}
}

func TestSQLiteStorage_PatternValidation(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	bad := createTestPattern("user-1", "BAD ACCURACY")
	bad.AccuracyRate = 1.5
	if err := store.CreatePattern(ctx, bad); err == nil {
		t.Error("Expected error for accuracy outside [0,1]")
	}

	badClass := createTestPattern("user-1", "BAD CLASS")
	badClass.ActiveClassification = "MAYBE"
	if err := store.CreatePattern(ctx, badClass); err == nil {
		t.Error("Expected error for invalid classification")
	}
}
