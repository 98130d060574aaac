package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/ledgertier/ledgertier/internal/common"
	"github.com/ledgertier/ledgertier/internal/model"
)

// Helper function to create test storage.
func createTestStorage(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		t.Fatalf("Failed to migrate: %v", err)
	}

	return store, func() { _ = store.Close() }
}

// Helper function to create test transactions.
func createTestTransactions(userID string, count int) []model.Transaction {
	txns := make([]model.Transaction, count)
	baseTime := time.Now().Add(-24 * time.Hour)

	for i := 0; i < count; i++ {
		txns[i] = model.Transaction{
			Date:        baseTime.Add(time.Duration(i) * time.Hour),
			UserID:      userID,
			Description: fmt.Sprintf("SQ *COFFEE SHOP %03d", i+1),
			Vendor:      fmt.Sprintf("Coffee Shop %d", i+1),
			Amount:      float64(i+1) * 10.50,
		}
		txns[i].ID = txns[i].GenerateHash()
	}
	return txns
}

func TestSQLiteStorage_SaveTransactions(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	txns := createTestTransactions("user-1", 3)
	if err := store.SaveTransactions(ctx, txns); err != nil {
		t.Fatalf("Failed to save transactions: %v", err)
	}

	got, err := store.GetTransactionsByUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("Failed to get transactions: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("Expected 3 transactions, got %d", len(got))
	}

	// Re-importing the same rows must not duplicate them.
	if err := store.SaveTransactions(ctx, txns); err != nil {
		t.Fatalf("Failed to re-save transactions: %v", err)
	}
	got, err = store.GetTransactionsByUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("Failed to get transactions: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("Expected 3 transactions after re-import, got %d", len(got))
	}
}

func TestSQLiteStorage_GetTransactionByID(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	txns := createTestTransactions("user-1", 1)
	if err := store.SaveTransactions(ctx, txns); err != nil {
		t.Fatalf("Failed to save transactions: %v", err)
	}

	got, err := store.GetTransactionByID(ctx, txns[0].ID)
	if err != nil {
		t.Fatalf("Failed to get transaction: %v", err)
	}
	if got == nil {
		t.Fatal("Expected transaction, got nil")
	}
	if got.Description != txns[0].Description {
		t.Errorf("Expected description %q, got %q", txns[0].Description, got.Description)
	}

	missing, err := store.GetTransactionByID(ctx, "does-not-exist")
	if err != nil {
		t.Fatalf("Unexpected error for missing transaction: %v", err)
	}
	if missing != nil {
		t.Errorf("Expected nil for missing transaction, got %+v", missing)
	}
}

func TestSQLiteStorage_CacheEntryLifecycle(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	entry := &model.DescriptionCacheEntry{
		RawHash:        "abc123",
		RawText:        "AMZN MKTP US*2W4RT9013",
		NormalizedText: "Amazon Marketplace",
	}
	if err := store.SaveCacheEntry(ctx, entry); err != nil {
		t.Fatalf("Failed to save cache entry: %v", err)
	}

	got, err := store.GetCacheEntry(ctx, "abc123")
	if err != nil {
		t.Fatalf("Failed to get cache entry: %v", err)
	}
	if got == nil {
		t.Fatal("Expected cache entry, got nil")
	}
	if got.NormalizedText != "Amazon Marketplace" {
		t.Errorf("Expected normalized text %q, got %q", "Amazon Marketplace", got.NormalizedText)
	}
	if got.HitCount != 0 {
		t.Errorf("Expected hit count 0 for fresh entry, got %d", got.HitCount)
	}

	for i := 0; i < 3; i++ {
		if err := store.TouchCacheEntry(ctx, "abc123"); err != nil {
			t.Fatalf("Failed to touch cache entry: %v", err)
		}
	}

	got, err = store.GetCacheEntry(ctx, "abc123")
	if err != nil {
		t.Fatalf("Failed to get cache entry: %v", err)
	}
	if got.HitCount != 3 {
		t.Errorf("Expected hit count 3, got %d", got.HitCount)
	}
}

func TestSQLiteStorage_TouchCacheEntryMissing(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	err := store.TouchCacheEntry(context.Background(), "no-such-hash")
	if err == nil {
		t.Fatal("Expected error touching missing entry")
	}
	if err != common.ErrNotFound {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStorage_GetCacheStats(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		entry := &model.DescriptionCacheEntry{
			RawHash:        fmt.Sprintf("hash-%d", i),
			RawText:        fmt.Sprintf("RAW %d", i),
			NormalizedText: fmt.Sprintf("Vendor %d", i),
		}
		if err := store.SaveCacheEntry(ctx, entry); err != nil {
			t.Fatalf("Failed to save cache entry: %v", err)
		}
	}
	if err := store.TouchCacheEntry(ctx, "hash-0"); err != nil {
		t.Fatalf("Failed to touch cache entry: %v", err)
	}

	stats, err := store.GetCacheStats(ctx)
	if err != nil {
		t.Fatalf("Failed to get cache stats: %v", err)
	}
	if stats.Entries != 2 {
		t.Errorf("Expected 2 entries, got %d", stats.Entries)
	}
	if stats.TotalHits != 1 {
		t.Errorf("Expected 1 total hit, got %d", stats.TotalHits)
	}
}

func TestSQLiteStorage_ValidationErrors(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := store.GetCacheEntry(ctx, ""); err == nil {
		t.Error("Expected error for empty hash")
	}
	if err := store.SaveCacheEntry(ctx, nil); err == nil {
		t.Error("Expected error for nil entry")
	}
	if _, err := store.GetTransactionByID(ctx, ""); err == nil {
		t.Error("Expected error for empty transaction ID")
	}
}
