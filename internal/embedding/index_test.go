package embedding

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/ledgertier/ledgertier/internal/model"
)

// fakeStore is an in-memory Store for index tests.
type fakeStore struct {
	rows map[string]*model.ExpenseEmbedding
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[string]*model.ExpenseEmbedding)}
}

func (f *fakeStore) AddEmbedding(_ context.Context, embedding *model.ExpenseEmbedding) error {
	copied := *embedding
	f.rows[embedding.ID] = &copied
	return nil
}

func (f *fakeStore) GetEmbeddingsForUser(_ context.Context, userID string) ([]model.ExpenseEmbedding, error) {
	var out []model.ExpenseEmbedding
	for _, row := range f.rows {
		if row.UserID == userID {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkEmbeddingVerified(_ context.Context, id string) error {
	row := f.rows[id]
	row.Verified = true
	row.ExpiresAt = nil
	return nil
}

func (f *fakeStore) PurgeExpiredEmbeddings(_ context.Context, now time.Time) (int64, error) {
	var removed int64
	for id, row := range f.rows {
		if !row.Verified && row.ExpiresAt != nil && !row.ExpiresAt.After(now) {
			delete(f.rows, id)
			removed++
		}
	}
	return removed, nil
}

// directionVector builds a full-width vector whose cosine similarity to the
// unit query along the first axis equals cosToQuery.
func directionVector(cosToQuery float64) []float32 {
	v := make([]float32, model.EmbeddingDimensions)
	v[0] = float32(cosToQuery)
	v[1] = float32(math.Sqrt(1 - cosToQuery*cosToQuery))
	return v
}

func queryVector() []float32 {
	v := make([]float32, model.EmbeddingDimensions)
	v[0] = 1
	return v
}

func addRow(t *testing.T, idx *Index, id, userID string, cos float64, verified bool, createdAt time.Time) {
	t.Helper()
	err := idx.Add(context.Background(), &model.ExpenseEmbedding{
		ID:         id,
		UserID:     userID,
		Vector:     directionVector(cos),
		SourceText: id,
		GLCode:     "6100",
		Verified:   verified,
		CreatedAt:  createdAt,
	})
	if err != nil {
		t.Fatalf("Failed to add embedding %s: %v", id, err)
	}
}

func TestIndex_FindSimilarThreshold(t *testing.T) {
	store := newFakeStore()
	idx := NewIndex(store, 0)
	ctx := context.Background()
	now := time.Now()

	addRow(t, idx, "close", "user-1", 0.95, false, now)
	addRow(t, idx, "borderline", "user-1", 0.90, false, now)
	addRow(t, idx, "far", "user-1", 0.50, false, now)

	matches, err := idx.FindSimilar(ctx, queryVector(), "user-1", 10, 0.92)
	if err != nil {
		t.Fatalf("FindSimilar failed: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("Expected 1 match at threshold 0.92, got %d", len(matches))
	}
	if matches[0].Embedding.ID != "close" {
		t.Errorf("Expected match %q, got %q", "close", matches[0].Embedding.ID)
	}
	if matches[0].Similarity < 0.92 {
		t.Errorf("Match similarity %f below threshold", matches[0].Similarity)
	}
}

func TestIndex_FindSimilarVerifiedFirst(t *testing.T) {
	store := newFakeStore()
	idx := NewIndex(store, 0)
	ctx := context.Background()
	now := time.Now()

	// Unverified row is more similar, but the verified row must rank first.
	addRow(t, idx, "unverified-closer", "user-1", 0.99, false, now)
	addRow(t, idx, "verified-farther", "user-1", 0.94, true, now.Add(-time.Hour))

	matches, err := idx.FindSimilar(ctx, queryVector(), "user-1", 10, 0.92)
	if err != nil {
		t.Fatalf("FindSimilar failed: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("Expected 2 matches, got %d", len(matches))
	}
	if matches[0].Embedding.ID != "verified-farther" {
		t.Errorf("Expected verified row first, got %q", matches[0].Embedding.ID)
	}
}

func TestIndex_FindSimilarLimitAndIsolation(t *testing.T) {
	store := newFakeStore()
	idx := NewIndex(store, 0)
	ctx := context.Background()
	now := time.Now()

	addRow(t, idx, "a", "user-1", 0.99, false, now)
	addRow(t, idx, "b", "user-1", 0.98, false, now)
	addRow(t, idx, "c", "user-1", 0.97, false, now)
	addRow(t, idx, "other", "user-2", 0.99, false, now)

	matches, err := idx.FindSimilar(ctx, queryVector(), "user-1", 2, 0.92)
	if err != nil {
		t.Fatalf("FindSimilar failed: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("Expected limit of 2 matches, got %d", len(matches))
	}
	for _, m := range matches {
		if m.Embedding.UserID != "user-1" {
			t.Errorf("Another user's embedding leaked: %s", m.Embedding.ID)
		}
	}
}

func TestIndex_FindSimilarValidation(t *testing.T) {
	idx := NewIndex(newFakeStore(), 0)
	ctx := context.Background()

	if _, err := idx.FindSimilar(ctx, []float32{1, 2, 3}, "user-1", 10, 0.92); err == nil {
		t.Error("Expected error for wrong query dimensions")
	}
	if _, err := idx.FindSimilar(ctx, queryVector(), "user-1", 10, 1.5); err == nil {
		t.Error("Expected error for threshold outside [0,1]")
	}
}

func TestIndex_AddAssignsExpiry(t *testing.T) {
	store := newFakeStore()
	idx := NewIndex(store, 24*time.Hour)
	ctx := context.Background()

	unverified := &model.ExpenseEmbedding{
		UserID:     "user-1",
		Vector:     directionVector(0.9),
		SourceText: "row",
	}
	if err := idx.Add(ctx, unverified); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if unverified.ID == "" {
		t.Error("Expected generated ID")
	}
	if unverified.ExpiresAt == nil {
		t.Fatal("Expected expiry on unverified row")
	}
	wantExpiry := unverified.CreatedAt.Add(24 * time.Hour)
	if !unverified.ExpiresAt.Equal(wantExpiry) {
		t.Errorf("Expected expiry %v, got %v", wantExpiry, *unverified.ExpiresAt)
	}

	verified := &model.ExpenseEmbedding{
		UserID:     "user-1",
		Vector:     directionVector(0.9),
		SourceText: "row2",
		Verified:   true,
	}
	if err := idx.Add(ctx, verified); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if verified.ExpiresAt != nil {
		t.Error("Verified rows must not carry an expiry")
	}
}

func TestIndex_PurgeExpiredSparesVerified(t *testing.T) {
	store := newFakeStore()
	idx := NewIndex(store, 24*time.Hour)
	ctx := context.Background()
	created := time.Now()

	addRow(t, idx, "unverified", "user-1", 0.95, false, created)
	addRow(t, idx, "confirmed", "user-1", 0.95, false, created)
	if err := idx.MarkVerified(ctx, "confirmed"); err != nil {
		t.Fatalf("MarkVerified failed: %v", err)
	}

	// One hour past the retention window.
	purged, err := idx.PurgeExpired(ctx, created.Add(25*time.Hour))
	if err != nil {
		t.Fatalf("PurgeExpired failed: %v", err)
	}
	if purged != 1 {
		t.Errorf("Expected 1 purged row, got %d", purged)
	}

	rows, err := store.GetEmbeddingsForUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("Failed to list rows: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != "confirmed" {
		t.Errorf("Expected only the verified row to survive, got %+v", rows)
	}
}
