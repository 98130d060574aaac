package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ledgertier/ledgertier/internal/common"
	"github.com/ledgertier/ledgertier/internal/model"
	"github.com/ledgertier/ledgertier/internal/service"
)

// GetCacheEntry retrieves a normalization cache entry by raw-text hash.
// Returns nil when the description has never been normalized.
func (s *SQLiteStorage) GetCacheEntry(ctx context.Context, rawHash string) (*model.DescriptionCacheEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(rawHash, "rawHash"); err != nil {
		return nil, err
	}

	var entry model.DescriptionCacheEntry
	err := s.db.QueryRowContext(ctx, `
		SELECT raw_hash, raw_text, normalized_text, hit_count, last_accessed_at
		FROM description_cache
		WHERE raw_hash = ?
	`, rawHash).Scan(&entry.RawHash, &entry.RawText, &entry.NormalizedText,
		&entry.HitCount, &entry.LastAccessedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}

	return &entry, nil
}

// SaveCacheEntry writes a cache entry after a successful Tier-3 normalization.
func (s *SQLiteStorage) SaveCacheEntry(ctx context.Context, entry *model.DescriptionCacheEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("%w: entry", ErrNilParameter)
	}
	if err := validateString(entry.RawHash, "rawHash"); err != nil {
		return err
	}
	if err := validateString(entry.NormalizedText, "normalizedText"); err != nil {
		return err
	}

	if entry.LastAccessedAt.IsZero() {
		entry.LastAccessedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO description_cache (raw_hash, raw_text, normalized_text, hit_count, last_accessed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(raw_hash) DO UPDATE SET
			normalized_text = excluded.normalized_text,
			last_accessed_at = excluded.last_accessed_at
	`, entry.RawHash, entry.RawText, entry.NormalizedText, entry.HitCount, entry.LastAccessedAt)

	if err != nil {
		return fmt.Errorf("failed to save cache entry: %w", err)
	}

	return nil
}

// TouchCacheEntry records a cache hit: hit_count increments and the access
// time moves forward. A single UPDATE, safe under concurrent lookups.
func (s *SQLiteStorage) TouchCacheEntry(ctx context.Context, rawHash string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(rawHash, "rawHash"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE description_cache
		SET hit_count = hit_count + 1, last_accessed_at = CURRENT_TIMESTAMP
		WHERE raw_hash = ?
	`, rawHash)
	if err != nil {
		return fmt.Errorf("failed to touch cache entry: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return common.ErrNotFound
	}

	return nil
}

// GetCacheStats aggregates cache usage for reporting.
func (s *SQLiteStorage) GetCacheStats(ctx context.Context) (*service.CacheStats, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var stats service.CacheStats
	var lastAccessed sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(hit_count), 0), MAX(last_accessed_at)
		FROM description_cache
	`).Scan(&stats.Entries, &stats.TotalHits, &lastAccessed)
	if err != nil {
		return nil, fmt.Errorf("failed to get cache stats: %w", err)
	}

	if lastAccessed.Valid {
		stats.LastAccessed = lastAccessed.Time
	}

	return &stats, nil
}
