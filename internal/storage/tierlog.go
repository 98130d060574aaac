package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ledgertier/ledgertier/internal/model"
	"github.com/ledgertier/ledgertier/internal/service"
)

// LogTierUsage appends one usage record. The log is append-only.
func (s *SQLiteStorage) LogTierUsage(ctx context.Context, entry *model.TierUsageLog) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("%w: entry", ErrNilParameter)
	}

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO tier_usage_log
			(operation_type, tier_used, confidence, response_time_ms, cache_hit, input_vendor, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, entry.OperationType, entry.TierUsed, entry.Confidence, entry.ResponseTimeMs,
		entry.CacheHit, entry.InputVendor, entry.Timestamp)

	if err != nil {
		return fmt.Errorf("failed to log tier usage: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get log ID: %w", err)
	}
	entry.ID = id

	return nil
}

// GetTierStats aggregates usage log rows per (operation, tier) since a cutoff.
func (s *SQLiteStorage) GetTierStats(ctx context.Context, since time.Time) ([]service.TierStat, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT operation_type, tier_used, COUNT(*),
			SUM(CASE WHEN cache_hit THEN 1 ELSE 0 END),
			AVG(confidence), AVG(response_time_ms)
		FROM tier_usage_log
		WHERE created_at >= ?
		GROUP BY operation_type, tier_used
		ORDER BY operation_type, tier_used
	`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query tier stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var stats []service.TierStat
	for rows.Next() {
		var stat service.TierStat
		if err := rows.Scan(&stat.OperationType, &stat.Tier, &stat.Count,
			&stat.CacheHits, &stat.AvgConfidence, &stat.AvgLatencyMs); err != nil {
			return nil, fmt.Errorf("failed to scan tier stat: %w", err)
		}
		stats = append(stats, stat)
	}

	return stats, rows.Err()
}

// GetTopInferenceVendors lists vendors that keep reaching the inference tier,
// the candidates for alias promotion.
func (s *SQLiteStorage) GetTopInferenceVendors(ctx context.Context, minCount int, since time.Time) ([]service.VendorUsage, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if minCount < 1 {
		minCount = 1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT input_vendor, COUNT(*) AS hits
		FROM tier_usage_log
		WHERE tier_used = ? AND input_vendor != '' AND created_at >= ?
		GROUP BY input_vendor
		HAVING hits >= ?
		ORDER BY hits DESC, input_vendor ASC
	`, model.TierInference, since, minCount)
	if err != nil {
		return nil, fmt.Errorf("failed to query inference vendors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var usages []service.VendorUsage
	for rows.Next() {
		var usage service.VendorUsage
		if err := rows.Scan(&usage.Vendor, &usage.Count); err != nil {
			return nil, fmt.Errorf("failed to scan vendor usage: %w", err)
		}
		usages = append(usages, usage)
	}

	return usages, rows.Err()
}
