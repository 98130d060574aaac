package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ledgertier/ledgertier/internal/common"
	"github.com/ledgertier/ledgertier/internal/model"
)

// GetPattern retrieves the pattern for a (user, normalized vendor) pair.
// Returns nil when no pattern has been learned yet.
func (s *SQLiteStorage) GetPattern(ctx context.Context, userID, normalizedVendor string) (*model.ExpensePattern, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	if err := validateString(normalizedVendor, "normalizedVendor"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, patternSelect+`
		WHERE user_id = ? AND normalized_vendor = ?
	`, userID, normalizedVendor)

	return scanPatternRow(row)
}

// GetPatternByID retrieves a pattern by primary key. Returns nil when absent.
func (s *SQLiteStorage) GetPatternByID(ctx context.Context, id int64) (*model.ExpensePattern, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, patternSelect+`
		WHERE id = ?
	`, id)

	return scanPatternRow(row)
}

// GetPatternsForUser retrieves a user's patterns, optionally including
// suppressed ones. The prediction generator passes includeSuppressed=false.
func (s *SQLiteStorage) GetPatternsForUser(ctx context.Context, userID string, includeSuppressed bool) ([]model.ExpensePattern, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	query := patternSelect + ` WHERE user_id = ?`
	if !includeSuppressed {
		query += ` AND is_suppressed = 0`
	}
	query += ` ORDER BY normalized_vendor`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query patterns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var patterns []model.ExpensePattern
	for rows.Next() {
		pattern, err := scanPattern(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pattern: %w", err)
		}
		patterns = append(patterns, *pattern)
	}

	return patterns, rows.Err()
}

// CreatePattern inserts a new pattern row at version 1. A concurrent create
// for the same (user, vendor) key surfaces as ErrConflict.
func (s *SQLiteStorage) CreatePattern(ctx context.Context, pattern *model.ExpensePattern) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validatePattern(pattern); err != nil {
		return err
	}

	now := time.Now()
	if pattern.CreatedAt.IsZero() {
		pattern.CreatedAt = now
	}
	pattern.UpdatedAt = now
	pattern.Version = 1

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO expense_patterns
			(user_id, normalized_vendor, occurrence_count, average_amount, accuracy_rate,
			 active_classification, is_suppressed, requires_receipt_match, version,
			 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, pattern.UserID, pattern.NormalizedVendor, pattern.OccurrenceCount,
		pattern.AverageAmount, pattern.AccuracyRate, pattern.ActiveClassification,
		pattern.IsSuppressed, pattern.RequiresReceiptMatch, pattern.Version,
		pattern.CreatedAt, pattern.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("pattern for vendor %q: %w", pattern.NormalizedVendor, common.ErrConflict)
		}
		return fmt.Errorf("failed to create pattern: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get pattern ID: %w", err)
	}
	pattern.ID = id

	return nil
}

// UpdatePattern writes a pattern back with an optimistic version check. The
// caller's snapshot must carry the version it read; a lost race surfaces as
// ErrConflict and the caller re-reads and retries.
func (s *SQLiteStorage) UpdatePattern(ctx context.Context, pattern *model.ExpensePattern) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validatePattern(pattern); err != nil {
		return err
	}
	if pattern.ID <= 0 {
		return common.NewValidationError("id", "must be positive")
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE expense_patterns
		SET occurrence_count = ?,
			average_amount = ?,
			accuracy_rate = ?,
			active_classification = ?,
			is_suppressed = ?,
			requires_receipt_match = ?,
			version = version + 1,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND version = ?
	`, pattern.OccurrenceCount, pattern.AverageAmount, pattern.AccuracyRate,
		pattern.ActiveClassification, pattern.IsSuppressed, pattern.RequiresReceiptMatch,
		pattern.ID, pattern.Version)

	if err != nil {
		return fmt.Errorf("failed to update pattern: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// Either the row vanished or another writer bumped the version.
		existing, getErr := s.GetPatternByID(ctx, pattern.ID)
		if getErr != nil {
			return getErr
		}
		if existing == nil {
			return common.ErrNotFound
		}
		return fmt.Errorf("pattern %d version %d: %w", pattern.ID, pattern.Version, common.ErrConflict)
	}

	pattern.Version++
	return nil
}

// DeletePattern removes a pattern; predictions cascade via foreign key.
func (s *SQLiteStorage) DeletePattern(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM expense_patterns WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete pattern: %w", err)
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

// SetPatternSuppressed toggles suppression without touching learned state.
func (s *SQLiteStorage) SetPatternSuppressed(ctx context.Context, id int64, suppressed bool) error {
	return s.setPatternFlag(ctx, id, "is_suppressed", suppressed)
}

// SetPatternReceiptMatch toggles the receipt-match requirement.
func (s *SQLiteStorage) SetPatternReceiptMatch(ctx context.Context, id int64, required bool) error {
	return s.setPatternFlag(ctx, id, "requires_receipt_match", required)
}

func (s *SQLiteStorage) setPatternFlag(ctx context.Context, id int64, column string, value bool) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	// column is one of two compile-time constants, never user input.
	result, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE expense_patterns
		SET %s = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, column), value, id)
	if err != nil {
		return fmt.Errorf("failed to update pattern flag: %w", err)
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

const patternSelect = `
	SELECT id, user_id, normalized_vendor, occurrence_count, average_amount,
		accuracy_rate, active_classification, is_suppressed, requires_receipt_match,
		version, created_at, updated_at
	FROM expense_patterns
`

func scanPatternRow(row *sql.Row) (*model.ExpensePattern, error) {
	pattern, err := scanPattern(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pattern: %w", err)
	}
	return pattern, nil
}

func scanPattern(row scanner) (*model.ExpensePattern, error) {
	var pattern model.ExpensePattern
	if err := row.Scan(&pattern.ID, &pattern.UserID, &pattern.NormalizedVendor,
		&pattern.OccurrenceCount, &pattern.AverageAmount, &pattern.AccuracyRate,
		&pattern.ActiveClassification, &pattern.IsSuppressed, &pattern.RequiresReceiptMatch,
		&pattern.Version, &pattern.CreatedAt, &pattern.UpdatedAt); err != nil {
		return nil, err
	}
	return &pattern, nil
}
