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

// CreatePrediction inserts a new prediction. The UNIQUE constraint on
// transaction_id enforces the one-prediction-per-transaction invariant even
// when concurrent generators race; a duplicate surfaces as ErrConflict.
func (s *SQLiteStorage) CreatePrediction(ctx context.Context, prediction *model.TransactionPrediction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validatePrediction(prediction); err != nil {
		return err
	}

	if prediction.CreatedAt.IsZero() {
		prediction.CreatedAt = time.Now()
	}
	if prediction.Status == "" {
		prediction.Status = model.PredictionPending
	}

	var resolvedAt any
	if prediction.ResolvedAt != nil {
		resolvedAt = *prediction.ResolvedAt
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transaction_predictions
			(id, transaction_id, pattern_id, confidence_level, status,
			 is_manual_override, created_at, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, prediction.ID, prediction.TransactionID, prediction.PatternID,
		prediction.ConfidenceLevel, prediction.Status, prediction.IsManualOverride,
		prediction.CreatedAt, resolvedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("prediction for transaction %s: %w", prediction.TransactionID, common.ErrConflict)
		}
		return fmt.Errorf("failed to create prediction: %w", err)
	}

	return nil
}

// GetPrediction retrieves a prediction by ID. Returns nil when absent.
func (s *SQLiteStorage) GetPrediction(ctx context.Context, id string) (*model.TransactionPrediction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, predictionSelect+` WHERE id = ?`, id)
	return scanPredictionRow(row)
}

// GetPredictionByTransaction retrieves the prediction owning a transaction.
// Returns nil when the transaction has none.
func (s *SQLiteStorage) GetPredictionByTransaction(ctx context.Context, transactionID string) (*model.TransactionPrediction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(transactionID, "transactionID"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, predictionSelect+` WHERE transaction_id = ?`, transactionID)
	return scanPredictionRow(row)
}

// PredictionExists is the idempotency guard for the generator.
func (s *SQLiteStorage) PredictionExists(ctx context.Context, transactionID string) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateString(transactionID, "transactionID"); err != nil {
		return false, err
	}

	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM transaction_predictions WHERE transaction_id = ?)
	`, transactionID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check prediction existence: %w", err)
	}

	return exists, nil
}

// UpdatePredictionStatus transitions a prediction and stamps resolution time
// for terminal states. A terminal transition only lands on a pending row, so
// two racing resolutions cannot both take effect: the loser gets ErrConflict.
func (s *SQLiteStorage) UpdatePredictionStatus(ctx context.Context, id string, status model.PredictionStatus) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	var result sql.Result
	var err error
	if status == model.PredictionPending {
		result, err = s.db.ExecContext(ctx, `
			UPDATE transaction_predictions SET status = ?, resolved_at = NULL WHERE id = ?
		`, status, id)
	} else {
		result, err = s.db.ExecContext(ctx, `
			UPDATE transaction_predictions
			SET status = ?, resolved_at = CURRENT_TIMESTAMP
			WHERE id = ? AND status = ?
		`, status, id, model.PredictionPending)
	}
	if err != nil {
		return fmt.Errorf("failed to update prediction status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		var current model.PredictionStatus
		err := s.db.QueryRowContext(ctx,
			`SELECT status FROM transaction_predictions WHERE id = ?`, id).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to check prediction status: %w", err)
		}
		return fmt.Errorf("prediction %s already %s: %w", id, current, common.ErrConflict)
	}

	return nil
}

// GetPendingPredictions retrieves a user's unresolved predictions, newest
// first, by joining through the owning transaction.
func (s *SQLiteStorage) GetPendingPredictions(ctx context.Context, userID string) ([]model.TransactionPrediction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.transaction_id, p.pattern_id, p.confidence_level, p.status,
			p.is_manual_override, p.created_at, p.resolved_at
		FROM transaction_predictions p
		JOIN transactions t ON t.id = p.transaction_id
		WHERE t.user_id = ? AND p.status = ?
		ORDER BY p.created_at DESC
	`, userID, model.PredictionPending)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending predictions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var predictions []model.TransactionPrediction
	for rows.Next() {
		prediction, err := scanPrediction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		predictions = append(predictions, *prediction)
	}

	return predictions, rows.Err()
}

const predictionSelect = `
	SELECT id, transaction_id, pattern_id, confidence_level, status,
		is_manual_override, created_at, resolved_at
	FROM transaction_predictions
`

func scanPredictionRow(row *sql.Row) (*model.TransactionPrediction, error) {
	prediction, err := scanPrediction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prediction: %w", err)
	}
	return prediction, nil
}

func scanPrediction(row scanner) (*model.TransactionPrediction, error) {
	var prediction model.TransactionPrediction
	var resolvedAt sql.NullTime
	if err := row.Scan(&prediction.ID, &prediction.TransactionID, &prediction.PatternID,
		&prediction.ConfidenceLevel, &prediction.Status, &prediction.IsManualOverride,
		&prediction.CreatedAt, &resolvedAt); err != nil {
		return nil, err
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		prediction.ResolvedAt = &t
	}
	return &prediction, nil
}
