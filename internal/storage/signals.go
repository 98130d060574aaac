package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ledgertier/ledgertier/internal/model"
)

// GetClassificationSignal retrieves the recorded marking for a (user,
// transaction) pair. Returns nil when the transaction was never marked.
func (s *SQLiteStorage) GetClassificationSignal(ctx context.Context, userID, transactionID string) (*model.ClassificationSignal, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	if err := validateString(transactionID, "transactionID"); err != nil {
		return nil, err
	}

	var signal model.ClassificationSignal
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, transaction_id, classification, recorded_at
		FROM classification_signals
		WHERE user_id = ? AND transaction_id = ?
	`, userID, transactionID).Scan(&signal.UserID, &signal.TransactionID,
		&signal.Classification, &signal.RecordedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get classification signal: %w", err)
	}

	return &signal, nil
}

// SaveClassificationSignal upserts a marking. Re-marking replaces the stored
// classification; the learner consults the previous value to stay idempotent.
func (s *SQLiteStorage) SaveClassificationSignal(ctx context.Context, signal *model.ClassificationSignal) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if signal == nil {
		return fmt.Errorf("%w: signal", ErrNilParameter)
	}
	if err := validateString(signal.UserID, "userID"); err != nil {
		return err
	}
	if err := validateString(signal.TransactionID, "transactionID"); err != nil {
		return err
	}

	if signal.RecordedAt.IsZero() {
		signal.RecordedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO classification_signals (user_id, transaction_id, classification, recorded_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, transaction_id) DO UPDATE SET
			classification = excluded.classification,
			recorded_at = excluded.recorded_at
	`, signal.UserID, signal.TransactionID, signal.Classification, signal.RecordedAt)

	if err != nil {
		return fmt.Errorf("failed to save classification signal: %w", err)
	}

	return nil
}
