package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ledgertier/ledgertier/internal/model"
)

// SaveTransactions stores imported transactions, skipping duplicates by ID.
func (s *SQLiteStorage) SaveTransactions(ctx context.Context, transactions []model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransactions(transactions); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transactions (id, user_id, date, description, vendor, amount, has_receipt_match)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i := range transactions {
		txn := &transactions[i]
		if _, err := stmt.ExecContext(ctx,
			txn.ID, txn.UserID, txn.Date, txn.Description, txn.Vendor,
			txn.Amount, txn.HasReceiptMatch); err != nil {
			return fmt.Errorf("failed to save transaction %s: %w", txn.ID, err)
		}
	}

	return tx.Commit()
}

// GetTransactionByID retrieves a single transaction. Returns nil when absent.
func (s *SQLiteStorage) GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	var txn model.Transaction
	var vendor sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, date, description, vendor, amount, has_receipt_match
		FROM transactions
		WHERE id = ?
	`, id).Scan(&txn.ID, &txn.UserID, &txn.Date, &txn.Description, &vendor,
		&txn.Amount, &txn.HasReceiptMatch)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	txn.Vendor = vendor.String
	return &txn, nil
}

// GetTransactionsByUser retrieves all transactions for a user, oldest first.
func (s *SQLiteStorage) GetTransactionsByUser(ctx context.Context, userID string) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, date, description, vendor, amount, has_receipt_match
		FROM transactions
		WHERE user_id = ?
		ORDER BY date ASC, id ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var transactions []model.Transaction
	for rows.Next() {
		var txn model.Transaction
		var vendor sql.NullString
		if err := rows.Scan(&txn.ID, &txn.UserID, &txn.Date, &txn.Description,
			&vendor, &txn.Amount, &txn.HasReceiptMatch); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txn.Vendor = vendor.String
		transactions = append(transactions, txn)
	}

	return transactions, rows.Err()
}
