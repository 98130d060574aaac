package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledgertier/ledgertier/internal/common"
	"github.com/ledgertier/ledgertier/internal/model"
)

// Validation errors.
var (
	ErrNilContext   = errors.New("context cannot be nil")
	ErrEmptyString  = errors.New("string parameter cannot be empty")
	ErrNilParameter = errors.New("parameter cannot be nil")
	ErrEmptySlice   = errors.New("slice cannot be empty")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateTransactions validates a slice of transactions.
func validateTransactions(transactions []model.Transaction) error {
	if transactions == nil {
		return fmt.Errorf("%w: transactions", ErrNilParameter)
	}
	if len(transactions) == 0 {
		return fmt.Errorf("%w: transactions", ErrEmptySlice)
	}

	for i := range transactions {
		txn := &transactions[i]
		if txn.ID == "" {
			return fmt.Errorf("transaction at index %d: %w: id", i, ErrEmptyString)
		}
		if txn.UserID == "" {
			return fmt.Errorf("transaction at index %d: %w: user_id", i, ErrEmptyString)
		}
	}
	return nil
}

// validateEmbedding checks dimensionality and ownership before insert.
func validateEmbedding(e *model.ExpenseEmbedding) error {
	if e == nil {
		return fmt.Errorf("%w: embedding", ErrNilParameter)
	}
	if e.ID == "" {
		return fmt.Errorf("%w: embedding id", ErrEmptyString)
	}
	if e.UserID == "" {
		return fmt.Errorf("%w: embedding user_id", ErrEmptyString)
	}
	if len(e.Vector) != model.EmbeddingDimensions {
		return common.NewValidationError("vector",
			fmt.Sprintf("expected %d dimensions, got %d", model.EmbeddingDimensions, len(e.Vector)))
	}
	return nil
}

// validatePattern validates an expense pattern before writing.
func validatePattern(p *model.ExpensePattern) error {
	if p == nil {
		return fmt.Errorf("%w: pattern", ErrNilParameter)
	}
	if err := validateString(p.UserID, "pattern user_id"); err != nil {
		return err
	}
	if err := validateString(p.NormalizedVendor, "pattern normalized_vendor"); err != nil {
		return err
	}
	if p.AccuracyRate < 0 || p.AccuracyRate > 1 {
		return common.NewValidationError("accuracy_rate",
			fmt.Sprintf("must be within [0,1], got %f", p.AccuracyRate))
	}
	if !p.ActiveClassification.Valid() {
		return common.NewValidationError("active_classification",
			fmt.Sprintf("unknown value %q", p.ActiveClassification))
	}
	return nil
}

// validatePrediction validates a prediction before writing.
func validatePrediction(p *model.TransactionPrediction) error {
	if p == nil {
		return fmt.Errorf("%w: prediction", ErrNilParameter)
	}
	if err := validateString(p.ID, "prediction id"); err != nil {
		return err
	}
	if err := validateString(p.TransactionID, "prediction transaction_id"); err != nil {
		return err
	}
	if p.PatternID <= 0 {
		return common.NewValidationError("pattern_id", "must be positive")
	}
	return nil
}
