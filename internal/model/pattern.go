// Package model defines the core domain models used throughout the application.
package model

import "time"

// Classification indicates whether a recurring vendor is a business expense.
type Classification string

// Classification constants.
const (
	ClassificationBusiness Classification = "BUSINESS"
	ClassificationPersonal Classification = "PERSONAL"
	ClassificationUnknown  Classification = "UNKNOWN"
)

// Valid reports whether c is a known classification value.
func (c Classification) Valid() bool {
	switch c {
	case ClassificationBusiness, ClassificationPersonal, ClassificationUnknown:
		return true
	}
	return false
}

// ExpensePattern holds the learned statistics for one (user, normalized vendor)
// pair. Occurrence count and accuracy move with every confirmation or
// rejection; suppression halts new predictions without deleting history.
type ExpensePattern struct {
	CreatedAt            time.Time
	UpdatedAt            time.Time
	UserID               string
	NormalizedVendor     string
	ActiveClassification Classification
	ID                   int64
	OccurrenceCount      int
	AverageAmount        float64
	AccuracyRate         float64
	Version              int64
	IsSuppressed         bool
	RequiresReceiptMatch bool
}

// ClampAccuracy forces AccuracyRate back into [0,1].
func (p *ExpensePattern) ClampAccuracy() {
	if p.AccuracyRate < 0 {
		p.AccuracyRate = 0
	}
	if p.AccuracyRate > 1 {
		p.AccuracyRate = 1
	}
}

// ClassificationSignal records that a user marked a specific transaction
// Business or Personal. It is the idempotency ledger for classification-driven
// learning: re-marking the same transaction the same way must not move counts.
type ClassificationSignal struct {
	RecordedAt     time.Time
	UserID         string
	TransactionID  string
	Classification Classification
}
