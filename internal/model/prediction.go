package model

import "time"

// ConfidenceLevel bands a prediction by the strength of its backing pattern.
type ConfidenceLevel string

// Confidence level constants.
const (
	ConfidenceLow    ConfidenceLevel = "LOW"
	ConfidenceMedium ConfidenceLevel = "MEDIUM"
	ConfidenceHigh   ConfidenceLevel = "HIGH"
)

// PredictionStatus tracks a prediction through its lifecycle.
type PredictionStatus string

// Prediction status constants.
const (
	PredictionPending   PredictionStatus = "PENDING"
	PredictionConfirmed PredictionStatus = "CONFIRMED"
	PredictionRejected  PredictionStatus = "REJECTED"
	PredictionIgnored   PredictionStatus = "IGNORED"
)

// TransactionPrediction links a transaction to the pattern that predicted it.
// A transaction carries at most one prediction; deleting the owning pattern
// cascades.
type TransactionPrediction struct {
	CreatedAt        time.Time
	ResolvedAt       *time.Time
	ID               string
	TransactionID    string
	Status           PredictionStatus
	ConfidenceLevel  ConfidenceLevel
	PatternID        int64
	IsManualOverride bool
}

// Resolved reports whether the prediction has left the Pending state.
func (p *TransactionPrediction) Resolved() bool {
	return p.Status != PredictionPending
}
