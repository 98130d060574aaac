// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/ledgertier/ledgertier/internal/model"
)

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Transaction operations
	SaveTransactions(ctx context.Context, transactions []model.Transaction) error
	GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error)
	GetTransactionsByUser(ctx context.Context, userID string) ([]model.Transaction, error)

	// Description cache operations
	GetCacheEntry(ctx context.Context, rawHash string) (*model.DescriptionCacheEntry, error)
	SaveCacheEntry(ctx context.Context, entry *model.DescriptionCacheEntry) error
	TouchCacheEntry(ctx context.Context, rawHash string) error
	GetCacheStats(ctx context.Context) (*CacheStats, error)

	// Vendor alias operations
	GetAlias(ctx context.Context, canonicalName string) (*model.VendorAlias, error)
	FindAliasForVendor(ctx context.Context, vendor, category string) (*model.VendorAlias, error)
	SaveAlias(ctx context.Context, alias *model.VendorAlias) error
	DeleteAlias(ctx context.Context, canonicalName string) error
	GetAllAliases(ctx context.Context) ([]model.VendorAlias, error)
	IncrementAliasMatchCount(ctx context.Context, canonicalName string) error

	// Embedding operations
	AddEmbedding(ctx context.Context, embedding *model.ExpenseEmbedding) error
	GetEmbeddingByID(ctx context.Context, id string) (*model.ExpenseEmbedding, error)
	GetEmbeddingsForUser(ctx context.Context, userID string) ([]model.ExpenseEmbedding, error)
	MarkEmbeddingVerified(ctx context.Context, id string) error
	PurgeExpiredEmbeddings(ctx context.Context, now time.Time) (int64, error)

	// Pattern operations
	GetPattern(ctx context.Context, userID, normalizedVendor string) (*model.ExpensePattern, error)
	GetPatternByID(ctx context.Context, id int64) (*model.ExpensePattern, error)
	GetPatternsForUser(ctx context.Context, userID string, includeSuppressed bool) ([]model.ExpensePattern, error)
	CreatePattern(ctx context.Context, pattern *model.ExpensePattern) error
	UpdatePattern(ctx context.Context, pattern *model.ExpensePattern) error
	DeletePattern(ctx context.Context, id int64) error
	SetPatternSuppressed(ctx context.Context, id int64, suppressed bool) error
	SetPatternReceiptMatch(ctx context.Context, id int64, required bool) error

	// Classification signal operations
	GetClassificationSignal(ctx context.Context, userID, transactionID string) (*model.ClassificationSignal, error)
	SaveClassificationSignal(ctx context.Context, signal *model.ClassificationSignal) error

	// Prediction operations
	CreatePrediction(ctx context.Context, prediction *model.TransactionPrediction) error
	GetPrediction(ctx context.Context, id string) (*model.TransactionPrediction, error)
	GetPredictionByTransaction(ctx context.Context, transactionID string) (*model.TransactionPrediction, error)
	PredictionExists(ctx context.Context, transactionID string) (bool, error)
	UpdatePredictionStatus(ctx context.Context, id string, status model.PredictionStatus) error
	GetPendingPredictions(ctx context.Context, userID string) ([]model.TransactionPrediction, error)

	// Report operations
	SaveReport(ctx context.Context, report *model.ExpenseReport) error
	SaveReportLines(ctx context.Context, lines []model.ReportLine) error
	GetReport(ctx context.Context, id string) (*model.ExpenseReport, error)
	UpdateReportStatus(ctx context.Context, id string, status model.ReportStatus) error
	GetReportLines(ctx context.Context, reportID string) ([]model.ReportLine, error)
	GetLearnableReportLines(ctx context.Context, userID string) ([]model.ReportLine, error)
	ReportLineLearned(ctx context.Context, lineID string) (bool, error)
	MarkReportLineLearned(ctx context.Context, reportID, lineID string) error

	// Tier usage operations
	LogTierUsage(ctx context.Context, entry *model.TierUsageLog) error
	GetTierStats(ctx context.Context, since time.Time) ([]TierStat, error)
	GetTopInferenceVendors(ctx context.Context, minCount int, since time.Time) ([]VendorUsage, error)

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// CacheStats summarizes the normalization cache for reporting.
type CacheStats struct {
	Entries      int
	TotalHits    int
	LastAccessed time.Time
}

// TierStat aggregates usage log rows for one (operation, tier) pair.
type TierStat struct {
	OperationType model.OperationType
	Tier          model.Tier
	Count         int
	CacheHits     int
	AvgConfidence float64
	AvgLatencyMs  float64
}

// VendorUsage counts inference-tier hits per vendor, for alias promotion.
type VendorUsage struct {
	Vendor string
	Count  int
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// WithDefaults fills any unset field with its standard value.
func (o RetryOptions) WithDefaults() RetryOptions {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.InitialDelay <= 0 {
		o.InitialDelay = 100 * time.Millisecond
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 30 * time.Second
	}
	if o.Multiplier <= 0 {
		o.Multiplier = 2.0
	}
	return o
}
