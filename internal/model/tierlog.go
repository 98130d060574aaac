package model

import "time"

// OperationType names the router operation a usage log entry belongs to.
type OperationType string

// Operation type constants.
const (
	OperationNormalize  OperationType = "NORMALIZE"
	OperationCategorize OperationType = "CATEGORIZE"
)

// Tier identifies which layer of the router produced a result.
type Tier int

// Router tiers, cheapest first.
const (
	TierCache      Tier = 1
	TierSimilarity Tier = 2
	TierInference  Tier = 3
)

// TierUsageLog is one append-only record of a router attempt. Entries feed
// cost reporting and alias-promotion heuristics, never the routing decision.
type TierUsageLog struct {
	Timestamp      time.Time
	OperationType  OperationType
	InputVendor    string
	ID             int64
	TierUsed       Tier
	Confidence     float64
	ResponseTimeMs int64
	CacheHit       bool
}
