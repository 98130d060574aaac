package model

import "time"

// AliasSource indicates how a vendor alias was created.
type AliasSource string

const (
	// AliasSourceCurated indicates an alias entered by a curator.
	AliasSourceCurated AliasSource = "CURATED"
	// AliasSourcePromoted indicates an alias promoted from repeated
	// inference-tier usage.
	AliasSourcePromoted AliasSource = "PROMOTED"
)

// VendorAlias maps raw vendor text to a canonical name and category.
type VendorAlias struct {
	LastUpdated   time.Time
	CanonicalName string
	MatchPattern  string
	Category      string
	Source        AliasSource
	MatchCount    int
}

// DescriptionCacheEntry is one Tier-1 normalization cache row, keyed by the
// SHA-256 of the raw text. Entries are never deleted automatically.
type DescriptionCacheEntry struct {
	LastAccessedAt time.Time
	RawHash        string
	RawText        string
	NormalizedText string
	HitCount       int
}
