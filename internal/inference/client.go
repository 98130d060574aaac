// Package inference wraps the external model providers the router falls back
// to on Tier 3. Providers may fail or time out; callers treat every error as
// "categorization unavailable" and never substitute a guessed result.
package inference

import (
	"context"
	"fmt"
	"strings"
)

// Client defines the inference operations the tier router consumes.
type Client interface {
	// NormalizeDescription turns a raw statement description into a clean
	// vendor form, e.g. "AMZN MKTP US*1234" into "Amazon Marketplace".
	NormalizeDescription(ctx context.Context, raw string) (NormalizationResult, error)

	// SuggestCoding proposes a GL code and department for a description.
	SuggestCoding(ctx context.Context, description string) (CodingResult, error)
}

// Embedder produces fixed-length vectors for similarity search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// NormalizationResult is the model's cleaned text plus reported confidence.
type NormalizationResult struct {
	NormalizedText string
	Confidence     float64
}

// CodingResult is the model's GL coding suggestion.
type CodingResult struct {
	GLCode     string
	Department string
	Confidence float64
}

// Config holds provider configuration.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
}

// NewClient creates an inference client based on the provided configuration.
func NewClient(cfg Config) (Client, error) {
	switch strings.ToLower(cfg.Provider) {
	case "anthropic", "":
		return newAnthropicClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported inference provider: %s", cfg.Provider)
	}
}
