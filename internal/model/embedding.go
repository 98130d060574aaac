package model

import "time"

// EmbeddingDimensions is the fixed vector length for expense embeddings.
const EmbeddingDimensions = 1536

// ExpenseEmbedding is one stored description vector with its known GL coding.
// The vector is immutable once created; corrections insert a new row rather
// than editing in place. Unverified rows expire and are purged by a
// maintenance job; verified rows never expire.
type ExpenseEmbedding struct {
	CreatedAt  time.Time
	ExpiresAt  *time.Time
	ID         string
	UserID     string
	SourceText string
	GLCode     string
	Department string
	Vector     []float32
	Verified   bool
}

// SimilarityMatch pairs an embedding row with its cosine similarity to a query.
type SimilarityMatch struct {
	Embedding  ExpenseEmbedding
	Similarity float64
}
