package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ledgertier/ledgertier/internal/common"
	"github.com/ledgertier/ledgertier/internal/model"
)

// AddEmbedding inserts a new immutable embedding row. Vectors are never
// edited in place; corrections insert a superseding row.
func (s *SQLiteStorage) AddEmbedding(ctx context.Context, embedding *model.ExpenseEmbedding) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateEmbedding(embedding); err != nil {
		return err
	}

	if embedding.CreatedAt.IsZero() {
		embedding.CreatedAt = time.Now()
	}

	var expiresAt any
	if embedding.ExpiresAt != nil {
		expiresAt = *embedding.ExpiresAt
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO expense_embeddings
			(id, user_id, vector, source_text, gl_code, department, verified, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, embedding.ID, embedding.UserID, encodeVector(embedding.Vector),
		embedding.SourceText, embedding.GLCode, embedding.Department,
		embedding.Verified, embedding.CreatedAt, expiresAt)

	if err != nil {
		return fmt.Errorf("failed to add embedding: %w", err)
	}

	return nil
}

// GetEmbeddingByID retrieves one embedding row. Returns nil when absent.
func (s *SQLiteStorage) GetEmbeddingByID(ctx context.Context, id string) (*model.ExpenseEmbedding, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, vector, source_text, gl_code, department, verified, created_at, expires_at
		FROM expense_embeddings
		WHERE id = ?
	`, id)

	embedding, err := scanEmbedding(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get embedding: %w", err)
	}

	return embedding, nil
}

// GetEmbeddingsForUser retrieves all embedding rows visible to a user,
// verified rows first, most recent first within each block. Search-side
// ordering and threshold filtering belong to the similarity index.
func (s *SQLiteStorage) GetEmbeddingsForUser(ctx context.Context, userID string) ([]model.ExpenseEmbedding, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, vector, source_text, gl_code, department, verified, created_at, expires_at
		FROM expense_embeddings
		WHERE user_id = ?
		ORDER BY verified DESC, created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var embeddings []model.ExpenseEmbedding
	for rows.Next() {
		embedding, err := scanEmbedding(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan embedding: %w", err)
		}
		embeddings = append(embeddings, *embedding)
	}

	return embeddings, rows.Err()
}

// MarkEmbeddingVerified flips verified on and clears the expiry so the row
// survives all future purges.
func (s *SQLiteStorage) MarkEmbeddingVerified(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE expense_embeddings
		SET verified = 1, expires_at = NULL
		WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("failed to mark embedding verified: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return common.ErrNotFound
	}

	return nil
}

// PurgeExpiredEmbeddings deletes unverified rows whose expiry has passed.
// A single predicate delete: idempotent and safe to run concurrently with
// inserts. Verified rows never match the predicate.
func (s *SQLiteStorage) PurgeExpiredEmbeddings(ctx context.Context, now time.Time) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	result, err := s.db.ExecContext(ctx, `
		DELETE FROM expense_embeddings
		WHERE verified = 0 AND expires_at IS NOT NULL AND expires_at <= ?
	`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired embeddings: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return removed, nil
}

// scanner covers *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanEmbedding(row scanner) (*model.ExpenseEmbedding, error) {
	var embedding model.ExpenseEmbedding
	var vectorBlob []byte
	var glCode, department sql.NullString
	var expiresAt sql.NullTime

	if err := row.Scan(&embedding.ID, &embedding.UserID, &vectorBlob,
		&embedding.SourceText, &glCode, &department, &embedding.Verified,
		&embedding.CreatedAt, &expiresAt); err != nil {
		return nil, err
	}

	vector, err := decodeVector(vectorBlob)
	if err != nil {
		return nil, err
	}

	embedding.Vector = vector
	embedding.GLCode = glCode.String
	embedding.Department = department.String
	if expiresAt.Valid {
		t := expiresAt.Time
		embedding.ExpiresAt = &t
	}

	return &embedding, nil
}

// encodeVector packs float32 components little-endian into a BLOB.
func encodeVector(vector []float32) []byte {
	buf := make([]byte, 4*len(vector))
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeVector unpacks a BLOB written by encodeVector.
func decodeVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("malformed vector blob: %d bytes", len(blob))
	}
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vector, nil
}
