package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ledgertier/ledgertier/internal/common"
	"github.com/ledgertier/ledgertier/internal/model"
)

// GetAlias retrieves a vendor alias by canonical name.
func (s *SQLiteStorage) GetAlias(ctx context.Context, canonicalName string) (*model.VendorAlias, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(canonicalName, "canonicalName"); err != nil {
		return nil, err
	}

	// Check cache first
	if alias := s.getCachedAlias(canonicalName); alias != nil {
		return alias, nil
	}

	return s.getAliasTx(ctx, s.db, canonicalName)
}

func (s *SQLiteStorage) getAliasTx(ctx context.Context, q queryable, canonicalName string) (*model.VendorAlias, error) {
	var alias model.VendorAlias

	err := q.QueryRowContext(ctx, `
		SELECT canonical_name, match_pattern, category, source, match_count, last_updated
		FROM vendor_aliases
		WHERE canonical_name = ?
	`, canonicalName).Scan(
		&alias.CanonicalName,
		&alias.MatchPattern,
		&alias.Category,
		&alias.Source,
		&alias.MatchCount,
		&alias.LastUpdated,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alias: %w", err)
	}

	s.cacheAlias(&alias)

	return &alias, nil
}

// FindAliasForVendor looks up an alias matching the given vendor text, by
// canonical name or match pattern, optionally filtered by category.
func (s *SQLiteStorage) FindAliasForVendor(ctx context.Context, vendor, category string) (*model.VendorAlias, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(vendor, "vendor"); err != nil {
		return nil, err
	}

	query := `
		SELECT canonical_name, match_pattern, category, source, match_count, last_updated
		FROM vendor_aliases
		WHERE (lower(canonical_name) = lower(?) OR lower(match_pattern) = lower(?))
	`
	args := []any{vendor, vendor}
	if category != "" {
		query += ` AND category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY match_count DESC LIMIT 1`

	var alias model.VendorAlias
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&alias.CanonicalName,
		&alias.MatchPattern,
		&alias.Category,
		&alias.Source,
		&alias.MatchCount,
		&alias.LastUpdated,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find alias for vendor: %w", err)
	}

	return &alias, nil
}

// SaveAlias saves or updates a vendor alias.
func (s *SQLiteStorage) SaveAlias(ctx context.Context, alias *model.VendorAlias) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if alias == nil {
		return fmt.Errorf("%w: alias", ErrNilParameter)
	}
	if err := validateString(alias.CanonicalName, "canonicalName"); err != nil {
		return err
	}
	if err := validateString(alias.MatchPattern, "matchPattern"); err != nil {
		return err
	}

	if alias.LastUpdated.IsZero() {
		alias.LastUpdated = time.Now()
	}
	if alias.Source == "" {
		alias.Source = model.AliasSourceCurated
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO vendor_aliases (canonical_name, match_pattern, category, source, match_count, last_updated)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(canonical_name) DO UPDATE SET
			match_pattern = excluded.match_pattern,
			category = excluded.category,
			source = excluded.source,
			last_updated = excluded.last_updated
	`, alias.CanonicalName, alias.MatchPattern, alias.Category, alias.Source,
		alias.MatchCount, alias.LastUpdated)

	if err != nil {
		return fmt.Errorf("failed to save alias: %w", err)
	}

	s.cacheAlias(alias)

	return nil
}

// DeleteAlias removes a vendor alias.
func (s *SQLiteStorage) DeleteAlias(ctx context.Context, canonicalName string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(canonicalName, "canonicalName"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		DELETE FROM vendor_aliases WHERE canonical_name = ?
	`, canonicalName)
	if err != nil {
		return fmt.Errorf("failed to delete alias: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return common.ErrNotFound
	}

	s.cacheMutex.Lock()
	delete(s.aliasCache, canonicalName)
	s.cacheMutex.Unlock()

	return nil
}

// GetAllAliases retrieves all vendor aliases.
func (s *SQLiteStorage) GetAllAliases(ctx context.Context) ([]model.VendorAlias, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT canonical_name, match_pattern, category, source, match_count, last_updated
		FROM vendor_aliases
		ORDER BY canonical_name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query aliases: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var aliases []model.VendorAlias
	for rows.Next() {
		var alias model.VendorAlias
		if err := rows.Scan(&alias.CanonicalName, &alias.MatchPattern, &alias.Category,
			&alias.Source, &alias.MatchCount, &alias.LastUpdated); err != nil {
			return nil, fmt.Errorf("failed to scan alias: %w", err)
		}
		aliases = append(aliases, alias)
	}

	return aliases, rows.Err()
}

// IncrementAliasMatchCount records one Tier-1 alias hit.
func (s *SQLiteStorage) IncrementAliasMatchCount(ctx context.Context, canonicalName string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(canonicalName, "canonicalName"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE vendor_aliases
		SET match_count = match_count + 1, last_updated = CURRENT_TIMESTAMP
		WHERE canonical_name = ?
	`, canonicalName)
	if err != nil {
		return fmt.Errorf("failed to increment alias match count: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return common.ErrNotFound
	}

	// Stale count in cache is acceptable; drop the entry instead of rereading.
	s.cacheMutex.Lock()
	delete(s.aliasCache, canonicalName)
	s.cacheMutex.Unlock()

	return nil
}

// getCachedAlias retrieves an alias from the in-memory cache.
func (s *SQLiteStorage) getCachedAlias(name string) *model.VendorAlias {
	s.cacheMutex.RLock()

	if time.Now().After(s.cacheExpiry) {
		s.cacheMutex.RUnlock()
		s.cacheMutex.Lock()
		defer s.cacheMutex.Unlock()

		// Double-check after acquiring write lock
		if time.Now().After(s.cacheExpiry) {
			s.aliasCache = make(map[string]*model.VendorAlias)
		}
		return nil
	}

	alias := s.aliasCache[name]
	s.cacheMutex.RUnlock()
	return alias
}

// cacheAlias adds an alias to the in-memory cache.
func (s *SQLiteStorage) cacheAlias(alias *model.VendorAlias) {
	s.cacheMutex.Lock()
	defer s.cacheMutex.Unlock()

	if len(s.aliasCache) == 0 {
		s.cacheExpiry = time.Now().Add(5 * time.Minute)
	}
	s.aliasCache[alias.CanonicalName] = alias
}

// WarmAliasCache loads all aliases into the in-memory cache.
func (s *SQLiteStorage) WarmAliasCache(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	aliases, err := s.GetAllAliases(ctx)
	if err != nil {
		return err
	}

	s.cacheMutex.Lock()
	defer s.cacheMutex.Unlock()

	s.aliasCache = make(map[string]*model.VendorAlias)
	for i := range aliases {
		s.aliasCache[aliases[i].CanonicalName] = &aliases[i]
	}

	s.cacheExpiry = time.Now().Add(5 * time.Minute)
	return nil
}
