package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 6

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS transactions (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					date DATETIME NOT NULL,
					description TEXT NOT NULL,
					vendor TEXT,
					amount REAL NOT NULL,
					has_receipt_match BOOLEAN DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_transactions_user ON transactions(user_id)`,
				`CREATE INDEX idx_transactions_date ON transactions(date)`,

				`CREATE TABLE IF NOT EXISTS description_cache (
					raw_hash TEXT PRIMARY KEY,
					raw_text TEXT NOT NULL,
					normalized_text TEXT NOT NULL,
					hit_count INTEGER DEFAULT 0,
					last_accessed_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS vendor_aliases (
					canonical_name TEXT PRIMARY KEY,
					match_pattern TEXT NOT NULL,
					category TEXT,
					source TEXT NOT NULL DEFAULT 'CURATED',
					match_count INTEGER DEFAULT 0,
					last_updated DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS expense_patterns (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					user_id TEXT NOT NULL,
					normalized_vendor TEXT NOT NULL,
					occurrence_count INTEGER DEFAULT 0,
					average_amount REAL DEFAULT 0,
					accuracy_rate REAL DEFAULT 0,
					active_classification TEXT DEFAULT 'UNKNOWN',
					is_suppressed BOOLEAN DEFAULT 0,
					requires_receipt_match BOOLEAN DEFAULT 0,
					version INTEGER DEFAULT 1,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					UNIQUE(user_id, normalized_vendor)
				)`,
				`CREATE INDEX idx_patterns_user ON expense_patterns(user_id)`,

				`CREATE TABLE IF NOT EXISTS transaction_predictions (
					id TEXT PRIMARY KEY,
					transaction_id TEXT UNIQUE NOT NULL,
					pattern_id INTEGER NOT NULL,
					confidence_level TEXT NOT NULL,
					status TEXT NOT NULL DEFAULT 'PENDING',
					is_manual_override BOOLEAN DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					resolved_at DATETIME,
					FOREIGN KEY (pattern_id) REFERENCES expense_patterns(id) ON DELETE CASCADE
				)`,
				`CREATE INDEX idx_predictions_pattern ON transaction_predictions(pattern_id)`,
				`CREATE INDEX idx_predictions_status ON transaction_predictions(status)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Add expense embeddings",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS expense_embeddings (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					vector BLOB NOT NULL,
					source_text TEXT NOT NULL,
					gl_code TEXT,
					department TEXT,
					verified BOOLEAN DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					expires_at DATETIME
				)`,
				`CREATE INDEX idx_embeddings_user ON expense_embeddings(user_id)`,
				`CREATE INDEX idx_embeddings_expiry ON expense_embeddings(verified, expires_at)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Add expense reports and report lines",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS reports (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					status TEXT NOT NULL DEFAULT 'DRAFT',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_reports_user ON reports(user_id, status)`,
				`CREATE TABLE IF NOT EXISTS report_lines (
					id TEXT PRIMARY KEY,
					report_id TEXT NOT NULL,
					date DATETIME NOT NULL,
					description TEXT NOT NULL,
					vendor TEXT NOT NULL,
					amount REAL NOT NULL,
					gl_code TEXT,
					department TEXT,
					FOREIGN KEY (report_id) REFERENCES reports(id) ON DELETE CASCADE
				)`,
				`CREATE INDEX idx_report_lines_report ON report_lines(report_id)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
	{
		Version:     4,
		Description: "Add tier usage log",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS tier_usage_log (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					operation_type TEXT NOT NULL,
					tier_used INTEGER NOT NULL,
					confidence REAL DEFAULT 0,
					response_time_ms INTEGER DEFAULT 0,
					cache_hit BOOLEAN DEFAULT 0,
					input_vendor TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_tier_usage_op ON tier_usage_log(operation_type, tier_used)`,
				`CREATE INDEX idx_tier_usage_vendor ON tier_usage_log(input_vendor)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
	{
		Version:     5,
		Description: "Add classification signals for idempotent learning",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS classification_signals (
					user_id TEXT NOT NULL,
					transaction_id TEXT NOT NULL,
					classification TEXT NOT NULL,
					recorded_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					PRIMARY KEY (user_id, transaction_id)
				)
			`)
			return err
		},
	},
	{
		Version:     6,
		Description: "Add learned report lines ledger",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS learned_report_lines (
					line_id TEXT PRIMARY KEY,
					report_id TEXT NOT NULL,
					learned_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_learned_lines_report ON learned_report_lines(report_id)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
}

// SchemaVersion returns the schema version currently recorded in the database.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}

// Migrate applies all pending migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
