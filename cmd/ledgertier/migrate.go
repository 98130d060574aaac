package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ledgertier/ledgertier/internal/config"
	"github.com/ledgertier/ledgertier/internal/storage"
)

func migrateCmd() *cobra.Command {
	var statusOnly bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Initialize or update the database schema to the latest version.

Every other command migrates on startup; this command exists to migrate
explicitly, or to check the current schema version with --status.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dbPath := viper.GetString("database.path")
			if dbPath == "" {
				dbPath = config.DefaultDatabasePath()
			}
			expandedPath, err := config.ExpandPath(dbPath)
			if err != nil {
				return fmt.Errorf("failed to expand database path: %w", err)
			}

			store, err := storage.NewSQLiteStorage(expandedPath)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer func() { _ = store.Close() }()

			if statusOnly {
				version, err := store.SchemaVersion(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Printf("Database: %s\n", expandedPath)
				fmt.Printf("Schema version: %d (latest: %d)\n", version, storage.ExpectedSchemaVersion)
				return nil
			}

			if err := store.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Database %s is at schema version %d\n", expandedPath, storage.ExpectedSchemaVersion)
			return nil
		},
	}

	cmd.Flags().BoolVar(&statusOnly, "status", false, "show the current schema version without applying changes")

	return cmd
}
