// Package config resolves the application's on-disk locations.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExpandPath resolves a leading ~ and any $VAR environment references in a
// configured path. It fails when the path needs the home directory and the
// home directory cannot be determined.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}

	return os.ExpandEnv(path), nil
}

// DefaultDatabasePath is where the database lives when database.path is not
// configured.
func DefaultDatabasePath() string {
	return "~/.local/share/ledgertier/ledgertier.db"
}

// SearchDirs lists the directories scanned for a config file, in priority
// order. The home-relative entry is skipped when home cannot be resolved.
func SearchDirs() []string {
	dirs := make([]string, 0, 2)
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".config", "ledgertier"))
	}
	return append(dirs, ".")
}
