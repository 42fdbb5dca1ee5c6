package storage

import (
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/nixlim/fa-top/internal/config"
)

// NewStore opens the configured snapshot. It reports whether the result is
// persistent; an empty path or an unusable database yields a MemoryStore.
func NewStore(cfg config.StorageConfig) (Store, bool, error) {
	if cfg.DBPath == "" {
		return NewMemoryStore(), false, nil
	}

	dbPath := expandTilde(cfg.DBPath)

	store, err := NewSQLiteStore(dbPath, cfg.RetentionDays)
	if err != nil {
		log.Printf("WARNING: SQLite snapshot unavailable (%v), falling back to in-memory store", err)
		return NewMemoryStore(), false, nil
	}

	return store, true, nil
}

func expandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
