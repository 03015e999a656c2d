package store

import (
	"fmt"
	"path/filepath"
)

// New creates a Store based on the backend name.
//
// Supported backends:
//
//	"csv"    - CSV file at dataDir/data.csv (default)
//	"json"   - JSON array at dataDir/items.json
//	"sqlite" - SQLite database at dataDir/items.db
//	"memory" - In-memory (ephemeral, for testing)
func New(backend, dataDir string) (Store, error) {
	switch backend {
	case "csv", "":
		return NewCsvFileStore(filepath.Join(dataDir, "data.csv"))
	case "json":
		return NewJsonFileStore(filepath.Join(dataDir, "items.json"))
	case "sqlite":
		return NewSqliteStore(filepath.Join(dataDir, "items.db"))
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %q (supported: csv, json, sqlite, memory)", backend)
	}
}
