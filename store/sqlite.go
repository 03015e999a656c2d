package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/stevemurr/simple-item-server/record"
)

// SqliteStore keeps the collection in a single SQLite table.
//
// Tables:
//
//	items(position, data)  PRIMARY KEY (position)
//
// data holds the item as a JSON object, already projected onto the first
// item's keys so rows read back the same way CSV rows do.
type SqliteStore struct {
	db   *sql.DB
	path string
}

func NewSqliteStore(dbPath string) (*SqliteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS items (
		position INTEGER PRIMARY KEY,
		data TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, err
	}
	return &SqliteStore{db: db, path: dbPath}, nil
}

func (s *SqliteStore) Close() error {
	return s.db.Close()
}

func (s *SqliteStore) Load(ctx context.Context) ([]record.Item, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT data FROM items ORDER BY position")
	if err != nil {
		return nil, &IOError{Op: "query", Path: s.path, Err: err}
	}
	defer rows.Close()

	items := []record.Item{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, &IOError{Op: "scan", Path: s.path, Err: err}
		}
		var it record.Item
		if err := json.Unmarshal([]byte(raw), &it); err != nil {
			return nil, &IOError{Op: "decode", Path: s.path, Err: err}
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, &IOError{Op: "query", Path: s.path, Err: err}
	}
	return items, nil
}

func (s *SqliteStore) Save(ctx context.Context, items []record.Item) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &IOError{Op: "begin", Path: s.path, Err: err}
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM items"); err != nil {
		return &IOError{Op: "delete", Path: s.path, Err: err}
	}
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO items (position, data) VALUES (?, ?)")
	if err != nil {
		return &IOError{Op: "prepare", Path: s.path, Err: err}
	}
	defer stmt.Close()

	for i, it := range project(items) {
		b, err := json.Marshal(it)
		if err != nil {
			return &IOError{Op: "encode", Path: s.path, Err: err}
		}
		if _, err := stmt.ExecContext(ctx, i, string(b)); err != nil {
			return &IOError{Op: "insert", Path: s.path, Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &IOError{Op: "commit", Path: s.path, Err: err}
	}
	return nil
}
