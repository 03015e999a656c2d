package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/stevemurr/simple-item-server/record"
)

// JsonFileStore keeps the collection as a JSON array of objects in one file.
// Items are projected onto the first item's keys before writing, so it reads
// back exactly what the CSV backend would.
type JsonFileStore struct {
	path string
}

func NewJsonFileStore(path string) (*JsonFileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &JsonFileStore{path: path}, nil
}

func (s *JsonFileStore) Load(_ context.Context) ([]record.Item, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []record.Item{}, nil
		}
		return nil, &IOError{Op: "read", Path: s.path, Err: err}
	}
	if len(data) == 0 {
		return []record.Item{}, nil
	}
	var items []record.Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, &IOError{Op: "decode", Path: s.path, Err: err}
	}
	if items == nil {
		items = []record.Item{}
	}
	return items, nil
}

func (s *JsonFileStore) Save(_ context.Context, items []record.Item) error {
	if len(items) == 0 {
		return nil
	}
	b, err := json.MarshalIndent(project(items), "", "  ")
	if err != nil {
		return &IOError{Op: "encode", Path: s.path, Err: err}
	}
	if err := os.WriteFile(s.path, b, 0o644); err != nil {
		return &IOError{Op: "write", Path: s.path, Err: err}
	}
	return nil
}
