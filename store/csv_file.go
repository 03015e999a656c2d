package store

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/stevemurr/simple-item-server/record"
)

// CsvFileStore keeps the collection in a single CSV file.
//
// Layout:
//
//	id,name,color     # header, the first item's keys at the last save
//	1,apple,red
//	2,pear,""
type CsvFileStore struct {
	path string
}

func NewCsvFileStore(path string) (*CsvFileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &CsvFileStore{path: path}, nil
}

// Path returns the location of the backing file.
func (s *CsvFileStore) Path() string { return s.path }

func (s *CsvFileStore) Load(_ context.Context) ([]record.Item, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []record.Item{}, nil
		}
		return nil, &IOError{Op: "open", Path: s.path, Err: err}
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return []record.Item{}, nil
	}
	if err != nil {
		return nil, &IOError{Op: "read", Path: s.path, Err: err}
	}
	rows, err := r.ReadAll()
	if err != nil {
		return nil, &IOError{Op: "read", Path: s.path, Err: err}
	}
	return untabulate(header, rows), nil
}

func (s *CsvFileStore) Save(_ context.Context, items []record.Item) error {
	if len(items) == 0 {
		return nil
	}
	header, rows := tabulate(items)

	f, err := os.Create(s.path)
	if err != nil {
		return &IOError{Op: "create", Path: s.path, Err: err}
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return &IOError{Op: "write", Path: s.path, Err: err}
	}
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return &IOError{Op: "write", Path: s.path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &IOError{Op: "close", Path: s.path, Err: err}
	}
	return nil
}
