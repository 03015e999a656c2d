// Package store defines the backing store interface and implementations.
package store

import (
	"context"
	"fmt"

	"github.com/stevemurr/simple-item-server/record"
)

// Store owns the durable copy of the item collection.
//
// There is no caching and no locking: every Load reads the backing resource
// in full and every Save overwrites it in full.
type Store interface {
	// Load returns every item in stored order. A missing or empty resource
	// yields an empty, non-nil collection.
	Load(ctx context.Context) ([]record.Item, error)

	// Save replaces the stored collection. An empty collection is not
	// written and leaves any existing resource untouched.
	//
	// The column set is taken from the first item's keys; fields of later
	// items outside that set are dropped and missing ones are stored empty.
	// A failed Save may leave the resource partially written.
	Save(ctx context.Context, items []record.Item) error
}

// IOError reports that the backing resource could not be read or written.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("store: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
