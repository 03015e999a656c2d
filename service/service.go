// Package service implements the item operations behind the HTTP surface.
//
// Every operation loads the whole collection from the store, transforms it
// in memory and, for mutations, saves the whole collection back. Nothing is
// kept between calls.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"

	"github.com/stevemurr/simple-item-server/record"
	"github.com/stevemurr/simple-item-server/store"
)

var (
	// ErrNotFound is returned when no item carries the requested id.
	ErrNotFound = errors.New("item not found")

	// ErrBadID is returned by Create when the last item's id has no leading
	// integer to increment, or when incrementing it would overflow.
	ErrBadID = errors.New("last item id is not an integer")
)

// Option configures an ItemService.
type Option func(*ItemService)

// SerializeWrites runs every operation under one process-wide lock, closing
// the lost-update window between concurrent load-modify-save sequences.
// Without it concurrent mutations race and the last save wins.
func SerializeWrites() Option {
	return func(s *ItemService) {
		s.mu = &sync.Mutex{}
	}
}

// ItemService exposes list, get, create, update and delete over a Store.
type ItemService struct {
	store store.Store
	mu    *sync.Mutex
}

func New(s store.Store, opts ...Option) *ItemService {
	svc := &ItemService{store: s}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func (s *ItemService) lock() func() {
	if s.mu == nil {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// List returns every item in stored order.
func (s *ItemService) List(ctx context.Context) ([]record.Item, error) {
	defer s.lock()()
	return s.store.Load(ctx)
}

// Get returns the first item whose id equals id exactly. No numeric
// normalization is applied: "1" does not match "01".
func (s *ItemService) Get(ctx context.Context, id string) (record.Item, error) {
	defer s.lock()()
	items, err := s.store.Load(ctx)
	if err != nil {
		return record.Item{}, err
	}
	if i := indexOf(items, id); i >= 0 {
		return items[i], nil
	}
	return record.Item{}, ErrNotFound
}

// Create assigns the next id to fields, appends the item and saves.
//
// The next id is the last item's id plus one, or "1" for an empty
// collection. Any id already present in fields is overwritten.
func (s *ItemService) Create(ctx context.Context, fields record.Item) (record.Item, error) {
	defer s.lock()()
	items, err := s.store.Load(ctx)
	if err != nil {
		return record.Item{}, err
	}
	id, err := nextID(items)
	if err != nil {
		return record.Item{}, err
	}
	created := fields.Clone()
	created.Set(record.IDKey, id)
	items = append(items, created)
	if err := s.store.Save(ctx, items); err != nil {
		return record.Item{}, err
	}
	return created, nil
}

// Update merges patch onto the first item with the given id and saves.
// An id inside patch is applied as-is; uniqueness is not checked.
func (s *ItemService) Update(ctx context.Context, id string, patch record.Item) (record.Item, error) {
	defer s.lock()()
	items, err := s.store.Load(ctx)
	if err != nil {
		return record.Item{}, err
	}
	i := indexOf(items, id)
	if i < 0 {
		return record.Item{}, ErrNotFound
	}
	items[i].Merge(patch)
	if err := s.store.Save(ctx, items); err != nil {
		return record.Item{}, err
	}
	return items[i], nil
}

// Delete removes every item with the given id and saves. It returns
// ErrNotFound, without saving, when nothing matched.
func (s *ItemService) Delete(ctx context.Context, id string) error {
	defer s.lock()()
	items, err := s.store.Load(ctx)
	if err != nil {
		return err
	}
	kept := make([]record.Item, 0, len(items))
	for _, it := range items {
		if it.ID() != id {
			kept = append(kept, it)
		}
	}
	if len(kept) == len(items) {
		return ErrNotFound
	}
	return s.store.Save(ctx, kept)
}

func indexOf(items []record.Item, id string) int {
	for i, it := range items {
		if it.ID() == id {
			return i
		}
	}
	return -1
}

// nextID derives the id for a new item from the last item in the
// collection. It reads the leading integer of that id, so "7abc" yields "8".
func nextID(items []record.Item) (string, error) {
	if len(items) == 0 {
		return "1", nil
	}
	last := items[len(items)-1].ID()
	n, ok := leadingInt(last)
	if !ok || n == math.MaxInt64 {
		return "", fmt.Errorf("%w: %q", ErrBadID, last)
	}
	return strconv.FormatInt(n+1, 10), nil
}

// leadingInt parses an optional sign followed by decimal digits at the start
// of s, after leading whitespace.
func leadingInt(s string) (int64, bool) {
	i := 0
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
		i++
	}
	start := i
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == digits {
		return 0, false
	}
	n, err := strconv.ParseInt(s[start:i], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
